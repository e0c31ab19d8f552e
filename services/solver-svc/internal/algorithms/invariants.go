package algorithms

import (
	"fmt"

	"coassign/pkg/apperror"
)

// InvariantError is the panic value raised when the solver state breaks one
// of its internal invariants. It indicates a bug, never bad input.
//
// The service layer recovers it and reports codes.Internal.
type InvariantError struct {
	Stage   string
	Epsilon int64
	Err     error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("solver invariant violated during %s (eps=%d): %v", e.Stage, e.Epsilon, e.Err)
}

func (e *InvariantError) Unwrap() error {
	return e.Err
}

// AppError converts the panic value into a critical application error.
func (e *InvariantError) AppError() *apperror.Error {
	return apperror.Wrap(e, apperror.CodeInvariantViolation, "solver invariant violated").
		WithSeverity(apperror.SeverityCritical).
		WithDetails("stage", e.Stage).
		WithDetails("epsilon", e.Epsilon)
}

// checkInvariants verifies the network at the given ε. It only runs in
// debug mode.
func (s *solver) checkInvariants(stage string, eps int64) {
	if !s.params.CheckIntermediateStatus {
		return
	}
	if err := s.net.CheckInvariants(eps); err != nil {
		panic(&InvariantError{Stage: stage, Epsilon: eps, Err: err})
	}
}

// fail panics unconditionally.
func (s *solver) fail(stage string, format string, args ...any) {
	panic(&InvariantError{Stage: stage, Epsilon: s.eps, Err: fmt.Errorf(format, args...)})
}
