// Package apperror defines the error type shared by the solver, the domain
// model and the gRPC layer. Every error carries a stable ErrorCode that maps
// onto a gRPC status code, so handlers can return domain errors unchanged.
package apperror

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorCode is a stable, machine-readable error identifier.
type ErrorCode string

// Graph construction.
const (
	CodeInvalidGraph        ErrorCode = "INVALID_GRAPH"
	CodeEmptySide           ErrorCode = "EMPTY_SIDE"
	CodeInvalidVertex       ErrorCode = "INVALID_VERTEX"
	CodeNegativeWeight      ErrorCode = "NEGATIVE_WEIGHT"
	CodeWeightOverflow      ErrorCode = "WEIGHT_OVERFLOW"
	CodeInvalidMultiplicity ErrorCode = "INVALID_MULTIPLICITY"
	CodeGraphTooLarge       ErrorCode = "GRAPH_TOO_LARGE"
)

// Solver parameters.
const (
	CodeInvalidScalingFactor ErrorCode = "INVALID_SCALING_FACTOR"
	CodeInvalidParams        ErrorCode = "INVALID_PARAMS"
)

// Optimality certificate and solver invariants.
const (
	CodeCapacityViolation      ErrorCode = "CAPACITY_VIOLATION"
	CodeSlacknessViolation     ErrorCode = "SLACKNESS_VIOLATION"
	CodeDualityGap             ErrorCode = "DUALITY_GAP"
	CodeInvariantViolation     ErrorCode = "INVARIANT_VIOLATION"
	CodeTighteningDidNotFinish ErrorCode = "TIGHTENING_DID_NOT_FINISH"
)

// Service level.
const (
	CodeInternal          ErrorCode = "INTERNAL_ERROR"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeInvalidArgument   ErrorCode = "INVALID_ARGUMENT"
	CodeNilInput          ErrorCode = "NIL_INPUT"
	CodeInvalidPagination ErrorCode = "INVALID_PAGINATION"
	CodeUnavailable       ErrorCode = "UNAVAILABLE"
	CodeUnimplemented     ErrorCode = "UNIMPLEMENTED"
	CodeRateLimited       ErrorCode = "RATE_LIMITED"
)

// grpcCodes maps error codes onto gRPC status codes. Codes missing here
// become codes.Internal.
var grpcCodes = map[ErrorCode]codes.Code{
	CodeInvalidGraph:         codes.InvalidArgument,
	CodeEmptySide:            codes.InvalidArgument,
	CodeInvalidVertex:        codes.InvalidArgument,
	CodeNegativeWeight:       codes.InvalidArgument,
	CodeWeightOverflow:       codes.InvalidArgument,
	CodeInvalidMultiplicity:  codes.InvalidArgument,
	CodeInvalidScalingFactor: codes.InvalidArgument,
	CodeInvalidParams:        codes.InvalidArgument,
	CodeInvalidArgument:      codes.InvalidArgument,
	CodeNilInput:             codes.InvalidArgument,
	CodeInvalidPagination:    codes.InvalidArgument,

	CodeGraphTooLarge: codes.ResourceExhausted,
	CodeRateLimited:   codes.ResourceExhausted,

	// A solution that fails its own certificate is corrupted output.
	CodeCapacityViolation:  codes.DataLoss,
	CodeSlacknessViolation: codes.DataLoss,
	CodeDualityGap:         codes.DataLoss,

	CodeNotFound:      codes.NotFound,
	CodeUnavailable:   codes.Unavailable,
	CodeUnimplemented: codes.Unimplemented,
}

// GRPCCode returns the gRPC status code for an error code.
func (c ErrorCode) GRPCCode() codes.Code {
	if code, ok := grpcCodes[c]; ok {
		return code
	}
	return codes.Internal
}

// Severity separates ordinary failures from broken invariants.
type Severity int

const (
	SeverityError Severity = iota
	// SeverityCritical marks a violated invariant: the result cannot be
	// trusted and the failure is a bug, not bad input.
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	}
	return "unknown"
}

// Error is an application error.
type Error struct {
	Code     ErrorCode
	Message  string
	Field    string // input field that caused the error, if any
	Details  map[string]any
	Cause    error
	Severity Severity
}

// Error formats as "[CODE] message (field: f) {k=v ...}", details sorted
// by key.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteByte('[')
	sb.WriteString(string(e.Code))
	sb.WriteString("] ")
	sb.WriteString(e.Message)
	if e.Field != "" {
		sb.WriteString(" (field: ")
		sb.WriteString(e.Field)
		sb.WriteByte(')')
	}
	if len(e.Details) > 0 {
		sb.WriteString(" {")
		for i, k := range slices.Sorted(maps.Keys(e.Details)) {
			if i > 0 {
				sb.WriteByte(' ')
			}
			fmt.Fprintf(&sb, "%s=%v", k, e.Details[k])
		}
		sb.WriteByte('}')
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// GRPCStatus lets status.FromError and the gRPC server recognise the error
// without conversion.
func (e *Error) GRPCStatus() *status.Status {
	return status.New(e.Code.GRPCCode(), e.Message)
}

// WithDetails attaches a diagnostic value.
func (e *Error) WithDetails(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

func (e *Error) WithSeverity(s Severity) *Error {
	e.Severity = s
	return e
}

// New creates an error with SeverityError.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf is New with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// NewWithField creates an error tied to an input field.
func NewWithField(code ErrorCode, message, field string) *Error {
	return &Error{Code: code, Message: message, Field: field}
}

// NewCritical creates an error for a violated invariant.
func NewCritical(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Severity: SeverityCritical}
}

// Wrap creates an error around cause.
func Wrap(cause error, code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func as(err error) (*Error, bool) {
	var appErr *Error
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// Is reports whether err has an *Error with the given code in its chain.
func Is(err error, code ErrorCode) bool {
	appErr, ok := as(err)
	return ok && appErr.Code == code
}

// IsCritical reports whether err has a critical *Error in its chain.
func IsCritical(err error) bool {
	appErr, ok := as(err)
	return ok && appErr.Severity == SeverityCritical
}

// Code returns the error code of err, CodeInternal for foreign errors.
func Code(err error) ErrorCode {
	if appErr, ok := as(err); ok {
		return appErr.Code
	}
	return CodeInternal
}

// ToGRPC converts err into a gRPC status error. gRPC status errors pass
// through unchanged, foreign errors become codes.Internal.
func ToGRPC(err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := as(err); ok {
		return appErr.GRPCStatus().Err()
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codes.Internal, err.Error())
}

var (
	ErrNilGraph       = New(CodeNilInput, "graph is nil")
	ErrEmptySide      = New(CodeEmptySide, "both sides of the graph must be non-empty")
	ErrRunNotFound    = New(CodeNotFound, "matching run not found")
	ErrHistoryOff     = New(CodeUnimplemented, "run history is not configured")
	ErrNotImplemented = New(CodeUnimplemented, "method not implemented")
)

// ValidationErrors collects errors found while validating one input.
type ValidationErrors struct {
	Errors []*Error
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// Add records err; nil is ignored.
func (v *ValidationErrors) Add(err *Error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *ValidationErrors) Len() int {
	return len(v.Errors)
}

// First returns the earliest recorded error or nil.
func (v *ValidationErrors) First() *Error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v.Errors[0]
}

// Err joins all recorded errors, nil when there are none.
func (v *ValidationErrors) Err() error {
	if len(v.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(v.Errors))
	for i, e := range v.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}
