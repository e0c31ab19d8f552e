package apperror

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestError_Format(t *testing.T) {
	cause := errors.New("disk full")

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "plain",
			err:  New(CodeEmptySide, "left side is empty"),
			want: "[EMPTY_SIDE] left side is empty",
		},
		{
			name: "field",
			err:  NewWithField(CodeInvalidVertex, "vertex out of range", "left"),
			want: "[INVALID_VERTEX] vertex out of range (field: left)",
		},
		{
			name: "details sorted",
			err: New(CodeWeightOverflow, "weight too large").
				WithDetails("weight", 9).
				WithDetails("max", 5),
			want: "[WEIGHT_OVERFLOW] weight too large {max=5 weight=9}",
		},
		{
			name: "cause",
			err:  Wrap(cause, CodeInternal, "store run"),
			want: "[INTERNAL_ERROR] store run: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorCode_GRPCCode(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want codes.Code
	}{
		{CodeInvalidGraph, codes.InvalidArgument},
		{CodeInvalidVertex, codes.InvalidArgument},
		{CodeNegativeWeight, codes.InvalidArgument},
		{CodeInvalidScalingFactor, codes.InvalidArgument},
		{CodeInvalidPagination, codes.InvalidArgument},
		{CodeGraphTooLarge, codes.ResourceExhausted},
		{CodeRateLimited, codes.ResourceExhausted},
		{CodeNotFound, codes.NotFound},
		{CodeUnavailable, codes.Unavailable},
		{CodeUnimplemented, codes.Unimplemented},
		{CodeCapacityViolation, codes.DataLoss},
		{CodeSlacknessViolation, codes.DataLoss},
		{CodeDualityGap, codes.DataLoss},
		{CodeInvariantViolation, codes.Internal},
		{CodeTighteningDidNotFinish, codes.Internal},
		{ErrorCode("SOMETHING_NEW"), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.GRPCCode(); got != tt.want {
				t.Errorf("GRPCCode() = %v, want %v", got, tt.want)
			}
			if got := New(tt.code, "x").GRPCStatus().Code(); got != tt.want {
				t.Errorf("GRPCStatus().Code() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConstructors(t *testing.T) {
	if err := Newf(CodeInvalidGraph, "sizes %d and %d", -1, 2); err.Message != "sizes -1 and 2" {
		t.Errorf("Newf message = %q", err.Message)
	}
	if err := New(CodeEmptySide, "x"); err.Severity != SeverityError {
		t.Errorf("New severity = %v", err.Severity)
	}
	if err := NewCritical(CodeDualityGap, "x"); err.Severity != SeverityCritical {
		t.Errorf("NewCritical severity = %v", err.Severity)
	}
	if err := New(CodeInvalidVertex, "x").WithField("right"); err.Field != "right" {
		t.Errorf("WithField = %q", err.Field)
	}
	if err := New(CodeInvalidGraph, "x").WithSeverity(SeverityCritical); err.Severity != SeverityCritical {
		t.Errorf("WithSeverity = %v", err.Severity)
	}
}

func TestIsAndCode_ThroughWrapping(t *testing.T) {
	inner := NewCritical(CodeSlacknessViolation, "edge (0,1) not tight")
	wrapped := fmt.Errorf("verify: %w", inner)

	if !Is(wrapped, CodeSlacknessViolation) {
		t.Error("Is should see through fmt wrapping")
	}
	if Is(wrapped, CodeDualityGap) {
		t.Error("Is matched a different code")
	}
	if !IsCritical(wrapped) {
		t.Error("IsCritical should see through fmt wrapping")
	}
	if Code(wrapped) != CodeSlacknessViolation {
		t.Errorf("Code() = %v", Code(wrapped))
	}

	plain := errors.New("plain")
	if Is(plain, CodeInternal) || IsCritical(plain) {
		t.Error("foreign error must not match")
	}
	if Code(plain) != CodeInternal {
		t.Errorf("Code(foreign) = %v, want %v", Code(plain), CodeInternal)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := Wrap(cause, CodeInternal, "wrapped")

	if !errors.Is(err, cause) {
		t.Error("errors.Is should reach the cause")
	}
}

func TestToGRPC(t *testing.T) {
	if ToGRPC(nil) != nil {
		t.Fatal("ToGRPC(nil) should be nil")
	}

	tests := []struct {
		name     string
		err      error
		wantCode codes.Code
		wantMsg  string
	}{
		{"app error", New(CodeEmptySide, "right side is empty"), codes.InvalidArgument, "right side is empty"},
		{"wrapped app error", fmt.Errorf("solve: %w", New(CodeGraphTooLarge, "too many edges")), codes.ResourceExhausted, "too many edges"},
		{"status error", status.Error(codes.NotFound, "run not found"), codes.NotFound, "run not found"},
		{"foreign error", errors.New("boom"), codes.Internal, "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, ok := status.FromError(ToGRPC(tt.err))
			if !ok {
				t.Fatal("result is not a status error")
			}
			if st.Code() != tt.wantCode {
				t.Errorf("code = %v, want %v", st.Code(), tt.wantCode)
			}
			if st.Message() != tt.wantMsg {
				t.Errorf("message = %q, want %q", st.Message(), tt.wantMsg)
			}
		})
	}
}

func TestSeverity_String(t *testing.T) {
	for s, want := range map[Severity]string{
		SeverityError:    "error",
		SeverityCritical: "critical",
		Severity(42):     "unknown",
	} {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(s), got, want)
		}
	}
}

func TestValidationErrors(t *testing.T) {
	ve := NewValidationErrors()
	if ve.HasErrors() || ve.First() != nil || ve.Err() != nil {
		t.Fatal("new collection must be empty")
	}

	ve.Add(nil)
	ve.Add(New(CodeInvalidVertex, "first"))
	ve.Add(New(CodeNegativeWeight, "second"))

	if ve.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", ve.Len())
	}
	if ve.First().Code != CodeInvalidVertex {
		t.Errorf("First() = %v", ve.First())
	}

	joined := ve.Err()
	if !Is(joined, CodeInvalidVertex) {
		t.Error("joined error should contain the first code")
	}
	var target *Error
	if !errors.As(joined, &target) {
		t.Error("joined error should unwrap to *Error")
	}
}

func TestPredefinedErrors(t *testing.T) {
	for _, err := range []*Error{ErrNilGraph, ErrEmptySide, ErrRunNotFound, ErrHistoryOff, ErrNotImplemented} {
		if err.Code == "" || err.Message == "" {
			t.Errorf("predefined error is incomplete: %+v", err)
		}
	}
	if ErrRunNotFound.GRPCStatus().Code() != codes.NotFound {
		t.Error("ErrRunNotFound must map to NotFound")
	}
	if ErrHistoryOff.GRPCStatus().Code() != codes.Unimplemented {
		t.Error("ErrHistoryOff must map to Unimplemented")
	}
}
