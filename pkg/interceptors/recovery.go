package interceptors

import (
	"context"
	"runtime/debug"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"google.golang.org/grpc"

	"coassign/pkg/apperror"
	"coassign/pkg/logger"
)

// appErrorer значение паники, умеющее описать себя как ошибку приложения
// (нарушение инварианта решателя)
type appErrorer interface {
	AppError() *apperror.Error
}

// RecoveryInterceptor превращает панику в handler в codes.Internal.
// Частичный результат не возвращается.
func RecoveryInterceptor() grpc.UnaryServerInterceptor {
	return recovery.UnaryServerInterceptor(
		recovery.WithRecoveryHandlerContext(recoverPanic),
	)
}

func recoverPanic(ctx context.Context, p any) error {
	appErr := panicToAppError(p)

	logger.WithContext(ctx).Error("panic recovered",
		"code", appErr.Code,
		"panic", p,
		"stack", string(debug.Stack()),
	)

	return appErr.GRPCStatus().Err()
}

func panicToAppError(p any) *apperror.Error {
	switch v := p.(type) {
	case appErrorer:
		return v.AppError()
	case *apperror.Error:
		if v.Severity == apperror.SeverityCritical {
			return v
		}
		return apperror.Wrap(v, apperror.CodeInvariantViolation, v.Message).
			WithSeverity(apperror.SeverityCritical)
	case error:
		return apperror.Wrap(v, apperror.CodeInternal, "internal error").
			WithSeverity(apperror.SeverityCritical)
	default:
		return apperror.Newf(apperror.CodeInternal, "internal error: %v", v).
			WithSeverity(apperror.SeverityCritical)
	}
}
