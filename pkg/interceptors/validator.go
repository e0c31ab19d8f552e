package interceptors

import (
	"context"
	"errors"

	"google.golang.org/grpc"

	"coassign/pkg/apperror"
)

// Validator запрос, умеющий проверить свою форму
type Validator interface {
	Validate() error
}

// ValidationInterceptor отклоняет запросы, не прошедшие Validate, до вызова
// handler. Код apperror сохраняется, прочие ошибки становятся InvalidArgument.
func ValidationInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		v, ok := req.(Validator)
		if !ok {
			return handler(ctx, req)
		}
		if err := v.Validate(); err != nil {
			var appErr *apperror.Error
			if !errors.As(err, &appErr) {
				appErr = apperror.Wrap(err, apperror.CodeInvalidArgument, "validation error: "+err.Error())
			}
			return nil, apperror.ToGRPC(appErr)
		}
		return handler(ctx, req)
	}
}
