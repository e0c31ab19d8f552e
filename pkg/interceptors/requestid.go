package interceptors

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"coassign/pkg/logger"
)

// RequestIDHeader заголовок идентификатора запроса
const RequestIDHeader = "x-request-id"

// RequestIDInterceptor берёт x-request-id из метаданных или генерирует новый,
// кладёт его в контекст и возвращает клиенту в заголовке ответа.
func RequestIDInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		requestID := incomingRequestID(ctx)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx = logger.ContextWithRequestID(ctx, requestID)
		// Ошибка возможна только вне серверного стрима (прямой вызов в тестах)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, requestID)) //nolint:errcheck

		return handler(ctx, req)
	}
}

func incomingRequestID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(RequestIDHeader); len(values) > 0 {
		return values[0]
	}
	return ""
}
