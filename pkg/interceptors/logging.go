package interceptors

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"coassign/pkg/logger"
)

// LoggingInterceptor логирует gRPC запросы. Ошибки клиента пишутся с
// уровнем WARN, ошибки сервера с уровнем ERROR.
func LoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		code := status.Code(err)
		log := logger.WithContext(ctx,
			"method", info.FullMethod,
			"duration_ms", time.Since(start).Milliseconds(),
			"code", code.String(),
		)

		if err == nil {
			log.Info("gRPC request completed")
		} else {
			log.Log(ctx, levelFor(code), "gRPC request failed", "error", err.Error())
		}

		return resp, err
	}
}

func levelFor(code codes.Code) slog.Level {
	switch code {
	case codes.InvalidArgument, codes.NotFound, codes.Unimplemented,
		codes.Canceled, codes.DeadlineExceeded, codes.ResourceExhausted:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
