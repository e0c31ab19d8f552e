package interceptors

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"coassign/pkg/metrics"
)

// MetricsInterceptor записывает счётчики, длительность и число запросов в полёте
func MetricsInterceptor(m *metrics.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		m.GRPCRequestsInFlight.Inc()
		defer m.GRPCRequestsInFlight.Dec()

		start := time.Now()
		resp, err := handler(ctx, req)
		m.RecordGRPCRequest(info.FullMethod, status.Code(err).String(), time.Since(start))

		return resp, err
	}
}
