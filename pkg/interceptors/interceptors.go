// Package interceptors серверные gRPC-интерсепторы сервиса паросочетаний.
package interceptors

import (
	"google.golang.org/grpc"

	"coassign/pkg/metrics"
	"coassign/pkg/ratelimit"
	"coassign/pkg/telemetry"
)

// ServerConfig конфигурация серверных интерсепторов
type ServerConfig struct {
	ServiceName   string
	EnableTracing bool
	Metrics       *metrics.Metrics  // nil - метрики не пишутся
	Limiter       ratelimit.Limiter // nil - бюджет клиентов не ограничен
}

// UnaryServerInterceptors возвращает цепочку unary интерсепторов в порядке
// применения: recovery самый внешний, бюджет ближе всего к handler, чтобы
// невалидные запросы его не расходовали.
func UnaryServerInterceptors(cfg *ServerConfig) []grpc.UnaryServerInterceptor {
	chain := []grpc.UnaryServerInterceptor{
		RecoveryInterceptor(),
		RequestIDInterceptor(),
	}

	if cfg.EnableTracing {
		chain = append(chain, telemetry.UnaryServerInterceptor())
	}

	if cfg.Metrics != nil {
		chain = append(chain, MetricsInterceptor(cfg.Metrics))
	}

	chain = append(chain,
		LoggingInterceptor(),
		ValidationInterceptor(),
	)

	if cfg.Limiter != nil {
		chain = append(chain, RateLimitInterceptor(&RateLimitConfig{
			Limiter: cfg.Limiter,
			Metrics: cfg.Metrics,
		}))
	}

	return chain
}
