// Package client клиент сервиса паросочетаний с повторами и трассировкой.
package client

import (
	"context"
	"math"
	"time"

	grpc_retry "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/retry"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"coassign/pkg/api/matchingv1"
	"coassign/pkg/config"
	"coassign/pkg/interceptors"
	"coassign/pkg/logger"
	"coassign/pkg/telemetry"
)

// ClientConfig настройки соединения
type ClientConfig struct {
	Address        string
	Timeout        time.Duration // таймаут одного вызова, 0 - без таймаута
	MaxMessageSize int
	Retry          config.RetryConfig
	ClientID       string            // x-client-id: отдельный бюджет на сервере
	DialOptions    []grpc.DialOption // дополнительные опции (тесты: bufconn)
}

// DefaultClientConfig возвращает конфигурацию по умолчанию
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Address:        "localhost:50051",
		Timeout:        5 * time.Minute,
		MaxMessageSize: 64 << 20,
		Retry: config.RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    100 * time.Millisecond,
			MaxBackoff:        10 * time.Second,
			BackoffMultiplier: 2,
		},
	}
}

// NewGRPCClient создает соединение с Retry, трассировкой и JSON-кодеком
func NewGRPCClient(cfg *ClientConfig) (*grpc.ClientConn, error) {
	retryOpts := []grpc_retry.CallOption{
		grpc_retry.WithBackoff(exponentialBackoff(cfg.Retry)),
		grpc_retry.WithCodes(codes.Unavailable, codes.Aborted),
		grpc_retry.WithMax(uint(max(cfg.Retry.MaxAttempts, 1))),
	}
	if cfg.Timeout > 0 {
		retryOpts = append(retryOpts, grpc_retry.WithPerRetryTimeout(cfg.Timeout))
	}

	callOpts := []grpc.CallOption{grpc.CallContentSubtype(matchingv1.CodecName)}
	if cfg.MaxMessageSize > 0 {
		callOpts = append(callOpts,
			grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
			grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
		)
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(callOpts...),
		grpc.WithChainUnaryInterceptor(
			requestIDClientInterceptor(cfg.ClientID),
			telemetry.UnaryClientInterceptor(),
			grpc_retry.UnaryClientInterceptor(retryOpts...),
		),
	}
	dialOpts = append(dialOpts, cfg.DialOptions...)

	return grpc.NewClient(cfg.Address, dialOpts...)
}

// exponentialBackoff задержка initial * multiplier^(attempt-1), не больше max
func exponentialBackoff(rc config.RetryConfig) grpc_retry.BackoffFunc {
	return func(_ context.Context, attempt uint) time.Duration {
		if attempt == 0 {
			return 0
		}
		mult := rc.BackoffMultiplier
		if mult < 1 {
			mult = 1
		}
		d := time.Duration(float64(rc.InitialBackoff) * math.Pow(mult, float64(attempt-1)))
		if rc.MaxBackoff > 0 && (d > rc.MaxBackoff || d < 0) {
			return rc.MaxBackoff
		}
		return d
	}
}

// requestIDClientInterceptor передаёт серверу request ID из контекста и
// идентификатор клиента
func requestIDClientInterceptor(clientID string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		if id, ok := logger.RequestIDFromContext(ctx); ok {
			ctx = metadata.AppendToOutgoingContext(ctx, interceptors.RequestIDHeader, id)
		}
		if clientID != "" {
			ctx = metadata.AppendToOutgoingContext(ctx, interceptors.ClientIDHeader, clientID)
		}
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}
