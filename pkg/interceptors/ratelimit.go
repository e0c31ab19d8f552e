package interceptors

import (
	"context"
	"fmt"
	"math"
	"net"
	"path"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"

	"coassign/pkg/apperror"
	"coassign/pkg/logger"
	"coassign/pkg/metrics"
	"coassign/pkg/ratelimit"
)

// ClientIDHeader заголовок, по которому клиенты получают раздельный бюджет
const ClientIDHeader = "x-client-id"

// Coster сообщение, знающее свою стоимость в единицах бюджета.
// Запросы без стоимости (чтение истории) не лимитируются.
type Coster interface {
	RateCost() int
}

// KeyFunc извлекает ключ бюджета из контекста запроса
type KeyFunc func(ctx context.Context) string

// RateLimitConfig конфигурация интерсептора бюджета
type RateLimitConfig struct {
	Limiter ratelimit.Limiter
	KeyFunc KeyFunc          // nil - ClientKey
	Metrics *metrics.Metrics // nil - метрики не пишутся
}

// ClientKey ключ бюджета: x-client-id, иначе адрес клиента без порта
func ClientKey(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(ClientIDHeader); len(values) > 0 && values[0] != "" {
			return "client:" + values[0]
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		addr := p.Addr.String()
		if host, _, err := net.SplitHostPort(addr); err == nil {
			addr = host
		}
		return "peer:" + addr
	}
	return "unknown"
}

// RateLimitInterceptor списывает стоимость запроса с бюджета клиента и
// отклоняет запрос с codes.ResourceExhausted, если бюджета не хватает.
// Ошибка хранилища лимитера запрос не блокирует.
func RateLimitInterceptor(cfg *RateLimitConfig) grpc.UnaryServerInterceptor {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = ClientKey
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		coster, ok := req.(Coster)
		if !ok {
			return handler(ctx, req)
		}

		key := keyFunc(ctx)
		cost := coster.RateCost()
		method := path.Base(info.FullMethod)

		decision, err := cfg.Limiter.AllowN(ctx, key, cost)
		if err != nil {
			logger.WithContext(ctx).Warn("rate limit check failed", "error", err, "key", key)
			return handler(ctx, req)
		}

		if cfg.Metrics != nil {
			cfg.Metrics.RecordRateLimit(method, decision.Allowed, cost)
		}

		header := metadata.Pairs(
			"x-ratelimit-limit", strconv.Itoa(decision.Limit),
			"x-ratelimit-remaining", strconv.Itoa(decision.Remaining),
			"x-ratelimit-cost", strconv.Itoa(cost),
		)

		if !decision.Allowed {
			retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
			header.Set("retry-after", strconv.Itoa(retryAfter))
			_ = grpc.SetHeader(ctx, header) //nolint:errcheck // вне серверного стрима заголовки недоступны

			logger.WithContext(ctx).Warn("rate limit exceeded",
				"key", key,
				"method", method,
				"cost", cost,
				"remaining", decision.Remaining,
			)

			return nil, apperror.ToGRPC(apperror.New(apperror.CodeRateLimited,
				fmt.Sprintf("request cost %d exceeds remaining budget %d: retry after %ds", cost, decision.Remaining, retryAfter)))
		}

		_ = grpc.SetHeader(ctx, header) //nolint:errcheck // вне серверного стрима заголовки недоступны
		return handler(ctx, req)
	}
}
