package ratelimit

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript атомарно восполняет и списывает бюджет ключа.
// Состояние: hash {tokens, ts}; ts в миллисекундах.
// Дробный остаток возвращается строкой: Lua number -> Redis integer отбрасывает дробь.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local cost = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
	tokens = capacity
	ts = now
end

if now > ts then
	tokens = math.min(capacity, tokens + (now - ts) * rate)
	ts = now
end

local allowed = 0
if tokens >= cost then
	tokens = tokens - cost
	allowed = 1
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'ts', ts)
redis.call('PEXPIRE', key, ttl)

return {allowed, tostring(tokens)}
`)

// RedisLimiter лимитер с общим для всех экземпляров сервиса состоянием
type RedisLimiter struct {
	client redis.UniversalClient
	config Config
	now    func() time.Time
}

// NewRedisLimiter создаёт Redis лимитер и проверяет соединение
func NewRedisLimiter(cfg Config) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close() //nolint:errcheck // соединение не установлено
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisLimiterWithClient(client, cfg), nil
}

// NewRedisLimiterWithClient оборачивает готовый клиент
func NewRedisLimiterWithClient(client redis.UniversalClient, cfg Config) *RedisLimiter {
	return &RedisLimiter{client: client, config: cfg, now: time.Now}
}

func (l *RedisLimiter) key(k string) string {
	return l.config.KeyPrefix + k
}

func (l *RedisLimiter) AllowN(ctx context.Context, key string, cost int) (Decision, error) {
	if cost <= 0 {
		return Decision{}, ErrInvalidCost
	}
	cost = l.config.clampCost(cost)

	// Полностью восполненный бакет не отличается от отсутствующего
	ttl := l.config.Window * time.Duration(l.config.capacity()) / time.Duration(l.config.Limit)

	result, err := tokenBucketScript.Run(ctx, l.client, []string{l.key(key)},
		l.config.capacity(),
		l.config.refillPerSecond()/1000,
		l.now().UnixMilli(),
		cost,
		ttl.Milliseconds()+1,
	).Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis script error: %w", err)
	}
	if len(result) != 2 {
		return Decision{}, fmt.Errorf("unexpected redis script result: %v", result)
	}

	allowed, ok := result[0].(int64)
	if !ok {
		return Decision{}, fmt.Errorf("unexpected redis script result type %T", result[0])
	}
	raw, ok := result[1].(string)
	if !ok {
		return Decision{}, fmt.Errorf("unexpected redis script result type %T", result[1])
	}
	tokens, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Decision{}, fmt.Errorf("parse remaining tokens: %w", err)
	}

	d := Decision{
		Allowed:   allowed == 1,
		Limit:     l.config.Limit,
		Remaining: int(math.Floor(tokens)),
	}
	if !d.Allowed {
		d.RetryAfter = l.config.retryAfter(float64(cost) - tokens)
	}
	return d, nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, l.key(key)).Err()
}

func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
