// Package ratelimit ограничивает вычислительный бюджет клиентов сервиса.
//
// Бюджет устроен как token bucket: за Window клиент получает Limit единиц,
// сверх этого допускается всплеск Burst. Запрос расходует столько единиц,
// сколько стоит его граф (см. matchingv1.EdgesPerCostUnit).
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coassign/pkg/config"
)

// Бэкенды хранения состояния
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Стандартные ошибки
var (
	ErrLimiterClosed = errors.New("limiter is closed")
	ErrInvalidCost   = errors.New("cost must be positive")
)

// Limiter интерфейс ограничителя бюджета
type Limiter interface {
	// AllowN списывает cost единиц с бюджета ключа, если их хватает
	AllowN(ctx context.Context, key string, cost int) (Decision, error)

	// Reset восстанавливает полный бюджет ключа
	Reset(ctx context.Context, key string) error

	// Close освобождает ресурсы лимитера
	Close() error
}

// Decision результат проверки бюджета
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration // 0 если запрос пропущен
}

// Config конфигурация лимитера
type Config struct {
	Limit     int
	Burst     int
	Window    time.Duration
	Backend   string
	KeyPrefix string

	// CleanupInterval интервал очистки простаивающих ключей (memory)
	CleanupInterval time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		Limit:           600,
		Burst:           100,
		Window:          time.Minute,
		Backend:         BackendMemory,
		KeyPrefix:       "ratelimit:",
		CleanupInterval: 5 * time.Minute,
	}
}

// FromConfig собирает конфигурацию лимитера из конфигурации сервиса.
// Redis берётся тот же, что и для кэша решений.
func FromConfig(rl *config.RateLimitConfig, cache *config.CacheConfig) Config {
	cfg := DefaultConfig()
	cfg.Limit = rl.Limit
	cfg.Burst = rl.Burst
	cfg.Window = rl.Window
	cfg.Backend = rl.Backend
	if cache != nil {
		cfg.RedisAddr = cache.Address()
		cfg.RedisPassword = cache.Password
		cfg.RedisDB = cache.DB
	}
	return cfg
}

// capacity максимальный запас единиц
func (c Config) capacity() int {
	return c.Limit + c.Burst
}

// refillPerSecond скорость восполнения бюджета
func (c Config) refillPerSecond() float64 {
	return float64(c.Limit) / c.Window.Seconds()
}

// retryAfter время до накопления missing единиц
func (c Config) retryAfter(missing float64) time.Duration {
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / c.refillPerSecond() * float64(time.Second))
}

// clampCost ограничивает стоимость ёмкостью бакета: иначе запрос
// не прошёл бы никогда, даже у клиента без истории
func (c Config) clampCost(cost int) int {
	if capacity := c.capacity(); cost > capacity {
		return capacity
	}
	return cost
}

func (c Config) validate() error {
	if c.Limit <= 0 {
		return fmt.Errorf("ratelimit: limit must be positive, got %d", c.Limit)
	}
	if c.Burst < 0 {
		return fmt.Errorf("ratelimit: burst must be non-negative, got %d", c.Burst)
	}
	if c.Window <= 0 {
		return fmt.Errorf("ratelimit: window must be positive, got %v", c.Window)
	}
	return nil
}

// New создаёт лимитер на основе конфигурации
func New(cfg Config) (Limiter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendRedis:
		return NewRedisLimiter(cfg)
	case BackendMemory, "":
		return NewMemoryLimiter(cfg), nil
	default:
		return nil, fmt.Errorf("unknown ratelimit backend %q", cfg.Backend)
	}
}
