package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// MemoryLimiter in-memory реализация лимитера для одного экземпляра сервиса
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	config  Config
	now     func() time.Time

	stopCh chan struct{}
	wg     sync.WaitGroup
	closed bool
}

type bucket struct {
	tokens  float64
	updated time.Time
}

// NewMemoryLimiter создаёт in-memory лимитер
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}

	l := &MemoryLimiter{
		buckets: make(map[string]*bucket),
		config:  cfg,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}

	l.wg.Add(1)
	go l.cleanupLoop()

	return l
}

func (l *MemoryLimiter) AllowN(_ context.Context, key string, cost int) (Decision, error) {
	if cost <= 0 {
		return Decision{}, ErrInvalidCost
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return Decision{}, ErrLimiterClosed
	}

	now := l.now()
	b := l.refill(key, now)
	cost = l.config.clampCost(cost)

	d := Decision{Limit: l.config.Limit}
	if b.tokens >= float64(cost) {
		b.tokens -= float64(cost)
		d.Allowed = true
	} else {
		d.RetryAfter = l.config.retryAfter(float64(cost) - b.tokens)
	}
	d.Remaining = int(math.Floor(b.tokens))

	return d, nil
}

// refill возвращает бакет ключа с восполненным на момент now запасом
func (l *MemoryLimiter) refill(key string, now time.Time) *bucket {
	capacity := float64(l.config.capacity())

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: capacity, updated: now}
		l.buckets[key] = b
		return b
	}

	if elapsed := now.Sub(b.updated); elapsed > 0 {
		b.tokens = math.Min(capacity, b.tokens+elapsed.Seconds()*l.config.refillPerSecond())
		b.updated = now
	}
	return b
}

func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.buckets, key)
	return nil
}

func (l *MemoryLimiter) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.stopCh)
	l.buckets = nil
	l.mu.Unlock()

	l.wg.Wait()
	return nil
}

// Len возвращает число отслеживаемых ключей
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *MemoryLimiter) cleanupLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

// cleanup удаляет бакеты, которые уже восполнились полностью:
// их состояние совпадает с состоянием нового ключа
func (l *MemoryLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key := range l.buckets {
		if l.refill(key, now).tokens >= float64(l.config.capacity()) {
			delete(l.buckets, key)
		}
	}
}
