package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"coassign/pkg/domain"
)

// SolutionCache специализированный кэш для найденных паросочетаний
type SolutionCache struct {
	cache      Cache
	defaultTTL time.Duration
	now        func() time.Time
}

// CachedSolution кэшированный результат решения.
// Все данные в исходной ориентации вызывающей стороны.
type CachedSolution struct {
	Value             int64          `json:"value"`
	Matches           []domain.Match `json:"matches"`
	LeftPotentials    []int64        `json:"left_potentials"`
	RightPotentials   []int64        `json:"right_potentials"`
	Phases            []CachedPhase  `json:"phases,omitempty"`
	Verified          bool           `json:"verified"`
	ComputationTimeMs float64        `json:"computation_time_ms"`
	ComputedAt        time.Time      `json:"computed_at"`
}

// CachedPhase статистика одной фазы масштабирования
type CachedPhase struct {
	Epsilon        int64   `json:"epsilon"`
	PriceRefined   bool    `json:"price_refined"`
	GlobalRelabels int     `json:"global_relabels"`
	Relabels       int64   `json:"relabels"`
	Pushes         int64   `json:"pushes"`
	DurationMs     float64 `json:"duration_ms"`
}

// NewSolutionCache создаёт кэш решений поверх произвольного бэкенда
func NewSolutionCache(cache Cache, defaultTTL time.Duration) *SolutionCache {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	return &SolutionCache{
		cache:      cache,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Get получает кэшированный результат. Промах - (nil, false, nil).
func (sc *SolutionCache) Get(ctx context.Context, graphHash, optionsHash string) (*CachedSolution, bool, error) {
	key := BuildSolveKey(graphHash, optionsHash)

	data, err := sc.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var result CachedSolution
	if err := json.Unmarshal(data, &result); err != nil {
		// Повреждённая запись - удаляем, ошибку удаления игнорируем намеренно
		_ = sc.cache.Delete(ctx, key) //nolint:errcheck // best effort cleanup
		return nil, false, nil
	}

	return &result, true, nil
}

// Set сохраняет результат в кэш
func (sc *SolutionCache) Set(ctx context.Context, graphHash, optionsHash string, result *CachedSolution, ttl time.Duration) error {
	if result == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = sc.defaultTTL
	}

	entry := *result
	entry.ComputedAt = sc.now()

	data, err := json.Marshal(&entry)
	if err != nil {
		return err
	}

	return sc.cache.Set(ctx, BuildSolveKey(graphHash, optionsHash), data, ttl)
}

// Invalidate удаляет все записи графа независимо от опций
func (sc *SolutionCache) Invalidate(ctx context.Context, graphHash string) (int64, error) {
	return sc.cache.DeleteByPattern(ctx, BuildSolveKey(graphHash, "")+"*")
}

// InvalidateAll удаляет весь кэш решений
func (sc *SolutionCache) InvalidateAll(ctx context.Context) (int64, error) {
	return sc.cache.DeleteByPattern(ctx, "solve:*")
}

// Stats возвращает статистику бэкенда
func (sc *SolutionCache) Stats(ctx context.Context) (*Stats, error) {
	return sc.cache.Stats(ctx)
}

// FromSolution собирает запись кэша из решения
func FromSolution(s *domain.Solution, verified bool, elapsed time.Duration) *CachedSolution {
	return &CachedSolution{
		Value:             s.Value(),
		Matches:           s.Matches(),
		LeftPotentials:    s.LeftPotentials(),
		RightPotentials:   s.RightPotentials(),
		Verified:          verified,
		ComputationTimeMs: float64(elapsed.Microseconds()) / 1000,
	}
}
