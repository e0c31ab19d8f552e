package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"coassign/pkg/cache"
)

// CacheStatsSource источник статистики кэша решений
type CacheStatsSource interface {
	Stats(ctx context.Context) (*cache.Stats, error)
}

// CacheCollector читает статистику бэкенда кэша при каждом scrape.
// Для Redis это INFO и DBSIZE, поэтому чтение ограничено таймаутом.
type CacheCollector struct {
	src     CacheStatsSource
	timeout time.Duration

	keys        *prometheus.Desc
	hits        *prometheus.Desc
	misses      *prometheus.Desc
	evictions   *prometheus.Desc
	memoryBytes *prometheus.Desc
	up          *prometheus.Desc
}

// NewCacheCollector создаёт коллектор для src
func NewCacheCollector(namespace, subsystem string, src CacheStatsSource) *CacheCollector {
	subsystem = sanitizeName(subsystem)
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, name),
			help,
			[]string{"backend"}, nil,
		)
	}
	return &CacheCollector{
		src:         src,
		timeout:     2 * time.Second,
		keys:        desc("cache_backend_keys", "Keys stored in the cache backend"),
		hits:        desc("cache_backend_hits_total", "Hits reported by the cache backend"),
		misses:      desc("cache_backend_misses_total", "Misses reported by the cache backend"),
		evictions:   desc("cache_backend_evictions_total", "Entries evicted by the cache backend"),
		memoryBytes: desc("cache_backend_memory_bytes", "Memory used by the cache backend"),
		up: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, subsystem, "cache_backend_up"),
			"Whether the last stats read from the cache backend succeeded",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.keys
	ch <- c.hits
	ch <- c.misses
	ch <- c.evictions
	ch <- c.memoryBytes
	ch <- c.up
}

// Collect implements prometheus.Collector
func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	stats, err := c.src.Stats(ctx)
	if err != nil || stats == nil {
		ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 0)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.up, prometheus.GaugeValue, 1)

	b := stats.Backend
	ch <- prometheus.MustNewConstMetric(c.keys, prometheus.GaugeValue, float64(stats.TotalKeys), b)
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(stats.Hits), b)
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(stats.Misses), b)
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(stats.Evictions), b)
	ch <- prometheus.MustNewConstMetric(c.memoryBytes, prometheus.GaugeValue, float64(stats.MemoryBytes), b)
}

// Register регистрирует коллектор в реестре по умолчанию, тем же, что и InitMetrics
func Register(c prometheus.Collector) error {
	return prometheus.DefaultRegisterer.Register(c)
}

// sanitizeName приводит имя сервиса к допустимому имени метрики:
// всё кроме [a-zA-Z0-9_] заменяется на '_' ("solver-svc" -> "solver_svc")
func sanitizeName(name string) string {
	out := []byte(name)
	for i, c := range out {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9' && i > 0:
		default:
			out[i] = '_'
		}
	}
	return string(out)
}

// SolverRecorder накапливает таймеры и счётчики одного решения и
// переносит их в метрики вызовом Flush. Не потокобезопасен: один
// рекордер обслуживает ровно один запуск решателя.
type SolverRecorder struct {
	m      *Metrics
	timers map[string]time.Duration
	counts map[string]int64
	now    func() time.Time
}

// NewSolverRecorder создаёт рекордер для одного решения
func (m *Metrics) NewSolverRecorder() *SolverRecorder {
	return &SolverRecorder{
		m:      m,
		timers: make(map[string]time.Duration),
		counts: make(map[string]int64),
		now:    time.Now,
	}
}

// StartTimer начинает замер шага name и возвращает функцию остановки
func (r *SolverRecorder) StartTimer(name string) func() {
	start := r.now()
	return func() {
		r.timers[name] += r.now().Sub(start)
	}
}

// Count увеличивает счётчик name на delta
func (r *SolverRecorder) Count(name string, delta int64) {
	r.counts[name] += delta
}

// Elapsed возвращает накопленное время шага name
func (r *SolverRecorder) Elapsed(name string) time.Duration {
	return r.timers[name]
}

// Flush записывает накопленные значения в метрики и обнуляет рекордер
func (r *SolverRecorder) Flush() {
	for name, d := range r.timers {
		r.m.SolverStepDuration.WithLabelValues(name).Observe(d.Seconds())
	}
	for name, n := range r.counts {
		r.m.SolverOpsTotal.WithLabelValues(name).Add(float64(n))
	}
	clear(r.timers)
	clear(r.counts)
}
