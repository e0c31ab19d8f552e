package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Статусы операций решения
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusCacheHit = "cache_hit"
)

// Metrics глобальный контейнер метрик
type Metrics struct {
	// gRPC метрики
	GRPCRequestsTotal    *prometheus.CounterVec
	GRPCRequestDuration  *prometheus.HistogramVec
	GRPCRequestsInFlight prometheus.Gauge

	// Бизнес-метрики
	SolveOperationsTotal *prometheus.CounterVec
	SolveDuration        *prometheus.HistogramVec
	MatchingValue        *prometheus.GaugeVec
	ScalingPhases        prometheus.Histogram
	GraphVerticesTotal   *prometheus.HistogramVec
	GraphEdgesTotal      *prometheus.HistogramVec
	VerificationFailures prometheus.Counter

	// Внутренние шаги решателя
	SolverStepDuration *prometheus.HistogramVec
	SolverOpsTotal     *prometheus.CounterVec

	// Кэш
	CacheLookupsTotal *prometheus.CounterVec

	// Бюджет клиентов
	RateLimitDecisions *prometheus.CounterVec
	RateLimitCost      prometheus.Histogram

	// Информация о сервисе
	ServiceInfo *prometheus.GaugeVec
}

var (
	defaultMetrics *Metrics
	defaultMu      sync.Mutex
)

// NewMetrics создаёт метрики и регистрирует их в reg
func NewMetrics(reg prometheus.Registerer, namespace, subsystem string) *Metrics {
	f := promauto.With(reg)
	subsystem = sanitizeName(subsystem)

	return &Metrics{
		// gRPC метрики
		GRPCRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "grpc_requests_total",
				Help:      "Total number of gRPC requests",
			},
			[]string{"method", "status"},
		),

		GRPCRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "grpc_request_duration_seconds",
				Help:      "Duration of gRPC requests",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method"},
		),

		GRPCRequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "grpc_requests_in_flight",
				Help:      "Current number of gRPC requests being processed",
			},
		),

		// Бизнес-метрики
		SolveOperationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "solve_operations_total",
				Help:      "Total number of matching solve operations",
			},
			[]string{"source", "status"},
		),

		SolveDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "solve_duration_seconds",
				Help:      "Duration of matching solve operations",
				Buckets:   []float64{.001, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"source"},
		),

		MatchingValue: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "matching_value",
				Help:      "Weight of the last computed matching",
			},
			[]string{"source"},
		),

		ScalingPhases: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "scaling_phases",
				Help:      "Number of cost-scaling phases per solve",
				Buckets:   []float64{1, 2, 3, 4, 5, 6, 8, 10, 15, 20},
			},
		),

		GraphVerticesTotal: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "graph_vertices_total",
				Help:      "Number of vertices in processed graphs",
				Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000},
			},
			[]string{"operation"},
		),

		GraphEdgesTotal: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "graph_edges_total",
				Help:      "Number of edges in processed graphs",
				Buckets:   []float64{20, 100, 500, 1000, 5000, 10000, 50000, 100000, 1000000},
			},
			[]string{"operation"},
		),

		VerificationFailures: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "verification_failures_total",
				Help:      "Solutions whose dual certificate failed verification",
			},
		),

		SolverStepDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "solver_step_duration_seconds",
				Help:      "Total time spent per solver step in one solve",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
			[]string{"step"},
		),

		SolverOpsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "solver_operations_total",
				Help:      "Elementary solver operations (pushes, relabels)",
			},
			[]string{"operation"},
		),

		CacheLookupsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cache_lookups_total",
				Help:      "Solution cache lookups",
			},
			[]string{"result"},
		),

		RateLimitDecisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "ratelimit_decisions_total",
				Help:      "Client budget checks by result",
			},
			[]string{"method", "result"},
		),

		RateLimitCost: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "ratelimit_request_cost",
				Help:      "Budget units charged per request",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
			},
		),

		ServiceInfo: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "service_info",
				Help:      "Service information",
			},
			[]string{"version", "environment"},
		),
	}
}

// InitMetrics инициализирует глобальные метрики в DefaultRegisterer
func InitMetrics(namespace, subsystem string) *Metrics {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	defaultMetrics = NewMetrics(prometheus.DefaultRegisterer, namespace, subsystem)
	return defaultMetrics
}

// Get возвращает глобальные метрики
func Get() *Metrics {
	defaultMu.Lock()
	m := defaultMetrics
	defaultMu.Unlock()

	if m == nil {
		return InitMetrics("coassign", "")
	}
	return m
}

// RecordGRPCRequest записывает метрики gRPC запроса
func (m *Metrics) RecordGRPCRequest(method string, status string, duration time.Duration) {
	m.GRPCRequestsTotal.WithLabelValues(method, status).Inc()
	m.GRPCRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordSolveOperation записывает метрики операции решения.
// Для cache_hit длительность и число фаз не записываются.
func (m *Metrics) RecordSolveOperation(source, status string, duration time.Duration, value int64, phases int) {
	m.SolveOperationsTotal.WithLabelValues(source, status).Inc()
	if status != StatusSuccess {
		return
	}
	m.SolveDuration.WithLabelValues(source).Observe(duration.Seconds())
	m.MatchingValue.WithLabelValues(source).Set(float64(value))
	m.ScalingPhases.Observe(float64(phases))
}

// RecordGraphSize записывает размер графа
func (m *Metrics) RecordGraphSize(operation string, vertices, edges int) {
	m.GraphVerticesTotal.WithLabelValues(operation).Observe(float64(vertices))
	m.GraphEdgesTotal.WithLabelValues(operation).Observe(float64(edges))
}

// RecordCacheLookup записывает попадание или промах кэша
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordRateLimit записывает решение лимитера
func (m *Metrics) RecordRateLimit(method string, allowed bool, cost int) {
	result := "rejected"
	if allowed {
		result = "allowed"
		m.RateLimitCost.Observe(float64(cost))
	}
	m.RateLimitDecisions.WithLabelValues(method, result).Inc()
}

// RecordVerificationFailure отмечает решение, не прошедшее проверку
func (m *Metrics) RecordVerificationFailure() {
	m.VerificationFailures.Inc()
}

// SetServiceInfo устанавливает информацию о сервисе
func (m *Metrics) SetServiceInfo(version, environment string) {
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

// Handler возвращает HTTP handler для /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewServer создаёт HTTP сервер для метрик
func NewServer(port int, path string) *http.Server {
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		// Игнорируем ошибку записи - response уже отправлен
		_, _ = w.Write([]byte("OK")) //nolint:errcheck // health endpoint, ошибка записи не критична
	})

	return &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// StartMetricsServer запускает HTTP сервер для метрик
func StartMetricsServer(port int) error {
	return NewServer(port, "/metrics").ListenAndServe()
}
