package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "coassign"

// Config параметры трассировки
type Config struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
	Version     string
	Environment string
	// SampleRate доля корневых span, 1 и больше пишет всё, 0 и меньше ничего
	SampleRate float64
}

// Provider связывает TracerProvider SDK с tracer сервиса.
// Без SDK (tp == nil) используется глобальный noop tracer otel.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

var global atomic.Pointer[Provider]

// Init настраивает экспорт span по OTLP/gRPC и делает provider глобальным.
// При выключенной трассировке возвращает noop provider и глобальное
// состояние не трогает.
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{tracer: otel.Tracer(serviceOrDefault(cfg.ServiceName))}, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter: %w", err)
	}

	res, err := newResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("trace resource: %w", err)
	}

	p := NewProvider(cfg.ServiceName,
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SampleRate)),
	)
	SetGlobal(p)
	return p, nil
}

func newResource(cfg Config) (*resource.Resource, error) {
	return resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceOrDefault(cfg.ServiceName)),
		semconv.ServiceVersion(cfg.Version),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
}

// NewProvider создаёт provider с произвольными опциями SDK. В тестах
// сюда передаётся tracetest.SpanRecorder.
func NewProvider(serviceName string, opts ...sdktrace.TracerProviderOption) *Provider {
	tp := sdktrace.NewTracerProvider(opts...)
	return &Provider{
		tp:     tp,
		tracer: tp.Tracer(serviceOrDefault(serviceName)),
	}
}

func serviceOrDefault(name string) string {
	if name == "" {
		return instrumentationName
	}
	return name
}

// SetGlobal делает provider глобальным и включает W3C propagation
// (traceparent и baggage). Возвращает предыдущий provider, nil если его не было.
func SetGlobal(p *Provider) *Provider {
	prev := global.Swap(p)
	if p != nil && p.tp != nil {
		otel.SetTracerProvider(p.tp)
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return prev
}

func samplerFor(rate float64) sdktrace.Sampler {
	if rate >= 1 {
		return sdktrace.AlwaysSample()
	}
	if rate <= 0 {
		return sdktrace.NeverSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
}

// Shutdown дописывает буферизованные span и останавливает экспорт
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Get возвращает глобальный provider или noop, если Init не вызывался
func Get() *Provider {
	if p := global.Load(); p != nil {
		return p
	}
	return &Provider{tracer: otel.Tracer(instrumentationName)}
}

// StartSpan начинает span глобального tracer
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Get().tracer.Start(ctx, name, opts...)
}

// AddEvent добавляет событие в текущий span
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// SetError записывает ошибку и переводит span в статус Error
func SetError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// RecordError записывает ошибку, не меняя статус span. Для ошибок,
// после которых запрос продолжается (например, недоступна история).
func RecordError(ctx context.Context, err error, opts ...trace.EventOption) {
	trace.SpanFromContext(ctx).RecordError(err, opts...)
}

func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
