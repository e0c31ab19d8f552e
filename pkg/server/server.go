// Package server gRPC-сервер с health-check, keepalive и цепочкой интерсепторов.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"coassign/pkg/config"
	"coassign/pkg/interceptors"
	"coassign/pkg/logger"
	"coassign/pkg/metrics"
	"coassign/pkg/ratelimit"
)

// shutdownTimeout время на GracefulStop до принудительной остановки
const shutdownTimeout = 30 * time.Second

// GRPCServer обёртка над grpc.Server
type GRPCServer struct {
	server      *grpc.Server
	health      *health.Server
	serviceName string
	config      *config.Config
	metrics     *metrics.Metrics
	closers     []func(context.Context) error
}

// Options дополнительные опции сервера
type Options struct {
	// Metrics включает интерсептор метрик и HTTP-сервер /metrics
	Metrics *metrics.Metrics
	// Limiter ограничивает бюджет клиентов на тяжёлых RPC
	Limiter ratelimit.Limiter
	// ExtraServerOptions добавляются после стандартных (тесты: bufconn и т.п.)
	ExtraServerOptions []grpc.ServerOption
}

// New создаёт новый gRPC сервер
func New(cfg *config.Config, opts *Options) (*GRPCServer, error) {
	if opts == nil {
		opts = &Options{}
	}

	serverOpts := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(cfg.GRPC.MaxRecvMsgSize),
		grpc.MaxSendMsgSize(cfg.GRPC.MaxSendMsgSize),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     cfg.GRPC.KeepAlive.MaxConnectionIdle,
			MaxConnectionAge:      cfg.GRPC.KeepAlive.MaxConnectionAge,
			MaxConnectionAgeGrace: cfg.GRPC.KeepAlive.MaxConnectionAgeGrace,
			Time:                  cfg.GRPC.KeepAlive.Time,
			Timeout:               cfg.GRPC.KeepAlive.Timeout,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.ChainUnaryInterceptor(interceptors.UnaryServerInterceptors(&interceptors.ServerConfig{
			ServiceName:   cfg.App.Name,
			EnableTracing: cfg.Tracing.Enabled,
			Metrics:       opts.Metrics,
			Limiter:       opts.Limiter,
		})...),
	}

	if cfg.GRPC.MaxConcurrentConn > 0 {
		serverOpts = append(serverOpts, grpc.MaxConcurrentStreams(uint32(cfg.GRPC.MaxConcurrentConn)))
	}

	if cfg.GRPC.TLS.Enabled {
		creds, err := credentials.NewServerTLSFromFile(cfg.GRPC.TLS.CertFile, cfg.GRPC.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS credentials: %w", err)
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
	}

	serverOpts = append(serverOpts, opts.ExtraServerOptions...)

	s := grpc.NewServer(serverOpts...)

	h := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, h)

	return &GRPCServer{
		server:      s,
		health:      h,
		serviceName: cfg.App.Name,
		config:      cfg,
		metrics:     opts.Metrics,
	}, nil
}

// GetEngine возвращает *grpc.Server для регистрации сервисов
func (s *GRPCServer) GetEngine() *grpc.Server {
	return s.server
}

// OnShutdown регистрирует функцию, вызываемую после остановки сервера
// (закрытие пула БД, кэша, экспортёра трейсов). Вызываются в обратном порядке.
func (s *GRPCServer) OnShutdown(fn func(context.Context) error) {
	s.closers = append(s.closers, fn)
}

// Serve обслуживает соединения на готовом listener до остановки сервера
func (s *GRPCServer) Serve(lis net.Listener) error {
	s.SetServingStatus(grpc_health_v1.HealthCheckResponse_SERVING)
	return s.server.Serve(lis)
}

// Run слушает порт из конфигурации и блокируется до SIGINT/SIGTERM или
// отмены ctx, затем останавливает сервер gracefully
func (s *GRPCServer) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lc := net.ListenConfig{}
	lis, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", s.config.GRPC.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	var metricsSrv *http.Server
	if s.config.Metrics.Enabled && s.metrics != nil {
		metricsSrv = metrics.NewServer(s.config.Metrics.Port, s.config.Metrics.Path)
		go func() {
			logger.Log.Info("Starting metrics server",
				"port", s.config.Metrics.Port,
				"path", s.config.Metrics.Path,
			)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Log.Error("Metrics server failed", "error", err)
			}
		}()
		s.metrics.SetServiceInfo(s.config.App.Version, s.config.App.Environment)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info("Starting gRPC server",
			"service", s.serviceName,
			"port", s.config.GRPC.Port,
			"environment", s.config.App.Environment,
			"version", s.config.App.Version,
		)
		errCh <- s.Serve(lis)
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
		logger.Log.Info("Shutdown requested", "cause", context.Cause(ctx))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.Shutdown(shutdownCtx)
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Log.Warn("Failed to stop metrics server", "error", err)
		}
	}

	return serveErr
}

// Shutdown переводит health в NOT_SERVING, дожидается текущих запросов
// (не дольше ctx) и вызывает зарегистрированные closers
func (s *GRPCServer) Shutdown(ctx context.Context) {
	s.SetServingStatus(grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		logger.Log.Info("Server stopped gracefully")
	case <-ctx.Done():
		logger.Log.Warn("Forcing server stop")
		s.server.Stop()
	}

	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			logger.Log.Warn("Shutdown hook failed", "error", err)
		}
	}
}

// SetServingStatus устанавливает статус сервиса и общий статус сервера
func (s *GRPCServer) SetServingStatus(status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(s.serviceName, status)
}

// Stop останавливает сервер немедленно
func (s *GRPCServer) Stop() {
	s.server.Stop()
}
