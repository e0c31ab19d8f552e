// Package main is the entry point for the solver-svc microservice.
//
// solver-svc computes maximum-weight bipartite b-matchings with the
// cost-scaling push-relabel solver and returns each matching together with
// the vertex potentials that certify its optimality.
//
// # Service Overview
//
// The service exposes coassign.matching.v1.MatchingService over gRPC
// (JSON codec, content-subtype "json"):
//   - Solve: solve an explicit graph
//   - GenerateAndSolve: solve a seeded random graph (benchmarks, smoke tests)
//   - GetRun / ListRuns: run history, available when the database is enabled
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────┐
//	│                     gRPC Transport Layer                    │
//	│  Interceptors: recovery, request id, tracing, metrics,      │
//	│  logging, validation, client budget                         │
//	├─────────────────────────────────────────────────────────────┤
//	│                      Service Layer                          │
//	│  (internal/service/matching.go - MatchingService)           │
//	│  - Solution cache lookup and store                          │
//	│  - Certificate verification                                 │
//	│  - Run history                                              │
//	├─────────────────────────────────────────────────────────────┤
//	│                      Algorithm Layer                        │
//	│  (internal/algorithms/*.go)                                 │
//	│  - ε-scaling phases, price refinement                       │
//	│  - Global relabel, blocking flow                            │
//	│  - Potential tightening and decoding                        │
//	├─────────────────────────────────────────────────────────────┤
//	│                       Graph Layer                           │
//	│  (internal/graph/*.go)                                      │
//	│  - Residual network with root vertex                        │
//	│  - Rank buckets, array pool                                 │
//	└─────────────────────────────────────────────────────────────┘
//
// # Configuration
//
// Configuration is loaded with the following priority (highest to lowest):
//  1. Environment variables (prefix: COASSIGN_)
//  2. Config files (config.yaml, config/config.yaml, /etc/coassign/config.yaml)
//  3. Default values
//
// Solver options (environment variable format):
//
//	COASSIGN_SOLVER_SCALING_FACTOR             - ε divisor between phases (default: 8)
//	COASSIGN_SOLVER_GLOBAL_RELABEL_FREQ_FACTOR - relabel throttle, <= 0 disables (default: 0.6)
//	COASSIGN_SOLVER_PRICE_REFINE_LIMIT         - price refinement rounds, 0 = unlimited
//	COASSIGN_SOLVER_VERIFY_SOLUTIONS           - check the certificate of every result
//	COASSIGN_SOLVER_MAX_EDGES                  - reject larger graphs with RESOURCE_EXHAUSTED
//	COASSIGN_SOLVER_MAX_CONCURRENT             - concurrent solves
//	COASSIGN_SOLVER_TIMEOUT                    - wait limit for a free solver slot
//
// Optional backends:
//
//	COASSIGN_CACHE_ENABLED=true     COASSIGN_CACHE_DRIVER=memory|redis
//	COASSIGN_DATABASE_ENABLED=true  COASSIGN_DATABASE_AUTO_MIGRATE=true
//	COASSIGN_TRACING_ENABLED=true   COASSIGN_TRACING_ENDPOINT=localhost:4317
//
// Client budget (Solve and GenerateAndSolve cost 1 unit per started 1000 edges):
//
//	COASSIGN_RATELIMIT_ENABLED=true  COASSIGN_RATELIMIT_BACKEND=memory|redis
//	COASSIGN_RATELIMIT_LIMIT=600     COASSIGN_RATELIMIT_BURST=100
//	COASSIGN_RATELIMIT_WINDOW=1m
//
// Clients are told apart by the x-client-id header, otherwise by peer address.
// The redis backend shares the cache connection settings.
//
// # Graceful Shutdown
//
// On SIGINT/SIGTERM the health status goes NOT_SERVING, in-flight requests
// finish (up to 30 seconds), then the database pool, the rate limiter, the
// cache and the trace exporter are closed in reverse registration order.
package main

import (
	"context"
	"log"
	"time"

	"coassign/migrations"
	"coassign/pkg/api/matchingv1"
	"coassign/pkg/cache"
	"coassign/pkg/config"
	"coassign/pkg/database"
	"coassign/pkg/logger"
	"coassign/pkg/metrics"
	"coassign/pkg/ratelimit"
	"coassign/pkg/server"
	"coassign/pkg/telemetry"
	"coassign/services/solver-svc/internal/repository"
	"coassign/services/solver-svc/internal/service"
)

func main() {
	// =========================================================================
	// Configuration Loading
	// =========================================================================
	cfg, err := config.LoadWithServiceDefaults("solver-svc", 50054)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// =========================================================================
	// Logger Initialization
	// =========================================================================
	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	ctx := context.Background()
	var closers []func(context.Context) error

	// =========================================================================
	// Telemetry Initialization (OpenTelemetry)
	// =========================================================================
	//
	// Spans cover the RPC, the cache lookup, the solve and the history write.
	if cfg.Tracing.Enabled {
		tp, err := telemetry.Init(ctx, telemetry.Config{
			Enabled:     cfg.Tracing.Enabled,
			Endpoint:    cfg.Tracing.Endpoint,
			ServiceName: cfg.App.Name,
			Version:     cfg.App.Version,
			Environment: cfg.App.Environment,
			SampleRate:  cfg.Tracing.SampleRate,
		})
		if err != nil {
			logger.Log.Warn("Failed to init telemetry", "error", err)
		} else {
			closers = append(closers, tp.Shutdown)
			logger.Log.Info("Telemetry initialized", "endpoint", cfg.Tracing.Endpoint)
		}
	}

	// =========================================================================
	// Metrics Initialization (Prometheus)
	// =========================================================================
	//
	// The /metrics HTTP server is started by server.Run on cfg.Metrics.Port.
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.InitMetrics(cfg.Metrics.Namespace, cfg.App.Name)
	}

	opts := []service.Option{service.WithMetrics(m)}

	// =========================================================================
	// Cache Initialization
	// =========================================================================
	//
	// Cache key: canonical graph hash + solver options that change the result.
	// The service keeps working without a cache.
	if cfg.Cache.Enabled {
		baseCache, err := cache.New(cache.FromConfig(&cfg.Cache))
		if err != nil {
			logger.Log.Warn("Failed to create cache, continuing without cache", "error", err)
		} else {
			solutionCache := cache.NewSolutionCache(baseCache, cfg.Cache.DefaultTTL)
			opts = append(opts, service.WithCache(solutionCache))
			if m != nil {
				collector := metrics.NewCacheCollector(cfg.Metrics.Namespace, cfg.App.Name, solutionCache)
				if err := metrics.Register(collector); err != nil {
					logger.Log.Warn("Failed to register cache collector", "error", err)
				}
			}
			closers = append(closers, func(context.Context) error { return baseCache.Close() })
			logger.Log.Info("Solution cache initialized",
				"driver", cfg.Cache.Driver,
				"ttl", cfg.Cache.DefaultTTL,
			)
		}
	}

	// =========================================================================
	// Client Budget
	// =========================================================================
	//
	// Fails open: a limiter that cannot be created is logged and skipped.
	var limiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		l, err := ratelimit.New(ratelimit.FromConfig(&cfg.RateLimit, &cfg.Cache))
		if err != nil {
			logger.Log.Warn("Failed to create rate limiter, continuing without limits", "error", err)
		} else {
			limiter = l
			closers = append(closers, func(context.Context) error { return l.Close() })
			logger.Log.Info("Client budget enabled",
				"backend", cfg.RateLimit.Backend,
				"limit", cfg.RateLimit.Limit,
				"burst", cfg.RateLimit.Burst,
				"window", cfg.RateLimit.Window,
			)
		}
	}

	// =========================================================================
	// Run History (PostgreSQL)
	// =========================================================================
	//
	// Without a database GetRun and ListRuns answer UNIMPLEMENTED.
	if cfg.Database.Enabled {
		db, err := database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			logger.Fatal("failed to connect to database", "error", err)
		}
		closers = append(closers, func(context.Context) error { db.Close(); return nil })

		migrateCtx, cancel := context.WithTimeout(ctx, time.Minute)
		err = database.RunMigrations(migrateCtx, db.Pool(), &cfg.Database, migrations.PostgresMigrations, "postgres")
		cancel()
		if err != nil {
			logger.Fatal("failed to apply migrations", "error", err)
		}

		opts = append(opts, service.WithRepository(repository.NewPostgresRunRepository(db)))
		logger.Log.Info("Run history enabled",
			"host", cfg.Database.Host,
			"database", cfg.Database.Database,
		)
	}

	// =========================================================================
	// gRPC Server
	// =========================================================================
	srv, err := server.New(cfg, &server.Options{Metrics: m, Limiter: limiter})
	if err != nil {
		logger.Fatal("failed to create server", "error", err)
	}
	for _, c := range closers {
		srv.OnShutdown(c)
	}

	matchingService := service.NewMatchingService(cfg.App.Version, cfg.Solver, opts...)
	matchingv1.RegisterMatchingServiceServer(srv.GetEngine(), matchingService)

	logger.Info("Starting matching service",
		"port", cfg.GRPC.Port,
		"environment", cfg.App.Environment,
		"version", cfg.App.Version,
		"scaling_factor", cfg.Solver.ScalingFactor,
		"cache_enabled", cfg.Cache.Enabled,
		"history_enabled", cfg.Database.Enabled,
		"ratelimit_enabled", limiter != nil,
	)

	// =========================================================================
	// Run Server (Blocking)
	// =========================================================================
	if err := srv.Run(ctx); err != nil {
		logger.Fatal("server failed", "error", err)
	}
}
