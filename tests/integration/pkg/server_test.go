//go:build integration

package pkg_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	"coassign/pkg/api/matchingv1"
	"coassign/pkg/client"
	"coassign/pkg/config"
	"coassign/pkg/domain"
	"coassign/pkg/server"
	solversvc "coassign/services/solver-svc"
	"coassign/tests/integration/testutil"
)

func serverConfig(name string, port int) *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name:        name,
			Version:     "1.0.0",
			Environment: "test",
		},
		GRPC: config.GRPCConfig{
			Port:           port,
			MaxRecvMsgSize: 4 * 1024 * 1024,
			MaxSendMsgSize: 4 * 1024 * 1024,
			KeepAlive: config.KeepAliveConfig{
				MaxConnectionIdle: 5 * time.Minute,
				Time:              1 * time.Minute,
				Timeout:           20 * time.Second,
			},
		},
		Metrics: config.MetricsConfig{Enabled: false},
		Tracing: config.TracingConfig{Enabled: false},
	}
}

// startServer запускает сервер на свободном порту и возвращает функцию остановки
func startServer(t *testing.T, cfg *config.Config) (*server.GRPCServer, func() error) {
	t.Helper()

	srv, err := server.New(cfg, nil)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	matchingv1.RegisterMatchingServiceServer(srv.GetEngine(), solversvc.NewBenchmarkServer())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	// Ждём, пока сервер начнёт слушать порт
	time.Sleep(200 * time.Millisecond)

	return srv, func() error {
		cancel()
		select {
		case err := <-done:
			return err
		case <-time.After(10 * time.Second):
			return fmt.Errorf("server did not stop")
		}
	}
}

func TestGRPCServer_StartStop(t *testing.T) {
	testutil.SkipIfNotIntegration(t)

	port := testutil.FreePort(t)
	srv, stop := startServer(t, serverConfig("test-server", port))

	closed := false
	srv.OnShutdown(func(context.Context) error {
		closed = true
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := grpc.NewClient(
		fmt.Sprintf("localhost:%d", port),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	defer conn.Close()

	healthClient := grpc_health_v1.NewHealthClient(conn)
	resp, err := healthClient.Check(ctx, &grpc_health_v1.HealthCheckRequest{
		Service: "test-server",
	})
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if resp.Status != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", resp.Status)
	}

	if err := stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if !closed {
		t.Error("shutdown hook not called")
	}
}

func TestGRPCServer_SolveOverTCP(t *testing.T) {
	testutil.SkipIfNotIntegration(t)

	port := testutil.FreePort(t)
	_, stop := startServer(t, serverConfig("solver-it", port))
	defer func() { _ = stop() }()

	cfg := client.DefaultClientConfig()
	cfg.Address = fmt.Sprintf("localhost:%d", port)
	c, err := client.NewMatchingClient(cfg)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	defer c.Close()

	ctx, cancel := testutil.Context(t)
	defer cancel()

	resp, err := c.Solve(ctx, domain.Example(), nil)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if resp.Value != domain.ExampleOptimum {
		t.Errorf("value = %d, want %d", resp.Value, domain.ExampleOptimum)
	}
	if !resp.Verified {
		t.Error("solution not verified")
	}
}
