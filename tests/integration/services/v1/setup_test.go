package v1_test

import (
	"testing"
	"time"

	"coassign/pkg/client"
	"coassign/tests/integration/testutil"
)

// Service addresses (environment variables)
const (
	EnvSolverAddr     = "SOLVER_SVC_ADDR"
	DefaultSolverAddr = "localhost:50054"
)

// SetupSolverClient создаёт клиент запущенного solver-svc
func SetupSolverClient(t *testing.T) *client.MatchingClient {
	t.Helper()
	addr := testutil.RequireService(t, EnvSolverAddr, DefaultSolverAddr)

	cfg := client.DefaultClientConfig()
	cfg.Address = addr
	cfg.Timeout = 30 * time.Second

	c, err := client.NewMatchingClient(cfg)
	if err != nil {
		t.Fatalf("failed to create client for %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}
