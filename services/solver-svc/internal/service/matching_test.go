package service

import (
	"context"
	"errors"
	"net"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"coassign/pkg/api/matchingv1"
	"coassign/pkg/cache"
	"coassign/pkg/client"
	"coassign/pkg/config"
	"coassign/pkg/domain"
	"coassign/pkg/logger"
	"coassign/pkg/metrics"
	"coassign/pkg/ratelimit"
	"coassign/pkg/server"
	"coassign/services/solver-svc/internal/algorithms"
	"coassign/services/solver-svc/internal/repository"
)

func TestMain(m *testing.M) {
	// Инициализируем логгер для тестов
	logger.Init("error")

	os.Exit(m.Run())
}

// =============================================================================
// Test helpers
// =============================================================================

func testSolverConfig() config.SolverConfig {
	return config.SolverConfig{
		ScalingFactor:           algorithms.DefaultScalingFactor,
		GlobalRelabelFreqFactor: algorithms.DefaultGlobalRelabelFreqFactor,
		VerifySolutions:         true,
		MaxEdges:                10_000,
		MaxVertices:             10_000,
		MaxConcurrent:           4,
		Timeout:                 10 * time.Second,
	}
}

func exampleRequest() *matchingv1.SolveRequest {
	g := domain.Example()
	l, r := g.OriginalSizes()
	req := &matchingv1.SolveRequest{
		LSize:               l,
		RSize:               r,
		LeftMultiplicities:  g.LeftMultiplicities(),
		RightMultiplicities: g.RightMultiplicities(),
	}
	for _, e := range g.Edges() {
		req.Edges = append(req.Edges, matchingv1.Edge(e))
	}
	return req
}

func newSolutionCache(t *testing.T) *cache.SolutionCache {
	t.Helper()
	mc := cache.NewMemoryCache(nil)
	t.Cleanup(func() { _ = mc.Close() })
	return cache.NewSolutionCache(mc, time.Minute)
}

func newTestMetrics() *metrics.Metrics {
	return metrics.NewMetrics(prometheus.NewRegistry(), "test", "")
}

func assertCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok, "not a gRPC status: %v", err)
	assert.Equal(t, want, st.Code(), st.Message())
}

// memRunRepository хранит запуски в памяти
type memRunRepository struct {
	mu        sync.Mutex
	runs      map[string]*repository.Run
	seq       int
	createErr error
}

func newMemRunRepository() *memRunRepository {
	return &memRunRepository{runs: make(map[string]*repository.Run)}
}

func (r *memRunRepository) Create(_ context.Context, run *repository.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.createErr != nil {
		return r.createErr
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	r.seq++
	run.CreatedAt = time.Unix(int64(r.seq), 0).UTC()
	stored := *run
	r.runs[run.ID] = &stored
	return nil
}

func (r *memRunRepository) GetByID(_ context.Context, id string) (*repository.Run, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrInvalidRunID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, repository.ErrRunNotFound
	}
	return run, nil
}

func (r *memRunRepository) List(_ context.Context, opts *repository.ListOptions) ([]*repository.Run, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*repository.Run
	for _, run := range r.runs {
		if opts.Filter != nil && opts.Filter.Source != "" && run.Source != opts.Filter.Source {
			continue
		}
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	total := int64(len(out))
	if opts.Offset >= len(out) {
		return nil, total, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, total, nil
}

func (r *memRunRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.runs[id]; !ok {
		return repository.ErrRunNotFound
	}
	delete(r.runs, id)
	return nil
}

func (r *memRunRepository) only(t *testing.T) *repository.Run {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.Len(t, r.runs, 1)
	for _, run := range r.runs {
		return run
	}
	return nil
}

// =============================================================================
// Solve
// =============================================================================

func TestMatchingService_Solve_Example(t *testing.T) {
	svc := NewMatchingService("test", testSolverConfig())

	resp, err := svc.Solve(context.Background(), exampleRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.ExampleOptimum, resp.Value)
	assert.Len(t, resp.Matches, 3)
	assert.Len(t, resp.LeftPotentials, 3)
	assert.Len(t, resp.RightPotentials, 2)
	assert.NotEmpty(t, resp.Phases)
	assert.True(t, resp.Verified)
	assert.False(t, resp.CacheHit)
	assert.Empty(t, resp.RunID)
	assert.Equal(t, cache.GraphHash(domain.Example()), resp.GraphHash)

	// Последняя фаза всегда ε = 1
	assert.Equal(t, int64(1), resp.Phases[len(resp.Phases)-1].Epsilon)
}

func TestMatchingService_Solve_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*matchingv1.SolveRequest)
		code   codes.Code
	}{
		{
			name:   "empty side",
			modify: func(r *matchingv1.SolveRequest) { r.LSize = 0 },
			code:   codes.InvalidArgument,
		},
		{
			name:   "vertex out of range",
			modify: func(r *matchingv1.SolveRequest) { r.Edges[0].Left = 10 },
			code:   codes.InvalidArgument,
		},
		{
			name:   "negative weight",
			modify: func(r *matchingv1.SolveRequest) { r.Edges[0].Weight = -2 },
			code:   codes.InvalidArgument,
		},
		{
			name: "scaling factor too small",
			modify: func(r *matchingv1.SolveRequest) {
				r.Options = &matchingv1.SolveOptions{ScalingFactor: 1}
			},
			code: codes.InvalidArgument,
		},
		{
			name: "too many edges",
			modify: func(r *matchingv1.SolveRequest) {
				for i := 0; i < 20; i++ {
					r.Edges = append(r.Edges, matchingv1.Edge{Left: 0, Right: 0, Weight: 1})
				}
			},
			code: codes.ResourceExhausted,
		},
	}

	cfg := testSolverConfig()
	cfg.MaxEdges = 10
	m := newTestMetrics()
	svc := NewMatchingService("test", cfg, WithMetrics(m))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := exampleRequest()
			tt.modify(req)

			_, err := svc.Solve(context.Background(), req)
			assertCode(t, err, tt.code)
		})
	}

	assert.Equal(t, float64(len(tests)),
		testutil.ToFloat64(m.SolveOperationsTotal.WithLabelValues(matchingv1.SourceSolve, metrics.StatusError)))
}

func TestMatchingService_Solve_ZeroMultiplicities(t *testing.T) {
	svc := NewMatchingService("test", testSolverConfig())

	req := exampleRequest()
	req.LeftMultiplicities = []int64{0, 0, 0}

	resp, err := svc.Solve(context.Background(), req)
	require.NoError(t, err)

	assert.Zero(t, resp.Value)
	assert.Empty(t, resp.Matches)
	assert.True(t, resp.Verified)
}

func TestMatchingService_Solve_SizeLimits(t *testing.T) {
	t.Run("too many vertices", func(t *testing.T) {
		svc := NewMatchingService("test", testSolverConfig())

		req := &matchingv1.SolveRequest{
			LSize: 200_000,
			RSize: 200_001,
			Edges: []matchingv1.Edge{{Left: 0, Right: 0, Weight: 1}},
		}

		_, err := svc.Solve(context.Background(), req)
		assertCode(t, err, codes.ResourceExhausted)
	})

	t.Run("rank buckets over the cap", func(t *testing.T) {
		cfg := testSolverConfig()
		cfg.MaxVertices = 0
		svc := NewMatchingService("test", cfg)

		req := &matchingv1.SolveRequest{
			LSize:   1000,
			RSize:   1000,
			Edges:   []matchingv1.Edge{{Left: 0, Right: 0, Weight: 1}},
			Options: &matchingv1.SolveOptions{ScalingFactor: algorithms.MaxScalingFactor},
		}

		_, err := svc.Solve(context.Background(), req)
		assertCode(t, err, codes.ResourceExhausted)
	})
}

func TestMatchingService_Solve_CacheHit(t *testing.T) {
	m := newTestMetrics()
	svc := NewMatchingService("test", testSolverConfig(),
		WithCache(newSolutionCache(t)),
		WithMetrics(m),
	)
	ctx := context.Background()

	first, err := svc.Solve(ctx, exampleRequest())
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := svc.Solve(ctx, exampleRequest())
	require.NoError(t, err)
	assert.True(t, second.CacheHit)

	assert.Equal(t, first.Value, second.Value)
	assert.Equal(t, first.Matches, second.Matches)
	assert.Equal(t, first.LeftPotentials, second.LeftPotentials)
	assert.Equal(t, first.RightPotentials, second.RightPotentials)
	assert.Equal(t, first.GraphHash, second.GraphHash)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("miss")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.SolveOperationsTotal.WithLabelValues(matchingv1.SourceSolve, metrics.StatusCacheHit)))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.SolveOperationsTotal.WithLabelValues(matchingv1.SourceSolve, metrics.StatusSuccess)))
}

func TestMatchingService_Solve_CacheKeyIncludesOptions(t *testing.T) {
	svc := NewMatchingService("test", testSolverConfig(), WithCache(newSolutionCache(t)))
	ctx := context.Background()

	_, err := svc.Solve(ctx, exampleRequest())
	require.NoError(t, err)

	req := exampleRequest()
	req.Options = &matchingv1.SolveOptions{ScalingFactor: 3}
	resp, err := svc.Solve(ctx, req)
	require.NoError(t, err)

	assert.False(t, resp.CacheHit)
	assert.Equal(t, domain.ExampleOptimum, resp.Value)
}

func TestMatchingService_Solve_SkipCache(t *testing.T) {
	svc := NewMatchingService("test", testSolverConfig(), WithCache(newSolutionCache(t)))
	ctx := context.Background()

	_, err := svc.Solve(ctx, exampleRequest())
	require.NoError(t, err)

	req := exampleRequest()
	req.Options = &matchingv1.SolveOptions{SkipCache: true}
	resp, err := svc.Solve(ctx, req)
	require.NoError(t, err)

	assert.False(t, resp.CacheHit)
}

func TestMatchingService_Solve_UnverifiedCacheEntryIsIgnored(t *testing.T) {
	svc := NewMatchingService("test", testSolverConfig(), WithCache(newSolutionCache(t)))
	ctx := context.Background()

	noVerify := false
	req := exampleRequest()
	req.Options = &matchingv1.SolveOptions{Verify: &noVerify}
	first, err := svc.Solve(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Verified)

	second, err := svc.Solve(ctx, exampleRequest())
	require.NoError(t, err)
	assert.False(t, second.CacheHit)
	assert.True(t, second.Verified)

	third, err := svc.Solve(ctx, exampleRequest())
	require.NoError(t, err)
	assert.True(t, third.CacheHit)
	assert.True(t, third.Verified)
}

func TestMatchingService_Solve_RecordsRun(t *testing.T) {
	repo := newMemRunRepository()
	svc := NewMatchingService("test", testSolverConfig(), WithRepository(repo))

	req := exampleRequest()
	req.Tags = []string{"nightly", "example"}
	ctx := logger.ContextWithRequestID(context.Background(), "req-42")

	resp, err := svc.Solve(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, resp.RunID)

	run := repo.only(t)
	assert.Equal(t, resp.RunID, run.ID)
	assert.Equal(t, "req-42", run.RequestID)
	assert.Equal(t, matchingv1.SourceSolve, run.Source)
	assert.Equal(t, resp.GraphHash, run.GraphHash)
	assert.Equal(t, 3, run.LeftSize)
	assert.Equal(t, 2, run.RightSize)
	assert.Equal(t, 6, run.EdgeCount)
	assert.Equal(t, algorithms.DefaultScalingFactor, run.ScalingFactor)
	assert.Equal(t, domain.ExampleOptimum, run.Value)
	assert.Equal(t, 3, run.MatchedPairs)
	assert.True(t, run.Verified)
	assert.False(t, run.CacheHit)
	assert.Equal(t, []string{"nightly", "example"}, run.Tags)
	assert.Len(t, run.Phases, len(resp.Phases))
}

func TestMatchingService_Solve_RunRecordFailureKeepsResult(t *testing.T) {
	repo := newMemRunRepository()
	repo.createErr = errors.New("connection refused")
	svc := NewMatchingService("test", testSolverConfig(), WithRepository(repo))

	resp, err := svc.Solve(context.Background(), exampleRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.ExampleOptimum, resp.Value)
	assert.Empty(t, resp.RunID)
}

func TestMatchingService_Solve_Concurrent(t *testing.T) {
	cfg := testSolverConfig()
	cfg.MaxConcurrent = 2
	svc := NewMatchingService("test", cfg)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	values := make([]int64, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := svc.Solve(context.Background(), exampleRequest())
			errs[i] = err
			if err == nil {
				values[i] = resp.Value
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, domain.ExampleOptimum, values[i])
	}
}

func TestMatchingService_Solve_CanceledWhileWaitingForSlot(t *testing.T) {
	cfg := testSolverConfig()
	cfg.MaxConcurrent = 1
	svc := NewMatchingService("test", cfg)

	// Занимаем единственный слот пула
	require.NoError(t, svc.pool.Acquire(context.Background()))
	defer svc.pool.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Solve(ctx, exampleRequest())
	assertCode(t, err, codes.Canceled)
}

// =============================================================================
// GenerateAndSolve
// =============================================================================

func generateRequest(seed int64) *matchingv1.GenerateRequest {
	return &matchingv1.GenerateRequest{
		LSize:             matchingv1.Range{Min: 1, Max: 12},
		RSize:             matchingv1.Range{Min: 1, Max: 12},
		LeftMultiplicity:  matchingv1.Range{Min: 0, Max: 4},
		RightMultiplicity: matchingv1.Range{Min: 1, Max: 4},
		Weight:            matchingv1.Range{Min: 1, Max: 50},
		Density:           0.5,
		Seed:              seed,
	}
}

func TestMatchingService_GenerateAndSolve_Deterministic(t *testing.T) {
	svc := NewMatchingService("test", testSolverConfig())
	ctx := context.Background()

	first, err := svc.GenerateAndSolve(ctx, generateRequest(17))
	require.NoError(t, err)
	second, err := svc.GenerateAndSolve(ctx, generateRequest(17))
	require.NoError(t, err)

	assert.Equal(t, first.GraphHash, second.GraphHash)
	assert.Equal(t, first.Value, second.Value)
	assert.Equal(t, first.Matches, second.Matches)
	assert.True(t, first.Verified)
}

func TestMatchingService_GenerateAndSolve_ManySeeds(t *testing.T) {
	svc := NewMatchingService("test", testSolverConfig())
	ctx := context.Background()

	for seed := int64(0); seed < 30; seed++ {
		for _, density := range []float64{0.1, 0.5, 1.0} {
			req := generateRequest(seed)
			req.Density = density

			resp, err := svc.GenerateAndSolve(ctx, req)
			require.NoError(t, err, "seed=%d density=%v", seed, density)
			assert.True(t, resp.Verified, "seed=%d density=%v", seed, density)
		}
	}
}

func TestMatchingService_GenerateAndSolve_RecordsSource(t *testing.T) {
	repo := newMemRunRepository()
	svc := NewMatchingService("test", testSolverConfig(), WithRepository(repo))

	req := generateRequest(3)
	req.Tags = []string{"random"}
	resp, err := svc.GenerateAndSolve(context.Background(), req)
	require.NoError(t, err)

	run := repo.only(t)
	assert.Equal(t, resp.RunID, run.ID)
	assert.Equal(t, matchingv1.SourceGenerate, run.Source)
	assert.Equal(t, []string{"random"}, run.Tags)
}

func TestMatchingService_GenerateAndSolve_Errors(t *testing.T) {
	cfg := testSolverConfig()
	cfg.MaxEdges = 5
	svc := NewMatchingService("test", cfg)

	tests := []struct {
		name   string
		modify func(*matchingv1.GenerateRequest)
		code   codes.Code
	}{
		{
			name:   "density out of range",
			modify: func(r *matchingv1.GenerateRequest) { r.Density = 1.5 },
			code:   codes.InvalidArgument,
		},
		{
			name:   "empty range",
			modify: func(r *matchingv1.GenerateRequest) { r.Weight = matchingv1.Range{Min: 5, Max: 5} },
			code:   codes.InvalidArgument,
		},
		{
			name:   "empty side",
			modify: func(r *matchingv1.GenerateRequest) { r.LSize = matchingv1.Range{Min: 0, Max: 1} },
			code:   codes.InvalidArgument,
		},
		{
			name: "too many edges",
			modify: func(r *matchingv1.GenerateRequest) {
				r.LSize = matchingv1.Range{Min: 10, Max: 11}
				r.RSize = matchingv1.Range{Min: 10, Max: 11}
				r.Density = 1
			},
			code: codes.ResourceExhausted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := generateRequest(1)
			tt.modify(req)

			_, err := svc.GenerateAndSolve(context.Background(), req)
			assertCode(t, err, tt.code)
		})
	}
}

func TestMatchingService_GenerateAndSolve_RejectsBeforeGenerating(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*matchingv1.GenerateRequest)
	}{
		{
			name: "side range over the vertex limit",
			modify: func(r *matchingv1.GenerateRequest) {
				r.LSize = matchingv1.Range{Min: 1, Max: 1 << 30}
				r.Density = 0
			},
		},
		{
			name: "dense worst case over the edge limit",
			modify: func(r *matchingv1.GenerateRequest) {
				r.LSize = matchingv1.Range{Min: 1, Max: 4001}
				r.RSize = matchingv1.Range{Min: 1, Max: 4001}
				r.Density = 0.01
			},
		},
	}

	m := newTestMetrics()
	svc := NewMatchingService("test", testSolverConfig(), WithMetrics(m))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := generateRequest(1)
			tt.modify(req)

			_, err := svc.GenerateAndSolve(context.Background(), req)
			assertCode(t, err, codes.ResourceExhausted)
		})
	}

	assert.Equal(t, float64(len(tests)),
		testutil.ToFloat64(m.SolveOperationsTotal.WithLabelValues(matchingv1.SourceGenerate, metrics.StatusError)))
}

// =============================================================================
// Run history
// =============================================================================

func TestMatchingService_History_Disabled(t *testing.T) {
	svc := NewMatchingService("test", testSolverConfig())
	ctx := context.Background()

	_, err := svc.GetRun(ctx, &matchingv1.GetRunRequest{RunID: uuid.NewString()})
	assertCode(t, err, codes.Unimplemented)

	_, err = svc.ListRuns(ctx, &matchingv1.ListRunsRequest{})
	assertCode(t, err, codes.Unimplemented)
}

func TestMatchingService_GetRun(t *testing.T) {
	repo := newMemRunRepository()
	svc := NewMatchingService("test", testSolverConfig(), WithRepository(repo))
	ctx := context.Background()

	resp, err := svc.Solve(ctx, exampleRequest())
	require.NoError(t, err)

	t.Run("found", func(t *testing.T) {
		rec, err := svc.GetRun(ctx, &matchingv1.GetRunRequest{RunID: resp.RunID})
		require.NoError(t, err)
		assert.Equal(t, resp.RunID, rec.RunID)
		assert.Equal(t, domain.ExampleOptimum, rec.Value)
		assert.Equal(t, 3, rec.LSize)
		assert.Equal(t, 2, rec.RSize)
		assert.Len(t, rec.Phases, len(resp.Phases))
	})

	t.Run("not found", func(t *testing.T) {
		_, err := svc.GetRun(ctx, &matchingv1.GetRunRequest{RunID: uuid.NewString()})
		assertCode(t, err, codes.NotFound)
	})

	t.Run("invalid id", func(t *testing.T) {
		_, err := svc.GetRun(ctx, &matchingv1.GetRunRequest{RunID: "not-a-uuid"})
		assertCode(t, err, codes.InvalidArgument)
	})
}

func TestMatchingService_ListRuns(t *testing.T) {
	repo := newMemRunRepository()
	svc := NewMatchingService("test", testSolverConfig(), WithRepository(repo))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Solve(ctx, exampleRequest())
		require.NoError(t, err)
	}
	gen, err := svc.GenerateAndSolve(ctx, generateRequest(5))
	require.NoError(t, err)

	all, err := svc.ListRuns(ctx, &matchingv1.ListRunsRequest{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), all.Total)
	require.Len(t, all.Runs, 2)
	assert.Equal(t, gen.RunID, all.Runs[0].RunID, "newest first")

	generated, err := svc.ListRuns(ctx, &matchingv1.ListRunsRequest{Source: matchingv1.SourceGenerate})
	require.NoError(t, err)
	assert.Equal(t, int64(1), generated.Total)
	require.Len(t, generated.Runs, 1)
	assert.Equal(t, matchingv1.SourceGenerate, generated.Runs[0].Source)
}

// =============================================================================
// gRPC end to end
// =============================================================================

func startServer(t *testing.T, svc *MatchingService, m *metrics.Metrics) *client.MatchingClient {
	t.Helper()
	return startServerWithOptions(t, svc, &server.Options{Metrics: m}, "")
}

func startServerWithOptions(t *testing.T, svc *MatchingService, opts *server.Options, clientID string) *client.MatchingClient {
	t.Helper()

	cfg := &config.Config{
		App: config.AppConfig{Name: "solver-svc"},
		GRPC: config.GRPCConfig{
			MaxRecvMsgSize: 4 << 20,
			MaxSendMsgSize: 4 << 20,
		},
	}
	srv, err := server.New(cfg, opts)
	require.NoError(t, err)
	matchingv1.RegisterMatchingServiceServer(srv.GetEngine(), svc)

	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	ccfg := client.DefaultClientConfig()
	ccfg.Address = "passthrough:///bufnet"
	ccfg.Retry.InitialBackoff = time.Millisecond
	ccfg.ClientID = clientID
	ccfg.DialOptions = []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	}
	c, err := client.NewMatchingClient(ccfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c
}

func TestMatchingService_GRPC_Example(t *testing.T) {
	repo := newMemRunRepository()
	m := newTestMetrics()
	svc := NewMatchingService("test", testSolverConfig(),
		WithCache(newSolutionCache(t)),
		WithRepository(repo),
		WithMetrics(m),
	)
	c := startServer(t, svc, m)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ctx = logger.ContextWithRequestID(ctx, "smoke-1")

	resp, err := c.Solve(ctx, domain.Example(), nil, "smoke")
	require.NoError(t, err)
	assert.Equal(t, domain.ExampleOptimum, resp.Value)
	assert.True(t, resp.Verified)
	require.NotEmpty(t, resp.RunID)

	rec, err := c.GetRun(ctx, resp.RunID)
	require.NoError(t, err)
	assert.Equal(t, "smoke-1", rec.RequestID)
	assert.Equal(t, []string{"smoke"}, rec.Tags)

	again, err := c.Solve(ctx, domain.Example(), nil)
	require.NoError(t, err)
	assert.True(t, again.CacheHit)

	list, err := c.ListRuns(ctx, &matchingv1.ListRunsRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), list.Total)

	assert.Equal(t, float64(1), testutil.ToFloat64(
		m.GRPCRequestsTotal.WithLabelValues(matchingv1.MatchingService_GetRun_FullMethodName, codes.OK.String())))
}

func TestMatchingService_GRPC_Errors(t *testing.T) {
	c := startServer(t, NewMatchingService("test", testSolverConfig()), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := c.GetRun(ctx, uuid.NewString())
	assertCode(t, err, codes.Unimplemented)

	_, err = c.ListRuns(ctx, &matchingv1.ListRunsRequest{Limit: -1})
	assertCode(t, err, codes.InvalidArgument)

	p := domain.DefaultRandomParams()
	p.Density = 2
	_, err = c.GenerateAndSolve(ctx, p, 1, nil)
	assertCode(t, err, codes.InvalidArgument)
}

func TestMatchingService_GRPC_RateLimit(t *testing.T) {
	m := newTestMetrics()
	svc := NewMatchingService("test", testSolverConfig(), WithMetrics(m))

	rl := ratelimit.DefaultConfig()
	rl.Limit = 2
	rl.Burst = 0
	rl.Window = time.Hour
	limiter := ratelimit.NewMemoryLimiter(rl)
	t.Cleanup(func() { _ = limiter.Close() })

	opts := &server.Options{Metrics: m, Limiter: limiter}
	alice := startServerWithOptions(t, svc, opts, "alice")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for i := 0; i < 2; i++ {
		_, err := alice.Solve(ctx, domain.Example(), nil)
		require.NoError(t, err, "request %d", i)
	}

	_, err := alice.Solve(ctx, domain.Example(), nil)
	assertCode(t, err, codes.ResourceExhausted)

	// История не лимитируется
	_, err = alice.ListRuns(ctx, &matchingv1.ListRunsRequest{})
	assertCode(t, err, codes.Unimplemented)

	bob := startServerWithOptions(t, svc, opts, "bob")
	_, err = bob.Solve(ctx, domain.Example(), nil)
	require.NoError(t, err)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.RateLimitDecisions.WithLabelValues("Solve", "allowed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitDecisions.WithLabelValues("Solve", "rejected")))
}
