// Package algorithms implements the cost-scaling solver for the maximum-weight
// bipartite b-matching problem with a certified dual.
//
// The solver works on the root-augmented residual network from package graph
// and runs phases of decreasing ε. Each phase tries price refinement first,
// and otherwise alternates global relabeling with a DFS blocking flow until
// no vertex has positive excess. At ε = 1 the pseudoflow is a flow, the
// potentials are tightened with Bellman–Ford and both are decoded into a
// domain.Solution.
//
// # Thread Safety
//
// A single solve is synchronous and owns all of its scratch state. Solve may
// be called concurrently on the same graph: the input graph is never
// modified. SolverPool bounds the number of concurrent solves.
//
// # Failure Model
//
// Bad parameters are reported as *apperror.Error. A graph with an empty side
// and a broken internal invariant are programming errors and panic, the
// latter with *InvariantError.
//
// # Example Usage
//
//	g := domain.Example()
//	res, err := algorithms.Solve(g, algorithms.DefaultParams())
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Solution.Value(), res.Solution.Matches())
package algorithms

import (
	"context"
	"math"
	"sync"
	"time"

	"coassign/pkg/apperror"
	"coassign/pkg/domain"
	"coassign/services/solver-svc/internal/graph"
)

// =============================================================================
// Defaults
// =============================================================================

const (
	// DefaultScalingFactor divides ε between phases.
	DefaultScalingFactor int64 = 8

	// DefaultGlobalRelabelFreqFactor bounds DFS relabels between two global
	// relabels to factor*|V|.
	DefaultGlobalRelabelFreqFactor = 0.6

	// MaxScalingFactor keeps scaled weights within int64.
	MaxScalingFactor int64 = 1 << 16

	// MaxRankBuckets caps the rank bucket array, (1+sf)*(2*L+2) entries
	// where L is the smaller side.
	MaxRankBuckets int64 = 1 << 25
)

// =============================================================================
// Parameters
// =============================================================================

// Params configures a solve.
//
// Use DefaultParams and chain With* calls:
//
//	p := algorithms.DefaultParams().
//	    WithScalingFactor(4).
//	    WithCheckIntermediateStatus(true)
type Params struct {
	// ScalingFactor is the ε divisor between phases. Must be > 1.
	// Default: 8
	ScalingFactor int64

	// CheckIntermediateStatus verifies the ε-optimality and bookkeeping
	// invariants after every step and logs phase traces. O(V+E) per check.
	// Default: false
	CheckIntermediateStatus bool

	// GlobalRelabelFreqFactor returns the blocking flow to global
	// relabeling once the DFS has relabeled more than factor*|V| vertices.
	// Zero or negative disables the bound.
	// Default: 0.6
	GlobalRelabelFreqFactor float64

	// PriceRefineLimit caps the number of price refinement rounds per phase.
	// Zero means unlimited.
	// Default: 0
	PriceRefineLimit int

	// Recorder receives phase timings and counters. nil discards them.
	Recorder Recorder
}

// DefaultParams returns the parameters used when nothing is configured.
func DefaultParams() Params {
	return Params{
		ScalingFactor:           DefaultScalingFactor,
		GlobalRelabelFreqFactor: DefaultGlobalRelabelFreqFactor,
	}
}

// WithScalingFactor sets the ε divisor.
func (p Params) WithScalingFactor(sf int64) Params {
	p.ScalingFactor = sf
	return p
}

// WithCheckIntermediateStatus toggles the debug invariant checks.
func (p Params) WithCheckIntermediateStatus(check bool) Params {
	p.CheckIntermediateStatus = check
	return p
}

// WithGlobalRelabelFreqFactor sets the relabel budget between global relabels.
func (p Params) WithGlobalRelabelFreqFactor(factor float64) Params {
	p.GlobalRelabelFreqFactor = factor
	return p
}

// WithPriceRefineLimit caps price refinement rounds per phase.
func (p Params) WithPriceRefineLimit(limit int) Params {
	p.PriceRefineLimit = limit
	return p
}

// WithRecorder sets the instrumentation sink.
func (p Params) WithRecorder(r Recorder) Params {
	p.Recorder = r
	return p
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if p.ScalingFactor <= 1 || p.ScalingFactor > MaxScalingFactor {
		return apperror.NewWithField(apperror.CodeInvalidScalingFactor,
			"scaling factor must be greater than 1", "scaling_factor").
			WithDetails("scaling_factor", p.ScalingFactor).
			WithDetails("max", MaxScalingFactor)
	}
	if math.IsNaN(p.GlobalRelabelFreqFactor) || math.IsInf(p.GlobalRelabelFreqFactor, 0) {
		return apperror.NewWithField(apperror.CodeInvalidParams,
			"global relabel frequency factor must be finite", "global_relabel_freq_factor")
	}
	if p.PriceRefineLimit < 0 {
		return apperror.NewWithField(apperror.CodeInvalidParams,
			"price refine limit must be non-negative", "price_refine_limit").
			WithDetails("price_refine_limit", p.PriceRefineLimit)
	}
	return nil
}

// RankBucketCount returns the size of the rank bucket array a solve of a
// graph with lSize left vertices allocates.
func RankBucketCount(lSize int, scalingFactor int64) int64 {
	return (1 + scalingFactor) * (2*int64(lSize) + 2)
}

func checkRankBuckets(lSize int, scalingFactor int64) error {
	if n := RankBucketCount(lSize, scalingFactor); n > MaxRankBuckets {
		return apperror.New(apperror.CodeGraphTooLarge,
			"graph is too large for the scaling factor").
			WithDetails("rank_buckets", n).
			WithDetails("max", MaxRankBuckets).
			WithDetails("scaling_factor", scalingFactor)
	}
	return nil
}

func (p Params) recorder() Recorder {
	if p.Recorder == nil {
		return noopRecorder{}
	}
	return p.Recorder
}

// =============================================================================
// Result
// =============================================================================

// PhaseStats describes one ε phase.
type PhaseStats struct {
	// Epsilon is the phase ε in scaled units.
	Epsilon int64

	// PriceRefined is true when price refinement alone made the network
	// ε-optimal and the phase did no flow work.
	PriceRefined bool

	// GlobalRelabels is the number of global relabel rounds.
	GlobalRelabels int

	// Relabels is the number of DFS relabels.
	Relabels int64

	// Pushes is the number of arcs the pulled paths went through.
	Pushes int64

	// Duration is the wall-clock time of the phase.
	Duration time.Duration
}

// Result is the outcome of a solve.
type Result struct {
	// Solution is the optimal matching with its dual certificate.
	Solution *domain.Solution

	// Phases lists the ε phases in execution order.
	Phases []PhaseStats

	// Duration is the wall-clock time of the whole solve.
	Duration time.Duration
}

// TotalPushes sums pushes over all phases.
func (r *Result) TotalPushes() int64 {
	var total int64
	for _, ph := range r.Phases {
		total += ph.Pushes
	}
	return total
}

// TotalRelabels sums DFS relabels over all phases.
func (r *Result) TotalRelabels() int64 {
	var total int64
	for _, ph := range r.Phases {
		total += ph.Relabels
	}
	return total
}

// =============================================================================
// Main Solver Entry Point
// =============================================================================

// Solve computes a maximum-weight b-matching of g and its dual certificate.
//
// The graph is not modified. Params are validated first; an invalid
// configuration returns an *apperror.Error and no work is done, as does a
// graph whose rank bucket array would exceed MaxRankBuckets.
//
// # Panics
//
//   - g has an empty side (LSize == 0 or RSize == 0).
//   - An internal invariant breaks (*InvariantError).
func Solve(g *domain.BipartiteGraph, p Params) (*Result, error) {
	return solveWith(nil, g, p)
}

func solveWith(pool *graph.Pool, g *domain.BipartiteGraph, p Params) (*Result, error) {
	if g == nil {
		return nil, apperror.ErrNilGraph
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if g.LSize == 0 || g.RSize == 0 {
		panic(apperror.ErrEmptySide)
	}
	if err := checkRankBuckets(g.LSize, p.ScalingFactor); err != nil {
		return nil, err
	}

	start := time.Now()
	var net *graph.Network
	if pool != nil {
		net = graph.NewPooledNetwork(pool, g, p.ScalingFactor)
		defer net.Release()
	} else {
		net = graph.NewNetwork(g, p.ScalingFactor)
	}

	s := newSolver(net, p)
	s.run()
	sol := s.decode()

	return &Result{
		Solution: sol,
		Phases:   s.phases,
		Duration: time.Since(start),
	}, nil
}

// =============================================================================
// Solver Pool
// =============================================================================

// SolverPool bounds the number of concurrent solves and reuses network
// arrays between them.
//
// # Example
//
//	pool := algorithms.NewSolverPool(runtime.NumCPU())
//	results := pool.BatchSolve(ctx, tasks)
type SolverPool struct {
	pool    *graph.Pool
	workers chan struct{}
}

// NewSolverPool creates a pool. If maxConcurrency <= 0, it defaults to 10.
func NewSolverPool(maxConcurrency int) *SolverPool {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &SolverPool{
		pool:    graph.GetPool(),
		workers: make(chan struct{}, maxConcurrency),
	}
}

// Acquire obtains a worker slot, blocking until one is free or ctx is done.
func (sp *SolverPool) Acquire(ctx context.Context) error {
	select {
	case sp.workers <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a worker slot. Call it exactly once per successful Acquire.
func (sp *SolverPool) Release() {
	<-sp.workers
}

// SolvePooled runs Solve inside a worker slot with pooled network arrays.
func (sp *SolverPool) SolvePooled(ctx context.Context, g *domain.BipartiteGraph, p Params) (*Result, error) {
	if err := sp.Acquire(ctx); err != nil {
		return nil, err
	}
	defer sp.Release()
	return solveWith(sp.pool, g, p)
}

// BatchTask is one input of BatchSolve.
type BatchTask struct {
	// TaskID is a caller-defined identifier for correlating results.
	TaskID string

	Graph  *domain.BipartiteGraph
	Params Params
}

// BatchResult is the outcome of one BatchTask.
type BatchResult struct {
	TaskID string
	Result *Result
	Error  error
}

// BatchSolve solves the tasks in parallel up to the pool's concurrency limit.
// Results are in task order. A panic in one task is reported as its error
// and does not affect the others.
func (sp *SolverPool) BatchSolve(ctx context.Context, tasks []BatchTask) []BatchResult {
	results := make([]BatchResult, len(tasks))
	var wg sync.WaitGroup

	for i, task := range tasks {
		wg.Add(1)
		go func(idx int, t BatchTask) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[idx] = BatchResult{TaskID: t.TaskID, Error: PanicError(r)}
				}
			}()
			res, err := sp.SolvePooled(ctx, t.Graph, t.Params)
			results[idx] = BatchResult{TaskID: t.TaskID, Result: res, Error: err}
		}(i, task)
	}

	wg.Wait()
	return results
}

// PanicError converts a recovered solver panic into an error.
func PanicError(r any) error {
	switch v := r.(type) {
	case *InvariantError:
		return v.AppError()
	case *apperror.Error:
		return v
	case error:
		return apperror.Wrap(v, apperror.CodeInternal, "solver panicked").
			WithSeverity(apperror.SeverityCritical)
	default:
		return apperror.Newf(apperror.CodeInternal, "solver panicked: %v", v).
			WithSeverity(apperror.SeverityCritical)
	}
}
