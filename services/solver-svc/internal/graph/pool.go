// Package graph provides the data structures of the cost-scaling b-matching
// solver.
//
// This package contains:
//   - Network: the root-augmented residual network in CSR form
//   - RankBuckets: Dial's bucket queue used by relabeling heuristics
//   - Path and Stack: scratch containers for the blocking-flow search
//   - Pool: memory pooling for the per-solve arrays
//
// # Memory Management
//
// A solve allocates a handful of arrays proportional to V and E. Services
// that solve many graphs can build networks from a Pool, which recycles those
// arrays through sync.Pool and reduces GC pressure.
//
// # Thread Safety
//
// Network, RankBuckets, Path and Stack are NOT thread-safe. Each solve owns
// its own instances. The Pool is safe for concurrent use.
//
// # Example
//
//	pool := graph.GetPool()
//	net := graph.NewPooledNetwork(pool, g, scalingFactor)
//	defer net.Release()
package graph

import (
	"sync"
)

// =============================================================================
// Slice Pool
// =============================================================================

// Pool recycles the slices backing a Network.
//
// Acquired slices are zeroed and have exactly the requested length. The pool
// uses sync.Pool internally, so idle slices may be garbage collected.
type Pool struct {
	ints   sync.Pool
	int64s sync.Pool
	bools  sync.Pool
}

// globalPool is the singleton pool instance.
var globalPool = NewPool()

// NewPool creates an empty pool.
func NewPool() *Pool {
	return &Pool{
		ints: sync.Pool{
			New: func() any {
				s := make([]int, 0, 128)
				return &s
			},
		},
		int64s: sync.Pool{
			New: func() any {
				s := make([]int64, 0, 128)
				return &s
			},
		},
		bools: sync.Pool{
			New: func() any {
				s := make([]bool, 0, 128)
				return &s
			},
		},
	}
}

// GetPool returns the global pool.
func GetPool() *Pool {
	return globalPool
}

// Ints returns a zeroed []int of length n.
func (p *Pool) Ints(n int) []int {
	sp := p.ints.Get().(*[]int)
	if cap(*sp) < n {
		return make([]int, n)
	}
	s := (*sp)[:n]
	clear(s)
	return s
}

// PutInts returns s to the pool. It is safe to pass nil.
func (p *Pool) PutInts(s []int) {
	if s == nil {
		return
	}
	s = s[:0]
	p.ints.Put(&s)
}

// Int64s returns a zeroed []int64 of length n.
func (p *Pool) Int64s(n int) []int64 {
	sp := p.int64s.Get().(*[]int64)
	if cap(*sp) < n {
		return make([]int64, n)
	}
	s := (*sp)[:n]
	clear(s)
	return s
}

// PutInt64s returns s to the pool. It is safe to pass nil.
func (p *Pool) PutInt64s(s []int64) {
	if s == nil {
		return
	}
	s = s[:0]
	p.int64s.Put(&s)
}

// Bools returns a zeroed []bool of length n.
func (p *Pool) Bools(n int) []bool {
	sp := p.bools.Get().(*[]bool)
	if cap(*sp) < n {
		return make([]bool, n)
	}
	s := (*sp)[:n]
	clear(s)
	return s
}

// PutBools returns s to the pool. It is safe to pass nil.
func (p *Pool) PutBools(s []bool) {
	if s == nil {
		return
	}
	s = s[:0]
	p.bools.Put(&s)
}
