package graph

import (
	"fmt"

	"coassign/pkg/domain"
)

// =============================================================================
// Residual Network
// =============================================================================

// Network is the root-augmented residual network of a bipartite graph.
//
// It copies the CSR layout of domain.BipartiteGraph and adds one virtual root
// vertex (Root = NumV) that absorbs the capacity slack of every vertex:
//
//	left v:   root -> v  with capacity multiplicity(v)
//	right v:  v -> root  with capacity multiplicity(v)
//
// With the root in place every ordinary arc has unit capacity, and the
// b-matching constraints are enforced by the root arcs alone.
//
// # Arc Layout
//
// Each non-root vertex u owns its original arcs followed by exactly one arc
// u -> root at index ToRootArc(u). The root owns NumV arcs root -> v at
// FromRootArc(v). Original arc e of vertex u therefore lives at e + u, and
// OriginalArc maps it back.
//
//	rNumE = 2m + 2*NumV
//
// # Residual State
//
//   - Ordinary arcs: IsResidual[e] xor IsResidual[Reverse[e]] (unit capacity).
//   - Root arcs: the live counters RCapFromRoot / RCapToRoot decide, and
//     IsResidual mirrors "counter > 0".
//
// # Weights
//
// Weights are the original weights multiplied by InitialScale =
// (LSize+2)*scalingFactor, stored as int64. The factor makes ε-rounding exact
// in integer arithmetic, and int64 storage rules out 32-bit overflow for any
// weight up to domain.MaxWeight.
type Network struct {
	Graph *domain.BipartiteGraph

	LSize        int
	NumV         int // vertices of the original graph
	RNumV        int // NumV + 1
	Root         int
	InitialScale int64

	EdgeStarts []int // len RNumV+1
	Sources    []int
	Targets    []int
	Reverse    []int
	Weights    []int64

	CapFromRoot  []int64 // len NumV
	CapToRoot    []int64
	RCapFromRoot []int64
	RCapToRoot   []int64

	IsResidual []bool
	Potential  []int64 // len RNumV
	Excess     []int64 // len RNumV

	pool *Pool
}

// NewNetwork builds the residual network of g with the given scaling factor.
func NewNetwork(g *domain.BipartiteGraph, scalingFactor int64) *Network {
	return newNetwork(nil, g, scalingFactor)
}

// NewPooledNetwork is NewNetwork with arrays taken from pool. Call Release
// when the network is no longer needed.
func NewPooledNetwork(pool *Pool, g *domain.BipartiteGraph, scalingFactor int64) *Network {
	if pool == nil {
		pool = globalPool
	}
	return newNetwork(pool, g, scalingFactor)
}

func newNetwork(pool *Pool, g *domain.BipartiteGraph, scalingFactor int64) *Network {
	numV := g.NumV
	rNumV := numV + 1
	root := numV
	rNumE := g.NumArcs() + 2*numV

	n := &Network{
		Graph:        g,
		LSize:        g.LSize,
		NumV:         numV,
		RNumV:        rNumV,
		Root:         root,
		InitialScale: int64(g.LSize+2) * scalingFactor,
		pool:         pool,
	}

	ints := func(size int) []int {
		if pool != nil {
			return pool.Ints(size)
		}
		return make([]int, size)
	}
	int64s := func(size int) []int64 {
		if pool != nil {
			return pool.Int64s(size)
		}
		return make([]int64, size)
	}
	bools := func(size int) []bool {
		if pool != nil {
			return pool.Bools(size)
		}
		return make([]bool, size)
	}

	n.EdgeStarts = ints(rNumV + 1)
	n.Sources = ints(rNumE)
	n.Targets = ints(rNumE)
	n.Reverse = ints(rNumE)
	n.Weights = int64s(rNumE)
	n.CapFromRoot = int64s(numV)
	n.CapToRoot = int64s(numV)
	n.RCapFromRoot = int64s(numV)
	n.RCapToRoot = int64s(numV)
	n.IsResidual = bools(rNumE)
	n.Potential = int64s(rNumV)
	n.Excess = int64s(rNumV)

	// Original arcs of u shift by u: every earlier vertex gained one root arc
	for u := 0; u < numV; u++ {
		n.EdgeStarts[u] = g.EdgeStarts[u] + u
		e := n.EdgeStarts[u]
		for orig := g.EdgeStarts[u]; orig < g.EdgeStarts[u+1]; orig++ {
			n.Sources[e] = g.Sources[orig]
			n.Targets[e] = g.Targets[orig]
			n.Reverse[e] = g.Reverse[orig] + g.Targets[orig]
			n.Weights[e] = g.Weights[orig] * n.InitialScale
			e++
		}
	}
	n.EdgeStarts[root] = g.NumArcs() + numV
	n.EdgeStarts[root+1] = n.EdgeStarts[root] + numV

	// Root arcs carry weight 0
	for u := 0; u < numV; u++ {
		e := n.ToRootArc(u)
		re := n.FromRootArc(u)
		n.Sources[e], n.Targets[e], n.Reverse[e] = u, root, re
		n.Sources[re], n.Targets[re], n.Reverse[re] = root, u, e
	}

	for v := 0; v < numV; v++ {
		if v < g.LSize {
			n.CapFromRoot[v] = g.Multiplicities[v]
		} else {
			n.CapToRoot[v] = g.Multiplicities[v]
		}
	}
	copy(n.RCapFromRoot, n.CapFromRoot)
	copy(n.RCapToRoot, n.CapToRoot)

	return n
}

// Release returns pooled arrays. The network must not be used afterwards.
// It is a no-op for networks built with NewNetwork.
func (n *Network) Release() {
	if n.pool == nil {
		return
	}
	p := n.pool
	for _, s := range [][]int{n.EdgeStarts, n.Sources, n.Targets, n.Reverse} {
		p.PutInts(s)
	}
	for _, s := range [][]int64{
		n.Weights, n.CapFromRoot, n.CapToRoot, n.RCapFromRoot, n.RCapToRoot,
		n.Potential, n.Excess,
	} {
		p.PutInt64s(s)
	}
	p.PutBools(n.IsResidual)
	n.pool = nil
	n.EdgeStarts, n.Sources, n.Targets, n.Reverse = nil, nil, nil, nil
	n.Weights, n.Potential, n.Excess = nil, nil, nil
	n.CapFromRoot, n.CapToRoot, n.RCapFromRoot, n.RCapToRoot = nil, nil, nil, nil
	n.IsResidual = nil
}

// =============================================================================
// Accessors
// =============================================================================

// NumArcs returns the number of arcs including root arcs.
func (n *Network) NumArcs() int {
	return len(n.Sources)
}

// IsRoot reports whether v is the virtual root.
func (n *Network) IsRoot(v int) bool {
	return v == n.Root
}

// IsLeft reports whether v is a left vertex.
func (n *Network) IsLeft(v int) bool {
	return v < n.LSize
}

// ToRootArc returns the arc u -> root of a non-root vertex u.
func (n *Network) ToRootArc(u int) int {
	return n.EdgeStarts[u+1] - 1
}

// FromRootArc returns the arc root -> v.
func (n *Network) FromRootArc(v int) int {
	return n.EdgeStarts[n.Root] + v
}

// OriginalArc maps a non-root arc back to its index in the input graph.
func (n *Network) OriginalArc(e int) int {
	return e - n.Sources[e]
}

// ReducedWeight returns weight(e) - p(source) + p(target).
func (n *Network) ReducedWeight(e int) int64 {
	return n.Weights[e] - n.Potential[n.Sources[e]] + n.Potential[n.Targets[e]]
}

// MaxWeight returns the largest scaled weight, or 0 without edges.
func (n *Network) MaxWeight() int64 {
	var maxW int64
	for _, w := range n.Weights {
		if w > maxW {
			maxW = w
		}
	}
	return maxW
}

// =============================================================================
// Invariants
// =============================================================================

// CheckInvariants verifies ε-optimality and the bookkeeping of the pseudoflow:
//   - every residual arc has reduced weight at most eps;
//   - ordinary arcs are residual in exactly one direction;
//   - root arc flags mirror the root counters;
//   - Excess equals the excess implied by the flags and counters.
//
// It is O(V + E) and meant for debug runs only.
func (n *Network) CheckInvariants(eps int64) error {
	for e := 0; e < n.NumArcs(); e++ {
		u, v := n.Sources[e], n.Targets[e]
		re := n.Reverse[e]
		if n.IsResidual[re] {
			if rw := n.ReducedWeight(e); rw < -eps {
				return fmt.Errorf("arc %d->%d: reverse is residual with reduced weight %d < -%d", u, v, rw, eps)
			}
		}
		switch {
		case n.IsRoot(u):
			if (n.RCapToRoot[v] > 0) != n.IsResidual[re] || (n.RCapFromRoot[v] > 0) != n.IsResidual[e] {
				return fmt.Errorf("root arc to %d: flags disagree with counters", v)
			}
		case n.IsRoot(v):
			if (n.RCapToRoot[u] > 0) != n.IsResidual[e] || (n.RCapFromRoot[u] > 0) != n.IsResidual[re] {
				return fmt.Errorf("root arc from %d: flags disagree with counters", u)
			}
		default:
			if n.IsResidual[e] == n.IsResidual[re] {
				return fmt.Errorf("arc %d->%d: residual flags of the pair are equal", u, v)
			}
		}
	}

	excess := n.ComputeExcess()
	for v, ex := range excess {
		if ex != n.Excess[v] {
			return fmt.Errorf("vertex %d: excess %d, recomputed %d", v, n.Excess[v], ex)
		}
	}
	return nil
}

// ComputeExcess recomputes vertex excesses from the residual flags and the
// root counters.
func (n *Network) ComputeExcess() []int64 {
	excess := make([]int64, n.RNumV)
	for u := 0; u < n.LSize; u++ {
		for e := n.EdgeStarts[u]; e < n.ToRootArc(u); e++ {
			if !n.IsResidual[e] {
				excess[u]--
				excess[n.Targets[e]]++
			}
		}
	}
	for u := 0; u < n.NumV; u++ {
		flowFromRoot := n.CapFromRoot[u] - n.RCapFromRoot[u]
		excess[u] += flowFromRoot
		excess[n.Root] -= flowFromRoot
	}
	return excess
}
