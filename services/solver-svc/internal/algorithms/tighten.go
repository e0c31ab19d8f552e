package algorithms

import (
	"coassign/pkg/domain"
)

// =============================================================================
// Potential Tightening & Decoding
// =============================================================================

// decode tightens the final potentials and converts the network state into a
// domain.Solution.
//
// The pseudoflow is a flow at this point and ε = 1 in scaled units, which is
// below 1/(LSize+2) of an original weight unit. Rounding the potentials to
// the nearest multiple of InitialScale and relaxing them with Bellman–Ford
// over the residual arcs yields integer potentials under which no residual
// arc has positive reduced weight, i.e. an exact dual certificate.
func (s *solver) decode() *domain.Solution {
	n := s.net
	g := n.Graph
	scale := n.InitialScale

	s.shiftToRoot()
	for u := range n.Potential {
		n.Potential[u] = roundToMultiple(n.Potential[u], scale)
	}
	s.tighten()
	s.shiftToRoot()

	used := make([]bool, g.NumArcs())
	for u := 0; u < n.NumV; u++ {
		for e := n.EdgeStarts[u]; e < n.ToRootArc(u); e++ {
			if orig := n.OriginalArc(e); orig < g.ForwardEnd() {
				used[orig] = !n.IsResidual[e]
			}
		}
	}
	potential := make([]int64, n.NumV)
	for v := range potential {
		potential[v] = floorDiv(n.Potential[v]+scale/2, scale)
	}
	return domain.NewSolution(g, used, potential)
}

// tighten runs Bellman–Ford over the residual arcs until no arc u->v has
// p(u) - w(e) < p(v). More than |V| rounds means a positive residual cycle
// and panics.
func (s *solver) tighten() {
	n := s.net
	for rounds := 0; ; rounds++ {
		if rounds >= n.RNumV {
			s.fail("tighten", "Bellman-Ford did not converge in %d rounds", n.RNumV)
		}
		changed := false
		for e := 0; e < n.NumArcs(); e++ {
			if !n.IsResidual[e] {
				continue
			}
			u, v := n.Sources[e], n.Targets[e]
			if tmp := n.Potential[u] - n.Weights[e]; tmp < n.Potential[v] {
				n.Potential[v] = tmp
				changed = true
			}
		}
		if !changed {
			s.debug("potentials tightened", "rounds", rounds+1)
			return
		}
	}
}

// shiftToRoot makes the root potential zero.
func (s *solver) shiftToRoot() {
	n := s.net
	offset := n.Potential[n.Root]
	for u := range n.Potential {
		n.Potential[u] -= offset
	}
}

// roundToMultiple rounds x to the nearest multiple of m, halves up.
func roundToMultiple(x, m int64) int64 {
	return floorDiv(x+m/2, m) * m
}

// floorDiv divides rounding toward negative infinity. m must be positive.
func floorDiv(x, m int64) int64 {
	q := x / m
	if x%m != 0 && x < 0 {
		q--
	}
	return q
}
