package algorithms

// =============================================================================
// Global Relabeling
// =============================================================================

// adjustPotential is the global relabeling heuristic.
//
// It runs a Dial-style shortest path search from every vertex with positive
// excess. Crossing a residual arc with positive reduced weight is free, any
// other residual arc costs ceil(-rw/ε)+1 steps, capped at maxRank. The search
// stops as soon as the deficit vertices reached so far absorb the whole
// positive excess. Every vertex then gains min(d, rank)·ε of potential, where
// d is the rank the search stopped at, which creates admissible paths from
// the reached deficits back to the excesses.
//
// The reached deficit vertices become the work list of the next blocking
// flow. It returns false when no vertex has positive excess, i.e. the
// pseudoflow is a flow and the phase is done.
func (s *solver) adjustPotential() bool {
	defer s.rec.StartTimer(TimerGlobalRelabel)()

	n := s.net
	eps := s.eps
	maxRank := s.maxRank
	s.checkInvariants("global relabel", eps)

	copy(s.currentEdge, n.EdgeStarts)
	s.deficitNodes.Clear()
	s.buckets.Clear(maxRank)

	var totalExcess int64
	for u := 0; u < n.RNumV; u++ {
		if n.Excess[u] > 0 {
			totalExcess += n.Excess[u]
			s.buckets.SetBucket(u, 0)
		}
	}
	if totalExcess == 0 {
		return false
	}

	d := 0
	for d <= maxRank {
		for s.buckets.HasNext(d) {
			u := s.buckets.Next(d)
			if n.Excess[u] < 0 {
				s.deficitNodes.Push(u)
				totalExcess += n.Excess[u]
				if totalExcess == 0 {
					break
				}
			}
			pu := n.Potential[u]
			for e := n.EdgeStarts[u]; e < n.EdgeStarts[u+1]; e++ {
				if !n.IsResidual[e] {
					continue
				}
				v := n.Targets[e]
				distV := s.buckets.Bucket(v)
				if d >= distV {
					continue
				}
				diff := 0
				if rw := n.Weights[e] - pu + n.Potential[v]; rw <= 0 {
					if steps := -rw/eps + 1; steps < int64(maxRank) {
						diff = int(steps)
					} else {
						diff = maxRank
					}
				}
				if d+diff < distV {
					s.buckets.SetBucket(v, d+diff)
				}
			}
		}
		if totalExcess == 0 {
			break
		}
		d++
	}

	for u := 0; u < n.RNumV; u++ {
		n.Potential[u] += int64(min(d, s.buckets.Bucket(u))) * eps
	}
	if s.deficitNodes.Empty() {
		s.fail("global relabel", "positive excess %d reached no deficit within rank %d", totalExcess, maxRank)
	}
	s.checkInvariants("global relabel", eps)
	return true
}
