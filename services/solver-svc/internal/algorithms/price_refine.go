package algorithms

// =============================================================================
// Price Refinement
// =============================================================================

// DFS states of tsort
const (
	unvisited byte = iota
	queued
	inProgress
	finished
)

// tsort orders the vertices topologically along the admissible arcs of price
// refinement: residual arcs with positive reduced weight. It returns false if
// those arcs contain a cycle.
func (s *solver) tsort() bool {
	defer s.rec.StartTimer(TimerTSort)()

	n := s.net
	result := s.tsorted
	stack := s.tsortStack
	flag := s.tsortFlag
	result.Clear()
	stack.Clear()
	clear(flag)

	for start := 0; start < n.RNumV; start++ {
		if flag[start] != unvisited {
			continue
		}
		flag[start] = queued
		stack.Push(start)
		for !stack.Empty() {
			u := stack.Pop()
			switch flag[u] {
			case finished:
				continue
			case inProgress:
				result.Push(u)
				flag[u] = finished
				continue
			}
			flag[u] = inProgress
			stack.Push(u)
			pu := n.Potential[u]
			for e := n.EdgeStarts[u]; e < n.EdgeStarts[u+1]; e++ {
				if !n.IsResidual[e] {
					continue
				}
				v := n.Targets[e]
				if n.Weights[e]-pu+n.Potential[v] <= 0 {
					continue
				}
				switch flag[v] {
				case inProgress:
					return false
				case finished:
				default:
					flag[v] = queued
					stack.Push(v)
				}
			}
		}
	}
	result.Reverse()
	return true
}

// priceRefine tries to make the current pseudoflow ε-optimal by lowering
// potentials only.
//
// Each round ranks every vertex with the number of ε-steps its potential
// must drop, propagating ranks forward in topological order of the arcs with
// positive reduced weight. A round in which every rank is 0 proves the
// network ε-optimal, so the phase needs no flow work. Otherwise the
// potentials are lowered in decreasing rank order and the round repeats.
//
// It returns false when the admissible arcs contain a cycle or the round
// limit is hit. The caller then rebuilds the pseudoflow with initPhase, which
// is valid for any potentials.
func (s *solver) priceRefine() bool {
	defer s.rec.StartTimer(TimerPriceRefine)()

	n := s.net
	eps := s.eps
	maxRank := int64(s.maxRank)
	s.checkInvariants("price refine", eps*s.params.ScalingFactor)

	for round := 1; s.tsort(); round++ {
		if limit := s.params.PriceRefineLimit; limit > 0 && round > limit {
			s.debug("price refine limit reached", "eps", eps, "limit", limit)
			return false
		}

		s.buckets.Clear(0)
		maxBucket := 0
		for _, u := range s.tsorted.Items() {
			pu := n.Potential[u]
			bucketU := s.buckets.Bucket(u)
			maxBucket = max(maxBucket, bucketU)
			for e := n.EdgeStarts[u]; e < n.EdgeStarts[u+1]; e++ {
				if !n.IsResidual[e] {
					continue
				}
				v := n.Targets[e]
				rw := n.Weights[e] - pu + n.Potential[v]
				if rw <= 0 {
					continue
				}
				// k = ceil(rw/eps) - 1
				newBucket := int64(bucketU) + (rw-1)/eps
				if newBucket > int64(s.buckets.Bucket(v)) && newBucket <= maxRank {
					s.buckets.SetBucket(v, int(newBucket))
				}
			}
		}

		if maxBucket == 0 {
			s.debug("price refine succeeded", "eps", eps, "rounds", round)
			s.checkInvariants("price refine", eps)
			return true
		}

		for b := maxBucket; b >= 0; b-- {
			for s.buckets.HasNext(b) {
				u := s.buckets.Next(b)
				pu := n.Potential[u]
				for e := n.EdgeStarts[u]; e < n.EdgeStarts[u+1]; e++ {
					if !n.IsResidual[e] {
						continue
					}
					v := n.Targets[e]
					bucketV := s.buckets.Bucket(v)
					if bucketV >= b {
						continue
					}
					rw := n.Weights[e] - pu + n.Potential[v]
					newBucketV := b
					if rw <= 0 {
						if d := -rw / eps; int64(b) <= d {
							newBucketV = 0
						} else {
							newBucketV = b - int(d+1)
						}
					}
					if bucketV < newBucketV {
						s.buckets.SetBucket(v, newBucketV)
					}
				}
				n.Potential[u] -= int64(b) * eps
			}
		}
		s.checkInvariants("price refine", eps*s.params.ScalingFactor)
	}
	return false
}
