package algorithms

// =============================================================================
// Blocking Flow
// =============================================================================

// blockingFlow pulls excess into the deficit vertices collected by the last
// global relabel.
//
// From each deficit vertex it grows a path backwards along admissible arcs:
// arcs e = u->v whose reverse is residual and whose reduced weight is
// negative. The path stops at a vertex with positive excess or when it closes
// a cycle, and one unit (or, for a single root arc, as much as fits) is
// pulled along it. A vertex without admissible arcs is relabeled by ε and
// the search backs off one hop. Cursors in currentEdge are shared by all
// searches between two global relabels.
//
// Deficit vertices that are not satisfied are retried while the previous
// pass pushed something, tolerating one pass without progress. The loop also
// returns early once the DFS has relabeled more vertices than the
// GlobalRelabelFreqFactor budget allows.
//
// The pass is timed as a whole. Path searches are reported as one CounterDFS
// delta per pass.
func (s *solver) blockingFlow() {
	stop := s.rec.StartTimer(TimerBlockingFlow)
	var searches int64
	defer func() {
		s.rec.Count(CounterDFS, searches)
		stop()
	}()

	n := s.net
	deficit := s.deficitNodes
	still := s.stillDeficit
	contiguousNonpush := 0

	for {
		still.Clear()
		pushed := false

		for !deficit.Empty() {
			top := deficit.Top()
			if n.Excess[top] >= 0 || s.currentEdge[top] == n.EdgeStarts[top+1] {
				if n.Excess[top] < 0 {
					still.Push(top)
				}
				deficit.Pop()
				continue
			}

			searches++
			if !s.findPath(top) {
				if n.Excess[top] < 0 {
					still.Push(top)
				}
				deficit.Pop()
				continue
			}

			s.phase.Pushes += int64(s.path.Hops())
			pushed = true
			s.pull()
			s.checkInvariants("pull", s.eps)

			if s.relabelBounded && s.relabels > s.relabelBudget {
				return
			}
		}

		if still.Empty() {
			return
		}
		if pushed {
			contiguousNonpush = 0
		} else {
			contiguousNonpush++
		}
		if contiguousNonpush >= 2 {
			return
		}
		for _, v := range still.Items() {
			deficit.Push(v)
		}
	}
}

// findPath runs the DFS from the deficit vertex start. It returns true with
// s.path ending at a vertex with positive excess or closing a cycle, and
// false when start itself was relabeled away.
func (s *solver) findPath(start int) bool {
	n := s.net
	path := s.path
	root := n.Root
	path.Reset(start)

	for !path.Empty() {
		u := path.Tip()
		if n.Excess[u] > 0 {
			return true
		}

		pu := n.Potential[u]
		end := n.EdgeStarts[u+1]
		advanced := false
		for e := s.currentEdge[u]; e < end; e++ {
			switch {
			case u == root:
				if n.RCapToRoot[n.Targets[e]] == 0 {
					continue
				}
			case e == end-1:
				// u -> root
				if n.RCapFromRoot[u] == 0 {
					continue
				}
			default:
				if n.IsResidual[e] {
					continue
				}
			}
			v := n.Targets[e]
			if n.Weights[e]-pu+n.Potential[v] >= 0 {
				continue
			}
			if s.currentEdge[v] == n.EdgeStarts[v+1] {
				continue
			}
			if path.Extend(e, v) {
				return true
			}
			s.currentEdge[u] = e
			advanced = true
			break
		}
		if advanced {
			continue
		}

		// dead end
		s.currentEdge[u] = n.EdgeStarts[u]
		n.Potential[u] += s.eps
		s.relabels++
		s.phase.Relabels++
		s.checkInvariants("relabel", s.eps)
		if path.Retreat() {
			s.currentEdge[path.Tip()]++
		}
	}
	return false
}

// pull moves flow along s.path from its end back to its start.
//
// A path made of a single root arc moves as much flow as the excess at one
// end, the deficit at the other and the root counter allow. Any other path
// moves one unit.
func (s *solver) pull() {
	n := s.net
	path := s.path
	root := n.Root
	start := path.Start()
	last := path.Tip()

	if path.Hops() == 1 && (start == root || last == root) {
		_, e, _ := path.Hop(0)
		flowFromRoot := last == root
		eFromRoot, eToRoot := e, n.Reverse[e]
		other := last
		if flowFromRoot {
			eFromRoot, eToRoot = n.Reverse[e], e
			other = start
		}

		var flow int64
		if flowFromRoot {
			flow = min(n.Excess[root], n.RCapFromRoot[other], -n.Excess[other])
		} else {
			flow = -min(n.Excess[other], n.RCapToRoot[other], -n.Excess[root])
		}
		n.Excess[root] -= flow
		n.Excess[other] += flow
		n.RCapFromRoot[other] -= flow
		n.RCapToRoot[other] += flow
		n.IsResidual[eFromRoot] = n.RCapFromRoot[other] > 0
		n.IsResidual[eToRoot] = n.RCapToRoot[other] > 0
		return
	}

	n.Excess[start]++
	n.Excess[last]--
	for i := 0; i < path.Hops(); i++ {
		u, e, v := path.Hop(i)
		re := n.Reverse[e]
		switch {
		case u == root:
			n.RCapFromRoot[v]++
			n.RCapToRoot[v]--
			n.IsResidual[e] = true
			if n.RCapToRoot[v] == 0 {
				n.IsResidual[re] = false
			}
		case v == root:
			n.RCapFromRoot[u]--
			n.RCapToRoot[u]++
			n.IsResidual[e] = true
			if n.RCapFromRoot[u] == 0 {
				n.IsResidual[re] = false
			}
		default:
			n.IsResidual[e] = true
			n.IsResidual[re] = false
		}
	}
}
