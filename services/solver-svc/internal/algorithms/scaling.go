package algorithms

import (
	"time"

	"coassign/pkg/logger"
	"coassign/services/solver-svc/internal/graph"
)

// solver holds the scratch state of one solve. It is created per Solve call
// and never shared.
type solver struct {
	net    *graph.Network
	params Params
	rec    Recorder

	eps     int64
	maxRank int

	currentEdge  []int
	buckets      *graph.RankBuckets
	deficitNodes *graph.Stack
	stillDeficit *graph.Stack
	path         *graph.Path

	// price refinement
	tsorted    *graph.Stack
	tsortStack *graph.Stack
	tsortFlag  []byte

	// DFS relabels since the last global relabel
	relabels       int64
	relabelBudget  int64
	relabelBounded bool

	phases     []PhaseStats
	phase      *PhaseStats
	phaseStart time.Time
}

func newSolver(net *graph.Network, p Params) *solver {
	lSize := int64(net.LSize)
	maxRank := int((1 + p.ScalingFactor) * (2*lSize + 2))

	s := &solver{
		net:          net,
		params:       p,
		rec:          p.recorder(),
		maxRank:      maxRank,
		currentEdge:  make([]int, net.RNumV+1),
		buckets:      graph.NewRankBuckets(maxRank, net.RNumV),
		deficitNodes: graph.NewStack(net.RNumV),
		stillDeficit: graph.NewStack(net.RNumV),
		path:         graph.NewPath(net.RNumV),
		tsorted:      graph.NewStack(net.RNumV),
		tsortStack:   graph.NewStack(net.NumArcs() + net.RNumV),
		tsortFlag:    make([]byte, net.RNumV),
	}
	if p.GlobalRelabelFreqFactor > 0 {
		s.relabelBounded = true
		s.relabelBudget = int64(float64(net.RNumV) * p.GlobalRelabelFreqFactor)
	}
	return s
}

func (s *solver) debug(msg string, args ...any) {
	if s.params.CheckIntermediateStatus {
		logger.Debug(msg, args...)
	}
}

// =============================================================================
// Phase Loop
// =============================================================================

// run executes the ε phases until ε reaches 1.
func (s *solver) run() {
	n := s.net
	s.eps = n.MaxWeight()
	s.debug("cost scaling started",
		"left", n.LSize, "vertices", n.RNumV, "arcs", n.NumArcs(),
		"max_rank", s.maxRank, "initial_scale", n.InitialScale)

	s.initPhase()
	for numPhase := 1; ; numPhase++ {
		s.checkInvariants("phase start", s.eps)
		s.eps = max(1, (s.eps+s.params.ScalingFactor-1)/s.params.ScalingFactor)
		s.beginPhase()
		s.debug("phase", "number", numPhase, "eps", s.eps)

		if numPhase > 1 && s.priceRefine() {
			s.phase.PriceRefined = true
		} else {
			s.initPhase()
			s.checkInvariants("init phase", s.eps)
			s.refine()
		}
		s.endPhase()

		if s.eps <= 1 {
			break
		}
	}
}

func (s *solver) beginPhase() {
	s.phases = append(s.phases, PhaseStats{Epsilon: s.eps})
	s.phase = &s.phases[len(s.phases)-1]
	s.phaseStart = time.Now()
}

func (s *solver) endPhase() {
	s.phase.Duration = time.Since(s.phaseStart)
	s.rec.Count(CounterPush, s.phase.Pushes)
	s.rec.Count(CounterRelabel, s.phase.Relabels)
	s.debug("phase done",
		"eps", s.phase.Epsilon,
		"price_refined", s.phase.PriceRefined,
		"global_relabels", s.phase.GlobalRelabels,
		"relabels", s.phase.Relabels,
		"pushes", s.phase.Pushes)
}

// refine alternates global relabeling and blocking flow until no vertex has
// positive excess.
func (s *solver) refine() {
	for s.adjustPotential() {
		s.phase.GlobalRelabels++
		s.relabels = 0
		s.blockingFlow()
	}
}

// initPhase turns the current pseudoflow into a 0-optimal one for the current
// potentials: every arc with positive reduced weight is saturated and every
// other arc is emptied. Root arcs follow the sign of p(v) - p(root).
func (s *solver) initPhase() {
	n := s.net
	copy(s.currentEdge, n.EdgeStarts)
	clear(n.Excess)

	for u := 0; u < n.LSize; u++ {
		pu := n.Potential[u]
		for e := n.EdgeStarts[u]; e < n.ToRootArc(u); e++ {
			v := n.Targets[e]
			re := n.Reverse[e]
			if n.Weights[e]-pu+n.Potential[v] > 0 {
				n.IsResidual[e] = false
				n.IsResidual[re] = true
				n.Excess[u]--
				n.Excess[v]++
			} else {
				n.IsResidual[e] = true
				n.IsResidual[re] = false
			}
		}
	}

	root := n.Root
	for e := n.EdgeStarts[root]; e < n.EdgeStarts[root+1]; e++ {
		v := n.Targets[e]
		var flow int64
		if n.Potential[v]-n.Potential[root] > 0 {
			flow = n.CapFromRoot[v]
		} else {
			flow = -n.CapToRoot[v]
		}
		n.Excess[root] -= flow
		n.Excess[v] += flow
		n.RCapFromRoot[v] = n.CapFromRoot[v] - flow
		n.RCapToRoot[v] = n.CapToRoot[v] + flow
		n.IsResidual[e] = n.RCapFromRoot[v] > 0
		n.IsResidual[n.Reverse[e]] = n.RCapToRoot[v] > 0
	}
}
