package algorithms

import (
	"sort"
	"sync"
	"time"
)

// Timer and counter names reported by the solver.
const (
	TimerGlobalRelabel = "GlobalRelabel"
	TimerBlockingFlow  = "BlockingFlow"
	TimerTSort         = "TSort"
	TimerPriceRefine   = "PriceRefine"
	CounterPush        = "Push"
	CounterRelabel     = "Relabel"
	CounterDFS         = "DFS"
)

// Recorder receives named timings and counters from a running solve.
//
// StartTimer returns the function that stops the timer. Implementations must
// be safe for concurrent use when shared between solves.
type Recorder interface {
	StartTimer(name string) func()
	Count(name string, delta int64)
}

type noopRecorder struct{}

func (noopRecorder) StartTimer(string) func() { return func() {} }
func (noopRecorder) Count(string, int64)      {}

// NoopRecorder returns a Recorder that discards everything.
func NoopRecorder() Recorder {
	return noopRecorder{}
}

// =============================================================================
// StatsTracker
// =============================================================================

// TimerStats aggregates the runs of one named timer.
type TimerStats struct {
	Name  string
	Count int64
	Total time.Duration
}

// StatsTracker is an in-memory Recorder. It keeps the total time and the
// number of runs per timer and the sum per counter.
//
// # Example
//
//	tracker := algorithms.NewStatsTracker()
//	res, err := algorithms.Solve(g, algorithms.DefaultParams().WithRecorder(tracker))
//	for _, t := range tracker.Timers() {
//	    fmt.Printf("%s: %d runs, %s\n", t.Name, t.Count, t.Total)
//	}
type StatsTracker struct {
	mu       sync.Mutex
	timers   map[string]*TimerStats
	counters map[string]int64
	now      func() time.Time
}

// NewStatsTracker creates an empty tracker.
func NewStatsTracker() *StatsTracker {
	return &StatsTracker{
		timers:   make(map[string]*TimerStats),
		counters: make(map[string]int64),
		now:      time.Now,
	}
}

// StartTimer implements Recorder.
func (s *StatsTracker) StartTimer(name string) func() {
	start := s.now()
	return func() {
		elapsed := s.now().Sub(start)
		s.mu.Lock()
		defer s.mu.Unlock()
		t, ok := s.timers[name]
		if !ok {
			t = &TimerStats{Name: name}
			s.timers[name] = t
		}
		t.Count++
		t.Total += elapsed
	}
}

// Count implements Recorder.
func (s *StatsTracker) Count(name string, delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[name] += delta
}

// Timer returns the stats of one timer. The zero value is returned for
// timers that never ran.
func (s *StatsTracker) Timer(name string) TimerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[name]; ok {
		return *t
	}
	return TimerStats{Name: name}
}

// Timers returns all timers sorted by name.
func (s *StatsTracker) Timers() []TimerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TimerStats, 0, len(s.timers))
	for _, t := range s.timers {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Counter returns the current value of a counter.
func (s *StatsTracker) Counter(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters[name]
}

// Counters returns a copy of all counters.
func (s *StatsTracker) Counters() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.counters))
	for k, v := range s.counters {
		out[k] = v
	}
	return out
}

// Reset drops everything recorded so far.
func (s *StatsTracker) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers = make(map[string]*TimerStats)
	s.counters = make(map[string]int64)
}
