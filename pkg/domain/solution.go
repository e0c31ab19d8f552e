package domain

import (
	"coassign/pkg/apperror"
)

// Match пара (left, right) в исходной нумерации вызывающей стороны
type Match struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

// Solution оптимальное паросочетание и двойственный сертификат.
//
// Used индексируется прямыми дугами графа, Potential - вершинами графа
// (во внутренней, возможно транспонированной, нумерации).
type Solution struct {
	Graph     *BipartiteGraph
	Used      []bool
	Potential []int64

	value int64
}

// NewSolution создаёт решение. Массивы копируются.
func NewSolution(g *BipartiteGraph, used []bool, potential []int64) *Solution {
	s := &Solution{
		Graph:     g,
		Used:      append([]bool(nil), used...),
		Potential: append([]int64(nil), potential...),
	}
	for e := 0; e < g.ForwardEnd(); e++ {
		if s.Used[e] {
			s.value += g.Weights[e]
		}
	}
	return s
}

// Value возвращает суммарный вес выбранных рёбер
func (s *Solution) Value() int64 {
	return s.value
}

// Matches возвращает выбранные пары в исходной ориентации
func (s *Solution) Matches() []Match {
	g := s.Graph
	matches := make([]Match, 0)
	for e := 0; e < g.ForwardEnd(); e++ {
		if !s.Used[e] {
			continue
		}
		l, r := g.Sources[e], g.Targets[e]-g.LSize
		if g.Flipped {
			l, r = r, l
		}
		matches = append(matches, Match{Left: l, Right: r})
	}
	return matches
}

// LeftPotentials возвращает потенциалы левых вершин в исходной ориентации
func (s *Solution) LeftPotentials() []int64 {
	g := s.Graph
	if g.Flipped {
		return append([]int64(nil), s.Potential[g.LSize:]...)
	}
	return append([]int64(nil), s.Potential[:g.LSize]...)
}

// RightPotentials возвращает потенциалы правых вершин в исходной ориентации
func (s *Solution) RightPotentials() []int64 {
	g := s.Graph
	if g.Flipped {
		return append([]int64(nil), s.Potential[:g.LSize]...)
	}
	return append([]int64(nil), s.Potential[g.LSize:]...)
}

// DualValue возвращает значение двойственной целевой функции
func (s *Solution) DualValue() int64 {
	g := s.Graph
	var dual int64
	for v := 0; v < g.NumV; v++ {
		dual += g.Multiplicities[v] * max(0, g.Sign(v)*s.Potential[v])
	}
	for e := 0; e < g.ForwardEnd(); e++ {
		dual += max(0, g.ReducedWeight(e, s.Potential))
	}
	return dual
}

// CheckConstraints проверяет допустимость: степень вершины в
// паросочетании не превышает её кратность
func (s *Solution) CheckConstraints() error {
	g := s.Graph
	degree := make([]int64, g.NumV)
	for e := 0; e < g.ForwardEnd(); e++ {
		if s.Used[e] {
			degree[g.Sources[e]]++
			degree[g.Targets[e]]++
		}
	}
	for v := 0; v < g.NumV; v++ {
		if degree[v] > g.Multiplicities[v] {
			return apperror.NewCritical(apperror.CodeCapacityViolation,
				"matching uses more edges than the vertex multiplicity allows").
				WithDetails("vertex", v).
				WithDetails("degree", degree[v]).
				WithDetails("multiplicity", g.Multiplicities[v])
		}
	}
	return nil
}

// CheckOptimality проверяет дополняющую нежёсткость и равенство прямого
// и двойственного значений
func (s *Solution) CheckOptimality() error {
	g := s.Graph
	for e := 0; e < g.ForwardEnd(); e++ {
		rw := g.ReducedWeight(e, s.Potential)
		if rw > 0 && !s.Used[e] {
			return apperror.NewCritical(apperror.CodeSlacknessViolation,
				"edge with positive reduced weight is not used").
				WithDetails("edge", e).
				WithDetails("reduced_weight", rw)
		}
		if rw < 0 && s.Used[e] {
			return apperror.NewCritical(apperror.CodeSlacknessViolation,
				"edge with negative reduced weight is used").
				WithDetails("edge", e).
				WithDetails("reduced_weight", rw)
		}
	}
	if dual := s.DualValue(); dual != s.value {
		return apperror.NewCritical(apperror.CodeDualityGap,
			"primal and dual values differ").
			WithDetails("primal", s.value).
			WithDetails("dual", dual)
	}
	return nil
}

// Check проверяет допустимость и оптимальность решения
func (s *Solution) Check() error {
	if err := s.CheckConstraints(); err != nil {
		return err
	}
	return s.CheckOptimality()
}

// MustCheck паникует, если сертификат не подтверждает оптимальность
func (s *Solution) MustCheck() {
	if err := s.Check(); err != nil {
		panic(err)
	}
}
