package domain

import "math"

// Ограничения входных данных. Веса масштабируются солвером на
// (LSize+2)*scalingFactor, поэтому веса ограничены диапазоном int32,
// а масштабированные значения хранятся в int64.
const (
	MaxWeight       int64 = math.MaxInt32
	MaxMultiplicity int64 = math.MaxInt32
)

// Значения по умолчанию для генератора случайных графов
const (
	DefaultRandomDensity = 0.5
	DefaultRandomMaxSide = 50
)

// Sign возвращает знак вершины в двойственной целевой функции:
// +1 для левой доли, -1 для правой
func (g *BipartiteGraph) Sign(v int) int64 {
	if g.IsLeft(v) {
		return 1
	}
	return -1
}

// ReducedWeight возвращает приведённый вес дуги при потенциалах potential
func (g *BipartiteGraph) ReducedWeight(e int, potential []int64) int64 {
	return g.Weights[e] - potential[g.Sources[e]] + potential[g.Targets[e]]
}
