package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Стандартные ключи атрибутов
const (
	// Граф
	AttrGraphLeft    = "graph.left_size"
	AttrGraphRight   = "graph.right_size"
	AttrGraphEdges   = "graph.edges"
	AttrGraphFlipped = "graph.flipped"
	AttrGraphHash    = "graph.hash"

	// Решатель
	AttrScalingFactor = "solver.scaling_factor"
	AttrPhases        = "solver.phases"
	AttrPushes        = "solver.pushes"
	AttrRelabels      = "solver.relabels"
	AttrEpsilon       = "solver.epsilon"

	// Результат
	AttrMatchingValue = "matching.value"
	AttrMatchingSize  = "matching.size"
	AttrVerified      = "matching.verified"

	// Кэш и история
	AttrCacheHit = "cache.hit"
	AttrRunID    = "run.id"
)

// GraphAttributes возвращает атрибуты графа
func GraphAttributes(leftSize, rightSize, edges int, flipped bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrGraphLeft, leftSize),
		attribute.Int(AttrGraphRight, rightSize),
		attribute.Int(AttrGraphEdges, edges),
		attribute.Bool(AttrGraphFlipped, flipped),
	}
}

// SolverAttributes возвращает атрибуты прогона решателя
func SolverAttributes(scalingFactor int64, phases int, pushes, relabels int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64(AttrScalingFactor, scalingFactor),
		attribute.Int(AttrPhases, phases),
		attribute.Int64(AttrPushes, pushes),
		attribute.Int64(AttrRelabels, relabels),
	}
}

// MatchingAttributes возвращает атрибуты найденного паросочетания
func MatchingAttributes(value int64, size int, verified bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64(AttrMatchingValue, value),
		attribute.Int(AttrMatchingSize, size),
		attribute.Bool(AttrVerified, verified),
	}
}
