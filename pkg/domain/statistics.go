package domain

// GraphStatistics статистика двудольного графа (в исходной ориентации)
type GraphStatistics struct {
	LeftCount              int     `json:"left_count"`
	RightCount             int     `json:"right_count"`
	EdgeCount              int     `json:"edge_count"`
	Density                float64 `json:"density"`
	TotalLeftMultiplicity  int64   `json:"total_left_multiplicity"`
	TotalRightMultiplicity int64   `json:"total_right_multiplicity"`
	MaxWeight              int64   `json:"max_weight"`
	AverageDegree          float64 `json:"average_degree"`
	MaxDegree              int     `json:"max_degree"`
	MinDegree              int     `json:"min_degree"`
	IsolatedCount          int     `json:"isolated_count"`
}

// MatchingStatistics статистика найденного паросочетания
type MatchingStatistics struct {
	MatchedEdges       int     `json:"matched_edges"`
	TotalWeight        int64   `json:"total_weight"`
	SaturatedVertices  int     `json:"saturated_vertices"`
	UnmatchedVertices  int     `json:"unmatched_vertices"`
	AverageUtilization float64 `json:"average_utilization"`
}

// CalculateGraphStatistics вычисляет статистику графа
func CalculateGraphStatistics(g *BipartiteGraph) *GraphStatistics {
	stats := &GraphStatistics{
		LeftCount:  g.LSize,
		RightCount: g.RSize,
		EdgeCount:  g.NumEdges(),
		MaxWeight:  g.MaxWeight(),
	}
	if g.Flipped {
		stats.LeftCount, stats.RightCount = g.RSize, g.LSize
	}

	if g.LSize > 0 && g.RSize > 0 {
		stats.Density = float64(stats.EdgeCount) / (float64(g.LSize) * float64(g.RSize))
	}

	for v := 0; v < g.NumV; v++ {
		if g.IsLeft(v) != g.Flipped {
			stats.TotalLeftMultiplicity += g.Multiplicities[v]
		} else {
			stats.TotalRightMultiplicity += g.Multiplicities[v]
		}
	}

	// Статистика степеней
	if g.NumV > 0 {
		stats.MinDegree = int(^uint(0) >> 1)
		for v := 0; v < g.NumV; v++ {
			d := g.EdgeStarts[v+1] - g.EdgeStarts[v]
			if d == 0 {
				stats.IsolatedCount++
			}
			if d > stats.MaxDegree {
				stats.MaxDegree = d
			}
			if d < stats.MinDegree {
				stats.MinDegree = d
			}
		}
		stats.AverageDegree = float64(g.NumArcs()) / float64(g.NumV)
	}

	return stats
}

// CalculateMatchingStatistics вычисляет статистику решения
func CalculateMatchingStatistics(s *Solution) *MatchingStatistics {
	g := s.Graph
	stats := &MatchingStatistics{TotalWeight: s.Value()}

	degree := make([]int64, g.NumV)
	for e := 0; e < g.ForwardEnd(); e++ {
		if s.Used[e] {
			stats.MatchedEdges++
			degree[g.Sources[e]]++
			degree[g.Targets[e]]++
		}
	}

	var utilization float64
	var withCapacity int
	for v := 0; v < g.NumV; v++ {
		if degree[v] == 0 {
			stats.UnmatchedVertices++
		}
		if g.Multiplicities[v] == 0 {
			continue
		}
		withCapacity++
		if degree[v] == g.Multiplicities[v] {
			stats.SaturatedVertices++
		}
		utilization += float64(degree[v]) / float64(g.Multiplicities[v])
	}
	if withCapacity > 0 {
		stats.AverageUtilization = utilization / float64(withCapacity)
	}

	return stats
}
