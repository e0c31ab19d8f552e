package benchmark

import (
	"fmt"
	"math/rand"
	"testing"

	"coassign/pkg/domain"
)

// randomParams параметры квадратного графа со стороной side
func randomParams(side int64, density float64) domain.RandomParams {
	return domain.RandomParams{
		LSize:             domain.Range{Min: side, Max: side + 1},
		RSize:             domain.Range{Min: side, Max: side + 1},
		LeftMultiplicity:  domain.Range{Min: 1, Max: 5},
		RightMultiplicity: domain.Range{Min: 1, Max: 5},
		Weight:            domain.Range{Min: 1, Max: 1000},
		Density:           density,
	}
}

func generateBipartiteGraph(side int64, density float64) *domain.BipartiteGraph {
	return domain.MustRandomGraph(rand.New(rand.NewSource(42)), randomParams(side, density))
}

func BenchmarkRandomGraph(b *testing.B) {
	sizes := []int64{10, 50, 100, 500}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("side_%d", size), func(b *testing.B) {
			p := randomParams(size, 0.5)
			rng := rand.New(rand.NewSource(1))

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				domain.MustRandomGraph(rng, p)
			}
		})
	}
}

func BenchmarkBuilder_Build(b *testing.B) {
	sizes := []int64{100, 500, 1000}

	for _, size := range sizes {
		b.Run(fmt.Sprintf("side_%d", size), func(b *testing.B) {
			edges := generateBipartiteGraph(size, 0.1).Edges()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				builder := domain.NewBuilder(int(size), int(size))
				for j := 0; j < int(size); j++ {
					_ = builder.SetLeftMultiplicity(j, 2)
					_ = builder.SetRightMultiplicity(j, 2)
				}
				for _, e := range edges {
					_ = builder.AddEdge(e.Left, e.Right, e.Weight)
				}
				if _, err := builder.Build(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkBipartiteGraph_Edges(b *testing.B) {
	g := generateBipartiteGraph(500, 0.2)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g.Edges()
	}
}

func BenchmarkCalculateGraphStatistics(b *testing.B) {
	densities := []float64{0.1, 0.5, 1.0}

	for _, d := range densities {
		b.Run(fmt.Sprintf("density_%.1f", d), func(b *testing.B) {
			g := generateBipartiteGraph(300, d)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				domain.CalculateGraphStatistics(g)
			}
		})
	}
}
