package domain

// ExampleOptimum оптимальный вес для Example
const ExampleOptimum int64 = 7

// Example возвращает небольшой граф с известным оптимумом ExampleOptimum.
//
// Левая доля {0,1,2} с кратностями {2,1,2}, правая {0,1} с кратностями {2,1}.
func Example() *BipartiteGraph {
	b := NewBuilder(3, 2)
	edges := []Edge{
		{Left: 0, Right: 0, Weight: 3},
		{Left: 0, Right: 1, Weight: 1},
		{Left: 1, Right: 0, Weight: 3},
		{Left: 1, Right: 1, Weight: 2},
		{Left: 2, Right: 0, Weight: 2},
		{Left: 2, Right: 1, Weight: 1},
	}
	for _, e := range edges {
		_ = b.AddEdge(e.Left, e.Right, e.Weight)
	}
	for i, m := range []int64{2, 1, 2} {
		_ = b.SetLeftMultiplicity(i, m)
	}
	for j, m := range []int64{2, 1} {
		_ = b.SetRightMultiplicity(j, m)
	}
	return b.MustBuild()
}
