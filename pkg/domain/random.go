package domain

import (
	"math/rand"

	"coassign/pkg/apperror"
)

// Range полуоткрытый диапазон [Min, Max)
type Range struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

func (r Range) valid() bool {
	return r.Min >= 0 && r.Min < r.Max
}

func (r Range) pick(rng *rand.Rand) int64 {
	return r.Min + rng.Int63n(r.Max-r.Min)
}

// RandomParams параметры генератора случайных двудольных графов
type RandomParams struct {
	LSize             Range   `json:"l_size"`
	RSize             Range   `json:"r_size"`
	LeftMultiplicity  Range   `json:"left_multiplicity"`
	RightMultiplicity Range   `json:"right_multiplicity"`
	Weight            Range   `json:"weight"`
	Density           float64 `json:"density"`
}

// DefaultRandomParams возвращает параметры средних графов
func DefaultRandomParams() RandomParams {
	return RandomParams{
		LSize:             Range{Min: 1, Max: DefaultRandomMaxSide},
		RSize:             Range{Min: 1, Max: DefaultRandomMaxSide},
		LeftMultiplicity:  Range{Min: 1, Max: 10},
		RightMultiplicity: Range{Min: 1, Max: 10},
		Weight:            Range{Min: 2, Max: 100},
		Density:           DefaultRandomDensity,
	}
}

// Validate проверяет параметры генератора
func (p RandomParams) Validate() error {
	ranges := []struct {
		name string
		r    Range
	}{
		{"l_size", p.LSize},
		{"r_size", p.RSize},
		{"left_multiplicity", p.LeftMultiplicity},
		{"right_multiplicity", p.RightMultiplicity},
		{"weight", p.Weight},
	}
	for _, item := range ranges {
		if !item.r.valid() {
			return apperror.NewWithField(apperror.CodeInvalidArgument,
				"range must satisfy 0 <= min < max", item.name).
				WithDetails("min", item.r.Min).
				WithDetails("max", item.r.Max)
		}
	}
	if p.Weight.Max-1 > MaxWeight {
		return apperror.NewWithField(apperror.CodeWeightOverflow,
			"weight range exceeds the supported maximum", "weight")
	}
	if p.LeftMultiplicity.Max-1 > MaxMultiplicity || p.RightMultiplicity.Max-1 > MaxMultiplicity {
		return apperror.New(apperror.CodeInvalidMultiplicity,
			"multiplicity range exceeds the supported maximum")
	}
	if p.Density < 0 || p.Density > 1 {
		return apperror.NewWithField(apperror.CodeInvalidArgument,
			"density must be in [0, 1]", "density").
			WithDetails("density", p.Density)
	}
	return nil
}

// RandomGraph генерирует случайный граф. Каждая пара (left, right)
// становится ребром с вероятностью Density.
//
// rng не потокобезопасен, не разделяйте его между горутинами.
func RandomGraph(rng *rand.Rand, p RandomParams) (*BipartiteGraph, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	lSize := int(p.LSize.pick(rng))
	rSize := int(p.RSize.pick(rng))
	b := NewBuilder(lSize, rSize)
	for i := 0; i < lSize; i++ {
		if err := b.SetLeftMultiplicity(i, p.LeftMultiplicity.pick(rng)); err != nil {
			return nil, err
		}
	}
	for j := 0; j < rSize; j++ {
		if err := b.SetRightMultiplicity(j, p.RightMultiplicity.pick(rng)); err != nil {
			return nil, err
		}
	}
	for i := 0; i < lSize; i++ {
		for j := 0; j < rSize; j++ {
			if rng.Float64() >= p.Density {
				continue
			}
			if err := b.AddEdge(i, j, p.Weight.pick(rng)); err != nil {
				return nil, err
			}
		}
	}
	return b.Build()
}

// MustRandomGraph как RandomGraph, но паникует при ошибке
func MustRandomGraph(rng *rand.Rand, p RandomParams) *BipartiteGraph {
	g, err := RandomGraph(rng, p)
	if err != nil {
		panic(err)
	}
	return g
}
