package domain

import (
	"coassign/pkg/apperror"
)

// BipartiteGraph индексированный двудольный граф в CSR-представлении.
//
// Вершины 0..LSize - левая доля, LSize..NumV - правая. Для каждого входного
// ребра хранятся две дуги: прямая (left→right, вес w) и обратная
// (right→left, вес -w). Дуги одной вершины лежат подряд в
// [EdgeStarts[v], EdgeStarts[v+1]), Reverse[e] - парная дуга.
//
// После Build граф неизменяем.
type BipartiteGraph struct {
	LSize   int
	RSize   int
	NumV    int
	Flipped bool

	EdgeStarts     []int
	Sources        []int
	Targets        []int
	Reverse        []int
	Weights        []int64
	Multiplicities []int64
}

// NumArcs возвращает число дуг (всегда чётное)
func (g *BipartiteGraph) NumArcs() int {
	return len(g.Sources)
}

// NumEdges возвращает число входных рёбер
func (g *BipartiteGraph) NumEdges() int {
	return g.NumArcs() / 2
}

// ForwardEnd возвращает границу прямых дуг: [0, ForwardEnd()) - рёбра left→right
func (g *BipartiteGraph) ForwardEnd() int {
	return g.EdgeStarts[g.LSize]
}

// IsLeft проверяет принадлежность вершины левой доле
func (g *BipartiteGraph) IsLeft(v int) bool {
	return v < g.LSize
}

// MaxWeight возвращает максимальный вес ребра (0 для графа без рёбер)
func (g *BipartiteGraph) MaxWeight() int64 {
	var maxW int64
	for e := 0; e < g.ForwardEnd(); e++ {
		if g.Weights[e] > maxW {
			maxW = g.Weights[e]
		}
	}
	return maxW
}

// OriginalSizes возвращает размеры долей в исходной ориентации
func (g *BipartiteGraph) OriginalSizes() (left, right int) {
	if g.Flipped {
		return g.RSize, g.LSize
	}
	return g.LSize, g.RSize
}

// Edges возвращает входные рёбра в исходной ориентации, в порядке прямых дуг
func (g *BipartiteGraph) Edges() []Edge {
	edges := make([]Edge, 0, g.NumEdges())
	for e := 0; e < g.ForwardEnd(); e++ {
		l, r := g.Sources[e], g.Targets[e]-g.LSize
		if g.Flipped {
			l, r = r, l
		}
		edges = append(edges, Edge{Left: l, Right: r, Weight: g.Weights[e]})
	}
	return edges
}

// LeftMultiplicities возвращает кратности левой доли в исходной ориентации
func (g *BipartiteGraph) LeftMultiplicities() []int64 {
	if g.Flipped {
		return append([]int64(nil), g.Multiplicities[g.LSize:]...)
	}
	return append([]int64(nil), g.Multiplicities[:g.LSize]...)
}

// RightMultiplicities возвращает кратности правой доли в исходной ориентации
func (g *BipartiteGraph) RightMultiplicities() []int64 {
	if g.Flipped {
		return append([]int64(nil), g.Multiplicities[:g.LSize]...)
	}
	return append([]int64(nil), g.Multiplicities[g.LSize:]...)
}

// Edge входное ребро в исходной (не транспонированной) нумерации
type Edge struct {
	Left   int   `json:"left"`
	Right  int   `json:"right"`
	Weight int64 `json:"weight"`
}

// Builder накапливает рёбра и кратности и строит BipartiteGraph.
//
// Ошибки валидации возвращаются сразу из вызова, который их вызвал, и
// запоминаются, так что Build тоже завершится ошибкой.
type Builder struct {
	lSize, rSize int
	edges        []Edge
	multL        []int64
	multR        []int64
	errs         *apperror.ValidationErrors
}

// NewBuilder создаёт построитель для графа с долями размеров lSize и rSize
func NewBuilder(lSize, rSize int) *Builder {
	b := &Builder{
		lSize: lSize,
		rSize: rSize,
		errs:  apperror.NewValidationErrors(),
	}
	if lSize < 0 || rSize < 0 {
		b.errs.Add(apperror.Newf(apperror.CodeInvalidGraph,
			"side sizes must be non-negative, got %d and %d", lSize, rSize))
		return b
	}
	b.multL = make([]int64, lSize)
	b.multR = make([]int64, rSize)
	return b
}

func (b *Builder) checkLeft(leftID int) *apperror.Error {
	if leftID < 0 || leftID >= b.lSize {
		return apperror.NewWithField(apperror.CodeInvalidVertex,
			"left vertex id out of range", "left").
			WithDetails("id", leftID).
			WithDetails("size", b.lSize)
	}
	return nil
}

func (b *Builder) checkRight(rightID int) *apperror.Error {
	if rightID < 0 || rightID >= b.rSize {
		return apperror.NewWithField(apperror.CodeInvalidVertex,
			"right vertex id out of range", "right").
			WithDetails("id", rightID).
			WithDetails("size", b.rSize)
	}
	return nil
}

func (b *Builder) fail(err *apperror.Error) error {
	b.errs.Add(err)
	return err
}

// AddEdge добавляет ребро (leftID, rightID) с неотрицательным весом
func (b *Builder) AddEdge(leftID, rightID int, weight int64) error {
	if err := b.checkLeft(leftID); err != nil {
		return b.fail(err)
	}
	if err := b.checkRight(rightID); err != nil {
		return b.fail(err)
	}
	if weight < 0 {
		return b.fail(apperror.NewWithField(apperror.CodeNegativeWeight,
			"edge weight must be non-negative", "weight").
			WithDetails("weight", weight))
	}
	if weight > MaxWeight {
		return b.fail(apperror.NewWithField(apperror.CodeWeightOverflow,
			"edge weight exceeds the supported maximum", "weight").
			WithDetails("weight", weight).
			WithDetails("max", MaxWeight))
	}
	b.edges = append(b.edges, Edge{Left: leftID, Right: rightID, Weight: weight})
	return nil
}

// SetLeftMultiplicity задаёт кратность левой вершины
func (b *Builder) SetLeftMultiplicity(leftID int, multiplicity int64) error {
	if err := b.checkLeft(leftID); err != nil {
		return b.fail(err)
	}
	if err := checkMultiplicity(multiplicity); err != nil {
		return b.fail(err)
	}
	b.multL[leftID] = multiplicity
	return nil
}

// SetRightMultiplicity задаёт кратность правой вершины
func (b *Builder) SetRightMultiplicity(rightID int, multiplicity int64) error {
	if err := b.checkRight(rightID); err != nil {
		return b.fail(err)
	}
	if err := checkMultiplicity(multiplicity); err != nil {
		return b.fail(err)
	}
	b.multR[rightID] = multiplicity
	return nil
}

func checkMultiplicity(multiplicity int64) *apperror.Error {
	if multiplicity < 0 || multiplicity > MaxMultiplicity {
		return apperror.NewWithField(apperror.CodeInvalidMultiplicity,
			"multiplicity out of range", "multiplicity").
			WithDetails("multiplicity", multiplicity)
	}
	return nil
}

// Errors возвращает накопленные ошибки валидации
func (b *Builder) Errors() *apperror.ValidationErrors {
	return b.errs
}

// Build строит граф. Если левая доля не меньше правой, доли меняются
// местами и граф помечается как Flipped.
func (b *Builder) Build() (*BipartiteGraph, error) {
	if b.errs.HasErrors() {
		return nil, b.errs.First()
	}
	if b.lSize < b.rSize {
		return b.build(false), nil
	}
	return b.build(true), nil
}

// MustBuild строит граф или паникует
func (b *Builder) MustBuild() *BipartiteGraph {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}

func (b *Builder) build(flip bool) *BipartiteGraph {
	lSize, rSize := b.lSize, b.rSize
	multL, multR := b.multL, b.multR
	if flip {
		lSize, rSize = rSize, lSize
		multL, multR = multR, multL
	}
	numV := lSize + rSize
	numArcs := 2 * len(b.edges)

	g := &BipartiteGraph{
		LSize:          lSize,
		RSize:          rSize,
		NumV:           numV,
		Flipped:        flip,
		EdgeStarts:     make([]int, numV+1),
		Sources:        make([]int, numArcs),
		Targets:        make([]int, numArcs),
		Reverse:        make([]int, numArcs),
		Weights:        make([]int64, numArcs),
		Multiplicities: make([]int64, numV),
	}

	endpoints := func(e Edge) (int, int) {
		if flip {
			return e.Right, e.Left + lSize
		}
		return e.Left, e.Right + lSize
	}

	// Степени, затем префиксные суммы: EdgeStarts[v] указывает на конец блока v
	for _, e := range b.edges {
		u, v := endpoints(e)
		g.EdgeStarts[u]++
		g.EdgeStarts[v]++
	}
	for v := 0; v < numV; v++ {
		g.EdgeStarts[v+1] += g.EdgeStarts[v]
	}

	// Заполняем блоки с конца, после цикла EdgeStarts[v] - начало блока v
	for _, e := range b.edges {
		u, v := endpoints(e)
		g.EdgeStarts[u]--
		forward := g.EdgeStarts[u]
		g.EdgeStarts[v]--
		backward := g.EdgeStarts[v]

		g.Sources[forward], g.Targets[forward] = u, v
		g.Sources[backward], g.Targets[backward] = v, u
		g.Reverse[forward], g.Reverse[backward] = backward, forward
		g.Weights[forward], g.Weights[backward] = e.Weight, -e.Weight
	}

	copy(g.Multiplicities, multL)
	copy(g.Multiplicities[lSize:], multR)

	return g
}
