// Package converter переводит сообщения matchingv1 в доменные типы и обратно.
package converter

import (
	"math"
	"time"

	"coassign/pkg/api/matchingv1"
	"coassign/pkg/apperror"
	"coassign/pkg/cache"
	"coassign/pkg/config"
	"coassign/pkg/domain"
	"coassign/services/solver-svc/internal/algorithms"
	"coassign/services/solver-svc/internal/repository"
)

// DefaultMultiplicity кратность вершины, если запрос не задаёт кратности доли
const DefaultMultiplicity = 1

// GraphLimits ограничения размера графа. Нулевое поле снимает ограничение.
type GraphLimits struct {
	MaxVertices int
	MaxEdges    int
}

// LimitsFromConfig берёт ограничения из конфигурации решателя
func LimitsFromConfig(cfg config.SolverConfig) GraphLimits {
	return GraphLimits{MaxVertices: cfg.MaxVertices, MaxEdges: cfg.MaxEdges}
}

// Check проверяет размеры до выделения памяти под граф
func (l GraphLimits) Check(vertices, edges int64) error {
	if l.MaxVertices > 0 && vertices > int64(l.MaxVertices) {
		return apperror.Newf(apperror.CodeGraphTooLarge,
			"graph has %d vertices, limit is %d", vertices, l.MaxVertices).
			WithDetails("vertices", vertices).
			WithDetails("max_vertices", l.MaxVertices)
	}
	if l.MaxEdges > 0 && edges > int64(l.MaxEdges) {
		return apperror.Newf(apperror.CodeGraphTooLarge,
			"graph has %d edges, limit is %d", edges, l.MaxEdges).
			WithDetails("edges", edges).
			WithDetails("max_edges", l.MaxEdges)
	}
	return nil
}

// CheckGenerate оценивает наибольший граф, который может выдать генератор:
// верхние границы долей и ожидаемое число рёбер при заданной плотности.
// Фактический размер сгенерированного графа проверяется отдельно.
func (l GraphLimits) CheckGenerate(req *matchingv1.GenerateRequest) error {
	lMax, rMax := req.LSize.Max-1, req.RSize.Max-1
	if lMax <= 0 || rMax <= 0 {
		// Пустые и некорректные диапазоны отвергнет генератор
		return nil
	}
	return l.Check(saturate(float64(lMax)+float64(rMax)),
		saturate(float64(lMax)*float64(rMax)*min(max(req.Density, 0), 1)))
}

func saturate(f float64) int64 {
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(f)
}

// ToGraph строит граф из запроса в пределах limits.
// Все ошибки - *apperror.Error с кодом построителя.
func ToGraph(req *matchingv1.SolveRequest, limits GraphLimits) (*domain.BipartiteGraph, error) {
	if req == nil {
		return nil, apperror.ErrNilGraph
	}
	if req.LSize <= 0 || req.RSize <= 0 {
		return nil, apperror.ErrEmptySide
	}
	if err := limits.Check(int64(req.LSize)+int64(req.RSize), int64(len(req.Edges))); err != nil {
		return nil, err
	}

	b := domain.NewBuilder(req.LSize, req.RSize)

	for i := 0; i < req.LSize; i++ {
		_ = b.SetLeftMultiplicity(i, multiplicityAt(req.LeftMultiplicities, i)) //nolint:errcheck // накапливается в Builder
	}
	for i := 0; i < req.RSize; i++ {
		_ = b.SetRightMultiplicity(i, multiplicityAt(req.RightMultiplicities, i)) //nolint:errcheck // накапливается в Builder
	}
	for _, e := range req.Edges {
		_ = b.AddEdge(e.Left, e.Right, e.Weight) //nolint:errcheck // накапливается в Builder
	}

	return b.Build()
}

func multiplicityAt(mults []int64, i int) int64 {
	if len(mults) == 0 {
		return DefaultMultiplicity
	}
	if i >= len(mults) {
		// Длину проверяет SolveRequest.Validate; сюда попадаем только при прямом вызове
		return -1
	}
	return mults[i]
}

// ToRandomParams переводит запрос генерации в параметры генератора
func ToRandomParams(req *matchingv1.GenerateRequest) domain.RandomParams {
	return domain.RandomParams{
		LSize:             domain.Range(req.LSize),
		RSize:             domain.Range(req.RSize),
		LeftMultiplicity:  domain.Range(req.LeftMultiplicity),
		RightMultiplicity: domain.Range(req.RightMultiplicity),
		Weight:            domain.Range(req.Weight),
		Density:           req.Density,
	}
}

// ToSolveResponse собирает ответ из результата решателя
func ToSolveResponse(res *algorithms.Result, verified bool) *matchingv1.SolveResponse {
	sol := res.Solution
	return &matchingv1.SolveResponse{
		Value:             sol.Value(),
		Matches:           toMatches(sol.Matches()),
		LeftPotentials:    sol.LeftPotentials(),
		RightPotentials:   sol.RightPotentials(),
		Phases:            ToPhaseStats(res.Phases),
		Verified:          verified,
		ComputationTimeMs: durationMs(res.Duration),
	}
}

// ToPhaseStats переводит статистику фаз решателя
func ToPhaseStats(phases []algorithms.PhaseStats) []matchingv1.PhaseStats {
	if len(phases) == 0 {
		return nil
	}
	out := make([]matchingv1.PhaseStats, len(phases))
	for i, ph := range phases {
		out[i] = matchingv1.PhaseStats{
			Epsilon:        ph.Epsilon,
			PriceRefined:   ph.PriceRefined,
			GlobalRelabels: ph.GlobalRelabels,
			Relabels:       ph.Relabels,
			Pushes:         ph.Pushes,
			DurationMs:     durationMs(ph.Duration),
		}
	}
	return out
}

// ToCachedSolution готовит ответ к записи в кэш
func ToCachedSolution(resp *matchingv1.SolveResponse) *cache.CachedSolution {
	entry := &cache.CachedSolution{
		Value:             resp.Value,
		Matches:           make([]domain.Match, len(resp.Matches)),
		LeftPotentials:    resp.LeftPotentials,
		RightPotentials:   resp.RightPotentials,
		Verified:          resp.Verified,
		ComputationTimeMs: resp.ComputationTimeMs,
	}
	for i, m := range resp.Matches {
		entry.Matches[i] = domain.Match(m)
	}
	for _, ph := range resp.Phases {
		entry.Phases = append(entry.Phases, cache.CachedPhase(ph))
	}
	return entry
}

// FromCachedSolution восстанавливает ответ из кэша
func FromCachedSolution(c *cache.CachedSolution) *matchingv1.SolveResponse {
	resp := &matchingv1.SolveResponse{
		Value:             c.Value,
		Matches:           toMatches(c.Matches),
		LeftPotentials:    c.LeftPotentials,
		RightPotentials:   c.RightPotentials,
		Verified:          c.Verified,
		CacheHit:          true,
		ComputationTimeMs: c.ComputationTimeMs,
	}
	for _, ph := range c.Phases {
		resp.Phases = append(resp.Phases, matchingv1.PhaseStats(ph))
	}
	return resp
}

// ToRunRecord переводит запись репозитория в сообщение
func ToRunRecord(run *repository.Run) *matchingv1.RunRecord {
	rec := &matchingv1.RunRecord{
		RunID:             run.ID,
		RequestID:         run.RequestID,
		Source:            run.Source,
		GraphHash:         run.GraphHash,
		LSize:             run.LeftSize,
		RSize:             run.RightSize,
		EdgeCount:         run.EdgeCount,
		ScalingFactor:     run.ScalingFactor,
		Value:             run.Value,
		MatchedPairs:      run.MatchedPairs,
		Verified:          run.Verified,
		CacheHit:          run.CacheHit,
		ComputationTimeMs: run.ComputationTimeMs,
		Tags:              run.Tags,
		CreatedAt:         run.CreatedAt,
	}
	for _, p := range run.Phases {
		rec.Phases = append(rec.Phases, matchingv1.PhaseStats(p))
	}
	return rec
}

// ToRunPhases переводит фазы ответа в строки истории
func ToRunPhases(phases []matchingv1.PhaseStats) []repository.Phase {
	out := make([]repository.Phase, 0, len(phases))
	for _, ph := range phases {
		out = append(out, repository.Phase(ph))
	}
	return out
}

// ToListOptions переводит запрос списка в опции репозитория
func ToListOptions(req *matchingv1.ListRunsRequest) *repository.ListOptions {
	return &repository.ListOptions{
		Limit:  req.Limit,
		Offset: req.Offset,
		Filter: &repository.ListFilter{
			Source:    req.Source,
			GraphHash: req.GraphHash,
			Tags:      req.Tags,
		},
	}
}

func toMatches(ms []domain.Match) []matchingv1.Match {
	out := make([]matchingv1.Match, len(ms))
	for i, m := range ms {
		out[i] = matchingv1.Match(m)
	}
	return out
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
