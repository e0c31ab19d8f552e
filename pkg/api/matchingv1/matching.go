// Package matchingv1 описывает RPC-контракт сервиса паросочетаний
// coassign.matching.v1.MatchingService: сообщения, JSON-кодек и
// дескриптор сервиса для google.golang.org/grpc.
package matchingv1

import (
	"time"

	"coassign/pkg/apperror"
)

// Источники запуска
const (
	SourceSolve    = "solve"
	SourceGenerate = "generate"
)

// EdgesPerCostUnit число рёбер в одной единице бюджета клиента
const EdgesPerCostUnit = 1000

// edgeCost стоимость графа с edges рёбрами, не меньше одной единицы
func edgeCost(edges int64) int {
	if edges <= 0 {
		return 1
	}
	return 1 + int(edges/EdgesPerCostUnit)
}

// Edge ребро графа в нумерации вызывающей стороны
type Edge struct {
	Left   int   `json:"left"`
	Right  int   `json:"right"`
	Weight int64 `json:"weight"`
}

// Match пара в найденном паросочетании
type Match struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

// SolveOptions параметры решателя. Незаданные поля берутся из конфигурации.
type SolveOptions struct {
	ScalingFactor           int64    `json:"scaling_factor,omitempty"`
	CheckIntermediateStatus bool     `json:"check_intermediate_status,omitempty"`
	GlobalRelabelFreqFactor *float64 `json:"global_relabel_freq_factor,omitempty"`
	PriceRefineLimit        *int     `json:"price_refine_limit,omitempty"`
	Verify                  *bool    `json:"verify,omitempty"`
	SkipCache               bool     `json:"skip_cache,omitempty"`
}

// SolveRequest запрос на решение задачи
type SolveRequest struct {
	LSize               int           `json:"l_size"`
	RSize               int           `json:"r_size"`
	Edges               []Edge        `json:"edges"`
	LeftMultiplicities  []int64       `json:"left_multiplicities,omitempty"`
	RightMultiplicities []int64       `json:"right_multiplicities,omitempty"`
	Options             *SolveOptions `json:"options,omitempty"`
	Tags                []string      `json:"tags,omitempty"`
}

// Validate проверяет форму запроса. Содержимое графа проверяет построитель.
func (r *SolveRequest) Validate() error {
	if r.LSize <= 0 || r.RSize <= 0 {
		return apperror.Newf(apperror.CodeEmptySide,
			"both sides must be non-empty, got l_size=%d r_size=%d", r.LSize, r.RSize)
	}
	if n := len(r.LeftMultiplicities); n != 0 && n != r.LSize {
		return apperror.Newf(apperror.CodeInvalidMultiplicity,
			"left_multiplicities has %d entries, want %d", n, r.LSize).WithField("left_multiplicities")
	}
	if n := len(r.RightMultiplicities); n != 0 && n != r.RSize {
		return apperror.Newf(apperror.CodeInvalidMultiplicity,
			"right_multiplicities has %d entries, want %d", n, r.RSize).WithField("right_multiplicities")
	}
	return nil
}

// RateCost стоимость запроса в единицах бюджета клиента
func (r *SolveRequest) RateCost() int {
	return edgeCost(int64(len(r.Edges)))
}

// Range полуоткрытый диапазон [Min, Max)
type Range struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// GenerateRequest параметры случайного графа
type GenerateRequest struct {
	LSize             Range         `json:"l_size"`
	RSize             Range         `json:"r_size"`
	LeftMultiplicity  Range         `json:"left_multiplicity"`
	RightMultiplicity Range         `json:"right_multiplicity"`
	Weight            Range         `json:"weight"`
	Density           float64       `json:"density"`
	Seed              int64         `json:"seed"`
	Options           *SolveOptions `json:"options,omitempty"`
	Tags              []string      `json:"tags,omitempty"`
}

// RateCost оценивает стоимость по наибольшему графу, который может
// получиться: число рёбер заранее неизвестно
func (r *GenerateRequest) RateCost() int {
	l, rs := r.LSize.Max-1, r.RSize.Max-1
	if l <= 0 || rs <= 0 || r.Density <= 0 {
		return 1
	}
	density := min(r.Density, 1)
	return edgeCost(int64(float64(l) * float64(rs) * density))
}

// PhaseStats статистика одной ε-фазы
type PhaseStats struct {
	Epsilon        int64   `json:"epsilon"`
	PriceRefined   bool    `json:"price_refined"`
	GlobalRelabels int     `json:"global_relabels"`
	Relabels       int64   `json:"relabels"`
	Pushes         int64   `json:"pushes"`
	DurationMs     float64 `json:"duration_ms"`
}

// SolveResponse оптимальное паросочетание с двойственным сертификатом
type SolveResponse struct {
	Value             int64        `json:"value"`
	Matches           []Match      `json:"matches"`
	LeftPotentials    []int64      `json:"left_potentials"`
	RightPotentials   []int64      `json:"right_potentials"`
	Phases            []PhaseStats `json:"phases,omitempty"`
	Verified          bool         `json:"verified"`
	CacheHit          bool         `json:"cache_hit"`
	RunID             string       `json:"run_id,omitempty"`
	GraphHash         string       `json:"graph_hash"`
	ComputationTimeMs float64      `json:"computation_time_ms"`
}

// GetRunRequest запрос записи истории
type GetRunRequest struct {
	RunID string `json:"run_id"`
}

// Validate проверяет наличие идентификатора
func (r *GetRunRequest) Validate() error {
	if r.RunID == "" {
		return apperror.NewWithField(apperror.CodeInvalidArgument, "run_id is required", "run_id")
	}
	return nil
}

// RunRecord запись истории запусков
type RunRecord struct {
	RunID             string       `json:"run_id"`
	RequestID         string       `json:"request_id,omitempty"`
	Source            string       `json:"source"`
	GraphHash         string       `json:"graph_hash"`
	LSize             int          `json:"l_size"`
	RSize             int          `json:"r_size"`
	EdgeCount         int          `json:"edge_count"`
	ScalingFactor     int64        `json:"scaling_factor"`
	Value             int64        `json:"value"`
	MatchedPairs      int          `json:"matched_pairs"`
	Verified          bool         `json:"verified"`
	CacheHit          bool         `json:"cache_hit"`
	ComputationTimeMs float64      `json:"computation_time_ms"`
	Tags              []string     `json:"tags,omitempty"`
	Phases            []PhaseStats `json:"phases,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
}

// ListRunsRequest страница истории
type ListRunsRequest struct {
	Limit     int      `json:"limit,omitempty"`
	Offset    int      `json:"offset,omitempty"`
	Source    string   `json:"source,omitempty"`
	GraphHash string   `json:"graph_hash,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// Validate проверяет пагинацию
func (r *ListRunsRequest) Validate() error {
	if r.Limit < 0 || r.Offset < 0 {
		return apperror.New(apperror.CodeInvalidPagination, "limit and offset must be non-negative")
	}
	switch r.Source {
	case "", SourceSolve, SourceGenerate:
		return nil
	default:
		return apperror.Newf(apperror.CodeInvalidArgument, "unknown source %q", r.Source).WithField("source")
	}
}

// ListRunsResponse страница истории и общее число записей
type ListRunsResponse struct {
	Runs  []*RunRecord `json:"runs"`
	Total int64        `json:"total"`
}
