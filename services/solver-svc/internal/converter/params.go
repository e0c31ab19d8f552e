package converter

import (
	"strconv"

	"coassign/pkg/api/matchingv1"
	"coassign/pkg/config"
	"coassign/services/solver-svc/internal/algorithms"
)

// SolveSettings параметры одного решения после слияния с конфигурацией
type SolveSettings struct {
	Params    algorithms.Params
	Verify    bool
	SkipCache bool
}

// ToSolveSettings накладывает опции запроса на значения из конфигурации.
// Параметры не валидируются: это делает algorithms.Params.Validate.
func ToSolveSettings(defaults config.SolverConfig, opts *matchingv1.SolveOptions) SolveSettings {
	s := SolveSettings{
		Params: algorithms.DefaultParams().
			WithScalingFactor(defaults.ScalingFactor).
			WithCheckIntermediateStatus(defaults.CheckIntermediateStatus).
			WithGlobalRelabelFreqFactor(defaults.GlobalRelabelFreqFactor).
			WithPriceRefineLimit(defaults.PriceRefineLimit),
		Verify: defaults.VerifySolutions,
	}
	if opts == nil {
		return s
	}

	if opts.ScalingFactor != 0 {
		s.Params = s.Params.WithScalingFactor(opts.ScalingFactor)
	}
	if opts.CheckIntermediateStatus {
		s.Params = s.Params.WithCheckIntermediateStatus(true)
	}
	if opts.GlobalRelabelFreqFactor != nil {
		s.Params = s.Params.WithGlobalRelabelFreqFactor(*opts.GlobalRelabelFreqFactor)
	}
	if opts.PriceRefineLimit != nil {
		s.Params = s.Params.WithPriceRefineLimit(*opts.PriceRefineLimit)
	}
	if opts.Verify != nil {
		s.Verify = *opts.Verify
	}
	s.SkipCache = opts.SkipCache

	return s
}

// CacheKeyParts параметры, от которых зависит результат (ε-лестница,
// потенциалы) и которые поэтому входят в ключ кэша
func (s SolveSettings) CacheKeyParts() []string {
	return []string{
		"sf=" + strconv.FormatInt(s.Params.ScalingFactor, 10),
		"gr=" + strconv.FormatFloat(s.Params.GlobalRelabelFreqFactor, 'g', -1, 64),
		"pr=" + strconv.Itoa(s.Params.PriceRefineLimit),
	}
}
