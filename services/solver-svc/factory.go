// services/solver-svc/factory.go
package solversvc

import (
	"coassign/pkg/api/matchingv1"
	"coassign/pkg/config"
	"coassign/services/solver-svc/internal/algorithms"
	"coassign/services/solver-svc/internal/service"
)

// NewBenchmarkServer создаёт экземпляр сервиса для внешних бенчмарков.
// Он возвращает интерфейс, скрывая внутреннюю структуру реализации.
// Кэш и история запусков отключены: замеряется только решатель.
func NewBenchmarkServer() matchingv1.MatchingServiceServer {
	return NewServer("benchmark", config.SolverConfig{
		ScalingFactor:           algorithms.DefaultScalingFactor,
		GlobalRelabelFreqFactor: algorithms.DefaultGlobalRelabelFreqFactor,
		VerifySolutions:         true,
	})
}

// NewServer создаёт сервис без кэша и истории с заданными параметрами решателя
func NewServer(version string, cfg config.SolverConfig) matchingv1.MatchingServiceServer {
	return service.NewMatchingService(version, cfg)
}
