package service

import (
	"context"
	"errors"
	"math/rand"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/status"

	"coassign/pkg/api/matchingv1"
	"coassign/pkg/apperror"
	"coassign/pkg/cache"
	"coassign/pkg/config"
	"coassign/pkg/domain"
	"coassign/pkg/logger"
	"coassign/pkg/metrics"
	"coassign/pkg/telemetry"
	"coassign/services/solver-svc/internal/algorithms"
	"coassign/services/solver-svc/internal/converter"
	"coassign/services/solver-svc/internal/repository"
)

// MatchingService реализация matchingv1.MatchingServiceServer
type MatchingService struct {
	matchingv1.UnimplementedMatchingServiceServer

	version string
	cfg     config.SolverConfig
	pool    *algorithms.SolverPool
	metrics *metrics.Metrics
	cache   *cache.SolutionCache
	repo    repository.RunRepository
}

// Option настраивает MatchingService
type Option func(*MatchingService)

// WithMetrics включает запись метрик
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *MatchingService) { s.metrics = m }
}

// WithCache включает кэш решений
func WithCache(c *cache.SolutionCache) Option {
	return func(s *MatchingService) { s.cache = c }
}

// WithRepository включает историю запусков
func WithRepository(r repository.RunRepository) Option {
	return func(s *MatchingService) { s.repo = r }
}

// NewMatchingService создаёт сервис. Без кэша и репозитория сервис
// только решает; GetRun и ListRuns отвечают Unimplemented.
func NewMatchingService(version string, cfg config.SolverConfig, opts ...Option) *MatchingService {
	s := &MatchingService{
		version: version,
		cfg:     cfg,
		pool:    algorithms.NewSolverPool(cfg.MaxConcurrent),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Solve решает задачу, заданную явным графом
func (s *MatchingService) Solve(ctx context.Context, req *matchingv1.SolveRequest) (*matchingv1.SolveResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "MatchingService.Solve",
		trace.WithAttributes(
			attribute.Int(telemetry.AttrGraphEdges, len(req.Edges)),
		),
	)
	defer span.End()

	g, err := converter.ToGraph(req, converter.LimitsFromConfig(s.cfg))
	if err != nil {
		return nil, s.fail(ctx, matchingv1.SourceSolve, err)
	}

	return s.solveGraph(ctx, matchingv1.SourceSolve, g, req.Options, req.Tags)
}

// GenerateAndSolve генерирует случайный граф по seed и решает его.
// Одинаковые параметры и seed дают один и тот же граф.
func (s *MatchingService) GenerateAndSolve(ctx context.Context, req *matchingv1.GenerateRequest) (*matchingv1.SolveResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "MatchingService.GenerateAndSolve",
		trace.WithAttributes(
			attribute.Int64("generate.seed", req.Seed),
			attribute.Float64("generate.density", req.Density),
		),
	)
	defer span.End()

	params := converter.ToRandomParams(req)
	if err := params.Validate(); err != nil {
		return nil, s.fail(ctx, matchingv1.SourceGenerate, err)
	}
	// Размер оцениваем по параметрам до генерации
	limits := converter.LimitsFromConfig(s.cfg)
	if err := limits.CheckGenerate(req); err != nil {
		return nil, s.fail(ctx, matchingv1.SourceGenerate, err)
	}

	rng := rand.New(rand.NewSource(req.Seed)) //nolint:gosec // воспроизводимость важнее криптостойкости
	g, err := domain.RandomGraph(rng, params)
	if err != nil {
		return nil, s.fail(ctx, matchingv1.SourceGenerate, err)
	}
	if g.LSize == 0 || g.RSize == 0 {
		return nil, s.fail(ctx, matchingv1.SourceGenerate, apperror.ErrEmptySide)
	}
	l, r := g.OriginalSizes()
	if err := limits.Check(int64(l+r), int64(g.NumEdges())); err != nil {
		return nil, s.fail(ctx, matchingv1.SourceGenerate, err)
	}

	return s.solveGraph(ctx, matchingv1.SourceGenerate, g, req.Options, req.Tags)
}

// GetRun возвращает запись истории
func (s *MatchingService) GetRun(ctx context.Context, req *matchingv1.GetRunRequest) (*matchingv1.RunRecord, error) {
	ctx, span := telemetry.StartSpan(ctx, "MatchingService.GetRun",
		trace.WithAttributes(attribute.String(telemetry.AttrRunID, req.RunID)),
	)
	defer span.End()

	if s.repo == nil {
		return nil, apperror.ToGRPC(apperror.ErrHistoryOff)
	}

	run, err := s.repo.GetByID(ctx, req.RunID)
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, repositoryError(err)
	}
	return converter.ToRunRecord(run), nil
}

// ListRuns возвращает страницу истории, новые записи первыми
func (s *MatchingService) ListRuns(ctx context.Context, req *matchingv1.ListRunsRequest) (*matchingv1.ListRunsResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "MatchingService.ListRuns")
	defer span.End()

	if s.repo == nil {
		return nil, apperror.ToGRPC(apperror.ErrHistoryOff)
	}

	runs, total, err := s.repo.List(ctx, converter.ToListOptions(req))
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, repositoryError(err)
	}

	resp := &matchingv1.ListRunsResponse{
		Runs:  make([]*matchingv1.RunRecord, 0, len(runs)),
		Total: total,
	}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, converter.ToRunRecord(run))
	}
	return resp, nil
}

// solveGraph общий путь Solve и GenerateAndSolve: кэш, решение,
// проверка сертификата, метрики, запись в кэш и историю
func (s *MatchingService) solveGraph(
	ctx context.Context,
	source string,
	g *domain.BipartiteGraph,
	opts *matchingv1.SolveOptions,
	tags []string,
) (*matchingv1.SolveResponse, error) {
	settings := converter.ToSolveSettings(s.cfg, opts)
	if err := settings.Params.Validate(); err != nil {
		return nil, s.fail(ctx, source, err)
	}

	l, r := g.OriginalSizes()
	graphHash := cache.GraphHash(g)
	optionsHash := cache.OptionsHash(settings.CacheKeyParts()...)

	telemetry.SetAttributes(ctx, telemetry.GraphAttributes(l, r, g.NumEdges(), g.Flipped)...)
	telemetry.SetAttributes(ctx,
		attribute.String(telemetry.AttrGraphHash, graphHash),
		attribute.Int64(telemetry.AttrScalingFactor, settings.Params.ScalingFactor),
	)
	if s.metrics != nil {
		s.metrics.RecordGraphSize(source, l+r, g.NumEdges())
	}

	log := logger.WithContext(ctx,
		"source", source,
		"graph_hash", graphHash,
		"left", l,
		"right", r,
		"edges", g.NumEdges(),
	)

	if resp, ok := s.lookup(ctx, graphHash, optionsHash, settings); ok {
		if s.metrics != nil {
			s.metrics.RecordSolveOperation(source, metrics.StatusCacheHit, 0, resp.Value, len(resp.Phases))
		}
		resp.GraphHash = graphHash
		s.recordRun(ctx, source, g, graphHash, settings, resp, tags)
		log.Debug("solution served from cache", "value", resp.Value)
		return resp, nil
	}

	params := settings.Params
	if s.metrics != nil {
		rec := s.metrics.NewSolverRecorder()
		params = params.WithRecorder(rec)
		defer rec.Flush()
	}

	solveCtx := ctx
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	res, err := s.pool.SolvePooled(solveCtx, g, params)
	if err != nil {
		if ctxErr := solveCtx.Err(); ctxErr != nil {
			telemetry.SetError(ctx, ctxErr)
			s.recordFailure(source)
			return nil, status.FromContextError(ctxErr).Err()
		}
		return nil, s.fail(ctx, source, err)
	}

	if settings.Verify {
		if err := res.Solution.Check(); err != nil {
			if s.metrics != nil {
				s.metrics.RecordVerificationFailure()
			}
			log.Error("certificate check failed", "error", err)
			return nil, s.fail(ctx, source, err)
		}
	}

	resp := converter.ToSolveResponse(res, settings.Verify)
	resp.GraphHash = graphHash

	telemetry.SetAttributes(ctx, telemetry.SolverAttributes(
		settings.Params.ScalingFactor, len(res.Phases), res.TotalPushes(), res.TotalRelabels())...)
	telemetry.SetAttributes(ctx, telemetry.MatchingAttributes(resp.Value, len(resp.Matches), resp.Verified)...)
	telemetry.SetAttributes(ctx, attribute.Bool(telemetry.AttrCacheHit, false))

	if s.metrics != nil {
		s.metrics.RecordSolveOperation(source, metrics.StatusSuccess, res.Duration, resp.Value, len(res.Phases))
	}

	s.store(ctx, graphHash, optionsHash, settings, resp)
	s.recordRun(ctx, source, g, graphHash, settings, resp, tags)

	if logger.DebugEnabled() {
		gs := domain.CalculateGraphStatistics(g)
		ms := domain.CalculateMatchingStatistics(res.Solution)
		log.Debug("matching statistics",
			"density", gs.Density,
			"isolated", gs.IsolatedCount,
			"saturated", ms.SaturatedVertices,
			"unmatched", ms.UnmatchedVertices,
			"utilization", ms.AverageUtilization,
			"pushes", res.TotalPushes(),
			"relabels", res.TotalRelabels(),
		)
	}

	log.Info("matching solved",
		"value", resp.Value,
		"matches", len(resp.Matches),
		"phases", len(res.Phases),
		"verified", resp.Verified,
		"duration_ms", resp.ComputationTimeMs,
	)

	return resp, nil
}

// lookup ищет решение в кэше. Ошибки кэша не прерывают решение.
func (s *MatchingService) lookup(
	ctx context.Context,
	graphHash, optionsHash string,
	settings converter.SolveSettings,
) (*matchingv1.SolveResponse, bool) {
	if s.cache == nil || settings.SkipCache {
		return nil, false
	}

	cached, found, err := s.cache.Get(ctx, graphHash, optionsHash)
	if err != nil {
		logger.WithContext(ctx).Warn("cache lookup failed", "error", err)
		return nil, false
	}
	// Непроверенная запись не годится, если проверка запрошена
	if found && settings.Verify && !cached.Verified {
		found = false
	}
	if s.metrics != nil {
		s.metrics.RecordCacheLookup(found)
	}
	telemetry.SetAttributes(ctx, attribute.Bool(telemetry.AttrCacheHit, found))
	if !found {
		return nil, false
	}

	telemetry.AddEvent(ctx, "cache_hit", attribute.Int64(telemetry.AttrMatchingValue, cached.Value))
	return converter.FromCachedSolution(cached), true
}

func (s *MatchingService) store(
	ctx context.Context,
	graphHash, optionsHash string,
	settings converter.SolveSettings,
	resp *matchingv1.SolveResponse,
) {
	if s.cache == nil || settings.SkipCache {
		return
	}
	if err := s.cache.Set(ctx, graphHash, optionsHash, converter.ToCachedSolution(resp), 0); err != nil {
		logger.WithContext(ctx).Warn("failed to cache solution", "error", err)
	}
}

// recordRun пишет запуск в историю. Ошибка записи не отменяет ответ,
// но RunID в нём останется пустым.
func (s *MatchingService) recordRun(
	ctx context.Context,
	source string,
	g *domain.BipartiteGraph,
	graphHash string,
	settings converter.SolveSettings,
	resp *matchingv1.SolveResponse,
	tags []string,
) {
	if s.repo == nil {
		return
	}

	requestID, _ := logger.RequestIDFromContext(ctx)
	l, r := g.OriginalSizes()
	run := &repository.Run{
		RequestID:         requestID,
		Source:            source,
		GraphHash:         graphHash,
		LeftSize:          l,
		RightSize:         r,
		EdgeCount:         g.NumEdges(),
		ScalingFactor:     settings.Params.ScalingFactor,
		Value:             resp.Value,
		MatchedPairs:      len(resp.Matches),
		Verified:          resp.Verified,
		CacheHit:          resp.CacheHit,
		ComputationTimeMs: resp.ComputationTimeMs,
		Tags:              tags,
		Phases:            converter.ToRunPhases(resp.Phases),
	}

	if err := s.repo.Create(ctx, run); err != nil {
		logger.WithContext(ctx).Warn("failed to record matching run", "error", err)
		telemetry.RecordError(ctx, err)
		return
	}
	resp.RunID = run.ID
}

// fail переводит ошибку в статус gRPC и отмечает её в метриках и спане
func (s *MatchingService) fail(ctx context.Context, source string, err error) error {
	telemetry.SetError(ctx, err)
	s.recordFailure(source)
	return apperror.ToGRPC(err)
}

func (s *MatchingService) recordFailure(source string) {
	if s.metrics != nil {
		s.metrics.RecordSolveOperation(source, metrics.StatusError, 0, 0, 0)
	}
}

func repositoryError(err error) error {
	switch {
	case errors.Is(err, repository.ErrRunNotFound):
		return apperror.ToGRPC(apperror.ErrRunNotFound)
	case errors.Is(err, repository.ErrInvalidRunID):
		return apperror.ToGRPC(apperror.Wrap(err, apperror.CodeInvalidArgument, "run_id must be a UUID"))
	default:
		return apperror.ToGRPC(apperror.Wrap(err, apperror.CodeInternal, "run history query failed"))
	}
}
