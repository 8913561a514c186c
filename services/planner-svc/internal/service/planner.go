// Package service runs the planner end to end: cache lookup, contiguity
// repair with optional bridging of isolated components, seeding, run
// persistence and report rendering.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"redistrict/pkg/apperror"
	"redistrict/pkg/cache"
	"redistrict/pkg/domain"
	"redistrict/pkg/logger"
	"redistrict/pkg/metrics"
	"redistrict/pkg/telemetry"
	"redistrict/services/planner-svc/internal/engine"
	"redistrict/services/planner-svc/internal/report"
	"redistrict/services/planner-svc/internal/repository"
)

// Config политика сервиса
type Config struct {
	BridgeIsolated    bool
	BridgeFactor      float64
	MaxBridgeAttempts int
	PersistRuns       bool
	RunTimeout        time.Duration
	CacheTTL          time.Duration
}

// DefaultConfig возвращает политику по умолчанию: без мостов и без сохранения
func DefaultConfig() Config {
	return Config{
		BridgeFactor:      1,
		MaxBridgeAttempts: 3,
	}
}

// CachedPlan значение кэша планов
type CachedPlan struct {
	Labels  map[string]domain.District `json:"labels"`
	Result  *engine.Result             `json:"result"`
	Bridges []domain.Edge              `json:"bridges,omitempty"`
}

// ReportRequest параметры отчёта
type ReportRequest struct {
	Format  report.Format
	Options report.Options
}

// PlanRequest запрос на запуск
type PlanRequest struct {
	Name    string
	Graph   *domain.Graph
	Options engine.Options
	// Persist сохраняет запуск даже при выключенном PersistRuns
	Persist bool
	Report  *ReportRequest
}

// PlanResponse итог запуска
type PlanResponse struct {
	RunID     string
	GraphHash string
	CacheHit  bool
	Result    *engine.Result
	Stats     *domain.PlanStatistics
	Bridges   []domain.Edge
	Report    []byte
}

// PlannerService сервис планирования округов
type PlannerService struct {
	engine  *engine.Engine
	plans   *cache.PlanCache[CachedPlan]
	repo    repository.RunRepository
	cfg     Config
	log     *slog.Logger
	metrics *metrics.Metrics
	tracker *metrics.RunTracker
}

// Option настраивает сервис
type Option func(*PlannerService)

// WithCache включает кэш результатов
func WithCache(c cache.Cache, prefix string) Option {
	return func(s *PlannerService) {
		if c != nil {
			s.plans = cache.NewPlanCache[CachedPlan](c, prefix, s.cfg.CacheTTL)
		}
	}
}

// WithRepository задаёт хранилище запусков
func WithRepository(r repository.RunRepository) Option {
	return func(s *PlannerService) {
		s.repo = r
	}
}

// WithLogger задаёт логгер
func WithLogger(l *slog.Logger) Option {
	return func(s *PlannerService) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics задаёт метрики; nil отключает их
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *PlannerService) {
		s.metrics = m
	}
}

// WithEngine задаёт движок
func WithEngine(e *engine.Engine) Option {
	return func(s *PlannerService) {
		if e != nil {
			s.engine = e
		}
	}
}

// NewPlannerService создаёт сервис
func NewPlannerService(cfg Config, opts ...Option) *PlannerService {
	if cfg.BridgeFactor < 1 {
		cfg.BridgeFactor = 1
	}

	s := &PlannerService{
		cfg:     cfg,
		log:     logger.WithComponent("planner"),
		metrics: metrics.Get(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = engine.New(engine.WithLogger(s.log), engine.WithMetrics(s.metrics))
	}
	if s.metrics != nil {
		s.tracker = metrics.NewRunTracker(s.metrics.RunsInFlight)
	}
	return s
}

// cacheParams всё, что кроме графа влияет на результат
type cacheParams struct {
	Options           engine.Options `json:"options"`
	BridgeIsolated    bool           `json:"bridge_isolated"`
	BridgeFactor      float64        `json:"bridge_factor"`
	MaxBridgeAttempts int            `json:"max_bridge_attempts"`
}

// Plan ремонтирует и досевает граф запроса на месте
func (s *PlannerService) Plan(ctx context.Context, req *PlanRequest) (*PlanResponse, error) {
	if req == nil || req.Graph == nil {
		return nil, apperror.ErrNilGraph
	}
	opts := req.Options.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	ctx, span := telemetry.StartSpan(ctx, "PlannerService.Plan",
		telemetry.WithAttributes(attribute.String(telemetry.AttrRunName, req.Name)),
	)
	defer span.End()

	if s.tracker != nil {
		s.tracker.Start(req.Name)
		defer s.tracker.End(req.Name)
	}

	g := req.Graph
	if s.metrics != nil {
		s.metrics.RecordGraphSize("plan", g.NodeCount(), g.EdgeCount())
	}

	var key cache.PlanKey
	if s.plans != nil {
		var err error
		key, err = s.plans.Key(g, s.params(opts))
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInternal, "failed to build cache key")
		}
		resp, err := s.fromCache(ctx, g, key)
		if err != nil {
			return nil, err
		}
		if resp != nil {
			return s.finish(ctx, req, opts, resp)
		}
	}

	start := time.Now()
	res, bridges, err := s.runWithBridges(ctx, g, opts)
	elapsed := time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordRun(runStatus(err), elapsed)
	}
	if err != nil {
		telemetry.SetError(ctx, err)
		s.persistFailure(ctx, req, opts, cache.GraphHash(g), elapsed, err)
		return nil, err
	}

	resp := &PlanResponse{
		GraphHash: key.GraphHash,
		Result:    res,
		Bridges:   bridges,
	}
	if resp.GraphHash == "" {
		resp.GraphHash = cache.GraphHash(g)
	}

	if s.plans != nil {
		cached := CachedPlan{Labels: g.Labels(), Result: res, Bridges: bridges}
		if err := s.plans.Set(ctx, key, cached, s.cfg.CacheTTL); err != nil {
			s.log.Warn("failed to cache plan", "graph_hash", key.GraphHash, "error", err)
		}
	}

	return s.finish(ctx, req, opts, resp)
}

func (s *PlannerService) params(opts engine.Options) cacheParams {
	return cacheParams{
		Options:           opts,
		BridgeIsolated:    s.cfg.BridgeIsolated,
		BridgeFactor:      s.cfg.BridgeFactor,
		MaxBridgeAttempts: s.cfg.MaxBridgeAttempts,
	}
}

// fromCache восстанавливает результат из кэша: мосты и метки переносятся на граф
func (s *PlannerService) fromCache(ctx context.Context, g *domain.Graph, key cache.PlanKey) (*PlanResponse, error) {
	entry, found, err := s.plans.Get(ctx, key)
	if err != nil {
		s.log.Warn("cache lookup failed", "graph_hash", key.GraphHash, "error", err)
	}
	if s.metrics != nil {
		s.metrics.RecordCacheLookup(found)
	}
	if !found {
		return nil, nil
	}

	for i := range entry.Value.Bridges {
		b := entry.Value.Bridges[i]
		if g.HasEdge(b.A, b.B) {
			continue
		}
		if err := g.AddEdge(&b); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInternal, "failed to restore cached bridge")
		}
	}
	if err := g.ApplyLabels(entry.Value.Labels); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "failed to restore cached labels")
	}

	telemetry.AddEvent(ctx, "cache_hit", attribute.String(telemetry.AttrGraphHash, key.GraphHash))
	s.log.Debug("plan served from cache", "graph_hash", key.GraphHash)

	return &PlanResponse{
		GraphHash: key.GraphHash,
		CacheHit:  true,
		Result:    entry.Value.Result,
		Bridges:   entry.Value.Bridges,
	}, nil
}

// runWithBridges запускает движок; изолированная компонента соединяется
// мостом с основной частью округа, после чего запуск повторяется
func (s *PlannerService) runWithBridges(ctx context.Context, g *domain.Graph, opts engine.Options) (*engine.Result, []domain.Edge, error) {
	var bridges []domain.Edge
	attempts := 0

	for {
		res, err := s.engine.Run(ctx, g, opts)
		if err == nil {
			telemetry.SetAttributes(ctx, attribute.Int(telemetry.AttrBridgeAttempts, attempts))
			return res, bridges, nil
		}

		d, comp, ok := engine.IsolatedComponent(err)
		if !ok || !s.cfg.BridgeIsolated || attempts >= s.cfg.MaxBridgeAttempts {
			return nil, bridges, err
		}
		attempts++

		added, bridgeErr := engine.BridgeComponent(g, d, comp, s.cfg.BridgeFactor)
		if bridgeErr != nil || len(added) == 0 {
			s.log.Warn("bridging failed", "district", d, "component_size", len(comp), "error", bridgeErr)
			return nil, bridges, err
		}
		bridges = append(bridges, added...)
		if s.metrics != nil {
			s.metrics.RecordBridges(len(added))
		}
		s.log.Info("bridged isolated component",
			"district", d,
			"component_size", len(comp),
			"bridges", len(added),
			"attempt", attempts,
		)
	}
}

// finish считает статистику, сохраняет запуск и строит отчёт
func (s *PlannerService) finish(ctx context.Context, req *PlanRequest, opts engine.Options, resp *PlanResponse) (*PlanResponse, error) {
	g := req.Graph
	resp.Stats = domain.DistrictStatistics(g)
	createdAt := time.Now().UTC()

	if s.shouldPersist(req) {
		run := s.newRun(req, opts, resp.GraphHash, repository.StatusSucceeded)
		run.Sweeps = resp.Result.Sweeps
		run.DistrictCount = len(resp.Stats.Districts)
		run.DurationMs = float64(resp.Result.Duration) / float64(time.Millisecond)
		run.Disconnected = resp.Result.Records
		run.Seeding = resp.Result.SeedingLog
		run.Assignments = g.Labels()
		if err := s.repo.Create(ctx, run); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeUnavailable, "failed to persist plan run")
		}
		resp.RunID = run.ID
		createdAt = run.CreatedAt
	} else {
		resp.RunID = uuid.NewString()
	}

	telemetry.SetAttributes(ctx,
		attribute.String(telemetry.AttrRunID, resp.RunID),
		attribute.String(telemetry.AttrGraphHash, resp.GraphHash),
		attribute.Bool(telemetry.AttrCacheHit, resp.CacheHit),
	)

	if req.Report != nil {
		gen, err := report.New(req.Report.Format)
		if err != nil {
			return nil, err
		}
		out, err := gen.Generate(ctx, &report.Data{
			Run: report.RunInfo{
				ID:                resp.RunID,
				Name:              req.Name,
				GraphHash:         resp.GraphHash,
				RequiredDistricts: opts.RequiredDistrictCount,
				RandomSeed:        opts.RandomSeed,
				CacheHit:          resp.CacheHit,
				Bridges:           len(resp.Bridges),
				CreatedAt:         createdAt,
			},
			Result:      resp.Result,
			Stats:       resp.Stats,
			Assignments: g.Labels(),
			Options:     req.Report.Options,
		})
		if err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInternal, "failed to generate report")
		}
		resp.Report = out
	}

	logger.WithRun(resp.RunID).Info("plan finished",
		"name", req.Name,
		"cache_hit", resp.CacheHit,
		"districts", len(resp.Stats.Districts),
		"bridges", len(resp.Bridges),
		"grade", resp.Stats.Grade,
	)
	return resp, nil
}

func (s *PlannerService) shouldPersist(req *PlanRequest) bool {
	return s.repo != nil && (req.Persist || s.cfg.PersistRuns)
}

func (s *PlannerService) newRun(req *PlanRequest, opts engine.Options, graphHash string, status repository.Status) *repository.PlanRun {
	return &repository.PlanRun{
		Name:              req.Name,
		GraphHash:         graphHash,
		NodeCount:         req.Graph.NodeCount(),
		EdgeCount:         req.Graph.EdgeCount(),
		RequiredDistricts: opts.RequiredDistrictCount,
		RandomSeed:        opts.RandomSeed,
		Status:            status,
	}
}

// persistFailure сохраняет неудачный запуск; ошибка хранилища только логируется
func (s *PlannerService) persistFailure(ctx context.Context, req *PlanRequest, opts engine.Options, graphHash string, elapsed time.Duration, runErr error) {
	if !s.shouldPersist(req) || errors.Is(runErr, context.Canceled) {
		return
	}

	run := s.newRun(req, opts, graphHash, repository.StatusFailed)
	run.DurationMs = float64(elapsed) / float64(time.Millisecond)
	run.ErrorCode = string(apperror.Code(runErr))
	run.DistrictCount = req.Graph.DistrictCount()

	if err := s.repo.Create(context.WithoutCancel(ctx), run); err != nil {
		s.log.Error("failed to persist failed run", "name", req.Name, "error", err)
	}
}

func runStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
