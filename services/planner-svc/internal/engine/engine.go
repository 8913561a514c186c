// Package engine repairs district contiguity on an adjacency graph and seeds
// new districts until the required count is reached.
//
// A run is a single-writer pass over one graph: every label change goes
// through a Mutator journal, so a failed run restores the graph to its last
// good state. Neighbour adoption uses an explicit seeded source, which makes
// runs reproducible for a given graph, options and seed.
package engine

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"redistrict/pkg/apperror"
	"redistrict/pkg/domain"
	"redistrict/pkg/logger"
	"redistrict/pkg/metrics"
	"redistrict/pkg/telemetry"
)

// Engine выполняет ремонт связности и посев округов
type Engine struct {
	log     *slog.Logger
	metrics *metrics.Metrics
}

// Option настраивает Engine
type Option func(*Engine)

// WithLogger задаёт логгер
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics задаёт метрики; nil отключает их
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New создаёт движок
func New(opts ...Option) *Engine {
	e := &Engine{
		log:     logger.Log.With("component", "engine"),
		metrics: metrics.Get(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run ремонтирует граф g и досевает округа до opts.RequiredDistrictCount.
// Нулевые поля opts заменяются значениями по умолчанию. При ошибке ремонта
// граф возвращается к исходным меткам, при ошибке посева к состоянию после ремонта.
func (e *Engine) Run(ctx context.Context, g *domain.Graph, opts Options) (*Result, error) {
	start := time.Now()

	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if g == nil {
		return nil, apperror.ErrNilGraph
	}
	if err := validateGraph(g, e.log); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "engine.Run",
		telemetry.WithAttributes(telemetry.GraphAttributes(g.NodeCount(), g.EdgeCount(), g.DistrictCount())...),
		telemetry.WithAttributes(
			attribute.Int(telemetry.AttrRequiredCount, opts.RequiredDistrictCount),
			attribute.Int64(telemetry.AttrRandomSeed, opts.RandomSeed),
			attribute.Int(telemetry.AttrMaxSweeps, opts.MaxRepairSweeps),
		),
	)
	defer span.End()

	mut := NewMutator(g, e.log, e.metrics)
	rng := rand.New(rand.NewSource(opts.RandomSeed))
	population := g.TotalPopulation()
	inputMark := mut.Mark()

	sweeps, err := e.repair(ctx, mut, rng, opts)
	if e.metrics != nil {
		e.metrics.RecordRepair(sweeps, len(mut.records))
	}
	if err != nil {
		return nil, e.fail(ctx, mut, inputMark, err, "repair")
	}

	repairedMark := mut.Mark()
	labelsBefore := g.DistrictCount()

	if _, err := e.seed(ctx, mut, opts); err != nil {
		return nil, e.fail(ctx, mut, repairedMark, err, "seed")
	}

	if err := verify(g, population, labelsBefore, opts); err != nil {
		return nil, e.fail(ctx, mut, inputMark, err, "verify")
	}

	result := &Result{
		Records:    mut.Records(),
		SeedingLog: mut.SeedingLog(),
		Journal:    mut.Journal(),
		Sweeps:     sweeps,
		Districts:  g.Districts(),
		Duration:   time.Since(start),
	}

	e.log.Info("run completed",
		"sweeps", result.Sweeps,
		"disconnected", len(result.Records),
		"seeded", len(result.SeedingLog),
		"relabels", len(result.Journal),
		"districts", len(result.Districts),
		"duration", result.Duration,
	)
	return result, nil
}

// fail откатывает граф к отметке и дополняет ошибку журналом запуска
func (e *Engine) fail(ctx context.Context, mut *Mutator, mark Mark, err error, stage string) error {
	if rbErr := mut.RollbackTo(mark); rbErr != nil {
		e.log.Error("rollback failed", "stage", stage, "error", rbErr)
		return apperror.Wrap(rbErr, apperror.CodeInternal, "rollback failed").
			WithSeverity(apperror.SeverityCritical).
			WithDetails("stage", stage)
	}

	if appErr, ok := apperror.As(err); ok {
		if _, exists := appErr.Details["records"]; !exists {
			appErr.WithDetails("records", mut.Records())
		}
		appErr.WithDetails("stage", stage)
	}

	telemetry.SetError(ctx, err)
	e.log.Warn("run failed",
		"stage", stage,
		"code", apperror.Code(err),
		"error", err,
	)
	return err
}

func validateGraph(g *domain.Graph, log *slog.Logger) error {
	ve := g.Validate()
	for _, w := range ve.Warnings {
		log.Warn("graph warning", "code", w.Code, "message", w.Message)
	}
	if ve.IsValid() {
		return nil
	}

	first := ve.First()
	return apperror.Wrap(first, apperror.CodeInvalidInput, "graph failed validation: "+first.Message).
		WithDetails("violations", ve.ErrorMessages()).
		WithDetails("first_code", first.Code)
}

// verify проверяет постусловия успешного запуска
func verify(g *domain.Graph, population float64, labelsBefore int, opts Options) error {
	if profile := domain.FragmentationProfile(g); len(profile) > 0 {
		return apperror.NewCritical(apperror.CodePostcondition, "districts are fragmented after a successful run").
			WithDetails("profile", profile)
	}

	after := g.TotalPopulation()
	if math.Abs(after-population) > domain.Epsilon*math.Max(1, math.Abs(population)) {
		return apperror.NewCritical(apperror.CodePostcondition, "total population changed during run").
			WithDetails("before", population).
			WithDetails("after", after)
	}

	if opts.RequiredDistrictCount > labelsBefore && g.DistrictCount() != opts.RequiredDistrictCount {
		return apperror.NewCritical(apperror.CodePostcondition, "district count differs from the required count").
			WithDetails("required", opts.RequiredDistrictCount).
			WithDetails("actual", g.DistrictCount())
	}
	return nil
}
