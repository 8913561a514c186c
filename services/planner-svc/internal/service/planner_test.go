package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"redistrict/pkg/apperror"
	"redistrict/pkg/cache"
	"redistrict/pkg/domain"
	"redistrict/pkg/logger"
	"redistrict/pkg/metrics"
	"redistrict/services/planner-svc/internal/engine"
	"redistrict/services/planner-svc/internal/report"
	"redistrict/services/planner-svc/internal/repository"
)

func TestMain(m *testing.M) {
	logger.Init("error")
	goleak.VerifyTestMain(m)
}

func cellID(r, c int) string {
	return fmt.Sprintf("r%02dc%02d", r, c)
}

// stripedGrid решётка 6x6: три полосы и два оторванных угла
func stripedGrid(t *testing.T) *domain.Graph {
	t.Helper()

	label := func(r, c int) domain.District {
		switch {
		case r <= 1 && c <= 1:
			return "3"
		case r == 5 && c == 5:
			return "1"
		case c <= 1:
			return "1"
		case c <= 3:
			return "2"
		default:
			return "3"
		}
	}

	g := domain.NewGraph()
	for r := 0; r < 6; r++ {
		for c := 0; c < 6; c++ {
			require.NoError(t, g.AddNode(&domain.GeoUnit{
				ID:         cellID(r, c),
				District:   label(r, c),
				Population: float64(r*6 + c + 1),
				X:          float64(c),
				Y:          float64(r),
				HasPoint:   true,
			}))
		}
	}
	for r := 0; r < 6; r++ {
		for c := 0; c < 6; c++ {
			if c+1 < 6 {
				require.NoError(t, g.AddEdge(&domain.Edge{A: cellID(r, c), B: cellID(r, c+1), SharedPerimeter: 1}))
			}
			if r+1 < 6 {
				require.NoError(t, g.AddEdge(&domain.Edge{A: cellID(r, c), B: cellID(r+1, c), SharedPerimeter: 1}))
			}
		}
	}
	return g
}

// islandGraph округ 1 с компонентой d-e без выхода наружу
func islandGraph(t *testing.T) *domain.Graph {
	t.Helper()

	g := domain.NewGraph()
	for _, u := range []domain.GeoUnit{
		{ID: "a", District: "1", Population: 1, X: 0, Y: 0, HasPoint: true},
		{ID: "b", District: "1", Population: 1, X: 1, Y: 0, HasPoint: true},
		{ID: "c", District: "1", Population: 1, X: 2, Y: 0, HasPoint: true},
		{ID: "f", District: "2", Population: 1, X: 3, Y: 0, HasPoint: true},
		{ID: "d", District: "1", Population: 1, X: 0, Y: 2, HasPoint: true},
		{ID: "e", District: "1", Population: 1, X: 1, Y: 2, HasPoint: true},
	} {
		u := u
		require.NoError(t, g.AddNode(&u))
	}
	for _, e := range [][2]string{{"a", "b"}, {"b", "c"}, {"c", "f"}, {"d", "e"}} {
		require.NoError(t, g.AddEdge(&domain.Edge{A: e[0], B: e[1], SharedPerimeter: 1}))
	}
	return g
}

var gridOptions = engine.Options{RequiredDistrictCount: 5, RandomSeed: 5}

func newTestMetrics() *metrics.Metrics {
	return metrics.NewMetrics(prometheus.NewRegistry(), "test", "planner")
}

func newTestService(t *testing.T, cfg Config, opts ...Option) (*PlannerService, *metrics.Metrics) {
	t.Helper()

	m := newTestMetrics()
	base := []Option{
		WithLogger(logger.Discard()),
		WithMetrics(m),
		WithEngine(engine.New(engine.WithLogger(logger.Discard()), engine.WithMetrics(m))),
	}
	return NewPlannerService(cfg, append(base, opts...)...), m
}

func newTestCache(t *testing.T) cache.Cache {
	t.Helper()

	c := cache.NewMemoryCache(cache.DefaultOptions())
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// failingRepo хранилище, которое отклоняет запись
type failingRepo struct {
	repository.RunRepository
	err error
}

func (r *failingRepo) Create(context.Context, *repository.PlanRun) error {
	return r.err
}

func TestPlan_Errors(t *testing.T) {
	svc, _ := newTestService(t, DefaultConfig())

	_, err := svc.Plan(context.Background(), nil)
	assert.True(t, apperror.Is(err, apperror.CodeNilInput))

	_, err = svc.Plan(context.Background(), &PlanRequest{})
	assert.True(t, apperror.Is(err, apperror.CodeNilInput))

	_, err = svc.Plan(context.Background(), &PlanRequest{
		Graph:   stripedGrid(t),
		Options: engine.Options{Workers: 1000},
	})
	assert.True(t, apperror.Is(err, apperror.CodeInvalidConfig), "got %v", err)
}

func TestPlan_RepairAndSeed(t *testing.T) {
	svc, m := newTestService(t, DefaultConfig())
	g := stripedGrid(t)

	resp, err := svc.Plan(context.Background(), &PlanRequest{Name: "grid", Graph: g, Options: gridOptions})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.RunID)
	assert.Len(t, resp.GraphHash, 32)
	assert.False(t, resp.CacheHit)
	assert.Empty(t, resp.Bridges)
	assert.Nil(t, resp.Report)

	assert.Equal(t, []domain.District{"1", "2", "3", "4", "5"}, resp.Result.Districts)
	assert.Equal(t, 2, resp.Result.RepairedCount())
	assert.Len(t, resp.Result.SeedingLog, 2)
	assert.Empty(t, domain.FragmentationProfile(g))

	require.NotNil(t, resp.Stats)
	assert.Len(t, resp.Stats.Districts, 5)
	assert.Equal(t, 5, resp.Stats.ContiguousCount)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RunsInFlight))
}

func TestPlan_CacheHit(t *testing.T) {
	svc, m := newTestService(t, DefaultConfig(), WithCache(newTestCache(t), "test:"))

	first := stripedGrid(t)
	resp1, err := svc.Plan(context.Background(), &PlanRequest{Graph: first, Options: gridOptions})
	require.NoError(t, err)
	assert.False(t, resp1.CacheHit)

	second := stripedGrid(t)
	resp2, err := svc.Plan(context.Background(), &PlanRequest{Graph: second, Options: gridOptions})
	require.NoError(t, err)

	assert.True(t, resp2.CacheHit)
	assert.Equal(t, resp1.GraphHash, resp2.GraphHash)
	assert.NotEqual(t, resp1.RunID, resp2.RunID)
	assert.Equal(t, first.Labels(), second.Labels())
	assert.Equal(t, resp1.Result.Records, resp2.Result.Records)
	assert.Equal(t, resp1.Result.SeedingLog, resp2.Result.SeedingLog)
	assert.Equal(t, resp1.Stats, resp2.Stats)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("success")))

	other := gridOptions
	other.RandomSeed = 6
	resp3, err := svc.Plan(context.Background(), &PlanRequest{Graph: stripedGrid(t), Options: other})
	require.NoError(t, err)
	assert.False(t, resp3.CacheHit)
}

func TestPlan_IsolatedComponent(t *testing.T) {
	svc, _ := newTestService(t, DefaultConfig())
	g := islandGraph(t)
	before := g.Labels()

	_, err := svc.Plan(context.Background(), &PlanRequest{Graph: g})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeIsolatedComponent), "got %v", err)
	assert.Equal(t, before, g.Labels())
	assert.Equal(t, 4, g.EdgeCount())
}

func TestPlan_BridgeIsolated(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BridgeIsolated = true
	svc, m := newTestService(t, cfg, WithCache(newTestCache(t), ""))

	g := islandGraph(t)
	resp, err := svc.Plan(context.Background(), &PlanRequest{Graph: g})
	require.NoError(t, err)

	require.Len(t, resp.Bridges, 2)
	assert.True(t, resp.Bridges[0].Synthetic)
	assert.Equal(t, domain.NewEdgeKey("a", "d"), resp.Bridges[0].Key())
	assert.Empty(t, resp.Result.Records)
	assert.Empty(t, domain.FragmentationProfile(g))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BridgesAdded))

	// из кэша мосты переносятся на новый граф
	fresh := islandGraph(t)
	resp, err = svc.Plan(context.Background(), &PlanRequest{Graph: fresh})
	require.NoError(t, err)
	assert.True(t, resp.CacheHit)
	assert.True(t, fresh.HasEdge("a", "d"))
	assert.True(t, fresh.HasEdge("b", "e"))
	assert.Equal(t, g.Labels(), fresh.Labels())
}

// lateIslandGraph: остров z1-z2-z3 отрывается от округа 1 только на втором проходе
func lateIslandGraph(t *testing.T) *domain.Graph {
	t.Helper()

	g := domain.NewGraph()
	for _, u := range []domain.GeoUnit{
		{ID: "a", District: "1", Population: 1, X: 0, Y: 0, HasPoint: true},
		{ID: "h1", District: "0", Population: 1, X: -1, Y: 1, HasPoint: true},
		{ID: "h2", District: "0", Population: 1, X: -1, Y: -1, HasPoint: true},
		{ID: "c1", District: "0", Population: 1, X: -5, Y: 0, HasPoint: true},
		{ID: "c2", District: "0", Population: 1, X: -6, Y: 0, HasPoint: true},
		{ID: "b1", District: "2", Population: 1, X: 5, Y: 5, HasPoint: true},
		{ID: "b2", District: "2", Population: 1, X: 6, Y: 5, HasPoint: true},
		{ID: "z1", District: "1", Population: 1, X: 10, Y: 0, HasPoint: true},
		{ID: "z2", District: "1", Population: 1, X: 11, Y: 0, HasPoint: true},
		{ID: "z3", District: "2", Population: 1, X: 12, Y: 0, HasPoint: true},
	} {
		u := u
		require.NoError(t, g.AddNode(&u))
	}
	for _, e := range [][2]string{{"a", "h1"}, {"a", "h2"}, {"c1", "c2"}, {"b1", "b2"}, {"z1", "z2"}, {"z2", "z3"}} {
		require.NoError(t, g.AddEdge(&domain.Edge{A: e[0], B: e[1], SharedPerimeter: 1}))
	}
	return g
}

func TestPlan_BridgeIsolatedOnLaterSweep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BridgeIsolated = true
	svc, m := newTestService(t, cfg)

	g := lateIslandGraph(t)
	resp, err := svc.Plan(context.Background(), &PlanRequest{Graph: g})
	require.NoError(t, err)

	require.Len(t, resp.Bridges, 1)
	assert.Equal(t, domain.NewEdgeKey("a", "z1"), resp.Bridges[0].Key())
	assert.Empty(t, domain.FragmentationProfile(g))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BridgesAdded))
}

func TestPlan_BridgeAttemptsExhausted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BridgeIsolated = true
	cfg.MaxBridgeAttempts = 0
	svc, _ := newTestService(t, cfg)

	_, err := svc.Plan(context.Background(), &PlanRequest{Graph: islandGraph(t)})
	assert.True(t, apperror.Is(err, apperror.CodeIsolatedComponent))
}

func TestPlan_Persist(t *testing.T) {
	repo := repository.NewMemoryRunRepository()
	svc, _ := newTestService(t, DefaultConfig(), WithRepository(repo))
	ctx := context.Background()

	g := stripedGrid(t)
	resp, err := svc.Plan(ctx, &PlanRequest{Name: "grid", Graph: g, Options: gridOptions, Persist: true})
	require.NoError(t, err)

	run, err := svc.GetRun(ctx, resp.RunID)
	require.NoError(t, err)
	assert.Equal(t, "grid", run.Name)
	assert.Equal(t, repository.StatusSucceeded, run.Status)
	assert.Equal(t, resp.GraphHash, run.GraphHash)
	assert.Equal(t, 36, run.NodeCount)
	assert.Equal(t, 5, run.RequiredDistricts)
	assert.Equal(t, 5, run.DistrictCount)
	assert.Equal(t, resp.Result.Records, run.Disconnected)
	assert.Equal(t, resp.Result.SeedingLog, run.Seeding)
	assert.Equal(t, g.Labels(), run.Assignments)

	// без Persist и PersistRuns запуск не сохраняется
	_, err = svc.Plan(ctx, &PlanRequest{Graph: stripedGrid(t), Options: gridOptions})
	require.NoError(t, err)

	runs, total, err := svc.ListRuns(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, runs, 1)

	require.NoError(t, svc.DeleteRun(ctx, resp.RunID))
	_, err = svc.GetRun(ctx, resp.RunID)
	assert.True(t, apperror.Is(err, apperror.CodeNotFound))
	assert.True(t, apperror.Is(svc.DeleteRun(ctx, resp.RunID), apperror.CodeNotFound))
}

func TestPlan_PersistFailedRun(t *testing.T) {
	repo := repository.NewMemoryRunRepository()
	cfg := DefaultConfig()
	cfg.PersistRuns = true
	svc, m := newTestService(t, cfg, WithRepository(repo))
	ctx := context.Background()

	_, err := svc.Plan(ctx, &PlanRequest{Name: "island", Graph: islandGraph(t)})
	require.Error(t, err)

	runs, total, err := svc.ListRuns(ctx, &repository.ListOptions{Status: repository.StatusFailed})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	assert.Equal(t, "island", runs[0].Name)
	assert.Equal(t, string(apperror.CodeIsolatedComponent), runs[0].ErrorCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("error")))
}

func TestPlan_PersistError(t *testing.T) {
	repo := &failingRepo{err: errors.New("connection refused")}
	svc, _ := newTestService(t, DefaultConfig(), WithRepository(repo))

	_, err := svc.Plan(context.Background(), &PlanRequest{Graph: stripedGrid(t), Options: gridOptions, Persist: true})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeUnavailable))
}

func TestPlan_Report(t *testing.T) {
	svc, _ := newTestService(t, DefaultConfig())

	resp, err := svc.Plan(context.Background(), &PlanRequest{
		Name:    "grid",
		Graph:   stripedGrid(t),
		Options: gridOptions,
		Report:  &ReportRequest{Format: report.FormatCSV},
	})
	require.NoError(t, err)

	text := string(resp.Report)
	assert.Contains(t, text, "# District Plan Report: grid")
	assert.Contains(t, text, "Run ID,"+resp.RunID)
	assert.Contains(t, text, "Seeded Districts,2")

	_, err = svc.Plan(context.Background(), &PlanRequest{
		Graph:  stripedGrid(t),
		Report: &ReportRequest{Format: "pdf"},
	})
	assert.True(t, apperror.Is(err, apperror.CodeInvalidArgument))
}

func TestCheck(t *testing.T) {
	svc, _ := newTestService(t, DefaultConfig())

	_, err := svc.Check(context.Background(), nil)
	assert.True(t, apperror.Is(err, apperror.CodeNilInput))

	g := stripedGrid(t)
	before := g.Labels()
	rep, err := svc.Check(context.Background(), g)
	require.NoError(t, err)

	assert.True(t, rep.Valid)
	assert.False(t, rep.Contiguous())
	assert.Equal(t, []domain.FragmentedDistrict{
		{District: "1", ComponentSizes: []int{8, 1}},
		{District: "3", ComponentSizes: []int{11, 4}},
	}, rep.Fragmented)
	assert.EqualValues(t, 36, rep.Graph.NodeCount)
	assert.Len(t, rep.Plan.Districts, 3)
	assert.Equal(t, before, g.Labels())

	rep, err = svc.Check(context.Background(), domain.NewGraph())
	require.NoError(t, err)
	assert.False(t, rep.Valid)
	assert.Nil(t, rep.Plan)
}

func TestRuns_WithoutRepository(t *testing.T) {
	svc, _ := newTestService(t, DefaultConfig())
	ctx := context.Background()

	_, err := svc.GetRun(ctx, "x")
	assert.True(t, apperror.Is(err, apperror.CodeUnavailable))

	_, _, err = svc.ListRuns(ctx, nil)
	assert.True(t, apperror.Is(err, apperror.CodeUnavailable))

	assert.True(t, apperror.Is(svc.DeleteRun(ctx, "x"), apperror.CodeUnavailable))

	n, err := svc.InvalidateCache(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = svc.CacheStats(ctx)
	assert.True(t, apperror.Is(err, apperror.CodeUnavailable))
}

func TestInvalidateCache(t *testing.T) {
	svc, _ := newTestService(t, DefaultConfig(), WithCache(newTestCache(t), "plan:"))
	ctx := context.Background()

	_, err := svc.Plan(ctx, &PlanRequest{Graph: stripedGrid(t), Options: gridOptions})
	require.NoError(t, err)

	st, err := svc.CacheStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, st.Entries)

	n, err := svc.InvalidateCache(ctx, stripedGrid(t))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	resp, err := svc.Plan(ctx, &PlanRequest{Graph: stripedGrid(t), Options: gridOptions})
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
}
