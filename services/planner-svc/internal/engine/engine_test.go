package engine

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redistrict/pkg/apperror"
	"redistrict/pkg/domain"
)

func TestRun_InvalidOptions(t *testing.T) {
	g := newGraph(t, []domain.GeoUnit{unit("a", "1", 1)})

	tests := []struct {
		name  string
		opts  Options
		field string
	}{
		{"negative required count", Options{RequiredDistrictCount: -1}, "required_district_count"},
		{"negative sweeps", Options{MaxRepairSweeps: -5}, "max_repair_sweeps"},
		{"too many workers", Options{Workers: 1000}, "workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestEngine().Run(context.Background(), g, tt.opts)
			require.Error(t, err)

			appErr, ok := apperror.As(err)
			require.True(t, ok)
			assert.Equal(t, apperror.CodeInvalidConfig, appErr.Code)
			assert.Equal(t, tt.field, appErr.Field)
			assert.Equal(t, 2, apperror.ExitCode(err))
		})
	}
}

func TestRun_NilGraph(t *testing.T) {
	_, err := newTestEngine().Run(context.Background(), nil, Options{})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeNilInput))
}

func TestRun_InvalidGraph(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := newTestEngine().Run(context.Background(), domain.NewGraph(), Options{})
		require.Error(t, err)
		assert.True(t, apperror.Is(err, apperror.CodeInvalidInput))

		appErr, _ := apperror.As(err)
		assert.Equal(t, apperror.CodeEmptyGraph, appErr.Details["first_code"])
	})

	t.Run("missing label", func(t *testing.T) {
		g := newGraph(t, []domain.GeoUnit{unit("a", "1", 1), unit("b", "", 1)}, "a-b")

		_, err := newTestEngine().Run(context.Background(), g, Options{})
		require.Error(t, err)

		appErr, _ := apperror.As(err)
		assert.Equal(t, apperror.CodeInvalidInput, appErr.Code)
		assert.Equal(t, apperror.CodeMissingLabel, appErr.Details["first_code"])
	})
}

func TestRun_RepairThenSeedOnGrid(t *testing.T) {
	g := gridGraph(t, 6, 6, stripedLabels)
	population := g.TotalPopulation()

	res, err := newTestEngine().Run(context.Background(), g, Options{RequiredDistrictCount: 5, RandomSeed: 5})
	require.NoError(t, err)

	requireContiguous(t, g)
	assert.InDelta(t, population, g.TotalPopulation(), 1e-9)
	assert.Equal(t, []domain.District{"1", "2", "3", "4", "5"}, res.Districts)
	assert.Equal(t, []SeedEntry{
		{NewLabel: "4", DonorLabel: "3", SeedNodeID: cellID(5, 5), Population: 36},
		{NewLabel: "5", DonorLabel: "3", SeedNodeID: cellID(5, 4), Population: 35},
	}, res.SeedingLog)
	assert.Equal(t, 2, res.RepairedCount())
}

func TestRun_DeterministicAcrossWorkers(t *testing.T) {
	run := func(workers int) (*Result, map[string]domain.District) {
		g := gridGraph(t, 6, 6, stripedLabels)
		res, err := newTestEngine().Run(context.Background(), g, Options{
			RequiredDistrictCount: 5,
			RandomSeed:            99,
			Workers:               workers,
		})
		require.NoError(t, err)
		return res, g.Labels()
	}

	base, baseLabels := run(1)
	for _, workers := range []int{2, 4, 8} {
		res, labels := run(workers)

		if diff := cmp.Diff(base, res, cmpopts.IgnoreFields(Result{}, "Duration")); diff != "" {
			t.Errorf("workers=%d result mismatch (-want +got):\n%s", workers, diff)
		}
		if diff := cmp.Diff(baseLabels, labels); diff != "" {
			t.Errorf("workers=%d labels mismatch (-want +got):\n%s", workers, diff)
		}
	}
}

func TestRun_IdempotentOnOwnOutput(t *testing.T) {
	g := gridGraph(t, 6, 6, stripedLabels)
	_, err := newTestEngine().Run(context.Background(), g, Options{RequiredDistrictCount: 4, RandomSeed: 8})
	require.NoError(t, err)
	after := g.Labels()

	res, err := newTestEngine().Run(context.Background(), g, Options{RequiredDistrictCount: 4, RandomSeed: 123})
	require.NoError(t, err)

	assert.Empty(t, res.Journal)
	assert.Empty(t, res.Records)
	assert.Empty(t, res.SeedingLog)
	assert.Equal(t, after, g.Labels())
}

func TestRun_BridgeIsolatedComponentAndRetry(t *testing.T) {
	units := []domain.GeoUnit{
		{ID: "a", District: "1", Population: 1, X: 0, Y: 0, HasPoint: true},
		{ID: "b", District: "1", Population: 1, X: 1, Y: 0, HasPoint: true},
		{ID: "c", District: "1", Population: 1, X: 2, Y: 0, HasPoint: true},
		{ID: "f", District: "2", Population: 1, X: 3, Y: 0, HasPoint: true},
		{ID: "d", District: "1", Population: 1, X: 0, Y: 2, HasPoint: true},
		{ID: "e", District: "1", Population: 1, X: 1, Y: 2, HasPoint: true},
	}
	g := newGraph(t, units, "a-b", "b-c", "c-f", "d-e")
	eng := newTestEngine()

	_, err := eng.Run(context.Background(), g, Options{})
	require.Error(t, err)

	d, comp, ok := IsolatedComponent(err)
	require.True(t, ok)

	added, err := BridgeComponent(g, d, comp, 1)
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.Equal(t, domain.NewEdgeKey("a", "d"), added[0].Key())
	assert.Equal(t, domain.NewEdgeKey("b", "e"), added[1].Key())

	res, err := eng.Run(context.Background(), g, Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	requireContiguous(t, g)
}

func TestResult_RepairedCount(t *testing.T) {
	res := &Result{Records: []DisconnectedDistrictRecord{
		{OriginalLabel: "1", Repaired: true},
		{OriginalLabel: "2"},
		{OriginalLabel: "3", Repaired: true},
	}}
	assert.Equal(t, 2, res.RepairedCount())
}
