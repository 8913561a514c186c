package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redistrict/pkg/apperror"
	"redistrict/pkg/domain"
	"redistrict/pkg/logger"
)

func TestMutator_SetLabelJournal(t *testing.T) {
	g := newGraph(t, []domain.GeoUnit{unit("a", "1", 1), unit("b", "1", 1)}, "a-b")
	mut := NewMutator(g, logger.Discard(), nil)

	changed, err := mut.SetLabel("a", "2", CauseRepair)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = mut.SetLabel("a", "2", CauseRepair)
	require.NoError(t, err)
	assert.False(t, changed, "same label must not produce a journal entry")

	_, err = mut.SetLabel("missing", "2", CauseRepair)
	require.Error(t, err)

	assert.Equal(t, []Relabel{{Seq: 1, NodeID: "a", From: "1", To: "2", Cause: CauseRepair}}, mut.Journal())
	assert.Equal(t, 1, g.MemberCount("2"))
}

func TestMutator_RollbackTo(t *testing.T) {
	g := newGraph(t, []domain.GeoUnit{
		unit("a", "1", 1), unit("b", "1", 1), unit("c", "1", 1),
	}, "a-b", "b-c")
	before := g.Labels()
	mut := NewMutator(g, logger.Discard(), nil)

	start := mut.Mark()
	_, err := mut.SetLabel("a", "2", CauseRepair)
	require.NoError(t, err)

	mid := mut.Mark()
	_, err = mut.SetLabel("b", "3", CauseSeed)
	require.NoError(t, err)
	_, err = mut.SetLabel("b", "4", CauseSeed)
	require.NoError(t, err)
	mut.RecordSeed(SeedEntry{NewLabel: "4", DonorLabel: "1", SeedNodeID: "b", Population: 1})

	require.NoError(t, mut.RollbackTo(mid))
	b, _ := g.District("b")
	assert.Equal(t, domain.District("1"), b, "undo must walk the journal backwards")
	assert.Len(t, mut.Journal(), 1)
	assert.Empty(t, mut.SeedingLog())

	// Seq продолжается после отката
	_, err = mut.SetLabel("c", "2", CauseRepair)
	require.NoError(t, err)
	assert.Equal(t, 2, mut.Journal()[1].Seq)

	require.NoError(t, mut.RollbackTo(start))
	assert.Equal(t, before, g.Labels())
	assert.Empty(t, mut.Journal())
}

func TestMutator_Records(t *testing.T) {
	g := newGraph(t, []domain.GeoUnit{
		unit("a", "1", 1), unit("b", "2", 1), unit("c", "1", 1),
	}, "a-b", "b-c")
	mut := NewMutator(g, logger.Discard(), nil)

	mut.RecordDisconnected("1", []int{1, 1}, 1)
	mut.RecordDisconnected("1", []int{1, 1}, 2)
	require.Len(t, mut.Records(), 1)
	assert.Equal(t, 1, mut.Records()[0].FirstSweep)

	mut.ResolveRecords()
	assert.False(t, mut.Records()[0].Repaired)

	_, err := mut.SetLabel("c", "2", CauseRepair)
	require.NoError(t, err)
	mut.ResolveRecords()
	assert.True(t, mut.Records()[0].Repaired)

	// Копия не должна разделять память с мутатором
	recs := mut.Records()
	recs[0].ComponentSizesBefore[0] = 100
	assert.Equal(t, []int{1, 1}, mut.Records()[0].ComponentSizesBefore)
}

func TestMutator_SetLabelUnknownNode(t *testing.T) {
	g := newGraph(t, []domain.GeoUnit{unit("a", "1", 1)})
	mut := NewMutator(g, logger.Discard(), nil)

	_, err := mut.SetLabel("zzz", "1", CauseRepair)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeInvalidInput))
	assert.Empty(t, mut.Journal())
}
