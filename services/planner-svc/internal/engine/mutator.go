package engine

import (
	"log/slog"

	"redistrict/pkg/domain"
	"redistrict/pkg/metrics"
)

// Mutator единственная точка изменения меток во время запуска.
// Каждое изменение попадает в журнал, что позволяет откатить граф к отметке.
type Mutator struct {
	g       *domain.Graph
	log     *slog.Logger
	metrics *metrics.Metrics

	journal   []Relabel
	records   []DisconnectedDistrictRecord
	recordIdx map[domain.District]int
	seeds     []SeedEntry
}

// Mark позиция в журналах мутатора
type Mark struct {
	journal int
	seeds   int
}

// NewMutator создаёт мутатор над графом g. m может быть nil.
func NewMutator(g *domain.Graph, log *slog.Logger, m *metrics.Metrics) *Mutator {
	return &Mutator{
		g:         g,
		log:       log,
		metrics:   m,
		recordIdx: make(map[domain.District]int),
	}
}

// Graph возвращает граф мутатора
func (m *Mutator) Graph() *domain.Graph {
	return m.g
}

// SetLabel меняет метку узла. Возвращает false, если метка уже совпадала.
func (m *Mutator) SetLabel(id string, label domain.District, cause Cause) (bool, error) {
	prev, err := m.g.SetDistrict(id, label)
	if err != nil {
		return false, err
	}
	if prev == label {
		return false, nil
	}

	m.journal = append(m.journal, Relabel{
		Seq:    len(m.journal) + 1,
		NodeID: id,
		From:   prev,
		To:     label,
		Cause:  cause,
	})

	m.log.Debug("relabel",
		"node_id", id,
		"from", prev,
		"to", label,
		"cause", cause,
	)
	if m.metrics != nil {
		m.metrics.RecordRelabel(string(cause))
	}
	return true, nil
}

// Mark возвращает текущую позицию журналов
func (m *Mutator) Mark() Mark {
	return Mark{journal: len(m.journal), seeds: len(m.seeds)}
}

// RollbackTo отменяет изменения после отметки в обратном порядке
func (m *Mutator) RollbackTo(mark Mark) error {
	for i := len(m.journal) - 1; i >= mark.journal; i-- {
		r := m.journal[i]
		if _, err := m.g.SetDistrict(r.NodeID, r.From); err != nil {
			return err
		}
	}

	undone := len(m.journal) - mark.journal
	m.journal = m.journal[:mark.journal]
	if mark.seeds < len(m.seeds) {
		m.seeds = m.seeds[:mark.seeds]
	}

	if undone > 0 {
		m.log.Info("labels rolled back", "relabels_undone", undone)
	}
	return nil
}

// RecordDisconnected фиксирует разорванный округ при первом обнаружении
func (m *Mutator) RecordDisconnected(d domain.District, sizes []int, sweep int) {
	if _, ok := m.recordIdx[d]; ok {
		return
	}
	m.recordIdx[d] = len(m.records)
	m.records = append(m.records, DisconnectedDistrictRecord{
		OriginalLabel:        d,
		ComponentSizesBefore: append([]int(nil), sizes...),
		FirstSweep:           sweep,
	})
	m.log.Info("disconnected district",
		"district", d,
		"component_sizes", sizes,
		"sweep", sweep,
	)
}

// ResolveRecords выставляет Repaired по текущей связности округов
func (m *Mutator) ResolveRecords() {
	for i := range m.records {
		m.records[i].Repaired = domain.IsContiguous(m.g, m.records[i].OriginalLabel)
	}
}

// RecordSeed добавляет запись в журнал посева
func (m *Mutator) RecordSeed(entry SeedEntry) {
	m.seeds = append(m.seeds, entry)
	m.log.Info("district seeded",
		"new_label", entry.NewLabel,
		"donor_label", entry.DonorLabel,
		"seed_node_id", entry.SeedNodeID,
		"population", entry.Population,
	)
}

// Journal возвращает копию журнала изменений
func (m *Mutator) Journal() []Relabel {
	return append([]Relabel(nil), m.journal...)
}

// Records возвращает копию записей о разорванных округах
func (m *Mutator) Records() []DisconnectedDistrictRecord {
	out := make([]DisconnectedDistrictRecord, len(m.records))
	for i, r := range m.records {
		r.ComponentSizesBefore = append([]int(nil), r.ComponentSizesBefore...)
		out[i] = r
	}
	return out
}

// SeedingLog возвращает копию журнала посева
func (m *Mutator) SeedingLog() []SeedEntry {
	return append([]SeedEntry(nil), m.seeds...)
}
