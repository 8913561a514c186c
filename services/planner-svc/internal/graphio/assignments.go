package graphio

import (
	"io"

	"redistrict/pkg/domain"
	"redistrict/services/planner-svc/internal/engine"
)

// DisconnectedDoc запись о разорванном округе
type DisconnectedDoc struct {
	OriginalLabel        string `json:"original_label" yaml:"original_label"`
	ComponentSizesBefore []int  `json:"component_sizes_before" yaml:"component_sizes_before"`
	Repaired             bool   `json:"repaired" yaml:"repaired"`
	FirstSweep           int    `json:"first_sweep" yaml:"first_sweep"`
}

// SeedDoc запись журнала посева
type SeedDoc struct {
	NewLabel   string  `json:"new_label" yaml:"new_label"`
	DonorLabel string  `json:"donor_label" yaml:"donor_label"`
	SeedNodeID string  `json:"seed_node_id" yaml:"seed_node_id"`
	Population float64 `json:"population" yaml:"population"`
}

// AssignmentDoc итог запуска: метки узлов и аудит
type AssignmentDoc struct {
	RunID        string            `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	GraphHash    string            `json:"graph_hash,omitempty" yaml:"graph_hash,omitempty"`
	CacheHit     bool              `json:"cache_hit,omitempty" yaml:"cache_hit,omitempty"`
	Sweeps       int               `json:"sweeps" yaml:"sweeps"`
	Districts    map[string]string `json:"districts" yaml:"districts"`
	Disconnected []DisconnectedDoc `json:"disconnected" yaml:"disconnected"`
	Seeding      []SeedDoc         `json:"seeding" yaml:"seeding"`
	Bridges      []EdgeDoc         `json:"bridges,omitempty" yaml:"bridges,omitempty"`
}

// NewAssignmentDoc собирает документ из меток графа и результата движка
func NewAssignmentDoc(runID string, labels map[string]domain.District, res *engine.Result, bridges []domain.Edge) *AssignmentDoc {
	doc := &AssignmentDoc{
		RunID:        runID,
		Districts:    make(map[string]string, len(labels)),
		Disconnected: []DisconnectedDoc{},
		Seeding:      []SeedDoc{},
	}
	for id, d := range labels {
		doc.Districts[id] = string(d)
	}

	if res != nil {
		doc.Sweeps = res.Sweeps
		for _, rec := range res.Records {
			doc.Disconnected = append(doc.Disconnected, DisconnectedDoc{
				OriginalLabel:        string(rec.OriginalLabel),
				ComponentSizesBefore: rec.ComponentSizesBefore,
				Repaired:             rec.Repaired,
				FirstSweep:           rec.FirstSweep,
			})
		}
		for _, e := range res.SeedingLog {
			doc.Seeding = append(doc.Seeding, SeedDoc{
				NewLabel:   string(e.NewLabel),
				DonorLabel: string(e.DonorLabel),
				SeedNodeID: e.SeedNodeID,
				Population: e.Population,
			})
		}
	}

	for _, e := range bridges {
		doc.Bridges = append(doc.Bridges, EdgeFromDomain(e))
	}
	return doc
}

// Labels возвращает метки документа в виде, пригодном для Graph.ApplyLabels
func (d *AssignmentDoc) Labels() map[string]domain.District {
	out := make(map[string]domain.District, len(d.Districts))
	for id, label := range d.Districts {
		out[id] = domain.District(label)
	}
	return out
}

// EncodeAssignments пишет документ назначений
func EncodeAssignments(w io.Writer, doc *AssignmentDoc, f Format) error {
	return encode(w, f, doc)
}

// DecodeAssignments читает документ назначений
func DecodeAssignments(r io.Reader, f Format) (*AssignmentDoc, error) {
	var doc AssignmentDoc
	if err := decode(r, f, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// WriteAssignmentsFile пишет документ назначений в файл; формат по расширению
func WriteAssignmentsFile(path string, doc *AssignmentDoc) error {
	return writeFile(path, func(w io.Writer) error {
		return EncodeAssignments(w, doc, FormatFromPath(path))
	})
}
