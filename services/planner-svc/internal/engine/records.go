package engine

import (
	"time"

	"redistrict/pkg/domain"
)

// Cause источник смены метки
type Cause string

const (
	CauseRepair   Cause = "repair"
	CauseSeed     Cause = "seed"
	CauseRollback Cause = "rollback"
)

// Relabel запись журнала изменений меток
type Relabel struct {
	Seq    int             `json:"seq"`
	NodeID string          `json:"node_id"`
	From   domain.District `json:"from"`
	To     domain.District `json:"to"`
	Cause  Cause           `json:"cause"`
}

// DisconnectedDistrictRecord аудит разорванного округа
type DisconnectedDistrictRecord struct {
	OriginalLabel        domain.District `json:"original_label"`
	ComponentSizesBefore []int           `json:"component_sizes_before"`
	Repaired             bool            `json:"repaired"`
	FirstSweep           int             `json:"first_sweep"`
}

// SeedEntry запись журнала посева
type SeedEntry struct {
	NewLabel   domain.District `json:"new_label"`
	DonorLabel domain.District `json:"donor_label"`
	SeedNodeID string          `json:"seed_node_id"`
	Population float64         `json:"population"`
}

// Result итог успешного запуска
type Result struct {
	Records    []DisconnectedDistrictRecord `json:"disconnected"`
	SeedingLog []SeedEntry                  `json:"seeding"`
	Journal    []Relabel                    `json:"journal"`
	Sweeps     int                          `json:"sweeps"`
	Districts  []domain.District            `json:"districts"`
	Duration   time.Duration                `json:"duration"`
}

// RepairedCount возвращает количество отремонтированных округов
func (r *Result) RepairedCount() int {
	n := 0
	for _, rec := range r.Records {
		if rec.Repaired {
			n++
		}
	}
	return n
}
