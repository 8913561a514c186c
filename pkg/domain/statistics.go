package domain

import (
	"math"
)

// GraphStatistics статистика графа смежности
type GraphStatistics struct {
	NodeCount          int64   `json:"node_count"`
	EdgeCount          int64   `json:"edge_count"`
	SyntheticEdgeCount int64   `json:"synthetic_edge_count"`
	DistrictCount      int64   `json:"district_count"`
	TotalPopulation    float64 `json:"total_population"`
	TotalPerimeter     float64 `json:"total_shared_perimeter"`
	IsConnected        bool    `json:"is_connected"`
	ComponentCount     int     `json:"component_count"`
	IsolatedNodes      int     `json:"isolated_nodes"`
	Density            float64 `json:"density"`
	AverageDegree      float64 `json:"average_degree"`
	MaxDegree          int     `json:"max_degree"`
	MinDegree          int     `json:"min_degree"`
}

// CalculateGraphStatistics вычисляет статистику графа
func CalculateGraphStatistics(g *Graph) *GraphStatistics {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stats := &GraphStatistics{
		NodeCount:     int64(len(g.nodes)),
		EdgeCount:     int64(len(g.edges)),
		DistrictCount: int64(len(g.byLabel)),
		MinDegree:     int(^uint(0) >> 1), // MaxInt
	}

	all := make(map[string]struct{}, len(g.nodes))
	for id, u := range g.nodes {
		all[id] = struct{}{}
		stats.TotalPopulation += u.Population
	}

	for _, e := range g.edges {
		if e.Synthetic {
			stats.SyntheticEdgeCount++
			continue
		}
		stats.TotalPerimeter += e.SharedPerimeter
	}

	// Статистика степеней
	if len(g.nodes) > 0 {
		totalDegree := 0
		for id := range g.nodes {
			d := len(g.adjacency[id])
			totalDegree += d
			if d == 0 {
				stats.IsolatedNodes++
			}
			if d > stats.MaxDegree {
				stats.MaxDegree = d
			}
			if d < stats.MinDegree {
				stats.MinDegree = d
			}
		}
		stats.AverageDegree = float64(totalDegree) / float64(len(g.nodes))
	}

	if stats.MinDegree == int(^uint(0)>>1) {
		stats.MinDegree = 0
	}

	// Плотность неориентированного графа
	if stats.NodeCount > 1 {
		maxEdges := stats.NodeCount * (stats.NodeCount - 1) / 2
		stats.Density = float64(stats.EdgeCount) / float64(maxEdges)
	}

	stats.ComponentCount = len(g.componentsLocked(all))
	stats.IsConnected = stats.ComponentCount <= 1

	return stats
}

// BalanceGrade оценка равномерности населения округов
type BalanceGrade string

const (
	GradeA BalanceGrade = "A"
	GradeB BalanceGrade = "B"
	GradeC BalanceGrade = "C"
	GradeD BalanceGrade = "D"
	GradeF BalanceGrade = "F"
)

// DistrictStat показатели одного округа
type DistrictStat struct {
	District     District `json:"district"`
	Members      int      `json:"members"`
	Population   float64  `json:"population"`
	Deviation    float64  `json:"deviation"`
	DeviationPct float64  `json:"deviation_pct"`
	Contiguous   bool     `json:"contiguous"`
	Components   int      `json:"components"`
}

// PlanStatistics показатели плана по всем округам
type PlanStatistics struct {
	NodeCount          int            `json:"node_count"`
	EdgeCount          int            `json:"edge_count"`
	TotalPopulation    float64        `json:"total_population"`
	IdealPopulation    float64        `json:"ideal_population"`
	MaxAbsDeviation    float64        `json:"max_abs_deviation"`
	MaxAbsDeviationPct float64        `json:"max_abs_deviation_pct"`
	ContiguousCount    int            `json:"contiguous_count"`
	Grade              BalanceGrade   `json:"grade"`
	Districts          []DistrictStat `json:"districts"`
}

// DistrictStatistics вычисляет население и отклонение от идеального размера по округам
func DistrictStatistics(g *Graph) *PlanStatistics {
	g.mu.RLock()
	defer g.mu.RUnlock()

	labels := g.districtsLocked()
	stats := &PlanStatistics{
		NodeCount: len(g.nodes),
		EdgeCount: len(g.edges),
		Districts: make([]DistrictStat, 0, len(labels)),
	}

	for _, d := range labels {
		members := g.membersLocked(d)
		var pop float64
		for _, id := range members {
			pop += g.nodes[id].Population
		}
		stats.TotalPopulation += pop

		comps := len(g.componentsLocked(g.byLabel[d]))
		ds := DistrictStat{
			District:   d,
			Members:    len(members),
			Population: pop,
			Contiguous: comps == 1,
			Components: comps,
		}
		if ds.Contiguous {
			stats.ContiguousCount++
		}
		stats.Districts = append(stats.Districts, ds)
	}

	if len(labels) > 0 {
		stats.IdealPopulation = stats.TotalPopulation / float64(len(labels))
	}

	for i := range stats.Districts {
		ds := &stats.Districts[i]
		ds.Deviation = ds.Population - stats.IdealPopulation
		if stats.IdealPopulation > Epsilon {
			ds.DeviationPct = ds.Deviation / stats.IdealPopulation * 100
		}
		if math.Abs(ds.Deviation) > stats.MaxAbsDeviation {
			stats.MaxAbsDeviation = math.Abs(ds.Deviation)
		}
		if math.Abs(ds.DeviationPct) > stats.MaxAbsDeviationPct {
			stats.MaxAbsDeviationPct = math.Abs(ds.DeviationPct)
		}
	}

	stats.Grade = GradeBalance(stats.MaxAbsDeviationPct)
	return stats
}

// GradeBalance переводит максимальное отклонение в процентах в оценку
func GradeBalance(maxDeviationPct float64) BalanceGrade {
	switch {
	case maxDeviationPct <= BalanceGradeA:
		return GradeA
	case maxDeviationPct <= BalanceGradeB:
		return GradeB
	case maxDeviationPct <= BalanceGradeC:
		return GradeC
	case maxDeviationPct <= BalanceGradeD:
		return GradeD
	default:
		return GradeF
	}
}
