// Package report renders the audit output of a plan run (disconnected
// districts, seeding log, district statistics and assignments) as XLSX, CSV
// or PDF.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"redistrict/pkg/apperror"
	"redistrict/pkg/domain"
	"redistrict/services/planner-svc/internal/engine"
)

// Format формат отчёта
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
)

// RunInfo метаданные запуска для шапки отчёта
type RunInfo struct {
	ID                string
	Name              string
	GraphHash         string
	RequiredDistricts int
	RandomSeed        int64
	CacheHit          bool
	Bridges           int
	CreatedAt         time.Time
}

// Options параметры отчёта
type Options struct {
	Title string
	// MaxAssignmentRows ограничивает лист назначений; 0 без ограничения
	MaxAssignmentRows int
}

// Data данные для генерации отчёта
type Data struct {
	Run         RunInfo
	Result      *engine.Result
	Stats       *domain.PlanStatistics
	Assignments map[string]domain.District
	Options     Options
}

// Generator интерфейс генератора отчётов
type Generator interface {
	Generate(ctx context.Context, data *Data) ([]byte, error)
	Format() Format
}

// New возвращает генератор для формата
func New(format Format) (Generator, error) {
	switch format {
	case FormatXLSX:
		return NewExcelGenerator(), nil
	case FormatCSV:
		return NewCSVGenerator(), nil
	case FormatPDF:
		return NewPDFGenerator(), nil
	default:
		return nil, apperror.Newf(apperror.CodeInvalidArgument, "unknown report format %q", format).
			WithField("report.format")
	}
}

// BaseGenerator общие утилиты генераторов
type BaseGenerator struct{}

// Title возвращает заголовок отчёта
func (b *BaseGenerator) Title(data *Data) string {
	if data.Options.Title != "" {
		return data.Options.Title
	}
	if data.Run.Name != "" {
		return "District Plan Report: " + data.Run.Name
	}
	return "District Plan Report"
}

// AssignmentRow строка листа назначений
type AssignmentRow struct {
	NodeID   string
	District domain.District
}

// Assignments возвращает назначения, упорядоченные по округу и узлу, и признак усечения
func (b *BaseGenerator) Assignments(data *Data) ([]AssignmentRow, bool) {
	rows := make([]AssignmentRow, 0, len(data.Assignments))
	for id, d := range data.Assignments {
		rows = append(rows, AssignmentRow{NodeID: id, District: d})
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := domain.CompareDistricts(rows[i].District, rows[j].District); c != 0 {
			return c < 0
		}
		return rows[i].NodeID < rows[j].NodeID
	})

	limit := data.Options.MaxAssignmentRows
	if limit > 0 && len(rows) > limit {
		return rows[:limit], true
	}
	return rows, false
}

// FormatFloat форматирует число с заданной точностью
func (b *BaseGenerator) FormatFloat(v float64, precision int) string {
	return fmt.Sprintf("%.*f", precision, v)
}

// FormatSizes форматирует размеры компонент
func (b *BaseGenerator) FormatSizes(sizes []int) string {
	s := ""
	for i, n := range sizes {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%d", n)
	}
	return s
}

// FormatDuration форматирует длительность
func (b *BaseGenerator) FormatDuration(d time.Duration) string {
	ms := float64(d) / float64(time.Millisecond)
	if ms < 1000 {
		return fmt.Sprintf("%.2f ms", ms)
	}
	return fmt.Sprintf("%.2f s", ms/1000)
}

// FormatTimestamp форматирует время
func (b *BaseGenerator) FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

// summaryRows пары "показатель, значение" для листа Summary
func (b *BaseGenerator) summaryRows(data *Data) [][2]any {
	rows := [][2]any{
		{"Run ID", data.Run.ID},
		{"Name", data.Run.Name},
		{"Graph Hash", data.Run.GraphHash},
		{"Created At", b.FormatTimestamp(data.Run.CreatedAt)},
		{"Required Districts", data.Run.RequiredDistricts},
		{"Random Seed", data.Run.RandomSeed},
		{"Cache Hit", data.Run.CacheHit},
		{"Bridges Added", data.Run.Bridges},
	}
	if res := data.Result; res != nil {
		rows = append(rows,
			[2]any{"Repair Sweeps", res.Sweeps},
			[2]any{"Disconnected Districts", len(res.Records)},
			[2]any{"Repaired Districts", res.RepairedCount()},
			[2]any{"Seeded Districts", len(res.SeedingLog)},
			[2]any{"Relabels", len(res.Journal)},
			[2]any{"Duration", b.FormatDuration(res.Duration)},
		)
	}
	if st := data.Stats; st != nil {
		rows = append(rows,
			[2]any{"Geo Units", st.NodeCount},
			[2]any{"Adjacencies", st.EdgeCount},
			[2]any{"Districts", len(st.Districts)},
			[2]any{"Total Population", st.TotalPopulation},
			[2]any{"Ideal Population", st.IdealPopulation},
			[2]any{"Max |Deviation| %", st.MaxAbsDeviationPct},
			[2]any{"Balance Grade", string(st.Grade)},
		)
	}
	return rows
}

// ColName преобразует индекс колонки в буквенное обозначение (0 -> A, 25 -> Z, 26 -> AA)
func ColName(index int) string {
	result := ""
	for {
		result = string(rune('A'+index%26)) + result
		index = index/26 - 1
		if index < 0 {
			break
		}
	}
	return result
}

// Cell возвращает адрес ячейки по индексу колонки и номеру строки
func Cell(colIndex, row int) string {
	return fmt.Sprintf("%s%d", ColName(colIndex), row)
}
