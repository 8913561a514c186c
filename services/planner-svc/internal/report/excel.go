package report

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Имена листов XLSX
const (
	SheetSummary      = "Summary"
	SheetDisconnected = "Disconnected"
	SheetSeeding      = "Seeding"
	SheetDistricts    = "Districts"
	SheetAssignments  = "Assignments"
)

// ExcelGenerator генератор XLSX отчётов
type ExcelGenerator struct {
	BaseGenerator
}

// NewExcelGenerator создаёт новый генератор
func NewExcelGenerator() *ExcelGenerator {
	return &ExcelGenerator{}
}

// Format возвращает формат генератора
func (g *ExcelGenerator) Format() Format {
	return FormatXLSX
}

// sheetWriter пишет строки подряд и запоминает первую ошибку
type sheetWriter struct {
	f      *excelize.File
	sheet  string
	row    int
	header int
	err    error
}

func (w *sheetWriter) writeRow(values ...any) {
	if w.err != nil {
		return
	}
	w.row++
	for i, v := range values {
		if err := w.f.SetCellValue(w.sheet, Cell(i, w.row), v); err != nil {
			w.err = err
			return
		}
	}
}

func (w *sheetWriter) writeHeader(names ...string) {
	values := make([]any, len(names))
	for i, n := range names {
		values[i] = n
	}
	w.writeRow(values...)
	if w.err == nil && len(names) > 0 {
		w.err = w.f.SetCellStyle(w.sheet, Cell(0, w.row), Cell(len(names)-1, w.row), w.header)
	}
}

// Generate генерирует XLSX отчёт
func (g *ExcelGenerator) Generate(ctx context.Context, data *Data) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	writers := []struct {
		sheet string
		fn    func(w *sheetWriter, data *Data)
	}{
		{SheetSummary, g.writeSummary},
		{SheetDisconnected, g.writeDisconnected},
		{SheetSeeding, g.writeSeeding},
		{SheetDistricts, g.writeDistricts},
		{SheetAssignments, g.writeAssignments},
	}

	for i, s := range writers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if i == 0 {
			// Переименовываем лист по умолчанию, чтобы Summary открывался первым
			if err := f.SetSheetName(f.GetSheetName(0), s.sheet); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(s.sheet); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", s.sheet, err)
		}

		w := &sheetWriter{f: f, sheet: s.sheet, header: headerStyle}
		s.fn(w, data)
		if w.err != nil {
			return nil, fmt.Errorf("failed to write sheet %s: %w", s.sheet, w.err)
		}
	}

	f.SetActiveSheet(0)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *ExcelGenerator) writeSummary(w *sheetWriter, data *Data) {
	w.writeRow(g.Title(data))
	w.row++
	w.writeHeader("Metric", "Value")
	for _, kv := range g.summaryRows(data) {
		w.writeRow(kv[0], kv[1])
	}
	if w.err == nil {
		w.err = w.f.SetColWidth(w.sheet, "A", "A", 26)
	}
}

func (g *ExcelGenerator) writeDisconnected(w *sheetWriter, data *Data) {
	w.writeHeader("Original Label", "Component Sizes", "Components", "Repaired", "First Sweep")
	if data.Result == nil {
		return
	}
	for _, rec := range data.Result.Records {
		w.writeRow(
			string(rec.OriginalLabel),
			g.FormatSizes(rec.ComponentSizesBefore),
			len(rec.ComponentSizesBefore),
			rec.Repaired,
			rec.FirstSweep,
		)
	}
}

func (g *ExcelGenerator) writeSeeding(w *sheetWriter, data *Data) {
	w.writeHeader("#", "New Label", "Donor Label", "Seed Geo Unit", "Population")
	if data.Result == nil {
		return
	}
	for i, e := range data.Result.SeedingLog {
		w.writeRow(i+1, string(e.NewLabel), string(e.DonorLabel), e.SeedNodeID, e.Population)
	}
}

func (g *ExcelGenerator) writeDistricts(w *sheetWriter, data *Data) {
	w.writeHeader("District", "Geo Units", "Population", "Deviation", "Deviation %", "Contiguous", "Components")
	if data.Stats == nil {
		return
	}
	for _, ds := range data.Stats.Districts {
		w.writeRow(
			string(ds.District),
			ds.Members,
			ds.Population,
			ds.Deviation,
			ds.DeviationPct,
			ds.Contiguous,
			ds.Components,
		)
	}
}

func (g *ExcelGenerator) writeAssignments(w *sheetWriter, data *Data) {
	w.writeHeader("Geo Unit", "District")
	rows, truncated := g.Assignments(data)
	for _, r := range rows {
		w.writeRow(r.NodeID, string(r.District))
	}
	if truncated {
		w.writeRow(fmt.Sprintf("truncated to %d of %d rows", len(rows), len(data.Assignments)))
	}
}
