package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
)

// CSVGenerator генератор CSV отчётов; секции разделены пустой строкой
type CSVGenerator struct {
	BaseGenerator
}

// NewCSVGenerator создаёт новый генератор
func NewCSVGenerator() *CSVGenerator {
	return &CSVGenerator{}
}

// Format возвращает формат генератора
func (g *CSVGenerator) Format() Format {
	return FormatCSV
}

// csvWriter обёртка для отслеживания ошибок
type csvWriter struct {
	w   *csv.Writer
	err error
}

func (cw *csvWriter) Write(record ...string) {
	if cw.err != nil {
		return
	}
	cw.err = cw.w.Write(record)
}

func (cw *csvWriter) Flush() {
	if cw.err != nil {
		return
	}
	cw.w.Flush()
	cw.err = cw.w.Error()
}

// Generate генерирует CSV отчёт
func (g *CSVGenerator) Generate(ctx context.Context, data *Data) ([]byte, error) {
	var buf bytes.Buffer
	cw := &csvWriter{w: csv.NewWriter(&buf)}

	sections := []func(*csvWriter, *Data){
		g.writeSummary,
		g.writeDisconnected,
		g.writeSeeding,
		g.writeDistricts,
		g.writeAssignments,
	}
	for _, section := range sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		section(cw, data)
	}

	cw.Flush()
	if cw.err != nil {
		return nil, fmt.Errorf("csv write error: %w", cw.err)
	}
	return buf.Bytes(), nil
}

func (g *CSVGenerator) writeSummary(w *csvWriter, data *Data) {
	w.Write("# " + g.Title(data))
	w.Write("Metric", "Value")
	for _, kv := range g.summaryRows(data) {
		w.Write(kv[0].(string), fmt.Sprint(kv[1]))
	}
	w.Write("")
}

func (g *CSVGenerator) writeDisconnected(w *csvWriter, data *Data) {
	w.Write("# " + SheetDisconnected)
	w.Write("Original Label", "Component Sizes", "Repaired", "First Sweep")
	if data.Result != nil {
		for _, rec := range data.Result.Records {
			w.Write(
				string(rec.OriginalLabel),
				g.FormatSizes(rec.ComponentSizesBefore),
				strconv.FormatBool(rec.Repaired),
				strconv.Itoa(rec.FirstSweep),
			)
		}
	}
	w.Write("")
}

func (g *CSVGenerator) writeSeeding(w *csvWriter, data *Data) {
	w.Write("# " + SheetSeeding)
	w.Write("#", "New Label", "Donor Label", "Seed Geo Unit", "Population")
	if data.Result != nil {
		for i, e := range data.Result.SeedingLog {
			w.Write(
				strconv.Itoa(i+1),
				string(e.NewLabel),
				string(e.DonorLabel),
				e.SeedNodeID,
				g.FormatFloat(e.Population, 2),
			)
		}
	}
	w.Write("")
}

func (g *CSVGenerator) writeDistricts(w *csvWriter, data *Data) {
	w.Write("# " + SheetDistricts)
	w.Write("District", "Geo Units", "Population", "Deviation", "Deviation %", "Contiguous")
	if data.Stats != nil {
		for _, ds := range data.Stats.Districts {
			w.Write(
				string(ds.District),
				strconv.Itoa(ds.Members),
				g.FormatFloat(ds.Population, 2),
				g.FormatFloat(ds.Deviation, 2),
				g.FormatFloat(ds.DeviationPct, 4),
				strconv.FormatBool(ds.Contiguous),
			)
		}
	}
	w.Write("")
}

func (g *CSVGenerator) writeAssignments(w *csvWriter, data *Data) {
	w.Write("# " + SheetAssignments)
	w.Write("Geo Unit", "District")
	rows, truncated := g.Assignments(data)
	for _, r := range rows {
		w.Write(r.NodeID, string(r.District))
	}
	if truncated {
		w.Write(fmt.Sprintf("truncated to %d of %d rows", len(rows), len(data.Assignments)))
	}
}
