package report

import (
	"context"
	"fmt"
	"strconv"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/border"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// pdfMaxTableRows строк таблицы в PDF; остальное доступно в XLSX
const pdfMaxTableRows = 40

// PDFGenerator генератор PDF отчётов: сводка, разорванные округа, посев и округа
type PDFGenerator struct {
	BaseGenerator
}

// NewPDFGenerator создаёт новый генератор
func NewPDFGenerator() *PDFGenerator {
	return &PDFGenerator{}
}

// Format возвращает формат генератора
func (g *PDFGenerator) Format() Format {
	return FormatPDF
}

var (
	accentColor = &props.Color{Red: 41, Green: 98, Blue: 145}
	mutedColor  = &props.Color{Red: 127, Green: 140, Blue: 141}
	ruleColor   = &props.Color{Red: 236, Green: 240, Blue: 241}
	brokenColor = &props.Color{Red: 192, Green: 57, Blue: 43}

	pdfTitle = props.Text{Size: 18, Style: fontstyle.Bold, Align: align.Center, Color: accentColor}
	pdfH2    = props.Text{Size: 13, Style: fontstyle.Bold, Color: accentColor, Top: 3}
	pdfKey   = props.Text{Size: 9, Style: fontstyle.Bold}
	pdfValue = props.Text{Size: 9}
	pdfNote  = props.Text{Size: 8, Color: mutedColor}

	pdfHeadCell = &props.Cell{BackgroundColor: accentColor}
	pdfHeadText = props.Text{
		Size:  8,
		Style: fontstyle.Bold,
		Align: align.Center,
		Color: &props.Color{Red: 255, Green: 255, Blue: 255},
	}
	pdfCell     = &props.Cell{BorderType: border.Bottom, BorderColor: ruleColor}
	pdfCellText = props.Text{Size: 8, Align: align.Center}
)

// Generate генерирует PDF отчёт
func (g *PDFGenerator) Generate(ctx context.Context, data *Data) ([]byte, error) {
	m := maroto.New(config.NewBuilder().
		WithPageNumber().
		WithLeftMargin(15).
		WithTopMargin(15).
		WithRightMargin(15).
		Build())

	m.AddRow(12, text.NewCol(12, g.Title(data), pdfTitle))
	m.AddRow(3, line.NewCol(12, props.Line{Color: accentColor}))

	sections := []func(core.Maroto, *Data){
		g.addSummary,
		g.addDisconnected,
		g.addSeeding,
		g.addDistricts,
	}
	for _, section := range sections {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		section(m, data)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return doc.GetBytes(), nil
}

func (g *PDFGenerator) addSummary(m core.Maroto, data *Data) {
	g.section(m, SheetSummary)
	for _, kv := range g.summaryRows(data) {
		m.AddRow(5,
			text.NewCol(5, kv[0].(string), pdfKey),
			text.NewCol(7, fmt.Sprint(kv[1]), pdfValue),
		)
	}
}

func (g *PDFGenerator) addDisconnected(m core.Maroto, data *Data) {
	g.section(m, SheetDisconnected)
	if data.Result == nil || len(data.Result.Records) == 0 {
		m.AddRow(5, text.NewCol(12, "All districts were contiguous.", pdfNote))
		return
	}

	g.header(m, []string{"Original Label", "Component Sizes", "Repaired", "First Sweep"}, []int{3, 4, 2, 3})
	rows := make([][]string, 0, len(data.Result.Records))
	for _, rec := range data.Result.Records {
		rows = append(rows, []string{
			string(rec.OriginalLabel),
			g.FormatSizes(rec.ComponentSizesBefore),
			strconv.FormatBool(rec.Repaired),
			strconv.Itoa(rec.FirstSweep),
		})
	}
	g.table(m, rows, []int{3, 4, 2, 3})
}

func (g *PDFGenerator) addSeeding(m core.Maroto, data *Data) {
	g.section(m, SheetSeeding)
	if data.Result == nil || len(data.Result.SeedingLog) == 0 {
		m.AddRow(5, text.NewCol(12, "No districts were seeded.", pdfNote))
		return
	}

	widths := []int{1, 3, 3, 3, 2}
	g.header(m, []string{"#", "New Label", "Donor Label", "Seed Geo Unit", "Population"}, widths)
	rows := make([][]string, 0, len(data.Result.SeedingLog))
	for i, e := range data.Result.SeedingLog {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			string(e.NewLabel),
			string(e.DonorLabel),
			e.SeedNodeID,
			g.FormatFloat(e.Population, 2),
		})
	}
	g.table(m, rows, widths)
}

func (g *PDFGenerator) addDistricts(m core.Maroto, data *Data) {
	if data.Stats == nil || len(data.Stats.Districts) == 0 {
		return
	}
	g.section(m, SheetDistricts)

	widths := []int{2, 2, 2, 2, 2, 2}
	g.header(m, []string{"District", "Geo Units", "Population", "Deviation", "Deviation %", "Contiguous"}, widths)
	for i, ds := range data.Stats.Districts {
		if i == pdfMaxTableRows {
			g.truncated(m, len(data.Stats.Districts)-i)
			return
		}
		style := pdfCellText
		if !ds.Contiguous {
			style.Color = brokenColor
		}
		m.AddRow(5,
			text.NewCol(2, string(ds.District), style).WithStyle(pdfCell),
			text.NewCol(2, strconv.Itoa(ds.Members), style).WithStyle(pdfCell),
			text.NewCol(2, g.FormatFloat(ds.Population, 0), style).WithStyle(pdfCell),
			text.NewCol(2, g.FormatFloat(ds.Deviation, 2), style).WithStyle(pdfCell),
			text.NewCol(2, g.FormatFloat(ds.DeviationPct, 2), style).WithStyle(pdfCell),
			text.NewCol(2, strconv.FormatBool(ds.Contiguous), style).WithStyle(pdfCell),
		)
	}
}

func (g *PDFGenerator) section(m core.Maroto, title string) {
	m.AddRow(4)
	m.AddRow(8, text.NewCol(12, title, pdfH2))
	m.AddRow(2, line.NewCol(12, props.Line{Color: ruleColor}))
}

func (g *PDFGenerator) header(m core.Maroto, titles []string, widths []int) {
	cols := make([]core.Col, len(titles))
	for i, t := range titles {
		cols[i] = text.NewCol(widths[i], t, pdfHeadText).WithStyle(pdfHeadCell)
	}
	m.AddRow(6, cols...)
}

func (g *PDFGenerator) table(m core.Maroto, rows [][]string, widths []int) {
	for i, row := range rows {
		if i == pdfMaxTableRows {
			g.truncated(m, len(rows)-i)
			return
		}
		cols := make([]core.Col, len(row))
		for j, v := range row {
			cols[j] = text.NewCol(widths[j], v, pdfCellText).WithStyle(pdfCell)
		}
		m.AddRow(5, cols...)
	}
}

func (g *PDFGenerator) truncated(m core.Maroto, rest int) {
	m.AddRow(5, text.NewCol(12, fmt.Sprintf("... and %d more rows", rest), pdfNote))
}
