package reports

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Output formats.
const (
	FormatXLSX = "xlsx"
	FormatJSON = "json"
)

// Renderer writes a Document in one output format.
type Renderer interface {
	ContentType() string
	Render(w io.Writer, doc Document) error
}

// RendererFor returns the renderer of format.
func RendererFor(format string) (Renderer, bool) {
	switch format {
	case FormatXLSX:
		return xlsxRenderer{}, true
	case FormatJSON:
		return jsonRenderer{}, true
	}
	return nil, false
}

type jsonRenderer struct{}

func (jsonRenderer) ContentType() string { return "application/json" }

func (jsonRenderer) Render(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode JSON report: %w", err)
	}
	return nil
}

type xlsxRenderer struct{}

func (xlsxRenderer) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

const overviewSheet = "Overview"

func (xlsxRenderer) Render(w io.Writer, doc Document) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", overviewSheet); err != nil {
		return fmt.Errorf("failed to rename overview sheet: %w", err)
	}
	overview := [][]any{
		{doc.Title},
		{"Generated", doc.GeneratedAt.Format(time.RFC1123)},
		{"Shipments analysed", doc.RowCount},
	}
	for _, line := range doc.Filters {
		label, value, _ := strings.Cut(line, ": ")
		overview = append(overview, []any{label, value})
	}
	if doc.Truncated {
		overview = append(overview, []any{"Note", fmt.Sprintf("Only the newest %d matching shipments were analysed", doc.RowCount)})
	}
	if err := writeRows(f, overviewSheet, overview); err != nil {
		return err
	}
	_ = f.SetColWidth(overviewSheet, "A", "A", 24)
	_ = f.SetColWidth(overviewSheet, "B", "B", 40)

	used := map[string]bool{overviewSheet: true}
	for i, s := range doc.Sections {
		name := sheetName(i+1, s.Title, used)
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", name, err)
		}
		if err := writeRows(f, name, sectionRows(s)); err != nil {
			return err
		}
		_ = f.SetColWidth(name, "A", "A", 32)
		_ = f.SetColWidth(name, "B", "F", 16)

		if s.Type == SectionTrend && len(s.Trend) > 0 {
			png, err := TrendChartPNG(s.Title, s.Trend)
			if err != nil {
				slog.Warn("Skipping trend chart", "section", s.Title, "error", err)
				continue
			}
			if err := f.AddPictureFromBytes(name, "G2", &excelize.Picture{
				Extension: ".png",
				File:      png,
				Format:    &excelize.GraphicOptions{ScaleX: 0.8, ScaleY: 0.8},
			}); err != nil {
				return fmt.Errorf("failed to embed trend chart: %w", err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write XLSX report: %w", err)
	}
	return nil
}

const maxSheetName = 31

// truncateRunes cuts s to at most n characters without splitting a rune.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// sheetName builds a unique sheet name within Excel's 31 character limit.
func sheetName(n int, title string, used map[string]bool) string {
	clean := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return ' '
		}
		return r
	}, title)
	base := strings.TrimSpace(truncateRunes(fmt.Sprintf("%d %s", n, clean), maxSheetName))
	name := base
	for k := 2; used[name]; k++ {
		suffix := fmt.Sprintf(" (%d)", k)
		name = truncateRunes(base, maxSheetName-len(suffix)) + suffix
	}
	used[name] = true
	return name
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+1, sheet, err)
		}
	}
	return nil
}

func num(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func pct(p *float64) any {
	if p == nil {
		return "n/a"
	}
	return *p
}

func sectionRows(s SectionResult) [][]any {
	rows := [][]any{{s.Title}, {}}

	switch s.Type {
	case SectionSummary:
		if s.Summary == nil {
			break
		}
		sum := s.Summary
		rows = append(rows,
			[]any{"Shipments", sum.ShipmentCount},
			[]any{"Total value (USD)", num(sum.TotalValue)},
			[]any{"Total quantity", num(sum.TotalQuantity)},
			[]any{"Average unit price (USD)", num(sum.AvgUnitPrice)},
			[]any{"Unique suppliers", sum.Suppliers},
			[]any{"Unique buyers", sum.Buyers},
			[]any{"Destination countries", sum.Countries},
		)
		if sum.FirstDate != nil && sum.LastDate != nil {
			rows = append(rows,
				[]any{"First shipment", sum.FirstDate.Format("2006-01-02")},
				[]any{"Last shipment", sum.LastDate.Format("2006-01-02")},
			)
		}

	case SectionTop:
		rows = append(rows, []any{string(s.Dimension), "Value (USD)", "Share %", "Shipments", "Quantity"})
		for _, g := range s.Groups {
			rows = append(rows, []any{g.Key, num(g.Value), g.Share, g.Count, num(g.Quantity)})
		}

	case SectionTrend:
		rows = append(rows, []any{"Month", "Value (USD)", "Shipments", "Quantity"})
		for _, p := range s.Trend {
			rows = append(rows, []any{p.Month, num(p.Value), p.Count, num(p.Quantity)})
		}
		if s.Growth != nil {
			rows = append(rows, []any{},
				[]any{"Month over month %", pct(s.Growth.MonthOverMonth)},
				[]any{"Half over half %", pct(s.Growth.HalfOverHalf)},
			)
		}

	case SectionConcentration:
		if s.Concentration == nil {
			break
		}
		c := s.Concentration
		rows = append(rows,
			[]any{"Dimension", string(c.Dimension)},
			[]any{"Players", c.Players},
			[]any{"HHI", c.HHI},
			[]any{"Level", c.Level},
			[]any{"Top 4 share %", c.CR4},
		)

	case SectionPricing:
		rows = append(rows, []any{string(s.Dimension), "Min (USD)", "Avg (USD)", "Max (USD)", "Shipments"})
		for _, b := range s.Prices {
			rows = append(rows, []any{b.Key, num(b.Min), num(b.Avg), num(b.Max), b.Count})
		}
	}
	return rows
}
