package reports

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/jjckrbbt/pharmatrade/internal/analytics"
	"github.com/jjckrbbt/pharmatrade/internal/shipments"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func fixture() []shipments.Shipment {
	return []shipments.Shipment{
		{ShipmentDate: day(2024, 1, 10), Supplier: "Alpha Pharma", Buyer: "Xeno Health", DestinationCountry: "United States", HSCode: "300490", ValueUSD: dec("600"), Quantity: dec("100")},
		{ShipmentDate: day(2024, 1, 20), Supplier: "Beta Labs", Buyer: "Ymed", DestinationCountry: "United Kingdom", HSCode: "300420", ValueUSD: dec("300"), Quantity: dec("50")},
		{ShipmentDate: day(2024, 3, 5), Supplier: "Alpha Pharma", Buyer: "Ymed", DestinationCountry: "United States", HSCode: "294200", ValueUSD: dec("100"), Quantity: dec("0")},
		{ShipmentDate: day(2024, 3, 15), Supplier: "Alpha Pharma", Buyer: "Xeno Health", DestinationCountry: "United States", HSCode: "300490", ValueUSD: dec("400"), Quantity: dec("50")},
	}
}

func allSections(t *testing.T) []Section {
	t.Helper()
	raw := []Section{
		{Type: SectionSummary},
		{Type: SectionTop, Dimension: "supplier", Limit: 1},
		{Type: SectionTrend},
		{Type: SectionConcentration, Dimension: "supplier"},
		{Type: SectionPricing, Dimension: "supplier"},
	}
	out := make([]Section, len(raw))
	for i, s := range raw {
		n, err := s.Normalize()
		require.NoError(t, err)
		out[i] = n
	}
	return out
}

func TestBuild(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	doc := Build("Alpha", shipments.Criteria{Supplier: "Alpha", From: "2024-01-01"}, fixture(), allSections(t), now)

	assert.Equal(t, "Alpha", doc.Title)
	assert.Equal(t, now, doc.GeneratedAt)
	assert.Equal(t, []string{"Supplier: Alpha", "From: 2024-01-01"}, doc.Filters)
	assert.Equal(t, 4, doc.RowCount)
	require.Len(t, doc.Sections, 5)

	summary := doc.Sections[0]
	require.NotNil(t, summary.Summary)
	assert.True(t, dec("1400").Equal(summary.Summary.TotalValue))

	top := doc.Sections[1]
	require.Len(t, top.Groups, 2)
	assert.Equal(t, "Alpha Pharma", top.Groups[0].Key)
	assert.Equal(t, analytics.OthersKey, top.Groups[1].Key)

	trend := doc.Sections[2]
	require.Len(t, trend.Trend, 3)
	require.NotNil(t, trend.Growth)

	conc := doc.Sections[3]
	require.NotNil(t, conc.Concentration)
	assert.Equal(t, analytics.LevelHigh, conc.Concentration.Level)

	prices := doc.Sections[4]
	assert.Len(t, prices.Prices, 2)
}

func TestBuildEmptyRows(t *testing.T) {
	doc := Build("Nothing", shipments.Criteria{}, nil, allSections(t), time.Now())

	assert.Zero(t, doc.RowCount)
	require.Len(t, doc.Sections, 5)
	assert.Empty(t, doc.Sections[1].Groups)
	assert.Empty(t, doc.Sections[2].Trend)
}

func TestJSONRenderer(t *testing.T) {
	r, ok := RendererFor(FormatJSON)
	require.True(t, ok)
	assert.Equal(t, "application/json", r.ContentType())

	doc := Build("Alpha", shipments.Criteria{}, fixture(), allSections(t), time.Now())
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, doc))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "Alpha", decoded["title"])
	assert.Len(t, decoded["sections"], 5)
}

func TestXLSXRenderer(t *testing.T) {
	r, ok := RendererFor(FormatXLSX)
	require.True(t, ok)

	doc := Build("Alpha", shipments.Criteria{Supplier: "Alpha"}, fixture(), allSections(t), time.Now())
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, doc))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	require.Len(t, sheets, 6)
	assert.Equal(t, "Overview", sheets[0])
	assert.Equal(t, "1 Summary", sheets[1])

	title, err := f.GetCellValue("Overview", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", title)

	filter, err := f.GetCellValue("Overview", "B4")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", filter)

	leader, err := f.GetCellValue(sheets[2], "A4")
	require.NoError(t, err)
	assert.Equal(t, "Alpha Pharma", leader)

	pics, err := f.GetPictures(sheets[3], "G2")
	require.NoError(t, err)
	assert.Len(t, pics, 1, "trend sheet embeds the chart")
}

func TestRendererForUnknownFormat(t *testing.T) {
	_, ok := RendererFor("pdf")
	assert.False(t, ok)
}

func TestTrendChartPNG(t *testing.T) {
	_, err := TrendChartPNG("empty", nil)
	assert.Error(t, err)

	png, err := TrendChartPNG("Trend", analytics.MonthlyTrend(fixture()))
	require.NoError(t, err)
	require.Greater(t, len(png), 8)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
}

func TestSheetName(t *testing.T) {
	used := map[string]bool{}
	name := sheetName(1, "Top/bottom: suppliers", used)
	assert.Equal(t, "1 Top bottom  suppliers", name)

	long := "A very long section title that will not fit"
	first := sheetName(2, long, used)
	assert.LessOrEqual(t, len(first), 31)
	second := sheetName(2, long, used)
	assert.NotEqual(t, first, second)
	assert.LessOrEqual(t, len(second), 31)
}

func TestSheetNameKeepsRunesWhole(t *testing.T) {
	used := map[string]bool{}
	title := strings.Repeat("a", 28) + "éé"

	first := sheetName(1, title, used)
	assert.True(t, utf8.ValidString(first), "%q", first)
	assert.Equal(t, "1 "+strings.Repeat("a", 28)+"é", first)

	second := sheetName(1, title, used)
	assert.True(t, utf8.ValidString(second), "%q", second)
	assert.LessOrEqual(t, utf8.RuneCountInString(second), 31)
	assert.Equal(t, " (2)", second[len(second)-4:])

	cjk := sheetName(3, strings.Repeat("医薬品", 12), used)
	assert.True(t, utf8.ValidString(cjk))
	assert.Equal(t, 31, utf8.RuneCountInString(cjk))
}

func TestXLSXRendererNotesTruncation(t *testing.T) {
	r, _ := RendererFor(FormatXLSX)
	doc := Build("Alpha", shipments.Criteria{}, fixture(), []Section{{Type: SectionSummary}}, time.Now())
	doc.Truncated = true

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, doc))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Overview")
	require.NoError(t, err)
	last := rows[len(rows)-1]
	require.Len(t, last, 2)
	assert.Equal(t, "Note", last[0])
	assert.Contains(t, last[1], "newest 4")
}
