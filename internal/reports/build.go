package reports

import (
	"time"

	"github.com/jjckrbbt/pharmatrade/internal/analytics"
	"github.com/jjckrbbt/pharmatrade/internal/shipments"
)

// SectionResult is a computed section, ready to render. Exactly the fields
// relevant to its Type are set.
type SectionResult struct {
	Type          string                   `json:"type"`
	Title         string                   `json:"title"`
	Dimension     analytics.Dimension      `json:"dimension,omitempty"`
	Summary       *analytics.Summary       `json:"summary,omitempty"`
	Groups        []analytics.Group        `json:"groups,omitempty"`
	Trend         []analytics.MonthPoint   `json:"trend,omitempty"`
	Growth        *analytics.Growth        `json:"growth,omitempty"`
	Concentration *analytics.Concentration `json:"concentration,omitempty"`
	Prices        []analytics.PriceBand    `json:"prices,omitempty"`
}

// Document is everything a renderer needs. Truncated is set when more rows
// matched than could be analysed.
type Document struct {
	Title       string          `json:"title"`
	GeneratedAt time.Time       `json:"generated_at"`
	Filters     []string        `json:"filters"`
	RowCount    int             `json:"row_count"`
	Truncated   bool            `json:"truncated"`
	Sections    []SectionResult `json:"sections"`
}

// Build computes each section over rows. Sections must already be normalized.
func Build(title string, criteria shipments.Criteria, rows []shipments.Shipment, sections []Section, now time.Time) Document {
	doc := Document{
		Title:       title,
		GeneratedAt: now.UTC(),
		Filters:     criteria.Describe(),
		RowCount:    len(rows),
		Sections:    make([]SectionResult, 0, len(sections)),
	}

	for _, s := range sections {
		res := SectionResult{Type: s.Type, Title: s.Title, Dimension: analytics.Dimension(s.Dimension)}
		switch s.Type {
		case SectionSummary:
			sum := analytics.Summarize(rows)
			res.Summary = &sum
		case SectionTop:
			res.Groups = analytics.GroupBy(rows, res.Dimension, analytics.Options{Top: s.Limit, Others: true})
		case SectionTrend:
			res.Trend = analytics.MonthlyTrend(rows)
			g := analytics.PeriodGrowth(res.Trend)
			res.Growth = &g
		case SectionConcentration:
			c := analytics.ConcentrationOf(rows, res.Dimension)
			res.Concentration = &c
		case SectionPricing:
			res.Prices = analytics.PriceBands(rows, res.Dimension, s.Limit)
		}
		doc.Sections = append(doc.Sections, res)
	}
	return doc
}
