package analytics

import (
	"github.com/jjckrbbt/pharmatrade/internal/shipments"
	"github.com/shopspring/decimal"
)

// Profile is the quick-summary view of a single supplier, buyer, country or
// product within a market window. Truncated is set when the entity's rows hit
// the aggregation cap.
type Profile struct {
	Dimension         Dimension    `json:"dimension"`
	Name              string       `json:"name"`
	Summary           Summary      `json:"summary"`
	MarketShare       float64      `json:"market_share_pct"`
	Counterparty      Dimension    `json:"counterparty_dimension"`
	TopCounterparties []Group      `json:"top_counterparties"`
	TopProducts       []Group      `json:"top_products"`
	Trend             []MonthPoint `json:"trend"`
	Growth            Growth       `json:"growth"`
	Truncated         bool         `json:"truncated"`
}

// Narrow adds to f the column constraint selecting name on d. The query may
// match a superset of what Filter keeps; dimensions without such a column
// return f unchanged.
func (d Dimension) Narrow(f shipments.Filter, name string) shipments.Filter {
	switch d {
	case DimSupplier:
		f.Supplier = name
	case DimBuyer:
		f.Buyer = name
	case DimOrigin, DimDestination:
		f.Country = name
	case DimHSCode:
		f.HSCode = name
	}
	return f
}

// BuildProfile picks the rows belonging to name on dim and summarises them.
// rows may hold the whole market or just a superset of the entity's rows.
// The market share is the entity's value over marketValue, the total value
// of the window.
func BuildProfile(rows []shipments.Shipment, marketValue decimal.Decimal, dim, counterparty Dimension, name string, top int) Profile {
	own := Filter(rows, dim, name)

	summary := Summarize(own)
	trend := MonthlyTrend(own)

	return Profile{
		Dimension:         dim,
		Name:              name,
		Summary:           summary,
		MarketShare:       round2(percent(summary.TotalValue, marketValue)),
		Counterparty:      counterparty,
		TopCounterparties: GroupBy(own, counterparty, Options{Top: top, Others: true}),
		TopProducts:       GroupBy(own, DimHSCode, Options{Top: top}),
		Trend:             trend,
		Growth:            PeriodGrowth(trend),
	}
}

// SearchInsights is the analytics panel shown next to search results.
type SearchInsights struct {
	Summary      Summary      `json:"summary"`
	TopSuppliers []Group      `json:"top_suppliers"`
	TopBuyers    []Group      `json:"top_buyers"`
	TopCountries []Group      `json:"top_destination_countries"`
	Trend        []MonthPoint `json:"trend"`
	Growth       Growth       `json:"growth"`
	Truncated    bool         `json:"truncated"`
}

// Insights builds the search analytics panel for rows.
func Insights(rows []shipments.Shipment, top int) SearchInsights {
	trend := MonthlyTrend(rows)
	return SearchInsights{
		Summary:      Summarize(rows),
		TopSuppliers: GroupBy(rows, DimSupplier, Options{Top: top}),
		TopBuyers:    GroupBy(rows, DimBuyer, Options{Top: top}),
		TopCountries: GroupBy(rows, DimDestination, Options{Top: top}),
		Trend:        trend,
		Growth:       PeriodGrowth(trend),
	}
}
