package analytics

import (
	"github.com/jjckrbbt/pharmatrade/internal/shipments"
	"github.com/shopspring/decimal"
)

// PriceBand is the unit price spread of one group. Rows without a declared
// quantity are ignored.
type PriceBand struct {
	Key   string          `json:"key"`
	Min   decimal.Decimal `json:"min_unit_price_usd"`
	Max   decimal.Decimal `json:"max_unit_price_usd"`
	Avg   decimal.Decimal `json:"avg_unit_price_usd"`
	Count int             `json:"count"`
}

// PriceBands returns price spreads for the top groups of dim, in the same
// order GroupBy would return them.
func PriceBands(rows []shipments.Shipment, dim Dimension, top int) []PriceBand {
	priced := make([]shipments.Shipment, 0, len(rows))
	for _, r := range rows {
		if r.Quantity.IsPositive() {
			priced = append(priced, r)
		}
	}

	groups := GroupBy(priced, dim, Options{Top: top})
	bands := make([]PriceBand, 0, len(groups))
	index := make(map[string]int, len(groups))
	for i, g := range groups {
		index[g.Key] = i
		bands = append(bands, PriceBand{Key: g.Key})
		if !g.Quantity.IsZero() {
			bands[i].Avg = g.Value.Div(g.Quantity).Round(4)
		}
	}

	for _, r := range priced {
		i, ok := index[dim.Key(r)]
		if !ok {
			continue
		}
		p := r.UnitPrice()
		b := &bands[i]
		if b.Count == 0 || p.LessThan(b.Min) {
			b.Min = p
		}
		if b.Count == 0 || p.GreaterThan(b.Max) {
			b.Max = p
		}
		b.Count++
	}
	for i := range bands {
		bands[i].Min = bands[i].Min.Round(4)
		bands[i].Max = bands[i].Max.Round(4)
	}
	return bands
}
