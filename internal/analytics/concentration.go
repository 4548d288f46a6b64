package analytics

import (
	"github.com/jjckrbbt/pharmatrade/internal/shipments"
	"github.com/shopspring/decimal"
)

// Concentration levels, using the 1500 / 2500 HHI thresholds of the US
// merger guidelines.
const (
	LevelUnconcentrated = "unconcentrated"
	LevelModerate       = "moderate"
	LevelHigh           = "high"
)

// Concentration describes how much of a market its largest players hold.
type Concentration struct {
	Dimension Dimension `json:"dimension"`
	HHI       float64   `json:"hhi"`
	Level     string    `json:"level"`
	CR4       float64   `json:"cr4_pct"`
	Players   int       `json:"players"`
}

// HHI returns the Herfindahl–Hirschman index (0..10000) of a full,
// untruncated grouping. Shares are recomputed from values so rounding in
// Group.Share does not leak in.
func HHI(groups []Group) float64 {
	total := decimal.Zero
	for _, g := range groups {
		total = total.Add(g.Value)
	}
	if total.IsZero() {
		return 0
	}
	var hhi float64
	for _, g := range groups {
		s := percent(g.Value, total)
		hhi += s * s
	}
	return round2(hhi)
}

// Level classifies an HHI value.
func Level(hhi float64) string {
	switch {
	case hhi > 2500:
		return LevelHigh
	case hhi >= 1500:
		return LevelModerate
	default:
		return LevelUnconcentrated
	}
}

// ConcentrationOf groups rows by dim and measures the concentration.
func ConcentrationOf(rows []shipments.Shipment, dim Dimension) Concentration {
	groups := GroupBy(rows, dim, Options{})
	hhi := HHI(groups)

	total := decimal.Zero
	top4 := decimal.Zero
	for i, g := range groups {
		total = total.Add(g.Value)
		if i < 4 {
			top4 = top4.Add(g.Value)
		}
	}

	return Concentration{
		Dimension: dim,
		HHI:       hhi,
		Level:     Level(hhi),
		CR4:       round2(percent(top4, total)),
		Players:   len(groups),
	}
}
