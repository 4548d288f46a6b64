package analytics

import (
	"time"

	"github.com/jjckrbbt/pharmatrade/internal/shipments"
	"github.com/shopspring/decimal"
)

// MonthlyTrend buckets rows by calendar month, from the first to the last
// month present. Months without shipments are included with zero values.
func MonthlyTrend(rows []shipments.Shipment) []MonthPoint {
	if len(rows) == 0 {
		return nil
	}

	buckets := make(map[string]*MonthPoint)
	var first, last time.Time
	for i, r := range rows {
		m := monthStart(r.ShipmentDate)
		if i == 0 || m.Before(first) {
			first = m
		}
		if i == 0 || m.After(last) {
			last = m
		}
		key := m.Format(monthLayout)
		p, ok := buckets[key]
		if !ok {
			p = &MonthPoint{Month: key, Value: decimal.Zero, Quantity: decimal.Zero}
			buckets[key] = p
		}
		p.Value = p.Value.Add(r.ValueUSD)
		p.Quantity = p.Quantity.Add(r.Quantity)
		p.Count++
	}

	var out []MonthPoint
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		key := m.Format(monthLayout)
		if p, ok := buckets[key]; ok {
			out = append(out, *p)
			continue
		}
		out = append(out, MonthPoint{Month: key, Value: decimal.Zero, Quantity: decimal.Zero})
	}
	return out
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// GrowthRate returns the percentage change from prev to cur, or nil when
// prev is zero.
func GrowthRate(prev, cur decimal.Decimal) *float64 {
	if prev.IsZero() {
		return nil
	}
	g := round2(cur.Sub(prev).Div(prev.Abs()).Mul(decimal.NewFromInt(100)).InexactFloat64())
	return &g
}

// PeriodGrowth compares the last month with the one before it, and the
// second half of the trend with the first. With an odd number of months
// the middle month belongs to neither half.
func PeriodGrowth(trend []MonthPoint) Growth {
	var g Growth
	n := len(trend)
	if n < 2 {
		return g
	}
	g.MonthOverMonth = GrowthRate(trend[n-2].Value, trend[n-1].Value)

	half := n / 2
	firstHalf, secondHalf := decimal.Zero, decimal.Zero
	for _, p := range trend[:half] {
		firstHalf = firstHalf.Add(p.Value)
	}
	for _, p := range trend[n-half:] {
		secondHalf = secondHalf.Add(p.Value)
	}
	g.HalfOverHalf = GrowthRate(firstHalf, secondHalf)
	return g
}
