// Package analytics aggregates shipment records in memory: grouping by a
// dimension, shares, market concentration, monthly trends and growth.
//
// All functions are pure. They never touch the database and never divide
// by zero; empty input produces zero values.
package analytics

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jjckrbbt/pharmatrade/internal/shipments"
	"github.com/shopspring/decimal"
)

// Dimension names a field shipments can be grouped by.
type Dimension string

const (
	DimSupplier    Dimension = "supplier"
	DimBuyer       Dimension = "buyer"
	DimOrigin      Dimension = "origin_country"
	DimDestination Dimension = "destination_country"
	DimMonth       Dimension = "month"
	DimHSCode      Dimension = "hs_code"
	DimProduct     Dimension = "product"
)

// UnknownKey labels records whose dimension value is blank.
const UnknownKey = "Unknown"

// OthersKey labels the folded tail of a truncated grouping.
const OthersKey = "Others"

const monthLayout = "2006-01"

var dimensions = []Dimension{DimSupplier, DimBuyer, DimOrigin, DimDestination, DimMonth, DimHSCode, DimProduct}

// ParseDimension validates a dimension name coming from a request or template.
func ParseDimension(s string) (Dimension, error) {
	d := Dimension(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range dimensions {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown dimension '%s'", s)
}

// Key extracts the grouping key of a shipment. HS codes are grouped by
// their 4-digit heading.
func (d Dimension) Key(s shipments.Shipment) string {
	var v string
	switch d {
	case DimSupplier:
		v = s.Supplier
	case DimBuyer:
		v = s.Buyer
	case DimOrigin:
		v = s.OriginCountry
	case DimDestination:
		v = s.DestinationCountry
	case DimMonth:
		if s.ShipmentDate.IsZero() {
			return UnknownKey
		}
		return s.ShipmentDate.Format(monthLayout)
	case DimHSCode:
		v = s.HSCode
		if len(v) > 4 {
			v = v[:4]
		}
	case DimProduct:
		v = s.Product
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return UnknownKey
	}
	return v
}

// Summary is the headline numbers of a set of shipments.
type Summary struct {
	ShipmentCount int             `json:"shipment_count"`
	TotalValue    decimal.Decimal `json:"total_value_usd"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	AvgUnitPrice  decimal.Decimal `json:"avg_unit_price_usd"`
	Suppliers     int             `json:"unique_suppliers"`
	Buyers        int             `json:"unique_buyers"`
	Countries     int             `json:"unique_destination_countries"`
	FirstDate     *time.Time      `json:"first_shipment_date,omitempty"`
	LastDate      *time.Time      `json:"last_shipment_date,omitempty"`
}

// Group is one bucket of a grouping. Share is the percentage of the total
// value of the grouped rows.
type Group struct {
	Key      string          `json:"key"`
	Value    decimal.Decimal `json:"value_usd"`
	Quantity decimal.Decimal `json:"quantity"`
	Count    int             `json:"count"`
	Share    float64         `json:"share_pct"`
}

// Options controls truncation of a grouping.
type Options struct {
	// Top keeps the N largest groups; 0 keeps all.
	Top int
	// Others folds the groups beyond Top into a single OthersKey group.
	Others bool
}

// MonthPoint is one calendar month of a trend.
type MonthPoint struct {
	Month    string          `json:"month"`
	Value    decimal.Decimal `json:"value_usd"`
	Quantity decimal.Decimal `json:"quantity"`
	Count    int             `json:"count"`
}

// Growth holds period-over-period percentage changes. A nil field means the
// base period was zero or missing.
type Growth struct {
	MonthOverMonth *float64 `json:"month_over_month_pct"`
	HalfOverHalf   *float64 `json:"half_over_half_pct"`
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// percent returns part/total*100, or 0 when total is zero.
func percent(part, total decimal.Decimal) float64 {
	if total.IsZero() {
		return 0
	}
	return part.Div(total).Mul(decimal.NewFromInt(100)).InexactFloat64()
}
