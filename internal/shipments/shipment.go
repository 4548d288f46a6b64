package shipments

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/shopspring/decimal"
)

// Shipment is one export transaction as stored in the shipments table.
type Shipment struct {
	ID                 int64           `json:"id"`
	ShipmentDate       time.Time       `json:"shipment_date"`
	HSCode             string          `json:"hs_code"`
	Product            string          `json:"product"`
	Supplier           string          `json:"supplier"`
	Buyer              string          `json:"buyer"`
	OriginCountry      string          `json:"origin_country"`
	DestinationCountry string          `json:"destination_country"`
	Port               string          `json:"port,omitempty"`
	Quantity           decimal.Decimal `json:"quantity"`
	Unit               string          `json:"unit"`
	ValueUSD           decimal.Decimal `json:"value_usd"`
	Embedding          pgvector.Vector `json:"-"`
}

// UnitPrice returns value per unit, or zero when no quantity was declared.
func (s Shipment) UnitPrice() decimal.Decimal {
	if s.Quantity.IsZero() {
		return decimal.Zero
	}
	return s.ValueUSD.Div(s.Quantity)
}

// Filter narrows a query over shipments. Zero values mean "no constraint".
type Filter struct {
	Q        string
	HSCode   string
	Supplier string
	Buyer    string
	Country  string
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

// Page is one page of a paginated search.
type Page struct {
	TotalCount int64      `json:"total_count"`
	Data       []Shipment `json:"data"`
}

const (
	// DefaultLimit applies when a search asks for no explicit page size.
	DefaultLimit = 25
	// MaxLimit is the largest page a search may request.
	MaxLimit = 100
	// MaxAggregateRows caps how many rows Find materialises for aggregation.
	MaxAggregateRows = 50000
)

// Normalize clamps the pagination fields to their allowed range.
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
