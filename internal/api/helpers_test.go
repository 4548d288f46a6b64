package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jjckrbbt/pharmatrade/internal/logger"
	"github.com/jjckrbbt/pharmatrade/internal/shipments"
	"github.com/labstack/echo/v4"
	"github.com/pgvector/pgvector-go"
	"github.com/shopspring/decimal"
)

// fakeReader serves a fixed slice and records the filters it was asked for.
// With narrow set it applies the column filters the way the store does, and
// with maxRows set Find keeps only the newest maxRows matches.
type fakeReader struct {
	shipments.Reader

	mu       sync.Mutex
	rows     []shipments.Shipment
	err      error
	narrow   bool
	maxRows  int
	filters  []shipments.Filter
	totals   []shipments.Filter
	semantic []pgvector.Vector
	finds    int
}

func (f *fakeReader) Find(_ context.Context, filter shipments.Filter) ([]shipments.Shipment, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finds++
	f.filters = append(f.filters, filter)
	if f.err != nil {
		return nil, false, f.err
	}
	rows := f.matching(filter)
	if f.maxRows > 0 && len(rows) > f.maxRows {
		// rows are in date order; the oldest are dropped.
		return rows[len(rows)-f.maxRows:], true, nil
	}
	return rows, false, nil
}

func (f *fakeReader) TotalValue(_ context.Context, filter shipments.Filter) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.totals = append(f.totals, filter)
	if f.err != nil {
		return decimal.Zero, f.err
	}
	total := decimal.Zero
	for _, r := range f.matching(filter) {
		total = total.Add(r.ValueUSD)
	}
	return total, nil
}

func (f *fakeReader) matching(filter shipments.Filter) []shipments.Shipment {
	if !f.narrow {
		return f.rows
	}
	var out []shipments.Shipment
	for _, r := range f.rows {
		switch {
		case filter.Supplier != "" && !strings.EqualFold(r.Supplier, filter.Supplier),
			filter.Buyer != "" && !strings.EqualFold(r.Buyer, filter.Buyer),
			filter.Country != "" && !strings.EqualFold(r.OriginCountry, filter.Country) && !strings.EqualFold(r.DestinationCountry, filter.Country),
			filter.HSCode != "" && !strings.HasPrefix(r.HSCode, filter.HSCode),
			!filter.From.IsZero() && r.ShipmentDate.Before(filter.From),
			!filter.To.IsZero() && r.ShipmentDate.After(filter.To):
			continue
		}
		out = append(out, r)
	}
	return out
}

func (f *fakeReader) Search(_ context.Context, filter shipments.Filter) (shipments.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	if f.err != nil {
		return shipments.Page{}, f.err
	}
	return page(f.rows, filter), nil
}

func (f *fakeReader) SearchSemantic(_ context.Context, filter shipments.Filter, q pgvector.Vector) (shipments.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	f.semantic = append(f.semantic, q)
	if f.err != nil {
		return shipments.Page{}, f.err
	}
	return page(f.rows, filter), nil
}

func (f *fakeReader) lastFilter() shipments.Filter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filters[len(f.filters)-1]
}

func page(rows []shipments.Shipment, f shipments.Filter) shipments.Page {
	start := min(f.Offset, len(rows))
	end := min(start+f.Limit, len(rows))
	return shipments.Page{TotalCount: int64(len(rows)), Data: rows[start:end]}
}

func day(s string) time.Time {
	t, err := time.Parse(shipments.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func ship(date, supplier, buyer, country, hs string, value int64) shipments.Shipment {
	return shipments.Shipment{
		ShipmentDate:       day(date),
		HSCode:             hs,
		Product:            "Amoxicillin capsules",
		Supplier:           supplier,
		Buyer:              buyer,
		OriginCountry:      "India",
		DestinationCountry: country,
		Quantity:           decimal.NewFromInt(100),
		Unit:               "PCS",
		ValueUSD:           decimal.NewFromInt(value),
	}
}

func fixture() []shipments.Shipment {
	return []shipments.Shipment{
		ship("2024-01-10", "Alpha Pharma", "Medco", "Kenya", "30041010", 600),
		ship("2024-01-20", "Alpha Pharma", "Healthline", "Nigeria", "30041020", 200),
		ship("2024-02-05", "Beta Labs", "Medco", "Kenya", "30049099", 150),
		ship("2024-03-15", "Gamma Generics", "Medco", "Ghana", "29411010", 50),
	}
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewRequestValidator()
	return e
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, e *echo.Echo, target string) *httptest.ResponseRecorder {
	t.Helper()
	return serve(e, httptest.NewRequest(http.MethodGet, target, nil))
}

var testLogger = logger.Discard()
