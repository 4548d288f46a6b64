package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jjckrbbt/pharmatrade/internal/analytics"
	"github.com/jjckrbbt/pharmatrade/internal/shipments"
	"github.com/jjckrbbt/pharmatrade/internal/summarycache"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newQuickSummaryEcho(t *testing.T, reader *fakeReader) (*echo.Echo, *summarycache.Cache[analytics.Profile]) {
	t.Helper()
	cache, err := summarycache.New[analytics.Profile](100, 0)
	require.NoError(t, err)
	t.Cleanup(cache.Close)

	e := newTestEcho()
	NewQuickSummaryHandler(reader, DefaultKinds(), cache, testLogger).RegisterRoutes(e.Group("/api"))
	return e, cache
}

func TestHandleQuickSummarySupplier(t *testing.T) {
	reader := &fakeReader{rows: fixture()}
	e, _ := newQuickSummaryEcho(t, reader)

	rec := get(t, e, "/api/quicksummary/supplier?name=alpha+pharma&from=2024-01-01")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "MISS", rec.Header().Get(cacheHeader))

	var body analytics.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, analytics.DimSupplier, body.Dimension)
	assert.Equal(t, analytics.DimBuyer, body.Counterparty)
	assert.Equal(t, 2, body.Summary.ShipmentCount)
	assert.InDelta(t, 80.0, body.MarketShare, 0.01)

	assert.False(t, body.Truncated)

	// Rows are fetched for the entity; the market total covers the window.
	f := reader.lastFilter()
	assert.Equal(t, "alpha pharma", f.Supplier)
	assert.Equal(t, day("2024-01-01"), f.From)
	require.Len(t, reader.totals, 1)
	assert.Empty(t, reader.totals[0].Supplier)
	assert.Equal(t, day("2024-01-01"), reader.totals[0].From)
}

func TestHandleQuickSummaryEntityBeyondRowCap(t *testing.T) {
	// Older rows from other suppliers outnumber the cap; the entity's own
	// rows are the newest in the window.
	rows := fixture()
	for i := 0; i < 10; i++ {
		rows = append([]shipments.Shipment{ship("2023-06-01", "Delta Drugs", "Medco", "Kenya", "30041010", 100)}, rows...)
	}
	rows = append(rows, ship("2024-04-01", "Zeta Pharma", "Medco", "Kenya", "30041010", 500))
	reader := &fakeReader{rows: rows, narrow: true, maxRows: 3}
	e, _ := newQuickSummaryEcho(t, reader)

	rec := get(t, e, "/api/quicksummary/supplier?name=Zeta+Pharma")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body analytics.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Summary.ShipmentCount)
	// 500 of 1000 + 1000 + 500.
	assert.InDelta(t, 500.0/2500.0*100, body.MarketShare, 0.01)
	assert.False(t, body.Truncated)
}

func TestHandleQuickSummaryFlagsTruncation(t *testing.T) {
	reader := &fakeReader{rows: fixture(), narrow: true, maxRows: 1}
	e, _ := newQuickSummaryEcho(t, reader)

	rec := get(t, e, "/api/quicksummary/country?name=Kenya")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body analytics.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Truncated)
	assert.Equal(t, 1, body.Summary.ShipmentCount)
	assert.Equal(t, "Beta Labs", body.TopCounterparties[0].Key, "newest row is kept")
}

func TestHandleQuickSummaryCaches(t *testing.T) {
	reader := &fakeReader{rows: fixture()}
	e, cache := newQuickSummaryEcho(t, reader)

	first := get(t, e, "/api/quicksummary/country?name=Kenya")
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	cache.Wait()

	second := get(t, e, "/api/quicksummary/country?name=kenya%20")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get(cacheHeader))
	assert.Equal(t, 1, reader.finds)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestHandleQuickSummaryProductMatchesHeading(t *testing.T) {
	e, _ := newQuickSummaryEcho(t, &fakeReader{rows: fixture()})

	rec := get(t, e, "/api/quicksummary/product?name=3004")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body analytics.Profile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Summary.ShipmentCount)
}

func TestHandleQuickSummaryErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		code   int
	}{
		{name: "unknown kind", target: "/api/quicksummary/port?name=x", code: http.StatusNotFound},
		{name: "missing name", target: "/api/quicksummary/buyer", code: http.StatusBadRequest},
		{name: "bad date", target: "/api/quicksummary/buyer?name=Medco&to=March", code: http.StatusBadRequest},
		{name: "no shipments", target: "/api/quicksummary/buyer?name=Nobody", code: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newQuickSummaryEcho(t, &fakeReader{rows: fixture()})
			rec := get(t, e, tt.target)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}
}

func TestKindRegistry(t *testing.T) {
	r := DefaultKinds()
	assert.Equal(t, []string{"buyer", "country", "product", "supplier"}, r.Names())

	kind, ok := r.Get("country")
	require.True(t, ok)
	assert.Equal(t, analytics.DimDestination, kind.Dimension)

	assert.Panics(t, func() {
		r.Register("buyer", SummaryKind{})
	})
}
