package reports

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jjckrbbt/pharmatrade/internal/blobstore"
	"github.com/jjckrbbt/pharmatrade/internal/shipments"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	shipments.Reader
	mu        sync.Mutex
	rows      []shipments.Shipment
	truncated bool
	err       error
	filters   []shipments.Filter
}

func (f *fakeReader) Find(ctx context.Context, filter shipments.Filter) ([]shipments.Shipment, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	return f.rows, f.truncated, f.err
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T, reader *fakeReader) (*Service, *clock) {
	t.Helper()
	meta, err := NewMetaStore(t.TempDir())
	require.NoError(t, err)
	blobs, err := blobstore.NewLocal(t.TempDir())
	require.NoError(t, err)

	market := Template{
		ID:    "market",
		Title: "Market overview",
		Sections: []Section{
			{Type: SectionSummary},
			{Type: SectionTop, Dimension: "supplier"},
		},
	}
	templates, err := NewTemplateSet(market)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(reader, meta, blobs, templates, time.Hour, logger)
	clk := &clock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	svc.now = clk.Now
	return svc, clk
}

func TestSubmitFromTemplate(t *testing.T) {
	reader := &fakeReader{rows: fixture()}
	svc, _ := newTestService(t, reader)
	ctx := context.Background()

	job, err := svc.Submit(ctx, Request{
		TemplateID: "market",
		Criteria:   shipments.Criteria{Supplier: "Alpha", From: "2024-01-01", To: "2024-03-31"},
		Format:     "JSON",
		Email:      "analyst@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, job.Status)
	assert.Equal(t, "Market overview", job.Title)
	assert.Equal(t, FormatJSON, job.Format)
	assert.Equal(t, "analyst@example.com", job.RequestedBy)
	assert.Equal(t, job.CreatedAt.Add(time.Hour), job.ExpiresAt)

	svc.Wait()

	done, err := svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, done.Status, done.Error)
	assert.Equal(t, 4, done.RowCount)
	assert.Positive(t, done.SizeBytes)

	require.Len(t, reader.filters, 1)
	assert.Equal(t, "Alpha", reader.filters[0].Supplier)
	assert.Equal(t, day(2024, 3, 31), reader.filters[0].To)

	rc, opened, err := svc.Open(ctx, job.ID)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"title": "Market overview"`)
	assert.Equal(t, "report-"+job.ID.String()[:8]+".json", opened.Filename())
}

func TestSubmitInlineSections(t *testing.T) {
	svc, _ := newTestService(t, &fakeReader{rows: fixture()})
	ctx := context.Background()

	job, err := svc.Submit(ctx, Request{
		Title:    "Custom",
		Sections: []Section{{Type: SectionTrend}, {Type: SectionPricing, Dimension: "buyer", Limit: 3}},
	})
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, job.Format)
	require.Len(t, job.Sections, 2)
	assert.Equal(t, "Unit prices by buyer", job.Sections[1].Title)

	svc.Wait()
	done, err := svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, done.Status, done.Error)
}

func TestTruncatedInputIsRecorded(t *testing.T) {
	svc, _ := newTestService(t, &fakeReader{rows: fixture(), truncated: true})
	ctx := context.Background()

	job, err := svc.Submit(ctx, Request{TemplateID: "market", Format: FormatJSON})
	require.NoError(t, err)
	svc.Wait()

	done, err := svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, done.Truncated)

	rc, _, err := svc.Open(ctx, job.ID)
	require.NoError(t, err)
	defer rc.Close()
	var doc Document
	require.NoError(t, json.NewDecoder(rc).Decode(&doc))
	assert.True(t, doc.Truncated)
}

func TestSubmitRejectsInvalidRequests(t *testing.T) {
	svc, _ := newTestService(t, &fakeReader{})

	testCases := []struct {
		name    string
		req     Request
		wantErr string
	}{
		{"nothing to build", Request{}, "template_id or sections is required"},
		{"both template and sections", Request{TemplateID: "market", Sections: []Section{{Type: SectionSummary}}}, "not both"},
		{"unknown template", Request{TemplateID: "nope"}, "unknown template 'nope'"},
		{"bad section", Request{Sections: []Section{{Type: SectionTop}}}, "requires a dimension"},
		{"bad format", Request{TemplateID: "market", Format: "pdf"}, "unsupported format"},
		{"inverted dates", Request{TemplateID: "market", Criteria: shipments.Criteria{From: "2024-05-01", To: "2024-01-01"}}, "is after"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), tc.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestFailedJob(t *testing.T) {
	svc, _ := newTestService(t, &fakeReader{err: errors.New("connection refused")})
	ctx := context.Background()

	job, err := svc.Submit(ctx, Request{TemplateID: "market"})
	require.NoError(t, err)
	svc.Wait()

	failed, err := svc.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Contains(t, failed.Error, "connection refused")

	_, _, err = svc.Open(ctx, job.ID)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestGetUnknownJob(t *testing.T) {
	svc, _ := newTestService(t, &fakeReader{})
	_, err := svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExpiryAndPurge(t *testing.T) {
	svc, clk := newTestService(t, &fakeReader{rows: fixture()})
	ctx := context.Background()

	old, err := svc.Submit(ctx, Request{TemplateID: "market", Format: FormatJSON})
	require.NoError(t, err)
	svc.Wait()

	clk.Advance(30 * time.Minute)
	fresh, err := svc.Submit(ctx, Request{TemplateID: "market", Format: FormatJSON})
	require.NoError(t, err)
	svc.Wait()

	clk.Advance(45 * time.Minute)

	_, err = svc.Get(ctx, old.ID)
	assert.ErrorIs(t, err, ErrExpired)
	_, _, err = svc.Open(ctx, old.ID)
	assert.ErrorIs(t, err, ErrExpired)

	n, err := svc.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = svc.Get(ctx, old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.blobs.Open(ctx, "reports/"+old.ID.String()+".json")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	kept, err := svc.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, kept.Status)

	n, err = svc.Purge(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
