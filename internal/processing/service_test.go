package processing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jjckrbbt/pharmatrade/internal/ingestion"
	"github.com/jjckrbbt/pharmatrade/internal/shipments"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusUpdate struct {
	status string
	out    ingestion.Outcome
}

type fakeTracker struct {
	source  string
	openErr error
	updates []statusUpdate
}

func (f *fakeTracker) UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status string, out ingestion.Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.updates = append(f.updates, statusUpdate{status: status, out: out})
	return nil
}

func (f *fakeTracker) OpenSource(ctx context.Context, job *ingestion.Job) (io.ReadCloser, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return io.NopCloser(strings.NewReader(f.source)), nil
}

func (f *fakeTracker) last() statusUpdate {
	return f.updates[len(f.updates)-1]
}

type fakeWriter struct {
	shipments.Writer
	rows []shipments.Shipment
	err  error
	// onInsert runs before the batch is stored.
	onInsert func()
}

func (f *fakeWriter) InsertBatch(ctx context.Context, rows []shipments.Shipment) (int64, error) {
	if f.onInsert != nil {
		f.onInsert()
	}
	if f.err != nil {
		return 0, f.err
	}
	f.rows = append(f.rows, rows...)
	return int64(len(rows)), nil
}

func newTestProcessing(t *testing.T, tracker *fakeTracker, writer *fakeWriter) *Service {
	t.Helper()
	loader, err := NewConfigLoader(filepath.Join("..", "..", "configs", "imports"))
	require.NoError(t, err)
	return NewService(tracker, loader, writer, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testJob(importType string) *ingestion.Job {
	return &ingestion.Job{ID: uuid.New(), ImportType: importType, SourceURI: "raw-imports/x.csv"}
}

func TestRunJobComplete(t *testing.T) {
	tracker := &fakeTracker{source: header +
		"2024-01-10,300490,Amoxicillin,Alpha Pharma,Xeno Health,India,United States,,1,NOS,100\n"}
	writer := &fakeWriter{}
	svc := newTestProcessing(t, tracker, writer)

	svc.RunJob(context.Background(), testJob("SHIPMENTS_V1"))

	require.Len(t, tracker.updates, 2)
	assert.Equal(t, ingestion.StatusProcessing, tracker.updates[0].status)
	final := tracker.last()
	assert.Equal(t, ingestion.StatusComplete, final.status)
	assert.Equal(t, int64(1), final.out.RowsUpserted)
	assert.Zero(t, final.out.RowsTriaged)
	assert.Nil(t, final.out.TriageSample)
	assert.Len(t, writer.rows, 1)
}

func TestRunJobWithIssues(t *testing.T) {
	tracker := &fakeTracker{source: header +
		"2024-01-10,300490,Amoxicillin,Alpha Pharma,Xeno Health,India,United States,,1,NOS,100\n" +
		"2024-01-10,300490,Amoxicillin,,Xeno Health,India,United States,,1,NOS,100\n" +
		",,,,,,,,,,\n"}
	svc := newTestProcessing(t, tracker, &fakeWriter{})

	job := testJob("SHIPMENTS_V1")
	svc.Start(job)
	svc.Wait()

	final := tracker.last()
	assert.Equal(t, ingestion.StatusCompleteWithIssues, final.status)
	assert.Equal(t, int64(1), final.out.RowsUpserted)
	assert.Equal(t, int64(1), final.out.RowsTriaged)
	assert.Equal(t, int64(1), final.out.BlankRows)
	assert.Contains(t, final.out.ErrorDetails, "1 rows sent for triage")

	var sample []TriageRow
	require.NoError(t, json.Unmarshal(final.out.TriageSample, &sample))
	require.Len(t, sample, 1)
	assert.Equal(t, 3, sample[0].Line)
	assert.Contains(t, sample[0].FailureReason, "Exporter")
}

func TestRunJobFailures(t *testing.T) {
	okCSV := header + "2024-01-10,300490,Amoxicillin,Alpha Pharma,Xeno Health,India,United States,,1,NOS,100\n"

	testCases := []struct {
		name       string
		importType string
		tracker    *fakeTracker
		writer     *fakeWriter
		wantDetail string
	}{
		{"unknown import type", "NOPE", &fakeTracker{source: okCSV}, &fakeWriter{}, "No import configuration found"},
		{"unreadable source", "SHIPMENTS_V1", &fakeTracker{openErr: errors.New("bucket gone")}, &fakeWriter{}, "bucket gone"},
		{"missing header", "SHIPMENTS_V1", &fakeTracker{source: "Date\n2024-01-01\n"}, &fakeWriter{}, "missing required header"},
		{"database error", "SHIPMENTS_V1", &fakeTracker{source: okCSV}, &fakeWriter{err: errors.New("deadlock")}, "Error saving processed data"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestProcessing(t, tc.tracker, tc.writer)
			svc.RunJob(context.Background(), testJob(tc.importType))

			final := tc.tracker.last()
			assert.Equal(t, ingestion.StatusFailed, final.status)
			assert.Contains(t, final.out.ErrorDetails, tc.wantDetail)
		})
	}
}

func TestRunJobRecordsFinalStatusAfterCancel(t *testing.T) {
	okCSV := header + "2024-01-10,300490,Amoxicillin,Alpha Pharma,Xeno Health,India,United States,,1,NOS,100\n"

	testCases := []struct {
		name       string
		writerErr  error
		wantStatus string
	}{
		{"completes", nil, ingestion.StatusComplete},
		{"fails", context.Canceled, ingestion.StatusFailed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			tracker := &fakeTracker{source: okCSV}
			writer := &fakeWriter{err: tc.writerErr, onInsert: cancel}
			svc := newTestProcessing(t, tracker, writer)

			svc.RunJob(ctx, testJob("SHIPMENTS_V1"))

			require.Len(t, tracker.updates, 2)
			assert.Equal(t, tc.wantStatus, tracker.last().status)
		})
	}
}
