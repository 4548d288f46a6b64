package processing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jjckrbbt/pharmatrade/internal/embedding"
	"github.com/jjckrbbt/pharmatrade/internal/ingestion"
	"github.com/jjckrbbt/pharmatrade/internal/metrics"
	"github.com/jjckrbbt/pharmatrade/internal/shipments"
)

// triageSampleSize bounds how many failed rows are kept on the job record.
const triageSampleSize = 100

const jobTimeout = 15 * time.Minute

// finishTimeout bounds the terminal status write, which must outlive jobCtx.
const finishTimeout = 30 * time.Second

// JobTracker is the part of ingestion.Service that processing drives.
type JobTracker interface {
	UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status string, out ingestion.Outcome) error
	OpenSource(ctx context.Context, job *ingestion.Job) (io.ReadCloser, error)
}

// Service orchestrates the processing of an ingestion job.
type Service struct {
	ingestionService JobTracker
	configLoader     *ConfigLoader
	writer           shipments.Writer
	embedder         embedding.Func
	logger           *slog.Logger
	wg               sync.WaitGroup
}

// NewService creates and initializes a new processing service. embedder may
// be nil, in which case imports carry no embeddings.
func NewService(ingestionService JobTracker, configLoader *ConfigLoader, writer shipments.Writer, embedder embedding.Func, logger *slog.Logger) *Service {
	return &Service{
		ingestionService: ingestionService,
		configLoader:     configLoader,
		writer:           writer,
		embedder:         embedder,
		logger:           logger.With("component", "processing_service"),
	}
}

// Configs exposes the loaded import configurations.
func (s *Service) Configs() *ConfigLoader {
	return s.configLoader
}

// Start runs job in the background.
func (s *Service) Start(job *ingestion.Job) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.RunJob(context.Background(), job)
	}()
}

// Wait blocks until background jobs have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// RunJob is the main entry point for processing a file. It runs synchronously;
// use Start from request handlers.
func (s *Service) RunJob(ctx context.Context, job *ingestion.Job) {
	jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	procLogger := s.logger.With("job_id", job.ID.String(), "import_type", job.ImportType)
	procLogger.InfoContext(jobCtx, "Starting processing job")

	if err := s.ingestionService.UpdateJobStatus(jobCtx, job.ID, ingestion.StatusProcessing, ingestion.Outcome{}); err != nil {
		procLogger.ErrorContext(jobCtx, "Failed to update job status to PROCESSING, aborting", "error", err)
		return
	}

	// Terminal statuses are written even when the job or its caller was
	// cancelled, otherwise the job would stay PROCESSING.
	finish := func(status string, out ingestion.Outcome) {
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
		defer cancel()
		if err := s.ingestionService.UpdateJobStatus(writeCtx, job.ID, status, out); err != nil {
			procLogger.ErrorContext(writeCtx, "Failed to record final job status", "status", status, "error", err)
		}
	}
	fail := func(msg string, triaged int64) {
		finish(ingestion.StatusFailed, ingestion.Outcome{ErrorDetails: msg, RowsTriaged: triaged})
	}

	importConfig, found := s.configLoader.GetConfig(job.ImportType)
	if !found {
		errorMsg := fmt.Sprintf("No import configuration found for import type: %s", job.ImportType)
		procLogger.ErrorContext(jobCtx, errorMsg)
		fail(errorMsg, 0)
		return
	}

	reader, err := s.ingestionService.OpenSource(jobCtx, job)
	if err != nil {
		procLogger.ErrorContext(jobCtx, "Failed to open uploaded file", "source_uri", job.SourceURI, "error", err)
		fail(fmt.Sprintf("Failed to read file from storage: %v", err), 0)
		return
	}
	defer reader.Close()

	processor := NewGenericProcessor(importConfig)
	result, err := processor.Process(jobCtx, reader, s.embedder)
	if err != nil {
		var triaged int64
		if result != nil {
			triaged = int64(len(result.TriageRows))
		}
		procLogger.ErrorContext(jobCtx, "Processing job finished with critical error", "error", err)
		fail(err.Error(), triaged)
		return
	}

	rowsTriaged := int64(len(result.TriageRows))
	sample := triageSample(result.TriageRows)
	if rowsTriaged > 0 {
		procLogger.WarnContext(jobCtx, "Rows sent for triage", "count", rowsTriaged)
	}

	var rowsUpserted int64
	if len(result.Shipments) > 0 {
		rowsUpserted, err = s.writer.InsertBatch(jobCtx, result.Shipments)
		if err != nil {
			procLogger.ErrorContext(jobCtx, "Failed to save shipments to database", "error", err)
			fail("Error saving processed data to database", rowsTriaged)
			return
		}
	}

	finalStatus := ingestion.StatusComplete
	if rowsTriaged > 0 {
		finalStatus = ingestion.StatusCompleteWithIssues
	}
	finalMessage := fmt.Sprintf("Processed %d shipments successfully. %d rows sent for triage. %d blank rows discarded.",
		rowsUpserted, rowsTriaged, result.BlankRowsDiscarded)

	metrics.RecordImport(job.ImportType, int(rowsUpserted), int(rowsTriaged), result.BlankRowsDiscarded)
	procLogger.InfoContext(jobCtx, "Processing job completed", "status", finalStatus, "rows_upserted", rowsUpserted, "rows_for_triage", rowsTriaged)

	finish(finalStatus, ingestion.Outcome{
		ErrorDetails: finalMessage,
		RowsUpserted: rowsUpserted,
		RowsTriaged:  rowsTriaged,
		BlankRows:    int64(result.BlankRowsDiscarded),
		TriageSample: sample,
	})
}

func triageSample(rows []TriageRow) json.RawMessage {
	if len(rows) == 0 {
		return nil
	}
	if len(rows) > triageSampleSize {
		rows = rows[:triageSampleSize]
	}
	data, err := json.Marshal(rows)
	if err != nil {
		slog.Error("Failed to marshal triage rows", "error", err)
		return nil
	}
	return data
}
