package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jjckrbbt/pharmatrade/internal/blobstore"
)

// Job statuses.
const (
	StatusUploaded           = "UPLOADED"
	StatusProcessing         = "PROCESSING"
	StatusComplete           = "COMPLETE"
	StatusCompleteWithIssues = "COMPLETE_WITH_ISSUES"
	StatusFailed             = "FAILED"
)

// ErrJobNotFound is returned for unknown job ids.
var ErrJobNotFound = errors.New("ingestion job not found")

// DBTX is the subset of pgxpool.Pool the service needs.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Job is one row of ingestion_jobs.
type Job struct {
	ID           uuid.UUID       `json:"id"`
	ImportType   string          `json:"import_type"`
	Status       string          `json:"status"`
	Filename     string          `json:"filename"`
	SourceURI    string          `json:"source_uri"`
	RequestedBy  string          `json:"requested_by,omitempty"`
	ErrorDetails string          `json:"error_details,omitempty"`
	RowsUpserted int64           `json:"rows_upserted"`
	RowsTriaged  int64           `json:"rows_triaged"`
	BlankRows    int64           `json:"blank_rows"`
	TriageSample json.RawMessage `json:"triage_sample,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Outcome is the final state written by UpdateJobStatus.
type Outcome struct {
	ErrorDetails string
	RowsUpserted int64
	RowsTriaged  int64
	BlankRows    int64
	TriageSample json.RawMessage
}

type Service struct {
	db     DBTX
	blobs  blobstore.Store
	logger *slog.Logger
}

func NewService(db DBTX, blobs blobstore.Store, logger *slog.Logger) *Service {
	return &Service{
		db:     db,
		blobs:  blobs,
		logger: logger.With("component", "ingestion_service"),
	}
}

const jobColumns = `id, import_type, status, filename, source_uri, requested_by, error_details,
	rows_upserted, rows_triaged, blank_rows, triage_sample, created_at, updated_at`

// StartJob stores the raw upload and records an UPLOADED job for it.
func (s *Service) StartJob(ctx context.Context, file io.Reader, originalFilename, importType, requestedBy string) (*Job, error) {
	jobID := uuid.New()
	name := filepath.Base(originalFilename)
	objectKey := fmt.Sprintf("raw-imports/%s/%s/%s", importType, jobID.String(), name)

	s.logger.InfoContext(ctx, "Starting ingestion job", "job_id", jobID, "import_type", importType, "requested_by", requestedBy)

	uri, err := s.blobs.Put(ctx, objectKey, file, "text/csv")
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to store uploaded file", "error", err)
		return nil, fmt.Errorf("failed to store uploaded file: %w", err)
	}
	s.logger.InfoContext(ctx, "File successfully stored", "job_id", jobID, "source_uri", uri)

	row := s.db.QueryRow(ctx, `INSERT INTO ingestion_jobs (id, import_type, status, filename, source_uri, requested_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+jobColumns,
		jobID, importType, StatusUploaded, name, uri, requestedBy)
	job, err := scanJob(row)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to create ingestion job record", "error", err)
		return nil, fmt.Errorf("failed to create ingestion job record: %w", err)
	}
	s.logger.InfoContext(ctx, "Ingestion job record created", "job_id", jobID)
	return job, nil
}

// OpenSource returns a reader over the raw file of job.
func (s *Service) OpenSource(ctx context.Context, job *Job) (io.ReadCloser, error) {
	return s.blobs.Open(ctx, job.SourceURI)
}

// UpdateJobStatus moves a job to status and records its counters.
func (s *Service) UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status string, out Outcome) error {
	var sample any
	if len(out.TriageSample) > 0 {
		sample = []byte(out.TriageSample)
	}
	tag, err := s.db.Exec(ctx, `UPDATE ingestion_jobs SET
			status = $2,
			error_details = $3,
			rows_upserted = $4,
			rows_triaged = $5,
			blank_rows = $6,
			triage_sample = COALESCE($7::jsonb, triage_sample),
			updated_at = now()
		WHERE id = $1`,
		jobID, status, out.ErrorDetails, out.RowsUpserted, out.RowsTriaged, out.BlankRows, sample)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to update ingestion job status",
			"error", err,
			"job_id", jobID,
			"new_status", status,
		)
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	s.logger.InfoContext(ctx, "Ingestion job status updated", "job_id", jobID, "status", status)
	return nil
}

// GetJob returns one job.
func (s *Service) GetJob(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	job, err := scanJob(s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM ingestion_jobs WHERE id = $1`, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ingestion job %s: %w", jobID, err)
	}
	return job, nil
}

// ListJobs returns the most recent jobs first.
func (s *Service) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `SELECT `+jobColumns+` FROM ingestion_jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingestion jobs: %w", err)
	}
	defer rows.Close()

	jobs := []Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ingestion jobs: %w", err)
	}
	return jobs, nil
}

func scanJob(row pgx.Row) (*Job, error) {
	var (
		j      Job
		sample []byte
	)
	if err := row.Scan(&j.ID, &j.ImportType, &j.Status, &j.Filename, &j.SourceURI, &j.RequestedBy,
		&j.ErrorDetails, &j.RowsUpserted, &j.RowsTriaged, &j.BlankRows, &sample, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	if len(sample) > 0 {
		j.TriageSample = sample
	}
	return &j, nil
}
