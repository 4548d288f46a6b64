package reports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jjckrbbt/pharmatrade/internal/blobstore"
	"github.com/jjckrbbt/pharmatrade/internal/metrics"
	"github.com/jjckrbbt/pharmatrade/internal/shipments"
)

// DefaultTTL is how long a report stays downloadable.
const DefaultTTL = 24 * time.Hour

const (
	fallbackTitle  = "Trade report"
	buildTimeout   = 10 * time.Minute
	artifactPrefix = "reports/"
)

// Request asks for one report. Either TemplateID or Sections must be set.
type Request struct {
	TemplateID string             `json:"template_id,omitempty" validate:"omitempty,max=64"`
	Title      string             `json:"title,omitempty" validate:"max=200"`
	Sections   []Section          `json:"sections,omitempty" validate:"omitempty,max=20,dive"`
	Criteria   shipments.Criteria `json:"criteria"`
	Format     string             `json:"format,omitempty" validate:"omitempty,oneof=xlsx json"`
	Email      string             `json:"email,omitempty" validate:"omitempty,email"`
}

// Service runs report jobs in the background and serves their artifacts.
type Service struct {
	rows      shipments.Reader
	meta      *MetaStore
	blobs     blobstore.Store
	templates *TemplateSet
	ttl       time.Duration
	logger    *slog.Logger
	now       func() time.Time
	wg        sync.WaitGroup
}

// NewService wires a report service. A non-positive ttl means DefaultTTL.
func NewService(rows shipments.Reader, meta *MetaStore, blobs blobstore.Store, templates *TemplateSet, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		rows:      rows,
		meta:      meta,
		blobs:     blobs,
		templates: templates,
		ttl:       ttl,
		logger:    logger.With("component", "reports"),
		now:       time.Now,
	}
}

// Templates exposes the loaded template set.
func (s *Service) Templates() []Template {
	return s.templates.List()
}

// Submit validates req, stores a PENDING job and starts building it.
// The returned job is a snapshot; poll Get for progress.
func (s *Service) Submit(ctx context.Context, req Request) (*Job, error) {
	job, err := s.prepare(req)
	if err != nil {
		return nil, err
	}
	if err := s.meta.Save(job); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Report job accepted", "job_id", job.ID, "format", job.Format, "sections", len(job.Sections))

	snapshot := *job
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(job)
	}()
	return &snapshot, nil
}

func (s *Service) prepare(req Request) (*Job, error) {
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = FormatXLSX
	}
	if _, ok := RendererFor(format); !ok {
		return nil, fmt.Errorf("%w: unsupported format '%s'", ErrInvalid, req.Format)
	}

	if _, err := req.Criteria.Filter(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	title := strings.TrimSpace(req.Title)
	var sections []Section
	switch {
	case req.TemplateID != "" && len(req.Sections) > 0:
		return nil, fmt.Errorf("%w: give either template_id or sections, not both", ErrInvalid)
	case req.TemplateID != "":
		t, ok := s.templates.Get(req.TemplateID)
		if !ok {
			return nil, fmt.Errorf("%w: unknown template '%s'", ErrInvalid, req.TemplateID)
		}
		sections = append(sections, t.Sections...)
		if title == "" {
			title = t.Title
		}
	case len(req.Sections) > 0:
		for i, sec := range req.Sections {
			n, err := sec.Normalize()
			if err != nil {
				return nil, fmt.Errorf("%w: section %d: %v", ErrInvalid, i+1, err)
			}
			sections = append(sections, n)
		}
	default:
		return nil, fmt.Errorf("%w: template_id or sections is required", ErrInvalid)
	}
	if title == "" {
		title = fallbackTitle
	}

	now := s.now().UTC()
	return &Job{
		ID:          uuid.New(),
		Status:      StatusPending,
		Title:       title,
		TemplateID:  req.TemplateID,
		Format:      format,
		Criteria:    req.Criteria,
		Sections:    sections,
		RequestedBy: strings.TrimSpace(req.Email),
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}, nil
}

// run builds job to completion. It owns job until it returns.
func (s *Service) run(job *Job) {
	ctx, cancel := context.WithTimeout(context.Background(), buildTimeout)
	defer cancel()

	start := time.Now()
	jobLogger := s.logger.With("job_id", job.ID.String(), "format", job.Format)
	jobLogger.InfoContext(ctx, "Starting report job")

	s.setStatus(job, StatusProcessing, "")
	if err := s.meta.Save(job); err != nil {
		jobLogger.ErrorContext(ctx, "Failed to mark report job as PROCESSING, aborting", "error", err)
		metrics.RecordReportJob(string(StatusFailed), job.Format, time.Since(start))
		return
	}

	if err := s.build(ctx, job); err != nil {
		jobLogger.ErrorContext(ctx, "Report job failed", "error", err)
		s.setStatus(job, StatusFailed, err.Error())
	} else {
		s.setStatus(job, StatusComplete, "")
		jobLogger.InfoContext(ctx, "Report job completed", "rows", job.RowCount, "bytes", job.SizeBytes)
	}
	if err := s.meta.Save(job); err != nil {
		jobLogger.ErrorContext(ctx, "Failed to save final report job state", "status", job.Status, "error", err)
	}
	metrics.RecordReportJob(string(job.Status), job.Format, time.Since(start))
}

func (s *Service) build(ctx context.Context, job *Job) error {
	filter, err := job.Criteria.Filter()
	if err != nil {
		return err
	}
	rows, truncated, err := s.rows.Find(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to fetch shipments: %w", err)
	}
	job.RowCount = len(rows)
	job.Truncated = truncated

	doc := Build(job.Title, job.Criteria, rows, job.Sections, s.now())
	doc.Truncated = truncated
	renderer, _ := RendererFor(job.Format)

	var buf bytes.Buffer
	if err := renderer.Render(&buf, doc); err != nil {
		return err
	}
	job.SizeBytes = int64(buf.Len())

	key := artifactPrefix + job.ID.String() + "." + job.Format
	location, err := s.blobs.Put(ctx, key, &buf, renderer.ContentType())
	if err != nil {
		return fmt.Errorf("failed to store report artifact: %w", err)
	}
	job.ArtifactKey = location
	return nil
}

func (s *Service) setStatus(job *Job, status Status, msg string) {
	job.Status = status
	job.Error = msg
	job.UpdatedAt = s.now().UTC()
}

// Get returns the job with id, ErrNotFound or ErrExpired.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	job, err := s.meta.Load(id)
	if err != nil {
		return nil, err
	}
	if job.Expired(s.now()) {
		return job, ErrExpired
	}
	return job, nil
}

// Open returns a reader over the finished artifact. The caller closes it.
func (s *Service) Open(ctx context.Context, id uuid.UUID) (io.ReadCloser, *Job, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, job, err
	}
	if job.Status != StatusComplete || job.ArtifactKey == "" {
		return nil, job, ErrNotReady
	}
	r, err := s.blobs.Open(ctx, job.ArtifactKey)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil, job, ErrExpired
	}
	if err != nil {
		return nil, job, err
	}
	return r, job, nil
}

// Purge deletes every expired job with its artifact and returns how many
// jobs were removed.
func (s *Service) Purge(ctx context.Context) (int, error) {
	jobs, errs := s.meta.List()
	for _, err := range errs {
		s.logger.WarnContext(ctx, "Skipping unreadable report metadata", "error", err)
	}

	now := s.now()
	purged := 0
	var firstErr error
	for _, job := range jobs {
		if !job.Expired(now) {
			continue
		}
		if job.ArtifactKey != "" {
			if err := s.blobs.Delete(ctx, job.ArtifactKey); err != nil && !errors.Is(err, blobstore.ErrNotFound) {
				s.logger.ErrorContext(ctx, "Failed to delete report artifact", "job_id", job.ID, "error", err)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
		}
		if err := s.meta.Delete(job.ID); err != nil {
			s.logger.ErrorContext(ctx, "Failed to delete report metadata", "job_id", job.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		purged++
	}

	if purged > 0 {
		metrics.ReportsPurged.Add(float64(purged))
		s.logger.InfoContext(ctx, "Purged expired reports", "count", purged)
	}
	return purged, firstErr
}

// Wait blocks until all running jobs have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}
