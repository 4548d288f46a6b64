package reports

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jjckrbbt/pharmatrade/internal/shipments"
)

// Status is the lifecycle state of a report job.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusComplete   Status = "COMPLETE"
	StatusFailed     Status = "FAILED"
)

var (
	ErrNotFound = errors.New("report not found")
	ErrExpired  = errors.New("report has expired")
	ErrNotReady = errors.New("report is not ready")
	ErrInvalid  = errors.New("invalid report request")
)

// Job is the metadata of one generated report. It is persisted as a JSON
// file next to the other jobs and outlives the artifact only until purge.
type Job struct {
	ID          uuid.UUID          `json:"id"`
	Status      Status             `json:"status"`
	Title       string             `json:"title"`
	TemplateID  string             `json:"template_id,omitempty"`
	Format      string             `json:"format"`
	Criteria    shipments.Criteria `json:"criteria"`
	Sections    []Section          `json:"sections"`
	RequestedBy string             `json:"requested_by,omitempty"`
	RowCount    int                `json:"row_count"`
	Truncated   bool               `json:"truncated,omitempty"`
	SizeBytes   int64              `json:"size_bytes,omitempty"`
	Error       string             `json:"error,omitempty"`
	ArtifactKey string             `json:"artifact_key,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	ExpiresAt   time.Time          `json:"expires_at"`
}

// Expired reports whether the job is past its expiry at now.
func (j *Job) Expired(now time.Time) bool {
	return !now.Before(j.ExpiresAt)
}

// Filename is the download name offered to the browser.
func (j *Job) Filename() string {
	return "report-" + j.ID.String()[:8] + "." + j.Format
}
