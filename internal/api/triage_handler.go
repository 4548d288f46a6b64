package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jjckrbbt/pharmatrade/internal/ingestion"
	"github.com/labstack/echo/v4"
)

// JobLister reads ingestion jobs back for the admin triage view.
type JobLister interface {
	ListJobs(ctx context.Context, limit int) ([]ingestion.Job, error)
	GetJob(ctx context.Context, jobID uuid.UUID) (*ingestion.Job, error)
}

type TriageHandler struct {
	jobs   JobLister
	logger *slog.Logger
}

// NewTriageHandler creates a new instance of the TriageHandler.
func NewTriageHandler(jobs JobLister, logger *slog.Logger) *TriageHandler {
	return &TriageHandler{
		jobs:   jobs,
		logger: logger.With("component", "triage_handler"),
	}
}

func (h *TriageHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/ingestion-jobs", h.listIngestionJobs)
	g.GET("/ingestion-jobs/:jobId", h.getIngestionJob)
}

func (h *TriageHandler) listIngestionJobs(c echo.Context) error {
	ctx := c.Request().Context()

	// Out-of-range limits fall back to the service default.
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	jobs, err := h.jobs.ListJobs(ctx, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list ingestion jobs", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get ingestion jobs").SetInternal(err)
	}
	if jobs == nil {
		jobs = []ingestion.Job{}
	}

	h.logger.InfoContext(ctx, "successfully retrieved ingestion jobs", "count", len(jobs), "limit", limit)
	return c.JSON(http.StatusOK, jobs)
}

// getIngestionJob returns one job including its triage sample.
func (h *TriageHandler) getIngestionJob(c echo.Context) error {
	ctx := c.Request().Context()
	jobIDStr := c.Param("jobId")
	jobID, err := uuid.Parse(jobIDStr)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid job ID format provided", "error", err, "job_id_param", jobIDStr)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid job ID format")
	}

	job, err := h.jobs.GetJob(ctx, jobID)
	if errors.Is(err, ingestion.ErrJobNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "ingestion job not found")
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to get ingestion job", "error", err, "job_id", jobID)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get ingestion job").SetInternal(err)
	}
	return c.JSON(http.StatusOK, job)
}
