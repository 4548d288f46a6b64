package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jjckrbbt/pharmatrade/internal/reports"
	"github.com/labstack/echo/v4"
)

// ReportService is the part of reports.Service the handler drives.
type ReportService interface {
	Submit(ctx context.Context, req reports.Request) (*reports.Job, error)
	Get(ctx context.Context, id uuid.UUID) (*reports.Job, error)
	Open(ctx context.Context, id uuid.UUID) (io.ReadCloser, *reports.Job, error)
	Templates() []reports.Template
}

// ReportsHandler exposes the advanced report generator.
type ReportsHandler struct {
	service ReportService
	logger  *slog.Logger
}

func NewReportsHandler(service ReportService, logger *slog.Logger) *ReportsHandler {
	return &ReportsHandler{
		service: service,
		logger:  logger.With("component", "reports_handler"),
	}
}

func (h *ReportsHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/reports", h.HandleSubmit)
	g.GET("/reports/templates", h.HandleTemplates)
	g.GET("/reports/:id", h.HandleGet)
	g.GET("/reports/:id/download", h.HandleDownload)
}

// HandleSubmit queues a report and answers 202 with the pending job.
func (h *ReportsHandler) HandleSubmit(c echo.Context) error {
	ctx := c.Request().Context()

	var req reports.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	job, err := h.service.Submit(ctx, req)
	if errors.Is(err, reports.ErrInvalid) {
		h.logger.WarnContext(ctx, "Rejected report request", "error", err, "request_id", RequestID(c))
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to submit report job", "error", err, "request_id", RequestID(c))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not start report generation").SetInternal(err)
	}

	c.Response().Header().Set(echo.HeaderLocation, "/api/reports/"+job.ID.String())
	return c.JSON(http.StatusAccepted, job)
}

func (h *ReportsHandler) HandleTemplates(c echo.Context) error {
	templates := h.service.Templates()
	if templates == nil {
		templates = []reports.Template{}
	}
	return c.JSON(http.StatusOK, templates)
}

func (h *ReportsHandler) HandleGet(c echo.Context) error {
	id, err := parseReportID(c)
	if err != nil {
		return err
	}
	job, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return h.jobError(c, id, err)
	}
	return c.JSON(http.StatusOK, job)
}

// HandleDownload streams the finished artifact as an attachment.
func (h *ReportsHandler) HandleDownload(c echo.Context) error {
	id, err := parseReportID(c)
	if err != nil {
		return err
	}
	r, job, err := h.service.Open(c.Request().Context(), id)
	if err != nil {
		return h.jobError(c, id, err)
	}
	defer r.Close()

	contentType := echo.MIMEOctetStream
	if renderer, ok := reports.RendererFor(job.Format); ok {
		contentType = renderer.ContentType()
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", job.Filename()))
	return c.Stream(http.StatusOK, contentType, r)
}

func (h *ReportsHandler) jobError(c echo.Context, id uuid.UUID, err error) error {
	switch {
	case errors.Is(err, reports.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "report not found")
	case errors.Is(err, reports.ErrExpired):
		return echo.NewHTTPError(http.StatusGone, "report has expired")
	case errors.Is(err, reports.ErrNotReady):
		return echo.NewHTTPError(http.StatusConflict, "report is not ready yet")
	}
	h.logger.ErrorContext(c.Request().Context(), "Failed to load report job", "error", err, "job_id", id, "request_id", RequestID(c))
	return echo.NewHTTPError(http.StatusInternalServerError, "failed to load report").SetInternal(err)
}

func parseReportID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid report ID format")
	}
	return id, nil
}
