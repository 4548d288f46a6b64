package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/jjckrbbt/pharmatrade/internal/ingestion"
	"github.com/labstack/echo/v4"
)

const uploadField = "file"

// JobStarter records an uploaded file as a new ingestion job.
type JobStarter interface {
	StartJob(ctx context.Context, file io.Reader, originalFilename, importType, requestedBy string) (*ingestion.Job, error)
}

// JobRunner processes an ingestion job in the background.
type JobRunner interface {
	Start(job *ingestion.Job)
}

// ImportTypes reports which import configurations are loaded.
type ImportTypes interface {
	ImportTypes() []string
}

// UploadHandler is responsible for orchestrating the file upload and processing.
type UploadHandler struct {
	ingestionService  JobStarter
	processingService JobRunner
	importTypes       ImportTypes
	logger            *slog.Logger
}

// NewUploadHandler creates a new instance of the UploadHandler.
func NewUploadHandler(is JobStarter, ps JobRunner, types ImportTypes, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{
		ingestionService:  is,
		processingService: ps,
		importTypes:       types,
		logger:            logger.With("component", "upload_handler"),
	}
}

// HandleUpload receives a CSV, starts an ingestion job and queues it for
// processing.
func (h *UploadHandler) HandleUpload(c echo.Context) error {
	ctx := c.Request().Context()
	importType := c.Param("importType")

	if !h.knownType(importType) {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown import type '%s'", importType))
	}

	file, err := c.FormFile(uploadField)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required").SetInternal(err)
	}
	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to open uploaded file").SetInternal(err)
	}
	defer src.Close()

	requestedBy, _ := c.Get("requestedBy").(string)
	job, err := h.ingestionService.StartJob(ctx, src, file.Filename, importType, requestedBy)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to start ingestion job", "error", err, "request_id", RequestID(c))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not start file processing").SetInternal(err)
	}
	h.logger.InfoContext(ctx, "Successfully started ingestion job, queueing for processing", "job_id", job.ID, "import_type", importType)

	h.processingService.Start(job)
	return c.JSON(http.StatusAccepted, job)
}

func (h *UploadHandler) knownType(importType string) bool {
	for _, t := range h.importTypes.ImportTypes() {
		if t == importType {
			return true
		}
	}
	return false
}
