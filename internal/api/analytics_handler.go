package api

import (
	"log/slog"
	"net/http"

	"github.com/jjckrbbt/pharmatrade/internal/analytics"
	"github.com/jjckrbbt/pharmatrade/internal/shipments"
	"github.com/labstack/echo/v4"
)

type analyticsRequest struct {
	shipments.Criteria
	Dimension string `query:"dimension" validate:"required"`
	Top       int    `query:"top" validate:"min=0,max=50"`
	Others    bool   `query:"others"`
}

type analyticsResponse struct {
	Dimension     analytics.Dimension     `json:"dimension"`
	Summary       analytics.Summary       `json:"summary"`
	Groups        []analytics.Group       `json:"groups"`
	Concentration analytics.Concentration `json:"concentration"`
	Truncated     bool                    `json:"truncated"`
}

// AnalyticsHandler serves the generic group-by endpoint.
type AnalyticsHandler struct {
	rows   shipments.Reader
	logger *slog.Logger
}

func NewAnalyticsHandler(rows shipments.Reader, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		rows:   rows,
		logger: logger.With("component", "analytics_handler"),
	}
}

func (h *AnalyticsHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/analytics", h.HandleAnalytics)
}

// HandleAnalytics groups the filtered shipments by one dimension. The
// concentration is measured over the full grouping, before top/others.
func (h *AnalyticsHandler) HandleAnalytics(c echo.Context) error {
	ctx := c.Request().Context()

	var req analyticsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	dim, err := analytics.ParseDimension(req.Dimension)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f, err := parseFilter(req.Criteria)
	if err != nil {
		return err
	}

	rows, truncated, err := h.rows.Find(ctx, f)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to load rows for analytics", "error", err, "dimension", dim, "request_id", RequestID(c))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to compute analytics").SetInternal(err)
	}

	groups := analytics.GroupBy(rows, dim, analytics.Options{Top: req.Top, Others: req.Others})
	if groups == nil {
		groups = []analytics.Group{}
	}
	return c.JSON(http.StatusOK, analyticsResponse{
		Dimension:     dim,
		Summary:       analytics.Summarize(rows),
		Groups:        groups,
		Concentration: analytics.ConcentrationOf(rows, dim),
		Truncated:     truncated,
	})
}
