package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/jjckrbbt/pharmatrade/internal/analytics"
	"github.com/jjckrbbt/pharmatrade/internal/embedding"
	"github.com/jjckrbbt/pharmatrade/internal/shipments"
	"github.com/labstack/echo/v4"
	"github.com/pgvector/pgvector-go"
)

const (
	// demoPageCap bounds the page size of the public search demo.
	demoPageCap = 25
	// insightsTop is how many groups each search analytics panel lists.
	insightsTop = 10

	modeKeyword  = "keyword"
	modeSemantic = "semantic"
)

type searchRequest struct {
	shipments.Criteria
	Mode  string `query:"mode" validate:"omitempty,oneof=keyword semantic"`
	Page  int    `query:"page" validate:"min=0"`
	Limit int    `query:"limit" validate:"min=0,max=100"`
}

type searchResponse struct {
	Mode       string               `json:"mode"`
	Page       int                  `json:"page"`
	Limit      int                  `json:"limit"`
	TotalCount int64                `json:"total_count"`
	Data       []shipments.Shipment `json:"data"`
}

// SearchHandler serves the public search demo and its analytics panel.
type SearchHandler struct {
	rows     shipments.Reader
	embedder embedding.Func
	logger   *slog.Logger
}

// NewSearchHandler creates a SearchHandler. embedder may be nil, in which
// case semantic search is refused.
func NewSearchHandler(rows shipments.Reader, embedder embedding.Func, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{
		rows:     rows,
		embedder: embedder,
		logger:   logger.With("component", "search_handler"),
	}
}

func (h *SearchHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/search", h.HandleSearch)
	g.GET("/search/analytics", h.HandleSearchAnalytics)
}

// HandleSearch returns one page of shipments. Pages are 1-based.
func (h *SearchHandler) HandleSearch(c echo.Context) error {
	ctx := c.Request().Context()

	var req searchRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	f, err := parseFilter(req.Criteria)
	if err != nil {
		return err
	}

	limit := req.Limit
	if limit <= 0 || limit > demoPageCap {
		limit = demoPageCap
	}
	page := max(req.Page, 1)
	f.Limit = limit
	f.Offset = (page - 1) * limit

	mode := req.Mode
	if mode == "" {
		mode = modeKeyword
	}

	var result shipments.Page
	switch mode {
	case modeSemantic:
		if h.embedder == nil {
			return echo.NewHTTPError(http.StatusBadRequest, "semantic search is not available")
		}
		text := strings.TrimSpace(req.Q)
		if text == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "q is required for semantic search")
		}
		vec, err := h.embedder(ctx, text)
		if err != nil {
			h.logger.ErrorContext(ctx, "Failed to embed search query", "error", err, "request_id", RequestID(c))
			return echo.NewHTTPError(http.StatusBadGateway, "embedding service unavailable").SetInternal(err)
		}
		// Free text is matched by meaning, not by ILIKE.
		f.Q = ""
		result, err = h.rows.SearchSemantic(ctx, f, pgvector.NewVector(vec))
		if err != nil {
			h.logger.ErrorContext(ctx, "Semantic search failed", "error", err, "request_id", RequestID(c))
			return echo.NewHTTPError(http.StatusInternalServerError, "search failed").SetInternal(err)
		}
	default:
		result, err = h.rows.Search(ctx, f)
		if err != nil {
			h.logger.ErrorContext(ctx, "Search failed", "error", err, "request_id", RequestID(c))
			return echo.NewHTTPError(http.StatusInternalServerError, "search failed").SetInternal(err)
		}
	}

	if result.Data == nil {
		result.Data = []shipments.Shipment{}
	}
	h.logger.DebugContext(ctx, "Search served", "mode", mode, "page", page, "total", result.TotalCount)
	return c.JSON(http.StatusOK, searchResponse{
		Mode:       mode,
		Page:       page,
		Limit:      limit,
		TotalCount: result.TotalCount,
		Data:       result.Data,
	})
}

// HandleSearchAnalytics aggregates every shipment matching the filter.
func (h *SearchHandler) HandleSearchAnalytics(c echo.Context) error {
	ctx := c.Request().Context()

	var cr shipments.Criteria
	if err := bindAndValidate(c, &cr); err != nil {
		return err
	}
	f, err := parseFilter(cr)
	if err != nil {
		return err
	}

	rows, truncated, err := h.rows.Find(ctx, f)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to load rows for search analytics", "error", err, "request_id", RequestID(c))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to compute analytics").SetInternal(err)
	}
	insights := analytics.Insights(rows, insightsTop)
	insights.Truncated = truncated
	return c.JSON(http.StatusOK, insights)
}
