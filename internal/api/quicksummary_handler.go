package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jjckrbbt/pharmatrade/internal/analytics"
	"github.com/jjckrbbt/pharmatrade/internal/shipments"
	"github.com/jjckrbbt/pharmatrade/internal/summarycache"
	"github.com/labstack/echo/v4"
)

const (
	quickSummaryTop = 5
	cacheHeader     = "X-Cache"
)

type quickSummaryRequest struct {
	Name string `query:"name" validate:"required,max=200"`
	From string `query:"from" validate:"omitempty,datetime=2006-01-02"`
	To   string `query:"to" validate:"omitempty,datetime=2006-01-02"`
}

// QuickSummaryHandler serves the per-entity summary widgets.
type QuickSummaryHandler struct {
	rows   shipments.Reader
	kinds  *KindRegistry
	cache  *summarycache.Cache[analytics.Profile]
	logger *slog.Logger
}

func NewQuickSummaryHandler(rows shipments.Reader, kinds *KindRegistry, cache *summarycache.Cache[analytics.Profile], logger *slog.Logger) *QuickSummaryHandler {
	return &QuickSummaryHandler{
		rows:   rows,
		kinds:  kinds,
		cache:  cache,
		logger: logger.With("component", "quicksummary_handler"),
	}
}

func (h *QuickSummaryHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/quicksummary/:kind", h.HandleQuickSummary)
}

// HandleQuickSummary profiles one named entity against the whole market in
// the requested window. Only the entity's rows are loaded; the market is
// represented by its total value.
func (h *QuickSummaryHandler) HandleQuickSummary(c echo.Context) error {
	ctx := c.Request().Context()

	kindName := c.Param("kind")
	kind, ok := h.kinds.Get(kindName)
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("unknown summary kind '%s'", kindName))
	}

	var req quickSummaryRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	f, err := parseFilter(shipments.Criteria{From: req.From, To: req.To})
	if err != nil {
		return err
	}

	key := summarycache.Key(kindName, req.Name, req.From, req.To)
	profile, hit, err := h.cache.GetOrLoad(ctx, kindName, key, func(ctx context.Context) (analytics.Profile, error) {
		own, truncated, err := h.rows.Find(ctx, kind.Dimension.Narrow(f, req.Name))
		if err != nil {
			return analytics.Profile{}, err
		}
		marketValue, err := h.rows.TotalValue(ctx, f)
		if err != nil {
			return analytics.Profile{}, err
		}
		profile := analytics.BuildProfile(own, marketValue, kind.Dimension, kind.Counterparty, req.Name, quickSummaryTop)
		profile.Truncated = truncated
		return profile, nil
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to build quick summary", "error", err, "kind", kindName, "name", req.Name, "request_id", RequestID(c))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to build summary").SetInternal(err)
	}

	if hit {
		c.Response().Header().Set(cacheHeader, "HIT")
	} else {
		c.Response().Header().Set(cacheHeader, "MISS")
	}
	if profile.Summary.ShipmentCount == 0 {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("no shipments found for %s '%s'", kindName, req.Name))
	}
	return c.JSON(http.StatusOK, profile)
}
