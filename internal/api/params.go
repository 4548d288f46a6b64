package api

import (
	"net/http"

	"github.com/jjckrbbt/pharmatrade/internal/shipments"
	"github.com/labstack/echo/v4"
)

// bindAndValidate binds query, path and body parameters into req and runs
// the registered validator over it.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request parameters").SetInternal(err)
	}
	return c.Validate(req)
}

// parseFilter turns bound criteria into a store filter, mapping a bad date
// range to a 400.
func parseFilter(cr shipments.Criteria) (shipments.Filter, error) {
	f, err := cr.Filter()
	if err != nil {
		return shipments.Filter{}, echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	return f, nil
}
