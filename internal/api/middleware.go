package api

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const requestIDKey = "requestID"

// RequestID returns the id assigned to the request by RequestLogger.
func RequestID(c echo.Context) string {
	id, _ := c.Get(requestIDKey).(string)
	return id
}

// SlogRecover turns panics into 500s and logs them with their stack.
func SlogRecover(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					perr, ok := r.(error)
					if !ok {
						perr = fmt.Errorf("%v", r)
					}
					logger.ErrorContext(c.Request().Context(), "PANIC recovered",
						"request_id", RequestID(c),
						slog.Any("error", perr),
						slog.String("stack", string(debug.Stack())),
					)
					err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error").SetInternal(perr)
				}
			}()
			return next(c)
		}
	}
}

// RequestLogger assigns a request id and logs one line per request.
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			reqID := c.Request().Header.Get(echo.HeaderXRequestID)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			c.Set(requestIDKey, reqID)
			c.Response().Header().Set(echo.HeaderXRequestID, reqID)

			if hub := sentryecho.GetHubFromContext(c); hub != nil {
				hub.Scope().SetTag("request_id", reqID)
			}

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}

			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			attrs := []any{
				"request_id", reqID,
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", status,
				"latency_ms", time.Since(start).Milliseconds(),
				"ip", c.RealIP(),
			}
			if err != nil {
				attrs = append(attrs, "error", err)
			}
			logger.Log(c.Request().Context(), level, "HTTP Request", attrs...)
			return err
		}
	}
}

// AdminToken guards the admin routes with a static bearer token. With no
// token configured every admin request is refused.
func AdminToken(token string, logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token == "" {
				logger.WarnContext(c.Request().Context(), "Admin route called but ADMIN_TOKEN is not configured", "path", c.Path())
				return echo.NewHTTPError(http.StatusServiceUnavailable, "admin routes are disabled")
			}
			got, ok := strings.CutPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				logger.WarnContext(c.Request().Context(), "Rejected admin request", "request_id", RequestID(c), "ip", c.RealIP())
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid admin token")
			}
			c.Set("requestedBy", "admin")
			return next(c)
		}
	}
}
