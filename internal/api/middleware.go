package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/contentdeck/aigen/internal/telemetry"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// Tenant identity headers set by the upstream auth layer
const (
	HeaderTenantID = "X-Tenant-ID"
	HeaderUserID   = "X-User-ID"
)

const (
	contextKeyRequestID = "request_id"
	contextKeyTenantID  = "tenant_id"
	contextKeyUserID    = "user_id"
)

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()

			rid := req.Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = uuid.New().String()
			}

			res.Header().Set(echo.HeaderXRequestID, rid)
			c.Set(contextKeyRequestID, rid)

			return next(c)
		}
	}
}

// LoggerMiddleware attaches a request-scoped zerolog logger to the request
// context and writes one access log line per request
func LoggerMiddleware(base zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			logger := base.With().
				Str("request_id", requestID(c)).
				Str("remote_ip", c.RealIP()).
				Logger()
			c.SetRequest(req.WithContext(logger.WithContext(req.Context())))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			event := logger.Info()
			if status >= http.StatusInternalServerError {
				event = logger.Error()
			} else if status >= http.StatusBadRequest {
				event = logger.Warn()
			}

			event.
				Str("method", req.Method).
				Str("route", routeOf(c)).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Int64("bytes_out", c.Response().Size).
				Msg("request")

			return nil
		}
	}
}

// MetricsMiddleware records HTTP request metrics for Prometheus
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(responseStatus(c, err))
			method := c.Request().Method

			// Route pattern, not the raw path, to bound label cardinality
			telemetry.HTTPRequestDuration.WithLabelValues(method, routeOf(c), status).Observe(duration)

			return err
		}
	}
}

// TenantContextMiddleware requires the tenant and user identity headers,
// both UUIDs, and stores them on the echo context
func TenantContextMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenantID, err := identityHeader(c, HeaderTenantID)
			if err != nil {
				return ValidationError(c, "Missing tenant context", err.Error())
			}
			userID, err := identityHeader(c, HeaderUserID)
			if err != nil {
				return ValidationError(c, "Missing user context", err.Error())
			}

			c.Set(contextKeyTenantID, tenantID)
			c.Set(contextKeyUserID, userID)

			req := c.Request()
			logger := zerolog.Ctx(req.Context()).With().
				Str("tenant_id", tenantID).
				Str("user_id", userID).
				Logger()
			c.SetRequest(req.WithContext(logger.WithContext(req.Context())))

			return next(c)
		}
	}
}

func identityHeader(c echo.Context, header string) (string, error) {
	raw := c.Request().Header.Get(header)
	if raw == "" {
		return "", &FieldError{Field: header, Err: ErrEmptyInput}
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", &FieldError{Field: header, Err: ErrInvalidIdentifier}
	}
	return id.String(), nil
}

// tenantFrom returns the identity stored by TenantContextMiddleware
func tenantFrom(c echo.Context) (tenantID, userID string) {
	tenantID, _ = c.Get(contextKeyTenantID).(string)
	userID, _ = c.Get(contextKeyUserID).(string)
	return tenantID, userID
}

func requestID(c echo.Context) string {
	if rid, ok := c.Get(contextKeyRequestID).(string); ok {
		return rid
	}
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

// responseStatus is the status the client will see, including errors the
// echo error handler has not written yet
func responseStatus(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

func routeOf(c echo.Context) string {
	if route := c.Path(); route != "" {
		return route
	}
	return "unknown"
}

// BodyLimitConfig defines body size limits for different route types
type BodyLimitConfig struct {
	Generation string
	GeneralAPI string
}

// DefaultBodyLimitConfig returns the default body size limits
func DefaultBodyLimitConfig() BodyLimitConfig {
	return BodyLimitConfig{
		Generation: "64KB",
		GeneralAPI: "1MB",
	}
}

// NewBodyLimitMiddleware creates a body limit middleware with the given limit
func NewBodyLimitMiddleware(limit string) echo.MiddlewareFunc {
	return middleware.BodyLimit(limit)
}
