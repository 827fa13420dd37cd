package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

// RouterConfig carries the cross-cutting pieces of the HTTP surface
type RouterConfig struct {
	ServiceName    string
	Logger         zerolog.Logger
	RateLimiter    *TenantRateLimiter
	AllowedOrigins []string
	BodyLimits     BodyLimitConfig
}

// SetupRoutes configures all API routes
func SetupRoutes(e *echo.Echo, h *Handlers, hh *HealthHandlers, cfg RouterConfig) {
	if cfg.BodyLimits == (BodyLimitConfig{}) {
		cfg.BodyLimits = DefaultBodyLimitConfig()
	}
	h.SetAllowedOrigins(cfg.AllowedOrigins)

	// Trust X-Forwarded-For only from loopback, link-local and private proxies
	e.IPExtractor = echo.ExtractIPFromXFFHeader()

	e.Use(middleware.Recover())
	e.Use(RequestIDMiddleware())
	e.Use(otelecho.Middleware(cfg.ServiceName))
	e.Use(LoggerMiddleware(cfg.Logger))
	e.Use(MetricsMiddleware())
	e.Use(SecurityHeadersMiddleware())

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	// Preflight requests carry no tenant headers, so CORS runs before the group
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			HeaderTenantID,
			HeaderUserID,
		},
		ExposeHeaders: []string{echo.HeaderXRequestID, "Retry-After", HeaderRateLimitRemaining},
	}))

	// Health check and metrics endpoints
	e.GET("/health", hh.Health)
	e.GET("/health/ready", hh.Readiness)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// JSON API routes - v1
	ai := e.Group("/api/v1/ai", TenantContextMiddleware())

	generation := []echo.MiddlewareFunc{NewBodyLimitMiddleware(cfg.BodyLimits.Generation)}
	if cfg.RateLimiter != nil {
		generation = append(generation, cfg.RateLimiter.Middleware())
	}

	// Generation
	ai.POST("/captions", h.GenerateCaption, generation...)
	ai.POST("/content", h.GenerateContent, generation...)
	ai.GET("/content/stream", h.StreamContent, generation...)
	ai.POST("/images", h.GenerateImage, generation...)
	ai.POST("/hashtags", h.GenerateHashtags, generation...)
	ai.POST("/improve", h.ImproveContent, generation...)

	// Reporting
	reporting := NewBodyLimitMiddleware(cfg.BodyLimits.GeneralAPI)
	ai.GET("/requests", h.GetRequestHistory, reporting)
	ai.GET("/requests/:id", h.GetRequest, reporting)
	ai.GET("/usage", h.GetUsageStats, reporting)
	ai.GET("/budget", h.GetBudget, reporting)
	ai.GET("/providers", h.GetProviders, reporting)
}
