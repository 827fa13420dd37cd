package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/contentdeck/aigen/internal/generator"
	"github.com/contentdeck/aigen/internal/models"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// GeneratorService defines the orchestrator operations the handlers call
// This allows for mocking in tests
type GeneratorService interface {
	GenerateCaption(ctx context.Context, tenantID, userID string, opts generator.CaptionOptions) (*generator.CaptionResult, error)
	GenerateContent(ctx context.Context, tenantID, userID string, opts generator.ContentOptions) (*generator.ContentResult, error)
	StreamContent(ctx context.Context, tenantID, userID string, opts generator.ContentOptions, onChunk func(chunk string) error) (*generator.ContentResult, error)
	GenerateImage(ctx context.Context, tenantID, userID string, opts generator.ImageOptions) (*generator.ImageResult, error)
	GenerateHashtags(ctx context.Context, tenantID, userID string, opts generator.HashtagOptions) (*generator.HashtagResult, error)
	ImproveContent(ctx context.Context, tenantID, userID string, opts generator.ImprovementOptions) (*generator.ImprovementResult, error)
	GetRequest(ctx context.Context, tenantID string, id uuid.UUID) (*models.GenerationRequest, error)
	GetRequestHistory(ctx context.Context, tenantID string, filter models.HistoryFilter) (*models.HistoryPage, error)
	GetUsageStats(ctx context.Context, tenantID string) (*models.UsageStats, error)
	GetBudget(ctx context.Context, tenantID string) (*models.TenantBudget, error)
	ProviderStatus() []generator.ProviderStatus
}

// Handlers holds the HTTP handlers and dependencies
type Handlers struct {
	service        GeneratorService
	validator      *InputValidator
	allowedOrigins []string
}

// NewHandlers creates a new Handlers instance
func NewHandlers(service GeneratorService) *Handlers {
	return &Handlers{
		service:   service,
		validator: NewInputValidator(),
	}
}

// SetAllowedOrigins restricts which browser origins may open the content stream.
// An empty list, or one containing "*", allows any origin.
func (h *Handlers) SetAllowedOrigins(origins []string) {
	h.allowedOrigins = origins
}

// GenerateCaption writes social media captions
// POST /api/v1/ai/captions
func (h *Handlers) GenerateCaption(c echo.Context) error {
	var req generator.CaptionOptions
	if err := c.Bind(&req); err != nil {
		return ValidationError(c, "Invalid request body", err.Error())
	}
	if err := h.validator.Caption(req); err != nil {
		return ValidationError(c, "Invalid caption request", err.Error())
	}

	tenantID, userID := tenantFrom(c)
	result, err := h.service.GenerateCaption(c.Request().Context(), tenantID, userID, req)
	if err != nil {
		return GenerationError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

// GenerateContent writes long-form content
// POST /api/v1/ai/content
func (h *Handlers) GenerateContent(c echo.Context) error {
	var req generator.ContentOptions
	if err := c.Bind(&req); err != nil {
		return ValidationError(c, "Invalid request body", err.Error())
	}
	if err := h.validator.Content(req); err != nil {
		return ValidationError(c, "Invalid content request", err.Error())
	}

	tenantID, userID := tenantFrom(c)
	result, err := h.service.GenerateContent(c.Request().Context(), tenantID, userID, req)
	if err != nil {
		return GenerationError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

// GenerateImage generates images
// POST /api/v1/ai/images
func (h *Handlers) GenerateImage(c echo.Context) error {
	var req generator.ImageOptions
	if err := c.Bind(&req); err != nil {
		return ValidationError(c, "Invalid request body", err.Error())
	}
	if err := h.validator.Image(req); err != nil {
		return ValidationError(c, "Invalid image request", err.Error())
	}

	tenantID, userID := tenantFrom(c)
	result, err := h.service.GenerateImage(c.Request().Context(), tenantID, userID, req)
	if err != nil {
		return GenerationError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

// GenerateHashtags suggests hashtags
// POST /api/v1/ai/hashtags
func (h *Handlers) GenerateHashtags(c echo.Context) error {
	var req generator.HashtagOptions
	if err := c.Bind(&req); err != nil {
		return ValidationError(c, "Invalid request body", err.Error())
	}
	if err := h.validator.Hashtags(req); err != nil {
		return ValidationError(c, "Invalid hashtag request", err.Error())
	}

	tenantID, userID := tenantFrom(c)
	result, err := h.service.GenerateHashtags(c.Request().Context(), tenantID, userID, req)
	if err != nil {
		return GenerationError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

// ImproveContent rewrites content and lists the improvements
// POST /api/v1/ai/improve
func (h *Handlers) ImproveContent(c echo.Context) error {
	var req generator.ImprovementOptions
	if err := c.Bind(&req); err != nil {
		return ValidationError(c, "Invalid request body", err.Error())
	}
	if err := h.validator.Improvement(req); err != nil {
		return ValidationError(c, "Invalid improvement request", err.Error())
	}

	tenantID, userID := tenantFrom(c)
	result, err := h.service.ImproveContent(c.Request().Context(), tenantID, userID, req)
	if err != nil {
		return GenerationError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

// GetRequestHistory lists the tenant's generation requests, newest first
// GET /api/v1/ai/requests?type=&limit=&offset=
func (h *Handlers) GetRequestHistory(c echo.Context) error {
	filter, err := parseHistoryFilter(c)
	if err != nil {
		return ValidationError(c, "Invalid query parameters", err.Error())
	}

	tenantID, _ := tenantFrom(c)
	page, err := h.service.GetRequestHistory(c.Request().Context(), tenantID, filter)
	if err != nil {
		return InternalServerError(c, "Failed to load request history", err)
	}

	return c.JSON(http.StatusOK, HistoryResponse{
		Requests: page.Requests,
		Total:    page.Total,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	})
}

// GetRequest returns one of the tenant's generation requests
// GET /api/v1/ai/requests/:id
func (h *Handlers) GetRequest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return ValidationError(c, "Invalid request ID", "ID must be a valid UUID")
	}

	tenantID, _ := tenantFrom(c)
	r, err := h.service.GetRequest(c.Request().Context(), tenantID, id)
	if err != nil {
		if errors.Is(err, generator.ErrRequestNotFound) {
			return c.JSON(http.StatusNotFound, ErrorResponse{Error: "Generation request not found"})
		}
		return InternalServerError(c, "Failed to load generation request", err)
	}

	return c.JSON(http.StatusOK, r)
}

func parseHistoryFilter(c echo.Context) (models.HistoryFilter, error) {
	var filter models.HistoryFilter

	if raw := c.QueryParam("type"); raw != "" {
		t, err := models.ParseRequestType(raw)
		if err != nil {
			return filter, &FieldError{Field: "type", Err: err}
		}
		filter.Type = &t
	}

	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > models.MaxHistoryLimit {
			return filter, &FieldError{Field: "limit", Err: ErrOutOfRange}
		}
		filter.Limit = limit
	}

	if raw := c.QueryParam("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, &FieldError{Field: "offset", Err: ErrOutOfRange}
		}
		filter.Offset = offset
	}

	return filter.Normalize(), nil
}

// GetUsageStats aggregates the tenant's completed requests
// GET /api/v1/ai/usage
func (h *Handlers) GetUsageStats(c echo.Context) error {
	tenantID, _ := tenantFrom(c)
	stats, err := h.service.GetUsageStats(c.Request().Context(), tenantID)
	if err != nil {
		return InternalServerError(c, "Failed to load usage stats", err)
	}

	return c.JSON(http.StatusOK, stats)
}

// GetBudget returns the tenant's AI budget
// GET /api/v1/ai/budget
func (h *Handlers) GetBudget(c echo.Context) error {
	tenantID, _ := tenantFrom(c)
	budget, err := h.service.GetBudget(c.Request().Context(), tenantID)
	if err != nil {
		if errors.Is(err, generator.ErrTenantNotFound) {
			return c.JSON(http.StatusNotFound, ErrorResponse{Error: "Tenant not found"})
		}
		return InternalServerError(c, "Failed to load budget", err)
	}

	return c.JSON(http.StatusOK, ToBudgetResponse(budget))
}

// GetProviders reports whether each provider has credentials
// GET /api/v1/ai/providers
func (h *Handlers) GetProviders(c echo.Context) error {
	return c.JSON(http.StatusOK, ProvidersResponse{Providers: h.service.ProviderStatus()})
}

// Health Check Handlers

// Pinger is anything whose connectivity the readiness probe checks
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

// PingContext calls f
func (f PingFunc) PingContext(ctx context.Context) error {
	return f(ctx)
}

// HealthHandlers holds health check dependencies
type HealthHandlers struct {
	service string
	checks  map[string]Pinger
}

// NewHealthHandlers creates a new HealthHandlers instance checking the database
func NewHealthHandlers(service string, db Pinger) *HealthHandlers {
	return &HealthHandlers{
		service: service,
		checks:  map[string]Pinger{"database": db},
	}
}

// AddCheck registers another dependency for the readiness probe
func (hh *HealthHandlers) AddCheck(name string, p Pinger) {
	hh.checks[name] = p
}

// HealthResponse represents the liveness probe response
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse represents the readiness probe response
type ReadinessResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Checks  map[string]string `json:"checks"`
}

// Health returns a basic liveness check
// GET /health
func (hh *HealthHandlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Service:   hh.service,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Readiness checks every registered dependency
// GET /health/ready
func (hh *HealthHandlers) Readiness(c echo.Context) error {
	checks := make(map[string]string, len(hh.checks))
	status := "ready"

	for name, p := range hh.checks {
		if err := p.PingContext(c.Request().Context()); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			status = "not_ready"
		} else {
			checks[name] = "healthy"
		}
	}

	httpStatus := http.StatusOK
	if status == "not_ready" {
		httpStatus = http.StatusServiceUnavailable
	}

	return c.JSON(httpStatus, ReadinessResponse{
		Status:  status,
		Service: hh.service,
		Checks:  checks,
	})
}
