package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/contentdeck/aigen/internal/generator"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// BudgetExceededMessage is the client-facing text for a 402 response
const BudgetExceededMessage = "AI budget limit exceeded. Please upgrade your plan."

// getTraceID extracts the trace ID from the OpenTelemetry span context
// Returns empty string if no active span exists
func getTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return ""
	}
	return span.SpanContext().TraceID().String()
}

// InternalServerError returns a sanitized 500 error response to the client
// and logs the full error details server-side with the trace ID for debugging
//
// Client sees: {"error": "Failed to load usage stats", "details": "Reference: abc123..."}
func InternalServerError(c echo.Context, userMessage string, err error) error {
	ctx := c.Request().Context()
	traceID := getTraceID(ctx)

	zerolog.Ctx(ctx).Error().
		Err(err).
		Str("trace_id", traceID).
		Msg(userMessage)

	response := ErrorResponse{
		Error: userMessage,
	}
	if traceID != "" {
		response.Details = fmt.Sprintf("Reference: %s", traceID)
	}

	return c.JSON(http.StatusInternalServerError, response)
}

// ValidationError returns a 400 error response with full details
// Validation errors are safe to show because they're controlled messages
func ValidationError(c echo.Context, message string, details string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   message,
		Details: details,
	})
}

// GenerationError maps an orchestrator error to its HTTP response
func GenerationError(c echo.Context, err error) error {
	status, resp := classifyError(err)
	if status == http.StatusInternalServerError {
		return InternalServerError(c, resp.Error, err)
	}
	return c.JSON(status, resp)
}

// classifyError picks the status and client-safe body for an orchestrator error
func classifyError(err error) (int, ErrorResponse) {
	var (
		budgetErr *generator.BudgetExceededError
		failed    *generator.GenerationFailedError
	)

	switch {
	case errors.As(err, &budgetErr):
		return http.StatusPaymentRequired, ErrorResponse{
			Error:   BudgetExceededMessage,
			Details: fmt.Sprintf("Usage $%.2f of $%.2f", budgetErr.Usage, budgetErr.Limit),
		}
	case errors.Is(err, generator.ErrTenantNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "Tenant not found"}
	case errors.Is(err, generator.ErrUnsupportedType):
		return http.StatusBadRequest, ErrorResponse{Error: "Unsupported request type", Details: err.Error()}
	case errors.As(err, &failed):
		return http.StatusBadGateway, ErrorResponse{
			Error:     failed.Error(),
			RequestID: failed.RequestID.String(),
		}
	case errors.Is(err, generator.ErrStreamingUnsupported), errors.Is(err, generator.ErrProviderUnavailable):
		return http.StatusServiceUnavailable, ErrorResponse{Error: "AI provider is not available", Details: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "AI generation failed"}
	}
}
