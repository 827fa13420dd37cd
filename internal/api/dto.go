package api

import (
	"github.com/contentdeck/aigen/internal/generator"
	"github.com/contentdeck/aigen/internal/models"
	"github.com/google/uuid"
)

// Request bodies bind straight into the generator option types, whose JSON
// tags are the wire format: caption, content, image, hashtag and improvement
// requests are generator.CaptionOptions, ContentOptions, ImageOptions,
// HashtagOptions and ImprovementOptions.

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// HistoryResponse is one page of the tenant's generation requests
type HistoryResponse struct {
	Requests []*models.GenerationRequest `json:"requests"`
	Total    int                         `json:"total"`
	Limit    int                         `json:"limit"`
	Offset   int                         `json:"offset"`
}

// BudgetResponse describes the tenant's AI budget
type BudgetResponse struct {
	Limit     float64 `json:"limit"`
	Usage     float64 `json:"usage"`
	Remaining float64 `json:"remaining"`
	Exhausted bool    `json:"exhausted"`
}

// ProvidersResponse lists the configured state of each provider
type ProvidersResponse struct {
	Providers []generator.ProviderStatus `json:"providers"`
}

// Stream frame types sent over the content stream socket
const (
	FrameChunk = "chunk"
	FrameDone  = "done"
	FrameError = "error"
)

// StreamFrame is one message on the content stream socket
type StreamFrame struct {
	Type      string     `json:"type"`
	Text      string     `json:"text,omitempty"`
	Content   []string   `json:"content,omitempty"`
	RequestID *uuid.UUID `json:"requestId,omitempty"`
	Error     string     `json:"error,omitempty"`
	Status    int        `json:"status,omitempty"`
}

// ToBudgetResponse converts a models.TenantBudget to a BudgetResponse
func ToBudgetResponse(b *models.TenantBudget) *BudgetResponse {
	return &BudgetResponse{
		Limit:     b.AIBudgetLimit,
		Usage:     b.AIUsageCurrent,
		Remaining: b.Remaining(),
		Exhausted: b.Exhausted(),
	}
}
