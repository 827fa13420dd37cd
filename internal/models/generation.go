package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RequestType classifies a generation attempt
type RequestType string

const (
	RequestTypeCaption     RequestType = "caption_generation"
	RequestTypeContent     RequestType = "content_generation"
	RequestTypeImage       RequestType = "image_generation"
	RequestTypeHashtag     RequestType = "hashtag_generation"
	RequestTypeImprovement RequestType = "content_improvement"
	RequestTypeTranslation RequestType = "content_translation"
	RequestTypeSentiment   RequestType = "sentiment_analysis"
)

// AllRequestTypes lists every declared request type in a stable order.
// Usage breakdowns report an entry for each of these.
var AllRequestTypes = []RequestType{
	RequestTypeCaption,
	RequestTypeContent,
	RequestTypeImage,
	RequestTypeHashtag,
	RequestTypeImprovement,
	RequestTypeTranslation,
	RequestTypeSentiment,
}

// Valid reports whether t is one of the declared request types
func (t RequestType) Valid() bool {
	for _, known := range AllRequestTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseRequestType converts a raw string into a RequestType
func ParseRequestType(s string) (RequestType, error) {
	t := RequestType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown request type %q", s)
	}
	return t, nil
}

// RequestStatus is the lifecycle state of a generation attempt
type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "pending"
	RequestStatusProcessing RequestStatus = "processing"
	RequestStatusCompleted  RequestStatus = "completed"
	RequestStatusFailed     RequestStatus = "failed"
)

// GenerationRequest is one ledger row: a single attempted generation.
// Output is set only when Status is completed, ErrorMessage only when failed.
type GenerationRequest struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	TenantID         string          `db:"tenant_id" json:"tenantId"`
	UserID           string          `db:"user_id" json:"userId"`
	Type             RequestType     `db:"type" json:"type"`
	Status           RequestStatus   `db:"status" json:"status"`
	Model            string          `db:"model" json:"model"`
	Input            json.RawMessage `db:"input" json:"input"`
	Output           json.RawMessage `db:"output" json:"output,omitempty"`
	TokensUsed       int             `db:"tokens_used" json:"tokensUsed"`
	CostUSD          float64         `db:"cost_usd" json:"costUsd"`
	ProcessingTimeMS *int            `db:"processing_time_ms" json:"processingTimeMs,omitempty"`
	ErrorMessage     *string         `db:"error_message" json:"errorMessage,omitempty"`
	Metadata         json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updatedAt"`
}

// Validate checks the status/output/error invariants of a ledger row
func (r *GenerationRequest) Validate() error {
	if r.TenantID == "" {
		return fmt.Errorf("tenant_id is required")
	}
	if r.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if !r.Type.Valid() {
		return fmt.Errorf("invalid type %q", r.Type)
	}

	switch r.Status {
	case RequestStatusPending, RequestStatusProcessing:
		if len(r.Output) > 0 || r.ErrorMessage != nil {
			return fmt.Errorf("%s request cannot carry output or error", r.Status)
		}
	case RequestStatusCompleted:
		if len(r.Output) == 0 {
			return fmt.Errorf("completed request requires output")
		}
		if r.ErrorMessage != nil {
			return fmt.Errorf("completed request cannot carry an error message")
		}
	case RequestStatusFailed:
		if r.ErrorMessage == nil {
			return fmt.Errorf("failed request requires an error message")
		}
		if len(r.Output) > 0 {
			return fmt.Errorf("failed request cannot carry output")
		}
	default:
		return fmt.Errorf("invalid status %q", r.Status)
	}

	if r.TokensUsed < 0 || r.CostUSD < 0 {
		return fmt.Errorf("tokens and cost must be non-negative")
	}
	return nil
}

// Completion carries the values written when a request succeeds
type Completion struct {
	Output           any
	TokensUsed       int
	CostUSD          float64
	ProcessingTimeMS int
}

// Failure carries the values written when a request fails
type Failure struct {
	ErrorMessage     string
	ProcessingTimeMS int
}

// HistoryFilter selects a page of ledger rows for one tenant
type HistoryFilter struct {
	Type   *RequestType
	Limit  int
	Offset int
}

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
)

// Normalize fills in the default page size and clamps negative offsets
func (f HistoryFilter) Normalize() HistoryFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultHistoryLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// HistoryPage is one page of ledger rows plus the total matching count
type HistoryPage struct {
	Requests []*GenerationRequest `json:"requests"`
	Total    int                  `json:"total"`
}

// TypeUsage is the completed-request breakdown for a single request type
type TypeUsage struct {
	Count  int     `json:"count"`
	Cost   float64 `json:"cost"`
	Tokens int     `json:"tokens"`
}

// UsageStats aggregates completed requests for a tenant
type UsageStats struct {
	TotalRequests int                       `json:"totalRequests"`
	TotalCost     float64                   `json:"totalCost"`
	TotalTokens   int                       `json:"totalTokens"`
	ByType        map[RequestType]TypeUsage `json:"byType"`
}

// NewUsageStats returns stats with a zero entry for every declared type
func NewUsageStats() *UsageStats {
	byType := make(map[RequestType]TypeUsage, len(AllRequestTypes))
	for _, t := range AllRequestTypes {
		byType[t] = TypeUsage{}
	}
	return &UsageStats{ByType: byType}
}

// Add folds one per-type aggregate into the totals
func (s *UsageStats) Add(t RequestType, u TypeUsage) {
	s.ByType[t] = u
	s.TotalRequests += u.Count
	s.TotalCost += u.Cost
	s.TotalTokens += u.Tokens
}

// TenantBudget holds the AI spend fields of a tenant
type TenantBudget struct {
	TenantID       string  `db:"id" json:"tenantId"`
	AIBudgetLimit  float64 `db:"ai_budget_limit" json:"limit"`
	AIUsageCurrent float64 `db:"ai_usage_current" json:"usage"`
}

// Exhausted reports whether new generation work must be refused
func (b TenantBudget) Exhausted() bool {
	return b.AIUsageCurrent >= b.AIBudgetLimit
}

// Remaining returns the unspent budget, never below zero
func (b TenantBudget) Remaining() float64 {
	if b.Exhausted() {
		return 0
	}
	return b.AIBudgetLimit - b.AIUsageCurrent
}
