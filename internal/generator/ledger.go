package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/contentdeck/aigen/internal/db"
	"github.com/contentdeck/aigen/internal/models"
	"github.com/google/uuid"
)

// LedgerDB defines the persistence the ledger needs
type LedgerDB interface {
	CreateGenerationRequest(ctx context.Context, r *models.GenerationRequest) error
	CompleteGenerationRequest(ctx context.Context, id uuid.UUID, output []byte, tokensUsed int, costUSD float64, processingTimeMS int) error
	FailGenerationRequest(ctx context.Context, id uuid.UUID, errorMessage string, processingTimeMS int) error
	GetGenerationRequest(ctx context.Context, tenantID string, id uuid.UUID) (*models.GenerationRequest, error)
	ListGenerationRequests(ctx context.Context, tenantID string, filter models.HistoryFilter) ([]*models.GenerationRequest, int, error)
	GetUsageByType(ctx context.Context, tenantID string) (map[models.RequestType]models.TypeUsage, error)
}

// Ledger records one row per generation attempt and answers history and
// usage queries over those rows
type Ledger struct {
	db  LedgerDB
	now func() time.Time
}

// NewLedger creates a new ledger
func NewLedger(db LedgerDB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// Open creates a record already in the processing state
func (l *Ledger) Open(ctx context.Context, tenantID, userID string, reqType models.RequestType, model string, input any, metadata map[string]any) (*models.GenerationRequest, error) {
	inputJSON, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request input: %w", err)
	}

	var metadataJSON json.RawMessage
	if len(metadata) > 0 {
		metadataJSON, err = json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request metadata: %w", err)
		}
	}

	now := l.now().UTC()
	r := &models.GenerationRequest{
		ID:        uuid.New(),
		TenantID:  tenantID,
		UserID:    userID,
		Type:      reqType,
		Status:    models.RequestStatusProcessing,
		Model:     model,
		Input:     inputJSON,
		Metadata:  metadataJSON,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}

	if err := l.db.CreateGenerationRequest(ctx, r); err != nil {
		return nil, err
	}

	return r, nil
}

// Complete transitions a record to completed
func (l *Ledger) Complete(ctx context.Context, id uuid.UUID, c models.Completion) error {
	if c.Output == nil {
		return fmt.Errorf("completed request requires output")
	}
	output, err := json.Marshal(c.Output)
	if err != nil {
		return fmt.Errorf("failed to marshal request output: %w", err)
	}
	return l.db.CompleteGenerationRequest(ctx, id, output, c.TokensUsed, c.CostUSD, c.ProcessingTimeMS)
}

// Fail transitions a record to failed
func (l *Ledger) Fail(ctx context.Context, id uuid.UUID, f models.Failure) error {
	message := f.ErrorMessage
	if message == "" {
		message = "unknown error"
	}
	return l.db.FailGenerationRequest(ctx, id, message, f.ProcessingTimeMS)
}

// Get returns one of the tenant's records. Records of other tenants are
// reported as not found.
func (l *Ledger) Get(ctx context.Context, tenantID string, id uuid.UUID) (*models.GenerationRequest, error) {
	r, err := l.db.GetGenerationRequest(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRequestNotFound, id)
		}
		return nil, err
	}
	return r, nil
}

// History returns one page of a tenant's records, newest first
func (l *Ledger) History(ctx context.Context, tenantID string, filter models.HistoryFilter) (*models.HistoryPage, error) {
	requests, total, err := l.db.ListGenerationRequests(ctx, tenantID, filter.Normalize())
	if err != nil {
		return nil, err
	}
	if requests == nil {
		requests = []*models.GenerationRequest{}
	}
	return &models.HistoryPage{Requests: requests, Total: total}, nil
}

// UsageStats aggregates a tenant's completed records. Every declared request
// type has an entry, zero when nothing of that type completed.
func (l *Ledger) UsageStats(ctx context.Context, tenantID string) (*models.UsageStats, error) {
	byType, err := l.db.GetUsageByType(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	stats := models.NewUsageStats()
	for _, t := range models.AllRequestTypes {
		if u, ok := byType[t]; ok {
			stats.Add(t, u)
		}
	}
	return stats, nil
}
