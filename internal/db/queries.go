package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/contentdeck/aigen/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("not found")

	// ErrAlreadyFinalized is returned when a ledger row is not in the
	// processing state and so cannot transition again
	ErrAlreadyFinalized = errors.New("generation request already finalized")
)

// Querier interface represents a database connection or transaction
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Queries provides database query methods
type Queries struct {
	db Querier
}

// NewQueries creates a new Queries instance
func NewQueries(db Querier) *Queries {
	return &Queries{db: db}
}

// Generation request queries

const generationRequestColumns = `
	id, tenant_id::text, user_id::text, type, status, model, input, output,
	tokens_used, cost_usd::float8, processing_time_ms, error_message, metadata,
	created_at, updated_at`

// CreateGenerationRequest inserts a new ledger row
func (q *Queries) CreateGenerationRequest(ctx context.Context, r *models.GenerationRequest) error {
	query := `
		INSERT INTO ai_requests (id, tenant_id, user_id, type, status, model, input, tokens_used, cost_usd, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, COALESCE($10::jsonb, '{}'::jsonb), $11, $12)
	`

	_, err := q.db.ExecContext(
		ctx,
		query,
		r.ID,
		r.TenantID,
		r.UserID,
		string(r.Type),
		string(r.Status),
		r.Model,
		string(r.Input),
		r.TokensUsed,
		r.CostUSD,
		nullableJSON(r.Metadata),
		r.CreatedAt,
		r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert generation request: %w", err)
	}

	return nil
}

// CompleteGenerationRequest moves a processing row to completed and sets its
// output, tokens, cost and timing
func (q *Queries) CompleteGenerationRequest(ctx context.Context, id uuid.UUID, output []byte, tokensUsed int, costUSD float64, processingTimeMS int) error {
	query := `
		UPDATE ai_requests
		SET status = 'completed', output = $2::jsonb, tokens_used = $3, cost_usd = $4, processing_time_ms = $5, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`

	result, err := q.db.ExecContext(ctx, query, id, string(output), tokensUsed, costUSD, processingTimeMS)
	if err != nil {
		return fmt.Errorf("failed to complete generation request: %w", err)
	}

	return checkTransition(result, id)
}

// FailGenerationRequest moves a processing row to failed
func (q *Queries) FailGenerationRequest(ctx context.Context, id uuid.UUID, errorMessage string, processingTimeMS int) error {
	query := `
		UPDATE ai_requests
		SET status = 'failed', error_message = $2, processing_time_ms = $3, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`

	result, err := q.db.ExecContext(ctx, query, id, errorMessage, processingTimeMS)
	if err != nil {
		return fmt.Errorf("failed to fail generation request: %w", err)
	}

	return checkTransition(result, id)
}

func checkTransition(result sql.Result, id uuid.UUID) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyFinalized, id)
	}
	return nil
}

// GetGenerationRequest retrieves one ledger row scoped to a tenant
func (q *Queries) GetGenerationRequest(ctx context.Context, tenantID string, id uuid.UUID) (*models.GenerationRequest, error) {
	query := `SELECT ` + generationRequestColumns + `
		FROM ai_requests
		WHERE id = $1 AND tenant_id = $2
	`

	r, err := scanGenerationRequest(q.db.QueryRowContext(ctx, query, id, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("generation request %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query generation request: %w", err)
	}

	return r, nil
}

// ListGenerationRequests returns one page of a tenant's ledger rows, newest
// first, and the total number of matching rows. Page and total come from the
// same statement.
func (q *Queries) ListGenerationRequests(ctx context.Context, tenantID string, filter models.HistoryFilter) ([]*models.GenerationRequest, int, error) {
	filter = filter.Normalize()

	var typeFilter interface{}
	if filter.Type != nil {
		typeFilter = string(*filter.Type)
	}

	query := `SELECT ` + generationRequestColumns + `, COUNT(*) OVER() AS total
		FROM ai_requests
		WHERE tenant_id = $1 AND ($2::text IS NULL OR type = $2::text)
		ORDER BY created_at DESC, id
		LIMIT $3 OFFSET $4
	`

	rows, err := q.db.QueryContext(ctx, query, tenantID, typeFilter, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query generation requests: %w", err)
	}
	defer rows.Close()

	requests := make([]*models.GenerationRequest, 0, filter.Limit)
	total := 0
	for rows.Next() {
		r, err := scanGenerationRequest(rows, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan generation request: %w", err)
		}
		requests = append(requests, r)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating generation requests: %w", err)
	}

	// A page past the end has no rows to carry the window count
	if len(requests) == 0 && filter.Offset > 0 {
		countQuery := `SELECT COUNT(*) FROM ai_requests WHERE tenant_id = $1 AND ($2::text IS NULL OR type = $2::text)`
		if err := q.db.QueryRowContext(ctx, countQuery, tenantID, typeFilter).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("failed to count generation requests: %w", err)
		}
	}

	return requests, total, nil
}

// GetUsageByType aggregates a tenant's completed requests per request type
func (q *Queries) GetUsageByType(ctx context.Context, tenantID string) (map[models.RequestType]models.TypeUsage, error) {
	query := `
		SELECT type, COUNT(*), COALESCE(SUM(cost_usd), 0)::float8, COALESCE(SUM(tokens_used), 0)
		FROM ai_requests
		WHERE tenant_id = $1 AND status = 'completed'
		GROUP BY type
	`

	rows, err := q.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage: %w", err)
	}
	defer rows.Close()

	usage := make(map[models.RequestType]models.TypeUsage)
	for rows.Next() {
		var (
			reqType string
			u       models.TypeUsage
		)
		if err := rows.Scan(&reqType, &u.Count, &u.Cost, &u.Tokens); err != nil {
			return nil, fmt.Errorf("failed to scan usage: %w", err)
		}
		usage[models.RequestType(reqType)] = u
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usage: %w", err)
	}

	return usage, nil
}

// Tenant budget queries

// GetTenantBudget reads the AI budget fields of a tenant
func (q *Queries) GetTenantBudget(ctx context.Context, tenantID string) (*models.TenantBudget, error) {
	query := `
		SELECT id::text, ai_budget_limit::float8, ai_usage_current::float8
		FROM tenants
		WHERE id = $1
	`

	budget := &models.TenantBudget{}
	err := q.db.QueryRowContext(ctx, query, tenantID).Scan(
		&budget.TenantID,
		&budget.AIBudgetLimit,
		&budget.AIUsageCurrent,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tenant %s: %w", tenantID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to query tenant budget: %w", err)
	}

	return budget, nil
}

// AddTenantAIUsage increments a tenant's cumulative AI spend. There is no cap
// on the write; the limit is only checked before work starts.
func (q *Queries) AddTenantAIUsage(ctx context.Context, tenantID string, cost float64) error {
	query := `
		UPDATE tenants
		SET ai_usage_current = ai_usage_current + $2
		WHERE id = $1
	`

	result, err := q.db.ExecContext(ctx, query, tenantID, cost)
	if err != nil {
		return fmt.Errorf("failed to update tenant AI usage: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("tenant %s: %w", tenantID, ErrNotFound)
	}

	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanGenerationRequest reads the generationRequestColumns, plus any extra
// trailing destinations
func scanGenerationRequest(row rowScanner, extra ...interface{}) (*models.GenerationRequest, error) {
	r := &models.GenerationRequest{}
	var (
		reqType          string
		status           string
		input            []byte
		output           []byte
		metadata         []byte
		processingTimeMS sql.NullInt32
		errorMessage     sql.NullString
	)

	dest := []interface{}{
		&r.ID,
		&r.TenantID,
		&r.UserID,
		&reqType,
		&status,
		&r.Model,
		&input,
		&output,
		&r.TokensUsed,
		&r.CostUSD,
		&processingTimeMS,
		&errorMessage,
		&metadata,
		&r.CreatedAt,
		&r.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	r.Type = models.RequestType(reqType)
	r.Status = models.RequestStatus(status)
	r.Input = input
	if len(output) > 0 {
		r.Output = output
	}
	if len(metadata) > 0 {
		r.Metadata = metadata
	}
	if processingTimeMS.Valid {
		ms := int(processingTimeMS.Int32)
		r.ProcessingTimeMS = &ms
	}
	if errorMessage.Valid {
		msg := errorMessage.String
		r.ErrorMessage = &msg
	}

	return r, nil
}

// nullableJSON maps an empty document to SQL NULL. Documents are sent as
// text so every driver hands them to jsonb unchanged.
func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
