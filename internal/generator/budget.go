package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/contentdeck/aigen/internal/db"
	"github.com/contentdeck/aigen/internal/models"
)

// TenantStore reads and increments the AI budget fields of a tenant
type TenantStore interface {
	GetTenantBudget(ctx context.Context, tenantID string) (*models.TenantBudget, error)
	AddTenantAIUsage(ctx context.Context, tenantID string, cost float64) error
}

// BudgetGuard enforces each tenant's AI spend ceiling.
//
// CheckBudget and RecordSpend are separate round trips with no locking
// between them, so concurrent calls for one tenant can all pass the check and
// push usage past the limit. The limit is enforced when work starts, not
// guaranteed exact under concurrency.
type BudgetGuard struct {
	store TenantStore
}

// NewBudgetGuard creates a budget guard over the tenant store
func NewBudgetGuard(store TenantStore) *BudgetGuard {
	return &BudgetGuard{store: store}
}

// GetBudget returns the tenant's current limit and usage
func (g *BudgetGuard) GetBudget(ctx context.Context, tenantID string) (*models.TenantBudget, error) {
	budget, err := g.store.GetTenantBudget(ctx, tenantID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTenantNotFound, tenantID)
		}
		return nil, fmt.Errorf("failed to load tenant budget: %w", err)
	}
	return budget, nil
}

// CheckBudget fails with a BudgetExceededError once usage has reached the
// limit. It has no side effects.
func (g *BudgetGuard) CheckBudget(ctx context.Context, tenantID string) error {
	budget, err := g.GetBudget(ctx, tenantID)
	if err != nil {
		return err
	}
	if budget.Exhausted() {
		return &BudgetExceededError{
			TenantID: tenantID,
			Limit:    budget.AIBudgetLimit,
			Usage:    budget.AIUsageCurrent,
		}
	}
	return nil
}

// RecordSpend adds cost to the tenant's cumulative usage. A single call may
// push usage over the limit; the next CheckBudget is what refuses work.
func (g *BudgetGuard) RecordSpend(ctx context.Context, tenantID string, cost float64) error {
	if cost < 0 {
		return fmt.Errorf("negative spend %f", cost)
	}
	if cost == 0 {
		return nil
	}
	if err := g.store.AddTenantAIUsage(ctx, tenantID, cost); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrTenantNotFound, tenantID)
		}
		return fmt.Errorf("failed to record AI spend: %w", err)
	}
	return nil
}
