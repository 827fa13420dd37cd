package generator

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrBudgetExceeded is matched by every BudgetExceededError
	ErrBudgetExceeded = errors.New("AI budget limit exceeded")

	// ErrUnsupportedType is returned for request types with no generation operation
	ErrUnsupportedType = errors.New("request type not supported")

	// ErrTenantNotFound is returned when the tenant has no budget row
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrRequestNotFound is returned when a tenant has no record with the given id
	ErrRequestNotFound = errors.New("generation request not found")
)

// BudgetExceededError is returned before any work is started when a tenant's
// cumulative spend has reached its limit.
type BudgetExceededError struct {
	TenantID string
	Limit    float64
	Usage    float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("AI budget limit exceeded for tenant %s: usage %.4f of %.4f", e.TenantID, e.Usage, e.Limit)
}

// Is lets errors.Is(err, ErrBudgetExceeded) match
func (e *BudgetExceededError) Is(target error) bool {
	return target == ErrBudgetExceeded
}

// GenerationFailedError is the single caller-facing failure for anything that
// went wrong after the ledger record was opened. Err holds the original cause.
type GenerationFailedError struct {
	Operation string
	RequestID uuid.UUID
	Message   string
	Err       error
}

func (e *GenerationFailedError) Error() string {
	return fmt.Sprintf("%s generation failed: %s", e.Operation, e.Message)
}

func (e *GenerationFailedError) Unwrap() error {
	return e.Err
}
