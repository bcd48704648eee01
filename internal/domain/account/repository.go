package account

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vetpms/backend/internal/domain/shared"
)

// FinancialActFilter defines filtering options for act queries
type FinancialActFilter struct {
	shared.Filter
	ActTypes        []ActType   // Restrict to these act types
	Statuses        []ActStatus // Restrict to these statuses
	FromDate        *time.Time  // Start time range start (inclusive)
	ToDate          *time.Time  // Start time range end (exclusive)
	UnallocatedOnly bool        // Only acts with allocated < total
}

// FinancialActRepository is the persistence adapter for financial acts
type FinancialActRepository interface {
	DebitSource

	// FindByID finds an act by ID
	FindByID(ctx context.Context, id uuid.UUID) (*FinancialAct, error)

	// FindByIDs finds acts by ID. Missing IDs are not an error; the result
	// follows the order of ids.
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*FinancialAct, error)

	// FindByCustomer finds a customer's acts with filtering
	FindByCustomer(ctx context.Context, customerID uuid.UUID, filter FinancialActFilter) ([]*FinancialAct, error)

	// FindUnallocated finds posted acts of both polarities with an outstanding amount
	FindUnallocated(ctx context.Context, customerID uuid.UUID) ([]*FinancialAct, error)

	// FindUnallocatedCredits finds posted credits with an outstanding amount, oldest first
	FindUnallocatedCredits(ctx context.Context, customerID uuid.UUID) ([]*FinancialAct, error)

	// FindCustomersWithUnallocatedCredits lists customers holding unallocated
	// credit who also have an outstanding posted debit
	FindCustomersWithUnallocatedCredits(ctx context.Context, limit int) ([]uuid.UUID, error)

	// Save inserts a new act or updates an existing one with a version check
	Save(ctx context.Context, act *FinancialAct) error

	// SaveAll saves every act or none. A stale version on any act fails the
	// whole call with ConcurrentModification.
	SaveAll(ctx context.Context, acts []*FinancialAct) error
}

// AllocationRepository persists allocation records
type AllocationRepository interface {
	SaveAll(ctx context.Context, allocations []Allocation) error
	FindByCredit(ctx context.Context, creditID uuid.UUID) ([]Allocation, error)
	FindByDebit(ctx context.Context, debitID uuid.UUID) ([]Allocation, error)
}
