package account

import (
	"context"

	"github.com/vetpms/backend/internal/domain/account"
)

// TransactionScope runs a unit of work in one database transaction. A plan is
// computed from reads made through the scoped repositories and saved through
// them, so the commit covers every act the plan touched.
type TransactionScope interface {
	// Execute commits when fn returns nil and rolls back otherwise.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes the repositories bound to the current transaction.
type TransactionalRepositories interface {
	Acts() account.FinancialActRepository
	Allocations() account.AllocationRepository
	// GapClaims reads claims through the same transaction, so a claim posted
	// concurrently is either fully visible or not at all.
	GapClaims() account.GapClaimFinder
}

// NoOpTransactionScope runs fn directly against the given repositories.
// Used by tests and by callers that do not need atomicity.
type NoOpTransactionScope struct {
	acts        account.FinancialActRepository
	allocations account.AllocationRepository
	claims      account.GapClaimFinder
}

// NewNoOpTransactionScope creates a NoOpTransactionScope.
func NewNoOpTransactionScope(
	acts account.FinancialActRepository,
	allocations account.AllocationRepository,
	claims account.GapClaimFinder,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{acts: acts, allocations: allocations, claims: claims}
}

func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) Acts() account.FinancialActRepository { return s.acts }

func (s *NoOpTransactionScope) Allocations() account.AllocationRepository { return s.allocations }

func (s *NoOpTransactionScope) GapClaims() account.GapClaimFinder { return s.claims }

var (
	_ TransactionScope          = (*NoOpTransactionScope)(nil)
	_ TransactionalRepositories = (*NoOpTransactionScope)(nil)
)
