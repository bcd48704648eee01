package persistence

import (
	"context"

	appaccount "github.com/vetpms/backend/internal/application/account"
	"github.com/vetpms/backend/internal/domain/account"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// Every repository handed to fn shares the same transaction.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn within a database transaction. The transaction is rolled
// back if fn returns an error and committed otherwise.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appaccount.TransactionalRepositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
	if err != nil {
		return persistenceError("Transaction failed", err)
	}
	return nil
}

// gormTransactionalRepositories scopes the account repositories to one transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// Acts returns the financial act repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Acts() account.FinancialActRepository {
	return NewGormFinancialActRepository(r.tx)
}

// Allocations returns the allocation repository scoped to the current transaction.
func (r *gormTransactionalRepositories) Allocations() account.AllocationRepository {
	return NewGormAllocationRepository(r.tx)
}

// GapClaims returns the gap claim finder scoped to the current transaction.
func (r *gormTransactionalRepositories) GapClaims() account.GapClaimFinder {
	return NewGormClaimRepository(r.tx)
}

var (
	_ appaccount.TransactionScope          = (*GormTransactionScope)(nil)
	_ appaccount.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
