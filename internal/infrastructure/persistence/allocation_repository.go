package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/vetpms/backend/internal/domain/account"
	"github.com/vetpms/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormAllocationRepository implements AllocationRepository using GORM
type GormAllocationRepository struct {
	db *gorm.DB
}

// NewGormAllocationRepository creates a new GormAllocationRepository
func NewGormAllocationRepository(db *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: db}
}

// SaveAll inserts allocation records
func (r *GormAllocationRepository) SaveAll(ctx context.Context, allocations []account.Allocation) error {
	if len(allocations) == 0 {
		return nil
	}
	rows := make([]*models.AllocationModel, len(allocations))
	for i, a := range allocations {
		rows[i] = models.AllocationModelFromDomain(a)
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return persistenceError("Failed to save allocations", err)
	}
	return nil
}

// FindByCredit returns the allocations made from a credit, oldest first
func (r *GormAllocationRepository) FindByCredit(ctx context.Context, creditID uuid.UUID) ([]account.Allocation, error) {
	return r.find(ctx, "credit_id = ?", creditID)
}

// FindByDebit returns the allocations made to a debit, oldest first
func (r *GormAllocationRepository) FindByDebit(ctx context.Context, debitID uuid.UUID) ([]account.Allocation, error) {
	return r.find(ctx, "debit_id = ?", debitID)
}

func (r *GormAllocationRepository) find(ctx context.Context, cond string, id uuid.UUID) ([]account.Allocation, error) {
	var rows []models.AllocationModel
	if err := r.db.WithContext(ctx).
		Where(cond, id).
		Order("allocated_at ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, persistenceError("Failed to load allocations", err)
	}
	out := make([]account.Allocation, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

var _ account.AllocationRepository = (*GormAllocationRepository)(nil)
