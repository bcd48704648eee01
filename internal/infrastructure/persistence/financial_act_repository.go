package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vetpms/backend/internal/domain/account"
	"github.com/vetpms/backend/internal/domain/shared"
	"github.com/vetpms/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormFinancialActRepository implements FinancialActRepository using GORM
type GormFinancialActRepository struct {
	db *gorm.DB
}

// NewGormFinancialActRepository creates a new GormFinancialActRepository
func NewGormFinancialActRepository(db *gorm.DB) *GormFinancialActRepository {
	return &GormFinancialActRepository{db: db}
}

// WithTx returns a new repository with the given transaction
func (r *GormFinancialActRepository) WithTx(tx *gorm.DB) *GormFinancialActRepository {
	return &GormFinancialActRepository{db: tx}
}

// FindByID finds an act by its ID
func (r *GormFinancialActRepository) FindByID(ctx context.Context, id uuid.UUID) (*account.FinancialAct, error) {
	var model models.FinancialActModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("Financial act %s not found", id))
		}
		return nil, persistenceError("Failed to load financial act", err)
	}
	return model.ToDomain(), nil
}

// FindByIDs finds acts by ID, keeping the order of ids
func (r *GormFinancialActRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*account.FinancialAct, error) {
	if len(ids) == 0 {
		return []*account.FinancialAct{}, nil
	}
	var rows []models.FinancialActModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, persistenceError("Failed to load financial acts", err)
	}
	byID := make(map[uuid.UUID]*account.FinancialAct, len(rows))
	for i := range rows {
		byID[rows[i].ID] = rows[i].ToDomain()
	}
	acts := make([]*account.FinancialAct, 0, len(rows))
	for _, id := range ids {
		if act, ok := byID[id]; ok {
			acts = append(acts, act)
			delete(byID, id)
		}
	}
	return acts, nil
}

// FindOutstandingDebits finds a customer's posted debits with an outstanding
// amount, oldest first
func (r *GormFinancialActRepository) FindOutstandingDebits(ctx context.Context, customerID uuid.UUID) ([]*account.FinancialAct, error) {
	return r.findUnallocated(ctx, r.db.WithContext(ctx).
		Where("customer_id = ? AND status = ? AND credit = ?", customerID, account.ActStatusPosted, false))
}

// FindUnallocatedCredits finds a customer's posted credits with an
// outstanding amount, oldest first
func (r *GormFinancialActRepository) FindUnallocatedCredits(ctx context.Context, customerID uuid.UUID) ([]*account.FinancialAct, error) {
	return r.findUnallocated(ctx, r.db.WithContext(ctx).
		Where("customer_id = ? AND status = ? AND credit = ?", customerID, account.ActStatusPosted, true))
}

// FindUnallocated finds a customer's posted acts of either polarity with an
// outstanding amount
func (r *GormFinancialActRepository) FindUnallocated(ctx context.Context, customerID uuid.UUID) ([]*account.FinancialAct, error) {
	return r.findUnallocated(ctx, r.db.WithContext(ctx).
		Where("customer_id = ? AND status = ?", customerID, account.ActStatusPosted))
}

func (r *GormFinancialActRepository) findUnallocated(_ context.Context, query *gorm.DB) ([]*account.FinancialAct, error) {
	var rows []models.FinancialActModel
	if err := query.
		Where("allocated_amount < total").
		Order("start_time ASC").
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, persistenceError("Failed to load unallocated acts", err)
	}
	return toDomainActs(rows), nil
}

// FindByCustomer finds a customer's acts with filtering
func (r *GormFinancialActRepository) FindByCustomer(ctx context.Context, customerID uuid.UUID, filter account.FinancialActFilter) ([]*account.FinancialAct, error) {
	query := r.db.WithContext(ctx).Model(&models.FinancialActModel{}).Where("customer_id = ?", customerID)
	query = r.applyFilter(query, filter)

	var rows []models.FinancialActModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, persistenceError("Failed to list financial acts", err)
	}
	return toDomainActs(rows), nil
}

// FindCustomersWithUnallocatedCredits lists customers that hold posted credit
// and also owe a posted debit it could be matched against. Prepaid customers
// are left out so they cannot fill every batch ahead of customers who owe.
func (r *GormFinancialActRepository) FindCustomersWithUnallocatedCredits(ctx context.Context, limit int) ([]uuid.UUID, error) {
	owing := r.db.WithContext(ctx).Table("financial_acts AS d").
		Select("1").
		Where("d.customer_id = financial_acts.customer_id").
		Where("d.status = ? AND d.credit = ? AND d.allocated_amount < d.total", account.ActStatusPosted, false)
	query := r.db.WithContext(ctx).Model(&models.FinancialActModel{}).
		Distinct("customer_id").
		Where("status = ? AND credit = ? AND allocated_amount < total", account.ActStatusPosted, true).
		Where("EXISTS (?)", owing).
		Order("customer_id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var customerIDs []uuid.UUID
	if err := query.Pluck("customer_id", &customerIDs).Error; err != nil {
		return nil, persistenceError("Failed to list customers with unallocated credits", err)
	}
	return customerIDs, nil
}

// Save inserts a new act or updates an existing one. An update only applies
// if the stored version still matches; the act's version is bumped on success.
func (r *GormFinancialActRepository) Save(ctx context.Context, act *account.FinancialAct) error {
	if act == nil {
		return shared.NewDomainError(shared.CodeInvalidArgument, "Financial act cannot be nil")
	}
	next, err := r.save(r.db.WithContext(ctx), act)
	if err != nil {
		return err
	}
	act.Version = next
	return nil
}

// SaveAll saves every act in one transaction. Versions are only bumped in
// memory once the transaction has committed.
func (r *GormFinancialActRepository) SaveAll(ctx context.Context, acts []*account.FinancialAct) error {
	if len(acts) == 0 {
		return nil
	}
	for _, act := range acts {
		if act == nil {
			return shared.NewDomainError(shared.CodeInvalidArgument, "Financial act cannot be nil")
		}
	}

	versions := make([]int, len(acts))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, act := range acts {
			next, err := r.save(tx, act)
			if err != nil {
				return err
			}
			versions[i] = next
		}
		return nil
	})
	if err != nil {
		if shared.CodeOf(err) != "" {
			return err
		}
		return persistenceError("Failed to save financial acts", err)
	}
	for i, act := range acts {
		act.Version = versions[i]
	}
	return nil
}

// save writes one act and returns its new version
func (r *GormFinancialActRepository) save(db *gorm.DB, act *account.FinancialAct) (int, error) {
	if err := act.Validate(); err != nil {
		return 0, err
	}
	model := models.FinancialActModelFromDomain(act)
	next := act.Version + 1

	result := db.Model(&models.FinancialActModel{}).
		Where("id = ? AND version = ?", act.ID, act.Version).
		Updates(map[string]interface{}{
			"status":           model.Status,
			"start_time":       model.StartTime,
			"total":            model.Total,
			"allocated_amount": model.AllocatedAmount,
			"reference":        model.Reference,
			"version":          next,
			"updated_at":       model.UpdatedAt,
		})
	if result.Error != nil {
		return 0, persistenceError(fmt.Sprintf("Failed to update financial act %s", act.ID), result.Error)
	}
	if result.RowsAffected > 0 {
		return next, nil
	}

	var count int64
	if err := db.Model(&models.FinancialActModel{}).Where("id = ?", act.ID).Count(&count).Error; err != nil {
		return 0, persistenceError(fmt.Sprintf("Failed to check financial act %s", act.ID), err)
	}
	if count > 0 {
		return 0, shared.NewDomainError(shared.CodeConcurrentModification,
			fmt.Sprintf("Financial act %s was modified by another transaction", act.ID))
	}

	if err := db.Create(model).Error; err != nil {
		return 0, persistenceError(fmt.Sprintf("Failed to insert financial act %s", act.ID), err)
	}
	return model.Version, nil
}

func (r *GormFinancialActRepository) applyFilter(query *gorm.DB, filter account.FinancialActFilter) *gorm.DB {
	if len(filter.ActTypes) > 0 {
		query = query.Where("act_type IN ?", filter.ActTypes)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.FromDate != nil {
		query = query.Where("start_time >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("start_time < ?", *filter.ToDate)
	}
	if filter.UnallocatedOnly {
		query = query.Where("allocated_amount < total")
	}

	query = query.Order(orderBy(filter.OrderBy, filter.OrderDir, actSortColumns, "start_time"))

	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	return query
}

func toDomainActs(rows []models.FinancialActModel) []*account.FinancialAct {
	acts := make([]*account.FinancialAct, len(rows))
	for i := range rows {
		acts[i] = rows[i].ToDomain()
	}
	return acts
}

// persistenceError wraps a storage failure, leaving domain errors as they are
func persistenceError(msg string, err error) error {
	if shared.CodeOf(err) != "" {
		return err
	}
	return shared.WrapDomainError(shared.CodePersistence, msg, err)
}

var _ account.FinancialActRepository = (*GormFinancialActRepository)(nil)
