package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vetpms/backend/internal/domain/account"
	"github.com/vetpms/backend/internal/domain/insurance"
	"github.com/vetpms/backend/internal/domain/shared"
	"github.com/vetpms/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormClaimRepository implements ClaimRepository using GORM. It also serves
// as the GapClaimFinder used when allocating credits.
type GormClaimRepository struct {
	db *gorm.DB
}

// NewGormClaimRepository creates a new GormClaimRepository
func NewGormClaimRepository(db *gorm.DB) *GormClaimRepository {
	return &GormClaimRepository{db: db}
}

// FindByID finds a claim with its items
func (r *GormClaimRepository) FindByID(ctx context.Context, id uuid.UUID) (*insurance.Claim, error) {
	var model models.ClaimModel
	if err := r.db.WithContext(ctx).Preload("Items").First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("Claim %s not found", id))
		}
		return nil, persistenceError("Failed to load claim", err)
	}
	return model.ToDomain(), nil
}

// FindByInvoice returns every claim that includes the invoice
func (r *GormClaimRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]*insurance.Claim, error) {
	var rows []models.ClaimModel
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id IN (?)", r.db.Model(&models.ClaimItemModel{}).Select("claim_id").Where("invoice_id = ?", invoiceID)).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, persistenceError("Failed to load claims for invoice", err)
	}
	claims := make([]*insurance.Claim, len(rows))
	for i := range rows {
		claims[i] = rows[i].ToDomain()
	}
	return claims, nil
}

// Save creates or updates a claim and replaces its items
func (r *GormClaimRepository) Save(ctx context.Context, claim *insurance.Claim) error {
	if claim == nil {
		return shared.NewDomainError(shared.CodeInvalidArgument, "Claim cannot be nil")
	}
	model := models.ClaimModelFromDomain(claim)
	items := model.Items
	model.Items = nil

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(model).Error; err != nil {
			return err
		}
		if err := tx.Where("claim_id = ?", claim.ID).Delete(&models.ClaimItemModel{}).Error; err != nil {
			return err
		}
		if len(items) > 0 {
			return tx.Create(&items).Error
		}
		return nil
	})
	if err != nil {
		return persistenceError(fmt.Sprintf("Failed to save claim %s", claim.ID), err)
	}
	return nil
}

// activeGapClaimRow is the projection read by FindActiveGapClaims
type activeGapClaimRow struct {
	ID        uuid.UUID
	Status    string
	GapStatus string
}

// FindActiveGapClaims returns the gap claims covering the invoice that are
// posted, submitted or accepted and whose benefit is still unpaid, in the
// order they were lodged.
func (r *GormClaimRepository) FindActiveGapClaims(ctx context.Context, debitID uuid.UUID) ([]account.ClaimRef, error) {
	var rows []activeGapClaimRow
	err := r.db.WithContext(ctx).
		Table("insurance_claims AS c").
		Select("c.id, c.status, c.gap_status").
		Joins("JOIN insurance_claim_items AS i ON i.claim_id = c.id").
		Where("i.invoice_id = ?", debitID).
		Where("c.gap_claim = ?", true).
		Where("c.status IN ?", blockingClaimStatuses()).
		Where("c.gap_status NOT IN ?", []string{string(insurance.GapStatusPaid), string(insurance.GapStatusNotified)}).
		Order("c.created_at ASC").
		Order("c.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	refs := make([]account.ClaimRef, len(rows))
	for i, row := range rows {
		refs[i] = account.ClaimRef{ClaimID: row.ID, Status: row.Status, GapStatus: row.GapStatus}
	}
	return refs, nil
}

func blockingClaimStatuses() []string {
	var out []string
	for _, s := range []insurance.ClaimStatus{
		insurance.ClaimStatusPending, insurance.ClaimStatusPosted, insurance.ClaimStatusSubmitted,
		insurance.ClaimStatusAccepted, insurance.ClaimStatusSettled, insurance.ClaimStatusDeclined,
		insurance.ClaimStatusCancelled,
	} {
		if s.BlocksAllocation() {
			out = append(out, string(s))
		}
	}
	return out
}

var (
	_ insurance.ClaimRepository = (*GormClaimRepository)(nil)
	_ account.GapClaimFinder    = (*GormClaimRepository)(nil)
)
