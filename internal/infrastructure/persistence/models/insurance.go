package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/vetpms/backend/internal/domain/insurance"
)

// ClaimModel is the persistence model for the insurance Claim aggregate root.
type ClaimModel struct {
	AggregateModel
	CustomerID  uuid.UUID             `gorm:"type:uuid;not null;index"`
	Status      insurance.ClaimStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	GapClaim    bool                  `gorm:"not null;default:false"`
	GapStatus   insurance.GapStatus   `gorm:"type:varchar(20);not null;default:''"`
	Insurer     string                `gorm:"type:varchar(200);not null"`
	SubmittedAt *time.Time
	Items       []ClaimItemModel `gorm:"foreignKey:ClaimID"`
}

// TableName returns the table name for GORM
func (ClaimModel) TableName() string {
	return "insurance_claims"
}

// ToDomain converts the persistence model to a domain Claim
func (m *ClaimModel) ToDomain() *insurance.Claim {
	c := &insurance.Claim{
		BaseAggregateRoot: m.ToAggregateRoot(),
		CustomerID:        m.CustomerID,
		Status:            m.Status,
		GapClaim:          m.GapClaim,
		GapStatus:         m.GapStatus,
		Insurer:           m.Insurer,
		SubmittedAt:       m.SubmittedAt,
		Items:             make([]insurance.ClaimItem, 0, len(m.Items)),
	}
	for _, item := range m.Items {
		c.Items = append(c.Items, item.ToDomain())
	}
	return c
}

// FromDomain populates the persistence model from a domain Claim
func (m *ClaimModel) FromDomain(c *insurance.Claim) {
	m.FromDomainAggregateRoot(c.BaseAggregateRoot)
	m.CustomerID = c.CustomerID
	m.Status = c.Status
	m.GapClaim = c.GapClaim
	m.GapStatus = c.GapStatus
	m.Insurer = c.Insurer
	m.SubmittedAt = c.SubmittedAt
	m.Items = make([]ClaimItemModel, 0, len(c.Items))
	for _, item := range c.Items {
		m.Items = append(m.Items, ClaimItemModel{ID: item.ID, ClaimID: c.ID, InvoiceID: item.InvoiceID})
	}
}

// ClaimModelFromDomain creates a new persistence model from a domain Claim
func ClaimModelFromDomain(c *insurance.Claim) *ClaimModel {
	m := &ClaimModel{}
	m.FromDomain(c)
	return m
}

// ClaimItemModel is the persistence model for an invoice included in a claim
type ClaimItemModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	ClaimID   uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_claim_items_claim_invoice,priority:1"`
	InvoiceID uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_claim_items_claim_invoice,priority:2"`
}

// TableName returns the table name for GORM
func (ClaimItemModel) TableName() string {
	return "insurance_claim_items"
}

// ToDomain converts the persistence model to a domain ClaimItem
func (m *ClaimItemModel) ToDomain() insurance.ClaimItem {
	return insurance.ClaimItem{ID: m.ID, ClaimID: m.ClaimID, InvoiceID: m.InvoiceID}
}
