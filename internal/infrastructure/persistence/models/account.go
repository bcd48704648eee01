package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vetpms/backend/internal/domain/account"
)

// FinancialActModel is the persistence model for the FinancialAct aggregate root.
type FinancialActModel struct {
	AggregateModel
	CustomerID      uuid.UUID         `gorm:"type:uuid;not null;index:idx_financial_acts_outstanding,priority:1"`
	ActType         account.ActType   `gorm:"type:varchar(30);not null"`
	Credit          bool              `gorm:"not null;default:false"`
	Status          account.ActStatus `gorm:"type:varchar(20);not null;default:'IN_PROGRESS';index:idx_financial_acts_outstanding,priority:2"`
	StartTime       time.Time         `gorm:"not null;index:idx_financial_acts_outstanding,priority:3"`
	Total           decimal.Decimal   `gorm:"type:decimal(18,4);not null"`
	AllocatedAmount decimal.Decimal   `gorm:"type:decimal(18,4);not null;default:0"`
	Reference       string            `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (FinancialActModel) TableName() string {
	return "financial_acts"
}

// ToDomain converts the persistence model to a domain FinancialAct
func (m *FinancialActModel) ToDomain() *account.FinancialAct {
	return &account.FinancialAct{
		BaseAggregateRoot: m.ToAggregateRoot(),
		CustomerID:        m.CustomerID,
		ActType:           m.ActType,
		Status:            m.Status,
		StartTime:         m.StartTime,
		Total:             m.Total,
		AllocatedAmount:   m.AllocatedAmount,
		Reference:         m.Reference,
	}
}

// FromDomain populates the persistence model from a domain FinancialAct.
// Credit is derived from the act type so polarity can be queried in SQL.
func (m *FinancialActModel) FromDomain(act *account.FinancialAct) {
	m.FromDomainAggregateRoot(act.BaseAggregateRoot)
	m.CustomerID = act.CustomerID
	m.ActType = act.ActType
	m.Credit = act.ActType.IsCredit()
	m.Status = act.Status
	m.StartTime = act.StartTime
	m.Total = act.Total
	m.AllocatedAmount = act.AllocatedAmount
	m.Reference = act.Reference
}

// FinancialActModelFromDomain creates a new persistence model from a domain FinancialAct
func FinancialActModelFromDomain(act *account.FinancialAct) *FinancialActModel {
	m := &FinancialActModel{}
	m.FromDomain(act)
	return m
}

// AllocationModel is the persistence model for a credit-to-debit allocation
type AllocationModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	CreditID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	DebitID     uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	AllocatedAt time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (AllocationModel) TableName() string {
	return "act_allocations"
}

// ToDomain converts the persistence model to a domain Allocation
func (m *AllocationModel) ToDomain() account.Allocation {
	return account.Allocation{
		ID:          m.ID,
		CreditID:    m.CreditID,
		DebitID:     m.DebitID,
		Amount:      m.Amount,
		AllocatedAt: m.AllocatedAt,
	}
}

// AllocationModelFromDomain creates a persistence model from a domain Allocation
func AllocationModelFromDomain(a account.Allocation) *AllocationModel {
	return &AllocationModel{
		ID:          a.ID,
		CreditID:    a.CreditID,
		DebitID:     a.DebitID,
		Amount:      a.Amount,
		AllocatedAt: a.AllocatedAt,
	}
}
