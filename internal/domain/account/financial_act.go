package account

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vetpms/backend/internal/domain/shared"
)

// FinancialAct is a single transaction on a customer's account: an invoice,
// payment, credit note, refund or adjustment.
//
// Invariant: 0 <= AllocatedAmount <= Total.
type FinancialAct struct {
	shared.BaseAggregateRoot
	CustomerID      uuid.UUID
	ActType         ActType
	Status          ActStatus
	StartTime       time.Time
	Total           decimal.Decimal
	AllocatedAmount decimal.Decimal
	Reference       string
}

// NewFinancialAct creates an in-progress act for a customer
func NewFinancialAct(customerID uuid.UUID, actType ActType, total decimal.Decimal, startTime time.Time) (*FinancialAct, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidArgument, "Customer ID cannot be empty")
	}
	if !actType.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidArgument, fmt.Sprintf("Unknown act type %q", actType))
	}
	if total.IsNegative() {
		return nil, shared.NewDomainError(shared.CodeInvalidArgument, "Act total cannot be negative")
	}
	if startTime.IsZero() {
		startTime = time.Now()
	}

	return &FinancialAct{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		CustomerID:        customerID,
		ActType:           actType,
		Status:            ActStatusInProgress,
		StartTime:         startTime,
		Total:             total,
		AllocatedAmount:   decimal.Zero,
	}, nil
}

// IsCredit returns true for payments, credits and refunds
func (a *FinancialAct) IsCredit() bool {
	return a.ActType.IsCredit()
}

// IsPosted returns true if the act participates in allocation
func (a *FinancialAct) IsPosted() bool {
	return a.Status.IsPosted()
}

// Post finalises the act
func (a *FinancialAct) Post() error {
	if a.Status.IsPosted() {
		return shared.NewDomainError(shared.CodeInvalidState, "Act is already posted")
	}
	a.Status = ActStatusPosted
	a.Touch()
	return nil
}

// Validate checks the act's amounts and identity
func (a *FinancialAct) Validate() error {
	if !a.ActType.IsValid() {
		return shared.NewDomainError(shared.CodeInvalidArgument, fmt.Sprintf("Unknown act type %q", a.ActType))
	}
	if !a.Status.IsValid() {
		return shared.NewDomainError(shared.CodeInvalidArgument, fmt.Sprintf("Unknown act status %q", a.Status))
	}
	if a.Total.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidArgument, "Act total cannot be negative")
	}
	if a.AllocatedAmount.IsNegative() || a.AllocatedAmount.GreaterThan(a.Total) {
		return shared.NewDomainError(shared.CodeInvalidArgument,
			fmt.Sprintf("Allocated amount %s must be between 0 and total %s", a.AllocatedAmount, a.Total))
	}
	return nil
}

// addAllocated moves AllocatedAmount towards Total. Allocation never decreases.
func (a *FinancialAct) addAllocated(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return shared.NewDomainError(shared.CodeInvalidArgument, "Allocation amount cannot be negative")
	}
	allocated := a.AllocatedAmount.Add(amount)
	if allocated.GreaterThan(a.Total) {
		return shared.NewDomainError(shared.CodeInvalidArgument,
			fmt.Sprintf("Allocating %s to act %s would exceed its total %s", amount, a.ID, a.Total))
	}
	a.AllocatedAmount = allocated
	a.Touch()
	return nil
}

// Clone returns a detached copy of the act
func (a *FinancialAct) Clone() *FinancialAct {
	c := *a
	return &c
}
