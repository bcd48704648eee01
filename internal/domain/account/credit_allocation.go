package account

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Allocation records an amount of a credit matched against a debit
type Allocation struct {
	ID          uuid.UUID
	CreditID    uuid.UUID
	DebitID     uuid.UUID
	Amount      decimal.Decimal
	AllocatedAt time.Time
}

// CreditAllocation is the plan produced by one allocation run. It is
// immutable: accessors return copies, and the acts it references are owned
// by the caller, who persists Modified() atomically or discards the plan.
type CreditAllocation struct {
	credit      *FinancialAct
	debits      []*FinancialAct
	blocked     map[uuid.UUID]*GapClaimBlock
	blockOrder  []uuid.UUID
	modified    []*FinancialAct
	allocations []Allocation
	override    bool
}

func newEmptyAllocation(credit *FinancialAct) *CreditAllocation {
	return &CreditAllocation{
		credit:  credit,
		blocked: map[uuid.UUID]*GapClaimBlock{},
	}
}

// Credit returns the credit being allocated
func (a *CreditAllocation) Credit() *FinancialAct {
	return a.credit
}

// Debits returns the debits that received an allocation, in allocation order
func (a *CreditAllocation) Debits() []*FinancialAct {
	return append([]*FinancialAct(nil), a.debits...)
}

// Blocked returns the debits excluded by gap claims, keyed by debit ID
func (a *CreditAllocation) Blocked() map[uuid.UUID]*GapClaimBlock {
	out := make(map[uuid.UUID]*GapClaimBlock, len(a.blocked))
	for id, block := range a.blocked {
		out[id] = block
	}
	return out
}

// BlockedDebitIDs returns the blocked debit IDs, oldest debit first
func (a *CreditAllocation) BlockedDebitIDs() []uuid.UUID {
	return append([]uuid.UUID(nil), a.blockOrder...)
}

// BlockedFor returns the block for a debit, if any
func (a *CreditAllocation) BlockedFor(debitID uuid.UUID) (*GapClaimBlock, bool) {
	block, ok := a.blocked[debitID]
	return block, ok
}

// Modified returns every act whose allocated amount changed: the debits in
// allocation order followed by the credit. Persisting in this order leaves
// the credit written last.
func (a *CreditAllocation) Modified() []*FinancialAct {
	return append([]*FinancialAct(nil), a.modified...)
}

// IsModified returns true if the run changed anything
func (a *CreditAllocation) IsModified() bool {
	return len(a.modified) > 0
}

// OverrideDefaultAllocation signals that the save-time default allocation
// rule must not run again for this credit. It is set when gap-claim blocking
// kept money away from a debit the plain oldest-first walk would have reached.
func (a *CreditAllocation) OverrideDefaultAllocation() bool {
	return a.override
}

// Allocations returns the credit-to-debit allocation records
func (a *CreditAllocation) Allocations() []Allocation {
	return append([]Allocation(nil), a.allocations...)
}

// TotalAllocated returns the amount moved from the credit in this run
func (a *CreditAllocation) TotalAllocated() decimal.Decimal {
	total := decimal.Zero
	for _, alloc := range a.allocations {
		total = total.Add(alloc.Amount)
	}
	return total
}
