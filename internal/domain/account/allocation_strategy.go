package account

import (
	"bytes"
	"sort"

	"github.com/vetpms/backend/internal/domain/shared/strategy"
)

// AllocationStrategy decides the order in which debits absorb a credit
type AllocationStrategy interface {
	strategy.Strategy
	// Order returns the debits in allocation order. It must not modify the input.
	Order(debits []*FinancialAct) []*FinancialAct
}

// OldestFirstStrategy pays the oldest debt first: by start time, then by ID
// so that acts started at the same instant still allocate deterministically.
type OldestFirstStrategy struct {
	strategy.Descriptor
}

// NewOldestFirstStrategy creates the default allocation strategy
func NewOldestFirstStrategy() *OldestFirstStrategy {
	return &OldestFirstStrategy{
		Descriptor: strategy.Describe(strategy.KindAllocation, "oldest_first",
			"Allocates to the oldest outstanding debit first, by start time then ID"),
	}
}

// Order sorts a copy of debits oldest first
func (s *OldestFirstStrategy) Order(debits []*FinancialAct) []*FinancialAct {
	ordered := append([]*FinancialAct(nil), debits...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.StartTime.Equal(b.StartTime) {
			return a.StartTime.Before(b.StartTime)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
	return ordered
}

// ExplicitOrderStrategy keeps the caller's order untouched
type ExplicitOrderStrategy struct {
	strategy.Descriptor
}

// NewExplicitOrderStrategy creates the manual override strategy
func NewExplicitOrderStrategy() *ExplicitOrderStrategy {
	return &ExplicitOrderStrategy{
		Descriptor: strategy.Describe(strategy.KindAllocation, "explicit_order",
			"Allocates to debits in the order chosen by the user, ignoring gap claim blocks"),
	}
}

// Order returns a copy of debits in the given order
func (s *ExplicitOrderStrategy) Order(debits []*FinancialAct) []*FinancialAct {
	return append([]*FinancialAct(nil), debits...)
}
