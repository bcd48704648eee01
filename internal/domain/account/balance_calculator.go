package account

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vetpms/backend/internal/domain/shared"
	"github.com/vetpms/backend/internal/domain/shared/valueobject"
)

// BalanceCalculator answers how much of an act is still unmatched, and sums
// those amounts into customer balances. Amounts are compared at the
// currency's minor-unit scale.
type BalanceCalculator struct {
	currency valueobject.Currency
}

// NewBalanceCalculator creates a calculator for the practice currency
func NewBalanceCalculator(currency valueobject.Currency) *BalanceCalculator {
	if currency.IsZeroValue() {
		currency = valueobject.DefaultCurrency()
	}
	return &BalanceCalculator{currency: currency}
}

// Currency returns the currency amounts are compared in
func (c *BalanceCalculator) Currency() valueobject.Currency {
	return c.currency
}

// IsAllocated reports whether the act has been fully matched.
// A zero-total act is always allocated.
func (c *BalanceCalculator) IsAllocated(act *FinancialAct) (bool, error) {
	outstanding, err := c.Outstanding(act)
	if err != nil {
		return false, err
	}
	return c.currency.IsZero(outstanding), nil
}

// Outstanding returns Total - AllocatedAmount, never below zero
func (c *BalanceCalculator) Outstanding(act *FinancialAct) (decimal.Decimal, error) {
	if act == nil {
		return decimal.Zero, shared.NewDomainError(shared.CodeInvalidArgument, "Act cannot be nil")
	}
	return outstanding(act), nil
}

func outstanding(act *FinancialAct) decimal.Decimal {
	remaining := act.Total.Sub(act.AllocatedAmount)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// Balance sums the outstanding amounts of posted acts: debits add to the
// balance, credits reduce it. A negative balance means the customer is in credit.
func (c *BalanceCalculator) Balance(acts []*FinancialAct) decimal.Decimal {
	total := decimal.Zero
	for _, act := range acts {
		if act == nil || !act.IsPosted() {
			continue
		}
		if act.IsCredit() {
			total = total.Sub(outstanding(act))
		} else {
			total = total.Add(outstanding(act))
		}
	}
	return c.currency.Round(total)
}

// CreditBalance sums the unallocated amounts of posted credits
func (c *BalanceCalculator) CreditBalance(acts []*FinancialAct) decimal.Decimal {
	total := decimal.Zero
	for _, act := range acts {
		if act == nil || !act.IsPosted() || !act.IsCredit() {
			continue
		}
		total = total.Add(outstanding(act))
	}
	return c.currency.Round(total)
}

// OverdueDate returns the date before which an unpaid debit is overdue
func OverdueDate(asOf time.Time, paymentTermsDays int) time.Time {
	day := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, asOf.Location())
	return day.AddDate(0, 0, -paymentTermsDays)
}

// OverdueBalance sums the outstanding amounts of posted debits that started
// before the overdue date.
func (c *BalanceCalculator) OverdueBalance(acts []*FinancialAct, asOf time.Time, paymentTermsDays int) decimal.Decimal {
	overdue := OverdueDate(asOf, paymentTermsDays)
	total := decimal.Zero
	for _, act := range acts {
		if act == nil || !act.IsPosted() || act.IsCredit() {
			continue
		}
		if act.StartTime.Before(overdue) {
			total = total.Add(outstanding(act))
		}
	}
	return c.currency.Round(total)
}

// HasOverdueBalance reports whether any posted debit with an outstanding
// amount is overdue by between fromDays and toDays past the payment terms.
// toDays <= 0 means no upper bound.
func (c *BalanceCalculator) HasOverdueBalance(acts []*FinancialAct, asOf time.Time, paymentTermsDays, fromDays, toDays int) bool {
	overdue := OverdueDate(asOf, paymentTermsDays)
	upper := overdue
	if fromDays > 0 {
		upper = overdue.AddDate(0, 0, -fromDays)
	}
	var lower *time.Time
	if toDays > 0 {
		l := overdue.AddDate(0, 0, -toDays)
		lower = &l
	}
	for _, act := range acts {
		if act == nil || !act.IsPosted() || act.IsCredit() {
			continue
		}
		if c.currency.IsZero(outstanding(act)) {
			continue
		}
		if !act.StartTime.Before(upper) {
			continue
		}
		if lower != nil && !act.StartTime.After(*lower) {
			continue
		}
		return true
	}
	return false
}

// UnbilledAmount sums the totals of charges that have not been posted yet.
// Credit notes reduce the amount.
func (c *BalanceCalculator) UnbilledAmount(acts []*FinancialAct) decimal.Decimal {
	total := decimal.Zero
	for _, act := range acts {
		if act == nil || act.IsPosted() || !act.ActType.IsCharge() {
			continue
		}
		if act.IsCredit() {
			total = total.Sub(act.Total)
		} else {
			total = total.Add(act.Total)
		}
	}
	return c.currency.Round(total)
}
