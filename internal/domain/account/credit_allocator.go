package account

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vetpms/backend/internal/domain/shared"
	"github.com/vetpms/backend/internal/domain/shared/valueobject"
)

// DebitSource loads a customer's posted debits that still have an
// outstanding amount, oldest first.
type DebitSource interface {
	FindOutstandingDebits(ctx context.Context, customerID uuid.UUID) ([]*FinancialAct, error)
}

// CreditAllocator matches the value of a credit against outstanding debits.
// It keeps no state between calls and never persists anything: callers
// persist CreditAllocation.Modified() in one transaction or drop the plan.
// It is not safe to run two allocations over the same customer's acts at once.
type CreditAllocator struct {
	debits     DebitSource
	blocks     BlockChecker
	calculator *BalanceCalculator
	defaults   AllocationStrategy
	explicit   AllocationStrategy
	now        func() time.Time
}

// AllocatorOption configures a CreditAllocator
type AllocatorOption func(*CreditAllocator)

// WithBlockChecker sets the check that excludes debits from default allocation
func WithBlockChecker(checker BlockChecker) AllocatorOption {
	return func(a *CreditAllocator) {
		a.blocks = checker
	}
}

// WithCurrency sets the currency amounts are compared in
func WithCurrency(currency valueobject.Currency) AllocatorOption {
	return func(a *CreditAllocator) {
		a.calculator = NewBalanceCalculator(currency)
	}
}

// WithDefaultStrategy replaces the oldest-first ordering of default allocation
func WithDefaultStrategy(s AllocationStrategy) AllocatorOption {
	return func(a *CreditAllocator) {
		if s != nil {
			a.defaults = s
		}
	}
}

// WithClock sets the time source stamped on allocation records
func WithClock(now func() time.Time) AllocatorOption {
	return func(a *CreditAllocator) {
		if now != nil {
			a.now = now
		}
	}
}

// NewCreditAllocator creates an allocator reading debits from source
func NewCreditAllocator(source DebitSource, opts ...AllocatorOption) *CreditAllocator {
	a := &CreditAllocator{
		debits:     source,
		calculator: NewBalanceCalculator(valueobject.DefaultCurrency()),
		defaults:   NewOldestFirstStrategy(),
		explicit:   NewExplicitOrderStrategy(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Calculator returns the balance calculator used by the allocator
func (a *CreditAllocator) Calculator() *BalanceCalculator {
	return a.calculator
}

// allocationStep is one credit-to-debit transfer in a plan
type allocationStep struct {
	debit  *FinancialAct
	amount decimal.Decimal
}

// Allocate runs default allocation: the credit's unallocated value is spread
// over the customer's outstanding debits oldest first, skipping debits held
// back by an unpaid gap claim. The credit and touched debits are updated in
// place only once the whole plan has been computed.
func (a *CreditAllocator) Allocate(ctx context.Context, credit *FinancialAct) (*CreditAllocation, error) {
	if err := validateCredit(credit); err != nil {
		return nil, err
	}

	currency := a.calculator.Currency()
	remaining := outstanding(credit)
	if currency.IsZero(remaining) {
		return newEmptyAllocation(credit), nil
	}

	if a.debits == nil {
		return nil, shared.NewDomainError(shared.CodeLookupUnavailable, "No debit source configured")
	}
	loaded, err := a.debits.FindOutstandingDebits(ctx, credit.CustomerID)
	if err != nil {
		return nil, asLookupUnavailable(err, fmt.Sprintf("Failed to load outstanding debits for customer %s", credit.CustomerID))
	}

	ordered := a.defaults.Order(a.candidates(credit, loaded))

	blocked := make(map[uuid.UUID]*GapClaimBlock)
	var blockOrder []uuid.UUID
	eligible := make([]*FinancialAct, 0, len(ordered))
	for _, debit := range ordered {
		if a.blocks != nil {
			block, err := a.blocks.IsBlocked(ctx, debit)
			if err != nil {
				return nil, asLookupUnavailable(err, fmt.Sprintf("Failed to check gap claims for debit %s", debit.ID))
			}
			if block != nil {
				blocked[debit.ID] = block
				blockOrder = append(blockOrder, debit.ID)
				continue
			}
		}
		eligible = append(eligible, debit)
	}

	steps := a.walk(remaining, eligible)
	override := len(blocked) > 0 && a.reachesBlocked(remaining, ordered, blocked)

	result, err := a.apply(credit, steps)
	if err != nil {
		return nil, err
	}
	result.blocked = blocked
	result.blockOrder = blockOrder
	result.override = override
	return result, nil
}

// AllocateTo runs explicit-target allocation: the credit is spread over
// debits in exactly the given order, without consulting gap claims. It
// returns the debits that received money followed by the credit.
func (a *CreditAllocator) AllocateTo(credit *FinancialAct, debits []*FinancialAct) ([]*FinancialAct, error) {
	result, err := a.AllocateExplicit(credit, debits)
	if err != nil {
		return nil, err
	}
	return result.Modified(), nil
}

// AllocateExplicit is AllocateTo returning the full plan, including the
// allocation records. The override flag is set whenever money moved, since
// the caller chose the targets rather than the default rule.
func (a *CreditAllocator) AllocateExplicit(credit *FinancialAct, debits []*FinancialAct) (*CreditAllocation, error) {
	if err := validateCredit(credit); err != nil {
		return nil, err
	}
	if len(debits) == 0 {
		return nil, shared.NewDomainError(shared.CodeInvalidArgument, "At least one debit is required")
	}
	unique := make([]*FinancialAct, 0, len(debits))
	seen := make(map[uuid.UUID]struct{}, len(debits))
	for i, debit := range debits {
		if debit == nil {
			return nil, shared.NewDomainError(shared.CodeInvalidArgument, fmt.Sprintf("Debit at position %d is nil", i))
		}
		if debit.IsCredit() {
			return nil, shared.NewDomainError(shared.CodeInvalidArgument, fmt.Sprintf("Act %s is not a debit", debit.ID))
		}
		if debit.ID == credit.ID {
			return nil, shared.NewDomainError(shared.CodeInvalidArgument, "A credit cannot be allocated to itself")
		}
		if debit.CustomerID != credit.CustomerID {
			return nil, shared.NewDomainError(shared.CodeInvalidArgument,
				fmt.Sprintf("Debit %s belongs to another customer", debit.ID))
		}
		if !debit.IsPosted() {
			return nil, shared.NewDomainError(shared.CodeInvalidArgument,
				fmt.Sprintf("Debit %s is not posted", debit.ID))
		}
		// a repeated id keeps its first position
		if _, dup := seen[debit.ID]; dup {
			continue
		}
		seen[debit.ID] = struct{}{}
		unique = append(unique, debit)
	}

	steps := a.walk(outstanding(credit), a.explicit.Order(unique))
	result, err := a.apply(credit, steps)
	if err != nil {
		return nil, err
	}
	result.override = result.IsModified()
	return result, nil
}

func validateCredit(credit *FinancialAct) error {
	if credit == nil {
		return shared.NewDomainError(shared.CodeInvalidArgument, "Credit cannot be nil")
	}
	if !credit.IsCredit() {
		return shared.NewDomainError(shared.CodeInvalidArgument,
			fmt.Sprintf("Act %s (%s) is not a credit", credit.ID, credit.ActType))
	}
	if !credit.IsPosted() {
		return shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("Credit %s is %s; only posted credits can be allocated", credit.ID, credit.Status))
	}
	return nil
}

// candidates drops anything the debit source should not have returned
func (a *CreditAllocator) candidates(credit *FinancialAct, loaded []*FinancialAct) []*FinancialAct {
	currency := a.calculator.Currency()
	out := make([]*FinancialAct, 0, len(loaded))
	seen := make(map[uuid.UUID]struct{}, len(loaded))
	for _, debit := range loaded {
		if debit == nil || debit.IsCredit() || !debit.IsPosted() {
			continue
		}
		if debit.ID == credit.ID || debit.CustomerID != credit.CustomerID {
			continue
		}
		if currency.IsZero(outstanding(debit)) {
			continue
		}
		if _, dup := seen[debit.ID]; dup {
			continue
		}
		seen[debit.ID] = struct{}{}
		out = append(out, debit)
	}
	return out
}

// walk gives each debit min(outstanding, remaining) until the credit runs out
func (a *CreditAllocator) walk(remaining decimal.Decimal, debits []*FinancialAct) []allocationStep {
	currency := a.calculator.Currency()
	given := make(map[uuid.UUID]decimal.Decimal)
	var steps []allocationStep
	for _, debit := range debits {
		if currency.IsZero(remaining) {
			break
		}
		available := outstanding(debit).Sub(given[debit.ID])
		if currency.IsZero(available) || available.IsNegative() {
			continue
		}
		amount := decimal.Min(available, remaining)
		given[debit.ID] = given[debit.ID].Add(amount)
		remaining = remaining.Sub(amount)
		steps = append(steps, allocationStep{debit: debit, amount: amount})
	}
	return steps
}

// reachesBlocked reports whether a walk that ignored blocking would have
// given money to any blocked debit.
func (a *CreditAllocator) reachesBlocked(remaining decimal.Decimal, ordered []*FinancialAct, blocked map[uuid.UUID]*GapClaimBlock) bool {
	currency := a.calculator.Currency()
	for _, debit := range ordered {
		if currency.IsZero(remaining) {
			return false
		}
		if _, ok := blocked[debit.ID]; ok {
			return true
		}
		remaining = remaining.Sub(decimal.Min(outstanding(debit), remaining))
	}
	return false
}

// apply validates the plan against copies first, then updates the real acts,
// so a rejected plan leaves every act as it was.
func (a *CreditAllocator) apply(credit *FinancialAct, steps []allocationStep) (*CreditAllocation, error) {
	workCredit := credit.Clone()
	workDebits := make(map[*FinancialAct]*FinancialAct, len(steps))
	for _, step := range steps {
		work, ok := workDebits[step.debit]
		if !ok {
			work = step.debit.Clone()
			workDebits[step.debit] = work
		}
		if err := work.addAllocated(step.amount); err != nil {
			return nil, err
		}
		if err := workCredit.addAllocated(step.amount); err != nil {
			return nil, err
		}
	}

	result := newEmptyAllocation(credit)
	if len(steps) == 0 {
		return result, nil
	}

	now := a.now()
	for _, step := range steps {
		work := workDebits[step.debit]
		step.debit.AllocatedAmount = work.AllocatedAmount
		step.debit.UpdatedAt = work.UpdatedAt
		result.debits = append(result.debits, step.debit)
		result.allocations = append(result.allocations, Allocation{
			ID:          uuid.New(),
			CreditID:    credit.ID,
			DebitID:     step.debit.ID,
			Amount:      step.amount,
			AllocatedAt: now,
		})
	}
	credit.AllocatedAmount = workCredit.AllocatedAmount
	credit.UpdatedAt = workCredit.UpdatedAt

	result.modified = append(append(result.modified, result.debits...), credit)
	return result, nil
}

// asLookupUnavailable keeps domain errors as they are and reports anything
// else as LookupUnavailable.
func asLookupUnavailable(err error, msg string) error {
	if shared.CodeOf(err) != "" {
		return err
	}
	return shared.WrapDomainError(shared.CodeLookupUnavailable, msg, err)
}
