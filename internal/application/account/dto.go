package account

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vetpms/backend/internal/domain/account"
)

// Allocation modes reported on results.
const (
	ModeDefault  = "default"
	ModeExplicit = "explicit"
)

// DebitAllocationDTO is one credit-to-debit transfer
type DebitAllocationDTO struct {
	DebitID     uuid.UUID       `json:"debit_id"`
	ActType     string          `json:"act_type"`
	StartTime   time.Time       `json:"start_time"`
	Amount      decimal.Decimal `json:"amount"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// BlockedDebitDTO is a debit held back by unpaid gap claims
type BlockedDebitDTO struct {
	DebitID  uuid.UUID   `json:"debit_id"`
	ClaimIDs []uuid.UUID `json:"claim_ids"`
	Reason   string      `json:"reason"`
}

// AllocationResult describes one allocation run
type AllocationResult struct {
	CreditID          uuid.UUID            `json:"credit_id"`
	CustomerID        uuid.UUID            `json:"customer_id"`
	Mode              string               `json:"mode"`
	Allocated         decimal.Decimal      `json:"allocated"`
	CreditOutstanding decimal.Decimal      `json:"credit_outstanding"`
	Override          bool                 `json:"override_default_allocation"`
	Persisted         bool                 `json:"persisted"`
	Attempts          int                  `json:"attempts"`
	Debits            []DebitAllocationDTO `json:"debits"`
	Blocked           []BlockedDebitDTO    `json:"blocked"`
}

// BalanceSummary is a customer's account position
type BalanceSummary struct {
	CustomerID     uuid.UUID       `json:"customer_id"`
	Currency       string          `json:"currency"`
	AsOf           time.Time       `json:"as_of"`
	Balance        decimal.Decimal `json:"balance"`
	OverdueBalance decimal.Decimal `json:"overdue_balance"`
	CreditBalance  decimal.Decimal `json:"credit_balance"`
	UnbilledAmount decimal.Decimal `json:"unbilled_amount"`
}

// RebalanceResult summarises a save-time rebalance of one customer
type RebalanceResult struct {
	CustomerID       uuid.UUID          `json:"customer_id"`
	CreditsProcessed int                `json:"credits_processed"`
	CreditsModified  int                `json:"credits_modified"`
	Allocated        decimal.Decimal    `json:"allocated"`
	Allocations      []AllocationResult `json:"allocations"`
}

// toAllocationResult flattens a plan. Amounts per debit come from the
// allocation records so a debit is listed once per transfer.
func toAllocationResult(plan *account.CreditAllocation, mode string, calc *account.BalanceCalculator) AllocationResult {
	credit := plan.Credit()
	creditOutstanding, _ := calc.Outstanding(credit)

	debits := make(map[uuid.UUID]*account.FinancialAct)
	for _, d := range plan.Debits() {
		debits[d.ID] = d
	}

	result := AllocationResult{
		CreditID:          credit.ID,
		CustomerID:        credit.CustomerID,
		Mode:              mode,
		Allocated:         plan.TotalAllocated(),
		CreditOutstanding: creditOutstanding,
		Override:          plan.OverrideDefaultAllocation(),
		Debits:            []DebitAllocationDTO{},
		Blocked:           []BlockedDebitDTO{},
	}
	for _, alloc := range plan.Allocations() {
		dto := DebitAllocationDTO{DebitID: alloc.DebitID, Amount: alloc.Amount}
		if d, ok := debits[alloc.DebitID]; ok {
			dto.ActType = d.ActType.String()
			dto.StartTime = d.StartTime
			dto.Outstanding, _ = calc.Outstanding(d)
		}
		result.Debits = append(result.Debits, dto)
	}
	for _, id := range plan.BlockedDebitIDs() {
		block, _ := plan.BlockedFor(id)
		dto := BlockedDebitDTO{DebitID: id, Reason: block.String()}
		for _, c := range block.Claims {
			dto.ClaimIDs = append(dto.ClaimIDs, c.ClaimID)
		}
		result.Blocked = append(result.Blocked, dto)
	}
	return result
}
