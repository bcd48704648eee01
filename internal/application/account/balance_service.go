package account

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vetpms/backend/internal/domain/account"
	"github.com/vetpms/backend/internal/domain/shared"
	"github.com/vetpms/backend/internal/infrastructure/logger"
	"github.com/vetpms/backend/internal/infrastructure/telemetry"
)

// CustomerBalanceService answers balance questions about a customer's
// account and runs the save-time allocation rule.
type CustomerBalanceService struct {
	acts             account.FinancialActRepository
	allocation       *AllocationService
	calculator       *account.BalanceCalculator
	paymentTermsDays int
	now              func() time.Time
}

// NewCustomerBalanceService creates a new CustomerBalanceService
func NewCustomerBalanceService(acts account.FinancialActRepository, allocation *AllocationService, paymentTermsDays int) *CustomerBalanceService {
	return &CustomerBalanceService{
		acts:             acts,
		allocation:       allocation,
		calculator:       allocation.calculator(),
		paymentTermsDays: paymentTermsDays,
		now:              time.Now,
	}
}

func (s *CustomerBalanceService) unallocated(ctx context.Context, customerID uuid.UUID) ([]*account.FinancialAct, error) {
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError(shared.CodeInvalidArgument, "Customer ID cannot be empty")
	}
	return s.acts.FindUnallocated(ctx, customerID)
}

func (s *CustomerBalanceService) unbilled(ctx context.Context, customerID uuid.UUID) ([]*account.FinancialAct, error) {
	return s.acts.FindByCustomer(ctx, customerID, account.FinancialActFilter{
		ActTypes: account.ChargeActTypes(),
		Statuses: []account.ActStatus{account.ActStatusInProgress, account.ActStatusOnHold, account.ActStatusCompleted},
	})
}

// GetBalance returns outstanding debits minus outstanding credits
func (s *CustomerBalanceService) GetBalance(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error) {
	acts, err := s.unallocated(ctx, customerID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load acts for customer %s: %w", customerID, err)
	}
	return s.calculator.Balance(acts), nil
}

// GetOverdueBalance returns the outstanding debits older than the payment terms at asOf
func (s *CustomerBalanceService) GetOverdueBalance(ctx context.Context, customerID uuid.UUID, asOf time.Time) (decimal.Decimal, error) {
	acts, err := s.unallocated(ctx, customerID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load acts for customer %s: %w", customerID, err)
	}
	return s.calculator.OverdueBalance(acts, asOf, s.paymentTermsDays), nil
}

// HasOverdueBalance reports whether a debit is overdue by between fromDays
// and toDays at asOf. toDays <= 0 means no upper bound.
func (s *CustomerBalanceService) HasOverdueBalance(ctx context.Context, customerID uuid.UUID, asOf time.Time, fromDays, toDays int) (bool, error) {
	acts, err := s.unallocated(ctx, customerID)
	if err != nil {
		return false, fmt.Errorf("failed to load acts for customer %s: %w", customerID, err)
	}
	return s.calculator.HasOverdueBalance(acts, asOf, s.paymentTermsDays, fromDays, toDays), nil
}

// GetCreditBalance returns the unallocated value of the customer's credits
func (s *CustomerBalanceService) GetCreditBalance(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error) {
	acts, err := s.unallocated(ctx, customerID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load acts for customer %s: %w", customerID, err)
	}
	return s.calculator.CreditBalance(acts), nil
}

// GetUnbilledAmount returns the value of charges not yet posted
func (s *CustomerBalanceService) GetUnbilledAmount(ctx context.Context, customerID uuid.UUID) (decimal.Decimal, error) {
	if customerID == uuid.Nil {
		return decimal.Zero, shared.NewDomainError(shared.CodeInvalidArgument, "Customer ID cannot be empty")
	}
	acts, err := s.unbilled(ctx, customerID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load unbilled acts for customer %s: %w", customerID, err)
	}
	return s.calculator.UnbilledAmount(acts), nil
}

// GetSummary returns every balance figure for the customer at asOf. A zero
// asOf means now.
func (s *CustomerBalanceService) GetSummary(ctx context.Context, customerID uuid.UUID, asOf time.Time) (*BalanceSummary, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "customer_balance", "get_summary")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrCustomerID, customerID)

	if asOf.IsZero() {
		asOf = s.now()
	}
	acts, err := s.unallocated(ctx, customerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load acts for customer %s: %w", customerID, err)
	}
	unbilled, err := s.unbilled(ctx, customerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load unbilled acts for customer %s: %w", customerID, err)
	}

	return &BalanceSummary{
		CustomerID:     customerID,
		Currency:       s.calculator.Currency().Code(),
		AsOf:           asOf,
		Balance:        s.calculator.Balance(acts),
		OverdueBalance: s.calculator.OverdueBalance(acts, asOf, s.paymentTermsDays),
		CreditBalance:  s.calculator.CreditBalance(acts),
		UnbilledAmount: s.calculator.UnbilledAmount(unbilled),
	}, nil
}

// RebalanceCustomer runs default allocation for every unallocated credit of
// the customer, oldest credit first, in one transaction. Gap claim blocks
// are respected.
func (s *CustomerBalanceService) RebalanceCustomer(ctx context.Context, customerID uuid.UUID) (*RebalanceResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "customer_balance", "rebalance")
	defer span.End()
	telemetry.SetAttribute(span, telemetry.SpanAttrCustomerID, customerID)

	if customerID == uuid.Nil {
		err := shared.NewDomainError(shared.CodeInvalidArgument, "Customer ID cannot be empty")
		telemetry.RecordError(span, err)
		return nil, err
	}

	result, err := s.allocation.rebalance(ctx, customerID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to rebalance customer %s: %w", customerID, err)
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrAmount, result.Allocated.String(),
		"credits_processed", result.CreditsProcessed,
	)
	logger.L(logger.WithCustomerID(ctx, customerID.String())).Info("Customer rebalanced",
		zap.Int("credits_processed", result.CreditsProcessed),
		zap.Int("credits_modified", result.CreditsModified),
		zap.String("allocated", result.Allocated.String()),
	)
	return result, nil
}
