package account

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vetpms/backend/internal/domain/account"
	"github.com/vetpms/backend/internal/infrastructure/logger"
	"github.com/vetpms/backend/internal/infrastructure/telemetry"
)

// SweepJobName identifies the unallocated credit sweep in logs and schedules
const SweepJobName = "unallocated-credit-sweep"

// SweepReport summarises one sweep
type SweepReport struct {
	Customers  int         `json:"customers"`
	Rebalanced int         `json:"rebalanced"`
	Failed     []uuid.UUID `json:"failed"`
}

// UnallocatedCreditSweep applies the save-time allocation rule to customers
// still holding unallocated credit, e.g. after a gap claim was paid and its
// invoice became eligible again.
type UnallocatedCreditSweep struct {
	acts      account.FinancialActRepository
	balances  *CustomerBalanceService
	batchSize int
}

// NewUnallocatedCreditSweep creates a sweep over at most batchSize customers per run
func NewUnallocatedCreditSweep(acts account.FinancialActRepository, balances *CustomerBalanceService, batchSize int) *UnallocatedCreditSweep {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &UnallocatedCreditSweep{acts: acts, balances: balances, batchSize: batchSize}
}

// Name implements scheduler.Job
func (j *UnallocatedCreditSweep) Name() string {
	return SweepJobName
}

// Run implements scheduler.Job. A failing customer is logged and skipped.
func (j *UnallocatedCreditSweep) Run(ctx context.Context) error {
	_, err := j.Sweep(ctx)
	return err
}

// Sweep rebalances one batch of customers and reports the outcome
func (j *UnallocatedCreditSweep) Sweep(ctx context.Context) (*SweepReport, error) {
	ctx = logger.WithJob(ctx, SweepJobName)
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "sweep")
	defer span.End()

	customers, err := j.acts.FindCustomersWithUnallocatedCredits(ctx, j.batchSize)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to list customers with unallocated credit: %w", err)
	}

	report := &SweepReport{Customers: len(customers)}
	for _, customerID := range customers {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		result, err := j.balances.RebalanceCustomer(ctx, customerID)
		if err != nil {
			report.Failed = append(report.Failed, customerID)
			logger.L(logger.WithCustomerID(ctx, customerID.String())).Warn("Rebalance failed", zap.Error(err))
			continue
		}
		if result.CreditsModified > 0 {
			report.Rebalanced++
		}
	}

	telemetry.SetAttributes(span,
		"customers", report.Customers,
		"rebalanced", report.Rebalanced,
		"failed", len(report.Failed),
	)
	logger.L(ctx).Info("Unallocated credit sweep finished",
		zap.Int("customers", report.Customers),
		zap.Int("rebalanced", report.Rebalanced),
		zap.Int("failed", len(report.Failed)),
	)
	return report, nil
}
