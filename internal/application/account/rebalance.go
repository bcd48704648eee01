package account

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vetpms/backend/internal/infrastructure/logger"
	"github.com/vetpms/backend/internal/infrastructure/telemetry"
)

// rebalance allocates each unallocated credit in turn under the customer
// lock. Each plan is saved before the next credit reads its debits, so later
// credits see what earlier ones consumed.
func (s *AllocationService) rebalance(ctx context.Context, customerID uuid.UUID) (*RebalanceResult, error) {
	start := time.Now()
	var result *RebalanceResult

	run := func(repos TransactionalRepositories) error {
		result = &RebalanceResult{CustomerID: customerID, Allocated: decimal.Zero, Allocations: []AllocationResult{}}

		credits, err := repos.Acts().FindUnallocatedCredits(ctx, customerID)
		if err != nil {
			return err
		}
		allocator := s.allocator(repos)
		for _, credit := range credits {
			plan, err := allocator.Allocate(ctx, credit)
			if err != nil {
				return err
			}
			result.CreditsProcessed++
			if err := persistPlan(ctx, repos, plan); err != nil {
				return err
			}
			if plan.IsModified() {
				result.CreditsModified++
				result.Allocated = result.Allocated.Add(plan.TotalAllocated())
			}
			dto := toAllocationResult(plan, ModeDefault, s.calculator())
			dto.Persisted = plan.IsModified()
			result.Allocations = append(result.Allocations, dto)
		}
		return nil
	}

	var err error
	if s.locker == nil {
		_, err = withRetry(ctx, s.config.MaxRetries, func(int) error { return s.txScope.Execute(ctx, run) })
	} else {
		var unlock Unlock
		unlock, err = s.locker.Lock(ctx, customerID)
		if err == nil {
			_, err = withRetry(ctx, s.config.MaxRetries, func(int) error { return s.txScope.Execute(ctx, run) })
			if uerr := unlock(context.WithoutCancel(ctx)); uerr != nil {
				logger.L(ctx).Warn("Failed to release customer lock",
					zap.String("customer_id", customerID.String()), zap.Error(uerr))
			}
		}
	}
	if err != nil {
		s.metrics.RecordRun(ctx, telemetry.ModeRebalance, telemetry.OutcomeError, time.Since(start))
		return nil, err
	}

	outcome := telemetry.OutcomeNoop
	if result.CreditsModified > 0 {
		outcome = telemetry.OutcomeAllocated
	}
	for _, a := range result.Allocations {
		s.metrics.RecordBlocked(ctx, len(a.Blocked))
	}
	s.metrics.RecordRun(ctx, telemetry.ModeRebalance, outcome, time.Since(start))
	return result, nil
}
