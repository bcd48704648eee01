package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vetpms/backend/internal/domain/account"
	"github.com/vetpms/backend/internal/domain/shared"
	"github.com/vetpms/backend/internal/domain/shared/valueobject"
	"github.com/vetpms/backend/internal/infrastructure/logger"
	"github.com/vetpms/backend/internal/infrastructure/telemetry"
)

// AllocationConfig holds the tunables of allocation runs
type AllocationConfig struct {
	Currency      valueobject.Currency
	MaxRetries    int           // attempts after a concurrent modification
	LookupTimeout time.Duration // bound on each gap claim query, 0 = none
}

// AllocationService allocates credits against a customer's debits and
// persists the result atomically.
type AllocationService struct {
	txScope TransactionScope
	locker  CustomerLocker
	config  AllocationConfig
	metrics *telemetry.AllocationMetrics
	order   account.AllocationStrategy
	now     func() time.Time
}

// AllocationServiceOption configures an AllocationService
type AllocationServiceOption func(*AllocationService)

// WithAllocationMetrics reports runs to m
func WithAllocationMetrics(m *telemetry.AllocationMetrics) AllocationServiceOption {
	return func(s *AllocationService) {
		s.metrics = m
	}
}

// WithDefaultAllocationStrategy sets the debit ordering used by default allocation
func WithDefaultAllocationStrategy(strategy account.AllocationStrategy) AllocationServiceOption {
	return func(s *AllocationService) {
		s.order = strategy
	}
}

// WithServiceClock sets the time source stamped on allocation records
func WithServiceClock(now func() time.Time) AllocationServiceOption {
	return func(s *AllocationService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewAllocationService creates a new AllocationService
func NewAllocationService(txScope TransactionScope, locker CustomerLocker, cfg AllocationConfig, opts ...AllocationServiceOption) *AllocationService {
	if cfg.Currency.IsZeroValue() {
		cfg.Currency = valueobject.DefaultCurrency()
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	s := &AllocationService{
		txScope: txScope,
		locker:  locker,
		config:  cfg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AllocationService) allocator(repos TransactionalRepositories) *account.CreditAllocator {
	lookup := account.NewGapClaimLookup(repos.GapClaims(), account.WithLookupTimeout(s.config.LookupTimeout))
	return account.NewCreditAllocator(repos.Acts(),
		account.WithBlockChecker(lookup),
		account.WithCurrency(s.config.Currency),
		account.WithClock(s.now),
		account.WithDefaultStrategy(s.order),
	)
}

func (s *AllocationService) calculator() *account.BalanceCalculator {
	return account.NewBalanceCalculator(s.config.Currency)
}

// AllocateCredit runs default allocation for a credit and saves the result.
func (s *AllocationService) AllocateCredit(ctx context.Context, creditID uuid.UUID) (*AllocationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "allocate_credit")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCreditID, creditID,
		telemetry.SpanAttrAllocationMode, ModeDefault,
	)
	start := time.Now()

	var result AllocationResult
	attempts, err := s.lockedWithRetry(ctx, creditID, ModeDefault, func(repos TransactionalRepositories) error {
		credit, err := loadCredit(ctx, repos.Acts(), creditID)
		if err != nil {
			return err
		}
		plan, err := s.allocator(repos).Allocate(ctx, credit)
		if err != nil {
			return err
		}
		if err := persistPlan(ctx, repos, plan); err != nil {
			return err
		}
		result = toAllocationResult(plan, ModeDefault, s.calculator())
		result.Persisted = plan.IsModified()
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordRun(ctx, telemetry.ModeDefault, telemetry.OutcomeError, time.Since(start))
		return nil, fmt.Errorf("failed to allocate credit %s: %w", creditID, err)
	}
	result.Attempts = attempts

	s.recordResult(ctx, span, &result, telemetry.ModeDefault, time.Since(start))
	logger.L(logger.WithCustomerID(ctx, result.CustomerID.String())).Info("Credit allocated",
		zap.String("credit_id", creditID.String()),
		zap.String("allocated", result.Allocated.String()),
		zap.Int("debits", len(result.Debits)),
		zap.Int("blocked", len(result.Blocked)),
		zap.Bool("override", result.Override),
		zap.Int("attempts", attempts),
	)
	return &result, nil
}

// PreviewCreditAllocation computes the default allocation plan for a credit
// without saving anything.
func (s *AllocationService) PreviewCreditAllocation(ctx context.Context, creditID uuid.UUID) (*AllocationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "preview_credit_allocation")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCreditID, creditID,
		telemetry.SpanAttrAllocationMode, telemetry.ModePreview,
	)
	start := time.Now()

	var result AllocationResult
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		credit, err := loadCredit(ctx, repos.Acts(), creditID)
		if err != nil {
			return err
		}
		plan, err := s.allocator(repos).Allocate(ctx, credit)
		if err != nil {
			return err
		}
		result = toAllocationResult(plan, ModeDefault, s.calculator())
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordRun(ctx, telemetry.ModePreview, telemetry.OutcomeError, time.Since(start))
		return nil, fmt.Errorf("failed to preview allocation for credit %s: %w", creditID, err)
	}

	s.recordResult(ctx, span, &result, telemetry.ModePreview, time.Since(start))
	return &result, nil
}

// AllocateCreditTo allocates a credit to the given debits in the given order,
// ignoring gap claim blocks, and saves the result. Duplicate IDs are
// collapsed to their first position.
func (s *AllocationService) AllocateCreditTo(ctx context.Context, creditID uuid.UUID, debitIDs []uuid.UUID) (*AllocationResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "allocate_credit_to")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCreditID, creditID,
		telemetry.SpanAttrAllocationMode, ModeExplicit,
		telemetry.SpanAttrDebitCount, len(debitIDs),
	)
	start := time.Now()

	ids := uniqueIDs(debitIDs)
	if len(ids) == 0 {
		err := shared.NewDomainError(shared.CodeInvalidArgument, "At least one debit is required")
		telemetry.RecordError(span, err)
		return nil, err
	}

	var result AllocationResult
	attempts, err := s.lockedWithRetry(ctx, creditID, ModeExplicit, func(repos TransactionalRepositories) error {
		credit, err := loadCredit(ctx, repos.Acts(), creditID)
		if err != nil {
			return err
		}
		debits, err := repos.Acts().FindByIDs(ctx, ids)
		if err != nil {
			return err
		}
		if len(debits) != len(ids) {
			return shared.NewDomainError(shared.CodeNotFound, missingDebitsMessage(ids, debits))
		}
		plan, err := s.allocator(repos).AllocateExplicit(credit, debits)
		if err != nil {
			return err
		}
		if err := persistPlan(ctx, repos, plan); err != nil {
			return err
		}
		result = toAllocationResult(plan, ModeExplicit, s.calculator())
		result.Persisted = plan.IsModified()
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.metrics.RecordRun(ctx, telemetry.ModeExplicit, telemetry.OutcomeError, time.Since(start))
		return nil, fmt.Errorf("failed to allocate credit %s to debits: %w", creditID, err)
	}
	result.Attempts = attempts

	s.recordResult(ctx, span, &result, telemetry.ModeExplicit, time.Since(start))
	logger.L(logger.WithCustomerID(ctx, result.CustomerID.String())).Info("Credit allocated to selected debits",
		zap.String("credit_id", creditID.String()),
		zap.String("allocated", result.Allocated.String()),
		zap.Int("debits", len(result.Debits)),
	)
	return &result, nil
}

// lockedWithRetry resolves the credit's customer, takes the customer lock and
// runs fn in a transaction, retrying on ConcurrentModification.
func (s *AllocationService) lockedWithRetry(ctx context.Context, creditID uuid.UUID, mode string, fn func(TransactionalRepositories) error) (int, error) {
	var customerID uuid.UUID
	if err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		credit, err := loadCredit(ctx, repos.Acts(), creditID)
		if err != nil {
			return err
		}
		customerID = credit.CustomerID
		return nil
	}); err != nil {
		return 0, err
	}

	if s.locker == nil {
		return withRetry(ctx, s.config.MaxRetries, func(int) error { return s.txScope.Execute(ctx, fn) })
	}
	unlock, err := s.locker.Lock(ctx, customerID)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			logger.L(ctx).Warn("Failed to release customer lock",
				zap.String("customer_id", customerID.String()), zap.Error(err))
		}
	}()

	return withRetry(ctx, s.config.MaxRetries, func(attempt int) error {
		if attempt > 1 {
			s.metrics.RecordRetry(ctx, mode)
			telemetry.AddEvent(trace.SpanFromContext(ctx), "allocation_retry", telemetry.SpanAttrAttempt, attempt)
		}
		return s.txScope.Execute(ctx, fn)
	})
}

func (s *AllocationService) recordResult(ctx context.Context, span trace.Span, result *AllocationResult, mode string, d time.Duration) {
	telemetry.SetAttributes(span,
		telemetry.SpanAttrCustomerID, result.CustomerID,
		telemetry.SpanAttrAmount, result.Allocated.String(),
		telemetry.SpanAttrDebitCount, len(result.Debits),
		telemetry.SpanAttrOverride, result.Override,
	)
	if len(result.Blocked) > 0 {
		telemetry.AddEvent(span, "debits_blocked", telemetry.SpanAttrDebitCount, len(result.Blocked))
		s.metrics.RecordBlocked(ctx, len(result.Blocked))
	}

	outcome := telemetry.OutcomeAllocated
	switch {
	case len(result.Debits) == 0 && len(result.Blocked) > 0:
		outcome = telemetry.OutcomeBlocked
	case len(result.Debits) == 0:
		outcome = telemetry.OutcomeNoop
	}
	s.metrics.RecordRun(ctx, mode, outcome, d)
}

// withRetry calls fn until it succeeds, fails with anything other than
// ConcurrentModification, or maxRetries retries are spent. It returns the
// number of attempts made.
func withRetry(ctx context.Context, maxRetries int, fn func(attempt int) error) (int, error) {
	var err error
	for attempt := 1; attempt <= maxRetries+1; attempt++ {
		if err = fn(attempt); err == nil {
			return attempt, nil
		}
		if !errors.Is(err, shared.ErrConcurrentModification) {
			return attempt, err
		}
		if ctx.Err() != nil {
			return attempt, err
		}
		logger.L(ctx).Debug("Concurrent modification, retrying allocation", zap.Int("attempt", attempt), zap.Error(err))
	}
	return maxRetries + 1, err
}

// persistPlan saves the modified acts (credit last) and the allocation
// records through the transaction's repositories.
func persistPlan(ctx context.Context, repos TransactionalRepositories, plan *account.CreditAllocation) error {
	if !plan.IsModified() {
		return nil
	}
	if err := repos.Acts().SaveAll(ctx, plan.Modified()); err != nil {
		return err
	}
	return repos.Allocations().SaveAll(ctx, plan.Allocations())
}

// loadCredit fetches a posted credit act
func loadCredit(ctx context.Context, acts account.FinancialActRepository, creditID uuid.UUID) (*account.FinancialAct, error) {
	credit, err := acts.FindByID(ctx, creditID)
	if err != nil {
		return nil, err
	}
	if !credit.IsCredit() {
		return nil, shared.NewDomainError(shared.CodeInvalidArgument,
			fmt.Sprintf("Act %s (%s) is not a credit", credit.ID, credit.ActType))
	}
	if !credit.IsPosted() {
		return nil, shared.NewDomainError(shared.CodeInvalidState,
			fmt.Sprintf("Credit %s is %s; only posted credits can be allocated", credit.ID, credit.Status))
	}
	return credit, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func missingDebitsMessage(ids []uuid.UUID, found []*account.FinancialAct) string {
	have := make(map[uuid.UUID]struct{}, len(found))
	for _, act := range found {
		have[act.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := have[id]; !ok {
			return fmt.Sprintf("Debit %s not found", id)
		}
	}
	return "Debit not found"
}
