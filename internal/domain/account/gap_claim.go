package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vetpms/backend/internal/domain/shared"
)

// ClaimRef identifies an insurance claim that covers part of a debit
type ClaimRef struct {
	ClaimID   uuid.UUID
	Status    string
	GapStatus string
}

// GapClaimBlock explains why a debit is excluded from default allocation:
// it is part of one or more gap claims whose benefit has not been paid.
// It is computed per allocation run and never persisted.
type GapClaimBlock struct {
	DebitID uuid.UUID
	Claims  []ClaimRef
}

// Claim returns the claim causing the block
func (b *GapClaimBlock) Claim() ClaimRef {
	return b.Claims[0]
}

// String describes the block for logs
func (b *GapClaimBlock) String() string {
	return fmt.Sprintf("debit %s blocked by gap claim %s (%s)", b.DebitID, b.Claims[0].ClaimID, b.Claims[0].Status)
}

// GapClaimFinder is implemented by the insurance collaborator. It returns the
// gap claims for a debit that are posted, submitted or accepted and whose
// benefit has not been paid.
type GapClaimFinder interface {
	FindActiveGapClaims(ctx context.Context, debitID uuid.UUID) ([]ClaimRef, error)
}

// BlockChecker decides whether a debit may take part in default allocation
type BlockChecker interface {
	IsBlocked(ctx context.Context, debit *FinancialAct) (*GapClaimBlock, error)
}

// GapClaimLookup is the BlockChecker backed by insurance claims
type GapClaimLookup struct {
	finder  GapClaimFinder
	timeout time.Duration
}

// GapClaimLookupOption configures a GapClaimLookup
type GapClaimLookupOption func(*GapClaimLookup)

// WithLookupTimeout bounds each finder call
func WithLookupTimeout(timeout time.Duration) GapClaimLookupOption {
	return func(l *GapClaimLookup) {
		l.timeout = timeout
	}
}

// NewGapClaimLookup creates a lookup over the given finder
func NewGapClaimLookup(finder GapClaimFinder, opts ...GapClaimLookupOption) *GapClaimLookup {
	l := &GapClaimLookup{finder: finder}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// IsBlocked returns the block for debit, or nil when it may be allocated.
// Any failure to reach the claim store is reported as LookupUnavailable:
// an unknown answer must never be treated as "not blocked".
func (l *GapClaimLookup) IsBlocked(ctx context.Context, debit *FinancialAct) (*GapClaimBlock, error) {
	if debit == nil {
		return nil, shared.NewDomainError(shared.CodeInvalidArgument, "Debit cannot be nil")
	}
	if debit.IsCredit() {
		return nil, nil
	}
	if l.finder == nil {
		return nil, shared.NewDomainError(shared.CodeLookupUnavailable, "Gap claim lookup is not configured")
	}

	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	claims, err := l.finder.FindActiveGapClaims(ctx, debit.ID)
	if err != nil {
		msg := fmt.Sprintf("Failed to look up gap claims for debit %s", debit.ID)
		if errors.Is(err, context.DeadlineExceeded) {
			msg = fmt.Sprintf("Timed out looking up gap claims for debit %s", debit.ID)
		}
		return nil, shared.WrapDomainError(shared.CodeLookupUnavailable, msg, err)
	}
	if len(claims) == 0 {
		return nil, nil
	}

	return &GapClaimBlock{
		DebitID: debit.ID,
		Claims:  claims,
	}, nil
}
