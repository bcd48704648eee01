package account

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var (
	testCustomerID = uuid.MustParse("7a0c1e1e-5a53-4a0e-9a7e-3f1f5c1b0a01")
	baseTime       = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func postedAct(t *testing.T, actType ActType, total string, start time.Time) *FinancialAct {
	t.Helper()
	act, err := NewFinancialAct(testCustomerID, actType, dec(total), start)
	require.NoError(t, err)
	require.NoError(t, act.Post())
	return act
}

func invoice(t *testing.T, total string, dayOffset int) *FinancialAct {
	t.Helper()
	return postedAct(t, ActTypeInvoice, total, baseTime.AddDate(0, 0, dayOffset))
}

func payment(t *testing.T, total string) *FinancialAct {
	t.Helper()
	return postedAct(t, ActTypePayment, total, baseTime.AddDate(0, 1, 0))
}

type stubDebitSource struct {
	debits []*FinancialAct
	err    error
	calls  int
}

func (s *stubDebitSource) FindOutstandingDebits(_ context.Context, _ uuid.UUID) ([]*FinancialAct, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.debits, nil
}

type stubBlockChecker struct {
	blocked map[uuid.UUID]bool
	err     error
}

func (s *stubBlockChecker) IsBlocked(_ context.Context, debit *FinancialAct) (*GapClaimBlock, error) {
	if s.err != nil {
		return nil, s.err
	}
	if !s.blocked[debit.ID] {
		return nil, nil
	}
	return &GapClaimBlock{
		DebitID: debit.ID,
		Claims:  []ClaimRef{{ClaimID: uuid.New(), Status: "SUBMITTED", GapStatus: "PENDING"}},
	}, nil
}

func blocking(acts ...*FinancialAct) *stubBlockChecker {
	s := &stubBlockChecker{blocked: map[uuid.UUID]bool{}}
	for _, a := range acts {
		s.blocked[a.ID] = true
	}
	return s
}
