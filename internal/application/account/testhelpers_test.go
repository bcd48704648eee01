package account

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vetpms/backend/internal/domain/account"
	"github.com/vetpms/backend/internal/domain/shared"
	"github.com/vetpms/backend/internal/domain/shared/valueobject"
)

var baseTime = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newAct(t *testing.T, customerID uuid.UUID, actType account.ActType, total string, dayOffset int) *account.FinancialAct {
	t.Helper()
	act, err := account.NewFinancialAct(customerID, actType, dec(total), baseTime.AddDate(0, 0, dayOffset))
	require.NoError(t, err)
	require.NoError(t, act.Post())
	return act
}

// memActs is an in-memory FinancialActRepository with version checks.
// saveErrs are returned, in order, by the next SaveAll calls.
type memActs struct {
	mu       sync.Mutex
	acts     map[uuid.UUID]*account.FinancialAct
	saveErrs []error
	saves    int
	findErr  error
}

func newMemActs(acts ...*account.FinancialAct) *memActs {
	m := &memActs{acts: map[uuid.UUID]*account.FinancialAct{}}
	for _, a := range acts {
		m.acts[a.ID] = a.Clone()
	}
	return m
}

func (m *memActs) get(id uuid.UUID) *account.FinancialAct {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acts[id].Clone()
}

func (m *memActs) query(pred func(*account.FinancialAct) bool) []*account.FinancialAct {
	var out []*account.FinancialAct
	for _, a := range m.acts {
		if pred(a) {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out
}

func open(a *account.FinancialAct) bool {
	return a.IsPosted() && a.AllocatedAmount.LessThan(a.Total)
}

func (m *memActs) FindOutstandingDebits(_ context.Context, customerID uuid.UUID) ([]*account.FinancialAct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.query(func(a *account.FinancialAct) bool {
		return a.CustomerID == customerID && !a.IsCredit() && open(a)
	}), nil
}

func (m *memActs) FindByID(_ context.Context, id uuid.UUID) (*account.FinancialAct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.acts[id]
	if !ok {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Financial act not found")
	}
	return a.Clone(), nil
}

func (m *memActs) FindByIDs(_ context.Context, ids []uuid.UUID) ([]*account.FinancialAct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*account.FinancialAct
	for _, id := range ids {
		if a, ok := m.acts[id]; ok {
			out = append(out, a.Clone())
		}
	}
	return out, nil
}

func (m *memActs) FindByCustomer(_ context.Context, customerID uuid.UUID, filter account.FinancialActFilter) ([]*account.FinancialAct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.query(func(a *account.FinancialAct) bool {
		if a.CustomerID != customerID {
			return false
		}
		if len(filter.ActTypes) > 0 && !containsType(filter.ActTypes, a.ActType) {
			return false
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, a.Status) {
			return false
		}
		return !filter.UnallocatedOnly || a.AllocatedAmount.LessThan(a.Total)
	}), nil
}

func containsType(types []account.ActType, t account.ActType) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}

func containsStatus(statuses []account.ActStatus, s account.ActStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

func (m *memActs) FindUnallocated(_ context.Context, customerID uuid.UUID) ([]*account.FinancialAct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.query(func(a *account.FinancialAct) bool { return a.CustomerID == customerID && open(a) }), nil
}

func (m *memActs) FindUnallocatedCredits(_ context.Context, customerID uuid.UUID) ([]*account.FinancialAct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.query(func(a *account.FinancialAct) bool {
		return a.CustomerID == customerID && a.IsCredit() && open(a)
	}), nil
}

func (m *memActs) FindCustomersWithUnallocatedCredits(_ context.Context, limit int) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owing := map[uuid.UUID]bool{}
	for _, a := range m.acts {
		if !a.IsCredit() && open(a) {
			owing[a.CustomerID] = true
		}
	}
	seen := map[uuid.UUID]bool{}
	var out []uuid.UUID
	for _, a := range m.query(func(a *account.FinancialAct) bool { return a.IsCredit() && open(a) }) {
		if owing[a.CustomerID] && !seen[a.CustomerID] && len(out) < limit {
			seen[a.CustomerID] = true
			out = append(out, a.CustomerID)
		}
	}
	return out, nil
}

func (m *memActs) Save(ctx context.Context, act *account.FinancialAct) error {
	return m.SaveAll(ctx, []*account.FinancialAct{act})
}

func (m *memActs) SaveAll(_ context.Context, acts []*account.FinancialAct) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if len(m.saveErrs) > 0 {
		err := m.saveErrs[0]
		m.saveErrs = m.saveErrs[1:]
		if err != nil {
			return err
		}
	}
	for _, a := range acts {
		if stored, ok := m.acts[a.ID]; ok && stored.Version != a.Version {
			return shared.NewDomainError(shared.CodeConcurrentModification, "stale version")
		}
	}
	for _, a := range acts {
		a.Version++
		m.acts[a.ID] = a.Clone()
	}
	return nil
}

var _ account.FinancialActRepository = (*memActs)(nil)

// MockAllocationRepository records allocation writes
type MockAllocationRepository struct {
	mock.Mock
}

func (m *MockAllocationRepository) SaveAll(ctx context.Context, allocations []account.Allocation) error {
	args := m.Called(ctx, allocations)
	return args.Error(0)
}

func (m *MockAllocationRepository) FindByCredit(ctx context.Context, creditID uuid.UUID) ([]account.Allocation, error) {
	args := m.Called(ctx, creditID)
	return args.Get(0).([]account.Allocation), args.Error(1)
}

func (m *MockAllocationRepository) FindByDebit(ctx context.Context, debitID uuid.UUID) ([]account.Allocation, error) {
	args := m.Called(ctx, debitID)
	return args.Get(0).([]account.Allocation), args.Error(1)
}

// MockGapClaimFinder answers gap claim queries
type MockGapClaimFinder struct {
	mock.Mock
}

func (m *MockGapClaimFinder) FindActiveGapClaims(ctx context.Context, debitID uuid.UUID) ([]account.ClaimRef, error) {
	args := m.Called(ctx, debitID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]account.ClaimRef), args.Error(1)
}

// MockCustomerLocker hands out locks and counts releases. unlockErr is
// returned by every release.
type MockCustomerLocker struct {
	mock.Mock
	released  int
	unlockErr error
}

func (m *MockCustomerLocker) Lock(ctx context.Context, customerID uuid.UUID) (Unlock, error) {
	args := m.Called(ctx, customerID)
	if err := args.Error(0); err != nil {
		return nil, err
	}
	return func(context.Context) error {
		m.released++
		return m.unlockErr
	}, nil
}

type fixture struct {
	acts    *memActs
	allocs  *MockAllocationRepository
	claims  *MockGapClaimFinder
	locker  *MockCustomerLocker
	service *AllocationService
	balance *CustomerBalanceService
}

func newFixture(acts ...*account.FinancialAct) *fixture {
	f := &fixture{
		acts:   newMemActs(acts...),
		allocs: new(MockAllocationRepository),
		claims: new(MockGapClaimFinder),
		locker: new(MockCustomerLocker),
	}
	scope := NewNoOpTransactionScope(f.acts, f.allocs, f.claims)
	f.service = NewAllocationService(scope, f.locker, AllocationConfig{
		Currency:   valueobject.MustCurrency("AUD"),
		MaxRetries: 2,
	}, WithServiceClock(func() time.Time { return baseTime }))
	f.balance = NewCustomerBalanceService(f.acts, f.service, 30)
	f.balance.now = func() time.Time { return baseTime }
	return f
}

func (f *fixture) noClaims() {
	f.claims.On("FindActiveGapClaims", mock.Anything, mock.Anything).Return(nil, nil)
}
