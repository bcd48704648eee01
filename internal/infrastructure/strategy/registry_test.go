package strategy

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetpms/backend/internal/domain/account"
	"github.com/vetpms/backend/internal/domain/shared"
	domainstrategy "github.com/vetpms/backend/internal/domain/shared/strategy"
)

// namedStrategy keeps input order under a custom name
type namedStrategy struct {
	domainstrategy.Descriptor
}

func newNamedStrategy(name string) *namedStrategy {
	return &namedStrategy{
		Descriptor: domainstrategy.Describe(domainstrategy.KindAllocation, name, "Test strategy"),
	}
}

func (s *namedStrategy) Order(debits []*account.FinancialAct) []*account.FinancialAct {
	return append([]*account.FinancialAct(nil), debits...)
}

func TestStrategyRegistry_Register(t *testing.T) {
	r := NewStrategyRegistry()

	require.NoError(t, r.RegisterAllocationStrategy(newNamedStrategy("a")))

	err := r.RegisterAllocationStrategy(newNamedStrategy("a"))
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)

	err = r.RegisterAllocationStrategy(nil)
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)

	foreign := &namedStrategy{Descriptor: domainstrategy.Describe("pricing", "b", "Wrong kind")}
	err = r.RegisterAllocationStrategy(foreign)
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
	assert.Equal(t, []string{"a"}, r.ListAllocationStrategies())
}

func TestStrategyRegistry_Get(t *testing.T) {
	r := NewStrategyRegistry()
	require.NoError(t, r.RegisterAllocationStrategy(newNamedStrategy("a")))

	t.Run("by name", func(t *testing.T) {
		s, err := r.GetAllocationStrategy("a")
		require.NoError(t, err)
		assert.Equal(t, "a", s.Name())
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := r.GetAllocationStrategy("missing")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("empty name without default", func(t *testing.T) {
		_, err := r.GetAllocationStrategy("")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("empty name with default", func(t *testing.T) {
		require.NoError(t, r.SetDefaultAllocation("a"))
		s, err := r.GetAllocationStrategy("")
		require.NoError(t, err)
		assert.Equal(t, "a", s.Name())
	})
}

func TestStrategyRegistry_SetDefaultRejectsUnknown(t *testing.T) {
	r := NewStrategyRegistry()
	err := r.SetDefaultAllocation("missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Empty(t, r.DefaultAllocation())
}

func TestStrategyRegistry_Unregister(t *testing.T) {
	r := NewStrategyRegistry()
	require.NoError(t, r.RegisterAllocationStrategy(newNamedStrategy("a")))
	require.NoError(t, r.SetDefaultAllocation("a"))

	require.NoError(t, r.UnregisterAllocationStrategy("a"))
	assert.Empty(t, r.DefaultAllocation())
	assert.Empty(t, r.ListAllocationStrategies())

	assert.ErrorIs(t, r.UnregisterAllocationStrategy("a"), shared.ErrNotFound)
}

func TestStrategyRegistry_ListIsSorted(t *testing.T) {
	r := NewStrategyRegistry()
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, r.RegisterAllocationStrategy(newNamedStrategy(name)))
	}
	assert.Equal(t, []string{"a", "b", "c"}, r.ListAllocationStrategies())
}

func TestStrategyRegistry_ConcurrentAccess(t *testing.T) {
	r := NewStrategyRegistry()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = r.RegisterAllocationStrategy(newNamedStrategy(fmt.Sprintf("s%d", i)))
		}(i)
		go func() {
			defer wg.Done()
			_ = r.ListAllocationStrategies()
		}()
	}
	wg.Wait()
	assert.Len(t, r.ListAllocationStrategies(), 20)
}

func TestNewRegistryWithDefaults(t *testing.T) {
	r, err := NewRegistryWithDefaults()
	require.NoError(t, err)

	assert.Equal(t, []string{"explicit_order", "oldest_first"}, r.ListAllocationStrategies())
	assert.Equal(t, "oldest_first", r.DefaultAllocation())

	s, err := r.GetAllocationStrategy("")
	require.NoError(t, err)
	assert.IsType(t, &account.OldestFirstStrategy{}, s)
}
