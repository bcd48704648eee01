package account

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vetpms/backend/internal/domain/shared"
)

func TestActType_Polarity(t *testing.T) {
	for _, at := range CreditActTypes() {
		assert.True(t, at.IsCredit(), at)
		assert.True(t, at.IsValid(), at)
	}
	for _, at := range DebitActTypes() {
		assert.False(t, at.IsCredit(), at)
		assert.True(t, at.IsValid(), at)
	}
	assert.True(t, ActTypeRefund.IsCredit())
	assert.False(t, ActType("LOYALTY").IsValid())
	assert.True(t, ActTypeCredit.IsCharge())
	assert.False(t, ActTypePayment.IsCharge())
}

func TestNewFinancialAct(t *testing.T) {
	t.Run("creates in progress act", func(t *testing.T) {
		act, err := NewFinancialAct(testCustomerID, ActTypeInvoice, dec("25.50"), baseTime)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, act.ID)
		assert.Equal(t, 1, act.Version)
		assert.Equal(t, ActStatusInProgress, act.Status)
		assert.True(t, act.AllocatedAmount.IsZero())
		assert.False(t, act.IsCredit())
		assert.False(t, act.IsPosted())
	})

	t.Run("defaults start time", func(t *testing.T) {
		act, err := NewFinancialAct(testCustomerID, ActTypePayment, dec("1"), time.Time{})
		require.NoError(t, err)
		assert.False(t, act.StartTime.IsZero())
	})

	t.Run("rejects bad input", func(t *testing.T) {
		_, err := NewFinancialAct(uuid.Nil, ActTypeInvoice, dec("1"), baseTime)
		assert.True(t, errors.Is(err, shared.ErrInvalidArgument))

		_, err = NewFinancialAct(testCustomerID, ActType("BOGUS"), dec("1"), baseTime)
		assert.True(t, errors.Is(err, shared.ErrInvalidArgument))

		_, err = NewFinancialAct(testCustomerID, ActTypeInvoice, dec("-1"), baseTime)
		assert.True(t, errors.Is(err, shared.ErrInvalidArgument))
	})
}

func TestFinancialAct_Post(t *testing.T) {
	act := invoice(t, "10", 0)
	assert.True(t, act.IsPosted())

	err := act.Post()
	assert.True(t, errors.Is(err, shared.ErrInvalidState))
}

func TestFinancialAct_AddAllocated(t *testing.T) {
	act := invoice(t, "10", 0)

	require.NoError(t, act.addAllocated(dec("4")))
	require.NoError(t, act.addAllocated(dec("6")))
	assert.True(t, act.AllocatedAmount.Equal(dec("10")))

	err := act.addAllocated(dec("0.01"))
	assert.True(t, errors.Is(err, shared.ErrInvalidArgument))
	assert.True(t, act.AllocatedAmount.Equal(dec("10")), "failed allocation must not change the act")

	err = act.addAllocated(dec("-1"))
	assert.True(t, errors.Is(err, shared.ErrInvalidArgument))
}

func TestFinancialAct_Validate(t *testing.T) {
	act := invoice(t, "10", 0)
	require.NoError(t, act.Validate())

	act.AllocatedAmount = dec("11")
	assert.Error(t, act.Validate())

	act.AllocatedAmount = dec("-1")
	assert.Error(t, act.Validate())

	act.AllocatedAmount = dec("0")
	act.Status = ActStatus("VOID")
	assert.Error(t, act.Validate())
}

func TestFinancialAct_Clone(t *testing.T) {
	act := invoice(t, "10", 0)
	clone := act.Clone()
	require.NoError(t, clone.addAllocated(dec("5")))

	assert.True(t, act.AllocatedAmount.IsZero())
	assert.Equal(t, act.ID, clone.ID)
}
