package insurance

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vetpms/backend/internal/domain/shared"
)

func newGapClaim(t *testing.T) *Claim {
	t.Helper()
	c, err := NewClaim(uuid.New(), "PetSure", true)
	require.NoError(t, err)
	return c
}

func TestNewClaim(t *testing.T) {
	c := newGapClaim(t)
	assert.Equal(t, ClaimStatusPending, c.Status)
	assert.Equal(t, GapStatusPending, c.GapStatus)
	assert.Equal(t, 1, c.Version)

	plain, err := NewClaim(uuid.New(), "PetSure", false)
	require.NoError(t, err)
	assert.Empty(t, plain.GapStatus)

	_, err = NewClaim(uuid.Nil, "PetSure", true)
	assert.True(t, errors.Is(err, shared.ErrInvalidArgument))

	_, err = NewClaim(uuid.New(), "  ", true)
	assert.True(t, errors.Is(err, shared.ErrInvalidArgument))
}

func TestClaimStatus(t *testing.T) {
	tests := []struct {
		status   ClaimStatus
		terminal bool
		blocks   bool
	}{
		{ClaimStatusPending, false, false},
		{ClaimStatusPosted, false, true},
		{ClaimStatusSubmitted, false, true},
		{ClaimStatusAccepted, false, true},
		{ClaimStatusSettled, true, false},
		{ClaimStatusDeclined, true, false},
		{ClaimStatusCancelled, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.True(t, tt.status.IsValid())
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
			assert.Equal(t, tt.blocks, tt.status.BlocksAllocation())
		})
	}
	assert.False(t, ClaimStatus("LOST").IsValid())
}

func TestGapStatus_IsPaid(t *testing.T) {
	assert.False(t, GapStatusPending.IsPaid())
	assert.False(t, GapStatusReceived.IsPaid())
	assert.True(t, GapStatusPaid.IsPaid())
	assert.True(t, GapStatusNotified.IsPaid())
	assert.False(t, GapStatus("").IsValid())
}

func TestClaim_TransitionTo(t *testing.T) {
	c := newGapClaim(t)

	require.NoError(t, c.TransitionTo(ClaimStatusPosted))
	require.NoError(t, c.TransitionTo(ClaimStatusSubmitted))
	require.NotNil(t, c.SubmittedAt)
	require.NoError(t, c.TransitionTo(ClaimStatusAccepted))
	require.NoError(t, c.TransitionTo(ClaimStatusSettled))

	err := c.TransitionTo(ClaimStatusPosted)
	assert.True(t, errors.Is(err, shared.ErrInvalidState))

	err = c.TransitionTo(ClaimStatus("LOST"))
	assert.True(t, errors.Is(err, shared.ErrInvalidArgument))
}

func TestClaim_AddInvoice(t *testing.T) {
	c := newGapClaim(t)
	inv := uuid.New()

	require.NoError(t, c.AddInvoice(inv))
	require.NoError(t, c.AddInvoice(inv))
	assert.Len(t, c.Items, 1)
	assert.Equal(t, c.ID, c.Items[0].ClaimID)
	assert.True(t, c.Covers(inv))
	assert.False(t, c.Covers(uuid.New()))

	assert.True(t, errors.Is(c.AddInvoice(uuid.Nil), shared.ErrInvalidArgument))

	require.NoError(t, c.TransitionTo(ClaimStatusCancelled))
	assert.True(t, errors.Is(c.AddInvoice(uuid.New()), shared.ErrInvalidState))
}

func TestClaim_IsActiveGapClaim(t *testing.T) {
	c := newGapClaim(t)
	assert.False(t, c.IsActiveGapClaim(), "pending claims do not block")

	require.NoError(t, c.TransitionTo(ClaimStatusPosted))
	assert.True(t, c.IsActiveGapClaim())

	require.NoError(t, c.SetGapStatus(GapStatusReceived))
	assert.True(t, c.IsActiveGapClaim())

	require.NoError(t, c.SetGapStatus(GapStatusPaid))
	assert.False(t, c.IsActiveGapClaim())

	require.NoError(t, c.SetGapStatus(GapStatusPending))
	require.NoError(t, c.TransitionTo(ClaimStatusSubmitted))
	require.NoError(t, c.TransitionTo(ClaimStatusDeclined))
	assert.False(t, c.IsActiveGapClaim())

	plain, err := NewClaim(uuid.New(), "PetSure", false)
	require.NoError(t, err)
	require.NoError(t, plain.TransitionTo(ClaimStatusPosted))
	assert.False(t, plain.IsActiveGapClaim())
	assert.True(t, errors.Is(plain.SetGapStatus(GapStatusPaid), shared.ErrInvalidState))
}
