package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vetpms/backend/internal/domain/account"
	"github.com/vetpms/backend/internal/domain/insurance"
	"github.com/vetpms/backend/internal/infrastructure/config"
)

var testEpoch = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// setupAccountTestDB opens an in-memory sqlite database with the account
// and insurance tables.
func setupAccountTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := NewDatabase(&config.DatabaseConfig{Driver: "sqlite", SQLitePath: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })
	return db.DB
}

// insertAct saves a posted act and returns it
func insertAct(t *testing.T, db *gorm.DB, customerID uuid.UUID, actType account.ActType, total string, day int) *account.FinancialAct {
	t.Helper()
	act := draftAct(t, customerID, actType, total, day)
	require.NoError(t, act.Post())
	require.NoError(t, NewGormFinancialActRepository(db).Save(context.Background(), act))
	return act
}

func draftAct(t *testing.T, customerID uuid.UUID, actType account.ActType, total string, day int) *account.FinancialAct {
	t.Helper()
	act, err := account.NewFinancialAct(customerID, actType, decimal.RequireFromString(total), testEpoch.AddDate(0, 0, day))
	require.NoError(t, err)
	return act
}

// insertGapClaim lodges a gap claim over the invoices and moves it to status
func insertGapClaim(t *testing.T, db *gorm.DB, customerID uuid.UUID, status insurance.ClaimStatus, invoices ...uuid.UUID) *insurance.Claim {
	t.Helper()
	claim, err := insurance.NewClaim(customerID, "PetSure", true)
	require.NoError(t, err)
	for _, id := range invoices {
		require.NoError(t, claim.AddInvoice(id))
	}
	path := map[insurance.ClaimStatus][]insurance.ClaimStatus{
		insurance.ClaimStatusPending:   nil,
		insurance.ClaimStatusPosted:    {insurance.ClaimStatusPosted},
		insurance.ClaimStatusSubmitted: {insurance.ClaimStatusPosted, insurance.ClaimStatusSubmitted},
		insurance.ClaimStatusAccepted:  {insurance.ClaimStatusPosted, insurance.ClaimStatusSubmitted, insurance.ClaimStatusAccepted},
		insurance.ClaimStatusSettled: {insurance.ClaimStatusPosted, insurance.ClaimStatusSubmitted,
			insurance.ClaimStatusAccepted, insurance.ClaimStatusSettled},
		insurance.ClaimStatusCancelled: {insurance.ClaimStatusCancelled},
	}
	for _, next := range path[status] {
		require.NoError(t, claim.TransitionTo(next))
	}
	require.NoError(t, NewGormClaimRepository(db).Save(context.Background(), claim))
	return claim
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
