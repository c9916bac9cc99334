package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collateralcombat/domain/entities"
	"collateralcombat/repository/testutil"
)

func TestSettlementRepository_CreateOnce(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	contestRepo := NewContestRepository(testDB.DB)
	settlementRepo := NewSettlementRepository(testDB.DB)
	ctx := context.Background()

	contest := testutil.CreateTestContest(entities.GameTypeBinaryRound)
	require.NoError(t, contestRepo.Create(ctx, contest))

	record := testutil.CreateTestSettlement(contest.ID, entities.OutcomeVoid, map[string]int64{
		"alice": 300,
		"bob":   200,
	})
	require.NoError(t, settlementRepo.Create(ctx, record))
	assert.NotZero(t, record.ID)
	for _, payout := range record.Payouts {
		assert.NotZero(t, payout.ID)
	}

	// The contest_id unique constraint rejects a second settlement
	duplicate := testutil.CreateTestSettlement(contest.ID, entities.OutcomeVoid, map[string]int64{"alice": 1})
	err := settlementRepo.Create(ctx, duplicate)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uq_settlements_contest")

	loaded, err := settlementRepo.GetByContest(ctx, contest.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, entities.OutcomeVoid, loaded.Outcome)
	assert.Len(t, loaded.Payouts, 2)
	assert.Equal(t, int64(500), loaded.PayoutTotal())
}

func TestSettlementRepository_PayoutCrediting(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	contestRepo := NewContestRepository(testDB.DB)
	settlementRepo := NewSettlementRepository(testDB.DB)
	ctx := context.Background()

	contest := testutil.CreateTestContest(entities.GameTypeBinaryRound)
	require.NoError(t, contestRepo.Create(ctx, contest))

	record := testutil.CreateTestSettlement(contest.ID, entities.OutcomePlacement, map[string]int64{
		"alice": 700,
		"bob":   300,
	})
	require.NoError(t, settlementRepo.Create(ctx, record))

	uncredited, err := settlementRepo.GetUncreditedPayouts(ctx, contest.ID)
	require.NoError(t, err)
	require.Len(t, uncredited, 2)

	require.NoError(t, settlementRepo.MarkPayoutCredited(ctx, uncredited[0].ID))

	// Marking twice is rejected
	err = settlementRepo.MarkPayoutCredited(ctx, uncredited[0].ID)
	require.Error(t, err)

	remaining, err := settlementRepo.GetUncreditedPayouts(ctx, contest.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, uncredited[1].ID, remaining[0].ID)

	contests, err := settlementRepo.GetContestsWithUncreditedPayouts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{contest.ID}, contests)

	require.NoError(t, settlementRepo.MarkPayoutCredited(ctx, remaining[0].ID))

	contests, err = settlementRepo.GetContestsWithUncreditedPayouts(ctx)
	require.NoError(t, err)
	assert.Empty(t, contests)

	loaded, err := settlementRepo.GetByContest(ctx, contest.ID)
	require.NoError(t, err)
	for _, payout := range loaded.Payouts {
		assert.True(t, payout.Credited)
		assert.NotNil(t, payout.CreditedAt)
	}
}
