package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collateralcombat/domain/entities"
	"collateralcombat/repository/testutil"
)

func TestStakeRepository_CreateAndSnapshot(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	contestRepo := NewContestRepository(testDB.DB)
	stakeRepo := NewStakeRepository(testDB.DB)
	ctx := context.Background()

	contest := testutil.CreateTestContest(entities.GameTypeBinaryRound)
	require.NoError(t, contestRepo.Create(ctx, contest))

	stakes := []*entities.Stake{
		testutil.CreateTestStake(contest.ID, "alice", entities.SideUp, 100),
		testutil.CreateTestStake(contest.ID, "bob", entities.SideUp, 250),
		testutil.CreateTestStake(contest.ID, "carol", entities.SideDown, 400),
	}
	for _, stake := range stakes {
		require.NoError(t, stakeRepo.Create(ctx, stake))
		assert.NotZero(t, stake.ID)
	}

	snapshot, err := stakeRepo.Snapshot(ctx, contest.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, snapshot.Count)
	assert.Equal(t, int64(350), snapshot.TotalsBySide[entities.SideUp])
	assert.Equal(t, int64(400), snapshot.TotalsBySide[entities.SideDown])
	assert.Equal(t, int64(750), snapshot.TotalPool())

	// Placement order is stable for deterministic dust assignment
	require.Len(t, snapshot.Stakes, 3)
	assert.Equal(t, "alice", snapshot.Stakes[0].ParticipantID)
	assert.Equal(t, "carol", snapshot.Stakes[2].ParticipantID)
}

func TestStakeRepository_DuplicateParticipant(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	contestRepo := NewContestRepository(testDB.DB)
	stakeRepo := NewStakeRepository(testDB.DB)
	ctx := context.Background()

	contest := testutil.CreateTestContest(entities.GameTypeBinaryRound)
	require.NoError(t, contestRepo.Create(ctx, contest))

	require.NoError(t, stakeRepo.Create(ctx, testutil.CreateTestStake(contest.ID, "alice", entities.SideUp, 100)))

	err := stakeRepo.Create(ctx, testutil.CreateTestStake(contest.ID, "alice", entities.SideDown, 200))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uq_stakes_contest_participant")
}

func TestStakeRepository_Eliminations(t *testing.T) {
	testDB := testutil.SetupTestDatabase(t)

	contestRepo := NewContestRepository(testDB.DB)
	stakeRepo := NewStakeRepository(testDB.DB)
	ctx := context.Background()

	contest := testutil.CreateTestLobbyContest()
	require.NoError(t, contestRepo.Create(ctx, contest))

	for _, id := range []string{"alice", "bob", "carol", "dave"} {
		require.NoError(t, stakeRepo.Create(ctx, testutil.CreateTestStake(contest.ID, id, entities.SideAlive, 500)))
	}

	require.NoError(t, stakeRepo.MarkEliminated(ctx, contest.ID, []string{"bob", "dave"}, 1))

	alive, err := stakeRepo.GetAlive(ctx, contest.ID)
	require.NoError(t, err)
	require.Len(t, alive, 2)
	assert.Equal(t, "alice", alive[0].ParticipantID)
	assert.Equal(t, "carol", alive[1].ParticipantID)

	// An already-eliminated entrant keeps its original round
	require.NoError(t, stakeRepo.MarkEliminated(ctx, contest.ID, []string{"bob", "carol"}, 2))

	all, err := stakeRepo.GetByContest(ctx, contest.ID)
	require.NoError(t, err)
	byID := make(map[string]*entities.Stake, len(all))
	for _, s := range all {
		byID[s.ParticipantID] = s
	}
	require.NotNil(t, byID["bob"].EliminatedRound)
	assert.Equal(t, 1, *byID["bob"].EliminatedRound)
	require.NotNil(t, byID["carol"].EliminatedRound)
	assert.Equal(t, 2, *byID["carol"].EliminatedRound)
	assert.Nil(t, byID["alice"].EliminatedRound)
}
