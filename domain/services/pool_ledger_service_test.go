package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"collateralcombat/domain/entities"
	"collateralcombat/domain/events"
	"collateralcombat/domain/testhelpers"
)

func openBinaryContest() *entities.Contest {
	now := time.Now().UTC()
	return &entities.Contest{
		ID:       uuid.New(),
		GameType: entities.GameTypeBinaryRound,
		Phase:    entities.ContestPhaseOpen,
		OpenAt:   now.Add(-10 * time.Second),
		LockAt:   now.Add(20 * time.Second),
		SettleAt: now.Add(25 * time.Second),
		Config: entities.ContestConfig{
			Symbols:  []string{"SOLUSDT"},
			FeeBps:   500,
			MinStake: 100,
			MaxStake: 1_000_000,
		},
	}
}

func emptySnapshot(contestID uuid.UUID) *entities.PoolSnapshot {
	return &entities.PoolSnapshot{
		ContestID:    contestID,
		TotalsBySide: map[entities.Side]int64{},
	}
}

func TestPoolLedger_SubmitStake_Accepted(t *testing.T) {
	ctx := context.Background()
	contest := openBinaryContest()

	mockContestRepo := new(testhelpers.MockContestRepository)
	mockStakeRepo := new(testhelpers.MockStakeRepository)
	mockPublisher := new(testhelpers.MockEventPublisher)

	mockContestRepo.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)
	mockStakeRepo.On("GetByParticipant", ctx, contest.ID, "wallet-1").Return([]*entities.Stake{}, nil)
	mockStakeRepo.On("Snapshot", ctx, contest.ID).Return(emptySnapshot(contest.ID), nil)
	mockStakeRepo.On("Create", ctx, mock.MatchedBy(func(s *entities.Stake) bool {
		return s.ContestID == contest.ID &&
			s.ParticipantID == "wallet-1" &&
			s.Side == entities.SideUp &&
			s.Amount == 500
	})).Return(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*entities.Stake).ID = 42
	})
	mockPublisher.On("Publish", mock.MatchedBy(func(e events.Event) bool {
		stake, ok := e.(events.StakeAcceptedEvent)
		return ok && stake.ContestID == contest.ID && stake.Amount == 500
	})).Return(nil)

	service := NewPoolLedgerService(mockContestRepo, mockStakeRepo, mockPublisher)
	receipt, err := service.SubmitStake(ctx, contest.ID, "wallet-1", entities.SideUp, 500)

	require.NoError(t, err)
	assert.Equal(t, int64(42), receipt.StakeID)
	assert.Equal(t, entities.SideUp, receipt.Side)
	mockStakeRepo.AssertExpectations(t)
	mockPublisher.AssertExpectations(t)
}

func TestPoolLedger_SubmitStake_RejectsClosedContest(t *testing.T) {
	ctx := context.Background()
	contest := openBinaryContest()
	contest.Phase = entities.ContestPhaseLocked

	mockContestRepo := new(testhelpers.MockContestRepository)
	mockStakeRepo := new(testhelpers.MockStakeRepository)
	mockPublisher := new(testhelpers.MockEventPublisher)

	mockContestRepo.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)

	service := NewPoolLedgerService(mockContestRepo, mockStakeRepo, mockPublisher)
	_, err := service.SubmitStake(ctx, contest.ID, "wallet-1", entities.SideUp, 500)

	assert.True(t, entities.IsConflict(err))
	mockStakeRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPoolLedger_SubmitStake_RejectsPastLockTime(t *testing.T) {
	ctx := context.Background()
	contest := openBinaryContest()
	// Phase still open but the gate time has passed.
	contest.LockAt = time.Now().UTC().Add(-time.Second)

	mockContestRepo := new(testhelpers.MockContestRepository)
	mockStakeRepo := new(testhelpers.MockStakeRepository)
	mockPublisher := new(testhelpers.MockEventPublisher)

	mockContestRepo.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)

	service := NewPoolLedgerService(mockContestRepo, mockStakeRepo, mockPublisher)
	_, err := service.SubmitStake(ctx, contest.ID, "wallet-1", entities.SideUp, 500)

	assert.True(t, entities.IsConflict(err))
}

func TestPoolLedger_SubmitStake_RejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	contest := openBinaryContest()

	mockContestRepo := new(testhelpers.MockContestRepository)
	mockStakeRepo := new(testhelpers.MockStakeRepository)
	mockPublisher := new(testhelpers.MockEventPublisher)

	mockContestRepo.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)
	mockStakeRepo.On("GetByParticipant", ctx, contest.ID, "wallet-1").Return([]*entities.Stake{
		{ParticipantID: "wallet-1", Side: entities.SideUp, Amount: 100},
	}, nil)

	service := NewPoolLedgerService(mockContestRepo, mockStakeRepo, mockPublisher)
	_, err := service.SubmitStake(ctx, contest.ID, "wallet-1", entities.SideDown, 500)

	assert.True(t, entities.IsConflict(err))
	mockStakeRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPoolLedger_SubmitStake_ValidatesAmountAndSide(t *testing.T) {
	ctx := context.Background()
	contest := openBinaryContest()

	mockContestRepo := new(testhelpers.MockContestRepository)
	mockStakeRepo := new(testhelpers.MockStakeRepository)
	mockPublisher := new(testhelpers.MockEventPublisher)

	mockContestRepo.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)

	service := NewPoolLedgerService(mockContestRepo, mockStakeRepo, mockPublisher)

	_, err := service.SubmitStake(ctx, contest.ID, "wallet-1", entities.SideUp, 0)
	assert.True(t, entities.IsValidation(err), "zero amount")

	_, err = service.SubmitStake(ctx, contest.ID, "wallet-1", entities.SideUp, -50)
	assert.True(t, entities.IsValidation(err), "negative amount")

	_, err = service.SubmitStake(ctx, contest.ID, "wallet-1", "sideways", 500)
	assert.True(t, entities.IsValidation(err), "unknown side")

	_, err = service.SubmitStake(ctx, contest.ID, "wallet-1", entities.SideUp, 50)
	assert.True(t, entities.IsValidation(err), "below minimum")

	_, err = service.SubmitStake(ctx, contest.ID, "wallet-1", entities.SideUp, 2_000_000)
	assert.True(t, entities.IsValidation(err), "above maximum")
}

func TestPoolLedger_SubmitStake_RejectsPoolOverflow(t *testing.T) {
	ctx := context.Background()
	contest := openBinaryContest()
	contest.Config.MaxStake = 0 // no per-stake cap

	mockContestRepo := new(testhelpers.MockContestRepository)
	mockStakeRepo := new(testhelpers.MockStakeRepository)
	mockPublisher := new(testhelpers.MockEventPublisher)

	nearCap := &entities.PoolSnapshot{
		ContestID: contest.ID,
		TotalsBySide: map[entities.Side]int64{
			entities.SideUp: entities.MaxPoolLamports - 10,
		},
		Count: 1,
	}

	mockContestRepo.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)
	mockStakeRepo.On("GetByParticipant", ctx, contest.ID, "wallet-2").Return([]*entities.Stake{}, nil)
	mockStakeRepo.On("Snapshot", ctx, contest.ID).Return(nearCap, nil)

	service := NewPoolLedgerService(mockContestRepo, mockStakeRepo, mockPublisher)
	_, err := service.SubmitStake(ctx, contest.ID, "wallet-2", entities.SideUp, 100)

	assert.True(t, entities.IsValidation(err))
	mockStakeRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPoolLedger_SubmitStake_BattleSideMustBeTrackedSymbol(t *testing.T) {
	ctx := context.Background()
	contest := openBinaryContest()
	contest.GameType = entities.GameTypeRelativeBattle
	contest.Config.Symbols = []string{"SOLUSDT", "ETHUSDT"}

	mockContestRepo := new(testhelpers.MockContestRepository)
	mockStakeRepo := new(testhelpers.MockStakeRepository)
	mockPublisher := new(testhelpers.MockEventPublisher)

	mockContestRepo.On("GetByIDForUpdate", ctx, contest.ID).Return(contest, nil)

	service := NewPoolLedgerService(mockContestRepo, mockStakeRepo, mockPublisher)
	_, err := service.SubmitStake(ctx, contest.ID, "wallet-1", "DOGEUSDT", 500)

	assert.True(t, entities.IsValidation(err))
}
