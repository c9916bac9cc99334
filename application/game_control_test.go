package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collateralcombat/domain/entities"
)

func TestGameControl_SetPaused(t *testing.T) {
	uow := newMockUnitOfWork()
	control := NewGameControl(&mockUnitOfWorkFactory{uow: uow})

	uow.gameStateRepo.On("SetPaused", context.Background(), entities.GameTypeBinaryRound, true).Return(nil)

	err := control.SetPaused(context.Background(), entities.GameTypeBinaryRound, true)
	require.NoError(t, err)
	uow.gameStateRepo.AssertExpectations(t)
}

func TestGameControl_Stats(t *testing.T) {
	uow := newMockUnitOfWork()
	control := NewGameControl(&mockUnitOfWorkFactory{uow: uow})

	state := &entities.GameState{
		GameType:           entities.GameTypeRelativeBattle,
		TotalVolume:        15_000,
		TotalFeesCollected: 750,
		ContestsSettled:    12,
		UpdatedAt:          time.Now(),
	}
	uow.gameStateRepo.On("Get", context.Background(), entities.GameTypeRelativeBattle).Return(state, nil)

	got, err := control.Stats(context.Background(), entities.GameTypeRelativeBattle)
	require.NoError(t, err)
	assert.Equal(t, int64(15_000), got.TotalVolume)
	assert.Equal(t, int64(750), got.TotalFeesCollected)
	assert.Equal(t, int64(12), got.ContestsSettled)
}
