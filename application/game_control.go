package application

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"collateralcombat/domain/entities"
)

// GameControl is the operational surface for game types: the pause switch
// and the running fee/volume counters. Pausing stops the scheduler from
// opening new contests; in-flight contests still settle and pay out.
type GameControl struct {
	uowFactory UnitOfWorkFactory
}

// NewGameControl creates the game control service
func NewGameControl(uowFactory UnitOfWorkFactory) *GameControl {
	return &GameControl{uowFactory: uowFactory}
}

// SetPaused flips the pause switch for a game type
func (g *GameControl) SetPaused(ctx context.Context, gameType entities.GameType, paused bool) error {
	uow := g.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.GameStateRepository().SetPaused(ctx, gameType, paused); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit pause change: %w", err)
	}

	log.WithFields(log.Fields{
		"gameType": gameType,
		"paused":   paused,
	}).Info("Game pause switch changed")
	return nil
}

// Stats returns the game state row with its volume and fee counters
func (g *GameControl) Stats(ctx context.Context, gameType entities.GameType) (*entities.GameState, error) {
	uow := g.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	state, err := uow.GameStateRepository().Get(ctx, gameType)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit stats read: %w", err)
	}
	return state, nil
}
