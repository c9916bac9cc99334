package repository

import (
	"context"
	"fmt"

	"collateralcombat/database"
	"collateralcombat/domain/entities"
	"collateralcombat/domain/interfaces"
)

// GameStateRepository implements per-game operational state access
type GameStateRepository struct {
	q Queryable
}

// NewGameStateRepository creates a pool-backed game state repository
func NewGameStateRepository(db *database.DB) *GameStateRepository {
	return &GameStateRepository{q: db.Pool}
}

// NewGameStateRepositoryWithTx creates a game state repository bound to a transaction
func NewGameStateRepositoryWithTx(tx Queryable) interfaces.GameStateRepository {
	return &GameStateRepository{q: tx}
}

// Get returns the game state row, creating it on first access. The seed
// migration inserts the known game types, so the insert path only fires for
// types added after the initial deploy.
func (r *GameStateRepository) Get(ctx context.Context, gameType entities.GameType) (*entities.GameState, error) {
	query := `
		INSERT INTO game_states (game_type)
		VALUES ($1)
		ON CONFLICT (game_type) DO UPDATE SET game_type = EXCLUDED.game_type
		RETURNING game_type, paused, total_volume, total_fees_collected, contests_settled, updated_at
	`
	var state entities.GameState
	err := r.q.QueryRow(ctx, query, gameType).Scan(
		&state.GameType,
		&state.Paused,
		&state.TotalVolume,
		&state.TotalFeesCollected,
		&state.ContestsSettled,
		&state.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get game state: %w", err)
	}
	return &state, nil
}

// SetPaused flips the pause switch
func (r *GameStateRepository) SetPaused(ctx context.Context, gameType entities.GameType, paused bool) error {
	query := `
		UPDATE game_states
		SET paused = $2, updated_at = NOW()
		WHERE game_type = $1
	`
	tag, err := r.q.Exec(ctx, query, gameType, paused)
	if err != nil {
		return fmt.Errorf("failed to set paused: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("game state for %s not found", gameType)
	}
	return nil
}

// RecordSettlement accumulates volume and fee counters for one settlement
func (r *GameStateRepository) RecordSettlement(ctx context.Context, gameType entities.GameType, volume, fees int64) error {
	query := `
		UPDATE game_states
		SET total_volume = total_volume + $2,
		    total_fees_collected = total_fees_collected + $3,
		    contests_settled = contests_settled + 1,
		    updated_at = NOW()
		WHERE game_type = $1
	`
	tag, err := r.q.Exec(ctx, query, gameType, volume, fees)
	if err != nil {
		return fmt.Errorf("failed to record settlement counters: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("game state for %s not found", gameType)
	}
	return nil
}
