package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"collateralcombat/database"
	"collateralcombat/domain/entities"
	"collateralcombat/domain/interfaces"
)

const lobbyRoundColumns = `id, contest_id, round_number, open_at, lock_at, settle_at, lock_price, settle_price, resolved`

// LobbyRoundRepository implements elimination lobby round access
type LobbyRoundRepository struct {
	q Queryable
}

// NewLobbyRoundRepository creates a pool-backed lobby round repository
func NewLobbyRoundRepository(db *database.DB) *LobbyRoundRepository {
	return &LobbyRoundRepository{q: db.Pool}
}

// NewLobbyRoundRepositoryWithTx creates a lobby round repository bound to a transaction
func NewLobbyRoundRepositoryWithTx(tx Queryable) interfaces.LobbyRoundRepository {
	return &LobbyRoundRepository{q: tx}
}

// Create persists a new round. Round numbers are unique per contest.
func (r *LobbyRoundRepository) Create(ctx context.Context, round *entities.LobbyRound) error {
	query := `
		INSERT INTO lobby_rounds (contest_id, round_number, open_at, lock_at, settle_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.q.QueryRow(ctx, query,
		round.ContestID,
		round.RoundNumber,
		round.OpenAt,
		round.LockAt,
		round.SettleAt,
	).Scan(&round.ID)
	if err != nil {
		return fmt.Errorf("failed to create lobby round: %w", err)
	}
	return nil
}

// GetCurrent returns the highest-numbered round for a contest, nil when the
// lobby has not started its first round
func (r *LobbyRoundRepository) GetCurrent(ctx context.Context, contestID uuid.UUID) (*entities.LobbyRound, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM lobby_rounds
		WHERE contest_id = $1
		ORDER BY round_number DESC
		LIMIT 1
	`, lobbyRoundColumns)
	return r.scanOne(r.q.QueryRow(ctx, query, contestID))
}

// GetByNumber returns one round, nil when absent
func (r *LobbyRoundRepository) GetByNumber(ctx context.Context, contestID uuid.UUID, roundNumber int) (*entities.LobbyRound, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM lobby_rounds
		WHERE contest_id = $1 AND round_number = $2
	`, lobbyRoundColumns)
	return r.scanOne(r.q.QueryRow(ctx, query, contestID, roundNumber))
}

// Update persists captured prices and the resolved flag
func (r *LobbyRoundRepository) Update(ctx context.Context, round *entities.LobbyRound) error {
	query := `
		UPDATE lobby_rounds
		SET lock_price = $2, settle_price = $3, resolved = $4
		WHERE id = $1
	`
	tag, err := r.q.Exec(ctx, query, round.ID, round.LockPrice, round.SettlePrice, round.Resolved)
	if err != nil {
		return fmt.Errorf("failed to update lobby round: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("lobby round %d not found", round.ID)
	}
	return nil
}

func (r *LobbyRoundRepository) scanOne(row pgx.Row) (*entities.LobbyRound, error) {
	var round entities.LobbyRound
	err := row.Scan(
		&round.ID,
		&round.ContestID,
		&round.RoundNumber,
		&round.OpenAt,
		&round.LockAt,
		&round.SettleAt,
		&round.LockPrice,
		&round.SettlePrice,
		&round.Resolved,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan lobby round: %w", err)
	}
	return &round, nil
}
