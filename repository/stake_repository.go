package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"collateralcombat/database"
	"collateralcombat/domain/entities"
	"collateralcombat/domain/interfaces"
)

// StakeRepository implements the append-only stake ledger
type StakeRepository struct {
	q Queryable
}

// NewStakeRepository creates a pool-backed stake repository
func NewStakeRepository(db *database.DB) *StakeRepository {
	return &StakeRepository{q: db.Pool}
}

// NewStakeRepositoryWithTx creates a stake repository bound to a transaction
func NewStakeRepositoryWithTx(tx Queryable) interfaces.StakeRepository {
	return &StakeRepository{q: tx}
}

// Create appends a stake. The unique constraint on (contest_id,
// participant_id) backs the one-stake-per-participant rule at the storage
// layer as well.
func (r *StakeRepository) Create(ctx context.Context, stake *entities.Stake) error {
	query := `
		INSERT INTO stakes (contest_id, participant_id, side, amount, placed_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	err := r.q.QueryRow(ctx, query,
		stake.ContestID,
		stake.ParticipantID,
		stake.Side,
		stake.Amount,
		stake.PlacedAt,
	).Scan(&stake.ID)
	if err != nil {
		return fmt.Errorf("failed to create stake: %w", err)
	}
	return nil
}

// GetByContest returns all stakes for a contest in placement order
func (r *StakeRepository) GetByContest(ctx context.Context, contestID uuid.UUID) ([]*entities.Stake, error) {
	query := `
		SELECT id, contest_id, participant_id, side, amount, eliminated_round, placed_at
		FROM stakes
		WHERE contest_id = $1
		ORDER BY placed_at, id
	`
	return r.queryStakes(ctx, query, contestID)
}

// GetByParticipant returns a participant's stakes on a contest
func (r *StakeRepository) GetByParticipant(ctx context.Context, contestID uuid.UUID, participantID string) ([]*entities.Stake, error) {
	query := `
		SELECT id, contest_id, participant_id, side, amount, eliminated_round, placed_at
		FROM stakes
		WHERE contest_id = $1 AND participant_id = $2
		ORDER BY placed_at, id
	`
	return r.queryStakes(ctx, query, contestID, participantID)
}

// Snapshot computes pool totals from the stake rows themselves. There is
// no cached aggregate to drift from the ledger.
func (r *StakeRepository) Snapshot(ctx context.Context, contestID uuid.UUID) (*entities.PoolSnapshot, error) {
	stakes, err := r.GetByContest(ctx, contestID)
	if err != nil {
		return nil, err
	}

	snapshot := &entities.PoolSnapshot{
		ContestID:    contestID,
		TotalsBySide: make(map[entities.Side]int64),
		Count:        len(stakes),
		Stakes:       stakes,
	}
	for _, s := range stakes {
		snapshot.TotalsBySide[s.Side] += s.Amount
	}
	return snapshot, nil
}

// MarkEliminated stamps the elimination round on lobby entries
func (r *StakeRepository) MarkEliminated(ctx context.Context, contestID uuid.UUID, participantIDs []string, round int) error {
	if len(participantIDs) == 0 {
		return nil
	}
	query := `
		UPDATE stakes
		SET eliminated_round = $3
		WHERE contest_id = $1 AND participant_id = ANY($2) AND eliminated_round IS NULL
	`
	if _, err := r.q.Exec(ctx, query, contestID, participantIDs, round); err != nil {
		return fmt.Errorf("failed to mark eliminations: %w", err)
	}
	return nil
}

// GetAlive returns lobby entries not yet eliminated, in entry order
func (r *StakeRepository) GetAlive(ctx context.Context, contestID uuid.UUID) ([]*entities.Stake, error) {
	query := `
		SELECT id, contest_id, participant_id, side, amount, eliminated_round, placed_at
		FROM stakes
		WHERE contest_id = $1 AND eliminated_round IS NULL
		ORDER BY placed_at, id
	`
	return r.queryStakes(ctx, query, contestID)
}

func (r *StakeRepository) queryStakes(ctx context.Context, query string, args ...any) ([]*entities.Stake, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stakes: %w", err)
	}
	defer rows.Close()

	var stakes []*entities.Stake
	for rows.Next() {
		var stake entities.Stake
		if err := rows.Scan(
			&stake.ID,
			&stake.ContestID,
			&stake.ParticipantID,
			&stake.Side,
			&stake.Amount,
			&stake.EliminatedRound,
			&stake.PlacedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stake: %w", err)
		}
		stakes = append(stakes, &stake)
	}
	return stakes, rows.Err()
}
