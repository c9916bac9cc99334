package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"collateralcombat/database"
	"collateralcombat/domain/entities"
	"collateralcombat/domain/interfaces"
)

// ContestRepository implements contest lifecycle data access
type ContestRepository struct {
	q Queryable
}

// NewContestRepository creates a pool-backed contest repository
func NewContestRepository(db *database.DB) *ContestRepository {
	return &ContestRepository{q: db.Pool}
}

// NewContestRepositoryWithTx creates a contest repository bound to a transaction
func NewContestRepositoryWithTx(tx Queryable) interfaces.ContestRepository {
	return &ContestRepository{q: tx}
}

const contestColumns = `
	id, game_type, phase, config, open_at, lock_at, settle_at,
	lock_prices, settle_prices, current_round, void_reason, settled_at, created_at
`

// Create persists a new contest. The partial unique index on non-terminal
// contests rejects a second live contest for the same game type.
func (r *ContestRepository) Create(ctx context.Context, contest *entities.Contest) error {
	configJSON, err := json.Marshal(contest.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal contest config: %w", err)
	}
	lockPrices, settlePrices, err := marshalPrices(contest)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO contests (
			id, game_type, phase, config, open_at, lock_at, settle_at,
			lock_prices, settle_prices, current_round
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`
	err = r.q.QueryRow(ctx, query,
		contest.ID,
		contest.GameType,
		contest.Phase,
		configJSON,
		contest.OpenAt,
		contest.LockAt,
		contest.SettleAt,
		lockPrices,
		settlePrices,
		contest.CurrentRound,
	).Scan(&contest.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create contest: %w", err)
	}
	return nil
}

// GetByID retrieves a contest, nil when not found
func (r *ContestRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Contest, error) {
	query := `SELECT ` + contestColumns + ` FROM contests WHERE id = $1`
	return r.scanOne(r.q.QueryRow(ctx, query, id))
}

// GetByIDForUpdate retrieves a contest holding its row lock. The lock
// serializes every stake write, the close-and-snapshot transition, and
// settlement for that contest.
func (r *ContestRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Contest, error) {
	query := `SELECT ` + contestColumns + ` FROM contests WHERE id = $1 FOR UPDATE`
	return r.scanOne(r.q.QueryRow(ctx, query, id))
}

// GetCurrentByGameType returns the single non-terminal contest for a game
// type, nil when none exists
func (r *ContestRepository) GetCurrentByGameType(ctx context.Context, gameType entities.GameType) (*entities.Contest, error) {
	query := `
		SELECT ` + contestColumns + `
		FROM contests
		WHERE game_type = $1 AND phase NOT IN ('settled', 'voided', 'archived')
	`
	return r.scanOne(r.q.QueryRow(ctx, query, gameType))
}

// GetActive returns all contests in a non-terminal phase
func (r *ContestRepository) GetActive(ctx context.Context) ([]*entities.Contest, error) {
	query := `
		SELECT ` + contestColumns + `
		FROM contests
		WHERE phase NOT IN ('settled', 'voided', 'archived')
		ORDER BY created_at
	`
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active contests: %w", err)
	}
	defer rows.Close()

	var contests []*entities.Contest
	for rows.Next() {
		contest, err := scanContest(rows)
		if err != nil {
			return nil, err
		}
		contests = append(contests, contest)
	}
	return contests, rows.Err()
}

// Update persists the mutable contest fields
func (r *ContestRepository) Update(ctx context.Context, contest *entities.Contest) error {
	configJSON, err := json.Marshal(contest.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal contest config: %w", err)
	}
	lockPrices, settlePrices, err := marshalPrices(contest)
	if err != nil {
		return err
	}

	query := `
		UPDATE contests
		SET phase = $2, config = $3, lock_prices = $4, settle_prices = $5,
		    current_round = $6, void_reason = $7, settled_at = $8, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.q.Exec(ctx, query,
		contest.ID,
		contest.Phase,
		configJSON,
		lockPrices,
		settlePrices,
		contest.CurrentRound,
		contest.VoidReason,
		contest.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update contest: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("contest %s not found", contest.ID)
	}
	return nil
}

// ArchiveSettledBefore moves settled and voided contests whose payouts are
// all credited and whose settlement is older than the cutoff into archived
func (r *ContestRepository) ArchiveSettledBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query := `
		UPDATE contests
		SET phase = 'archived', updated_at = NOW()
		WHERE phase IN ('settled', 'voided')
		  AND settled_at < $1
		  AND NOT EXISTS (
			SELECT 1 FROM payouts
			WHERE payouts.contest_id = contests.id AND NOT payouts.credited
		  )
	`
	tag, err := r.q.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to archive contests: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *ContestRepository) scanOne(row pgx.Row) (*entities.Contest, error) {
	contest, err := scanContest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return contest, err
}

func scanContest(row pgx.Row) (*entities.Contest, error) {
	var contest entities.Contest
	var configJSON, lockPrices, settlePrices []byte

	err := row.Scan(
		&contest.ID,
		&contest.GameType,
		&contest.Phase,
		&configJSON,
		&contest.OpenAt,
		&contest.LockAt,
		&contest.SettleAt,
		&lockPrices,
		&settlePrices,
		&contest.CurrentRound,
		&contest.VoidReason,
		&contest.SettledAt,
		&contest.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan contest: %w", err)
	}

	if err := json.Unmarshal(configJSON, &contest.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal contest config: %w", err)
	}
	if err := json.Unmarshal(lockPrices, &contest.LockPrices); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lock prices: %w", err)
	}
	if err := json.Unmarshal(settlePrices, &contest.SettlePrices); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settle prices: %w", err)
	}
	return &contest, nil
}

func marshalPrices(contest *entities.Contest) (lockPrices, settlePrices []byte, err error) {
	if contest.LockPrices == nil {
		contest.LockPrices = make(map[string]int64)
	}
	if contest.SettlePrices == nil {
		contest.SettlePrices = make(map[string]int64)
	}
	lockPrices, err = json.Marshal(contest.LockPrices)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal lock prices: %w", err)
	}
	settlePrices, err = json.Marshal(contest.SettlePrices)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal settle prices: %w", err)
	}
	return lockPrices, settlePrices, nil
}
