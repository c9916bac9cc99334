package interfaces

import (
	"context"
	"time"

	"github.com/google/uuid"

	"collateralcombat/domain/entities"
)

// ContestRepository defines data access for contest lifecycle rows
type ContestRepository interface {
	// Create persists a new contest in its initial phase
	Create(ctx context.Context, contest *entities.Contest) error

	// GetByID retrieves a contest, nil when not found
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Contest, error)

	// GetByIDForUpdate retrieves a contest holding its row lock for the
	// rest of the transaction. Every mutation of a contest and its pool
	// goes through this gate.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Contest, error)

	// GetCurrentByGameType returns the single non-terminal contest for a
	// game type, nil when none exists
	GetCurrentByGameType(ctx context.Context, gameType entities.GameType) (*entities.Contest, error)

	// GetActive returns all contests in a non-terminal phase
	GetActive(ctx context.Context) ([]*entities.Contest, error)

	// Update persists phase, reference prices, round counter and settled-at
	Update(ctx context.Context, contest *entities.Contest) error

	// ArchiveSettledBefore moves fully paid-out settled/voided contests
	// older than the cutoff into archived, returning how many moved
	ArchiveSettledBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// StakeRepository defines data access for the append-only stake ledger
type StakeRepository interface {
	// Create appends a stake; called only under the contest row lock
	Create(ctx context.Context, stake *entities.Stake) error

	// GetByContest returns all stakes for a contest
	GetByContest(ctx context.Context, contestID uuid.UUID) ([]*entities.Stake, error)

	// GetByParticipant returns a participant's stakes on a contest
	GetByParticipant(ctx context.Context, contestID uuid.UUID, participantID string) ([]*entities.Stake, error)

	// Snapshot computes pool totals and the stake list directly from the
	// ledger rows, never from a cached aggregate
	Snapshot(ctx context.Context, contestID uuid.UUID) (*entities.PoolSnapshot, error)

	// MarkEliminated stamps the elimination round on lobby entries
	MarkEliminated(ctx context.Context, contestID uuid.UUID, participantIDs []string, round int) error

	// GetAlive returns lobby entries not yet eliminated
	GetAlive(ctx context.Context, contestID uuid.UUID) ([]*entities.Stake, error)
}

// SettlementRepository defines data access for settlement records and the
// payout table that backs exactly-once crediting
type SettlementRepository interface {
	// Create persists the record and its payout rows atomically. The
	// contest id is unique: a second settlement attempt fails.
	Create(ctx context.Context, record *entities.SettlementRecord) error

	// GetByContest returns the settlement for a contest, nil when absent
	GetByContest(ctx context.Context, contestID uuid.UUID) (*entities.SettlementRecord, error)

	// GetUncreditedPayouts returns payout rows not yet credited, in row order
	GetUncreditedPayouts(ctx context.Context, contestID uuid.UUID) ([]*entities.Payout, error)

	// MarkPayoutCredited flips one payout row to credited
	MarkPayoutCredited(ctx context.Context, payoutID int64) error

	// GetContestsWithUncreditedPayouts lists contests whose crediting pass
	// has not finished; the recovery job resumes these
	GetContestsWithUncreditedPayouts(ctx context.Context) ([]uuid.UUID, error)
}

// LobbyRoundRepository defines data access for elimination lobby rounds
type LobbyRoundRepository interface {
	Create(ctx context.Context, round *entities.LobbyRound) error
	GetCurrent(ctx context.Context, contestID uuid.UUID) (*entities.LobbyRound, error)
	GetByNumber(ctx context.Context, contestID uuid.UUID, roundNumber int) (*entities.LobbyRound, error)
	Update(ctx context.Context, round *entities.LobbyRound) error
}

// PredictionRepository defines data access for per-round side predictions
type PredictionRepository interface {
	// Upsert stores or replaces a participant's prediction for a round
	Upsert(ctx context.Context, prediction *entities.Prediction) error

	// GetByRound returns all predictions for one lobby round
	GetByRound(ctx context.Context, contestID uuid.UUID, roundNumber int) ([]*entities.Prediction, error)
}

// PriceAuditRepository records which price source and value the engine used
type PriceAuditRepository interface {
	Record(ctx context.Context, audit *entities.PriceAudit) error
	GetByContest(ctx context.Context, contestID uuid.UUID) ([]*entities.PriceAudit, error)
}

// GameStateRepository defines access to per-game operational state
type GameStateRepository interface {
	// Get returns the game state row, creating it on first access
	Get(ctx context.Context, gameType entities.GameType) (*entities.GameState, error)

	// SetPaused flips the pause switch
	SetPaused(ctx context.Context, gameType entities.GameType, paused bool) error

	// RecordSettlement accumulates volume and fee counters
	RecordSettlement(ctx context.Context, gameType entities.GameType, volume, fees int64) error
}
