package interfaces

import (
	"context"

	"github.com/google/uuid"

	"collateralcombat/domain/entities"
	"collateralcombat/domain/events"
)

// EventPublisher publishes domain events
type EventPublisher interface {
	Publish(event events.Event) error
}

// TransactionalEventPublisher buffers events until the surrounding
// transaction commits, then flushes them to the real publisher
type TransactionalEventPublisher interface {
	EventPublisher
	Flush(ctx context.Context) error
	Discard()
}

// PriceProvider supplies price snapshots on demand. The engine treats it as
// a synchronous call; sourcing, aggregation and verification live behind it.
type PriceProvider interface {
	GetPrice(ctx context.Context, symbol string) (*entities.PriceSnapshot, error)
}

// BalanceCreditor is the engine's only outbound contract with the account
// ledger collaborator. Credit must be idempotent on the key.
type BalanceCreditor interface {
	Credit(ctx context.Context, participantID string, amount int64, idempotencyKey string) error
}

// PoolLedgerService accepts stakes into contest pools and produces the
// strongly consistent snapshots settlement consumes
type PoolLedgerService interface {
	// SubmitStake validates and appends a stake. Typed rejections:
	// ValidationError for bad amount/side/timing, ConflictError for
	// duplicate stakes or a contest that is not open.
	SubmitStake(ctx context.Context, contestID uuid.UUID, participantID string, side entities.Side, amount int64) (*entities.StakeReceipt, error)

	// Snapshot reflects every stake accepted before the call returns
	Snapshot(ctx context.Context, contestID uuid.UUID) (*entities.PoolSnapshot, error)
}

// RoundService drives contest lifecycle transitions
type RoundService interface {
	// EvaluateContest inspects one contest against the clock and advances
	// it at most one phase. Idempotent: evaluating twice with no
	// intervening change is safe.
	EvaluateContest(ctx context.Context, contestID uuid.UUID) error
}

// ContestSchedulerService creates contests on cadence and tracks the
// current contest per game type
type ContestSchedulerService interface {
	// EnsureCurrentContest returns the non-terminal contest for the game
	// type, creating the next one when the previous reached a terminal
	// phase. At most one non-terminal contest per game type exists.
	EnsureCurrentContest(ctx context.Context, gameType entities.GameType) (*entities.Contest, error)

	// CurrentContestID reads the owned registry without touching storage
	CurrentContestID(gameType entities.GameType) (uuid.UUID, bool)
}

// PayoutProcessorService applies a settlement's payout table exactly once
type PayoutProcessorService interface {
	// Apply credits every uncredited payout row for the contest. Safe to
	// call repeatedly and to resume after a crash.
	Apply(ctx context.Context, contestID uuid.UUID) (*AppliedResult, error)
}

// AppliedResult reports one crediting pass
type AppliedResult struct {
	ContestID      uuid.UUID
	CreditedCount  int
	CreditedAmount int64
	Remaining      int
}

// EliminationService handles the lobby-specific operations layered on the
// shared pool ledger
type EliminationService interface {
	// RegisterEntry joins a participant into an open lobby
	RegisterEntry(ctx context.Context, contestID uuid.UUID, participantID string, entryFee int64) (*entities.StakeReceipt, error)

	// SubmitPrediction records an alive entrant's call for the open round
	SubmitPrediction(ctx context.Context, contestID uuid.UUID, participantID string, side entities.Side) error

	// AdvanceLobby progresses the current round: locks it, resolves it,
	// eliminates entrants, opens the next round or ends the lobby.
	AdvanceLobby(ctx context.Context, contest *entities.Contest) (done bool, err error)
}

// ParticipantGateway serves the participant-facing boundary operations.
// Each call runs the domain operation inside its own unit of work, so
// inbound traffic takes the same contest row lock as phase evaluation.
type ParticipantGateway interface {
	// SubmitStake places a stake on an open contest
	SubmitStake(ctx context.Context, contestID uuid.UUID, participantID string, side entities.Side, amount int64) (*entities.StakeReceipt, error)

	// RegisterEntry joins a participant into an open lobby
	RegisterEntry(ctx context.Context, contestID uuid.UUID, participantID string, entryFee int64) (*entities.StakeReceipt, error)

	// SubmitPrediction records a side call for the lobby's open round
	SubmitPrediction(ctx context.Context, contestID uuid.UUID, participantID string, side entities.Side) error
}

// ContestQueryService serves the read-only contest views
type ContestQueryService interface {
	GetContest(ctx context.Context, contestID uuid.UUID) (*ContestView, error)
	GetCurrentContest(ctx context.Context, gameType entities.GameType) (*ContestView, error)
}

// ContestView is a contest with pool totals consistent with the latest
// committed write
type ContestView struct {
	Contest      *entities.Contest
	TotalsBySide map[entities.Side]int64
	StakeCount   int
	TotalPool    int64
}
