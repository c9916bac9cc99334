package events

import (
	"github.com/google/uuid"

	"collateralcombat/domain/entities"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeStakeAccepted       EventType = "stake_accepted"
	EventTypeContestPhaseChanged EventType = "contest_phase_changed"
	EventTypeContestSettled      EventType = "contest_settled"
	EventTypeContestVoided       EventType = "contest_voided"
	EventTypeEntrantEliminated   EventType = "entrant_eliminated"
)

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// StakeAcceptedEvent represents a stake that entered a contest pool
type StakeAcceptedEvent struct {
	ContestID     uuid.UUID
	GameType      entities.GameType
	ParticipantID string
	Side          entities.Side
	Amount        int64
}

func (e StakeAcceptedEvent) Type() EventType {
	return EventTypeStakeAccepted
}

// ContestPhaseChangedEvent represents a contest lifecycle transition
type ContestPhaseChangedEvent struct {
	ContestID uuid.UUID
	GameType  entities.GameType
	OldPhase  entities.ContestPhase
	NewPhase  entities.ContestPhase
}

func (e ContestPhaseChangedEvent) Type() EventType {
	return EventTypeContestPhaseChanged
}

// ContestSettledEvent is the settlement notification, emitted once per
// contest when it reaches settled, carrying the full payout table.
type ContestSettledEvent struct {
	ContestID uuid.UUID
	GameType  entities.GameType
	Outcome   entities.Outcome
	FeeBps    int64
	FeeAmount int64
	TotalPool int64
	Payouts   map[string]int64
}

func (e ContestSettledEvent) Type() EventType {
	return EventTypeContestSettled
}

// ContestVoidedEvent is the settlement notification for the voided terminal
// state: every stake refunds in full, no fee.
type ContestVoidedEvent struct {
	ContestID uuid.UUID
	GameType  entities.GameType
	Reason    string
	TotalPool int64
	Payouts   map[string]int64
}

func (e ContestVoidedEvent) Type() EventType {
	return EventTypeContestVoided
}

// EntrantEliminatedEvent reports elimination lobby knockouts for one round
type EntrantEliminatedEvent struct {
	ContestID      uuid.UUID
	RoundNumber    int
	Eliminated     []string
	RemainingAlive int
}

func (e EntrantEliminatedEvent) Type() EventType {
	return EventTypeEntrantEliminated
}
