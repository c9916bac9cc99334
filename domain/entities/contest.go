package entities

import (
	"time"

	"github.com/google/uuid"
)

// GameType identifies which surface game a contest belongs to
type GameType string

const (
	GameTypeBinaryRound      GameType = "binary_round"
	GameTypeRelativeBattle   GameType = "relative_battle"
	GameTypeEliminationLobby GameType = "elimination_lobby"
)

// AllGameTypes lists every game type the engine runs
var AllGameTypes = []GameType{
	GameTypeBinaryRound,
	GameTypeRelativeBattle,
	GameTypeEliminationLobby,
}

// ContestPhase represents the lifecycle phase of a contest
type ContestPhase string

const (
	ContestPhaseScheduled ContestPhase = "scheduled"
	ContestPhaseOpen      ContestPhase = "open"
	ContestPhaseLocked    ContestPhase = "locked"
	ContestPhaseSettling  ContestPhase = "settling"
	ContestPhaseSettled   ContestPhase = "settled"
	ContestPhaseVoided    ContestPhase = "voided"
	ContestPhaseArchived  ContestPhase = "archived"
)

// IsTerminal reports whether no further semantic transitions are possible
func (p ContestPhase) IsTerminal() bool {
	return p == ContestPhaseSettled || p == ContestPhaseVoided || p == ContestPhaseArchived
}

// phaseTransitions is the complete lifecycle graph. Voided is reachable
// from every non-terminal phase as the fail-safe; archived only follows
// the two settled terminals.
var phaseTransitions = map[ContestPhase][]ContestPhase{
	ContestPhaseScheduled: {ContestPhaseOpen, ContestPhaseVoided},
	ContestPhaseOpen:      {ContestPhaseLocked, ContestPhaseVoided},
	ContestPhaseLocked:    {ContestPhaseSettling, ContestPhaseVoided},
	ContestPhaseSettling:  {ContestPhaseSettled, ContestPhaseVoided},
	ContestPhaseSettled:   {ContestPhaseArchived},
	ContestPhaseVoided:    {ContestPhaseArchived},
}

// CanTransitionTo reports whether the lifecycle permits moving to next
func (p ContestPhase) CanTransitionTo(next ContestPhase) bool {
	for _, allowed := range phaseTransitions[p] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ContestConfig holds game parameters, immutable once the contest is created
type ContestConfig struct {
	// Symbols tracked by the contest: one for binary rounds and
	// elimination lobbies, two for relative battles.
	Symbols []string `json:"symbols"`

	FeeBps   int64 `json:"fee_bps"`
	MinStake int64 `json:"min_stake"`
	MaxStake int64 `json:"max_stake"`

	MinParticipants int `json:"min_participants"`
	MaxParticipants int `json:"max_participants"`

	// DrawThresholdBps is the binary-round dead zone: a price move of this
	// many basis points or less settles as a tie.
	DrawThresholdBps int64 `json:"draw_threshold_bps"`

	// MinSettlementPool voids a relative battle whose combined pool never
	// reached a meaningful size.
	MinSettlementPool int64 `json:"min_settlement_pool"`

	// Elimination lobby parameters.
	MaxRounds     int           `json:"max_rounds,omitempty"`
	RoundDuration time.Duration `json:"round_duration,omitempty"`

	// PayoutTiersBps is the placement payout table, in basis points of the
	// prize pool, frozen at lobby creation from the entrant count bands.
	// Index 0 is first place. Must sum to 10000.
	PayoutTiersBps []int64 `json:"payout_tiers_bps,omitempty"`
}

// Contest is one instance of a wagering round, battle, or lobby
type Contest struct {
	ID       uuid.UUID    `db:"id"`
	GameType GameType     `db:"game_type"`
	Phase    ContestPhase `db:"phase"`

	OpenAt   time.Time `db:"open_at"`
	LockAt   time.Time `db:"lock_at"`
	SettleAt time.Time `db:"settle_at"`

	Config ContestConfig `db:"config"`

	// Reference prices per symbol, set exactly once each at the lock and
	// settle boundaries. Nil map entry means not yet captured.
	LockPrices   map[string]int64 `db:"lock_prices"`
	SettlePrices map[string]int64 `db:"settle_prices"`

	// CurrentRound tracks elimination lobby progress; zero elsewhere.
	CurrentRound int `db:"current_round"`

	// VoidReason is set when the contest ends in the voided phase.
	VoidReason *string `db:"void_reason"`

	CreatedAt time.Time  `db:"created_at"`
	SettledAt *time.Time `db:"settled_at"`
}

// IsOpen checks if the contest is in its open phase
func (c *Contest) IsOpen() bool {
	return c.Phase == ContestPhaseOpen
}

// CanAcceptStakes checks if a stake arriving at now would be admissible.
// The authoritative gate is the phase column guarded by the contest row
// lock; this is the cheap pre-check.
func (c *Contest) CanAcceptStakes(now time.Time) bool {
	return c.Phase == ContestPhaseOpen && now.Before(c.LockAt)
}

// HasLockPrices reports whether every tracked symbol has a lock price
func (c *Contest) HasLockPrices() bool {
	for _, sym := range c.Config.Symbols {
		if _, ok := c.LockPrices[sym]; !ok {
			return false
		}
	}
	return true
}

// HasSettlePrices reports whether every tracked symbol has a settle price
func (c *Contest) HasSettlePrices() bool {
	for _, sym := range c.Config.Symbols {
		if _, ok := c.SettlePrices[sym]; !ok {
			return false
		}
	}
	return true
}

// SetLockPrice records a lock price. Returns false if the symbol already
// has one; lock prices are set exactly once and never overwritten.
func (c *Contest) SetLockPrice(symbol string, price int64) bool {
	if c.LockPrices == nil {
		c.LockPrices = make(map[string]int64)
	}
	if _, ok := c.LockPrices[symbol]; ok {
		return false
	}
	c.LockPrices[symbol] = price
	return true
}

// SetSettlePrice records a settle price, set-once like SetLockPrice
func (c *Contest) SetSettlePrice(symbol string, price int64) bool {
	if c.SettlePrices == nil {
		c.SettlePrices = make(map[string]int64)
	}
	if _, ok := c.SettlePrices[symbol]; ok {
		return false
	}
	c.SettlePrices[symbol] = price
	return true
}

// TracksSymbol checks whether the contest tracks the given symbol
func (c *Contest) TracksSymbol(symbol string) bool {
	for _, s := range c.Config.Symbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// HasMinimumParticipants checks the lobby entry floor
func (c *Contest) HasMinimumParticipants(count int) bool {
	return count >= c.Config.MinParticipants
}

// GameState carries per-game operational state and running totals
type GameState struct {
	GameType            GameType  `db:"game_type"`
	Paused              bool      `db:"paused"`
	TotalVolume         int64     `db:"total_volume"`
	TotalFeesCollected  int64     `db:"total_fees_collected"`
	ContestsSettled     int64     `db:"contests_settled"`
	UpdatedAt           time.Time `db:"updated_at"`
}
