package entities

import (
	"time"

	"github.com/google/uuid"
)

// LobbyRound is one elimination round inside a lobby contest. Rounds run
// while the lobby sits in the locked phase; each has its own betting-free
// prediction window closed at LockAt and resolved at SettleAt.
type LobbyRound struct {
	ID          int64     `db:"id"`
	ContestID   uuid.UUID `db:"contest_id"`
	RoundNumber int       `db:"round_number"`
	OpenAt      time.Time `db:"open_at"`
	LockAt      time.Time `db:"lock_at"`
	SettleAt    time.Time `db:"settle_at"`
	LockPrice   *int64    `db:"lock_price"`
	SettlePrice *int64    `db:"settle_price"`
	Resolved    bool      `db:"resolved"`
}

// PredictionWindowOpen reports whether predictions are still accepted
func (r *LobbyRound) PredictionWindowOpen(now time.Time) bool {
	return !r.Resolved && now.Before(r.LockAt)
}

// Prediction is an alive entrant's side call for one lobby round
type Prediction struct {
	ID            int64     `db:"id"`
	ContestID     uuid.UUID `db:"contest_id"`
	RoundNumber   int       `db:"round_number"`
	ParticipantID string    `db:"participant_id"`
	Side          Side      `db:"side"`
	SubmittedAt   time.Time `db:"submitted_at"`
}

// payoutTierBand maps a minimum entrant count to a placement payout table
type payoutTierBand struct {
	minEntrants int
	tiersBps    []int64
}

// Placement payout bands, smallest lobbies first. Looked up once when
// registration closes and frozen on the contest config, since the entrant
// count can only shrink afterwards.
var payoutTierBands = []payoutTierBand{
	{minEntrants: 2, tiersBps: []int64{10000}},
	{minEntrants: 5, tiersBps: []int64{7000, 3000}},
	{minEntrants: 10, tiersBps: []int64{6000, 3000, 1000}},
	{minEntrants: 25, tiersBps: []int64{5000, 2500, 1500, 1000}},
}

// PayoutTiersForEntrants returns the frozen placement table for a lobby
// that closed registration with the given entrant count.
func PayoutTiersForEntrants(entrants int) []int64 {
	tiers := payoutTierBands[0].tiersBps
	for _, band := range payoutTierBands {
		if entrants >= band.minEntrants {
			tiers = band.tiersBps
		}
	}
	out := make([]int64, len(tiers))
	copy(out, tiers)
	return out
}
