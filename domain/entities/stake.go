package entities

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Side is the position a stake backs within a contest. Binary rounds use
// up/down, relative battles use the token symbol, elimination lobbies use
// the alive entry marker.
type Side string

const (
	SideUp    Side = "up"
	SideDown  Side = "down"
	SideAlive Side = "alive"
)

// MaxPoolLamports caps any single side's pool so that payout
// arithmetic stays comfortably inside int64.
const MaxPoolLamports int64 = 1 << 53

// Stake is one participant's immutable commitment to a contest
type Stake struct {
	ID            int64     `db:"id"`
	ContestID     uuid.UUID `db:"contest_id"`
	ParticipantID string    `db:"participant_id"`
	Side          Side      `db:"side"`
	Amount        int64     `db:"amount"`
	PlacedAt      time.Time `db:"placed_at"`

	// EliminatedRound is set when an elimination lobby knocks the entrant
	// out; nil for survivors and for non-lobby stakes.
	EliminatedRound *int `db:"eliminated_round"`
}

// IsAlive reports whether an elimination entry is still in the running
func (s *Stake) IsAlive() bool {
	return s.EliminatedRound == nil
}

// StakeReceipt is returned to the caller on a successful stake placement
type StakeReceipt struct {
	StakeID       int64
	ContestID     uuid.UUID
	ParticipantID string
	Side          Side
	Amount        int64
	PlacedAt      time.Time
}

// PoolSnapshot is the strongly consistent view of a contest's pool taken
// under the contest row lock. The snapshot captured at the lock boundary is
// the one and only input settlement may use.
type PoolSnapshot struct {
	ContestID    uuid.UUID
	TotalsBySide map[Side]int64
	Count        int
	Stakes       []*Stake
}

// TotalPool returns the combined stake across all sides
func (p *PoolSnapshot) TotalPool() int64 {
	var total int64
	for _, amount := range p.TotalsBySide {
		total += amount
	}
	return total
}

// SideTotal returns the pool total for one side
func (p *PoolSnapshot) SideTotal(side Side) int64 {
	return p.TotalsBySide[side]
}

// StakesBySide returns the snapshot's stakes on the given side, ordered by
// placement time then id so payout dust assignment is deterministic.
func (p *PoolSnapshot) StakesBySide(side Side) []*Stake {
	var stakes []*Stake
	for _, s := range p.Stakes {
		if s.Side == side {
			stakes = append(stakes, s)
		}
	}
	sort.Slice(stakes, func(i, j int) bool {
		if stakes[i].PlacedAt.Equal(stakes[j].PlacedAt) {
			return stakes[i].ID < stakes[j].ID
		}
		return stakes[i].PlacedAt.Before(stakes[j].PlacedAt)
	})
	return stakes
}
