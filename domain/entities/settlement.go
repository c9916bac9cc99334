package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Outcome is the resolved result of a contest: the winning side for a
// decisive settlement, or one of the non-decisive markers below.
type Outcome string

const (
	// OutcomeTie refunds every stake in full with no fee.
	OutcomeTie Outcome = "tie"
	// OutcomeVoid is the fail-safe terminal outcome: full refund, no fee.
	OutcomeVoid Outcome = "void"
	// OutcomeSurvivors marks an elimination lobby that reached its round
	// cap with more than one entrant still alive.
	OutcomeSurvivors Outcome = "survivors"
	// OutcomePlacement marks an elimination lobby decided outright, paid
	// by the frozen placement tier table.
	OutcomePlacement Outcome = "placement"
)

// IsDecisive reports whether a fee was taken and a winning side paid
func (o Outcome) IsDecisive() bool {
	return o != OutcomeTie && o != OutcomeVoid
}

// IsRefund reports whether the outcome refunds stakes in full
func (o Outcome) IsRefund() bool {
	return o == OutcomeTie || o == OutcomeVoid
}

// Payout is one row of a settlement's payout table. Rows are written in the
// same transaction as the SettlementRecord, before any credit call is made,
// so a crashed crediting pass resumes from the recorded table.
type Payout struct {
	ID             int64     `db:"id"`
	ContestID      uuid.UUID `db:"contest_id"`
	ParticipantID  string    `db:"participant_id"`
	Amount         int64     `db:"amount"`
	IdempotencyKey string    `db:"idempotency_key"`
	Credited       bool      `db:"credited"`
	CreditedAt     *time.Time `db:"credited_at"`
}

// SettlementRecord is the one-time result of settling a contest
type SettlementRecord struct {
	ID        int64     `db:"id"`
	ContestID uuid.UUID `db:"contest_id"`
	Outcome   Outcome   `db:"outcome"`
	FeeBps    int64     `db:"fee_bps"`
	FeeAmount int64     `db:"fee_amount"`
	TotalPool int64     `db:"total_pool"`
	CreatedAt time.Time `db:"created_at"`

	Payouts []*Payout `db:"-"`
}

// PayoutTotal sums the payout table
func (r *SettlementRecord) PayoutTotal() int64 {
	var total int64
	for _, p := range r.Payouts {
		total += p.Amount
	}
	return total
}

// Reconcile verifies the conservation invariant against the staked total:
// payouts plus fee must equal the pool exactly, and a refund outcome must
// carry no fee. A failure is fatal for the contest and must never be
// papered over.
func (r *SettlementRecord) Reconcile(totalStaked int64) error {
	if r.Outcome.IsRefund() && r.FeeAmount != 0 {
		return NewInvariantViolation(fmt.Sprintf(
			"refund outcome %q carries fee %d", r.Outcome, r.FeeAmount))
	}
	if got := r.PayoutTotal() + r.FeeAmount; got != totalStaked {
		return NewInvariantViolation(fmt.Sprintf(
			"pool does not reconcile: payouts+fee=%d, staked=%d", got, totalStaked))
	}
	return nil
}

// PayoutIdempotencyKey builds the key the balance collaborator dedupes on
func PayoutIdempotencyKey(contestID uuid.UUID, participantID string) string {
	return fmt.Sprintf("payout:%s:%s", contestID, participantID)
}
