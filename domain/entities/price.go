package entities

import (
	"time"

	"github.com/google/uuid"
)

// PriceSnapshot is what the price provider hands the engine on demand.
// Price is a fixed-point value in the provider's smallest unit (8 decimals
// for the default feed). Verified reports that the provider considers the
// value fresh and tradeable.
type PriceSnapshot struct {
	Symbol    string
	Price     int64
	Timestamp time.Time
	Verified  bool
	Source    string
}

// PriceStage identifies which boundary a recorded price was captured at
type PriceStage string

const (
	PriceStageLock   PriceStage = "lock"
	PriceStageSettle PriceStage = "settle"
)

// PriceAudit records which price source and value the engine used at a
// lock or settle boundary. An external discrepancy auditor consumes these;
// the engine only writes them.
type PriceAudit struct {
	ID         int64      `db:"id"`
	ContestID  uuid.UUID  `db:"contest_id"`
	Round      int        `db:"round"`
	Symbol     string     `db:"symbol"`
	Source     string     `db:"source"`
	Price      int64      `db:"price"`
	Verified   bool       `db:"verified"`
	Stage      PriceStage `db:"stage"`
	RecordedAt time.Time  `db:"recorded_at"`
}
