package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"collateralcombat/database"
	"collateralcombat/domain/entities"
	"collateralcombat/domain/interfaces"
)

// PriceAuditRepository implements the append-only price audit trail
type PriceAuditRepository struct {
	q Queryable
}

// NewPriceAuditRepository creates a pool-backed price audit repository
func NewPriceAuditRepository(db *database.DB) *PriceAuditRepository {
	return &PriceAuditRepository{q: db.Pool}
}

// NewPriceAuditRepositoryWithTx creates a price audit repository bound to a transaction
func NewPriceAuditRepositoryWithTx(tx Queryable) interfaces.PriceAuditRepository {
	return &PriceAuditRepository{q: tx}
}

// Record appends one audit row
func (r *PriceAuditRepository) Record(ctx context.Context, audit *entities.PriceAudit) error {
	query := `
		INSERT INTO price_audits (contest_id, round, symbol, source, price, verified, stage, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := r.q.QueryRow(ctx, query,
		audit.ContestID,
		audit.Round,
		audit.Symbol,
		audit.Source,
		audit.Price,
		audit.Verified,
		audit.Stage,
		audit.RecordedAt,
	).Scan(&audit.ID)
	if err != nil {
		return fmt.Errorf("failed to record price audit: %w", err)
	}
	return nil
}

// GetByContest returns all audit rows for a contest in capture order
func (r *PriceAuditRepository) GetByContest(ctx context.Context, contestID uuid.UUID) ([]*entities.PriceAudit, error) {
	query := `
		SELECT id, contest_id, round, symbol, source, price, verified, stage, recorded_at
		FROM price_audits
		WHERE contest_id = $1
		ORDER BY id
	`
	rows, err := r.q.Query(ctx, query, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query price audits: %w", err)
	}
	defer rows.Close()

	var audits []*entities.PriceAudit
	for rows.Next() {
		var audit entities.PriceAudit
		if err := rows.Scan(
			&audit.ID,
			&audit.ContestID,
			&audit.Round,
			&audit.Symbol,
			&audit.Source,
			&audit.Price,
			&audit.Verified,
			&audit.Stage,
			&audit.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan price audit: %w", err)
		}
		audits = append(audits, &audit)
	}
	return audits, rows.Err()
}
