package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"collateralcombat/database"
	"collateralcombat/domain/entities"
	"collateralcombat/domain/interfaces"
)

// SettlementRepository implements settlement record and payout table access
type SettlementRepository struct {
	q Queryable
}

// NewSettlementRepository creates a pool-backed settlement repository
func NewSettlementRepository(db *database.DB) *SettlementRepository {
	return &SettlementRepository{q: db.Pool}
}

// NewSettlementRepositoryWithTx creates a settlement repository bound to a transaction
func NewSettlementRepositoryWithTx(tx Queryable) interfaces.SettlementRepository {
	return &SettlementRepository{q: tx}
}

// Create persists the record and its payout rows. The unique constraint on
// contest_id rejects a second settlement for the same contest. Callers run
// this inside a transaction, so a failed payout insert unwinds the record.
func (r *SettlementRepository) Create(ctx context.Context, record *entities.SettlementRecord) error {
	query := `
		INSERT INTO settlements (contest_id, outcome, fee_bps, fee_amount, total_pool)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.q.QueryRow(ctx, query,
		record.ContestID,
		record.Outcome,
		record.FeeBps,
		record.FeeAmount,
		record.TotalPool,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create settlement: %w", err)
	}

	payoutQuery := `
		INSERT INTO payouts (contest_id, participant_id, amount, idempotency_key)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	for _, payout := range record.Payouts {
		err := r.q.QueryRow(ctx, payoutQuery,
			payout.ContestID,
			payout.ParticipantID,
			payout.Amount,
			payout.IdempotencyKey,
		).Scan(&payout.ID)
		if err != nil {
			return fmt.Errorf("failed to create payout for %s: %w", payout.ParticipantID, err)
		}
	}
	return nil
}

// GetByContest returns the settlement with its payout table, nil when the
// contest has not been settled
func (r *SettlementRepository) GetByContest(ctx context.Context, contestID uuid.UUID) (*entities.SettlementRecord, error) {
	query := `
		SELECT id, contest_id, outcome, fee_bps, fee_amount, total_pool, created_at
		FROM settlements
		WHERE contest_id = $1
	`
	var record entities.SettlementRecord
	err := r.q.QueryRow(ctx, query, contestID).Scan(
		&record.ID,
		&record.ContestID,
		&record.Outcome,
		&record.FeeBps,
		&record.FeeAmount,
		&record.TotalPool,
		&record.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}

	payouts, err := r.queryPayouts(ctx, `
		SELECT id, contest_id, participant_id, amount, idempotency_key, credited, credited_at
		FROM payouts
		WHERE contest_id = $1
		ORDER BY id
	`, contestID)
	if err != nil {
		return nil, err
	}
	record.Payouts = payouts
	return &record, nil
}

// GetUncreditedPayouts returns payout rows not yet credited, in row order
func (r *SettlementRepository) GetUncreditedPayouts(ctx context.Context, contestID uuid.UUID) ([]*entities.Payout, error) {
	return r.queryPayouts(ctx, `
		SELECT id, contest_id, participant_id, amount, idempotency_key, credited, credited_at
		FROM payouts
		WHERE contest_id = $1 AND NOT credited
		ORDER BY id
	`, contestID)
}

// MarkPayoutCredited flips one payout row to credited
func (r *SettlementRepository) MarkPayoutCredited(ctx context.Context, payoutID int64) error {
	query := `
		UPDATE payouts
		SET credited = TRUE, credited_at = $2
		WHERE id = $1 AND NOT credited
	`
	tag, err := r.q.Exec(ctx, query, payoutID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark payout credited: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("payout %d not found or already credited", payoutID)
	}
	return nil
}

// GetContestsWithUncreditedPayouts lists contests whose crediting pass has
// not finished
func (r *SettlementRepository) GetContestsWithUncreditedPayouts(ctx context.Context) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT contest_id
		FROM payouts
		WHERE NOT credited
	`
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query uncredited contests: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan contest id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *SettlementRepository) queryPayouts(ctx context.Context, query string, args ...any) ([]*entities.Payout, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payouts: %w", err)
	}
	defer rows.Close()

	var payouts []*entities.Payout
	for rows.Next() {
		var payout entities.Payout
		if err := rows.Scan(
			&payout.ID,
			&payout.ContestID,
			&payout.ParticipantID,
			&payout.Amount,
			&payout.IdempotencyKey,
			&payout.Credited,
			&payout.CreditedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payout: %w", err)
		}
		payouts = append(payouts, &payout)
	}
	return payouts, rows.Err()
}
