package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"collateralcombat/database"
	"collateralcombat/domain/entities"
	"collateralcombat/domain/interfaces"
)

// PredictionRepository implements per-round prediction access
type PredictionRepository struct {
	q Queryable
}

// NewPredictionRepository creates a pool-backed prediction repository
func NewPredictionRepository(db *database.DB) *PredictionRepository {
	return &PredictionRepository{q: db.Pool}
}

// NewPredictionRepositoryWithTx creates a prediction repository bound to a transaction
func NewPredictionRepositoryWithTx(tx Queryable) interfaces.PredictionRepository {
	return &PredictionRepository{q: tx}
}

// Upsert stores or replaces a participant's call for a round. Resubmitting
// inside the window overwrites the earlier side.
func (r *PredictionRepository) Upsert(ctx context.Context, prediction *entities.Prediction) error {
	query := `
		INSERT INTO predictions (contest_id, round_number, participant_id, side, submitted_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (contest_id, round_number, participant_id)
		DO UPDATE SET side = EXCLUDED.side, submitted_at = EXCLUDED.submitted_at
		RETURNING id
	`
	err := r.q.QueryRow(ctx, query,
		prediction.ContestID,
		prediction.RoundNumber,
		prediction.ParticipantID,
		prediction.Side,
		prediction.SubmittedAt,
	).Scan(&prediction.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert prediction: %w", err)
	}
	return nil
}

// GetByRound returns all predictions for one lobby round
func (r *PredictionRepository) GetByRound(ctx context.Context, contestID uuid.UUID, roundNumber int) ([]*entities.Prediction, error) {
	query := `
		SELECT id, contest_id, round_number, participant_id, side, submitted_at
		FROM predictions
		WHERE contest_id = $1 AND round_number = $2
		ORDER BY submitted_at, id
	`
	rows, err := r.q.Query(ctx, query, contestID, roundNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var predictions []*entities.Prediction
	for rows.Next() {
		var p entities.Prediction
		if err := rows.Scan(
			&p.ID,
			&p.ContestID,
			&p.RoundNumber,
			&p.ParticipantID,
			&p.Side,
			&p.SubmittedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		predictions = append(predictions, &p)
	}
	return predictions, rows.Err()
}
