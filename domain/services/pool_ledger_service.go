package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"collateralcombat/domain/entities"
	"collateralcombat/domain/events"
	"collateralcombat/domain/interfaces"
)

type poolLedgerService struct {
	contestRepo    interfaces.ContestRepository
	stakeRepo      interfaces.StakeRepository
	eventPublisher interfaces.EventPublisher
}

// NewPoolLedgerService creates a pool ledger bound to one transaction's
// repositories. SubmitStake relies on the contest row lock the repositories
// take, so the caller must run it inside a unit of work.
func NewPoolLedgerService(
	contestRepo interfaces.ContestRepository,
	stakeRepo interfaces.StakeRepository,
	eventPublisher interfaces.EventPublisher,
) interfaces.PoolLedgerService {
	return &poolLedgerService{
		contestRepo:    contestRepo,
		stakeRepo:      stakeRepo,
		eventPublisher: eventPublisher,
	}
}

// SubmitStake validates and appends a stake under the contest row lock.
// The same lock serializes the close-and-snapshot transition, so a stake
// that commits is in the settlement snapshot and a stake that loses the
// race to the gate is rejected, never half-counted.
func (s *poolLedgerService) SubmitStake(ctx context.Context, contestID uuid.UUID, participantID string, side entities.Side, amount int64) (*entities.StakeReceipt, error) {
	if participantID == "" {
		return nil, entities.NewValidationError("participant id cannot be empty")
	}
	if amount <= 0 {
		return nil, entities.NewValidationError("stake amount must be positive, got %d", amount)
	}

	contest, err := s.contestRepo.GetByIDForUpdate(ctx, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock contest: %w", err)
	}
	if contest == nil {
		return nil, entities.NewValidationError("contest %s not found", contestID)
	}

	now := time.Now().UTC()
	if !contest.CanAcceptStakes(now) {
		return nil, entities.NewConflictError("contest %s is not accepting stakes (phase %s)", contestID, contest.Phase)
	}
	if err := validateSide(contest, side); err != nil {
		return nil, err
	}
	if amount < contest.Config.MinStake {
		return nil, entities.NewValidationError("stake %d below minimum %d", amount, contest.Config.MinStake)
	}
	if contest.Config.MaxStake > 0 && amount > contest.Config.MaxStake {
		return nil, entities.NewValidationError("stake %d above maximum %d", amount, contest.Config.MaxStake)
	}

	existing, err := s.stakeRepo.GetByParticipant(ctx, contestID, participantID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing stakes: %w", err)
	}
	if len(existing) > 0 {
		return nil, entities.NewConflictError("participant %s already staked on contest %s", participantID, contestID)
	}

	snapshot, err := s.stakeRepo.Snapshot(ctx, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to read pool totals: %w", err)
	}
	if snapshot.SideTotal(side)+amount > entities.MaxPoolLamports {
		return nil, entities.NewValidationError("stake would overflow the %s pool", side)
	}
	if contest.Config.MaxParticipants > 0 && snapshot.Count >= contest.Config.MaxParticipants {
		return nil, entities.NewConflictError("contest %s is full", contestID)
	}

	stake := &entities.Stake{
		ContestID:     contestID,
		ParticipantID: participantID,
		Side:          side,
		Amount:        amount,
		PlacedAt:      now,
	}
	if err := s.stakeRepo.Create(ctx, stake); err != nil {
		return nil, fmt.Errorf("failed to create stake: %w", err)
	}

	if err := s.eventPublisher.Publish(events.StakeAcceptedEvent{
		ContestID:     contestID,
		GameType:      contest.GameType,
		ParticipantID: participantID,
		Side:          side,
		Amount:        amount,
	}); err != nil {
		log.WithError(err).Error("Failed to publish stake accepted event")
	}

	log.WithFields(log.Fields{
		"contestID":     contestID,
		"participantID": participantID,
		"side":          side,
		"amount":        amount,
	}).Info("Stake accepted")

	return &entities.StakeReceipt{
		StakeID:       stake.ID,
		ContestID:     contestID,
		ParticipantID: participantID,
		Side:          side,
		Amount:        amount,
		PlacedAt:      stake.PlacedAt,
	}, nil
}

// Snapshot returns the committed pool state, totals computed from the
// stake rows themselves
func (s *poolLedgerService) Snapshot(ctx context.Context, contestID uuid.UUID) (*entities.PoolSnapshot, error) {
	snapshot, err := s.stakeRepo.Snapshot(ctx, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot pool: %w", err)
	}
	return snapshot, nil
}

// validateSide checks the side against the contest's game type
func validateSide(contest *entities.Contest, side entities.Side) error {
	switch contest.GameType {
	case entities.GameTypeBinaryRound:
		if side != entities.SideUp && side != entities.SideDown {
			return entities.NewValidationError("binary round side must be up or down, got %q", side)
		}
	case entities.GameTypeRelativeBattle:
		if !contest.TracksSymbol(string(side)) {
			return entities.NewValidationError("battle side must be one of %v, got %q", contest.Config.Symbols, side)
		}
	case entities.GameTypeEliminationLobby:
		if side != entities.SideAlive {
			return entities.NewValidationError("lobby entries do not pick a side")
		}
	default:
		return entities.NewValidationError("unknown game type %q", contest.GameType)
	}
	return nil
}
