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

type eliminationService struct {
	contestRepo    interfaces.ContestRepository
	stakeRepo      interfaces.StakeRepository
	lobbyRoundRepo interfaces.LobbyRoundRepository
	predictionRepo interfaces.PredictionRepository
	priceAuditRepo interfaces.PriceAuditRepository
	priceProvider  interfaces.PriceProvider
	eventPublisher interfaces.EventPublisher
	ledger         interfaces.PoolLedgerService
	gracePeriod    time.Duration
}

// NewEliminationService creates the lobby driver for one transaction's
// repositories
func NewEliminationService(
	contestRepo interfaces.ContestRepository,
	stakeRepo interfaces.StakeRepository,
	lobbyRoundRepo interfaces.LobbyRoundRepository,
	predictionRepo interfaces.PredictionRepository,
	priceAuditRepo interfaces.PriceAuditRepository,
	priceProvider interfaces.PriceProvider,
	eventPublisher interfaces.EventPublisher,
	ledger interfaces.PoolLedgerService,
	gracePeriod time.Duration,
) interfaces.EliminationService {
	return &eliminationService{
		contestRepo:    contestRepo,
		stakeRepo:      stakeRepo,
		lobbyRoundRepo: lobbyRoundRepo,
		predictionRepo: predictionRepo,
		priceAuditRepo: priceAuditRepo,
		priceProvider:  priceProvider,
		eventPublisher: eventPublisher,
		ledger:         ledger,
		gracePeriod:    gracePeriod,
	}
}

// RegisterEntry joins a participant into an open lobby. The entry fee is
// an ordinary stake on the shared ledger, so the same gate, bounds and
// duplicate checks apply.
func (s *eliminationService) RegisterEntry(ctx context.Context, contestID uuid.UUID, participantID string, entryFee int64) (*entities.StakeReceipt, error) {
	return s.ledger.SubmitStake(ctx, contestID, participantID, entities.SideAlive, entryFee)
}

// SubmitPrediction records an alive entrant's call for the current round.
// Re-submitting inside the window replaces the earlier call.
func (s *eliminationService) SubmitPrediction(ctx context.Context, contestID uuid.UUID, participantID string, side entities.Side) error {
	if side != entities.SideUp && side != entities.SideDown {
		return entities.NewValidationError("prediction side must be up or down, got %q", side)
	}

	contest, err := s.contestRepo.GetByIDForUpdate(ctx, contestID)
	if err != nil {
		return fmt.Errorf("failed to lock contest: %w", err)
	}
	if contest == nil {
		return entities.NewValidationError("contest %s not found", contestID)
	}
	if contest.GameType != entities.GameTypeEliminationLobby {
		return entities.NewValidationError("contest %s is not an elimination lobby", contestID)
	}
	if contest.Phase != entities.ContestPhaseLocked {
		return entities.NewConflictError("lobby %s is not running (phase %s)", contestID, contest.Phase)
	}

	stakes, err := s.stakeRepo.GetByParticipant(ctx, contestID, participantID)
	if err != nil {
		return fmt.Errorf("failed to load entry: %w", err)
	}
	if len(stakes) == 0 {
		return entities.NewConflictError("participant %s is not entered in lobby %s", participantID, contestID)
	}
	if !stakes[0].IsAlive() {
		return entities.NewConflictError("participant %s was eliminated in round %d", participantID, *stakes[0].EliminatedRound)
	}

	round, err := s.lobbyRoundRepo.GetCurrent(ctx, contestID)
	if err != nil {
		return fmt.Errorf("failed to load current round: %w", err)
	}
	if round == nil || !round.PredictionWindowOpen(time.Now().UTC()) {
		return entities.NewConflictError("no open prediction window on lobby %s", contestID)
	}

	return s.predictionRepo.Upsert(ctx, &entities.Prediction{
		ContestID:     contestID,
		RoundNumber:   round.RoundNumber,
		ParticipantID: participantID,
		Side:          side,
		SubmittedAt:   time.Now().UTC(),
	})
}

// AdvanceLobby progresses the current round under the contest row lock
// held by the caller. Each call performs at most one step: open the first
// round, capture the round's lock price, or resolve the round and open the
// next. done reports that the lobby has a final result and should settle.
func (s *eliminationService) AdvanceLobby(ctx context.Context, contest *entities.Contest) (bool, error) {
	now := time.Now().UTC()

	round, err := s.lobbyRoundRepo.GetCurrent(ctx, contest.ID)
	if err != nil {
		return false, fmt.Errorf("failed to load current round: %w", err)
	}
	if round == nil {
		return false, s.openRound(ctx, contest, 1, now)
	}
	if round.Resolved {
		// Resolution already decided the lobby was done.
		return true, nil
	}

	if round.LockPrice == nil {
		if now.Before(round.LockAt) {
			return false, nil
		}
		price, ok, err := s.captureRoundPrice(ctx, contest, round, entities.PriceStageLock, now)
		if err != nil {
			return false, err
		}
		if !ok {
			if now.After(round.LockAt.Add(s.gracePeriod)) {
				// Without a lock price the round cannot judge anyone.
				// Skip it rather than punish entrants for a feed outage.
				return s.skipRound(ctx, contest, round, now)
			}
			return false, nil
		}
		round.LockPrice = &price
		if err := s.lobbyRoundRepo.Update(ctx, round); err != nil {
			return false, fmt.Errorf("failed to store round lock price: %w", err)
		}
		return false, nil
	}

	if now.Before(round.SettleAt) {
		return false, nil
	}
	price, ok, err := s.captureRoundPrice(ctx, contest, round, entities.PriceStageSettle, now)
	if err != nil {
		return false, err
	}
	if !ok {
		if now.After(round.SettleAt.Add(s.gracePeriod)) {
			return s.skipRound(ctx, contest, round, now)
		}
		return false, nil
	}
	round.SettlePrice = &price
	return s.resolveRound(ctx, contest, round, now)
}

// resolveRound eliminates entrants against the round's price movement.
// Alive entrants who never predicted are always out. When the price moved,
// predictors on the wrong side go with them; an unchanged price eliminates
// nobody who predicted.
func (s *eliminationService) resolveRound(ctx context.Context, contest *entities.Contest, round *entities.LobbyRound, now time.Time) (bool, error) {
	alive, err := s.stakeRepo.GetAlive(ctx, contest.ID)
	if err != nil {
		return false, fmt.Errorf("failed to load alive entrants: %w", err)
	}
	predictions, err := s.predictionRepo.GetByRound(ctx, contest.ID, round.RoundNumber)
	if err != nil {
		return false, fmt.Errorf("failed to load predictions: %w", err)
	}

	predicted := make(map[string]entities.Side, len(predictions))
	for _, p := range predictions {
		predicted[p.ParticipantID] = p.Side
	}

	var winningSide entities.Side
	switch {
	case *round.SettlePrice > *round.LockPrice:
		winningSide = entities.SideUp
	case *round.SettlePrice < *round.LockPrice:
		winningSide = entities.SideDown
	}

	var eliminated []string
	for _, entry := range alive {
		side, ok := predicted[entry.ParticipantID]
		if !ok {
			eliminated = append(eliminated, entry.ParticipantID)
			continue
		}
		if winningSide != "" && side != winningSide {
			eliminated = append(eliminated, entry.ParticipantID)
		}
	}

	if len(eliminated) > 0 {
		if err := s.stakeRepo.MarkEliminated(ctx, contest.ID, eliminated, round.RoundNumber); err != nil {
			return false, fmt.Errorf("failed to mark eliminations: %w", err)
		}
	}

	round.Resolved = true
	if err := s.lobbyRoundRepo.Update(ctx, round); err != nil {
		return false, fmt.Errorf("failed to resolve round: %w", err)
	}

	remaining := len(alive) - len(eliminated)
	log.WithFields(log.Fields{
		"contestID":  contest.ID,
		"round":      round.RoundNumber,
		"eliminated": len(eliminated),
		"remaining":  remaining,
	}).Info("Lobby round resolved")

	if err := s.eventPublisher.Publish(events.EntrantEliminatedEvent{
		ContestID:      contest.ID,
		RoundNumber:    round.RoundNumber,
		Eliminated:     eliminated,
		RemainingAlive: remaining,
	}); err != nil {
		log.WithError(err).Error("Failed to publish elimination event")
	}

	if remaining <= 1 || round.RoundNumber >= contest.Config.MaxRounds {
		return true, nil
	}
	return false, s.openRound(ctx, contest, round.RoundNumber+1, now)
}

// skipRound resolves a round without eliminations when its price data
// never arrived, then moves on
func (s *eliminationService) skipRound(ctx context.Context, contest *entities.Contest, round *entities.LobbyRound, now time.Time) (bool, error) {
	log.WithFields(log.Fields{
		"contestID": contest.ID,
		"round":     round.RoundNumber,
	}).Warn("Skipping lobby round, price data unavailable past grace period")

	round.Resolved = true
	if err := s.lobbyRoundRepo.Update(ctx, round); err != nil {
		return false, fmt.Errorf("failed to skip round: %w", err)
	}
	if round.RoundNumber >= contest.Config.MaxRounds {
		return true, nil
	}
	return false, s.openRound(ctx, contest, round.RoundNumber+1, now)
}

// openRound creates the next round and bumps the contest's round counter.
// Predictions are accepted until LockAt; the movement being judged runs
// from LockAt to SettleAt.
func (s *eliminationService) openRound(ctx context.Context, contest *entities.Contest, number int, now time.Time) error {
	duration := contest.Config.RoundDuration
	round := &entities.LobbyRound{
		ContestID:   contest.ID,
		RoundNumber: number,
		OpenAt:      now,
		LockAt:      now.Add(duration),
		SettleAt:    now.Add(2 * duration),
	}
	if err := s.lobbyRoundRepo.Create(ctx, round); err != nil {
		return fmt.Errorf("failed to open round %d: %w", number, err)
	}

	contest.CurrentRound = number
	if err := s.contestRepo.Update(ctx, contest); err != nil {
		return fmt.Errorf("failed to update contest round counter: %w", err)
	}

	log.WithFields(log.Fields{
		"contestID": contest.ID,
		"round":     number,
	}).Info("Lobby round opened")
	return nil
}

// captureRoundPrice fetches a verified price for the lobby's symbol and
// records the audit row
func (s *eliminationService) captureRoundPrice(ctx context.Context, contest *entities.Contest, round *entities.LobbyRound, stage entities.PriceStage, now time.Time) (int64, bool, error) {
	symbol := contest.Config.Symbols[0]
	snap, err := s.priceProvider.GetPrice(ctx, symbol)
	if err != nil || !snap.Verified {
		if err != nil {
			log.WithError(err).WithField("symbol", symbol).Warn("Round price capture failed")
		}
		return 0, false, nil
	}

	if err := s.priceAuditRepo.Record(ctx, &entities.PriceAudit{
		ContestID:  contest.ID,
		Round:      round.RoundNumber,
		Symbol:     symbol,
		Source:     snap.Source,
		Price:      snap.Price,
		Verified:   snap.Verified,
		Stage:      stage,
		RecordedAt: now,
	}); err != nil {
		return 0, false, fmt.Errorf("failed to record price audit: %w", err)
	}
	return snap.Price, true, nil
}
