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

type roundService struct {
	contestRepo    interfaces.ContestRepository
	stakeRepo      interfaces.StakeRepository
	settlementRepo interfaces.SettlementRepository
	gameStateRepo  interfaces.GameStateRepository
	priceAuditRepo interfaces.PriceAuditRepository
	priceProvider  interfaces.PriceProvider
	eventPublisher interfaces.EventPublisher
	elimination    interfaces.EliminationService
	gracePeriod    time.Duration
}

// NewRoundService creates the lifecycle driver for one transaction's
// repositories. All phase decisions and their writes happen under the
// contest row lock taken by GetByIDForUpdate.
func NewRoundService(
	contestRepo interfaces.ContestRepository,
	stakeRepo interfaces.StakeRepository,
	settlementRepo interfaces.SettlementRepository,
	gameStateRepo interfaces.GameStateRepository,
	priceAuditRepo interfaces.PriceAuditRepository,
	priceProvider interfaces.PriceProvider,
	eventPublisher interfaces.EventPublisher,
	elimination interfaces.EliminationService,
	gracePeriod time.Duration,
) interfaces.RoundService {
	return &roundService{
		contestRepo:    contestRepo,
		stakeRepo:      stakeRepo,
		settlementRepo: settlementRepo,
		gameStateRepo:  gameStateRepo,
		priceAuditRepo: priceAuditRepo,
		priceProvider:  priceProvider,
		eventPublisher: eventPublisher,
		elimination:    elimination,
		gracePeriod:    gracePeriod,
	}
}

// EvaluateContest advances a contest at most one phase. Time alone drives
// the decision, so a missed tick is healed by the next one and evaluating
// an up-to-date contest is a no-op.
func (s *roundService) EvaluateContest(ctx context.Context, contestID uuid.UUID) error {
	contest, err := s.contestRepo.GetByIDForUpdate(ctx, contestID)
	if err != nil {
		return fmt.Errorf("failed to lock contest: %w", err)
	}
	if contest == nil {
		return entities.NewValidationError("contest %s not found", contestID)
	}
	if contest.Phase.IsTerminal() {
		return nil
	}

	now := time.Now().UTC()

	switch contest.Phase {
	case entities.ContestPhaseScheduled:
		if !now.Before(contest.OpenAt) {
			return s.transition(ctx, contest, entities.ContestPhaseOpen, now)
		}
	case entities.ContestPhaseOpen:
		if !now.Before(contest.LockAt) {
			return s.lockContest(ctx, contest, now)
		}
	case entities.ContestPhaseLocked:
		return s.evaluateLocked(ctx, contest, now)
	case entities.ContestPhaseSettling:
		return s.settleContest(ctx, contest, now)
	}
	return nil
}

// lockContest closes the betting window. For price games the lock prices
// are captured here, in the same transaction that flips the phase, so the
// snapshot boundary and the reference prices agree. A lobby instead checks
// its entry floor and freezes the placement tier table.
func (s *roundService) lockContest(ctx context.Context, contest *entities.Contest, now time.Time) error {
	if contest.GameType == entities.GameTypeEliminationLobby {
		snapshot, err := s.stakeRepo.Snapshot(ctx, contest.ID)
		if err != nil {
			return fmt.Errorf("failed to snapshot lobby entries: %w", err)
		}
		if !contest.HasMinimumParticipants(snapshot.Count) {
			return s.voidContest(ctx, contest, now,
				fmt.Sprintf("only %d of %d required entrants", snapshot.Count, contest.Config.MinParticipants))
		}
		// The tier table freezes against the closing entrant count and
		// never changes afterwards, even as entrants get knocked out.
		contest.Config.PayoutTiersBps = entities.PayoutTiersForEntrants(snapshot.Count)
		return s.transition(ctx, contest, entities.ContestPhaseLocked, now)
	}

	ok, err := s.capturePrices(ctx, contest, entities.PriceStageLock, now)
	if err != nil {
		return err
	}
	if !ok {
		if now.After(contest.LockAt.Add(s.gracePeriod)) {
			return s.voidContest(ctx, contest, now, "lock price unavailable past grace period")
		}
		// Stay open and retry on the next tick; the betting gate is
		// already closed by LockAt regardless of phase.
		return nil
	}
	return s.transition(ctx, contest, entities.ContestPhaseLocked, now)
}

// evaluateLocked waits out the performance window for price games, or
// drives rounds for a lobby
func (s *roundService) evaluateLocked(ctx context.Context, contest *entities.Contest, now time.Time) error {
	if contest.GameType == entities.GameTypeEliminationLobby {
		done, err := s.elimination.AdvanceLobby(ctx, contest)
		if err != nil {
			return err
		}
		if done || !now.Before(contest.SettleAt) {
			return s.transition(ctx, contest, entities.ContestPhaseSettling, now)
		}
		return nil
	}

	if now.Before(contest.SettleAt) {
		return nil
	}
	ok, err := s.capturePrices(ctx, contest, entities.PriceStageSettle, now)
	if err != nil {
		return err
	}
	if !ok {
		if now.After(contest.SettleAt.Add(s.gracePeriod)) {
			return s.voidContest(ctx, contest, now, "settle price unavailable past grace period")
		}
		return nil
	}
	return s.transition(ctx, contest, entities.ContestPhaseSettling, now)
}

// settleContest runs the calculator against the frozen snapshot and writes
// the settlement record, its payout table, and the terminal phase in one
// transaction. Crediting happens after commit from the recorded table.
func (s *roundService) settleContest(ctx context.Context, contest *entities.Contest, now time.Time) error {
	existing, err := s.settlementRepo.GetByContest(ctx, contest.ID)
	if err != nil {
		return fmt.Errorf("failed to check existing settlement: %w", err)
	}
	if existing != nil {
		// A previous pass settled but crashed before the phase write.
		return s.finishSettlement(ctx, contest, existing, now)
	}

	snapshot, err := s.stakeRepo.Snapshot(ctx, contest.ID)
	if err != nil {
		return fmt.Errorf("failed to snapshot pool: %w", err)
	}

	calc, err := CalculatorFor(contest.GameType)
	if err != nil {
		return err
	}
	record, err := calc.Calculate(contest, snapshot)
	if err != nil {
		return err
	}
	if err := record.Reconcile(snapshot.TotalPool()); err != nil {
		return err
	}

	if err := s.settlementRepo.Create(ctx, record); err != nil {
		return fmt.Errorf("failed to create settlement: %w", err)
	}
	if err := s.gameStateRepo.RecordSettlement(ctx, contest.GameType, record.TotalPool, record.FeeAmount); err != nil {
		return fmt.Errorf("failed to record settlement counters: %w", err)
	}

	return s.finishSettlement(ctx, contest, record, now)
}

// finishSettlement moves the contest to its terminal phase and emits the
// settlement notification
func (s *roundService) finishSettlement(ctx context.Context, contest *entities.Contest, record *entities.SettlementRecord, now time.Time) error {
	payouts := make(map[string]int64, len(record.Payouts))
	for _, p := range record.Payouts {
		payouts[p.ParticipantID] = p.Amount
	}

	if record.Outcome == entities.OutcomeVoid {
		reason := "voided by settlement"
		contest.VoidReason = &reason
		contest.SettledAt = &now
		if err := s.transition(ctx, contest, entities.ContestPhaseVoided, now); err != nil {
			return err
		}
		s.publish(events.ContestVoidedEvent{
			ContestID: contest.ID,
			GameType:  contest.GameType,
			Reason:    reason,
			TotalPool: record.TotalPool,
			Payouts:   payouts,
		})
		return nil
	}

	contest.SettledAt = &now
	if err := s.transition(ctx, contest, entities.ContestPhaseSettled, now); err != nil {
		return err
	}
	s.publish(events.ContestSettledEvent{
		ContestID: contest.ID,
		GameType:  contest.GameType,
		Outcome:   record.Outcome,
		FeeBps:    record.FeeBps,
		FeeAmount: record.FeeAmount,
		TotalPool: record.TotalPool,
		Payouts:   payouts,
	})
	return nil
}

// voidContest is the fail-safe: write a full-refund settlement for
// whatever was staked and park the contest in voided
func (s *roundService) voidContest(ctx context.Context, contest *entities.Contest, now time.Time, reason string) error {
	log.WithFields(log.Fields{
		"contestID": contest.ID,
		"gameType":  contest.GameType,
		"reason":    reason,
	}).Warn("Voiding contest")

	snapshot, err := s.stakeRepo.Snapshot(ctx, contest.ID)
	if err != nil {
		return fmt.Errorf("failed to snapshot pool: %w", err)
	}

	payouts := make(map[string]int64, snapshot.Count)
	if snapshot.Count > 0 {
		record := RefundRecord(contest, snapshot, entities.OutcomeVoid)
		if err := record.Reconcile(snapshot.TotalPool()); err != nil {
			return err
		}
		if err := s.settlementRepo.Create(ctx, record); err != nil {
			return fmt.Errorf("failed to create refund settlement: %w", err)
		}
		for _, p := range record.Payouts {
			payouts[p.ParticipantID] = p.Amount
		}
	}

	contest.VoidReason = &reason
	contest.SettledAt = &now
	if err := s.transition(ctx, contest, entities.ContestPhaseVoided, now); err != nil {
		return err
	}
	s.publish(events.ContestVoidedEvent{
		ContestID: contest.ID,
		GameType:  contest.GameType,
		Reason:    reason,
		TotalPool: snapshot.TotalPool(),
		Payouts:   payouts,
	})
	return nil
}

// capturePrices records a verified snapshot per tracked symbol, set-once.
// Returns false without error when the provider cannot serve a verified
// price yet; the caller decides between retry and void.
func (s *roundService) capturePrices(ctx context.Context, contest *entities.Contest, stage entities.PriceStage, now time.Time) (bool, error) {
	for _, symbol := range contest.Config.Symbols {
		if stage == entities.PriceStageLock {
			if _, ok := contest.LockPrices[symbol]; ok {
				continue
			}
		} else {
			if _, ok := contest.SettlePrices[symbol]; ok {
				continue
			}
		}

		snap, err := s.priceProvider.GetPrice(ctx, symbol)
		if err != nil || !snap.Verified {
			if err != nil {
				log.WithError(err).WithField("symbol", symbol).Warn("Price capture failed")
			}
			return false, nil
		}

		if stage == entities.PriceStageLock {
			contest.SetLockPrice(symbol, snap.Price)
		} else {
			contest.SetSettlePrice(symbol, snap.Price)
		}

		if err := s.priceAuditRepo.Record(ctx, &entities.PriceAudit{
			ContestID:  contest.ID,
			Round:      contest.CurrentRound,
			Symbol:     symbol,
			Source:     snap.Source,
			Price:      snap.Price,
			Verified:   snap.Verified,
			Stage:      stage,
			RecordedAt: now,
		}); err != nil {
			return false, fmt.Errorf("failed to record price audit: %w", err)
		}
	}
	return true, nil
}

// transition validates, persists and announces a phase change
func (s *roundService) transition(ctx context.Context, contest *entities.Contest, next entities.ContestPhase, now time.Time) error {
	old := contest.Phase
	if !old.CanTransitionTo(next) {
		return entities.NewInvariantViolation(fmt.Sprintf(
			"illegal transition %s -> %s for contest %s", old, next, contest.ID))
	}
	contest.Phase = next
	if err := s.contestRepo.Update(ctx, contest); err != nil {
		return fmt.Errorf("failed to update contest phase: %w", err)
	}

	log.WithFields(log.Fields{
		"contestID": contest.ID,
		"gameType":  contest.GameType,
		"from":      old,
		"to":        next,
	}).Info("Contest phase changed")

	s.publish(events.ContestPhaseChangedEvent{
		ContestID: contest.ID,
		GameType:  contest.GameType,
		OldPhase:  old,
		NewPhase:  next,
	})
	return nil
}

func (s *roundService) publish(event events.Event) {
	if err := s.eventPublisher.Publish(event); err != nil {
		log.WithError(err).WithField("eventType", event.Type()).Error("Failed to publish event")
	}
}
