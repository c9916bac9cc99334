package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"collateralcombat/config"
	"collateralcombat/domain/entities"
	"collateralcombat/domain/interfaces"
)

type contestScheduler struct {
	cfg        *config.Config
	uowFactory UnitOfWorkFactory

	mu      sync.RWMutex
	current map[entities.GameType]uuid.UUID
}

// NewContestScheduler creates the scheduler. The scheduler owns the
// current-contest registry: nothing else writes it, and reads go through
// CurrentContestID without touching storage.
func NewContestScheduler(uowFactory UnitOfWorkFactory) interfaces.ContestSchedulerService {
	return &contestScheduler{
		cfg:        config.Get(),
		uowFactory: uowFactory,
		current:    make(map[entities.GameType]uuid.UUID),
	}
}

// EnsureCurrentContest returns the game type's non-terminal contest,
// creating the next one when the previous reached a terminal phase. The
// partial unique index on contests backs the one-per-game-type invariant
// even if two instances race here.
func (s *contestScheduler) EnsureCurrentContest(ctx context.Context, gameType entities.GameType) (*entities.Contest, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	existing, err := uow.ContestRepository().GetCurrentByGameType(ctx, gameType)
	if err != nil {
		return nil, fmt.Errorf("failed to load current contest: %w", err)
	}
	if existing != nil {
		if err := uow.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit: %w", err)
		}
		s.remember(gameType, existing.ID)
		return existing, nil
	}

	state, err := uow.GameStateRepository().Get(ctx, gameType)
	if err != nil {
		return nil, fmt.Errorf("failed to load game state: %w", err)
	}
	if state.Paused {
		// In-flight contests still run to settlement while paused; only
		// creation stops.
		if err := uow.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit: %w", err)
		}
		s.forget(gameType)
		return nil, nil
	}

	contest := s.buildContest(gameType, time.Now().UTC())
	if err := uow.ContestRepository().Create(ctx, contest); err != nil {
		return nil, fmt.Errorf("failed to create contest: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	s.remember(gameType, contest.ID)
	log.WithFields(log.Fields{
		"contestID": contest.ID,
		"gameType":  gameType,
		"openAt":    contest.OpenAt,
		"lockAt":    contest.LockAt,
		"settleAt":  contest.SettleAt,
	}).Info("Contest created")
	return contest, nil
}

// CurrentContestID reads the owned registry
func (s *contestScheduler) CurrentContestID(gameType entities.GameType) (uuid.UUID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.current[gameType]
	return id, ok
}

func (s *contestScheduler) remember(gameType entities.GameType, id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current[gameType] = id
}

func (s *contestScheduler) forget(gameType entities.GameType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.current, gameType)
}

// buildContest derives the next contest's window deterministically from
// the clock and the configured cadence
func (s *contestScheduler) buildContest(gameType entities.GameType, now time.Time) *entities.Contest {
	contest := &entities.Contest{
		ID:           uuid.New(),
		GameType:     gameType,
		Phase:        entities.ContestPhaseScheduled,
		LockPrices:   make(map[string]int64),
		SettlePrices: make(map[string]int64),
		CreatedAt:    now,
	}

	switch gameType {
	case entities.GameTypeBinaryRound:
		// Rounds align to their duration so every instance derives the
		// same boundaries from the same clock.
		open := now.Truncate(s.cfg.RoundDuration).Add(s.cfg.RoundDuration)
		contest.OpenAt = open
		contest.SettleAt = open.Add(s.cfg.RoundDuration)
		contest.LockAt = contest.SettleAt.Add(-s.cfg.LockBuffer)
		contest.Config = entities.ContestConfig{
			Symbols:          []string{s.cfg.RoundSymbol},
			FeeBps:           s.cfg.RoundFeeBps,
			MinStake:         s.cfg.MinStake,
			MaxStake:         s.cfg.MaxStake,
			DrawThresholdBps: s.cfg.DrawThresholdBps,
		}

	case entities.GameTypeRelativeBattle:
		contest.OpenAt = now
		contest.LockAt = now.Add(s.cfg.BattleDuration)
		contest.SettleAt = contest.LockAt.Add(s.cfg.BattleDuration)
		contest.Config = entities.ContestConfig{
			Symbols:           append([]string(nil), s.cfg.BattleSymbols...),
			FeeBps:            s.cfg.BattleFeeBps,
			MinStake:          s.cfg.MinStake,
			MaxStake:          s.cfg.MaxStake,
			MinSettlementPool: s.cfg.MinSettlementPool,
		}

	case entities.GameTypeEliminationLobby:
		contest.OpenAt = now
		contest.LockAt = now.Add(s.cfg.LobbyRegistration)
		// Upper bound: every round takes a prediction window plus a
		// movement window, and feed outages can stretch each by the
		// grace period.
		worstRound := 2*s.cfg.LobbyRoundDuration + s.cfg.GracePeriod
		contest.SettleAt = contest.LockAt.Add(time.Duration(s.cfg.LobbyMaxRounds) * worstRound)
		contest.Config = entities.ContestConfig{
			Symbols:         []string{s.cfg.RoundSymbol},
			FeeBps:          s.cfg.LobbyFeeBps,
			MinStake:        s.cfg.MinStake,
			MaxStake:        s.cfg.MaxStake,
			MinParticipants: s.cfg.LobbyMinEntrants,
			MaxParticipants: s.cfg.LobbyMaxEntrants,
			MaxRounds:       s.cfg.LobbyMaxRounds,
			RoundDuration:   s.cfg.LobbyRoundDuration,
		}
	}

	return contest
}
