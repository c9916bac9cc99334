package testhelpers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"collateralcombat/domain/entities"
	"collateralcombat/domain/events"
)

// MockContestRepository is a mock implementation of ContestRepository
type MockContestRepository struct {
	mock.Mock
}

func (m *MockContestRepository) Create(ctx context.Context, contest *entities.Contest) error {
	args := m.Called(ctx, contest)
	return args.Error(0)
}

func (m *MockContestRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Contest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Contest), args.Error(1)
}

func (m *MockContestRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Contest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Contest), args.Error(1)
}

func (m *MockContestRepository) GetCurrentByGameType(ctx context.Context, gameType entities.GameType) (*entities.Contest, error) {
	args := m.Called(ctx, gameType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Contest), args.Error(1)
}

func (m *MockContestRepository) GetActive(ctx context.Context) ([]*entities.Contest, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Contest), args.Error(1)
}

func (m *MockContestRepository) Update(ctx context.Context, contest *entities.Contest) error {
	args := m.Called(ctx, contest)
	return args.Error(0)
}

func (m *MockContestRepository) ArchiveSettledBefore(ctx context.Context, cutoff time.Time) (int, error) {
	args := m.Called(ctx, cutoff)
	return args.Int(0), args.Error(1)
}

// MockStakeRepository is a mock implementation of StakeRepository
type MockStakeRepository struct {
	mock.Mock
}

func (m *MockStakeRepository) Create(ctx context.Context, stake *entities.Stake) error {
	args := m.Called(ctx, stake)
	return args.Error(0)
}

func (m *MockStakeRepository) GetByContest(ctx context.Context, contestID uuid.UUID) ([]*entities.Stake, error) {
	args := m.Called(ctx, contestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Stake), args.Error(1)
}

func (m *MockStakeRepository) GetByParticipant(ctx context.Context, contestID uuid.UUID, participantID string) ([]*entities.Stake, error) {
	args := m.Called(ctx, contestID, participantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Stake), args.Error(1)
}

func (m *MockStakeRepository) Snapshot(ctx context.Context, contestID uuid.UUID) (*entities.PoolSnapshot, error) {
	args := m.Called(ctx, contestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PoolSnapshot), args.Error(1)
}

func (m *MockStakeRepository) MarkEliminated(ctx context.Context, contestID uuid.UUID, participantIDs []string, round int) error {
	args := m.Called(ctx, contestID, participantIDs, round)
	return args.Error(0)
}

func (m *MockStakeRepository) GetAlive(ctx context.Context, contestID uuid.UUID) ([]*entities.Stake, error) {
	args := m.Called(ctx, contestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Stake), args.Error(1)
}

// MockSettlementRepository is a mock implementation of SettlementRepository
type MockSettlementRepository struct {
	mock.Mock
}

func (m *MockSettlementRepository) Create(ctx context.Context, record *entities.SettlementRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockSettlementRepository) GetByContest(ctx context.Context, contestID uuid.UUID) (*entities.SettlementRecord, error) {
	args := m.Called(ctx, contestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.SettlementRecord), args.Error(1)
}

func (m *MockSettlementRepository) GetUncreditedPayouts(ctx context.Context, contestID uuid.UUID) ([]*entities.Payout, error) {
	args := m.Called(ctx, contestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Payout), args.Error(1)
}

func (m *MockSettlementRepository) MarkPayoutCredited(ctx context.Context, payoutID int64) error {
	args := m.Called(ctx, payoutID)
	return args.Error(0)
}

func (m *MockSettlementRepository) GetContestsWithUncreditedPayouts(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

// MockLobbyRoundRepository is a mock implementation of LobbyRoundRepository
type MockLobbyRoundRepository struct {
	mock.Mock
}

func (m *MockLobbyRoundRepository) Create(ctx context.Context, round *entities.LobbyRound) error {
	args := m.Called(ctx, round)
	return args.Error(0)
}

func (m *MockLobbyRoundRepository) GetCurrent(ctx context.Context, contestID uuid.UUID) (*entities.LobbyRound, error) {
	args := m.Called(ctx, contestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.LobbyRound), args.Error(1)
}

func (m *MockLobbyRoundRepository) GetByNumber(ctx context.Context, contestID uuid.UUID, roundNumber int) (*entities.LobbyRound, error) {
	args := m.Called(ctx, contestID, roundNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.LobbyRound), args.Error(1)
}

func (m *MockLobbyRoundRepository) Update(ctx context.Context, round *entities.LobbyRound) error {
	args := m.Called(ctx, round)
	return args.Error(0)
}

// MockPredictionRepository is a mock implementation of PredictionRepository
type MockPredictionRepository struct {
	mock.Mock
}

func (m *MockPredictionRepository) Upsert(ctx context.Context, prediction *entities.Prediction) error {
	args := m.Called(ctx, prediction)
	return args.Error(0)
}

func (m *MockPredictionRepository) GetByRound(ctx context.Context, contestID uuid.UUID, roundNumber int) ([]*entities.Prediction, error) {
	args := m.Called(ctx, contestID, roundNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Prediction), args.Error(1)
}

// MockPriceAuditRepository is a mock implementation of PriceAuditRepository
type MockPriceAuditRepository struct {
	mock.Mock
}

func (m *MockPriceAuditRepository) Record(ctx context.Context, audit *entities.PriceAudit) error {
	args := m.Called(ctx, audit)
	return args.Error(0)
}

func (m *MockPriceAuditRepository) GetByContest(ctx context.Context, contestID uuid.UUID) ([]*entities.PriceAudit, error) {
	args := m.Called(ctx, contestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.PriceAudit), args.Error(1)
}

// MockGameStateRepository is a mock implementation of GameStateRepository
type MockGameStateRepository struct {
	mock.Mock
}

func (m *MockGameStateRepository) Get(ctx context.Context, gameType entities.GameType) (*entities.GameState, error) {
	args := m.Called(ctx, gameType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.GameState), args.Error(1)
}

func (m *MockGameStateRepository) SetPaused(ctx context.Context, gameType entities.GameType, paused bool) error {
	args := m.Called(ctx, gameType, paused)
	return args.Error(0)
}

func (m *MockGameStateRepository) RecordSettlement(ctx context.Context, gameType entities.GameType, volume, fees int64) error {
	args := m.Called(ctx, gameType, volume, fees)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) error {
	args := m.Called(event)
	return args.Error(0)
}
