package application

import (
	"context"

	"github.com/stretchr/testify/mock"

	"collateralcombat/domain/interfaces"
	"collateralcombat/domain/testhelpers"
)

// mockUnitOfWork backs application-layer tests with the shared repository
// mocks; Begin/Commit/Rollback are recorded but always succeed
type mockUnitOfWork struct {
	mock.Mock

	contestRepo    *testhelpers.MockContestRepository
	stakeRepo      *testhelpers.MockStakeRepository
	settlementRepo *testhelpers.MockSettlementRepository
	lobbyRoundRepo *testhelpers.MockLobbyRoundRepository
	predictionRepo *testhelpers.MockPredictionRepository
	priceAuditRepo *testhelpers.MockPriceAuditRepository
	gameStateRepo  *testhelpers.MockGameStateRepository
	publisher      *testhelpers.MockEventPublisher
}

func newMockUnitOfWork() *mockUnitOfWork {
	return &mockUnitOfWork{
		contestRepo:    new(testhelpers.MockContestRepository),
		stakeRepo:      new(testhelpers.MockStakeRepository),
		settlementRepo: new(testhelpers.MockSettlementRepository),
		lobbyRoundRepo: new(testhelpers.MockLobbyRoundRepository),
		predictionRepo: new(testhelpers.MockPredictionRepository),
		priceAuditRepo: new(testhelpers.MockPriceAuditRepository),
		gameStateRepo:  new(testhelpers.MockGameStateRepository),
		publisher:      new(testhelpers.MockEventPublisher),
	}
}

func (m *mockUnitOfWork) Begin(ctx context.Context) error { return nil }
func (m *mockUnitOfWork) Commit() error                   { return nil }
func (m *mockUnitOfWork) Rollback() error                 { return nil }

func (m *mockUnitOfWork) ContestRepository() interfaces.ContestRepository {
	return m.contestRepo
}
func (m *mockUnitOfWork) StakeRepository() interfaces.StakeRepository {
	return m.stakeRepo
}
func (m *mockUnitOfWork) SettlementRepository() interfaces.SettlementRepository {
	return m.settlementRepo
}
func (m *mockUnitOfWork) LobbyRoundRepository() interfaces.LobbyRoundRepository {
	return m.lobbyRoundRepo
}
func (m *mockUnitOfWork) PredictionRepository() interfaces.PredictionRepository {
	return m.predictionRepo
}
func (m *mockUnitOfWork) PriceAuditRepository() interfaces.PriceAuditRepository {
	return m.priceAuditRepo
}
func (m *mockUnitOfWork) GameStateRepository() interfaces.GameStateRepository {
	return m.gameStateRepo
}
func (m *mockUnitOfWork) EventBus() interfaces.EventPublisher {
	return m.publisher
}

// mockUnitOfWorkFactory hands out the same mock unit of work every time so
// tests can set expectations on one set of repository mocks
type mockUnitOfWorkFactory struct {
	uow *mockUnitOfWork
}

func (f *mockUnitOfWorkFactory) Create() UnitOfWork {
	return f.uow
}
