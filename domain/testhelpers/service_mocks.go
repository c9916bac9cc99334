package testhelpers

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"collateralcombat/domain/entities"
)

// MockPriceProvider is a mock implementation of PriceProvider
type MockPriceProvider struct {
	mock.Mock
}

func (m *MockPriceProvider) GetPrice(ctx context.Context, symbol string) (*entities.PriceSnapshot, error) {
	args := m.Called(ctx, symbol)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PriceSnapshot), args.Error(1)
}

// MockBalanceCreditor is a mock implementation of BalanceCreditor
type MockBalanceCreditor struct {
	mock.Mock
}

func (m *MockBalanceCreditor) Credit(ctx context.Context, participantID string, amount int64, idempotencyKey string) error {
	args := m.Called(ctx, participantID, amount, idempotencyKey)
	return args.Error(0)
}

// MockPoolLedgerService is a mock implementation of PoolLedgerService
type MockPoolLedgerService struct {
	mock.Mock
}

func (m *MockPoolLedgerService) SubmitStake(ctx context.Context, contestID uuid.UUID, participantID string, side entities.Side, amount int64) (*entities.StakeReceipt, error) {
	args := m.Called(ctx, contestID, participantID, side, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.StakeReceipt), args.Error(1)
}

func (m *MockPoolLedgerService) Snapshot(ctx context.Context, contestID uuid.UUID) (*entities.PoolSnapshot, error) {
	args := m.Called(ctx, contestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PoolSnapshot), args.Error(1)
}

// MockEliminationService is a mock implementation of EliminationService
type MockEliminationService struct {
	mock.Mock
}

func (m *MockEliminationService) RegisterEntry(ctx context.Context, contestID uuid.UUID, participantID string, entryFee int64) (*entities.StakeReceipt, error) {
	args := m.Called(ctx, contestID, participantID, entryFee)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.StakeReceipt), args.Error(1)
}

func (m *MockEliminationService) SubmitPrediction(ctx context.Context, contestID uuid.UUID, participantID string, side entities.Side) error {
	args := m.Called(ctx, contestID, participantID, side)
	return args.Error(0)
}

func (m *MockEliminationService) AdvanceLobby(ctx context.Context, contest *entities.Contest) (bool, error) {
	args := m.Called(ctx, contest)
	return args.Bool(0), args.Error(1)
}
