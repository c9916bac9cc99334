package application

import (
	"context"

	"collateralcombat/domain/interfaces"
)

// UnitOfWork defines the interface for transactional repository operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Repository getters
	ContestRepository() interfaces.ContestRepository
	StakeRepository() interfaces.StakeRepository
	SettlementRepository() interfaces.SettlementRepository
	LobbyRoundRepository() interfaces.LobbyRoundRepository
	PredictionRepository() interfaces.PredictionRepository
	PriceAuditRepository() interfaces.PriceAuditRepository
	GameStateRepository() interfaces.GameStateRepository
	EventBus() interfaces.EventPublisher
}

// UnitOfWorkFactory creates UnitOfWork instances
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}
