package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"collateralcombat/application"
	"collateralcombat/database"
	"collateralcombat/domain/interfaces"
	"collateralcombat/events"
)

// unitOfWork implements application.UnitOfWork over one pgx transaction
type unitOfWork struct {
	db             *database.DB
	tx             pgx.Tx
	ctx            context.Context
	txPublisher    *events.TransactionalPublisher
	contestRepo    interfaces.ContestRepository
	stakeRepo      interfaces.StakeRepository
	settlementRepo interfaces.SettlementRepository
	lobbyRoundRepo interfaces.LobbyRoundRepository
	predictionRepo interfaces.PredictionRepository
	priceAuditRepo interfaces.PriceAuditRepository
	gameStateRepo  interfaces.GameStateRepository
}

type unitOfWorkFactory struct {
	db        *database.DB
	publisher interfaces.EventPublisher
}

// NewUnitOfWorkFactory creates a new UnitOfWork factory. Events published
// inside a unit of work buffer until its transaction commits.
func NewUnitOfWorkFactory(db *database.DB, publisher interfaces.EventPublisher) application.UnitOfWorkFactory {
	return &unitOfWorkFactory{
		db:        db,
		publisher: publisher,
	}
}

func (f *unitOfWorkFactory) Create() application.UnitOfWork {
	return &unitOfWork{
		db:          f.db,
		txPublisher: events.NewTransactionalPublisher(f.publisher),
	}
}

// Begin starts a new transaction and binds the repositories to it
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx

	u.contestRepo = NewContestRepositoryWithTx(tx)
	u.stakeRepo = NewStakeRepositoryWithTx(tx)
	u.settlementRepo = NewSettlementRepositoryWithTx(tx)
	u.lobbyRoundRepo = NewLobbyRoundRepositoryWithTx(tx)
	u.predictionRepo = NewPredictionRepositoryWithTx(tx)
	u.priceAuditRepo = NewPriceAuditRepositoryWithTx(tx)
	u.gameStateRepo = NewGameStateRepositoryWithTx(tx)

	return nil
}

// Commit commits the transaction, then flushes buffered events
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	if err := u.tx.Commit(u.ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	u.tx = nil

	if u.txPublisher != nil {
		u.txPublisher.Flush(u.ctx)
	}
	return nil
}

// Rollback rolls back the transaction and discards buffered events. Safe to
// defer: a no-op after Commit.
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	u.tx = nil

	if u.txPublisher != nil {
		u.txPublisher.Discard()
	}
	return nil
}

func (u *unitOfWork) ContestRepository() interfaces.ContestRepository {
	if u.contestRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.contestRepo
}

func (u *unitOfWork) StakeRepository() interfaces.StakeRepository {
	if u.stakeRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.stakeRepo
}

func (u *unitOfWork) SettlementRepository() interfaces.SettlementRepository {
	if u.settlementRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.settlementRepo
}

func (u *unitOfWork) LobbyRoundRepository() interfaces.LobbyRoundRepository {
	if u.lobbyRoundRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.lobbyRoundRepo
}

func (u *unitOfWork) PredictionRepository() interfaces.PredictionRepository {
	if u.predictionRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.predictionRepo
}

func (u *unitOfWork) PriceAuditRepository() interfaces.PriceAuditRepository {
	if u.priceAuditRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.priceAuditRepo
}

func (u *unitOfWork) GameStateRepository() interfaces.GameStateRepository {
	if u.gameStateRepo == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.gameStateRepo
}

// EventBus returns the transactional publisher for this unit of work
func (u *unitOfWork) EventBus() interfaces.EventPublisher {
	if u.txPublisher == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.txPublisher
}
