package application

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"collateralcombat/config"
	"collateralcombat/domain/entities"
	"collateralcombat/domain/interfaces"
	"collateralcombat/domain/services"
)

type participantGateway struct {
	uowFactory    UnitOfWorkFactory
	priceProvider interfaces.PriceProvider
	cfg           *config.Config
}

// NewParticipantGateway creates the transactional facade behind the
// request-reply surface. Every call opens one unit of work, builds the
// domain services over its repositories and commits on success, so stake
// traffic serializes against the engine's own phase evaluation on the
// contest row lock.
func NewParticipantGateway(uowFactory UnitOfWorkFactory, priceProvider interfaces.PriceProvider) interfaces.ParticipantGateway {
	return &participantGateway{
		uowFactory:    uowFactory,
		priceProvider: priceProvider,
		cfg:           config.Get(),
	}
}

// SubmitStake places a stake on an open contest
func (g *participantGateway) SubmitStake(ctx context.Context, contestID uuid.UUID, participantID string, side entities.Side, amount int64) (*entities.StakeReceipt, error) {
	var receipt *entities.StakeReceipt
	err := g.inTransaction(ctx, func(uow UnitOfWork) error {
		ledger := services.NewPoolLedgerService(
			uow.ContestRepository(), uow.StakeRepository(), uow.EventBus())
		var err error
		receipt, err = ledger.SubmitStake(ctx, contestID, participantID, side, amount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// RegisterEntry joins a participant into an open lobby
func (g *participantGateway) RegisterEntry(ctx context.Context, contestID uuid.UUID, participantID string, entryFee int64) (*entities.StakeReceipt, error) {
	var receipt *entities.StakeReceipt
	err := g.inTransaction(ctx, func(uow UnitOfWork) error {
		var err error
		receipt, err = g.elimination(uow).RegisterEntry(ctx, contestID, participantID, entryFee)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// SubmitPrediction records a side call for the lobby's open round
func (g *participantGateway) SubmitPrediction(ctx context.Context, contestID uuid.UUID, participantID string, side entities.Side) error {
	return g.inTransaction(ctx, func(uow UnitOfWork) error {
		return g.elimination(uow).SubmitPrediction(ctx, contestID, participantID, side)
	})
}

func (g *participantGateway) elimination(uow UnitOfWork) interfaces.EliminationService {
	ledger := services.NewPoolLedgerService(
		uow.ContestRepository(), uow.StakeRepository(), uow.EventBus())
	return services.NewEliminationService(
		uow.ContestRepository(), uow.StakeRepository(), uow.LobbyRoundRepository(),
		uow.PredictionRepository(), uow.PriceAuditRepository(),
		g.priceProvider, uow.EventBus(), ledger, g.cfg.GracePeriod)
}

func (g *participantGateway) inTransaction(ctx context.Context, fn func(uow UnitOfWork) error) error {
	uow := g.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := fn(uow); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
