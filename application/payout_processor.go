package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"collateralcombat/domain/entities"
	"collateralcombat/domain/interfaces"
)

type payoutProcessor struct {
	uowFactory UnitOfWorkFactory
	creditor   interfaces.BalanceCreditor
	locks      sync.Map // contest id -> *sync.Mutex
}

// NewPayoutProcessor creates the crediting pass that applies recorded
// payout tables to the balance collaborator
func NewPayoutProcessor(uowFactory UnitOfWorkFactory, creditor interfaces.BalanceCreditor) interfaces.PayoutProcessorService {
	return &payoutProcessor{
		uowFactory: uowFactory,
		creditor:   creditor,
	}
}

// Apply credits every uncredited payout row for the contest. Each row is
// credited against its stored idempotency key and marked in its own short
// transaction, so a crash between the credit and the mark is healed by the
// collaborator's dedupe on the retry. Stops at the first collaborator
// failure; everything already marked stays marked.
func (p *payoutProcessor) Apply(ctx context.Context, contestID uuid.UUID) (*interfaces.AppliedResult, error) {
	// The settlement tick and the recovery job share this processor and can
	// both reach the same contest; crediting passes must not interleave.
	lock, _ := p.locks.LoadOrStore(contestID, &sync.Mutex{})
	mu := lock.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	rows, err := p.loadUncredited(ctx, contestID)
	if err != nil {
		return nil, err
	}

	result := &interfaces.AppliedResult{
		ContestID: contestID,
		Remaining: len(rows),
	}

	for _, row := range rows {
		if row.Amount > 0 {
			if err := p.creditor.Credit(ctx, row.ParticipantID, row.Amount, row.IdempotencyKey); err != nil {
				return result, entities.NewDependencyError("balance service", err)
			}
		}
		if err := p.markCredited(ctx, row.ID); err != nil {
			// The credit went through; the retry will hit the
			// collaborator's dedupe and only redo the mark.
			return result, err
		}
		result.CreditedCount++
		result.CreditedAmount += row.Amount
		result.Remaining--
	}

	if result.CreditedCount > 0 {
		log.WithFields(log.Fields{
			"contestID": contestID,
			"credited":  result.CreditedCount,
			"amount":    result.CreditedAmount,
		}).Info("Payouts credited")
	}
	return result, nil
}

func (p *payoutProcessor) loadUncredited(ctx context.Context, contestID uuid.UUID) ([]*entities.Payout, error) {
	uow := p.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	rows, err := uow.SettlementRepository().GetUncreditedPayouts(ctx, contestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load uncredited payouts: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return rows, nil
}

func (p *payoutProcessor) markCredited(ctx context.Context, payoutID int64) error {
	uow := p.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	if err := uow.SettlementRepository().MarkPayoutCredited(ctx, payoutID); err != nil {
		return fmt.Errorf("failed to mark payout credited: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
