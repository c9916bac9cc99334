package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"collateralcombat/application"
	"collateralcombat/config"
	"collateralcombat/domain/entities"
	"collateralcombat/domain/interfaces"
	"collateralcombat/domain/services"
)

// Worker drives the contest lifecycle on cron ticks: scheduling new
// contests, evaluating active ones, crediting payouts and archiving old
// rows. Every decision is clock-driven and idempotent, so a missed or
// doubled tick never corrupts state.
type Worker struct {
	uowFactory      application.UnitOfWorkFactory
	scheduler       interfaces.ContestSchedulerService
	payoutProcessor interfaces.PayoutProcessorService
	priceProvider   interfaces.PriceProvider
	cfg             *config.Config
	cron            *cron.Cron
}

// NewWorker creates the engine worker
func NewWorker(
	uowFactory application.UnitOfWorkFactory,
	scheduler interfaces.ContestSchedulerService,
	payoutProcessor interfaces.PayoutProcessorService,
	priceProvider interfaces.PriceProvider,
) *Worker {
	return &Worker{
		uowFactory:      uowFactory,
		scheduler:       scheduler,
		payoutProcessor: payoutProcessor,
		priceProvider:   priceProvider,
		cfg:             config.Get(),
		cron:            cron.New(cron.WithSeconds()),
	}
}

// Start registers the jobs and starts the cron scheduler
func (w *Worker) Start(ctx context.Context) error {
	jobs := []struct {
		spec string
		name string
		run  func(context.Context)
	}{
		{"* * * * * *", "tick", w.tick},
		{"*/30 * * * * *", "recover_payouts", w.recoverPayouts},
		{"0 */10 * * * *", "archive", w.archive},
	}
	for _, job := range jobs {
		job := job
		_, err := w.cron.AddFunc(job.spec, func() {
			job.run(ctx)
		})
		if err != nil {
			return fmt.Errorf("failed to register %s job: %w", job.name, err)
		}
	}

	w.cron.Start()
	log.Info("Engine worker started")
	return nil
}

// Stop halts the cron scheduler and waits for running jobs to finish
func (w *Worker) Stop() {
	<-w.cron.Stop().Done()
	log.Info("Engine worker stopped")
}

// tick ensures each game type has a current contest, then advances every
// active contest by at most one phase.
func (w *Worker) tick(ctx context.Context) {
	for _, gameType := range entities.AllGameTypes {
		if _, err := w.scheduler.EnsureCurrentContest(ctx, gameType); err != nil {
			log.WithError(err).WithField("gameType", gameType).
				Error("Failed to ensure current contest")
		}
	}

	contests, err := w.activeContests(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to list active contests")
		return
	}

	for _, contest := range contests {
		if err := w.evaluateContest(ctx, contest.ID); err != nil {
			log.WithError(err).WithFields(log.Fields{
				"contestId": contest.ID,
				"gameType":  contest.GameType,
			}).Error("Failed to evaluate contest")
		}
	}
}

// activeContests lists non-terminal contests in a read-only transaction
func (w *Worker) activeContests(ctx context.Context) ([]*entities.Contest, error) {
	uow := w.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	contests, err := uow.ContestRepository().GetActive(ctx)
	if err != nil {
		return nil, err
	}
	return contests, uow.Commit()
}

// evaluateContest advances one contest inside its own transaction, then
// credits payouts if the evaluation settled it.
func (w *Worker) evaluateContest(ctx context.Context, contestID uuid.UUID) error {
	uow := w.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	ledger := services.NewPoolLedgerService(
		uow.ContestRepository(), uow.StakeRepository(), uow.EventBus())
	elimination := services.NewEliminationService(
		uow.ContestRepository(), uow.StakeRepository(), uow.LobbyRoundRepository(),
		uow.PredictionRepository(), uow.PriceAuditRepository(),
		w.priceProvider, uow.EventBus(), ledger, w.cfg.GracePeriod)
	rounds := services.NewRoundService(
		uow.ContestRepository(), uow.StakeRepository(), uow.SettlementRepository(),
		uow.GameStateRepository(), uow.PriceAuditRepository(),
		w.priceProvider, uow.EventBus(), elimination, w.cfg.GracePeriod)

	if err := rounds.EvaluateContest(ctx, contestID); err != nil {
		return err
	}

	contest, err := uow.ContestRepository().GetByID(ctx, contestID)
	if err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	// Crediting runs outside the evaluation transaction; a crash here is
	// healed by the recovery job.
	if contest != nil && contest.Phase.IsTerminal() {
		if _, err := w.payoutProcessor.Apply(ctx, contestID); err != nil {
			return fmt.Errorf("failed to apply payouts: %w", err)
		}
	}
	return nil
}

// recoverPayouts resumes crediting passes interrupted by a crash or a
// balance service outage.
func (w *Worker) recoverPayouts(ctx context.Context) {
	uow := w.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		log.WithError(err).Error("Failed to begin payout recovery")
		return
	}
	contestIDs, err := uow.SettlementRepository().GetContestsWithUncreditedPayouts(ctx)
	if err != nil {
		uow.Rollback()
		log.WithError(err).Error("Failed to list contests with uncredited payouts")
		return
	}
	if err := uow.Commit(); err != nil {
		log.WithError(err).Error("Failed to commit payout recovery read")
		return
	}

	for _, contestID := range contestIDs {
		result, err := w.payoutProcessor.Apply(ctx, contestID)
		if err != nil {
			log.WithError(err).WithField("contestId", contestID).
				Warn("Payout recovery pass failed, will retry")
			continue
		}
		if result.CreditedCount > 0 {
			log.WithFields(log.Fields{
				"contestId":      contestID,
				"creditedCount":  result.CreditedCount,
				"creditedAmount": result.CreditedAmount,
			}).Info("Recovered uncredited payouts")
		}
	}
}

// archive moves fully paid-out contests past the retention window into the
// archived phase.
func (w *Worker) archive(ctx context.Context) {
	uow := w.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		log.WithError(err).Error("Failed to begin archive pass")
		return
	}
	defer uow.Rollback()

	cutoff := time.Now().UTC().Add(-w.cfg.ArchiveAfter)
	count, err := uow.ContestRepository().ArchiveSettledBefore(ctx, cutoff)
	if err != nil {
		log.WithError(err).Error("Failed to archive contests")
		return
	}
	if err := uow.Commit(); err != nil {
		log.WithError(err).Error("Failed to commit archive pass")
		return
	}
	if count > 0 {
		log.WithField("count", count).Info("Archived settled contests")
	}
}
