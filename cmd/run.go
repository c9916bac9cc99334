package cmd

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"collateralcombat/application"
	"collateralcombat/config"
	"collateralcombat/database"
	"collateralcombat/domain/services"
	"collateralcombat/engine"
	"collateralcombat/infrastructure"
	"collateralcombat/infrastructure/pricefeed"
	"collateralcombat/repository"
)

// Run initializes and starts the contest engine
func Run(ctx context.Context) error {
	cfg := config.Get()

	if cfg.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	}
	log.Info("Starting contest engine...")

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Database connection established")

	log.Info("Connecting to NATS...")
	natsClient := infrastructure.NewNATSClient(cfg.NATSServers)
	if err := natsClient.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer natsClient.Close()

	eventPublisher := infrastructure.NewNATSEventPublisher(natsClient, infrastructure.NewEventSubjectMapper())
	if err := eventPublisher.EnsureContestEventStream(); err != nil {
		return fmt.Errorf("failed to ensure event stream: %w", err)
	}

	creditor := infrastructure.NewNATSBalanceCreditor(natsClient, cfg.CreditSubject)

	log.Info("Starting price feed...")
	symbols := append([]string{cfg.RoundSymbol}, cfg.BattleSymbols...)
	feed := pricefeed.NewBinanceFeed(cfg.PriceFeedURL, dedupe(symbols), cfg.MaxPriceAge)
	go func() {
		if err := feed.Run(ctx); err != nil && ctx.Err() == nil {
			log.WithError(err).Error("Price feed stopped")
		}
	}()

	uowFactory := repository.NewUnitOfWorkFactory(db, eventPublisher)
	scheduler := application.NewContestScheduler(uowFactory)
	payoutProcessor := application.NewPayoutProcessor(uowFactory, creditor)

	adminConsumer := infrastructure.NewAdminConsumer(natsClient, application.NewGameControl(uowFactory))
	if err := adminConsumer.Start(); err != nil {
		return fmt.Errorf("failed to start admin consumer: %w", err)
	}

	queries := services.NewContestQueryService(
		repository.NewContestRepository(db), repository.NewStakeRepository(db))
	gateway := application.NewParticipantGateway(uowFactory, feed)
	gameConsumer := infrastructure.NewGameConsumer(natsClient, gateway, queries)
	if err := gameConsumer.Start(); err != nil {
		return fmt.Errorf("failed to start game consumer: %w", err)
	}

	worker := engine.NewWorker(uowFactory, scheduler, payoutProcessor, feed)
	if err := worker.Start(ctx); err != nil {
		return fmt.Errorf("failed to start engine worker: %w", err)
	}

	log.WithField("environment", cfg.Environment).Info("Contest engine is running")
	<-ctx.Done()

	log.Info("Shutting down...")
	worker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	select {
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout exceeded")
	case <-time.After(1 * time.Second):
		log.Info("Shutdown completed")
	}

	return nil
}

func dedupe(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	var out []string
	for _, symbol := range symbols {
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}
		out = append(out, symbol)
	}
	return out
}
