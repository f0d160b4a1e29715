package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nurpe/condo-ledger/internal/config"
	"github.com/nurpe/condo-ledger/internal/db"
	"github.com/nurpe/condo-ledger/internal/logger"
	"github.com/nurpe/condo-ledger/internal/notify"
	"github.com/nurpe/condo-ledger/internal/outbox"
	"github.com/nurpe/condo-ledger/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	publisher, err := notify.New(cfg.Notify, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Notify.Driver).Msg("failed to init publisher")
	}
	defer publisher.Close()

	relay := outbox.NewRelay(repository.NewStore(database), publisher, cfg.Notify, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("driver", cfg.Notify.Driver).
		Dur("interval", cfg.Notify.PollInterval).
		Msg("outbox relay started")

	if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("outbox relay stopped")
		os.Exit(1)
	}
	log.Info().Msg("outbox relay stopped")
}
