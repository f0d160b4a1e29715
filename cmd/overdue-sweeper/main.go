package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nurpe/condo-ledger/internal/config"
	"github.com/nurpe/condo-ledger/internal/db"
	"github.com/nurpe/condo-ledger/internal/logger"
	"github.com/nurpe/condo-ledger/internal/repository"
	"github.com/nurpe/condo-ledger/internal/service"
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

	payments := service.NewPaymentService(repository.NewStore(database), nil)

	c := cron.New(cron.WithLocation(time.UTC))
	_, err = c.AddFunc(cfg.Sweep.Cron, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Sweep.Timeout)
		defer cancel()

		count, err := payments.MarkOverdue(ctx, time.Now().UTC())
		if err != nil {
			log.Error().Err(err).Msg("overdue sweep failed")
			return
		}
		log.Info().Int64("updated", count).Msg("overdue sweep finished")
	})
	if err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.Sweep.Cron).Msg("failed to schedule overdue sweep")
	}

	c.Start()
	log.Info().Str("schedule", cfg.Sweep.Cron).Msg("overdue sweeper started")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("shutting down overdue sweeper")
	<-c.Stop().Done()
}
