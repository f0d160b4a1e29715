package main

import (
	"fmt"
	"os"

	"github.com/nurpe/condo-ledger/internal/auth"
	"github.com/nurpe/condo-ledger/internal/config"
	"github.com/nurpe/condo-ledger/internal/db"
	httphandler "github.com/nurpe/condo-ledger/internal/http"
	"github.com/nurpe/condo-ledger/internal/http/middleware"
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
	if err := cfg.ValidateAPI(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	store := repository.NewStore(database)
	services := httphandler.Services{
		Registry: service.NewRegistryService(store, cfg, nil),
		Billing:  service.NewBillingService(store, cfg, nil),
		Payments: service.NewPaymentService(store, nil),
		Bookings: service.NewBookingService(store, nil),
	}

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(services, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment, cfg.HTTP.AllowedOrigins)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting condo service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
