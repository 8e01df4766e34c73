package main

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/aurorydraft2026/draftforge/clients/resultsapi"
	"github.com/aurorydraft2026/draftforge/internal/assignment"
	"github.com/aurorydraft2026/draftforge/internal/coinflip"
	"github.com/aurorydraft2026/draftforge/internal/config"
	"github.com/aurorydraft2026/draftforge/internal/engine"
	"github.com/aurorydraft2026/draftforge/internal/events"
	"github.com/aurorydraft2026/draftforge/internal/gateway"
	"github.com/aurorydraft2026/draftforge/internal/settlement"
	"github.com/aurorydraft2026/draftforge/internal/store"
	"github.com/aurorydraft2026/draftforge/internal/sweep"
	"github.com/aurorydraft2026/draftforge/internal/verification"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.NewPostgres(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer st.Close()

	log.Info().
		Str("database", cfg.Database.Database).
		Str("http_addr", cfg.HTTPAddr).
		Str("nats_url", cfg.NATSURL).
		Msg("starting draft sweeper")

	var publisher events.Publisher = events.Noop{}
	if cfg.NATSURL != "" {
		jsCfg := events.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NATSURL
		p, err := events.NewJetStreamPublisher(jsCfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to NATS")
		}
		defer p.Close()
		publisher = p
	}

	clock := clockwork.NewRealClock()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	results := resultsapi.NewClient(cfg.ResultsBaseURL)

	finalizer := assignment.New(st, clock, rng, nil)
	settler := settlement.New(st, clock, cfg.TaxRate, nil)
	sweeper := sweep.New(
		st,
		clock,
		engine.New(st, clock, rng),
		coinflip.New(st, clock, rng, finalizer),
		finalizer,
		verification.New(st, results, clock),
		settler,
		publisher,
		sweep.Config{
			SweepInterval:        cfg.SweepInterval,
			VerificationInterval: cfg.VerificationInterval,
			BatchSize:            cfg.BatchSize,
		},
	)

	go sweeper.Run(ctx)

	handler := gateway.NewHandler(sweeper, settler, cfg.AdminToken,
		gateway.NewResultsProxy(cfg.ResultsBaseURL))

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	cancel()

	log.Info().Msg("draft sweeper shutdown complete")
}
