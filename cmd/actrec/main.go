package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/actrec/internal/activity"
	"github.com/gosuda/actrec/internal/capture"
	"github.com/gosuda/actrec/internal/config"
	"github.com/gosuda/actrec/internal/message"
	"github.com/gosuda/actrec/internal/server"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Load configuration from the optional file and the environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	setupLogging(cfg.Log)

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	store := activity.NewStore(backend.persister, activity.WithRetentionWindow(cfg.Retention.Window))
	if restoreErr := store.Restore(ctx); restoreErr != nil {
		log.Warn().Err(restoreErr).Msg("could not restore activity log, starting empty")
	}

	// The ingest consumer and the retention loop outlive the signal context so
	// that shutdown can stop them in order after the server has drained.
	workCtx, stopWork := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWork()

	ingestor := activity.NewIngestor(store, cfg.Ingest.QueueSize, backend.publisher)
	go ingestor.Run(workCtx)

	retentionDone := make(chan struct{})
	go func() {
		defer close(retentionDone)
		store.RunRetention(workCtx, cfg.Retention.Interval)
	}()

	decoder := message.NewDecoder(time.Now)
	observer := capture.NewObserver(ingestor, capture.NewProtocolMatcher(capture.DefaultProtocolPatterns))

	// Create HTTP server with all routes wired.
	srv := server.New(ctx, cfg, server.Deps{
		Store:      store,
		Decoder:    decoder,
		Sink:       ingestor,
		Observer:   observer,
		Dispatcher: message.NewDispatcher(decoder, store, ingestor),
		Tail:       backend.subscriber,
	})

	// Start server in background goroutine.
	go func() {
		log.Info().
			Str("addr", cfg.Server.Addr).
			Str("persist", cfg.Persist.Backend).
			Bool("tail", backend.subscriber != nil).
			Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
			cancel()
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	shutdownErr := srv.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		log.Error().Err(shutdownErr).Msg("server shutdown")
	}

	// Producers are gone; append what was queued, stop pruning, save once more.
	stopWork()
	<-ingestor.Done()
	<-retentionDone

	if flushErr := store.Flush(shutdownCtx); flushErr != nil {
		log.Error().Err(flushErr).Msg("final flush failed")
	}

	log.Info().Msg("stopped")
	return shutdownErr
}

func setupLogging(cfg config.LogConfig) {
	level, parseErr := zerolog.ParseLevel(cfg.Level)
	if parseErr != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}
