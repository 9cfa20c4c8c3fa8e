package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/datagate-io/datagate/internal/config"
	"github.com/datagate-io/datagate/internal/gateway"
	"github.com/datagate-io/datagate/internal/policy"
	"github.com/datagate-io/datagate/internal/server"
	mongostore "github.com/datagate-io/datagate/internal/store/mongo"
	"github.com/datagate-io/datagate/internal/store/postgres"
	redisstore "github.com/datagate-io/datagate/internal/store/redis"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment.
	logLevel := os.Getenv("DATAGATE_LOG_LEVEL")
	level, parseErr := zerolog.ParseLevel(logLevel)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logFormat := os.Getenv("DATAGATE_LOG_FORMAT")
	if logFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	ctx := context.Background()

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Connect to the document store.
	docs, err := mongostore.New(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.ConnectTimeout, cfg.Mongo.MaxPoolSize)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if closeErr := docs.Close(closeCtx); closeErr != nil {
			log.Warn().Err(closeErr).Msg("document store close failed")
		}
	}()

	// Connect to the audit database.
	if cfg.Audit.MaxConns < 0 || cfg.Audit.MaxConns > math.MaxInt32 {
		return fmt.Errorf("audit max_conns %d out of int32 range", cfg.Audit.MaxConns)
	}
	auditStore, err := postgres.New(ctx, cfg.Audit.DSN(), int32(cfg.Audit.MaxConns)) //nolint:gosec // bounds checked above
	if err != nil {
		return err
	}
	defer auditStore.Close()

	// Connect to Redis for the policy cache.
	cache, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := cache.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("redis close failed")
		}
	}()

	// Wire the data access layer. Only the gateway's mediator receives the
	// document store handle.
	resolver := policy.NewResolver(docs.Agents(), cache, cfg.Query.PolicyCacheTTL)
	mediator := gateway.NewMediator(docs.Documents())
	gw := gateway.New(resolver, mediator, auditStore.Audit(), gateway.Limits{
		Default: cfg.Query.DefaultLimit,
		Max:     cfg.Query.MaxLimit,
	})

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := server.New(ctx, cfg, server.Deps{
		Gateway:  gw,
		Agents:   docs.Agents(),
		Audit:    auditStore.Audit(),
		Policies: resolver,
	})

	// Start server in background goroutine.
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}
