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
	slacklib "github.com/slack-go/slack"

	"github.com/gosuda/adbroker/internal/adserver"
	"github.com/gosuda/adbroker/internal/auth"
	"github.com/gosuda/adbroker/internal/config"
	"github.com/gosuda/adbroker/internal/notify"
	"github.com/gosuda/adbroker/internal/reconcile"
	"github.com/gosuda/adbroker/internal/server"
	"github.com/gosuda/adbroker/internal/store/postgres"
	redisstore "github.com/gosuda/adbroker/internal/store/redis"
	"github.com/gosuda/adbroker/internal/webhook"
	"github.com/gosuda/adbroker/internal/workflow"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment.
	logLevel := os.Getenv("ADBROKER_LOG_LEVEL")
	level, parseErr := zerolog.ParseLevel(logLevel)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logFormat := os.Getenv("ADBROKER_LOG_FORMAT")
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

	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}

	// Connect to PostgreSQL.
	store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
	if err != nil {
		return err
	}
	defer store.Close()

	// Connect to Redis.
	pubsub, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer pubsub.Close()

	// Create auth service.
	authSvc := auth.NewService(store.Principals(), cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Webhook delivery pipeline.
	sender := webhook.NewSender(store.DeliveryLogs(), cfg.Webhook.MaxAttempts, cfg.Webhook.AttemptTimeout, cfg.Webhook.BackoffCap)
	dispatcher := webhook.NewDispatcher(sender, cfg.Webhook.QueueSize)
	dispatcher.Start(ctx, cfg.Webhook.Workers)
	defer dispatcher.Stop()

	// Workflow orchestrator.
	orchestrator := workflow.New(store, dispatcher, pubsub)

	// Publisher ops notifications when Slack is configured.
	if cfg.Slack.BotToken != "" {
		slackClient := slacklib.New(cfg.Slack.BotToken)
		orchestrator.SetOpsNotifier(notify.NewSlackNotifier(slackClient, cfg.Slack.ApprovalChannel))
		log.Info().Str("channel", cfg.Slack.ApprovalChannel).Msg("Slack approval notifications enabled")
	}

	// Ad server adapter registry.
	adapters := adserver.NewRegistry()
	adapters.Register("mock", adserver.NewMockAdapter)

	// Activation poller.
	poller := reconcile.New(orchestrator)
	poller.SetDefaults(cfg.Reconciler.PollInterval, cfg.Reconciler.MaxDuration)

	// Create HTTP server with all routes wired.
	srv := server.New(ctx, cfg, store, pubsub, authSvc, orchestrator, server.Deps{
		Poller:   poller,
		Adapters: adapters,
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
