package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"studio_app_echo/internal/config"
	"studio_app_echo/internal/logging"
	"studio_app_echo/internal/services"
	"studio_app_echo/internal/tasks"
)

const pollInterval = time.Minute

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	cfg := config.FromEnv()

	logger, err := logging.NewLogger(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL not set")
	}
	db, err := services.InitDB(cfg.DatabaseURL, false, logger)
	if err != nil {
		logger.Fatalw("Failed to connect to database", "error", err)
	}

	// Create context that cancels on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := tasks.EnsureDigestTask(ctx, db, cfg.DigestRule, time.Now()); err != nil {
		logger.Errorw("Failed to schedule pending request digest", "error", err)
	}

	registry := tasks.NewRegistry()
	tasks.DefineTasks(registry)

	runner := tasks.NewRunner(db, registry, tasks.Deps{
		Mailer:       services.NewEmailService(cfg.SMTP),
		Messenger:    services.NewWahaService(cfg.Waha),
		Currency:     cfg.Stripe.Currency,
		StudioEmail:  cfg.StudioEmail,
		StudioChatID: cfg.StudioWhatsappChatID,
	}, logger)

	logger.Infow("Worker started", "poll_interval", pollInterval)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	// Run once on start so tasks due while the worker was down are not delayed a full tick
	process(ctx, runner, logger)

	for {
		select {
		case <-ticker.C:
			process(ctx, runner, logger)
		case <-ctx.Done():
			logger.Info("Shutting down worker...")
			return
		}
	}
}

func process(ctx context.Context, runner *tasks.Runner, logger *zap.SugaredLogger) {
	if _, err := runner.RunDue(ctx); err != nil && ctx.Err() == nil {
		logger.Errorw("Failed to process scheduled tasks", "error", err)
	}
}
