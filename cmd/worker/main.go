package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lorrc/helpdesk-backend/internal/adapters/secondary/email"
	"github.com/lorrc/helpdesk-backend/internal/adapters/secondary/redisqueue"
	"github.com/lorrc/helpdesk-backend/internal/config"
	"github.com/lorrc/helpdesk-backend/internal/infrastructure/clock"
	"github.com/lorrc/helpdesk-backend/internal/infrastructure/logging"
)

// The worker drains the notification queue the API pushes to and renders
// each job into an email.
func main() {
	cfg := config.FromEnv()

	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name + "-worker",
		Environment: cfg.App.Environment,
		File:        cfg.Logging.File,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
		MaxAgeDays:  cfg.Logging.MaxAgeDays,
	})

	if cfg.Redis.URL == "" {
		logger.Error("REDIS_URL is required for the notification worker")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := redisqueue.Connect(ctx, cfg.Redis.URL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer func() { _ = client.Close() }()

	mailer := email.NewMailer(cfg.Redis.MailFrom, email.NewMockSMTPSender(logger), logger)
	queue := redisqueue.NewQueue(client, cfg.Redis.QueueKey, clock.Real())
	worker := redisqueue.NewWorker(client, queue, mailer, logger)

	if err := worker.Run(ctx); err != nil {
		logger.Error("worker stopped with error", "error", err)
		os.Exit(1)
	}
}
