package main

import (
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/config"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/logging"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.App.LogFormat, cfg.App.LogLevel)
	slog.SetDefault(logger)

	if cfg.Redis.Addr == "" {
		logger.Error("REDIS_ADDR is required to run the notification worker")
		os.Exit(1)
	}

	mailer := notify.NewMailer(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		User:     cfg.SMTP.User,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})

	srv := notify.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Notify.Concurrency)

	logger.Info("starting notification worker", "queue", notify.Queue, "concurrency", cfg.Notify.Concurrency)

	// Run blocks until SIGINT or SIGTERM and then drains in-flight tasks.
	if err := srv.Run(notify.Handlers(mailer)); err != nil {
		logger.Error("worker failed", "error", err)
		os.Exit(1)
	}
}
