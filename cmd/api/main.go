package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/account"
	accountStore "github.com/KPRAHUL1/Roriri-Cafe/internal/account/store"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/catalog"
	catalogStore "github.com/KPRAHUL1/Roriri-Cafe/internal/catalog/store"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/checkout"
	checkoutStore "github.com/KPRAHUL1/Roriri-Cafe/internal/checkout/store"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/config"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/database"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/events"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/export"
	canteenHttp "github.com/KPRAHUL1/Roriri-Cafe/internal/http"
	accountHandler "github.com/KPRAHUL1/Roriri-Cafe/internal/http/account"
	catalogHandler "github.com/KPRAHUL1/Roriri-Cafe/internal/http/catalog"
	checkoutHandler "github.com/KPRAHUL1/Roriri-Cafe/internal/http/checkout"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/http/render"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/ledger"
	ledgerStore "github.com/KPRAHUL1/Roriri-Cafe/internal/ledger/store"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/logging"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/metrics"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/notify"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/pinguard"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/session"
)

func main() {
	if err := run(); err != nil {
		slog.Error("api stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.App.LogFormat, cfg.App.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.New(database.Dialect(cfg.DB.Driver), cfg.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if cfg.DB.Migrate {
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis ping failed", "error", err)
		}
	}

	notifier, closeNotifier := newNotifier(cfg, logger)
	defer closeNotifier()

	publisher := events.New(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("closing event publisher", "error", err)
		}
	}()

	m := metrics.New()

	var (
		ledgerService   = ledger.NewService(ledgerStore.New(db), m, events.LedgerHook(publisher), notify.LedgerHook(notifier))
		accountService  = account.NewService(accountStore.New(db), ledgerService, newPINGuard(cfg, rdb))
		catalogService  = catalog.NewService(catalogStore.New(db))
		checkoutService = checkout.NewService(checkoutStore.New(db), ledgerService, notifier)
		exportService   = export.NewService(checkoutService)
	)

	var sessions *session.Manager
	if cfg.Kiosk.RequireSession {
		sessions, err = session.NewManager(cfg.Kiosk.SessionSecret, cfg.Kiosk.SessionTTL)
		if err != nil {
			return fmt.Errorf("creating session manager: %w", err)
		}
	}

	retry := render.Retrier{Attempts: cfg.Server.RetryAttempts, Backoff: cfg.Server.RetryBackoff}

	accountOpts := []accountHandler.Option{
		accountHandler.WithPINLimiter(canteenHttp.PINLimiter(cfg.Kiosk.PINRatePerMinute)),
	}
	if sessions != nil {
		accountOpts = append(accountOpts, accountHandler.WithSessions(sessions))
	}

	var (
		accountH  = accountHandler.NewHandler(accountService, ledgerService, retry, accountOpts...)
		catalogH  = catalogHandler.NewHandler(catalogService, checkoutService)
		checkoutH = checkoutHandler.NewHandler(checkoutService, exportService, retry, sessions)
	)

	router := canteenHttp.New(accountH, catalogH, checkoutH, canteenHttp.Options{
		CORSOrigins: cfg.App.CORSOrigins,
		DevMode:     cfg.App.DevMode,
		Timeout:     cfg.Server.Timeout,
		Metrics:     m,
		Ping:        db.PingContext,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", "addr", server.Addr, "driver", cfg.DB.Driver)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newPINGuard keeps lockout counters in Redis when it is configured and in
// process memory otherwise.
func newPINGuard(cfg *config.Config, rdb *redis.Client) account.PINGuard {
	if rdb != nil {
		return pinguard.NewRedis(rdb, cfg.Kiosk.PINMaxAttempts, cfg.Kiosk.PINLockout)
	}

	return pinguard.NewMemory(cfg.Kiosk.PINMaxAttempts, cfg.Kiosk.PINLockout)
}

func newNotifier(cfg *config.Config, logger *slog.Logger) (notify.Notifier, func()) {
	if !strings.EqualFold(cfg.Notify.Mode, "queue") {
		return notify.NewLogNotifier(logger), func() {}
	}

	q := notify.NewQueueNotifier(asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	return q, func() {
		if err := q.Close(); err != nil {
			logger.Warn("closing notification queue", "error", err)
		}
	}
}
