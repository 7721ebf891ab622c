package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"golang.org/x/crypto/bcrypt"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/account"
	accountStore "github.com/KPRAHUL1/Roriri-Cafe/internal/account/store"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/catalog"
	catalogStore "github.com/KPRAHUL1/Roriri-Cafe/internal/catalog/store"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/config"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/database"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/ledger"
	ledgerStore "github.com/KPRAHUL1/Roriri-Cafe/internal/ledger/store"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/logging"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/pinguard"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/seed"
)

func main() {
	path := flag.String("fixtures", "cmd/seed/fixtures.yaml", "Path to the YAML fixture file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.App.LogFormat, cfg.App.LogLevel)

	fixture, err := seed.Load(*path)
	if err != nil {
		logger.Error("failed to load fixtures", "error", err)
		os.Exit(1)
	}

	db, err := database.New(database.Dialect(cfg.DB.Driver), cfg.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	guard := pinguard.NewMemory(cfg.Kiosk.PINMaxAttempts, cfg.Kiosk.PINLockout)

	var (
		ledgerService  = ledger.NewService(ledgerStore.New(db))
		accountService = account.NewService(accountStore.New(db), ledgerService, guard, account.WithPINCost(bcrypt.DefaultCost))
		catalogService = catalog.NewService(catalogStore.New(db))
	)

	res, err := seed.Apply(ctx, fixture, accountService, catalogService)
	if err != nil {
		logger.Error("failed to seed database", "error", err)
		os.Exit(1)
	}

	logger.Info("seeded database", "accounts", res.Accounts, "products", res.Products, "skipped", res.Skipped)
}
