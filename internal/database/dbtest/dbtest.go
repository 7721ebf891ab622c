// Package dbtest opens migrated databases for store tests.
package dbtest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/database"
)

// SQLite returns a migrated database in a fresh file under t.TempDir().
func SQLite(t *testing.T) *database.DB {
	t.Helper()

	db, err := database.New(database.SQLite, filepath.Join(t.TempDir(), "canteen.db"))
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate(context.Background()))

	return db
}

// Postgres returns a migrated database from TEST_POSTGRES_DSN and truncates
// every table when the test ends. The test is skipped when the variable is
// unset.
func Postgres(t *testing.T) *database.DB {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	db, err := database.New(database.Postgres, dsn)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx))

	truncate := func() {
		_, err := db.ExecContext(ctx,
			`TRUNCATE order_items, orders, ledger_entries, products, accounts`)
		require.NoError(t, err)
	}

	truncate()
	t.Cleanup(func() {
		truncate()
		db.Close()
	})

	return db
}

// Each runs fn once per available backend.
func Each(t *testing.T, fn func(t *testing.T, db *database.DB)) {
	t.Helper()

	t.Run("sqlite", func(t *testing.T) { fn(t, SQLite(t)) })
	t.Run("postgres", func(t *testing.T) { fn(t, Postgres(t)) })
}
