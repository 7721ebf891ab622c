package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/account"
	accountStore "github.com/KPRAHUL1/Roriri-Cafe/internal/account/store"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/database"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/ledger"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/money"
)

type Store struct {
	db *database.DB
}

func New(db *database.DB) *Store {
	return &Store{db: db}
}

// WithinTx opens a transaction and hands fn a ledger view of it.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	return s.db.WithTx(ctx, func(sqlTx *sql.Tx) error {
		return fn(ctx, NewTx(sqlTx))
	})
}

func (s *Store) FindEntryByKey(ctx context.Context, accountID uuid.UUID, key string) (*ledger.Entry, error) {
	return findEntryByKey(ctx, s.db, accountID, key)
}

func (s *Store) GetActiveAccount(ctx context.Context, accountID uuid.UUID) (*account.Account, error) {
	return getActiveAccount(ctx, s.db, accountID)
}

func (s *Store) ListEntries(ctx context.Context, accountID uuid.UUID, filter ledger.HistoryFilter) ([]*ledger.Entry, error) {
	return listEntries(ctx, s.db, accountID, filter)
}

// Snapshot returns the account whatever its status, since verification of a
// deactivated account is still meaningful.
func (s *Store) Snapshot(ctx context.Context, accountID uuid.UUID) (*account.Account, []*ledger.Entry, error) {
	var (
		acct    *account.Account
		entries []*ledger.Entry
	)

	err := s.db.WithSnapshot(ctx, func(tx *sql.Tx) error {
		var err error

		acct, err = accountStore.New(tx).GetAccount(ctx, accountID)
		if err != nil {
			return err
		}

		entries, err = listEntries(ctx, tx, accountID, ledger.HistoryFilter{})

		return err
	})
	if err != nil {
		return nil, nil, err
	}

	return acct, entries, nil
}

// Tx implements ledger.Tx over an open *sql.Tx. Other stores embed it to take
// part in the same unit of work.
type Tx struct {
	tx *sql.Tx
}

func NewTx(tx *sql.Tx) *Tx {
	return &Tx{tx: tx}
}

// SQL returns the underlying transaction.
func (t *Tx) SQL() *sql.Tx {
	return t.tx
}

// ApplyCredit increments the balance with a single conditional UPDATE so
// that the row lock and the new value come from the same statement.
func (t *Tx) ApplyCredit(ctx context.Context, accountID uuid.UUID, amount money.Amount, at time.Time) (*account.Account, error) {
	query := `
		UPDATE accounts
		SET balance_minor = balance_minor + $1, updated_at = $2
		WHERE id = $3 AND status = $4
		RETURNING ` + accountStore.ReturningColumns

	acct, err := accountStore.Scan(t.tx.QueryRowContext(ctx, query,
		amount.Minor(), at, accountID, string(account.StatusActive),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, account.ErrAccountNotFound
		}

		return nil, fmt.Errorf("crediting account: %w", err)
	}

	return acct, nil
}

// ApplyDebit decrements the balance only if it covers amount. When no row
// matches, the account is re-read to tell a missing account from a short one.
func (t *Tx) ApplyDebit(ctx context.Context, accountID uuid.UUID, amount money.Amount, at time.Time) (*account.Account, error) {
	query := `
		UPDATE accounts
		SET balance_minor = balance_minor - $1, updated_at = $2
		WHERE id = $3 AND status = $4 AND balance_minor >= $1
		RETURNING ` + accountStore.ReturningColumns

	acct, err := accountStore.Scan(t.tx.QueryRowContext(ctx, query,
		amount.Minor(), at, accountID, string(account.StatusActive),
	))
	if err == nil {
		return acct, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("debiting account: %w", err)
	}

	var (
		status  string
		balance int64
	)

	err = t.tx.QueryRowContext(ctx,
		`SELECT status, balance_minor FROM accounts WHERE id = $1`, accountID,
	).Scan(&status, &balance)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, account.ErrAccountNotFound
	case err != nil:
		return nil, fmt.Errorf("reading account after debit: %w", err)
	case account.Status(status) != account.StatusActive:
		return nil, account.ErrAccountNotFound
	case balance < amount.Minor():
		return nil, &ledger.InsufficientBalanceError{
			AccountID: accountID,
			Available: money.FromMinor(balance),
			Requested: amount,
		}
	}

	return nil, ledger.ErrConcurrentUpdate
}

func (t *Tx) CreateAccount(ctx context.Context, a *account.Account) error {
	return accountStore.New(t.tx).CreateAccount(ctx, a)
}

func (t *Tx) FindEntryByKey(ctx context.Context, accountID uuid.UUID, key string) (*ledger.Entry, error) {
	return findEntryByKey(ctx, t.tx, accountID, key)
}

func (t *Tx) GetActiveAccount(ctx context.Context, accountID uuid.UUID) (*account.Account, error) {
	return getActiveAccount(ctx, t.tx, accountID)
}

func (t *Tx) AppendEntry(ctx context.Context, e *ledger.Entry) error {
	query := `
		INSERT INTO ledger_entries (id, account_id, kind, amount_minor, balance_before_minor,
			balance_after_minor, description, reference, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING seq
	`

	err := t.tx.QueryRowContext(ctx, query,
		e.ID,
		e.AccountID,
		string(e.Kind),
		e.Amount.Minor(),
		e.BalanceBefore.Minor(),
		e.BalanceAfter.Minor(),
		e.Description,
		e.Reference,
		database.NullString(e.IdempotencyKey),
		e.CreatedAt,
	).Scan(&e.Seq)
	if err != nil {
		if e.IdempotencyKey != "" && database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %q", ledger.ErrDuplicateKey, e.IdempotencyKey)
		}

		return fmt.Errorf("appending ledger entry: %w", err)
	}

	return nil
}

const selectEntryColumns = `
	seq, id, account_id, kind, amount_minor, balance_before_minor, balance_after_minor,
	description, reference, idempotency_key, created_at
`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*ledger.Entry, error) {
	var (
		e                     ledger.Entry
		kind                  string
		amount, before, after int64
		key                   sql.NullString
	)

	if err := s.Scan(
		&e.Seq, &e.ID, &e.AccountID, &kind, &amount, &before, &after,
		&e.Description, &e.Reference, &key, &e.CreatedAt,
	); err != nil {
		return nil, err
	}

	e.Kind = ledger.Kind(kind)
	e.Amount = money.FromMinor(amount)
	e.BalanceBefore = money.FromMinor(before)
	e.BalanceAfter = money.FromMinor(after)
	e.IdempotencyKey = key.String

	return &e, nil
}

func findEntryByKey(ctx context.Context, q database.Querier, accountID uuid.UUID, key string) (*ledger.Entry, error) {
	query := `SELECT ` + selectEntryColumns + `
		FROM ledger_entries
		WHERE account_id = $1 AND idempotency_key = $2`

	e, err := scanEntry(q.QueryRowContext(ctx, query, accountID, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ledger.ErrEntryNotFound
		}

		return nil, fmt.Errorf("finding ledger entry: %w", err)
	}

	return e, nil
}

func getActiveAccount(ctx context.Context, q database.Querier, accountID uuid.UUID) (*account.Account, error) {
	acct, err := accountStore.New(q).GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if !acct.Active() {
		return nil, account.ErrAccountNotFound
	}

	return acct, nil
}

func listEntries(ctx context.Context, q database.Querier, accountID uuid.UUID, filter ledger.HistoryFilter) ([]*ledger.Entry, error) {
	query := `SELECT ` + selectEntryColumns + ` FROM ledger_entries WHERE account_id = $1`

	args := []any{accountID}
	argIdx := 2

	if filter.Kind != nil {
		query += fmt.Sprintf(" AND kind = $%d", argIdx)

		args = append(args, string(*filter.Kind))
		argIdx++
	}

	if filter.Descending {
		query += " ORDER BY seq DESC"
	} else {
		query += " ORDER BY seq ASC"
	}

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)

		args = append(args, filter.Limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*ledger.Entry

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning ledger entry: %w", err)
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing ledger entries: %w", err)
	}

	return entries, nil
}
