package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/account"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/database"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/money"
)

type Store struct {
	db database.Querier
}

func New(db database.Querier) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// Columns is the select list Scan expects, qualified with the alias a.
const Columns = `
	a.id, a.user_code, a.qr_code, a.name, a.email, a.phone, a.department,
	a.account_type, a.status, a.balance_minor, a.pin_hash, a.last_used_at,
	a.created_at, a.updated_at
`

// ReturningColumns is Columns without the alias, for RETURNING clauses.
const ReturningColumns = `
	id, user_code, qr_code, name, email, phone, department,
	account_type, status, balance_minor, pin_hash, last_used_at,
	created_at, updated_at
`

// Scan reads a row selected with Columns.
func Scan(s scanner) (*account.Account, error) {
	var (
		a          account.Account
		typ, stat  string
		balance    int64
		lastUsedAt sql.NullTime
	)

	if err := s.Scan(
		&a.ID, &a.UserCode, &a.QRCode, &a.Name, &a.Email, &a.Phone, &a.Department,
		&typ, &stat, &balance, &a.PINHash, &lastUsedAt,
		&a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}

	a.Type = account.Type(typ)
	a.Status = account.Status(stat)
	a.Balance = money.FromMinor(balance)

	if lastUsedAt.Valid {
		t := lastUsedAt.Time
		a.LastUsedAt = &t
	}

	return &a, nil
}

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	query := `
		INSERT INTO accounts (id, user_code, qr_code, name, email, phone, department,
			account_type, status, balance_minor, pin_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := s.db.ExecContext(ctx, query,
		a.ID,
		a.UserCode,
		a.QRCode,
		a.Name,
		a.Email,
		a.Phone,
		a.Department,
		string(a.Type),
		string(a.Status),
		a.Balance.Minor(),
		a.PINHash,
		a.CreatedAt,
		a.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %v", account.ErrDuplicate, err)
		}

		return fmt.Errorf("creating account: %w", err)
	}

	return nil
}

func (s *Store) GetAccount(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	query := `SELECT ` + Columns + ` FROM accounts a WHERE a.id = $1`

	a, err := Scan(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, account.ErrAccountNotFound
		}

		return nil, fmt.Errorf("getting account: %w", err)
	}

	return a, nil
}

func (s *Store) ListAccounts(ctx context.Context, filter account.ListFilter) ([]*account.Account, error) {
	query := `SELECT ` + Columns + ` FROM accounts a WHERE 1 = 1`

	var args []any

	argIdx := 1

	if !filter.IncludeInactive {
		query += fmt.Sprintf(" AND a.status = $%d", argIdx)

		args = append(args, string(account.StatusActive))
		argIdx++
	}

	if filter.Type != nil {
		query += fmt.Sprintf(" AND a.account_type = $%d", argIdx)

		args = append(args, string(*filter.Type))
		argIdx++
	}

	query += " ORDER BY a.created_at DESC, a.id"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)

		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*account.Account

	for rows.Next() {
		a, err := Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}

		accounts = append(accounts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}

	return accounts, nil
}

// UpdateAccount writes profile fields only; balance_minor belongs to the ledger.
func (s *Store) UpdateAccount(ctx context.Context, a *account.Account) error {
	query := `
		UPDATE accounts
		SET name = $1, email = $2, phone = $3, department = $4, account_type = $5,
			status = $6, updated_at = $7
		WHERE id = $8
	`

	res, err := s.db.ExecContext(ctx, query,
		a.Name,
		a.Email,
		a.Phone,
		a.Department,
		string(a.Type),
		string(a.Status),
		a.UpdatedAt,
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("updating account: %w", err)
	}

	return requireRow(res)
}

func (s *Store) SetStatus(ctx context.Context, id uuid.UUID, status account.Status) error {
	query := `UPDATE accounts SET status = $1, updated_at = $2 WHERE id = $3`

	res, err := s.db.ExecContext(ctx, query, string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating account status: %w", err)
	}

	return requireRow(res)
}

func (s *Store) FindActiveByIdentifier(ctx context.Context, identifier string) (*account.Account, error) {
	query := `SELECT ` + Columns + `
		FROM accounts a
		WHERE a.status = $1 AND (a.qr_code = $2 OR a.user_code = $2 OR a.email = LOWER($2))
		ORDER BY a.created_at
		LIMIT 1`

	a, err := Scan(s.db.QueryRowContext(ctx, query, string(account.StatusActive), identifier))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, account.ErrAccountNotFound
		}

		return nil, fmt.Errorf("looking up account: %w", err)
	}

	return a, nil
}

func (s *Store) TouchLastUsed(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE accounts SET last_used_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("touching account: %w", err)
	}

	return nil
}

func (s *Store) SetPINHash(ctx context.Context, id uuid.UUID, hash string) error {
	query := `UPDATE accounts SET pin_hash = $1, updated_at = $2 WHERE id = $3 AND status = $4`

	res, err := s.db.ExecContext(ctx, query, hash, time.Now().UTC(), id, string(account.StatusActive))
	if err != nil {
		return fmt.Errorf("setting pin: %w", err)
	}

	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}

	if n == 0 {
		return account.ErrAccountNotFound
	}

	return nil
}
