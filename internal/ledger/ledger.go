// Package ledger owns account balances. Every balance change is applied in
// the same database transaction as the append-only entry that records it.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/money"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrTransactionAborted means the unit of work rolled back for a reason
	// other than a business rule. The whole operation may be retried.
	ErrTransactionAborted  = errors.New("transaction aborted")
	ErrIdempotencyConflict = errors.New("idempotency key reused with different parameters")

	// ErrEntryNotFound and ErrDuplicateKey are returned by repositories.
	ErrEntryNotFound = errors.New("ledger entry not found")
	ErrDuplicateKey  = errors.New("duplicate idempotency key")

	// ErrConcurrentUpdate is returned when a conditional update matched no row
	// but a re-read shows it should have.
	ErrConcurrentUpdate = errors.New("concurrent balance update")
)

// InsufficientBalanceError carries the figures of a rejected debit.
type InsufficientBalanceError struct {
	AccountID uuid.UUID
	Available money.Amount
	Requested money.Amount
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %s, requested %s", e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

func (e *InsufficientBalanceError) Shortfall() money.Amount {
	return e.Requested.Sub(e.Available)
}

// Kind is the event type of a ledger entry.
type Kind string

const (
	KindPurchase Kind = "purchase"
	KindRecharge Kind = "recharge"
)

func (k Kind) Valid() bool {
	return k == KindPurchase || k == KindRecharge
}

// Entry is one immutable balance event. Seq orders entries chronologically.
type Entry struct {
	ID             uuid.UUID
	Seq            int64
	AccountID      uuid.UUID
	Kind           Kind
	Amount         money.Amount
	BalanceBefore  money.Amount
	BalanceAfter   money.Amount
	Description    string
	Reference      string
	IdempotencyKey string
	CreatedAt      time.Time
}

// Balanced reports whether the entry's before/after figures agree with its
// kind and amount.
func (e *Entry) Balanced() bool {
	switch e.Kind {
	case KindRecharge:
		return e.BalanceAfter == e.BalanceBefore.Add(e.Amount)
	case KindPurchase:
		return e.BalanceAfter == e.BalanceBefore.Sub(e.Amount)
	}

	return false
}

// IsClientError reports errors caused by the request rather than the system.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrIdempotencyConflict)
}

// IsRetryable reports whether the operation can be retried from scratch.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionAborted)
}
