package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/account"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/money"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=ledger
type Repository interface {
	// WithinTx runs fn in one database transaction. fn returning an error
	// rolls everything back.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	FindEntryByKey(ctx context.Context, accountID uuid.UUID, key string) (*Entry, error)
	GetActiveAccount(ctx context.Context, accountID uuid.UUID) (*account.Account, error)
	ListEntries(ctx context.Context, accountID uuid.UUID, filter HistoryFilter) ([]*Entry, error)
	// Snapshot reads the account and its full history from one consistent view.
	Snapshot(ctx context.Context, accountID uuid.UUID) (*account.Account, []*Entry, error)
}

// Tx is the ledger's view of an open transaction.
type Tx interface {
	// ApplyCredit and ApplyDebit move the balance of an active account and
	// return it as it stands after the change.
	ApplyCredit(ctx context.Context, accountID uuid.UUID, amount money.Amount, at time.Time) (*account.Account, error)
	ApplyDebit(ctx context.Context, accountID uuid.UUID, amount money.Amount, at time.Time) (*account.Account, error)

	FindEntryByKey(ctx context.Context, accountID uuid.UUID, key string) (*Entry, error)
	GetActiveAccount(ctx context.Context, accountID uuid.UUID) (*account.Account, error)
	AppendEntry(ctx context.Context, e *Entry) error

	CreateAccount(ctx context.Context, a *account.Account) error
}

// Hook observes committed entries. Hooks run after commit and cannot fail
// the operation.
type Hook interface {
	EntryCommitted(ctx context.Context, acct *account.Account, entry *Entry)
}

type HookFunc func(ctx context.Context, acct *account.Account, entry *Entry)

func (f HookFunc) EntryCommitted(ctx context.Context, acct *account.Account, entry *Entry) {
	f(ctx, acct, entry)
}

type Service struct {
	repo  Repository
	hooks []Hook
	now   func() time.Time
}

func NewService(repo Repository, hooks ...Hook) *Service {
	return &Service{
		repo:  repo,
		hooks: hooks,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) AddHook(h Hook) {
	s.hooks = append(s.hooks, h)
}

type CreditParams struct {
	AccountID      uuid.UUID
	Amount         money.Amount
	Method         string
	Note           string
	RechargedBy    string
	Reference      string
	IdempotencyKey string
}

func (p CreditParams) description() string {
	method := strings.TrimSpace(p.Method)
	if method == "" {
		method = "Cash"
	}

	desc := "Balance recharged via " + method

	if by := strings.TrimSpace(p.RechargedBy); by != "" {
		desc += " by " + by
	}

	if note := strings.TrimSpace(p.Note); note != "" {
		desc += ": " + note
	}

	return desc
}

type DebitParams struct {
	AccountID      uuid.UUID
	Amount         money.Amount
	Reason         string
	Reference      string
	IdempotencyKey string
}

func (p DebitParams) description() string {
	if reason := strings.TrimSpace(p.Reason); reason != "" {
		return reason
	}

	return "Purchase"
}

// Result is the outcome of a balance operation. Replayed is set when an
// idempotency key matched an earlier entry and nothing was written.
type Result struct {
	Account  *account.Account
	Entry    *Entry
	Replayed bool
}

type HistoryFilter struct {
	Kind       *Kind
	Limit      int
	Descending bool
}

const OpeningBalanceMethod = "Opening balance"

// Credit adds amount to an active account and records a recharge entry.
func (s *Service) Credit(ctx context.Context, params CreditParams) (*Result, error) {
	return s.run(ctx, params.AccountID, params.IdempotencyKey, KindRecharge, params.Amount,
		func(ctx context.Context, tx Tx) (*Result, error) {
			return s.CreditTx(ctx, tx, params)
		})
}

// Debit subtracts amount from an active account and records a purchase entry.
// A debit larger than the balance is rejected without side effects.
func (s *Service) Debit(ctx context.Context, params DebitParams) (*Result, error) {
	return s.run(ctx, params.AccountID, params.IdempotencyKey, KindPurchase, params.Amount,
		func(ctx context.Context, tx Tx) (*Result, error) {
			return s.DebitTx(ctx, tx, params)
		})
}

// OpenAccount inserts a and credits a positive opening balance in the same
// transaction, so a funded account never exists without its first entry.
func (s *Service) OpenAccount(ctx context.Context, a *account.Account, opening money.Amount) (*account.Account, error) {
	if opening.IsNegative() {
		return nil, fmt.Errorf("%w: opening balance %s is negative", ErrInvalidAmount, opening)
	}

	var res *Result

	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.CreateAccount(ctx, a); err != nil {
			return err
		}

		if opening.IsZero() {
			return nil
		}

		r, err := s.CreditTx(ctx, tx, CreditParams{AccountID: a.ID, Amount: opening, Method: OpeningBalanceMethod})
		if err != nil {
			return err
		}

		res = r

		return nil
	})
	if err != nil {
		if errors.Is(err, account.ErrDuplicate) {
			return nil, err
		}

		return nil, Classify(err)
	}

	if res == nil {
		return a, nil
	}

	s.Committed(ctx, res)

	return res.Account, nil
}

// CreditTx is Credit inside a transaction the caller owns. The caller must
// call Committed after a successful commit.
func (s *Service) CreditTx(ctx context.Context, tx Tx, params CreditParams) (*Result, error) {
	if err := validateAmount(params.Amount); err != nil {
		return nil, err
	}

	if res, err := s.replayInTx(ctx, tx, params.AccountID, params.IdempotencyKey, KindRecharge, params.Amount); res != nil || err != nil {
		return res, err
	}

	now := s.now()

	acct, err := tx.ApplyCredit(ctx, params.AccountID, params.Amount, now)
	if err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:             uuid.New(),
		AccountID:      acct.ID,
		Kind:           KindRecharge,
		Amount:         params.Amount,
		BalanceBefore:  acct.Balance.Sub(params.Amount),
		BalanceAfter:   acct.Balance,
		Description:    params.description(),
		Reference:      params.Reference,
		IdempotencyKey: params.IdempotencyKey,
		CreatedAt:      now,
	}
	if err := tx.AppendEntry(ctx, entry); err != nil {
		return nil, err
	}

	return &Result{Account: acct, Entry: entry}, nil
}

// DebitTx is Debit inside a transaction the caller owns. The caller must call
// Committed after a successful commit.
func (s *Service) DebitTx(ctx context.Context, tx Tx, params DebitParams) (*Result, error) {
	if err := validateAmount(params.Amount); err != nil {
		return nil, err
	}

	if res, err := s.replayInTx(ctx, tx, params.AccountID, params.IdempotencyKey, KindPurchase, params.Amount); res != nil || err != nil {
		return res, err
	}

	now := s.now()

	acct, err := tx.ApplyDebit(ctx, params.AccountID, params.Amount, now)
	if err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:             uuid.New(),
		AccountID:      acct.ID,
		Kind:           KindPurchase,
		Amount:         params.Amount,
		BalanceBefore:  acct.Balance.Add(params.Amount),
		BalanceAfter:   acct.Balance,
		Description:    params.description(),
		Reference:      params.Reference,
		IdempotencyKey: params.IdempotencyKey,
		CreatedAt:      now,
	}
	if err := tx.AppendEntry(ctx, entry); err != nil {
		return nil, err
	}

	return &Result{Account: acct, Entry: entry}, nil
}

// Committed runs hooks for a result whose transaction has committed.
func (s *Service) Committed(ctx context.Context, res *Result) {
	if res == nil || res.Replayed {
		return
	}

	for _, h := range s.hooks {
		h.EntryCommitted(ctx, res.Account, res.Entry)
	}
}

func (s *Service) run(
	ctx context.Context,
	accountID uuid.UUID,
	key string,
	kind Kind,
	amount money.Amount,
	apply func(ctx context.Context, tx Tx) (*Result, error),
) (*Result, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	var res *Result

	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		r, err := apply(ctx, tx)
		if err != nil {
			return err
		}

		res = r

		return nil
	})
	if err != nil {
		// A concurrent request with the same key committed first.
		if key != "" && errors.Is(err, ErrDuplicateKey) {
			return s.replayCommitted(ctx, accountID, key, kind, amount)
		}

		return nil, Classify(err)
	}

	s.Committed(ctx, res)

	return res, nil
}

func (s *Service) replayInTx(ctx context.Context, tx Tx, accountID uuid.UUID, key string, kind Kind, amount money.Amount) (*Result, error) {
	if key == "" {
		return nil, nil
	}

	prior, err := tx.FindEntryByKey(ctx, accountID, key)
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return nil, nil
		}

		return nil, err
	}

	if err := matchPrior(prior, kind, amount); err != nil {
		return nil, err
	}

	acct, err := tx.GetActiveAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return &Result{Account: acct, Entry: prior, Replayed: true}, nil
}

func (s *Service) replayCommitted(ctx context.Context, accountID uuid.UUID, key string, kind Kind, amount money.Amount) (*Result, error) {
	prior, err := s.repo.FindEntryByKey(ctx, accountID, key)
	if err != nil {
		return nil, Classify(err)
	}

	if err := matchPrior(prior, kind, amount); err != nil {
		return nil, err
	}

	acct, err := s.repo.GetActiveAccount(ctx, accountID)
	if err != nil {
		return nil, Classify(err)
	}

	return &Result{Account: acct, Entry: prior, Replayed: true}, nil
}

func matchPrior(prior *Entry, kind Kind, amount money.Amount) error {
	if prior.Kind != kind || prior.Amount != amount {
		return fmt.Errorf("%w: key %q was used for a %s of %s",
			ErrIdempotencyConflict, prior.IdempotencyKey, prior.Kind, prior.Amount)
	}

	return nil
}

func validateAmount(amount money.Amount) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidAmount, amount)
	}

	return nil
}

// Classify passes business errors through and marks everything else as an
// aborted transaction.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, account.ErrAccountNotFound) ||
		errors.Is(err, ErrTransactionAborted) ||
		IsClientError(err) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrTransactionAborted, err)
}

// History lists an account's entries, oldest first unless Descending is set.
func (s *Service) History(ctx context.Context, accountID uuid.UUID, filter HistoryFilter) ([]*Entry, error) {
	if filter.Kind != nil && !filter.Kind.Valid() {
		return nil, fmt.Errorf("unknown entry kind %q", *filter.Kind)
	}

	return s.repo.ListEntries(ctx, accountID, filter)
}

// Report is the outcome of Verify.
type Report struct {
	AccountID     uuid.UUID
	Entries       int
	StoredBalance money.Amount
	LedgerBalance money.Amount
	Credits       money.Amount
	Debits        money.Amount
	Problems      []string
}

func (r *Report) Consistent() bool { return len(r.Problems) == 0 }

// Verify replays the account's history from a zero balance and checks that
// every entry is internally balanced, chains onto the previous one and ends at
// the stored balance.
func (s *Service) Verify(ctx context.Context, accountID uuid.UUID) (*Report, error) {
	acct, entries, err := s.repo.Snapshot(ctx, accountID)
	if err != nil {
		return nil, err
	}

	report := &Report{
		AccountID:     accountID,
		Entries:       len(entries),
		StoredBalance: acct.Balance,
	}

	running := money.Zero

	for i, e := range entries {
		if e.BalanceBefore != running {
			report.Problems = append(report.Problems,
				fmt.Sprintf("entry %d (%s): balance before %s, expected %s", i+1, e.ID, e.BalanceBefore, running))
		}

		if !e.Balanced() {
			report.Problems = append(report.Problems,
				fmt.Sprintf("entry %d (%s): %s of %s does not move %s to %s", i+1, e.ID, e.Kind, e.Amount, e.BalanceBefore, e.BalanceAfter))
		}

		switch e.Kind {
		case KindRecharge:
			report.Credits = report.Credits.Add(e.Amount)
			running = running.Add(e.Amount)
		case KindPurchase:
			report.Debits = report.Debits.Add(e.Amount)
			running = running.Sub(e.Amount)
		}
	}

	report.LedgerBalance = running

	if running != acct.Balance {
		report.Problems = append(report.Problems,
			fmt.Sprintf("stored balance %s differs from ledger balance %s", acct.Balance, running))
	}

	return report, nil
}
