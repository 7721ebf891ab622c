package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/account"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/ledger"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/money"
)

type mocks struct {
	repo *ledger.MockRepository
	tx   *ledger.MockTx
	hook *ledger.MockHook
}

func newService(t *testing.T) (*ledger.Service, mocks) {
	ctrl := gomock.NewController(t)
	m := mocks{
		repo: ledger.NewMockRepository(ctrl),
		tx:   ledger.NewMockTx(ctrl),
		hook: ledger.NewMockHook(ctrl),
	}

	return ledger.NewService(m.repo, m.hook), m
}

// runTx makes WithinTx invoke its callback with the mock transaction and
// propagate the callback's error.
func runTx(m mocks) {
	m.repo.EXPECT().WithinTx(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context, ledger.Tx) error) error {
			return fn(ctx, m.tx)
		})
}

func TestService_Credit(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name      string
		params    ledger.CreditParams
		setupMock func(m mocks)
		wantErr   error
		check     func(t *testing.T, res *ledger.Result)
	}{
		{
			name:    "zero amount",
			params:  ledger.CreditParams{AccountID: id, Amount: 0},
			wantErr: ledger.ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			params:  ledger.CreditParams{AccountID: id, Amount: -100},
			wantErr: ledger.ErrInvalidAmount,
		},
		{
			name:   "records before and after",
			params: ledger.CreditParams{AccountID: id, Amount: money.MustParse("25.50"), Method: "Cash", RechargedBy: "admin", Note: "counter 2"},
			setupMock: func(m mocks) {
				runTx(m)
				m.tx.EXPECT().ApplyCredit(gomock.Any(), id, money.MustParse("25.50"), gomock.Any()).
					Return(&account.Account{ID: id, Balance: money.MustParse("75.50")}, nil)
				m.tx.EXPECT().AppendEntry(gomock.Any(), gomock.Any()).Return(nil)
				m.hook.EXPECT().EntryCommitted(gomock.Any(), gomock.Any(), gomock.Any())
			},
			check: func(t *testing.T, res *ledger.Result) {
				assert.Equal(t, ledger.KindRecharge, res.Entry.Kind)
				assert.Equal(t, "50.00", res.Entry.BalanceBefore.String())
				assert.Equal(t, "75.50", res.Entry.BalanceAfter.String())
				assert.Equal(t, "Balance recharged via Cash by admin: counter 2", res.Entry.Description)
				assert.False(t, res.Replayed)
			},
		},
		{
			name:   "missing account is not an abort",
			params: ledger.CreditParams{AccountID: id, Amount: 100},
			setupMock: func(m mocks) {
				runTx(m)
				m.tx.EXPECT().ApplyCredit(gomock.Any(), id, money.Amount(100), gomock.Any()).
					Return(nil, account.ErrAccountNotFound)
			},
			wantErr: account.ErrAccountNotFound,
		},
		{
			name:   "storage failure aborts",
			params: ledger.CreditParams{AccountID: id, Amount: 100},
			setupMock: func(m mocks) {
				runTx(m)
				m.tx.EXPECT().ApplyCredit(gomock.Any(), id, money.Amount(100), gomock.Any()).
					Return(&account.Account{ID: id, Balance: 100}, nil)
				m.tx.EXPECT().AppendEntry(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))
			},
			wantErr: ledger.ErrTransactionAborted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newService(t)
			if tt.setupMock != nil {
				tt.setupMock(m)
			}

			res, err := svc.Credit(context.Background(), tt.params)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)

				return
			}

			require.NoError(t, err)
			tt.check(t, res)
		})
	}
}

func TestService_Debit(t *testing.T) {
	id := uuid.New()

	t.Run("insufficient balance passes through unwrapped", func(t *testing.T) {
		svc, m := newService(t)
		runTx(m)
		m.tx.EXPECT().ApplyDebit(gomock.Any(), id, money.Amount(1), gomock.Any()).
			Return(nil, &ledger.InsufficientBalanceError{AccountID: id, Available: 0, Requested: 1})

		_, err := svc.Debit(context.Background(), ledger.DebitParams{AccountID: id, Amount: 1})
		require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
		assert.NotErrorIs(t, err, ledger.ErrTransactionAborted)

		var ibe *ledger.InsufficientBalanceError
		require.ErrorAs(t, err, &ibe)
		assert.Equal(t, money.Amount(1), ibe.Shortfall())
	})

	t.Run("default description", func(t *testing.T) {
		svc, m := newService(t)
		runTx(m)
		m.tx.EXPECT().ApplyDebit(gomock.Any(), id, money.Amount(500), gomock.Any()).
			Return(&account.Account{ID: id, Balance: 0}, nil)
		m.tx.EXPECT().AppendEntry(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e *ledger.Entry) error {
				assert.Equal(t, "Purchase", e.Description)
				assert.Equal(t, money.Amount(500), e.BalanceBefore)
				assert.True(t, e.Balanced())

				return nil
			})
		m.hook.EXPECT().EntryCommitted(gomock.Any(), gomock.Any(), gomock.Any())

		res, err := svc.Debit(context.Background(), ledger.DebitParams{AccountID: id, Amount: 500})
		require.NoError(t, err)
		assert.True(t, res.Account.Balance.IsZero())
	})
}

func TestService_Idempotency(t *testing.T) {
	id := uuid.New()
	prior := &ledger.Entry{
		ID: uuid.New(), AccountID: id, Kind: ledger.KindPurchase, Amount: 300,
		BalanceBefore: 1000, BalanceAfter: 700, IdempotencyKey: "k1",
	}

	t.Run("replays prior entry without writing or hooks", func(t *testing.T) {
		svc, m := newService(t)
		runTx(m)
		m.tx.EXPECT().FindEntryByKey(gomock.Any(), id, "k1").Return(prior, nil)
		m.tx.EXPECT().GetActiveAccount(gomock.Any(), id).Return(&account.Account{ID: id, Balance: 700}, nil)

		res, err := svc.Debit(context.Background(), ledger.DebitParams{AccountID: id, Amount: 300, IdempotencyKey: "k1"})
		require.NoError(t, err)
		assert.True(t, res.Replayed)
		assert.Equal(t, prior.ID, res.Entry.ID)
	})

	t.Run("different amount conflicts", func(t *testing.T) {
		svc, m := newService(t)
		runTx(m)
		m.tx.EXPECT().FindEntryByKey(gomock.Any(), id, "k1").Return(prior, nil)

		_, err := svc.Debit(context.Background(), ledger.DebitParams{AccountID: id, Amount: 301, IdempotencyKey: "k1"})
		assert.ErrorIs(t, err, ledger.ErrIdempotencyConflict)
	})

	t.Run("different kind conflicts", func(t *testing.T) {
		svc, m := newService(t)
		runTx(m)
		m.tx.EXPECT().FindEntryByKey(gomock.Any(), id, "k1").Return(prior, nil)

		_, err := svc.Credit(context.Background(), ledger.CreditParams{AccountID: id, Amount: 300, IdempotencyKey: "k1"})
		assert.ErrorIs(t, err, ledger.ErrIdempotencyConflict)
	})

	t.Run("lost race replays the committed entry", func(t *testing.T) {
		svc, m := newService(t)
		runTx(m)
		m.tx.EXPECT().FindEntryByKey(gomock.Any(), id, "k1").Return(nil, ledger.ErrEntryNotFound)
		m.tx.EXPECT().ApplyDebit(gomock.Any(), id, money.Amount(300), gomock.Any()).
			Return(&account.Account{ID: id, Balance: 400}, nil)
		m.tx.EXPECT().AppendEntry(gomock.Any(), gomock.Any()).Return(ledger.ErrDuplicateKey)
		m.repo.EXPECT().FindEntryByKey(gomock.Any(), id, "k1").Return(prior, nil)
		m.repo.EXPECT().GetActiveAccount(gomock.Any(), id).Return(&account.Account{ID: id, Balance: 700}, nil)

		res, err := svc.Debit(context.Background(), ledger.DebitParams{AccountID: id, Amount: 300, IdempotencyKey: "k1"})
		require.NoError(t, err)
		assert.True(t, res.Replayed)
		assert.Equal(t, money.Amount(700), res.Account.Balance)
	})
}

func TestService_OpenAccount(t *testing.T) {
	t.Run("inserts and credits in one transaction", func(t *testing.T) {
		svc, m := newService(t)
		a := &account.Account{ID: uuid.New(), Name: "Meena"}

		runTx(m)
		gomock.InOrder(
			m.tx.EXPECT().CreateAccount(gomock.Any(), a).Return(nil),
			m.tx.EXPECT().ApplyCredit(gomock.Any(), a.ID, money.Amount(5000), gomock.Any()).
				Return(&account.Account{ID: a.ID, Balance: 5000}, nil),
			m.tx.EXPECT().AppendEntry(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, e *ledger.Entry) error {
					assert.Equal(t, "Balance recharged via Opening balance", e.Description)
					return nil
				}),
		)
		m.hook.EXPECT().EntryCommitted(gomock.Any(), gomock.Any(), gomock.Any())

		acct, err := svc.OpenAccount(context.Background(), a, 5000)
		require.NoError(t, err)
		assert.Equal(t, "50.00", acct.Balance.String())
	})

	t.Run("zero opening only inserts", func(t *testing.T) {
		svc, m := newService(t)
		a := &account.Account{ID: uuid.New()}

		runTx(m)
		m.tx.EXPECT().CreateAccount(gomock.Any(), a).Return(nil)

		acct, err := svc.OpenAccount(context.Background(), a, money.Zero)
		require.NoError(t, err)
		assert.Same(t, a, acct)
	})

	t.Run("credit failure aborts the insert", func(t *testing.T) {
		svc, m := newService(t)
		a := &account.Account{ID: uuid.New()}

		runTx(m)
		m.tx.EXPECT().CreateAccount(gomock.Any(), a).Return(nil)
		m.tx.EXPECT().ApplyCredit(gomock.Any(), a.ID, money.Amount(5000), gomock.Any()).
			Return(nil, errors.New("connection reset"))

		_, err := svc.OpenAccount(context.Background(), a, 5000)
		require.ErrorIs(t, err, ledger.ErrTransactionAborted)
	})

	t.Run("duplicate codes pass through", func(t *testing.T) {
		svc, m := newService(t)
		a := &account.Account{ID: uuid.New()}

		runTx(m)
		m.tx.EXPECT().CreateAccount(gomock.Any(), a).Return(account.ErrDuplicate)

		_, err := svc.OpenAccount(context.Background(), a, 5000)
		require.ErrorIs(t, err, account.ErrDuplicate)
		assert.NotErrorIs(t, err, ledger.ErrTransactionAborted)
	})

	t.Run("negative opening", func(t *testing.T) {
		svc, _ := newService(t)

		_, err := svc.OpenAccount(context.Background(), &account.Account{ID: uuid.New()}, -1)
		require.ErrorIs(t, err, ledger.ErrInvalidAmount)
	})
}

func TestService_Verify(t *testing.T) {
	id := uuid.New()
	at := time.Now()

	chain := func() []*ledger.Entry {
		return []*ledger.Entry{
			{ID: uuid.New(), Kind: ledger.KindRecharge, Amount: 5000, BalanceBefore: 0, BalanceAfter: 5000, CreatedAt: at},
			{ID: uuid.New(), Kind: ledger.KindRecharge, Amount: 2550, BalanceBefore: 5000, BalanceAfter: 7550, CreatedAt: at},
			{ID: uuid.New(), Kind: ledger.KindPurchase, Amount: 7550, BalanceBefore: 7550, BalanceAfter: 0, CreatedAt: at},
		}
	}

	tests := []struct {
		name     string
		balance  money.Amount
		entries  func() []*ledger.Entry
		problems int
	}{
		{name: "consistent", balance: 0, entries: chain},
		{name: "empty", balance: 0, entries: func() []*ledger.Entry { return nil }},
		{name: "stored balance drifted", balance: 100, entries: chain, problems: 1},
		{
			name:    "broken link",
			balance: 0,
			entries: func() []*ledger.Entry {
				e := chain()
				e[1].BalanceBefore = 4000
				return e
			},
			problems: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newService(t)
			m.repo.EXPECT().Snapshot(gomock.Any(), id).
				Return(&account.Account{ID: id, Balance: tt.balance}, tt.entries(), nil)

			report, err := svc.Verify(context.Background(), id)
			require.NoError(t, err)
			assert.Len(t, report.Problems, tt.problems, report.Problems)
			assert.Equal(t, tt.problems == 0, report.Consistent())
		})
	}
}

func TestService_History(t *testing.T) {
	svc, m := newService(t)
	id := uuid.New()

	_, err := svc.History(context.Background(), id, ledger.HistoryFilter{Kind: new(ledger.Kind("refund"))})
	require.Error(t, err)

	filter := ledger.HistoryFilter{Kind: new(ledger.KindPurchase), Limit: 5, Descending: true}
	m.repo.EXPECT().ListEntries(gomock.Any(), id, filter).Return([]*ledger.Entry{{ID: uuid.New()}}, nil)

	entries, err := svc.History(context.Background(), id, filter)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestClassify(t *testing.T) {
	assert.Nil(t, ledger.Classify(nil))
	assert.ErrorIs(t, ledger.Classify(context.DeadlineExceeded), ledger.ErrTransactionAborted)
	assert.ErrorIs(t, ledger.Classify(context.DeadlineExceeded), context.DeadlineExceeded)
	assert.Equal(t, account.ErrAccountNotFound, ledger.Classify(account.ErrAccountNotFound))
	assert.True(t, ledger.IsRetryable(ledger.Classify(ledger.ErrConcurrentUpdate)))
}
