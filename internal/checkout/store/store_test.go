package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/account"
	accountStore "github.com/KPRAHUL1/Roriri-Cafe/internal/account/store"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/catalog"
	catalogStore "github.com/KPRAHUL1/Roriri-Cafe/internal/catalog/store"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/checkout"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/checkout/store"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/database"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/database/dbtest"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/ledger"
	ledgerStore "github.com/KPRAHUL1/Roriri-Cafe/internal/ledger/store"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/money"
)

type fixture struct {
	db       *database.DB
	ledger   *ledger.Service
	checkout *checkout.Service
	store    *store.Store
}

func newFixture(db *database.DB) fixture {
	l := ledger.NewService(ledgerStore.New(db))
	s := store.New(db)

	return fixture{db: db, ledger: l, checkout: checkout.NewService(s, l), store: s}
}

func (f fixture) account(t *testing.T, balance string) uuid.UUID {
	t.Helper()

	now := time.Now().UTC()
	code := uuid.NewString()[:8]
	a := &account.Account{
		ID:        uuid.New(),
		UserCode:  code,
		QRCode:    "QR" + code,
		Name:      "Ravi",
		Type:      account.TypeEmployee,
		Status:    account.StatusActive,
		Balance:   money.MustParse(balance),
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, accountStore.New(f.db).CreateAccount(context.Background(), a))

	return a.ID
}

func (f fixture) product(t *testing.T, name, price string, stock int64) uuid.UUID {
	t.Helper()

	now := time.Now().UTC()
	p := &catalog.Product{
		ID:        uuid.New(),
		Name:      name,
		Category:  catalog.DefaultCategory,
		Price:     money.MustParse(price),
		Stock:     stock,
		MinStock:  1,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, catalogStore.New(f.db).CreateProduct(context.Background(), p))

	return p.ID
}

func (f fixture) stockOf(t *testing.T, id uuid.UUID) int64 {
	t.Helper()

	p, err := catalogStore.New(f.db).GetProduct(context.Background(), id)
	require.NoError(t, err)

	return p.Stock
}

func (f fixture) balanceOf(t *testing.T, id uuid.UUID) money.Amount {
	t.Helper()

	a, err := accountStore.New(f.db).GetAccount(context.Background(), id)
	require.NoError(t, err)

	return a.Balance
}

func (f fixture) entryCount(t *testing.T, id uuid.UUID) int {
	t.Helper()

	entries, err := f.ledger.History(context.Background(), id, ledger.HistoryFilter{})
	require.NoError(t, err)

	return len(entries)
}

func TestCheckout_CommitsStockBalanceAndOrder(t *testing.T) {
	dbtest.Each(t, func(t *testing.T, db *database.DB) {
		ctx := context.Background()
		f := newFixture(db)
		acct := f.account(t, "100.00")
		dosa := f.product(t, "Masala Dosa", "40.00", 10)
		tea := f.product(t, "Tea", "12.50", 10)

		r, err := f.checkout.Checkout(ctx, checkout.Params{AccountID: acct, Items: []checkout.LineItem{
			{ProductID: dosa, Quantity: 1},
			{ProductID: tea, Quantity: 2},
		}})
		require.NoError(t, err)

		assert.Equal(t, "65.00", r.Order.Total.String())
		assert.Equal(t, "35.00", r.Account.Balance.String())
		assert.Equal(t, "100.00", r.Entry.BalanceBefore.String())
		assert.Equal(t, r.Order.ID.String(), r.Entry.Reference)
		assert.Equal(t, int64(9), f.stockOf(t, dosa))
		assert.Equal(t, int64(8), f.stockOf(t, tea))

		got, err := f.checkout.Get(ctx, r.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, r.Order.Token, got.Token)
		assert.Equal(t, "Ravi", got.AccountName)
		require.Len(t, got.Items, 2)

		var total money.Amount
		for _, it := range got.Items {
			total = total.Add(it.Subtotal())
		}
		assert.Equal(t, got.Total, total)
	})
}

func TestCheckout_FailureLeavesEverythingUntouched(t *testing.T) {
	dbtest.Each(t, func(t *testing.T, db *database.DB) {
		ctx := context.Background()
		f := newFixture(db)
		acct := f.account(t, "30.00")
		dosa := f.product(t, "Dosa", "40.00", 5)
		tea := f.product(t, "Chai", "10.00", 1)
		missing := uuid.New()

		tests := []struct {
			name    string
			items   []checkout.LineItem
			wantErr error
		}{
			{
				name:    "insufficient balance after reserving",
				items:   []checkout.LineItem{{ProductID: dosa, Quantity: 1}},
				wantErr: ledger.ErrInsufficientBalance,
			},
			{
				name:    "second line out of stock",
				items:   []checkout.LineItem{{ProductID: dosa, Quantity: 1}, {ProductID: tea, Quantity: 2}},
				wantErr: checkout.ErrOutOfStock,
			},
			{
				name:    "unknown product",
				items:   []checkout.LineItem{{ProductID: tea, Quantity: 1}, {ProductID: missing, Quantity: 1}},
				wantErr: catalog.ErrProductNotFound,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := f.checkout.Checkout(ctx, checkout.Params{AccountID: acct, Items: tt.items})
				require.ErrorIs(t, err, tt.wantErr)

				assert.Equal(t, "30.00", f.balanceOf(t, acct).String())
				assert.Equal(t, int64(5), f.stockOf(t, dosa))
				assert.Equal(t, int64(1), f.stockOf(t, tea))
				assert.Zero(t, f.entryCount(t, acct))

				orders, err := f.checkout.List(ctx, checkout.ListFilter{AccountID: &acct})
				require.NoError(t, err)
				assert.Empty(t, orders)
			})
		}
	})
}

func TestCheckout_OutOfStockDetails(t *testing.T) {
	dbtest.Each(t, func(t *testing.T, db *database.DB) {
		f := newFixture(db)
		acct := f.account(t, "100.00")
		vada := f.product(t, "Vada", "8.00", 2)

		_, err := f.checkout.Checkout(context.Background(), checkout.Params{AccountID: acct, Items: []checkout.LineItem{
			{ProductID: vada, Quantity: 3},
		}})

		var oos *checkout.OutOfStockError
		require.True(t, errors.As(err, &oos))
		assert.Equal(t, "Vada", oos.Name)
		assert.Equal(t, int64(2), oos.Available)
		assert.Equal(t, int64(3), oos.Requested)
	})
}

func TestCheckout_ConcurrentLastItem(t *testing.T) {
	dbtest.Each(t, func(t *testing.T, db *database.DB) {
		f := newFixture(db)
		cake := f.product(t, "Cake", "20.00", 1)
		buyers := []uuid.UUID{f.account(t, "50.00"), f.account(t, "50.00"), f.account(t, "50.00")}

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			errs []error
		)

		for _, id := range buyers {
			wg.Go(func() {
				_, err := f.checkout.Checkout(context.Background(), checkout.Params{AccountID: id, Items: []checkout.LineItem{
					{ProductID: cake, Quantity: 1},
				}})

				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			})
		}
		wg.Wait()

		var ok int
		for _, err := range errs {
			if err == nil {
				ok++
				continue
			}

			assert.ErrorIs(t, err, checkout.ErrOutOfStock)
		}

		assert.Equal(t, 1, ok)
		assert.Zero(t, f.stockOf(t, cake))

		var spent money.Amount
		for _, id := range buyers {
			spent = spent.Add(money.MustParse("50.00").Sub(f.balanceOf(t, id)))
		}
		assert.Equal(t, "20.00", spent.String())
	})
}

func TestCheckout_IdempotencyKey(t *testing.T) {
	dbtest.Each(t, func(t *testing.T, db *database.DB) {
		ctx := context.Background()
		f := newFixture(db)
		acct := f.account(t, "100.00")
		juice := f.product(t, "Juice", "25.00", 10)
		params := checkout.Params{
			AccountID:      acct,
			IdempotencyKey: "kiosk-1-0001",
			Items:          []checkout.LineItem{{ProductID: juice, Quantity: 1}},
		}

		first, err := f.checkout.Checkout(ctx, params)
		require.NoError(t, err)

		second, err := f.checkout.Checkout(ctx, params)
		require.NoError(t, err)

		assert.True(t, second.Replayed)
		assert.Equal(t, first.Order.ID, second.Order.ID)
		assert.Equal(t, "75.00", f.balanceOf(t, acct).String())
		assert.Equal(t, int64(9), f.stockOf(t, juice))
		assert.Equal(t, 1, f.entryCount(t, acct))
	})
}

func TestStore_ListOrdersAndSales(t *testing.T) {
	dbtest.Each(t, func(t *testing.T, db *database.DB) {
		ctx := context.Background()
		f := newFixture(db)
		a := f.account(t, "200.00")
		b := f.account(t, "200.00")
		idli := f.product(t, "Idli", "15.00", 50)
		coffee := f.product(t, "Coffee", "10.00", 50)

		place := func(id uuid.UUID, items ...checkout.LineItem) {
			_, err := f.checkout.Checkout(ctx, checkout.Params{AccountID: id, Items: items})
			require.NoError(t, err)
		}

		place(a, checkout.LineItem{ProductID: idli, Quantity: 2})
		place(a, checkout.LineItem{ProductID: coffee, Quantity: 1})
		place(b, checkout.LineItem{ProductID: idli, Quantity: 1}, checkout.LineItem{ProductID: coffee, Quantity: 3})

		all, err := f.checkout.List(ctx, checkout.ListFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)

		mine, err := f.checkout.List(ctx, checkout.ListFilter{AccountID: &a})
		require.NoError(t, err)
		require.Len(t, mine, 2)
		assert.False(t, mine[0].CreatedAt.Before(mine[1].CreatedAt))

		limited, err := f.checkout.List(ctx, checkout.ListFilter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, limited, 1)

		future := time.Now().Add(time.Hour)
		none, err := f.checkout.List(ctx, checkout.ListFilter{From: &future})
		require.NoError(t, err)
		assert.Empty(t, none)

		sales, err := f.checkout.SalesByProduct(ctx, checkout.SalesFilter{})
		require.NoError(t, err)
		require.Len(t, sales, 2)

		assert.Equal(t, "Idli", sales[0].ProductName)
		assert.Equal(t, int64(3), sales[0].Quantity)
		assert.Equal(t, "45.00", sales[0].Revenue.String())
		assert.Equal(t, int64(2), sales[0].Orders)
		assert.Equal(t, "Coffee", sales[1].ProductName)
		assert.Equal(t, "40.00", sales[1].Revenue.String())
	})
}

func TestStore_GetOrderNotFound(t *testing.T) {
	dbtest.Each(t, func(t *testing.T, db *database.DB) {
		_, err := store.New(db).GetOrder(context.Background(), uuid.New())
		require.ErrorIs(t, err, checkout.ErrOrderNotFound)
	})
}
