package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/account"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/catalog"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/ledger"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/money"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=checkout
type Repository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	FindOrderByKey(ctx context.Context, accountID uuid.UUID, key string) (*Order, error)
	GetActiveAccount(ctx context.Context, accountID uuid.UUID) (*account.Account, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]*Order, error)
	SalesByProduct(ctx context.Context, filter SalesFilter) ([]*ProductSales, error)
}

// Tx extends the ledger's transaction with stock and order writes so a
// checkout commits or rolls back as one unit.
type Tx interface {
	ledger.Tx

	// ReserveStock takes qty units of an active product and returns it as
	// priced at the moment of sale.
	ReserveStock(ctx context.Context, productID uuid.UUID, qty int64) (*catalog.Product, error)
	CreateOrder(ctx context.Context, o *Order) error
	FindOrderByKey(ctx context.Context, accountID uuid.UUID, key string) (*Order, error)
}

// Ledger is the part of ledger.Service checkout drives.
type Ledger interface {
	DebitTx(ctx context.Context, tx ledger.Tx, params ledger.DebitParams) (*ledger.Result, error)
	Committed(ctx context.Context, res *ledger.Result)
}

// Observer is told about orders after they commit.
type Observer interface {
	OrderPlaced(ctx context.Context, acct *account.Account, order *Order)
}

type Service struct {
	repo      Repository
	ledger    Ledger
	observers []Observer
}

func NewService(repo Repository, l Ledger, observers ...Observer) *Service {
	return &Service{repo: repo, ledger: l, observers: observers}
}

type LineItem struct {
	ProductID uuid.UUID
	Quantity  int64
}

type Params struct {
	AccountID      uuid.UUID
	Items          []LineItem
	IdempotencyKey string
}

type ListFilter struct {
	AccountID *uuid.UUID
	From      *time.Time
	To        *time.Time
	Limit     int
}

type SalesFilter struct {
	From *time.Time
	To   *time.Time
}

// Receipt is the outcome of Checkout. Entry is nil on a replay.
type Receipt struct {
	Order    *Order
	Account  *account.Account
	Entry    *ledger.Entry
	Replayed bool
}

// MaxQuantity caps how many units of one product a single cart may hold.
const MaxQuantity int64 = 10_000

// ledgerKey keeps checkout keys apart from keys sent to the ledger directly.
func ledgerKey(key string) string {
	if key == "" {
		return ""
	}

	return "checkout:" + key
}

// Checkout reserves stock, debits the account and records the order in one
// transaction. Any failure leaves stock, balance and ledger untouched.
func (s *Service) Checkout(ctx context.Context, params Params) (*Receipt, error) {
	lines, err := mergeLines(params.Items)
	if err != nil {
		return nil, err
	}

	var (
		receipt *Receipt
		debit   *ledger.Result
	)

	err = s.repo.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if params.IdempotencyKey != "" {
			prior, err := tx.FindOrderByKey(ctx, params.AccountID, params.IdempotencyKey)
			switch {
			case err == nil:
				if err := matchOrder(prior, lines); err != nil {
					return err
				}

				acct, err := tx.GetActiveAccount(ctx, params.AccountID)
				if err != nil {
					return err
				}

				receipt = &Receipt{Order: prior, Account: acct, Replayed: true}

				return nil
			case !errors.Is(err, ErrOrderNotFound):
				return err
			}
		}

		order := &Order{
			ID:             uuid.New(),
			AccountID:      params.AccountID,
			IdempotencyKey: params.IdempotencyKey,
			Items:          make([]Item, 0, len(lines)),
		}
		order.Token = PickupToken(order.ID)

		for _, line := range lines {
			p, err := tx.ReserveStock(ctx, line.ProductID, line.Quantity)
			if err != nil {
				return err
			}

			item := Item{ProductID: p.ID, ProductName: p.Name, UnitPrice: p.Price, Quantity: line.Quantity}
			order.Items = append(order.Items, item)
			order.Total = order.Total.Add(item.Subtotal())
		}

		res, err := s.ledger.DebitTx(ctx, tx, ledger.DebitParams{
			AccountID:      params.AccountID,
			Amount:         order.Total,
			Reason:         "Purchase: " + order.Summary(),
			Reference:      order.ID.String(),
			IdempotencyKey: ledgerKey(params.IdempotencyKey),
		})
		if err != nil {
			return err
		}

		if res.Replayed {
			return fmt.Errorf("%w: ledger entry exists without its order", ledger.ErrIdempotencyConflict)
		}

		order.LedgerEntryID = res.Entry.ID
		order.CreatedAt = res.Entry.CreatedAt

		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}

		debit = res
		receipt = &Receipt{Order: order, Account: res.Account, Entry: res.Entry}

		return nil
	})
	if err != nil {
		if params.IdempotencyKey != "" && (errors.Is(err, ErrDuplicateOrderKey) || errors.Is(err, ledger.ErrDuplicateKey)) {
			return s.replayCommitted(ctx, params, lines)
		}

		return nil, classify(err)
	}

	if receipt.Replayed {
		return receipt, nil
	}

	s.ledger.Committed(ctx, debit)

	for _, o := range s.observers {
		o.OrderPlaced(ctx, receipt.Account, receipt.Order)
	}

	slog.Info("order placed",
		"order_id", receipt.Order.ID,
		"account_id", receipt.Account.ID,
		"total", receipt.Order.Total.String(),
		"items", len(receipt.Order.Items),
	)

	return receipt, nil
}

func (s *Service) replayCommitted(ctx context.Context, params Params, lines []LineItem) (*Receipt, error) {
	prior, err := s.repo.FindOrderByKey(ctx, params.AccountID, params.IdempotencyKey)
	if err != nil {
		return nil, classify(err)
	}

	if err := matchOrder(prior, lines); err != nil {
		return nil, err
	}

	acct, err := s.repo.GetActiveAccount(ctx, params.AccountID)
	if err != nil {
		return nil, classify(err)
	}

	return &Receipt{Order: prior, Account: acct, Replayed: true}, nil
}

// mergeLines folds repeated products together and orders lines by product id
// so concurrent checkouts lock product rows in the same order.
func mergeLines(items []LineItem) ([]LineItem, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	qty := make(map[uuid.UUID]int64, len(items))

	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: %d for product %s", ErrInvalidQuantity, it.Quantity, it.ProductID)
		}

		if it.Quantity > MaxQuantity-qty[it.ProductID] {
			return nil, fmt.Errorf("%w: more than %d of product %s", ErrInvalidQuantity, MaxQuantity, it.ProductID)
		}

		qty[it.ProductID] += it.Quantity
	}

	merged := make([]LineItem, 0, len(qty))
	for id, q := range qty {
		merged = append(merged, LineItem{ProductID: id, Quantity: q})
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].ProductID.String() < merged[j].ProductID.String()
	})

	return merged, nil
}

// matchOrder reports a conflict when a reused key arrives with a cart other
// than the one its order paid for.
func matchOrder(prior *Order, lines []LineItem) error {
	want := make(map[uuid.UUID]int64, len(lines))
	for _, l := range lines {
		want[l.ProductID] = l.Quantity
	}

	got := make(map[uuid.UUID]int64, len(prior.Items))
	for _, it := range prior.Items {
		got[it.ProductID] += it.Quantity
	}

	if !maps.Equal(want, got) {
		return fmt.Errorf("%w: key %q was used for order %s with a different cart",
			ledger.ErrIdempotencyConflict, prior.IdempotencyKey, prior.Token)
	}

	return nil
}

func classify(err error) error {
	if errors.Is(err, ErrEmptyCart) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrOutOfStock) ||
		errors.Is(err, catalog.ErrProductNotFound) {
		return err
	}

	return ledger.Classify(err)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// List returns orders newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Order, error) {
	return s.repo.ListOrders(ctx, filter)
}

// SalesByProduct ranks products by revenue.
func (s *Service) SalesByProduct(ctx context.Context, filter SalesFilter) ([]*ProductSales, error) {
	return s.repo.SalesByProduct(ctx, filter)
}

// Totals sums a sales report.
func Totals(sales []*ProductSales) (units int64, revenue money.Amount) {
	for _, s := range sales {
		units += s.Quantity
		revenue = revenue.Add(s.Revenue)
	}

	return units, revenue
}
