package checkout

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/money"
)

var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrOutOfStock      = errors.New("out of stock")
	ErrOrderNotFound   = errors.New("order not found")
	// ErrDuplicateOrderKey is returned by repositories when an order with the
	// same idempotency key was committed concurrently.
	ErrDuplicateOrderKey = errors.New("duplicate order idempotency key")
)

// OutOfStockError is returned when a cart line asks for more than is left.
type OutOfStockError struct {
	ProductID uuid.UUID
	Name      string
	Available int64
	Requested int64
}

func (e *OutOfStockError) Error() string {
	return fmt.Sprintf("%s: %d left, %d requested", e.Name, e.Available, e.Requested)
}

func (e *OutOfStockError) Unwrap() error {
	return ErrOutOfStock
}

// Order is a paid checkout. Items keep the name and price at the time of sale.
type Order struct {
	ID             uuid.UUID
	AccountID      uuid.UUID
	LedgerEntryID  uuid.UUID
	Token          string
	Total          money.Amount
	IdempotencyKey string
	Items          []Item
	CreatedAt      time.Time

	// Filled on reads.
	AccountName string
	AccountCode string
}

type Item struct {
	ProductID   uuid.UUID
	ProductName string
	UnitPrice   money.Amount
	Quantity    int64
}

func (i Item) Subtotal() money.Amount {
	return i.UnitPrice.Mul(i.Quantity)
}

// Summary renders the items as "2 x Masala Dosa, 1 x Tea".
func (o *Order) Summary() string {
	parts := make([]string, len(o.Items))
	for i, it := range o.Items {
		parts[i] = fmt.Sprintf("%d x %s", it.Quantity, it.ProductName)
	}

	return strings.Join(parts, ", ")
}

// PickupToken is the short code read out at the counter.
func PickupToken(orderID uuid.UUID) string {
	return "T-" + strings.ToUpper(strings.ReplaceAll(orderID.String(), "-", "")[:6])
}

// ProductSales aggregates sold quantities per product.
type ProductSales struct {
	ProductID   uuid.UUID
	ProductName string
	Quantity    int64
	Revenue     money.Amount
	Orders      int64
}
