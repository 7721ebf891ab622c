package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/account"
	accountStore "github.com/KPRAHUL1/Roriri-Cafe/internal/account/store"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/catalog"
	catalogStore "github.com/KPRAHUL1/Roriri-Cafe/internal/catalog/store"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/checkout"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/database"
	ledgerStore "github.com/KPRAHUL1/Roriri-Cafe/internal/ledger/store"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/money"
)

type Store struct {
	db *database.DB
}

func New(db *database.DB) *Store {
	return &Store{db: db}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx checkout.Tx) error) error {
	return s.db.WithTx(ctx, func(sqlTx *sql.Tx) error {
		return fn(ctx, &tx{Tx: ledgerStore.NewTx(sqlTx)})
	})
}

func (s *Store) FindOrderByKey(ctx context.Context, accountID uuid.UUID, key string) (*checkout.Order, error) {
	return findOrderByKey(ctx, s.db, accountID, key)
}

func (s *Store) GetActiveAccount(ctx context.Context, accountID uuid.UUID) (*account.Account, error) {
	acct, err := accountStore.New(s.db).GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if !acct.Active() {
		return nil, account.ErrAccountNotFound
	}

	return acct, nil
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (*checkout.Order, error) {
	orders, err := listOrders(ctx, s.db, `o.id = $1`, []any{id}, "", 0)
	if err != nil {
		return nil, err
	}

	if len(orders) == 0 {
		return nil, checkout.ErrOrderNotFound
	}

	return orders[0], nil
}

func (s *Store) ListOrders(ctx context.Context, filter checkout.ListFilter) ([]*checkout.Order, error) {
	where, args := timeRange(filter.From, filter.To)

	if filter.AccountID != nil {
		args = append(args, *filter.AccountID)
		where = append(where, fmt.Sprintf("o.account_id = $%d", len(args)))
	}

	return listOrders(ctx, s.db, joinWhere(where), args, "o.created_at DESC, o.id", filter.Limit)
}

func (s *Store) SalesByProduct(ctx context.Context, filter checkout.SalesFilter) ([]*checkout.ProductSales, error) {
	where, args := timeRange(filter.From, filter.To)

	query := `
		SELECT oi.product_id, MAX(oi.product_name), SUM(oi.quantity),
			SUM(oi.quantity * oi.unit_price_minor), COUNT(DISTINCT oi.order_id)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE ` + joinWhere(where) + `
		GROUP BY oi.product_id
		ORDER BY 4 DESC, 2`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregating sales: %w", err)
	}
	defer rows.Close()

	var sales []*checkout.ProductSales

	for rows.Next() {
		var (
			ps      checkout.ProductSales
			revenue int64
		)

		if err := rows.Scan(&ps.ProductID, &ps.ProductName, &ps.Quantity, &revenue, &ps.Orders); err != nil {
			return nil, fmt.Errorf("scanning sales: %w", err)
		}

		ps.Revenue = money.FromMinor(revenue)
		sales = append(sales, &ps)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("aggregating sales: %w", err)
	}

	return sales, nil
}

// tx adds stock and order writes to the ledger transaction.
type tx struct {
	*ledgerStore.Tx
}

func (t *tx) ReserveStock(ctx context.Context, productID uuid.UUID, qty int64) (*catalog.Product, error) {
	query := `
		UPDATE products
		SET stock = stock - $1, updated_at = $2
		WHERE id = $3 AND active = $4 AND stock >= $1
		RETURNING ` + catalogStore.Columns

	p, err := catalogStore.Scan(t.SQL().QueryRowContext(ctx, query, qty, time.Now().UTC(), productID, true))
	if err == nil {
		return p, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reserving stock: %w", err)
	}

	var (
		name   string
		stock  int64
		active bool
	)

	err = t.SQL().QueryRowContext(ctx,
		`SELECT name, stock, active FROM products WHERE id = $1`, productID,
	).Scan(&name, &stock, &active)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("%w: %s", catalog.ErrProductNotFound, productID)
	case err != nil:
		return nil, fmt.Errorf("reading product after reserve: %w", err)
	case !active:
		return nil, fmt.Errorf("%w: %s", catalog.ErrProductNotFound, productID)
	}

	return nil, &checkout.OutOfStockError{ProductID: productID, Name: name, Available: stock, Requested: qty}
}

func (t *tx) CreateOrder(ctx context.Context, o *checkout.Order) error {
	_, err := t.SQL().ExecContext(ctx, `
		INSERT INTO orders (id, account_id, ledger_entry_id, token, total_minor, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		o.ID,
		o.AccountID,
		o.LedgerEntryID,
		o.Token,
		o.Total.Minor(),
		database.NullString(o.IdempotencyKey),
		o.CreatedAt,
	)
	if err != nil {
		if o.IdempotencyKey != "" && database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %q", checkout.ErrDuplicateOrderKey, o.IdempotencyKey)
		}

		return fmt.Errorf("creating order: %w", err)
	}

	for i, it := range o.Items {
		_, err := t.SQL().ExecContext(ctx, `
			INSERT INTO order_items (order_id, line_no, product_id, product_name, unit_price_minor, quantity)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			o.ID, i+1, it.ProductID, it.ProductName, it.UnitPrice.Minor(), it.Quantity,
		)
		if err != nil {
			return fmt.Errorf("creating order item %d: %w", i+1, err)
		}
	}

	return nil
}

func (t *tx) FindOrderByKey(ctx context.Context, accountID uuid.UUID, key string) (*checkout.Order, error) {
	return findOrderByKey(ctx, t.SQL(), accountID, key)
}

func findOrderByKey(ctx context.Context, q database.Querier, accountID uuid.UUID, key string) (*checkout.Order, error) {
	orders, err := listOrders(ctx, q, `o.account_id = $1 AND o.idempotency_key = $2`, []any{accountID, key}, "", 0)
	if err != nil {
		return nil, err
	}

	if len(orders) == 0 {
		return nil, checkout.ErrOrderNotFound
	}

	return orders[0], nil
}

func timeRange(from, to *time.Time) ([]string, []any) {
	var (
		where []string
		args  []any
	)

	if from != nil {
		args = append(args, from.UTC())
		where = append(where, fmt.Sprintf("o.created_at >= $%d", len(args)))
	}

	if to != nil {
		args = append(args, to.UTC())
		where = append(where, fmt.Sprintf("o.created_at < $%d", len(args)))
	}

	return where, args
}

func joinWhere(where []string) string {
	if len(where) == 0 {
		return "1 = 1"
	}

	return strings.Join(where, " AND ")
}

func listOrders(ctx context.Context, q database.Querier, where string, args []any, orderBy string, limit int) ([]*checkout.Order, error) {
	query := `
		SELECT o.id, o.account_id, o.ledger_entry_id, o.token, o.total_minor, o.idempotency_key,
			o.created_at, a.name, a.user_code
		FROM orders o
		JOIN accounts a ON a.id = o.account_id
		WHERE ` + where

	if orderBy != "" {
		query += " ORDER BY " + orderBy
	}

	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var (
		orders []*checkout.Order
		byID   = map[uuid.UUID]*checkout.Order{}
	)

	for rows.Next() {
		var (
			o     checkout.Order
			total int64
			key   sql.NullString
		)

		if err := rows.Scan(&o.ID, &o.AccountID, &o.LedgerEntryID, &o.Token, &total, &key,
			&o.CreatedAt, &o.AccountName, &o.AccountCode); err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}

		o.Total = money.FromMinor(total)
		o.IdempotencyKey = key.String
		orders = append(orders, &o)
		byID[o.ID] = &o
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	if len(orders) == 0 {
		return orders, nil
	}

	if err := loadItems(ctx, q, orders, byID); err != nil {
		return nil, err
	}

	return orders, nil
}

func loadItems(ctx context.Context, q database.Querier, orders []*checkout.Order, byID map[uuid.UUID]*checkout.Order) error {
	placeholders := make([]string, len(orders))
	args := make([]any, len(orders))

	for i, o := range orders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = o.ID
	}

	query := `
		SELECT order_id, product_id, product_name, unit_price_minor, quantity
		FROM order_items
		WHERE order_id IN (` + strings.Join(placeholders, ", ") + `)
		ORDER BY order_id, line_no`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID uuid.UUID
			it      checkout.Item
			price   int64
		)

		if err := rows.Scan(&orderID, &it.ProductID, &it.ProductName, &price, &it.Quantity); err != nil {
			return fmt.Errorf("scanning order item: %w", err)
		}

		it.UnitPrice = money.FromMinor(price)

		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, it)
		}
	}

	return rows.Err()
}
