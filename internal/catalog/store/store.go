package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/catalog"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/database"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/money"
)

type Store struct {
	db *database.DB
}

func New(db *database.DB) *Store {
	return &Store{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

// Columns is the select list Scan expects.
const Columns = `
	id, name, category, description, image_url, price_minor, stock, min_stock,
	active, created_at, updated_at
`

// Scan reads a row selected with Columns.
func Scan(s scanner) (*catalog.Product, error) {
	var (
		p     catalog.Product
		price int64
	)

	if err := s.Scan(
		&p.ID, &p.Name, &p.Category, &p.Description, &p.ImageURL, &price, &p.Stock, &p.MinStock,
		&p.Active, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	p.Price = money.FromMinor(price)

	return &p, nil
}

const insertProduct = `
	INSERT INTO products (id, name, category, description, image_url, price_minor,
		stock, min_stock, active, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

func createProduct(ctx context.Context, q database.Querier, p *catalog.Product) error {
	_, err := q.ExecContext(ctx, insertProduct,
		p.ID,
		p.Name,
		p.Category,
		p.Description,
		p.ImageURL,
		p.Price.Minor(),
		p.Stock,
		p.MinStock,
		p.Active,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %q", catalog.ErrDuplicateProduct, p.Name)
		}

		return fmt.Errorf("creating product: %w", err)
	}

	return nil
}

func (s *Store) CreateProduct(ctx context.Context, p *catalog.Product) error {
	return createProduct(ctx, s.db, p)
}

func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	p, err := Scan(s.db.QueryRowContext(ctx, `SELECT `+Columns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.ErrProductNotFound
		}

		return nil, fmt.Errorf("getting product: %w", err)
	}

	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, filter catalog.ListFilter) ([]*catalog.Product, error) {
	query := `SELECT ` + Columns + ` FROM products WHERE 1 = 1`

	var args []any

	argIdx := 1

	if !filter.IncludeInactive {
		query += fmt.Sprintf(" AND active = $%d", argIdx)

		args = append(args, true)
		argIdx++
	}

	if filter.Category != nil {
		query += fmt.Sprintf(" AND category = $%d", argIdx)

		args = append(args, *filter.Category)
		argIdx++
	}

	if filter.Search != "" {
		query += fmt.Sprintf(" AND LOWER(name) LIKE $%d", argIdx)

		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if filter.LowStock {
		query += " AND stock <= min_stock"
	}

	query += " ORDER BY category, name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	var products []*catalog.Product

	for rows.Next() {
		p, err := Scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}

		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}

	return products, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p *catalog.Product) error {
	query := `
		UPDATE products
		SET name = $1, category = $2, description = $3, image_url = $4, price_minor = $5,
			min_stock = $6, active = $7, updated_at = $8
		WHERE id = $9
	`

	res, err := s.db.ExecContext(ctx, query,
		p.Name,
		p.Category,
		p.Description,
		p.ImageURL,
		p.Price.Minor(),
		p.MinStock,
		p.Active,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %q", catalog.ErrDuplicateProduct, p.Name)
		}

		return fmt.Errorf("updating product: %w", err)
	}

	return requireRow(res)
}

func (s *Store) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET active = $1, updated_at = $2 WHERE id = $3`,
		active, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating product status: %w", err)
	}

	return requireRow(res)
}

func (s *Store) AdjustStock(ctx context.Context, id uuid.UUID, delta int64) (*catalog.Product, error) {
	query := `
		UPDATE products
		SET stock = stock + $1, updated_at = $2
		WHERE id = $3 AND stock + $1 >= 0
		RETURNING ` + Columns

	p, err := Scan(s.db.QueryRowContext(ctx, query, delta, time.Now().UTC(), id))
	if err == nil {
		return p, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("adjusting stock: %w", err)
	}

	current, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	return nil, fmt.Errorf("%w: %d in stock, change of %d", catalog.ErrInsufficientStock, current.Stock, delta)
}

func (s *Store) SetStock(ctx context.Context, id uuid.UUID, stock int64) (*catalog.Product, error) {
	query := `UPDATE products SET stock = $1, updated_at = $2 WHERE id = $3 RETURNING ` + Columns

	p, err := Scan(s.db.QueryRowContext(ctx, query, stock, time.Now().UTC(), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.ErrProductNotFound
		}

		return nil, fmt.Errorf("setting stock: %w", err)
	}

	return p, nil
}

func (s *Store) BeginImport(ctx context.Context) (catalog.ImportTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning import: %w", err)
	}

	return &importTx{tx: tx}, nil
}

type importTx struct {
	tx *sql.Tx
}

func (t *importTx) ExistingNames(ctx context.Context, names []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(names) == 0 {
		return existing, nil
	}

	placeholders := make([]string, len(names))
	args := make([]any, len(names))

	for i, n := range names {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = strings.ToLower(n)
	}

	query := `SELECT LOWER(name) FROM products WHERE LOWER(name) IN (` + strings.Join(placeholders, ", ") + `)`

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("finding existing products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning product name: %w", err)
		}

		existing[name] = true
	}

	return existing, rows.Err()
}

func (t *importTx) CreateProducts(ctx context.Context, products []*catalog.Product) error {
	for _, p := range products {
		if err := createProduct(ctx, t.tx, p); err != nil {
			return err
		}
	}

	return nil
}

func (t *importTx) Commit() error {
	return t.tx.Commit()
}

func (t *importTx) Rollback() error {
	return t.tx.Rollback()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}

	if n == 0 {
		return catalog.ErrProductNotFound
	}

	return nil
}
