package catalog

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/money"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=catalog
type Repository interface {
	CreateProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	ListProducts(ctx context.Context, filter ListFilter) ([]*Product, error)
	UpdateProduct(ctx context.Context, p *Product) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	// AdjustStock adds delta to the stock and fails with ErrInsufficientStock
	// instead of going below zero.
	AdjustStock(ctx context.Context, id uuid.UUID, delta int64) (*Product, error)
	SetStock(ctx context.Context, id uuid.UUID, stock int64) (*Product, error)

	BeginImport(ctx context.Context) (ImportTx, error)
}

type ImportTx interface {
	// ExistingNames returns the lower-cased subset of names already in use.
	ExistingNames(ctx context.Context, names []string) (map[string]bool, error)
	CreateProducts(ctx context.Context, products []*Product) error
	Commit() error
	Rollback() error
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

type CreateParams struct {
	Name        string
	Category    string
	Description string
	ImageURL    string
	Price       money.Amount
	Stock       int64
	MinStock    int64
}

type UpdateParams struct {
	Name        *string
	Category    *string
	Description *string
	ImageURL    *string
	Price       *money.Amount
	MinStock    *int64
	Active      *bool
}

type ListFilter struct {
	Category        *string
	Search          string
	LowStock        bool
	IncludeInactive bool
}

func (p *CreateParams) normalize() error {
	p.Name = strings.TrimSpace(p.Name)
	p.Category = strings.TrimSpace(p.Category)
	p.Description = strings.TrimSpace(p.Description)
	p.ImageURL = strings.TrimSpace(p.ImageURL)

	if p.Category == "" {
		p.Category = DefaultCategory
	}

	switch {
	case p.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	case !p.Price.IsPositive():
		return fmt.Errorf("%w: price must be positive", ErrInvalidProduct)
	case p.Stock < 0:
		return fmt.Errorf("%w: stock cannot be negative", ErrInvalidProduct)
	case p.MinStock < 0:
		return fmt.Errorf("%w: minimum stock cannot be negative", ErrInvalidProduct)
	}

	return nil
}

func (s *Service) newProduct(params CreateParams) *Product {
	now := s.now()

	return &Product{
		ID:          uuid.New(),
		Name:        params.Name,
		Category:    params.Category,
		Description: params.Description,
		ImageURL:    params.ImageURL,
		Price:       params.Price,
		Stock:       params.Stock,
		MinStock:    params.MinStock,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*Product, error) {
	if err := params.normalize(); err != nil {
		return nil, err
	}

	p := s.newProduct(params)
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Product, error) {
	return s.repo.ListProducts(ctx, filter)
}

// Update edits product details. Stock only changes through AdjustStock and
// checkout.
func (s *Service) Update(ctx context.Context, id uuid.UUID, params UpdateParams) (*Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		p.Name = strings.TrimSpace(*params.Name)
	}

	if params.Category != nil {
		p.Category = strings.TrimSpace(*params.Category)
	}

	if params.Description != nil {
		p.Description = strings.TrimSpace(*params.Description)
	}

	if params.ImageURL != nil {
		p.ImageURL = strings.TrimSpace(*params.ImageURL)
	}

	if params.Price != nil {
		p.Price = *params.Price
	}

	if params.MinStock != nil {
		p.MinStock = *params.MinStock
	}

	if params.Active != nil {
		p.Active = *params.Active
	}

	check := CreateParams{Name: p.Name, Category: p.Category, Price: p.Price, Stock: p.Stock, MinStock: p.MinStock}
	if err := check.normalize(); err != nil {
		return nil, err
	}

	p.Category = check.Category
	p.UpdatedAt = s.now()

	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

// Deactivate removes the product from the menu. Order history keeps
// referring to it.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.repo.SetActive(ctx, id, false)
}

func (s *Service) AdjustStock(ctx context.Context, id uuid.UUID, delta int64) (*Product, error) {
	if delta == 0 {
		return s.repo.GetProduct(ctx, id)
	}

	return s.repo.AdjustStock(ctx, id, delta)
}

// SetStock records a stock count taken at the counter.
func (s *Service) SetStock(ctx context.Context, id uuid.UUID, stock int64) (*Product, error) {
	if stock < 0 {
		return nil, fmt.Errorf("%w: stock cannot be negative", ErrInvalidProduct)
	}

	return s.repo.SetStock(ctx, id, stock)
}

type ImportResult struct {
	Charset  string
	Imported []*Product
	// Skipped holds names that already exist or repeat within the sheet.
	Skipped []string
	Invalid []RowError
}

// Import parses a product sheet and creates every new, valid row in one
// transaction.
func (s *Service) Import(ctx context.Context, r io.Reader) (*ImportResult, error) {
	sheet, err := ParseSheet(r)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Charset: sheet.Charset, Invalid: sheet.Invalid}

	var candidates []CreateParams

	seen := make(map[string]bool, len(sheet.Rows))

	for _, row := range sheet.Rows {
		key := strings.ToLower(row.Params.Name)
		if seen[key] {
			result.Skipped = append(result.Skipped, row.Params.Name)
			continue
		}

		seen[key] = true
		candidates = append(candidates, row.Params)
	}

	if len(candidates) == 0 {
		return result, nil
	}

	itx, err := s.repo.BeginImport(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin import: %w", err)
	}
	defer itx.Rollback()

	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name
	}

	existing, err := itx.ExistingNames(ctx, names)
	if err != nil {
		return nil, fmt.Errorf("find existing products: %w", err)
	}

	var products []*Product

	for _, c := range candidates {
		if existing[strings.ToLower(c.Name)] {
			result.Skipped = append(result.Skipped, c.Name)
			continue
		}

		products = append(products, s.newProduct(c))
	}

	if len(products) == 0 {
		return result, nil
	}

	if err := itx.CreateProducts(ctx, products); err != nil {
		return nil, fmt.Errorf("create products: %w", err)
	}

	if err := itx.Commit(); err != nil {
		return nil, fmt.Errorf("commit import: %w", err)
	}

	result.Imported = products

	return result, nil
}
