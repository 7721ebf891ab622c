// Package seed loads demo accounts and menu items from a YAML fixture.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/account"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/catalog"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/money"
)

type AccountFixture struct {
	UserCode       string `yaml:"user_code"`
	Name           string `yaml:"name"`
	Type           string `yaml:"type"`
	Email          string `yaml:"email"`
	Phone          string `yaml:"phone"`
	Department     string `yaml:"department"`
	OpeningBalance string `yaml:"opening_balance"`
	PIN            string `yaml:"pin"`
}

type ProductFixture struct {
	Name        string `yaml:"name"`
	Category    string `yaml:"category"`
	Description string `yaml:"description"`
	Price       string `yaml:"price"`
	Stock       int64  `yaml:"stock"`
	MinStock    int64  `yaml:"min_stock"`
}

type Fixture struct {
	Accounts []AccountFixture `yaml:"accounts"`
	Products []ProductFixture `yaml:"products"`
}

// Load reads and validates a fixture file.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", path, err)
	}

	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", path, err)
	}

	return f, nil
}

func Parse(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, err
	}

	for i, a := range f.Accounts {
		if a.Name == "" {
			return nil, fmt.Errorf("account at index %d missing name", i)
		}

		if !account.Type(a.Type).Valid() {
			return nil, fmt.Errorf("account %q has unknown type %q", a.Name, a.Type)
		}
	}

	for i, p := range f.Products {
		if p.Name == "" {
			return nil, fmt.Errorf("product at index %d missing name", i)
		}

		if _, err := money.Parse(p.Price); err != nil {
			return nil, fmt.Errorf("product %q: %w", p.Name, err)
		}
	}

	return &f, nil
}

type AccountCreator interface {
	Create(ctx context.Context, params account.CreateParams) (*account.Account, error)
}

type ProductCreator interface {
	Create(ctx context.Context, params catalog.CreateParams) (*catalog.Product, error)
}

// Result counts what Apply created and what already existed.
type Result struct {
	Accounts int
	Products int
	Skipped  int
}

// Apply creates every fixture row. Rows that already exist are skipped, so a
// fixture can be applied more than once.
func Apply(ctx context.Context, f *Fixture, accounts AccountCreator, products ProductCreator) (*Result, error) {
	var res Result

	for _, a := range f.Accounts {
		var opening money.Amount

		if a.OpeningBalance != "" {
			amt, err := money.Parse(a.OpeningBalance)
			if err != nil {
				return nil, fmt.Errorf("account %q opening balance: %w", a.Name, err)
			}

			opening = amt
		}

		_, err := accounts.Create(ctx, account.CreateParams{
			UserCode:       a.UserCode,
			Name:           a.Name,
			Email:          a.Email,
			Phone:          a.Phone,
			Department:     a.Department,
			Type:           account.Type(a.Type),
			OpeningBalance: opening,
			PIN:            a.PIN,
		})

		switch {
		case errors.Is(err, account.ErrDuplicate):
			res.Skipped++
		case err != nil:
			return nil, fmt.Errorf("creating account %q: %w", a.Name, err)
		default:
			res.Accounts++
		}
	}

	for _, p := range f.Products {
		_, err := products.Create(ctx, catalog.CreateParams{
			Name:        p.Name,
			Category:    p.Category,
			Description: p.Description,
			Price:       money.MustParse(p.Price),
			Stock:       p.Stock,
			MinStock:    p.MinStock,
		})

		switch {
		case errors.Is(err, catalog.ErrDuplicateProduct):
			res.Skipped++
		case err != nil:
			return nil, fmt.Errorf("creating product %q: %w", p.Name, err)
		default:
			res.Products++
		}
	}

	return &res, nil
}
