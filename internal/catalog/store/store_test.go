package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/catalog"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/catalog/store"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/database"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/database/dbtest"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/money"
)

func product(name, category string, price string, stock, minStock int64) *catalog.Product {
	now := time.Now().UTC()

	return &catalog.Product{
		ID:        uuid.New(),
		Name:      name,
		Category:  category,
		Price:     money.MustParse(price),
		Stock:     stock,
		MinStock:  minStock,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestStore(t *testing.T) {
	dbtest.Each(t, func(t *testing.T, db *database.DB) {
		ctx := context.Background()
		s := store.New(db)

		dosa := product("Masala Dosa", "Breakfast", "55.00", 20, 5)
		tea := product("Tea", "Beverages", "10.00", 2, 5)
		require.NoError(t, s.CreateProduct(ctx, dosa))
		require.NoError(t, s.CreateProduct(ctx, tea))

		t.Run("names are unique ignoring case", func(t *testing.T) {
			err := s.CreateProduct(ctx, product("TEA", "Beverages", "9.00", 1, 0))
			assert.ErrorIs(t, err, catalog.ErrDuplicateProduct)
		})

		t.Run("get", func(t *testing.T) {
			got, err := s.GetProduct(ctx, dosa.ID)
			require.NoError(t, err)
			assert.Equal(t, "55.00", got.Price.String())
			assert.True(t, got.Active)

			_, err = s.GetProduct(ctx, uuid.New())
			assert.ErrorIs(t, err, catalog.ErrProductNotFound)
		})

		t.Run("list filters", func(t *testing.T) {
			all, err := s.ListProducts(ctx, catalog.ListFilter{})
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, "Tea", all[0].Name)

			low, err := s.ListProducts(ctx, catalog.ListFilter{LowStock: true})
			require.NoError(t, err)
			require.Len(t, low, 1)
			assert.Equal(t, tea.ID, low[0].ID)

			breakfast, err := s.ListProducts(ctx, catalog.ListFilter{Category: new("Breakfast")})
			require.NoError(t, err)
			assert.Len(t, breakfast, 1)

			search, err := s.ListProducts(ctx, catalog.ListFilter{Search: "dosa"})
			require.NoError(t, err)
			assert.Len(t, search, 1)
		})

		t.Run("adjust stock never goes negative", func(t *testing.T) {
			p, err := s.AdjustStock(ctx, tea.ID, 3)
			require.NoError(t, err)
			assert.Equal(t, int64(5), p.Stock)

			_, err = s.AdjustStock(ctx, tea.ID, -6)
			assert.ErrorIs(t, err, catalog.ErrInsufficientStock)

			p, err = s.AdjustStock(ctx, tea.ID, -5)
			require.NoError(t, err)
			assert.Equal(t, int64(0), p.Stock)

			_, err = s.AdjustStock(ctx, uuid.New(), 1)
			assert.ErrorIs(t, err, catalog.ErrProductNotFound)

			p, err = s.SetStock(ctx, tea.ID, 12)
			require.NoError(t, err)
			assert.Equal(t, int64(12), p.Stock)

			_, err = s.SetStock(ctx, uuid.New(), 1)
			assert.ErrorIs(t, err, catalog.ErrProductNotFound)
		})

		t.Run("deactivate hides from menu", func(t *testing.T) {
			require.NoError(t, s.SetActive(ctx, dosa.ID, false))

			menu, err := s.ListProducts(ctx, catalog.ListFilter{})
			require.NoError(t, err)
			assert.Len(t, menu, 1)

			all, err := s.ListProducts(ctx, catalog.ListFilter{IncludeInactive: true})
			require.NoError(t, err)
			assert.Len(t, all, 2)
		})

		t.Run("import transaction", func(t *testing.T) {
			itx, err := s.BeginImport(ctx)
			require.NoError(t, err)

			existing, err := itx.ExistingNames(ctx, []string{"tea", "Idli"})
			require.NoError(t, err)
			assert.Equal(t, map[string]bool{"tea": true}, existing)

			require.NoError(t, itx.CreateProducts(ctx, []*catalog.Product{product("Idli", "Breakfast", "30.00", 10, 2)}))
			require.NoError(t, itx.Rollback())

			none, err := s.ListProducts(ctx, catalog.ListFilter{Search: "idli"})
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	})
}
