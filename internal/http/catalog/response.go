package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/catalog"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/checkout"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/money"
)

type productResponse struct {
	ID          uuid.UUID    `json:"id"`
	Name        string       `json:"name"`
	Category    string       `json:"category"`
	Description string       `json:"description,omitempty"`
	ImageURL    string       `json:"image_url,omitempty"`
	Price       money.Amount `json:"price"`
	Stock       int64        `json:"stock"`
	MinStock    int64        `json:"min_stock"`
	LowStock    bool         `json:"low_stock"`
	Active      bool         `json:"active"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func toResponse(p *catalog.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Category:    p.Category,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		Price:       p.Price,
		Stock:       p.Stock,
		MinStock:    p.MinStock,
		LowStock:    p.LowStock(),
		Active:      p.Active,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toResponseList(products []*catalog.Product) []productResponse {
	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toResponse(p)
	}

	return resp
}

type rowErrorResponse struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

type importResponse struct {
	Charset  string             `json:"charset"`
	Imported int                `json:"imported"`
	Products []productResponse  `json:"products"`
	Skipped  []string           `json:"skipped"`
	Invalid  []rowErrorResponse `json:"invalid"`
}

func toImportResponse(res *catalog.ImportResult) importResponse {
	invalid := make([]rowErrorResponse, len(res.Invalid))
	for i, e := range res.Invalid {
		invalid[i] = rowErrorResponse{Row: e.Row, Reason: e.Reason}
	}

	skipped := res.Skipped
	if skipped == nil {
		skipped = []string{}
	}

	return importResponse{
		Charset:  res.Charset,
		Imported: len(res.Imported),
		Products: toResponseList(res.Imported),
		Skipped:  skipped,
		Invalid:  invalid,
	}
}

type salesResponse struct {
	ProductID   uuid.UUID    `json:"product_id"`
	ProductName string       `json:"product_name"`
	Quantity    int64        `json:"quantity"`
	Revenue     money.Amount `json:"revenue"`
	Orders      int64        `json:"orders"`
}

type analyticsResponse struct {
	UnitsSold   int64             `json:"units_sold"`
	Revenue     money.Amount      `json:"revenue"`
	TopProducts []salesResponse   `json:"top_products"`
	LowStock    []productResponse `json:"low_stock"`
}

func toAnalyticsResponse(sales []*checkout.ProductSales, low []*catalog.Product) analyticsResponse {
	units, revenue := checkout.Totals(sales)

	top := make([]salesResponse, len(sales))
	for i, s := range sales {
		top[i] = salesResponse{
			ProductID:   s.ProductID,
			ProductName: s.ProductName,
			Quantity:    s.Quantity,
			Revenue:     s.Revenue,
			Orders:      s.Orders,
		}
	}

	return analyticsResponse{
		UnitsSold:   units,
		Revenue:     revenue,
		TopProducts: top,
		LowStock:    toResponseList(low),
	}
}
