package checkout

import (
	"time"

	"github.com/google/uuid"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/checkout"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/money"
)

type itemResponse struct {
	ProductID   uuid.UUID    `json:"product_id"`
	ProductName string       `json:"product_name"`
	UnitPrice   money.Amount `json:"unit_price"`
	Quantity    int64        `json:"quantity"`
	Subtotal    money.Amount `json:"subtotal"`
}

type orderResponse struct {
	ID            uuid.UUID      `json:"id"`
	AccountID     uuid.UUID      `json:"account_id"`
	AccountName   string         `json:"account_name,omitempty"`
	AccountCode   string         `json:"account_code,omitempty"`
	LedgerEntryID uuid.UUID      `json:"ledger_entry_id"`
	Token         string         `json:"token"`
	Total         money.Amount   `json:"total"`
	Items         []itemResponse `json:"items"`
	CreatedAt     time.Time      `json:"created_at"`
}

func toResponse(o *checkout.Order) orderResponse {
	items := make([]itemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = itemResponse{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			Subtotal:    it.Subtotal(),
		}
	}

	return orderResponse{
		ID:            o.ID,
		AccountID:     o.AccountID,
		AccountName:   o.AccountName,
		AccountCode:   o.AccountCode,
		LedgerEntryID: o.LedgerEntryID,
		Token:         o.Token,
		Total:         o.Total,
		Items:         items,
		CreatedAt:     o.CreatedAt,
	}
}

func toResponseList(orders []*checkout.Order) []orderResponse {
	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toResponse(o)
	}

	return resp
}

type receiptResponse struct {
	Order    orderResponse `json:"order"`
	Balance  money.Amount  `json:"balance"`
	Replayed bool          `json:"replayed"`
}
