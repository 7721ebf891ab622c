package http_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/session"
)

type receiptBody struct {
	Order struct {
		ID    string `json:"id"`
		Token string `json:"token"`
		Total string `json:"total"`
		Items []struct {
			ProductName string `json:"product_name"`
			Quantity    int64  `json:"quantity"`
			Subtotal    string `json:"subtotal"`
		} `json:"items"`
	} `json:"order"`
	Balance  string `json:"balance"`
	Replayed bool   `json:"replayed"`
}

func cart(accountID string, lines ...any) map[string]any {
	items := make([]map[string]any, 0, len(lines)/2)
	for i := 0; i+1 < len(lines); i += 2 {
		items = append(items, map[string]any{"product_id": lines[i], "quantity": lines[i+1]})
	}

	return map[string]any{"account_id": accountID, "items": items}
}

func TestCheckout_Flow(t *testing.T) {
	s := newServer(t)
	acct := s.createAccount("Meena", "100.00")
	dosa := s.createProduct("Masala Dosa", "55.00", 3)
	tea := s.createProduct("Tea", "10.00", 10)

	rec := s.do(http.MethodPost, "/api/v1/checkout", cart(acct.ID, dosa.ID, 1, tea.ID, 2), "Idempotency-Key", "kiosk-1-0001")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	receipt := decode[receiptBody](t, rec)
	assert.Equal(t, "75.00", receipt.Order.Total)
	assert.Equal(t, "25.00", receipt.Balance)
	assert.True(t, strings.HasPrefix(receipt.Order.Token, "T-"))
	require.Len(t, receipt.Order.Items, 2)

	rec = s.do(http.MethodPost, "/api/v1/checkout", cart(acct.ID, dosa.ID, 1, tea.ID, 2), "Idempotency-Key", "kiosk-1-0001")
	require.Equal(t, http.StatusOK, rec.Code)

	replay := decode[receiptBody](t, rec)
	assert.True(t, replay.Replayed)
	assert.Equal(t, receipt.Order.ID, replay.Order.ID)
	assert.Equal(t, "25.00", replay.Balance)

	rec = s.do(http.MethodPost, "/api/v1/checkout", cart(acct.ID, tea.ID, 1), "Idempotency-Key", "kiosk-1-0001")
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, "idempotency_conflict", decode[errorBody](t, rec).Code)

	rec = s.do(http.MethodPost, "/api/v1/checkout", cart(acct.ID, dosa.ID, 5))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	oos := decode[errorBody](t, rec)
	assert.Equal(t, "out_of_stock", oos.Code)
	assert.Equal(t, "Masala Dosa", oos.Details["product"])
	assert.EqualValues(t, 2, oos.Details["available"])

	rec = s.do(http.MethodPost, "/api/v1/checkout", cart(acct.ID, dosa.ID, 1))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	short := decode[errorBody](t, rec)
	assert.Equal(t, "insufficient_balance", short.Code)
	assert.Equal(t, "30.00", short.Details["shortfall"])

	rec = s.do(http.MethodGet, "/api/v1/products/"+dosa.ID, nil)
	assert.Equal(t, int64(2), decode[productBody](t, rec).Stock, "failed checkouts leave stock alone")

	rec = s.do(http.MethodGet, "/api/v1/accounts/"+acct.ID+"/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	rec = s.do(http.MethodGet, "/api/v1/orders/"+receipt.Order.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/orders/00000000-0000-0000-0000-000000000001", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/accounts/"+acct.ID+"/ledger?kind=purchase", nil)
	entries := decode[[]entryBody](t, rec)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Description, "Purchase: "))
	assert.Contains(t, entries[0].Description, "1 x Masala Dosa")
	assert.Contains(t, entries[0].Description, "2 x Tea")
}

func TestCheckout_Validation(t *testing.T) {
	s := newServer(t)
	acct := s.createAccount("Gopi", "10.00")
	tea := s.createProduct("Tea", "10.00", 10)

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"empty cart", map[string]any{"account_id": acct.ID, "items": []any{}}, http.StatusBadRequest, "bad_request"},
		{"zero quantity", cart(acct.ID, tea.ID, 0), http.StatusBadRequest, "bad_request"},
		{"unknown product", cart(acct.ID, "00000000-0000-0000-0000-000000000001", 1), http.StatusNotFound, "product_not_found"},
		{"unknown account", cart("00000000-0000-0000-0000-000000000002", tea.ID, 1), http.StatusNotFound, "account_not_found"},
		{"unknown field", map[string]any{"account_id": acct.ID, "items": []any{}, "discount": "5"}, http.StatusBadRequest, "bad_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/v1/checkout", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCode, decode[errorBody](t, rec).Code)
		})
	}
}

func TestCheckout_RequiresSession(t *testing.T) {
	sessions, err := session.NewManager("kiosk-test-secret", time.Minute)
	require.NoError(t, err)

	s := newServer(t, func(c *setup) { c.sessions = sessions })
	acct := s.createAccount("Lakshmi", "50.00")
	other := s.createAccount("Bala", "50.00")
	tea := s.createProduct("Tea", "10.00", 10)

	rec := s.do(http.MethodPost, "/api/v1/checkout", cart(acct.ID, tea.ID, 1))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid_session", decode[errorBody](t, rec).Code)

	rec = s.do(http.MethodPost, "/api/v1/accounts/"+acct.ID+"/pin", map[string]any{"pin": "2468"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/accounts/"+acct.ID+"/pin/verify", map[string]any{"pin": "2468"})
	require.Equal(t, http.StatusOK, rec.Code)

	verified := decode[struct {
		Session struct {
			Token string `json:"token"`
		} `json:"session"`
	}](t, rec)
	require.NotEmpty(t, verified.Session.Token)

	bearer := "Bearer " + verified.Session.Token

	rec = s.do(http.MethodPost, "/api/v1/checkout", cart(other.ID, tea.ID, 1), "Authorization", bearer)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "a session only pays from its own account")

	rec = s.do(http.MethodPost, "/api/v1/checkout", cart(acct.ID, tea.ID, 1), "Authorization", bearer)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "40.00", decode[receiptBody](t, rec).Balance)

	debit := map[string]any{"amount": "5.00"}

	rec = s.do(http.MethodPost, "/api/v1/accounts/"+acct.ID+"/debit", debit)
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "direct debits need a session too")

	rec = s.do(http.MethodPost, "/api/v1/accounts/"+other.ID+"/debit", debit, "Authorization", bearer)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/accounts/"+acct.ID+"/debit", debit, "Authorization", bearer)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "35.00", decode[operationBody](t, rec).Account.Balance)
}

func TestOrders_ExportAndAnalytics(t *testing.T) {
	s := newServer(t)
	acct := s.createAccount("Suresh", "200.00")
	dosa := s.createProduct("Masala Dosa", "55.00", 10)
	tea := s.createProduct("Tea", "10.00", 10)

	for _, body := range []map[string]any{
		cart(acct.ID, dosa.ID, 2),
		cart(acct.ID, tea.ID, 3, dosa.ID, 1),
	} {
		rec := s.do(http.MethodPost, "/api/v1/checkout", body)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := s.do(http.MethodGet, "/api/v1/orders/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "orders_")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "date,token,account_code,account_name,items,total", lines[0])

	rec = s.do(http.MethodGet, "/api/v1/orders?account_id="+acct.ID+"&limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	rec = s.do(http.MethodGet, "/api/v1/orders?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	today := time.Now().UTC().Format(time.DateOnly)

	rec = s.do(http.MethodGet, "/api/v1/orders?from="+today+"&to="+today, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 2, "a date-only upper bound includes that day")

	rec = s.do(http.MethodGet, "/api/v1/orders/export?from="+today+"&to="+today, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, strings.Split(strings.TrimSpace(rec.Body.String()), "\n"), 3)

	rec = s.do(http.MethodGet, "/api/v1/products/analytics?from="+today+"&to="+today, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"units_sold":6`)

	rec = s.do(http.MethodGet, "/api/v1/products/analytics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	analytics := decode[struct {
		UnitsSold   int64  `json:"units_sold"`
		Revenue     string `json:"revenue"`
		TopProducts []struct {
			ProductName string `json:"product_name"`
			Quantity    int64  `json:"quantity"`
			Revenue     string `json:"revenue"`
		} `json:"top_products"`
	}](t, rec)

	assert.Equal(t, int64(6), analytics.UnitsSold)
	assert.Equal(t, "195.00", analytics.Revenue)
	require.Len(t, analytics.TopProducts, 2)
	assert.Equal(t, "Masala Dosa", analytics.TopProducts[0].ProductName)
	assert.Equal(t, "165.00", analytics.TopProducts[0].Revenue)
}
