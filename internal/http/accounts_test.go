package http_test

import (
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccounts_RechargeDebitScenario(t *testing.T) {
	s := newServer(t)
	acct := s.createAccount("Arjun", "50.00")
	assert.Equal(t, "50.00", acct.Balance)

	base := "/api/v1/accounts/" + acct.ID

	rec := s.do(http.MethodPost, base+"/recharge", map[string]any{"amount": "25.50", "method": "UPI", "recharged_by": "counter-1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	op := decode[operationBody](t, rec)
	assert.Equal(t, "75.50", op.Account.Balance)
	assert.Equal(t, "recharge", op.Entry.Kind)
	assert.Equal(t, "50.00", op.Entry.BalanceBefore)
	assert.Equal(t, "Balance recharged via UPI by counter-1", op.Entry.Description)

	rec = s.do(http.MethodPost, base+"/debit", map[string]any{"amount": "75.50"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "0.00", decode[operationBody](t, rec).Account.Balance)

	rec = s.do(http.MethodPost, base+"/debit", map[string]any{"amount": "0.01"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	e := decode[errorBody](t, rec)
	assert.Equal(t, "insufficient_balance", e.Code)
	assert.Equal(t, "0.01", e.Details["shortfall"])

	rec = s.do(http.MethodGet, base+"/ledger?order=asc", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	entries := decode[[]entryBody](t, rec)
	require.Len(t, entries, 3, "opening balance, recharge and purchase")
	assert.Equal(t, "Balance recharged via Opening balance", entries[0].Description)
	assert.Equal(t, "purchase", entries[2].Kind)

	rec = s.do(http.MethodGet, base+"/ledger/verify", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	report := decode[struct {
		Consistent    bool   `json:"consistent"`
		Entries       int    `json:"entries"`
		LedgerBalance string `json:"ledger_balance"`
	}](t, rec)
	assert.True(t, report.Consistent)
	assert.Equal(t, 3, report.Entries)
	assert.Equal(t, "0.00", report.LedgerBalance)
}

func TestAccounts_InvalidRequests(t *testing.T) {
	s := newServer(t)
	acct := s.createAccount("Nila", "10.00")
	base := "/api/v1/accounts/" + acct.ID

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"bad id", http.MethodGet, "/api/v1/accounts/nope", nil, http.StatusBadRequest, "bad_request"},
		{"unknown account", http.MethodPost, "/api/v1/accounts/7f1d1f6e-1a43-4a4e-9d44-3b6f2b0e7a11/recharge", map[string]any{"amount": "5"}, http.StatusNotFound, "account_not_found"},
		{"zero recharge", http.MethodPost, base + "/recharge", map[string]any{"amount": "0"}, http.StatusBadRequest, "invalid_amount"},
		{"negative debit", http.MethodPost, base + "/debit", map[string]any{"amount": "-1"}, http.StatusBadRequest, "invalid_amount"},
		{"sub-paisa amount", http.MethodPost, base + "/debit", map[string]any{"amount": "1.005"}, http.StatusBadRequest, "bad_request"},
		{"bad balance op", http.MethodPatch, base + "/balance", map[string]any{"operation": "multiply", "amount": "1"}, http.StatusBadRequest, "bad_request"},
		{"missing name", http.MethodPost, "/api/v1/accounts", map[string]any{"type": "Student"}, http.StatusBadRequest, "bad_request"},
		{"bad type", http.MethodPost, "/api/v1/accounts", map[string]any{"name": "X", "type": "Alien"}, http.StatusBadRequest, "invalid_account"},
		{"bad kind", http.MethodGet, base + "/ledger?kind=refund", nil, http.StatusBadRequest, "bad_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCode, decode[errorBody](t, rec).Code)
		})
	}
}

func TestAccounts_IdempotencyKeyHeader(t *testing.T) {
	s := newServer(t)
	acct := s.createAccount("Kiran", "0")
	path := "/api/v1/accounts/" + acct.ID + "/recharge"

	first := s.do(http.MethodPost, path, map[string]any{"amount": "100"}, "Idempotency-Key", "till-4-r-17")
	require.Equal(t, http.StatusCreated, first.Code)

	again := s.do(http.MethodPost, path, map[string]any{"amount": "100"}, "Idempotency-Key", "till-4-r-17")
	require.Equal(t, http.StatusOK, again.Code)

	op := decode[operationBody](t, again)
	assert.True(t, op.Replayed)
	assert.Equal(t, "100.00", op.Account.Balance)

	conflict := s.do(http.MethodPost, path, map[string]any{"amount": "200"}, "Idempotency-Key", "till-4-r-17")
	require.Equal(t, http.StatusConflict, conflict.Code)
	assert.Equal(t, "idempotency_conflict", decode[errorBody](t, conflict).Code)
}

func TestAccounts_ConcurrentDebitsOverHTTP(t *testing.T) {
	s := newServer(t)
	acct := s.createAccount("Sara", "100.00")
	path := "/api/v1/accounts/" + acct.ID + "/debit"

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes []int
	)

	for range 2 {
		wg.Go(func() {
			rec := s.do(http.MethodPost, path, map[string]any{"amount": "80"})

			mu.Lock()
			codes = append(codes, rec.Code)
			mu.Unlock()
		})
	}
	wg.Wait()

	assert.ElementsMatch(t, []int{http.StatusCreated, http.StatusUnprocessableEntity}, codes)

	rec := s.do(http.MethodGet, "/api/v1/accounts/"+acct.ID, nil)
	assert.Equal(t, "20.00", decode[accountBody](t, rec).Balance)
}

func TestAccounts_BalanceAdjustment(t *testing.T) {
	s := newServer(t)
	acct := s.createAccount("Ravi", "20.00")
	path := "/api/v1/accounts/" + acct.ID + "/balance"

	rec := s.do(http.MethodPatch, path, map[string]any{"operation": "add", "amount": "5", "reason": "refund for cold tea"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "25.00", decode[operationBody](t, rec).Account.Balance)

	rec = s.do(http.MethodPatch, path, map[string]any{"operation": "subtract", "amount": "15", "reason": "missed scan"})
	require.Equal(t, http.StatusCreated, rec.Code)

	op := decode[operationBody](t, rec)
	assert.Equal(t, "10.00", op.Account.Balance)
	assert.Equal(t, "Admin adjustment: missed scan", op.Entry.Description)
}

func TestAccounts_ScanAndLifecycle(t *testing.T) {
	s := newServer(t)
	acct := s.createAccount("Deepa", "30.00")

	rec := s.do(http.MethodPost, "/api/v1/accounts/"+acct.ID+"/debit", map[string]any{"amount": "12", "reason": "Lunch"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/scan", map[string]any{"qr_code": acct.QRCode})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	scan := decode[struct {
		Account         accountBody `json:"account"`
		RecentPurchases []entryBody `json:"recent_purchases"`
	}](t, rec)
	assert.Equal(t, acct.ID, scan.Account.ID)
	require.Len(t, scan.RecentPurchases, 1)
	assert.Equal(t, "Lunch", scan.RecentPurchases[0].Description)

	rec = s.do(http.MethodGet, "/api/v1/scan/"+acct.UserCode, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodPut, "/api/v1/accounts/"+acct.ID, map[string]any{"department": "Physics"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodDelete, "/api/v1/accounts/"+acct.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/scan/"+acct.QRCode, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "inactive accounts cannot be scanned")

	rec = s.do(http.MethodPost, "/api/v1/accounts/"+acct.ID+"/recharge", map[string]any{"amount": "5"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/accounts", nil)
	assert.Empty(t, decode[[]accountBody](t, rec))

	rec = s.do(http.MethodGet, "/api/v1/accounts?include_inactive=true", nil)
	assert.Len(t, decode[[]accountBody](t, rec), 1)
}

func TestAccounts_PINLockout(t *testing.T) {
	s := newServer(t)
	acct := s.createAccount("Vimal", "0")
	base := "/api/v1/accounts/" + acct.ID

	rec := s.do(http.MethodPost, base+"/pin/verify", map[string]any{"pin": "1234"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "pin_not_set", decode[errorBody](t, rec).Code)

	rec = s.do(http.MethodPost, base+"/pin", map[string]any{"pin": "12ab"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, base+"/pin", map[string]any{"pin": "4821"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodPost, base+"/pin/verify", map[string]any{"pin": "4821"})
	require.Equal(t, http.StatusOK, rec.Code)

	for range 3 {
		rec = s.do(http.MethodPost, base+"/pin/verify", map[string]any{"pin": "0000"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec = s.do(http.MethodPost, base+"/pin/verify", map[string]any{"pin": "4821"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "pin_locked", decode[errorBody](t, rec).Code)
}

func TestAccounts_PINRateLimit(t *testing.T) {
	s := newServer(t, func(c *setup) { c.pinPerMin = 2 })
	acct := s.createAccount("Hari", "0")
	path := "/api/v1/accounts/" + acct.ID + "/pin/verify"

	for range 2 {
		rec := s.do(http.MethodPost, path, map[string]any{"pin": "1111"})
		require.NotEqual(t, http.StatusTooManyRequests, rec.Code)
	}

	rec := s.do(http.MethodPost, path, map[string]any{"pin": "1111"})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decode[errorBody](t, rec).Code)
}
