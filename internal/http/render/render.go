// Package render holds the JSON plumbing shared by the API handlers.
package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/account"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/catalog"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/checkout"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/ledger"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/money"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/session"
)

var ErrBadRequest = errors.New("bad request")

var validate = validator.New(validator.WithRequiredStructEnabled())

// IdempotencyHeader carries the client's retry key for balance operations.
const IdempotencyHeader = "Idempotency-Key"

type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Decode reads a JSON body into v and runs its validate tags.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}

	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, fe := range verrs {
				fields[i] = fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
			}

			return fmt.Errorf("%w: %s", ErrBadRequest, strings.Join(fields, ", "))
		}

		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}

	return nil
}

// BadRequest writes a 400 with msg.
func BadRequest(w http.ResponseWriter, msg string) {
	JSON(w, http.StatusBadRequest, ErrorResponse{Error: msg, Code: "bad_request"})
}

type mapping struct {
	target error
	status int
	code   string
}

var mappings = []mapping{
	{ErrBadRequest, http.StatusBadRequest, "bad_request"},
	{account.ErrAccountNotFound, http.StatusNotFound, "account_not_found"},
	{catalog.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
	{checkout.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
	{ledger.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{money.ErrMalformed, http.StatusBadRequest, "invalid_amount"},
	{money.ErrPrecision, http.StatusBadRequest, "invalid_amount"},
	{account.ErrInvalidAccount, http.StatusBadRequest, "invalid_account"},
	{catalog.ErrInvalidProduct, http.StatusBadRequest, "invalid_product"},
	{catalog.ErrNoHeader, http.StatusBadRequest, "invalid_sheet"},
	{checkout.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},
	{checkout.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{ledger.ErrInsufficientBalance, http.StatusUnprocessableEntity, "insufficient_balance"},
	{checkout.ErrOutOfStock, http.StatusUnprocessableEntity, "out_of_stock"},
	{catalog.ErrInsufficientStock, http.StatusUnprocessableEntity, "insufficient_stock"},
	{ledger.ErrIdempotencyConflict, http.StatusConflict, "idempotency_conflict"},
	{account.ErrDuplicate, http.StatusConflict, "duplicate_account"},
	{catalog.ErrDuplicateProduct, http.StatusConflict, "duplicate_product"},
	{account.ErrPINNotSet, http.StatusConflict, "pin_not_set"},
	{account.ErrInvalidPIN, http.StatusUnauthorized, "invalid_pin"},
	{session.ErrInvalidToken, http.StatusUnauthorized, "invalid_session"},
	{account.ErrPINLocked, http.StatusTooManyRequests, "pin_locked"},
	{ledger.ErrTransactionAborted, http.StatusServiceUnavailable, "transaction_aborted"},
}

// Error maps err to a status and writes it. Unknown errors are logged and
// reported as 500 without their text.
func Error(w http.ResponseWriter, err error) {
	for _, m := range mappings {
		if !errors.Is(err, m.target) {
			continue
		}

		resp := ErrorResponse{Error: err.Error(), Code: m.code, Details: details(err)}

		if m.status == http.StatusServiceUnavailable {
			slog.Error("transaction aborted", "error", err)
			resp.Error = "transaction aborted, please retry"
			w.Header().Set("Retry-After", "1")
		}

		JSON(w, m.status, resp)

		return
	}

	slog.Error("internal error", "error", err)
	JSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "internal"})
}

func details(err error) map[string]any {
	var ibe *ledger.InsufficientBalanceError
	if errors.As(err, &ibe) {
		return map[string]any{
			"available": ibe.Available.String(),
			"requested": ibe.Requested.String(),
			"shortfall": ibe.Shortfall().String(),
		}
	}

	var oos *checkout.OutOfStockError
	if errors.As(err, &oos) {
		return map[string]any{
			"product_id": oos.ProductID,
			"product":    oos.Name,
			"available":  oos.Available,
			"requested":  oos.Requested,
		}
	}

	return nil
}

// Retrier reruns operations whose transaction aborted.
type Retrier struct {
	Attempts int
	Backoff  time.Duration
}

// Do calls fn until it succeeds, fails for a non-retryable reason or runs
// out of attempts. The backoff grows linearly.
func Do[T any](ctx context.Context, r Retrier, fn func() (T, error)) (T, error) {
	attempts := max(r.Attempts, 1)

	var (
		v   T
		err error
	)

	for attempt := 1; attempt <= attempts; attempt++ {
		v, err = fn()
		if err == nil || !ledger.IsRetryable(err) || attempt == attempts {
			return v, err
		}

		slog.Warn("retrying aborted transaction", "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return v, err
		case <-time.After(time.Duration(attempt) * r.Backoff):
		}
	}

	return v, err
}

// Time parses an optional YYYY-MM-DD or RFC 3339 query parameter used as an
// inclusive lower bound.
func Time(r *http.Request, name string) (*time.Time, error) {
	t, _, err := parseTime(r, name)
	return t, err
}

// Until parses an exclusive upper bound. A bare date covers that whole day,
// so it resolves to midnight of the day after.
func Until(r *http.Request, name string) (*time.Time, error) {
	t, dateOnly, err := parseTime(r, name)
	if t == nil || err != nil || !dateOnly {
		return t, err
	}

	end := t.AddDate(0, 0, 1)

	return &end, nil
}

func parseTime(r *http.Request, name string) (*time.Time, bool, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return nil, false, nil
	}

	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return &t, true, nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s must be YYYY-MM-DD or RFC 3339", ErrBadRequest, name)
	}

	return &t, false, nil
}

// Authorize requires a bearer session issued to accountID. A nil manager
// means sessions are disabled and every caller is allowed.
func Authorize(r *http.Request, sessions *session.Manager, accountID uuid.UUID) error {
	if sessions == nil {
		return nil
	}

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return fmt.Errorf("%w: missing bearer token", session.ErrInvalidToken)
	}

	sub, err := sessions.Parse(token)
	if err != nil {
		return err
	}

	if sub != accountID {
		return fmt.Errorf("%w: token belongs to another account", session.ErrInvalidToken)
	}

	return nil
}
