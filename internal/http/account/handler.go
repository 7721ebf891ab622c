package account

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/account"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/http/render"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/ledger"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/money"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/session"
)

const recentPurchases = 5

type Handler struct {
	accounts   *account.Service
	ledger     *ledger.Service
	sessions   *session.Manager
	retry      render.Retrier
	pinLimiter func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithSessions makes a successful PIN check return a kiosk session token and
// makes direct debits require one.
func WithSessions(m *session.Manager) Option {
	return func(h *Handler) {
		h.sessions = m
	}
}

// WithPINLimiter guards PIN verification with mw.
func WithPINLimiter(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.pinLimiter = mw
	}
}

func NewHandler(accounts *account.Service, l *ledger.Service, retry render.Retrier, opts ...Option) *Handler {
	h := &Handler{accounts: accounts, ledger: l, retry: retry}
	for _, opt := range opts {
		opt(h)
	}

	return h
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.deactivate)
	r.Post("/{id}/recharge", h.recharge)
	r.Post("/{id}/debit", h.debit)
	r.Patch("/{id}/balance", h.adjustBalance)
	r.Get("/{id}/ledger", h.history)
	r.Get("/{id}/ledger/verify", h.verify)
	r.Post("/{id}/pin", h.setPIN)

	pin := r
	if h.pinLimiter != nil {
		pin = r.With(h.pinLimiter)
	}

	pin.Post("/{id}/pin/verify", h.verifyPIN)
}

// ScanRoutes serves the kiosk's account lookup.
func (h *Handler) ScanRoutes(r chi.Router) {
	r.Post("/", h.scanBody)
	r.Get("/{identifier}", h.scanPath)
}

func accountID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

type createAccountRequest struct {
	UserCode       string       `json:"user_code" validate:"omitempty,max=32"`
	Name           string       `json:"name" validate:"required,max=120"`
	Email          string       `json:"email" validate:"omitempty,email"`
	Phone          string       `json:"phone" validate:"omitempty,max=20"`
	Department     string       `json:"department" validate:"omitempty,max=80"`
	Type           account.Type `json:"type" validate:"required"`
	OpeningBalance money.Amount `json:"opening_balance"`
	PIN            string       `json:"pin" validate:"omitempty,numeric,min=4,max=6"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, err)
		return
	}

	a, err := h.accounts.Create(r.Context(), account.CreateParams{
		UserCode:       req.UserCode,
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		Department:     req.Department,
		Type:           req.Type,
		OpeningBalance: req.OpeningBalance,
		PIN:            req.PIN,
	})
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusCreated, toResponse(a))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := account.ListFilter{IncludeInactive: q.Get("include_inactive") == "true"}

	if s := q.Get("type"); s != "" {
		filter.Type = new(account.Type(s))
	}

	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			render.BadRequest(w, "invalid limit")
			return
		}

		filter.Limit = n
	}

	accts, err := h.accounts.List(r.Context(), filter)
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponseList(accts))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(r)
	if !ok {
		render.BadRequest(w, "invalid id")
		return
	}

	a, err := h.accounts.Get(r.Context(), id)
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponse(a))
}

type updateAccountRequest struct {
	Name       *string         `json:"name,omitempty" validate:"omitempty,max=120"`
	Email      *string         `json:"email,omitempty" validate:"omitempty,email"`
	Phone      *string         `json:"phone,omitempty" validate:"omitempty,max=20"`
	Department *string         `json:"department,omitempty" validate:"omitempty,max=80"`
	Type       *account.Type   `json:"type,omitempty"`
	Status     *account.Status `json:"status,omitempty"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(r)
	if !ok {
		render.BadRequest(w, "invalid id")
		return
	}

	var req updateAccountRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, err)
		return
	}

	a, err := h.accounts.Update(r.Context(), id, account.UpdateParams{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Department: req.Department,
		Type:       req.Type,
		Status:     req.Status,
	})
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponse(a))
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(r)
	if !ok {
		render.BadRequest(w, "invalid id")
		return
	}

	if err := h.accounts.Deactivate(r.Context(), id); err != nil {
		render.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type rechargeRequest struct {
	Amount      money.Amount `json:"amount"`
	Method      string       `json:"method" validate:"omitempty,max=40"`
	Note        string       `json:"note" validate:"omitempty,max=200"`
	RechargedBy string       `json:"recharged_by" validate:"omitempty,max=80"`
	Reference   string       `json:"reference" validate:"omitempty,max=80"`
}

func (h *Handler) recharge(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(r)
	if !ok {
		render.BadRequest(w, "invalid id")
		return
	}

	var req rechargeRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, err)
		return
	}

	h.credit(w, r, ledger.CreditParams{
		AccountID:      id,
		Amount:         req.Amount,
		Method:         req.Method,
		Note:           req.Note,
		RechargedBy:    req.RechargedBy,
		Reference:      req.Reference,
		IdempotencyKey: r.Header.Get(render.IdempotencyHeader),
	})
}

type debitRequest struct {
	Amount    money.Amount `json:"amount"`
	Reason    string       `json:"reason" validate:"omitempty,max=200"`
	Reference string       `json:"reference" validate:"omitempty,max=80"`
}

func (h *Handler) debit(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(r)
	if !ok {
		render.BadRequest(w, "invalid id")
		return
	}

	var req debitRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, err)
		return
	}

	if err := render.Authorize(r, h.sessions, id); err != nil {
		render.Error(w, err)
		return
	}

	h.spend(w, r, ledger.DebitParams{
		AccountID:      id,
		Amount:         req.Amount,
		Reason:         req.Reason,
		Reference:      req.Reference,
		IdempotencyKey: r.Header.Get(render.IdempotencyHeader),
	})
}

type adjustBalanceRequest struct {
	Operation string       `json:"operation" validate:"required,oneof=add subtract"`
	Amount    money.Amount `json:"amount"`
	Reason    string       `json:"reason" validate:"omitempty,max=200"`
}

// adjustBalance is the admin panel's manual correction. It still goes
// through the ledger like any other change.
func (h *Handler) adjustBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(r)
	if !ok {
		render.BadRequest(w, "invalid id")
		return
	}

	var req adjustBalanceRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, err)
		return
	}

	key := r.Header.Get(render.IdempotencyHeader)

	if req.Operation == "add" {
		h.credit(w, r, ledger.CreditParams{
			AccountID:      id,
			Amount:         req.Amount,
			Method:         "Admin adjustment",
			Note:           req.Reason,
			IdempotencyKey: key,
		})

		return
	}

	reason := "Admin adjustment"
	if s := strings.TrimSpace(req.Reason); s != "" {
		reason += ": " + s
	}

	h.spend(w, r, ledger.DebitParams{AccountID: id, Amount: req.Amount, Reason: reason, IdempotencyKey: key})
}

func (h *Handler) credit(w http.ResponseWriter, r *http.Request, params ledger.CreditParams) {
	res, err := render.Do(r.Context(), h.retry, func() (*ledger.Result, error) {
		return h.ledger.Credit(r.Context(), params)
	})
	if err != nil {
		render.Error(w, err)
		return
	}

	h.writeResult(w, res)
}

func (h *Handler) spend(w http.ResponseWriter, r *http.Request, params ledger.DebitParams) {
	res, err := render.Do(r.Context(), h.retry, func() (*ledger.Result, error) {
		return h.ledger.Debit(r.Context(), params)
	})
	if err != nil {
		render.Error(w, err)
		return
	}

	h.writeResult(w, res)
}

func (h *Handler) writeResult(w http.ResponseWriter, res *ledger.Result) {
	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}

	render.JSON(w, status, toOperationResponse(res))
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(r)
	if !ok {
		render.BadRequest(w, "invalid id")
		return
	}

	q := r.URL.Query()
	filter := ledger.HistoryFilter{Descending: q.Get("order") != "asc"}

	if s := q.Get("kind"); s != "" {
		kind := ledger.Kind(s)
		if !kind.Valid() {
			render.BadRequest(w, "kind must be purchase or recharge")
			return
		}

		filter.Kind = &kind
	}

	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			render.BadRequest(w, "invalid limit")
			return
		}

		filter.Limit = n
	}

	if _, err := h.accounts.Get(r.Context(), id); err != nil {
		render.Error(w, err)
		return
	}

	entries, err := h.ledger.History(r.Context(), id, filter)
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusOK, toEntryResponseList(entries))
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(r)
	if !ok {
		render.BadRequest(w, "invalid id")
		return
	}

	report, err := h.ledger.Verify(r.Context(), id)
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusOK, toVerifyResponse(report))
}

type pinRequest struct {
	PIN string `json:"pin" validate:"required,numeric,min=4,max=6"`
}

func (h *Handler) setPIN(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(r)
	if !ok {
		render.BadRequest(w, "invalid id")
		return
	}

	var req pinRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, err)
		return
	}

	if err := h.accounts.SetPIN(r.Context(), id, req.PIN); err != nil {
		render.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type verifyPINResponse struct {
	Account accountResponse `json:"account"`
	Session *session.Token  `json:"session,omitempty"`
}

func (h *Handler) verifyPIN(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(r)
	if !ok {
		render.BadRequest(w, "invalid id")
		return
	}

	var req pinRequest
	if err := render.Decode(r, &req); err != nil {
		if errors.Is(err, render.ErrBadRequest) {
			render.Error(w, account.ErrInvalidPIN)
			return
		}

		render.Error(w, err)

		return
	}

	a, err := h.accounts.VerifyPIN(r.Context(), id, req.PIN)
	if err != nil {
		render.Error(w, err)
		return
	}

	resp := verifyPINResponse{Account: toResponse(a)}

	if h.sessions != nil {
		tok, err := h.sessions.Issue(a.ID)
		if err != nil {
			render.Error(w, err)
			return
		}

		resp.Session = tok
	}

	render.JSON(w, http.StatusOK, resp)
}

type scanRequest struct {
	QRCode string `json:"qr_code" validate:"required"`
}

func (h *Handler) scanBody(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, err)
		return
	}

	h.scan(w, r, req.QRCode)
}

func (h *Handler) scanPath(w http.ResponseWriter, r *http.Request) {
	h.scan(w, r, chi.URLParam(r, "identifier"))
}

func (h *Handler) scan(w http.ResponseWriter, r *http.Request, identifier string) {
	a, err := h.accounts.Lookup(r.Context(), identifier)
	if err != nil {
		render.Error(w, err)
		return
	}

	kind := ledger.KindPurchase

	recent, err := h.ledger.History(r.Context(), a.ID, ledger.HistoryFilter{
		Kind:       &kind,
		Limit:      recentPurchases,
		Descending: true,
	})
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusOK, scanResponse{
		Account:         toResponse(a),
		RecentPurchases: toEntryResponseList(recent),
	})
}
