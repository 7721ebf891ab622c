package checkout

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/checkout"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/export"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/http/render"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/session"
)

type Handler struct {
	svc      *checkout.Service
	export   *export.Service
	retry    render.Retrier
	sessions *session.Manager
}

// NewHandler builds the checkout and order handler. A nil sessions manager
// lets any caller pay from any account.
func NewHandler(svc *checkout.Service, exp *export.Service, retry render.Retrier, sessions *session.Manager) *Handler {
	return &Handler{svc: svc, export: exp, retry: retry, sessions: sessions}
}

func (h *Handler) CheckoutRoutes(r chi.Router) {
	r.Post("/", h.checkout)
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/export", h.exportCSV)
	r.Get("/{id}", h.get)
}

type lineRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int64     `json:"quantity" validate:"gte=1"`
}

type checkoutRequest struct {
	AccountID uuid.UUID     `json:"account_id" validate:"required"`
	Items     []lineRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, err)
		return
	}

	if err := render.Authorize(r, h.sessions, req.AccountID); err != nil {
		render.Error(w, err)
		return
	}

	items := make([]checkout.LineItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = checkout.LineItem{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	params := checkout.Params{
		AccountID:      req.AccountID,
		Items:          items,
		IdempotencyKey: r.Header.Get(render.IdempotencyHeader),
	}

	receipt, err := render.Do(r.Context(), h.retry, func() (*checkout.Receipt, error) {
		return h.svc.Checkout(r.Context(), params)
	})
	if err != nil {
		render.Error(w, err)
		return
	}

	status := http.StatusCreated
	if receipt.Replayed {
		status = http.StatusOK
	}

	render.JSON(w, status, receiptResponse{
		Order:    toResponse(receipt.Order),
		Balance:  receipt.Account.Balance,
		Replayed: receipt.Replayed,
	})
}

func listFilter(r *http.Request) (checkout.ListFilter, error) {
	var (
		filter checkout.ListFilter
		err    error
	)

	q := r.URL.Query()

	if s := q.Get("account_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return filter, fmt.Errorf("%w: invalid account_id", render.ErrBadRequest)
		}

		filter.AccountID = &id
	}

	if filter.From, err = render.Time(r, "from"); err != nil {
		return filter, err
	}

	if filter.To, err = render.Until(r, "to"); err != nil {
		return filter, err
	}

	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return filter, fmt.Errorf("%w: invalid limit", render.ErrBadRequest)
		}

		filter.Limit = n
	}

	return filter, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilter(r)
	if err != nil {
		render.Error(w, err)
		return
	}

	orders, err := h.svc.List(r.Context(), filter)
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponseList(orders))
}

// ListForAccount serves /accounts/{id}/orders.
func (h *Handler) ListForAccount(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		render.BadRequest(w, "invalid id")
		return
	}

	filter, err := listFilter(r)
	if err != nil {
		render.Error(w, err)
		return
	}

	filter.AccountID = &id

	orders, err := h.svc.List(r.Context(), filter)
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponseList(orders))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		render.BadRequest(w, "invalid id")
		return
	}

	o, err := h.svc.Get(r.Context(), id)
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponse(o))
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilter(r)
	if err != nil {
		render.Error(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"orders_%s.csv\"", time.Now().Format("20060102")))

	if _, err := h.export.Export(r.Context(), w, filter); err != nil {
		render.Error(w, err)
	}
}
