package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/KPRAHUL1/Roriri-Cafe/internal/catalog"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/checkout"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/http/render"
	"github.com/KPRAHUL1/Roriri-Cafe/internal/money"
)

const maxUploadSize = 10 << 20

type Handler struct {
	svc   *catalog.Service
	sales *checkout.Service
}

func NewHandler(svc *catalog.Service, sales *checkout.Service) *Handler {
	return &Handler{svc: svc, sales: sales}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Post("/import", h.importSheet)
	r.Get("/analytics", h.analytics)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.deactivate)
	r.Patch("/{id}/stock", h.stock)
}

func productID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

type createProductRequest struct {
	Name        string       `json:"name" validate:"required,max=120"`
	Category    string       `json:"category" validate:"omitempty,max=60"`
	Description string       `json:"description" validate:"omitempty,max=500"`
	ImageURL    string       `json:"image_url" validate:"omitempty,url"`
	Price       money.Amount `json:"price"`
	Stock       int64        `json:"stock" validate:"gte=0"`
	MinStock    int64        `json:"min_stock" validate:"gte=0"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, err)
		return
	}

	p, err := h.svc.Create(r.Context(), catalog.CreateParams{
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Price:       req.Price,
		Stock:       req.Stock,
		MinStock:    req.MinStock,
	})
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusCreated, toResponse(p))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := catalog.ListFilter{
		Search:          q.Get("search"),
		LowStock:        q.Get("low_stock") == "true",
		IncludeInactive: q.Get("include_inactive") == "true",
	}

	if s := q.Get("category"); s != "" {
		filter.Category = new(s)
	}

	products, err := h.svc.List(r.Context(), filter)
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponseList(products))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(r)
	if !ok {
		render.BadRequest(w, "invalid id")
		return
	}

	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponse(p))
}

type updateProductRequest struct {
	Name        *string       `json:"name,omitempty" validate:"omitempty,max=120"`
	Category    *string       `json:"category,omitempty" validate:"omitempty,max=60"`
	Description *string       `json:"description,omitempty" validate:"omitempty,max=500"`
	ImageURL    *string       `json:"image_url,omitempty" validate:"omitempty,url"`
	Price       *money.Amount `json:"price,omitempty"`
	MinStock    *int64        `json:"min_stock,omitempty" validate:"omitempty,gte=0"`
	Active      *bool         `json:"active,omitempty"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(r)
	if !ok {
		render.BadRequest(w, "invalid id")
		return
	}

	var req updateProductRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, err)
		return
	}

	p, err := h.svc.Update(r.Context(), id, catalog.UpdateParams{
		Name:        req.Name,
		Category:    req.Category,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		Price:       req.Price,
		MinStock:    req.MinStock,
		Active:      req.Active,
	})
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(r)
	if !ok {
		render.BadRequest(w, "invalid id")
		return
	}

	if err := h.svc.Deactivate(r.Context(), id); err != nil {
		render.Error(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// stockRequest sets an absolute count or applies a delta; exactly one must
// be present.
type stockRequest struct {
	Stock  *int64 `json:"stock,omitempty" validate:"required_without=Delta,excluded_with=Delta"`
	Delta  *int64 `json:"delta,omitempty" validate:"required_without=Stock"`
	Reason string `json:"reason" validate:"omitempty,max=200"`
}

func (h *Handler) stock(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(r)
	if !ok {
		render.BadRequest(w, "invalid id")
		return
	}

	var req stockRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, err)
		return
	}

	var (
		p   *catalog.Product
		err error
	)

	if req.Stock != nil {
		p, err = h.svc.SetStock(r.Context(), id, *req.Stock)
	} else {
		p, err = h.svc.AdjustStock(r.Context(), id, *req.Delta)
	}

	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) importSheet(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		render.BadRequest(w, "failed to parse form: "+err.Error())
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		render.BadRequest(w, "file is required")
		return
	}
	defer file.Close()

	res, err := h.svc.Import(r.Context(), file)
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusOK, toImportResponse(res))
}

func (h *Handler) analytics(w http.ResponseWriter, r *http.Request) {
	from, err := render.Time(r, "from")
	if err != nil {
		render.Error(w, err)
		return
	}

	to, err := render.Until(r, "to")
	if err != nil {
		render.Error(w, err)
		return
	}

	sales, err := h.sales.SalesByProduct(r.Context(), checkout.SalesFilter{From: from, To: to})
	if err != nil {
		render.Error(w, err)
		return
	}

	low, err := h.svc.List(r.Context(), catalog.ListFilter{LowStock: true})
	if err != nil {
		render.Error(w, err)
		return
	}

	render.JSON(w, http.StatusOK, toAnalyticsResponse(sales, low))
}
