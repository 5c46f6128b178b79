package catalog

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/platform/httpx"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

// Handler wires HTTP endpoints for the product catalog.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers product routes. Mutations require admin, which
// the router enforces via middleware on the mutation subtree.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
}

// MountAdminRoutes registers the mutating product routes.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

type productRequest struct {
	SKU                string    `json:"sku" validate:"required"`
	Name               string    `json:"name" validate:"required"`
	PairsPerBox        int       `json:"pairs_per_box" validate:"required,gt=0"`
	AverageWeeklySales float64   `json:"average_weekly_sales" validate:"gte=0"`
	SeasonalFactors    []float64 `json:"seasonal_factors" validate:"omitempty,len=12"`
	IsActive           *bool     `json:"is_active"`
}

func (req productRequest) toProduct() Product {
	p := Product{
		SKU:                req.SKU,
		Name:               req.Name,
		PairsPerBox:        req.PairsPerBox,
		AverageWeeklySales: req.AverageWeeklySales,
		IsActive:           true,
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	copy(p.SeasonalFactors[:], req.SeasonalFactors)
	return p
}

type listResponse struct {
	Success  bool      `json:"success"`
	Products []Product `json:"products"`
	Total    int       `json:"total"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{Search: r.URL.Query().Get("search")}
	if value := r.URL.Query().Get("is_active"); value != "" {
		active := value == "true"
		filter.IsActive = &active
	}
	if value := r.URL.Query().Get("limit"); value != "" {
		if limit, err := strconv.Atoi(value); err == nil {
			filter.Limit = limit
		}
	}
	if value := r.URL.Query().Get("offset"); value != "" {
		if offset, err := strconv.Atoi(value); err == nil {
			filter.Offset = offset
		}
	}
	products, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list products", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Success: true, Products: products, Total: total})
}

type productResponse struct {
	Success bool    `json:"success"`
	Product Product `json:"product"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid product id")
		return
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, productResponse{Success: true, Product: product})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "sku, name and a positive pairs_per_box are required")
		return
	}
	product, err := h.service.Create(r.Context(), req.toProduct(), currentUserID(r))
	if err != nil {
		h.logger.Error("create product", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, productResponse{Success: true, Product: product})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var req productRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "sku, name and a positive pairs_per_box are required")
		return
	}
	product, err := h.service.Update(r.Context(), id, req.toProduct(), currentUserID(r))
	if err != nil {
		h.logger.Error("update product", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, productResponse{Success: true, Product: product})
}

type deleteResponse struct {
	Success bool `json:"success"`
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid product id")
		return
	}
	if err := h.service.Delete(r.Context(), id, currentUserID(r)); err != nil {
		h.logger.Error("delete product", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, deleteResponse{Success: true})
}

func currentUserID(r *http.Request) int64 {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		return 0
	}
	return identity.UserID
}
