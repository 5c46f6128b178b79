package forecast

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the dashboard and planned stock.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the forecast handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountDashboardRoutes registers the read-only dashboard routes.
func (h *Handler) MountDashboardRoutes(r chi.Router) {
	r.Get("/config", h.config)
	r.Get("/products", h.products)
}

// MountPlannedRoutes registers planned stock CRUD.
func (h *Handler) MountPlannedRoutes(r chi.Router) {
	r.Get("/", h.listPlanned)
	r.Post("/", h.createPlanned)
	r.Get("/{id}", h.getPlanned)
	r.Put("/{id}", h.updatePlanned)
	r.Delete("/{id}", h.deletePlanned)
}

type configResponse struct {
	Success bool   `json:"success"`
	Config  Config `json:"config"`
}

func (h *Handler) config(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, configResponse{Success: true, Config: h.service.Config()})
}

type dashboardResponse struct {
	Success  bool         `json:"success"`
	Options  Options      `json:"options"`
	Products []Projection `json:"products"`
}

func (h *Handler) products(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := Options{
		IncludeAmazon:      boolParam(q.Get("include_amazon"), true),
		IncludeAdditional:  boolParam(q.Get("include_additional"), true),
		IncludeSimulations: boolParam(q.Get("include_simulations"), false),
		IncludeFuture:      boolParam(q.Get("include_future"), true),
	}
	if value := q.Get("target_date"); value != "" {
		target, err := time.Parse("2006-01-02", value)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, "target_date must be YYYY-MM-DD")
			return
		}
		opts.TargetDate = target
	}
	rows, err := h.service.Dashboard(r.Context(), opts)
	if err != nil {
		h.logger.Error("forecast dashboard", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	opts.Unit = h.service.Config().Unit
	httpx.JSON(w, http.StatusOK, dashboardResponse{Success: true, Options: opts, Products: rows})
}

type plannedRequest struct {
	ProductID     int64  `json:"product_id" validate:"required,gt=0"`
	QuantityBoxes int    `json:"quantity_boxes" validate:"required,gt=0"`
	ETADate       string `json:"eta_date"`
	Scope         string `json:"scope" validate:"required,oneof=committed simulation"`
	IsActive      *bool  `json:"is_active"`
	Label         string `json:"label"`
}

func (req plannedRequest) toEntry() (PlannedEntry, error) {
	entry := PlannedEntry{
		ProductID:     req.ProductID,
		QuantityBoxes: req.QuantityBoxes,
		Scope:         Scope(req.Scope),
		IsActive:      true,
		Label:         req.Label,
	}
	if req.IsActive != nil {
		entry.IsActive = *req.IsActive
	}
	if req.ETADate != "" {
		eta, err := time.Parse("2006-01-02", req.ETADate)
		if err != nil {
			return PlannedEntry{}, err
		}
		entry.ETADate = &eta
	}
	return entry, nil
}

type plannedListResponse struct {
	Success bool           `json:"success"`
	Entries []PlannedEntry `json:"entries"`
}

func (h *Handler) listPlanned(w http.ResponseWriter, r *http.Request) {
	var productID int64
	if value := r.URL.Query().Get("product_id"); value != "" {
		productID, _ = strconv.ParseInt(value, 10, 64)
	}
	includeInactive := boolParam(r.URL.Query().Get("include_inactive"), false)
	entries, err := h.service.ListPlanned(r.Context(), productID, includeInactive)
	if err != nil {
		h.logger.Error("list planned stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, plannedListResponse{Success: true, Entries: entries})
}

type plannedResponse struct {
	Success bool         `json:"success"`
	Entry   PlannedEntry `json:"entry"`
}

func (h *Handler) getPlanned(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid planned stock id")
		return
	}
	entry, err := h.service.GetPlanned(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, plannedResponse{Success: true, Entry: entry})
}

func (h *Handler) createPlanned(w http.ResponseWriter, r *http.Request) {
	var req plannedRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "product_id, positive quantity_boxes and scope are required")
		return
	}
	entry, err := req.toEntry()
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "eta_date must be YYYY-MM-DD")
		return
	}
	created, err := h.service.CreatePlanned(r.Context(), entry)
	if err != nil {
		h.logger.Error("create planned stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, plannedResponse{Success: true, Entry: created})
}

func (h *Handler) updatePlanned(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid planned stock id")
		return
	}
	var req plannedRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "product_id, positive quantity_boxes and scope are required")
		return
	}
	entry, err := req.toEntry()
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "eta_date must be YYYY-MM-DD")
		return
	}
	updated, err := h.service.UpdatePlanned(r.Context(), id, entry)
	if err != nil {
		h.logger.Error("update planned stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, plannedResponse{Success: true, Entry: updated})
}

type plannedDeleteResponse struct {
	Success bool `json:"success"`
}

func (h *Handler) deletePlanned(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid planned stock id")
		return
	}
	if boolParam(r.URL.Query().Get("hard"), false) {
		err = h.service.DeletePlanned(r.Context(), id)
	} else {
		err = h.service.DeactivatePlanned(r.Context(), id)
	}
	if err != nil {
		h.logger.Error("delete planned stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, plannedDeleteResponse{Success: true})
}

func boolParam(value string, fallback bool) bool {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
