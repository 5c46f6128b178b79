package shipments

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/platform/httpx"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

// Handler wires HTTP endpoints for Amazon shipments.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the shipments handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers shipment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/available", h.available)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/boxes", h.addBoxes)
	r.Delete("/{id}/boxes", h.removeBoxes)
	r.Delete("/{id}/contents/{contentID}", h.deleteContent)
	r.Post("/{id}/send", h.send)
	r.Post("/{id}/recall", h.recall)
}

func shipmentID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

type listShipmentsResponse struct {
	Success   bool       `json:"success"`
	Shipments []Shipment `json:"shipments"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{}
	q := r.URL.Query()
	if value := q.Get("status"); value != "" {
		status := Status(value)
		filter.Status = &status
	}
	if value := q.Get("limit"); value != "" {
		if limit, err := strconv.Atoi(value); err == nil {
			filter.Limit = limit
		}
	}
	if value := q.Get("offset"); value != "" {
		if offset, err := strconv.Atoi(value); err == nil {
			filter.Offset = offset
		}
	}
	shipments, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list shipments", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listShipmentsResponse{Success: true, Shipments: shipments})
}

type availableStockResponse struct {
	Success   bool           `json:"success"`
	Available []Availability `json:"available"`
}

func (h *Handler) available(w http.ResponseWriter, r *http.Request) {
	available, err := h.service.AvailableForShipment(r.Context())
	if err != nil {
		h.logger.Error("available for shipment", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, availableStockResponse{Success: true, Available: available})
}

type createShipmentRequest struct {
	Name string `json:"name" validate:"required"`
}

type shipmentResponse struct {
	Success  bool     `json:"success"`
	Shipment Shipment `json:"shipment"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createShipmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "name is required")
		return
	}
	shipment, err := h.service.Create(r.Context(), req.Name, currentUserID(r))
	if err != nil {
		h.logger.Error("create shipment", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, shipmentResponse{Success: true, Shipment: shipment})
}

type getShipmentResponse struct {
	Success  bool      `json:"success"`
	Shipment Shipment  `json:"shipment"`
	Contents []Content `json:"contents"`
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := shipmentID(r)
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid shipment id")
		return
	}
	shipment, contents, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, getShipmentResponse{Success: true, Shipment: shipment, Contents: contents})
}

type boxesRequest struct {
	Items []Item `json:"items" validate:"required,min=1"`
}

type addBoxesResponse struct {
	Success bool          `json:"success"`
	Added   []Content     `json:"added"`
	Skipped []SkippedItem `json:"skipped"`
}

type addBoxesFailure struct {
	Success bool          `json:"success"`
	Error   string        `json:"error"`
	Skipped []SkippedItem `json:"skipped"`
}

func (h *Handler) addBoxes(w http.ResponseWriter, r *http.Request) {
	id, ok := shipmentID(r)
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid shipment id")
		return
	}
	var req boxesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "items are required")
		return
	}
	result, err := h.service.AddBoxes(r.Context(), id, req.Items, currentUserID(r))
	if err != nil {
		if errors.Is(err, shared.ErrInsufficientStock) {
			// Nothing was reserved; fail the call but keep the per-item report.
			httpx.JSON(w, http.StatusBadRequest, addBoxesFailure{Error: shared.UserSafeMessage(err), Skipped: result.Skipped})
			return
		}
		h.logger.Error("add boxes", slog.Any("error", err), slog.Int64("shipment_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, addBoxesResponse{Success: true, Added: result.Added, Skipped: result.Skipped})
}

type okResponse struct {
	Success bool `json:"success"`
}

func (h *Handler) removeBoxes(w http.ResponseWriter, r *http.Request) {
	id, ok := shipmentID(r)
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid shipment id")
		return
	}
	var req boxesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "items are required")
		return
	}
	if err := h.service.RemoveBoxes(r.Context(), id, req.Items, currentUserID(r)); err != nil {
		h.logger.Error("remove boxes", slog.Any("error", err), slog.Int64("shipment_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, okResponse{Success: true})
}

func (h *Handler) deleteContent(w http.ResponseWriter, r *http.Request) {
	id, ok := shipmentID(r)
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid shipment id")
		return
	}
	contentID, err := strconv.ParseInt(chi.URLParam(r, "contentID"), 10, 64)
	if err != nil || contentID <= 0 {
		httpx.Error(w, http.StatusBadRequest, "invalid content id")
		return
	}
	if err := h.service.DeleteContent(r.Context(), id, contentID, currentUserID(r)); err != nil {
		h.logger.Error("delete shipment content", slog.Any("error", err), slog.Int64("shipment_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, okResponse{Success: true})
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	id, ok := shipmentID(r)
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid shipment id")
		return
	}
	shipment, err := h.service.Send(r.Context(), id, currentUserID(r))
	if err != nil {
		h.logger.Error("send shipment", slog.Any("error", err), slog.Int64("shipment_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shipmentResponse{Success: true, Shipment: shipment})
}

type recallRequest struct {
	Note string `json:"note" validate:"required"`
}

func (h *Handler) recall(w http.ResponseWriter, r *http.Request) {
	id, ok := shipmentID(r)
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid shipment id")
		return
	}
	var req recallRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "a recall note is required")
		return
	}
	shipment, err := h.service.Recall(r.Context(), id, req.Note, currentUserID(r))
	if err != nil {
		h.logger.Error("recall shipment", slog.Any("error", err), slog.Int64("shipment_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shipmentResponse{Success: true, Shipment: shipment})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := shipmentID(r)
	if !ok {
		httpx.Error(w, http.StatusBadRequest, "invalid shipment id")
		return
	}
	if err := h.service.Delete(r.Context(), id, currentUserID(r)); err != nil {
		h.logger.Error("delete shipment", slog.Any("error", err), slog.Int64("shipment_id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, okResponse{Success: true})
}

func currentUserID(r *http.Request) int64 {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		return 0
	}
	return identity.UserID
}
