package ledger

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/platform/httpx"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

// Handler wires HTTP endpoints for cartons and the movement log.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers carton and movement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listCartons)
	r.Get("/{id}", h.getCarton)
	r.Post("/move", h.moveCartons)
	r.Get("/{id}/available/{productID}", h.getAvailable)
}

// MountImportRoutes registers the CSV-collaborator import endpoints.
func (h *Handler) MountImportRoutes(r chi.Router) {
	r.Post("/packing-list", h.importPackingList)
	r.Post("/amazon-snapshot", h.importAmazonSnapshot)
}

// MountMovementRoutes registers the audit-trail listing.
func (h *Handler) MountMovementRoutes(r chi.Router) {
	r.Get("/", h.listMovements)
}

type listCartonsResponse struct {
	Success bool     `json:"success"`
	Cartons []Carton `json:"cartons"`
}

func (h *Handler) listCartons(w http.ResponseWriter, r *http.Request) {
	filter := CartonFilter{}
	q := r.URL.Query()
	if value := q.Get("location"); value != "" {
		location, err := ParseLocation(value)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		filter.Location = &location
	}
	if value := q.Get("status"); value != "" {
		status := CartonStatus(value)
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
	cartons, err := h.service.ListCartons(r.Context(), filter)
	if err != nil {
		h.logger.Error("list cartons", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listCartonsResponse{Success: true, Cartons: cartons})
}

type getCartonResponse struct {
	Success  bool      `json:"success"`
	Carton   Carton    `json:"carton"`
	Contents []Content `json:"contents"`
}

func (h *Handler) getCarton(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid carton id")
		return
	}
	carton, contents, err := h.service.GetCarton(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, getCartonResponse{Success: true, Carton: carton, Contents: contents})
}

type availableResponse struct {
	Success bool `json:"success"`
	Boxes   int  `json:"boxes"`
}

func (h *Handler) getAvailable(w http.ResponseWriter, r *http.Request) {
	cartonID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid carton id")
		return
	}
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid product id")
		return
	}
	boxes, err := h.service.GetAvailable(r.Context(), cartonID, productID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, availableResponse{Success: true, Boxes: boxes})
}

type moveCartonsRequest struct {
	CartonIDs []int64 `json:"carton_ids" validate:"required,min=1"`
	Location  string  `json:"location" validate:"required"`
}

type moveCartonsResponse struct {
	Success bool            `json:"success"`
	Moved   []int64         `json:"moved"`
	Skipped []SkippedCarton `json:"skipped"`
}

func (h *Handler) moveCartons(w http.ResponseWriter, r *http.Request) {
	var req moveCartonsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "carton_ids and location are required")
		return
	}
	result, err := h.service.MoveCartons(r.Context(), req.CartonIDs, Location(req.Location), currentUserID(r))
	if err != nil {
		h.logger.Error("move cartons", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, moveCartonsResponse{Success: true, Moved: result.Moved, Skipped: result.Skipped})
}

type packingListRequest struct {
	Location string       `json:"location"`
	Rows     []ReceiptRow `json:"rows" validate:"required,min=1"`
}

type packingListResponse struct {
	Success  bool      `json:"success"`
	Cartons  []Carton  `json:"cartons"`
	Contents []Content `json:"contents"`
}

func (h *Handler) importPackingList(w http.ResponseWriter, r *http.Request) {
	var req packingListRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "rows are required")
		return
	}
	result, err := h.service.Receive(r.Context(), ReceiveInput{
		Rows:           req.Rows,
		Location:       Location(req.Location),
		ActorID:        currentUserID(r),
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.logger.Error("import packing list", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, packingListResponse{Success: true, Cartons: result.Cartons, Contents: result.Contents})
}

type snapshotRequest struct {
	Rows []SnapshotRow `json:"rows" validate:"required,min=1"`
}

type snapshotResponse struct {
	Success  bool `json:"success"`
	Imported int  `json:"imported"`
}

func (h *Handler) importAmazonSnapshot(w http.ResponseWriter, r *http.Request) {
	var req snapshotRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "rows are required")
		return
	}
	if err := h.service.ImportAmazonSnapshot(r.Context(), req.Rows, currentUserID(r)); err != nil {
		h.logger.Error("import amazon snapshot", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snapshotResponse{Success: true, Imported: len(req.Rows)})
}

type listMovementsResponse struct {
	Success   bool       `json:"success"`
	Movements []LogEntry `json:"movements"`
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	filter := LogFilter{}
	q := r.URL.Query()
	if value := q.Get("carton_id"); value != "" {
		if id, err := strconv.ParseInt(value, 10, 64); err == nil {
			filter.CartonID = id
		}
	}
	if value := q.Get("product_id"); value != "" {
		if id, err := strconv.ParseInt(value, 10, 64); err == nil {
			filter.ProductID = id
		}
	}
	if value := q.Get("shipment_id"); value != "" {
		if id, err := strconv.ParseInt(value, 10, 64); err == nil {
			filter.ShipmentID = id
		}
	}
	if value := q.Get("limit"); value != "" {
		if limit, err := strconv.Atoi(value); err == nil {
			filter.Limit = limit
		}
	}
	movements, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		h.logger.Error("list movements", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listMovementsResponse{Success: true, Movements: movements})
}

func currentUserID(r *http.Request) int64 {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		return 0
	}
	return identity.UserID
}
