package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/platform/httpx"
	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

// MountProtectedRoutes registers routes requiring an identity.
func (h *Handler) MountProtectedRoutes(r chi.Router) {
	r.Get("/me", h.handleMe)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginResponse struct {
	Success bool        `json:"success"`
	Token   string      `json:"token"`
	UserID  int64       `json:"user_id"`
	Name    string      `json:"name"`
	Role    shared.Role `json:"role"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Error(w, http.StatusBadRequest, "email and password are required")
		return
	}

	token, identity, err := h.service.Login(r.Context(), req.Email, req.Password, r.RemoteAddr)
	if err != nil {
		h.logger.Warn("login failed", slog.String("email", req.Email))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, loginResponse{
		Success: true,
		Token:   token,
		UserID:  identity.UserID,
		Name:    identity.Name,
		Role:    identity.Role,
	})
}

type logoutResponse struct {
	Success bool `json:"success"`
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := BearerToken(r)
	if err := h.service.Logout(r.Context(), token); err != nil {
		h.logger.Warn("logout", slog.Any("error", err))
	}
	httpx.JSON(w, http.StatusOK, logoutResponse{Success: true})
}

type meResponse struct {
	Success bool        `json:"success"`
	UserID  int64       `json:"user_id"`
	Name    string      `json:"name"`
	Role    shared.Role `json:"role"`
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	httpx.JSON(w, http.StatusOK, meResponse{Success: true, UserID: identity.UserID, Name: identity.Name, Role: identity.Role})
}
