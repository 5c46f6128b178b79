package httpx

import (
	"errors"
	"net/http"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

// RespondError maps domain errors onto the failure envelope and status codes.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Error(w, http.StatusNotFound, shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrInvalidState),
		errors.Is(err, shared.ErrDuplicateReference),
		errors.Is(err, shared.ErrInsufficientStock):
		Error(w, http.StatusBadRequest, shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrIdempotencyConflict):
		Error(w, http.StatusConflict, shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrUnauthorized), errors.Is(err, shared.ErrInvalidCredentials):
		Error(w, http.StatusUnauthorized, shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrForbidden):
		Error(w, http.StatusForbidden, shared.UserSafeMessage(err))
	default:
		Error(w, http.StatusInternalServerError, "internal server error")
	}
}
