package shared

import "errors"

var (
	// ErrValidation indicates malformed or missing input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState indicates an operation against the wrong lifecycle state.
	ErrInvalidState = errors.New("invalid state")
	// ErrNotFound indicates a referenced resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateReference indicates a unique reference collision.
	ErrDuplicateReference = errors.New("duplicate reference")
	// ErrInsufficientStock indicates a quantity exceeding live availability.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrUnauthorized indicates a missing or invalid credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden indicates the identity lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// UserSafeMessage returns a message safe to surface to API callers.
// Domain errors pass through verbatim; anything else collapses to a
// generic message so persistence details never leak.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrDuplicateReference),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrIdempotencyConflict),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrForbidden),
		errors.Is(err, ErrInvalidCredentials):
		return err.Error()
	default:
		return "internal server error"
	}
}
