package auth

import (
	"time"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

// User represents an authenticated user account.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	Role         shared.Role
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
