package users

import (
	"time"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

// User represents a managed account. PasswordHash never leaves the
// package boundary.
type User struct {
	ID           int64       `json:"id"`
	Email        string      `json:"email"`
	Name         string      `json:"name"`
	Role         shared.Role `json:"role"`
	IsActive     bool        `json:"is_active"`
	PasswordHash string      `json:"-"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}
