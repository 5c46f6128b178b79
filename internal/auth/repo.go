package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

// Repository defines persistence operations for the auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	RecordLoginAttempt(ctx context.Context, email string, success bool, ip string) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches a user by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := r.pool.QueryRow(ctx, `SELECT id, email, name, password_hash, role, is_active, created_at, updated_at
FROM users WHERE email = $1`, email).
		Scan(&user.ID, &user.Email, &user.Name, &user.PasswordHash, &user.Role, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// RecordLoginAttempt appends a row to login_attempts for auditing.
func (r *PGRepository) RecordLoginAttempt(ctx context.Context, email string, success bool, ip string) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO login_attempts (email, success, ip, attempted_at) VALUES ($1, $2, $3, NOW())`, email, success, ip)
	return err
}

var _ Repository = (*PGRepository)(nil)
