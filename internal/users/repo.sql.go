package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

// ErrDuplicateEmail is returned when an email is already taken.
var ErrDuplicateEmail = fmt.Errorf("email already exists: %w", shared.ErrDuplicateReference)

// Repository gives the user service access to the users table.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, name, role, is_active, password_hash, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.IsActive, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// List returns all users ordered by name.
func (r *Repository) List(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var result []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

// Get returns one user by id.
func (r *Repository) Get(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	return u, err
}

// Create inserts a user.
func (r *Repository) Create(ctx context.Context, u User) (User, error) {
	now := time.Now()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, name, role, is_active, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING id`,
		u.Email, u.Name, u.Role, u.IsActive, u.PasswordHash, now,
	).Scan(&u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrDuplicateEmail
		}
		return User{}, fmt.Errorf("create user: %w", err)
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	return u, nil
}

// Update rewrites profile fields. The password hash is only touched
// when non-empty.
func (r *Repository) Update(ctx context.Context, id int64, u User) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET email = $2, name = $3, role = $4, is_active = $5,
		    password_hash = CASE WHEN $6 = '' THEN password_hash ELSE $6 END,
		    updated_at = $7
		WHERE id = $1`,
		id, u.Email, u.Name, u.Role, u.IsActive, u.PasswordHash, time.Now(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// Deactivate disables a user account without deleting its history.
func (r *Repository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = false, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
