package users

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	List(ctx context.Context) ([]User, error)
	Get(ctx context.Context, id int64) (User, error)
	Create(ctx context.Context, u User) (User, error)
	Update(ctx context.Context, id int64, u User) error
	Deactivate(ctx context.Context, id int64) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles user management.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateInput carries one user creation.
type CreateInput struct {
	Email    string
	Name     string
	Password string
	Role     shared.Role
}

// UpdateInput carries one user update. An empty Password keeps the
// existing one.
type UpdateInput struct {
	Email    string
	Name     string
	Password string
	Role     shared.Role
	IsActive bool
}

// List returns all users.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.repo.List(ctx)
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	if id <= 0 {
		return User{}, fmt.Errorf("users: invalid user id: %w", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// Create registers a new active user.
func (s *Service) Create(ctx context.Context, input CreateInput, actorID int64) (User, error) {
	if err := validateProfile(input.Email, input.Name, input.Role); err != nil {
		return User{}, err
	}
	if len(input.Password) < 8 {
		return User{}, fmt.Errorf("users: password must be at least 8 characters: %w", shared.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	created, err := s.repo.Create(ctx, User{
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		Name:         strings.TrimSpace(input.Name),
		Role:         input.Role,
		IsActive:     true,
		PasswordHash: string(hash),
	})
	if err != nil {
		return User{}, err
	}
	s.record(ctx, actorID, "users:create", created.ID, map[string]any{"email": created.Email, "role": string(created.Role)})
	return created, nil
}

// Update rewrites a user. Role changes are a plain update here; the
// router restricts the whole surface to admins.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput, actorID int64) (User, error) {
	if id <= 0 {
		return User{}, fmt.Errorf("users: invalid user id: %w", shared.ErrValidation)
	}
	if err := validateProfile(input.Email, input.Name, input.Role); err != nil {
		return User{}, err
	}
	user := User{
		Email:    strings.ToLower(strings.TrimSpace(input.Email)),
		Name:     strings.TrimSpace(input.Name),
		Role:     input.Role,
		IsActive: input.IsActive,
	}
	if input.Password != "" {
		if len(input.Password) < 8 {
			return User{}, fmt.Errorf("users: password must be at least 8 characters: %w", shared.ErrValidation)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			return User{}, fmt.Errorf("users: hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}
	if err := s.repo.Update(ctx, id, user); err != nil {
		return User{}, err
	}
	s.record(ctx, actorID, "users:update", id, map[string]any{"role": string(input.Role), "is_active": input.IsActive})
	return s.repo.Get(ctx, id)
}

// Deactivate disables an account. Self-deactivation is refused so an
// admin cannot lock everyone out with a stray click.
func (s *Service) Deactivate(ctx context.Context, id int64, actorID int64) error {
	if id <= 0 {
		return fmt.Errorf("users: invalid user id: %w", shared.ErrValidation)
	}
	if id == actorID {
		return fmt.Errorf("users: cannot deactivate own account: %w", shared.ErrInvalidState)
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "users:deactivate", id, nil)
	return nil
}

func validateProfile(email, name string, role shared.Role) error {
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("users: email required: %w", shared.ErrValidation)
	}
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("users: name required: %w", shared.ErrValidation)
	}
	if role != shared.RoleAdmin && role != shared.RoleStaff {
		return fmt.Errorf("users: unknown role %q: %w", role, shared.ErrValidation)
	}
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, userID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: fmt.Sprintf("%d", userID),
		Meta:     meta,
	})
}
