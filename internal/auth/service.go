package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	tokens *TokenStore
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *TokenStore) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password, ip string) (string, shared.Identity, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		// Failed attempts are logged best effort, never blocking the response.
		_ = s.repo.RecordLoginAttempt(ctx, email, false, ip)
		return "", shared.Identity{}, err
	}
	identity := shared.Identity{UserID: user.ID, Name: user.Name, Role: user.Role}
	token, err := s.tokens.Issue(ctx, identity)
	if err != nil {
		return "", shared.Identity{}, err
	}
	_ = s.repo.RecordLoginAttempt(ctx, email, true, ip)
	return token, identity, nil
}

// Logout revokes the bearer token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}

// Resolve maps a bearer token to a caller identity.
func (s *Service) Resolve(ctx context.Context, token string) (shared.Identity, error) {
	return s.tokens.Resolve(ctx, token)
}
