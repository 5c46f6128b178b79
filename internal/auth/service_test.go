package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

type stubRepo struct {
	users    map[string]*User
	attempts []bool
}

func (r *stubRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	user, ok := r.users[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return user, nil
}

func (r *stubRepo) RecordLoginAttempt(ctx context.Context, email string, success bool, ip string) error {
	r.attempts = append(r.attempts, success)
	return nil
}

func newTestService(t *testing.T) (*Service, *stubRepo) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &stubRepo{users: map[string]*User{
		"amy@example.com": {ID: 7, Email: "amy@example.com", Name: "Amy", PasswordHash: string(hash), Role: shared.RoleAdmin, IsActive: true},
		"old@example.com": {ID: 8, Email: "old@example.com", Name: "Old", PasswordHash: string(hash), Role: shared.RoleStaff, IsActive: false},
	}}
	return NewService(repo, NewTokenStore(client, "test_token", time.Minute)), repo
}

func TestLoginIssuesResolvableToken(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	token, identity, err := svc.Login(ctx, "amy@example.com", "correct horse", "10.0.0.1")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, int64(7), identity.UserID)
	require.Equal(t, shared.RoleAdmin, identity.Role)
	require.Equal(t, []bool{true}, repo.attempts)

	resolved, err := svc.Resolve(ctx, token)
	require.NoError(t, err)
	require.Equal(t, identity, resolved)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Login(ctx, "amy@example.com", "wrong", "10.0.0.1")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@example.com", "correct horse", "10.0.0.1")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "old@example.com", "correct horse", "10.0.0.1")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	require.Equal(t, []bool{false, false, false}, repo.attempts)
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	token, _, err := svc.Login(ctx, "amy@example.com", "correct horse", "")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, token))

	_, err = svc.Resolve(ctx, token)
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestResolveRejectsEmptyToken(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Resolve(context.Background(), "")
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}
