package users

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

type memoryRepo struct {
	users  map[int64]User
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[int64]User)}
}

func (r *memoryRepo) List(ctx context.Context) ([]User, error) {
	var result []User
	for _, u := range r.users {
		result = append(result, u)
	}
	return result, nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (User, error) {
	u, ok := r.users[id]
	if !ok {
		return User{}, fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	return u, nil
}

func (r *memoryRepo) Create(ctx context.Context, u User) (User, error) {
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return User{}, ErrDuplicateEmail
		}
	}
	r.nextID++
	u.ID = r.nextID
	r.users[u.ID] = u
	return u, nil
}

func (r *memoryRepo) Update(ctx context.Context, id int64, u User) error {
	existing, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	if u.PasswordHash == "" {
		u.PasswordHash = existing.PasswordHash
	}
	u.ID = id
	r.users[id] = u
	return nil
}

func (r *memoryRepo) Deactivate(ctx context.Context, id int64) error {
	u, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	u.IsActive = false
	r.users[id] = u
	return nil
}

func TestCreateHashesPassword(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)

	created, err := svc.Create(context.Background(), CreateInput{
		Email:    "Ops@Example.COM",
		Name:     "Ops",
		Password: "swordfish42",
		Role:     shared.RoleStaff,
	}, 1)
	require.NoError(t, err)
	require.Equal(t, "ops@example.com", created.Email)
	require.True(t, created.IsActive)
	require.NotEqual(t, "swordfish42", created.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("swordfish42")))

	_, err = svc.Create(context.Background(), CreateInput{
		Email:    "ops@example.com",
		Name:     "Again",
		Password: "swordfish42",
		Role:     shared.RoleStaff,
	}, 1)
	require.ErrorIs(t, err, shared.ErrDuplicateReference)
}

func TestCreateValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	cases := []CreateInput{
		{Name: "n", Password: "longenough", Role: shared.RoleStaff},
		{Email: "a@b.c", Password: "longenough", Role: shared.RoleStaff},
		{Email: "a@b.c", Name: "n", Password: "short", Role: shared.RoleStaff},
		{Email: "a@b.c", Name: "n", Password: "longenough", Role: "owner"},
	}
	for i, input := range cases {
		_, err := svc.Create(context.Background(), input, 1)
		require.ErrorIs(t, err, shared.ErrValidation, "case %d", i)
	}
}

func TestUpdateKeepsPasswordWhenBlank(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{Email: "ops@example.com", Name: "Ops", Password: "swordfish42", Role: shared.RoleStaff}, 1)
	require.NoError(t, err)
	oldHash := created.PasswordHash

	updated, err := svc.Update(ctx, created.ID, UpdateInput{
		Email:    "ops@example.com",
		Name:     "Ops Lead",
		Role:     shared.RoleAdmin,
		IsActive: true,
	}, 1)
	require.NoError(t, err)
	require.Equal(t, "Ops Lead", updated.Name)
	require.Equal(t, shared.RoleAdmin, updated.Role)
	require.Equal(t, oldHash, updated.PasswordHash)

	updated, err = svc.Update(ctx, created.ID, UpdateInput{
		Email:    "ops@example.com",
		Name:     "Ops Lead",
		Password: "newpassword9",
		Role:     shared.RoleAdmin,
		IsActive: true,
	}, 1)
	require.NoError(t, err)
	require.NotEqual(t, oldHash, updated.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("newpassword9")))
}

func TestDeactivateGuards(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{Email: "ops@example.com", Name: "Ops", Password: "swordfish42", Role: shared.RoleStaff}, 1)
	require.NoError(t, err)

	err = svc.Deactivate(ctx, created.ID, created.ID)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	require.NoError(t, svc.Deactivate(ctx, created.ID, 99))
	after, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.False(t, after.IsActive)
}
