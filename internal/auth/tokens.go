package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/warehouse-wrangler/warehouse-wrangler/internal/shared"
)

// TokenStore keeps bearer tokens in Redis mapped to caller identities.
type TokenStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type tokenPayload struct {
	UserID int64       `json:"user_id"`
	Name   string      `json:"name"`
	Role   shared.Role `json:"role"`
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(client *redis.Client, prefix string, ttl time.Duration) *TokenStore {
	if prefix == "" {
		prefix = "wrangler_token"
	}
	return &TokenStore{client: client, prefix: prefix, ttl: ttl}
}

// Issue creates a fresh token for the identity and persists it.
func (s *TokenStore) Issue(ctx context.Context, id shared.Identity) (string, error) {
	if s == nil || s.client == nil {
		return "", errors.New("auth: token store not initialised")
	}
	token := uuid.NewString()
	data, err := json.Marshal(tokenPayload{UserID: id.UserID, Name: id.Name, Role: id.Role})
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, s.key(token), data, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve returns the identity held by a token, refreshing its TTL.
func (s *TokenStore) Resolve(ctx context.Context, token string) (shared.Identity, error) {
	if s == nil || s.client == nil {
		return shared.Identity{}, errors.New("auth: token store not initialised")
	}
	if token == "" {
		return shared.Identity{}, shared.ErrUnauthorized
	}
	data, err := s.client.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return shared.Identity{}, shared.ErrUnauthorized
		}
		return shared.Identity{}, err
	}
	var payload tokenPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return shared.Identity{}, err
	}
	if s.ttl > 0 {
		_ = s.client.Expire(ctx, s.key(token), s.ttl).Err()
	}
	return shared.Identity{UserID: payload.UserID, Name: payload.Name, Role: payload.Role}, nil
}

// Revoke drops a token, ending the session.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	if s == nil || s.client == nil {
		return errors.New("auth: token store not initialised")
	}
	if token == "" {
		return nil
	}
	return s.client.Del(ctx, s.key(token)).Err()
}

func (s *TokenStore) key(token string) string {
	return fmt.Sprintf("%s:%s", s.prefix, token)
}
