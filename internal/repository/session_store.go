package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/guayoyo/loyalty-service/internal/domain"
)

// DefaultSessionPrefix prefixes the per-session snapshot keys.
const DefaultSessionPrefix = "loyalty:session:"

type redisSessionStore struct {
	client *redis.Client
	prefix string
}

// NewRedisSessionStore stores session snapshots as expiring JSON strings.
func NewRedisSessionStore(client *redis.Client, prefix string) SessionStore {
	if prefix == "" {
		prefix = DefaultSessionPrefix
	}
	return &redisSessionStore{client: client, prefix: prefix}
}

func (s *redisSessionStore) Save(ctx context.Context, sessionID string, snapshot *domain.Account, ttl time.Duration) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "failed to marshal session snapshot")
	}
	if err := s.client.Set(ctx, s.prefix+sessionID, data, ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to save session snapshot")
	}
	return nil
}

func (s *redisSessionStore) Load(ctx context.Context, sessionID string) (*domain.Account, error) {
	data, err := s.client.Get(ctx, s.prefix+sessionID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrSessionNotFound
		}
		return nil, errors.Wrap(err, "failed to load session snapshot")
	}
	return decodeAccount(data)
}

func (s *redisSessionStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.prefix+sessionID).Err(); err != nil {
		return errors.Wrap(err, "failed to delete session snapshot")
	}
	return nil
}
