// Package redisstore keeps in-flight registration sessions in Redis. The TTL
// set on every write is how abandoned sessions get reaped; the service layer
// never deletes a session itself.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"prato/internal/registration/models"
	"prato/pkg/platform/sentinel"
)

const keyPrefix = "prato:regsession:"

// Store implements store.SessionStore on Redis.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Save writes the session and refreshes its TTL; activity on a session
// extends its retention window.
func (s *Store) Save(ctx context.Context, session *models.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+session.ID, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: save session: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*models.Session, error) {
	payload, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%w: find session: %w", sentinel.ErrUnavailable, err)
	}
	var session models.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}
