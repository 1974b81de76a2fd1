package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "session:"

// Store persists sessions in Redis with a sliding TTL.
type Store struct {
	R   *redis.Client
	TTL time.Duration
	Now func() time.Time
}

func (s *Store) ttl() time.Duration {
	if s == nil || s.TTL <= 0 {
		return 7 * 24 * time.Hour
	}
	return s.TTL
}

func (s *Store) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create builds and persists a new session for the delivery area.
func (s *Store) Create(ctx context.Context, area string) (*Session, error) {
	if s == nil || s.R == nil {
		return nil, errors.New("session store not configured")
	}
	sess := New(area, s.now())
	if err := s.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get loads a session by ID.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	if s == nil || s.R == nil {
		return nil, errors.New("session store not configured")
	}
	if id == "" {
		return nil, fmt.Errorf("session id required: %w", ErrInvalidInput)
	}
	data, err := s.R.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

// Save persists the session and refreshes its TTL.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	if s == nil || s.R == nil {
		return errors.New("session store not configured")
	}
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("session id required: %w", ErrInvalidInput)
	}
	sess.UpdatedAt = s.now()
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.R.Set(ctx, keyPrefix+sess.ID, data, s.ttl()).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Delete removes a session.
func (s *Store) Delete(ctx context.Context, id string) error {
	if s == nil || s.R == nil {
		return errors.New("session store not configured")
	}
	return s.R.Del(ctx, keyPrefix+id).Err()
}
