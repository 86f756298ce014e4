package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists the logged-in user and token.
type Store interface {
	Load(ctx context.Context) (Record, error)
	Save(ctx context.Context, r Record) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the session for the life of the process.
type MemoryStore struct {
	mu  sync.Mutex
	rec Record
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Load(ctx context.Context) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec, nil
}

func (s *MemoryStore) Save(ctx context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = r
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = Record{}
	return nil
}

// RedisStore survives agent restarts. The key expires with the token when
// the token carries an exp claim.
type RedisStore struct {
	rdb redis.Cmdable
	key string
	now func() time.Time
}

func NewRedisStore(rdb redis.Cmdable, keyPrefix string) *RedisStore {
	return &RedisStore{rdb: rdb, key: keyPrefix + "session", now: time.Now}
}

func (s *RedisStore) Load(ctx context.Context) (Record, error) {
	raw, err := s.rdb.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("auth: load session: %w", err)
	}
	var r Record
	if err := json.Unmarshal(raw, &r); err != nil {
		// A corrupt record is treated as logged out.
		return Record{}, nil
	}
	return r, nil
}

func (s *RedisStore) Save(ctx context.Context, r Record) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	var ttl time.Duration
	if exp, ok := ExpiresAt(r.Token); ok {
		ttl = exp.Sub(s.now())
		if ttl <= 0 {
			return s.Clear(ctx)
		}
	}
	if err := s.rdb.Set(ctx, s.key, b, ttl).Err(); err != nil {
		return fmt.Errorf("auth: save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("auth: clear session: %w", err)
	}
	return nil
}
