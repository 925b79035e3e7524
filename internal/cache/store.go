package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store caches JSON values in Redis, falling back to a Local cache whenever
// Redis is not configured or a command fails.
type Store struct {
	rdb   *redis.Client
	local *Local
}

// NewStore builds a Store. Either backend may be nil; with both nil every
// lookup misses and every write is dropped.
func NewStore(rdb *redis.Client, local *Local) *Store {
	return &Store{rdb: rdb, local: local}
}

// GetJSON attempts to get the key and unmarshal it into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func (s *Store) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	raw, found, err := s.get(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		// A corrupt entry is as good as a miss.
		_ = s.Delete(ctx, key)
		return false, err
	}
	return true, nil
}

func (s *Store) get(ctx context.Context, key string) ([]byte, bool, error) {
	var redisErr error
	if s.rdb != nil {
		raw, err := s.rdb.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			return raw, true, nil
		case errors.Is(err, redis.Nil):
			return nil, false, nil
		default:
			redisErr = err
		}
	}
	if s.local != nil {
		if raw, ok := s.local.Get(key); ok {
			return raw, true, nil
		}
		return nil, false, nil
	}
	return nil, false, redisErr
}

// SetJSON marshals v and stores it with ttl.
func (s *Store) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if s.rdb != nil {
		err = s.rdb.Set(ctx, key, b, ttl).Err()
		if err == nil {
			return nil
		}
	}
	if s.local != nil {
		s.local.Set(key, b, ttl)
		return nil
	}
	return err
}

// Delete removes key from both backends.
func (s *Store) Delete(ctx context.Context, key string) error {
	if s.local != nil {
		s.local.Delete(key)
	}
	if s.rdb != nil {
		return s.rdb.Del(ctx, key).Err()
	}
	return nil
}

// JSONCache is the read and write half of Store.
type JSONCache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

// AsideResult describes how a cache-aside read went. Cache errors are
// reported here rather than failing the read.
type AsideResult struct {
	Hit      bool
	ReadErr  error
	WriteErr error
}

// Aside reads key into dest from c. On a miss or a read error it calls fetch,
// which must populate dest, and stores dest with ttl. Only fetch errors are
// returned.
func Aside(ctx context.Context, c JSONCache, key string, dest any, ttl time.Duration, fetch func() error) (AsideResult, error) {
	var res AsideResult
	found, err := c.GetJSON(ctx, key, dest)
	if err == nil && found {
		res.Hit = true
		return res, nil
	}
	res.ReadErr = err

	if err := fetch(); err != nil {
		return res, err
	}
	res.WriteErr = c.SetJSON(ctx, key, dest, ttl)
	return res, nil
}
