package cache

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultLocalSize bounds the in-process cache when no size is configured.
const DefaultLocalSize = 1000

type localItem struct {
	data      []byte
	expiresAt time.Time
}

// Local is a size-bounded in-process cache with per-entry expiry.
type Local struct {
	lru *lru.Cache[string, localItem]
	now func() time.Time
}

// NewLocal returns a Local holding at most size entries.
func NewLocal(size int) (*Local, error) {
	if size <= 0 {
		size = DefaultLocalSize
	}
	l, err := lru.New[string, localItem](size)
	if err != nil {
		return nil, err
	}
	return &Local{lru: l, now: time.Now}, nil
}

// Set stores data under key until ttl elapses.
func (c *Local) Set(key string, data []byte, ttl time.Duration) {
	c.lru.Add(key, localItem{data: data, expiresAt: c.now().Add(ttl)})
}

// Get returns the stored bytes, or false when absent or expired.
func (c *Local) Get(key string) ([]byte, bool) {
	item, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if !c.now().Before(item.expiresAt) {
		c.lru.Remove(key)
		return nil, false
	}
	return item.data, true
}

// Delete removes key.
func (c *Local) Delete(key string) {
	c.lru.Remove(key)
}

// Len reports the number of entries, including not yet evicted expired ones.
func (c *Local) Len() int {
	return c.lru.Len()
}
