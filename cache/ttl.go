// Package cache stores timestamped payloads in a kvstore and serves them
// back only while they are younger than a time-to-live.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rueijiunlin-crypto/GEIP/kvstore"
)

// Envelope is the serialized form of a cache entry. Time is unix milliseconds.
type Envelope struct {
	Time int64           `json:"time"`
	Data json.RawMessage `json:"data"`
}

// TTL caches a single value of type T under one key.
type TTL[T any] struct {
	store kvstore.Store
	key   string
	ttl   time.Duration
	now   func() time.Time
}

// New returns a TTL cache bound to key.
func New[T any](store kvstore.Store, key string, ttl time.Duration) *TTL[T] {
	return &TTL[T]{store: store, key: key, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source, mainly for tests.
func (c *TTL[T]) WithClock(now func() time.Time) *TTL[T] {
	if now != nil {
		c.now = now
	}
	return c
}

// Key reports the storage key.
func (c *TTL[T]) Key() string { return c.key }

// Get returns the cached value when an entry exists, is younger than the TTL
// and decodes cleanly. Any read or decode failure is reported as a miss.
func (c *TTL[T]) Get(ctx context.Context) (T, bool) {
	var zero T
	raw, err := c.store.Get(ctx, c.key)
	if err != nil {
		return zero, false
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return zero, false
	}
	if env.Time <= 0 {
		return zero, false
	}
	age := c.now().Sub(time.UnixMilli(env.Time))
	if age >= c.ttl {
		return zero, false
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return zero, false
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return zero, false
	}
	return value, true
}

// Put stores value stamped with the current time.
func (c *TTL[T]) Put(ctx context.Context, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.key, err)
	}
	raw, err := json.Marshal(Envelope{Time: c.now().UnixMilli(), Data: data})
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", c.key, err)
	}
	return c.store.Put(ctx, c.key, raw)
}

// Invalidate drops the entry so the next Get misses.
func (c *TTL[T]) Invalidate(ctx context.Context) error {
	return c.store.Delete(ctx, c.key)
}
