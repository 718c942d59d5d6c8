// Package kvstore provides the string-keyed persistent store backing the
// search index and news caches.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by Get when the key has no entry.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is a string-keyed blob store safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open returns the backend registered under driver.
func Open(driver, path string) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "file":
		return NewFileStore(path)
	case "sqlite":
		return NewSQLiteStore(path)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("kvstore: unknown driver %q", driver)
	}
}

func checkKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("kvstore: empty key")
	}
	return nil
}
