package kvstore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Store {
	t.Helper()
	fileStore, err := NewFileStore(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fileStore,
		"sqlite": sqliteStore,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(ctx, "siteSearchIndexV1")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Put(ctx, "siteSearchIndexV1", []byte(`{"time":1,"data":[]}`)))
			require.NoError(t, store.Put(ctx, "siteSearchIndexV1", []byte(`{"time":2,"data":[]}`)))

			value, err := store.Get(ctx, "siteSearchIndexV1")
			require.NoError(t, err)
			assert.JSONEq(t, `{"time":2,"data":[]}`, string(value))

			require.NoError(t, store.Delete(ctx, "siteSearchIndexV1"))
			_, err = store.Get(ctx, "siteSearchIndexV1")
			assert.ErrorIs(t, err, ErrNotFound)

			assert.NoError(t, store.Delete(ctx, "never-written"))
		})
	}
}

func TestStoreRejectsEmptyKey(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, store.Put(ctx, "  ", []byte("x")))
			_, err := store.Get(ctx, "")
			assert.Error(t, err)
		})
	}
}

func TestStoreConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, store.Put(ctx, "geip_news_cache", []byte(`{"time":3,"data":[]}`)))
				}()
			}
			wg.Wait()
			value, err := store.Get(ctx, "geip_news_cache")
			require.NoError(t, err)
			assert.JSONEq(t, `{"time":3,"data":[]}`, string(value))
		})
	}
}

func TestFileNameSanitises(t *testing.T) {
	assert.Equal(t, "siteSearchIndexV1.json", fileName("siteSearchIndexV1"))
	assert.Equal(t, "_._etc_passwd.json", fileName("../etc/passwd"))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("redis", "")
	assert.Error(t, err)
}
