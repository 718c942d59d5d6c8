package news

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rueijiunlin-crypto/GEIP/cache"
)

// Source yields the raw news list; *Client implements it.
type Source interface {
	Fetch(ctx context.Context) ([]Item, error)
}

// Feed serves published news through a TTL cache.
type Feed struct {
	source Source
	cache  *cache.TTL[[]Item]
	logger *slog.Logger

	mu sync.Mutex
}

// NewFeed wires a source to its cache entry.
func NewFeed(source Source, entry *cache.TTL[[]Item], logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{source: source, cache: entry, logger: logger}
}

// Latest returns the cached published items while fresh. refresh drops the
// cache entry and forces a fetch. A failed fetch is returned to the caller
// and nothing is retried.
func (f *Feed) Latest(ctx context.Context, refresh bool) ([]Item, error) {
	if !refresh {
		if items, ok := f.cache.Get(ctx); ok {
			return items, nil
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if refresh {
		if err := f.cache.Invalidate(ctx); err != nil {
			f.logger.Warn("news cache invalidate", "key", f.cache.Key(), "error", err)
		}
	} else if items, ok := f.cache.Get(ctx); ok {
		return items, nil
	}

	return f.fetch(ctx)
}

// Rewarm fetches and replaces the cached items. The cache entry is only
// touched after a successful fetch, so a failing API leaves the last good
// copy in place until it expires.
func (f *Feed) Rewarm(ctx context.Context) ([]Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetch(ctx)
}

// fetch must be called with f.mu held.
func (f *Feed) fetch(ctx context.Context) ([]Item, error) {
	raw, err := f.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	items := Published(raw)
	if len(items) == 0 && len(raw) > 0 {
		f.logger.Warn("news api returned no published items", "total", len(raw))
	}
	if err := f.cache.Put(ctx, items); err != nil {
		f.logger.Warn("news cache write", "key", f.cache.Key(), "error", err)
	}
	return items, nil
}
