package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rueijiunlin-crypto/GEIP/cache"
)

// Indexer serves the site index from cache and rebuilds it once stale.
type Indexer struct {
	builder  *Builder
	fetcher  Fetcher
	pagesURL string
	cache    *cache.TTL[[]IndexedPage]
	logger   *slog.Logger
}

// NewIndexer wires a builder to the page list at pagesURL and the cache c.
func NewIndexer(fetcher Fetcher, builder *Builder, pagesURL string, c *cache.TTL[[]IndexedPage], logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{builder: builder, fetcher: fetcher, pagesURL: pagesURL, cache: c, logger: logger}
}

// GetIndex returns the cached index while it is fresh and otherwise builds,
// stores and returns a new one. A fresh cache hit performs no fetches.
func (ix *Indexer) GetIndex(ctx context.Context) ([]IndexedPage, error) {
	if pages, ok := ix.cache.Get(ctx); ok {
		return pages, nil
	}
	return ix.Rebuild(ctx)
}

// Rebuild crawls the page list regardless of cache state.
func (ix *Indexer) Rebuild(ctx context.Context) ([]IndexedPage, error) {
	urls, err := LoadPageList(ctx, ix.fetcher, ix.pagesURL)
	if err != nil {
		return nil, err
	}
	pages, err := ix.builder.BuildIndex(ctx, urls)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	if err := ix.cache.Put(ctx, pages); err != nil {
		ix.logger.Warn("search: cache write failed", "key", ix.cache.Key(), "error", err)
	}
	ix.logger.Info("search: index built", "pages", len(pages), "requested", len(urls))
	return pages, nil
}
