package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Builder crawls a list of pages into IndexedPage entries.
type Builder struct {
	fetcher     Fetcher
	logger      *slog.Logger
	pageTimeout time.Duration
}

// NewBuilder returns a Builder. A non-positive pageTimeout disables the
// per-page deadline.
func NewBuilder(fetcher Fetcher, logger *slog.Logger, pageTimeout time.Duration) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{fetcher: fetcher, logger: logger, pageTimeout: pageTimeout}
}

// BuildIndex fetches pages one after another and extracts their text. Pages
// that fail to load or parse are logged and left out; the output keeps the
// input order. Cancelling ctx aborts the whole build.
func (b *Builder) BuildIndex(ctx context.Context, pageURLs []string) ([]IndexedPage, error) {
	out := make([]IndexedPage, 0, len(pageURLs))
	for _, pageURL := range pageURLs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := b.indexPage(ctx, pageURL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			b.logger.Warn("search: page skipped", "url", pageURL, "error", err)
			continue
		}
		out = append(out, page)
	}
	return out, nil
}

func (b *Builder) indexPage(ctx context.Context, pageURL string) (IndexedPage, error) {
	if b.pageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.pageTimeout)
		defer cancel()
	}
	raw, err := b.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return IndexedPage{}, err
	}
	return ExtractPage(pageURL, bytes.NewReader(raw))
}

// LoadPageList fetches the JSON array of page URLs to crawl.
func LoadPageList(ctx context.Context, fetcher Fetcher, listURL string) ([]string, error) {
	raw, err := fetcher.Fetch(ctx, listURL)
	if err != nil {
		return nil, fmt.Errorf("load page list: %w", err)
	}
	var pages []string
	if err := json.Unmarshal(raw, &pages); err != nil {
		return nil, fmt.Errorf("decode page list %s: %w", listURL, err)
	}
	out := pages[:0]
	for _, p := range pages {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out, nil
}
