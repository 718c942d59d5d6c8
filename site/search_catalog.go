package site

import (
	"context"
	"errors"
	"sync"

	"github.com/rueijiunlin-crypto/GEIP/search"
)

var errSuperseded = errors.New("index build superseded")

// buildFunc produces a fresh index; force skips the cache.
type buildFunc func(ctx context.Context, force bool) ([]search.IndexedPage, error)

// buildCall is one in-flight index build shared by every waiter.
type buildCall struct {
	gen    uint64
	done   chan struct{}
	cancel context.CancelFunc
	pages  []search.IndexedPage
	err    error
}

// SearchCatalog holds the current index snapshot. Builds are tagged with a
// generation; only the newest generation may install its result, so a
// cancelled or superseded build never overwrites newer state.
type SearchCatalog struct {
	mu       sync.Mutex
	base     context.Context
	stop     context.CancelFunc
	build    buildFunc
	pages    []search.IndexedPage
	ready    bool
	gen      uint64
	inflight *buildCall
	closed   bool
}

func newSearchCatalog(build buildFunc) *SearchCatalog {
	base, stop := context.WithCancel(context.Background())
	return &SearchCatalog{base: base, stop: stop, build: build}
}

// Get returns the installed index, joining or starting a build when none is
// installed yet.
func (c *SearchCatalog) Get(ctx context.Context) ([]search.IndexedPage, error) {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, ErrClosed
		}
		if c.ready {
			pages := c.pages
			c.mu.Unlock()
			return pages, nil
		}
		call := c.inflight
		if call == nil {
			call = c.startLocked(false)
		}
		c.mu.Unlock()

		pages, err := c.wait(ctx, call)
		if errors.Is(err, errSuperseded) {
			continue
		}
		return pages, err
	}
}

// Refresh cancels any in-flight build and rebuilds, bypassing the cache.
func (c *SearchCatalog) Refresh(ctx context.Context) ([]search.IndexedPage, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	call := c.startLocked(true)
	c.mu.Unlock()

	pages, err := c.wait(ctx, call)
	if errors.Is(err, errSuperseded) {
		return c.Get(ctx)
	}
	return pages, err
}

// Install replaces the index with pages built elsewhere and supersedes any
// in-flight build.
func (c *SearchCatalog) Install(pages []search.IndexedPage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.gen++
	if c.inflight != nil {
		c.inflight.cancel()
		c.inflight = nil
	}
	c.pages = pages
	c.ready = true
}

// Snapshot returns the installed index without triggering a build.
func (c *SearchCatalog) Snapshot() ([]search.IndexedPage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pages, c.ready
}

// Close cancels in-flight builds; later calls fail with ErrClosed.
func (c *SearchCatalog) Close() {
	c.mu.Lock()
	c.closed = true
	if c.inflight != nil {
		c.inflight.cancel()
		c.inflight = nil
	}
	c.mu.Unlock()
	c.stop()
}

func (c *SearchCatalog) startLocked(force bool) *buildCall {
	c.gen++
	if c.inflight != nil {
		c.inflight.cancel()
	}
	ctx, cancel := context.WithCancel(c.base)
	call := &buildCall{gen: c.gen, done: make(chan struct{}), cancel: cancel}
	c.inflight = call

	go func() {
		defer close(call.done)
		defer cancel()
		pages, err := c.build(ctx, force)

		c.mu.Lock()
		if call.gen == c.gen {
			if err == nil {
				c.pages = pages
				c.ready = true
			}
			c.inflight = nil
		}
		c.mu.Unlock()

		call.pages, call.err = pages, err
	}()
	return call
}

// wait blocks until call finishes. A call that a newer generation replaced
// reports errSuperseded whatever its own outcome.
func (c *SearchCatalog) wait(ctx context.Context, call *buildCall) ([]search.IndexedPage, error) {
	select {
	case <-call.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	c.mu.Lock()
	superseded := call.gen != c.gen && !c.closed
	c.mu.Unlock()
	if superseded {
		return nil, errSuperseded
	}
	return call.pages, call.err
}
