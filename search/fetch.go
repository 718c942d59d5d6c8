package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const defaultMaxPageBytes = 8 << 20

// ErrPageTooLarge is returned when a page body exceeds the fetcher's cap.
var ErrPageTooLarge = errors.New("page exceeds size limit")

// Fetcher retrieves the raw bytes behind a page reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// FetchFunc adapts a function to the Fetcher interface.
type FetchFunc func(ctx context.Context, ref string) ([]byte, error)

func (f FetchFunc) Fetch(ctx context.Context, ref string) ([]byte, error) {
	return f(ctx, ref)
}

// HTTPFetcher downloads pages over HTTP, resolving relative references
// against Base. Responses are never served from intermediary caches.
type HTTPFetcher struct {
	Base      *url.URL
	Client    *http.Client
	UserAgent string
	MaxBytes  int64
}

// NewHTTPFetcher parses base and returns a fetcher rooted there.
func NewHTTPFetcher(base, userAgent string) (*HTTPFetcher, error) {
	var parsed *url.URL
	if strings.TrimSpace(base) != "" {
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		parsed = u
	}
	return &HTTPFetcher{
		Base:      parsed,
		Client:    &http.Client{Timeout: 30 * time.Second},
		UserAgent: userAgent,
		MaxBytes:  defaultMaxPageBytes,
	}, nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	target, err := f.resolve(ref)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Pragma", "no-cache")
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("get %s: %s", target, resp.Status)
	}

	limit := f.MaxBytes
	if limit <= 0 {
		limit = defaultMaxPageBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("get %s: %w (%d bytes)", target, ErrPageTooLarge, limit)
	}
	return data, nil
}

func (f *HTTPFetcher) resolve(ref string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("parse page url %q: %w", ref, err)
	}
	if f.Base != nil {
		u = f.Base.ResolveReference(u)
	}
	if !u.IsAbs() {
		return "", fmt.Errorf("page url %q is relative and no base url is configured", ref)
	}
	return u.String(), nil
}

// DirFetcher reads pages from a local copy of the site.
type DirFetcher struct {
	Root string
}

func (d DirFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, err := d.resolve(ref)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(target)
}

func (d DirFetcher) resolve(ref string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("parse page url %q: %w", ref, err)
	}
	if u.Scheme != "" || u.Host != "" {
		return "", fmt.Errorf("page url %q is not local to the site", ref)
	}
	p := u.Path
	if p == "" || strings.HasSuffix(p, "/") {
		p += "index.html"
	}
	clean := path.Clean("/" + p)
	target := filepath.Join(d.Root, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
	if !isWithin(d.Root, target) {
		return "", errors.New("page path escapes site root")
	}
	return target, nil
}

func isWithin(base, target string) bool {
	baseAbs, err := filepath.Abs(base)
	if err != nil {
		return false
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(baseAbs, targetAbs)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return rel != ".." && !strings.HasPrefix(rel, "../")
}
