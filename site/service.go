package site

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rueijiunlin-crypto/GEIP/cache"
	"github.com/rueijiunlin-crypto/GEIP/config"
	"github.com/rueijiunlin-crypto/GEIP/fsutil"
	"github.com/rueijiunlin-crypto/GEIP/kvstore"
	"github.com/rueijiunlin-crypto/GEIP/listing"
	"github.com/rueijiunlin-crypto/GEIP/news"
	"github.com/rueijiunlin-crypto/GEIP/renderer"
	"github.com/rueijiunlin-crypto/GEIP/search"
	"github.com/rueijiunlin-crypto/GEIP/templatex"
)

const searchIndexFile = "search-index.json"

// Service orchestrates search indexing, listings, news and the static build.
type Service struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     kvstore.Store
	templates *templatex.Engine
	renderer  *renderer.Renderer
	userAgent string

	indexer  *search.Indexer
	search   *SearchCatalog
	listings map[string]*listing.List
	feed     *news.Feed
}

// NewService wires the configured collaborators. The store is owned by the
// service and closed by Close.
func NewService(cfg *config.Config, store kvstore.Store, templates *templatex.Engine, logger *slog.Logger, userAgent string) (*Service, error) {
	if cfg == nil || store == nil || templates == nil {
		return nil, fmt.Errorf("missing configuration, store or templates")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		templates: templates,
		renderer:  renderer.New(),
		userAgent: userAgent,
		listings:  make(map[string]*listing.List, len(cfg.Listings)),
	}

	fetcher, err := s.pageFetcher()
	if err != nil {
		return nil, err
	}
	builder := search.NewBuilder(fetcher, logger, cfg.Search.PageTimeout)
	entry := cache.New[[]search.IndexedPage](store, cfg.Search.CacheKey, cfg.Search.TTL)
	s.indexer = search.NewIndexer(fetcher, builder, cfg.Search.PagesURL, entry, logger)
	s.search = newSearchCatalog(func(ctx context.Context, force bool) ([]search.IndexedPage, error) {
		if force {
			return s.indexer.Rebuild(ctx)
		}
		return s.indexer.GetIndex(ctx)
	})

	for _, lc := range cfg.Listings {
		source := lc.Source
		if !filepath.IsAbs(source) {
			source = filepath.Join(cfg.SiteDir, filepath.FromSlash(source))
		}
		s.listings[lc.Name] = &listing.List{
			Name:          lc.Name,
			Path:          "/" + lc.Name + ".html",
			Source:        listing.FileSource{Path: source},
			Discriminator: lc.Discriminator,
			SortBy:        lc.SortBy,
			PageSize:      lc.PageSize,
			Limit:         lc.Limit,
			Render:        templates.List(lc.Template),
		}
	}

	if cfg.News.APIBase != "" {
		client := news.NewClient(cfg.News.APIBase, cfg.News.Timeout, userAgent)
		newsCache := cache.New[[]news.Item](store, cfg.News.CacheKey, cfg.News.CacheTTL)
		s.feed = news.NewFeed(client, newsCache, logger)
	}

	return s, nil
}

// pageFetcher crawls the published site when a base URL is configured and
// ServeDir otherwise. ServeDir is resolved per fetch so a later build is
// picked up without restarting.
func (s *Service) pageFetcher() (search.Fetcher, error) {
	if s.cfg.Search.BaseURL != "" {
		f, err := search.NewHTTPFetcher(s.cfg.Search.BaseURL, s.userAgent)
		if err != nil {
			return nil, fmt.Errorf("search fetcher: %w", err)
		}
		return f, nil
	}
	return search.FetchFunc(func(ctx context.Context, ref string) ([]byte, error) {
		return search.DirFetcher{Root: s.ServeDir()}.Fetch(ctx, ref)
	}), nil
}

// Search matches query against the current index. A blank query performs
// no lookup and returns nil.
func (s *Service) Search(ctx context.Context, query string) ([]search.Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	pages, err := s.search.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return search.Search(query, pages), nil
}

// Index returns the current index, building it on first use.
func (s *Service) Index(ctx context.Context) ([]search.IndexedPage, error) {
	return s.search.Get(ctx)
}

// RefreshIndex discards the cached index and crawls again. Builds still in
// flight are cancelled and can no longer replace the result.
func (s *Service) RefreshIndex(ctx context.Context) (int, error) {
	pages, err := s.search.Refresh(ctx)
	if err != nil {
		return 0, fmt.Errorf("refresh index: %w", err)
	}
	return len(pages), nil
}

// Listing returns the listing registered under name.
func (s *Service) Listing(name string) (*listing.List, error) {
	l, ok := s.listings[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownListing, name)
	}
	return l, nil
}

// Listings returns the configured listing names in sorted order.
func (s *Service) Listings() []string {
	names := make([]string, 0, len(s.listings))
	for name := range s.listings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Item resolves a single record of a listing along with its rendered body.
func (s *Service) Item(ctx context.Context, name, id string) (templatex.ItemData, error) {
	l, err := s.Listing(name)
	if err != nil {
		return templatex.ItemData{}, err
	}
	record, err := l.Item(ctx, id)
	if err != nil {
		return templatex.ItemData{}, fmt.Errorf("load %s: %w", name, err)
	}
	body, err := s.renderer.Fragment(record.Field("content"))
	if err != nil {
		return templatex.ItemData{}, err
	}
	return templatex.ItemData{Name: l.Name, Record: record, ContentHTML: body, BackHref: l.Path}, nil
}

// News returns the published news items, from cache unless refresh is set.
func (s *Service) News(ctx context.Context, refresh bool) ([]news.Item, error) {
	if s.feed == nil {
		return nil, ErrNewsDisabled
	}
	return s.feed.Latest(ctx, refresh)
}

// NewsRefresher returns the background cache warmer, or nil when disabled.
func (s *Service) NewsRefresher() *news.Refresher {
	return news.NewRefresher(s.feed, s.cfg.News.RefreshInterval, s.logger)
}

// Templates exposes the template engine used for fragments.
func (s *Service) Templates() *templatex.Engine {
	return s.templates
}

// Renderer exposes the Markdown renderer and minifier.
func (s *Service) Renderer() *renderer.Renderer {
	return s.renderer
}

// SearchIndexJSON serializes the current index, building it if needed.
func (s *Service) SearchIndexJSON(ctx context.Context) (json.RawMessage, error) {
	pages, err := s.search.Get(ctx)
	if err != nil {
		return nil, err
	}
	return marshalIndex(pages)
}

// Close cancels in-flight builds and releases the store.
func (s *Service) Close() error {
	s.search.Close()
	return s.store.Close()
}

// BuildStatic copies the site into the output directory, rendering Markdown
// pages, minifying HTML and writing the search index alongside.
func (s *Service) BuildStatic(ctx context.Context) error {
	finalDir := s.cfg.OutputDir
	parent := filepath.Dir(finalDir)
	if parent == "" {
		parent = "."
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("ensure output parent: %w", err)
	}

	tempDir, err := os.MkdirTemp(parent, ".__build-")
	if err != nil {
		return fmt.Errorf("create temp output dir: %w", err)
	}
	cleanTemp := true
	defer func() {
		if cleanTemp && tempDir != "" {
			_ = os.RemoveAll(tempDir)
		}
	}()

	if err := fsutil.CopyTree(s.cfg.SiteDir, tempDir, skipSource); err != nil {
		return fmt.Errorf("copy site: %w", err)
	}

	docs, err := s.renderMarkdownPages(ctx, s.cfg.SiteDir)
	if err != nil {
		return err
	}
	if err := s.writePages(tempDir, docs); err != nil {
		return err
	}

	if s.templates.StaticDir != "" {
		dst := filepath.Join(tempDir, "theme")
		if err := fsutil.CopyTree(s.templates.StaticDir, dst, nil); err != nil {
			return fmt.Errorf("copy theme assets: %w", err)
		}
	}

	if err := s.minifyPages(ctx, tempDir); err != nil {
		return fmt.Errorf("minify pages: %w", err)
	}

	pages, err := s.buildIndex(ctx, tempDir)
	if err != nil {
		return err
	}
	indexJSON, err := marshalIndex(pages)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(tempDir, searchIndexFile), indexJSON, 0o644); err != nil {
		return fmt.Errorf("write search index: %w", err)
	}

	backupDir := finalDir + ".old"
	if err := os.RemoveAll(backupDir); err != nil {
		return fmt.Errorf("clean backup dir: %w", err)
	}

	if err := os.Rename(finalDir, backupDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rotate old output: %w", err)
	}

	if err := os.Rename(tempDir, finalDir); err != nil {
		_ = os.Rename(backupDir, finalDir)
		return fmt.Errorf("activate new output: %w", err)
	}

	_ = os.RemoveAll(backupDir)
	cleanTemp = false
	tempDir = ""

	s.search.Install(pages)
	s.logger.Info("static build completed", "output", finalDir, "pages", len(docs), "indexed", len(pages))
	return nil
}

// buildIndex crawls the built output. The site's own page list decides what
// is indexed; without one every HTML page is.
func (s *Service) buildIndex(ctx context.Context, dir string) ([]search.IndexedPage, error) {
	fetcher := search.DirFetcher{Root: dir}
	urls, err := search.LoadPageList(ctx, fetcher, s.cfg.Search.PagesURL)
	if err != nil {
		if ctx.Err() != nil || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		s.logger.Warn("page list missing, indexing every page", "list", s.cfg.Search.PagesURL)
		if urls, err = discoverPages(dir); err != nil {
			return nil, fmt.Errorf("discover pages: %w", err)
		}
	}
	builder := search.NewBuilder(fetcher, s.logger, s.cfg.Search.PageTimeout)
	pages, err := builder.BuildIndex(ctx, urls)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	return pages, nil
}

func marshalIndex(pages []search.IndexedPage) (json.RawMessage, error) {
	if pages == nil {
		pages = []search.IndexedPage{}
	}
	data, err := json.Marshal(pages)
	if err != nil {
		return nil, fmt.Errorf("encode search index: %w", err)
	}
	return data, nil
}
