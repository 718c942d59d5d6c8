package site

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rueijiunlin-crypto/GEIP/config"
	"github.com/rueijiunlin-crypto/GEIP/kvstore"
	"github.com/rueijiunlin-crypto/GEIP/search"
	"github.com/rueijiunlin-crypto/GEIP/templatex"
)

const coursesPage = `<!doctype html><html><head><title>課程 Courses</title></head>
<body><nav>AI menu</nav><main><h1>課程</h1><p>Introduction to AI and Data</p></main>
<footer>contact</footer></body></html>`

func writeSiteFile(t *testing.T, root, rel, body string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func newTestSite(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeSiteFile(t, root, "index.html", "<!doctype html><html><head><title>首頁</title></head><body>\n  <!-- hidden -->\n  <main>Welcome   to GEIP</main>\n</body></html>")
	writeSiteFile(t, root, "courses.html", coursesPage)
	writeSiteFile(t, root, "about.md", "---\ntitle: 關於我們\ndescription: Program overview\n---\n# About\n\n## Mission\n\nWe teach AI.\n")
	writeSiteFile(t, root, "search_pages.json", `["index.html", "courses.html", "missing.html"]`)
	writeSiteFile(t, root, "data/projects.json", `[
		{"id": 1, "title": "Flood sensing", "year": 2024},
		{"id": 2, "title": "Soil", "year": 2023},
		{"id": 3, "title": "Drones", "year": 2024}
	]`)
	writeSiteFile(t, root, "data/news.json", `[{"id": 7, "title": "公告", "content": "**重要**事項"}]`)
	writeSiteFile(t, root, ".git/HEAD", "ref: refs/heads/main")
	return root
}

func newTestService(t *testing.T, siteDir string, mutate func(*config.Config)) (*Service, kvstore.Store) {
	t.Helper()
	cfg := config.Default()
	cfg.SiteDir = siteDir
	cfg.OutputDir = filepath.Join(t.TempDir(), "dist")
	if mutate != nil {
		mutate(cfg)
	}
	templates, err := templatex.Load("")
	require.NoError(t, err)
	store := kvstore.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := NewService(cfg, store, templates, logger, "geip-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, store
}

func TestSearchBlankQuerySkipsIndex(t *testing.T) {
	svc, _ := newTestService(t, newTestSite(t), nil)

	results, err := svc.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, results)

	_, ready := svc.search.Snapshot()
	assert.False(t, ready)
}

func TestSearchBuildsAndCachesIndex(t *testing.T) {
	root := newTestSite(t)
	svc, store := newTestService(t, root, nil)
	ctx := context.Background()

	results, err := svc.Search(ctx, "ai")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "courses.html", results[0].URL)
	assert.Equal(t, "課程 Courses", results[0].Title)
	assert.Contains(t, string(results[0].HTML), "<mark>AI</mark>")

	_, err = store.Get(ctx, "siteSearchIndexV1")
	require.NoError(t, err)

	writeSiteFile(t, root, "courses.html", `<html><head><title>Courses</title></head><body><main>Robotics lab</main></body></html>`)
	results, err = svc.Search(ctx, "robotics")
	require.NoError(t, err)
	assert.Empty(t, results)

	n, err := svc.RefreshIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	results, err = svc.Search(ctx, "robotics")
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestSearchUsesPersistedIndex(t *testing.T) {
	root := newTestSite(t)
	cacheDir := t.TempDir()
	ctx := context.Background()

	first, err := kvstore.NewFileStore(cacheDir)
	require.NoError(t, err)

	// a second service over the same file cache answers without crawling
	cfg := config.Default()
	cfg.SiteDir = root
	templates, err := templatex.Load("")
	require.NoError(t, err)
	warm, err := NewService(cfg, first, templates, nil, "")
	require.NoError(t, err)
	_, err = warm.Search(ctx, "geip")
	require.NoError(t, err)
	require.NoError(t, warm.Close())

	require.NoError(t, os.Remove(filepath.Join(root, "index.html")))
	second, err := kvstore.NewFileStore(cacheDir)
	require.NoError(t, err)
	cold, err := NewService(cfg, second, templates, nil, "")
	require.NoError(t, err)
	defer cold.Close()

	results, err := cold.Search(ctx, "welcome")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "index.html", results[0].URL)
}

func TestListingLookup(t *testing.T) {
	svc, _ := newTestService(t, newTestSite(t), nil)

	_, err := svc.Listing("missing")
	assert.ErrorIs(t, err, ErrUnknownListing)
	assert.Contains(t, svc.Listings(), "projects")

	projects, err := svc.Listing("Projects")
	require.NoError(t, err)
	page := projects.View(context.Background(), url.Values{"filter": {"2024"}})
	require.NoError(t, page.Err)
	assert.Equal(t, 2, page.View.Filtered)
	assert.Equal(t, "/projects.html", page.Path)

	videos, err := svc.Listing("videos")
	require.NoError(t, err)
	assert.Error(t, videos.View(context.Background(), nil).Err)
}

func TestItemRendersContent(t *testing.T) {
	svc, _ := newTestService(t, newTestSite(t), nil)

	item, err := svc.Item(context.Background(), "news", "7")
	require.NoError(t, err)
	assert.Equal(t, "公告", item.Record.Title())
	assert.Contains(t, string(item.ContentHTML), "<strong>重要</strong>")
	assert.Equal(t, "/news.html", item.BackHref)
}

func TestNews(t *testing.T) {
	svc, _ := newTestService(t, newTestSite(t), nil)
	_, err := svc.News(context.Background(), false)
	assert.ErrorIs(t, err, ErrNewsDisabled)
	assert.Nil(t, svc.NewsRefresher())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": true, "data": [{"id": 1, "title": "Open day", "date": "2024-05-01"}]}`))
	}))
	defer srv.Close()

	svc, store := newTestService(t, newTestSite(t), func(cfg *config.Config) {
		cfg.News.APIBase = srv.URL + "/api"
	})
	items, err := svc.News(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Open day", items[0].Title)

	_, err = store.Get(context.Background(), "geip_news_cache")
	assert.NoError(t, err)
}

func TestBuildStatic(t *testing.T) {
	root := newTestSite(t)
	svc, _ := newTestService(t, root, nil)
	out := svc.cfg.OutputDir
	writeSiteFile(t, out, "stale.html", "old build")

	require.NoError(t, svc.BuildStatic(context.Background()))

	assert.NoFileExists(t, filepath.Join(out, "stale.html"))
	assert.NoFileExists(t, filepath.Join(out, "about.md"))
	assert.NoDirExists(t, filepath.Join(out, ".git"))
	assert.NoDirExists(t, out+".old")
	assert.FileExists(t, filepath.Join(out, "data", "projects.json"))

	about, err := os.ReadFile(filepath.Join(out, "about.html"))
	require.NoError(t, err)
	assert.Contains(t, string(about), "關於我們")
	assert.Contains(t, string(about), "Program overview")
	assert.Contains(t, string(about), `href="#mission"`)

	index, err := os.ReadFile(filepath.Join(out, "index.html"))
	require.NoError(t, err)
	assert.NotContains(t, string(index), "hidden")
	assert.Contains(t, string(index), "Welcome to GEIP")

	raw, err := os.ReadFile(filepath.Join(out, searchIndexFile))
	require.NoError(t, err)
	var pages []search.IndexedPage
	require.NoError(t, json.Unmarshal(raw, &pages))
	require.Len(t, pages, 2)
	assert.Equal(t, "index.html", pages[0].URL)
	assert.Contains(t, pages[1].Text, "Introduction to AI and Data")
	assert.NotContains(t, pages[1].Text, "menu")

	installed, ready := svc.search.Snapshot()
	require.True(t, ready)
	assert.Len(t, installed, 2)

	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBuildStaticWithoutPageList(t *testing.T) {
	root := newTestSite(t)
	require.NoError(t, os.Remove(filepath.Join(root, "search_pages.json")))
	svc, _ := newTestService(t, root, nil)

	require.NoError(t, svc.BuildStatic(context.Background()))

	raw, err := svc.SearchIndexJSON(context.Background())
	require.NoError(t, err)
	var pages []search.IndexedPage
	require.NoError(t, json.Unmarshal(raw, &pages))
	urls := make([]string, 0, len(pages))
	for _, p := range pages {
		urls = append(urls, p.URL)
	}
	assert.Equal(t, []string{"about.html", "courses.html", "index.html"}, urls)
}

func TestStaticPath(t *testing.T) {
	root := newTestSite(t)
	svc, _ := newTestService(t, root, nil)
	abs, err := filepath.Abs(root)
	require.NoError(t, err)

	cases := map[string]string{
		"/":              "index.html",
		"/courses.html":  "courses.html",
		"/data/":         "data/index.html",
		"/../etc/passwd": "etc/passwd",
	}
	for in, want := range cases {
		got, err := svc.StaticPath(in)
		require.NoError(t, err, in)
		assert.Equal(t, filepath.Join(abs, filepath.FromSlash(want)), got, in)
	}

	_, err = svc.StaticPath("/.git/HEAD")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestServeDirPrefersBuildOutput(t *testing.T) {
	root := newTestSite(t)
	svc, _ := newTestService(t, root, nil)
	ctx := context.Background()

	assert.Equal(t, root, svc.ServeDir())
	before, err := svc.StaticPath("/about.html")
	require.NoError(t, err)
	assert.NoFileExists(t, before)

	require.NoError(t, svc.BuildStatic(ctx))
	assert.Equal(t, svc.cfg.OutputDir, svc.ServeDir())

	after, err := svc.StaticPath("/about.html")
	require.NoError(t, err)
	assert.FileExists(t, after)

	// the local crawl reads the built pages, so rendered Markdown is searchable
	writeSiteFile(t, svc.cfg.OutputDir, "search_pages.json", `["about.html"]`)
	count, err := svc.RefreshIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := svc.Search(ctx, "teach ai")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "about.html", results[0].URL)
}
