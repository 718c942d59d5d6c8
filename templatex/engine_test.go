package templatex

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rueijiunlin-crypto/GEIP/listing"
	"github.com/rueijiunlin-crypto/GEIP/news"
	"github.com/rueijiunlin-crypto/GEIP/search"
)

func TestLoadBuiltins(t *testing.T) {
	engine, err := Load("")
	require.NoError(t, err)
	for _, name := range []string{"list-courses", "list-projects", "list-news", "list-videos", "list-albums"} {
		assert.True(t, engine.Has(name), name)
	}
	assert.False(t, engine.Has("list-missing"))
	assert.Empty(t, engine.StaticDir)
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.html"),
		[]byte(`{{define "list-default"}}custom {{.Name}}{{end}}`), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o755))

	engine, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "assets"), engine.StaticDir)

	var buf bytes.Buffer
	require.NoError(t, engine.List("list-talks")(&buf, listing.Page{Name: "talks"}))
	assert.Equal(t, "custom talks", buf.String())
}

func TestLoadRejectsBrokenTemplate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.html"), []byte(`{{define "x"}}{{.Foo`), 0o644))
	_, err := Load(dir)
	assert.ErrorContains(t, err, "parse templates")
}

func TestProjectsListMarkup(t *testing.T) {
	engine, err := Load("")
	require.NoError(t, err)

	list := &listing.List{
		Name: "projects",
		Path: "/projects.html",
		Source: listing.Static{
			{"id": 1, "title": "Flood sensing", "year": "2024", "advisors": []any{"王老師", "李老師"}},
			{"id": 2, "year": "2023"},
			{"id": 3, "title": "Soil", "year": "2024"},
		},
		Discriminator: "year",
		PageSize:      1,
		Render:        engine.List("list-projects"),
	}

	var buf bytes.Buffer
	require.NoError(t, list.Write(context.Background(), &buf, url.Values{"filter": {"2024"}}))
	out := buf.String()

	assert.Contains(t, out, "Flood sensing")
	assert.Contains(t, out, "指導：王老師、李老師")
	assert.Contains(t, out, "成員：—")
	assert.Contains(t, out, listing.PlaceholderImage)
	assert.Contains(t, out, `<span class="btn disabled">第一頁</span>`)
	assert.Contains(t, out, `href="/projects.html?filter=2024&amp;page=2">下一頁</a>`)
	assert.Contains(t, out, `href="/projects.html?filter=2023">2023</a>`)
	assert.NotContains(t, out, "Soil")
}

func TestListErrorState(t *testing.T) {
	engine, err := Load("")
	require.NoError(t, err)

	list := &listing.List{
		Name:     "videos",
		PageSize: 6,
		Source: listing.SourceFunc(func(context.Context) ([]listing.Record, error) {
			return nil, errors.New("missing file")
		}),
		Render: engine.List("list-videos"),
	}
	var buf bytes.Buffer
	require.NoError(t, list.Write(context.Background(), &buf, nil))
	assert.Contains(t, buf.String(), "資料載入失敗")
	assert.NotContains(t, buf.String(), "missing file")
}

func TestSearchResults(t *testing.T) {
	engine, err := Load("")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, engine.Execute(&buf, SearchTemplate, SearchData{
		Query: "AI",
		Results: []search.Result{{
			URL:   "/courses.html",
			Title: "Courses <2024>",
			HTML:  template.HTML("Intro to <mark>AI</mark>"),
		}},
	}))
	out := buf.String()
	assert.Contains(t, out, "共 1 筆結果")
	assert.Contains(t, out, "Courses &lt;2024&gt;")
	assert.Contains(t, out, "<mark>AI</mark>")

	buf.Reset()
	require.NoError(t, engine.Execute(&buf, SearchTemplate, SearchData{Query: "<x>"}))
	assert.Contains(t, buf.String(), "找不到與「<strong>&lt;x&gt;</strong>」相關的內容")

	buf.Reset()
	require.NoError(t, engine.Execute(&buf, SearchTemplate, SearchData{}))
	assert.Empty(t, bytes.TrimSpace(buf.Bytes()))
}

func TestNewsPanel(t *testing.T) {
	engine, err := Load("")
	require.NoError(t, err)
	engine.now = func() time.Time { return time.Date(2024, 6, 10, 12, 0, 0, 0, time.Local) }

	var buf bytes.Buffer
	require.NoError(t, engine.Execute(&buf, NewsTemplate, NewsData{
		View:          "sidebar",
		Items:         []news.Item{{Title: "招生說明會開跑", Content: "歡迎報名參加", Date: "2024-06-09", Link: "/news/1"}},
		RefreshHref:   "/fragments/news?refresh=1",
		TitleLength:   4,
		ContentLength: 60,
	}))
	out := buf.String()
	assert.Contains(t, out, "招生說明...")
	assert.Contains(t, out, "昨天")
	assert.Contains(t, out, `href="/news/1"`)

	buf.Reset()
	require.NoError(t, engine.Execute(&buf, NewsTemplate, NewsData{Err: errors.New("down"), RefreshHref: "/fragments/news?refresh=1"}))
	assert.Contains(t, buf.String(), "最新消息載入失敗")
	assert.Contains(t, buf.String(), "refresh=1")

	buf.Reset()
	require.NoError(t, engine.Execute(&buf, NewsTemplate, NewsData{}))
	assert.Contains(t, buf.String(), "目前沒有最新消息")
}

func TestRenderLayout(t *testing.T) {
	engine, err := Load("")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, engine.Render(&buf, &PageData{
		SiteName:    "GEIP",
		Title:       "招生",
		ContentHTML: template.HTML("<p>hello</p>"),
		Sections:    []TOCEntry{{ID: "intro", Text: "Intro", Level: 2}},
		BaseURL:     "/geip",
	}))
	out := buf.String()
	assert.Contains(t, out, "<title>招生 | GEIP</title>")
	assert.Contains(t, out, "<p>hello</p>")
	assert.Contains(t, out, `href="#intro"`)
	assert.Contains(t, out, `href="/geip/assets/css/style.css"`)
}
