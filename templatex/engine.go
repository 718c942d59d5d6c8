package templatex

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rueijiunlin-crypto/GEIP/listing"
	"github.com/rueijiunlin-crypto/GEIP/news"
	"github.com/rueijiunlin-crypto/GEIP/search"
)

const (
	LayoutTemplate      = "layout"
	SearchTemplate      = "search-results"
	NewsTemplate        = "news-panel"
	ItemTemplate        = "list-item"
	DefaultListTemplate = "list-default"
)

//go:embed templates/*.html
var defaultTemplates embed.FS

// Engine is a thin wrapper around Go templates. Built-in templates are
// always loaded; files in the template directory override them by name.
type Engine struct {
	templates *template.Template
	StaticDir string
	now       func() time.Time
}

// PageData represents the data model expected by the default layout.
type PageData struct {
	SiteName       string
	Title          string
	ContentHTML    template.HTML
	Sections       []TOCEntry
	ActivePath     string
	SearchIndexURL string
	BaseURL        string
	Meta           Meta
}

// Meta holds SEO-oriented metadata for the rendered page.
type Meta struct {
	Description   string
	OpenGraphType string
}

// TOCEntry models a single heading for the page outline.
type TOCEntry struct {
	ID    string
	Text  string
	Level int
}

// SearchData feeds the search results fragment.
type SearchData struct {
	Query   string
	Results []search.Result
}

// NewsData feeds the news panel. View names the consuming container.
type NewsData struct {
	View          string
	Items         []news.Item
	Err           error
	RefreshHref   string
	TitleLength   int
	ContentLength int
}

// ItemData feeds the single record page.
type ItemData struct {
	Name        string
	Record      listing.Record
	ContentHTML template.HTML
	BackHref    string
}

type navItem struct {
	Href     string
	Label    string
	Disabled bool
	Current  bool
}

// Load instantiates an engine from the built-in templates plus any files
// found in templateDir. An empty templateDir uses the built-ins only.
func Load(templateDir string) (*Engine, error) {
	engine := &Engine{now: time.Now}

	tpl, err := template.New("root").Funcs(engine.funcs()).ParseFS(defaultTemplates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse built-in templates: %w", err)
	}

	if templateDir != "" {
		files, err := templateFiles(templateDir)
		if err != nil {
			return nil, err
		}
		if len(files) > 0 {
			if tpl, err = tpl.ParseFiles(files...); err != nil {
				return nil, fmt.Errorf("parse templates: %w", err)
			}
		}

		assetsPath := filepath.Join(templateDir, "assets")
		if info, err := os.Stat(assetsPath); err == nil && info.IsDir() {
			engine.StaticDir = assetsPath
		}
	}

	for _, name := range []string{LayoutTemplate, SearchTemplate, NewsTemplate, ItemTemplate, DefaultListTemplate} {
		if tpl.Lookup(name) == nil {
			return nil, fmt.Errorf("template %q is not defined", name)
		}
	}

	engine.templates = tpl
	return engine, nil
}

func templateFiles(templateDir string) ([]string, error) {
	files := make([]string, 0)
	mainFiles, err := filepath.Glob(filepath.Join(templateDir, "*.html"))
	if err != nil {
		return nil, fmt.Errorf("glob main templates: %w", err)
	}
	files = append(files, mainFiles...)

	partialsDir := filepath.Join(templateDir, "partials")
	if info, err := os.Stat(partialsDir); err == nil && info.IsDir() {
		partialFiles, err := filepath.Glob(filepath.Join(partialsDir, "*.html"))
		if err != nil {
			return nil, fmt.Errorf("glob partial templates: %w", err)
		}
		files = append(files, partialFiles...)
	}

	sort.Strings(files)
	return files, nil
}

func (e *Engine) funcs() template.FuncMap {
	return template.FuncMap{
		"safeHTML": func(v any) template.HTML {
			switch value := v.(type) {
			case template.HTML:
				return value
			case string:
				return template.HTML(value)
			default:
				return ""
			}
		},
		"baseHref": func(base string) string {
			base = strings.TrimSpace(base)
			if base == "" || base == "/" {
				return "/"
			}
			trimmed := strings.Trim(base, "/")
			return "/" + trimmed + "/"
		},
		"relativeDate": func(date string) string {
			return news.FormatDate(date, e.now())
		},
		"truncate": news.Truncate,
		"join": func(sep string, items []string) string {
			return strings.Join(items, sep)
		},
		"navAction": func(a listing.Action, label string) navItem {
			if label == "" {
				label = strconv.Itoa(a.Page)
			}
			return navItem{Href: a.Href, Label: label, Disabled: a.Disabled, Current: a.Current}
		},
	}
}

// Has reports whether a template called name is defined.
func (e *Engine) Has(name string) bool {
	return e.templates != nil && e.templates.Lookup(name) != nil
}

// Render writes the rendered layout into the provided writer.
func (e *Engine) Render(w io.Writer, data *PageData) error {
	return e.Execute(w, LayoutTemplate, data)
}

// Execute renders the named template.
func (e *Engine) Execute(w io.Writer, name string, data any) error {
	if e.templates == nil {
		return fmt.Errorf("template engine not initialized")
	}
	return e.templates.ExecuteTemplate(w, name, data)
}

// List returns a listing renderer for the named template, falling back to
// the generic list template when name is not defined.
func (e *Engine) List(name string) listing.RenderFunc {
	if !e.Has(name) {
		name = DefaultListTemplate
	}
	return func(w io.Writer, page listing.Page) error {
		return e.Execute(w, name, page)
	}
}
