package site

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/rueijiunlin-crypto/GEIP/templatex"
)

// renderMarkdownPages renders every Markdown file under root.
func (s *Service) renderMarkdownPages(ctx context.Context, root string) ([]page, error) {
	sources := make([]string, 0)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel != "." && isIgnorable(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && isMarkdown(rel) {
			sources = append(sources, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan markdown pages: %w", err)
	}
	sort.Strings(sources)

	pages := make([]page, 0, len(sources))
	for _, rel := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", rel, err)
		}
		res, err := s.renderer.Render(raw)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", rel, err)
		}

		title := res.Title
		if title == "" {
			title = deriveTitle(rel, s.cfg.SiteName)
		}
		description, _ := res.Meta["description"].(string)

		sections := make([]templatex.TOCEntry, 0, len(res.Headings))
		for _, h := range res.Headings {
			if h.Level < 2 || h.Level > 3 {
				continue
			}
			sections = append(sections, templatex.TOCEntry{ID: h.ID, Text: h.Text, Level: h.Level})
		}

		pages = append(pages, page{
			Source:      rel,
			Route:       routeFromPath(rel),
			OutputPath:  htmlPathFrom(rel),
			Title:       title,
			Description: metaDescription(description, res.PlainText),
			HTML:        template.HTML(res.HTML),
			Sections:    sections,
		})
	}
	return pages, nil
}

func (s *Service) pageData(doc page) *templatex.PageData {
	return &templatex.PageData{
		SiteName:       s.cfg.SiteName,
		Title:          doc.Title,
		ContentHTML:    doc.HTML,
		Sections:       doc.Sections,
		ActivePath:     doc.Route,
		SearchIndexURL: "/search-index.json",
		BaseURL:        s.cfg.BaseURL,
		Meta: templatex.Meta{
			Description:   doc.Description,
			OpenGraphType: "article",
		},
	}
}

// writePages renders docs through the layout into dir.
func (s *Service) writePages(dir string, docs []page) error {
	for _, doc := range docs {
		var buf bytes.Buffer
		if err := s.templates.Render(&buf, s.pageData(doc)); err != nil {
			return fmt.Errorf("render layout %s: %w", doc.Source, err)
		}
		out := filepath.Join(dir, filepath.FromSlash(doc.OutputPath))
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", doc.OutputPath, err)
		}
	}
	return nil
}

// minifyPages minifies every HTML file under dir in place. A page the
// minifier rejects is kept as is.
func (s *Service) minifyPages(ctx context.Context, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isHTML(path) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		minified, err := s.renderer.MinifyHTML(raw)
		if err != nil {
			s.logger.Warn("minify skipped", "path", path, "error", err)
			return nil
		}
		return os.WriteFile(path, minified, 0o644)
	})
}

// discoverPages lists the HTML pages under dir as site-relative URLs, used
// when the site carries no page list.
func discoverPages(dir string) ([]string, error) {
	urls := make([]string, 0)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isHTML(path) {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		urls = append(urls, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(urls)
	return urls, nil
}
