package site

import (
	"path"
	"strings"

	"github.com/rueijiunlin-crypto/GEIP/news"
)

const descriptionLimit = 160

// deriveTitle names a page after its file, or after its directory for an
// index page. The site root index takes the site name.
func deriveTitle(relPath, siteName string) string {
	rel := strings.TrimSuffix(relPath, path.Ext(relPath))
	if path.Base(rel) == "index" {
		rel = path.Dir(rel)
		if rel == "." || rel == "/" {
			return siteName
		}
	}
	name := strings.NewReplacer("-", " ", "_", " ").Replace(path.Base(rel))
	if name = strings.TrimSpace(name); name == "" {
		return siteName
	}
	return name
}

// metaDescription prefers the front matter description over the page text.
func metaDescription(summary, fallback string) string {
	text := strings.TrimSpace(summary)
	if text == "" {
		text = fallback
	}
	return news.Truncate(strings.Join(strings.Fields(text), " "), descriptionLimit)
}
