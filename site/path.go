package site

import (
	"io/fs"
	"path/filepath"
	"strings"
)

func isMarkdown(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".md")
}

func isHTML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".html" || ext == ".htm"
}

// isIgnorable reports whether a site entry stays out of the build: dot files
// such as .git and .env, and build leftovers.
func isIgnorable(rel string) bool {
	for _, segment := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(segment, ".") {
			return true
		}
	}
	return false
}

// skipSource filters the site copy: ignorable entries and Markdown sources,
// which are rendered instead of copied.
func skipSource(rel string, d fs.DirEntry) bool {
	if isIgnorable(rel) {
		return true
	}
	return !d.IsDir() && isMarkdown(rel)
}

func routeFromPath(relPath string) string {
	return "/" + strings.TrimPrefix(htmlPathFrom(relPath), "/")
}

func htmlPathFrom(relPath string) string {
	rel := filepath.ToSlash(relPath)
	rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + ".html"
	return rel
}
