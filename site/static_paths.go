package site

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ServeDir is the directory pages are served and crawled from: the output
// directory once a build has produced it, the raw site directory before.
// Markdown pages only exist as HTML in the former.
func (s *Service) ServeDir() string {
	if info, err := os.Stat(s.cfg.OutputDir); err == nil && info.IsDir() {
		return s.cfg.OutputDir
	}
	return s.cfg.SiteDir
}

// StaticPath resolves a request path to a file under ServeDir. Directory
// requests map to their index.html.
func (s *Service) StaticPath(requestPath string) (string, error) {
	route := sanitizeRoute(requestPath)
	if strings.Contains(route, "\x00") {
		return "", ErrInvalidPath
	}
	rel := strings.TrimPrefix(route, "/")
	if rel == "" || strings.HasSuffix(requestPath, "/") {
		rel = path.Join(rel, "index.html")
	}
	if isIgnorable(rel) {
		return "", ErrInvalidPath
	}
	root, err := filepath.Abs(s.ServeDir())
	if err != nil {
		return "", err
	}
	target := filepath.Join(root, filepath.FromSlash(rel))
	if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return "", ErrInvalidPath
	}
	return target, nil
}

func sanitizeRoute(input string) string {
	route := strings.TrimSpace(input)
	if route == "" {
		return "/"
	}
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	cleaned := path.Clean(route)
	if cleaned == "." {
		cleaned = "/"
	}
	return cleaned
}
