package server

import (
	"bytes"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/rueijiunlin-crypto/GEIP/listing"
	"github.com/rueijiunlin-crypto/GEIP/search"
	"github.com/rueijiunlin-crypto/GEIP/site"
	"github.com/rueijiunlin-crypto/GEIP/templatex"
)

// newsViews mirrors the containers that embed the news panel.
var newsViews = map[string]templatex.NewsData{
	"index":   {View: "index", ContentLength: 80},
	"news":    {View: "news", ContentLength: 150},
	"sidebar": {View: "sidebar", TitleLength: 40, ContentLength: 60},
}

// newsLimits caps the item count per container; zero shows everything.
var newsLimits = map[string]int{"index": 3, "sidebar": 5}

type searchResponse struct {
	Query   string          `json:"query"`
	Count   int             `json:"count"`
	Results []search.Result `json:"results"`
}

type listResponse struct {
	Name       string           `json:"name"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
	Filtered   int              `json:"filtered"`
	Filter     string           `json:"filter"`
	Filters    []string         `json:"filters"`
	Items      []listing.Record `json:"items"`
	Nav        navResponse      `json:"nav"`
}

type navResponse struct {
	First actionResponse   `json:"first"`
	Prev  actionResponse   `json:"prev"`
	Pages []actionResponse `json:"pages"`
	Next  actionResponse   `json:"next"`
	Last  actionResponse   `json:"last"`
}

type actionResponse struct {
	Page     int    `json:"page"`
	Href     string `json:"href"`
	Disabled bool   `json:"disabled"`
	Current  bool   `json:"current,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	results, err := s.svc.Search(r.Context(), query)
	if err != nil {
		s.logger.Warn("search", "query", query, "error", err)
		writeError(w, http.StatusServiceUnavailable, "search index unavailable")
		return
	}
	if results == nil {
		results = []search.Result{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: query, Count: len(results), Results: results})
}

func (s *Server) handleSearchFragment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	results, err := s.svc.Search(r.Context(), query)
	if err != nil {
		s.logger.Warn("search", "query", query, "error", err)
		writeError(w, http.StatusServiceUnavailable, "search index unavailable")
		return
	}
	s.writeFragment(w, templatex.SearchTemplate, templatex.SearchData{Query: query, Results: results})
}

func (s *Server) handleSearchRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !s.authorizeRefresh(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	count, err := s.svc.RefreshIndex(r.Context())
	if err != nil {
		s.logger.Error("search refresh", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "rebuilt", "pages": count})
}

func (s *Server) handleSearchIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	payload, err := s.svc.SearchIndexJSON(r.Context())
	if err != nil {
		s.logger.Warn("search index", "error", err)
		writeError(w, http.StatusServiceUnavailable, "search index unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (s *Server) lookupListing(w http.ResponseWriter, r *http.Request) (*listing.List, bool) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return nil, false
	}
	l, err := s.svc.Listing(r.PathValue("name"))
	if err != nil {
		if errors.Is(err, site.ErrUnknownListing) {
			writeError(w, http.StatusNotFound, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return nil, false
	}
	return l, true
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	l, ok := s.lookupListing(w, r)
	if !ok {
		return
	}
	page := l.View(r.Context(), r.URL.Query())
	if page.Err != nil {
		s.logger.Warn("listing", "name", l.Name, "error", page.Err)
		writeError(w, http.StatusBadGateway, "listing data unavailable")
		return
	}

	filters := make([]string, 0, len(page.Filters))
	for _, f := range page.Filters {
		filters = append(filters, f.Value)
	}
	items := page.View.Items
	if items == nil {
		items = []listing.Record{}
	}
	writeJSON(w, http.StatusOK, listResponse{
		Name:       page.Name,
		Page:       page.View.Page,
		PageSize:   page.View.PageSize,
		TotalPages: page.View.TotalPages,
		Filtered:   page.View.Filtered,
		Filter:     page.View.Filter,
		Filters:    filters,
		Items:      items,
		Nav:        toNavResponse(page.View.Nav),
	})
}

func (s *Server) handleListFragment(w http.ResponseWriter, r *http.Request) {
	l, ok := s.lookupListing(w, r)
	if !ok {
		return
	}
	page := l.View(r.Context(), r.URL.Query())
	if page.Err != nil {
		s.logger.Warn("listing", "name", l.Name, "error", page.Err)
	}
	var buf bytes.Buffer
	if err := l.Render(&buf, page); err != nil {
		s.logger.Error("render listing", "name", l.Name, "error", err)
		writeError(w, http.StatusInternalServerError, "render failed")
		return
	}
	s.writeHTML(w, buf.Bytes())
}

func (s *Server) handleListItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	item, ok := s.loadItem(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": item.Name, "item": item.Record, "html": item.ContentHTML})
}

func (s *Server) handleListItemFragment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	item, ok := s.loadItem(w, r)
	if !ok {
		return
	}
	s.writeFragment(w, templatex.ItemTemplate, item)
}

func (s *Server) loadItem(w http.ResponseWriter, r *http.Request) (templatex.ItemData, bool) {
	item, err := s.svc.Item(r.Context(), r.PathValue("name"), r.URL.Query().Get("id"))
	if err != nil {
		switch {
		case errors.Is(err, site.ErrUnknownListing):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			s.logger.Warn("listing item", "name", r.PathValue("name"), "error", err)
			writeError(w, http.StatusBadGateway, "listing data unavailable")
		}
		return templatex.ItemData{}, false
	}
	return item, true
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	items, err := s.svc.News(r.Context(), r.URL.Query().Get("refresh") == "1")
	if err != nil {
		switch {
		case errors.Is(err, site.ErrNewsDisabled):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			s.logger.Warn("news", "error", err)
			writeError(w, http.StatusBadGateway, "取得最新消息失敗")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// handleNewsFragment always answers with a panel; failures render the error
// state with a manual refresh link.
func (s *Server) handleNewsFragment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	view := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("view")))
	data, ok := newsViews[view]
	if !ok {
		view = "index"
		data = newsViews[view]
	}
	data.RefreshHref = "/fragments/news?view=" + view + "&refresh=1"

	items, err := s.svc.News(r.Context(), r.URL.Query().Get("refresh") == "1")
	if err != nil {
		s.logger.Warn("news", "view", view, "error", err)
		data.Err = err
	} else {
		if limit := newsLimits[view]; limit > 0 && len(items) > limit {
			items = items[:limit]
		}
		data.Items = items
	}
	s.writeFragment(w, templatex.NewsTemplate, data)
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	target, err := s.svc.StaticPath(r.URL.Path)
	if err == nil {
		if info, statErr := os.Stat(target); statErr == nil && !info.IsDir() {
			http.ServeFile(w, r, target)
			return
		}
	}
	s.notFound(w, r)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	if page, err := s.svc.StaticPath("/404.html"); err == nil {
		if data, err := os.ReadFile(page); err == nil {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write(data)
			return
		}
	}
	http.NotFound(w, r)
}

// writeFragment renders a template, minifies it and writes it as HTML.
func (s *Server) writeFragment(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := s.svc.Templates().Execute(&buf, name, data); err != nil {
		s.logger.Error("render fragment", "template", name, "error", err)
		writeError(w, http.StatusInternalServerError, "render failed")
		return
	}
	s.writeHTML(w, buf.Bytes())
}

func (s *Server) writeHTML(w http.ResponseWriter, markup []byte) {
	if minified, err := s.svc.Renderer().MinifyHTML(markup); err == nil {
		markup = minified
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(markup)
}

func toNavResponse(nav listing.Nav) navResponse {
	conv := func(a listing.Action) actionResponse {
		return actionResponse{Page: a.Page, Href: a.Href, Disabled: a.Disabled, Current: a.Current}
	}
	out := navResponse{
		First: conv(nav.First),
		Prev:  conv(nav.Prev),
		Next:  conv(nav.Next),
		Last:  conv(nav.Last),
		Pages: make([]actionResponse, 0, len(nav.Pages)),
	}
	for _, p := range nav.Pages {
		out.Pages = append(out.Pages, conv(p))
	}
	return out
}
