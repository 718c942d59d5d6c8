package listing

import (
	"net/url"
	"strconv"
	"strings"
)

// FilterAll is the sentinel filter value that keeps every record.
const FilterAll = "all"

// Query parameter names shared by every listing page.
const (
	PageParam   = "page"
	FilterParam = "filter"
)

// State is the requested position within a listing.
type State struct {
	Page     int
	PageSize int
	Filter   string
}

// ActionKind names a navigation control.
type ActionKind string

const (
	ActionFirst ActionKind = "first"
	ActionPrev  ActionKind = "prev"
	ActionPage  ActionKind = "page"
	ActionNext  ActionKind = "next"
	ActionLast  ActionKind = "last"
)

// Action is one navigation control. Disabled actions would not change the page.
type Action struct {
	Kind     ActionKind
	Page     int
	Disabled bool
	Current  bool
	Href     string
}

// Nav describes the pagination controls for a view.
type Nav struct {
	First Action
	Prev  Action
	Pages []Action
	Next  Action
	Last  Action
}

// View is the visible slice of a filtered collection.
type View[T any] struct {
	Items      []T
	Filtered   int
	Page       int
	PageSize   int
	TotalPages int
	Filter     string
	Nav        Nav
}

// IsAll reports whether filter keeps every record.
func IsAll(filter string) bool {
	f := strings.TrimSpace(filter)
	return f == "" || strings.EqualFold(f, FilterAll) || f == "全部"
}

// ParseState reads page and filter from a query string. The page number is
// taken from the leading digits, so "2abc" and "2.5" both mean 2. Missing,
// invalid or non-positive pages become 1.
func ParseState(query url.Values, pageSize int) State {
	page, ok := leadingInt(query.Get(PageParam))
	if !ok || page < 1 {
		page = 1
	}
	return State{Page: page, PageSize: pageSize, Filter: strings.TrimSpace(query.Get(FilterParam))}
}

// leadingInt parses an optional sign followed by the longest run of ASCII
// digits at the start of s.
func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Paginate filters items by key, clamps the requested page and returns the
// visible slice with its navigation. A nil key disables filtering.
func Paginate[T any](state State, items []T, key func(T) string) View[T] {
	size := state.PageSize
	if size <= 0 {
		size = 1
	}

	filtered := items
	filter := strings.TrimSpace(state.Filter)
	if key != nil && !IsAll(filter) {
		filtered = make([]T, 0, len(items))
		for _, item := range items {
			if key(item) == filter {
				filtered = append(filtered, item)
			}
		}
	} else {
		filter = FilterAll
	}

	total := (len(filtered) + size - 1) / size
	if total < 1 {
		total = 1
	}
	page := min(max(state.Page, 1), total)

	start := min((page-1)*size, len(filtered))
	end := min(page*size, len(filtered))

	return View[T]{
		Items:      filtered[start:end],
		Filtered:   len(filtered),
		Page:       page,
		PageSize:   size,
		TotalPages: total,
		Filter:     filter,
		Nav:        buildNav(page, total),
	}
}

func buildNav(page, total int) Nav {
	nav := Nav{
		First: Action{Kind: ActionFirst, Page: 1, Disabled: page == 1},
		Prev:  Action{Kind: ActionPrev, Page: max(page-1, 1), Disabled: page == 1},
		Next:  Action{Kind: ActionNext, Page: min(page+1, total), Disabled: page == total},
		Last:  Action{Kind: ActionLast, Page: total, Disabled: page == total},
		Pages: make([]Action, 0, total),
	}
	for i := 1; i <= total; i++ {
		nav.Pages = append(nav.Pages, Action{Kind: ActionPage, Page: i, Disabled: i == page, Current: i == page})
	}
	return nav
}

// Link fills every action's Href relative to path, keeping the other
// parameters of query.
func (n *Nav) Link(path string, query url.Values) {
	set := func(a *Action) { a.Href = PageHref(path, query, a.Page) }
	set(&n.First)
	set(&n.Prev)
	set(&n.Next)
	set(&n.Last)
	for i := range n.Pages {
		set(&n.Pages[i])
	}
}

// PageHref rewrites only the page parameter.
func PageHref(path string, query url.Values, page int) string {
	q := cloneValues(query)
	q.Set(PageParam, strconv.Itoa(page))
	return path + "?" + q.Encode()
}

// FilterHref switches the filter and drops the page parameter so the listing
// restarts at page 1.
func FilterHref(path string, query url.Values, filter string) string {
	q := cloneValues(query)
	q.Del(PageParam)
	if IsAll(filter) {
		q.Del(FilterParam)
	} else {
		q.Set(FilterParam, filter)
	}
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for key, values := range v {
		out[key] = append([]string(nil), values...)
	}
	return out
}
