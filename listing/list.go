package listing

import (
	"context"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Page is everything a listing template needs to render one request.
type Page struct {
	Name    string
	Path    string
	View    View[Record]
	Filters []FilterOption
	// AllHref resets the filter.
	AllHref string
	Err     error
}

// RenderFunc writes the markup for a listing page.
type RenderFunc func(w io.Writer, page Page) error

// List is one configured listing.
type List struct {
	Name string
	// Path is the page the listing is mounted on; hrefs are built against it.
	Path          string
	Source        Source
	Discriminator string
	// SortBy orders records descending by the stringified field when set.
	SortBy   string
	PageSize int
	// Limit keeps only the first Limit records after sorting when positive.
	Limit  int
	Render RenderFunc
}

// Records loads, sorts and limits the collection.
func (l *List) Records(ctx context.Context) ([]Record, error) {
	records, err := l.Source.Load(ctx)
	if err != nil {
		return nil, err
	}
	if l.SortBy != "" {
		sorted := make([]Record, len(records))
		copy(sorted, records)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Field(l.SortBy) > sorted[j].Field(l.SortBy)
		})
		records = sorted
	}
	if l.Limit > 0 && len(records) > l.Limit {
		records = records[:l.Limit]
	}
	return records, nil
}

// View builds the page for the request query. A failing source yields a page
// with Err set and no items rather than an error.
func (l *List) View(ctx context.Context, query url.Values) Page {
	state := ParseState(query, l.PageSize)
	page := Page{Name: l.Name, Path: l.Path, AllHref: FilterHref(l.Path, query, FilterAll)}

	records, err := l.Records(ctx)
	if err != nil {
		page.Err = err
		page.View = Paginate[Record](state, nil, nil)
		page.View.Nav.Link(l.Path, query)
		return page
	}

	key := l.key()
	page.View = Paginate(state, records, key)
	page.View.Nav.Link(l.Path, query)
	for _, value := range Filters(records, key) {
		page.Filters = append(page.Filters, FilterOption{
			Value:  value,
			Active: value == page.View.Filter,
			Href:   FilterHref(l.Path, query, value),
		})
	}
	return page
}

// Write renders the page for query with the list's RenderFunc.
func (l *List) Write(ctx context.Context, w io.Writer, query url.Values) error {
	return l.Render(w, l.View(ctx, query))
}

// Item returns the record with the requested id, see Lookup.
func (l *List) Item(ctx context.Context, id string) (Record, error) {
	records, err := l.Source.Load(ctx)
	if err != nil {
		return nil, err
	}
	return Lookup(records, id), nil
}

func (l *List) key() func(Record) string {
	if l.Discriminator == "" {
		return nil
	}
	field := l.Discriminator
	return func(r Record) string { return strings.TrimSpace(r.Field(field)) }
}

// Lookup finds the record whose numeric id equals id. An unknown or invalid
// id falls back to the first record, and an empty collection to an empty record.
func Lookup(records []Record, id string) Record {
	want, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil {
		want = 0
	}
	for _, r := range records {
		if got, ok := r.ID(); ok && got == want {
			return r
		}
	}
	if len(records) > 0 {
		return records[0]
	}
	return Record{}
}
