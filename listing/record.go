// Package listing implements the paginated, filterable record listings shared
// by the course, project, news, video and album pages.
package listing

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Placeholders rendered when a record leaves a field empty.
const (
	PlaceholderTitle   = "添加標題"
	PlaceholderSummary = "添加摘要"
	PlaceholderImage   = "assets/images/placeholder.jpg"
)

// Record is one JSON object from a data file. Records are never mutated
// after loading.
type Record map[string]any

// Field stringifies the named field; missing and null fields give "".
func (r Record) Field(name string) string {
	return stringify(r[name])
}

// Text returns the named field or fallback when it is empty.
func (r Record) Text(name, fallback string) string {
	if v := strings.TrimSpace(r.Field(name)); v != "" {
		return v
	}
	return fallback
}

// Title is the record title with the "add title" placeholder.
func (r Record) Title() string {
	if v := r.Text("title", ""); v != "" {
		return v
	}
	return r.Text("name", PlaceholderTitle)
}

// Summary is the first non-empty of summary and abstract, or the placeholder.
func (r Record) Summary() string {
	if v := r.Text("summary", ""); v != "" {
		return v
	}
	return r.Text("abstract", PlaceholderSummary)
}

// Image returns the named image field or the placeholder image.
func (r Record) Image(name string) string {
	return r.Text(name, PlaceholderImage)
}

// Strings returns an array field as strings. A scalar yields one element.
func (r Record) Strings(name string) []string {
	switch v := r[name].(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s := strings.TrimSpace(stringify(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		if s := strings.TrimSpace(stringify(v)); s != "" {
			return []string{s}
		}
		return nil
	}
}

// ID parses the numeric id field.
func (r Record) ID() (int, bool) {
	id, err := strconv.Atoi(strings.TrimSpace(r.Field("id")))
	if err != nil {
		return 0, false
	}
	return id, true
}

func stringify(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case json.Number:
		return value.String()
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case int:
		return strconv.Itoa(value)
	case bool:
		return strconv.FormatBool(value)
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
