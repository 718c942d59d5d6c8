package listing

import (
	"sort"
	"strconv"
	"strings"
)

// FilterOption is one selectable discriminator value.
type FilterOption struct {
	Value  string
	Active bool
	Href   string
}

// Filters lists the distinct non-empty discriminator values of items.
// Numeric values (years) sort descending numerically, anything else sorts
// descending lexically. The "all" option is not included; see Page.AllHref.
func Filters[T any](items []T, key func(T) string) []string {
	if key == nil {
		return nil
	}
	seen := make(map[string]struct{})
	values := make([]string, 0)
	numeric := true
	for _, item := range items {
		v := strings.TrimSpace(key(item))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			numeric = false
		}
	}
	if numeric {
		sort.SliceStable(values, func(i, j int) bool {
			a, _ := strconv.ParseFloat(values[i], 64)
			b, _ := strconv.ParseFloat(values[j], 64)
			return a > b
		})
	} else {
		sort.SliceStable(values, func(i, j int) bool { return values[i] > values[j] })
	}
	return values
}
