package search

import (
	"html"
	"html/template"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	snippetBefore = 50
	snippetAfter  = 100
)

// Search returns a result for every page whose text contains query,
// ignoring case, in index order. A blank query performs no lookup and
// returns nil.
func Search(query string, index []IndexedPage) []Result {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil
	}
	needle := lowerRunes([]rune(norm.NFC.String(q)))

	results := make([]Result, 0)
	for _, page := range index {
		text := []rune(page.Text)
		lower := lowerRunes(text)
		pos := indexRunes(lower, needle)
		if pos < 0 {
			continue
		}
		start := max(0, pos-snippetBefore)
		end := min(len(text), pos+len(needle)+snippetAfter)
		window, lowerWindow := trimWindow(text[start:end], lower[start:end])
		results = append(results, Result{
			URL:     page.URL,
			Title:   page.Title,
			Snippet: string(window),
			HTML:    highlight(window, lowerWindow, needle),
		})
	}
	return results
}

// lowerRunes maps each rune to lower case one-to-one so offsets into the
// result line up with the input.
func lowerRunes(in []rune) []rune {
	out := make([]rune, len(in))
	for i, r := range in {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func indexRunes(haystack, needle []rune) int {
	return indexRunesFrom(haystack, needle, 0)
}

func indexRunesFrom(haystack, needle []rune, from int) int {
	if len(needle) == 0 {
		return -1
	}
	for i := from; i+len(needle) <= len(haystack); i++ {
		if haystack[i] == needle[0] && runesEqual(haystack[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func trimWindow(text, lower []rune) ([]rune, []rune) {
	start, end := 0, len(text)
	for start < end && unicode.IsSpace(text[start]) {
		start++
	}
	for end > start && unicode.IsSpace(text[end-1]) {
		end--
	}
	return text[start:end], lower[start:end]
}

// highlight escapes window for HTML and wraps each non-overlapping match of
// needle in <mark>, keeping the original casing of the matched text.
func highlight(window, lower, needle []rune) template.HTML {
	var b strings.Builder
	cursor := 0
	for {
		pos := indexRunesFrom(lower, needle, cursor)
		if pos < 0 {
			break
		}
		b.WriteString(html.EscapeString(string(window[cursor:pos])))
		b.WriteString("<mark>")
		b.WriteString(html.EscapeString(string(window[pos : pos+len(needle)])))
		b.WriteString("</mark>")
		cursor = pos + len(needle)
	}
	b.WriteString(html.EscapeString(string(window[cursor:])))
	return template.HTML(b.String())
}
