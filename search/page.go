// Package search crawls site pages into a plain-text index and answers
// keyword queries against it.
package search

import "html/template"

// IndexedPage is the visible text of one crawled page.
type IndexedPage struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Result is a single query hit.
type Result struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	// Snippet is the plain text window around the first match.
	Snippet string `json:"snippet"`
	// HTML is Snippet escaped for markup with every match wrapped in <mark>.
	HTML template.HTML `json:"html"`
}
