package site

import (
	"html/template"

	"github.com/rueijiunlin-crypto/GEIP/templatex"
)

// page is a Markdown source rendered for the static build.
type page struct {
	Source      string
	Route       string
	OutputPath  string
	Title       string
	Description string
	HTML        template.HTML
	Sections    []templatex.TOCEntry
}
