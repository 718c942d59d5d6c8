// Package renderer turns Markdown pages and record bodies into HTML and
// minifies the generated markup.
package renderer

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"
	"unicode"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	htmlRenderer "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	minhtml "github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"
)

// Heading represents a heading entry for table-of-contents rendering.
type Heading struct {
	ID    string
	Text  string
	Level int
}

// RenderResult wraps HTML markup and extracted metadata.
type RenderResult struct {
	HTML      []byte
	PlainText string
	Headings  []Heading
	// Title comes from the front matter, else the first level-one heading.
	Title string
	Meta  map[string]any
}

// Renderer transforms markdown sources into HTML fragments.
type Renderer struct {
	md       goldmark.Markdown
	minifier *minify.M
}

// New constructs a renderer with GitHub-flavored markdown extensions and syntax highlighting.
func New() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.DefinitionList,
			extension.Footnote,
			extension.Table,
			extension.TaskList,
			extension.Typographer,
			extension.Strikethrough,
			highlighting.NewHighlighting(
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
					chromahtml.WithAllClasses(true),
					chromahtml.ClassPrefix("z-"),
					chromahtml.PreventSurroundingPre(true),
				),
				highlighting.WithWrapperRenderer(codeWrapper),
			),
			meta.Meta,
		),
		goldmark.WithParserOptions(
			parser.WithAttribute(),
		),
		goldmark.WithRendererOptions(
			htmlRenderer.WithUnsafe(),
		),
	)

	m := minify.New()
	m.Add("text/html", &minhtml.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)
	m.AddFuncRegexp(regexp.MustCompile("^(application|text)/(x-)?(java|ecma)script$"), js.Minify)

	return &Renderer{md: md, minifier: m}
}

// Render converts the provided markdown into HTML and extracts front matter,
// headings and plain text.
func (r *Renderer) Render(src []byte) (*RenderResult, error) {
	reader := text.NewReader(src)
	pctx := parser.NewContext()
	doc := r.md.Parser().Parse(reader, parser.WithContext(pctx))

	headings := make([]Heading, 0, 16)
	plainBuilder := &strings.Builder{}
	slugCounts := make(map[string]int)

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Heading:
			if entering {
				attr, _ := node.AttributeString("id")
				text := extractText(node, src)
				id := attributeToString(attr)
				if id == "" {
					base := slugify(text)
					count := slugCounts[base]
					if count > 0 {
						id = fmt.Sprintf("%s-%d", base, count)
					} else {
						id = base
					}
					slugCounts[base] = count + 1
					node.SetAttributeString("id", []byte(id))
				} else {
					slugCounts[id]++
				}
				headings = append(headings, Heading{ID: id, Text: text, Level: node.Level})
			}
		case *ast.Text:
			if entering {
				plainBuilder.Write(node.Segment.Value(src))
				plainBuilder.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, src, doc); err != nil {
		return nil, err
	}

	result := &RenderResult{
		HTML:      buf.Bytes(),
		PlainText: strings.TrimSpace(plainBuilder.String()),
		Headings:  headings,
		Meta:      meta.Get(pctx),
	}
	result.Title = frontMatterString(result.Meta, "title")
	if result.Title == "" {
		for _, h := range headings {
			if h.Level == 1 {
				result.Title = h.Text
				break
			}
		}
	}
	return result, nil
}

// Fragment renders a record body such as a news article. Front matter is
// ignored and the markup is returned ready for a template.
func (r *Renderer) Fragment(src string) (template.HTML, error) {
	if strings.TrimSpace(src) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render fragment: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// MinifyHTML collapses whitespace and strips comments from a whole document
// or fragment, minifying inline CSS, JS and SVG as well.
func (r *Renderer) MinifyHTML(raw []byte) ([]byte, error) {
	out, err := r.minifier.Bytes("text/html", raw)
	if err != nil {
		return nil, fmt.Errorf("minify html: %w", err)
	}
	return out, nil
}

func frontMatterString(values map[string]any, key string) string {
	if values == nil {
		return ""
	}
	switch v := values[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func extractText(root ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if n == root {
			return ast.WalkContinue, nil
		}
		if text, ok := n.(*ast.Text); ok && entering {
			sb.Write(text.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

func attributeToString(value interface{}) string {
	switch v := value.(type) {
	case []byte:
		return string(v)
	case string:
		return v
	default:
		return ""
	}
}

func slugify(input string) string {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return "section"
	}
	var sb strings.Builder
	lastDash := false
	for _, r := range input {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			sb.WriteRune(r)
			lastDash = false
		case r == ' ' || r == '-' || r == '_' || r == '.':
			if sb.Len() == 0 || lastDash {
				continue
			}
			sb.WriteByte('-')
			lastDash = true
		}
	}
	slug := strings.Trim(sb.String(), "-")
	if slug == "" {
		return "section"
	}
	return slug
}

func codeWrapper(w util.BufWriter, ctx highlighting.CodeBlockContext, entering bool) {
	lang := "text"
	if raw, ok := ctx.Language(); ok && len(raw) > 0 {
		lang = string(raw)
	}
	lang = string(util.EscapeHTML([]byte(lang)))
	if entering {
		_, _ = fmt.Fprintf(w, `<pre tabindex="0" class="z-chroma z-code language-%[1]s" data-lang="%[1]s"><code class="language-%[1]s" data-lang="%[1]s">`, lang)
		return
	}
	_, _ = w.WriteString("</code></pre>\n")
}
