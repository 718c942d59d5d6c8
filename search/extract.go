package search

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"
)

// excludedElements never contribute to page text.
var excludedElements = map[atom.Atom]struct{}{
	atom.Nav:    {},
	atom.Footer: {},
	atom.Script: {},
	atom.Style:  {},
	// template contents live outside the document tree in a browser
	atom.Template: {},
}

// ExtractPage parses an HTML document and derives its index entry.
func ExtractPage(pageURL string, r io.Reader) (IndexedPage, error) {
	doc, err := html.ParseWithOptions(r, html.ParseOptionEnableScripting(false))
	if err != nil {
		return IndexedPage{}, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return IndexedPage{
		URL:   pageURL,
		Title: pageTitle(doc, pageURL),
		Text:  normalizeText(visibleText(contentRoot(doc))),
	}, nil
}

func pageTitle(doc *html.Node, fallback string) string {
	for _, a := range []atom.Atom{atom.Title, atom.H1} {
		if n := findFirst(doc, byAtom(a)); n != nil {
			if title := strings.TrimSpace(textContent(n)); title != "" {
				return title
			}
		}
	}
	return strings.TrimSpace(fallback)
}

// contentRoot picks <main>, then the first .container, then <body>.
func contentRoot(doc *html.Node) *html.Node {
	if n := findFirst(doc, byAtom(atom.Main)); n != nil {
		return n
	}
	if n := findFirst(doc, byClass("container")); n != nil {
		return n
	}
	if n := findFirst(doc, byAtom(atom.Body)); n != nil {
		return n
	}
	return doc
}

func findFirst(root *html.Node, match func(*html.Node) bool) *html.Node {
	if root == nil {
		return nil
	}
	if match(root) {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if n := findFirst(c, match); n != nil {
			return n
		}
	}
	return nil
}

func byAtom(a atom.Atom) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == a
	}
}

func byClass(class string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, attr := range n.Attr {
			if attr.Namespace == "" && attr.Key == "class" {
				for _, field := range strings.Fields(attr.Val) {
					if field == class {
						return true
					}
				}
			}
		}
		return false
	}
}

// textContent concatenates every text node below n.
func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// visibleText is textContent with excluded subtrees dropped.
func visibleText(root *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			b.WriteString(node.Data)
			return
		case html.ElementNode:
			if _, skip := excludedElements[node.DataAtom]; skip && node != root {
				return
			}
		case html.CommentNode, html.DoctypeNode:
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return b.String()
}

// normalizeText collapses whitespace runs into single spaces and composes
// characters so that decomposed and precomposed forms compare equal.
func normalizeText(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}
