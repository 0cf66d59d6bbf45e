// Package article turns a rendered wiki article into statements, the prose
// runs paired with the citation markers that trail them, and resolves those
// markers to the reference text they point at.
//
// The HTML tree comes from golang.org/x/net/html and is only ever read.
package article

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Article wraps a parsed document. It does not own or modify the tree.
type Article struct {
	root *html.Node
}

// FromHTML parses rendered article HTML, i.e. what the MediaWiki parse API
// returns for a page.
func FromHTML(r io.Reader) (*Article, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Article{root: doc}, nil
}

// FromString is FromHTML for in-memory markup.
func FromString(s string) (*Article, error) {
	return FromHTML(strings.NewReader(s))
}

// FromNode wraps an already parsed tree.
func FromNode(n *html.Node) *Article {
	return &Article{root: n}
}

// Root returns the underlying document node.
func (a *Article) Root() *html.Node {
	return a.root
}

// Title returns the text of the <title> element, if any.
func (a *Article) Title() string {
	return findTitle(a.root)
}

// Statements finds all the statements in the document. All user-visible
// prose is expected to sit inside <p> elements; text outside of them
// (captions, tables, infoboxes) is intentionally excluded.
func (a *Article) Statements() ([]Statement, error) {
	var out []Statement
	var walk func(*html.Node) error
	walk = func(n *html.Node) error {
		if n.Type == html.ElementNode && n.Data == "p" {
			stmts, err := ParagraphStatements(n)
			if err != nil {
				return err
			}
			out = append(out, stmts...)
			return nil
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(a.root); err != nil {
		return nil, err
	}
	return out, nil
}

// TextContent returns the visible text under n with runs of whitespace
// collapsed to single spaces. Script and style bodies are skipped.
func TextContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && skipElement(n.Data) {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.Join(strings.Fields(buf.String()), " ")
}

// skipElement reports elements whose text is never prose.
func skipElement(tag string) bool {
	switch tag {
	case "script", "style":
		return true
	}
	return false
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return TextContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
