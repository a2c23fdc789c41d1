package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docresolve/internal/doctree"
	"golang.org/x/net/html"
)

// HTMLParser handles HTML files. Tables become table markers, elements with
// a data-content-control attribute become references, and elements with a
// data-section attribute are wrapped in section boundaries.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	out := &doctree.Document{Title: titleFromFilename(filename)}
	if title := findTitle(doc); title != "" {
		out.Title = title
	}

	var b builder
	body := findBody(doc)
	if body != nil {
		htmlWalk(&b, body)
	} else {
		htmlWalk(&b, doc)
	}
	out.Body = b.done()
	return out, nil
}

func htmlWalk(b *builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.text(n.Data)
		return
	case html.ElementNode:
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			htmlWalk(b, c)
		}
		return
	}

	if target, ok := attr(n, "data-content-control"); ok && strings.TrimSpace(target) != "" {
		b.node(doctree.ReferenceMarker{
			Syntax: doctree.SyntaxAttribute,
			Target: target,
			Raw:    fmt.Sprintf("data-content-control=%q", target),
		})
		return
	}

	section, hasSection := attr(n, "data-section")
	if hasSection {
		b.node(doctree.ContentBlockBoundary{Name: section, Edge: doctree.EdgeStart})
	}

	switch n.Data {
	case "script", "style", "head":
	case "table":
		b.table(doctree.TableStart)
		htmlChildren(b, n)
		b.table(doctree.TableEnd)
	case "tr":
		b.table(doctree.RowStart)
		htmlChildren(b, n)
	case "td", "th":
		b.table(doctree.CellStart)
		htmlChildren(b, n)
		b.flush()
	case "br":
		b.flush()
	case "p", "div", "li", "blockquote", "h1", "h2", "h3", "h4", "h5", "h6", "pre", "section", "header", "footer":
		b.flush()
		htmlChildren(b, n)
		b.flush()
	default:
		htmlChildren(b, n)
	}

	if hasSection {
		b.node(doctree.ContentBlockBoundary{Name: section, Edge: doctree.EdgeEnd})
	}
}

func htmlChildren(b *builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		htmlWalk(b, c)
	}
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
