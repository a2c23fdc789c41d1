package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/dgallion1/docresolve/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark with GFM tables.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	doc := md.Parser().Parse(text.NewReader(src))

	out := &doctree.Document{Title: titleFromFilename(filename)}
	var b builder
	titled := false
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level == 1 && !titled {
			if t := extractText(h, src); t != "" {
				out.Title = t
				titled = true
			}
		}
		markdownBlock(&b, n, src)
	}
	out.Body = b.done()
	return out, nil
}

func markdownBlock(b *builder, n ast.Node, src []byte) {
	switch node := n.(type) {
	case *east.Table:
		b.table(doctree.TableStart)
		for row := node.FirstChild(); row != nil; row = row.NextSibling() {
			switch row.(type) {
			case *east.TableHeader, *east.TableRow:
				b.table(doctree.RowStart)
				for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
					b.table(doctree.CellStart)
					b.para(extractText(cell, src))
				}
			}
		}
		b.table(doctree.TableEnd)
	case *ast.List, *ast.ListItem, *ast.Blockquote:
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			markdownBlock(b, c, src)
		}
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		lines := node.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			b.para(string(line.Value(src)))
		}
	default:
		// Paragraph-like blocks keep their line breaks so each directive line
		// is tokenized on its own.
		for _, line := range strings.Split(extractText(node, src), "\n") {
			b.para(line)
		}
	}
}

// extractText gets the text content of a goldmark AST node.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && !n.HasChildren() {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(t.Value)
		default:
			buf.WriteString(extractText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
