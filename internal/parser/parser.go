// Package parser extracts raw document trees from source files. Extracted
// text is tokenized into template nodes; conditional and table markers are
// left flat for the structure parser.
package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docresolve/internal/doctree"
	"github.com/dgallion1/docresolve/internal/markup"
)

// Parser converts raw document bytes into a Document.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.Document, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
	".json":     true,
}

// Options tune individual parsers.
type Options struct {
	PDFFallbackPdftotext bool
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	return ForFileWith(filename, Options{})
}

// ForFileWith is ForFile with parser options.
func ForFileWith(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	case ".json":
		return &JSONParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// builder accumulates extracted text line by line and tokenizes each line.
type builder struct {
	tree doctree.Tree
	line strings.Builder
}

func (b *builder) text(s string) {
	b.line.WriteString(s)
}

// flush ends the current paragraph.
func (b *builder) flush() {
	t := strings.TrimSpace(b.line.String())
	b.line.Reset()
	if t == "" {
		return
	}
	b.tree = markup.Append(b.tree, t+"\n")
}

func (b *builder) para(s string) {
	b.text(s)
	b.flush()
}

func (b *builder) node(n doctree.Node) {
	b.flush()
	b.tree = append(b.tree, n)
}

func (b *builder) table(op doctree.TableOp) {
	b.node(doctree.TableMarker{Op: op})
}

func (b *builder) done() doctree.Tree {
	b.flush()
	if b.tree == nil {
		return doctree.Tree{}
	}
	return b.tree
}
