package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dgallion1/docresolve/internal/doctree"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	// go-docx needs a ReadSeeker+size, so write to temp file.
	tmp, err := os.CreateTemp("", "docresolve-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	doc, err := docx.Parse(tmp, size)
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	out := &doctree.Document{Title: titleFromFilename(filename)}
	var b builder
	titled := false
	for _, item := range doc.Document.Body.Items {
		switch v := item.(type) {
		case *docx.Paragraph:
			text := docxParagraphText(v)
			if !titled && docxHeadingLevel(v) == 1 && text != "" {
				out.Title = text
				titled = true
			}
			b.para(text)
		case *docx.Table:
			docxTable(&b, v)
		}
	}
	out.Body = b.done()
	return out, nil
}

// docxTable emits flat table markers; nested tables recurse.
func docxTable(b *builder, t *docx.Table) {
	b.table(doctree.TableStart)
	for _, row := range t.TableRows {
		b.table(doctree.RowStart)
		for _, cell := range row.TableCells {
			b.table(doctree.CellStart)
			for _, para := range cell.Paragraphs {
				b.para(docxParagraphText(para))
			}
			for _, nested := range cell.Tables {
				docxTable(b, nested)
			}
		}
	}
	b.table(doctree.TableEnd)
}

func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	if !strings.HasPrefix(style, "heading") {
		return 0
	}
	switch strings.TrimPrefix(style, "heading") {
	case "1":
		return 1
	case "2":
		return 2
	case "3":
		return 3
	case "4":
		return 4
	case "5":
		return 5
	case "6":
		return 6
	}
	return 0
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
