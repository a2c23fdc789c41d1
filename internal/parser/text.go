package parser

import (
	"bufio"
	"io"

	"github.com/dgallion1/docresolve/internal/doctree"
)

// TextParser handles plain text files. Every non-blank line is its own
// paragraph so directives written one per line stay separable.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var b builder
	for scanner.Scan() {
		b.para(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return &doctree.Document{
		Title: titleFromFilename(filename),
		Body:  b.done(),
	}, nil
}
