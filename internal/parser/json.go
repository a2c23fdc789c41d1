package parser

import (
	"bytes"
	"fmt"
	"io"

	"github.com/dgallion1/docresolve/internal/doctree"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONParser reads a serialized tree: either a bare node array as written by
// doctree.Encode or a {"title", "body"} document. Nodes are taken as-is.
type JSONParser struct{}

func (p *JSONParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)

	doc := &doctree.Document{}
	if len(data) > 0 && data[0] == '[' {
		doc.Body, err = doctree.Decode(data)
	} else {
		err = json.Unmarshal(data, doc)
	}
	if err != nil {
		return nil, fmt.Errorf("parse json tree: %w", err)
	}
	if doc.Title == "" {
		doc.Title = titleFromFilename(filename)
	}
	if doc.Body == nil {
		doc.Body = doctree.Tree{}
	}
	return doc, nil
}
