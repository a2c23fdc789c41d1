package parser

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dgallion1/docresolve/internal/doctree"
)

// CSVParser handles CSV files. The whole file becomes one table, header
// row included.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	out := &doctree.Document{Title: titleFromFilename(filename)}
	var b builder
	if len(records) > 0 {
		b.table(doctree.TableStart)
		for _, row := range records {
			b.table(doctree.RowStart)
			for _, cell := range row {
				b.table(doctree.CellStart)
				b.para(cell)
			}
		}
		b.table(doctree.TableEnd)
	}
	out.Body = b.done()
	return out, nil
}
