package doctree

import (
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Clone returns a deep copy of t. Leaf nodes are values, so only containers
// need copying.
func (t Tree) Clone() Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for i, n := range t {
		out[i] = CloneNode(n)
	}
	return out
}

// CloneNode deep-copies a single node.
func CloneNode(n Node) Node {
	switch v := n.(type) {
	case *ConditionalBlock:
		c := *v
		c.Then = v.Then.Clone()
		c.Else = v.Else.Clone()
		return &c
	case *TableNode:
		c := &TableNode{Depth: v.Depth}
		if v.Rows != nil {
			c.Rows = make([]Row, len(v.Rows))
			for i, row := range v.Rows {
				if row == nil {
					continue
				}
				c.Rows[i] = make(Row, len(row))
				for j, cell := range row {
					c.Rows[i][j] = cell.Clone()
				}
			}
		}
		return c
	default:
		return n
	}
}

// Walk visits every node in document order. level is the combined
// conditional/table nesting of the container holding n (0 at the top).
// Returning false from fn skips the node's children.
func Walk(t Tree, fn func(n Node, level int) bool) {
	walk(t, 0, fn)
}

func walk(t Tree, level int, fn func(Node, int) bool) {
	for _, n := range t {
		if !fn(n, level) {
			continue
		}
		switch v := n.(type) {
		case *ConditionalBlock:
			walk(v.Then, level+1, fn)
			walk(v.Else, level+1, fn)
		case *TableNode:
			for _, row := range v.Rows {
				for _, cell := range row {
					walk(cell, level+1, fn)
				}
			}
		}
	}
}

// PlainText concatenates the literal text of t, including branch and cell
// content. Cells and rows are separated by whitespace.
func PlainText(t Tree) string {
	var sb strings.Builder
	Walk(t, func(n Node, _ int) bool {
		switch v := n.(type) {
		case Text:
			sb.WriteString(v.Value)
		case *TableNode:
			for _, row := range v.Rows {
				for _, cell := range row {
					sb.WriteString(PlainText(cell))
					sb.WriteByte(' ')
				}
				sb.WriteByte('\n')
			}
			return false
		case *ConditionalBlock:
			sb.WriteString(PlainText(v.Then))
			if v.HasElse {
				sb.WriteByte(' ')
				sb.WriteString(PlainText(v.Else))
			}
			return false
		}
		return true
	})
	return sb.String()
}

// Summary aggregates node counts for a tree.
type Summary struct {
	Texts           int `json:"texts"`
	Words           int `json:"words"`
	Tags            int `json:"tags"`
	Conditionals    int `json:"conditionals"`
	Tables          int `json:"tables"`
	Boundaries      int `json:"boundaries"`
	Unresolved      int `json:"unresolved_references"`
	LeftoverMarkers int `json:"leftover_markers"`
	RaggedTables    int `json:"ragged_tables"`
	EmptyBranches   int `json:"empty_branches"`
	MaxNesting      int `json:"max_nesting"`
}

// Summarize counts the nodes of t.
func Summarize(t Tree) Summary {
	var s Summary
	Walk(t, func(n Node, level int) bool {
		switch v := n.(type) {
		case Text:
			s.Texts++
			s.Words += len(strings.Fields(v.Value))
		case TagPlaceholder:
			s.Tags++
		case ReferenceMarker, ConditionalMarker, TableMarker:
			s.LeftoverMarkers++
		case UnresolvedReference:
			s.Unresolved++
		case ContentBlockBoundary:
			s.Boundaries++
		case *ConditionalBlock:
			s.Conditionals++
			if len(v.Then) == 0 {
				s.EmptyBranches++
			}
			if level+1 > s.MaxNesting {
				s.MaxNesting = level + 1
			}
		case *TableNode:
			s.Tables++
			if isRagged(v) {
				s.RaggedTables++
			}
			if level+1 > s.MaxNesting {
				s.MaxNesting = level + 1
			}
		}
		return true
	})
	return s
}

func isRagged(t *TableNode) bool {
	for i := 1; i < len(t.Rows); i++ {
		if len(t.Rows[i]) != len(t.Rows[0]) {
			return true
		}
	}
	return false
}

// Identifier returns the canonical content-block identifier for r.
func (r ReferenceMarker) Identifier() string {
	return CanonicalID(r.Target)
}

var documentExts = map[string]bool{
	".docx":     true,
	".html":     true,
	".htm":      true,
	".md":       true,
	".markdown": true,
	".txt":      true,
	".csv":      true,
	".pdf":      true,
	".json":     true,
}

// CanonicalID strips syntax decoration from a reference target so that every
// reference syntax maps into one identifier space. Case is preserved.
func CanonicalID(target string) string {
	s := norm.NFC.String(target)
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `'"`)
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"content:", "dc-"} {
		if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
			s = strings.TrimSpace(s[len(prefix):])
		}
	}
	s = strings.ReplaceAll(s, `\`, "/")
	if ext := strings.ToLower(path.Ext(s)); documentExts[ext] {
		s = s[:len(s)-len(ext)]
	}
	return s
}

var folder = cases.Fold()

// FoldKey is the case-insensitive lookup key for an identifier or path.
func FoldKey(id string) string {
	return folder.String(CanonicalID(id))
}

// Rebase shifts the Depth of every block in t as if t were spliced under
// conds enclosing conditionals and tables enclosing tables. t is modified in
// place.
func Rebase(t Tree, conds, tables int) {
	if conds == 0 && tables == 0 {
		return
	}
	for _, n := range t {
		switch v := n.(type) {
		case *ConditionalBlock:
			v.Depth += conds
			Rebase(v.Then, conds, tables)
			Rebase(v.Else, conds, tables)
		case *TableNode:
			v.Depth += tables
			for _, row := range v.Rows {
				for _, cell := range row {
					Rebase(cell, conds, tables)
				}
			}
		}
	}
}
