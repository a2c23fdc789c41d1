// Package structure promotes flat conditional and table markers into nested
// ConditionalBlock and TableNode values.
package structure

import (
	"context"
	"strings"

	"github.com/dgallion1/docresolve/internal/docerr"
	"github.com/dgallion1/docresolve/internal/doctree"
)

// DefaultMaxNesting is the combined conditional and table nesting limit.
const DefaultMaxNesting = 10

type frameKind uint8

const (
	frameConditional frameKind = iota + 1
	frameTable
)

type condState uint8

const (
	inThen condState = iota + 1
	inElse
)

// frame is one open structure. Conditional and table frames share a stack so
// that mixed nesting is counted against one budget.
type frame struct {
	kind frameKind
	pos  int

	cond    string
	state   condState
	then    doctree.Tree
	els     doctree.Tree
	hasElse bool
	chained bool // opened by elif, closed by the parent's endif
	depth   int

	rows []doctree.Row
}

// Parser promotes structure markers. The zero value uses DefaultMaxNesting.
type Parser struct {
	MaxNesting int
}

// New returns a Parser with the given nesting limit; values below 1 select
// the default.
func New(maxNesting int) *Parser {
	if maxNesting < 1 {
		maxNesting = DefaultMaxNesting
	}
	return &Parser{MaxNesting: maxNesting}
}

// Limit returns the effective nesting limit.
func (p *Parser) Limit() int {
	if p == nil || p.MaxNesting < 1 {
		return DefaultMaxNesting
	}
	return p.MaxNesting
}

// Parse returns a tree in which every conditional and table marker has been
// promoted. Blocks that are already promoted are parsed again in place: their
// contents may still hold markers, and their Depth is renumbered for where
// they sit. Parse is idempotent.
func (p *Parser) Parse(ctx context.Context, t doctree.Tree) (doctree.Tree, error) {
	st := &state{max: p.Limit()}
	return st.parse(ctx, t)
}

func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &docerr.TimeoutError{Stage: "parse", Err: err}
	}
	return nil
}

// state parses one sequence. conds and tables count the blocks enclosing
// the sequence itself.
type state struct {
	max           int
	conds, tables int
	out           doctree.Tree
	stack         []*frame
}

func (s *state) parse(ctx context.Context, t doctree.Tree) (doctree.Tree, error) {
	if t == nil {
		return nil, nil
	}
	s.out = make(doctree.Tree, 0, len(t))
	for i, n := range t {
		switch v := n.(type) {
		case doctree.ConditionalMarker:
			if err := checkContext(ctx); err != nil {
				return nil, err
			}
			if err := s.conditional(i, v); err != nil {
				return nil, err
			}
		case doctree.TableMarker:
			if err := checkContext(ctx); err != nil {
				return nil, err
			}
			if err := s.table(i, v); err != nil {
				return nil, err
			}
		case *doctree.ConditionalBlock, *doctree.TableNode:
			if err := checkContext(ctx); err != nil {
				return nil, err
			}
			blk, err := s.promoted(ctx, i, n)
			if err != nil {
				return nil, err
			}
			if err := s.emit(i, blk); err != nil {
				return nil, err
			}
		default:
			if err := s.emit(i, n); err != nil {
				return nil, err
			}
		}
	}
	if err := s.finish(); err != nil {
		return nil, err
	}
	return s.out, nil
}

// promoted rebuilds an already promoted block at node pos as if its markers
// had been met here.
func (s *state) promoted(ctx context.Context, pos int, n doctree.Node) (doctree.Node, error) {
	if err := s.open(pos); err != nil {
		return nil, err
	}
	conds, tables := s.count(frameConditional), s.count(frameTable)
	child := func(c, t int, body doctree.Tree) (doctree.Tree, error) {
		sub := &state{max: s.max, conds: c, tables: t}
		return sub.parse(ctx, body)
	}
	switch v := n.(type) {
	case *doctree.ConditionalBlock:
		then, err := child(conds+1, tables, v.Then)
		if err != nil {
			return nil, err
		}
		if then == nil {
			then = doctree.Tree{}
		}
		els, err := child(conds+1, tables, v.Else)
		if err != nil {
			return nil, err
		}
		return &doctree.ConditionalBlock{
			Condition: v.Condition,
			Then:      then,
			Else:      els,
			HasElse:   v.HasElse,
			Depth:     conds + 1,
		}, nil
	case *doctree.TableNode:
		tbl := &doctree.TableNode{Depth: tables + 1}
		if v.Rows != nil {
			tbl.Rows = make([]doctree.Row, len(v.Rows))
		}
		for ri, row := range v.Rows {
			if row == nil {
				continue
			}
			tbl.Rows[ri] = make(doctree.Row, len(row))
			for ci, cell := range row {
				pc, err := child(conds, tables+1, cell)
				if err != nil {
					return nil, err
				}
				tbl.Rows[ri][ci] = pc
			}
		}
		return tbl, nil
	}
	return n, nil
}

func (s *state) top() *frame {
	if len(s.stack) == 0 {
		return nil
	}
	return s.stack[len(s.stack)-1]
}

func (s *state) push(f *frame) {
	s.stack = append(s.stack, f)
}

func (s *state) pop() *frame {
	f := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return f
}

func (s *state) count(kind frameKind) int {
	n := s.tables
	if kind == frameConditional {
		n = s.conds
	}
	for _, f := range s.stack {
		if f.kind == kind {
			n++
		}
	}
	return n
}

// open checks the nesting budget for a new frame at node pos.
func (s *state) open(pos int) error {
	if depth := s.conds + s.tables + len(s.stack) + 1; depth > s.max {
		return &docerr.MaxNestingExceededError{Depth: depth, Max: s.max, Pos: pos}
	}
	return nil
}

// emit appends n to whatever container is active.
func (s *state) emit(pos int, n doctree.Node) error {
	f := s.top()
	if f == nil {
		s.out = append(s.out, n)
		return nil
	}
	switch f.kind {
	case frameConditional:
		if f.state == inElse {
			f.els = append(f.els, n)
		} else {
			f.then = append(f.then, n)
		}
	case frameTable:
		cell := f.cell()
		if cell == nil {
			if txt, ok := n.(doctree.Text); ok && strings.TrimSpace(txt.Value) == "" {
				return nil
			}
			return &docerr.MalformedTableError{Pos: pos, Reason: "content outside a cell"}
		}
		*cell = append(*cell, n)
	}
	return nil
}

// cell returns the open cell of a table frame, or nil.
func (f *frame) cell() *doctree.Tree {
	if len(f.rows) == 0 {
		return nil
	}
	row := f.rows[len(f.rows)-1]
	if len(row) == 0 {
		return nil
	}
	return &row[len(row)-1]
}

func (s *state) conditional(pos int, m doctree.ConditionalMarker) error {
	switch m.Op {
	case doctree.CondIf:
		if err := s.open(pos); err != nil {
			return err
		}
		s.push(&frame{
			kind:  frameConditional,
			pos:   pos,
			cond:  m.Condition,
			state: inThen,
			depth: s.count(frameConditional) + 1,
		})
		return nil

	case doctree.CondElseIf:
		f := s.top()
		if err := elseTarget(pos, f, "elif"); err != nil {
			return err
		}
		f.state = inElse
		f.hasElse = true
		if err := s.open(pos); err != nil {
			return err
		}
		s.push(&frame{
			kind:    frameConditional,
			pos:     pos,
			cond:    m.Condition,
			state:   inThen,
			chained: true,
			depth:   s.count(frameConditional) + 1,
		})
		return nil

	case doctree.CondElse:
		f := s.top()
		if err := elseTarget(pos, f, "else"); err != nil {
			return err
		}
		f.state = inElse
		f.hasElse = true
		return nil

	case doctree.CondEndIf:
		f := s.top()
		if f == nil {
			return &docerr.MalformedConditionalError{Pos: pos, Reason: "endif without open if"}
		}
		if f.kind == frameTable {
			return &docerr.MalformedTableError{Pos: pos, Reason: "endif inside a table opened after its if"}
		}
		for {
			f := s.pop()
			blk := f.block()
			if !f.chained {
				return s.emit(pos, blk)
			}
			parent := s.top()
			parent.els = append(parent.els, blk)
		}
	}
	return &docerr.MalformedConditionalError{Pos: pos, Reason: "unknown conditional marker"}
}

func elseTarget(pos int, f *frame, op string) error {
	switch {
	case f == nil:
		return &docerr.MalformedConditionalError{Pos: pos, Reason: op + " without open if"}
	case f.kind != frameConditional:
		return &docerr.MalformedConditionalError{Pos: pos, Reason: op + " inside a table opened after its if"}
	case f.state == inElse:
		return &docerr.MalformedConditionalError{Pos: pos, Reason: op + " after else"}
	}
	return nil
}

func (f *frame) block() *doctree.ConditionalBlock {
	then := f.then
	if then == nil {
		then = doctree.Tree{}
	}
	return &doctree.ConditionalBlock{
		Condition: f.cond,
		Then:      then,
		Else:      f.els,
		HasElse:   f.hasElse,
		Depth:     f.depth,
	}
}

func (s *state) table(pos int, m doctree.TableMarker) error {
	f := s.top()
	switch m.Op {
	case doctree.TableStart:
		if err := s.open(pos); err != nil {
			return err
		}
		s.push(&frame{kind: frameTable, pos: pos, depth: s.count(frameTable) + 1})
		return nil

	case doctree.RowStart, doctree.CellStart:
		what := m.Op.String()
		switch {
		case f == nil:
			return &docerr.MalformedTableError{Pos: pos, Reason: what + " outside a table"}
		case f.kind != frameTable:
			return &docerr.MalformedTableError{Pos: pos, Reason: what + " inside an open conditional"}
		}
		if m.Op == doctree.RowStart {
			f.rows = append(f.rows, doctree.Row{})
			return nil
		}
		if len(f.rows) == 0 {
			return &docerr.MalformedTableError{Pos: pos, Reason: "cell before first row"}
		}
		last := len(f.rows) - 1
		f.rows[last] = append(f.rows[last], doctree.Tree{})
		return nil

	case doctree.TableEnd:
		switch {
		case f == nil:
			return &docerr.MalformedTableError{Pos: pos, Reason: "endtable without open table"}
		case f.kind != frameTable:
			return &docerr.UnterminatedConditionalError{Condition: f.cond, Pos: f.pos}
		}
		s.pop()
		rows := f.rows
		if rows == nil {
			rows = []doctree.Row{}
		}
		return s.emit(pos, &doctree.TableNode{Rows: rows, Depth: f.depth})
	}
	return &docerr.MalformedTableError{Pos: pos, Reason: "unknown table marker"}
}

func (s *state) finish() error {
	f := s.top()
	if f == nil {
		return nil
	}
	if f.kind == frameTable {
		return &docerr.MalformedTableError{Pos: f.pos, Reason: "unterminated table"}
	}
	return &docerr.UnterminatedConditionalError{Condition: f.cond, Pos: f.pos}
}
