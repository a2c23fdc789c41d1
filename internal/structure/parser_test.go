package structure

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/dgallion1/docresolve/internal/docerr"
	"github.com/dgallion1/docresolve/internal/doctree"
)

func txt(s string) doctree.Text { return doctree.Text{Value: s} }

func ifm(cond string) doctree.ConditionalMarker {
	return doctree.ConditionalMarker{Op: doctree.CondIf, Condition: cond}
}

var (
	elsem  = doctree.ConditionalMarker{Op: doctree.CondElse}
	endifm = doctree.ConditionalMarker{Op: doctree.CondEndIf}
	tablem = doctree.TableMarker{Op: doctree.TableStart}
	rowm   = doctree.TableMarker{Op: doctree.RowStart}
	cellm  = doctree.TableMarker{Op: doctree.CellStart}
	endtm  = doctree.TableMarker{Op: doctree.TableEnd}
)

func parse(t *testing.T, in doctree.Tree) (doctree.Tree, error) {
	t.Helper()
	return New(DefaultMaxNesting).Parse(context.Background(), in)
}

func TestNestedIfElseIf(t *testing.T) {
	in := doctree.Tree{
		ifm("cond1"), txt("a"),
		elsem, txt("b"),
		ifm("cond2"), txt("c"), endifm,
		endifm,
	}
	got, err := parse(t, in)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := doctree.Tree{
		&doctree.ConditionalBlock{
			Condition: "cond1",
			Then:      doctree.Tree{txt("a")},
			Else: doctree.Tree{
				txt("b"),
				&doctree.ConditionalBlock{Condition: "cond2", Then: doctree.Tree{txt("c")}, Depth: 2},
			},
			HasElse: true,
			Depth:   1,
		},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestStrayElse(t *testing.T) {
	_, err := parse(t, doctree.Tree{txt("a"), elsem, txt("b")})
	var mc *docerr.MalformedConditionalError
	if !errors.As(err, &mc) {
		t.Fatalf("err = %v, want MalformedConditionalError", err)
	}
	if mc.Pos != 1 {
		t.Errorf("Pos = %d, want 1", mc.Pos)
	}
}

func TestDoubleElse(t *testing.T) {
	_, err := parse(t, doctree.Tree{ifm("x"), elsem, elsem, endifm})
	var mc *docerr.MalformedConditionalError
	if !errors.As(err, &mc) {
		t.Fatalf("err = %v, want MalformedConditionalError", err)
	}
}

func TestStrayEndIf(t *testing.T) {
	_, err := parse(t, doctree.Tree{endifm})
	var mc *docerr.MalformedConditionalError
	if !errors.As(err, &mc) {
		t.Fatalf("err = %v, want MalformedConditionalError", err)
	}
}

func TestUnterminated(t *testing.T) {
	_, err := parse(t, doctree.Tree{ifm("outer"), ifm("inner"), endifm})
	var uc *docerr.UnterminatedConditionalError
	if !errors.As(err, &uc) {
		t.Fatalf("err = %v, want UnterminatedConditionalError", err)
	}
	if uc.Condition != "outer" {
		t.Errorf("Condition = %q, want outer", uc.Condition)
	}
}

func nestedIfs(n int) doctree.Tree {
	var tree doctree.Tree
	for i := 0; i < n; i++ {
		tree = append(tree, ifm("c"))
	}
	tree = append(tree, txt("deep"))
	for i := 0; i < n; i++ {
		tree = append(tree, endifm)
	}
	return tree
}

func TestNestingBoundary(t *testing.T) {
	got, err := parse(t, nestedIfs(10))
	if err != nil {
		t.Fatalf("10 levels: %v", err)
	}
	if s := doctree.Summarize(got); s.MaxNesting != 10 || s.Conditionals != 10 {
		t.Errorf("summary = %+v, want 10 nested conditionals", s)
	}

	_, err = parse(t, nestedIfs(11))
	var ne *docerr.MaxNestingExceededError
	if !errors.As(err, &ne) {
		t.Fatalf("11 levels: err = %v, want MaxNestingExceededError", err)
	}
	if ne.Pos != 10 || ne.Depth != 11 || ne.Max != 10 {
		t.Errorf("got %+v, want failure at 11th opener (pos 10)", ne)
	}
}

func TestMixedNestingSharesBudget(t *testing.T) {
	// 5 tables each wrapping a conditional: 10 levels.
	var tree doctree.Tree
	for i := 0; i < 5; i++ {
		tree = append(tree, tablem, rowm, cellm, ifm("c"))
	}
	tree = append(tree, txt("x"))
	for i := 0; i < 5; i++ {
		tree = append(tree, endifm, endtm)
	}
	if _, err := parse(t, tree); err != nil {
		t.Fatalf("10 mixed levels: %v", err)
	}

	tree = append(doctree.Tree{tablem, rowm, cellm}, tree...)
	tree = append(tree, endtm)
	_, err := parse(t, tree)
	var ne *docerr.MaxNestingExceededError
	if !errors.As(err, &ne) {
		t.Fatalf("11 mixed levels: err = %v, want MaxNestingExceededError", err)
	}
}

func TestTable(t *testing.T) {
	in := doctree.Tree{
		tablem,
		rowm, cellm, txt("a"), cellm, txt("b"),
		rowm, cellm, ifm("x"), txt("c"), elsem, txt("d"), endifm, cellm,
		endtm,
	}
	got, err := parse(t, in)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := doctree.Tree{
		&doctree.TableNode{
			Depth: 1,
			Rows: []doctree.Row{
				{doctree.Tree{txt("a")}, doctree.Tree{txt("b")}},
				{
					doctree.Tree{&doctree.ConditionalBlock{
						Condition: "x",
						Then:      doctree.Tree{txt("c")},
						Else:      doctree.Tree{txt("d")},
						HasElse:   true,
						Depth:     1,
					}},
					doctree.Tree{},
				},
			},
		},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestNestedTableDepth(t *testing.T) {
	in := doctree.Tree{
		ifm("outer"),
		tablem, rowm, cellm,
		tablem, rowm, cellm, txt("inner"), endtm,
		endtm,
		endifm,
	}
	got, err := parse(t, in)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	outer := got[0].(*doctree.ConditionalBlock).Then[0].(*doctree.TableNode)
	inner := outer.Rows[0][0][0].(*doctree.TableNode)
	if outer.Depth != 1 || inner.Depth != 2 {
		t.Errorf("table depths = %d/%d, want 1/2", outer.Depth, inner.Depth)
	}
}

func TestTableErrors(t *testing.T) {
	tests := []struct {
		name string
		in   doctree.Tree
		kind string
	}{
		{"row outside table", doctree.Tree{rowm}, docerr.KindMalformedTable},
		{"cell before row", doctree.Tree{tablem, cellm, endtm}, docerr.KindMalformedTable},
		{"content outside cell", doctree.Tree{tablem, txt("x"), endtm}, docerr.KindMalformedTable},
		{"row inside conditional", doctree.Tree{tablem, rowm, cellm, ifm("x"), rowm, endifm, endtm}, docerr.KindMalformedTable},
		{"endif crosses table", doctree.Tree{ifm("x"), tablem, endifm, endtm}, docerr.KindMalformedTable},
		{"else crosses table", doctree.Tree{ifm("x"), tablem, elsem, endtm, endifm}, docerr.KindMalformedConditional},
		{"table closes open conditional", doctree.Tree{tablem, rowm, cellm, ifm("x"), endtm}, docerr.KindUnterminatedConditional},
		{"unterminated table", doctree.Tree{tablem, rowm}, docerr.KindMalformedTable},
		{"endtable alone", doctree.Tree{endtm}, docerr.KindMalformedTable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(t, tt.in)
			if got := docerr.KindOf(err); got != tt.kind {
				t.Errorf("kind = %q (%v), want %q", got, err, tt.kind)
			}
		})
	}
}

func TestWhitespaceBetweenTableMarkersIgnored(t *testing.T) {
	in := doctree.Tree{tablem, txt("  "), rowm, cellm, txt("a"), endtm}
	if _, err := parse(t, in); err != nil {
		t.Fatalf("Parse: %v", err)
	}
}

func TestElseIfChain(t *testing.T) {
	in := doctree.Tree{
		ifm("a"), txt("A"),
		doctree.ConditionalMarker{Op: doctree.CondElseIf, Condition: "b"}, txt("B"),
		elsem, txt("C"),
		endifm,
	}
	got, err := parse(t, in)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := doctree.Tree{
		&doctree.ConditionalBlock{
			Condition: "a",
			Then:      doctree.Tree{txt("A")},
			Else: doctree.Tree{&doctree.ConditionalBlock{
				Condition: "b",
				Then:      doctree.Tree{txt("B")},
				Else:      doctree.Tree{txt("C")},
				HasElse:   true,
				Depth:     2,
			}},
			HasElse: true,
			Depth:   1,
		},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestIdempotent(t *testing.T) {
	in := doctree.Tree{
		txt("a"),
		ifm("x"), txt("b"), endifm,
		tablem, rowm, cellm, txt("c"), endtm,
		doctree.TagPlaceholder{Path: "context.x"},
		doctree.ContentBlockBoundary{Name: "h", Edge: doctree.EdgeStart},
	}
	once, err := parse(t, in)
	if err != nil {
		t.Fatalf("first Parse: %v", err)
	}
	twice, err := parse(t, once)
	if err != nil {
		t.Fatalf("second Parse: %v", err)
	}
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("second parse changed tree (-once +twice):\n%s", diff)
	}

	plain := doctree.Tree{txt("only"), txt("text")}
	got, err := parse(t, plain)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if diff := cmp.Diff(plain, got); diff != "" {
		t.Errorf("marker-free tree changed:\n%s", diff)
	}
}

// chain returns n conditional blocks nested in each other's then branch,
// all claiming Depth 1.
func chain(n int) *doctree.ConditionalBlock {
	blk := &doctree.ConditionalBlock{Condition: "c1", Then: doctree.Tree{txt("leaf")}, Depth: 1}
	for i := 2; i <= n; i++ {
		blk = &doctree.ConditionalBlock{Condition: "c", Then: doctree.Tree{blk}, Depth: 1}
	}
	return blk
}

func wrapIn(n int, inner doctree.Node) doctree.Tree {
	var in doctree.Tree
	for i := 0; i < n; i++ {
		in = append(in, ifm("outer"))
	}
	in = append(in, inner)
	for i := 0; i < n; i++ {
		in = append(in, endifm)
	}
	return in
}

func TestPromotedBlockCountsAgainstLimit(t *testing.T) {
	_, err := parse(t, wrapIn(9, chain(3)))
	var mn *docerr.MaxNestingExceededError
	if !errors.As(err, &mn) {
		t.Fatalf("err = %v, want MaxNestingExceededError", err)
	}
	if mn.Depth != 11 || mn.Max != DefaultMaxNesting {
		t.Errorf("depth/max = %d/%d, want 11/%d", mn.Depth, mn.Max, DefaultMaxNesting)
	}

	got, err := parse(t, wrapIn(8, chain(2)))
	if err != nil {
		t.Fatalf("Parse at the limit: %v", err)
	}
	if s := doctree.Summarize(got); s.MaxNesting != 10 {
		t.Errorf("MaxNesting = %d, want 10", s.MaxNesting)
	}
	var depths []int
	doctree.Walk(got, func(n doctree.Node, level int) bool {
		if blk, ok := n.(*doctree.ConditionalBlock); ok {
			depths = append(depths, blk.Depth)
			if blk.Depth != level+1 {
				t.Errorf("block at level %d has Depth %d", level, blk.Depth)
			}
		}
		return true
	})
	if len(depths) != 10 || depths[9] != 10 {
		t.Errorf("depths = %v, want 1..10", depths)
	}
}

func TestPromotedBlockContentsParsed(t *testing.T) {
	in := doctree.Tree{
		tablem, rowm, cellm,
		&doctree.ConditionalBlock{
			Condition: "vip",
			Then:      doctree.Tree{ifm("inner"), txt("x"), endifm},
			Depth:     7,
		},
		endtm,
	}
	got, err := parse(t, in)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := doctree.Tree{
		&doctree.TableNode{Depth: 1, Rows: []doctree.Row{{
			{&doctree.ConditionalBlock{
				Condition: "vip",
				Then: doctree.Tree{&doctree.ConditionalBlock{
					Condition: "inner",
					Then:      doctree.Tree{txt("x")},
					Depth:     2,
				}},
				Depth: 1,
			}},
		}}},
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	_, err = parse(t, doctree.Tree{&doctree.ConditionalBlock{Then: doctree.Tree{ifm("open")}, Depth: 1}})
	var ue *docerr.UnterminatedConditionalError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want UnterminatedConditionalError", err)
	}
}

func TestParseNil(t *testing.T) {
	got, err := parse(t, nil)
	if err != nil || got != nil {
		t.Fatalf("Parse(nil) = %v, %v", got, err)
	}
}

func TestCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(0).Parse(ctx, doctree.Tree{ifm("x"), endifm})
	var te *docerr.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want TimeoutError", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Error("timeout should wrap context.Canceled")
	}
}
