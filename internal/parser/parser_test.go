package parser

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dgallion1/docresolve/internal/doctree"
)

func parse(t *testing.T, p Parser, input, filename string) *doctree.Document {
	t.Helper()
	doc, err := p.Parse(strings.NewReader(input), filename)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return doc
}

func TestTextParser_LinesAndDirectives(t *testing.T) {
	input := "Dear client,\n\n{{content:Header}}\n{% if context.vip %}\nWelcome back.\n{% endif %}\n"
	doc := parse(t, &TextParser{}, input, "letter.txt")

	if doc.Title != "letter" {
		t.Errorf("expected title %q, got %q", "letter", doc.Title)
	}
	want := doctree.Tree{
		doctree.Text{Value: "Dear client,\n"},
		doctree.ReferenceMarker{Syntax: doctree.SyntaxDirect, Target: "Header", Raw: "{{content:Header}}"},
		doctree.ConditionalMarker{Op: doctree.CondIf, Condition: "context.vip", Raw: "{% if context.vip %}"},
		doctree.Text{Value: "Welcome back.\n"},
		doctree.ConditionalMarker{Op: doctree.CondEndIf, Raw: "{% endif %}"},
	}
	if diff := cmp.Diff(want, doc.Body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestTextParser_EmptyInput(t *testing.T) {
	doc := parse(t, &TextParser{}, "", "empty.txt")
	if doc.Title != "empty" {
		t.Errorf("expected title %q, got %q", "empty", doc.Title)
	}
	if doc.Body == nil || len(doc.Body) != 0 {
		t.Errorf("expected empty non-nil body, got %#v", doc.Body)
	}
}

func TestTextParser_WhitespaceOnlyLines(t *testing.T) {
	doc := parse(t, &TextParser{}, "Para one.\n   \n\t\nPara two.", "ws.txt")
	if len(doc.Body) != 2 {
		t.Fatalf("expected 2 nodes, got %d: %#v", len(doc.Body), doc.Body)
	}
}

func TestCSVParser_Table(t *testing.T) {
	doc := parse(t, &CSVParser{}, "Name,Amount\nAlice,{{ context.fee }}\n", "fees.csv")

	want := doctree.Tree{
		doctree.TableMarker{Op: doctree.TableStart},
		doctree.TableMarker{Op: doctree.RowStart},
		doctree.TableMarker{Op: doctree.CellStart},
		doctree.Text{Value: "Name\n"},
		doctree.TableMarker{Op: doctree.CellStart},
		doctree.Text{Value: "Amount\n"},
		doctree.TableMarker{Op: doctree.RowStart},
		doctree.TableMarker{Op: doctree.CellStart},
		doctree.Text{Value: "Alice\n"},
		doctree.TableMarker{Op: doctree.CellStart},
		doctree.TagPlaceholder{Path: "context.fee", Raw: "{{ context.fee }}"},
		doctree.TableMarker{Op: doctree.TableEnd},
	}
	if diff := cmp.Diff(want, doc.Body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestCSVParser_Empty(t *testing.T) {
	doc := parse(t, &CSVParser{}, "", "none.csv")
	if len(doc.Body) != 0 {
		t.Errorf("expected empty body, got %d nodes", len(doc.Body))
	}
}

func TestHTMLParser_ControlsSectionsTables(t *testing.T) {
	input := `<html><head><title>Engagement</title></head><body>
<div data-section="header"><p>Firm Name</p></div>
<span data-content-control="LetterFooter">placeholder</span>
<table><tr><td>Fee</td><td>{{ context.fee }}</td></tr></table>
<script>ignored()</script>
</body></html>`
	doc := parse(t, &HTMLParser{}, input, "engagement.html")

	if doc.Title != "Engagement" {
		t.Errorf("expected title %q, got %q", "Engagement", doc.Title)
	}
	want := doctree.Tree{
		doctree.ContentBlockBoundary{Name: "header", Edge: doctree.EdgeStart},
		doctree.Text{Value: "Firm Name\n"},
		doctree.ContentBlockBoundary{Name: "header", Edge: doctree.EdgeEnd},
		doctree.ReferenceMarker{Syntax: doctree.SyntaxAttribute, Target: "LetterFooter", Raw: `data-content-control="LetterFooter"`},
		doctree.TableMarker{Op: doctree.TableStart},
		doctree.TableMarker{Op: doctree.RowStart},
		doctree.TableMarker{Op: doctree.CellStart},
		doctree.Text{Value: "Fee\n"},
		doctree.TableMarker{Op: doctree.CellStart},
		doctree.TagPlaceholder{Path: "context.fee", Raw: "{{ context.fee }}"},
		doctree.TableMarker{Op: doctree.TableEnd},
	}
	if diff := cmp.Diff(want, doc.Body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestHTMLParser_NoTitleUsesFilename(t *testing.T) {
	doc := parse(t, &HTMLParser{}, "<p>Hello</p>", "memo.html")
	if doc.Title != "memo" {
		t.Errorf("expected title %q, got %q", "memo", doc.Title)
	}
}

func TestMarkdownParser_HeadingTitleAndTable(t *testing.T) {
	input := "# Retainer\n\nIntro with [content:Terms] inside.\n\n| Item | Cost |\n| --- | --- |\n| Review | 100 |\n"
	doc := parse(t, &MarkdownParser{}, input, "retainer.md")

	if doc.Title != "Retainer" {
		t.Errorf("expected title %q, got %q", "Retainer", doc.Title)
	}
	sum := doctree.Summarize(doc.Body)
	if sum.Tables != 0 {
		t.Errorf("raw body should hold markers, not promoted tables")
	}
	var refs, starts, rows, cells int
	for _, n := range doc.Body {
		switch v := n.(type) {
		case doctree.ReferenceMarker:
			refs++
			if v.Target != "Terms" || v.Syntax != doctree.SyntaxBracket {
				t.Errorf("unexpected reference %+v", v)
			}
		case doctree.TableMarker:
			switch v.Op {
			case doctree.TableStart:
				starts++
			case doctree.RowStart:
				rows++
			case doctree.CellStart:
				cells++
			}
		}
	}
	if refs != 1 {
		t.Errorf("expected 1 reference, got %d", refs)
	}
	if starts != 1 || rows != 2 || cells != 4 {
		t.Errorf("expected 1 table, 2 rows, 4 cells; got %d, %d, %d", starts, rows, cells)
	}
}

func TestMarkdownParser_NoHeading(t *testing.T) {
	doc := parse(t, &MarkdownParser{}, "Just a paragraph.", "plain.md")
	if doc.Title != "plain" {
		t.Errorf("expected title %q, got %q", "plain", doc.Title)
	}
	if len(doc.Body) != 1 {
		t.Fatalf("expected 1 node, got %d", len(doc.Body))
	}
}

func TestJSONParser_DocumentAndBareTree(t *testing.T) {
	body := doctree.Tree{
		doctree.Text{Value: "Hi "},
		doctree.ReferenceMarker{Syntax: doctree.SyntaxInclude, Target: "Footer", Raw: "@include(Footer)"},
	}
	data, err := doctree.Encode(body)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	bare := parse(t, &JSONParser{}, string(data), "tree.json")
	if bare.Title != "tree" {
		t.Errorf("expected title %q, got %q", "tree", bare.Title)
	}
	if diff := cmp.Diff(body, bare.Body); diff != "" {
		t.Errorf("bare tree mismatch (-want +got):\n%s", diff)
	}

	wrapped := parse(t, &JSONParser{}, `{"title":"Saved","body":`+string(data)+`}`, "x.json")
	if wrapped.Title != "Saved" {
		t.Errorf("expected title %q, got %q", "Saved", wrapped.Title)
	}
	if diff := cmp.Diff(body, wrapped.Body); diff != "" {
		t.Errorf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONParser_Invalid(t *testing.T) {
	if _, err := (&JSONParser{}).Parse(strings.NewReader(`[{"kind":"bogus"}]`), "bad.json"); err == nil {
		t.Fatal("expected error for unknown node kind")
	}
}

func TestForFile(t *testing.T) {
	cases := map[string]bool{
		"a.txt": true, "b.MD": true, "c.csv": true, "d.htm": true,
		"e.pdf": true, "f.docx": true, "g.json": true, "h.exe": false,
	}
	for name, ok := range cases {
		_, err := ForFile(name)
		if ok && err != nil {
			t.Errorf("%s: unexpected error %v", name, err)
		}
		if !ok && err == nil {
			t.Errorf("%s: expected unsupported error", name)
		}
		if IsSupportedExtension(name) != ok {
			t.Errorf("%s: IsSupportedExtension = %v", name, !ok)
		}
	}
}
