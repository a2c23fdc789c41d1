package markup

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dgallion1/docresolve/internal/doctree"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want doctree.Tree
	}{
		{
			name: "plain text",
			in:   "Hello world",
			want: doctree.Tree{doctree.Text{Value: "Hello world"}},
		},
		{
			name: "direct reference",
			in:   "Hello {{content:Header}} body",
			want: doctree.Tree{
				doctree.Text{Value: "Hello "},
				doctree.ReferenceMarker{Syntax: doctree.SyntaxDirect, Target: "Header", Raw: "{{content:Header}}"},
				doctree.Text{Value: " body"},
			},
		},
		{
			name: "all reference syntaxes",
			in:   "{{dc-letterheader}}@include(Footer)[content:Sig]",
			want: doctree.Tree{
				doctree.ReferenceMarker{Syntax: doctree.SyntaxNamedBlock, Target: "dc-letterheader", Raw: "{{dc-letterheader}}"},
				doctree.ReferenceMarker{Syntax: doctree.SyntaxInclude, Target: "Footer", Raw: "@include(Footer)"},
				doctree.ReferenceMarker{Syntax: doctree.SyntaxBracket, Target: "Sig", Raw: "[content:Sig]"},
			},
		},
		{
			name: "jinja conditional",
			in:   "{% if context.vip %}Hi{% else %}Hello{% endif %}",
			want: doctree.Tree{
				doctree.ConditionalMarker{Op: doctree.CondIf, Condition: "context.vip", Raw: "{% if context.vip %}"},
				doctree.Text{Value: "Hi"},
				doctree.ConditionalMarker{Op: doctree.CondElse, Raw: "{% else %}"},
				doctree.Text{Value: "Hello"},
				doctree.ConditionalMarker{Op: doctree.CondEndIf, Raw: "{% endif %}"},
			},
		},
		{
			name: "handlebars conditional",
			in:   "{{#if paid}}x{{else}}y{{/if}}",
			want: doctree.Tree{
				doctree.ConditionalMarker{Op: doctree.CondIf, Condition: "paid", Raw: "{{#if paid}}"},
				doctree.Text{Value: "x"},
				doctree.ConditionalMarker{Op: doctree.CondElse, Raw: "{{else}}"},
				doctree.Text{Value: "y"},
				doctree.ConditionalMarker{Op: doctree.CondEndIf, Raw: "{{/if}}"},
			},
		},
		{
			name: "elif",
			in:   "{% elif b %}",
			want: doctree.Tree{
				doctree.ConditionalMarker{Op: doctree.CondElseIf, Condition: "b", Raw: "{% elif b %}"},
			},
		},
		{
			name: "tags",
			in:   "{{ client.name | upper }} «context.matter.ref!date» context.user.email!lower",
			want: doctree.Tree{
				doctree.TagPlaceholder{Path: "client.name", Format: "upper", Raw: "{{ client.name | upper }}"},
				doctree.Text{Value: " "},
				doctree.TagPlaceholder{Path: "context.matter.ref", Format: "date", Raw: "«context.matter.ref!date»"},
				doctree.Text{Value: " "},
				doctree.TagPlaceholder{Path: "context.user.email", Format: "lower", Raw: "context.user.email!lower"},
			},
		},
		{
			name: "braced tag wins over bare path",
			in:   "{{context.a}}",
			want: doctree.Tree{
				doctree.TagPlaceholder{Path: "context.a", Raw: "{{context.a}}"},
			},
		},
		{
			name: "table and section markers drop layout newlines",
			in:   "{% section header %}\n{% table %}\n{% row %}\n{% cell %}A{% endtable %}\n{% endsection header %}",
			want: doctree.Tree{
				doctree.ContentBlockBoundary{Name: "header", Edge: doctree.EdgeStart},
				doctree.TableMarker{Op: doctree.TableStart},
				doctree.TableMarker{Op: doctree.RowStart},
				doctree.TableMarker{Op: doctree.CellStart},
				doctree.Text{Value: "A"},
				doctree.TableMarker{Op: doctree.TableEnd},
				doctree.ContentBlockBoundary{Name: "header", Edge: doctree.EdgeEnd},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Tokenize(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestAppendKeepsExisting(t *testing.T) {
	tree := doctree.Tree{doctree.Text{Value: "a"}}
	tree = Append(tree, "b")
	if len(tree) != 2 {
		t.Fatalf("len = %d, want 2", len(tree))
	}
}

func TestHasDirectives(t *testing.T) {
	if HasDirectives("nothing here") {
		t.Error("plain text reported as directive")
	}
	if !HasDirectives("see {{content:X}}") {
		t.Error("reference not detected")
	}
}
