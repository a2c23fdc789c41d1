// Package markup splits extracted document text into doctree nodes:
// literal text, tag placeholders, content-block references, and flat
// conditional, table and section markers.
package markup

import (
	"regexp"
	"sort"
	"strings"

	"github.com/dgallion1/docresolve/internal/doctree"
)

type rule struct {
	re   *regexp.Regexp
	emit func(raw string, groups []string) doctree.Node
}

// Rules are listed in priority order; when two matches start at the same
// offset the earlier rule wins.
var rules = []rule{
	{
		re: regexp.MustCompile(`\{%-?\s*(end)?section\s+([^%]+?)\s*-?%\}`),
		emit: func(_ string, g []string) doctree.Node {
			edge := doctree.EdgeStart
			if g[1] != "" {
				edge = doctree.EdgeEnd
			}
			return doctree.ContentBlockBoundary{Name: g[2], Edge: edge}
		},
	},
	{
		re: regexp.MustCompile(`\{%-?\s*(table|row|cell|endtable)\s*-?%\}`),
		emit: func(_ string, g []string) doctree.Node {
			ops := map[string]doctree.TableOp{
				"table":    doctree.TableStart,
				"row":      doctree.RowStart,
				"cell":     doctree.CellStart,
				"endtable": doctree.TableEnd,
			}
			return doctree.TableMarker{Op: ops[g[1]]}
		},
	},
	{
		re: regexp.MustCompile(`\{%-?\s*(if|elif|elseif|else|endif)(?:\s+([^%]*?))?\s*-?%\}`),
		emit: func(raw string, g []string) doctree.Node {
			return doctree.ConditionalMarker{Op: condOp(g[1]), Condition: g[2], Raw: raw}
		},
	},
	{
		re: regexp.MustCompile(`\{\{\s*#if\s+([^}]*?)\s*\}\}`),
		emit: func(raw string, g []string) doctree.Node {
			return doctree.ConditionalMarker{Op: doctree.CondIf, Condition: g[1], Raw: raw}
		},
	},
	{
		re: regexp.MustCompile(`\{\{\s*else\s*\}\}`),
		emit: func(raw string, _ []string) doctree.Node {
			return doctree.ConditionalMarker{Op: doctree.CondElse, Raw: raw}
		},
	},
	{
		re: regexp.MustCompile(`\{\{\s*/if\s*\}\}`),
		emit: func(raw string, _ []string) doctree.Node {
			return doctree.ConditionalMarker{Op: doctree.CondEndIf, Raw: raw}
		},
	},
	{
		re: regexp.MustCompile(`\{\{\s*content:\s*([^}]+?)\s*\}\}`),
		emit: func(raw string, g []string) doctree.Node {
			return doctree.ReferenceMarker{Syntax: doctree.SyntaxDirect, Target: g[1], Raw: raw}
		},
	},
	{
		re: regexp.MustCompile(`\{\{\s*(dc-[^}\s]+)\s*\}\}`),
		emit: func(raw string, g []string) doctree.Node {
			return doctree.ReferenceMarker{Syntax: doctree.SyntaxNamedBlock, Target: g[1], Raw: raw}
		},
	},
	{
		re: regexp.MustCompile(`@include\(\s*([^)]+?)\s*\)`),
		emit: func(raw string, g []string) doctree.Node {
			return doctree.ReferenceMarker{Syntax: doctree.SyntaxInclude, Target: g[1], Raw: raw}
		},
	},
	{
		re: regexp.MustCompile(`\[content:\s*([^\]]+?)\s*\]`),
		emit: func(raw string, g []string) doctree.Node {
			return doctree.ReferenceMarker{Syntax: doctree.SyntaxBracket, Target: g[1], Raw: raw}
		},
	},
	{
		re: regexp.MustCompile(`\{\{\s*([A-Za-z_][\w.]*)\s*(?:\|\s*([\w-]+)\s*)?\}\}`),
		emit: func(raw string, g []string) doctree.Node {
			return doctree.TagPlaceholder{Path: g[1], Format: g[2], Raw: raw}
		},
	},
	{
		re: regexp.MustCompile(`«\s*([^»!]+?)\s*(?:!\s*([^»]+?)\s*)?»`),
		emit: func(raw string, g []string) doctree.Node {
			return doctree.TagPlaceholder{Path: g[1], Format: g[2], Raw: raw}
		},
	},
	{
		re: regexp.MustCompile(`\b((?:context|document)(?:\.[A-Za-z_]\w*)+)(?:!([A-Za-z_][\w-]*))?`),
		emit: func(raw string, g []string) doctree.Node {
			return doctree.TagPlaceholder{Path: g[1], Format: g[2], Raw: raw}
		},
	},
}

func condOp(s string) doctree.CondOp {
	switch s {
	case "if":
		return doctree.CondIf
	case "elif", "elseif":
		return doctree.CondElseIf
	case "else":
		return doctree.CondElse
	default:
		return doctree.CondEndIf
	}
}

type match struct {
	start, end int
	rule       int
	groups     []string
}

// Tokenize splits s into nodes in document order.
func Tokenize(s string) doctree.Tree {
	return Append(nil, s)
}

// Append tokenizes s and appends the nodes to t.
func Append(t doctree.Tree, s string) doctree.Tree {
	if s == "" {
		return t
	}
	var matches []match
	for i, r := range rules {
		for _, loc := range r.re.FindAllStringSubmatchIndex(s, -1) {
			groups := make([]string, len(loc)/2)
			for g := range groups {
				if loc[2*g] >= 0 {
					groups[g] = s[loc[2*g]:loc[2*g+1]]
				}
			}
			matches = append(matches, match{start: loc[0], end: loc[1], rule: i, groups: groups})
		}
	}
	sort.SliceStable(matches, func(a, b int) bool {
		if matches[a].start != matches[b].start {
			return matches[a].start < matches[b].start
		}
		return matches[a].rule < matches[b].rule
	})

	pos := 0
	for _, m := range matches {
		if m.start < pos {
			continue
		}
		t = appendText(t, s[pos:m.start])
		t = append(t, rules[m.rule].emit(s[m.start:m.end], m.groups))
		pos = m.end
	}
	return appendText(t, s[pos:])
}

// appendText drops layout-only whitespace that spans lines; spaces within a
// line are kept.
func appendText(t doctree.Tree, s string) doctree.Tree {
	if s == "" {
		return t
	}
	if strings.TrimSpace(s) == "" && strings.ContainsAny(s, "\r\n") {
		return t
	}
	return append(t, doctree.Text{Value: s})
}

// HasDirectives reports whether s contains any template syntax.
func HasDirectives(s string) bool {
	for _, r := range rules {
		if r.re.MatchString(s) {
			return true
		}
	}
	return false
}
