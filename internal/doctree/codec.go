package doctree

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// envelope is the wire form of a single node.
type envelope struct {
	Kind      string   `json:"kind"`
	Value     string   `json:"value,omitempty"`
	Path      string   `json:"path,omitempty"`
	Format    string   `json:"format,omitempty"`
	Raw       string   `json:"raw,omitempty"`
	Syntax    string   `json:"syntax,omitempty"`
	Target    string   `json:"target,omitempty"`
	Op        string   `json:"op,omitempty"`
	Condition string   `json:"condition,omitempty"`
	Then      Tree     `json:"then,omitempty"`
	Else      Tree     `json:"else,omitempty"`
	HasElse   bool     `json:"has_else,omitempty"`
	Depth     int      `json:"depth,omitempty"`
	Rows      [][]Tree `json:"rows,omitempty"`
	Name      string   `json:"name,omitempty"`
	Edge      string   `json:"edge,omitempty"`
	ID        string   `json:"id,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

// MarshalJSON encodes the tree as an array of tagged node envelopes.
func (t Tree) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("null"), nil
	}
	envs := make([]envelope, 0, len(t))
	for i, n := range t {
		env, err := toEnvelope(n)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		envs = append(envs, env)
	}
	return json.Marshal(envs)
}

// UnmarshalJSON decodes an array of tagged node envelopes.
func (t *Tree) UnmarshalJSON(data []byte) error {
	var envs []envelope
	if err := json.Unmarshal(data, &envs); err != nil {
		return err
	}
	if envs == nil {
		*t = nil
		return nil
	}
	out := make(Tree, 0, len(envs))
	for i, env := range envs {
		n, err := fromEnvelope(env)
		if err != nil {
			return fmt.Errorf("node %d: %w", i, err)
		}
		out = append(out, n)
	}
	*t = out
	return nil
}

// Encode serializes a tree for caches and the wire.
func Encode(t Tree) ([]byte, error) {
	return json.Marshal(t)
}

// Decode is the inverse of Encode.
func Decode(data []byte) (Tree, error) {
	var t Tree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode tree: %w", err)
	}
	return t, nil
}

func toEnvelope(n Node) (envelope, error) {
	switch v := n.(type) {
	case Text:
		return envelope{Kind: "text", Value: v.Value}, nil
	case TagPlaceholder:
		return envelope{Kind: "tag", Path: v.Path, Format: v.Format, Raw: v.Raw}, nil
	case ReferenceMarker:
		return envelope{Kind: "reference", Syntax: v.Syntax.String(), Target: v.Target, Raw: v.Raw}, nil
	case ConditionalMarker:
		return envelope{Kind: "conditional_marker", Op: v.Op.String(), Condition: v.Condition, Raw: v.Raw}, nil
	case *ConditionalBlock:
		return envelope{Kind: "conditional", Condition: v.Condition, Then: v.Then, Else: v.Else, HasElse: v.HasElse, Depth: v.Depth}, nil
	case TableMarker:
		return envelope{Kind: "table_marker", Op: v.Op.String()}, nil
	case *TableNode:
		rows := make([][]Tree, len(v.Rows))
		for i, r := range v.Rows {
			rows[i] = []Tree(r)
		}
		return envelope{Kind: "table", Rows: rows, Depth: v.Depth}, nil
	case ContentBlockBoundary:
		edge := "start"
		if v.Edge == EdgeEnd {
			edge = "end"
		}
		return envelope{Kind: "boundary", Name: v.Name, Edge: edge}, nil
	case UnresolvedReference:
		return envelope{Kind: "unresolved_reference", ID: v.ID, Raw: v.Raw, Reason: v.Reason}, nil
	default:
		return envelope{}, fmt.Errorf("unknown node type %T", n)
	}
}

func fromEnvelope(env envelope) (Node, error) {
	switch env.Kind {
	case "text":
		return Text{Value: env.Value}, nil
	case "tag":
		return TagPlaceholder{Path: env.Path, Format: env.Format, Raw: env.Raw}, nil
	case "reference":
		syn, err := parseSyntax(env.Syntax)
		if err != nil {
			return nil, err
		}
		return ReferenceMarker{Syntax: syn, Target: env.Target, Raw: env.Raw}, nil
	case "conditional_marker":
		op, err := parseCondOp(env.Op)
		if err != nil {
			return nil, err
		}
		return ConditionalMarker{Op: op, Condition: env.Condition, Raw: env.Raw}, nil
	case "conditional":
		return &ConditionalBlock{Condition: env.Condition, Then: env.Then, Else: env.Else, HasElse: env.HasElse, Depth: env.Depth}, nil
	case "table_marker":
		op, err := parseTableOp(env.Op)
		if err != nil {
			return nil, err
		}
		return TableMarker{Op: op}, nil
	case "table":
		t := &TableNode{Depth: env.Depth}
		if env.Rows != nil {
			t.Rows = make([]Row, len(env.Rows))
			for i, r := range env.Rows {
				t.Rows[i] = Row(r)
			}
		}
		return t, nil
	case "boundary":
		edge := EdgeStart
		if env.Edge == "end" {
			edge = EdgeEnd
		}
		return ContentBlockBoundary{Name: env.Name, Edge: edge}, nil
	case "unresolved_reference":
		return UnresolvedReference{ID: env.ID, Raw: env.Raw, Reason: env.Reason}, nil
	default:
		return nil, fmt.Errorf("unknown node kind %q", env.Kind)
	}
}

func parseSyntax(s string) (Syntax, error) {
	for syn := SyntaxDirect; syn <= SyntaxAttribute; syn++ {
		if syn.String() == s {
			return syn, nil
		}
	}
	return 0, fmt.Errorf("unknown reference syntax %q", s)
}

func parseCondOp(s string) (CondOp, error) {
	for op := CondIf; op <= CondEndIf; op++ {
		if op.String() == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown conditional op %q", s)
}

func parseTableOp(s string) (TableOp, error) {
	for op := TableStart; op <= TableEnd; op++ {
		if op.String() == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown table op %q", s)
}
