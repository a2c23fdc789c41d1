package doctree

// Document is the result of extracting a source file.
type Document struct {
	Title string `json:"title"` // from metadata or filename
	Body  Tree   `json:"body"`  // raw node sequence, markers not yet promoted
}

// Tree is an ordered sequence of nodes.
type Tree []Node

// Kind identifies a node variant.
type Kind uint8

const (
	KindText Kind = iota + 1
	KindTag
	KindReference
	KindConditionalMarker
	KindConditional
	KindTableMarker
	KindTable
	KindBoundary
	KindUnresolved
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindTag:
		return "tag"
	case KindReference:
		return "reference"
	case KindConditionalMarker:
		return "conditional_marker"
	case KindConditional:
		return "conditional"
	case KindTableMarker:
		return "table_marker"
	case KindTable:
		return "table"
	case KindBoundary:
		return "boundary"
	case KindUnresolved:
		return "unresolved_reference"
	default:
		return "unknown"
	}
}

// Node is implemented only by the variants declared in this package.
type Node interface {
	Kind() Kind
	node()
}

// Text is literal document content.
type Text struct {
	Value string
}

// TagPlaceholder is a template variable such as context.matter.reference,
// optionally followed by a format modifier.
type TagPlaceholder struct {
	Path   string
	Format string
	Raw    string
}

// Syntax is the surface form a content-block reference was written in.
type Syntax uint8

const (
	SyntaxDirect     Syntax = iota + 1 // {{content:X}}
	SyntaxNamedBlock                   // {{dc-X}}
	SyntaxInclude                      // @include(X)
	SyntaxBracket                      // [content:X]
	SyntaxAttribute                    // data-content-control="X"
)

func (s Syntax) String() string {
	switch s {
	case SyntaxDirect:
		return "direct"
	case SyntaxNamedBlock:
		return "named_block"
	case SyntaxInclude:
		return "include"
	case SyntaxBracket:
		return "bracket"
	case SyntaxAttribute:
		return "attribute"
	default:
		return "unknown"
	}
}

// ReferenceMarker is an unresolved content-block reference. Target holds the
// text found inside the syntax decoration.
type ReferenceMarker struct {
	Syntax Syntax
	Target string
	Raw    string
}

// CondOp is the role of a conditional marker.
type CondOp uint8

const (
	CondIf CondOp = iota + 1
	CondElseIf
	CondElse
	CondEndIf
)

func (op CondOp) String() string {
	switch op {
	case CondIf:
		return "if"
	case CondElseIf:
		return "elif"
	case CondElse:
		return "else"
	case CondEndIf:
		return "endif"
	default:
		return "unknown"
	}
}

// ConditionalMarker is a flat if/elif/else/endif directive.
type ConditionalMarker struct {
	Op        CondOp
	Condition string
	Raw       string
}

// ConditionalBlock is a promoted conditional. The condition is opaque.
type ConditionalBlock struct {
	Condition string
	Then      Tree
	Else      Tree
	HasElse   bool
	Depth     int // enclosing ConditionalBlocks + 1
}

// TableOp is the role of a table marker.
type TableOp uint8

const (
	TableStart TableOp = iota + 1
	RowStart
	CellStart
	TableEnd
)

func (op TableOp) String() string {
	switch op {
	case TableStart:
		return "table"
	case RowStart:
		return "row"
	case CellStart:
		return "cell"
	case TableEnd:
		return "endtable"
	default:
		return "unknown"
	}
}

// TableMarker is flat table markup emitted by extractors.
type TableMarker struct {
	Op TableOp
}

// Row is an ordered sequence of cells.
type Row []Tree

// TableNode is a promoted table.
type TableNode struct {
	Rows  []Row
	Depth int // enclosing TableNodes + 1
}

// Edge marks the start or end of a named content region.
type Edge uint8

const (
	EdgeStart Edge = iota + 1
	EdgeEnd
)

// ContentBlockBoundary delimits a named region such as a letter header.
type ContentBlockBoundary struct {
	Name string
	Edge Edge
}

// UnresolvedReference stands in for a reference a relaxed loader could not
// satisfy.
type UnresolvedReference struct {
	ID     string
	Raw    string
	Reason string
}

func (Text) Kind() Kind                 { return KindText }
func (TagPlaceholder) Kind() Kind       { return KindTag }
func (ReferenceMarker) Kind() Kind      { return KindReference }
func (ConditionalMarker) Kind() Kind    { return KindConditionalMarker }
func (*ConditionalBlock) Kind() Kind    { return KindConditional }
func (TableMarker) Kind() Kind          { return KindTableMarker }
func (*TableNode) Kind() Kind           { return KindTable }
func (ContentBlockBoundary) Kind() Kind { return KindBoundary }
func (UnresolvedReference) Kind() Kind  { return KindUnresolved }

func (Text) node()                 {}
func (TagPlaceholder) node()       {}
func (ReferenceMarker) node()      {}
func (ConditionalMarker) node()    {}
func (*ConditionalBlock) node()    {}
func (TableMarker) node()          {}
func (*TableNode) node()           {}
func (ContentBlockBoundary) node() {}
func (UnresolvedReference) node()  {}
