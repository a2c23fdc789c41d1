package resolve

import "github.com/dgallion1/docresolve/internal/doctree"

// State is the resolution state of one identifier within a request.
type State uint8

const (
	Pending State = iota + 1
	Resolved
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

type entry struct {
	state State
	tree  doctree.Tree
	err   error
}

// Graph memoizes resolution state for one request. A Pending entry seen
// again during the same chain is a cycle. Identifiers are compared
// case-insensitively; the first spelling seen is the one reported.
type Graph struct {
	entries map[string]*entry
	names   map[string]string
	order   []string
	edges   map[string][]string

	loads    int
	hits     int
	failures int
}

func newGraph() *Graph {
	return &Graph{
		entries: make(map[string]*entry),
		names:   make(map[string]string),
		edges:   make(map[string][]string),
	}
}

// State returns the state recorded for id.
func (g *Graph) State(id string) (State, bool) {
	e, ok := g.lookup(id)
	if !ok {
		return 0, false
	}
	return e.state, true
}

func (g *Graph) lookup(id string) (*entry, bool) {
	e, ok := g.entries[doctree.FoldKey(id)]
	return e, ok
}

// name returns the reported spelling of id.
func (g *Graph) name(id string) string {
	if n, ok := g.names[doctree.FoldKey(id)]; ok {
		return n
	}
	return id
}

// set records e for id and reports whether id is new to the request.
func (g *Graph) set(id string, e *entry) bool {
	key := doctree.FoldKey(id)
	_, seen := g.entries[key]
	if !seen {
		g.names[key] = id
	}
	g.entries[key] = e
	return !seen
}

func (g *Graph) pending(id string) {
	if g.set(id, &entry{state: Pending}) {
		g.order = append(g.order, id)
	}
}

func (g *Graph) resolved(id string, t doctree.Tree) {
	g.set(id, &entry{state: Resolved, tree: t})
}

func (g *Graph) failed(id string, err error) {
	if g.set(id, &entry{state: Failed, err: err}) {
		g.order = append(g.order, id)
	}
	g.failures++
}

func (g *Graph) edge(parent, child string) {
	parent, child = g.name(parent), g.name(child)
	for _, c := range g.edges[parent] {
		if c == child {
			return
		}
	}
	g.edges[parent] = append(g.edges[parent], child)
}

// Stats is a snapshot of a request's reference activity.
type Stats struct {
	Loads    int                 `json:"loads"`
	Hits     int                 `json:"cache_hits"`
	Failures int                 `json:"failures"`
	Blocks   []string            `json:"blocks"`
	Edges    map[string][]string `json:"edges"`
}

// Stats returns counters, the block identifiers used in first-use order and
// the parent to child edges. The root document is keyed by the empty string
// in Edges unless it was given a name; it never appears in Blocks.
func (g *Graph) Stats() Stats {
	edges := make(map[string][]string, len(g.edges))
	for k, v := range g.edges {
		edges[k] = append([]string(nil), v...)
	}
	return Stats{
		Loads:    g.loads,
		Hits:     g.hits,
		Failures: g.failures,
		Blocks:   append([]string(nil), g.order...),
		Edges:    edges,
	}
}
