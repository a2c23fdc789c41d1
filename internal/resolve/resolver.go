// Package resolve inlines content-block references. Each referenced block is
// loaded and structure-parsed at most once per request.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgallion1/docresolve/internal/docerr"
	"github.com/dgallion1/docresolve/internal/doctree"
	"github.com/dgallion1/docresolve/internal/structure"
)

// DefaultMaxDepth is the inclusion depth limit.
const DefaultMaxDepth = 5

// Loader fetches the raw, unparsed tree for a canonical identifier. Missing
// identifiers are reported by wrapping docerr.ErrNotFound.
type Loader interface {
	Load(ctx context.Context, id string) (doctree.Tree, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, id string) (doctree.Tree, error)

func (f LoaderFunc) Load(ctx context.Context, id string) (doctree.Tree, error) { return f(ctx, id) }

// SharedCache is a cross-request store of parsed blocks. Fetch must run load
// at most once concurrently per id. Callers never mutate returned trees.
type SharedCache interface {
	Fetch(ctx context.Context, id string, load func(context.Context) (doctree.Tree, error)) (doctree.Tree, error)
}

// Resolver holds configuration shared by all requests. It has no per-request
// state; call NewRequest for each top-level conversion.
type Resolver struct {
	loader   Loader
	parser   *structure.Parser
	shared   *structure.Parser
	cache    SharedCache
	maxDepth int
	log      *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

func WithMaxDepth(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxDepth = n
		}
	}
}

func WithParser(p *structure.Parser) Option {
	return func(r *Resolver) {
		if p != nil {
			r.parser = p
		}
	}
}

// WithCache backs the per-request graph with a shared cache.
func WithCache(c SharedCache) Option {
	return func(r *Resolver) { r.cache = c }
}

// WithSharedParser sets the parser used for blocks that enter the shared
// cache. Every Resolver sharing one cache should pass the same limit. A
// request whose own limit is higher bypasses the cache.
func WithSharedParser(p *structure.Parser) Option {
	return func(r *Resolver) {
		if p != nil {
			r.shared = p
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

// New creates a Resolver for loader.
func New(loader Loader, opts ...Option) *Resolver {
	r := &Resolver{
		loader:   loader,
		parser:   structure.New(structure.DefaultMaxNesting),
		shared:   structure.New(structure.DefaultMaxNesting),
		maxDepth: DefaultMaxDepth,
		log:      slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// MaxDepth returns the configured inclusion depth limit.
func (r *Resolver) MaxDepth() int { return r.maxDepth }

// Parser returns the structure parser applied to loaded blocks.
func (r *Resolver) Parser() *structure.Parser { return r.parser }

// NewRequest starts a request with an empty reference graph.
func (r *Resolver) NewRequest() *Request {
	return &Request{r: r, graph: newGraph()}
}

// Request resolves one top-level document. It is not safe for concurrent use.
type Request struct {
	r     *Resolver
	graph *Graph
	chain []string
}

// Graph returns the request's reference graph.
func (q *Request) Graph() *Graph { return q.graph }

// Resolve replaces every reference marker in t with the referenced block's
// resolved tree. depth is the inclusion depth of t, 0 for the root. The input
// is not modified.
func (q *Request) Resolve(ctx context.Context, t doctree.Tree, depth int) (doctree.Tree, error) {
	return q.resolve(ctx, t, depth, 0, 0)
}

// ResolveRoot resolves t as the content of the named block rootID, so that a
// cycle back to the root is reported as [root ... root].
func (q *Request) ResolveRoot(ctx context.Context, rootID string, t doctree.Tree) (doctree.Tree, error) {
	id := doctree.CanonicalID(rootID)
	if id == "" {
		return q.Resolve(ctx, t, 0)
	}
	// The root takes part in cycle detection but is not one of the blocks.
	q.graph.set(id, &entry{state: Pending})
	q.chain = append(q.chain[:0], id)
	out, err := q.resolve(ctx, t, 0, 0, 0)
	q.chain = q.chain[:0]
	if err != nil {
		q.graph.set(id, &entry{state: Failed, err: err})
		return nil, err
	}
	q.graph.resolved(id, out)
	return out, nil
}

// resolve walks t; conds and tables count the blocks enclosing t so spliced
// blocks can be renumbered.
func (q *Request) resolve(ctx context.Context, t doctree.Tree, depth, conds, tables int) (doctree.Tree, error) {
	if t == nil {
		return nil, nil
	}
	out := make(doctree.Tree, 0, len(t))
	for i, n := range t {
		switch v := n.(type) {
		case doctree.ReferenceMarker:
			sub, err := q.reference(ctx, v, depth)
			if err != nil {
				return nil, err
			}
			if err := q.splice(v.Identifier(), i, sub, conds, tables); err != nil {
				return nil, err
			}
			out = append(out, sub...)

		case *doctree.ConditionalBlock:
			then, err := q.resolve(ctx, v.Then, depth, conds+1, tables)
			if err != nil {
				return nil, err
			}
			els, err := q.resolve(ctx, v.Else, depth, conds+1, tables)
			if err != nil {
				return nil, err
			}
			blk := *v
			blk.Then, blk.Else = then, els
			out = append(out, &blk)

		case *doctree.TableNode:
			tbl := &doctree.TableNode{Depth: v.Depth}
			if v.Rows != nil {
				tbl.Rows = make([]doctree.Row, len(v.Rows))
			}
			for ri, row := range v.Rows {
				if row == nil {
					continue
				}
				tbl.Rows[ri] = make(doctree.Row, len(row))
				for ci, cell := range row {
					rc, err := q.resolve(ctx, cell, depth, conds, tables+1)
					if err != nil {
						return nil, err
					}
					tbl.Rows[ri][ci] = rc
				}
			}
			out = append(out, tbl)

		default:
			out = append(out, n)
		}
	}
	return out, nil
}

// splice renumbers a block's private copy for its position and enforces the
// combined nesting limit across the inclusion.
func (q *Request) splice(id string, pos int, sub doctree.Tree, conds, tables int) error {
	limit := q.r.parser.Limit()
	if inner := doctree.Summarize(sub).MaxNesting; inner > 0 && conds+tables+inner > limit {
		return &docerr.FragmentError{ID: id, Err: &docerr.MaxNestingExceededError{
			Depth: conds + tables + inner,
			Max:   limit,
			Pos:   pos,
		}}
	}
	doctree.Rebase(sub, conds, tables)
	return nil
}

func (q *Request) parent() string {
	if len(q.chain) == 0 {
		return ""
	}
	return q.chain[len(q.chain)-1]
}

func (q *Request) chainWith(id string) []string {
	chain := make([]string, 0, len(q.chain)+1)
	chain = append(chain, q.chain...)
	if id != "" {
		chain = append(chain, id)
	}
	return chain
}

// reference returns a private copy of the resolved tree for m.
func (q *Request) reference(ctx context.Context, m doctree.ReferenceMarker, depth int) (doctree.Tree, error) {
	id := m.Identifier()
	if err := ctx.Err(); err != nil {
		return nil, &docerr.TimeoutError{Stage: "resolve", ID: id, Err: err}
	}
	if id == "" {
		return nil, &docerr.ReferenceNotFoundError{ID: m.Raw, Chain: q.chainWith(""), Err: docerr.ErrNotFound}
	}
	q.graph.edge(q.parent(), id)

	if e, ok := q.graph.lookup(id); ok {
		switch e.state {
		case Resolved:
			q.graph.hits++
			return e.tree.Clone(), nil
		case Failed:
			q.graph.hits++
			return nil, e.err
		case Pending:
			err := &docerr.CircularReferenceError{Chain: q.chainWith(q.graph.name(id))}
			q.r.log.Debug("circular reference", "chain", err.Chain)
			return nil, err
		}
	}

	if depth+1 > q.r.maxDepth {
		err := &docerr.MaxDepthExceededError{ID: id, Depth: depth + 1, Max: q.r.maxDepth, Chain: q.chainWith(id)}
		q.graph.failed(id, err)
		return nil, err
	}

	q.graph.pending(id)
	q.chain = append(q.chain, id)
	sub, err := q.load(ctx, id)
	if err == nil {
		sub, err = q.resolve(ctx, sub, depth+1, 0, 0)
	}
	q.chain = q.chain[:len(q.chain)-1]

	if err != nil {
		q.graph.failed(id, err)
		return nil, err
	}
	q.graph.resolved(id, sub)
	return sub.Clone(), nil
}

// load fetches and structure-parses id, through the shared cache if one is
// configured.
func (q *Request) load(ctx context.Context, id string) (doctree.Tree, error) {
	q.graph.loads++
	log := q.r.log.With("block", id)
	log.Debug("loading content block", "depth", len(q.chain))

	fetch := func(p *structure.Parser) func(context.Context) (doctree.Tree, error) {
		return func(ctx context.Context) (doctree.Tree, error) {
			raw, err := q.r.loader.Load(ctx, id)
			if err != nil {
				return nil, err
			}
			parsed, err := p.Parse(ctx, raw)
			if err != nil {
				var te *docerr.TimeoutError
				if errors.As(err, &te) {
					te.ID = id
					return nil, te
				}
				return nil, &docerr.FragmentError{ID: id, Err: err}
			}
			return parsed, nil
		}
	}

	var (
		t   doctree.Tree
		err error
	)
	// The shared flight parses with the shared limit; this request's own
	// limit is applied to the result.
	if q.r.cache != nil && q.r.parser.Limit() <= q.r.shared.Limit() {
		t, err = q.r.cache.Fetch(ctx, id, fetch(q.r.shared))
		if err == nil {
			err = q.checkNesting(id, t)
		}
	} else {
		t, err = fetch(q.r.parser)(ctx)
	}
	if err == nil {
		return t, nil
	}

	var te *docerr.TimeoutError
	switch {
	case errors.As(err, &te):
		return nil, err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil, &docerr.TimeoutError{Stage: "resolve", ID: id, Err: err}
	case errors.Is(err, docerr.ErrNotFound):
		log.Debug("content block not found", "error", err)
		return nil, &docerr.ReferenceNotFoundError{ID: id, Chain: q.chainWith(""), Err: err}
	case docerr.IsStructural(err):
		return nil, err
	default:
		return nil, fmt.Errorf("load %q: %w", id, err)
	}
}

// checkNesting applies the request's nesting limit to a block parsed under
// the shared limit.
func (q *Request) checkNesting(id string, t doctree.Tree) error {
	limit := q.r.parser.Limit()
	for i, n := range t {
		if d := doctree.Summarize(doctree.Tree{n}).MaxNesting; d > limit {
			return &docerr.FragmentError{ID: id, Err: &docerr.MaxNestingExceededError{Depth: d, Max: limit, Pos: i}}
		}
	}
	return nil
}
