// Package convert is the combined entry point: structure-parse a document,
// inline its content-block references, classify it and score the result.
package convert

import (
	"context"
	"log/slog"
	"path"
	"path/filepath"
	"time"

	"github.com/dgallion1/docresolve/internal/doctree"
	"github.com/dgallion1/docresolve/internal/loader"
	"github.com/dgallion1/docresolve/internal/resolve"
	"github.com/dgallion1/docresolve/internal/score"
	"github.com/dgallion1/docresolve/internal/structure"
)

// Limits bound one conversion. Zero fields take the engine defaults.
type Limits struct {
	MaxDepth   int           `json:"max_depth"`
	MaxNesting int           `json:"max_nesting"`
	Timeout    time.Duration `json:"timeout"`
}

// DefaultLimits are used when an Engine is built without WithLimits.
var DefaultLimits = Limits{
	MaxDepth:   resolve.DefaultMaxDepth,
	MaxNesting: structure.DefaultMaxNesting,
	Timeout:    30 * time.Second,
}

func (l Limits) or(def Limits) Limits {
	if l.MaxDepth <= 0 {
		l.MaxDepth = def.MaxDepth
	}
	if l.MaxNesting <= 0 {
		l.MaxNesting = def.MaxNesting
	}
	if l.Timeout <= 0 {
		l.Timeout = def.Timeout
	}
	return l
}

// Engine wires a loader, an optional shared block cache, a classifier and
// a scorer. It is safe for concurrent use; every call gets its own
// reference graph.
type Engine struct {
	loader     resolve.Loader
	cache      resolve.SharedCache
	classifier score.Classifier
	scorer     *score.Scorer
	limits     Limits
	log        *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache shares parsed blocks across calls.
func WithCache(c resolve.SharedCache) Option {
	return func(e *Engine) { e.cache = c }
}

func WithClassifier(c score.Classifier) Option {
	return func(e *Engine) {
		if c != nil {
			e.classifier = c
		}
	}
}

func WithScorer(s *score.Scorer) Option {
	return func(e *Engine) {
		if s != nil {
			e.scorer = s
		}
	}
}

func WithLimits(l Limits) Option {
	return func(e *Engine) { e.limits = l.or(DefaultLimits) }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// New creates an Engine reading blocks through ld.
func New(ld resolve.Loader, opts ...Option) *Engine {
	e := &Engine{
		loader:     ld,
		classifier: score.KeywordClassifier{},
		scorer:     score.New(nil),
		limits:     DefaultLimits,
		log:        slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Limits returns the engine defaults.
func (e *Engine) Limits() Limits { return e.limits }

// Scorer returns the engine's scorer.
func (e *Engine) Scorer() *score.Scorer { return e.scorer }

// Resolution is a resolved and parsed tree with its reference activity.
type Resolution struct {
	Tree       doctree.Tree  `json:"tree"`
	References resolve.Stats `json:"references"`
}

// ResolveAndParse promotes the structure of t and inlines every reference.
// It returns a fully resolved tree or a single classified error; a blown
// time budget is reported as a *docerr.TimeoutError.
func (e *Engine) ResolveAndParse(ctx context.Context, t doctree.Tree, lim Limits) (doctree.Tree, error) {
	res, err := e.resolve(ctx, "", t, lim, false)
	if err != nil {
		return nil, err
	}
	return res.Tree, nil
}

// Score rates a resolved tree. It never fails.
func (e *Engine) Score(t doctree.Tree, category score.Category, ev score.Evidence) score.Result {
	return e.scorer.Score(t, category, ev)
}

// resolve runs one request. Relaxed requests stub out missing blocks and
// bypass the shared cache so stubs never reach strict requests.
func (e *Engine) resolve(ctx context.Context, rootID string, t doctree.Tree, lim Limits, relaxed bool) (*Resolution, error) {
	lim = lim.or(e.limits)
	ctx, cancel := context.WithTimeout(ctx, lim.Timeout)
	defer cancel()

	parser := structure.New(lim.MaxNesting)
	ld, cache := e.loader, e.cache
	if relaxed {
		ld, cache = loader.Relaxed(e.loader), nil
	}
	opts := []resolve.Option{
		resolve.WithMaxDepth(lim.MaxDepth),
		resolve.WithParser(parser),
		resolve.WithLogger(e.log),
	}
	if cache != nil {
		opts = append(opts,
			resolve.WithCache(cache),
			resolve.WithSharedParser(structure.New(e.limits.MaxNesting)),
		)
	}
	req := resolve.New(ld, opts...).NewRequest()

	parsed, err := parser.Parse(ctx, t)
	if err != nil {
		return nil, err
	}
	out, err := req.ResolveRoot(ctx, rootID, parsed)
	if err != nil {
		return nil, err
	}
	return &Resolution{Tree: out, References: req.Graph().Stats()}, nil
}

// blockIndex is implemented by loaders that map identifiers to files.
type blockIndex interface {
	Root() string
	Lookup(id string) (string, bool)
}

// rootID names the document being converted so that a block referring back
// to it is reported as a cycle. When the loader maps that name to a
// different file, references to it are ordinary blocks and the root stays
// anonymous.
func (e *Engine) rootID(p string) string {
	if p == "" {
		return ""
	}
	id := doctree.CanonicalID(path.Base(filepath.ToSlash(p)))
	idx, ok := e.loader.(blockIndex)
	if !ok || id == "" {
		return id
	}
	rel, found := idx.Lookup(id)
	if !found || samePath(p, idx.Root(), rel) {
		return id
	}
	return ""
}

// samePath reports whether p names the file rel under root. Relative values
// of p are tried both against the working directory and against root.
func samePath(p, root, rel string) bool {
	if filepath.ToSlash(filepath.Clean(p)) == path.Clean(rel) {
		return true
	}
	want, err := filepath.Abs(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return false
	}
	got, err := filepath.Abs(p)
	return err == nil && got == want
}
