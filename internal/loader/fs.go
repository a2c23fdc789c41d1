// Package loader supplies content blocks to the resolver from a directory
// tree or an S3 bucket.
package loader

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dgallion1/docresolve/internal/docerr"
	"github.com/dgallion1/docresolve/internal/doctree"
	"github.com/dgallion1/docresolve/internal/parser"
)

// SearchDirs are the conventional locations of content blocks under a
// content root. An identifier is also looked up relative to each of them.
var SearchDirs = []string{
	"templates",
	"Common/Content Blocks",
	"templates/Common/Content Blocks",
	"templates/Content Blocks",
	"Content Blocks",
	"Documents",
	"Samples/templates",
}

// Block is one indexed document.
type Block struct {
	ID   string `json:"id"`
	Path string `json:"path"`
}

// FSLoader loads blocks from files under a root directory. Lookups are
// case-insensitive.
type FSLoader struct {
	root    string
	aliases Aliases
	opts    parser.Options
	log     *slog.Logger

	mu    sync.RWMutex
	index map[string]string // fold key -> relative path
	files []string          // relative slash paths, sorted
}

// FSOption configures an FSLoader.
type FSOption func(*FSLoader)

func WithAliases(a Aliases) FSOption {
	return func(l *FSLoader) {
		if a != nil {
			l.aliases = a
		}
	}
}

func WithParserOptions(o parser.Options) FSOption {
	return func(l *FSLoader) { l.opts = o }
}

func WithLogger(log *slog.Logger) FSOption {
	return func(l *FSLoader) {
		if log != nil {
			l.log = log
		}
	}
}

// NewFS indexes root and returns a loader for it.
func NewFS(root string, opts ...FSOption) (*FSLoader, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("content root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("content root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content root %s is not a directory", abs)
	}

	l := &FSLoader{
		root:    abs,
		aliases: DefaultAliases(),
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	if err := l.Reindex(); err != nil {
		return nil, err
	}
	return l, nil
}

// Root returns the absolute content root.
func (l *FSLoader) Root() string { return l.root }

// Reindex rescans the content root.
func (l *FSLoader) Reindex() error {
	var files []string
	err := filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if p != l.root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") || !parser.IsSupportedExtension(name) {
			return nil
		}
		rel, err := filepath.Rel(l.root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return fmt.Errorf("index %s: %w", l.root, err)
	}
	sort.Strings(files)

	index := make(map[string]string, len(files)*2)
	add := func(key, rel string) {
		if key == "" {
			return
		}
		if _, taken := index[key]; !taken {
			index[key] = rel
		}
	}
	// Full paths first so they are never shadowed by a shorter form.
	for _, rel := range files {
		add(doctree.FoldKey(rel), rel)
	}
	for _, rel := range files {
		for _, dir := range SearchDirs {
			if trimmed, ok := strings.CutPrefix(rel, dir+"/"); ok {
				add(doctree.FoldKey(trimmed), rel)
			}
		}
	}
	for _, rel := range files {
		add(doctree.FoldKey(path.Base(rel)), rel)
	}

	l.mu.Lock()
	l.index = index
	l.files = files
	l.mu.Unlock()

	l.log.Debug("content root indexed", "root", l.root, "files", len(files))
	return nil
}

// Lookup returns the relative path that id resolves to. It tries the alias
// map, then the index, then any file whose name contains the identifier.
func (l *FSLoader) Lookup(id string) (string, bool) {
	key := doctree.FoldKey(id)
	if key == "" {
		return "", false
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, candidate := range l.aliases[key] {
		if rel, ok := l.index[doctree.FoldKey(candidate)]; ok {
			return rel, true
		}
	}
	if rel, ok := l.index[key]; ok {
		return rel, true
	}
	if strings.Contains(key, "/") {
		return "", false
	}
	for _, rel := range l.files {
		if strings.Contains(doctree.FoldKey(path.Base(rel)), key) {
			return rel, true
		}
	}
	return "", false
}

// Load reads and extracts the block for id. The returned tree is raw; the
// resolver structure-parses it.
func (l *FSLoader) Load(ctx context.Context, id string) (doctree.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rel, ok := l.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("content block %q: %w", id, docerr.ErrNotFound)
	}

	full := filepath.Join(l.root, filepath.FromSlash(rel))
	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("content block %q (%s): %w", id, rel, docerr.ErrNotFound)
		}
		return nil, fmt.Errorf("open %s: %w", rel, err)
	}
	defer f.Close()

	p, err := parser.ForFileWith(rel, l.opts)
	if err != nil {
		return nil, err
	}
	doc, err := p.Parse(f, path.Base(rel))
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", rel, err)
	}
	l.log.Debug("content block loaded", "id", id, "path", rel, "nodes", len(doc.Body))
	return doc.Body, nil
}

// Blocks lists every indexed document.
func (l *FSLoader) Blocks() []Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Block, 0, len(l.files))
	for _, rel := range l.files {
		out = append(out, Block{ID: doctree.CanonicalID(rel), Path: rel})
	}
	return out
}

// IDsFor returns the identifiers that currently resolve to rel through the
// index or the alias map.
func (l *FSLoader) IDsFor(rel string) []string {
	rel = filepath.ToSlash(rel)
	l.mu.RLock()
	defer l.mu.RUnlock()

	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for key, target := range l.index {
		if target == rel {
			add(key)
		}
	}
	relKey := doctree.FoldKey(rel)
	for name, candidates := range l.aliases {
		for _, c := range candidates {
			if doctree.FoldKey(c) == relKey {
				add(name)
			}
		}
	}
	sort.Strings(ids)
	return ids
}
