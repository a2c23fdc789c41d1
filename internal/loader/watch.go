package loader

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/dgallion1/docresolve/internal/parser"
)

// Change reports edited content. All is set when files were created, removed
// or renamed, since that can change what any identifier resolves to.
type Change struct {
	IDs []string
	All bool
}

// Watcher keeps an FSLoader's index current and reports changes so that
// cached blocks can be invalidated.
type Watcher struct {
	l      *FSLoader
	w      *fsnotify.Watcher
	notify func(Change)
}

// NewWatcher watches every directory under l's root.
func NewWatcher(l *FSLoader, notify func(Change)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{l: l, w: fw, notify: notify}
	if err := w.addTree(l.root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.l.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.w.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}

// Run processes events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.w.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.w.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.w.Errors:
			if !ok {
				return nil
			}
			w.l.log.Warn("content watcher error", "error", err)
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error { return w.w.Close() }

func (w *Watcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.l.root, ev.Name)
	if err != nil || strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return
	}
	rel = filepath.ToSlash(rel)
	log := w.l.log.With("path", rel, "op", ev.Op.String())

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				log.Warn("watch new directory", "error", err)
			}
			w.reindex(log, nil)
			return
		}
	}

	supported := parser.IsSupportedExtension(rel)
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		// A removed directory has no extension; it still changes the index.
		if !supported && filepath.Ext(rel) != "" {
			return
		}
		w.reindex(log, w.l.IDsFor(rel))
	case ev.Has(fsnotify.Write):
		if !supported {
			return
		}
		ids := w.l.IDsFor(rel)
		log.Info("content block changed", "ids", ids)
		w.emit(Change{IDs: ids})
	}
}

func (w *Watcher) reindex(log *slog.Logger, before []string) {
	if err := w.l.Reindex(); err != nil {
		log.Warn("reindex content root", "error", err)
	}
	w.emit(Change{IDs: before, All: true})
}

func (w *Watcher) emit(c Change) {
	if w.notify != nil {
		w.notify(c)
	}
}
