package loader

import (
	"context"
	"errors"

	"github.com/dgallion1/docresolve/internal/docerr"
	"github.com/dgallion1/docresolve/internal/doctree"
	"github.com/dgallion1/docresolve/internal/resolve"
)

// Relaxed wraps l so that a missing block resolves to a single
// UnresolvedReference node instead of failing the request. Other errors
// pass through.
func Relaxed(l resolve.Loader) resolve.Loader {
	return resolve.LoaderFunc(func(ctx context.Context, id string) (doctree.Tree, error) {
		t, err := l.Load(ctx, id)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, docerr.ErrNotFound) {
			return nil, err
		}
		return doctree.Tree{doctree.UnresolvedReference{ID: id, Reason: err.Error()}}, nil
	})
}
