// Package blockcache shares parsed content blocks across requests. At most
// one load-and-parse runs per block at a time; concurrent requests for the
// same block wait for and share its result.
package blockcache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/dgallion1/docresolve/internal/doctree"
)

// Store persists parsed blocks by folded identifier.
type Store interface {
	Get(ctx context.Context, key string) (doctree.Tree, bool, error)
	Set(ctx context.Context, key string, t doctree.Tree) error
	Delete(ctx context.Context, keys ...string) error
	Purge(ctx context.Context) error
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits          int64 `json:"hits"`
	Misses        int64 `json:"misses"`
	Loads         int64 `json:"loads"`
	Shared        int64 `json:"shared"`
	LoadErrors    int64 `json:"load_errors"`
	StoreErrors   int64 `json:"store_errors"`
	Invalidations int64 `json:"invalidations"`
}

// Cache implements resolve.SharedCache over a Store.
type Cache struct {
	store Store
	group singleflight.Group
	log   *slog.Logger

	mu    sync.Mutex
	gen   map[string]uint64
	epoch uint64

	hits, misses, loads, shared  atomic.Int64
	loadErrs, storeErrs, invalid atomic.Int64
}

// New returns a cache backed by store.
func New(store Store, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{store: store, log: log, gen: make(map[string]uint64)}
}

type version struct {
	epoch, gen uint64
}

func (c *Cache) version(key string) version {
	c.mu.Lock()
	defer c.mu.Unlock()
	return version{epoch: c.epoch, gen: c.gen[key]}
}

// Fetch returns the cached block for id or runs load once for all
// concurrent callers. Failed loads are not cached. The load runs detached
// from any single caller's cancellation; each caller stops waiting when its
// own ctx is done.
func (c *Cache) Fetch(ctx context.Context, id string, load func(context.Context) (doctree.Tree, error)) (doctree.Tree, error) {
	key := doctree.FoldKey(id)
	if key == "" {
		return load(ctx)
	}

	t, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.storeErrs.Add(1)
		c.log.Warn("block cache read failed", "id", id, "error", err)
	} else if ok {
		c.hits.Add(1)
		return t, nil
	}
	c.misses.Add(1)

	flight := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		v := c.version(key)
		// A flight that finished between our miss and joining has stored it.
		if t, ok, err := c.store.Get(flight, key); err == nil && ok {
			c.hits.Add(1)
			return t, nil
		}
		c.loads.Add(1)
		t, err := load(flight)
		if err != nil {
			c.loadErrs.Add(1)
			return nil, err
		}
		c.mu.Lock()
		current := v == version{epoch: c.epoch, gen: c.gen[key]}
		c.mu.Unlock()
		if !current {
			c.log.Debug("block invalidated during load, not stored", "id", id)
			return t, nil
		}
		if err := c.store.Set(flight, key, t); err != nil {
			c.storeErrs.Add(1)
			c.log.Warn("block cache write failed", "id", id, "error", err)
		}
		return t, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			c.shared.Add(1)
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(doctree.Tree), nil
	}
}

// Invalidate drops the given identifiers. A load in flight for one of them
// still answers its waiters but is not stored.
func (c *Cache) Invalidate(ctx context.Context, ids ...string) error {
	keys := make([]string, 0, len(ids))
	c.mu.Lock()
	for _, id := range ids {
		key := doctree.FoldKey(id)
		if key == "" {
			continue
		}
		c.gen[key]++
		keys = append(keys, key)
	}
	c.mu.Unlock()
	if len(keys) == 0 {
		return nil
	}
	for _, key := range keys {
		c.group.Forget(key)
	}
	c.invalid.Add(int64(len(keys)))
	if err := c.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("invalidate blocks: %w", err)
	}
	return nil
}

// Purge drops every cached block.
func (c *Cache) Purge(ctx context.Context) error {
	c.mu.Lock()
	c.epoch++
	c.gen = make(map[string]uint64)
	c.mu.Unlock()
	c.invalid.Add(1)
	if err := c.store.Purge(ctx); err != nil {
		return fmt.Errorf("purge blocks: %w", err)
	}
	return nil
}

// Stats returns current counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Loads:         c.loads.Load(),
		Shared:        c.shared.Load(),
		LoadErrors:    c.loadErrs.Load(),
		StoreErrors:   c.storeErrs.Load(),
		Invalidations: c.invalid.Load(),
	}
}
