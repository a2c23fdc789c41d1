package blockcache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/dgallion1/docresolve/internal/doctree"
)

type memEntry struct {
	tree    doctree.Tree
	expires time.Time
}

// MemoryStore is a size-bounded in-process LRU. A zero ttl never expires.
type MemoryStore struct {
	lru *lru.Cache
	ttl time.Duration
	now func() time.Time
}

// NewMemoryStore holds at most size blocks.
func NewMemoryStore(size int, ttl time.Duration) (*MemoryStore, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("memory store: %w", err)
	}
	return &MemoryStore{lru: c, ttl: ttl, now: time.Now}, nil
}

func (m *MemoryStore) Get(_ context.Context, key string) (doctree.Tree, bool, error) {
	v, ok := m.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	e := v.(memEntry)
	if !e.expires.IsZero() && m.now().After(e.expires) {
		m.lru.Remove(key)
		return nil, false, nil
	}
	return e.tree, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, t doctree.Tree) error {
	e := memEntry{tree: t}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.lru.Add(key, e)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.lru.Remove(k)
	}
	return nil
}

func (m *MemoryStore) Purge(context.Context) error {
	m.lru.Purge()
	return nil
}

// Len reports the number of stored blocks, expired ones included.
func (m *MemoryStore) Len() int { return m.lru.Len() }
