package blockcache

import (
	"context"
	"fmt"
	"time"

	"github.com/dgallion1/docresolve/internal/doctree"
	"github.com/dgallion1/docresolve/internal/pathstore"
)

// pathstoreAPI is the subset of pathstore.Client the store uses.
type pathstoreAPI interface {
	PutNode(ctx context.Context, key string, req pathstore.NodeRequest) error
	GetNode(ctx context.Context, key string) (*pathstore.NodeResponse, error)
	DeleteNode(ctx context.Context, key string, recursive bool) error
}

// PathstoreStore keeps serialized blocks in a pathstore namespace.
type PathstoreStore struct {
	client pathstoreAPI
	root   string
	ttl    time.Duration
	now    func() time.Time
}

// NewPathstoreStore writes blocks under root, e.g. "docresolve/blocks".
func NewPathstoreStore(client pathstoreAPI, root string, ttl time.Duration) *PathstoreStore {
	if root == "" {
		root = "docresolve/blocks"
	}
	return &PathstoreStore{client: client, root: root, ttl: ttl, now: time.Now}
}

func (s *PathstoreStore) path(key string) string { return s.root + "/" + key }

func (s *PathstoreStore) Get(ctx context.Context, key string) (doctree.Tree, bool, error) {
	node, err := s.client.GetNode(ctx, s.path(key))
	if err != nil {
		return nil, false, err
	}
	if node == nil || len(node.Value) == 0 {
		return nil, false, nil
	}
	if node.ExpiresAt != "" {
		if exp, err := time.Parse(time.RFC3339, node.ExpiresAt); err == nil && s.now().After(exp) {
			return nil, false, nil
		}
	}
	t, err := doctree.Decode(node.Value)
	if err != nil {
		return nil, false, fmt.Errorf("pathstore %s: %w", key, err)
	}
	return t, true, nil
}

func (s *PathstoreStore) Set(ctx context.Context, key string, t doctree.Tree) error {
	data, err := doctree.Encode(t)
	if err != nil {
		return err
	}
	req := pathstore.NodeRequest{Value: data, Source: "docresolve"}
	if s.ttl > 0 {
		req.ExpiresAt = s.now().Add(s.ttl).UTC().Format(time.RFC3339)
	}
	return s.client.PutNode(ctx, s.path(key), req)
}

func (s *PathstoreStore) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		if err := s.client.DeleteNode(ctx, s.path(k), false); err != nil {
			return err
		}
	}
	return nil
}

func (s *PathstoreStore) Purge(ctx context.Context) error {
	return s.client.DeleteNode(ctx, s.root, true)
}
