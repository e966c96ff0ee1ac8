package session

import (
	"context"

	lru "github.com/hashicorp/golang-lru"
)

// CachedStore wraps a Store with a bounded LRU cache over Meta lookups.
// Only the immutable identity fields (owner, story) are served from cache;
// the status field and every other operation always hit the backing store,
// which stays the sole source of truth.
type CachedStore struct {
	Store
	meta *lru.Cache
}

// NewCachedStore wraps store with a metadata cache of the given size.
func NewCachedStore(store Store, size int) (*CachedStore, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &CachedStore{Store: store, meta: cache}, nil
}

// Meta serves owner and story from cache when possible. Status is refreshed
// from the backing store only on a miss, so callers that branch on status
// must treat it as advisory; the gateway only needs owner identity here.
func (s *CachedStore) Meta(ctx context.Context, key string) (Meta, error) {
	if cached, ok := s.meta.Get(key); ok {
		return cached.(Meta), nil
	}

	meta, err := s.Store.Meta(ctx, key)
	if err != nil {
		return Meta{}, err
	}
	s.meta.Add(key, meta)
	return meta, nil
}

// MarkDone flips the status and drops the stale cache entry.
func (s *CachedStore) MarkDone(ctx context.Context, key string) error {
	if err := s.Store.MarkDone(ctx, key); err != nil {
		return err
	}
	s.meta.Remove(key)
	return nil
}
