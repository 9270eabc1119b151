package blobstore

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// CachingStore wraps a Store with a read-through, whole-blob memory cache.
// Snapshots are immutable, so entries are only invalidated when the same
// name is overwritten or deleted.
type CachingStore struct {
	inner Store

	mu      sync.RWMutex
	entries map[string][]byte
}

// NewCachingStore creates a new CachingStore around inner.
func NewCachingStore(inner Store) *CachingStore {
	return &CachingStore{
		inner:   inner,
		entries: make(map[string][]byte),
	}
}

// Put writes through to the inner store and invalidates the cached entry.
func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.invalidate(name)
	return s.inner.Put(ctx, name, data)
}

// Open serves the blob from cache when present, otherwise reads it from
// the inner store and caches it.
func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	s.mu.RLock()
	data, ok := s.entries[name]
	s.mu.RUnlock()

	if !ok {
		var err error
		data, err = ReadAll(ctx, s.inner, name)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.entries[name] = data
		s.mu.Unlock()
	}

	return &memoryBlob{Reader: bytes.NewReader(data), size: int64(len(data))}, nil
}

// Delete removes the blob from the inner store and the cache.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.invalidate(name)
	return s.inner.Delete(ctx, name)
}

// List passes through to the inner store.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// Warm prefetches all blobs with the given prefix into the cache,
// fetching concurrently.
func (s *CachingStore) Warm(ctx context.Context, prefix string, concurrency int) error {
	names, err := s.inner.List(ctx, prefix)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}

	for _, name := range names {
		g.Go(func() error {
			blob, err := s.Open(ctx, name)
			if err != nil {
				return err
			}
			return blob.Close()
		})
	}
	return g.Wait()
}

// Evict drops cached entries with the given prefix.
func (s *CachingStore) Evict(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name := range s.entries {
		if strings.HasPrefix(name, prefix) {
			delete(s.entries, name)
		}
	}
}

func (s *CachingStore) invalidate(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, name)
}

var _ Store = (*CachingStore)(nil)
