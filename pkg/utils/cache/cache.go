package cache

import (
	"context"
	"errors"
	"sync"
)

var ErrCacheMiss = errors.New("cache miss")

type Cache[K comparable, V any] interface {
	Get(ctx context.Context, key K) (*V, error)
	Invalidate(ctx context.Context, key K)
}

// LoaderCache fills misses via the supplied loader and keeps entries until
// invalidated. Used for immutable reference data (car specifications).
type LoaderCache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]*V
	loader  func(ctx context.Context, key K) (*V, error)
}

var _ Cache[string, string] = (*LoaderCache[string, string])(nil)

//nolint:whitespace // can't make both editor and linter happy
func NewLoaderCache[K comparable, V any](
	loader func(ctx context.Context, key K) (*V, error),
) *LoaderCache[K, V] {
	return &LoaderCache[K, V]{
		entries: make(map[K]*V),
		loader:  loader,
	}
}

func (c *LoaderCache[K, V]) Get(ctx context.Context, key K) (*V, error) {
	c.mu.RLock()
	if v, ok := c.entries[key]; ok {
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	v, err := c.loader(ctx, key)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrCacheMiss
	}
	c.mu.Lock()
	c.entries[key] = v
	c.mu.Unlock()
	return v, nil
}

func (c *LoaderCache[K, V]) Invalidate(_ context.Context, key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
