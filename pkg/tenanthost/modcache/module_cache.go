// Package modcache caches compiled Wasm modules within the scope of a
// single tenant reload, keyed by the content hash of the module's
// bytes, so that two blobs with identical contents are compiled once.
//
// A wazero.CompiledModule is owned by the wazero.Runtime that produced
// it and cannot be reused across runtimes. Since every tenant reload
// here builds a fresh wazero.Runtime (so that the previous reload's
// instances keep running undisturbed for any in-flight call), this
// cache's lifetime is scoped to one reload rather than surviving across
// reloads.
package modcache

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
)

// Cache deduplicates compiled modules by content hash within one
// reload pass.
type Cache struct {
	modules  map[string]wazero.CompiledModule
	mu       sync.RWMutex
	capacity int
	logger   *zap.Logger
}

// New returns an empty Cache bounded at capacity entries.
func New(capacity int, logger *zap.Logger) *Cache {
	return &Cache{
		modules:  make(map[string]wazero.CompiledModule),
		capacity: capacity,
		logger:   logger,
	}
}

// Get retrieves a compiled module by content hash.
func (c *Cache) Get(hash string) (wazero.CompiledModule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.modules[hash]
	return m, ok
}

// GetOrCompute returns the cached module for hash, or runs compute and
// caches its result. compute runs without the lock held.
func (c *Cache) GetOrCompute(hash string, compute func() (wazero.CompiledModule, error)) (wazero.CompiledModule, error) {
	c.mu.RLock()
	if m, ok := c.modules[hash]; ok {
		c.mu.RUnlock()
		return m, nil
	}
	c.mu.RUnlock()

	m, err := compute()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.modules[hash]; ok {
		_ = m.Close(context.Background())
		return existing, nil
	}
	if len(c.modules) >= c.capacity {
		c.evictOldest()
	}
	c.modules[hash] = m
	c.logger.Debug("module compiled and cached", zap.String("hash", hash), zap.Int("cache_size", len(c.modules)))
	return m, nil
}

// Size reports the number of cached modules.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.modules)
}

// evictOldest drops one arbitrary entry. Must be called with mu held.
func (c *Cache) evictOldest() {
	for hash, m := range c.modules {
		_ = m.Close(context.Background())
		delete(c.modules, hash)
		c.logger.Debug("evicted module from cache", zap.String("hash", hash))
		break
	}
}
