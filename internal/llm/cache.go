// File path: internal/llm/cache.go
package llm

import (
	"container/list"
	"fmt"
	"sync"
)

// Factory builds a provider for a model configuration.
type Factory func(ModelConfig) (Provider, error)

type cacheEntry struct {
	key      string
	provider Provider
}

// Cache keeps constructed model clients keyed by the canonical hash of
// their configuration, with least-recently-used eviction. One Cache is
// created at startup and passed by reference to the orchestrator; there is
// no ambient global.
type Cache struct {
	mu       sync.Mutex
	capacity int
	factory  Factory
	items    map[string]*list.Element
	ll       *list.List
}

func NewCache(size int, factory Factory) (*Cache, error) {
	if factory == nil {
		return nil, fmt.Errorf("provider factory required")
	}
	if size <= 0 {
		size = 4
	}
	return &Cache{
		capacity: size,
		factory:  factory,
		items:    make(map[string]*list.Element, size),
		ll:       list.New(),
	}, nil
}

// Provider returns the cached client for the configuration, constructing
// and caching it on first use.
func (c *Cache) Provider(cfg ModelConfig) (Provider, error) {
	key := cfg.CacheKey()
	c.mu.Lock()
	if elem, ok := c.items[key]; ok {
		c.ll.MoveToFront(elem)
		entry := elem.Value.(cacheEntry)
		c.mu.Unlock()
		return entry.provider, nil
	}
	c.mu.Unlock()

	provider, err := c.factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("build provider: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.ll.MoveToFront(elem)
		return elem.Value.(cacheEntry).provider, nil
	}
	elem := c.ll.PushFront(cacheEntry{key: key, provider: provider})
	c.items[key] = elem
	if c.ll.Len() > c.capacity {
		tail := c.ll.Back()
		if tail != nil {
			c.ll.Remove(tail)
			delete(c.items, tail.Value.(cacheEntry).key)
		}
	}
	return provider, nil
}

// Len reports how many clients are currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Purge drops every cached client.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element, c.capacity)
	c.ll = list.New()
}
