package cache

import (
	"container/list"
	"sync"

	"github.com/hrygo/synapse/plugin/ai"
)

// DefaultCapacity is the default number of cached embeddings.
const DefaultCapacity = 1000

// EmbeddingCache is a bounded in-memory embedding cache with oldest-first
// eviction. Lookups do not change eviction order.
//
// All inserts and evictions happen under a single mutex, so a key is stored at
// most once and the insertion order is never corrupted by concurrent writers.
type EmbeddingCache struct {
	capacity int
	mu       sync.Mutex

	entries map[string]*entry
	order   *list.List // front = newest, back = oldest
}

type entry struct {
	key     string
	value   ai.TextEmbedding
	element *list.Element
}

// NewEmbeddingCache creates a new cache holding at most capacity entries.
func NewEmbeddingCache(capacity int) *EmbeddingCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &EmbeddingCache{
		capacity: capacity,
		entries:  make(map[string]*entry),
		order:    list.New(),
	}
}

// Get retrieves an embedding by normalized key.
func (c *EmbeddingCache) Get(key string) (ai.TextEmbedding, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return ai.TextEmbedding{}, false
	}
	return e.value, true
}

// Set stores an embedding. Replacing an existing key keeps its position in the
// eviction order. Inserting a new key into a full cache evicts exactly one
// oldest entry.
func (c *EmbeddingCache) Set(key string, value ai.TextEmbedding) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		return
	}

	if len(c.entries) >= c.capacity {
		c.evictOldest()
	}

	e := &entry{key: key, value: value}
	e.element = c.order.PushFront(e)
	c.entries[key] = e
}

// Delete removes a key. Returns true if it was present.
func (c *EmbeddingCache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	c.removeEntry(e)
	return true
}

// Len returns the number of entries in the cache.
func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Capacity returns the maximum number of entries.
func (c *EmbeddingCache) Capacity() int {
	return c.capacity
}

// Clear removes all entries from the cache.
func (c *EmbeddingCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.order.Init()
}

// evictOldest removes the oldest inserted entry.
// Must be called with lock held.
func (c *EmbeddingCache) evictOldest() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	c.removeEntry(oldest.Value.(*entry))
}

// removeEntry removes an entry from the cache.
// Must be called with lock held.
func (c *EmbeddingCache) removeEntry(e *entry) {
	c.order.Remove(e.element)
	delete(c.entries, e.key)
}
