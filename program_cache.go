package scenes

import "sync"

const defaultProgramCacheSize = 256

// ProgramCache stores compiled query programs keyed by query strings.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// memoryProgramCache keeps at most limit programs, evicting the oldest entry.
type memoryProgramCache struct {
	mu      sync.Mutex
	limit   int
	order   []string
	entries map[string]any
}

// NewMemoryProgramCache returns a ProgramCache bounded to limit entries. A
// limit <= 0 means unbounded.
func NewMemoryProgramCache(limit int) ProgramCache {
	return &memoryProgramCache{limit: limit, entries: make(map[string]any)}
}

func (c *memoryProgramCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.entries[key]
	return value, ok
}

func (c *memoryProgramCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		c.order = append(c.order, key)
	}
	c.entries[key] = value
	for c.limit > 0 && len(c.order) > c.limit {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}
