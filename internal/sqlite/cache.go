package sqlite

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mesh-intelligence/symbols/pkg/types"
)

// SymbolCache is a bounded LRU of current symbol records keyed by id.
//
// Writers call Put or Evict after their transaction commits, while still
// holding the backend write lock. Readers that miss take an Epoch before
// reading the database and Fill only if no writer touched the cache since,
// so a slow reader cannot overwrite a fresher record with the one it read.
// Records are cloned on the way in and out.
type SymbolCache struct {
	mu    sync.Mutex
	epoch uint64
	size  int
	lru   *lru.Cache[string, *types.Symbol]
}

// NewSymbolCache returns a cache holding at most size symbols.
func NewSymbolCache(size int) (*SymbolCache, error) {
	c, err := lru.New[string, *types.Symbol](size)
	if err != nil {
		return nil, fmt.Errorf("create symbol cache: %w", err)
	}
	return &SymbolCache{size: size, lru: c}, nil
}

// Get returns a copy of the cached symbol and marks it most recently used.
func (c *SymbolCache) Get(id string) (*types.Symbol, bool) {
	s, ok := c.lru.Get(id)
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// Epoch returns the current write generation.
func (c *SymbolCache) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Fill stores s if no write happened since epoch was taken. It reports
// whether the record was stored.
func (c *SymbolCache) Fill(s *types.Symbol, epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return false
	}
	c.lru.Add(s.SymbolID, s.Clone())
	return true
}

// Put stores the committed record s.
func (c *SymbolCache) Put(s *types.Symbol) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.lru.Add(s.SymbolID, s.Clone())
}

// Evict removes id.
func (c *SymbolCache) Evict(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.lru.Remove(id)
}

// Purge empties the cache.
func (c *SymbolCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.lru.Purge()
}

// Contains reports whether id is cached without updating recency.
func (c *SymbolCache) Contains(id string) bool { return c.lru.Contains(id) }

// Len returns the number of cached symbols.
func (c *SymbolCache) Len() int { return c.lru.Len() }

// Size returns the capacity.
func (c *SymbolCache) Size() int { return c.size }
