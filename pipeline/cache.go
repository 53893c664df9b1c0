package pipeline

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/wippyai/jvm-rewrite/rewrite"
)

// DefaultCacheSize is the number of results kept when incremental
// processing is on and Options.CacheSize is zero.
const DefaultCacheSize = 4096

type cacheEntry struct {
	result *rewrite.Result
	input  []byte
}

// Cache memoises transform results by input content. Entries are keyed by
// the xxhash64 of the input; a hit also requires the stored input to equal
// data, so colliding inputs miss instead of sharing a result.
type Cache struct {
	entries *lru.Cache[uint64, cacheEntry]
	sum     func([]byte) uint64
}

// NewCache creates a cache holding up to size results.
func NewCache(size int) (*Cache, error) {
	entries, err := lru.New[uint64, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries, sum: xxhash.Sum64}, nil
}

// Get returns the stored result for data.
func (c *Cache) Get(data []byte) (*rewrite.Result, bool) {
	e, ok := c.entries.Get(c.sum(data))
	if !ok || !bytes.Equal(e.input, data) {
		return nil, false
	}
	return e.result, true
}

// Add stores the result computed for data. A colliding entry is replaced.
func (c *Cache) Add(data []byte, res *rewrite.Result) {
	c.entries.Add(c.sum(data), cacheEntry{result: res, input: bytes.Clone(data)})
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Purge drops every cached result.
func (c *Cache) Purge() {
	c.entries.Purge()
}
