// Package blockcache memoizes whole-buffer DEFLATE decompressions keyed by
// the digest of their compressed input, so repeated decodes of the same
// bytes skip the Huffman decode entirely.
package blockcache

import (
	"context"
	"fmt"

	"github.com/allegro/bigcache/v3"
)

// Cache wraps a bigcache instance sized for modest in-process reuse, not a
// durable store: entries are evicted under memory pressure and a process
// restart starts cold.
type Cache struct {
	bc *bigcache.BigCache
}

// New builds a Cache with a fixed shard count and size cap, the same shape
// as the teacher repo's single shared decompression cache.
func New() (*Cache, error) {
	bc, err := bigcache.New(context.Background(), bigcache.Config{
		HardMaxCacheSize: 256, // megabytes
		Shards:           1024,
		MaxEntrySize:     512,
	})
	if err != nil {
		return nil, fmt.Errorf("blockcache: %w", err)
	}
	return &Cache{bc: bc}, nil
}

// Get returns the cached value for key, if present.
func (c *Cache) Get(key string) ([]byte, bool) {
	v, err := c.bc.Get(key)
	if err != nil {
		return nil, false
	}
	return v, true
}

// Set stores v under key, overwriting any previous value.
func (c *Cache) Set(key string, v []byte) {
	// bigcache copies the bytes it is given, so callers may reuse v.
	_ = c.bc.Set(key, v)
}
