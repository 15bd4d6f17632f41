// Package digest provides a single stable content-hash used as a cache key
// across the archive facade.
package digest

import "github.com/cespare/xxhash/v2"

// Sum returns the xxhash64 digest of b. Callers that need a string cache
// key format it themselves, e.g. fmt.Sprintf("%016x", Sum(b)).
func Sum(b []byte) uint64 {
	return xxhash.Sum64(b)
}
