package similarity

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/standardbeagle/lexmatch/internal/types"
)

// CachedIndex memoises query results of an inner Index in a thread-safe
// LRU. Token streams repeat the same words often, and the inner index is
// immutable, so cached results never go stale.
type CachedIndex struct {
	inner Index
	cache *lru.Cache[string, []types.MatchCandidate]
}

// NewCachedIndex wraps inner with an LRU holding up to size query results.
func NewCachedIndex(inner Index, size int) (*CachedIndex, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cache size must be positive, got %d", size)
	}
	cache, err := lru.New[string, []types.MatchCandidate](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}
	return &CachedIndex{inner: inner, cache: cache}, nil
}

// Query returns a copy of the cached result, computing it on a miss.
func (c *CachedIndex) Query(text string) []types.MatchCandidate {
	if cached, ok := c.cache.Get(text); ok {
		return cloneCandidates(cached)
	}
	result := c.inner.Query(text)
	c.cache.Add(text, cloneCandidates(result))
	return result
}

// Len returns the inner index size.
func (c *CachedIndex) Len() int {
	return c.inner.Len()
}

// CachedQueries returns the number of results currently held.
func (c *CachedIndex) CachedQueries() int {
	return c.cache.Len()
}

func cloneCandidates(in []types.MatchCandidate) []types.MatchCandidate {
	out := make([]types.MatchCandidate, len(in))
	copy(out, in)
	return out
}
