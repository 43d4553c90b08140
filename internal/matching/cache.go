package matching

import (
	"sync"

	"github.com/desertthunder/aether/internal/models"
)

// SearchCache memoizes search results by exact query string.
//
// One cache is owned by each pipeline instance and lives for a single mission; it never evicts.
type SearchCache struct {
	mu      sync.RWMutex
	entries map[string][]models.Candidate
}

// NewSearchCache creates an empty [SearchCache].
func NewSearchCache() *SearchCache {
	return &SearchCache{entries: make(map[string][]models.Candidate)}
}

// Get returns a copy of the cached results for query.
func (c *SearchCache) Get(query string) ([]models.Candidate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	results, ok := c.entries[query]
	if !ok {
		return nil, false
	}
	return append([]models.Candidate(nil), results...), true
}

// Put stores results for query, replacing any previous entry.
func (c *SearchCache) Put(query string, results []models.Candidate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[query] = append([]models.Candidate(nil), results...)
}

// Len returns the number of cached queries.
func (c *SearchCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
