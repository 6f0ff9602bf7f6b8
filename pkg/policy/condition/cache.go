package condition

import (
	"regexp"
	"sync"
)

// RegexCache caches compiled regular expressions keyed by pattern.
// Policies are immutable per version, so a pattern string identifies a
// compiled program for the lifetime of that version; the store bumps the
// version (and hence the pattern set) on every update.
type RegexCache struct {
	mu       sync.RWMutex
	compiled map[string]*regexp.Regexp
}

// NewRegexCache creates an empty regex cache.
func NewRegexCache() *RegexCache {
	return &RegexCache{compiled: make(map[string]*regexp.Regexp)}
}

// Get returns the compiled regex for pattern, compiling and caching it
// on first use.
func (c *RegexCache) Get(pattern string) (*regexp.Regexp, error) {
	c.mu.RLock()
	re, ok := c.compiled[pattern]
	c.mu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.compiled[pattern] = re
	c.mu.Unlock()
	return re, nil
}

// Len returns the number of cached patterns.
func (c *RegexCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.compiled)
}
