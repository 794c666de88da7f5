package format

import "flatcodec/internal/cache"

// Cache keeps the two most recently constructed formatters of a session.
// Line schemas typically alternate between at most two live formats.
type Cache struct {
	items cache.TwoItems[Key, Formatter]
	built int
}

func NewCache() *Cache { return &Cache{} }

// Acquire returns the cached formatter for k or constructs and caches a new one.
func (c *Cache) Acquire(k Key) (Formatter, error) {
	return c.items.GetOrLoad(k, func(k Key) (Formatter, error) {
		c.built++
		return New(k)
	})
}

// Len returns the number of resident formatters.
func (c *Cache) Len() int { return c.items.Len() }

// Constructed returns how many formatters the cache has built so far.
func (c *Cache) Constructed() int { return c.built }
