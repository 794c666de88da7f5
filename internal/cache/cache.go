package cache

// TwoItems holds at most two entries: the newest insert and the one before
// it. Inserting a third key evicts the oldest. Lookups never reorder entries.
//
// It is not safe for concurrent use; every parse or compose session owns
// its own instance.
type TwoItems[K comparable, V any] struct {
	newKey   K
	newValue V
	oldKey   K
	oldValue V
	size     int
}

// Get retrieves a cached value. Returns the zero value and false if not found.
func (c *TwoItems[K, V]) Get(key K) (V, bool) {
	if c.size > 0 && c.newKey == key {
		return c.newValue, true
	}
	if c.size > 1 && c.oldKey == key {
		return c.oldValue, true
	}
	var zero V
	return zero, false
}

// Put stores a value as the newest entry, shifting the previous newest into
// the old slot.
func (c *TwoItems[K, V]) Put(key K, value V) {
	if c.size > 0 && c.newKey == key {
		c.newValue = value
		return
	}
	c.oldKey, c.oldValue = c.newKey, c.newValue
	c.newKey, c.newValue = key, value
	if c.size < 2 {
		c.size++
	}
}

// Len returns the number of resident entries, never more than two.
func (c *TwoItems[K, V]) Len() int { return c.size }

// GetOrLoad returns the cached value for key, calling load and caching its
// result on a miss. Failed loads are not cached.
func (c *TwoItems[K, V]) GetOrLoad(key K, load func(K) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load(key)
	if err != nil {
		return v, err
	}
	c.Put(key, v)
	return v, nil
}
