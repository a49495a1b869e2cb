package relaypool

import (
	"container/list"
	"sync"
)

// dedupCache is a bounded LRU of recently observed event ids. It is a
// fast-path optimization only: spec.md §4.2 is explicit that the Store's
// uniqueness constraint is authoritative, so a false negative here (evicted
// entry, event reappears) is corrected downstream by the router's own
// per-tenant uniqueness check rather than causing duplicate delivery.
type dedupCache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[string]*list.Element
}

func newDedupCache(capacity int) *dedupCache {
	return &dedupCache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

// SeenRecently reports whether id was already recorded, and records it if
// not, in one locked step.
func (c *dedupCache) SeenRecently(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[id]; ok {
		c.ll.MoveToFront(el)
		return true
	}

	el := c.ll.PushFront(id)
	c.items[id] = el

	if c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(string))
		}
	}
	return false
}

// Len returns the number of entries currently cached, used by tests and
// diagnostics endpoints.
func (c *dedupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
