package protocol

import "container/list"

// lruCache bounds the number of named prepared statements a Conn keeps
// live, evicting the least recently used entry (§4.6 "cache eviction") when
// a new statement would exceed the limit. The unnamed statement never
// passes through this cache: it is re-Parsed on every use and has no name
// to evict.
type lruCache struct {
	capacity int
	ll       *list.List
	items    map[string]*list.Element
}

type lruEntry struct {
	name string
	stmt *PreparedStatement
}

func newLRUCache(capacity int) *lruCache {
	return &lruCache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Get returns the statement cached under name and marks it most recently
// used.
func (c *lruCache) Get(name string) (*PreparedStatement, bool) {
	el, ok := c.items[name]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*lruEntry).stmt, true
}

// Put installs stmt under name, evicting the least recently used entry if
// the cache is full. It returns the evicted statement, if any, so the
// caller can best-effort send it a Close Statement.
func (c *lruCache) Put(name string, stmt *PreparedStatement) (evicted *PreparedStatement) {
	if el, ok := c.items[name]; ok {
		c.ll.MoveToFront(el)
		el.Value.(*lruEntry).stmt = stmt
		return nil
	}
	el := c.ll.PushFront(&lruEntry{name: name, stmt: stmt})
	c.items[name] = el
	if c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			ev := oldest.Value.(*lruEntry)
			delete(c.items, ev.name)
			evicted = ev.stmt
		}
	}
	return evicted
}

// Remove drops name from the cache without regard for LRU order.
func (c *lruCache) Remove(name string) {
	if el, ok := c.items[name]; ok {
		c.ll.Remove(el)
		delete(c.items, name)
	}
}

func (c *lruCache) Len() int { return c.ll.Len() }
