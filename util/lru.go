package util

import (
	"container/list"
	"sync"
)

// LRU is a least recently used cache bounded by the total weight of its
// values. Values heavier than the capacity are not stored, so a cache with zero
// capacity stores nothing.
type LRU[K comparable, V any] struct {
	mtx      *sync.Mutex
	items    map[K]*list.Element
	order    *list.List
	weigh    func(V) int64
	weight   int64
	capacity int64

	hits   int64
	misses int64
}

type lruItem[K comparable, V any] struct {
	key    K
	value  V
	weight int64
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits    int64
	Misses  int64
	Entries int
	Weight  int64
}

// NewLRU returns a cache holding at most capacity units of weight. A nil
// weigh counts every value as one unit.
func NewLRU[K comparable, V any](capacity int64, weigh func(V) int64) *LRU[K, V] {
	if weigh == nil {
		weigh = func(V) int64 { return 1 }
	}
	return &LRU[K, V]{
		mtx:      &sync.Mutex{},
		items:    make(map[K]*list.Element),
		order:    list.New(),
		weigh:    weigh,
		capacity: capacity,
	}
}

// Put stores value under key as the most recently used item, evicting the
// least recently used items until the cache fits.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	w := c.weigh(value)
	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
	if w > c.capacity {
		return
	}
	c.items[key] = c.order.PushFront(&lruItem[K, V]{key: key, value: value, weight: w})
	c.weight += w
	for c.weight > c.capacity {
		c.remove(c.order.Back())
	}
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	elem, ok := c.items[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.order.MoveToFront(elem)
	return elem.Value.(*lruItem[K, V]).value, true
}

// Delete removes key from the cache.
func (c *LRU[K, V]) Delete(key K) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
}

// Keys returns the cached keys from most to least recently used.
func (c *LRU[K, V]) Keys() []K {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	keys := make([]K, 0, len(c.items))
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*lruItem[K, V]).key)
	}
	return keys
}

// Stats returns a snapshot of the cache counters.
func (c *LRU[K, V]) Stats() CacheStats {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return CacheStats{
		Hits:    c.hits,
		Misses:  c.misses,
		Entries: len(c.items),
		Weight:  c.weight,
	}
}

func (c *LRU[K, V]) remove(elem *list.Element) {
	item := c.order.Remove(elem).(*lruItem[K, V])
	delete(c.items, item.key)
	c.weight -= item.weight
}
