package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache is a bounded map whose entries also expire after a fixed TTL.
// The front of the list is the most recently touched entry.
type LRUCache[T any] struct {
	mu    sync.Mutex
	limit int
	ttl   time.Duration
	index map[string]*list.Element
	order *list.List
	now   func() time.Time
}

type lruEntry[T any] struct {
	key     string
	value   T
	expires time.Time
}

func NewLRUCache[T any](limit int, ttl time.Duration) *LRUCache[T] {
	if limit < 1 {
		limit = 1
	}
	return &LRUCache[T]{
		limit: limit,
		ttl:   ttl,
		index: make(map[string]*list.Element, limit),
		order: list.New(),
		now:   time.Now,
	}
}

// Get returns a live value and marks it as recently used. Expired values
// are dropped on access.
func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	el, ok := c.index[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*lruEntry[T])
	if !c.now().Before(e.expires) {
		c.drop(el)
		return zero, false
	}
	c.order.MoveToFront(el)
	return e.value, true
}

// Set stores value under key, evicting the least recently used entry once
// the limit is exceeded.
func (c *LRUCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &lruEntry[T]{key: key, value: value, expires: c.now().Add(c.ttl)}
	if el, ok := c.index[key]; ok {
		el.Value = e
		c.order.MoveToFront(el)
		return
	}
	c.index[key] = c.order.PushFront(e)
	for c.order.Len() > c.limit {
		c.drop(c.order.Back())
	}
}

// DeleteFunc drops every entry whose key matches and reports how many.
func (c *LRUCache[T]) DeleteFunc(match func(key string) bool) int {
	return c.prune(func(e *lruEntry[T]) bool { return match(e.key) })
}

// CleanExpired drops every expired entry and reports how many.
func (c *LRUCache[T]) CleanExpired() int {
	now := c.now()
	return c.prune(func(e *lruEntry[T]) bool { return !now.Before(e.expires) })
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

func (c *LRUCache[T]) prune(match func(*lruEntry[T]) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if match(el.Value.(*lruEntry[T])) {
			c.drop(el)
			n++
		}
		el = next
	}
	return n
}

func (c *LRUCache[T]) drop(el *list.Element) {
	delete(c.index, el.Value.(*lruEntry[T]).key)
	c.order.Remove(el)
}
