package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache holds derived report rows keyed by month ("YYYY-MM" or ALL).
// It keeps at most maxSize months, dropping the least recently read one,
// and forgets a month ttl after it was computed. Any ledger write must Clear
// it.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	months  map[string]*list.Element
	order   *list.List // front is most recently used
}

type monthEntry[T any] struct {
	month    string
	rows     T
	computed time.Time
}

func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	return &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		months:  make(map[string]*list.Element),
		order:   list.New(),
	}
}

func (c *LRUCache[T]) stale(e *monthEntry[T], at time.Time) bool {
	return at.Sub(e.computed) >= c.ttl
}

// Get returns the rows cached for month, if they are still fresh.
func (c *LRUCache[T]) Get(month string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.months[month]
	if !ok {
		var zero T
		return zero, false
	}
	e := el.Value.(*monthEntry[T])
	if c.stale(e, c.now()) {
		c.drop(el)
		var zero T
		return zero, false
	}
	c.order.MoveToFront(el)
	return e.rows, true
}

// Set caches rows for month.
func (c *LRUCache[T]) Set(month string, rows T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &monthEntry[T]{month: month, rows: rows, computed: c.now()}
	if el, ok := c.months[month]; ok {
		el.Value = e
		c.order.MoveToFront(el)
		return
	}
	c.months[month] = c.order.PushFront(e)
	for c.order.Len() > c.maxSize {
		c.drop(c.order.Back())
	}
}

func (c *LRUCache[T]) drop(el *list.Element) {
	delete(c.months, el.Value.(*monthEntry[T]).month)
	c.order.Remove(el)
}

// CleanExpired drops stale months and reports how many went.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	at := c.now()
	n := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if c.stale(el.Value.(*monthEntry[T]), at) {
			c.drop(el)
			n++
		}
		el = next
	}
	return n
}

// Clear forgets every month.
func (c *LRUCache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.months)
	c.order.Init()
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.months)
}
