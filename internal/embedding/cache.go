package embedding

import (
	"container/list"
	"sync"
)

// queryCache remembers text embeddings by query string, evicting the least recently
// used query once full. A nil *queryCache is a valid, always-empty cache.
type queryCache struct {
	mu      sync.Mutex
	limit   int
	order   *list.List // front is most recent; values are *queryVector
	byQuery map[string]*list.Element
}

type queryVector struct {
	query string
	vec   []float32
}

// newQueryCache returns nil when limit is not positive, which disables caching.
func newQueryCache(limit int) *queryCache {
	if limit <= 0 {
		return nil
	}
	return &queryCache{
		limit:   limit,
		order:   list.New(),
		byQuery: make(map[string]*list.Element, limit),
	}
}

// lookup returns a copy of the cached vector so callers cannot mutate the entry.
func (c *queryCache) lookup(query string) ([]float32, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.byQuery[query]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return append([]float32(nil), el.Value.(*queryVector).vec...), true
}

func (c *queryCache) remember(query string, vec []float32) {
	if c == nil {
		return
	}
	vec = append([]float32(nil), vec...)

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.byQuery[query]; ok {
		el.Value.(*queryVector).vec = vec
		c.order.MoveToFront(el)
		return
	}
	c.byQuery[query] = c.order.PushFront(&queryVector{query: query, vec: vec})
	for c.order.Len() > c.limit {
		oldest := c.order.Remove(c.order.Back()).(*queryVector)
		delete(c.byQuery, oldest.query)
	}
}

func (c *queryCache) size() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
