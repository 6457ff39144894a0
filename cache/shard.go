package cache

import (
	"container/list"
	"sync"
	"time"
)

// entry is one cached value. It is stored as the Value of a list element.
type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

func (e *entry[V]) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// shard is a map plus a recency list; front is most recently used.
type shard[V any] struct {
	mu    sync.Mutex
	items map[string]*list.Element
	order *list.List
	max   int
}

func (s *shard[V]) get(key string, now time.Time) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var zero V
	el, ok := s.items[key]
	if !ok {
		return zero, false
	}

	e := el.Value.(*entry[V])
	if e.expired(now) {
		s.remove(el)
		return zero, false
	}

	s.order.MoveToFront(el)
	return e.value, true
}

func (s *shard[V]) set(key string, value V, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.expiresAt = expiresAt
		s.order.MoveToFront(el)
		return
	}

	if s.max > 0 && len(s.items) >= s.max {
		s.evictOldest()
	}

	el := s.order.PushFront(&entry[V]{key: key, value: value, expiresAt: expiresAt})
	s.items[key] = el
}

// Must be called with mu held.
func (s *shard[V]) evictOldest() {
	if oldest := s.order.Back(); oldest != nil {
		s.remove(oldest)
	}
}

func (s *shard[V]) sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(now)
}

// Must be called with mu held.
func (s *shard[V]) sweepLocked(now time.Time) int {
	n := 0
	for el := s.order.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*entry[V]).expired(now) {
			s.remove(el)
			n++
		}
		el = prev
	}
	return n
}

// Must be called with mu held.
func (s *shard[V]) remove(el *list.Element) {
	s.order.Remove(el)
	delete(s.items, el.Value.(*entry[V]).key)
}
