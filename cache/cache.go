// Package cache provides a bounded in-memory cache with per-entry expiry.
//
// Entries are spread over shards by the xxhash of their key. Each shard
// holds its own lock, so concurrent requests for different URLs rarely
// contend. Expired entries are evicted lazily on read, by Sweep, and when
// a full shard needs room for a new key (least recently used first).
package cache

import (
	"container/list"
	"context"
	"time"

	"github.com/cespare/xxhash/v2"
)

// DefaultShards is the number of shards used when none is configured.
const DefaultShards = 16

// Option configures a TTL cache.
type Option func(*options)

type options struct {
	maxEntries int
	shards     int
	now        func() time.Time
}

// WithMaxEntries caps the number of entries held. The cap is divided
// evenly between shards, rounding up. Zero means unbounded.
func WithMaxEntries(n int) Option {
	return func(o *options) {
		o.maxEntries = n
	}
}

// WithShards sets the number of shards. Defaults to DefaultShards.
func WithShards(n int) Option {
	return func(o *options) {
		o.shards = n
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// TTL is a concurrency-safe expiring key/value store.
type TTL[V any] struct {
	shards []*shard[V]
	now    func() time.Time
}

// New creates an empty cache.
func New[V any](opts ...Option) *TTL[V] {
	o := options{
		shards: DefaultShards,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.shards <= 0 {
		o.shards = 1
	}

	perShard := 0
	if o.maxEntries > 0 {
		perShard = (o.maxEntries + o.shards - 1) / o.shards
	}

	c := &TTL[V]{
		shards: make([]*shard[V], o.shards),
		now:    o.now,
	}
	for i := range c.shards {
		c.shards[i] = &shard[V]{
			items: make(map[string]*list.Element),
			order: list.New(),
			max:   perShard,
		}
	}
	return c
}

// Get returns the value stored under key. An expired entry is removed
// and reported as absent.
func (c *TTL[V]) Get(key string) (V, bool) {
	return c.shardFor(key).get(key, c.now())
}

// Set stores value under key until ttl elapses, replacing any previous entry.
// A full shard drops its least recently used entry; expired entries are
// left to Get and Sweep.
func (c *TTL[V]) Set(key string, value V, ttl time.Duration) {
	c.shardFor(key).set(key, value, c.now().Add(ttl))
}

// Len returns the number of entries held, including expired entries not
// yet evicted.
func (c *TTL[V]) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		n += len(s.items)
		s.mu.Unlock()
	}
	return n
}

// Sweep removes every expired entry and returns how many were removed.
func (c *TTL[V]) Sweep() int {
	now := c.now()
	n := 0
	for _, s := range c.shards {
		n += s.sweep(now)
	}
	return n
}

// Run sweeps the cache every interval until ctx is done.
// It always returns nil so it can run inside an errgroup.
func (c *TTL[V]) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Sweep()
		}
	}
}

func (c *TTL[V]) shardFor(key string) *shard[V] {
	if len(c.shards) == 1 {
		return c.shards[0]
	}
	return c.shards[xxhash.Sum64String(key)%uint64(len(c.shards))]
}
