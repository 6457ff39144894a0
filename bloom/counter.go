// Package bloom estimates distinct URL counts with a Bloom filter.
package bloom

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/fwojciec/newstext"
)

// Defaults size the filter for a day of traffic on a small instance.
const (
	DefaultCapacity = 100_000
	DefaultFPRate   = 0.01
)

// Ensure Counter implements newstext.URLCounter at compile time.
var _ newstext.URLCounter = (*Counter)(nil)

// Counter tracks which URLs have been requested in constant memory.
// It is safe for concurrent use.
type Counter struct {
	mu sync.Mutex
	f  *bloom.BloomFilter
}

// NewCounter creates a Counter sized for n expected URLs with the given
// false positive rate.
func NewCounter(n uint, fpRate float64) *Counter {
	return &Counter{f: bloom.NewWithEstimates(n, fpRate)}
}

// Observe records url.
func (c *Counter) Observe(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.f.AddString(url)
}

// Estimate returns the approximate number of distinct URLs observed.
func (c *Counter) Estimate() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(c.f.ApproximatedSize())
}
