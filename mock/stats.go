package mock

import "github.com/fwojciec/newstext"

var _ newstext.URLCounter = (*URLCounter)(nil)

// URLCounter is a mock implementation of newstext.URLCounter.
type URLCounter struct {
	ObserveFn  func(url string)
	EstimateFn func() uint64
}

func (c *URLCounter) Observe(url string) {
	c.ObserveFn(url)
}

func (c *URLCounter) Estimate() uint64 {
	return c.EstimateFn()
}
