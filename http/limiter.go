package http

import (
	"context"
	"sync"
	"time"

	"github.com/fwojciec/newstext/cache"
	"golang.org/x/time/rate"
)

// hostLimiterIdle is how long an unused host keeps its token bucket.
const hostLimiterIdle = 10 * time.Minute

// HostLimiter spaces requests to the same host using one token bucket per
// host with a burst of 1. Requests to different hosts do not wait on each
// other. Buckets for hosts that go quiet are dropped.
type HostLimiter struct {
	mu       sync.Mutex
	limiters *cache.TTL[*rate.Limiter]
	rps      float64
}

// NewHostLimiter allows rps requests per second to each host, tracking at
// most maxHosts hosts at a time (0 = unbounded).
func NewHostLimiter(rps float64, maxHosts int) *HostLimiter {
	return &HostLimiter{
		limiters: cache.New[*rate.Limiter](cache.WithMaxEntries(maxHosts)),
		rps:      rps,
	}
}

// Wait blocks until a request to host is allowed or ctx is done.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	l.mu.Lock()
	limiter, ok := l.limiters.Get(host)
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(l.rps), 1)
	}
	l.limiters.Set(host, limiter, hostLimiterIdle)
	l.mu.Unlock()

	return limiter.Wait(ctx)
}
