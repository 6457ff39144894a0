// Package http provides the HTTP side of newstext: a net/http based
// implementation of newstext.Fetcher for downloading article pages, and
// the gin server exposing the extraction API.
package http

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/fwojciec/newstext"
	"golang.org/x/net/html/charset"
)

// Default timeouts for outbound requests.
const (
	DefaultConnectTimeout = 6 * time.Second
	DefaultFetchTimeout   = 12 * time.Second
)

// DefaultMaxBodyBytes caps how much of a response body is read.
const DefaultMaxBodyBytes = 10 << 20

// Ensure Fetcher implements newstext.Fetcher at compile time.
var _ newstext.Fetcher = (*Fetcher)(nil)

// Fetcher retrieves HTML content from URLs using HTTP requests.
// It does not execute JavaScript. Fetcher is safe for concurrent use and
// reuses connections across requests unless WithoutKeepAlives is set.
type Fetcher struct {
	client         *http.Client
	transport      *http.Transport
	timeout        time.Duration
	connectTimeout time.Duration
	userAgent      string
	maxBodyBytes   int64
	keepAlives     bool
	limiter        *HostLimiter
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout sets the timeout for a whole request, body included.
// Defaults to DefaultFetchTimeout (12s) if not specified.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithConnectTimeout bounds dialing and the TLS handshake.
// Defaults to DefaultConnectTimeout (6s) if not specified.
func WithConnectTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.connectTimeout = d
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
// Defaults to newstext.DefaultUserAgent.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxBodyBytes caps the number of body bytes read per response.
func WithMaxBodyBytes(n int64) Option {
	return func(f *Fetcher) {
		f.maxBodyBytes = n
	}
}

// WithoutKeepAlives opens a fresh connection for every request and
// negotiates HTTP/1.1 only. Used for the direct fetch path, which must not
// share connection state with the primary fetcher.
func WithoutKeepAlives() Option {
	return func(f *Fetcher) {
		f.keepAlives = false
	}
}

// WithHostLimiter paces requests per host. The wait and the request share
// the fetch timeout.
func WithHostLimiter(l *HostLimiter) Option {
	return func(f *Fetcher) {
		f.limiter = l
	}
}

// NewFetcher creates a new HTTP-based Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		timeout:        DefaultFetchTimeout,
		connectTimeout: DefaultConnectTimeout,
		userAgent:      newstext.DefaultUserAgent,
		maxBodyBytes:   DefaultMaxBodyBytes,
		keepAlives:     true,
	}
	for _, opt := range opts {
		opt(f)
	}

	f.transport = newTransport(f.connectTimeout, f.keepAlives)
	f.client = &http.Client{
		Transport: f.transport,
		Timeout:   f.timeout,
	}

	return f
}

// NewClient returns an http.Client whose dial and TLS handshake are bounded
// by connectTimeout and whose whole exchange is bounded by timeout, the same
// limits a Fetcher applies.
func NewClient(timeout, connectTimeout time.Duration) *http.Client {
	return &http.Client{
		Transport: newTransport(connectTimeout, true),
		Timeout:   timeout,
	}
}

func newTransport(connectTimeout time.Duration, keepAlives bool) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		ForceAttemptHTTP2:     keepAlives,
		DisableKeepAlives:     !keepAlives,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// Fetch retrieves the HTML content from the given URL, following
// redirects. The body is transcoded to UTF-8 according to the response's
// declared or sniffed charset.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	// One deadline covers the host limiter wait and the whole exchange.
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", newstext.Errorf(newstext.EINVALID, "invalid URL %q: %v", url, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "*/*")

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, req.URL.Hostname()); err != nil {
			return "", newstext.Errorf(newstext.EUNAVAILABLE, "waiting to fetch %s: %v", url, err)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", newstext.Errorf(newstext.EUNAVAILABLE, "GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", newstext.Errorf(newstext.EUNAVAILABLE, "HTTP %d for %s", resp.StatusCode, url)
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, f.maxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", newstext.Errorf(newstext.EUNAVAILABLE, "decoding body of %s: %v", url, err)
	}

	b, err := io.ReadAll(body)
	if err != nil {
		return "", newstext.Errorf(newstext.EUNAVAILABLE, "reading body of %s: %v", url, err)
	}
	if len(b) == 0 {
		return "", newstext.Errorf(newstext.EUNAVAILABLE, "empty body for %s", url)
	}

	return string(b), nil
}

// Close releases idle connections held by the Fetcher.
func (f *Fetcher) Close() error {
	f.transport.CloseIdleConnections()
	return nil
}
