// Package gnews implements newstext.NewsDecoder for Google News links.
//
// Google News wraps every article in a redirect URL of the form
// https://news.google.com/rss/articles/<id>. Older ids embed the target
// URL in their base64 payload and are decoded offline. Current ids are
// resolved the way the Google News web client does it: the article page
// carries a signature and timestamp that are posted together with the id
// to the batchexecute RPC endpoint, which answers with the article URL.
package gnews

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/fwojciec/newstext"
	"golang.org/x/time/rate"
)

// Host is the Google News host name.
const Host = "news.google.com"

// DefaultBaseURL is where article pages and the RPC endpoint are requested.
const DefaultBaseURL = "https://" + Host

// DefaultTimeout bounds each request made while decoding.
const DefaultTimeout = 10 * time.Second

const batchExecutePath = "/_/DotsSplashUi/data/batchexecute"

// Legacy id framing: a protobuf message whose field 4 holds the URL.
var (
	legacyPrefix = []byte{0x08, 0x13, 0x22}
	legacySuffix = []byte{0xd2, 0x01, 0x00}
)

var articleIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Ensure Decoder implements newstext.NewsDecoder at compile time.
var _ newstext.NewsDecoder = (*Decoder)(nil)

// Decoder resolves Google News redirect links. It is safe for concurrent use.
type Decoder struct {
	client    *http.Client
	baseURL   string
	userAgent string
	limiter   *rate.Limiter
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithHTTPClient sets the client used for requests to Google News.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Decoder) {
		d.client = c
	}
}

// WithBaseURL points the decoder at a different Google News origin.
func WithBaseURL(u string) Option {
	return func(d *Decoder) {
		d.baseURL = strings.TrimRight(u, "/")
	}
}

// WithUserAgent sets the User-Agent sent to Google News.
func WithUserAgent(ua string) Option {
	return func(d *Decoder) {
		d.userAgent = ua
	}
}

// WithInterval spaces network decodes at least d apart. Offline decodes
// of legacy ids are not paced. Zero disables pacing.
func WithInterval(d time.Duration) Option {
	return func(dec *Decoder) {
		if d <= 0 {
			dec.limiter = nil
			return
		}
		dec.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// NewDecoder creates a new Decoder.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{
		baseURL:   DefaultBaseURL,
		userAgent: newstext.DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.client == nil {
		d.client = &http.Client{Timeout: DefaultTimeout}
	}
	return d
}

// Matches reports whether rawURL points at Google News.
func (d *Decoder) Matches(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == Host || strings.HasSuffix(host, "."+Host)
}

// Decode returns the article URL behind a Google News link.
func (d *Decoder) Decode(ctx context.Context, rawURL string) (string, error) {
	id, err := ArticleID(rawURL)
	if err != nil {
		return "", err
	}

	if target, ok := decodeLegacy(id); ok {
		return target, nil
	}

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("waiting for decode slot: %w", err)
		}
	}

	signature, timestamp, err := d.decodingParams(ctx, id)
	if err != nil {
		return "", err
	}

	return d.batchExecute(ctx, id, signature, timestamp)
}

// ArticleID extracts the article id from a Google News link, which is the
// path segment following "articles" or "read".
func ArticleID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", newstext.Errorf(newstext.EINVALID, "invalid URL %q: %v", rawURL, err)
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 {
		return "", newstext.Errorf(newstext.EINVALID, "no article id in %s", rawURL)
	}

	kind, id := segments[len(segments)-2], segments[len(segments)-1]
	if kind != "articles" && kind != "read" {
		return "", newstext.Errorf(newstext.EINVALID, "not an article link: %s", rawURL)
	}
	if !articleIDPattern.MatchString(id) {
		return "", newstext.Errorf(newstext.EINVALID, "malformed article id %q", id)
	}

	return id, nil
}

// decodeLegacy extracts a URL embedded directly in an old-style id.
func decodeLegacy(id string) (string, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(id, "="))
	if err != nil {
		return "", false
	}

	raw = bytes.TrimPrefix(raw, legacyPrefix)
	raw = bytes.TrimSuffix(raw, legacySuffix)

	n, size := binary.Uvarint(raw)
	if size <= 0 || uint64(len(raw)-size) < n {
		return "", false
	}

	target := string(raw[size : size+int(n)])
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		return "", false
	}
	return target, true
}

// decodingParams reads the signature and timestamp the RPC endpoint
// requires from the article page, falling back to the RSS article page.
func (d *Decoder) decodingParams(ctx context.Context, id string) (string, string, error) {
	var lastErr error
	for _, prefix := range []string{"/articles/", "/rss/articles/"} {
		signature, timestamp, err := d.paramsFrom(ctx, d.baseURL+prefix+id)
		if err == nil {
			return signature, timestamp, nil
		}
		lastErr = err
	}
	return "", "", lastErr
}

func (d *Decoder) paramsFrom(ctx context.Context, pageURL string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", "", newstext.Errorf(newstext.EUNAVAILABLE, "fetching %s: %v", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", newstext.Errorf(newstext.EUNAVAILABLE, "HTTP %d for %s", resp.StatusCode, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("parsing %s: %w", pageURL, err)
	}

	node := doc.Find("c-wiz > div[jscontroller]").First()
	signature, okSig := node.Attr("data-n-a-sg")
	timestamp, okTS := node.Attr("data-n-a-ts")
	if !okSig || !okTS || signature == "" {
		return "", "", newstext.Errorf(newstext.ENOTFOUND, "no decoding parameters on %s", pageURL)
	}
	if _, err := strconv.ParseInt(timestamp, 10, 64); err != nil {
		return "", "", newstext.Errorf(newstext.ENOTFOUND, "malformed timestamp %q on %s", timestamp, pageURL)
	}

	return signature, timestamp, nil
}

// batchExecute posts the garturlreq RPC and returns the decoded URL.
func (d *Decoder) batchExecute(ctx context.Context, id, signature, timestamp string) (string, error) {
	idJSON, _ := json.Marshal(id)
	sigJSON, _ := json.Marshal(signature)
	inner := fmt.Sprintf(`["garturlreq",[["X","X",["X","X"],null,null,1,1,"US:en",null,1,null,null,null,null,null,0,1],"X","X",1,[1,1,1],1,1,null,0,0,null,0],%s,%s,%s]`,
		idJSON, timestamp, sigJSON)

	freq, err := json.Marshal([][][]string{{{"Fbv4je", inner}}})
	if err != nil {
		return "", err
	}
	form := url.Values{"f.req": {string(freq)}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+batchExecutePath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", newstext.Errorf(newstext.EUNAVAILABLE, "batchexecute: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", newstext.Errorf(newstext.EUNAVAILABLE, "batchexecute: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", newstext.Errorf(newstext.EUNAVAILABLE, "batchexecute: %v", err)
	}

	return parseBatchResponse(string(body))
}

// parseBatchResponse digs the URL out of a batchexecute reply, which is an
// anti-XSSI prefix line followed by a JSON envelope whose first entry
// carries the RPC result as a JSON-encoded string.
func parseBatchResponse(body string) (string, error) {
	parts := strings.Split(body, "\n\n")
	if len(parts) < 2 {
		return "", newstext.Errorf(newstext.ENOTFOUND, "batchexecute: unexpected response")
	}

	var envelope [][]any
	if err := json.Unmarshal([]byte(parts[1]), &envelope); err != nil {
		return "", newstext.Errorf(newstext.ENOTFOUND, "batchexecute: %v", err)
	}
	if len(envelope) == 0 || len(envelope[0]) < 3 {
		return "", newstext.Errorf(newstext.ENOTFOUND, "batchexecute: empty envelope")
	}

	payload, ok := envelope[0][2].(string)
	if !ok {
		return "", newstext.Errorf(newstext.ENOTFOUND, "batchexecute: no payload")
	}

	var result []any
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return "", newstext.Errorf(newstext.ENOTFOUND, "batchexecute payload: %v", err)
	}
	if len(result) < 2 {
		return "", newstext.Errorf(newstext.ENOTFOUND, "batchexecute: short payload")
	}

	target, ok := result[1].(string)
	if !ok || target == "" {
		return "", newstext.Errorf(newstext.ENOTFOUND, "batchexecute: no URL in payload")
	}
	return target, nil
}
