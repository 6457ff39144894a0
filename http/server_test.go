package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fwojciec/newstext"
	"github.com/fwojciec/newstext/cache"
	nthttp "github.com/fwojciec/newstext/http"
	"github.com/fwojciec/newstext/mock"
	"github.com/fwojciec/newstext/pipeline"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

const articleText = "The harbour authority approved the new ferry terminal on Tuesday after two years of public consultation and design revisions."

// passthrough resolves every URL to itself.
func passthrough() *mock.URLResolver {
	return &mock.URLResolver{
		ResolveFn: func(ctx context.Context, rawURL string) string { return rawURL },
	}
}

func newTestServer(resolver newstext.URLResolver, extractor newstext.ArticleExtractor) *nthttp.Server {
	s := nthttp.NewServer(nil)
	s.Resolver = resolver
	s.Extractor = extractor
	return s
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestServer_Extract(t *testing.T) {
	t.Parallel()

	t.Run("returns extracted text", func(t *testing.T) {
		t.Parallel()

		var gotURL string
		s := newTestServer(passthrough(), &mock.ArticleExtractor{
			ExtractArticleFn: func(ctx context.Context, url string) newstext.ExtractionResult {
				gotURL = url
				return newstext.ExtractionResult{URL: url, Text: articleText, Method: newstext.MethodPrimary}
			},
		})

		rec := doRequest(t, s, http.MethodPost, "/extract", `{"url":"https://example.com/a"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, map[string]any{"text": articleText}, decodeBody(t, rec))
		assert.Equal(t, "https://example.com/a", gotURL)
	})

	t.Run("extracts from resolved URL", func(t *testing.T) {
		t.Parallel()

		var gotURL string
		s := newTestServer(
			&mock.URLResolver{
				ResolveFn: func(ctx context.Context, rawURL string) string {
					return "https://publisher.example/story"
				},
			},
			&mock.ArticleExtractor{
				ExtractArticleFn: func(ctx context.Context, url string) newstext.ExtractionResult {
					gotURL = url
					return newstext.ExtractionResult{URL: url, Text: articleText, Method: newstext.MethodPrimary}
				},
			},
		)

		rec := doRequest(t, s, http.MethodPost, "/extract", `{"url":"https://news.google.com/rss/articles/abc"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://publisher.example/story", gotURL)
	})

	t.Run("answers bad input with empty text", func(t *testing.T) {
		t.Parallel()

		called := false
		s := newTestServer(passthrough(), &mock.ArticleExtractor{
			ExtractArticleFn: func(ctx context.Context, url string) newstext.ExtractionResult {
				called = true
				return newstext.ExtractionResult{}
			},
		})

		for _, body := range []string{``, `{}`, `{"url":""}`, `{"url":"   "}`, `{"url":42}`, `not json`} {
			rec := doRequest(t, s, http.MethodPost, "/extract", body)

			assert.Equal(t, http.StatusOK, rec.Code, "body %q", body)
			assert.Equal(t, map[string]any{"text": ""}, decodeBody(t, rec), "body %q", body)
		}
		assert.False(t, called)
	})

	t.Run("answers total failure with empty text", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(passthrough(), &mock.ArticleExtractor{
			ExtractArticleFn: func(ctx context.Context, url string) newstext.ExtractionResult {
				return newstext.ExtractionResult{URL: url, Error: "HTTP 403 for " + url}
			},
		})

		rec := doRequest(t, s, http.MethodPost, "/extract", `{"url":"https://example.com/paywall"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, map[string]any{"text": ""}, decodeBody(t, rec))
	})

	t.Run("verbose response carries method and cache state", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(passthrough(), &mock.ArticleExtractor{
			ExtractArticleFn: func(ctx context.Context, url string) newstext.ExtractionResult {
				return newstext.ExtractionResult{URL: url, Text: articleText, Method: newstext.MethodSecondary, Cached: true}
			},
		})

		rec := doRequest(t, s, http.MethodPost, "/extract?verbose=true", `{"url":"https://example.com/a"}`)

		assert.Equal(t, map[string]any{
			"text":   articleText,
			"url":    "https://example.com/a",
			"method": "secondary",
			"error":  nil,
			"cached": true,
		}, decodeBody(t, rec))
	})

	t.Run("verbose failure has null method and an error", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(passthrough(), &mock.ArticleExtractor{
			ExtractArticleFn: func(ctx context.Context, url string) newstext.ExtractionResult {
				return newstext.ExtractionResult{URL: url, Error: "extracted 12 characters, need 100"}
			},
		})

		rec := doRequest(t, s, http.MethodPost, "/extract?verbose=1", `{"url":"https://example.com/a"}`)

		body := decodeBody(t, rec)
		assert.Nil(t, body["method"])
		assert.Equal(t, "extracted 12 characters, need 100", body["error"])
		assert.Equal(t, "", body["text"])
	})

	t.Run("observes final URLs", func(t *testing.T) {
		t.Parallel()

		var seen []string
		s := newTestServer(passthrough(), &mock.ArticleExtractor{
			ExtractArticleFn: func(ctx context.Context, url string) newstext.ExtractionResult {
				return newstext.ExtractionResult{URL: url}
			},
		})
		s.Seen = &mock.URLCounter{ObserveFn: func(url string) { seen = append(seen, url) }}

		doRequest(t, s, http.MethodPost, "/extract", `{"url":"https://example.com/a"}`)
		doRequest(t, s, http.MethodPost, "/extract", `{"url":""}`)

		assert.Equal(t, []string{"https://example.com/a"}, seen)
	})
}

func TestServer_EndToEnd(t *testing.T) {
	t.Parallel()

	t.Run("failing decoder falls back to original URL", func(t *testing.T) {
		t.Parallel()

		var decodes, fetches atomic.Int32
		var fetchedURL atomic.Value
		resolver := &pipeline.Resolver{
			Decoder: &mock.NewsDecoder{
				MatchesFn: func(rawURL string) bool { return strings.Contains(rawURL, "news.google.com") },
				DecodeFn: func(ctx context.Context, rawURL string) (string, error) {
					decodes.Add(1)
					return "", errors.New("consent wall")
				},
			},
			Cache: cache.New[string](),
			TTL:   time.Hour,
		}
		p := &pipeline.Pipeline{
			Cache: cache.New[newstext.ExtractionResult](),
			Strategies: []newstext.Strategy{&pipeline.PrimaryStrategy{
				Fetcher: &mock.Fetcher{
					FetchFn: func(ctx context.Context, url string) (string, error) {
						fetches.Add(1)
						fetchedURL.Store(url)
						return "<article>" + articleText + "</article>", nil
					},
				},
				Extractor: &mock.Extractor{
					ExtractFn: func(html, pageURL string) (*newstext.ExtractResult, error) {
						return &newstext.ExtractResult{Text: articleText}, nil
					},
				},
				MinLength: 100,
			}},
			TextTTL:    time.Hour,
			FailureTTL: time.Minute,
		}
		s := newTestServer(resolver, p)

		const link = "https://news.google.com/rss/articles/CBMiabc"
		first := doRequest(t, s, http.MethodPost, "/extract", `{"url":"`+link+`"}`)
		second := doRequest(t, s, http.MethodPost, "/extract?verbose=true", `{"url":"`+link+`"}`)

		assert.Equal(t, map[string]any{"text": articleText}, decodeBody(t, first))
		assert.Equal(t, true, decodeBody(t, second)["cached"])
		assert.Equal(t, link, fetchedURL.Load())
		assert.EqualValues(t, 2, decodes.Load())
		assert.EqualValues(t, 1, fetches.Load())
	})
}

func TestServer_Probes(t *testing.T) {
	t.Parallel()

	s := newTestServer(passthrough(), &mock.ArticleExtractor{})

	t.Run("index returns OK", func(t *testing.T) {
		t.Parallel()

		rec := doRequest(t, s, http.MethodGet, "/", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK", rec.Body.String())
	})

	t.Run("health reports ok", func(t *testing.T) {
		t.Parallel()

		rec := doRequest(t, s, http.MethodGet, "/health", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, map[string]any{"status": "ok"}, decodeBody(t, rec))
	})

	t.Run("assigns request id", func(t *testing.T) {
		t.Parallel()

		rec := doRequest(t, s, http.MethodGet, "/health", "")

		assert.Len(t, rec.Header().Get(nthttp.RequestIDHeader), 36)
	})

	t.Run("echoes incoming request id", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(nthttp.RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", rec.Header().Get(nthttp.RequestIDHeader))
	})
}

type fixedSize int

func (n fixedSize) Len() int { return int(n) }

func TestServer_Stats(t *testing.T) {
	t.Parallel()

	t.Run("reports caches, distinct URLs and summary", func(t *testing.T) {
		t.Parallel()

		var gotSince time.Time
		s := newTestServer(passthrough(), &mock.ArticleExtractor{})
		s.Caches = map[string]nthttp.Sizer{"decode": fixedSize(2), "text": fixedSize(5)}
		s.Seen = &mock.URLCounter{EstimateFn: func() uint64 { return 7 }}
		s.Log = &mock.ExtractionLog{
			SummaryFn: func(ctx context.Context, since time.Time) (*newstext.ExtractionSummary, error) {
				gotSince = since
				return &newstext.ExtractionSummary{Total: 4, Primary: 2, Secondary: 1, Failed: 1}, nil
			},
		}

		rec := doRequest(t, s, http.MethodGet, "/stats?since=2024-01-02T03:04:05Z", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{
			"caches": {"decode": 2, "text": 5},
			"distinctUrls": 7,
			"extractions": {"total": 4, "primary": 2, "secondary": 1, "failed": 1}
		}`, rec.Body.String())
		assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), gotSince)
	})

	t.Run("omits unconfigured sources", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(passthrough(), &mock.ArticleExtractor{})

		rec := doRequest(t, s, http.MethodGet, "/stats", "")

		assert.JSONEq(t, `{"caches": {}}`, rec.Body.String())
	})

	t.Run("rejects malformed since", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(passthrough(), &mock.ArticleExtractor{})

		rec := doRequest(t, s, http.MethodGet, "/stats?since=yesterday", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeBody(t, rec)["error"], "invalid since")
	})

	t.Run("hides internal errors", func(t *testing.T) {
		t.Parallel()

		s := newTestServer(passthrough(), &mock.ArticleExtractor{})
		s.Log = &mock.ExtractionLog{
			SummaryFn: func(ctx context.Context, since time.Time) (*newstext.ExtractionSummary, error) {
				return nil, errors.New("database is locked")
			},
		}

		rec := doRequest(t, s, http.MethodGet, "/stats", "")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, map[string]any{"error": "Internal error."}, decodeBody(t, rec))
	})
}
