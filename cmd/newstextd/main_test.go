package main_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	main "github.com/fwojciec/newstext/cmd/newstextd"
	"github.com/fwojciec/newstext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestParse(t *testing.T) {
	t.Run("defaults match the default config", func(t *testing.T) {
		var stdout, stderr bytes.Buffer

		cli, help, err := main.Parse(nil, &stdout, &stderr)

		require.NoError(t, err)
		assert.False(t, help)
		assert.Equal(t, newstext.DefaultConfig(), cli.Config())
		assert.Equal(t, "0.0.0.0:5000", cli.Addr())
		assert.True(t, cli.Secondary)
		assert.False(t, cli.BrowserFetch)
		assert.Equal(t, 10000, cli.CacheMaxEntries)
	})

	t.Run("reads environment variables", func(t *testing.T) {
		t.Setenv("PORT", "8080")
		t.Setenv("TEXT_TTL", "3600")
		t.Setenv("MAX_TEXT_LEN_MIN", "250")
		t.Setenv("SECONDARY_ENABLED", "false")
		t.Setenv("USER_AGENT", "newstext-test/1.0")

		cli, _, err := main.Parse(nil, &bytes.Buffer{}, &bytes.Buffer{})

		require.NoError(t, err)
		cfg := cli.Config()
		assert.Equal(t, 8080, cli.Port)
		assert.Equal(t, time.Hour, cfg.TextTTL)
		assert.Equal(t, 250, cfg.MinTextLength)
		assert.Equal(t, "newstext-test/1.0", cfg.UserAgent)
		assert.False(t, cli.Secondary)
	})

	t.Run("flags override defaults", func(t *testing.T) {
		cli, _, err := main.Parse([]string{"--port", "9000", "--no-secondary", "--failure-ttl", "60"}, &bytes.Buffer{}, &bytes.Buffer{})

		require.NoError(t, err)
		assert.Equal(t, 9000, cli.Port)
		assert.False(t, cli.Secondary)
		assert.Equal(t, time.Minute, cli.Config().FailureTTL)
	})

	t.Run("accepts fractional seconds", func(t *testing.T) {
		t.Setenv("REQUEST_TIMEOUT", "7.5")

		cli, _, err := main.Parse([]string{"--connect-timeout", "2.5"}, &bytes.Buffer{}, &bytes.Buffer{})

		require.NoError(t, err)
		cfg := cli.Config()
		assert.Equal(t, 7500*time.Millisecond, cfg.RequestTimeout)
		assert.Equal(t, 2500*time.Millisecond, cfg.ConnectTimeout)
	})

	t.Run("prints help", func(t *testing.T) {
		var stdout bytes.Buffer

		_, help, err := main.Parse([]string{"--help"}, &stdout, &bytes.Buffer{})

		require.NoError(t, err)
		assert.True(t, help)
		assert.Contains(t, stdout.String(), "newstextd")
		assert.Contains(t, stdout.String(), "REQUEST_TIMEOUT")
	})

	t.Run("rejects unknown log level", func(t *testing.T) {
		_, _, err := main.Parse([]string{"--log-level", "verbose"}, &bytes.Buffer{}, &bytes.Buffer{})

		require.Error(t, err)
	})
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	t.Run("json format", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger, err := main.NewLogger("info", "json", &buf)
		require.NoError(t, err)

		logger.Info("hello", "k", "v")

		assert.Contains(t, buf.String(), `"msg":"hello"`)
	})

	t.Run("level filters output", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		logger, err := main.NewLogger("warn", "text", &buf)
		require.NoError(t, err)

		logger.Info("quiet")
		logger.Warn("loud")

		assert.NotContains(t, buf.String(), "quiet")
		assert.Contains(t, buf.String(), "loud")
	})

	t.Run("rejects unknown format", func(t *testing.T) {
		t.Parallel()

		_, err := main.NewLogger("info", "xml", &bytes.Buffer{})

		require.Error(t, err)
	})
}

func TestMain_Open(t *testing.T) {
	t.Run("wires a working server", func(t *testing.T) {
		cli, _, err := main.Parse([]string{"--host", "127.0.0.1", "--port", "0"}, &bytes.Buffer{}, &bytes.Buffer{})
		require.NoError(t, err)

		m := main.NewMain()
		require.NoError(t, m.Open(cli, discard()))
		defer m.Close()

		rec := httptest.NewRecorder()
		m.Server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		m.Server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader(`{}`)))
		assert.JSONEq(t, `{"text":""}`, rec.Body.String())

		rec = httptest.NewRecorder()
		m.Server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
		assert.JSONEq(t, `{"caches":{"decode":0,"text":0},"distinctUrls":0}`, rec.Body.String())
	})

	t.Run("opens the extraction log", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "log.db")
		cli, _, err := main.Parse([]string{"--db-path", dbPath}, &bytes.Buffer{}, &bytes.Buffer{})
		require.NoError(t, err)

		m := main.NewMain()
		require.NoError(t, m.Open(cli, discard()))
		defer m.Close()

		require.NotNil(t, m.DB)
		rec := httptest.NewRecorder()
		m.Server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
		assert.Contains(t, rec.Body.String(), `"extractions":{"total":0`)
	})

	t.Run("rejects failure TTL not shorter than text TTL", func(t *testing.T) {
		cli, _, err := main.Parse([]string{"--text-ttl", "60", "--failure-ttl", "60"}, &bytes.Buffer{}, &bytes.Buffer{})
		require.NoError(t, err)

		m := main.NewMain()
		defer m.Close()
		err = m.Open(cli, discard())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failure TTL")
	})

	t.Run("accepts a per-host fetch rate", func(t *testing.T) {
		cli, _, err := main.Parse([]string{"--fetch-host-rate", "2"}, &bytes.Buffer{}, &bytes.Buffer{})
		require.NoError(t, err)

		m := main.NewMain()
		defer m.Close()

		require.NoError(t, m.Open(cli, discard()))
	})

	t.Run("rejects negative fetch rate", func(t *testing.T) {
		cli, _, err := main.Parse([]string{"--fetch-host-rate=-1"}, &bytes.Buffer{}, &bytes.Buffer{})
		require.NoError(t, err)

		m := main.NewMain()
		defer m.Close()

		require.Error(t, m.Open(cli, discard()))
	})

	t.Run("rejects unusable database path", func(t *testing.T) {
		cli, _, err := main.Parse([]string{"--db-path", "/nonexistent/dir/log.db"}, &bytes.Buffer{}, &bytes.Buffer{})
		require.NoError(t, err)

		m := main.NewMain()
		defer m.Close()

		require.Error(t, m.Open(cli, discard()))
	})
}

func TestMain_Run(t *testing.T) {
	t.Run("help exits cleanly", func(t *testing.T) {
		var stdout bytes.Buffer

		err := main.NewMain().Run(context.Background(), []string{"-h"}, &stdout, &bytes.Buffer{})

		require.NoError(t, err)
		assert.NotEmpty(t, stdout.String())
	})

	t.Run("invalid flag fails", func(t *testing.T) {
		err := main.NewMain().Run(context.Background(), []string{"--bogus"}, &bytes.Buffer{}, &bytes.Buffer{})

		require.Error(t, err)
	})

	t.Run("shuts down when context ends", func(t *testing.T) {
		var stderr bytes.Buffer
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		err := main.NewMain().Run(ctx, []string{"--host", "127.0.0.1", "--port", "0", "--cache-sweep-interval", "1"}, &bytes.Buffer{}, &stderr)

		require.NoError(t, err)
		assert.Contains(t, stderr.String(), "shutting down")
	})
}
