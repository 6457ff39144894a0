package main

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/fwojciec/newstext"
)

// CLI defines the daemon's flags. Every flag can also be set through the
// environment variable named in its env tag.
type CLI struct {
	Host string `env:"HOST" default:"0.0.0.0" help:"Address to bind."`
	Port int    `env:"PORT" default:"5000" help:"Port to listen on."`

	RequestTimeout float64 `name:"request-timeout" env:"REQUEST_TIMEOUT" default:"12" help:"Seconds allowed for a whole outbound request."`
	ConnectTimeout float64 `name:"connect-timeout" env:"CONNECT_TIMEOUT" default:"6" help:"Seconds allowed for connecting to a site."`
	DecodeTTL      float64 `name:"decode-ttl" env:"DECODE_TTL" default:"86400" help:"Seconds a decoded Google News URL stays cached."`
	TextTTL        float64 `name:"text-ttl" env:"TEXT_TTL" default:"86400" help:"Seconds extracted text stays cached."`
	FailureTTL     float64 `name:"failure-ttl" env:"FAILURE_TTL" default:"300" help:"Seconds a failed extraction stays cached."`
	MinTextLength  int     `name:"min-text-length" env:"MAX_TEXT_LEN_MIN" default:"100" help:"Shortest text accepted as an article."`
	UserAgent      string  `name:"user-agent" env:"USER_AGENT" default:"${user_agent}" help:"User-Agent sent to news sites."`

	CacheMaxEntries    int     `name:"cache-max-entries" env:"CACHE_MAX_ENTRIES" default:"10000" help:"Entry cap per cache (0 = unbounded)."`
	CacheSweepInterval float64 `name:"cache-sweep-interval" env:"CACHE_SWEEP_INTERVAL" default:"60" help:"Seconds between expired-entry sweeps (0 = never)."`
	DecodeInterval     float64 `name:"decode-interval" env:"DECODE_INTERVAL" default:"0" help:"Minimum seconds between Google News decode requests."`
	FetchHostRate      float64 `name:"fetch-host-rate" env:"FETCH_HOST_RATE" default:"0" help:"Maximum article fetches per second to a single host (0 = unlimited)."`

	Secondary    bool   `name:"secondary" env:"SECONDARY_ENABLED" default:"true" negatable:"" help:"Fall back to the readability extractor."`
	BrowserFetch bool   `name:"browser-fetch" env:"BROWSER_FETCH" help:"Use headless Chromium for the direct fetch retry."`
	BrowserBin   string `name:"browser-bin" env:"BROWSER_BIN" help:"Chrome or Chromium binary for --browser-fetch (default: look up or download)."`
	BrowserPages int64  `name:"browser-max-pages" env:"BROWSER_MAX_PAGES" default:"100" help:"Pages a browser serves before it is replaced."`
	DBPath       string `name:"db-path" env:"DB_PATH" help:"SQLite file for the extraction log (empty = disabled)."`
	DBRetention  int    `name:"db-retention" env:"DB_RETENTION" default:"0" help:"Hours extraction records are kept (0 = forever)."`

	ShutdownTimeout float64 `name:"shutdown-timeout" env:"SHUTDOWN_TIMEOUT" default:"10" help:"Seconds allowed for in-flight requests on shutdown."`
	LogLevel        string  `name:"log-level" env:"LOG_LEVEL" default:"info" enum:"debug,info,warn,error" help:"Minimum log level."`
	LogFormat       string  `name:"log-format" env:"LOG_FORMAT" default:"text" enum:"text,json" help:"Log output format."`
}

// Config converts the flags into pipeline settings.
func (c *CLI) Config() newstext.Config {
	return newstext.Config{
		ConnectTimeout: seconds(c.ConnectTimeout),
		RequestTimeout: seconds(c.RequestTimeout),
		DecodeTTL:      seconds(c.DecodeTTL),
		TextTTL:        seconds(c.TextTTL),
		FailureTTL:     seconds(c.FailureTTL),
		MinTextLength:  c.MinTextLength,
		UserAgent:      c.UserAgent,
	}
}

// Addr returns the listen address.
func (c *CLI) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// seconds converts a possibly fractional number of seconds.
func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// NewLogger builds the process logger from the log flags.
func NewLogger(level, format string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}
