// Command newstextd serves article text extraction over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/newstext"
	"github.com/fwojciec/newstext/bloom"
	"github.com/fwojciec/newstext/cache"
	"github.com/fwojciec/newstext/gnews"
	nthttp "github.com/fwojciec/newstext/http"
	"github.com/fwojciec/newstext/pipeline"
	"github.com/fwojciec/newstext/readability"
	"github.com/fwojciec/newstext/rod"
	"github.com/fwojciec/newstext/sqlite"
	ntslog "github.com/fwojciec/newstext/slog"
	"github.com/fwojciec/newstext/trafilatura"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// retentionInterval is how often old extraction records are pruned.
const retentionInterval = time.Hour

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	Config newstext.Config

	// Populated by Open.
	Server      *nthttp.Server
	DecodeCache *cache.TTL[string]
	TextCache   *cache.TTL[newstext.ExtractionResult]
	DB          *sqlite.DB
	Logger      *slog.Logger

	extractionLog   *sqlite.ExtractionLog
	retention       time.Duration
	sweepInterval   time.Duration
	shutdownTimeout time.Duration
	closers         []io.Closer
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{
		Config: newstext.DefaultConfig(),
		Logger: slog.New(slog.DiscardHandler),
	}
}

// Run parses args, wires the service and serves until ctx is done.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cli, help, err := Parse(args, stdout, stderr)
	if err != nil {
		return err
	}
	if help {
		return nil
	}

	logger, err := NewLogger(cli.LogLevel, cli.LogFormat, stderr)
	if err != nil {
		return err
	}

	defer m.Close()
	if err := m.Open(cli, logger); err != nil {
		return err
	}

	return m.Serve(ctx)
}

// Parse reads flags and environment into a CLI. It reports help=true when
// usage was requested and printed.
func Parse(args []string, stdout, stderr io.Writer) (cli *CLI, help bool, err error) {
	cli = &CLI{}
	parser, err := kong.New(cli,
		kong.Name("newstextd"),
		kong.Description("Resolve news links and serve their article text."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}),
		kong.Vars{"user_agent": newstext.DefaultUserAgent},
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create parser: %w", err)
	}

	for _, a := range args {
		if a == "--help" || a == "-h" {
			_, _ = parser.Parse([]string{"--help"})
			return nil, true, nil
		}
	}

	if _, err := parser.Parse(args); err != nil {
		return nil, false, err
	}
	return cli, false, nil
}

// Open validates the configuration and constructs every component.
func (m *Main) Open(cli *CLI, logger *slog.Logger) error {
	m.Config = cli.Config()
	if err := m.Config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %s", newstext.ErrorMessage(err))
	}
	if cli.Port < 0 || cli.Port > 65535 {
		return fmt.Errorf("invalid configuration: port %d out of range", cli.Port)
	}
	if cli.DBRetention < 0 {
		return fmt.Errorf("invalid configuration: db retention must not be negative")
	}
	if cli.FetchHostRate < 0 {
		return fmt.Errorf("invalid configuration: fetch host rate must not be negative")
	}
	m.Logger = logger
	m.sweepInterval = seconds(cli.CacheSweepInterval)
	m.shutdownTimeout = seconds(cli.ShutdownTimeout)
	cfg := m.Config

	m.DecodeCache = cache.New[string](cache.WithMaxEntries(cli.CacheMaxEntries))
	m.TextCache = cache.New[newstext.ExtractionResult](cache.WithMaxEntries(cli.CacheMaxEntries))

	fetchOpts := []nthttp.Option{
		nthttp.WithTimeout(cfg.RequestTimeout),
		nthttp.WithConnectTimeout(cfg.ConnectTimeout),
		nthttp.WithUserAgent(cfg.UserAgent),
	}
	if cli.FetchHostRate > 0 {
		fetchOpts = append(fetchOpts, nthttp.WithHostLimiter(nthttp.NewHostLimiter(cli.FetchHostRate, cli.CacheMaxEntries)))
	}
	fetcher := nthttp.NewFetcher(fetchOpts...)
	m.closers = append(m.closers, fetcher)

	direct, err := m.openDirectFetcher(cli)
	if err != nil {
		return err
	}
	m.closers = append(m.closers, direct)

	strategies := []newstext.Strategy{
		ntslog.NewLoggingStrategy(&pipeline.PrimaryStrategy{
			Fetcher:   ntslog.NewLoggingFetcher(fetcher, logger, "shared"),
			Direct:    ntslog.NewLoggingFetcher(direct, logger, "direct"),
			Extractor: trafilatura.NewExtractor(),
			MinLength: cfg.MinTextLength,
		}, logger),
	}
	if cli.Secondary {
		ext := readability.NewExtractor(
			readability.WithTimeout(cfg.RequestTimeout),
			readability.WithUserAgent(cfg.UserAgent),
		)
		strategies = append(strategies, ntslog.NewLoggingStrategy(&pipeline.SecondaryStrategy{
			Fetcher:    ntslog.NewLoggingFetcher(fetcher, logger, "shared"),
			Extractor:  ext,
			Downloader: ext,
			MinLength:  cfg.MinTextLength,
		}, logger))
	}

	decoder := gnews.NewDecoder(
		gnews.WithHTTPClient(nthttp.NewClient(cfg.RequestTimeout, cfg.ConnectTimeout)),
		gnews.WithUserAgent(cfg.UserAgent),
		gnews.WithInterval(seconds(cli.DecodeInterval)),
	)

	p := &pipeline.Pipeline{
		Cache:      m.TextCache,
		Strategies: strategies,
		TextTTL:    cfg.TextTTL,
		FailureTTL: cfg.FailureTTL,
		Logger:     logger,
	}

	gin.SetMode(gin.ReleaseMode)
	m.Server = nthttp.NewServer(logger)
	m.Server.Addr = cli.Addr()
	m.Server.Resolver = &pipeline.Resolver{
		Decoder: ntslog.NewLoggingDecoder(decoder, logger),
		Cache:   m.DecodeCache,
		TTL:     cfg.DecodeTTL,
		Logger:  logger,
	}
	m.Server.Extractor = p
	m.Server.Seen = bloom.NewCounter(bloom.DefaultCapacity, bloom.DefaultFPRate)
	m.Server.Caches = map[string]nthttp.Sizer{
		"decode": m.DecodeCache,
		"text":   m.TextCache,
	}

	if cli.DBPath != "" {
		m.DB = sqlite.NewDB(cli.DBPath)
		if err := m.DB.Open(); err != nil {
			return fmt.Errorf("failed to open database at %q: %w", cli.DBPath, err)
		}
		m.extractionLog = sqlite.NewExtractionLog(m.DB)
		m.retention = time.Duration(cli.DBRetention) * time.Hour
		p.Log = m.extractionLog
		m.Server.Log = m.extractionLog
	}

	logger.Info("configured",
		"secondary", cli.Secondary,
		"browser_fetch", cli.BrowserFetch,
		"extraction_log", cli.DBPath != "",
		"min_text_length", cfg.MinTextLength,
	)
	return nil
}

// openDirectFetcher returns the fetcher used for the retry after a failed
// primary attempt: a browser when enabled, otherwise a plain HTTP client
// that never reuses connections.
func (m *Main) openDirectFetcher(cli *CLI) (newstext.Fetcher, error) {
	cfg := m.Config
	if cli.BrowserFetch {
		f, err := rod.NewFetcher(
			rod.WithFetchTimeout(cfg.RequestTimeout),
			rod.WithUserAgent(cfg.UserAgent),
			rod.WithBrowserBin(cli.BrowserBin),
			rod.WithBrowserRecycling(cli.BrowserPages),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to start browser (Chrome or Chromium must be installed): %w", err)
		}
		return f, nil
	}
	return nthttp.NewFetcher(
		nthttp.WithTimeout(cfg.RequestTimeout),
		nthttp.WithConnectTimeout(cfg.ConnectTimeout),
		nthttp.WithUserAgent(cfg.UserAgent),
		nthttp.WithoutKeepAlives(),
	), nil
}

// Serve runs the HTTP server and background maintenance until ctx is done,
// then shuts the server down gracefully.
func (m *Main) Serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(m.Server.ListenAndServe)
	g.Go(func() error { return m.DecodeCache.Run(ctx, m.sweepInterval) })
	g.Go(func() error { return m.TextCache.Run(ctx, m.sweepInterval) })
	if m.extractionLog != nil {
		g.Go(func() error {
			return m.extractionLog.RunRetention(ctx, m.retention, retentionInterval, m.Logger)
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		m.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), m.shutdownTimeout)
		defer cancel()
		return m.Server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Close releases fetchers and the database.
func (m *Main) Close() error {
	var errs []error
	for _, c := range m.closers {
		errs = append(errs, c.Close())
	}
	m.closers = nil
	if m.DB != nil {
		errs = append(errs, m.DB.Close())
	}
	return errors.Join(errs...)
}
