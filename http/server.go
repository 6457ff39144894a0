package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fwojciec/newstext"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id on every response.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "requestID"

// Sizer reports the number of entries held by a cache.
type Sizer interface {
	Len() int
}

// Server exposes article extraction over HTTP.
type Server struct {
	server *http.Server
	router *gin.Engine

	// Addr is the bind address, e.g. "0.0.0.0:5000".
	Addr string

	Resolver  newstext.URLResolver
	Extractor newstext.ArticleExtractor

	// Optional sources for GET /stats.
	Caches map[string]Sizer
	Seen   newstext.URLCounter
	Log    newstext.ExtractionLog

	Logger *slog.Logger
}

// NewServer returns a Server with its routes registered. Dependencies are
// assigned to the exported fields before the server is opened.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		router: gin.New(),
		Logger: logger,
	}
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.router.Use(requestID(), s.logRequests(), gin.Recovery())

	s.router.GET("/", s.handleIndex)
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/stats", s.handleStats)
	s.router.POST("/extract", s.handleExtract)

	return s
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe binds Addr and serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln. It returns nil after a graceful Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.Logger.Info("listening", "addr", ln.Addr().String())
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type extractRequest struct {
	URL string `json:"url"`
}

type extractResponse struct {
	Text string `json:"text"`
}

type verboseResponse struct {
	Text   string  `json:"text"`
	URL    string  `json:"url"`
	Method *string `json:"method"`
	Error  *string `json:"error"`
	Cached bool    `json:"cached"`
}

// handleExtract never fails the request: bad input and total extraction
// failure are both answered with empty text.
func (s *Server) handleExtract(c *gin.Context) {
	verbose, _ := strconv.ParseBool(c.Query("verbose"))

	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.Logger.Debug("unreadable extract request", "err", err, "request_id", c.GetString(requestIDKey))
	}
	rawURL := strings.TrimSpace(req.URL)
	if rawURL == "" {
		respondExtract(c, verbose, newstext.ExtractionResult{Error: "url required"})
		return
	}

	ctx := c.Request.Context()
	finalURL := s.Resolver.Resolve(ctx, rawURL)
	if s.Seen != nil {
		s.Seen.Observe(finalURL)
	}

	respondExtract(c, verbose, s.Extractor.ExtractArticle(ctx, finalURL))
}

func respondExtract(c *gin.Context, verbose bool, res newstext.ExtractionResult) {
	if !verbose {
		c.JSON(http.StatusOK, extractResponse{Text: res.Text})
		return
	}

	out := verboseResponse{
		Text:   res.Text,
		URL:    res.URL,
		Cached: res.Cached,
	}
	if res.Method != newstext.MethodNone {
		m := string(res.Method)
		out.Method = &m
	}
	if res.Error != "" {
		e := res.Error
		out.Error = &e
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleIndex(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type statsResponse struct {
	Caches       map[string]int              `json:"caches"`
	DistinctURLs *uint64                     `json:"distinctUrls,omitempty"`
	Extractions  *newstext.ExtractionSummary `json:"extractions,omitempty"`
}

// handleStats reports cache sizes, the distinct URL estimate and, when an
// extraction log is configured, per-method counts. The optional "since"
// query parameter (RFC 3339) limits the counts.
func (s *Server) handleStats(c *gin.Context) {
	var since time.Time
	if v := c.Query("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.respondError(c, newstext.Errorf(newstext.EINVALID, "invalid since %q: want RFC 3339", v))
			return
		}
		since = t
	}

	out := statsResponse{Caches: make(map[string]int, len(s.Caches))}
	for name, sz := range s.Caches {
		out.Caches[name] = sz.Len()
	}
	if s.Seen != nil {
		n := s.Seen.Estimate()
		out.DistinctURLs = &n
	}
	if s.Log != nil {
		summary, err := s.Log.Summary(c.Request.Context(), since)
		if err != nil {
			s.respondError(c, err)
			return
		}
		out.Extractions = summary
	}

	c.JSON(http.StatusOK, out)
}

var codeStatuses = map[string]int{
	newstext.EINVALID:     http.StatusBadRequest,
	newstext.ENOTFOUND:    http.StatusNotFound,
	newstext.EUNAVAILABLE: http.StatusServiceUnavailable,
	newstext.EINTERNAL:    http.StatusInternalServerError,
}

// respondError writes err as JSON with a status derived from its code.
// Internal errors are logged and their details withheld.
func (s *Server) respondError(c *gin.Context, err error) {
	code := newstext.ErrorCode(err)
	if code == newstext.EINTERNAL {
		s.Logger.Error("request failed", "path", c.Request.URL.Path, "err", err, "request_id", c.GetString(requestIDKey))
	}
	status, ok := codeStatuses[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, gin.H{"error": newstext.ErrorMessage(err)})
}

// requestID propagates an incoming X-Request-ID or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		begin := time.Now()
		c.Next()
		s.Logger.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(begin),
			"request_id", c.GetString(requestIDKey),
		)
	}
}
