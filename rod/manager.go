package rod

import (
	"fmt"
	"sync"

	"github.com/fwojciec/newstext"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// DefaultMaxPages is the number of pages a browser serves before it is
// replaced.
const DefaultMaxPages = 100

// generation is one launched browser process.
type generation struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	served   int64
	active   int
	retired  bool
}

func (g *generation) shutdown() error {
	err := g.browser.Close()
	g.launcher.Kill()
	return err
}

// BrowserManager hands out pages from a headless browser and replaces the
// browser after it has served a fixed number of pages. A replaced browser
// keeps running until the last page leased from it is released.
//
// BrowserManager is safe for concurrent use.
type BrowserManager struct {
	mu       sync.Mutex
	current  *generation
	maxPages int64
	bin      string
	closed   bool
}

// ManagerOption configures a BrowserManager.
type ManagerOption func(*BrowserManager)

// WithMaxPages sets how many pages a browser serves before it is replaced.
// Non-positive values keep the default.
func WithMaxPages(n int64) ManagerOption {
	return func(bm *BrowserManager) {
		if n > 0 {
			bm.maxPages = n
		}
	}
}

// WithBin runs the browser binary at path instead of looking one up.
func WithBin(path string) ManagerOption {
	return func(bm *BrowserManager) {
		bm.bin = path
	}
}

// NewBrowserManager launches a headless browser. Close must be called when
// the BrowserManager is no longer needed.
func NewBrowserManager(opts ...ManagerOption) (*BrowserManager, error) {
	bm := &BrowserManager{maxPages: DefaultMaxPages}
	for _, opt := range opts {
		opt(bm)
	}

	g, err := bm.launch()
	if err != nil {
		return nil, err
	}
	bm.current = g
	return bm, nil
}

// Page opens a blank page. The returned release func closes the page and
// must be called exactly once.
func (bm *BrowserManager) Page() (*rod.Page, func(), error) {
	bm.mu.Lock()
	if bm.closed {
		bm.mu.Unlock()
		return nil, nil, newstext.Errorf(newstext.EINVALID, "browser closed")
	}
	if bm.current.served >= bm.maxPages {
		bm.rotate()
	}
	g := bm.current
	g.served++
	g.active++
	bm.mu.Unlock()

	page, err := g.browser.Page(proto.TargetCreateTarget{})
	release := func() {
		if page != nil {
			_ = page.Close()
		}
		bm.mu.Lock()
		defer bm.mu.Unlock()
		g.active--
		if g.retired && g.active == 0 {
			_ = g.shutdown()
		}
	}
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("opening page: %w", err)
	}
	return page, release, nil
}

// Close retires the browser. Pages still leased keep it alive until they
// are released. Close is safe to call multiple times.
func (bm *BrowserManager) Close() error {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if bm.closed {
		return nil
	}
	bm.closed = true

	g := bm.current
	bm.current = nil
	g.retired = true
	if g.active == 0 {
		return g.shutdown()
	}
	return nil
}

// LauncherPID returns the process ID of the current browser launcher, or 0
// once closed.
func (bm *BrowserManager) LauncherPID() int {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	if bm.current == nil {
		return 0
	}
	return bm.current.launcher.PID()
}

// rotate swaps in a fresh browser. The old one is kept when the launch
// fails. Must be called with mu held.
func (bm *BrowserManager) rotate() {
	next, err := bm.launch()
	if err != nil {
		return
	}
	old := bm.current
	bm.current = next
	old.retired = true
	if old.active == 0 {
		_ = old.shutdown()
	}
}

func (bm *BrowserManager) launch() (*generation, error) {
	l := launcher.New().
		Set("disable-background-timer-throttling").
		Set("disable-backgrounding-occluded-windows").
		Set("disable-renderer-backgrounding").
		Set("disable-dev-shm-usage").
		Set("mute-audio").
		Set("blink-settings", "imagesEnabled=false").
		Leakless(true).
		Headless(true)
	if bm.bin != "" {
		l = l.Bin(bm.bin)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}

	return &generation{browser: browser, launcher: l}, nil
}
