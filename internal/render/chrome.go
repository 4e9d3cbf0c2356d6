package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// Browser window size. The very tall window makes pages that lazy-load
// blocks on scroll render their whole content without scrolling.
const (
	windowWidth  = 1920
	windowHeight = 20000
)

// DefaultPollInterval is the delay between two markup samples.
const DefaultPollInterval = 500 * time.Millisecond

// Chrome renders pages in a Chrome or Chromium browser through chromedp.
// One browser process serves the whole run; each page gets its own tab.
type Chrome struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc

	pollInterval time.Duration
	logger       *slog.Logger
	closeOnce    sync.Once
}

type chromeOptions struct {
	execPath     string
	proxy        string
	headless     bool
	pollInterval time.Duration
	logger       *slog.Logger
}

// ChromeOption configures NewChrome.
type ChromeOption func(*chromeOptions)

// WithExecPath uses a specific browser executable instead of looking one
// up on PATH.
func WithExecPath(path string) ChromeOption {
	return func(o *chromeOptions) {
		o.execPath = path
	}
}

// WithProxy routes the browser traffic through the SOCKS5 proxy at address
// ("host:port"). An empty address connects directly.
func WithProxy(address string) ChromeOption {
	return func(o *chromeOptions) {
		o.proxy = address
	}
}

// WithHeadless controls whether the browser window is hidden. Default true.
func WithHeadless(headless bool) ChromeOption {
	return func(o *chromeOptions) {
		o.headless = headless
	}
}

// WithPollInterval sets the delay between markup samples.
func WithPollInterval(d time.Duration) ChromeOption {
	return func(o *chromeOptions) {
		o.pollInterval = d
	}
}

// WithChromeLogger sets the logger. chromedp's own error output is logged
// at debug level, since it mostly reports protocol events it cannot decode.
func WithChromeLogger(logger *slog.Logger) ChromeOption {
	return func(o *chromeOptions) {
		o.logger = logger
	}
}

// NewChrome launches the browser. The browser lives until Close is called
// or ctx is cancelled.
func NewChrome(ctx context.Context, opts ...ChromeOption) (*Chrome, error) {
	o := chromeOptions{
		headless:     true,
		pollInterval: DefaultPollInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.WindowSize(windowWidth, windowHeight),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("incognito", true),
		chromedp.Flag("log-level", "3"),
	)
	if !o.headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if o.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(o.execPath))
	}
	if o.proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer("socks5://"+o.proxy))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	logf := func(format string, args ...any) {
		o.logger.Debug(fmt.Sprintf(format, args...), "component", "chromedp")
	}
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logf),
		chromedp.WithErrorf(logf),
	)

	// An empty Run starts the browser, so a missing executable is reported
	// here rather than on the first page.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: %w", ErrBrowserStart, err)
	}

	o.logger.Debug("browser started", "headless", o.headless, "exec_path", o.execPath)
	return &Chrome{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		pollInterval:  o.pollInterval,
		logger:        o.logger,
	}, nil
}

// Render navigates a new tab to rawURL and waits until its markup is stable.
// Both the navigation and the stability wait are bounded by timeout.
func (c *Chrome) Render(ctx context.Context, rawURL string, timeout time.Duration) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(c.browserCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	waitCtx, cancelWait := context.WithTimeout(tabCtx, timeout)
	defer cancelWait()

	if err := chromedp.Run(waitCtx, chromedp.Navigate(rawURL)); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || waitCtx.Err() != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", ErrRenderTimeout
		}
		return "", fmt.Errorf("failed to load %s: %w", rawURL, err)
	}

	markup, err := WaitStable(waitCtx, func(ctx context.Context) (string, error) {
		var html string
		if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
			return "", err
		}
		c.logger.Debug("waiting for page content to settle", "url", rawURL, "bytes", len(html))
		return html, nil
	}, c.pollInterval)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	return markup, nil
}

// Close shuts the browser down. It is safe to call more than once.
func (c *Chrome) Close() error {
	c.closeOnce.Do(func() {
		c.browserCancel()
		c.allocCancel()
	})
	return nil
}
