package config

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "sitemirror"

	// DefaultTimeout is the render stability window. Pages built by
	// client-side frameworks keep mutating for a while after load; a minute
	// covers large Notion pages with many lazy blocks. A page that never
	// settles within it is treated as private or broken.
	DefaultTimeout = 60 * time.Second

	// DefaultPollInterval is the delay between two markup snapshots while
	// waiting for a page to settle.
	DefaultPollInterval = 500 * time.Millisecond

	// DefaultFetchTimeout bounds a single asset download.
	// Zero disables the limit.
	DefaultFetchTimeout = 2 * time.Minute

	// DefaultOutputBase is the parent directory of the default output root
	// (dist/<site name>).
	DefaultOutputBase = "dist"

	// DefaultUserAgent identifies sitemirror in asset requests.
	DefaultUserAgent = "sitemirror/1.0 (+https://github.com/nao1215/sitemirror)"
)

// Config holds the run options of one mirror invocation.
// It is populated from CLI flags; the site description itself lives in Site.
//
// Design decision: a single flat struct, as the option count is small.
type Config struct {
	// Target is either an http(s) URL or a path to a configuration file.
	Target string

	// Output overrides the output root of the site configuration.
	Output string

	// Clean removes the whole output root before the run.
	Clean bool

	// CleanCSS removes cached .css files before the run.
	// Ignored when Clean is set.
	CleanCSS bool

	// CleanJS removes cached .js files before the run.
	// Ignored when Clean is set.
	CleanJS bool

	// SinglePage stops the crawl after the starting page.
	SinglePage bool

	// Timeout is the render stability timeout per page.
	Timeout time.Duration

	// FetchTimeout bounds each asset download. Zero means no limit.
	FetchTimeout time.Duration

	// BrowserPath is the Chrome/Chromium executable. Empty lets chromedp
	// look up a browser on PATH.
	BrowserPath string

	// NonHeadless shows the browser window while rendering.
	NonHeadless bool

	// NoBrowser renders pages with a plain HTTP GET instead of a browser.
	NoBrowser bool

	// Verbose enables debug logging.
	Verbose bool

	// ReportFile is the path of the Markdown run report. Empty disables it.
	ReportFile string

	// DBDir is the directory of the history database.
	DBDir string

	// SaveToDB records the run in the history database.
	SaveToDB bool

	// UserAgent is sent with every asset request.
	UserAgent string

	// Proxy is the "host:port" of a SOCKS5 proxy used by the browser and
	// the asset downloads. Empty connects directly.
	Proxy string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:      DefaultTimeout,
		FetchTimeout: DefaultFetchTimeout,
		DBDir:        XDGDataDir(),
		SaveToDB:     true,
		UserAgent:    DefaultUserAgent,
	}
}

// XDGDataDir returns the XDG data directory for sitemirror.
// On Linux: ~/.local/share/sitemirror
// On macOS: ~/Library/Application Support/sitemirror
// On Windows: %LOCALAPPDATA%\sitemirror
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// IsURLTarget reports whether the target is a URL rather than a file path.
func (c *Config) IsURLTarget() bool {
	return IsURL(c.Target)
}

// IsURL reports whether s is an absolute http or https URL.
func IsURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Target) == "" {
		return ErrNoTarget
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.FetchTimeout < 0 {
		return ErrInvalidFetchTimeout
	}
	if c.Proxy != "" && !ValidProxyAddress(c.Proxy) {
		return fmt.Errorf("%w: %q", ErrInvalidProxy, c.Proxy)
	}
	return nil
}

// ValidProxyAddress reports whether address has the "host:port" form with a
// non-empty host and a port between 1 and 65535.
func ValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}
