package assetcache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/nao1215/sitemirror/internal/fetch"
)

// Fetcher downloads a remote asset.
// *fetch.Client is the production implementation.
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (*fetch.Response, error)
}

// Stats summarizes the work done by a Cache.
type Stats struct {
	// Hits counts lookups served by an existing file.
	Hits int
	// Downloaded counts remote assets written to the cache.
	Downloaded int
	// Copied counts local files copied into the cache.
	Copied int
	// Failed counts references left unchanged because of an error.
	Failed int
	// FailedRefs lists the failed references in order of occurrence.
	FailedRefs []string
}

// Cache stores assets under an output root.
type Cache struct {
	root    string
	fetcher Fetcher
	logger  *slog.Logger

	// group collapses concurrent Store calls for the same file name into
	// one download.
	group singleflight.Group

	mu    sync.Mutex
	stats Stats
}

// Option configures a Cache.
type Option func(*Cache)

// WithFetcher sets the downloader for remote assets.
func WithFetcher(f Fetcher) Option {
	return func(c *Cache) {
		c.fetcher = f
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// New creates a Cache rooted at root. Without WithFetcher a default
// fetch.Client is used.
func New(root string, opts ...Option) *Cache {
	c := &Cache{
		root:   root,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetcher == nil {
		c.fetcher = fetch.NewClient()
	}
	return c
}

// Root returns the output root.
func (c *Cache) Root() string {
	return c.root
}

// StoreOption customizes a single Store call.
type StoreOption func(*storeOptions)

type storeOptions struct {
	filename  string
	extension string
}

// WithFilename stores the asset under name instead of its digest.
// Fonts use it so that every rule referencing a font shares one file.
func WithFilename(name string) StoreOption {
	return func(o *storeOptions) {
		o.filename = name
	}
}

// WithExtension forces the extension of the cached file (without the dot).
func WithExtension(ext string) StoreOption {
	return func(o *storeOptions) {
		o.extension = strings.TrimPrefix(ext, ".")
	}
}

// Store makes ref available under the output root and returns its path
// relative to the root, using forward slashes. On any failure the error is
// logged and ref is returned unchanged.
func (c *Cache) Store(ctx context.Context, ref string, opts ...StoreOption) string {
	var o storeOptions
	for _, opt := range opts {
		opt(&o)
	}

	name, exact := o.filename, o.filename != "" && filepath.Ext(o.filename) != ""
	if name == "" {
		name = Digest(ref)
		if o.extension != "" {
			name += "." + o.extension
		}
	}

	v, err, _ := c.group.Do(name, func() (any, error) {
		return c.store(ctx, ref, name, exact)
	})
	if err != nil {
		c.fail(ref, err)
		return ref
	}
	return v.(string) //nolint:forcetypeassert // store only returns strings
}

// Stats returns a copy of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.FailedRefs = append([]string(nil), c.stats.FailedRefs...)
	return s
}

func (c *Cache) store(ctx context.Context, ref, name string, exact bool) (string, error) {
	if rel, ok := c.lookup(name, exact); ok {
		c.logger.Debug("asset already cached", "url", ref, "file", rel)
		c.count(func(s *Stats) { s.Hits++ })
		return rel, nil
	}

	u, err := url.Parse(ref)
	if err == nil && strings.HasPrefix(strings.ToLower(u.Scheme), "http") {
		return c.download(ctx, u, ref, name)
	}
	return c.copyLocal(ref, name)
}

// lookup finds a cached file for name. With exact set only the name itself
// matches; otherwise the name without extension plus any extension does.
func (c *Cache) lookup(name string, exact bool) (string, bool) {
	dest := filepath.Join(c.root, filepath.FromSlash(name))
	dir, base := filepath.Dir(dest), filepath.Base(dest)

	stem := base
	if !exact {
		stem = strings.TrimSuffix(base, filepath.Ext(base))
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		n := entry.Name()
		if n == stem || (!exact && strings.HasPrefix(n, stem+".")) {
			rel, err := c.relative(filepath.Join(dir, n))
			if err != nil {
				return "", false
			}
			return rel, true
		}
	}
	return "", false
}

func (c *Cache) download(ctx context.Context, u *url.URL, ref, name string) (string, error) {
	c.logger.Info("downloading asset", "url", ref)

	resp, err := c.fetcher.Get(ctx, ref)
	if err != nil {
		return "", err
	}

	if filepath.Ext(name) == "" {
		ext := extFromURL(u)
		if ext == "" {
			ext = extFromContentType(resp.ContentType)
		}
		name += ext
	}

	dest := filepath.Join(c.root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return "", fmt.Errorf("failed to create asset directory: %w", err)
	}
	if err := os.WriteFile(dest, resp.Body, 0o600); err != nil {
		return "", fmt.Errorf("failed to write asset: %w", err)
	}

	c.count(func(s *Stats) { s.Downloaded++ })
	return c.relative(dest)
}

// copyLocal copies a file from the local filesystem into the cache, keeping
// the source extension when the cached name has none.
func (c *Cache) copyLocal(ref, name string) (string, error) {
	src := ref
	if u, err := url.Parse(ref); err == nil && u.Scheme == "file" {
		src = u.Path
	}

	info, err := os.Stat(src)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrLocalNotFound, ref)
	}

	if filepath.Ext(name) == "" {
		name += filepath.Ext(src)
	}
	dest := filepath.Join(c.root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return "", fmt.Errorf("failed to create asset directory: %w", err)
	}
	if err := copyFile(src, dest); err != nil {
		return "", err
	}

	c.logger.Debug("cached local file", "path", src, "file", name)
	c.count(func(s *Stats) { s.Copied++ })
	return c.relative(dest)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src) //nolint:gosec // path comes from the site configuration
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest) //nolint:gosec // destination is under the output root
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}

func (c *Cache) relative(path string) (string, error) {
	rel, err := filepath.Rel(c.root, path)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func (c *Cache) fail(ref string, err error) {
	c.logger.Error("failed to cache asset, keeping original reference", "url", ref, "error", err)
	c.count(func(s *Stats) {
		s.Failed++
		s.FailedRefs = append(s.FailedRefs, ref)
	})
}

func (c *Cache) count(update func(*Stats)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	update(&c.stats)
}
