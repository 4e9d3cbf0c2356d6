package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/sitemirror/internal/assetcache"
	"github.com/nao1215/sitemirror/internal/config"
	"github.com/nao1215/sitemirror/internal/model"
	"github.com/nao1215/sitemirror/internal/pipeline"
	"github.com/nao1215/sitemirror/internal/render"
)

// Transformer rewrites a rendered page. *pipeline.Pipeline is the
// production implementation.
type Transformer interface {
	Run(ctx context.Context, page *model.Page) error
}

// Progress describes the page the crawler is working on.
type Progress struct {
	// URL is the page being processed.
	URL string

	// State is the page's processing state.
	State model.State

	// Exported is the number of pages exported so far.
	Exported int

	// Pending is the number of URLs waiting on the stack.
	Pending int
}

// ProgressFunc receives progress updates. It is called from the crawling
// goroutine and must not block.
type ProgressFunc func(Progress)

// Result summarizes a run.
type Result struct {
	// Output is the output root.
	Output string

	// Pages lists the exported pages in export order.
	Pages []model.ExportedPage

	// Failed lists the URLs that could not be rendered or exported.
	Failed []string

	// Elapsed is the duration of the run.
	Elapsed time.Duration

	// Assets are the asset cache counters at the end of the run.
	Assets assetcache.Stats
}

// Summary returns the line printed at the end of a run.
func (r *Result) Summary() string {
	return fmt.Sprintf("Processed %d pages in %s", len(r.Pages), FormatElapsed(r.Elapsed))
}

// FormatElapsed formats d as HH:MM:SS.
func FormatElapsed(d time.Duration) string {
	total := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total%3600/60, total%60)
}

// StatusOf maps the error returned by Run to the outcome of the run.
func StatusOf(err error) model.RunStatus {
	switch {
	case err == nil:
		return model.RunCompleted
	case errors.Is(err, render.ErrRenderTimeout):
		return model.RunTimeout
	case errors.Is(err, context.Canceled):
		return model.RunCancelled
	default:
		return model.RunFailed
	}
}

// Crawler mirrors a site.
type Crawler struct {
	site     *config.Site
	renderer render.Renderer
	cache    *assetcache.Cache
	resolver *config.Resolver
	pipeline Transformer

	logger     *slog.Logger
	timeout    time.Duration
	singlePage bool
	progress   ProgressFunc
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		c.logger = logger
	}
}

// WithSinglePage stops the run after the starting page.
func WithSinglePage(single bool) Option {
	return func(c *Crawler) {
		c.singlePage = single
	}
}

// WithTimeout sets how long a page may take to render and settle.
func WithTimeout(d time.Duration) Option {
	return func(c *Crawler) {
		c.timeout = d
	}
}

// WithProgress sets a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Crawler) {
		c.progress = fn
	}
}

// WithPipeline replaces the default rewrite pipeline.
func WithPipeline(t Transformer) Option {
	return func(c *Crawler) {
		c.pipeline = t
	}
}

// New creates a Crawler for site. Pages are rendered by renderer and their
// assets stored in cache, whose root is the output root.
func New(site *config.Site, renderer render.Renderer, cache *assetcache.Cache, opts ...Option) *Crawler {
	c := &Crawler{
		site:     site,
		renderer: renderer,
		cache:    cache,
		timeout:  config.DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.progress == nil {
		c.progress = func(Progress) {}
	}
	c.resolver = config.NewResolver(site, c.logger)
	if c.pipeline == nil {
		c.pipeline = pipeline.Default(cache, site.Domain(), pipeline.WithLogger(c.logger))
	}
	return c
}

// Run mirrors the site, starting at the configured page. It returns the
// partial result together with the error when a page does not settle in
// time or ctx is cancelled. The renderer is closed before Run returns.
func (c *Crawler) Run(ctx context.Context) (*Result, error) {
	defer func() {
		if err := c.renderer.Close(); err != nil {
			c.logger.Warn("failed to close renderer", "error", err)
		}
	}()

	started := time.Now()
	result := &Result{Output: c.cache.Root()}
	finish := func() {
		result.Elapsed = time.Since(started)
		result.Assets = c.cache.Stats()
	}

	session := NewSession()
	stack := []string{c.site.Page}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			finish()
			return result, err
		}

		pageURL := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if session.Seen(pageURL) {
			continue
		}

		exported, links, err := c.visit(ctx, session, pageURL, len(stack))
		if err != nil {
			if errors.Is(err, render.ErrRenderTimeout) || ctx.Err() != nil {
				finish()
				return result, err
			}
			c.logger.Error("skipping page", "url", pageURL, "error", err)
			session.Fail(pageURL)
			result.Failed = append(result.Failed, pageURL)
			continue
		}
		result.Pages = append(result.Pages, exported)

		if c.singlePage {
			break
		}
		for i := len(links) - 1; i >= 0; i-- {
			stack = append(stack, links[i])
		}
	}

	finish()
	return result, nil
}

// visit renders, transforms, rewrites and exports one page.
func (c *Crawler) visit(ctx context.Context, session *Session, pageURL string, pending int) (model.ExportedPage, []string, error) {
	report := func(state model.State) {
		c.progress(Progress{URL: pageURL, State: state, Exported: session.Len(), Pending: pending})
	}

	c.logger.Info("parsing page", "url", pageURL)
	report(model.StateRendering)
	markup, err := c.renderer.Render(ctx, pageURL, c.timeout)
	if err != nil {
		report(model.StateFailed)
		return model.ExportedPage{}, nil, err
	}

	page, err := model.NewPage(pageURL, c.outputPath(pageURL), markup, c.resolver.Resolve(pageURL))
	if err != nil {
		report(model.StateFailed)
		return model.ExportedPage{}, nil, err
	}

	page.State = model.StateTransforming
	report(page.State)
	if err := c.pipeline.Run(ctx, page); err != nil {
		return model.ExportedPage{}, nil, err
	}

	page.State = model.StateExporting
	report(page.State)
	links := RewriteLinks(page, c.site, session, c.resolver, c.logger)
	if err := c.export(session, page); err != nil {
		page.State = model.StateFailed
		report(page.State)
		return model.ExportedPage{}, nil, err
	}

	session.Record(pageURL, page.OutputPath)
	page.State = model.StateDone
	report(page.State)

	return model.ExportedPage{
		URL:        pageURL,
		Path:       page.OutputPath,
		Links:      len(links),
		ExportedAt: time.Now(),
	}, links, nil
}

// outputPath returns where pageURL is exported. The starting page is always
// the index file.
func (c *Crawler) outputPath(pageURL string) string {
	if Canonical(pageURL) == Canonical(c.site.Page) {
		return config.IndexFile
	}
	return c.resolver.ResolvedPath(pageURL)
}

// export writes the page markup under the output root.
func (c *Crawler) export(session *Session, page *model.Page) error {
	markup, err := page.HTML()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}

	if owner, ok := session.Owner(page.OutputPath); ok && owner != Canonical(page.URL) {
		c.logger.Error("previous page will be overwritten",
			"path", page.OutputPath,
			"url", page.URL,
			"previous", owner,
			"error", ErrOutputCollision,
		)
	}

	dest, err := destination(c.cache.Root(), page.OutputPath)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrExport, page.OutputPath, err)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("%w %s: %w", ErrExport, page.OutputPath, err)
	}
	if err := os.WriteFile(dest, []byte(markup), 0o600); err != nil {
		return fmt.Errorf("%w %s: %w", ErrExport, page.OutputPath, err)
	}

	c.logger.Info("exported page", "url", page.URL, "path", page.OutputPath)
	return nil
}

// destination returns the file of outputPath under root. Paths that resolve
// outside root, for example through a custom path with parent segments, are
// rejected.
func destination(root, outputPath string) (string, error) {
	dest := filepath.Join(root, filepath.FromSlash(outputPath))
	rel, err := filepath.Rel(root, dest)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrOutsideOutput
	}
	return dest, nil
}
