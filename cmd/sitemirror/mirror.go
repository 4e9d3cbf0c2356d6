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

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nao1215/sitemirror/internal/assetcache"
	"github.com/nao1215/sitemirror/internal/config"
	"github.com/nao1215/sitemirror/internal/crawler"
	"github.com/nao1215/sitemirror/internal/database"
	"github.com/nao1215/sitemirror/internal/fetch"
	"github.com/nao1215/sitemirror/internal/render"
	"github.com/nao1215/sitemirror/internal/report"
)

// NewMirrorCmd creates the mirror command.
func NewMirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror <url|config-file>",
		Short: "Mirror a site into a static bundle",
		Long: `Mirror renders the starting page and every same-site page reachable from
it, caches their assets under the output root and writes one HTML file per
page.

The target is either the URL of the starting page or a configuration file
(.yaml, .yml, .toml or .json) created with "sitemirror init".

Examples:
  # Mirror a public Notion page with default settings
  sitemirror mirror https://example.notion.site/Home-0123

  # Mirror with a configuration file, starting from a clean output root
  sitemirror mirror --clean sitemirror.yaml

  # Re-download stylesheets only and write a Markdown report
  sitemirror mirror --clean-css --report mirror-report.md sitemirror.yaml

  # Mirror a static site without starting a browser
  sitemirror mirror --no-browser https://example.com/`,
		Args: cobra.ExactArgs(1),
		RunE: runMirrorCmd,
	}

	// Output flags
	cmd.Flags().StringP("output", "o", "",
		"Output root (default: the configured output, or dist/<site name>)")
	cmd.Flags().Bool("clean", false,
		"Delete the output root before mirroring")
	cmd.Flags().Bool("clean-css", false,
		"Delete cached stylesheets before mirroring")
	cmd.Flags().Bool("clean-js", false,
		"Delete cached scripts before mirroring")

	// Crawl flags
	cmd.Flags().BoolP("single-page", "s", false,
		"Only mirror the starting page")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Time a page may take to load and settle")
	cmd.Flags().Duration("fetch-timeout", config.DefaultFetchTimeout,
		"Time limit of a single asset download (0 disables it)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with asset requests")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy (host:port) for the browser and asset downloads")

	// Browser flags
	cmd.Flags().String("browser", "",
		"Chrome or Chromium executable (default: looked up on PATH)")
	cmd.Flags().Bool("non-headless", false,
		"Show the browser window while rendering")
	cmd.Flags().Bool("no-browser", false,
		"Fetch pages with plain HTTP requests instead of a browser")

	// Report flags
	cmd.Flags().StringP("report", "r", "",
		"Write a run report to this file (.md for Markdown, .json for JSON)")
	cmd.Flags().Bool("no-history", false,
		"Do not record the run in the history database")

	return cmd
}

// runMirrorCmd executes the mirror command.
func runMirrorCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := mirrorOptions{
		stdout:   cmd.OutOrStdout(),
		progress: newProgressLine(cmd.ErrOrStderr(), !cfg.Verbose),
	}
	return runMirror(ctx, cfg, logger, opts)
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	if len(args) > 0 {
		cfg.Target = args[0]
	}
	cfg.Verbose = getVerboseFlag(cmd)

	flags := cmd.Flags()
	var err error

	if cfg.Output, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.Clean, err = flags.GetBool("clean"); err != nil {
		return nil, err
	}
	if cfg.CleanCSS, err = flags.GetBool("clean-css"); err != nil {
		return nil, err
	}
	if cfg.CleanJS, err = flags.GetBool("clean-js"); err != nil {
		return nil, err
	}
	if cfg.SinglePage, err = flags.GetBool("single-page"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.FetchTimeout, err = flags.GetDuration("fetch-timeout"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.Proxy, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.BrowserPath, err = flags.GetString("browser"); err != nil {
		return nil, err
	}
	if cfg.NonHeadless, err = flags.GetBool("non-headless"); err != nil {
		return nil, err
	}
	if cfg.NoBrowser, err = flags.GetBool("no-browser"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("report"); err != nil {
		return nil, err
	}

	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory

	return cfg, nil
}

// mirrorOptions carries the outputs of a run that tests replace.
type mirrorOptions struct {
	// stdout receives the summary line.
	stdout io.Writer

	// progress shows the page being processed. May be nil.
	progress *progressLine

	// renderer replaces the browser or HTTP renderer.
	renderer render.Renderer
}

// loadSite returns the site configuration of the target: the parsed file,
// or a configuration naming only the starting page for a URL target.
func loadSite(cfg *config.Config) (*config.Site, error) {
	var site *config.Site
	if cfg.IsURLTarget() {
		site = config.NewSite(cfg.Target)
	} else {
		loaded, err := config.LoadSiteFile(cfg.Target)
		if err != nil {
			return nil, err
		}
		site = loaded
	}

	if cfg.Output != "" {
		site.Output = cfg.Output
	}
	if err := site.Validate(); err != nil {
		return nil, err
	}
	return site, nil
}

// runMirror mirrors the configured site and reports the outcome.
func runMirror(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts mirrorOptions) error {
	site, err := loadSite(cfg)
	if err != nil {
		return err
	}
	output := site.OutputDir()

	fetcher := fetch.NewClient(
		fetch.WithTimeout(cfg.FetchTimeout),
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithProxy(cfg.Proxy),
	)

	if cfg.IsURLTarget() {
		if err := fetcher.CheckConnection(ctx, site.Page).Error(); err != nil {
			return fmt.Errorf("%w: %s", err, site.Page)
		}
	}

	if err := prepareOutput(cfg, output, logger); err != nil {
		return err
	}

	renderer := opts.renderer
	if renderer == nil {
		renderer, err = newRenderer(ctx, cfg, fetcher, logger)
		if err != nil {
			return err
		}
	}

	cache := assetcache.New(output,
		assetcache.WithFetcher(fetcher),
		assetcache.WithLogger(logger),
	)

	progress := opts.progress
	c := crawler.New(site, renderer, cache,
		crawler.WithLogger(logger),
		crawler.WithSinglePage(cfg.SinglePage),
		crawler.WithTimeout(cfg.Timeout),
		crawler.WithProgress(progress.Update),
	)

	logger.Info("mirroring site", "site", site.SiteName(), "page", site.Page, "output", output)
	started := time.Now()
	progress.Start()
	result, runErr := c.Run(ctx)
	progress.Stop()

	runReport := report.NewRunReport(site, result, started, runErr)

	// A cancelled run is still recorded and reported.
	finishCtx := context.WithoutCancel(ctx)
	if cfg.SaveToDB {
		recordRun(finishCtx, cfg, site, runReport, logger)
	}
	if cfg.ReportFile != "" {
		if err := report.WriteFile(cfg.ReportFile, runReport, getVersion()); err != nil {
			logger.Error("failed to write report", "path", cfg.ReportFile, "error", err)
		} else {
			logger.Info("report written", "path", cfg.ReportFile)
		}
	}

	if opts.stdout != nil {
		fmt.Fprintln(opts.stdout, runReport.Summary())
	}

	if runErr != nil {
		if errors.Is(runErr, render.ErrRenderTimeout) {
			return fmt.Errorf("%w: the page may be private or still loading, try a longer --timeout", runErr)
		}
		return runErr
	}
	return nil
}

// prepareOutput applies the clean flags to the output root.
func prepareOutput(cfg *config.Config, output string, logger *slog.Logger) error {
	if cfg.Clean {
		logger.Info("removing output root", "path", output)
		return assetcache.Clear(output)
	}

	var exts []string
	if cfg.CleanCSS {
		exts = append(exts, "css")
	}
	if cfg.CleanJS {
		exts = append(exts, "js")
	}
	if len(exts) == 0 {
		return nil
	}

	removed, err := assetcache.ClearExt(output, exts...)
	if err != nil {
		return err
	}
	logger.Info("removed cached files", "extensions", exts, "count", removed)
	return nil
}

// newRenderer starts the renderer selected by the configuration.
func newRenderer(ctx context.Context, cfg *config.Config, fetcher *fetch.Client, logger *slog.Logger) (render.Renderer, error) {
	if cfg.NoBrowser {
		logger.Debug("rendering pages without a browser")
		return render.NewHTTP(fetcher), nil
	}
	return render.NewChrome(ctx,
		render.WithExecPath(cfg.BrowserPath),
		render.WithHeadless(!cfg.NonHeadless),
		render.WithProxy(cfg.Proxy),
		render.WithChromeLogger(logger),
	)
}

// recordRun stores the run in the history database. Failures are logged
// and never fail the run.
func recordRun(ctx context.Context, cfg *config.Config, site *config.Site, runReport *report.RunReport, logger *slog.Logger) {
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		logger.Error("failed to open history database", "dir", cfg.DBDir, "error", err)
		return
	}
	defer db.Close()

	siteYAML, err := yaml.Marshal(site)
	if err != nil {
		logger.Warn("failed to serialize site configuration", "error", err)
	}

	runReport.RunID = database.NewRunID()
	if err := db.SaveRun(ctx, runReport.ToHistory(string(siteYAML)), runReport.Pages); err != nil {
		logger.Error("failed to record run", "error", err)
		runReport.RunID = ""
		return
	}
	logger.Debug("run recorded", "run_id", runReport.RunID, "db", db.Path())
}
