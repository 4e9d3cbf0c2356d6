package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/sitemirror/internal/config"
	"github.com/nao1215/sitemirror/internal/database"
	"github.com/nao1215/sitemirror/internal/fetch"
	"github.com/nao1215/sitemirror/internal/model"
	"github.com/nao1215/sitemirror/internal/render"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// newSiteServer serves a two page site with one image.
func newSiteServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Home</title></head><body>
<a id="about" href="/about">About</a>
<img id="logo" src="/logo.png">
</body></html>`))
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>About</title></head><body>
<a id="home" href="/">Home</a>
</body></html>`))
	})
	mux.HandleFunc("/logo.png", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("PNG"))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// TestNewMirrorCmd tests the mirror command flags.
func TestNewMirrorCmd(t *testing.T) {
	t.Parallel()

	cmd := NewMirrorCmd()

	tests := []struct {
		name      string
		shorthand string
		defValue  string
	}{
		{"output", "o", ""},
		{"clean", "", "false"},
		{"clean-css", "", "false"},
		{"clean-js", "", "false"},
		{"single-page", "s", "false"},
		{"timeout", "t", config.DefaultTimeout.String()},
		{"fetch-timeout", "", config.DefaultFetchTimeout.String()},
		{"user-agent", "", config.DefaultUserAgent},
		{"proxy", "", ""},
		{"browser", "", ""},
		{"non-headless", "", "false"},
		{"no-browser", "", "false"},
		{"report", "r", ""},
		{"no-history", "", "false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(tt.name)
			if flag == nil {
				t.Fatalf("expected %s flag", tt.name)
			}
			if flag.Shorthand != tt.shorthand {
				t.Errorf("expected shorthand %q, got %q", tt.shorthand, flag.Shorthand)
			}
			if flag.DefValue != tt.defValue {
				t.Errorf("expected default %q, got %q", tt.defValue, flag.DefValue)
			}
		})
	}

	t.Run("requires exactly one argument", func(t *testing.T) {
		t.Parallel()
		cmd := NewMirrorCmd()
		cmd.SetArgs([]string{})
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		if err := cmd.Execute(); err == nil {
			t.Error("expected error without a target")
		}
	})
}

// TestBuildConfig tests flag parsing into a Config.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		cmd := NewMirrorCmd()
		if err := cmd.ParseFlags([]string{}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd, []string{"https://example.com/"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Target != "https://example.com/" {
			t.Errorf("unexpected target %q", cfg.Target)
		}
		if cfg.Timeout != config.DefaultTimeout || cfg.FetchTimeout != config.DefaultFetchTimeout {
			t.Errorf("unexpected timeouts %v %v", cfg.Timeout, cfg.FetchTimeout)
		}
		if !cfg.SaveToDB {
			t.Error("expected history to be enabled by default")
		}
		if cfg.Clean || cfg.CleanCSS || cfg.CleanJS || cfg.SinglePage || cfg.NoBrowser {
			t.Errorf("unexpected boolean defaults %+v", cfg)
		}
	})

	t.Run("flags", func(t *testing.T) {
		t.Parallel()

		cmd := NewMirrorCmd()
		err := cmd.ParseFlags([]string{
			"--clean-css", "--clean-js", "-s", "-t", "5s", "--fetch-timeout", "0",
			"--no-browser", "--no-history", "-o", "out", "-r", "report.md",
			"--browser", "/usr/bin/chromium", "--non-headless", "--user-agent", "test-agent", "--proxy", "127.0.0.1:1080",
		})
		if err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd, []string{"site.yaml"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !cfg.CleanCSS || !cfg.CleanJS || !cfg.SinglePage || !cfg.NoBrowser || !cfg.NonHeadless {
			t.Errorf("boolean flags not applied: %+v", cfg)
		}
		if cfg.Timeout != 5*time.Second || cfg.FetchTimeout != 0 {
			t.Errorf("unexpected timeouts %v %v", cfg.Timeout, cfg.FetchTimeout)
		}
		if cfg.SaveToDB {
			t.Error("expected --no-history to disable the history database")
		}
		if cfg.Output != "out" || cfg.ReportFile != "report.md" {
			t.Errorf("unexpected paths %q %q", cfg.Output, cfg.ReportFile)
		}
		if cfg.BrowserPath != "/usr/bin/chromium" || cfg.UserAgent != "test-agent" || cfg.Proxy != "127.0.0.1:1080" {
			t.Errorf("unexpected browser settings %+v", cfg)
		}
	})
}

// TestLoadSite tests the URL and file targets.
func TestLoadSite(t *testing.T) {
	t.Parallel()

	t.Run("url target", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewConfig()
		cfg.Target = "https://docs.example.com/start"

		site, err := loadSite(cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if site.Page != cfg.Target {
			t.Errorf("unexpected page %q", site.Page)
		}
		if site.OutputDir() != filepath.Join(config.DefaultOutputBase, "docs.example.com") {
			t.Errorf("unexpected output %q", site.OutputDir())
		}
	})

	t.Run("file target with output override", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "site.toml")
		content := "page = \"https://example.com/\"\nname = \"blog\"\noutput = \"dist/blog\"\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}

		cfg := config.NewConfig()
		cfg.Target = path
		cfg.Output = "elsewhere"

		site, err := loadSite(cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if site.SiteName() != "blog" {
			t.Errorf("unexpected name %q", site.SiteName())
		}
		if site.OutputDir() != "elsewhere" {
			t.Errorf("expected output override, got %q", site.OutputDir())
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		cfg := config.NewConfig()
		cfg.Target = filepath.Join(t.TempDir(), "missing.yaml")

		if _, err := loadSite(cfg); !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})
}

// newTestConfig returns a configuration mirroring target into temporary
// directories without a browser.
func newTestConfig(t *testing.T, target string) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Target = target
	cfg.Output = filepath.Join(t.TempDir(), "out")
	cfg.DBDir = t.TempDir()
	cfg.NoBrowser = true
	cfg.Timeout = 10 * time.Second
	cfg.FetchTimeout = 10 * time.Second
	return cfg
}

// TestRunMirror tests a complete run against a local site.
func TestRunMirror(t *testing.T) {
	t.Parallel()

	server := newSiteServer(t)
	cfg := newTestConfig(t, server.URL+"/")
	cfg.ReportFile = filepath.Join(t.TempDir(), "reports", "run.md")

	var stdout bytes.Buffer
	if err := runMirror(context.Background(), cfg, discardLogger(), mirrorOptions{stdout: &stdout}); err != nil {
		t.Fatalf("runMirror() error = %v", err)
	}

	if !strings.Contains(stdout.String(), "Processed 2 pages in") {
		t.Errorf("unexpected summary %q", stdout.String())
	}

	for _, name := range []string{"index.html", "about"} {
		if _, err := os.Stat(filepath.Join(cfg.Output, name)); err != nil {
			t.Errorf("expected %s to be exported: %v", name, err)
		}
	}
	index, err := os.ReadFile(filepath.Join(cfg.Output, "index.html")) //nolint:gosec // test file
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(index), `href="about"`) {
		t.Errorf("expected the about link to be rewritten, got %s", index)
	}
	if strings.Contains(string(index), server.URL+"/logo.png") || strings.Contains(string(index), `src="/logo.png"`) {
		t.Errorf("expected the image to be served locally, got %s", index)
	}

	reportContent, err := os.ReadFile(cfg.ReportFile)
	if err != nil {
		t.Fatalf("expected a report file: %v", err)
	}
	if !strings.Contains(string(reportContent), "# Mirror Report: ") {
		t.Errorf("unexpected report %s", reportContent)
	}

	db, err := database.Open(cfg.DBDir, database.Options{CreateIfNotExists: false})
	if err != nil {
		t.Fatalf("expected a history database: %v", err)
	}
	defer db.Close()
	runs, err := db.ListRuns(context.Background(), "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 recorded run, got %d", len(runs))
	}
	if runs[0].Status != model.RunCompleted || runs[0].Pages != 2 {
		t.Errorf("unexpected recorded run %+v", runs[0])
	}
	if !strings.Contains(runs[0].Config, "page: "+server.URL+"/") {
		t.Errorf("expected the site configuration to be recorded, got %q", runs[0].Config)
	}
	if !strings.Contains(string(reportContent), runs[0].ID) {
		t.Error("expected the report to carry the run ID")
	}
}

// TestRunMirror_NoHistory tests that --no-history leaves no database behind.
func TestRunMirror_NoHistory(t *testing.T) {
	t.Parallel()

	server := newSiteServer(t)
	cfg := newTestConfig(t, server.URL+"/")
	cfg.SaveToDB = false
	cfg.SinglePage = true

	var stdout bytes.Buffer
	if err := runMirror(context.Background(), cfg, discardLogger(), mirrorOptions{stdout: &stdout}); err != nil {
		t.Fatalf("runMirror() error = %v", err)
	}
	if !strings.Contains(stdout.String(), "Processed 1 pages in") {
		t.Errorf("unexpected summary %q", stdout.String())
	}
	if _, err := os.Stat(filepath.Join(cfg.DBDir, database.FileName)); !os.IsNotExist(err) {
		t.Error("expected no history database")
	}
}

// TestRunMirror_Unreachable tests the connectivity check of URL targets.
func TestRunMirror_Unreachable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	target := server.URL + "/"
	server.Close()

	cfg := newTestConfig(t, target)
	err := runMirror(context.Background(), cfg, discardLogger(), mirrorOptions{})
	if !errors.Is(err, fetch.ErrConnectivity) {
		t.Fatalf("expected ErrConnectivity, got %v", err)
	}
	if _, statErr := os.Stat(cfg.Output); !os.IsNotExist(statErr) {
		t.Error("expected no output to be written")
	}
}

// timeoutRenderer never produces a stable page.
type timeoutRenderer struct{}

func (timeoutRenderer) Render(context.Context, string, time.Duration) (string, error) {
	return "", render.ErrRenderTimeout
}

func (timeoutRenderer) Close() error { return nil }

// TestRunMirror_Timeout tests that a timed out run is reported and recorded.
func TestRunMirror_Timeout(t *testing.T) {
	t.Parallel()

	server := newSiteServer(t)
	cfg := newTestConfig(t, server.URL+"/")

	var stdout bytes.Buffer
	err := runMirror(context.Background(), cfg, discardLogger(), mirrorOptions{
		stdout:   &stdout,
		renderer: timeoutRenderer{},
	})
	if !errors.Is(err, render.ErrRenderTimeout) {
		t.Fatalf("expected ErrRenderTimeout, got %v", err)
	}
	if !strings.Contains(stdout.String(), "Processed 0 pages in") {
		t.Errorf("unexpected summary %q", stdout.String())
	}

	db, err := database.Open(cfg.DBDir, database.Options{CreateIfNotExists: false})
	if err != nil {
		t.Fatalf("expected a history database: %v", err)
	}
	defer db.Close()
	runs, err := db.ListRuns(context.Background(), "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Status != model.RunTimeout {
		t.Errorf("expected one timed out run, got %+v", runs)
	}
}

// TestPrepareOutput tests the clean flags.
func TestPrepareOutput(t *testing.T) {
	t.Parallel()

	setup := func(t *testing.T) string {
		t.Helper()
		root := t.TempDir()
		for _, name := range []string{"a.css", "b.js", "c.png", "index.html"} {
			if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0o600); err != nil {
				t.Fatal(err)
			}
		}
		return root
	}

	tests := []struct {
		name   string
		apply  func(cfg *config.Config)
		remain []string
		gone   []string
	}{
		{
			name:   "nothing to clean",
			apply:  func(*config.Config) {},
			remain: []string{"a.css", "b.js", "c.png", "index.html"},
		},
		{
			name:   "clean css",
			apply:  func(cfg *config.Config) { cfg.CleanCSS = true },
			remain: []string{"b.js", "c.png", "index.html"},
			gone:   []string{"a.css"},
		},
		{
			name:   "clean css and js",
			apply:  func(cfg *config.Config) { cfg.CleanCSS, cfg.CleanJS = true, true },
			remain: []string{"c.png", "index.html"},
			gone:   []string{"a.css", "b.js"},
		},
		{
			name:  "clean everything",
			apply: func(cfg *config.Config) { cfg.Clean = true },
			gone:  []string{"a.css", "b.js", "c.png", "index.html"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			root := setup(t)
			cfg := config.NewConfig()
			tt.apply(cfg)

			if err := prepareOutput(cfg, root, discardLogger()); err != nil {
				t.Fatalf("prepareOutput() error = %v", err)
			}
			for _, name := range tt.remain {
				if _, err := os.Stat(filepath.Join(root, name)); err != nil {
					t.Errorf("expected %s to remain", name)
				}
			}
			for _, name := range tt.gone {
				if _, err := os.Stat(filepath.Join(root, name)); !os.IsNotExist(err) {
					t.Errorf("expected %s to be removed", name)
				}
			}
		})
	}
}
