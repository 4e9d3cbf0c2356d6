package assetcache

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/nao1215/sitemirror/internal/fetch"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// assetServer serves a few assets and counts requests per path.
type assetServer struct {
	*httptest.Server
	requests atomic.Int64
}

func newAssetServer(t *testing.T) *assetServer {
	t.Helper()
	s := &assetServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		switch r.URL.Path {
		case "/img.png", "/img.png?v=1":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("png"))
		case "/image":
			w.Header().Set("Content-Type", "image/jpeg; charset=binary")
			_, _ = w.Write([]byte("jpeg"))
		case "/style":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("body{}"))
		case "/fonts/a.woff2":
			_, _ = w.Write([]byte("font"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	return New(t.TempDir(), WithFetcher(fetch.NewClient()), WithLogger(discardLogger()))
}

// TestKey tests canonicalization of asset URLs.
func TestKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"query dropped", "https://cdn.example.com/a/b.png?v=3&x=1", "cdn.example.com/a/b.png"},
		{"width kept", "https://cdn.example.com/a/b.png?v=3&width=300", "cdn.example.com/a/b.png?width=300"},
		{"fragment dropped", "https://cdn.example.com/a.svg#icon", "cdn.example.com/a.svg"},
		{"local path", "assets/logo.png", "assets/logo.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Key(tt.ref); got != tt.want {
				t.Errorf("Key(%q) = %q, want %q", tt.ref, got, tt.want)
			}
		})
	}

	if len(Digest("https://example.com/a.png")) != 40 {
		t.Error("expected a 40 character hex digest")
	}
}

// TestDigest_WidthAware tests that only the width parameter splits cache entries.
func TestDigest_WidthAware(t *testing.T) {
	t.Parallel()

	base := "https://cdn.example.com/photo.jpg"
	if Digest(base+"?width=100") == Digest(base+"?width=200") {
		t.Error("expected different widths to produce different digests")
	}
	if Digest(base+"?v=1") != Digest(base+"?v=2") {
		t.Error("expected other query parameters to be ignored")
	}
	if Digest(base+"?width=100&v=1") != Digest(base+"?v=2&width=100") {
		t.Error("expected same width with other parameters to share a digest")
	}
}

// TestExtFromURL tests extension detection from URL paths.
func TestExtFromURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{"https://example.com/a/b.png", ".png"},
		{"https://example.com/a/b.PNG?x=1", ".PNG"},
		{"https://example.com/a/b.png%3Fwidth=10", ".png"},
		{"https://example.com/a/b.png%3fwidth=10", ".png"},
		{"https://example.com/image/https%3A%2F%2Fs3.aws.com%2Fphoto.jpeg", ".jpeg"},
		{"https://example.com/a/b", ""},
		{"https://example.com/a.b/c", ""},
		{"https://example.com/file.", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			u, err := url.Parse(tt.raw)
			if err != nil {
				t.Fatalf("url.Parse() error = %v", err)
			}
			if got := extFromURL(u); got != tt.want {
				t.Errorf("extFromURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

// TestExtFromContentType tests extension guessing from Content-Type headers.
func TestExtFromContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		contentType string
		want        string
	}{
		{"image/jpeg", ".jpg"},
		{"image/svg+xml; charset=utf-8", ".svg"},
		{"text/css; charset=utf-8", ".css"},
		{"font/woff2", ".woff2"},
		{"", ""},
		{"not a media type;;", ""},
		{"application/x-unknown-thing", ""},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			t.Parallel()
			if got := extFromContentType(tt.contentType); got != tt.want {
				t.Errorf("extFromContentType(%q) = %q, want %q", tt.contentType, got, tt.want)
			}
		})
	}
}

// TestCache_StoreIsIdempotent tests that a second Store is served from disk.
func TestCache_StoreIsIdempotent(t *testing.T) {
	t.Parallel()

	server := newAssetServer(t)
	cache := newTestCache(t)
	ref := server.URL + "/img.png?v=1"

	first := cache.Store(context.Background(), ref)
	second := cache.Store(context.Background(), server.URL+"/img.png?v=2")

	if first != Digest(ref)+".png" {
		t.Errorf("expected hashed file name, got %q", first)
	}
	if first != second {
		t.Errorf("expected same path for both calls, got %q and %q", first, second)
	}
	if n := server.requests.Load(); n != 1 {
		t.Errorf("expected exactly one request, got %d", n)
	}

	stats := cache.Stats()
	if stats.Downloaded != 1 || stats.Hits != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

// TestCache_StoreWidthVariants tests that width variants are cached separately.
func TestCache_StoreWidthVariants(t *testing.T) {
	t.Parallel()

	server := newAssetServer(t)
	cache := newTestCache(t)

	small := cache.Store(context.Background(), server.URL+"/img.png?width=100")
	large := cache.Store(context.Background(), server.URL+"/img.png?width=800")

	if small == large {
		t.Errorf("expected distinct entries, both are %q", small)
	}
	if n := server.requests.Load(); n != 2 {
		t.Errorf("expected two requests, got %d", n)
	}
}

// TestCache_StoreExtensions tests the extension priority rules.
func TestCache_StoreExtensions(t *testing.T) {
	t.Parallel()

	server := newAssetServer(t)

	tests := []struct {
		name string
		path string
		opts []StoreOption
		ext  string
	}{
		{name: "explicit extension wins", path: "/style", opts: []StoreOption{WithExtension("css")}, ext: ".css"},
		{name: "url extension", path: "/img.png", ext: ".png"},
		{name: "encoded query truncated", path: "/img.png%3Fv=1", ext: ".png"},
		{name: "content type fallback", path: "/image", ext: ".jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cache := newTestCache(t)
			rel := cache.Store(context.Background(), server.URL+tt.path, tt.opts...)
			if filepath.Ext(rel) != tt.ext {
				t.Errorf("expected extension %q, got %q", tt.ext, rel)
			}
			if _, err := os.Stat(filepath.Join(cache.Root(), rel)); err != nil {
				t.Errorf("expected cached file to exist: %v", err)
			}
		})
	}
}

// TestCache_StoreWithFilename tests fonts stored under their own name.
func TestCache_StoreWithFilename(t *testing.T) {
	t.Parallel()

	server := newAssetServer(t)
	cache := newTestCache(t)

	rel := cache.Store(context.Background(), server.URL+"/fonts/a.woff2", WithFilename("a.woff2"))
	if rel != "a.woff2" {
		t.Errorf("expected a.woff2, got %q", rel)
	}

	// A different rule referencing the same font file shares it.
	again := cache.Store(context.Background(), server.URL+"/other/fonts/a.woff2", WithFilename("a.woff2"))
	if again != "a.woff2" || server.requests.Load() != 1 {
		t.Errorf("expected shared font file without a second request, got %q (%d requests)",
			again, server.requests.Load())
	}

	// A sibling format is not confused with the cached one.
	if err := os.WriteFile(filepath.Join(cache.Root(), "b.woff"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, hit := cache.lookup("b.woff2", true); hit {
		t.Error("expected b.woff not to satisfy b.woff2")
	}
}

// TestCache_ExistingFileAnyExtension tests lookup regardless of extension.
func TestCache_ExistingFileAnyExtension(t *testing.T) {
	t.Parallel()

	server := newAssetServer(t)
	cache := newTestCache(t)
	ref := server.URL + "/image"

	existing := Digest(ref) + ".jpeg"
	if err := os.WriteFile(filepath.Join(cache.Root(), existing), []byte("old"), 0o600); err != nil {
		t.Fatal(err)
	}

	if got := cache.Store(context.Background(), ref); got != existing {
		t.Errorf("expected existing file %q, got %q", existing, got)
	}
	if n := server.requests.Load(); n != 0 {
		t.Errorf("expected no request, got %d", n)
	}
}

// TestCache_StoreFailureKeepsReference tests the degraded outcome.
func TestCache_StoreFailureKeepsReference(t *testing.T) {
	t.Parallel()

	server := newAssetServer(t)
	cache := newTestCache(t)
	ref := server.URL + "/missing.js"

	if got := cache.Store(context.Background(), ref); got != ref {
		t.Errorf("expected original reference, got %q", got)
	}

	stats := cache.Stats()
	if stats.Failed != 1 || len(stats.FailedRefs) != 1 || stats.FailedRefs[0] != ref {
		t.Errorf("unexpected stats: %+v", stats)
	}

	entries, err := os.ReadDir(cache.Root())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no file to be written for an error page, found %d", len(entries))
	}
}

// TestCache_StoreLocal tests copying local files into the cache.
func TestCache_StoreLocal(t *testing.T) {
	t.Parallel()

	cache := newTestCache(t)
	src := filepath.Join(t.TempDir(), "favicon.ico")
	if err := os.WriteFile(src, []byte("icon"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Run("existing file is copied", func(t *testing.T) {
		rel := cache.Store(context.Background(), src)
		if rel != Digest(src)+".ico" {
			t.Errorf("unexpected cached name %q", rel)
		}
		data, err := os.ReadFile(filepath.Join(cache.Root(), rel))
		if err != nil || string(data) != "icon" {
			t.Errorf("expected copied content, got %q (%v)", data, err)
		}
	})

	t.Run("missing file leaves reference unchanged", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "nope.css")
		if got := cache.Store(context.Background(), missing); got != missing {
			t.Errorf("expected original reference, got %q", got)
		}
	})

	stats := cache.Stats()
	if stats.Copied != 1 || stats.Failed != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

// TestClearExt tests removal of cached files by extension.
func TestClearExt(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for _, name := range []string{"a.css", "b.CSS", "c.js", "d.png", "index.html"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(root, "docs"), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "docs", "e.css"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	removed, err := ClearExt(root, "css", ".js")
	if err != nil {
		t.Fatalf("ClearExt() error = %v", err)
	}
	if removed != 3 {
		t.Errorf("expected 3 files removed, got %d", removed)
	}
	for _, kept := range []string{"d.png", "index.html", filepath.Join("docs", "e.css")} {
		if _, err := os.Stat(filepath.Join(root, kept)); err != nil {
			t.Errorf("expected %s to be kept: %v", kept, err)
		}
	}

	if n, err := ClearExt(filepath.Join(root, "missing"), "css"); err != nil || n != 0 {
		t.Errorf("expected missing root to be a no-op, got %d, %v", n, err)
	}

	if err := Clear(root); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Errorf("expected root to be removed, got %v", err)
	}
}
