package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nao1215/sitemirror/internal/assetcache"
	"github.com/nao1215/sitemirror/internal/config"
	"github.com/nao1215/sitemirror/internal/model"
	"github.com/nao1215/sitemirror/internal/render"
)

// fakeRenderer serves fixed markup per URL.
type fakeRenderer struct {
	mu      sync.Mutex
	pages   map[string]string
	calls   []string
	timeout map[string]bool
	closed  int
}

func (f *fakeRenderer) Render(_ context.Context, rawURL string, _ time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rawURL)
	if f.timeout[rawURL] {
		return "", render.ErrRenderTimeout
	}
	markup, ok := f.pages[rawURL]
	if !ok {
		return "", errors.New("net::ERR_NAME_NOT_RESOLVED")
	}
	return markup, nil
}

func (f *fakeRenderer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newImageServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/img.png" {
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("PNG"))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(server.Close)
	return server
}

func readDoc(t *testing.T, path string) *goquery.Document {
	t.Helper()
	f, err := os.Open(path) //nolint:gosec // test file
	require.NoError(t, err)
	defer f.Close()
	doc, err := goquery.NewDocumentFromReader(f)
	require.NoError(t, err)
	return doc
}

// TestCrawler_Run tests the end to end mirroring of a small site.
func TestCrawler_Run(t *testing.T) {
	t.Parallel()

	server := newImageServer(t)
	start := server.URL + "/"
	renderer := &fakeRenderer{pages: map[string]string{
		start: `<html><head></head><body><div class="notion-scroller">
<a id="about" href="/about">About</a>
<a id="external" href="https://external.example.com/page">Elsewhere</a>
<img id="logo" src="/img.png">
</div></body></html>`,
		server.URL + "/about": `<html><head></head><body>
<a id="home" href="/">Home</a>
<a id="team" href="/about#team">Team</a>
</body></html>`,
	}}

	root := t.TempDir()
	cache := assetcache.New(root, assetcache.WithLogger(discardLogger()))
	site := config.NewSite(start)

	var states []model.State
	c := New(site, renderer, cache,
		WithLogger(discardLogger()),
		WithProgress(func(p Progress) { states = append(states, p.State) }),
	)

	result, err := c.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Pages, 2)
	assert.Equal(t, "index.html", result.Pages[0].Path)
	assert.Equal(t, "about", result.Pages[1].Path)
	assert.Equal(t, []string{start, server.URL + "/about"}, renderer.calls)
	assert.Equal(t, 1, renderer.closed)
	assert.Empty(t, result.Failed)
	assert.Equal(t, 1, result.Assets.Downloaded)
	assert.Equal(t, root, result.Output)

	index := readDoc(t, filepath.Join(root, "index.html"))
	href, _ := index.Find("#about").Attr("href")
	assert.Equal(t, "about", href)
	external, _ := index.Find("#external").Attr("href")
	assert.Equal(t, "https://external.example.com/page", external)
	logo, _ := index.Find("#logo").Attr("src")
	assert.Equal(t, assetcache.Digest(server.URL+"/img.png")+".png", logo)
	assert.FileExists(t, filepath.Join(root, logo))

	about := readDoc(t, filepath.Join(root, "about"))
	home, _ := about.Find("#home").Attr("href")
	assert.Equal(t, "index.html", home)
	team, _ := about.Find("#team").Attr("href")
	assert.Equal(t, "#team", team)

	assert.Equal(t, model.StateRendering, states[0])
	assert.Equal(t, model.StateDone, states[len(states)-1])
}

// TestCrawler_RunDepthFirst tests the visit order and the visited-once rule.
func TestCrawler_RunDepthFirst(t *testing.T) {
	t.Parallel()

	base := "https://example.com"
	renderer := &fakeRenderer{pages: map[string]string{
		base + "/":  `<html><body><a href="/a">a</a><a href="/b">b</a><a href="/a#x">a again</a></body></html>`,
		base + "/a": `<html><body><a href="/a1">a1</a><a href="/b">b</a></body></html>`,
		base + "/a1": `<html><body><a href="/">home</a></body></html>`,
		base + "/b":  `<html><body><a href="/a">a</a></body></html>`,
	}}

	c := New(config.NewSite(base+"/"), renderer,
		assetcache.New(t.TempDir(), assetcache.WithLogger(discardLogger())),
		WithLogger(discardLogger()),
	)
	result, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{base + "/", base + "/a", base + "/a1", base + "/b"}, renderer.calls)
	assert.Len(t, result.Pages, 4)
}

// TestCrawler_RunSinglePage tests that only the starting page is exported.
func TestCrawler_RunSinglePage(t *testing.T) {
	t.Parallel()

	base := "https://example.com"
	renderer := &fakeRenderer{pages: map[string]string{
		base + "/": `<html><body><a href="/a">a</a></body></html>`,
	}}
	root := t.TempDir()

	c := New(config.NewSite(base+"/"), renderer,
		assetcache.New(root, assetcache.WithLogger(discardLogger())),
		WithLogger(discardLogger()),
		WithSinglePage(true),
	)
	result, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.Pages, 1)
	assert.Equal(t, []string{base + "/"}, renderer.calls)
	assert.NoFileExists(t, filepath.Join(root, "a"))
}

// TestCrawler_RunTimeout tests that a render timeout ends the run.
func TestCrawler_RunTimeout(t *testing.T) {
	t.Parallel()

	base := "https://example.com"
	renderer := &fakeRenderer{
		pages: map[string]string{
			base + "/": `<html><body><a href="/slow">slow</a><a href="/next">next</a></body></html>`,
			base + "/next": `<html><body></body></html>`,
		},
		timeout: map[string]bool{base + "/slow": true},
	}

	c := New(config.NewSite(base+"/"), renderer,
		assetcache.New(t.TempDir(), assetcache.WithLogger(discardLogger())),
		WithLogger(discardLogger()),
	)
	result, err := c.Run(context.Background())
	require.ErrorIs(t, err, render.ErrRenderTimeout)
	assert.Len(t, result.Pages, 1)
	assert.Equal(t, 1, renderer.closed)
	assert.NotContains(t, renderer.calls, base+"/next")
}

// TestCrawler_RunSkipsBrokenPage tests that a page failing to load is
// recorded and the run continues.
func TestCrawler_RunSkipsBrokenPage(t *testing.T) {
	t.Parallel()

	base := "https://example.com"
	renderer := &fakeRenderer{pages: map[string]string{
		base + "/":     `<html><body><a href="/gone">gone</a><a href="/next">next</a></body></html>`,
		base + "/next": `<html><body><a href="/gone">gone again</a></body></html>`,
	}}

	c := New(config.NewSite(base+"/"), renderer,
		assetcache.New(t.TempDir(), assetcache.WithLogger(discardLogger())),
		WithLogger(discardLogger()),
	)
	result, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, result.Pages, 2)
	assert.Equal(t, []string{base + "/gone"}, result.Failed)
	assert.Equal(t, []string{base + "/", base + "/gone", base + "/next"}, renderer.calls)
}

// TestCrawler_RunCancelled tests that cancellation stops the run.
func TestCrawler_RunCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	renderer := &fakeRenderer{pages: map[string]string{}}
	c := New(config.NewSite("https://example.com/"), renderer,
		assetcache.New(t.TempDir(), assetcache.WithLogger(discardLogger())),
		WithLogger(discardLogger()),
	)
	_, err := c.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, renderer.calls)
	assert.Equal(t, 1, renderer.closed)
}

// TestCrawler_RunCustomPaths tests page path overrides and nested output.
func TestCrawler_RunCustomPaths(t *testing.T) {
	t.Parallel()

	base := "https://example.com"
	site, err := config.ParseSite([]byte(`
page: https://example.com/
pages:
  about:
    path: about-us.html
`), config.FormatYAML)
	require.NoError(t, err)

	renderer := &fakeRenderer{pages: map[string]string{
		base + "/":          `<html><body><a id="about" href="/about">about</a><a id="post" href="/blog/post">post</a></body></html>`,
		base + "/about":     `<html><body></body></html>`,
		base + "/blog/post": `<html><body><a id="back" href="/about">about</a></body></html>`,
	}}
	root := t.TempDir()

	c := New(site, renderer,
		assetcache.New(root, assetcache.WithLogger(discardLogger())),
		WithLogger(discardLogger()),
	)
	_, err = c.Run(context.Background())
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(root, "about-us.html"))
	assert.FileExists(t, filepath.Join(root, "blog", "post"))

	index := readDoc(t, filepath.Join(root, "index.html"))
	about, _ := index.Find("#about").Attr("href")
	assert.Equal(t, "about-us.html", about)

	post := readDoc(t, filepath.Join(root, "blog", "post"))
	back, _ := post.Find("#back").Attr("href")
	assert.Equal(t, "../about-us.html", back)
}

// TestCrawler_RunStaysInOutputRoot tests that parent segments in links and
// custom paths never write outside the output root.
func TestCrawler_RunStaysInOutputRoot(t *testing.T) {
	t.Parallel()

	base := "https://example.com"
	site, err := config.ParseSite([]byte(`
page: https://example.com/
pages:
  sneaky:
    path: ../sneaky.html
`), config.FormatYAML)
	require.NoError(t, err)

	renderer := &fakeRenderer{pages: map[string]string{
		base + "/": `<html><body><a id="up" href="/a/../../escaped">up</a><a id="sneaky" href="/sneaky">sneaky</a></body></html>`,
		base + "/a/../../escaped": `<html><body></body></html>`,
		base + "/sneaky":          `<html><body></body></html>`,
	}}
	parent := t.TempDir()
	root := filepath.Join(parent, "out")

	c := New(site, renderer,
		assetcache.New(root, assetcache.WithLogger(discardLogger())),
		WithLogger(discardLogger()),
	)
	result, err := c.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Pages, 2)
	assert.Equal(t, "escaped", result.Pages[1].Path)
	assert.FileExists(t, filepath.Join(root, "escaped"))
	assert.NoFileExists(t, filepath.Join(parent, "escaped"))

	assert.Equal(t, []string{base + "/sneaky"}, result.Failed)
	assert.NoFileExists(t, filepath.Join(parent, "sneaky.html"))

	index := readDoc(t, filepath.Join(root, "index.html"))
	up, _ := index.Find("#up").Attr("href")
	assert.Equal(t, "escaped", up)
}

func TestDestination(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "out")

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{"file", "about", filepath.Join(root, "about"), false},
		{"nested", "blog/post", filepath.Join(root, "blog", "post"), false},
		{"inner parent", "blog/../about", filepath.Join(root, "about"), false},
		{"rooted", "/about", filepath.Join(root, "about"), false},
		{"parent", "../about", "", true},
		{"deep parent", "a/../../about", "", true},
		{"root itself", ".", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := destination(root, tt.path)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrOutsideOutput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResult_Summary(t *testing.T) {
	t.Parallel()

	result := &Result{
		Pages:   make([]model.ExportedPage, 3),
		Elapsed: time.Hour + 2*time.Minute + 5*time.Second + 300*time.Millisecond,
	}
	assert.Equal(t, "Processed 3 pages in 01:02:05", result.Summary())
	assert.Equal(t, "00:00:00", FormatElapsed(0))
}

func TestStatusOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, model.RunCompleted, StatusOf(nil))
	assert.Equal(t, model.RunTimeout, StatusOf(fmt.Errorf("page: %w", render.ErrRenderTimeout)))
	assert.Equal(t, model.RunCancelled, StatusOf(context.Canceled))
	assert.Equal(t, model.RunFailed, StatusOf(errors.New("boom")))
}
