package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
	"golang.org/x/text/unicode/norm"

	"github.com/nao1215/sitemirror/internal/assetcache"
	"github.com/nao1215/sitemirror/internal/model"
)

// cssURL matches a url() token and captures the reference without quotes.
var cssURL = regexp.MustCompile(`(?i)url\(\s*['"]?([^'")]*?)['"]?\s*\)`)

// BackgroundImageStep caches images referenced by inline background-image
// declarations.
type BackgroundImageStep struct {
	store  AssetStore
	logger *slog.Logger
}

// NewBackgroundImageStep creates a BackgroundImageStep.
func NewBackgroundImageStep(store AssetStore, logger *slog.Logger) *BackgroundImageStep {
	return &BackgroundImageStep{store: store, logger: logger}
}

// Name returns the step name.
func (s *BackgroundImageStep) Name() string {
	return "background_images"
}

// Do rewrites every background-image url() of a style attribute.
func (s *BackgroundImageStep) Do(ctx context.Context, page *model.Page) error {
	page.Doc.Find("[style]").Each(func(_ int, sel *goquery.Selection) {
		style, _ := sel.Attr("style")
		decls, err := parser.ParseDeclarations(terminate(style))
		if err != nil {
			s.logger.Debug("skipping unparsable inline style", "style", style, "error", err)
			return
		}

		changed := false
		for _, decl := range decls {
			if !strings.EqualFold(decl.Property, "background-image") {
				continue
			}
			if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(decl.Value)), "url") {
				continue
			}
			decl.Value = replaceURLs(decl.Value, func(raw string) (string, bool) {
				if isDataURI(raw) {
					return "", false
				}
				cached, ok := cacheRef(ctx, s.store, page, resolveRef(page.URL, raw))
				changed = changed || ok
				return cached, ok
			})
		}
		if changed {
			sel.SetAttr("style", serializeDeclarations(decls))
		}
	})
	return nil
}

// ImageStep caches the source of every <img>.
type ImageStep struct {
	store  AssetStore
	domain string
	logger *slog.Logger
}

// NewImageStep creates an ImageStep. domain is the scheme and host that
// root-relative sources are resolved against.
func NewImageStep(store AssetStore, domain string, logger *slog.Logger) *ImageStep {
	return &ImageStep{store: store, domain: strings.TrimRight(domain, "/"), logger: logger}
}

// Name returns the step name.
func (s *ImageStep) Name() string {
	return "images"
}

// Do rewrites <img src>. Data URIs are left alone.
func (s *ImageStep) Do(ctx context.Context, page *model.Page) error {
	page.Doc.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		if strings.Contains(src, "data:image") {
			return
		}
		ref := s.absolute(page.URL, src)
		cached, _ := cacheRef(ctx, s.store, page, ref)
		sel.SetAttr("src", cached)
	})
	return nil
}

// absolute resolves an image source. Root-relative sources are the site's
// own image proxy, which carries the real image URL percent-encoded in its
// path; it is decoded so the cache key is stable, except for signed S3 URLs
// whose signature covers the encoding.
func (s *ImageStep) absolute(pageURL, src string) string {
	if !strings.HasPrefix(src, "/") || strings.HasPrefix(src, "//") {
		return resolveRef(pageURL, src)
	}
	ref := s.domain + src
	if strings.Contains(ref, ".amazonaws") {
		return ref
	}
	if decoded, err := url.PathUnescape(ref); err == nil {
		ref = norm.NFC.String(decoded)
	}
	return ref
}

// ScriptStep caches every external script.
type ScriptStep struct {
	store  AssetStore
	logger *slog.Logger
}

// NewScriptStep creates a ScriptStep.
func NewScriptStep(store AssetStore, logger *slog.Logger) *ScriptStep {
	return &ScriptStep{store: store, logger: logger}
}

// Name returns the step name.
func (s *ScriptStep) Name() string {
	return "scripts"
}

// Do rewrites <script src>.
func (s *ScriptStep) Do(ctx context.Context, page *model.Page) error {
	page.Doc.Find("script[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		if isDataURI(src) {
			return
		}
		cached, _ := cacheRef(ctx, s.store, page, resolveRef(page.URL, src))
		sel.SetAttr("src", cached)
	})
	return nil
}

// StylesheetStep caches linked stylesheets and the fonts they declare.
type StylesheetStep struct {
	store  AssetStore
	logger *slog.Logger
}

// NewStylesheetStep creates a StylesheetStep.
func NewStylesheetStep(store AssetStore, logger *slog.Logger) *StylesheetStep {
	return &StylesheetStep{store: store, logger: logger}
}

// Name returns the step name.
func (s *StylesheetStep) Name() string {
	return "stylesheets"
}

// Do caches each stylesheet as a .css file, rewrites the @font-face sources
// inside the cached copy and points the link at it.
func (s *StylesheetStep) Do(ctx context.Context, page *model.Page) error {
	var errs []error
	page.Doc.Find(`link[rel~="stylesheet"][href]`).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if isDataURI(href) {
			return
		}
		ref := resolveRef(page.URL, href)
		rel := s.store.Store(ctx, ref, assetcache.WithExtension("css"))
		if rel == ref {
			return
		}
		if err := s.rewriteFonts(ctx, ref, rel); err != nil {
			errs = append(errs, err)
		}
		sel.SetAttr("href", page.Ref(rel))
	})
	return errors.Join(errs...)
}

// rewriteFonts caches the fonts of the stylesheet stored at rel, under their
// original file names so every rule using a font shares one file. Fonts are
// downloaded one after another, in the order they are declared.
func (s *StylesheetStep) rewriteFonts(ctx context.Context, sheetURL, rel string) error {
	file := filepath.Join(s.store.Root(), filepath.FromSlash(rel))
	data, err := os.ReadFile(file) //nolint:gosec // file is under the output root
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrStylesheet, rel, err)
	}
	sheet, err := parser.Parse(string(data))
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrStylesheet, rel, err)
	}

	sources := fontSources(sheet.Rules)
	if len(sources) == 0 {
		return nil
	}

	cached := make(map[string]string)
	for _, decl := range sources {
		for _, m := range cssURL.FindAllStringSubmatch(decl.Value, -1) {
			raw := strings.TrimSpace(m[1])
			if _, seen := cached[raw]; seen || raw == "" || isDataURI(raw) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			abs := resolveRef(sheetURL, raw)
			name := fontFileName(abs)
			if name == "" {
				s.logger.Warn("skipping font without a file name", "url", abs)
				continue
			}
			local := s.store.Store(ctx, abs, assetcache.WithFilename(name))
			if local == abs {
				local = ""
			}
			cached[raw] = local
		}
	}

	sheetDir := path.Dir(rel)
	for _, decl := range sources {
		decl.Value = replaceURLs(decl.Value, func(raw string) (string, bool) {
			local := cached[raw]
			if local == "" {
				return "", false
			}
			return model.RelativeRef(sheetDir, local), true
		})
	}

	if err := os.WriteFile(file, []byte(sheet.String()), 0o600); err != nil {
		return fmt.Errorf("%w %s: %w", ErrStylesheet, rel, err)
	}
	s.logger.Debug("rewrote stylesheet fonts", "stylesheet", rel, "fonts", len(cached))
	return nil
}

// fontSources returns the src declarations of every @font-face rule,
// including those nested in @media or @supports blocks.
func fontSources(rules []*css.Rule) []*css.Declaration {
	var out []*css.Declaration
	for _, rule := range rules {
		if rule.Kind == css.AtRule && strings.EqualFold(rule.Name, "@font-face") {
			for _, decl := range rule.Declarations {
				if strings.EqualFold(decl.Property, "src") {
					out = append(out, decl)
				}
			}
		}
		if rule.EmbedsRules() {
			out = append(out, fontSources(rule.Rules)...)
		}
	}
	return out
}

// fontFileName returns the unescaped last path segment of a font URL.
func fontFileName(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// cacheRef stores ref and returns the reference to write into page. The
// boolean is false, and ref is returned, when the asset was not cached.
func cacheRef(ctx context.Context, store AssetStore, page *model.Page, ref string, opts ...assetcache.StoreOption) (string, bool) {
	rel := store.Store(ctx, ref, opts...)
	if rel == ref {
		return ref, false
	}
	return page.Ref(rel), true
}

// resolveRef resolves ref against base. ref is returned as is when either
// cannot be parsed.
func resolveRef(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// replaceURLs rewrites each url() token of value with the reference
// returned by fn. Tokens for which fn reports false are kept verbatim.
func replaceURLs(value string, fn func(raw string) (string, bool)) string {
	return cssURL.ReplaceAllStringFunc(value, func(match string) string {
		m := cssURL.FindStringSubmatch(match)
		if m == nil {
			return match
		}
		replacement, ok := fn(strings.TrimSpace(m[1]))
		if !ok {
			return match
		}
		return "url(" + replacement + ")"
	})
}

func isDataURI(ref string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(ref)), "data:")
}

// terminate appends the semicolon the declaration parser needs to keep the
// value of the last declaration.
func terminate(style string) string {
	style = strings.TrimSpace(style)
	if style != "" && !strings.HasSuffix(style, ";") {
		style += ";"
	}
	return style
}

func serializeDeclarations(decls []*css.Declaration) string {
	parts := make([]string, len(decls))
	for i, decl := range decls {
		parts[i] = decl.String()
	}
	return strings.Join(parts, " ")
}
