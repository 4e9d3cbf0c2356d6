package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nao1215/sitemirror/internal/config"
	"github.com/nao1215/sitemirror/internal/model"
)

// webflowBadge is removed from every page so its assets are never cached.
const webflowBadge = ".w-webflow-badge"

// CleanupStep removes configured scripts and the hosting badge.
type CleanupStep struct {
	logger *slog.Logger
}

// NewCleanupStep creates a CleanupStep.
func NewCleanupStep(logger *slog.Logger) *CleanupStep {
	return &CleanupStep{logger: logger}
}

// Name returns the step name.
func (s *CleanupStep) Name() string {
	return "cleanup"
}

// Do removes every <script> whose src equals a configured source.
func (s *CleanupStep) Do(_ context.Context, page *model.Page) error {
	unwanted := make(map[string]struct{}, len(page.Settings.Cleanup.Scripts))
	for _, script := range page.Settings.Cleanup.Scripts {
		unwanted[script.Src] = struct{}{}
	}

	if len(unwanted) > 0 {
		page.Doc.Find("script[src]").Each(func(_ int, sel *goquery.Selection) {
			src, _ := sel.Attr("src")
			if _, ok := unwanted[src]; ok {
				s.logger.Debug("removing script", "src", src)
				sel.Remove()
			}
		})
	}

	page.Doc.Find(webflowBadge).Remove()
	return nil
}

// MetaStep appends the configured <meta> tags to <head>.
type MetaStep struct {
	logger *slog.Logger
}

// NewMetaStep creates a MetaStep.
func NewMetaStep(logger *slog.Logger) *MetaStep {
	return &MetaStep{logger: logger}
}

// Name returns the step name.
func (s *MetaStep) Name() string {
	return "meta"
}

// Do appends one <meta> per configured attribute map, attributes in file order.
func (s *MetaStep) Do(_ context.Context, page *model.Page) error {
	if len(page.Settings.Meta) == 0 {
		return nil
	}
	head := page.Doc.Find("head").First()
	if head.Length() == 0 {
		return fmt.Errorf("%w: head", ErrNoSection)
	}

	for _, attrs := range page.Settings.Meta {
		tag := model.NewElement("meta")
		for _, attr := range attrs {
			model.SetAttr(tag, attr.Key, attr.Value)
		}
		s.logger.Debug("adding meta tag", "attributes", len(attrs))
		head.AppendNodes(tag)
	}
	return nil
}

// googleFontsURL is the stylesheet that imports a font family.
const googleFontsURL = "https://fonts.googleapis.com/css2?family=%s:wght@500;600;700&display=swap"

// siteRole is the font role applied to the whole page.
const siteRole = "site"

// fontSelectors maps a font role to the elements it styles.
var fontSelectors = map[string]string{
	siteRole: "div:not(.notion-code-block)",
	"navbar": ".notion-topbar div",
	"title":  ".notion-page-block > div, .notion-collection_view_page-block > div[data-root]",
	"h1":     ".notion-header-block div, notion-page-content > notion-collection_view-block > div:first-child div",
	"h2":     ".notion-sub_header-block div",
	"h3":     ".notion-sub_sub_header-block div",
	"body":   ".notion-scroller",
	"code":   ".notion-code-block *",
}

// FontEmbedStep imports the configured font families and overrides the
// font of each role.
type FontEmbedStep struct {
	logger *slog.Logger
}

// NewFontEmbedStep creates a FontEmbedStep.
func NewFontEmbedStep(logger *slog.Logger) *FontEmbedStep {
	return &FontEmbedStep{logger: logger}
}

// Name returns the step name.
func (s *FontEmbedStep) Name() string {
	return "fonts"
}

// Do appends one stylesheet link per family and a <style> block with the
// overrides. The site role goes last and without !important, so every other
// role wins over it.
func (s *FontEmbedStep) Do(_ context.Context, page *model.Page) error {
	fonts := page.Settings.Fonts
	if len(fonts) == 0 {
		return nil
	}
	head := page.Doc.Find("head").First()
	if head.Length() == 0 {
		return fmt.Errorf("%w: head", ErrNoSection)
	}

	families := make(map[string]struct{}, len(fonts))
	for _, family := range fonts {
		if family != "" {
			families[family] = struct{}{}
		}
	}
	for _, family := range sortedKeys(families) {
		link := model.NewElement("link")
		model.SetAttr(link, "rel", "stylesheet")
		model.SetAttr(link, "href", fmt.Sprintf(googleFontsURL, strings.ReplaceAll(family, " ", "+")))
		head.AppendNodes(link)
	}

	var rules strings.Builder
	for _, role := range sortedKeys(fonts) {
		family := fonts[role]
		if family == "" || role == siteRole {
			continue
		}
		selector, ok := fontSelectors[role]
		if !ok {
			s.logger.Warn("unknown font role, skipping", "role", role)
			continue
		}
		s.logger.Debug("setting font-family", "role", role, "family", family)
		fmt.Fprintf(&rules, "%s {font-family:%s !important} ", selector, family)
	}
	if family := fonts[siteRole]; family != "" {
		s.logger.Debug("setting global site font-family", "family", family)
		fmt.Fprintf(&rules, "%s {font-family:%s} ", fontSelectors[siteRole], family)
	}

	style := model.NewElement("style")
	model.SetAttr(style, "type", "text/css")
	model.SetText(style, rules.String())
	head.AppendNodes(style)
	return nil
}

// Attribute names with a special meaning in injected tags.
const (
	// NoneValue renders an attribute without a value, as in <script async>.
	NoneValue = "|NONE_VALUE|"

	innerHTMLKey = "inner_html"
)

// textKeys set the text content of an injected tag.
var textKeys = map[string]struct{}{
	"string":        {},
	"str":           {},
	"inline":        {},
	"inline_script": {},
}

// InjectStep appends the configured tags to <head> and <body>.
type InjectStep struct {
	store   AssetStore
	workDir string
	logger  *slog.Logger
}

// NewInjectStep creates an InjectStep. Relative href and src values are
// read from workDir.
func NewInjectStep(store AssetStore, workDir string, logger *slog.Logger) *InjectStep {
	return &InjectStep{store: store, workDir: workDir, logger: logger}
}

// Name returns the step name.
func (s *InjectStep) Name() string {
	return "inject"
}

// Do injects the head section, then the body section.
func (s *InjectStep) Do(ctx context.Context, page *model.Page) error {
	inject := page.Settings.Inject
	sections := []struct {
		name string
		tags config.TagSet
	}{
		{name: "head", tags: inject.Head},
		{name: "body", tags: inject.Body},
	}

	var missing []string
	for _, section := range sections {
		if len(section.tags) == 0 {
			continue
		}
		target := page.Doc.Find(section.name).First()
		if target.Length() == 0 {
			missing = append(missing, section.name)
			continue
		}
		for _, group := range section.tags {
			for _, attrs := range group.Elements {
				tag := s.build(ctx, page, group.Tag, attrs)
				s.logger.Debug("injecting tag", "section", section.name, "tag", group.Tag)
				target.AppendNodes(tag)
			}
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrNoSection, strings.Join(missing, ", "))
	}
	return nil
}

func (s *InjectStep) build(ctx context.Context, page *model.Page, name string, attrs config.Attrs) *html.Node {
	tag := model.NewElement(name)
	for _, attr := range attrs {
		key := strings.ToLower(attr.Key)
		if key == innerHTMLKey {
			continue
		}
		if _, ok := textKeys[key]; ok {
			s.logger.Info("injecting inline content", "tag", name)
			model.SetText(tag, attr.Value)
			continue
		}

		value := attr.Value
		switch {
		case value == NoneValue:
			value = ""
		case key == "href" || key == "src":
			value = s.localize(ctx, page, value)
		}
		model.SetAttr(tag, attr.Key, value)
	}
	if inner, ok := attrs.Get(innerHTMLKey); ok {
		model.SetText(tag, inner)
	}
	return tag
}

// localize caches an injected file. Values without a scheme are paths
// relative to the working directory. The configured value is kept when the
// file cannot be cached.
func (s *InjectStep) localize(ctx context.Context, page *model.Page, value string) string {
	ref := value
	if u, err := url.Parse(value); err != nil || u.Scheme == "" {
		ref = filepath.Join(s.workDir, filepath.FromSlash(strings.Trim(value, "/")))
	}
	s.logger.Debug("copying injected file", "file", value)
	if cached, ok := cacheRef(ctx, s.store, page, ref); ok {
		return cached
	}
	return value
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
