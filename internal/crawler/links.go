package crawler

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"

	"github.com/nao1215/sitemirror/internal/config"
	"github.com/nao1215/sitemirror/internal/model"
)

// contentRegion is the main content of a page. Links outside it, such as the
// top navigation bar, are kept when link following is disabled.
const contentRegion = "div.notion-scroller"

// PathResolver returns the output path of a page URL.
// *config.Resolver is the production implementation.
type PathResolver interface {
	ResolvedPath(rawURL string) string
}

// RewriteLinks points the same-site links of page at their exported files
// and returns the URLs of the subpages to visit, in document order and
// without duplicates.
//
// Links to other hosts are left untouched. A link with a fragment becomes a
// bare fragment and its page is only queued when it was not seen yet. The
// page itself is never returned.
func RewriteLinks(page *model.Page, site *config.Site, session *Session, resolver PathResolver, logger *slog.Logger) []string {
	if logger == nil {
		logger = slog.Default()
	}

	domain := site.Domain()
	host := site.Host()
	start := Canonical(site.Page)
	self := Canonical(page.URL)
	linksDisabled := page.Settings.LinksDisabled()

	var subpages []string
	queued := make(map[string]struct{})
	queue := func(target string) {
		key := Canonical(target)
		if key == self {
			return
		}
		if _, ok := queued[key]; ok {
			return
		}
		queued[key] = struct{}{}
		subpages = append(subpages, target)
	}

	page.Doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")

		if linksDisabled && a.ParentsFiltered(contentRegion).Length() > 0 {
			logger.Debug("stripping link", "href", href)
			stripLink(a)
			return
		}

		target := absoluteLink(page.URL, domain, href)
		u, err := url.Parse(target)
		if err != nil || !strings.EqualFold(u.Host, host) {
			return
		}

		if origin, fragment, ok := strings.Cut(target, "#"); ok {
			a.SetAttr("href", "#"+fragment)
			if session.Seen(origin) {
				logger.Debug("page of anchor link already exported, skipping", "url", origin)
				return
			}
			queue(origin)
			return
		}

		a.SetAttr("href", linkPath(page, site, resolver, target, start))
		queue(target)
	})

	return subpages
}

// linkPath returns the href that points at the exported file of target.
func linkPath(page *model.Page, site *config.Site, resolver PathResolver, target, start string) string {
	if Canonical(target) != start {
		return page.Ref(resolver.ResolvedPath(target))
	}
	if site.LinkExtensions() {
		return page.Ref(config.IndexFile)
	}
	if page.Dir() == "." {
		return ""
	}
	return model.RelativeRef(page.Dir(), ".") + "/"
}

// absoluteLink resolves href. Root-relative links are joined to the domain
// with each path segment percent-encoded; the query and fragment are kept.
func absoluteLink(pageURL, domain, href string) string {
	if strings.HasPrefix(href, "/") && !strings.HasPrefix(href, "//") {
		rest, fragment, hasFragment := strings.Cut(href, "#")
		p, query, hasQuery := strings.Cut(rest, "?")
		out := domain + encodePath(p)
		if hasQuery {
			out += "?" + query
		}
		if hasFragment {
			out += "#" + fragment
		}
		return out
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// encodePath percent-encodes every segment of p. Segments that are already
// encoded are decoded first so they are not encoded twice.
func encodePath(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		if decoded, err := url.PathUnescape(seg); err == nil {
			seg = decoded
		}
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// stripLink turns an anchor into a span and removes the pointer cursor from
// it and its styled descendants.
func stripLink(a *goquery.Selection) {
	a.RemoveAttr("href")
	for _, n := range a.Nodes {
		model.Rename(n, "span")
	}
	a.AddSelection(a.Find("*")).Filter("[style]").Each(func(_ int, el *goquery.Selection) {
		style, _ := el.Attr("style")
		el.SetAttr("style", setDeclaration(style, "cursor", "default"))
	})
}

// setDeclaration sets property in an inline style, keeping the other
// declarations in order. An unparsable style is replaced.
func setDeclaration(style, property, value string) string {
	text := strings.TrimSpace(style)
	if text != "" && !strings.HasSuffix(text, ";") {
		text += ";"
	}
	decls, err := parser.ParseDeclarations(text)
	if err != nil {
		return property + ": " + value + ";"
	}

	found := false
	for _, decl := range decls {
		if strings.EqualFold(decl.Property, property) {
			decl.Value = value
			decl.Important = false
			found = true
		}
	}
	if !found {
		decls = append(decls, &css.Declaration{Property: property, Value: value})
	}

	parts := make([]string, len(decls))
	for i, decl := range decls {
		parts[i] = decl.String()
	}
	return strings.Join(parts, " ")
}
