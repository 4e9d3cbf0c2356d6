package config

import (
	"log/slog"
	"net/url"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// IndexFile is the output path of the starting page and of every URL whose
// path is empty.
const IndexFile = "index.html"

// Resolver computes the effective settings and output path of a page.
type Resolver struct {
	global PageSettings
	pages  map[string]yaml.Node
	logger *slog.Logger
}

// NewResolver creates a Resolver for site. A 'path' key in the global site
// table is logged and dropped, because a single output path cannot apply to
// every page.
func NewResolver(site *Site, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	global := site.Site
	if global.Path != "" {
		logger.Error("'path' has no effect in the site table and should only be present in page tables",
			"path", global.Path)
		global.Path = ""
	}
	return &Resolver{
		global: global,
		pages:  site.Pages,
		logger: logger,
	}
}

// Resolve returns the settings of the page at rawURL: the global table with
// the single matching page table merged on top. A page table matches when
// its token, compared case-insensitively, is a substring of the URL.
//
// Ambiguous matches and tables that are not mappings are configuration
// errors; they are logged and the global table is returned unchanged.
func (r *Resolver) Resolve(rawURL string) PageSettings {
	lowerURL := strings.ToLower(rawURL)

	var matches []string
	for token := range r.pages {
		if strings.Contains(lowerURL, strings.ToLower(token)) {
			matches = append(matches, token)
		}
	}

	switch len(matches) {
	case 0:
		return r.global
	case 1:
	default:
		sort.Strings(matches)
		r.logger.Error("configuration error, using site settings",
			"url", rawURL, "tokens", matches, "error", ErrAmbiguousPage)
		return r.global
	}

	node := r.pages[matches[0]]
	if node.Kind != yaml.MappingNode {
		r.logger.Error("configuration error, using site settings",
			"url", rawURL, "token", matches[0], "error", ErrInvalidPageTable)
		return r.global
	}

	var page PageSettings
	if err := node.Decode(&page); err != nil {
		r.logger.Error("configuration error, using site settings",
			"url", rawURL, "token", matches[0], "error", err)
		return r.global
	}
	return r.global.merge(page)
}

// ResolvedPath returns the output path of the page at rawURL: the page's
// path override when set, otherwise the URL path without leading and
// trailing slashes, or IndexFile when that is empty.
func (r *Resolver) ResolvedPath(rawURL string) string {
	if p := r.Resolve(rawURL).Path; p != "" {
		return p
	}
	return PathOf(rawURL)
}

// PathOf derives an output path from the URL path alone.
// Dot segments are resolved as if the path were rooted, so the result never
// climbs above the output root. The decoded path is NFC normalized so that
// visually identical titles produced by different encoders map to the same
// file.
func PathOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return IndexFile
	}
	p := strings.Trim(path.Clean("/"+u.Path), "/")
	if p == "" {
		return IndexFile
	}
	return norm.NFC.String(p)
}
