package model

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/sitemirror/internal/config"
)

// Page is a rendered page on its way through a run.
//
// Design decision: Page carries the parsed goquery document rather than the
// markup string. Every pipeline step and the link rewriter mutate the same
// tree, and the markup is produced once, at export.
type Page struct {
	// URL is the address the page was rendered from.
	URL string

	// OutputPath is the path of the exported file relative to the output
	// root, with forward slashes.
	OutputPath string

	// Doc is the parsed document.
	Doc *goquery.Document

	// Settings are the resolved settings for URL.
	Settings config.PageSettings

	// State is the processing state.
	State State
}

// NewPage parses markup into a Page.
func NewPage(rawURL, outputPath, markup string, settings config.PageSettings) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", rawURL, err)
	}
	return &Page{
		URL:        rawURL,
		OutputPath: outputPath,
		Doc:        doc,
		Settings:   settings,
		State:      StatePending,
	}, nil
}

// Dir returns the directory of the exported file relative to the output
// root, or "." for top level pages.
func (p *Page) Dir() string {
	return path.Dir(p.OutputPath)
}

// Ref converts a path relative to the output root into a reference usable
// from this page.
func (p *Page) Ref(rootRelative string) string {
	return RelativeRef(p.Dir(), rootRelative)
}

// HTML serializes the document with surrounding whitespace trimmed.
func (p *Page) HTML() (string, error) {
	markup, err := p.Doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to serialize %s: %w", p.URL, err)
	}
	return strings.TrimSpace(markup), nil
}

// RelativeRef returns target, a slash separated path relative to the output
// root, as seen from dir, also relative to the output root.
func RelativeRef(dir, target string) string {
	if dir == "" || dir == "." {
		return target
	}
	rel, err := filepath.Rel(filepath.FromSlash(dir), filepath.FromSlash(target))
	if err != nil {
		return target
	}
	return filepath.ToSlash(rel)
}

// ExportedPage records a page written to the output tree.
type ExportedPage struct {
	// URL is the address the page was rendered from.
	URL string `json:"url"`

	// Path is the output path relative to the output root.
	Path string `json:"path"`

	// Links is the number of subpage links queued from the page.
	Links int `json:"links"`

	// ExportedAt is when the file was written.
	ExportedAt time.Time `json:"exported_at"`
}
