package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Site is the site configuration file. It is immutable once loaded.
type Site struct {
	// Page is the starting URL of the crawl. Required.
	Page string `yaml:"page"`

	// Name is the display name of the site. Defaults to the host of Page.
	Name string `yaml:"name,omitempty"`

	// Output is the output root. Defaults to dist/<name>.
	Output string `yaml:"output,omitempty"`

	// ExtensionInLinks keeps "index.html" in links to the starting page.
	// Nil means true.
	ExtensionInLinks *bool `yaml:"extension_in_links,omitempty"`

	// Site holds the settings applied to every page.
	Site PageSettings `yaml:"site,omitempty"`

	// Pages maps a match token to a page table. Values stay raw until a
	// URL matches so that a malformed entry only affects the pages it matches.
	Pages map[string]yaml.Node `yaml:"pages,omitempty"`
}

// NewSite returns a site configuration that only names the starting page,
// as used when the CLI target is a URL.
func NewSite(page string) *Site {
	return &Site{Page: page}
}

// Validate checks the required keys of the configuration.
func (s *Site) Validate() error {
	if strings.TrimSpace(s.Page) == "" {
		return ErrNoStartPage
	}
	if !IsURL(s.Page) {
		return fmt.Errorf("%w: %q", ErrInvalidStartPage, s.Page)
	}
	return nil
}

// StartURL returns the parsed starting URL.
func (s *Site) StartURL() *url.URL {
	u, err := url.Parse(s.Page)
	if err != nil {
		return &url.URL{}
	}
	return u
}

// Host returns the network location of the starting URL.
func (s *Site) Host() string {
	return s.StartURL().Host
}

// Domain returns scheme://host of the starting URL.
func (s *Site) Domain() string {
	u := s.StartURL()
	return u.Scheme + "://" + u.Host
}

// SiteName returns the configured name or the host of the starting URL.
func (s *Site) SiteName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Host()
}

// OutputDir returns the configured output root or dist/<site name>.
func (s *Site) OutputDir() string {
	if s.Output != "" {
		return s.Output
	}
	return filepath.Join(DefaultOutputBase, s.SiteName())
}

// LinkExtensions reports whether links to the starting page keep "index.html".
func (s *Site) LinkExtensions() bool {
	return s.ExtensionInLinks == nil || *s.ExtensionInLinks
}

// PageSettings is the settings table of the site or of a single page.
type PageSettings struct {
	Cleanup Cleanup           `yaml:"cleanup,omitempty"`
	Meta    []Attrs           `yaml:"meta,omitempty"`
	Fonts   map[string]string `yaml:"fonts,omitempty"`
	Inject  Inject            `yaml:"inject,omitempty"`

	// Path overrides the output path of the page. Only valid in page tables.
	Path string `yaml:"path,omitempty"`

	// NoLinks strips links inside the main content region instead of
	// following them.
	NoLinks *bool `yaml:"no-links,omitempty"`
}

// Cleanup lists elements removed from every matching page.
type Cleanup struct {
	Scripts []ScriptRef `yaml:"scripts,omitempty"`
}

// ScriptRef identifies a <script> by its exact src attribute.
type ScriptRef struct {
	Src string `yaml:"src"`
}

// Inject describes the tags appended to <head> and <body>.
type Inject struct {
	Head TagSet `yaml:"head,omitempty"`
	Body TagSet `yaml:"body,omitempty"`
}

// IsZero reports whether nothing is injected.
func (i Inject) IsZero() bool {
	return len(i.Head) == 0 && len(i.Body) == 0
}

// LinksDisabled reports whether link following is suppressed.
func (p PageSettings) LinksDisabled() bool {
	return p.NoLinks != nil && *p.NoLinks
}

// merge returns p with every field set in page replacing the value of p.
func (p PageSettings) merge(page PageSettings) PageSettings {
	out := p
	if len(page.Cleanup.Scripts) > 0 {
		out.Cleanup = page.Cleanup
	}
	if len(page.Meta) > 0 {
		out.Meta = page.Meta
	}
	if len(page.Fonts) > 0 {
		out.Fonts = page.Fonts
	}
	if !page.Inject.IsZero() {
		out.Inject = page.Inject
	}
	if page.Path != "" {
		out.Path = page.Path
	}
	if page.NoLinks != nil {
		out.NoLinks = page.NoLinks
	}
	return out
}

// Attr is a single attribute of a configured tag.
type Attr struct {
	Key   string
	Value string
}

// Attrs is an ordered attribute map. Tags built from it render their
// attributes in the order of the configuration file.
type Attrs []Attr

// UnmarshalYAML decodes a mapping of scalar values.
func (a *Attrs) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: attributes must be a table", node.Line)
	}
	attrs := make(Attrs, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: attribute %q must be a scalar", value.Line, key.Value)
		}
		attrs = append(attrs, Attr{Key: key.Value, Value: value.Value})
	}
	*a = attrs
	return nil
}

// MarshalYAML encodes the attributes as a mapping in their order.
func (a Attrs) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, attr := range a {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: attr.Key},
			&yaml.Node{Kind: yaml.ScalarNode, Value: attr.Value},
		)
	}
	return node, nil
}

// Get returns the value of key.
func (a Attrs) Get(key string) (string, bool) {
	for _, attr := range a {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}

// TagGroup is every configured element of one tag name.
type TagGroup struct {
	Tag      string
	Elements []Attrs
}

// TagSet is an ordered mapping of tag name to elements.
type TagSet []TagGroup

// UnmarshalYAML decodes a mapping of tag name to a list of attribute tables.
func (t *TagSet) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: inject section must be a table", node.Line)
	}
	set := make(TagSet, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		group := TagGroup{Tag: node.Content[i].Value}
		if err := node.Content[i+1].Decode(&group.Elements); err != nil {
			return fmt.Errorf("inject tag %q: %w", group.Tag, err)
		}
		set = append(set, group)
	}
	*t = set
	return nil
}

// MarshalYAML encodes the set as a mapping in its order.
func (t TagSet) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, group := range t {
		value := &yaml.Node{}
		if err := value.Encode(group.Elements); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: group.Tag},
			value,
		)
	}
	return node, nil
}
