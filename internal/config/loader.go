package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Supported configuration formats.
const (
	FormatTOML = "toml"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// DefaultConfigFile is the file written by "sitemirror init".
const DefaultConfigFile = "sitemirror.yaml"

// FormatOf returns the configuration format implied by the file extension.
func FormatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// LoadSiteFile loads and validates a site configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadSiteFile(path string) (*Site, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}

	site, err := ParseSite(data, format)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := site.Validate(); err != nil {
		return nil, err
	}
	return site, nil
}

// ParseSite decodes a site configuration in the given format.
//
// Design decision: TOML and JSON documents are decoded into generic maps and
// re-encoded as YAML, so a single schema (with its ordered attribute types
// and raw page nodes) serves all three formats. Key order inside TOML and
// JSON tables is not preserved by Go maps; YAML files keep it.
func ParseSite(data []byte, format string) (*Site, error) {
	switch format {
	case FormatYAML:
	case FormatTOML:
		var doc map[string]any
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return nil, err
		}
		converted, err := yaml.Marshal(doc)
		if err != nil {
			return nil, err
		}
		data = converted
	case FormatJSON:
		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		converted, err := yaml.Marshal(doc)
		if err != nil {
			return nil, err
		}
		data = converted
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	var site Site
	if err := yaml.Unmarshal(data, &site); err != nil {
		return nil, err
	}
	return &site, nil
}
