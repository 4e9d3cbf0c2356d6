package config

import "errors"

// Configuration errors.
//
// Design decision: package-level sentinel errors let the CLI decide with
// errors.Is which problems are fatal. ErrAmbiguousPage and
// ErrInvalidPageTable are never returned to callers of Resolve; they are
// logged and the global settings are used instead.
var (
	// ErrNoTarget is returned when neither a URL nor a configuration file is given.
	ErrNoTarget = errors.New("no target specified: provide a URL or a configuration file")

	// ErrInvalidTimeout is returned when the render stability timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidFetchTimeout is returned when the asset download timeout is negative.
	ErrInvalidFetchTimeout = errors.New("invalid fetch timeout: must be non-negative")

	// ErrInvalidProxy is returned when the proxy is not a "host:port" address.
	ErrInvalidProxy = errors.New("invalid proxy address: use host:port")

	// ErrNoStartPage is returned when the site configuration has no 'page' key.
	ErrNoStartPage = errors.New("no initial page url specified: the configuration must contain a 'page' key with the url of the site page to mirror")

	// ErrInvalidStartPage is returned when 'page' is not an absolute http(s) URL.
	ErrInvalidStartPage = errors.New("invalid initial page url: must be an absolute http or https url")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrUnsupportedFormat is returned for configuration files whose
	// extension is not .toml, .json, .yaml or .yml.
	ErrUnsupportedFormat = errors.New("unsupported configuration format: use .toml, .json, .yaml or .yml")

	// ErrAmbiguousPage is reported when more than one page token matches a URL.
	ErrAmbiguousPage = errors.New("multiple matching page tokens: make sure page urls / paths are unique")

	// ErrInvalidPageTable is reported when a matching page entry is not a table.
	ErrInvalidPageTable = errors.New("matching page configuration is not a table")
)
