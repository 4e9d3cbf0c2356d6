// Package config provides the run options of sitemirror, the site
// configuration file schema (TOML, JSON or YAML) and the Resolver that
// merges global site settings with per page overrides.
package config
