// Package main provides the entry point for the sitemirror CLI.
//
// sitemirror renders a dynamically built website (a published Notion
// workspace, for example) in a headless browser and exports it as a static
// bundle that can be hosted anywhere.
//
// Usage:
//
//	sitemirror mirror <url>
//	sitemirror mirror sitemirror.yaml
//
// See --help for all available options.
package main

// main is the entry point for sitemirror.
func main() {
	Execute()
}
