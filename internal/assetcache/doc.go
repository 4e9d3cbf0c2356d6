// Package assetcache implements the content-addressed asset cache of a
// mirror run.
//
// Every asset referenced by a mirrored page (image, script, stylesheet,
// font, injected file) is stored once under the output root. Its file name
// is the SHA-1 hex digest of the canonical key of its URL (host and path,
// plus the width query parameter when present), or the original file name
// for fonts. Before any network or filesystem side effect the cache looks
// for an existing file with that name, with any extension, so a second run
// over the same output root downloads nothing that is already there.
//
// Failures never abort a page: Store logs the problem and returns the
// original reference, which keeps the page working against the live asset.
package assetcache
