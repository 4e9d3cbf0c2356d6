package assetcache

import (
	"crypto/sha1" //nolint:gosec // digest is a file name, not a security boundary
	"encoding/hex"
	"mime"
	"net/url"
	"path"
	"regexp"
	"strings"
)

// widthParam is the only query parameter that takes part in the cache key.
// Responsive images request the same path with different widths.
const widthParam = "width"

// Key returns the canonical cache key of ref: host and path without the
// query string, except that a width parameter is kept.
func Key(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	key := u.Host + u.Path
	if widths, ok := u.Query()[widthParam]; ok {
		key += "?" + widthParam + "=" + strings.Join(widths, ",")
	}
	return key
}

// Digest returns the hex SHA-1 digest of the canonical key of ref. It only
// names cached files, which are always 40 hex characters plus an extension.
func Digest(ref string) string {
	sum := sha1.Sum([]byte(Key(ref))) //nolint:gosec // file name only
	return hex.EncodeToString(sum[:])
}

// encodedQuery is the percent-encoded '?' that some CDNs leave in paths.
var encodedQuery = regexp.MustCompile(`(?i)%3f`)

// validExt accepts short alphanumeric extensions only; anything else is an
// artifact of an encoded URL and falls through to the content type.
var validExt = regexp.MustCompile(`^\.[A-Za-z0-9]{1,10}$`)

// extFromURL returns the extension of the URL path, truncated at a literal
// encoded query marker.
func extFromURL(u *url.URL) string {
	ext := path.Ext(u.EscapedPath())
	if loc := encodedQuery.FindStringIndex(ext); loc != nil {
		ext = ext[:loc[0]]
	}
	if !validExt.MatchString(ext) {
		return ""
	}
	return ext
}

// preferredExt lists the extension for content types where
// mime.ExtensionsByType returns several candidates or none on some systems.
var preferredExt = map[string]string{
	"image/jpeg":               ".jpg",
	"image/png":                ".png",
	"image/gif":                ".gif",
	"image/webp":               ".webp",
	"image/avif":               ".avif",
	"image/svg+xml":            ".svg",
	"image/x-icon":             ".ico",
	"image/vnd.microsoft.icon": ".ico",
	"text/css":                 ".css",
	"text/javascript":          ".js",
	"application/javascript":   ".js",
	"application/x-javascript": ".js",
	"application/json":         ".json",
	"text/html":                ".html",
	"text/plain":               ".txt",
	"font/woff":                ".woff",
	"font/woff2":               ".woff2",
	"font/ttf":                 ".ttf",
	"font/otf":                 ".otf",
	"application/font-woff":    ".woff",
	"application/font-woff2":   ".woff2",
}

// extFromContentType guesses an extension from a Content-Type header.
func extFromContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	mediaType = strings.ToLower(mediaType)
	if ext, ok := preferredExt[mediaType]; ok {
		return ext
	}
	exts, err := mime.ExtensionsByType(mediaType)
	if err != nil || len(exts) == 0 {
		return ""
	}
	return exts[0]
}
