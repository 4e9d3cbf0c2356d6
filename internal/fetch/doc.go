// Package fetch provides the HTTP client used to download assets and to
// check that a target site is reachable before a mirror run starts.
//
// The client ignores proxy environment variables. Asset downloads go
// straight to the origin; the first request through a misconfigured system
// proxy is what made early runs noticeably slow.
package fetch
