// Package log provides the application logger: the standard slog API on
// top of a charmbracelet/log handler, wrapped by SecureHandler.
//
// # Security Features
//
// The SecureHandler sanitizes sensitive information in log output:
//   - HTTP headers (Authorization, Cookie, Set-Cookie, X-Api-Key)
//   - Secret values detected by pattern matching (bearer tokens, JWTs, AWS keys)
//   - Credential query parameters of pre-signed asset URLs
//     (X-Amz-Signature, X-Amz-Credential, signature, token)
//
// Mirrored sites frequently reference images through pre-signed S3 URLs.
// Those URLs are logged on every download, so their signatures are masked
// while the host and path stay readable.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//	logger.Info("downloading asset", "url", assetURL)
package log
