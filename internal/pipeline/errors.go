package pipeline

import "errors"

var (
	// ErrNoSection is returned when a page has no <head> or <body> to
	// append tags to.
	ErrNoSection = errors.New("document section not found")

	// ErrStylesheet is returned when a cached stylesheet cannot be read,
	// parsed or written back.
	ErrStylesheet = errors.New("failed to rewrite stylesheet")
)
