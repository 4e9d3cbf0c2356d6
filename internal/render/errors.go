package render

import "errors"

var (
	// ErrRenderTimeout is returned when a page does not settle within the
	// stability timeout. It ends the whole run: the page is most likely not
	// public, or the timeout is too short for it.
	ErrRenderTimeout = errors.New("timeout waiting for page content to load, or no content found: is the page public?")

	// ErrBrowserStart is returned when the browser cannot be launched.
	ErrBrowserStart = errors.New("failed to start browser")
)
