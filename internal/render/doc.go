// Package render turns a URL into fully rendered markup.
//
// Chrome drives a headless Chrome through chromedp and returns the page's
// outer HTML once it has stopped changing: the markup is sampled at a fixed
// interval and the page counts as loaded when two consecutive samples are
// identical. Sites built by client-side frameworks (Notion, Webflow) keep
// inserting blocks long after the load event, so the load event alone is
// not a usable signal.
//
// HTTP is a browserless Renderer for sites that are already static. It is
// also what the end-to-end tests use.
package render
