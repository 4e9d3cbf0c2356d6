// Package crawler mirrors a site page by page.
//
// # Architecture
//
// The Crawler renders the starting page, runs the rewrite pipeline on it,
// rewrites its links and exports it, then visits every same-site page it
// discovered, depth first. A Session records which pages were exported and
// where, so each page is rendered once per run.
//
// Design decision: The traversal uses an explicit stack instead of
// recursion. Large sites produce deep link chains, and a stack keeps the
// visit order (first link first) without growing the goroutine stack.
//
// # Components
//
//   - Crawler: Drives rendering, transformation and export
//   - Session: Visited pages and used output paths of one run
//   - RewriteLinks: Points internal links at exported files and collects subpages
//
// # Usage
//
//	c := crawler.New(site, renderer, cache, crawler.WithTimeout(time.Minute))
//	result, err := c.Run(ctx)
//	fmt.Println(result.Summary())
package crawler
