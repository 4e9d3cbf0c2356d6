package crawler

import (
	"net/url"
	"strings"
)

// Session is the state of one crawl run: the pages exported so far with
// their output paths, and the pages that failed.
//
// Design decision: A Session is created per run and passed explicitly, so
// two runs in the same process never share visited state.
type Session struct {
	// visited maps a canonical URL to its output path.
	visited map[string]string

	// owners maps an output path to the canonical URL exported there.
	owners map[string]string

	// failed holds canonical URLs that could not be rendered or exported.
	failed map[string]struct{}
}

// NewSession creates an empty Session.
func NewSession() *Session {
	return &Session{
		visited: make(map[string]string),
		owners:  make(map[string]string),
		failed:  make(map[string]struct{}),
	}
}

// Seen reports whether rawURL was exported or failed in this run.
func (s *Session) Seen(rawURL string) bool {
	key := Canonical(rawURL)
	if _, ok := s.visited[key]; ok {
		return true
	}
	_, ok := s.failed[key]
	return ok
}

// Owner returns the canonical URL already exported to path.
func (s *Session) Owner(path string) (string, bool) {
	owner, ok := s.owners[path]
	return owner, ok
}

// Record marks rawURL as exported to path. A URL is recorded once; later
// calls for the same URL are ignored.
func (s *Session) Record(rawURL, path string) {
	key := Canonical(rawURL)
	if _, ok := s.visited[key]; ok {
		return
	}
	s.visited[key] = path
	s.owners[path] = key
}

// Fail marks rawURL as failed so it is not attempted again.
func (s *Session) Fail(rawURL string) {
	s.failed[Canonical(rawURL)] = struct{}{}
}

// Path returns the output path rawURL was exported to.
func (s *Session) Path(rawURL string) (string, bool) {
	path, ok := s.visited[Canonical(rawURL)]
	return path, ok
}

// Len returns the number of exported pages.
func (s *Session) Len() int {
	return len(s.visited)
}

// Canonical normalizes a URL for visited checks: the fragment is dropped,
// scheme and host are lower-cased, and an empty path becomes "/".
func Canonical(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}
