package fetch

import "errors"

// Fetch errors.
var (
	// ErrConnectivity is returned by CheckConnection when the target site
	// cannot be reached at all. It aborts a run before crawling starts.
	ErrConnectivity = errors.New("cannot connect to target site")

	// ErrTimeout is returned by CheckConnection when the target site did not
	// answer in time.
	ErrTimeout = errors.New("timeout connecting to target site")

	// ErrHTTPStatus is returned by Get for responses with a 4xx or 5xx status.
	// Error pages are never written into the asset cache.
	ErrHTTPStatus = errors.New("unexpected http status")

	// ErrBodyTooLarge is returned when a response exceeds the configured limit.
	ErrBodyTooLarge = errors.New("response body too large")
)

// Status represents the result of a connectivity check.
type Status int

const (
	// StatusOK indicates the site answered (with any HTTP status).
	StatusOK Status = iota

	// StatusCannotConnect indicates the connection could not be established.
	StatusCannotConnect

	// StatusTimeout indicates the site did not answer in time.
	StatusTimeout
)

// String returns a human-readable description of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusCannotConnect:
		return "cannot connect"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error returns the appropriate error for this status, or nil if OK.
func (s Status) Error() error {
	switch s {
	case StatusOK:
		return nil
	case StatusCannotConnect:
		return ErrConnectivity
	case StatusTimeout:
		return ErrTimeout
	default:
		return errors.New("unknown connectivity status")
	}
}
