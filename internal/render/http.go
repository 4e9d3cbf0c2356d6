package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/sitemirror/internal/fetch"
)

// Getter downloads a page. *fetch.Client implements it.
type Getter interface {
	Get(ctx context.Context, rawURL string) (*fetch.Response, error)
}

// HTTP renders pages by downloading their markup without running scripts.
// It serves sites whose content is present in the served HTML, and lets the
// crawler run where no browser is installed.
type HTTP struct {
	getter Getter
}

// NewHTTP creates an HTTP renderer. A nil getter uses a default fetch.Client.
func NewHTTP(getter Getter) *HTTP {
	if getter == nil {
		getter = fetch.NewClient()
	}
	return &HTTP{getter: getter}
}

// Render downloads rawURL. A server response is complete as soon as it is
// read, so the markup is stable by construction.
func (h *HTTP) Render(ctx context.Context, rawURL string, timeout time.Duration) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := h.getter.Get(reqCtx, rawURL)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return "", ErrRenderTimeout
		}
		return "", fmt.Errorf("failed to load %s: %w", rawURL, err)
	}
	if len(resp.Body) == 0 {
		return "", ErrRenderTimeout
	}
	return string(resp.Body), nil
}

// Close is a no-op.
func (h *HTTP) Close() error {
	return nil
}
