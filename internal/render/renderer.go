package render

import (
	"context"
	"errors"
	"time"
)

// Renderer loads a URL and returns its settled markup.
type Renderer interface {
	// Render returns the markup of rawURL once it is stable. It fails with
	// ErrRenderTimeout when the page does not settle within timeout.
	Render(ctx context.Context, rawURL string, timeout time.Duration) (string, error)

	// Close releases the rendering session.
	Close() error
}

// SnapshotFunc returns the current markup of a page.
type SnapshotFunc func(ctx context.Context) (string, error)

// WaitStable samples snapshot every interval until two consecutive samples
// are identical and returns that markup. When ctx reaches its deadline
// first, it returns ErrRenderTimeout; other cancellations return ctx.Err().
func WaitStable(ctx context.Context, snapshot SnapshotFunc, interval time.Duration) (string, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var previous string
	sampled := false
	for {
		current, err := snapshot(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return "", contextError(ctx)
			}
			return "", err
		}
		if sampled && current == previous {
			return current, nil
		}
		previous, sampled = current, true

		select {
		case <-ctx.Done():
			return "", contextError(ctx)
		case <-ticker.C:
		}
	}
}

func contextError(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrRenderTimeout
	}
	return ctx.Err()
}
