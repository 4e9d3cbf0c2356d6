package crawler

import "errors"

var (
	// ErrOutputCollision is reported when two URLs resolve to the same
	// output path. The later page overwrites the earlier one.
	ErrOutputCollision = errors.New("duplicate output path: make sure page names or custom paths are unique")

	// ErrOutsideOutput is returned when the output path of a page would
	// leave the output root.
	ErrOutsideOutput = errors.New("output path leaves the output root")

	// ErrExport is returned when a page cannot be written to the output tree.
	ErrExport = errors.New("failed to export page")
)
