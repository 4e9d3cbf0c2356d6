package model

// State is the processing state of a page during a run.
//
// A page moves Pending, Rendering, Transforming, Exporting, Done. Failed is
// reached from Rendering only, since every later problem is recovered.
type State int

const (
	// StatePending means the URL is queued but not yet rendered.
	StatePending State = iota

	// StateRendering means the browser is loading the page and waiting for
	// its markup to settle.
	StateRendering

	// StateTransforming means the rewrite pipeline is running.
	StateTransforming

	// StateExporting means links are being rewritten and the page is being
	// written to the output tree.
	StateExporting

	// StateDone means the page is exported and recorded as visited.
	StateDone

	// StateFailed means the page could not be rendered. It ends the run.
	StateFailed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRendering:
		return "rendering"
	case StateTransforming:
		return "transforming"
	case StateExporting:
		return "exporting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
