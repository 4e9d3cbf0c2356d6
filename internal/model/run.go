package model

// RunStatus is the outcome of a mirror run.
type RunStatus string

// Run outcomes.
const (
	// RunCompleted means every reachable page was processed.
	RunCompleted RunStatus = "completed"

	// RunTimeout means a page did not settle in time and the run stopped.
	RunTimeout RunStatus = "timeout"

	// RunCancelled means the run was interrupted.
	RunCancelled RunStatus = "cancelled"

	// RunFailed means the run stopped on any other error.
	RunFailed RunStatus = "failed"
)
