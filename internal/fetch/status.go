// Package fetch coordinates the dashboard's data-bound fetches: it issues
// per-stream request generations, cancels superseded work, retries transient
// failures once, and guarantees a stale response never overwrites a fresher
// one.
package fetch

// Status is the lifecycle state of a fetch stream. It is shared between the
// runner and the view layer so both sides agree on what "loading" means.
type Status string

const (
	// StatusIdle means no fetch has been requested yet (or the stream is
	// disabled with no committed data).
	StatusIdle Status = "idle"
	// StatusPending means a fetch is in flight and no prior data exists.
	StatusPending Status = "pending"
	// StatusRefreshing means a fetch is in flight but previous data is
	// still visible (keep-previous mode).
	StatusRefreshing Status = "refreshing"
	// StatusSuccess means the most recent generation committed its result.
	StatusSuccess Status = "success"
	// StatusError means the most recent generation failed after any retry.
	StatusError Status = "error"
	// StatusCanceled means the current generation was canceled and nothing
	// newer has taken its place.
	StatusCanceled Status = "canceled"
)

// Loading reports whether a fetch is currently in flight.
func (s Status) Loading() bool {
	return s == StatusPending || s == StatusRefreshing
}

// Settled reports whether the stream reached a terminal state for its
// current generation.
func (s Status) Settled() bool {
	return s == StatusSuccess || s == StatusError || s == StatusCanceled
}
