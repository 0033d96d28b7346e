package fetch

import "context"

// RefreshAction runs before a policy-approved retry, e.g. refreshing an
// expired session. It receives the new generation's context so it is
// cancelled along with the retry it precedes.
type RefreshAction func(ctx context.Context) error

// Decision is a retry policy's verdict on one failed attempt.
type Decision struct {
	Retry   bool
	Refresh RefreshAction
}

// RetryPolicy inspects a failed attempt and decides whether the runner may
// retry it. attempt is zero-based: the first automatic retry sees attempt 0.
// Policies never see cancellation; the runner absorbs that before consulting
// them.
type RetryPolicy func(err error, attempt int) Decision

// DefaultRetry retries transient failures exactly once and nothing else.
// Unauthorized failures surface immediately so a session-refresh flow can
// react; unclassified failures are treated as non-retryable.
func DefaultRetry(err error, attempt int) Decision {
	if attempt >= 1 {
		return Decision{}
	}
	if Classify(err) == Transient {
		return Decision{Retry: true}
	}
	return Decision{}
}
