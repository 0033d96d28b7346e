package fetch

import (
	"context"
	"errors"
	"net"
)

// Sentinel errors for collaborators to wrap so Classify can recognize them.
// The backend client wraps its HTTP 401s with ErrUnauthorized and its
// 5xx/connection failures with ErrUnavailable.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("service unavailable")
)

// Class partitions fetch failures by how the runner must react to them.
type Class int

const (
	// Unclassified failures are treated conservatively: surfaced
	// immediately, never retried.
	Unclassified Class = iota
	// Cancelled is not a failure. It is absorbed locally and never shown
	// to the view layer as an error.
	Cancelled
	// Transient failures (network, timeout, unavailable backend) are
	// eligible for the single automatic retry.
	Transient
	// Unauthorized failures are never retried here. A higher-level
	// session-refresh flow reacts to them.
	Unauthorized
)

func (c Class) String() string {
	switch c {
	case Cancelled:
		return "cancelled"
	case Transient:
		return "transient"
	case Unauthorized:
		return "unauthorized"
	default:
		return "unclassified"
	}
}

// Classify maps an error from a fetch function onto the retry taxonomy.
// Context cancellation counts as Cancelled; a deadline counts as Transient
// because a timed-out fetch behaves exactly like a transient network fault.
func Classify(err error) Class {
	if err == nil {
		return Unclassified
	}
	if errors.Is(err, context.Canceled) {
		return Cancelled
	}
	if errors.Is(err, ErrUnauthorized) {
		return Unauthorized
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrUnavailable) {
		return Transient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient
	}
	return Unclassified
}
