package fetch

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// FetchFunc loads one result for a stream. Implementations must honor ctx:
// cancellation means the generation was superseded and any partial work
// should be abandoned. A fetch that cannot truly abort is still correct,
// since the guard suppresses its result; it just wastes the round trip.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Options tune a runner's behavior for the current Apply.
type Options struct {
	// Enabled gates fetching entirely. Callers bind this to the readiness
	// gate so nothing user-scoped is fetched before boot completes.
	Enabled bool
	// KeepPrevious leaves prior data visible during a refetch (status
	// refreshing instead of pending), preventing UI flicker on every
	// filter tweak.
	KeepPrevious bool
	// Retry decides on automatic retries. Nil means DefaultRetry.
	Retry RetryPolicy
	// Timeout, if positive, races each attempt against a deadline. A
	// fired deadline classifies as transient and is retry-eligible.
	Timeout time.Duration
}

// Input is the caller's declared state for a stream: what to fetch, what it
// depends on, and how to run it.
type Input[T any] struct {
	Key     Key
	Fetch   FetchFunc[T]
	Options Options
}

// Snapshot is the view-facing state of a stream.
type Snapshot[T any] struct {
	Status     Status
	Data       T
	HasData    bool
	Err        error
	Generation uint64
}

// Runner executes fetches for one stream: at most one fetch per distinct
// dependency key, cancellation of superseded work, a single automatic retry
// for transient failures, and unconditional suppression of stale results.
//
// All stream state is mutated only by the runner, under one mutex, with
// generation currency re-checked inside the critical section. Commit order
// is therefore generation order, never arrival order.
type Runner[T any] struct {
	stream string
	guard  *Guard

	mu      sync.Mutex
	in      Input[T]
	hasKey  bool
	started bool
	snap    Snapshot[T]
	updates chan Snapshot[T]
	closed  bool
}

// NewRunner binds a runner to a stream name on the given guard. The stream
// name must be unique per guard; it identifies the generation counter.
func NewRunner[T any](guard *Guard, stream string) *Runner[T] {
	return &Runner[T]{
		stream:  stream,
		guard:   guard,
		snap:    Snapshot[T]{Status: StatusIdle},
		updates: make(chan Snapshot[T], 1),
	}
}

// Stream returns the runner's stream name.
func (r *Runner[T]) Stream() string { return r.stream }

// Apply reconciles the runner against the caller's current state. Calling
// it again with a structurally identical key is a no-op; a changed key
// cancels any in-flight fetch and starts a new generation. Disabling aborts
// in-flight work without surfacing an error.
func (r *Runner[T]) Apply(in Input[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if in.Options.Retry == nil {
		in.Options.Retry = DefaultRetry
	}

	sameKey := r.hasKey && in.Key == r.in.Key
	r.in = in
	r.hasKey = true

	if !in.Options.Enabled {
		if r.snap.Status.Loading() {
			r.guard.Supersede(r.stream)
			if r.snap.HasData {
				r.snap.Status = StatusSuccess
			} else {
				r.snap.Status = StatusIdle
			}
			r.notifyLocked()
		}
		r.started = false
		return
	}

	if sameKey && r.started {
		return
	}
	r.launchLocked()
}

// Refetch forces a new generation on the current key, e.g. for a manual
// refresh keybinding. No-op while disabled.
func (r *Runner[T]) Refetch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || !r.hasKey || !r.in.Options.Enabled {
		return
	}
	r.launchLocked()
}

// Snapshot returns the current view-facing state.
func (r *Runner[T]) Snapshot() Snapshot[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// Updates delivers state changes. The channel holds the latest snapshot
// only: a slow consumer sees the freshest state, not a backlog. Closed by
// Close.
func (r *Runner[T]) Updates() <-chan Snapshot[T] {
	return r.updates
}

// Close cancels any in-flight fetch and removes the stream's guard entry.
// The runner must not be used afterwards.
func (r *Runner[T]) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.guard.Drop(r.stream)
	close(r.updates)
}

func (r *Runner[T]) launchLocked() {
	tok := r.guard.Begin(r.stream)
	ctx := r.guard.SignalFor(r.stream)
	r.started = true
	if r.in.Options.KeepPrevious && r.snap.HasData {
		r.snap.Status = StatusRefreshing
	} else {
		r.snap.Status = StatusPending
	}
	r.snap.Err = nil
	r.snap.Generation = tok.Generation()
	r.notifyLocked()
	go r.attempt(ctx, tok, r.in.Fetch, 0)
}

func (r *Runner[T]) attempt(ctx context.Context, tok Token, fn FetchFunc[T], attempt int) {
	r.mu.Lock()
	timeout := r.in.Options.Timeout
	r.mu.Unlock()

	fctx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		fctx, cancel = context.WithTimeout(ctx, timeout)
	}
	data, err := fn(fctx)
	if cancel != nil {
		cancel()
	}
	// A fired local deadline surfaces as cancellation from some fetch
	// functions. Only supersession counts as cancelled; normalize the
	// rest to a deadline error so it stays retry-eligible.
	if err != nil && Classify(err) == Cancelled && fctx.Err() != nil && ctx.Err() == nil {
		err = context.DeadlineExceeded
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	if err == nil {
		if !r.guard.IsCurrent(tok) {
			slog.Debug("dropping stale fetch result",
				"stream", r.stream, "generation", tok.Generation(), "current", r.guard.Current(r.stream))
			return
		}
		r.snap = Snapshot[T]{
			Status:     StatusSuccess,
			Data:       data,
			HasData:    true,
			Generation: tok.Generation(),
		}
		r.notifyLocked()
		return
	}

	if Classify(err) == Cancelled {
		// A newer generation already moved state forward: drop silently.
		if !r.guard.IsCurrent(tok) {
			return
		}
		r.snap.Status = StatusCanceled
		r.snap.Generation = tok.Generation()
		r.notifyLocked()
		return
	}

	if !r.guard.IsCurrent(tok) {
		return
	}
	dec := r.in.Options.Retry(err, attempt)
	if dec.Retry {
		tok2 := r.guard.Begin(r.stream)
		ctx2 := r.guard.SignalFor(r.stream)
		// Re-publish under the retry's generation before it launches, so
		// subscribers never see a loading status paired with the failed
		// attempt's generation number.
		if r.in.Options.KeepPrevious && r.snap.HasData {
			r.snap.Status = StatusRefreshing
		} else {
			r.snap.Status = StatusPending
		}
		r.snap.Err = nil
		r.snap.Generation = tok2.Generation()
		r.notifyLocked()
		slog.Debug("retrying fetch",
			"stream", r.stream, "attempt", attempt+1, "class", Classify(err).String(), "err", err)
		go func() {
			if dec.Refresh != nil {
				if rerr := dec.Refresh(ctx2); rerr != nil {
					slog.Warn("refresh before retry failed", "stream", r.stream, "err", rerr)
				}
			}
			r.attempt(ctx2, tok2, fn, attempt+1)
		}()
		return
	}

	r.snap.Status = StatusError
	r.snap.Err = err
	r.snap.Generation = tok.Generation()
	r.notifyLocked()
}

// notifyLocked publishes the current snapshot, replacing any undelivered
// one so the channel always carries the latest state.
func (r *Runner[T]) notifyLocked() {
	select {
	case r.updates <- r.snap:
	default:
		select {
		case <-r.updates:
		default:
		}
		select {
		case r.updates <- r.snap:
		default:
		}
	}
}
