// Package boot gates the dashboard's user-scoped fetches behind boot
// readiness: N independently-owned preconditions (identity, entitlement,
// preferences) fold into one phase signal with escalating watchdogs.
package boot

import (
	"log/slog"
	"time"
)

// DiagnosticsSink receives readiness diagnostics. It is injected into the
// gate so observability stays decoupled from the phase logic; the TUI feeds
// events into its message loop, the CLI logs them.
type DiagnosticsSink interface {
	// PhaseChanged fires on every phase transition.
	PhaseChanged(from, to Phase)
	// Slow fires at most once per boot, when the warn threshold passes
	// with preconditions still unresolved.
	Slow(unresolved []string, elapsed time.Duration)
	// Stuck fires at most once per boot, when the critical threshold
	// passes with preconditions still unresolved.
	Stuck(unresolved []string, elapsed time.Duration)
}

// SlogSink logs diagnostics through slog. It is the default sink.
type SlogSink struct {
	Log *slog.Logger
}

func (s SlogSink) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

func (s SlogSink) PhaseChanged(from, to Phase) {
	s.logger().Debug("boot phase changed", "from", string(from), "to", string(to))
}

func (s SlogSink) Slow(unresolved []string, elapsed time.Duration) {
	s.logger().Warn("boot is slow", "unresolved", unresolved, "elapsed", elapsed)
}

func (s SlogSink) Stuck(unresolved []string, elapsed time.Duration) {
	s.logger().Error("boot appears stuck", "unresolved", unresolved, "elapsed", elapsed)
}
