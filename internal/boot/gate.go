package boot

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/coder/quartz"
)

// State is the resolution state of one precondition. Each precondition has
// exactly one writer (its owning subsystem); the gate only derives.
type State int

const (
	// StateUnresolved means the owning subsystem has not reported yet.
	StateUnresolved State = iota
	// StateResolved means the precondition is satisfied.
	StateResolved
	// StateFailed means the owning subsystem gave up. A failed
	// precondition does not block readiness: the boot proceeds degraded,
	// with the consumer falling back to a safe default.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	default:
		return "unresolved"
	}
}

// Phase is the derived boot phase.
type Phase string

const (
	PhaseBooting  Phase = "booting"
	PhaseSlow     Phase = "slow"
	PhaseStuck    Phase = "stuck"
	PhaseDegraded Phase = "degraded"
	PhaseReady    Phase = "ready"
)

// Default watchdog thresholds, measured from gate creation.
const (
	DefaultWarnAfter     = 3 * time.Second
	DefaultCriticalAfter = 10 * time.Second
)

// Config configures a Gate. Zero values get sensible defaults.
type Config struct {
	WarnAfter     time.Duration
	CriticalAfter time.Duration
	Clock         quartz.Clock
	Sink          DiagnosticsSink
}

type precondition struct {
	state        State
	allowDefault bool
	defaulted    bool
}

// RegisterOption customizes a precondition at registration time.
type RegisterOption func(*precondition)

// AllowDefault opts the precondition into ForceDefaults: after the stuck
// watchdog has fired, a caller may declare it resolved-with-fallback. This
// deliberately overrides the owner's single-writer discipline, so it is
// opt-in per precondition rather than automatic.
func AllowDefault() RegisterOption {
	return func(p *precondition) { p.allowDefault = true }
}

// Gate folds independently-owned preconditions into one boot-phase signal.
// Readiness is conjunctive: ready iff every registered precondition is no
// longer unresolved. Failed preconditions count as satisfied-with-fallback
// and color the phase degraded while the rest resolve; unbounded blocking
// on a precondition that will never resolve is treated as a defect, handled
// by the watchdogs and ForceDefaults.
//
// Two watchdogs run from gate creation: warn (slow diagnostic) and critical
// (stuck diagnostic plus OnStuck hooks). Each fires at most once per boot,
// is stopped the instant ready is reached, and never re-arms on phase
// re-entry. Only RestartWatchdog re-arms them.
type Gate struct {
	clock         quartz.Clock
	sink          DiagnosticsSink
	warnAfter     time.Duration
	criticalAfter time.Duration

	mu        sync.Mutex
	startedAt time.Time
	preconds  map[string]*precondition
	phase     Phase
	warnFired bool
	critFired bool
	warnTimer *quartz.Timer
	critTimer *quartz.Timer
	onStuck   []func(unresolved []string)
}

// NewGate creates a gate and arms its watchdogs.
func NewGate(cfg Config) *Gate {
	if cfg.WarnAfter <= 0 {
		cfg.WarnAfter = DefaultWarnAfter
	}
	if cfg.CriticalAfter <= 0 {
		cfg.CriticalAfter = DefaultCriticalAfter
	}
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}
	if cfg.Sink == nil {
		cfg.Sink = SlogSink{}
	}

	g := &Gate{
		clock:         cfg.Clock,
		sink:          cfg.Sink,
		warnAfter:     cfg.WarnAfter,
		criticalAfter: cfg.CriticalAfter,
		startedAt:     cfg.Clock.Now(),
		preconds:      make(map[string]*precondition),
		phase:         PhaseBooting,
	}
	g.warnTimer = g.clock.AfterFunc(g.warnAfter, g.warnFire)
	g.critTimer = g.clock.AfterFunc(g.criticalAfter, g.critFire)
	return g
}

// Register adds a precondition in the unresolved state. Registering after
// ready was reached re-blocks the gate; the watchdogs stay disarmed.
func (g *Gate) Register(name string, opts ...RegisterOption) {
	g.mu.Lock()
	if _, exists := g.preconds[name]; exists {
		g.mu.Unlock()
		return
	}
	p := &precondition{}
	for _, opt := range opts {
		opt(p)
	}
	g.preconds[name] = p
	emit := g.recomputeLocked()
	g.mu.Unlock()
	emit()
}

// Set records a precondition's new state. Called by the owning subsystem
// whenever its resolution status changes; the gate tolerates a resolved
// precondition flipping back to unresolved (e.g. session expiry) and
// re-blocks readiness.
func (g *Gate) Set(name string, state State) error {
	g.mu.Lock()
	p, ok := g.preconds[name]
	if !ok {
		g.mu.Unlock()
		return fmt.Errorf("unknown precondition %q", name)
	}
	p.state = state
	if state != StateResolved {
		p.defaulted = false
	}
	emit := g.recomputeLocked()
	g.mu.Unlock()
	emit()
	return nil
}

// Phase returns the current boot phase.
func (g *Gate) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// IsReady reports whether every precondition is satisfied (resolved,
// failed-with-fallback, or defaulted).
func (g *Gate) IsReady() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase == PhaseReady
}

// Unresolved returns the names of preconditions still unresolved, sorted.
func (g *Gate) Unresolved() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.unresolvedLocked()
}

// Failed returns the names of preconditions whose owners reported failure,
// sorted. Consumers use this to pick their fallbacks.
func (g *Gate) Failed() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var names []string
	for name, p := range g.preconds {
		if p.state == StateFailed {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Elapsed returns time since the gate was created.
func (g *Gate) Elapsed() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.clock.Since(g.startedAt)
}

// OnStuck registers a hook fired at most once per boot, when the critical
// watchdog passes. The hook receives the names still unresolved at that
// moment and runs outside the gate's lock.
func (g *Gate) OnStuck(fn func(unresolved []string)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onStuck = append(g.onStuck, fn)
}

// ForceDefaults declares every still-unresolved precondition that opted in
// via AllowDefault resolved-with-fallback, and returns their names. It is
// the escape hatch for a boot wedged on a precondition that will never
// resolve without user action, so it only acts after the stuck watchdog has
// fired.
func (g *Gate) ForceDefaults() []string {
	g.mu.Lock()
	if !g.critFired {
		g.mu.Unlock()
		return nil
	}
	var forced []string
	for name, p := range g.preconds {
		if p.state == StateUnresolved && p.allowDefault {
			p.state = StateResolved
			p.defaulted = true
			forced = append(forced, name)
		}
	}
	sort.Strings(forced)
	emit := g.recomputeLocked()
	g.mu.Unlock()
	emit()
	return forced
}

// Defaulted reports whether name was resolved via ForceDefaults rather than
// by its owner.
func (g *Gate) Defaulted(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.preconds[name]
	return p != nil && p.defaulted
}

// RestartWatchdog re-arms both watchdogs for a manual retry: fired flags
// reset and thresholds measure from now. No-op once ready.
func (g *Gate) RestartWatchdog() {
	g.mu.Lock()
	if g.phase == PhaseReady {
		g.mu.Unlock()
		return
	}
	g.warnTimer.Stop()
	g.critTimer.Stop()
	g.warnFired = false
	g.critFired = false
	g.startedAt = g.clock.Now()
	g.warnTimer = g.clock.AfterFunc(g.warnAfter, g.warnFire)
	g.critTimer = g.clock.AfterFunc(g.criticalAfter, g.critFire)
	emit := g.recomputeLocked()
	g.mu.Unlock()
	emit()
}

func (g *Gate) unresolvedLocked() []string {
	var names []string
	for name, p := range g.preconds {
		if p.state == StateUnresolved {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// phaseLocked derives the phase. Watchdog phases come from the fired flags,
// not raw elapsed time: slow and stuck are edge-triggered once-per-boot
// events, so the phase must not oscillate if time passes after a re-block.
func (g *Gate) phaseLocked() Phase {
	allSatisfied := true
	anyFailed := false
	for _, p := range g.preconds {
		if p.state == StateUnresolved {
			allSatisfied = false
		}
		if p.state == StateFailed {
			anyFailed = true
		}
	}
	switch {
	case allSatisfied:
		return PhaseReady
	case anyFailed:
		return PhaseDegraded
	case g.critFired:
		return PhaseStuck
	case g.warnFired:
		return PhaseSlow
	default:
		return PhaseBooting
	}
}

// recomputeLocked re-derives the phase and returns the notification to run
// after the lock is released. Sinks run unlocked so they may call back into
// the gate.
func (g *Gate) recomputeLocked() func() {
	next := g.phaseLocked()
	if next == g.phase {
		return func() {}
	}
	prev := g.phase
	g.phase = next
	if next == PhaseReady {
		g.warnTimer.Stop()
		g.critTimer.Stop()
	}
	return func() { g.sink.PhaseChanged(prev, next) }
}

func (g *Gate) warnFire() {
	g.mu.Lock()
	if g.warnFired || g.phase == PhaseReady {
		g.mu.Unlock()
		return
	}
	g.warnFired = true
	unresolved := g.unresolvedLocked()
	elapsed := g.clock.Since(g.startedAt)
	emit := g.recomputeLocked()
	g.mu.Unlock()
	emit()
	g.sink.Slow(unresolved, elapsed)
}

func (g *Gate) critFire() {
	g.mu.Lock()
	if g.critFired || g.phase == PhaseReady {
		g.mu.Unlock()
		return
	}
	g.critFired = true
	unresolved := g.unresolvedLocked()
	elapsed := g.clock.Since(g.startedAt)
	hooks := make([]func([]string), len(g.onStuck))
	copy(hooks, g.onStuck)
	emit := g.recomputeLocked()
	g.mu.Unlock()
	emit()
	g.sink.Stuck(unresolved, elapsed)
	for _, fn := range hooks {
		fn(unresolved)
	}
}
