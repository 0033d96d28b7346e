package boot

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/marlowe/vantage/internal/fetch"
	"github.com/marlowe/vantage/internal/models"
)

type fakeIdentity struct{ err error }

func (f fakeIdentity) ResolveIdentity(ctx context.Context) error { return f.err }

type fakeEntitlement struct {
	tier models.Tier
	err  error
}

func (f fakeEntitlement) ResolveEntitlement(ctx context.Context) (models.Tier, error) {
	return f.tier, f.err
}

type fakePrefs struct {
	prefs models.Preferences
	err   error
}

func (f fakePrefs) LoadPreferences(ctx context.Context) (models.Preferences, error) {
	return f.prefs, f.err
}

func TestBootstrapperAllResolve(t *testing.T) {
	g := NewGate(Config{Clock: quartz.NewMock(t)})
	b := &Bootstrapper{
		Gate:        g,
		Identity:    fakeIdentity{},
		Entitlement: fakeEntitlement{tier: models.TierPro},
		Preferences: fakePrefs{prefs: models.Preferences{DefaultDataset: "sales"}},
	}
	b.Register()
	b.Run(context.Background())

	if !g.IsReady() {
		t.Fatalf("gate not ready; unresolved=%v phase=%s", g.Unresolved(), g.Phase())
	}
	if b.Tier() != models.TierPro {
		t.Errorf("tier = %s, want pro", b.Tier())
	}
	if b.Prefs().DefaultDataset != "sales" {
		t.Errorf("preferences not hydrated: %+v", b.Prefs())
	}
}

func TestBootstrapperEntitlementFailureDegrades(t *testing.T) {
	g := NewGate(Config{Clock: quartz.NewMock(t)})
	b := &Bootstrapper{
		Gate:        g,
		Identity:    fakeIdentity{},
		Entitlement: fakeEntitlement{err: errors.New("lookup failed")},
		Preferences: fakePrefs{},
	}
	b.Register()
	b.Run(context.Background())

	// Failed entitlement must not wedge the boot: ready on the free tier.
	if !g.IsReady() {
		t.Fatalf("gate not ready; phase=%s", g.Phase())
	}
	if got := g.Failed(); len(got) != 1 || got[0] != PrecondEntitlement {
		t.Errorf("Failed = %v, want [entitlement]", got)
	}
	if b.Tier() != models.TierFree {
		t.Errorf("tier fallback = %s, want free", b.Tier())
	}
}

func TestBootstrapperPreferenceFailureUsesDefaults(t *testing.T) {
	g := NewGate(Config{Clock: quartz.NewMock(t)})
	b := &Bootstrapper{
		Gate:        g,
		Identity:    fakeIdentity{},
		Entitlement: fakeEntitlement{tier: models.TierFree},
		Preferences: fakePrefs{err: errors.New("corrupt file")},
	}
	b.Register()
	b.Run(context.Background())

	if !g.IsReady() {
		t.Fatalf("gate not ready; phase=%s", g.Phase())
	}
	if b.Prefs().RefreshInterval != models.DefaultPreferences().RefreshInterval {
		t.Errorf("preferences fallback = %+v, want defaults", b.Prefs())
	}
}

// TestBootScenario walks an end-to-end boot: three unresolved
// preconditions keep a gated stream disabled; resolving all of them within
// the threshold flips the gate to ready and the stream's first fetch runs
// at generation 1.
func TestBootScenario(t *testing.T) {
	g := NewGate(Config{
		WarnAfter:     3 * time.Second,
		CriticalAfter: 10 * time.Second,
		Clock:         quartz.NewMock(t),
	})
	g.Register(PrecondIdentity)
	g.Register(PrecondEntitlement)
	g.Register(PrecondPreferences)

	guard := fetch.NewGuard()
	runner := fetch.NewRunner[string](guard, "series")
	defer runner.Close()

	var calls atomic.Int32
	apply := func() {
		runner.Apply(fetch.Input[string]{
			Key: fetch.KeyOf("filter-v1"),
			Fetch: func(ctx context.Context) (string, error) {
				calls.Add(1)
				return "data", nil
			},
			Options: fetch.Options{Enabled: g.IsReady()},
		})
	}

	apply()
	if got := g.Phase(); got != PhaseBooting {
		t.Fatalf("phase = %s, want booting", got)
	}

	g.Set(PrecondIdentity, StateResolved)
	apply()
	if got := g.Phase(); got != PhaseBooting {
		t.Fatalf("phase after identity = %s, want booting", got)
	}
	if calls.Load() != 0 {
		t.Fatal("gated stream fetched before ready")
	}

	g.Set(PrecondEntitlement, StateResolved)
	g.Set(PrecondPreferences, StateResolved)
	if !g.IsReady() {
		t.Fatal("gate not ready with all preconditions resolved")
	}

	apply()
	deadline := time.Now().Add(2 * time.Second)
	for runner.Snapshot().Status != fetch.StatusSuccess {
		if time.Now().After(deadline) {
			t.Fatalf("fetch did not complete; snapshot=%+v", runner.Snapshot())
		}
		time.Sleep(5 * time.Millisecond)
	}
	snap := runner.Snapshot()
	if snap.Generation != 1 {
		t.Errorf("first fetch at generation %d, want 1", snap.Generation)
	}
	if calls.Load() != 1 {
		t.Errorf("fetch invoked %d times, want 1", calls.Load())
	}
}
