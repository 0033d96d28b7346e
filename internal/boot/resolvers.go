package boot

import (
	"context"
	"log/slog"
	"sync"

	"github.com/marlowe/vantage/internal/models"
)

// Names of the dashboard's boot preconditions. Each has exactly one writer:
// the resolver goroutine started by Bootstrapper.Run.
const (
	PrecondIdentity    = "identity"
	PrecondEntitlement = "entitlement"
	PrecondPreferences = "preferences"
)

// IdentityResolver confirms who the user is, once per session.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context) error
}

// EntitlementResolver looks up the user's tier. A lookup failure is not
// fatal: the boot proceeds degraded on the free tier rather than hanging.
type EntitlementResolver interface {
	ResolveEntitlement(ctx context.Context) (models.Tier, error)
}

// PreferenceLoader hydrates persisted preferences. It must only return once
// the full set is available, never on partially-loaded data.
type PreferenceLoader interface {
	LoadPreferences(ctx context.Context) (models.Preferences, error)
}

// Bootstrapper owns the three standard preconditions and drives them from
// their external subsystems. Resolved values (tier, preferences) are held
// here for consumers to read once the gate opens.
type Bootstrapper struct {
	Gate        *Gate
	Identity    IdentityResolver
	Entitlement EntitlementResolver
	Preferences PreferenceLoader
	Log         *slog.Logger

	mu    sync.Mutex
	tier  models.Tier
	prefs models.Preferences
}

// Register registers the standard preconditions on the gate. Entitlement
// and preferences opt into ForceDefaults: both have safe fallbacks (free
// tier, default preferences). Identity does not: nothing user-scoped can
// be defaulted into existence.
func (b *Bootstrapper) Register() {
	b.Gate.Register(PrecondIdentity)
	b.Gate.Register(PrecondEntitlement, AllowDefault())
	b.Gate.Register(PrecondPreferences, AllowDefault())

	b.mu.Lock()
	b.tier = models.TierFree
	b.prefs = models.DefaultPreferences()
	b.mu.Unlock()
}

// Run resolves all preconditions concurrently and returns once every
// resolver has reported. Typically launched on its own goroutine; the gate
// unblocks consumers as states land, so nothing waits on Run itself.
func (b *Bootstrapper) Run(ctx context.Context) {
	log := b.Log
	if log == nil {
		log = slog.Default()
	}

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		if err := b.Identity.ResolveIdentity(ctx); err != nil {
			log.Warn("identity resolution failed", "err", err)
			b.set(PrecondIdentity, StateFailed)
			return
		}
		b.set(PrecondIdentity, StateResolved)
	}()

	go func() {
		defer wg.Done()
		tier, err := b.Entitlement.ResolveEntitlement(ctx)
		if err != nil {
			// Failed maps to degraded, not stuck: proceed on the
			// free tier instead of blocking the boot.
			log.Warn("entitlement lookup failed, defaulting to free tier", "err", err)
			b.set(PrecondEntitlement, StateFailed)
			return
		}
		b.mu.Lock()
		b.tier = tier
		b.mu.Unlock()
		b.set(PrecondEntitlement, StateResolved)
	}()

	go func() {
		defer wg.Done()
		prefs, err := b.Preferences.LoadPreferences(ctx)
		if err != nil {
			log.Warn("preference hydration failed, using defaults", "err", err)
			b.set(PrecondPreferences, StateFailed)
			return
		}
		b.mu.Lock()
		b.prefs = prefs
		b.mu.Unlock()
		b.set(PrecondPreferences, StateResolved)
	}()

	wg.Wait()
}

// Tier returns the resolved entitlement tier, or the free-tier fallback.
func (b *Bootstrapper) Tier() models.Tier {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tier
}

// Prefs returns the hydrated preferences, or defaults.
func (b *Bootstrapper) Prefs() models.Preferences {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.prefs
}

func (b *Bootstrapper) set(name string, state State) {
	if err := b.Gate.Set(name, state); err != nil {
		slog.Error("set precondition", "name", name, "err", err)
	}
}
