// Package control implements the narrow façade spec.md §4.7 describes:
// the only surface the HTTP API and the CLI are allowed to call. It owns
// config hot-reload orchestration (bringing new interfaces up before
// tearing old ones down) and exposes read-only status/route/config views.
package control

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ripnet/ripd/pkg/config"
	"github.com/ripnet/ripd/pkg/engine"
	"github.com/ripnet/ripd/pkg/errs"
	"github.com/ripnet/ripd/pkg/events"
	"github.com/ripnet/ripd/pkg/iface"
	"github.com/ripnet/ripd/pkg/metrics"
	"github.com/ripnet/ripd/pkg/rib"
)

// defaultHistoryLimit bounds the kept configuration history, spec.md §4.5.
const defaultHistoryLimit = 32

// IfaceManager is the subset of *iface.Manager the facade needs to apply
// a config reload's interface add/remove/enable/disable steps. Tests
// substitute a fake to exercise ApplyConfig's ordering without real
// sockets.
type IfaceManager interface {
	AddInterface(i *iface.Interface) error
	RemoveInterface(name string) error
	Enable(name string)
	Disable(name string)
}

// Status is the point-in-time daemon summary spec.md §4.7 GetStatus returns.
type Status struct {
	RouterID      string
	RIPVersion    int
	Uptime        time.Duration
	ConfigVersion int
	RouteCount    int
	NeighborCount int
	Metrics       metrics.Snapshot
}

// Facade is the single entry point pkg/httpapi and cmd/ripctl use.
type Facade struct {
	eng *engine.Engine
	rib *rib.RIB
	mgr IfaceManager
	mtr *metrics.Registry
	bus *events.Bus
	log *logrus.Entry

	startedAt time.Time

	mu      sync.Mutex
	history []config.Snapshot
}

// New builds a Facade over an already-running engine/interface manager.
func New(eng *engine.Engine, ribInstance *rib.RIB, mgr IfaceManager, mtr *metrics.Registry, bus *events.Bus, log *logrus.Entry, initial config.Snapshot) *Facade {
	return &Facade{
		eng:       eng,
		rib:       ribInstance,
		mgr:       mgr,
		mtr:       mtr,
		bus:       bus,
		log:       log,
		startedAt: time.Now(),
		history:   []config.Snapshot{initial},
	}
}

// GetStatus returns a snapshot of overall daemon health, spec.md §4.7.
func (f *Facade) GetStatus(ctx context.Context) Status {
	cur := f.currentConfig()
	direct, static, learned := f.rib.Breakdown()
	snap := f.mtr.Snapshot()
	return Status{
		RouterID:      cur.RouterID,
		RIPVersion:    cur.RIPVersion,
		Uptime:        time.Since(f.startedAt),
		ConfigVersion: cur.Version,
		RouteCount:    direct + static + learned,
		NeighborCount: snap.NeighborCount,
		Metrics:       snap,
	}
}

// ListRoutes returns every RIB entry in deterministic order, spec.md §4.7.
func (f *Facade) ListRoutes(ctx context.Context) []rib.RouteEntry {
	return f.eng.SnapshotRIB(ctx)
}

// CreateStaticRoute installs a static route through the engine's single
// writer goroutine, spec.md §4.7.
func (f *Facade) CreateStaticRoute(ctx context.Context, route config.StaticRoute) error {
	return f.eng.CreateStaticRoute(ctx, route)
}

// DeleteRoute removes a static route; Learned/Direct routes return
// errs.KindRibNotMutable, spec.md §4.7.
func (f *Facade) DeleteRoute(ctx context.Context, p rib.Prefix) error {
	return f.eng.DeleteRoute(ctx, p)
}

// GetConfig returns the currently active configuration snapshot.
func (f *Facade) GetConfig() config.Snapshot {
	return f.currentConfig()
}

// ListConfigHistory returns every retained snapshot, oldest first,
// bounded to defaultHistoryLimit entries, spec.md §4.5.
func (f *Facade) ListConfigHistory() []config.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]config.Snapshot, len(f.history))
	copy(out, f.history)
	return out
}

// DiffConfig computes the structural delta between version and its
// immediate predecessor, spec.md §4.5/§4.7 diff(version).
func (f *Facade) DiffConfig(version int) (config.Diff, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	to, ok := f.findVersion(version)
	if !ok {
		return config.Diff{}, errs.New(errs.KindConfigValidation, "unknown config version in history")
	}
	from, ok := f.findVersion(version - 1)
	if !ok {
		return config.Diff{}, errs.New(errs.KindConfigValidation, "no prior version to diff against")
	}
	return config.DiffSnapshots(from, to), nil
}

func (f *Facade) findVersion(v int) (config.Snapshot, bool) {
	for _, s := range f.history {
		if s.Version == v {
			return s, true
		}
	}
	return config.Snapshot{}, false
}

// RollbackConfig re-applies a previously retained snapshot as the active
// configuration, spec.md §4.5 rollback.
func (f *Facade) RollbackConfig(ctx context.Context, version int) error {
	f.mu.Lock()
	target, ok := f.findVersion(version)
	f.mu.Unlock()
	if !ok {
		return errs.New(errs.KindConfigValidation, "unknown config version in history")
	}
	next := target
	next.Version = f.nextVersion()
	return f.apply(ctx, next)
}

// ApplyConfig validates (by construction, the caller already validated
// via config.Validate) and applies a new configuration, spec.md §4.5: new
// interfaces are brought up before old ones are torn down so there is no
// window where a surviving interface is briefly unavailable.
func (f *Facade) ApplyConfig(ctx context.Context, next config.Snapshot) error {
	return f.apply(ctx, next)
}

func (f *Facade) apply(ctx context.Context, next config.Snapshot) error {
	prev := f.currentConfig()
	diff := config.DiffSnapshots(prev, next)

	for _, name := range diff.InterfacesAdded {
		for _, i := range next.Interfaces {
			if i.Name == name && i.Enabled {
				if err := f.mgr.AddInterface(&iface.Interface{Name: i.Name, Addr: i.Addr, MaskLen: i.MaskLen, Cost: i.Cost, Enabled: true}); err != nil {
					return err
				}
			}
		}
	}
	for _, name := range diff.InterfacesModified {
		for _, i := range next.Interfaces {
			if i.Name != name {
				continue
			}
			if i.Enabled {
				f.mgr.Enable(name)
			} else {
				f.mgr.Disable(name)
			}
		}
	}

	f.eng.ReloadConfig(ctx, next, diff)

	for _, name := range diff.InterfacesRemoved {
		if err := f.mgr.RemoveInterface(name); err != nil {
			f.log.WithError(err).Warn("tear down removed interface " + name)
		}
	}

	f.mu.Lock()
	f.history = append(f.history, next)
	if len(f.history) > defaultHistoryLimit {
		f.history = f.history[len(f.history)-defaultHistoryLimit:]
	}
	f.mu.Unlock()

	f.mtr.SetConfigVersion(next.Version)
	return nil
}

func (f *Facade) currentConfig() config.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history[len(f.history)-1]
}

func (f *Facade) nextVersion() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.history[len(f.history)-1].Version + 1
}

// SubscribeEvents opens a new event stream for a consumer (HTTP SSE, a
// CLI watch mode), spec.md §4.7.
func (f *Facade) SubscribeEvents() *events.Subscription {
	return f.bus.Subscribe()
}
