// Package engine implements the protocol engine of spec.md §4.4: the
// distance-vector state machine that turns received datagrams and RIB
// timer ticks into RIB mutations, and RIB mutations into periodic and
// triggered datagrams on the wire.
//
// Every RIB mutation flows through a single command channel so the RIB
// has exactly one writer goroutine, matching spec.md §5's access
// discipline. The design is grounded on dantte-lp-gobfd's session
// manager (internal/bfd/manager.go), which owns a single command
// channel draining into one goroutine that is the sole mutator of session
// state, and on pobradovic08-route-beacon-ri's pipeline.go for the
// periodic/triggered dual-cadence broadcast split.
package engine

import (
	"context"
	"math/rand"
	"net/netip"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ripnet/ripd/pkg/config"
	"github.com/ripnet/ripd/pkg/errs"
	"github.com/ripnet/ripd/pkg/events"
	"github.com/ripnet/ripd/pkg/iface"
	"github.com/ripnet/ripd/pkg/metrics"
	"github.com/ripnet/ripd/pkg/rib"
	"github.com/ripnet/ripd/pkg/wire"
)

// destAddr is the RIPv2 multicast destination; unicast responses use the
// requester's own source address instead.
var destAddr = netip.AddrPortFrom(iface.RIPMulticastGroup, iface.DefaultPort)

// minTriggeredInterval bounds triggered updates to at most once per
// window, spec.md §4.4.
const minTriggeredInterval = 5 * time.Second

// triggeredDelayMin/Max is the random coalescing delay before a triggered
// update fires, spec.md §4.4.
const (
	triggeredDelayMin = 1 * time.Second
	triggeredDelayMax = 5 * time.Second
)

// tickInterval drives rib.Tick and the triggered-update coalescing check.
const tickInterval = 1 * time.Second

// metricsSampleInterval is how often the engine samples route/neighbor
// counts into the metrics registry and publishes a MetricsTick event,
// spec.md §4.6 "periodic MetricsTick events (default every 5s)".
const metricsSampleInterval = 5 * time.Second

// Transport is the send/receive/interface-lookup surface the engine needs.
// *iface.Manager satisfies it; tests substitute an in-memory fake so
// scenarios run without real sockets.
type Transport interface {
	Send(ctx context.Context, ifaceName string, payload []byte, dest netip.AddrPort) error
	Recv(ctx context.Context) (iface.Packet, error)
	Enabled() []string
	Get(name string) (iface.Interface, bool)
}

type cmdPacket struct{ pkt iface.Packet }
type cmdTick struct{ now time.Time }
type cmdReloadConfig struct {
	cfg  config.Snapshot
	diff config.Diff
}
type cmdCreateStatic struct {
	route config.StaticRoute
	reply chan error
}
type cmdDeleteRoute struct {
	prefix rib.Prefix
	reply  chan error
}
type cmdSnapshotRIB struct{ reply chan []rib.RouteEntry }
type cmdShutdown struct{ done chan struct{} }

// Engine is the single-writer protocol state machine for one router.
type Engine struct {
	rib   *rib.RIB
	tr    Transport
	bus   *events.Bus
	mtr   *metrics.Registry
	log   *logrus.Entry
	cmd   chan any

	mu  sync.RWMutex
	cfg config.Snapshot

	lastTriggered     time.Time
	triggerDeadline   time.Time
	pendingChanges    map[rib.Prefix]struct{}
	lastFullAt        map[string]time.Time
	neighborLastSeen  map[netip.Addr]time.Time
	lastMetricsSample time.Time
}

// New builds an Engine. cfg supplies interfaces, static routes, and the
// split-horizon/poison-reverse/hop-count/timer policy in effect until the
// next ReloadConfig.
func New(cfg config.Snapshot, ribInstance *rib.RIB, tr Transport, bus *events.Bus, mtr *metrics.Registry, log *logrus.Entry) *Engine {
	return &Engine{
		rib:              ribInstance,
		tr:               tr,
		bus:              bus,
		mtr:              mtr,
		log:              log,
		cmd:              make(chan any, 64),
		cfg:              cfg,
		pendingChanges:   make(map[rib.Prefix]struct{}),
		lastFullAt:       make(map[string]time.Time),
		neighborLastSeen: make(map[netip.Addr]time.Time),
	}
}

func (e *Engine) config() config.Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// Run drives the engine until ctx is cancelled or Shutdown is called. It
// starts the receive loop and periodic ticker as its own goroutines and
// processes every command on the single owner goroutine it runs on.
func (e *Engine) Run(ctx context.Context) {
	recvCtx, cancelRecv := context.WithCancel(ctx)
	defer cancelRecv()

	go e.recvLoop(recvCtx)
	go e.tickLoop(recvCtx)

	e.installStaticAndDirectRoutes(e.config())

	for {
		select {
		case <-ctx.Done():
			e.poisonAndWithdraw()
			return
		case c := <-e.cmd:
			if done := e.handleCommand(ctx, c); done {
				return
			}
		}
	}
}

func (e *Engine) recvLoop(ctx context.Context) {
	for {
		pkt, err := e.tr.Recv(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.mtr.IncRxMalformed(1)
			continue
		}
		select {
		case e.cmd <- cmdPacket{pkt: pkt}:
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) tickLoop(ctx context.Context) {
	t := time.NewTicker(tickInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			select {
			case e.cmd <- cmdTick{now: now}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// SubmitPacket enqueues a received datagram for processing. Exported so
// tests (and a future non-Manager transport) can drive the engine without
// a real recvLoop.
func (e *Engine) SubmitPacket(ctx context.Context, pkt iface.Packet) {
	select {
	case e.cmd <- cmdPacket{pkt: pkt}:
	case <-ctx.Done():
	}
}

// Tick forces one timer-advance step, used by tests to avoid depending on
// wall-clock sleeps.
func (e *Engine) Tick(ctx context.Context, now time.Time) {
	select {
	case e.cmd <- cmdTick{now: now}:
	case <-ctx.Done():
	}
}

// CreateStaticRoute installs a static route, spec.md §4.7.
func (e *Engine) CreateStaticRoute(ctx context.Context, route config.StaticRoute) error {
	reply := make(chan error, 1)
	select {
	case e.cmd <- cmdCreateStatic{route: route, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DeleteRoute removes a Static route; Learned/Direct routes are
// NotMutable, spec.md §4.7.
func (e *Engine) DeleteRoute(ctx context.Context, p rib.Prefix) error {
	reply := make(chan error, 1)
	select {
	case e.cmd <- cmdDeleteRoute{prefix: p, reply: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SnapshotRIB returns the current route table through the command
// channel, so it observes a state consistent with the writer goroutine
// rather than racing it.
func (e *Engine) SnapshotRIB(ctx context.Context) []rib.RouteEntry {
	reply := make(chan []rib.RouteEntry, 1)
	select {
	case e.cmd <- cmdSnapshotRIB{reply: reply}:
	case <-ctx.Done():
		return nil
	}
	select {
	case s := <-reply:
		return s
	case <-ctx.Done():
		return nil
	}
}

// ReloadConfig applies a new validated configuration, spec.md §4.5: new
// interfaces are brought up by the caller (pkg/control) before this is
// invoked, old ones torn down after, so the engine only ever sees policy
// and route-table changes here.
func (e *Engine) ReloadConfig(ctx context.Context, cfg config.Snapshot, diff config.Diff) {
	select {
	case e.cmd <- cmdReloadConfig{cfg: cfg, diff: diff}:
	case <-ctx.Done():
	}
}

// Shutdown stops the engine, poisoning every Learned route first
// (spec.md §5 "on shutdown ... poison on shutdown").
func (e *Engine) Shutdown(ctx context.Context) {
	done := make(chan struct{})
	select {
	case e.cmd <- cmdShutdown{done: done}:
	case <-ctx.Done():
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (e *Engine) handleCommand(ctx context.Context, c any) (shutdown bool) {
	switch cmd := c.(type) {
	case cmdPacket:
		e.onPacket(ctx, cmd.pkt)
	case cmdTick:
		e.onTick(ctx, cmd.now)
	case cmdReloadConfig:
		e.onReloadConfig(cmd.cfg, cmd.diff)
	case cmdCreateStatic:
		cmd.reply <- e.onCreateStatic(cmd.route)
	case cmdDeleteRoute:
		cmd.reply <- e.onDeleteRoute(cmd.prefix)
	case cmdSnapshotRIB:
		cmd.reply <- e.rib.Snapshot()
	case cmdShutdown:
		e.poisonAndWithdraw()
		close(cmd.done)
		return true
	}
	return false
}

func (e *Engine) installStaticAndDirectRoutes(cfg config.Snapshot) {
	now := time.Now()
	for _, i := range cfg.Interfaces {
		if !i.Enabled {
			continue
		}
		netPfx, err := i.Addr.Prefix(i.MaskLen)
		if err != nil {
			continue
		}
		pfx := rib.Prefix{Addr: netPfx.Masked().Addr(), Len: i.MaskLen}
		ev := e.rib.InsertOrUpdate(now, rib.RouteEntry{
			Prefix:      pfx,
			NextHop:     netip.IPv4Unspecified(),
			Metric:      0,
			Source:      rib.SourceDirect,
			OnInterface: i.Name,
		}, false)
		e.publishRouteChange(ev)
	}
	for _, sr := range cfg.StaticRoutes {
		pfx := rib.Prefix{Addr: sr.Destination, Len: sr.MaskLen}
		ev := e.rib.InsertOrUpdate(now, rib.RouteEntry{
			Prefix:  pfx,
			NextHop: sr.Gateway,
			Metric:  uint8(sr.Metric),
			Source:  rib.SourceStatic,
			Tag:     uint16(sr.Tag),
		}, false)
		e.publishRouteChange(ev)
	}
}

func (e *Engine) onCreateStatic(route config.StaticRoute) error {
	pfx := rib.Prefix{Addr: route.Destination, Len: route.MaskLen}
	ev := e.rib.InsertOrUpdate(time.Now(), rib.RouteEntry{
		Prefix:  pfx,
		NextHop: route.Gateway,
		Metric:  uint8(route.Metric),
		Source:  rib.SourceStatic,
		Tag:     uint16(route.Tag),
	}, false)
	e.publishRouteChange(ev)
	e.markChanged(pfx)
	return nil
}

func (e *Engine) onDeleteRoute(p rib.Prefix) error {
	entry, ok := e.rib.Lookup(p)
	if !ok {
		return errs.New(errs.KindRibNotFound, "no route for "+p.String())
	}
	if entry.Source != rib.SourceStatic {
		return errs.New(errs.KindRibNotMutable, entry.Source.String()+" routes cannot be deleted")
	}
	ev, _ := e.rib.Remove(p)
	e.publishRouteChange(ev)
	e.markChanged(p)
	return nil
}

func (e *Engine) onReloadConfig(cfg config.Snapshot, diff config.Diff) {
	old := e.config()
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()

	for _, name := range diff.InterfacesRemoved {
		for _, ev := range e.rib.RemoveByInterface(name) {
			e.publishRouteChange(ev)
		}
	}
	e.installStaticAndDirectRoutes(cfg)
	e.bus.Publish(events.ConfigReloaded(old.Version, cfg.Version))
}

func (e *Engine) onTick(ctx context.Context, now time.Time) {
	for _, ev := range e.rib.Tick(now) {
		e.publishRouteChange(ev)
		e.markChanged(ev.Prefix)
	}

	cfg := e.config()
	for _, name := range e.tr.Enabled() {
		last, ok := e.lastFullAt[name]
		if !ok || now.Sub(last) >= cfg.UpdateInterval {
			e.broadcastFull(ctx, name, now)
		}
	}

	if len(e.pendingChanges) > 0 && e.triggerDeadline.IsZero() {
		e.triggerDeadline = now.Add(randomTriggeredDelay())
	}
	if !e.triggerDeadline.IsZero() && !now.Before(e.triggerDeadline) && now.Sub(e.lastTriggered) >= minTriggeredInterval {
		e.broadcastTriggered(ctx, now)
		e.triggerDeadline = time.Time{}
	}

	if e.lastMetricsSample.IsZero() || now.Sub(e.lastMetricsSample) >= metricsSampleInterval {
		e.sampleMetrics(now)
		e.lastMetricsSample = now
	}
}

// sampleMetrics snapshots the RIB's route count and the set of neighbors
// still within their timeout window into the metrics registry, then
// publishes a MetricsTick event carrying the same snapshot (spec.md
// §4.6).
func (e *Engine) sampleMetrics(now time.Time) {
	e.mtr.SetRouteCount(len(e.rib.Snapshot()))

	neighbors := 0
	for addr, lastSeen := range e.neighborLastSeen {
		if now.Sub(lastSeen) > e.rib.Timers().Timeout {
			delete(e.neighborLastSeen, addr)
			continue
		}
		neighbors++
	}
	e.mtr.SetNeighborCount(neighbors)

	e.bus.Publish(events.MetricsTick(e.mtr.Snapshot()))
}

func (e *Engine) markChanged(p rib.Prefix) {
	e.pendingChanges[p] = struct{}{}
}

// broadcastFull sends the whole table out ifaceName, applying split
// horizon/poison reverse per-neighbor, spec.md §4.4.
func (e *Engine) broadcastFull(ctx context.Context, ifaceName string, now time.Time) {
	e.lastFullAt[ifaceName] = now.Add(jitter())
	entries := e.rib.Snapshot()
	e.sendEntries(ctx, ifaceName, entries)
	e.mtr.IncRoutingUpdatesSent(1)
}

func (e *Engine) broadcastTriggered(ctx context.Context, now time.Time) {
	changed := make([]rib.Prefix, 0, len(e.pendingChanges))
	for p := range e.pendingChanges {
		changed = append(changed, p)
	}
	e.pendingChanges = make(map[rib.Prefix]struct{})
	e.lastTriggered = now

	entries := make([]rib.RouteEntry, 0, len(changed))
	for _, p := range changed {
		if entry, ok := e.rib.Lookup(p); ok {
			entries = append(entries, entry)
		}
	}
	if len(entries) == 0 {
		return
	}
	for _, name := range e.tr.Enabled() {
		e.sendEntries(ctx, name, entries)
	}
	e.mtr.IncTriggeredUpdates(1)
}

func (e *Engine) sendEntries(ctx context.Context, ifaceName string, entries []rib.RouteEntry) {
	cfg := e.config()
	i, ok := e.tr.Get(ifaceName)
	if !ok || !i.Enabled {
		return
	}

	rtes := make([]wire.RTE, 0, len(entries))
	for _, entry := range entries {
		metric := entry.Metric
		if entry.Source == rib.SourceLearned && entry.OnInterface == ifaceName {
			switch {
			case cfg.PoisonReverse:
				metric = rib.InfinityMetric
			case cfg.SplitHorizon:
				continue
			}
		}
		if cfg.MaxHopCount > 0 && int(metric) >= cfg.MaxHopCount {
			metric = rib.InfinityMetric
		}
		rtes = append(rtes, wire.RTE{
			AddressFamily: 2,
			Tag:           entry.Tag,
			Addr:          entry.Prefix.Addr,
			MaskLen:       entry.Prefix.Len,
			NextHop:       netip.IPv4Unspecified(),
			Metric:        metric,
		})
	}

	ver := wire.Version2
	if cfg.RIPVersion == 1 {
		ver = wire.Version1
	}

	if len(rtes) == 0 {
		return
	}
	for start := 0; start < len(rtes); start += wire.MaxRTEs {
		end := start + wire.MaxRTEs
		if end > len(rtes) {
			end = len(rtes)
		}
		d := &wire.Datagram{Command: wire.CommandResponse, Version: ver, RTEs: rtes[start:end]}
		payload, err := wire.Encode(d)
		if err != nil {
			e.log.WithError(err).Warn("encode outgoing datagram")
			return
		}
		if err := e.tr.Send(ctx, ifaceName, payload, destAddr); err != nil {
			e.mtr.IncTxErrors(1)
			e.bus.Publish(events.Activity(events.LevelWarn, "send failed on "+ifaceName+": "+err.Error()))
			continue
		}
		e.mtr.IncPacketsSent(1)
	}
}

func (e *Engine) onPacket(ctx context.Context, pkt iface.Packet) {
	i, ok := e.tr.Get(pkt.Iface)
	if !ok || !i.Enabled {
		return
	}

	d, err := wire.Decode(pkt.Payload, pkt.Src.Addr())
	if err != nil {
		e.mtr.IncRxMalformed(1)
		e.bus.Publish(events.Activity(events.LevelWarn, "malformed datagram from "+pkt.Src.String()+": "+err.Error()))
		return
	}

	e.noteNeighbor(pkt.Src.Addr())

	switch d.Command {
	case wire.CommandResponse:
		e.onResponse(i, pkt.Src, d)
	case wire.CommandRequest:
		e.onRequest(ctx, i, pkt.Src, d)
	}
	e.mtr.IncPacketsReceived(1)
}

func (e *Engine) noteNeighbor(addr netip.Addr) {
	_, seen := e.neighborLastSeen[addr]
	e.neighborLastSeen[addr] = time.Now()
	if !seen {
		e.bus.Publish(events.Neighbor(addr.String(), events.NeighborUp))
	}
}

func (e *Engine) onResponse(i iface.Interface, src netip.AddrPort, d *wire.Datagram) {
	now := time.Now()
	e.mtr.IncRoutingUpdatesReceived(1)
	for _, rte := range d.RTEs {
		if rte.WholeTableQuery() {
			continue
		}
		pfx := rib.Prefix{Addr: rte.Addr, Len: rte.MaskLen}

		// Reject advertisements from a neighbor that isn't actually on
		// this interface's subnet (spec.md §4.4 input handling).
		if !i.Subnet().Contains(src.Addr()) {
			continue
		}
		// Reject a route claiming our own Direct network at a better
		// metric than we advertise it ourselves -- treat as spoofed
		// (spec.md §4.4 input handling).
		if direct, ok := e.rib.Lookup(pfx); ok && direct.Source == rib.SourceDirect && i.Subnet().Contains(rte.Addr) && rte.Metric < direct.Metric {
			continue
		}

		metric := int(rte.Metric) + i.Cost
		if metric > int(rib.InfinityMetric) {
			metric = int(rib.InfinityMetric)
		}

		existing, exists := e.rib.Lookup(pfx)
		candidate := rib.RouteEntry{
			Prefix:       pfx,
			NextHop:      rte.NextHop,
			Metric:       uint8(metric),
			Source:       rib.SourceLearned,
			FromNeighbor: src.Addr(),
			OnInterface:  i.Name,
			Tag:          rte.Tag,
		}

		switch {
		case !exists:
			if metric >= int(rib.InfinityMetric) {
				continue
			}
			ev := e.rib.InsertOrUpdate(now, candidate, false)
			e.publishRouteChange(ev)
			e.markChanged(pfx)

		case existing.Source != rib.SourceLearned:
			// Direct and Static routes are never displaced by a learned
			// advertisement (spec.md §4.4).
			continue

		case existing.FromNeighbor == src.Addr() && existing.OnInterface == i.Name:
			// Same incumbent source: always accept metric increases,
			// including infinity (RFC 2453 §3.9.2). An improvement is
			// still subject to holddown -- a neighbor that just poisoned
			// a route must not be able to immediately re-win it with a
			// better metric during the holddown window (spec.md §9 open
			// question (i), S4).
			if metric == int(existing.Metric) {
				e.rib.RefreshTimeout(now, pfx)
				continue
			}
			if metric >= int(rib.InfinityMetric) && existing.Metric >= rib.InfinityMetric {
				e.rib.RefreshTimeout(now, pfx)
				continue
			}
			if metric < int(existing.Metric) && e.rib.InHolddown(pfx, now) {
				continue
			}
			ev := e.rib.InsertOrUpdate(now, candidate, metric > int(existing.Metric))
			e.publishRouteChange(ev)
			e.markChanged(pfx)

		case metric < int(existing.Metric):
			if e.rib.InHolddown(pfx, now) {
				continue
			}
			ev := e.rib.InsertOrUpdate(now, candidate, false)
			e.publishRouteChange(ev)
			e.markChanged(pfx)

		case metric == int(existing.Metric) && e.rib.HalfTimeoutElapsed(pfx, now):
			// Tie-break in favor of a fresher source once the incumbent
			// is more than halfway to expiry (RFC 2453 §3.9.2 "accelerate
			// convergence").
			ev := e.rib.InsertOrUpdate(now, candidate, false)
			e.publishRouteChange(ev)
			e.markChanged(pfx)

		default:
			// Worse or equal metric from a non-incumbent neighbor, not
			// yet past half-timeout: ignored.
		}
	}
}

func (e *Engine) onRequest(ctx context.Context, i iface.Interface, src netip.AddrPort, d *wire.Datagram) {
	if len(d.RTEs) == 1 && d.RTEs[0].WholeTableQuery() {
		entries := e.rib.Snapshot()
		e.sendUnicastResponse(ctx, i, src, entries)
		return
	}

	out := make([]rib.RouteEntry, 0, len(d.RTEs))
	for _, rte := range d.RTEs {
		pfx := rib.Prefix{Addr: rte.Addr, Len: rte.MaskLen}
		entry, ok := e.rib.Lookup(pfx)
		if !ok {
			entry = rib.RouteEntry{Prefix: pfx, Metric: rib.InfinityMetric}
		}
		out = append(out, entry)
	}
	e.sendUnicastResponse(ctx, i, src, out)
}

func (e *Engine) sendUnicastResponse(ctx context.Context, i iface.Interface, dest netip.AddrPort, entries []rib.RouteEntry) {
	cfg := e.config()
	rtes := make([]wire.RTE, 0, len(entries))
	for _, entry := range entries {
		metric := entry.Metric
		if entry.Source == rib.SourceLearned && entry.OnInterface == i.Name && cfg.PoisonReverse {
			metric = rib.InfinityMetric
		}
		rtes = append(rtes, wire.RTE{
			AddressFamily: 2,
			Tag:           entry.Tag,
			Addr:          entry.Prefix.Addr,
			MaskLen:       entry.Prefix.Len,
			Metric:        metric,
		})
	}
	ver := wire.Version2
	if cfg.RIPVersion == 1 {
		ver = wire.Version1
	}
	for start := 0; start < len(rtes); start += wire.MaxRTEs {
		end := start + wire.MaxRTEs
		if end > len(rtes) {
			end = len(rtes)
		}
		payload, err := wire.Encode(&wire.Datagram{Command: wire.CommandResponse, Version: ver, RTEs: rtes[start:end]})
		if err != nil {
			continue
		}
		if err := e.tr.Send(ctx, i.Name, payload, dest); err != nil {
			e.mtr.IncTxErrors(1)
			continue
		}
		e.mtr.IncPacketsSent(1)
	}
}

// poisonAndWithdraw advertises every Learned route as unreachable on
// every enabled interface before the engine stops, spec.md §5 "On
// shutdown, the engine advertises metric=16 for all Learned routes
// (poison on shutdown)". The routes go through sendEntries, so under
// simple split horizon a route is not sent on the interface it was
// learned on.
func (e *Engine) poisonAndWithdraw() {
	entries := e.rib.Snapshot()
	poisoned := make([]rib.RouteEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Source == rib.SourceLearned {
			entry.Metric = rib.InfinityMetric
			poisoned = append(poisoned, entry)
		}
	}
	if len(poisoned) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, name := range e.tr.Enabled() {
		e.sendEntries(ctx, name, poisoned)
	}
}

func (e *Engine) publishRouteChange(ev rib.Event) {
	if ev.Kind == rib.ChangeNone {
		return
	}
	e.mtr.IncRouteChanges(1)
	e.bus.Publish(events.RouteChanged(ev.Kind, ev.Entry))
}

func jitter() time.Duration {
	// +/-1s jitter applied to the next scheduled full broadcast, so
	// multiple routers on a shared segment don't converge their periodic
	// updates onto the same instant (spec.md §4.4).
	return time.Duration(rand.Int63n(int64(2 * time.Second))) - time.Second
}

// randomTriggeredDelay picks the coalescing delay before a triggered
// update fires, spec.md §4.4.
func randomTriggeredDelay() time.Duration {
	span := int64(triggeredDelayMax - triggeredDelayMin)
	return triggeredDelayMin + time.Duration(rand.Int63n(span+1))
}
