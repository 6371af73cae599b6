// Package rib implements the routing information base: per-destination
// route entries, best-route selection, and the timeout/garbage-collection/
// holddown timer lifecycle described in spec.md §3 and §4.2.
package rib

import (
	"net/netip"
	"sort"
	"sync"
	"time"
)

// Source identifies how a RouteEntry was learned.
type Source int

const (
	SourceDirect Source = iota
	SourceStatic
	SourceLearned
)

func (s Source) String() string {
	switch s {
	case SourceDirect:
		return "direct"
	case SourceStatic:
		return "static"
	case SourceLearned:
		return "learned"
	default:
		return "unknown"
	}
}

// InfinityMetric is RIP's "unreachable" metric (RFC 2453 §1.1).
const InfinityMetric uint8 = 16

// Prefix is an IPv4 destination: address + mask length, spec.md §3.
type Prefix struct {
	Addr netip.Addr
	Len  int // 0..32
}

// Less orders prefixes by address then mask length, the deterministic
// iteration order spec.md §3 requires for RIB.iter_sorted().
func (p Prefix) Less(o Prefix) bool {
	if c := p.Addr.Compare(o.Addr); c != 0 {
		return c < 0
	}
	return p.Len < o.Len
}

func (p Prefix) String() string {
	return netip.PrefixFrom(p.Addr, p.Len).String()
}

// Contains reports whether addr falls within this prefix.
func (p Prefix) Contains(addr netip.Addr) bool {
	pr, err := p.Addr.Prefix(p.Len)
	if err != nil {
		return false
	}
	return pr.Contains(addr)
}

// RouteEntry is a single destination known to the router, spec.md §3.
type RouteEntry struct {
	Prefix       Prefix
	NextHop      netip.Addr
	Metric       uint8
	Source       Source
	FromNeighbor netip.Addr // valid iff Source == SourceLearned
	OnInterface  string     // IfaceId, valid iff Source == SourceLearned
	Tag          uint16
	LearnedAt    time.Time
	UpdatedAt    time.Time

	timeoutAt  time.Time
	gcAt       time.Time
	holddownAt time.Time // zero means not armed
}

func (r RouteEntry) clone() RouteEntry { return r }

// ChangeKind tags the nature of a RIB mutation, mirrored in the event
// taxonomy (spec.md §3 Event).
type ChangeKind int

const (
	ChangeNone ChangeKind = iota
	ChangeAdded
	ChangeUpdated
	ChangeExpired
	ChangeRemoved
)

func (c ChangeKind) String() string {
	switch c {
	case ChangeAdded:
		return "added"
	case ChangeUpdated:
		return "updated"
	case ChangeExpired:
		return "expired"
	case ChangeRemoved:
		return "removed"
	default:
		return "none"
	}
}

// Event reports one RIB transition, returned in bulk from Tick and as the
// immediate return value of InsertOrUpdate/Remove.
type Event struct {
	Prefix Prefix
	Kind   ChangeKind
	Entry  RouteEntry
}

// Timers configures the three logical per-entry timers, spec.md §4.2.
type Timers struct {
	Timeout       time.Duration // default 180s
	GC            time.Duration // default 120s
	HolddownEnabled bool
	Holddown      time.Duration // default 180s if enabled
}

func DefaultTimers() Timers {
	return Timers{
		Timeout: 180 * time.Second,
		GC:      120 * time.Second,
	}
}

// RIB is the mapping from prefix to RouteEntry. All exported methods are
// safe for concurrent use, but per spec.md §5 the Protocol engine is meant
// to be the sole writer; readers should prefer Snapshot/IterSorted.
type RIB struct {
	mu      sync.RWMutex
	entries map[Prefix]*RouteEntry
	timers  Timers
}

// Timers returns the timer configuration this RIB was constructed with.
func (r *RIB) Timers() Timers { return r.timers }

func New(timers Timers) *RIB {
	return &RIB{
		entries: make(map[Prefix]*RouteEntry),
		timers:  timers,
	}
}

// Lookup returns the entry for an exact prefix match.
func (r *RIB) Lookup(p Prefix) (RouteEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[p]
	if !ok {
		return RouteEntry{}, false
	}
	return e.clone(), true
}

// LongestPrefixMatch returns the most specific entry covering addr.
func (r *RIB) LongestPrefixMatch(addr netip.Addr) (RouteEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best *RouteEntry
	for p, e := range r.entries {
		if !p.Contains(addr) {
			continue
		}
		if best == nil || p.Len > best.Prefix.Len {
			best = e
		}
	}
	if best == nil {
		return RouteEntry{}, false
	}
	return best.clone(), true
}

// IterSorted returns all entries ordered by prefix then mask length,
// spec.md §3's deterministic iteration order.
func (r *RIB) IterSorted() []RouteEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RouteEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Prefix.Less(out[j].Prefix) })
	return out
}

// Snapshot is an alias for IterSorted, named to match the "read-copy
// handshake" language of spec.md §5: a consistent point-in-time copy that
// never blocks the writer for more than one slice build.
func (r *RIB) Snapshot() []RouteEntry { return r.IterSorted() }

// Breakdown reports route counts by source, for dashboard use (spec.md §4.2).
func (r *RIB) Breakdown() (direct, static, learned int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		switch e.Source {
		case SourceDirect:
			direct++
		case SourceStatic:
			static++
		case SourceLearned:
			learned++
		}
	}
	return
}

// InHolddown reports whether the entry at p has an armed holddown timer
// that has not yet run out. While it holds, pkg/engine ignores
// advertisements that would improve the entry's metric (spec.md §9 open
// question (i), S4).
func (r *RIB) InHolddown(p Prefix, now time.Time) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[p]
	if !ok || e.holddownAt.IsZero() {
		return false
	}
	return now.Before(e.holddownAt.Add(r.timers.Holddown))
}

// InsertOrUpdate installs or mutates the entry at candidate.Prefix per the
// caller-supplied semantics; callers (pkg/engine) decide replace/refresh/
// keep before calling this -- InsertOrUpdate simply commits whichever
// RouteEntry value is handed to it and arms/clears timers accordingly.
func (r *RIB) InsertOrUpdate(now time.Time, candidate RouteEntry, armHolddown bool) Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidate.UpdatedAt = now
	candidate.timeoutAt = now.Add(r.timers.Timeout)
	candidate.gcAt = time.Time{}
	if armHolddown && r.timers.HolddownEnabled {
		candidate.holddownAt = now
	}

	existing, existed := r.entries[candidate.Prefix]
	kind := ChangeAdded
	if existed {
		kind = ChangeUpdated
		candidate.LearnedAt = existing.LearnedAt
		if !armHolddown {
			candidate.holddownAt = existing.holddownAt
		}
	} else {
		candidate.LearnedAt = now
	}

	cp := candidate
	r.entries[candidate.Prefix] = &cp
	return Event{Prefix: candidate.Prefix, Kind: kind, Entry: cp}
}

// RefreshTimeout resets the timeout timer without changing the metric,
// used when an equal-or-better advertisement arrives from the incumbent
// learner (spec.md §4.4 "Same source ... Always refresh timeout").
func (r *RIB) RefreshTimeout(now time.Time, p Prefix) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[p]
	if !ok {
		return false
	}
	e.timeoutAt = now.Add(r.timers.Timeout)
	e.UpdatedAt = now
	return true
}

// TimeoutDeadline reports when the entry's timeout timer will fire; ok is
// false if there is no entry for p. The half-elapsed check for the RFC
// 2453 §3.9.2 "accelerate convergence" tie-break is HalfTimeoutElapsed.
func (r *RIB) TimeoutDeadline(p Prefix) (deadline time.Time, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, found := r.entries[p]
	if !found {
		return time.Time{}, false
	}
	return e.timeoutAt, true
}

// HalfTimeoutElapsed reports whether more than half of the configured
// timeout interval has elapsed since the entry was last refreshed.
func (r *RIB) HalfTimeoutElapsed(p Prefix, now time.Time) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[p]
	if !ok {
		return false
	}
	elapsed := r.timers.Timeout - e.timeoutAt.Sub(now)
	return elapsed*2 >= r.timers.Timeout
}

// Remove deletes a prefix outright (garbage-collection or interface
// teardown); returns the removal event if the prefix existed.
func (r *RIB) Remove(p Prefix) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[p]
	if !ok {
		return Event{}, false
	}
	delete(r.entries, p)
	return Event{Prefix: p, Kind: ChangeRemoved, Entry: e.clone()}, true
}

// RemoveByInterface deletes every entry owned by iface (Direct routes on
// that interface, and Learned routes received on it), used when an
// interface is torn down (spec.md §3 RouteEntry lifecycle "destroyed").
func (r *RIB) RemoveByInterface(iface string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var events []Event
	for p, e := range r.entries {
		owns := (e.Source == SourceDirect && e.OnInterface == iface) ||
			(e.Source == SourceLearned && e.OnInterface == iface)
		if !owns {
			continue
		}
		events = append(events, Event{Prefix: p, Kind: ChangeRemoved, Entry: e.clone()})
		delete(r.entries, p)
	}
	return events
}

// Tick advances timer state for every entry in deterministic order and
// returns one Event per transition, spec.md §4.2. It is idempotent for a
// given now: calling it twice with the same timestamp produces the second
// time no further transitions, since state has already moved past them.
func (r *RIB) Tick(now time.Time) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]Prefix, 0, len(r.entries))
	for p := range r.entries {
		keys = append(keys, p)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	var events []Event
	for _, p := range keys {
		e := r.entries[p]

		if e.gcAt.IsZero() && e.Metric < InfinityMetric && !e.timeoutAt.IsZero() && !now.Before(e.timeoutAt) {
			e.Metric = InfinityMetric
			e.UpdatedAt = now
			e.gcAt = now.Add(r.timers.GC)
			events = append(events, Event{Prefix: p, Kind: ChangeExpired, Entry: e.clone()})
			continue
		}

		if !e.gcAt.IsZero() && !now.Before(e.gcAt) {
			events = append(events, Event{Prefix: p, Kind: ChangeRemoved, Entry: e.clone()})
			delete(r.entries, p)
		}
	}
	return events
}
