// Package events implements the typed, ordered event bus spec.md §4.6
// describes: a bounded per-subscriber broadcast where a slow consumer
// loses events (its oldest buffered one and the one being published)
// rather than stalling publication.
package events

import (
	"sync"

	"github.com/rs/xid"

	"github.com/ripnet/ripd/pkg/rib"
)

// Kind tags the taxonomy of events spec.md §3 defines.
type Kind int

const (
	KindRouteChanged Kind = iota
	KindConfigReloaded
	KindNeighbor
	KindActivity
	KindMetricsTick
	KindSubscriberLagged
)

var kindNames = map[Kind]string{
	KindRouteChanged:     "RouteChanged",
	KindConfigReloaded:   "ConfigReloaded",
	KindNeighbor:         "Neighbor",
	KindActivity:         "Activity",
	KindMetricsTick:      "MetricsTick",
	KindSubscriberLagged: "SubscriberLagged",
}

// String names the event kind, used as the SSE "event:" line (SPEC_FULL.md
// §6) and for diagnostics.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// NeighborState is Up or Down, spec.md §3 Event.
type NeighborState int

const (
	NeighborUp NeighborState = iota
	NeighborDown
)

// Level is an Activity event's severity.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

// Event is a tagged union of the taxonomy spec.md §3 describes. Only the
// fields relevant to Kind are populated.
type Event struct {
	Kind Kind

	// RouteChanged
	RouteKind  rib.ChangeKind
	RoutePfx   rib.Prefix
	RouteEntry rib.RouteEntry

	// ConfigReloaded
	OldVersion int
	NewVersion int

	// Neighbor
	NeighborAddr  string
	NeighborState NeighborState

	// Activity
	ActivityLevel   Level
	ActivityMessage string

	// MetricsTick carries an opaque snapshot; pkg/metrics defines its shape.
	MetricsSnapshot any

	// SubscriberLagged
	LaggedCount int
}

// RouteChanged builds a RouteChanged event, spec.md §3.
func RouteChanged(kind rib.ChangeKind, entry rib.RouteEntry) Event {
	return Event{Kind: KindRouteChanged, RouteKind: kind, RoutePfx: entry.Prefix, RouteEntry: entry}
}

// ConfigReloaded builds a ConfigReloaded event.
func ConfigReloaded(oldVersion, newVersion int) Event {
	return Event{Kind: KindConfigReloaded, OldVersion: oldVersion, NewVersion: newVersion}
}

// Neighbor builds a Neighbor event.
func Neighbor(addr string, state NeighborState) Event {
	return Event{Kind: KindNeighbor, NeighborAddr: addr, NeighborState: state}
}

// Activity builds an Activity event.
func Activity(level Level, message string) Event {
	return Event{Kind: KindActivity, ActivityLevel: level, ActivityMessage: message}
}

// MetricsTick builds a MetricsTick event.
func MetricsTick(snapshot any) Event {
	return Event{Kind: KindMetricsTick, MetricsSnapshot: snapshot}
}

// DefaultQueueSize is the bounded per-subscriber queue depth, spec.md §4.6.
const DefaultQueueSize = 256

// Subscription is a live subscriber's event stream. Callers read from C
// until Close is called or the bus itself is closed.
type Subscription struct {
	ID xid.ID
	C  <-chan Event

	bus *Bus
	ch  chan Event
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.unsubscribe(s.ID)
}

// Bus is a typed broadcast: every subscriber receives every event
// published after it subscribes, in publication order, spec.md §4.6 and
// property P7.
type Bus struct {
	mu     sync.Mutex
	subs   map[xid.ID]chan Event
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[xid.ID]chan Event)}
}

// Subscribe registers a new subscriber with a bounded queue of
// DefaultQueueSize.
func (b *Bus) Subscribe() *Subscription {
	return b.SubscribeSize(DefaultQueueSize)
}

// SubscribeSize registers a new subscriber with a caller-chosen queue
// depth (used by tests to force overflow deterministically).
func (b *Bus) SubscribeSize(size int) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := xid.New()
	ch := make(chan Event, size)
	b.subs[id] = ch
	return &Subscription{ID: id, C: ch, bus: b, ch: ch}
}

func (b *Bus) unsubscribe(id xid.ID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.subs[id]
	if !ok {
		return
	}
	delete(b.subs, id)
	close(ch)
}

// Publish delivers ev to every current subscriber in order. If a
// subscriber's queue is full, the oldest buffered event is dropped, a
// SubscriberLagged event is appended at the tail of that subscriber's
// queue, and ev is not delivered to it -- other subscribers are unaffected
// (spec.md §4.6).
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		deliver(ch, ev)
	}
}

func deliver(ch chan Event, ev Event) {
	select {
	case ch <- ev:
		return
	default:
	}

	// Queue full: drop the oldest buffered event and append a
	// SubscriberLagged signal at the tail. The new event itself is not
	// forced in -- the subscriber is already behind, and the Lagged
	// marker is what tells it so.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- Event{Kind: KindSubscriberLagged, LaggedCount: 1}:
	default:
	}
}

// Close shuts down the bus, closing every subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
