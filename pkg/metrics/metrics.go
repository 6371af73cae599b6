// Package metrics implements the counters/gauges of spec.md §4.6: atomic
// in-process counters, a point-in-time Snapshot used by MetricsTick events
// and the control façade, and a Prometheus Collector exposing the same
// values at GET /metrics.
//
// The Collector is a structural adaptation of the teacher repo's
// TCPInfoCollector (pkg/exporter/exporter.go in go-tcpinfo): that type
// held a set of per-connection descriptors and re-read live socket state
// on every Collect(); this one holds a single fixed set of descriptors
// and re-reads the Registry's atomic values on every Collect().
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every counter and gauge spec.md §4.6 names.
type Registry struct {
	packetsSent            uint64
	packetsReceived         uint64
	packetsDropped          uint64
	routingUpdatesSent      uint64
	routingUpdatesReceived  uint64
	triggeredUpdates        uint64
	routeChanges            uint64
	rxMalformed             uint64
	txErrors                uint64

	routeCount     int64
	neighborCount  int64
	configVersion  int64
	startedAt      time.Time
}

func NewRegistry() *Registry {
	return &Registry{startedAt: time.Now()}
}

func (r *Registry) IncPacketsSent(n uint64)           { atomic.AddUint64(&r.packetsSent, n) }
func (r *Registry) IncPacketsReceived(n uint64)       { atomic.AddUint64(&r.packetsReceived, n) }
func (r *Registry) IncPacketsDropped(n uint64)        { atomic.AddUint64(&r.packetsDropped, n) }
func (r *Registry) IncRoutingUpdatesSent(n uint64)    { atomic.AddUint64(&r.routingUpdatesSent, n) }
func (r *Registry) IncRoutingUpdatesReceived(n uint64) { atomic.AddUint64(&r.routingUpdatesReceived, n) }
func (r *Registry) IncTriggeredUpdates(n uint64)      { atomic.AddUint64(&r.triggeredUpdates, n) }
func (r *Registry) IncRouteChanges(n uint64)          { atomic.AddUint64(&r.routeChanges, n) }
func (r *Registry) IncRxMalformed(n uint64)           { atomic.AddUint64(&r.rxMalformed, n) }
func (r *Registry) IncTxErrors(n uint64)              { atomic.AddUint64(&r.txErrors, n) }

func (r *Registry) SetRouteCount(n int)    { atomic.StoreInt64(&r.routeCount, int64(n)) }
func (r *Registry) SetNeighborCount(n int) { atomic.StoreInt64(&r.neighborCount, int64(n)) }
func (r *Registry) SetConfigVersion(v int) { atomic.StoreInt64(&r.configVersion, int64(v)) }

// Snapshot is an atomic read of every counter and gauge at a point in
// time, used by the dashboard, the control façade, and MetricsTick events
// (default every 5s per spec.md §4.6).
type Snapshot struct {
	PacketsSent            uint64
	PacketsReceived        uint64
	PacketsDropped         uint64
	RoutingUpdatesSent     uint64
	RoutingUpdatesReceived uint64
	TriggeredUpdates       uint64
	RouteChanges           uint64
	RxMalformed            uint64
	TxErrors               uint64

	RouteCount     int
	NeighborCount  int
	ConfigVersion  int
	UptimeSeconds  float64
}

func (r *Registry) Snapshot() Snapshot {
	return Snapshot{
		PacketsSent:            atomic.LoadUint64(&r.packetsSent),
		PacketsReceived:        atomic.LoadUint64(&r.packetsReceived),
		PacketsDropped:         atomic.LoadUint64(&r.packetsDropped),
		RoutingUpdatesSent:     atomic.LoadUint64(&r.routingUpdatesSent),
		RoutingUpdatesReceived: atomic.LoadUint64(&r.routingUpdatesReceived),
		TriggeredUpdates:       atomic.LoadUint64(&r.triggeredUpdates),
		RouteChanges:           atomic.LoadUint64(&r.routeChanges),
		RxMalformed:            atomic.LoadUint64(&r.rxMalformed),
		TxErrors:               atomic.LoadUint64(&r.txErrors),
		RouteCount:             int(atomic.LoadInt64(&r.routeCount)),
		NeighborCount:          int(atomic.LoadInt64(&r.neighborCount)),
		ConfigVersion:          int(atomic.LoadInt64(&r.configVersion)),
		UptimeSeconds:          time.Since(r.startedAt).Seconds(),
	}
}

type desc struct {
	d        *prometheus.Desc
	valueType prometheus.ValueType
	get       func(Snapshot) float64
}

// Collector adapts a Registry to the prometheus.Collector interface, per
// the teacher's TCPInfoCollector (pkg/exporter/exporter.go) Describe/
// Collect split.
type Collector struct {
	reg   *Registry
	descs []desc
}

// NewCollector builds a Collector exposing reg's values under the
// "ripd_" namespace, with constLabels applied to every metric (teacher's
// NewTCPInfoCollector took the same constLabels parameter).
func NewCollector(reg *Registry, constLabels prometheus.Labels) *Collector {
	c := &Collector{reg: reg}
	counter := func(name, help string, get func(Snapshot) float64) {
		c.descs = append(c.descs, desc{
			d:         prometheus.NewDesc("ripd_"+name, help, nil, constLabels),
			valueType: prometheus.CounterValue,
			get:       get,
		})
	}
	gauge := func(name, help string, get func(Snapshot) float64) {
		c.descs = append(c.descs, desc{
			d:         prometheus.NewDesc("ripd_"+name, help, nil, constLabels),
			valueType: prometheus.GaugeValue,
			get:       get,
		})
	}

	counter("packets_sent_total", "RIP datagrams sent", func(s Snapshot) float64 { return float64(s.PacketsSent) })
	counter("packets_received_total", "RIP datagrams received", func(s Snapshot) float64 { return float64(s.PacketsReceived) })
	counter("packets_dropped_total", "RIP datagrams dropped on send or receive", func(s Snapshot) float64 { return float64(s.PacketsDropped) })
	counter("routing_updates_sent_total", "Periodic/triggered updates sent", func(s Snapshot) float64 { return float64(s.RoutingUpdatesSent) })
	counter("routing_updates_received_total", "Responses processed", func(s Snapshot) float64 { return float64(s.RoutingUpdatesReceived) })
	counter("triggered_updates_total", "Triggered updates sent", func(s Snapshot) float64 { return float64(s.TriggeredUpdates) })
	counter("route_changes_total", "RIB mutations", func(s Snapshot) float64 { return float64(s.RouteChanges) })
	counter("rx_malformed_total", "Datagrams rejected by the wire codec", func(s Snapshot) float64 { return float64(s.RxMalformed) })
	counter("tx_errors_total", "Send failures", func(s Snapshot) float64 { return float64(s.TxErrors) })

	gauge("route_count", "Entries currently in the RIB", func(s Snapshot) float64 { return float64(s.RouteCount) })
	gauge("neighbor_count", "Distinct neighbors currently contributing routes", func(s Snapshot) float64 { return float64(s.NeighborCount) })
	gauge("config_version", "Currently active configuration version", func(s Snapshot) float64 { return float64(s.ConfigVersion) })
	gauge("uptime_seconds", "Seconds since the daemon started", func(s Snapshot) float64 { return s.UptimeSeconds })

	return c
}

func (c *Collector) Describe(out chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		out <- d.d
	}
}

func (c *Collector) Collect(out chan<- prometheus.Metric) {
	snap := c.reg.Snapshot()
	for _, d := range c.descs {
		out <- prometheus.MustNewConstMetric(d.d, d.valueType, d.get(snap))
	}
}
