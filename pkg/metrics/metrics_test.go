package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSnapshotReflectsCounters(t *testing.T) {
	r := NewRegistry()
	r.IncPacketsSent(3)
	r.IncPacketsReceived(2)
	r.SetRouteCount(5)
	r.SetConfigVersion(7)

	s := r.Snapshot()
	if s.PacketsSent != 3 || s.PacketsReceived != 2 || s.RouteCount != 5 || s.ConfigVersion != 7 {
		t.Fatalf("unexpected snapshot: %+v", s)
	}
}

func TestCollectorRegistersAndCollects(t *testing.T) {
	r := NewRegistry()
	r.IncPacketsSent(10)
	r.SetRouteCount(4)

	c := NewCollector(r, prometheus.Labels{"router_id": "1.1.1.1"})
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("register: %v", err)
	}

	count := testutil.CollectAndCount(c)
	if count == 0 {
		t.Fatalf("expected at least one metric family")
	}
}
