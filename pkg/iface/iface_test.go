package iface

import (
	"net/netip"
	"testing"
)

func TestInterfaceSubnet(t *testing.T) {
	i := &Interface{Name: "eth0", Addr: netip.MustParseAddr("10.0.0.5"), MaskLen: 24}
	got := i.Subnet()
	want := netip.MustParsePrefix("10.0.0.0/24")
	if got != want {
		t.Fatalf("Subnet() = %s, want %s", got, want)
	}
}

func TestInterfaceStatsZeroValueWithoutSocket(t *testing.T) {
	i := &Interface{Name: "eth0"}
	if got := i.Stats(); got != (Stats{}) {
		t.Fatalf("expected zero Stats without a socket, got %+v", got)
	}
}

// newTestManager builds a Manager with interfaces registered directly,
// bypassing AddInterface's real socket binding -- Enabled/Get/Enable/
// Disable only ever touch the interfaces map and its mutex.
func newTestManager(ifaces ...*Interface) *Manager {
	m := &Manager{interfaces: make(map[string]*Interface)}
	for _, i := range ifaces {
		m.interfaces[i.Name] = i
	}
	return m
}

func TestManagerEnabledListsOnlyEnabledInterfaces(t *testing.T) {
	m := newTestManager(
		&Interface{Name: "eth0", Enabled: true},
		&Interface{Name: "eth1", Enabled: false},
		&Interface{Name: "eth2", Enabled: true},
	)
	enabled := m.Enabled()
	if len(enabled) != 2 {
		t.Fatalf("expected 2 enabled interfaces, got %v", enabled)
	}
}

func TestManagerGetReturnsCopy(t *testing.T) {
	m := newTestManager(&Interface{Name: "eth0", Cost: 3})
	got, ok := m.Get("eth0")
	if !ok {
		t.Fatal("expected eth0 to be found")
	}
	if got.Cost != 3 {
		t.Fatalf("expected cost 3, got %d", got.Cost)
	}

	if _, ok := m.Get("missing"); ok {
		t.Fatal("expected missing interface to be absent")
	}
}

func TestManagerEnableDisableToggleState(t *testing.T) {
	m := newTestManager(&Interface{Name: "eth0", Enabled: false})

	m.Enable("eth0")
	if got, _ := m.Get("eth0"); !got.Enabled {
		t.Fatal("expected eth0 enabled after Enable")
	}

	m.Disable("eth0")
	if got, _ := m.Get("eth0"); got.Enabled {
		t.Fatal("expected eth0 disabled after Disable")
	}

	// Disabling an unknown interface must not panic.
	m.Disable("does-not-exist")
}

func TestSubnetContainsMatchesOnlySameNetwork(t *testing.T) {
	// Regression guard for resolveInterface's subnet-matching fallback,
	// which assumes a /24-or-narrower match is unambiguous for private
	// lab ranges used throughout these tests.
	i := &Interface{Addr: netip.MustParseAddr("192.168.1.1"), MaskLen: 24}
	if !i.Subnet().Contains(netip.MustParseAddr("192.168.1.254")) {
		t.Fatal("expected subnet to contain a host in the same /24")
	}
	if i.Subnet().Contains(netip.MustParseAddr("192.168.2.1")) {
		t.Fatal("expected subnet to exclude a host outside the /24")
	}
}
