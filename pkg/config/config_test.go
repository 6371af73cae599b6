package config

import (
	"testing"
)

func validFileConfig() FileConfig {
	return FileConfig{
		RouterID:               "10.0.0.1",
		RIPVersion:             2,
		Interfaces:             []InterfaceSpec{{Name: "eth0", IPAddress: "10.0.0.1", SubnetMask: "255.255.255.0", Enabled: true, Cost: 1}},
		UpdateInterval:         30,
		GarbageCollectionTimer: 120,
		MaxHopCount:            16,
		SplitHorizon:           true,
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	snap, err := Validate(validFileConfig(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Version != 1 || len(snap.Interfaces) != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Interfaces[0].MaskLen != 24 {
		t.Fatalf("expected /24, got /%d", snap.Interfaces[0].MaskLen)
	}
}

func TestValidateRejectsBadRIPVersion(t *testing.T) {
	fc := validFileConfig()
	fc.RIPVersion = 3
	if _, err := Validate(fc, 1); err == nil {
		t.Fatal("expected error for rip_version 3")
	}
}

func TestValidateRejectsOverlappingInterfaceSubnets(t *testing.T) {
	fc := validFileConfig()
	fc.Interfaces = append(fc.Interfaces, InterfaceSpec{
		Name: "eth1", IPAddress: "10.0.0.50", SubnetMask: "255.255.255.0", Enabled: true,
	})
	if _, err := Validate(fc, 1); err == nil {
		t.Fatal("expected error for overlapping subnets")
	}
}

func TestValidateRejectsNonContiguousMask(t *testing.T) {
	fc := validFileConfig()
	fc.Interfaces[0].SubnetMask = "255.0.255.0"
	if _, err := Validate(fc, 1); err == nil {
		t.Fatal("expected error for non-contiguous mask")
	}
}

func TestValidateRejectsDuplicateInterfaceNames(t *testing.T) {
	fc := validFileConfig()
	fc.Interfaces = append(fc.Interfaces, InterfaceSpec{
		Name: "eth0", IPAddress: "10.0.1.1", SubnetMask: "255.255.255.0", Enabled: true,
	})
	if _, err := Validate(fc, 1); err == nil {
		t.Fatal("expected error for duplicate interface name")
	}
}

func TestValidateRejectsUpdateIntervalOutOfRange(t *testing.T) {
	fc := validFileConfig()
	fc.UpdateInterval = 0
	if _, err := Validate(fc, 1); err == nil {
		t.Fatal("expected error for update_interval 0")
	}
	fc = validFileConfig()
	fc.UpdateInterval = 4000
	if _, err := Validate(fc, 1); err == nil {
		t.Fatal("expected error for update_interval 4000")
	}
}

func TestValidateRejectsGCTimerBelowUpdateInterval(t *testing.T) {
	fc := validFileConfig()
	fc.GarbageCollectionTimer = 10
	fc.UpdateInterval = 30
	if _, err := Validate(fc, 1); err == nil {
		t.Fatal("expected error for garbage_collection_timer < update_interval")
	}
}

func TestValidateDefaultsCostAndPort(t *testing.T) {
	fc := validFileConfig()
	fc.Interfaces[0].Cost = 0
	snap, err := Validate(fc, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Interfaces[0].Cost != 1 {
		t.Fatalf("expected default cost 1, got %d", snap.Interfaces[0].Cost)
	}
	if snap.Port != 520 {
		t.Fatalf("expected default port 520, got %d", snap.Port)
	}
}

func TestValidateHolddownDisabledWhenTimerZero(t *testing.T) {
	snap, err := Validate(validFileConfig(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.HolddownEnabled {
		t.Fatal("expected holddown disabled when holddown_timer is 0")
	}
}

func TestDiffSnapshotsDetectsInterfaceChurnAndPolicy(t *testing.T) {
	prev, err := Validate(validFileConfig(), 1)
	if err != nil {
		t.Fatalf("validate prev: %v", err)
	}

	fc := validFileConfig()
	fc.Interfaces = []InterfaceSpec{{Name: "eth1", IPAddress: "10.0.1.1", SubnetMask: "255.255.255.0", Enabled: true, Cost: 1}}
	fc.SplitHorizon = false
	fc.PoisonReverse = true
	cur, err := Validate(fc, 2)
	if err != nil {
		t.Fatalf("validate cur: %v", err)
	}

	diff := DiffSnapshots(prev, cur)
	if len(diff.InterfacesAdded) != 1 || diff.InterfacesAdded[0] != "eth1" {
		t.Fatalf("expected eth1 added, got %+v", diff.InterfacesAdded)
	}
	if len(diff.InterfacesRemoved) != 1 || diff.InterfacesRemoved[0] != "eth0" {
		t.Fatalf("expected eth0 removed, got %+v", diff.InterfacesRemoved)
	}
	if !diff.PolicyChanged {
		t.Fatal("expected PolicyChanged due to split_horizon/poison_reverse flip")
	}
}

func TestDiffSnapshotsDetectsStaticRouteChurn(t *testing.T) {
	fc1 := validFileConfig()
	fc1.StaticRoutes = []StaticRouteSpec{{Destination: "172.16.0.0", Mask: "255.255.0.0", Gateway: "10.0.0.254", Metric: 2}}
	prev, err := Validate(fc1, 1)
	if err != nil {
		t.Fatalf("validate prev: %v", err)
	}

	fc2 := validFileConfig()
	fc2.StaticRoutes = []StaticRouteSpec{{Destination: "192.168.0.0", Mask: "255.255.255.0", Gateway: "10.0.0.254", Metric: 3}}
	cur, err := Validate(fc2, 2)
	if err != nil {
		t.Fatalf("validate cur: %v", err)
	}

	diff := DiffSnapshots(prev, cur)
	if diff.StaticRoutesAdded != 1 || diff.StaticRoutesRemoved != 1 {
		t.Fatalf("expected 1 added/1 removed, got %+v", diff)
	}
}

func TestMaskToLenRejectsNonFourOctetAddress(t *testing.T) {
	if _, err := maskToLen("not-an-ip"); err == nil {
		t.Fatal("expected error for malformed mask")
	}
}
