// Package config implements the hot-reloadable configuration manager of
// spec.md §4.5: load/validate a JSON file, watch it for changes with a
// debounce window, diff successive snapshots, and keep a bounded history
// for rollback.
package config

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
	"sort"
	"time"

	"github.com/ripnet/ripd/pkg/errs"
)

// InterfaceSpec is one interface entry in the configuration file, spec.md §6.
type InterfaceSpec struct {
	Name       string `json:"name"`
	IPAddress  string `json:"ip_address"`
	SubnetMask string `json:"subnet_mask"`
	Enabled    bool   `json:"enabled"`
	Cost       int    `json:"cost,omitempty"`
}

// StaticRouteSpec is one static route entry, spec.md §6.
type StaticRouteSpec struct {
	Destination string `json:"destination"`
	Mask        string `json:"mask"`
	Gateway     string `json:"gateway"`
	Metric      int    `json:"metric"`
	Tag         int    `json:"tag,omitempty"`
}

// FileConfig is the on-disk JSON shape, spec.md §6.
type FileConfig struct {
	RouterID               string            `json:"router_id"`
	RIPVersion             int               `json:"rip_version"`
	Port                   int               `json:"port,omitempty"`
	Interfaces             []InterfaceSpec   `json:"interfaces"`
	UpdateInterval         int               `json:"update_interval"`
	HolddownTimer          int               `json:"holddown_timer"`
	GarbageCollectionTimer int               `json:"garbage_collection_timer"`
	MaxHopCount            int               `json:"max_hop_count"`
	SplitHorizon           bool              `json:"split_horizon"`
	PoisonReverse          bool              `json:"poison_reverse"`
	StaticRoutes           []StaticRouteSpec `json:"static_routes"`
}

// Interface is a validated, parsed interface spec.
type Interface struct {
	Name    string
	Addr    netip.Addr
	MaskLen int
	Enabled bool
	Cost    int
}

// StaticRoute is a validated, parsed static route.
type StaticRoute struct {
	Destination netip.Addr
	MaskLen     int
	Gateway     netip.Addr
	Metric      int
	Tag         int
}

// Snapshot is the immutable, versioned configuration value spec.md §4.5
// and §3 ConfigSnapshot describe. Snapshots are never mutated after
// construction -- a reload produces a new Snapshot with version+1.
type Snapshot struct {
	Version                int
	RouterID               string
	RIPVersion             int
	Port                   int
	Interfaces             []Interface
	StaticRoutes           []StaticRoute
	UpdateInterval         time.Duration
	HolddownTimer          time.Duration
	HolddownEnabled        bool
	GarbageCollectionTimer time.Duration
	MaxHopCount            int
	SplitHorizon           bool
	PoisonReverse          bool

	raw FileConfig // retained for diff/rollback textual rendering
}

// Diff is the structural delta between two snapshots, spec.md §4.5.
type Diff struct {
	InterfacesAdded    []string
	InterfacesRemoved  []string
	InterfacesModified []string
	PolicyChanged      bool
	StaticRoutesAdded  int
	StaticRoutesRemoved int
	TimersChanged      bool
}

// Validate parses and validates a FileConfig, producing a fresh Snapshot
// with the given version. Used identically by the initial load, the file
// watcher's reload path, and `ripctl config validate` (SPEC_FULL.md §4.5),
// so all three can never disagree about what counts as valid.
func Validate(fc FileConfig, version int) (Snapshot, error) {
	if fc.RIPVersion != 1 && fc.RIPVersion != 2 {
		return Snapshot{}, errs.New(errs.KindConfigValidation, "rip_version must be 1 or 2")
	}
	if _, err := netip.ParseAddr(fc.RouterID); err != nil {
		return Snapshot{}, errs.Wrap(errs.KindConfigValidation, "invalid router_id", err)
	}
	if fc.UpdateInterval < 1 || fc.UpdateInterval > 3600 {
		return Snapshot{}, errs.New(errs.KindConfigValidation, "update_interval must be in [1,3600]")
	}
	if fc.GarbageCollectionTimer < fc.UpdateInterval {
		return Snapshot{}, errs.New(errs.KindConfigValidation, "garbage_collection_timer must be >= update_interval")
	}
	if fc.MaxHopCount < 2 || fc.MaxHopCount > 16 {
		return Snapshot{}, errs.New(errs.KindConfigValidation, "max_hop_count must be in [2,16]")
	}
	if fc.SplitHorizon && fc.PoisonReverse {
		// both selected is allowed only in the sense that poison reverse
		// implies split horizon; represented internally as PoisonReverse
		// taking priority (spec.md §4.4: "only one of simple/poison is
		// active").
	}

	timeoutTimer := 2 * fc.UpdateInterval // spec.md §6: timeout >= 2*update_interval; we fix timeout at exactly 2x by default
	if timeoutTimer < 2*fc.UpdateInterval {
		return Snapshot{}, errs.New(errs.KindConfigValidation, "timeout must be >= 2*update_interval")
	}

	ifaces := make([]Interface, 0, len(fc.Interfaces))
	subnets := make([]netip.Prefix, 0, len(fc.Interfaces))
	seenNames := make(map[string]bool)
	for _, is := range fc.Interfaces {
		if seenNames[is.Name] {
			return Snapshot{}, errs.New(errs.KindConfigValidation, "duplicate interface name "+is.Name)
		}
		seenNames[is.Name] = true

		addr, err := netip.ParseAddr(is.IPAddress)
		if err != nil {
			return Snapshot{}, errs.Wrap(errs.KindConfigValidation, "invalid ip_address for "+is.Name, err)
		}
		maskLen, err := maskToLen(is.SubnetMask)
		if err != nil {
			return Snapshot{}, errs.Wrap(errs.KindConfigValidation, "invalid subnet_mask for "+is.Name, err)
		}
		cost := is.Cost
		if cost == 0 {
			cost = 1
		}

		pfx, err := addr.Prefix(maskLen)
		if err != nil {
			return Snapshot{}, errs.Wrap(errs.KindConfigValidation, "invalid prefix for "+is.Name, err)
		}
		for _, other := range subnets {
			if prefixesOverlap(pfx, other) {
				return Snapshot{}, errs.New(errs.KindConfigValidation, "interface subnets must be disjoint: "+is.Name)
			}
		}
		subnets = append(subnets, pfx)

		ifaces = append(ifaces, Interface{
			Name:    is.Name,
			Addr:    addr,
			MaskLen: maskLen,
			Enabled: is.Enabled,
			Cost:    cost,
		})
	}

	routes := make([]StaticRoute, 0, len(fc.StaticRoutes))
	for _, sr := range fc.StaticRoutes {
		dest, err := netip.ParseAddr(sr.Destination)
		if err != nil {
			return Snapshot{}, errs.Wrap(errs.KindConfigValidation, "invalid static route destination", err)
		}
		maskLen, err := maskToLen(sr.Mask)
		if err != nil {
			return Snapshot{}, errs.Wrap(errs.KindConfigValidation, "invalid static route mask", err)
		}
		gw, err := netip.ParseAddr(sr.Gateway)
		if err != nil {
			return Snapshot{}, errs.Wrap(errs.KindConfigValidation, "invalid static route gateway", err)
		}
		if sr.Metric < 0 || sr.Metric > 16 {
			return Snapshot{}, errs.New(errs.KindConfigValidation, "static route metric out of [0,16]")
		}
		routes = append(routes, StaticRoute{Destination: dest, MaskLen: maskLen, Gateway: gw, Metric: sr.Metric, Tag: sr.Tag})
	}

	port := fc.Port
	if port == 0 {
		port = 520
	}

	holddownEnabled := fc.HolddownTimer > 0
	holddown := time.Duration(fc.HolddownTimer) * time.Second
	if !holddownEnabled {
		holddown = 0
	}

	return Snapshot{
		Version:                version,
		RouterID:               fc.RouterID,
		RIPVersion:             fc.RIPVersion,
		Port:                   port,
		Interfaces:             ifaces,
		StaticRoutes:           routes,
		UpdateInterval:         time.Duration(fc.UpdateInterval) * time.Second,
		HolddownTimer:          holddown,
		HolddownEnabled:        holddownEnabled,
		GarbageCollectionTimer: time.Duration(fc.GarbageCollectionTimer) * time.Second,
		MaxHopCount:            fc.MaxHopCount,
		SplitHorizon:           fc.SplitHorizon,
		PoisonReverse:          fc.PoisonReverse,
		raw:                    fc,
	}, nil
}

// Load reads and validates a configuration file from path as the initial
// (version 1) snapshot.
func Load(path string) (Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, errs.Wrap(errs.KindConfigIO, "read "+path, err)
	}
	var fc FileConfig
	if err := json.Unmarshal(b, &fc); err != nil {
		return Snapshot{}, errs.Wrap(errs.KindConfigValidation, "parse "+path, err)
	}
	return Validate(fc, 1)
}

// DiffSnapshots computes the structural delta spec.md §4.5 describes.
func DiffSnapshots(prev, cur Snapshot) Diff {
	var d Diff
	prevByName := make(map[string]Interface)
	for _, i := range prev.Interfaces {
		prevByName[i.Name] = i
	}
	curByName := make(map[string]Interface)
	for _, i := range cur.Interfaces {
		curByName[i.Name] = i
	}

	for name, ci := range curByName {
		pi, existed := prevByName[name]
		if !existed {
			d.InterfacesAdded = append(d.InterfacesAdded, name)
			continue
		}
		if pi != ci {
			d.InterfacesModified = append(d.InterfacesModified, name)
		}
	}
	for name := range prevByName {
		if _, ok := curByName[name]; !ok {
			d.InterfacesRemoved = append(d.InterfacesRemoved, name)
		}
	}
	sort.Strings(d.InterfacesAdded)
	sort.Strings(d.InterfacesRemoved)
	sort.Strings(d.InterfacesModified)

	d.PolicyChanged = prev.SplitHorizon != cur.SplitHorizon ||
		prev.PoisonReverse != cur.PoisonReverse ||
		prev.MaxHopCount != cur.MaxHopCount

	d.TimersChanged = prev.UpdateInterval != cur.UpdateInterval ||
		prev.HolddownTimer != cur.HolddownTimer ||
		prev.HolddownEnabled != cur.HolddownEnabled ||
		prev.GarbageCollectionTimer != cur.GarbageCollectionTimer

	prevRoutes := make(map[string]bool)
	for _, r := range prev.StaticRoutes {
		prevRoutes[routeKey(r)] = true
	}
	curRoutes := make(map[string]bool)
	for _, r := range cur.StaticRoutes {
		curRoutes[routeKey(r)] = true
	}
	for k := range curRoutes {
		if !prevRoutes[k] {
			d.StaticRoutesAdded++
		}
	}
	for k := range prevRoutes {
		if !curRoutes[k] {
			d.StaticRoutesRemoved++
		}
	}

	return d
}

func routeKey(r StaticRoute) string {
	return fmt.Sprintf("%s/%d->%s", r.Destination, r.MaskLen, r.Gateway)
}

func maskToLen(mask string) (int, error) {
	addr, err := netip.ParseAddr(mask)
	if err != nil {
		return 0, err
	}
	if !addr.Is4() {
		return 0, fmt.Errorf("mask must be IPv4")
	}
	b := addr.As4()
	bits := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	n := 0
	seenZero := false
	for i := 31; i >= 0; i-- {
		bit := bits&(1<<uint(i)) != 0
		if bit {
			if seenZero {
				return 0, fmt.Errorf("non-contiguous mask %s", mask)
			}
			n++
		} else {
			seenZero = true
		}
	}
	return n, nil
}

func prefixesOverlap(a, b netip.Prefix) bool {
	return a.Overlaps(b)
}
