// Package wire implements RFC 2453 RIPv1/v2 datagram encode/decode: the
// 4-byte header plus zero or more 20-byte Route Table Entries (RTEs), per
// spec.md §4.1. Decoding is deliberately strict and local: a malformed
// datagram produces a structural error, never a panic, so the engine can
// drop it and bump a counter (spec.md §4.4 "Failure model").
package wire

import (
	"encoding/binary"
	"net/netip"

	"github.com/ripnet/ripd/pkg/errs"
)

type Command uint8

const (
	CommandRequest  Command = 1
	CommandResponse Command = 2
)

type Version uint8

const (
	Version1 Version = 1
	Version2 Version = 2
)

const (
	headerLen = 4
	rteLen    = 20
	// MaxRTEs is the maximum number of RTEs in a single datagram (spec.md §4.1).
	MaxRTEs = 25

	afInet            uint16 = 2
	afWholeTableQuery  uint16 = 0xFFFF
	minValidMetric     uint32 = 1
	maxValidMetric     uint32 = 16
)

// RTE is one decoded Route Table Entry.
type RTE struct {
	AddressFamily uint16
	Tag           uint16
	Addr          netip.Addr // destination network address
	MaskLen       int        // prefix length, 0..32
	NextHop       netip.Addr // zero value means "the sender" on the wire
	Metric        uint8      // 1..16 after decode (RFC 2453 §3.5)
}

// WholeTableQuery reports whether this RTE is the "whole table" marker
// (address_family == 0xFFFF) used in a Request datagram.
func (r RTE) WholeTableQuery() bool { return r.AddressFamily == afWholeTableQuery }

// Datagram is a fully decoded RIP message.
type Datagram struct {
	Command Command
	Version Version
	RTEs    []RTE
}

// ClassfulDefault resolves the classful default mask length for IPv4
// addresses, used by v1 decode to fill in the subnet mask the wire format
// omits (spec.md §4.1, §9 open question (ii)).
func ClassfulDefault(addr netip.Addr) int {
	if !addr.Is4() {
		return 32
	}
	b := addr.As4()
	switch {
	case b[0] < 128:
		return 8
	case b[0] < 192:
		return 16
	case b[0] < 224:
		return 24
	default:
		return 32
	}
}

// Decode parses a raw datagram. srcAddr is the address of the neighbor
// that sent it, used to fill in a zero next-hop field (RFC 2453 §3.4.2:
// next-hop 0.0.0.0 means "use the sender").
func Decode(b []byte, srcAddr netip.Addr) (*Datagram, error) {
	if len(b) < headerLen {
		return nil, errs.New(errs.KindWireShort, "datagram shorter than header")
	}

	cmd := Command(b[0])
	if cmd != CommandRequest && cmd != CommandResponse {
		return nil, errs.New(errs.KindWireBadCmd, "unsupported command")
	}

	ver := Version(b[1])
	if ver != Version1 && ver != Version2 {
		return nil, errs.New(errs.KindWireBadVersion, "unsupported version")
	}

	body := b[headerLen:]
	if len(body)%rteLen != 0 {
		return nil, errs.New(errs.KindWireShort, "trailing bytes not a whole RTE")
	}
	n := len(body) / rteLen
	if n > MaxRTEs {
		return nil, errs.New(errs.KindWireTooManyRTE, "datagram exceeds 25 RTEs")
	}

	rtes := make([]RTE, 0, n)
	for i := 0; i < n; i++ {
		raw := body[i*rteLen : (i+1)*rteLen]
		af := binary.BigEndian.Uint16(raw[0:2])

		if af == afWholeTableQuery {
			if i != 0 || n != 1 || cmd != CommandRequest {
				return nil, errs.New(errs.KindWireBadAF, "whole-table marker must be the sole RTE of a Request")
			}
			rtes = append(rtes, RTE{AddressFamily: af})
			continue
		}
		if af != afInet {
			return nil, errs.New(errs.KindWireBadAF, "unsupported address family")
		}

		tag := binary.BigEndian.Uint16(raw[2:4])
		ipBits := binary.BigEndian.Uint32(raw[4:8])
		maskBits := binary.BigEndian.Uint32(raw[8:12])
		nhBits := binary.BigEndian.Uint32(raw[12:16])
		metric := binary.BigEndian.Uint32(raw[16:20])

		if metric < minValidMetric || metric > maxValidMetric {
			return nil, errs.New(errs.KindWireBadMetric, "metric out of [1,16]")
		}

		addr := addrFromUint32(ipBits)

		maskLen := 32
		if ver == Version1 {
			if tag != 0 || maskBits != 0 || nhBits != 0 {
				return nil, errs.New(errs.KindWireBadVersion, "v1 RTE must have zero tag/mask/next-hop")
			}
			maskLen = ClassfulDefault(addr)
		} else {
			maskLen = prefixLenFromMask(maskBits)
		}

		nextHop := addrFromUint32(nhBits)
		if ver == Version1 || nhBits == 0 {
			nextHop = srcAddr
		}

		rtes = append(rtes, RTE{
			AddressFamily: af,
			Tag:           uint16(tag),
			Addr:          addr,
			MaskLen:       maskLen,
			NextHop:       nextHop,
			Metric:        uint8(metric),
		})
	}

	return &Datagram{Command: cmd, Version: ver, RTEs: rtes}, nil
}

// Encode serializes a datagram back to wire bytes. Metric is clamped into
// [1,16]; NextHop zero-value serializes as 0 ("the sender"); v1 output
// forces tag/mask/next-hop to zero per spec.md §4.1.
func Encode(d *Datagram) ([]byte, error) {
	if len(d.RTEs) > MaxRTEs {
		return nil, errs.New(errs.KindWireTooManyRTE, "too many RTEs to encode")
	}
	out := make([]byte, headerLen+len(d.RTEs)*rteLen)
	out[0] = byte(d.Command)
	out[1] = byte(d.Version)
	// bytes 2-3 (must_be_zero) left as zero.

	for i, r := range d.RTEs {
		raw := out[headerLen+i*rteLen : headerLen+(i+1)*rteLen]
		if r.WholeTableQuery() {
			binary.BigEndian.PutUint16(raw[0:2], afWholeTableQuery)
			continue
		}
		binary.BigEndian.PutUint16(raw[0:2], afInet)

		metric := uint32(r.Metric)
		if metric < minValidMetric {
			metric = minValidMetric
		}
		if metric > maxValidMetric {
			metric = maxValidMetric
		}

		tag := r.Tag
		maskBits := maskFromPrefixLen(r.MaskLen)
		nhBits := uint32ToBits(r.NextHop)
		if d.Version == Version1 {
			tag = 0
			maskBits = 0
			nhBits = 0
		}

		binary.BigEndian.PutUint16(raw[2:4], tag)
		binary.BigEndian.PutUint32(raw[4:8], uint32ToBits(r.Addr))
		binary.BigEndian.PutUint32(raw[8:12], maskBits)
		binary.BigEndian.PutUint32(raw[12:16], nhBits)
		binary.BigEndian.PutUint32(raw[16:20], metric)
	}

	return out, nil
}

func addrFromUint32(v uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return netip.AddrFrom4(b)
}

func uint32ToBits(a netip.Addr) uint32 {
	if !a.IsValid() || !a.Is4() {
		return 0
	}
	b := a.As4()
	return binary.BigEndian.Uint32(b[:])
}

func maskFromPrefixLen(n int) uint32 {
	if n <= 0 {
		return 0
	}
	if n >= 32 {
		return 0xFFFFFFFF
	}
	return ^uint32(0) << uint(32-n)
}

func prefixLenFromMask(mask uint32) int {
	n := 0
	for i := 31; i >= 0; i-- {
		if mask&(1<<uint(i)) == 0 {
			break
		}
		n++
	}
	return n
}
