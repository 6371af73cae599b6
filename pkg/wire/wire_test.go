package wire

import (
	"net/netip"
	"testing"

	"github.com/ripnet/ripd/pkg/errs"
)

func TestRoundTripV2Response(t *testing.T) {
	d := &Datagram{
		Command: CommandResponse,
		Version: Version2,
		RTEs: []RTE{
			{
				AddressFamily: afInet,
				Tag:           42,
				Addr:          netip.MustParseAddr("10.0.0.0"),
				MaskLen:       8,
				NextHop:       netip.MustParseAddr("192.168.1.2"),
				Metric:        4,
			},
			{
				AddressFamily: afInet,
				Addr:          netip.MustParseAddr("172.16.0.0"),
				MaskLen:       16,
				Metric:        16,
			},
		},
	}

	raw, err := Encode(d)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := Decode(raw, netip.MustParseAddr("192.168.1.2"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got.Command != d.Command || got.Version != d.Version {
		t.Fatalf("header mismatch: %+v", got)
	}
	if len(got.RTEs) != 2 {
		t.Fatalf("expected 2 RTEs, got %d", len(got.RTEs))
	}
	if got.RTEs[0].Addr != d.RTEs[0].Addr || got.RTEs[0].MaskLen != 8 || got.RTEs[0].Metric != 4 || got.RTEs[0].Tag != 42 {
		t.Fatalf("RTE0 mismatch: %+v", got.RTEs[0])
	}
	if got.RTEs[0].NextHop != d.RTEs[0].NextHop {
		t.Fatalf("next hop mismatch: got %v want %v", got.RTEs[0].NextHop, d.RTEs[0].NextHop)
	}
	if got.RTEs[1].NextHop != netip.MustParseAddr("192.168.1.2") {
		t.Fatalf("next-hop-zero should fill sender address, got %v", got.RTEs[1].NextHop)
	}
}

func TestDecodeShortHeader(t *testing.T) {
	_, err := Decode([]byte{1, 2}, netip.Addr{})
	assertKind(t, err, errs.KindWireShort)
}

func TestDecodeBadCommand(t *testing.T) {
	_, err := Decode([]byte{9, 2, 0, 0}, netip.Addr{})
	assertKind(t, err, errs.KindWireBadCmd)
}

func TestDecodeBadVersion(t *testing.T) {
	_, err := Decode([]byte{2, 9, 0, 0}, netip.Addr{})
	assertKind(t, err, errs.KindWireBadVersion)
}

func TestDecodeTooManyRTEs(t *testing.T) {
	b := make([]byte, headerLen+(MaxRTEs+1)*rteLen)
	b[0], b[1] = byte(CommandResponse), byte(Version2)
	for i := 0; i <= MaxRTEs; i++ {
		off := headerLen + i*rteLen
		b[off+1] = 2 // AF = afInet, big-endian high byte is 0, low byte 2
		b[off+19] = 1 // metric = 1
	}
	_, err := Decode(b, netip.Addr{})
	assertKind(t, err, errs.KindWireTooManyRTE)
}

func TestDecodeMalformedMetric(t *testing.T) {
	d := &Datagram{
		Command: CommandResponse,
		Version: Version2,
		RTEs:    []RTE{{AddressFamily: afInet, Addr: netip.MustParseAddr("10.0.0.0"), MaskLen: 8, Metric: 16}},
	}
	raw, err := Encode(d)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// Corrupt the metric field to 0, which is outside [1,16].
	raw[len(raw)-1] = 0
	_, err = Decode(raw, netip.Addr{})
	assertKind(t, err, errs.KindWireBadMetric)
}

func TestDecodeV1ZerosEnforced(t *testing.T) {
	raw := make([]byte, headerLen+rteLen)
	raw[0], raw[1] = byte(CommandResponse), byte(Version1)
	off := headerLen
	raw[off+1] = 2 // AF inet
	raw[off+2] = 0xFF // non-zero tag -- invalid for v1
	raw[off+19] = 5
	_, err := Decode(raw, netip.Addr{})
	assertKind(t, err, errs.KindWireBadVersion)
}

func TestDecodeV1FillsClassfulMask(t *testing.T) {
	d := &Datagram{
		Command: CommandResponse,
		Version: Version1,
		RTEs:    []RTE{{AddressFamily: afInet, Addr: netip.MustParseAddr("10.1.2.0"), Metric: 3}},
	}
	raw, err := Encode(d)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(raw, netip.MustParseAddr("192.168.1.2"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.RTEs[0].MaskLen != 8 {
		t.Fatalf("expected classful /8 for 10.x, got /%d", got.RTEs[0].MaskLen)
	}
	if got.RTEs[0].NextHop != netip.MustParseAddr("192.168.1.2") {
		t.Fatalf("v1 next hop should be filled from source address")
	}
}

func TestWholeTableRequestMustBeSole(t *testing.T) {
	raw := make([]byte, headerLen+2*rteLen)
	raw[0], raw[1] = byte(CommandRequest), byte(Version2)
	off1 := headerLen
	raw[off1], raw[off1+1] = 0xFF, 0xFF
	raw[off1+19] = 1
	off2 := headerLen + rteLen
	raw[off2+1] = 2
	raw[off2+19] = 1
	_, err := Decode(raw, netip.Addr{})
	assertKind(t, err, errs.KindWireBadAF)
}

func assertKind(t *testing.T, err error, want errs.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error of kind %s, got nil", want)
	}
	e, ok := err.(*errs.Error)
	if !ok {
		t.Fatalf("expected *errs.Error, got %T (%v)", err, err)
	}
	if e.Kind() != want {
		t.Fatalf("expected kind %s, got %s", want, e.Kind())
	}
}
