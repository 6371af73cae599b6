// Package iface implements per-interface UDP socket I/O: multicast group
// membership, send/receive, and per-direction counters, per spec.md §4.3.
//
// The Socket type is a structural adaptation of the teacher repo's
// sockstats.Conn/conniver.Conn (sockstats.go, wrap.go in go-tcpinfo): a
// net.Conn wrapper that tracks byte/packet counts and first/last activity
// timestamps. Here it wraps a UDP socket instead of a TCP one, and reports
// into Stats rather than invoking a single callback.
package iface

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/higebu/netfd"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"

	"github.com/ripnet/ripd/pkg/errs"
)

// RIPMulticastGroup is the RIPv2 multicast group, spec.md §6.
var RIPMulticastGroup = netip.MustParseAddr("224.0.0.9")

// DefaultPort is the RIP well-known port, spec.md §6.
const DefaultPort = 520

// sendDeadline bounds every send, spec.md §5.
const sendDeadline = 2 * time.Second

// Stats are the per-interface byte/packet counters spec.md §3 and §4.3
// describe.
type Stats struct {
	BytesSent      uint64
	BytesRecv      uint64
	PacketsSent    uint64
	PacketsRecv    uint64
	PacketsDropped uint64
}

// Socket wraps a send-capable UDP connection bound to one interface's
// address, tracking counters the way the teacher's Conn wrapper tracks
// TCP connection activity.
type Socket struct {
	name string
	fd   int
	pc   *ipv4.PacketConn
	raw  *net.UDPConn

	bytesSent, bytesRecv     uint64
	packetsSent, packetsRecv uint64
	packetsDropped           uint64
}

func newSocket(name string, conn *net.UDPConn) *Socket {
	s := &Socket{name: name, raw: conn, pc: ipv4.NewPacketConn(conn)}
	s.fd = netfd.GetFdFromConn(conn)
	return s
}

// Fd is the underlying file descriptor, surfaced for diagnostics the way
// the teacher's connEntry.fd was surfaced to the Prometheus collector.
func (s *Socket) Fd() int { return s.fd }

func (s *Socket) stats() Stats {
	return Stats{
		BytesSent:      atomic.LoadUint64(&s.bytesSent),
		BytesRecv:      atomic.LoadUint64(&s.bytesRecv),
		PacketsSent:    atomic.LoadUint64(&s.packetsSent),
		PacketsRecv:    atomic.LoadUint64(&s.packetsRecv),
		PacketsDropped: atomic.LoadUint64(&s.packetsDropped),
	}
}

// Interface is one router interface: address, mask, enabled flag, cost,
// and the send socket bound to it (spec.md §3 Interface, §4.3).
type Interface struct {
	Name    string
	Addr    netip.Addr
	MaskLen int
	Cost    int
	Enabled bool

	socket *Socket
}

// Subnet returns this interface's network prefix.
func (i *Interface) Subnet() netip.Prefix {
	p, _ := i.Addr.Prefix(i.MaskLen)
	return p
}

// Stats returns this interface's counters.
func (i *Interface) Stats() Stats {
	if i.socket == nil {
		return Stats{}
	}
	return i.socket.stats()
}

// Manager owns every interface's send socket plus the single shared
// receive socket on :520 joined to 224.0.0.9 on each enabled interface,
// spec.md §4.3.
type Manager struct {
	mu         sync.RWMutex
	port       int
	interfaces map[string]*Interface
	recvConn   *net.UDPConn
	recvPC     *ipv4.PacketConn
	log        *logrus.Entry

	recvDropped uint64
}

// NewManager binds the shared receive socket to 0.0.0.0:<port>.
func NewManager(port int, log *logrus.Entry) (*Manager, error) {
	if port == 0 {
		port = DefaultPort
	}
	addr := &net.UDPAddr{IP: net.IPv4zero, Port: port}
	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, errs.Wrap(errs.KindNetBind, fmt.Sprintf("bind 0.0.0.0:%d", port), err)
	}
	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetControlMessage(ipv4.FlagInterface, true); err != nil {
		log.WithError(err).Warn("control messages unavailable, interface resolution on receive will degrade to best effort")
	}

	return &Manager{
		port:       port,
		interfaces: make(map[string]*Interface),
		recvConn:   conn,
		recvPC:     pc,
		log:        log,
	}, nil
}

// AddInterface brings up a new interface: binds its dedicated send
// socket to its address (SO_REUSEADDR, IP_MULTICAST_IF bound to the
// interface address, IP_MULTICAST_LOOP off, IP_MULTICAST_TTL=1) and
// joins the shared receive socket to 224.0.0.9 for that interface,
// spec.md §4.3.
func (m *Manager) AddInterface(iface *Interface) error {
	sendAddr := &net.UDPAddr{IP: iface.Addr.AsSlice(), Port: 0}
	lc := net.ListenConfig{Control: func(network, address string, rc syscall.RawConn) error {
		var optErr error
		if err := rc.Control(func(fd uintptr) {
			optErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
		}); err != nil {
			return err
		}
		return optErr
	}}
	pconn, err := lc.ListenPacket(context.Background(), "udp4", sendAddr.String())
	if err != nil {
		return errs.Wrap(errs.KindNetBind, fmt.Sprintf("bind send socket on %s", iface.Name), err)
	}
	conn := pconn.(*net.UDPConn)

	pc := ipv4.NewPacketConn(conn)
	netIface, err := interfaceByAddr(iface.Addr)
	if err == nil {
		_ = pc.SetMulticastInterface(netIface)
	}
	_ = pc.SetMulticastLoopback(false)
	_ = pc.SetMulticastTTL(1)

	iface.socket = newSocket(iface.Name, conn)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.interfaces[iface.Name] = iface

	if iface.Enabled {
		if netIface != nil {
			if err := m.recvPC.JoinGroup(netIface, &net.UDPAddr{IP: RIPMulticastGroup.AsSlice()}); err != nil {
				return errs.Wrap(errs.KindNetMulticast, fmt.Sprintf("join multicast on %s", iface.Name), err)
			}
		}
	}
	return nil
}

// RemoveInterface tears down an interface: leaves the multicast group and
// closes its send socket. Safe to call even if AddInterface partially
// failed.
func (m *Manager) RemoveInterface(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	iface, ok := m.interfaces[name]
	if !ok {
		return nil
	}
	delete(m.interfaces, name)

	if netIface, err := interfaceByAddr(iface.Addr); err == nil {
		_ = m.recvPC.LeaveGroup(netIface, &net.UDPAddr{IP: RIPMulticastGroup.AsSlice()})
	}
	if iface.socket != nil {
		return iface.socket.raw.Close()
	}
	return nil
}

// Enable/Disable flip an interface's enabled flag without tearing down
// its socket. The engine neither sends updates on nor accepts datagrams
// from a disabled interface; pkg/control calls these when a config reload
// changes an interface's enabled setting (spec.md §4.5).
func (m *Manager) Enable(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if iface, ok := m.interfaces[name]; ok {
		iface.Enabled = true
	}
}

func (m *Manager) Disable(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if iface, ok := m.interfaces[name]; ok {
		iface.Enabled = false
	}
}

// Get returns a shallow copy of the named interface's metadata.
func (m *Manager) Get(name string) (Interface, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	iface, ok := m.interfaces[name]
	if !ok {
		return Interface{}, false
	}
	return *iface, true
}

// Enabled returns the names of every enabled interface.
func (m *Manager) Enabled() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for name, iface := range m.interfaces {
		if iface.Enabled {
			out = append(out, name)
		}
	}
	return out
}

// Send transmits payload from iface to dest (multicast 224.0.0.9:520 or a
// unicast neighbor), bounded by a 2s deadline (spec.md §5). A failure is
// returned to the caller and touches no other interface's socket; the
// engine calls Send for each interface in turn and moves on to the next
// interface after an error.
func (m *Manager) Send(ctx context.Context, ifaceName string, payload []byte, dest netip.AddrPort) error {
	m.mu.RLock()
	iface, ok := m.interfaces[ifaceName]
	m.mu.RUnlock()
	if !ok || iface.socket == nil {
		return errs.New(errs.KindNetSend, "unknown interface "+ifaceName)
	}

	deadline := time.Now().Add(sendDeadline)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := iface.socket.raw.SetWriteDeadline(deadline); err != nil {
		return errs.Wrap(errs.KindNetSend, "set write deadline", err)
	}

	n, err := iface.socket.raw.WriteToUDP(payload, &net.UDPAddr{IP: dest.Addr().AsSlice(), Port: int(dest.Port())})
	if err != nil {
		atomic.AddUint64(&iface.socket.packetsDropped, 1)
		return errs.Wrap(errs.KindNetSend, "write", err)
	}
	atomic.AddUint64(&iface.socket.bytesSent, uint64(n))
	atomic.AddUint64(&iface.socket.packetsSent, 1)
	return nil
}

// Packet is one received datagram plus the interface it arrived on.
type Packet struct {
	Iface   string
	Src     netip.AddrPort
	Payload []byte
}

// Recv blocks for the next datagram on the shared receive socket and
// resolves which interface it belongs to by matching the packet's
// destination/receiving interface index against the configured
// interfaces (spec.md §4.3).
func (m *Manager) Recv(ctx context.Context) (Packet, error) {
	buf := make([]byte, 1500)
	if deadline, ok := ctx.Deadline(); ok {
		_ = m.recvConn.SetReadDeadline(deadline)
	} else {
		_ = m.recvConn.SetReadDeadline(time.Time{})
	}

	n, cm, srcAddr, err := m.recvPC.ReadFrom(buf)
	if err != nil {
		return Packet{}, errs.Wrap(errs.KindNetRecv, "read", err)
	}
	udpAddr, ok := srcAddr.(*net.UDPAddr)
	if !ok {
		return Packet{}, errs.New(errs.KindNetRecv, "unexpected source address type")
	}
	srcIP, _ := netip.AddrFromSlice(udpAddr.IP.To4())
	src := netip.AddrPortFrom(srcIP, uint16(udpAddr.Port))

	payload := make([]byte, n)
	copy(payload, buf[:n])

	ifaceName := m.resolveInterface(cm, src.Addr())
	return Packet{Iface: ifaceName, Src: src, Payload: payload}, nil
}

func (m *Manager) resolveInterface(cm *ipv4.ControlMessage, src netip.Addr) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if cm != nil && cm.IfIndex != 0 {
		if netIface, err := net.InterfaceByIndex(cm.IfIndex); err == nil {
			for name, iface := range m.interfaces {
				if ifaceNameMatches(iface, netIface.Name) {
					return name
				}
			}
		}
	}
	// Fall back to subnet matching, the way the control message's
	// interface index degrades gracefully when unsupported (see
	// joshuafuller-beacon's UDPv4Transport.Receive, which falls back to
	// interfaceIndex=0 when control messages are unavailable).
	for name, iface := range m.interfaces {
		if iface.Subnet().Contains(src) {
			return name
		}
	}
	return ""
}

func ifaceNameMatches(iface *Interface, osIfaceName string) bool {
	netIface, err := interfaceByAddr(iface.Addr)
	if err != nil {
		return false
	}
	return netIface.Name == osIfaceName
}

// Close shuts down every socket the manager owns.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, iface := range m.interfaces {
		if iface.socket != nil {
			_ = iface.socket.raw.Close()
		}
	}
	return m.recvConn.Close()
}

func interfaceByAddr(addr netip.Addr) (*net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for i := range ifaces {
		addrs, err := ifaces[i].Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip, ok := netip.AddrFromSlice(ipNet.IP.To4())
			if !ok {
				continue
			}
			if ip == addr {
				return &ifaces[i], nil
			}
		}
	}
	return nil, errs.New(errs.KindNetBind, "no local interface has address "+addr.String())
}
