//go:build linux

// Package palnet implements pkg/pal.PAL on Linux using an AF_PACKET raw
// socket for Ethernet and a regular UDP socket for RPC traffic. It is
// grounded on pkg/nspkt.Listener's pattern of a single mutex guarding the
// active socket plus a receive buffer, with retries for EINTR/EAGAIN left
// to the Go runtime's network poller.
package palnet

import (
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"

	"github.com/pnio-go/pnetd/pkg/pal"
)

// etherTypePROFINET is the EtherType this stack classifies as PROFINET RT.
const etherTypePROFINET = 0x8892

// dcpMulticast and lldpMulticast are the PROFINET DCP and LLDP multicast
// destination MACs. The installed BPF classifier does not compare
// destination MACs, so it does not reference them.
var (
	dcpMulticast  = [6]byte{0x01, 0x0E, 0xCF, 0x00, 0x00, 0x00}
	lldpMulticast = [6]byte{0x01, 0x80, 0xC2, 0x00, 0x00, 0x0E}
)

// Net implements pal.PAL over a raw AF_PACKET socket and a UDP socket.
type Net struct {
	mu sync.Mutex

	mac     [6]byte
	ifindex int

	rawFD int
	udp   *net.UDPConn

	rxEth  []pal.EtherFrame
	rxUDP  []pal.UDPDatagram
}

// Open binds a raw Ethernet socket to ifName (filtered by a BPF program
// admitting only EtherType 0x8892, whatever the destination MAC) and a UDP
// socket on udpAddr.
func Open(ifName string, udpAddr netip.AddrPort) (*Net, error) {
	iface, err := net.InterfaceByName(ifName)
	if err != nil {
		return nil, fmt.Errorf("palnet: lookup interface %q: %w", ifName, err)
	}
	var mac [6]byte
	copy(mac[:], iface.HardwareAddr)

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(etherTypePROFINET)))
	if err != nil {
		return nil, fmt.Errorf("palnet: open raw socket: %w", err)
	}

	prog, err := classifierProgram(mac)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.SetsockoptSockFprog(fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, prog); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("palnet: attach classifier filter: %w", err)
	}

	sll := unix.SockaddrLinklayer{
		Protocol: htons(etherTypePROFINET),
		Ifindex:  iface.Index,
	}
	if err := unix.Bind(fd, &sll); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("palnet: bind raw socket: %w", err)
	}

	udp, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(udpAddr))
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("palnet: open udp socket: %w", err)
	}

	return &Net{
		mac:     mac,
		ifindex: iface.Index,
		rawFD:   fd,
		udp:     udp,
	}, nil
}

// classifierProgram builds a BPF filter (via golang.org/x/net/bpf) that
// admits frames with EtherType 0x8892, rejecting everything else before
// userspace copy. The destination MAC is not checked; mac is unused.
func classifierProgram(mac [6]byte) (*unix.SockFprog, error) {
	// EtherType is at offset 12. We accept if EtherType matches.
	raw, err := bpf.Assemble([]bpf.Instruction{
		bpf.LoadAbsolute{Off: 12, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: etherTypePROFINET, SkipFalse: 1},
		bpf.RetConstant{Val: 0xFFFF}, // accept, length-check handled by caller
		bpf.RetConstant{Val: 0},
	})
	if err != nil {
		return nil, fmt.Errorf("palnet: assemble bpf: %w", err)
	}

	insns := make([]unix.SockFilter, len(raw))
	for i, r := range raw {
		insns[i] = unix.SockFilter{Code: r.Op, Jt: r.Jt, Jf: r.Jf, K: r.K}
	}
	return &unix.SockFprog{
		Len:    uint16(len(insns)),
		Filter: &insns[0],
	}, nil
}

func htons(v uint16) uint16 {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return binary.LittleEndian.Uint16(b[:])
}

func (n *Net) MAC() [6]byte { return n.mac }

func (n *Net) NowMicros() uint64 {
	return uint64(time.Now().UnixMicro())
}

func (n *Net) SendEthernet(frame pal.EtherFrame) error {
	buf := make([]byte, 14+len(frame.Payload))
	copy(buf[0:6], frame.Dst[:])
	copy(buf[6:12], frame.Src[:])
	binary.BigEndian.PutUint16(buf[12:14], frame.EtherType)
	copy(buf[14:], frame.Payload)

	addr := unix.SockaddrLinklayer{
		Protocol: htons(frame.EtherType),
		Ifindex:  n.ifindex,
		Halen:    6,
	}
	copy(addr.Addr[:6], frame.Dst[:])
	return unix.Sendto(n.rawFD, buf, 0, &addr)
}

// PollEthernet performs one non-blocking read of the raw socket and, if a
// frame is waiting, appends it to the receive queue under the
// PAL's mutex. Intended to be called from the platform's receive thread;
// RecvEthernet is what the device's cooperative loop drains.
func (n *Net) PollEthernet() error {
	buf := make([]byte, 1600)
	nn, _, err := unix.Recvfrom(n.rawFD, buf, unix.MSG_DONTWAIT)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return nil
		}
		return err
	}
	if nn < 14 {
		return nil
	}
	frame := pal.EtherFrame{
		EtherType: binary.BigEndian.Uint16(buf[12:14]),
		Payload:   append([]byte(nil), buf[14:nn]...),
	}
	copy(frame.Dst[:], buf[0:6])
	copy(frame.Src[:], buf[6:12])

	n.mu.Lock()
	n.rxEth = append(n.rxEth, frame)
	n.mu.Unlock()
	return nil
}

func (n *Net) RecvEthernet() (pal.EtherFrame, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.rxEth) == 0 {
		return pal.EtherFrame{}, false
	}
	f := n.rxEth[0]
	n.rxEth = n.rxEth[1:]
	return f, true
}

func (n *Net) SendUDP(dgram pal.UDPDatagram) error {
	_, err := n.udp.WriteToUDPAddrPort(dgram.Payload, dgram.Dst)
	return err
}

// PollUDP performs one non-blocking read of the UDP socket.
func (n *Net) PollUDP() error {
	buf := make([]byte, 1500)
	n.udp.SetReadDeadline(time.Now())
	nn, addr, err := n.udp.ReadFromUDPAddrPort(buf)
	if err != nil {
		if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
			return nil
		}
		return err
	}
	dgram := pal.UDPDatagram{
		Src:     addr,
		Payload: append([]byte(nil), buf[:nn]...),
	}
	n.mu.Lock()
	n.rxUDP = append(n.rxUDP, dgram)
	n.mu.Unlock()
	return nil
}

func (n *Net) RecvUDP() (pal.UDPDatagram, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.rxUDP) == 0 {
		return pal.UDPDatagram{}, false
	}
	d := n.rxUDP[0]
	n.rxUDP = n.rxUDP[1:]
	return d, true
}

func (n *Net) Close() error {
	unix.Close(n.rawFD)
	return n.udp.Close()
}
