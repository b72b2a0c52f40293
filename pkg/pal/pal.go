// Package pal defines the platform abstraction layer contract: the only
// place the device stack touches real Ethernet/UDP sockets, OS timers, and
// mutexes. Everything above this package is written against the PAL
// interface so it can run against palsim in tests. Out of scope (spec.md
// §1): the wire-level detail of the adapter implementation itself, beyond
// the interface it must satisfy.
package pal

import (
	"net/netip"
	"time"
)

// EtherFrame is one received or to-be-sent raw Ethernet frame.
type EtherFrame struct {
	Dst       [6]byte
	Src       [6]byte
	EtherType uint16
	Payload   []byte
}

// UDPDatagram is one received or to-be-sent UDP datagram.
type UDPDatagram struct {
	Src     netip.AddrPort
	Dst     netip.AddrPort
	Payload []byte
}

// PAL is the platform abstraction layer the device stack is written
// against. A real implementation binds raw Ethernet and UDP sockets; tests
// use an in-memory simulation (internal/palsim).
type PAL interface {
	// MAC returns the interface's configured MAC address.
	MAC() [6]byte

	// SendEthernet transmits a raw Ethernet frame. EtherType 0x8892 frames
	// are PROFINET RT; anything else is the caller's concern (e.g. LLDP
	// uses 0x88CC).
	SendEthernet(frame EtherFrame) error

	// RecvEthernet returns the next buffered received Ethernet frame, or
	// (EtherFrame{}, false) if none is pending. The PAL copies frames
	// delivered by the OS/driver into a receive buffer under its own
	// mutex (spec.md §5); RecvEthernet drains that buffer, never blocking.
	RecvEthernet() (EtherFrame, bool)

	// SendUDP transmits a UDP datagram (used for DCE/RPC CMDEV traffic).
	SendUDP(dgram UDPDatagram) error

	// RecvUDP returns the next buffered received UDP datagram, or
	// (UDPDatagram{}, false) if none is pending.
	RecvUDP() (UDPDatagram, bool)

	// NowMicros returns the current time, microseconds, on the clock the
	// scheduler and CMDEV/CPM watchdogs are driven from.
	NowMicros() uint64
}

// Clock abstracts time.Now for components that need wall-clock semantics
// (e.g. converting NowMicros() to a time.Time for logging) without forcing
// every caller to depend on the "real" PAL.
type Clock interface {
	Now() time.Time
}
