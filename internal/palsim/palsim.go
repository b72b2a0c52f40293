// Package palsim is an in-memory pal.PAL used by tests and by the end-to-end
// scenarios in spec.md §8: it lets a test drive frames in via Deliver*
// and inspect everything sent via Sent*, without any real sockets. Its
// mutex-guarded single-slot-style queues mirror pkg/nspkt.Listener's
// locking discipline (lock, mutate, unlock, then act on a local copy).
package palsim

import (
	"net/netip"
	"sync"

	"github.com/pnio-go/pnetd/pkg/pal"
)

// Sim is a simulated PAL.
type Sim struct {
	mu sync.Mutex

	mac     [6]byte
	now     uint64
	rxEth   []pal.EtherFrame
	rxUDP   []pal.UDPDatagram
	txEth   []pal.EtherFrame
	txUDP   []pal.UDPDatagram
}

// New creates a Sim with the given device MAC, clock starting at 0.
func New(mac [6]byte) *Sim {
	return &Sim{mac: mac}
}

func (s *Sim) MAC() [6]byte { return s.mac }

func (s *Sim) NowMicros() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Advance moves the simulated clock forward by deltaUs microseconds.
func (s *Sim) Advance(deltaUs uint64) {
	s.mu.Lock()
	s.now += deltaUs
	s.mu.Unlock()
}

// SetNow pins the simulated clock to a specific value.
func (s *Sim) SetNow(us uint64) {
	s.mu.Lock()
	s.now = us
	s.mu.Unlock()
}

func (s *Sim) SendEthernet(frame pal.EtherFrame) error {
	s.mu.Lock()
	s.txEth = append(s.txEth, frame)
	s.mu.Unlock()
	return nil
}

func (s *Sim) RecvEthernet() (pal.EtherFrame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rxEth) == 0 {
		return pal.EtherFrame{}, false
	}
	f := s.rxEth[0]
	s.rxEth = s.rxEth[1:]
	return f, true
}

func (s *Sim) SendUDP(dgram pal.UDPDatagram) error {
	s.mu.Lock()
	s.txUDP = append(s.txUDP, dgram)
	s.mu.Unlock()
	return nil
}

func (s *Sim) RecvUDP() (pal.UDPDatagram, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rxUDP) == 0 {
		return pal.UDPDatagram{}, false
	}
	d := s.rxUDP[0]
	s.rxUDP = s.rxUDP[1:]
	return d, true
}

// DeliverEthernet queues a frame as if received from the wire.
func (s *Sim) DeliverEthernet(frame pal.EtherFrame) {
	s.mu.Lock()
	s.rxEth = append(s.rxEth, frame)
	s.mu.Unlock()
}

// DeliverUDP queues a datagram as if received from the wire.
func (s *Sim) DeliverUDP(src netip.AddrPort, payload []byte) {
	s.mu.Lock()
	s.rxUDP = append(s.rxUDP, pal.UDPDatagram{Src: src, Payload: payload})
	s.mu.Unlock()
}

// SentEthernetCount returns the number of Ethernet frames sent so far.
func (s *Sim) SentEthernetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.txEth)
}

// SentEthernet returns a copy of every Ethernet frame sent so far.
func (s *Sim) SentEthernet() []pal.EtherFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pal.EtherFrame(nil), s.txEth...)
}

// SentUDP returns a copy of every UDP datagram sent so far.
func (s *Sim) SentUDP() []pal.UDPDatagram {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]pal.UDPDatagram(nil), s.txUDP...)
}

var _ pal.PAL = (*Sim)(nil)
