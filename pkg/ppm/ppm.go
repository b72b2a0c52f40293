// Package ppm is the cyclic data producer: it advances the 16-bit cycle
// counter on the schedule the AR negotiated and builds the outgoing frame,
// substituting a stale-data marker whenever the local provider status is
// not GOOD. Grounded on pkg/nspkt.Listener.send's "build frame, hand to
// PAL, count it" shape — the counter arithmetic itself has no teacher
// analogue and follows original_source/pf_ppm.c's tested formulas.
package ppm

import "github.com/pnio-go/pnetd/internal/pnptypes"

const cycleWindow = 0x10000

// CalculateNextCyclecounter returns the next cycle counter value strictly
// greater than prev, rounded up to the next multiple of the transmission
// period (cycleBase32 * reduction, in 1/32ms ticks), wrapping at 0x10000.
func CalculateNextCyclecounter(prev uint32, cycleBase32, reduction uint32) uint16 {
	period := cycleBase32 * reduction
	if period == 0 {
		period = 1
	}
	n := (prev + 1 + period - 1) / period
	return uint16((n * period) % cycleWindow)
}

// CalculateCyclecounter returns the cycle counter value corresponding to
// wall-clock time tUs, quantized to the transmission period
// (cycleBase32*reduction 1/32ms ticks) and expressed in 1/32ms ticks.
func CalculateCyclecounter(tUs uint64, cycleBase32, reduction uint32) uint16 {
	period := uint64(cycleBase32) * uint64(reduction)
	if period == 0 {
		return 0
	}
	n := (tUs * 32) / (period * 1000)
	return uint16((n * period) % cycleWindow)
}

// Frame is one cyclic data frame ready to hand to the PAL.
type Frame struct {
	CycleCounter uint16
	Data         []byte
	IOPS         pnptypes.IOXS
	DataValid    bool // false means "stale data marker", data unchanged from last good frame
}

// Producer drives the cyclic counter for a single submodule's output data
// and renders the frame the scheduler's tick callback hands to the PAL.
type Producer struct {
	CycleBase32 uint32
	Reduction   uint32

	counter  uint32
	lastGood []byte
}

// NewProducer creates a Producer starting its cycle counter at 0.
func NewProducer(cycleBase32, reduction uint32) *Producer {
	return &Producer{CycleBase32: cycleBase32, Reduction: reduction}
}

// Advance moves the counter to the next scheduled value and builds the
// frame to transmit. When iops is not GOOD the frame carries the last
// known-good data (or nil, if none yet) with DataValid=false, per spec.md
// 4.8's "continues with stale data marker" requirement.
func (p *Producer) Advance(data []byte, iops pnptypes.IOXS) Frame {
	p.counter = uint32(CalculateNextCyclecounter(p.counter, p.CycleBase32, p.Reduction))

	if iops == pnptypes.IOXSGood {
		p.lastGood = append(p.lastGood[:0], data...)
		return Frame{CycleCounter: uint16(p.counter), Data: p.lastGood, IOPS: iops, DataValid: true}
	}
	return Frame{CycleCounter: uint16(p.counter), Data: p.lastGood, IOPS: iops, DataValid: false}
}

// Reset reinitializes the counter to 0, e.g. on a new AR.
func (p *Producer) Reset() {
	p.counter = 0
	p.lastGood = nil
}
