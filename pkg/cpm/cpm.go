// Package cpm is the cyclic data consumer: it windows the received cycle
// counter against the last accepted value to reject replays and
// out-of-order frames, counts repeated rejects, and aborts the AR through
// a watchdog once the configured number of consecutive rejects is
// exceeded. Grounded on pkg/a2s's explicit modular-arithmetic-over-a-fixed-
// width-wire-integer validation style, unit tested the same way a2s_test.go
// is: literal hex/numeric vectors rather than property generators.
package cpm

const (
	cycleWindow  = 0x10000
	acceptWindow = 0xF000
)

// CheckCycle reports whether cRx is an acceptable next cycle counter given
// the last accepted value cPrev: accepted iff (cRx-cPrev) mod 0x10000 is in
// [1, 0xF000], so the forbidden zone is the 0x1000 values ending at cPrev
// itself.
func CheckCycle(cPrev, cRx uint16) bool {
	delta := uint32(cRx) - uint32(cPrev)
	delta &= cycleWindow - 1
	return delta >= 1 && delta <= acceptWindow
}

// Consumer tracks one subslot's incoming cyclic data stream.
type Consumer struct {
	WatchdogLimit int // consecutive rejects before the watchdog fires

	prev          uint16
	started       bool
	consecutiveRejects int
	totalRejects  int
}

// NewConsumer creates a Consumer with the given watchdog limit (number of
// consecutive rejected frames before Validate reports a watchdog timeout).
func NewConsumer(watchdogLimit int) *Consumer {
	return &Consumer{WatchdogLimit: watchdogLimit}
}

// Result is the outcome of validating one received frame.
type Result int

const (
	ResultAccepted Result = iota
	ResultRejected
	ResultWatchdogTimeout
)

// Validate checks cRx against the consumer's last accepted counter. The
// very first frame received after Reset is always accepted, establishing
// the initial cPrev.
func (c *Consumer) Validate(cRx uint16) Result {
	if !c.started {
		c.started = true
		c.prev = cRx
		c.consecutiveRejects = 0
		return ResultAccepted
	}

	if CheckCycle(c.prev, cRx) {
		c.prev = cRx
		c.consecutiveRejects = 0
		return ResultAccepted
	}

	c.consecutiveRejects++
	c.totalRejects++
	if c.WatchdogLimit > 0 && c.consecutiveRejects >= c.WatchdogLimit {
		return ResultWatchdogTimeout
	}
	return ResultRejected
}

// TotalRejects returns the lifetime count of rejected frames, for the
// diagnostic counter spec.md's §4.9 requires.
func (c *Consumer) TotalRejects() int { return c.totalRejects }

// Reset clears the consumer's state, e.g. on a new AR: the next Validate
// call re-establishes cPrev unconditionally.
func (c *Consumer) Reset() {
	c.started = false
	c.prev = 0
	c.consecutiveRejects = 0
}
