package cpm

import "testing"

func TestCheckCycle(t *testing.T) {
	cases := []struct {
		prev, rx uint16
		want     bool
	}{
		{1, 0xFFFF, false},
		{1, 0, false},
		{1, 1, false},
		{1, 2, true},
		{1, 3, true},

		{0x4000, 0x0000, true},
		{0x4000, 0x0001, true},
		{0x4000, 0x2FFE, true},
		{0x4000, 0x2FFF, true},
		{0x4000, 0x3000, true},
		{0x4000, 0x3001, false},
		{0x4000, 0x3002, false},
		{0x4000, 0x3FFD, false},
		{0x4000, 0x3FFE, false},
		{0x4000, 0x3FFF, false},
		{0x4000, 0x4000, false},
		{0x4000, 0x4001, true},
		{0x4000, 0x4002, true},
		{0x4000, 0xFFFF, true},

		{0xFFFF, 0xEFFE, true},
		{0xFFFF, 0xEFFF, true},
		{0xFFFF, 0xF000, false},
		{0xFFFF, 0xF001, false},
		{0xFFFF, 0xFFFE, false},
		{0xFFFF, 0xFFFF, false},
		{0xFFFF, 0x0000, true},
		{0xFFFF, 0x0001, true},
		{0xFFFF, 0x0002, true},

		{0x0000, 0xEFFE, true},
		{0x0000, 0xEFFF, true},
		{0x0000, 0xF000, true},
		{0x0000, 0xF001, false},
		{0x0000, 0xFFFE, false},
		{0x0000, 0xFFFF, false},
		{0x0000, 0x0000, false},
		{0x0000, 0x0001, true},
		{0x0000, 0x0002, true},

		{0x0FFE, 0xFFFE, true},
		{0x0FFE, 0xFFFF, false},
		{0x0FFE, 0x0000, false},
		{0x0FFE, 0x0001, false},
		{0x0FFE, 0x0FFE, false},
		{0x0FFE, 0x0FFF, true},
		{0x0FFE, 0x1000, true},
		{0x0FFE, 0x1001, true},

		{0x0FFF, 0xFFFE, true},
		{0x0FFF, 0xFFFF, true},
		{0x0FFF, 0x0000, false},
		{0x0FFF, 0x0001, false},
		{0x0FFF, 0x0FFE, false},
		{0x0FFF, 0x0FFF, false},
		{0x0FFF, 0x1000, true},
		{0x0FFF, 0x1001, true},

		{0x0010, 0xF00F, true},
		{0x0010, 0xF010, true},
		{0x0010, 0xF011, false},
		{0x0010, 0xFFFE, false},
		{0x0010, 0xFFFF, false},
		{0x0010, 0x0000, false},
		{0x0010, 0x0001, false},
		{0x0010, 0x000E, false},
		{0x0010, 0x000F, false},
		{0x0010, 0x0010, false},
		{0x0010, 0x0011, true},
		{0x0010, 0x0012, true},
	}
	for _, c := range cases {
		if got := CheckCycle(c.prev, c.rx); got != c.want {
			t.Errorf("CheckCycle(%#04x, %#04x) = %v, want %v", c.prev, c.rx, got, c.want)
		}
	}
}

func TestConsumerFirstFrameAlwaysAccepted(t *testing.T) {
	c := NewConsumer(3)
	if got := c.Validate(0xABCD); got != ResultAccepted {
		t.Fatalf("first frame = %v, want accepted", got)
	}
}

func TestConsumerWatchdogFiresAfterConsecutiveRejects(t *testing.T) {
	c := NewConsumer(3)
	c.Validate(0x1000) // establishes prev

	r1 := c.Validate(0x1001) // accepted: advances prev to 0x1001
	_ = r1

	// Force three consecutive rejects using a delta squarely in the forbidden zone.
	rejectRx := uint16(0x1000 - 0x800)
	var last Result
	for i := 0; i < 3; i++ {
		last = c.Validate(rejectRx)
	}
	if last != ResultWatchdogTimeout {
		t.Fatalf("after 3 consecutive rejects with limit 3, got %v, want watchdog timeout", last)
	}
}

func TestConsumerAcceptResetsRejectStreak(t *testing.T) {
	c := NewConsumer(2)
	c.Validate(0x1000)
	rejectRx := uint16(0x1000 - 0x800)
	if got := c.Validate(rejectRx); got != ResultRejected {
		t.Fatalf("expected single reject, got %v", got)
	}
	if got := c.Validate(0x1001); got != ResultAccepted {
		t.Fatalf("expected accept to break the streak, got %v", got)
	}
	if got := c.Validate(rejectRx); got != ResultRejected {
		t.Fatalf("streak should have reset, expected reject not watchdog, got %v", got)
	}
}

func TestConsumerReset(t *testing.T) {
	c := NewConsumer(3)
	c.Validate(0x1000)
	c.Reset()
	if got := c.Validate(0xBEEF); got != ResultAccepted {
		t.Fatalf("first frame after Reset should always accept, got %v", got)
	}
}
