package scheduler

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestSanitizeDelay(t *testing.T) {
	const cycle = uint32(1000)
	const margin = int64(10)

	cases := []struct {
		delay        uint32
		halfTick     bool
		want         int64
	}{
		{0, true, 500}, {0, false, 1000},
		{500, true, 500}, {500, false, 1000},
		{1000, true, 500}, {1000, false, 1000},
		{1400, true, 500}, {1400, false, 1000},
		{1600, true, 1500}, {1600, false, 2000},
		{2000, true, 1500}, {2000, false, 2000},
		{2400, true, 1500}, {2400, false, 2000},
		{2600, true, 2500}, {2600, false, 3000},
		{3000, true, 2500}, {3000, false, 3000},
		{3400, true, 2500}, {3400, false, 3000},
	}
	for _, c := range cases {
		got := int64(SanitizeDelay(c.delay, cycle, c.halfTick))
		if d := got - c.want; d < -margin || d > margin {
			t.Errorf("SanitizeDelay(%d,%d,%v) = %d want ~%d", c.delay, cycle, c.halfTick, got, c.want)
		}
	}
}

func TestSanitizeDelayLargeDelay(t *testing.T) {
	got := SanitizeDelay(1_000_000, 1000, true)
	if d := int64(got) - 999500; d < -10 || d > 10 {
		t.Errorf("1s delay: got %d want ~999500", got)
	}
	got = SanitizeDelay(1_000_000, 1000, false)
	if got != 1_000_000 {
		t.Errorf("1s delay (no half tick): got %d want 1000000", got)
	}
}

func TestSanitizeDelayOverflow(t *testing.T) {
	if got := SanitizeDelay(0xFFFFFFFF, 1000, false); got != 1000 {
		t.Errorf("overflow delay (no half tick) = %d want 1000", got)
	}
	if got := SanitizeDelay(0xFFFFFFFF, 1000, true); got != 500 {
		t.Errorf("overflow delay (half tick) = %d want 500", got)
	}
}

// TestTwoHandlesS6 exercises spec.md scenario S6.
func TestTwoHandlesS6(t *testing.T) {
	s := New(8, zerolog.Nop())

	var aCalls, bCalls int
	const D, R = uint64(1000), uint64(2000)

	var hA, hB Handle
	hA, _ = s.Add(0, D, "a", func(arg any, now uint64) {
		aCalls++
		s.ResetHandle(hA)
	}, nil)
	hB, _ = s.Add(0, R+D, "b", func(arg any, now uint64) {
		bCalls++
		s.ResetHandle(hB)
	}, nil)

	s.HandlePeriodic(D + 1)
	if aCalls != 1 || bCalls != 0 {
		t.Fatalf("after D+e: aCalls=%d bCalls=%d, want 1,0", aCalls, bCalls)
	}

	s.HandlePeriodic(R + D + 1)
	if aCalls != 1 || bCalls != 1 {
		t.Fatalf("after R+D+e: aCalls=%d bCalls=%d, want 1,1", aCalls, bCalls)
	}
}

func TestRemoveIfRunningNoop(t *testing.T) {
	s := New(4, zerolog.Nop())
	s.RemoveIfRunning(Handle{}) // must not panic
}

func TestRemoveNonRunningDoesNotCrash(t *testing.T) {
	s := New(4, zerolog.Nop())
	s.Remove(Handle{}) // logs, must not panic
}

func TestFullTableReturnsErrFull(t *testing.T) {
	s := New(1, zerolog.Nop())
	if _, err := s.Add(0, 10, "one", func(any, uint64) {}, nil); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := s.Add(0, 10, "two", func(any, uint64) {}, nil); err == nil {
		t.Fatal("expected ErrFull on a full table")
	}
}

func TestGetValueSentinel(t *testing.T) {
	s := New(2, zerolog.Nop())
	h, _ := s.Add(100, 50, "x", func(any, uint64) {}, nil)
	if v, ok := s.GetValue(h); !ok || v != 150 {
		t.Fatalf("GetValue running = %d,%v want 150,true", v, ok)
	}
	s.Remove(h)
	if _, ok := s.GetValue(h); ok {
		t.Fatal("GetValue after remove should report not-running")
	}
}

func TestGenerationDisambiguatesReusedSlot(t *testing.T) {
	s := New(1, zerolog.Nop())
	h1, _ := s.Add(0, 10, "first", func(any, uint64) {}, nil)
	s.Remove(h1)
	h2, _ := s.Add(0, 10, "second", func(any, uint64) {}, nil)

	if s.IsRunning(h1) {
		t.Fatal("stale handle h1 must not read as running after slot reuse")
	}
	if !s.IsRunning(h2) {
		t.Fatal("h2 should be running")
	}
}
