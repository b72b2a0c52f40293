// Package scheduler implements the device's single-threaded cooperative
// timer wheel: a fixed-capacity table of deferred callbacks identified by
// stable handles, driven forward by repeated calls to HandlePeriodic. The
// due-time ordering is grounded on the doublezero liveness package's
// EventQueue (Push/Pop/PopIfDue), adapted from a container/heap to this
// package's fixed-capacity array of handles, since callers hold a Handle
// across calls and the backing slot must not move.
package scheduler

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"
)

// Callback is invoked when a scheduled job's due time has arrived. now is
// the current time in microseconds, the same clock HandlePeriodic was
// called with.
type Callback func(arg any, now uint64)

// Handle identifies a (possibly reused) slot in the scheduler table. The
// zero Handle is never valid (IsRunning reports false for it).
type Handle struct {
	slot int
	gen  uint32
}

func (h Handle) String() string {
	return fmt.Sprintf("handle(slot=%d,gen=%d)", h.slot, h.gen)
}

type entry struct {
	name    string
	running bool
	gen     uint32
	due     uint64
	cb      Callback
	arg     any
}

// Scheduler is a fixed-capacity cooperative timer wheel.
type Scheduler struct {
	log     zerolog.Logger
	entries []entry
	nextGen uint32
}

// New creates a Scheduler with room for capacity concurrently running jobs.
func New(capacity int, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		entries: make([]entry, capacity),
		log:     log,
	}
}

// ErrFull is returned by Add when every slot is occupied.
type ErrFull struct{}

func (ErrFull) Error() string { return "scheduler: table full" }

func (s *Scheduler) freeSlot() (int, bool) {
	for i := range s.entries {
		if !s.entries[i].running {
			return i, true
		}
	}
	return 0, false
}

// Add allocates a slot for a new job due delayUs microseconds from now and
// returns its Handle.
func (s *Scheduler) Add(now uint64, delayUs uint64, name string, cb Callback, arg any) (Handle, error) {
	slot, ok := s.freeSlot()
	if !ok {
		return Handle{}, ErrFull{}
	}
	return s.place(slot, now, delayUs, name, cb, arg), nil
}

func (s *Scheduler) place(slot int, now, delayUs uint64, name string, cb Callback, arg any) Handle {
	s.nextGen++
	gen := s.nextGen
	s.entries[slot] = entry{
		name:    name,
		running: true,
		gen:     gen,
		due:     now + delayUs,
		cb:      cb,
		arg:     arg,
	}
	return Handle{slot: slot, gen: gen}
}

// Restart reschedules h if it identifies a currently-running job, or
// allocates a new one (returning an updated Handle) otherwise.
func (s *Scheduler) Restart(h Handle, now uint64, delayUs uint64, name string, cb Callback, arg any) (Handle, error) {
	if s.ownsRunning(h) {
		return s.place(h.slot, now, delayUs, name, cb, arg), nil
	}
	return s.Add(now, delayUs, name, cb, arg)
}

func (s *Scheduler) ownsRunning(h Handle) bool {
	if h.slot < 0 || h.slot >= len(s.entries) {
		return false
	}
	e := &s.entries[h.slot]
	return e.running && e.gen == h.gen
}

// Remove cancels h, logging if it did not identify a running job (mirrors
// pf_scheduler_remove's "log if not running" contract).
func (s *Scheduler) Remove(h Handle) {
	if !s.ownsRunning(h) {
		s.log.Warn().Stringer("handle", h).Msg("scheduler: remove called on non-running handle")
		return
	}
	s.entries[h.slot] = entry{}
}

// RemoveIfRunning cancels h silently if it identifies a running job; a
// no-op otherwise.
func (s *Scheduler) RemoveIfRunning(h Handle) {
	if s.ownsRunning(h) {
		s.entries[h.slot] = entry{}
	}
}

// ResetHandle is called by a callback, before it reschedules itself via Add,
// to mark its own slot free. Safe to call on an already-free handle.
func (s *Scheduler) ResetHandle(h Handle) {
	s.RemoveIfRunning(h)
}

// IsRunning reports whether h identifies a currently-scheduled job.
func (s *Scheduler) IsRunning(h Handle) bool {
	return s.ownsRunning(h)
}

// GetName returns the job's name and true, or ("", false) if not running.
func (s *Scheduler) GetName(h Handle) (string, bool) {
	if !s.ownsRunning(h) {
		return "", false
	}
	return s.entries[h.slot].name, true
}

// GetValue returns the job's due time and true, or (0, false) if not
// running — the Go equivalent of the C API's UINT32_MAX sentinel, chosen
// because Go callers can test the bool instead of a magic value (see
// DESIGN.md Open Questions).
func (s *Scheduler) GetValue(h Handle) (uint64, bool) {
	if !s.ownsRunning(h) {
		return 0, false
	}
	return s.entries[h.slot].due, true
}

// dueJob pairs a slot index with its entry for stable sort ordering.
type dueJob struct {
	slot int
	e    entry
}

// HandlePeriodic fires every job whose due time has arrived, in due-time
// order (ties broken by slot index, i.e. insertion/allocation order, the
// same tie-break idiom as doublezero's sequence-numbered heap).
func (s *Scheduler) HandlePeriodic(now uint64) {
	var due []dueJob
	for i := range s.entries {
		e := s.entries[i]
		if e.running && e.due <= now {
			due = append(due, dueJob{slot: i, e: e})
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].e.due < due[j].e.due
	})
	for _, d := range due {
		cur := &s.entries[d.slot]
		if !cur.running || cur.gen != d.e.gen {
			continue // already rescheduled/cancelled by an earlier callback this tick
		}
		cb := cur.cb
		arg := cur.arg
		cb(arg, now)
	}
}

// SanitizeDelay clamps delayUs to the nearest multiple of cycleLenUs (ties
// rounding to the previous multiple), optionally shifted back by half a
// cycle so the callback fires mid-cycle rather than on a cycle boundary.
// Zero, or delays spanning more than 65535 cycles, collapse to half a cycle
// with scheduleHalfTick and to one full cycle without (see spec.md §4.3
// and §9).
func SanitizeDelay(delayUs, cycleLenUs uint32, scheduleHalfTick bool) uint32 {
	if cycleLenUs == 0 {
		return 0
	}

	const maxCycles = 65535
	if delayUs == 0 || uint64(delayUs) > uint64(maxCycles)*uint64(cycleLenUs) {
		if scheduleHalfTick {
			return cycleLenUs / 2
		}
		return cycleLenUs
	}

	n := delayUs / cycleLenUs
	rem := delayUs % cycleLenUs
	half := cycleLenUs / 2
	if rem > half {
		n++
	}
	if n == 0 {
		n = 1
	}

	if scheduleHalfTick {
		return n*cycleLenUs - cycleLenUs/2
	}
	return n * cycleLenUs
}
