package cmdev

import (
	"testing"

	"github.com/pnio-go/pnetd/internal/pnptypes"
)

func TestCalcDirection(t *testing.T) {
	cases := []struct {
		module ModuleDir
		sub    pnptypes.SubmoduleDirection
		status StatusType
		want   pnptypes.Direction
		ok     bool
	}{
		{ModuleNoIO, pnptypes.SubDirInput, StatusIOPS, pnptypes.DirectionInput, true},
		{ModuleNoIO, pnptypes.SubDirOutput, StatusIOCS, pnptypes.DirectionInput, true},
		{ModuleNoIO, pnptypes.SubDirOutput, StatusIOPS, 0, false},
		{ModuleInput, pnptypes.SubDirInput, StatusIOPS, pnptypes.DirectionInput, true},
		{ModuleOutput, pnptypes.SubDirInput, StatusIOCS, pnptypes.DirectionOutput, true},
		{ModuleOutput, pnptypes.SubDirOutput, StatusIOPS, pnptypes.DirectionOutput, true},
		{ModuleOutput, pnptypes.SubDirInput, StatusIOPS, 0, false},
		{ModuleIO, pnptypes.SubDirInput, StatusIOCS, pnptypes.DirectionInput, true},
		{ModuleIO, pnptypes.SubDirOutput, StatusIOCS, pnptypes.DirectionInput, true},
		{ModuleIO, pnptypes.SubDirInput, StatusIOPS, pnptypes.DirectionOutput, true},
		{ModuleIO, pnptypes.SubDirOutput, StatusIOPS, pnptypes.DirectionOutput, true},
	}
	for _, c := range cases {
		got, err := CalcDirection(c.module, c.sub, c.status)
		if c.ok && err != nil {
			t.Errorf("CalcDirection(%v,%v,%v) unexpected error: %v", c.module, c.sub, c.status, err)
			continue
		}
		if !c.ok && err == nil {
			t.Errorf("CalcDirection(%v,%v,%v) expected error, got %v", c.module, c.sub, c.status, got)
			continue
		}
		if c.ok && got != c.want {
			t.Errorf("CalcDirection(%v,%v,%v) = %v, want %v", c.module, c.sub, c.status, got, c.want)
		}
	}
}

func TestCheckZero(t *testing.T) {
	if !CheckZero(nil) {
		t.Error("CheckZero(nil) = false, want true")
	}
	if !CheckZero([]byte{0, 0, 0}) {
		t.Error("CheckZero(all zero) = false, want true")
	}
	if CheckZero([]byte{0, 1, 0}) {
		t.Error("CheckZero(non-zero) = true, want false")
	}
}

func TestCheckVString(t *testing.T) {
	if CheckVString(nil) {
		t.Error("CheckVString(empty) = true, want false")
	}
	if !CheckVString([]byte("hello")) {
		t.Error("CheckVString(hello) = false, want true")
	}
	if CheckVString([]byte{0x1F}) {
		t.Error("CheckVString(0x1F) = true, want false")
	}
	if CheckVString([]byte{0x7F}) {
		t.Error("CheckVString(0x7F) = true, want false")
	}
	if !CheckVString([]byte{0x20, 0x7E}) {
		t.Error("CheckVString(boundary bytes) = false, want true")
	}
}

func TestNoStraddle(t *testing.T) {
	if !NoStraddle(0, 0, 100, 10) {
		t.Error("zero-length region should be vacuously disjoint")
	}
	if !NoStraddle(0, 10, 10, 10) {
		t.Error("adjacent regions should be disjoint")
	}
	if NoStraddle(0, 11, 10, 10) {
		t.Error("overlapping regions should not be disjoint")
	}
	if NoStraddle(10, 10, 0, 10) != NoStraddle(0, 10, 10, 10) {
		t.Error("NoStraddle should be symmetric")
	}
}

func TestARLifecycleHappyPath(t *testing.T) {
	var events []string
	cb := Callbacks{
		OnStartup: func(arep uint32) { events = append(events, "STARTUP") },
		OnPrmEnd:  func(arep uint32) { events = append(events, "PRMEND") },
		OnApplRdy: func(arep uint32) { events = append(events, "APPLRDY") },
		OnData:    func(arep uint32) { events = append(events, "DATA") },
		OnAbort:   func(arep uint32, reason pnptypes.Status) { events = append(events, "ABORT") },
	}

	ar, err := New(1, pnptypes.ARTypeSingle, []PendingSubmodule{{Slot: 0, Subslot: pnptypes.InterfaceSubslot}}, cb)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if ar.State() != StateWCnf {
		t.Fatalf("state after New = %v, want W_CNF", ar.State())
	}

	if err := ar.PrmEnd(); err == nil {
		t.Fatal("PrmEnd should fail before submodules are plugged")
	}
	ar.PlugSubmodule(0, pnptypes.InterfaceSubslot)
	if err := ar.PrmEnd(); err != nil {
		t.Fatalf("PrmEnd: %v", err)
	}
	if ar.State() != StateWApplRdy {
		t.Fatalf("state after PrmEnd = %v, want W_APPLRDY", ar.State())
	}

	if err := ar.ApplicationReady(); err != nil {
		t.Fatalf("ApplicationReady: %v", err)
	}
	if err := ar.ApplRdyConfirm(); err != nil {
		t.Fatalf("ApplRdyConfirm: %v", err)
	}
	if ar.State() != StateData {
		t.Fatalf("state after ApplRdyConfirm = %v, want DATA", ar.State())
	}

	ar.DataReceived()
	ar.Abort(pnptypes.New(pnptypes.ErrClassCMDEV, 0, "release"))
	if ar.State() != StateAbort {
		t.Fatalf("state after Abort = %v, want ABORT", ar.State())
	}

	want := []string{"STARTUP", "PRMEND", "APPLRDY", "DATA", "ABORT"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v", events, want)
		}
	}
}

func TestARAbortIsIdempotent(t *testing.T) {
	calls := 0
	cb := Callbacks{OnAbort: func(arep uint32, reason pnptypes.Status) { calls++ }}
	ar, err := New(1, pnptypes.ARTypeSingle, nil, cb)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ar.Abort(pnptypes.New(pnptypes.ErrClassCMDEV, 1, ""))
	ar.Abort(pnptypes.New(pnptypes.ErrClassCMDEV, 1, ""))
	if calls != 1 {
		t.Fatalf("OnAbort called %d times, want 1", calls)
	}
}

func TestNewRejectsUnsupportedARType(t *testing.T) {
	if _, err := New(1, pnptypes.ARTypeSupervisor, nil, Callbacks{}); err == nil {
		t.Fatal("New with AR_TYPE_SUPERVISOR should fail")
	}
}
