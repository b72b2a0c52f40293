// Package cmdev implements the Application Relation lifecycle state
// machine: connect/parameter-end/application-ready/data handshake plus the
// small pile of frame-validation primitives (direction derivation,
// zero-buffer check, visible-string check, region overlap check) the
// handshake and the record-access path lean on. The explicit state enum
// plus transition table plus synchronous post-mutation callback mirrors
// pkg/origin.AuthMgr's token lifecycle (acquire/refresh/expire firing
// callbacks only once the state has actually changed); the transition
// table and callback ordering itself follows original_source/pf_cmdev.c,
// which spec.md's happy-path prose leaves only partially specified.
package cmdev

import (
	"fmt"

	"github.com/pnio-go/pnetd/internal/pnptypes"
)

// State is one state of the AR lifecycle.
type State int

const (
	StatePowerOn State = iota
	StateWCnf
	StateWPrmEnd
	StateWApplRdy
	StateWApplRdyCnf
	StateData
	StateAbort
)

func (s State) String() string {
	switch s {
	case StatePowerOn:
		return "POWER_ON"
	case StateWCnf:
		return "W_CNF"
	case StateWPrmEnd:
		return "W_PRMEND"
	case StateWApplRdy:
		return "W_APPLRDY"
	case StateWApplRdyCnf:
		return "W_APPLRDY_CNF"
	case StateData:
		return "DATA"
	case StateAbort:
		return "ABORT"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ModuleDir is the direction a slot's expected module was configured with.
type ModuleDir int

const (
	ModuleNoIO ModuleDir = iota
	ModuleInput
	ModuleOutput
	ModuleIO
)

// StatusType distinguishes an IOPS from an IOCS derivation request.
type StatusType int

const (
	StatusIOPS StatusType = iota
	StatusIOCS
)

// ErrBadDirection is returned by CalcDirection for a (moduleDir, subDir,
// statusType) combination the table has no entry for.
var ErrBadDirection = fmt.Errorf("cmdev: no direction derivable for this combination")

// CalcDirection derives the data direction for one IOCS/IOPS slot,
// following spec.md's table: module NO_IO mirrors module INPUT (only
// IOPS(INPUT)->INPUT and IOCS(OUTPUT)->INPUT are defined); module OUTPUT
// only defines IOCS(INPUT)->OUTPUT and IOPS(OUTPUT)->OUTPUT; module IO
// allows all four combinations, with IOCS always yielding INPUT direction
// and IOPS always yielding OUTPUT direction.
func CalcDirection(moduleDir ModuleDir, subDir pnptypes.SubmoduleDirection, statusType StatusType) (pnptypes.Direction, error) {
	switch moduleDir {
	case ModuleNoIO, ModuleInput:
		switch {
		case statusType == StatusIOPS && subDir == pnptypes.SubDirInput:
			return pnptypes.DirectionInput, nil
		case statusType == StatusIOCS && subDir == pnptypes.SubDirOutput:
			return pnptypes.DirectionInput, nil
		}
	case ModuleOutput:
		switch {
		case statusType == StatusIOCS && subDir == pnptypes.SubDirInput:
			return pnptypes.DirectionOutput, nil
		case statusType == StatusIOPS && subDir == pnptypes.SubDirOutput:
			return pnptypes.DirectionOutput, nil
		}
	case ModuleIO:
		if statusType == StatusIOCS {
			return pnptypes.DirectionInput, nil
		}
		return pnptypes.DirectionOutput, nil
	}
	return 0, ErrBadDirection
}

// CheckZero reports whether every byte of buf is zero.
func CheckZero(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}

// CheckVString reports whether s is non-empty and every byte is a printable
// ASCII character in [0x20, 0x7E].
func CheckVString(s []byte) bool {
	if len(s) == 0 {
		return false
	}
	for _, b := range s {
		if b < 0x20 || b > 0x7E {
			return false
		}
	}
	return true
}

// NoStraddle reports whether [startA, startA+lenA) and [startB, startB+lenB)
// are disjoint; a zero-length region is vacuously disjoint from anything.
func NoStraddle(startA, lenA, startB, lenB uint32) bool {
	if lenA == 0 || lenB == 0 {
		return true
	}
	endA := startA + lenA
	endB := startB + lenB
	return endA <= startB || endB <= startA
}

// ARTypeValid reports whether t is the only AR type this profile accepts.
func ARTypeValid(t pnptypes.ARType) bool {
	return t == pnptypes.ARTypeSingle
}

// Callbacks are invoked synchronously, after the state mutation that
// triggered them has completed, in the same goroutine that drove the
// transition.
type Callbacks struct {
	OnStartup func(arep uint32)
	OnPrmEnd  func(arep uint32)
	OnApplRdy func(arep uint32)
	OnData    func(arep uint32)
	OnAbort   func(arep uint32, reason pnptypes.Status)
}

// PendingSubmodule is one slot/subslot the expected configuration declares;
// the application must "plug" each of these (acknowledge exp_module /
// exp_submodule) before PRMEND can be signalled.
type PendingSubmodule struct {
	Slot    uint16
	Subslot uint16
	Plugged bool
}

// AR tracks one Application Relation's lifecycle. Only one AR is ever
// active at a time in this profile (AR_TYPE_SINGLE), but the type carries
// no package-level singleton itself — pkg/device owns that.
type AR struct {
	Arep   uint32
	ARType pnptypes.ARType

	state     State
	pending   []PendingSubmodule
	callbacks Callbacks
	dataSeen  bool
}

// New creates an AR in POWER_ON, immediately driving it to W_CNF and firing
// OnStartup, mirroring the CONNECT.ind -> CONNECT.cnf(OK) pair spec.md
// shows as a single uninterruptible step from the application's point of
// view.
func New(arep uint32, arType pnptypes.ARType, pending []PendingSubmodule, cb Callbacks) (*AR, error) {
	if !ARTypeValid(arType) {
		return nil, pnptypes.New(pnptypes.ErrClassCMDEV, 1, fmt.Sprintf("unsupported ar_type %#02x", uint8(arType)))
	}
	ar := &AR{
		Arep:      arep,
		ARType:    arType,
		state:     StateWCnf,
		pending:   pending,
		callbacks: cb,
	}
	if cb.OnStartup != nil {
		cb.OnStartup(arep)
	}
	return ar, nil
}

// State returns the AR's current lifecycle state.
func (ar *AR) State() State { return ar.state }

// PlugSubmodule marks one declared slot/subslot as configured by the
// application. PrmEnd can only fire once every declared submodule has been
// plugged.
func (ar *AR) PlugSubmodule(slot, subslot uint16) {
	for i := range ar.pending {
		if ar.pending[i].Slot == slot && ar.pending[i].Subslot == subslot {
			ar.pending[i].Plugged = true
			return
		}
	}
}

func (ar *AR) allPlugged() bool {
	for _, p := range ar.pending {
		if !p.Plugged {
			return false
		}
	}
	return true
}

// PrmEnd signals PRMEND.ind: every declared submodule must already be
// plugged, or this call fails without changing state.
func (ar *AR) PrmEnd() error {
	if ar.state != StateWCnf && ar.state != StateWPrmEnd {
		return fmt.Errorf("cmdev: PrmEnd invalid in state %s", ar.state)
	}
	if !ar.allPlugged() {
		return fmt.Errorf("cmdev: PrmEnd called with unplugged submodules")
	}
	ar.state = StateWApplRdy
	if ar.callbacks.OnPrmEnd != nil {
		ar.callbacks.OnPrmEnd(ar.Arep)
	}
	return nil
}

// ApplicationReady is the application's app_application_ready() call,
// required between PRMEND and APPLRDY to progress the handshake.
func (ar *AR) ApplicationReady() error {
	if ar.state != StateWApplRdy {
		return fmt.Errorf("cmdev: ApplicationReady invalid in state %s", ar.state)
	}
	ar.state = StateWApplRdyCnf
	return nil
}

// ApplRdyConfirm is the APPLRDY.cnf from the controller side, moving the AR
// into DATA and firing OnApplRdy.
func (ar *AR) ApplRdyConfirm() error {
	if ar.state != StateWApplRdyCnf {
		return fmt.Errorf("cmdev: ApplRdyConfirm invalid in state %s", ar.state)
	}
	ar.state = StateData
	if ar.callbacks.OnApplRdy != nil {
		ar.callbacks.OnApplRdy(ar.Arep)
	}
	return nil
}

// DataReceived signals the first valid cyclic frame received after APPLRDY
// with IOPS/IOCS good; OnData fires once per transition into steady-state
// data exchange (repeated calls while already in DATA are a no-op).
func (ar *AR) DataReceived() {
	if ar.state != StateData || ar.dataSeen {
		return
	}
	ar.dataSeen = true
	if ar.callbacks.OnData != nil {
		ar.callbacks.OnData(ar.Arep)
	}
}

// Abort drives the AR to ABORT from any non-terminal state, on
// RELEASE.ind, a timeout, or a fatal error. Calling Abort on an AR already
// in ABORT is a no-op.
func (ar *AR) Abort(reason pnptypes.Status) {
	if ar.state == StateAbort {
		return
	}
	ar.state = StateAbort
	if ar.callbacks.OnAbort != nil {
		ar.callbacks.OnAbort(ar.Arep, reason)
	}
}
