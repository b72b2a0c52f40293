// Package pnptypes holds the wire-level constants and small value types
// shared across the PROFINET device stack: error classes/codes, slot and
// subslot numbering, IOPS/IOCS states, and directions.
package pnptypes

import "fmt"

// ErrorClass is the high-level pnio_status error class.
type ErrorClass uint8

const (
	ErrClassNone ErrorClass = iota
	ErrClassProtocol
	ErrClassRTA
	ErrClassRTC
	ErrClassCMINA
	ErrClassCMDEV
	ErrClassCMRDR
	ErrClassAlarm
	ErrClassFspm
)

// ErrorCode is the low-level pnio_status error code; meaning depends on
// ErrorClass, mirroring the original pnio_status{err_cls, err_code} pair.
type ErrorCode uint8

// Status is the Go analogue of pnio_status, carried as an error value via
// Status.Error(), not as a raw integer -1/0 return.
type Status struct {
	Class ErrorClass
	Code  ErrorCode
	Extra string
}

func (s Status) Error() string {
	if s.Extra != "" {
		return fmt.Sprintf("pnio status class=%d code=%d: %s", s.Class, s.Code, s.Extra)
	}
	return fmt.Sprintf("pnio status class=%d code=%d", s.Class, s.Code)
}

// New builds a Status error.
func New(class ErrorClass, code ErrorCode, extra string) Status {
	return Status{Class: class, Code: code, Extra: extra}
}

// IOXS is the provider (IOPS) or consumer (IOCS) status of a subslot.
type IOXS uint8

const (
	IOXSBad  IOXS = 0x00
	IOXSGood IOXS = 0x80
)

// Direction is the data direction of a slot/subslot.
type Direction uint8

const (
	DirectionNoIO Direction = iota
	DirectionInput
	DirectionOutput
	DirectionIO
)

// SubmoduleDirection mirrors the expected-config submodule_dir field; it is
// distinct from Direction (the derived, runtime direction of a subslot).
type SubmoduleDirection uint8

const (
	SubDirNoIO SubmoduleDirection = iota
	SubDirInput
	SubDirOutput
	SubDirIO
)

// ARType enumerates the AR types a CONNECT request may declare. Only
// ARTypeSingle is accepted by this profile (AR_TYPE_SINGLE).
type ARType uint8

const (
	ARTypeSingle ARType = 0x01
	ARTypeSupervisor ARType = 0x06
	ARTypeSingleRTC3 ARType = 0x10
)

// SlotZero is the DAP slot.
const SlotZero = 0

// InterfaceSubslot and the first-port subslot base, per spec.md §3.
const (
	InterfaceSubslot = 0x8000
	FirstPortSubslot = 0x8001
)

// StateEvent is the set of application-observable CMDEV callback events.
type StateEvent uint8

const (
	StateStartup StateEvent = iota
	StatePrmEnd
	StateApplRdy
	StateData
	StateAbort
)

func (e StateEvent) String() string {
	switch e {
	case StateStartup:
		return "STARTUP"
	case StatePrmEnd:
		return "PRMEND"
	case StateApplRdy:
		return "APPLRDY"
	case StateData:
		return "DATA"
	case StateAbort:
		return "ABORT"
	default:
		return "UNKNOWN"
	}
}
