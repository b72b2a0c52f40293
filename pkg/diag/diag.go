// Package diag is the in-memory diagnosis item arena: the hot path for
// add/update/remove of both standard (channel/extended/qualified) and
// manufacturer-specific diagnosis entries, keyed per spec.md's uniqueness
// rule and requiring every diag_source field to match on update/remove.
// The arena itself, not a database, is authoritative; pkg/diag/sqlitestore
// layers a non-authoritative audit log on top.
package diag

import (
	"errors"

	"github.com/pnio-go/pnetd/pkg/alarm"
)

// ErrNotFound is returned by Update/Remove when no entry matches both the
// source and the item's key.
var ErrNotFound = errors.New("diag: no matching entry")

// ErrInvalidCombination is returned when Add/Update/Remove is given a
// USI/field combination the spec forbids (e.g. channel fields on a
// manufacturer-specific USI).
var ErrInvalidCombination = errors.New("diag: invalid usi/field combination")

// Source identifies where a diagnosis item originates; every operation
// requires an exact match on every field, including against entries that
// already exist.
type Source struct {
	API         uint32
	Slot        uint16
	Subslot     uint16
	Channel     uint16
	ChGrouping  uint8
	ChDirection uint8
}

// Severity is the std_add "severity" selector: it picks the standard USI
// an entry is filed under.
type Severity int

const (
	SeverityFault Severity = iota
	SeverityQualified
)

// Entry is one diagnosis item held by a subslot.
type Entry struct {
	Source     Source
	USI        alarm.USI // 0 for manufacturer-specific entries below 0x8000
	ManUSI     uint16    // manufacturer USI, meaningful when USI == 0
	ChErrType  uint16
	ExtErrType uint16
	AddValue   uint32
	Qualifier  uint32
	Data       []byte
}

func (e Entry) isManufacturer() bool { return e.USI == 0 }

// key returns the uniqueness key fields this entry is matched on:
// (channel, ch_direction, ch_grouping, ch_error_type, ext_error_type) for
// standard entries, or the manufacturer USI for manufacturer entries.
type key struct {
	manufacturer bool
	manUSI       uint16
	channel      uint16
	chDirection  uint8
	chGrouping   uint8
	chErrType    uint16
	extErrType   uint16
}

func (e Entry) key() key {
	if e.isManufacturer() {
		return key{manufacturer: true, manUSI: e.ManUSI}
	}
	return key{
		channel:     e.Source.Channel,
		chDirection: e.Source.ChDirection,
		chGrouping:  e.Source.ChGrouping,
		chErrType:   e.ChErrType,
		extErrType:  e.ExtErrType,
	}
}

// Store is the per-device diagnosis arena, an unordered slice searched
// linearly on every operation (source match is O(n) by design per
// spec.md's "diag_source field match required on every operation").
type Store struct {
	entries []Entry
}

// NewStore creates an empty diagnosis arena.
func NewStore() *Store {
	return &Store{}
}

func sourceMatches(a, b Source) bool {
	return a == b
}

func (s *Store) find(src Source, k key) int {
	for i, e := range s.entries {
		if sourceMatches(e.Source, src) && e.key() == k {
			return i
		}
	}
	return -1
}

// DiagAdd is the low-level add/update primitive: manufacturer USIs (< 0x8000)
// must carry manUSI and must not set any channel fields; the qualified
// standard USI requires a non-zero qualifier. Adding an identical key
// updates the existing entry in place.
func (s *Store) DiagAdd(src Source, usi alarm.USI, manUSI uint16, chErrType, extErrType uint16, addValue, qualifier uint32, data []byte) error {
	isManufacturer := usi == 0
	if isManufacturer {
		if manUSI >= 0x8000 {
			return ErrInvalidCombination
		}
		if chErrType != 0 || extErrType != 0 || qualifier != 0 {
			return ErrInvalidCombination
		}
	} else {
		if usi == alarm.USIQualifiedChannelDiagnosis && qualifier == 0 {
			return ErrInvalidCombination
		}
	}

	e := Entry{
		Source:     src,
		USI:        usi,
		ManUSI:     manUSI,
		ChErrType:  chErrType,
		ExtErrType: extErrType,
		AddValue:   addValue,
		Qualifier:  qualifier,
		Data:       append([]byte(nil), data...),
	}

	if i := s.find(src, e.key()); i >= 0 {
		s.entries[i] = e
		return nil
	}
	s.entries = append(s.entries, e)
	return nil
}

// DiagUpdate updates fields of an existing entry matched by src and the
// implied key; fails with ErrNotFound if src doesn't match on every field
// or no entry has this key.
func (s *Store) DiagUpdate(src Source, usi alarm.USI, manUSI uint16, chErrType, extErrType uint16, addValue, qualifier uint32, data []byte) error {
	k := Entry{Source: src, USI: usi, ManUSI: manUSI, ChErrType: chErrType, ExtErrType: extErrType}.key()
	i := s.find(src, k)
	if i < 0 {
		return ErrNotFound
	}
	s.entries[i].AddValue = addValue
	s.entries[i].Qualifier = qualifier
	s.entries[i].Data = append([]byte(nil), data...)
	return nil
}

// DiagRemove removes the entry matched by src and the given key fields.
func (s *Store) DiagRemove(src Source, usi alarm.USI, manUSI uint16, chErrType, extErrType uint16) error {
	k := Entry{Source: src, USI: usi, ManUSI: manUSI, ChErrType: chErrType, ExtErrType: extErrType}.key()
	i := s.find(src, k)
	if i < 0 {
		return ErrNotFound
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	return nil
}

// StdAdd adds or updates a standard diagnosis item; the USI is inferred
// from severity (SeverityQualified -> USIQualifiedChannelDiagnosis, else
// USIExtendedChannelDiagnosis), matching spec.md's std_add convention.
func (s *Store) StdAdd(src Source, severity Severity, chErrType, extErrType uint16, addValue, qualifier uint32) error {
	usi := alarm.USIExtendedChannelDiagnosis
	if severity == SeverityQualified {
		usi = alarm.USIQualifiedChannelDiagnosis
	}
	return s.DiagAdd(src, usi, 0, chErrType, extErrType, addValue, qualifier, nil)
}

// StdUpdate updates a previously added standard diagnosis item.
func (s *Store) StdUpdate(src Source, severity Severity, chErrType, extErrType uint16, addValue, qualifier uint32) error {
	usi := alarm.USIExtendedChannelDiagnosis
	if severity == SeverityQualified {
		usi = alarm.USIQualifiedChannelDiagnosis
	}
	return s.DiagUpdate(src, usi, 0, chErrType, extErrType, addValue, qualifier, nil)
}

// StdRemove removes a previously added standard diagnosis item.
func (s *Store) StdRemove(src Source, severity Severity, chErrType, extErrType uint16) error {
	usi := alarm.USIExtendedChannelDiagnosis
	if severity == SeverityQualified {
		usi = alarm.USIQualifiedChannelDiagnosis
	}
	return s.DiagRemove(src, usi, 0, chErrType, extErrType)
}

// UsiAdd adds or updates a manufacturer-specific diagnosis item; usi must
// be below 0x8000.
func (s *Store) UsiAdd(src Source, usi uint16, data []byte) error {
	return s.DiagAdd(src, 0, usi, 0, 0, 0, 0, data)
}

// UsiUpdate updates a manufacturer-specific diagnosis item's payload.
func (s *Store) UsiUpdate(src Source, usi uint16, data []byte) error {
	return s.DiagUpdate(src, 0, usi, 0, 0, 0, 0, data)
}

// UsiRemove removes a manufacturer-specific diagnosis item.
func (s *Store) UsiRemove(src Source, usi uint16) error {
	return s.DiagRemove(src, 0, usi, 0, 0)
}

// Entries returns every diagnosis item currently held for the given
// slot/subslot, in storage order. Used to build an alarm.DiagItem slice
// for alarm.AddDiagItemToSummary's submodule_diagnosis scan.
func (s *Store) Entries(slot, subslot uint16) []Entry {
	var out []Entry
	for _, e := range s.entries {
		if e.Source.Slot == slot && e.Source.Subslot == subslot {
			out = append(out, e)
		}
	}
	return out
}
