// Package lldp builds LLDP frame bodies, parses TLVs into a per-port peer
// record, and computes the alias name; the periodic transmission and the
// peer neighbor table live in pkg/device. TLV
// slicing follows the explicit offset-math style of the teacher's
// pkg/nspkt r2crypto.go rather than reflection-based decoding.
package lldp

import (
	"errors"
	"fmt"
	"strings"
)

// Str is a bounded string field paired with a validity flag, mirroring the
// C struct's is_valid twin for every optional TLV-sourced field.
type Str struct {
	Value   string
	Subtype uint8
	Valid   bool
}

// ManagementAddress is the parsed Management Address TLV content.
type ManagementAddress struct {
	IP      [4]byte
	IfIndex uint32
	Valid   bool
}

// LinkStatus is the parsed PROFINET port-status organizationally-specific
// TLV.
type LinkStatus struct {
	RTClass23Status uint16
	MAUType         uint16
	Valid           bool
}

// SignalDelay is the parsed PROFINET measured-signal-delay TLV.
type SignalDelay struct {
	RXDelayNs    uint32
	TXDelayNs    uint32
	CableDelayNs uint32
	Valid        bool
}

// Peer is everything learned about the device attached to one physical
// port, either by having sent our own frame (for self-description) or by
// having received and parsed a neighbor's frame.
type Peer struct {
	ChassisID   Str
	PortID      Str
	PortDesc    Str
	ManAddress  ManagementAddress
	LinkStatus  LinkStatus
	SignalDelay SignalDelay
	TimestampMs uint32 // 10ms-tick system uptime at reception
}

// BuildParams are the fields used to build this device's own periodic LLDP
// frame for one port.
type BuildParams struct {
	MAC         [6]byte
	PortID      string
	TTL         uint16
	PortDesc    string
	ManAddress  [4]byte
	IfIndex     uint32
	SignalDelay SignalDelay
	LinkStatus  LinkStatus
}

// Build serializes an LLDP frame body (TLVs only, no Ethernet header) for
// the given port.
func Build(p BuildParams) []byte {
	var buf []byte
	buf = encodeChassisID(buf, p.MAC)
	buf = encodePortID(buf, p.PortID)
	buf = encodeTTL(buf, p.TTL)
	if p.PortDesc != "" {
		buf = encodePortDescription(buf, p.PortDesc)
	}
	buf = encodeManagementAddress(buf, p.ManAddress, p.IfIndex)
	if p.SignalDelay.Valid {
		buf = encodeSignalDelay(buf, p.SignalDelay.RXDelayNs, p.SignalDelay.TXDelayNs, p.SignalDelay.CableDelayNs)
	}
	if p.LinkStatus.Valid {
		buf = encodeLinkStatus(buf, p.LinkStatus)
	}
	buf = encodeEnd(buf)
	return buf
}

// ErrMalformed is returned by ParsePacket when the TLV stream itself is
// unparseable (a length byte runs past the end of buf). A TLV that is
// individually too long for its destination field does NOT produce this
// error; it just leaves that field invalid (see spec.md §4.4).
var ErrMalformed = errors.New("lldp: malformed TLV stream")

// ParsePacket walks the TLVs in b and fills a new Peer. A TLV whose
// declared length exceeds its destination's capacity leaves the
// corresponding field Valid=false without aborting the parse.
func ParsePacket(b []byte) (Peer, error) {
	var peer Peer

	off := 0
	for off+2 <= len(b) {
		typ, length := readTLVHeader(b[off:])
		off += 2
		if typ == typeEnd {
			return peer, nil
		}
		if off+length > len(b) {
			return peer, ErrMalformed
		}
		val := b[off : off+length]
		off += length

		switch typ {
		case typeChassisID:
			parseIDField(&peer.ChassisID, val, 240)
		case typePortID:
			parseIDField(&peer.PortID, val, 240)
		case typeTTL:
			// TTL isn't retained on Peer (only used at build time); ignore.
		case typePortDescription:
			if len(val) <= 240 {
				peer.PortDesc = Str{Value: string(val), Valid: true}
			}
		case typeManagementAddress:
			parseManagementAddress(&peer.ManAddress, val)
		case typeOrgSpecific:
			parseOrgSpecific(&peer, val)
		default:
			// unknown TLV type: ignore, continue parsing
		}
	}
	return peer, nil
}

func parseIDField(out *Str, val []byte, cap int) {
	if len(val) < 1 {
		return
	}
	subtype := val[0]
	body := val[1:]
	if len(body) > cap {
		*out = Str{}
		return
	}
	*out = Str{Value: string(body), Subtype: subtype, Valid: true}
}

func parseManagementAddress(out *ManagementAddress, val []byte) {
	if len(val) < 1 {
		return
	}
	addrStrLen := int(val[0])
	rest := val[1:]
	if len(rest) < addrStrLen+1+4+1 {
		return
	}
	afn := rest[0]
	if afn != 1 || addrStrLen != 5 {
		return // only IPv4 supported
	}
	var ip [4]byte
	copy(ip[:], rest[1:5])
	rest = rest[addrStrLen:]
	// rest: iftype(1) ifindex(4) oidlen(1) oid...
	if len(rest) < 1+4+1 {
		return
	}
	ifIndex := uint32(rest[1])<<24 | uint32(rest[2])<<16 | uint32(rest[3])<<8 | uint32(rest[4])
	*out = ManagementAddress{IP: ip, IfIndex: ifIndex, Valid: true}
}

func parseOrgSpecific(peer *Peer, val []byte) {
	if len(val) < 4 {
		return
	}
	if val[0] != profinetOUI[0] || val[1] != profinetOUI[1] || val[2] != profinetOUI[2] {
		return
	}
	subtype := val[3]
	body := val[4:]
	switch subtype {
	case pnioSubtypeMeasuredDelay:
		if len(body) < 12 {
			return
		}
		peer.SignalDelay = SignalDelay{
			RXDelayNs:    be32(body[0:4]),
			TXDelayNs:    be32(body[4:8]),
			CableDelayNs: be32(body[8:12]),
			Valid:        true,
		}
	case pnioSubtypePortStatus:
		if len(body) < 4 {
			return
		}
		peer.LinkStatus = LinkStatus{
			RTClass23Status: be16(body[0:2]),
			MAUType:         be16(body[2:4]),
			Valid:           true,
		}
	}
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func be16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

// GenerateAliasName computes the PN-aliasing DNS fallback name. Per the
// reference implementation's tests (test_lldp.cpp LldpGenerateAliasName):
// if portID already contains a '.' (PN v2.3+ style), the alias IS portID;
// otherwise (legacy v2.2 portID with no dot) the alias is
// portID + "." + stationName.
func GenerateAliasName(portID, stationName string, cap int) (string, error) {
	if portID == "" || stationName == "" {
		return "", fmt.Errorf("lldp: portID and stationName must be non-empty")
	}

	var alias string
	if strings.Contains(portID, ".") {
		alias = portID
	} else {
		alias = portID + "." + stationName
	}

	if len(alias)+1 > cap { // +1 for the implied NUL terminator in the C API
		return "", fmt.Errorf("lldp: alias %q does not fit in %d bytes", alias, cap)
	}
	return alias, nil
}
