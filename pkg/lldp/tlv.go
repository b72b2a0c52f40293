package lldp

import "encoding/binary"

// TLV types used on the wire, per IEEE 802.1AB and the PROFINET OUI
// extensions.
const (
	typeEnd               = 0
	typeChassisID         = 1
	typePortID            = 2
	typeTTL               = 3
	typePortDescription   = 4
	typeManagementAddress = 8
	typeOrgSpecific       = 127
)

// ChassisIDSubtype and PortIDSubtype values this stack emits/accepts.
const (
	SubtypeChassisMAC        = 4
	SubtypePortLocallyAssign = 7
)

// profinetOUI identifies the PROFINET organizationally-specific TLVs.
var profinetOUI = [3]byte{0x00, 0x0E, 0xCF}

const (
	pnioSubtypeMeasuredDelay = 0x02
	pnioSubtypePortStatus    = 0x05
)

func putTLVHeader(b []byte, typ uint8, length int) int {
	v := (uint16(length) & 0x01FF) | (uint16(typ) << 9)
	binary.BigEndian.PutUint16(b, v)
	return 2
}

func readTLVHeader(b []byte) (typ uint8, length int) {
	v := binary.BigEndian.Uint16(b)
	return uint8(v >> 9), int(v & 0x01FF)
}

// encodeChassisID appends a Chassis ID TLV (subtype MAC) for mac.
func encodeChassisID(buf []byte, mac [6]byte) []byte {
	n := 1 + 6
	hdr := make([]byte, 2)
	putTLVHeader(hdr, typeChassisID, n)
	buf = append(buf, hdr...)
	buf = append(buf, SubtypeChassisMAC)
	buf = append(buf, mac[:]...)
	return buf
}

// encodePortID appends a Port ID TLV (subtype locally-assigned) with value s.
func encodePortID(buf []byte, s string) []byte {
	n := 1 + len(s)
	hdr := make([]byte, 2)
	putTLVHeader(hdr, typePortID, n)
	buf = append(buf, hdr...)
	buf = append(buf, SubtypePortLocallyAssign)
	buf = append(buf, s...)
	return buf
}

func encodeTTL(buf []byte, ttl uint16) []byte {
	hdr := make([]byte, 2)
	putTLVHeader(hdr, typeTTL, 2)
	buf = append(buf, hdr...)
	var v [2]byte
	binary.BigEndian.PutUint16(v[:], ttl)
	return append(buf, v[:]...)
}

func encodePortDescription(buf []byte, s string) []byte {
	hdr := make([]byte, 2)
	putTLVHeader(hdr, typePortDescription, len(s))
	buf = append(buf, hdr...)
	return append(buf, s...)
}

// encodeManagementAddress appends an IPv4 Management Address TLV with the
// given SNMP ifIndex.
func encodeManagementAddress(buf []byte, ip [4]byte, ifIndex uint32) []byte {
	// addrlen(1) + afn(1) + addr(4) + iftype(1) + ifindex(4) + oidlen(1)
	addrStringLen := 1 + 4 // afn + ipv4
	n := 1 + addrStringLen + 1 + 4 + 1
	hdr := make([]byte, 2)
	putTLVHeader(hdr, typeManagementAddress, n)
	buf = append(buf, hdr...)
	buf = append(buf, uint8(addrStringLen))
	buf = append(buf, 1) // AFN: IPv4
	buf = append(buf, ip[:]...)
	buf = append(buf, 2) // interface numbering subtype: ifIndex
	var v [4]byte
	binary.BigEndian.PutUint32(v[:], ifIndex)
	buf = append(buf, v[:]...)
	buf = append(buf, 0) // OID length 0
	return buf
}

// encodeSignalDelay appends the PROFINET organizationally-specific
// measured-signal-delay TLV.
func encodeSignalDelay(buf []byte, rxDelay, txDelay, cableDelay uint32) []byte {
	n := 3 + 1 + 4 + 4 + 4
	hdr := make([]byte, 2)
	putTLVHeader(hdr, typeOrgSpecific, n)
	buf = append(buf, hdr...)
	buf = append(buf, profinetOUI[:]...)
	buf = append(buf, pnioSubtypeMeasuredDelay)
	var v [4]byte
	binary.BigEndian.PutUint32(v[:], rxDelay)
	buf = append(buf, v[:]...)
	binary.BigEndian.PutUint32(v[:], txDelay)
	buf = append(buf, v[:]...)
	binary.BigEndian.PutUint32(v[:], cableDelay)
	buf = append(buf, v[:]...)
	return buf
}

// encodeLinkStatus appends the PROFINET organizationally-specific
// port-status TLV (RT class 2/3 status + MAU type).
func encodeLinkStatus(buf []byte, st LinkStatus) []byte {
	n := 3 + 1 + 2 + 2
	hdr := make([]byte, 2)
	putTLVHeader(hdr, typeOrgSpecific, n)
	buf = append(buf, hdr...)
	buf = append(buf, profinetOUI[:]...)
	buf = append(buf, pnioSubtypePortStatus)
	var v [2]byte
	binary.BigEndian.PutUint16(v[:], st.RTClass23Status)
	buf = append(buf, v[:]...)
	binary.BigEndian.PutUint16(v[:], st.MAUType)
	buf = append(buf, v[:]...)
	return buf
}

func encodeEnd(buf []byte) []byte {
	hdr := make([]byte, 2)
	putTLVHeader(hdr, typeEnd, 0)
	return append(buf, hdr...)
}
