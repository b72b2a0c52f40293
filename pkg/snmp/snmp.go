// Package snmp projects LLDP peer data and device identification records
// into the shapes an SNMP agent would serve: length-prefixed octet strings,
// RFC 2579 TruthValue booleans, and RFC 1906 BITS-encoded capability
// fields. It holds no MIB or transport logic of its own; no other package
// in this module imports it.
package snmp

import "strings"

// FilenameSNMPSysLocation is the fstore blob name persisted system location
// is saved under.
const FilenameSNMPSysLocation = "SNMP_SYSLOCATION"

var sysLocationMagic = [4]byte{'S', 'L', 'O', 'C'}

const sysLocationVersion = 1

// im1LocationLen is the fixed width of the I&M1 location field that backs
// GetSystemLocation's fallback and receives SetSystemLocation's mirror.
const im1LocationLen = 22

// ManagementAddress is the SNMP-shaped projection of a management address:
// an octet string whose first byte is the address length, per RFC 2578
// section 7.7 clause 3. Value holds the length byte followed by the address
// bytes, matching how the MIB encodes the field on the wire.
type ManagementAddress struct {
	Subtype uint8
	Value   []byte
}

// EncodeManagementAddress builds the length-prefixed IPv4 management
// address. Only IPv4 is represented: the prefix byte is the address length
// (4), followed by the four address bytes; no address-family byte is
// written.
func EncodeManagementAddress(subtype uint8, ip [4]byte) ManagementAddress {
	return ManagementAddress{
		Subtype: subtype,
		Value:   []byte{4, ip[0], ip[1], ip[2], ip[3]},
	}
}

// AutoNeg is RFC 2579's TruthValue encoding: 1 means true, 2 means false.
// It is deliberately not a bool so a caller can't accidentally serialize a
// Go zero value (false) as SNMP's true.
type AutoNeg uint8

const (
	AutoNegTrue  AutoNeg = 1
	AutoNegFalse AutoNeg = 2
)

func truthValue(b bool) AutoNeg {
	if b {
		return AutoNegTrue
	}
	return AutoNegFalse
}

// LinkStatus is the SNMP-shaped projection of a port's auto-negotiation and
// MAU state.
type LinkStatus struct {
	AutoNegSupported AutoNeg
	AutoNegEnabled   AutoNeg
	AdvertisedCap    [2]byte
	OperMauType      uint16
}

// bitReverseCapabilities re-maps a 16-bit capability mask into the BITS
// encoding of RFC 1906: bit n of the mask lands at MSB-n of its containing
// octet, so capability bit 5 (the low octet) ends up at bit 2 of octet 0.
func bitReverseCapabilities(caps uint16) [2]byte {
	var out [2]byte
	for n := 0; n < 16; n++ {
		if caps&(1<<uint(n)) == 0 {
			continue
		}
		octet := n / 8
		destBit := 7 - n%8
		out[octet] |= 1 << uint(destBit)
	}
	return out
}

// GetLinkStatus projects raw auto-negotiation state into its SNMP encoding.
func GetLinkStatus(supported, enabled bool, advertisedCap uint16, operMauType uint16) LinkStatus {
	return LinkStatus{
		AutoNegSupported: truthValue(supported),
		AutoNegEnabled:   truthValue(enabled),
		AdvertisedCap:    bitReverseCapabilities(advertisedCap),
		OperMauType:      operMauType,
	}
}

// PeerSource supplies per-port peer data as pkg/lldp's neighbor table would:
// an error from either method means the port has no current peer (e.g. link
// down or no LLDP frame received yet).
type PeerSource interface {
	PeerLinkStatus(port int) (supported, enabled bool, advertisedCap uint16, operMauType uint16, err error)
	PeerManagementAddress(port int) (subtype uint8, ip [4]byte, err error)
}

// GetPeerLinkStatus projects a peer's link status, propagating src's error
// unchanged (the caller reports "no data for this port" the same way the
// local variant would report "no link").
func GetPeerLinkStatus(src PeerSource, port int) (LinkStatus, error) {
	supported, enabled, cap, mau, err := src.PeerLinkStatus(port)
	if err != nil {
		return LinkStatus{}, err
	}
	return GetLinkStatus(supported, enabled, cap, mau), nil
}

// GetPeerManagementAddress projects a peer's management address.
func GetPeerManagementAddress(src PeerSource, port int) (ManagementAddress, error) {
	subtype, ip, err := src.PeerManagementAddress(port)
	if err != nil {
		return ManagementAddress{}, err
	}
	return EncodeManagementAddress(subtype, ip), nil
}

// FileStore is the subset of pkg/fstore.Store the system-location blob
// needs.
type FileStore interface {
	Load(name string, magic [4]byte, version uint32) ([]byte, error)
	Save(name string, magic [4]byte, version uint32, data []byte) error
}

// IMLocation is the I&M1 location field pkg/device's identification block
// exposes: GetSystemLocation falls back to it when the blob file is
// missing or corrupt, and SetSystemLocation always mirrors its first 22
// characters into it, independent of whether the file write succeeds.
type IMLocation interface {
	IM1Location() string
	SetIM1Location(string)
}

// GetSystemLocation returns the persisted system location, falling back to
// the space-padded 22-character I&M1 location if the blob can't be loaded.
func GetSystemLocation(store FileStore, im IMLocation) string {
	data, err := store.Load(FilenameSNMPSysLocation, sysLocationMagic, sysLocationVersion)
	if err != nil {
		return padOrTruncate(im.IM1Location(), im1LocationLen)
	}
	return string(data)
}

// SetSystemLocation persists s verbatim and unconditionally mirrors its
// first 22 characters (space-padded if shorter) into the I&M1 location,
// even when the persist fails: the mirror is the only copy the device
// advertises over I&M if the file store is unavailable.
func SetSystemLocation(store FileStore, im IMLocation, s string) error {
	err := store.Save(FilenameSNMPSysLocation, sysLocationMagic, sysLocationVersion, []byte(s))
	im.SetIM1Location(padOrTruncate(s, im1LocationLen))
	return err
}

func padOrTruncate(s string, n int) string {
	if len(s) >= n {
		return s[:n]
	}
	return s + strings.Repeat(" ", n-len(s))
}
