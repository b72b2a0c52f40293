// Package cmina validates the station name, IP suite (address, netmask,
// gateway) a DCP Set or a stored configuration proposes, and implements the
// reset-to-factory timeout check used while waiting for a name/IP to be
// assigned. Validation is parse-then-predicate, the same structure
// pkg/atlas.Config used for its env-sourced address fields, rather than a
// regexp-driven grammar.
package cmina

import (
	"net"
	"strings"
)

const (
	maxStationNameLen = 240
	maxLabelLen       = 63
)

// IsStationNameValid reports whether name is an acceptable PROFINET station
// name: the empty string (no name assigned yet), or a sequence of
// dot-separated labels of 1-63 characters each, total length at most 240,
// each label drawn from [a-z0-9-] without a leading or trailing hyphen, not
// formatted as a dotted-decimal IPv4 address, and not matching the
// reserved "port-xxx" / "port-xxx-yyyyy" naming convention (x, y digits).
func IsStationNameValid(name string) bool {
	if name == "" {
		return true
	}
	if len(name) > maxStationNameLen {
		return false
	}
	if isDottedDecimalIP(name) {
		return false
	}
	if isReservedPortName(name) {
		return false
	}

	labels := strings.Split(name, ".")
	for _, label := range labels {
		if !isValidLabel(label) {
			return false
		}
	}
	return true
}

func isValidLabel(label string) bool {
	if len(label) < 1 || len(label) > maxLabelLen {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '-':
		default:
			return false
		}
	}
	return true
}

func isDottedDecimalIP(name string) bool {
	labels := strings.Split(name, ".")
	if len(labels) != 4 {
		return false
	}
	for _, l := range labels {
		if l == "" || len(l) > 3 {
			return false
		}
		for i := 0; i < len(l); i++ {
			if l[i] < '0' || l[i] > '9' {
				return false
			}
		}
	}
	return true
}

// isReservedPortName reports whether name matches "port-xxx" or
// "port-xxx-yyyyy" where xxx/yyyyy are all-digit: the convention reserved
// for the device's own auto-generated per-port alias names.
func isReservedPortName(name string) bool {
	const prefix = "port-"
	if !strings.HasPrefix(name, prefix) {
		return false
	}
	rest := name[len(prefix):]
	parts := strings.SplitN(rest, "-", 2)
	if !isAllDigits(parts[0]) || parts[0] == "" {
		return false
	}
	if len(parts) == 2 {
		return isAllDigits(parts[1]) && parts[1] != ""
	}
	return true
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// IsNetmaskValid reports whether mask's binary representation is a
// contiguous run of leading 1 bits followed only by 0 bits (including the
// all-zero and all-one extremes).
func IsNetmaskValid(mask uint32) bool {
	if mask == 0 {
		return true
	}
	// Flipping off the leading run of 1s must produce a power-of-two-minus-one
	// (i.e. all remaining bits 0..k are 1, or the mask was all-ones already).
	ones := ^mask
	return ones&(ones+1) == 0
}

// IsIPValid reports whether ip is an acceptable device IP address given the
// subnet mask it would be combined with, rejecting IANA-reserved ranges and
// the subnet's network and broadcast addresses. (mask=0, ip=0) is the
// special case meaning "no IP suite assigned yet".
func IsIPValid(mask, ip uint32) bool {
	if mask == 0 && ip == 0 {
		return true
	}

	firstOctet := byte(ip >> 24)
	switch {
	case firstOctet == 0:
		return false // 0.0.0.0/8
	case firstOctet == 127:
		return false // 127.0.0.0/8 loopback
	case firstOctet >= 224 && firstOctet <= 239:
		return false // 224.0.0.0/4 multicast
	case firstOctet >= 240:
		return false // 240.0.0.0/4 reserved
	}

	network := ip & mask
	if network == 0 {
		return false
	}
	host := ip &^ mask
	if host == 0 {
		return false // subnet address
	}
	if host == ^mask {
		return false // subnet broadcast address
	}
	return true
}

// IsGatewayValid reports whether gateway is acceptable for the given
// ip/mask: either unset (0.0.0.0), or in the same subnet as ip.
func IsGatewayValid(ip, mask, gateway uint32) bool {
	if gateway == 0 {
		return true
	}
	return gateway&mask == ip&mask
}

// HasTimedOut reports whether, starting a timer at `start` (a free-running
// microsecond counter sampled at `now`), a period of `factor` *
// `intervalBase`*31.25us has elapsed. intervalBase==0 or factor==0 means no
// interval at all: always timed out. The subtraction wraps the same way the
// underlying uint32 counter does.
func HasTimedOut(now, start, intervalBase32 uint32, factor uint32) bool {
	if intervalBase32 == 0 || factor == 0 {
		return true
	}
	elapsed := now - start // uint32 wraparound
	threshold := uint64(factor) * uint64(intervalBase32) * 1000 / 32
	return uint64(elapsed) >= threshold
}

// ParseIPv4 converts a dotted-decimal string to its big-endian uint32
// form, as used by the rest of this package's validators, or ok=false if s
// is not a valid IPv4 literal.
func ParseIPv4(s string) (addr uint32, ok bool) {
	ip := net.ParseIP(s)
	if ip == nil {
		return 0, false
	}
	v4 := ip.To4()
	if v4 == nil {
		return 0, false
	}
	return uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3]), true
}
