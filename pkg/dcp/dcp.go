// Package dcp implements the Discovery and Configuration Protocol
// responder: raw-Ethernet identify/get/set handling on EtherType 0x8892,
// DCP subheader 0xFEFD (get/set) or 0xFEFE (identify). Frame layout is
// walked with the same explicit offset-math style pkg/lldp uses for its
// TLV stream, since DCP's option blocks are a close cousin of LLDP's TLVs.
package dcp

import (
	"encoding/binary"
	"errors"
)

const (
	EtherTypeProfinetRT = 0x8892
	FrameIDGetSet        = 0xfefd
	FrameIDIdentify       = 0xfefe
)

// MulticastIdentifyMAC is the well-known destination for DCP Identify
// requests; frames unicast to the device's own MAC are handled by the
// same path. Handle accepts this address itself, in addition to what
// IsAcceptedDestination admits.
var MulticastIdentifyMAC = [6]byte{0x01, 0x0e, 0xcf, 0x00, 0x00, 0x00}

// ServiceID is the DCP service field (get/set/identify/hello).
type ServiceID uint8

const (
	ServiceGet      ServiceID = 3
	ServiceSet      ServiceID = 4
	ServiceIdentify ServiceID = 5
	ServiceHello    ServiceID = 6
)

// ServiceType distinguishes a request from its response.
type ServiceType uint8

const (
	ServiceTypeRequest         ServiceType = 0
	ServiceTypeResponseSuccess ServiceType = 1
)

// Option identifies a DCP option block; Suboption further narrows it.
type Option uint8

const (
	OptionIP               Option = 1
	OptionDeviceProperties Option = 2
	OptionDHCP             Option = 3
	OptionControl          Option = 5
	OptionAllSelector      Option = 0xff
)

const (
	SubIPMACAddress uint8 = 1
	SubIPParameter  uint8 = 2
	SubIPFullSuite  uint8 = 3

	SubDevicePropVendorSpecific uint8 = 1
	SubDevicePropNameOfStation  uint8 = 2
	SubDevicePropDeviceID       uint8 = 3

	SubControlStart        uint8 = 1
	SubControlStop         uint8 = 2
	SubControlSignal       uint8 = 3
	SubControlResponse     uint8 = 4
	SubControlFactoryReset uint8 = 5
)

// ErrMalformed covers both a too-short frame and a declared DCP data
// length that runs past the end of the actual payload. Per spec, a
// malformed frame is silently dropped, never replied to.
var ErrMalformed = errors.New("dcp: malformed frame")

// Header is the fixed-size portion of a DCP frame, ahead of its options.
type Header struct {
	DstMAC              [6]byte
	SrcMAC              [6]byte
	FrameID             uint16
	ServiceID           ServiceID
	ServiceType         ServiceType
	XID                 uint32
	ResponseDelayFactor uint16
	DataLength          uint16
}

// ParseHeader decodes frame's fixed header and returns the option bytes it
// declares, bounds-checked against what's actually present.
func ParseHeader(frame []byte) (Header, []byte, error) {
	const headerLen = 26
	if len(frame) < headerLen {
		return Header{}, nil, ErrMalformed
	}

	var h Header
	copy(h.DstMAC[:], frame[0:6])
	copy(h.SrcMAC[:], frame[6:12])
	etherType := binary.BigEndian.Uint16(frame[12:14])
	if etherType != EtherTypeProfinetRT {
		return Header{}, nil, ErrMalformed
	}
	h.FrameID = binary.BigEndian.Uint16(frame[14:16])
	if h.FrameID != FrameIDGetSet && h.FrameID != FrameIDIdentify {
		return Header{}, nil, ErrMalformed
	}
	h.ServiceID = ServiceID(frame[16])
	h.ServiceType = ServiceType(frame[17])
	h.XID = binary.BigEndian.Uint32(frame[18:22])
	h.ResponseDelayFactor = binary.BigEndian.Uint16(frame[22:24])
	h.DataLength = binary.BigEndian.Uint16(frame[24:26])

	rest := frame[headerLen:]
	if int(h.DataLength) > len(rest) {
		return Header{}, nil, ErrMalformed
	}
	return h, rest[:h.DataLength], nil
}

// IsAcceptedDestination reports whether a unicast DCP frame addressed to
// dst should be processed by this device. The DCP Identify multicast
// address is matched separately, in Handle; this check is strictly
// "addressed to me".
func IsAcceptedDestination(dst, deviceMAC [6]byte) bool {
	return dst == deviceMAC
}

// MacLow16 extracts the low 16 bits of a MAC address (its last two
// octets), the seed CalculateResponseDelay spreads responses across.
func MacLow16(mac [6]byte) uint16 {
	return uint16(mac[4])<<8 | uint16(mac[5])
}

// responseDelayUnitMicros is the resolution a non-zero delay is quantized
// to.
const responseDelayUnitMicros = 10000

// maxResponseFactor is the largest response_factor that produces a
// back-off; beyond it, the device always replies immediately.
const maxResponseFactor = 6400

// CalculateResponseDelay computes the randomized reply back-off in
// microseconds for an Identify/Get/Set request. It returns 0 for
// factor <= 1 (no spreading requested) and for factor > 6400 (out of the
// table's range); otherwise the low 16 bits of the device MAC modulo
// factor, scaled to microseconds. The mod-by-factor (not factor+1) shape
// was confirmed against the literal response-delay test table rather than
// derived from the informal "(MAC*factor) mod (factor+1)" description,
// which does not reproduce the factor > 6400 cutoff.
func CalculateResponseDelay(deviceMAC [6]byte, factor uint16) uint32 {
	if factor <= 1 || factor > maxResponseFactor {
		return 0
	}
	return uint32(MacLow16(deviceMAC)%factor) * responseDelayUnitMicros
}

// Selector is one requested (option, suboption) pair in a Get/Identify
// request; such requests carry no block length or value, only the pair.
type Selector struct {
	Option    uint8
	Suboption uint8
}

// ParseGetRequest splits a Get/Identify request's option bytes into its
// requested selectors.
func ParseGetRequest(options []byte) ([]Selector, error) {
	if len(options)%2 != 0 {
		return nil, ErrMalformed
	}
	sels := make([]Selector, 0, len(options)/2)
	for i := 0; i+2 <= len(options); i += 2 {
		sels = append(sels, Selector{Option: options[i], Suboption: options[i+1]})
	}
	return sels, nil
}

// Block is one decoded Set-request option block: a qualifier word
// followed by its value bytes.
type Block struct {
	Option    uint8
	Suboption uint8
	Qualifier uint16
	Value     []byte
}

// ParseSetBlocks walks a Set request's option bytes into its blocks. Each
// block is Option(1) Suboption(1) BlockLength(2) Qualifier(2) Value(BlockLength-2).
func ParseSetBlocks(options []byte) ([]Block, error) {
	var blocks []Block
	off := 0
	for off+4 <= len(options) {
		opt := options[off]
		sub := options[off+1]
		blockLen := int(binary.BigEndian.Uint16(options[off+2 : off+4]))
		off += 4
		if blockLen < 2 || off+blockLen > len(options) {
			return nil, ErrMalformed
		}
		qual := binary.BigEndian.Uint16(options[off : off+2])
		value := options[off+2 : off+blockLen]
		blocks = append(blocks, Block{Option: opt, Suboption: sub, Qualifier: qual, Value: value})
		off += blockLen
		if blockLen%2 != 0 {
			off++ // blocks pad to an even total length
		}
	}
	return blocks, nil
}

// ReplyInfo is the current device identity and configuration a Responder
// reads from to answer Get/Identify requests. It mirrors Handler's
// settable fields, plus the read-only device/vendor identity pair that
// Set never touches.
type ReplyInfo struct {
	StationName          string
	IP, Netmask, Gateway [4]byte
	VendorID, DeviceID   uint16
}

// Handler is the application-facing side of a Set request: one method per
// settable attribute, mirroring pkg/cmdev's Callbacks shape of one method
// per lifecycle event. Info supplies the current values Get/Identify
// replies are built from.
type Handler interface {
	Info() ReplyInfo
	SetName(name string) error
	SetIPSuite(ip, netmask, gateway [4]byte) error
	FactoryReset() error
	Signal(on bool) error
}

// Responder dispatches incoming DCP frames.
type Responder struct {
	DeviceMAC [6]byte
}

// NewResponder creates a Responder bound to the device's own MAC address.
func NewResponder(deviceMAC [6]byte) *Responder {
	return &Responder{DeviceMAC: deviceMAC}
}

// Reply is a DCP response frame awaiting transmission: the destination to
// send it to (the requester's MAC) and the Ethernet payload following the
// 14-byte Ethernet header, ready for a pal.EtherFrame.
type Reply struct {
	Dst     [6]byte
	Payload []byte
}

// Handle decodes frame and, for a Set request, applies every block to h;
// for a Get or Identify request, it builds the matching reply from
// h.Info(). It returns reply=nil (and no error) for anything this device
// should silently ignore: a malformed frame, a frame not addressed to it,
// or a response frame looped back to it. delay is the back-off the
// caller should wait before sending reply.
func (r *Responder) Handle(frame []byte, h Handler) (reply *Reply, delay uint32, err error) {
	hdr, opts, perr := ParseHeader(frame)
	if perr != nil {
		return nil, 0, nil
	}
	if !IsAcceptedDestination(hdr.DstMAC, r.DeviceMAC) && hdr.DstMAC != MulticastIdentifyMAC {
		return nil, 0, nil
	}
	if hdr.ServiceType != ServiceTypeRequest {
		return nil, 0, nil
	}

	delay = CalculateResponseDelay(r.DeviceMAC, hdr.ResponseDelayFactor)

	switch hdr.ServiceID {
	case ServiceIdentify, ServiceGet:
		sels, perr := ParseGetRequest(opts)
		if perr != nil {
			return nil, 0, nil
		}
		options := encodeBlocks(buildInfoBlocks(sels, h.Info(), r.DeviceMAC))
		return r.buildReply(hdr, options), delay, nil
	case ServiceSet:
		blocks, perr := ParseSetBlocks(opts)
		if perr != nil {
			return nil, 0, nil
		}
		results := make([]replyBlock, len(blocks))
		var firstErr error
		for i, b := range blocks {
			var code uint16
			if applyErr := applyBlock(b, h); applyErr != nil {
				code = 1
				if firstErr == nil {
					firstErr = applyErr
				}
			}
			results[i] = replyBlock{Option: b.Option, Suboption: b.Suboption, InfoOrError: code}
		}
		options := encodeBlocks(results)
		return r.buildReply(hdr, options), delay, firstErr
	default:
		return nil, 0, nil
	}
}

func applyBlock(b Block, h Handler) error {
	switch {
	case b.Option == uint8(OptionDeviceProperties) && b.Suboption == SubDevicePropNameOfStation:
		return h.SetName(string(b.Value))
	case b.Option == uint8(OptionIP) && b.Suboption == SubIPParameter && len(b.Value) >= 12:
		var ip, mask, gw [4]byte
		copy(ip[:], b.Value[0:4])
		copy(mask[:], b.Value[4:8])
		copy(gw[:], b.Value[8:12])
		return h.SetIPSuite(ip, mask, gw)
	case b.Option == uint8(OptionControl) && b.Suboption == SubControlFactoryReset:
		return h.FactoryReset()
	case b.Option == uint8(OptionControl) && b.Suboption == SubControlSignal:
		return h.Signal(true)
	case b.Option == uint8(OptionControl) && b.Suboption == SubControlStop:
		return h.Signal(false)
	default:
		return nil
	}
}

// replyBlock is one block of a Get/Identify/Set response: the same
// Option/Suboption/BlockLength/Qualifier/Value wire shape ParseSetBlocks
// decodes, with the qualifier word reused as either echoed info (Get,
// Identify) or a per-block error code (Set; 0 means applied, nonzero
// means rejected).
type replyBlock struct {
	Option, Suboption uint8
	InfoOrError       uint16
	Value             []byte
}

// encodeBlocks serializes blocks in ParseSetBlocks's wire shape, padding
// each odd-length block by one byte the same way ParseSetBlocks skips it.
func encodeBlocks(blocks []replyBlock) []byte {
	var out []byte
	for _, b := range blocks {
		out = append(out, b.Option, b.Suboption)
		blockLen := 2 + len(b.Value)
		var lenBuf, infoBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(blockLen))
		binary.BigEndian.PutUint16(infoBuf[:], b.InfoOrError)
		out = append(out, lenBuf[:]...)
		out = append(out, infoBuf[:]...)
		out = append(out, b.Value...)
		if blockLen%2 != 0 {
			out = append(out, 0)
		}
	}
	return out
}

func selectorsWantAll(sels []Selector) bool {
	for _, s := range sels {
		if s.Option == uint8(OptionAllSelector) {
			return true
		}
	}
	return false
}

func selectorsWant(sels []Selector, opt Option, sub uint8) bool {
	for _, s := range sels {
		if s.Option == uint8(opt) && s.Suboption == sub {
			return true
		}
	}
	return false
}

// buildInfoBlocks answers a Get/Identify request: every selector present
// gets a block, or every known attribute does when sels requests the
// all-selector.
func buildInfoBlocks(sels []Selector, info ReplyInfo, deviceMAC [6]byte) []replyBlock {
	all := selectorsWantAll(sels)
	var blocks []replyBlock

	if all || selectorsWant(sels, OptionIP, SubIPMACAddress) {
		mac := make([]byte, 6)
		copy(mac, deviceMAC[:])
		blocks = append(blocks, replyBlock{Option: uint8(OptionIP), Suboption: SubIPMACAddress, Value: mac})
	}
	if all || selectorsWant(sels, OptionIP, SubIPParameter) {
		v := make([]byte, 12)
		copy(v[0:4], info.IP[:])
		copy(v[4:8], info.Netmask[:])
		copy(v[8:12], info.Gateway[:])
		blocks = append(blocks, replyBlock{Option: uint8(OptionIP), Suboption: SubIPParameter, Value: v})
	}
	if all || selectorsWant(sels, OptionDeviceProperties, SubDevicePropNameOfStation) {
		blocks = append(blocks, replyBlock{Option: uint8(OptionDeviceProperties), Suboption: SubDevicePropNameOfStation, Value: []byte(info.StationName)})
	}
	if all || selectorsWant(sels, OptionDeviceProperties, SubDevicePropDeviceID) {
		v := make([]byte, 4)
		binary.BigEndian.PutUint16(v[0:2], info.VendorID)
		binary.BigEndian.PutUint16(v[2:4], info.DeviceID)
		blocks = append(blocks, replyBlock{Option: uint8(OptionDeviceProperties), Suboption: SubDevicePropDeviceID, Value: v})
	}
	return blocks
}

// buildReply assembles the 12-byte DCP response header (mirroring hdr's
// FrameID/ServiceID/XID, marked ServiceTypeResponseSuccess) ahead of
// options, addressed back to the requester.
func (r *Responder) buildReply(hdr Header, options []byte) *Reply {
	payload := make([]byte, 12+len(options))
	binary.BigEndian.PutUint16(payload[0:2], hdr.FrameID)
	payload[2] = byte(hdr.ServiceID)
	payload[3] = byte(ServiceTypeResponseSuccess)
	binary.BigEndian.PutUint32(payload[4:8], hdr.XID)
	binary.BigEndian.PutUint16(payload[8:10], 0)
	binary.BigEndian.PutUint16(payload[10:12], uint16(len(options)))
	copy(payload[12:], options)

	return &Reply{Dst: hdr.SrcMAC, Payload: payload}
}
