// Package rpcconn builds and parses the DCE/RPC packets the AR state
// machine exchanges with an RTU: the 80-byte RPC
// header, the 20-byte NDR request/response headers, and the contiguous PNIO
// blocks layered inside them. Every encoder here is a pure function of a
// strategy.Strategy plus its arguments — no method closes over mutable
// connection state, so the same packet comes out of the same inputs on every
// call.
package rpcconn

import (
	"github.com/wtc-scada/pnioctl/strategy"
	"github.com/wtc-scada/pnioctl/wire"
)

// HeaderSize is the fixed length of the RPC header: packet type and flags (3),
// data representation (3), serial-high (1), three UUIDs (48), server boot
// time/interface version/sequence number (12), opnum/hints/length/frag (10),
// auth protocol and serial-low (2), one reserved byte (1).
// 3+3+1+48+12+10+2+1 = 80. No RPC version byte is written.
const HeaderSize = 80

// NDRRequestHeaderSize is the size of the optional NDR argument header that
// precedes every PNIO request body.
const NDRRequestHeaderSize = 20

// NDRResponseHeaderSize is the size of the NDR header on every PNIO
// response. Its first four bytes are the PNIOStatus, not an ArgsMaximum
// field as in the request header.
const NDRResponseHeaderSize = 20

// Packet type values for the connectionless RPC PDUs this engine emits and
// consumes.
const (
	PTRequest  uint8 = 0x00
	PTResponse uint8 = 0x02
	PTFault    uint8 = 0x03
)

// DREP is the data-representation byte the strategy's NDR mode and the
// active AsStored/SwapFields choice both hinge on. 0x10 selects little
// endian integers, ASCII characters and IEEE-754 floats — the only
// combination an RTU is required to accept.
const DREP byte = 0x10

// Header is the 80-byte RPC header.
type Header struct {
	PacketType       uint8
	Flags1           uint8
	Flags2           uint8
	DataRep          [3]byte
	SerialHigh       uint8
	ObjectUUID       wire.UUID
	InterfaceUUID    wire.UUID
	ActivityUUID     wire.UUID
	ServerBootTime   uint32
	InterfaceVersion uint32
	SequenceNumber   uint32
	Opnum            uint16
	InterfaceHint    uint16
	ActivityHint     uint16
	Length           uint16
	FragNum          uint16
	AuthProto        uint8
	SerialLow        uint8
}

// Marshal encodes h according to format, swapping the three UUID fields when
// format is SwapFields.
func (h Header) Marshal(format strategy.UUIDFormat) []byte {
	b := make([]byte, HeaderSize)
	b[0] = h.PacketType
	b[1] = h.Flags1
	b[2] = h.Flags2
	copy(b[3:6], h.DataRep[:])
	b[6] = h.SerialHigh

	obj, iface, act := h.ObjectUUID, h.InterfaceUUID, h.ActivityUUID
	if format == strategy.SwapFields {
		obj, iface, act = obj.SwapFields(), iface.SwapFields(), act.SwapFields()
	}
	copy(b[7:23], obj[:])
	copy(b[23:39], iface[:])
	copy(b[39:55], act[:])

	wire.PutUint32LE(b, 55, h.ServerBootTime)
	wire.PutUint32LE(b, 59, h.InterfaceVersion)
	wire.PutUint32LE(b, 63, h.SequenceNumber)
	wire.PutUint16LE(b, 67, h.Opnum)
	wire.PutUint16LE(b, 69, h.InterfaceHint)
	wire.PutUint16LE(b, 71, h.ActivityHint)
	wire.PutUint16LE(b, 73, h.Length)
	wire.PutUint16LE(b, 75, h.FragNum)
	b[77] = h.AuthProto
	b[78] = h.SerialLow
	// b[79] reserved, left zero
	return b
}

// ParseHeader decodes a Header from b, un-swapping the UUID fields when
// format is SwapFields.
func ParseHeader(b []byte, format strategy.UUIDFormat) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, wire.TruncatedFrame
	}
	var h Header
	h.PacketType = b[0]
	h.Flags1 = b[1]
	h.Flags2 = b[2]
	copy(h.DataRep[:], b[3:6])
	h.SerialHigh = b[6]

	copy(h.ObjectUUID[:], b[7:23])
	copy(h.InterfaceUUID[:], b[23:39])
	copy(h.ActivityUUID[:], b[39:55])
	if format == strategy.SwapFields {
		h.ObjectUUID = h.ObjectUUID.SwapFields()
		h.InterfaceUUID = h.InterfaceUUID.SwapFields()
		h.ActivityUUID = h.ActivityUUID.SwapFields()
	}

	h.ServerBootTime, _, _ = wire.Uint32LE(b, 55)
	h.InterfaceVersion, _, _ = wire.Uint32LE(b, 59)
	h.SequenceNumber, _, _ = wire.Uint32LE(b, 63)
	h.Opnum, _, _ = wire.Uint16LE(b, 67)
	h.InterfaceHint, _, _ = wire.Uint16LE(b, 69)
	h.ActivityHint, _, _ = wire.Uint16LE(b, 71)
	h.Length, _, _ = wire.Uint16LE(b, 73)
	h.FragNum, _, _ = wire.Uint16LE(b, 75)
	h.AuthProto = b[77]
	h.SerialLow = b[78]
	return h, nil
}

// RequestArgs is the optional 20-byte NDR request header. Present
// whenever the active strategy's NDRMode is strategy.Present — every real
// PNIO exchange.
type RequestArgs struct {
	ArgsMaximum uint32
	ArgsLength  uint32
	MaxCount    uint32
	Offset      uint32
	ActualCount uint32
}

// Marshal encodes a according to the strategy's NDR mode. Absent mode
// returns nil: callers append nothing before the block stream.
func (a RequestArgs) Marshal(mode strategy.NDRMode) []byte {
	if mode == strategy.Absent {
		return nil
	}
	b := make([]byte, NDRRequestHeaderSize)
	wire.PutUint32LE(b, 0, a.ArgsMaximum)
	wire.PutUint32LE(b, 4, a.ArgsLength)
	wire.PutUint32LE(b, 8, a.MaxCount)
	wire.PutUint32LE(b, 12, a.Offset)
	wire.PutUint32LE(b, 16, a.ActualCount)
	return b
}

// ParseRequestArgs decodes the NDR request header from the front of b when
// mode is Present, returning the remaining bytes as the block stream.
func ParseRequestArgs(b []byte, mode strategy.NDRMode) (RequestArgs, []byte, error) {
	if mode == strategy.Absent {
		return RequestArgs{}, b, nil
	}
	if len(b) < NDRRequestHeaderSize {
		return RequestArgs{}, nil, wire.TruncatedFrame
	}
	var a RequestArgs
	a.ArgsMaximum, _, _ = wire.Uint32LE(b, 0)
	a.ArgsLength, _, _ = wire.Uint32LE(b, 4)
	a.MaxCount, _, _ = wire.Uint32LE(b, 8)
	a.Offset, _, _ = wire.Uint32LE(b, 12)
	a.ActualCount, _, _ = wire.Uint32LE(b, 16)
	return a, b[NDRRequestHeaderSize:], nil
}

// PNIOStatus is the four-field error status every response NDR header
// carries first. Packed big-endian-within-word: code<<24 |
// decode<<16 | c1<<8 | c2.
type PNIOStatus struct {
	Code   uint8
	Decode uint8
	Code1  uint8
	Code2  uint8
}

// OK reports whether s signals success (all fields zero).
func (s PNIOStatus) OK() bool {
	return s.Code == 0 && s.Decode == 0 && s.Code1 == 0 && s.Code2 == 0
}

// Packed returns the combined big-endian-within-word value.
func (s PNIOStatus) Packed() uint32 {
	return uint32(s.Code)<<24 | uint32(s.Decode)<<16 | uint32(s.Code1)<<8 | uint32(s.Code2)
}

// ResponseArgs is the 20-byte NDR response header: PNIOStatus followed by
// the same ArgsLength/MaxCount/Offset/ActualCount fields as the request
// header.
type ResponseArgs struct {
	Status      PNIOStatus
	ArgsLength  uint32
	MaxCount    uint32
	Offset      uint32
	ActualCount uint32
}

// ParseResponseArgs decodes the 20-byte NDR response header from the front
// of b, returning the remaining bytes as the block stream.
func ParseResponseArgs(b []byte) (ResponseArgs, []byte, error) {
	if len(b) < NDRResponseHeaderSize {
		return ResponseArgs{}, nil, wire.TruncatedFrame
	}
	var a ResponseArgs
	a.Status = PNIOStatus{Code: b[0], Decode: b[1], Code1: b[2], Code2: b[3]}
	a.ArgsLength, _, _ = wire.Uint32LE(b, 4)
	a.MaxCount, _, _ = wire.Uint32LE(b, 8)
	a.Offset, _, _ = wire.Uint32LE(b, 12)
	a.ActualCount, _, _ = wire.Uint32LE(b, 16)
	return a, b[NDRResponseHeaderSize:], nil
}

// Marshal encodes a as the 20-byte NDR response header.
func (a ResponseArgs) Marshal() []byte {
	b := make([]byte, NDRResponseHeaderSize)
	b[0], b[1], b[2], b[3] = a.Status.Code, a.Status.Decode, a.Status.Code1, a.Status.Code2
	wire.PutUint32LE(b, 4, a.ArgsLength)
	wire.PutUint32LE(b, 8, a.MaxCount)
	wire.PutUint32LE(b, 12, a.Offset)
	wire.PutUint32LE(b, 16, a.ActualCount)
	return b
}
