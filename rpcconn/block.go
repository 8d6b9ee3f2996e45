package rpcconn

import "github.com/wtc-scada/pnioctl/wire"

// BlockType identifies a PNIO block's contents.
type BlockType uint16

const (
	BlockARReq                BlockType = 0x0101
	BlockIOCRReq              BlockType = 0x0102
	BlockExpectedSubmoduleReq BlockType = 0x0104
	BlockModuleDiff           BlockType = 0x0020
	BlockIOCControlReq        BlockType = 0x8111
	BlockIOCControlRes        BlockType = 0x8112
	BlockIODControlRes        BlockType = 0x8110 // not emitted; recognized to reject a wrong-handshake response
	BlockRecordDataReq        BlockType = 0x0008
	BlockRecordDataRes        BlockType = 0x0009
)

// blockHeaderSize is the 6-byte header every PNIO block starts with:
// BlockType(2) + BlockLength(2) + BlockVersionHigh(1) + BlockVersionLow(1).
// BlockLength counts everything after itself, i.e. version bytes plus body.
const blockHeaderSize = 6

// putBlockHeader appends a block header to b and returns the result along
// with the offset of the length field, so the caller can patch it in once
// the body length is known.
func putBlockHeader(b []byte, typ BlockType, versionHigh, versionLow uint8) (out []byte, lengthOffset int) {
	start := len(b)
	b = append(b, byte(typ>>8), byte(typ), 0, 0, versionHigh, versionLow)
	return b, start + 2
}

func patchBlockLength(b []byte, lengthOffset int) {
	bodyLen := len(b) - lengthOffset - 2
	wire.PutUint16(b, lengthOffset, uint16(bodyLen))
}

// blockHeader is the parsed form of a block's fixed 6-byte prefix.
type blockHeader struct {
	Type        BlockType
	Length      uint16 // bytes following the length field: version + body
	VersionHigh uint8
	VersionLow  uint8
}

func parseBlockHeader(b []byte, offset int) (blockHeader, int, error) {
	if offset < 0 || offset+blockHeaderSize > len(b) {
		return blockHeader{}, 0, wire.TruncatedFrame
	}
	typ, _, _ := wire.Uint16(b, offset)
	length, _, _ := wire.Uint16(b, offset+2)
	h := blockHeader{
		Type:        BlockType(typ),
		Length:      length,
		VersionHigh: b[offset+4],
		VersionLow:  b[offset+5],
	}
	bodyStart := offset + blockHeaderSize
	bodyEnd := offset + 4 + int(length) // length counts everything after the length field itself
	if bodyEnd > len(b) || bodyEnd < bodyStart {
		return blockHeader{}, 0, wire.TruncatedFrame
	}
	return h, bodyStart, nil
}

// blockEnd returns the offset one past h's body, given the offset the
// header itself started at.
func blockEnd(h blockHeader, headerOffset int) int {
	return headerOffset + 4 + int(h.Length)
}
