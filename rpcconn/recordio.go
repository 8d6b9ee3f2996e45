package rpcconn

import (
	"github.com/wtc-scada/pnioctl/record"
	"github.com/wtc-scada/pnioctl/strategy"
	"github.com/wtc-scada/pnioctl/wire"
)

// RecordReadOpnum and RecordWriteOpnum address the acyclic record service
// over an established AR. RecordWriteOpnum has the same value as
// strategy.OpnumWrite; both are distinct from the controller-initiated
// IOCControl opnum (ControlOpnum).
const (
	RecordReadOpnum  uint16 = 2
	RecordWriteOpnum uint16 = 3
)

// recordAddressSize is API(4) + Slot(2) + Subslot(2) + Index(2) +
// RecordDataLength(4), the addressing prefix every record block carries
// ahead of the record payload itself.
const recordAddressSize = 14

// RecordAddress locates one record within the target RTU's object tree
//.
type RecordAddress struct {
	API     uint32
	Slot    uint16
	Subslot uint16
	Index   record.Index
}

func marshalRecordReqBlock(b []byte, addr RecordAddress, data []byte) []byte {
	b, lenOff := putBlockHeader(b, BlockRecordDataReq, 1, 0)
	b = wire.AppendUint32(b, addr.API)
	b = wire.AppendUint16(b, addr.Slot)
	b = wire.AppendUint16(b, addr.Subslot)
	b = wire.AppendUint16(b, uint16(addr.Index))
	b = wire.AppendUint32(b, uint32(len(data)))
	b = append(b, data...)
	patchBlockLength(b, lenOff)
	return b
}

func parseRecordAddress(b []byte, offset int) (RecordAddress, uint32, int, error) {
	if offset+recordAddressSize > len(b) {
		return RecordAddress{}, 0, 0, wire.TruncatedFrame
	}
	var addr RecordAddress
	addr.API, _, _ = wire.Uint32(b, offset)
	addr.Slot, _, _ = wire.Uint16(b, offset+4)
	addr.Subslot, _, _ = wire.Uint16(b, offset+6)
	idx, _, _ := wire.Uint16(b, offset+8)
	addr.Index = record.Index(idx)
	length, _, _ := wire.Uint32(b, offset+10)
	return addr, length, offset + recordAddressSize, nil
}

// BuildRecordReadRequest builds a read request for the record addressed by
// addr, requesting up to maxLength bytes in the response.
func BuildRecordReadRequest(h Header, format strategy.UUIDFormat, mode strategy.NDRMode, addr RecordAddress, maxLength uint32) []byte {
	h.PacketType = PTRequest
	h.DataRep[0] = DREP
	h.Opnum = RecordReadOpnum

	blk := marshalRecordReqBlock(nil, addr, nil)
	// A read request carries the requested buffer size in the length field,
	// not an actual payload.
	wire.PutUint32(blk, blockHeaderSize+10, maxLength)

	args := RequestArgs{
		ArgsMaximum: maxLength,
		ArgsLength:  uint32(len(blk)),
		MaxCount:    uint32(len(blk)),
		ActualCount: uint32(len(blk)),
	}
	argBytes := args.Marshal(mode)
	h.Length = uint16(len(argBytes) + len(blk))

	out := h.Marshal(format)
	out = append(out, argBytes...)
	out = append(out, blk...)
	return out
}

// RecordReadResponse is the decoded reply to a record read request.
type RecordReadResponse struct {
	Header  Header
	Address RecordAddress
	Data    []byte
	Status  PNIOStatus
}

// ParseRecordReadResponse decodes resp, returning the data the RTU returned
// for the requested record.
func ParseRecordReadResponse(b []byte, s strategy.Strategy) (RecordReadResponse, error) {
	h, err := ParseHeader(b, s.UUIDFormat)
	if err != nil {
		return RecordReadResponse{}, err
	}
	if h.PacketType == PTFault {
		return RecordReadResponse{}, &ConnectError{Kind: UnexpectedPnioError}
	}
	args, body, err := ParseResponseArgs(b[HeaderSize:])
	if err != nil {
		return RecordReadResponse{}, err
	}
	if !args.Status.OK() {
		return RecordReadResponse{}, &ConnectError{Kind: UnexpectedPnioError, Status: args.Status}
	}
	blkHeader, blkBody, err := parseBlockHeader(body, 0)
	if err != nil {
		return RecordReadResponse{}, err
	}
	if blkHeader.Type != BlockRecordDataRes {
		return RecordReadResponse{}, errUnexpectedBlockType(blkHeader.Type, BlockRecordDataRes)
	}
	addr, length, dataStart, err := parseRecordAddress(body, blkBody)
	if err != nil {
		return RecordReadResponse{}, err
	}
	end := dataStart + int(length)
	if end > len(body) {
		return RecordReadResponse{}, wire.TruncatedFrame
	}
	data := append([]byte(nil), body[dataStart:end]...)
	return RecordReadResponse{Header: h, Address: addr, Data: data, Status: args.Status}, nil
}

// BuildRecordWriteRequest builds a write request carrying data for the
// record addressed by addr.
func BuildRecordWriteRequest(h Header, format strategy.UUIDFormat, mode strategy.NDRMode, addr RecordAddress, data []byte) []byte {
	h.PacketType = PTRequest
	h.DataRep[0] = DREP
	h.Opnum = RecordWriteOpnum

	blk := marshalRecordReqBlock(nil, addr, data)

	args := RequestArgs{
		ArgsMaximum: uint32(len(blk)),
		ArgsLength:  uint32(len(blk)),
		MaxCount:    uint32(len(blk)),
		ActualCount: uint32(len(blk)),
	}
	argBytes := args.Marshal(mode)
	h.Length = uint16(len(argBytes) + len(blk))

	out := h.Marshal(format)
	out = append(out, argBytes...)
	out = append(out, blk...)
	return out
}

// RecordWriteResponse is the decoded reply to a record write request. A
// rejection the RTU reports (for example a version or checksum mismatch)
// arrives as a non-OK Status with a nil parse error; nothing here releases
// the AR, and the RTU preserves its previous state on a rejected write.
type RecordWriteResponse struct {
	Header  Header
	Address RecordAddress
	Status  PNIOStatus
}

// ParseRecordWriteResponse decodes resp.
func ParseRecordWriteResponse(b []byte, s strategy.Strategy) (RecordWriteResponse, error) {
	h, err := ParseHeader(b, s.UUIDFormat)
	if err != nil {
		return RecordWriteResponse{}, err
	}
	if h.PacketType == PTFault {
		return RecordWriteResponse{}, &ConnectError{Kind: UnexpectedPnioError}
	}
	args, body, err := ParseResponseArgs(b[HeaderSize:])
	if err != nil {
		return RecordWriteResponse{}, err
	}
	blkHeader, blkBody, err := parseBlockHeader(body, 0)
	if err != nil {
		return RecordWriteResponse{}, err
	}
	if blkHeader.Type != BlockRecordDataRes {
		return RecordWriteResponse{}, errUnexpectedBlockType(blkHeader.Type, BlockRecordDataRes)
	}
	addr, _, _, err := parseRecordAddress(body, blkBody)
	if err != nil {
		return RecordWriteResponse{}, err
	}
	return RecordWriteResponse{Header: h, Address: addr, Status: args.Status}, nil
}
