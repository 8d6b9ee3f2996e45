package rpcconn

import (
	"github.com/wtc-scada/pnioctl/strategy"
	"github.com/wtc-scada/pnioctl/wire"
)

// ControlCommand is the bitfield carried by IOCControl request/response
// blocks. Values are OR-combined, not a sequential enum.
type ControlCommand uint16

const (
	CtrlPrmBegin         ControlCommand = 0x0001
	CtrlPrmEnd           ControlCommand = 0x0002
	CtrlApplicationReady ControlCommand = 0x0004
	CtrlRelease          ControlCommand = 0x0008
	CtrlRdyForCompanion  ControlCommand = 0x0010
	CtrlRdyForRTClass3   ControlCommand = 0x0020
	CtrlDone             ControlCommand = 0x0040
)

// formatOf reports AsStored or SwapFields based on the DREP byte actually
// present on the wire, independent of which strategy our own session is
// attempting: an incoming indication's byte order is the RTU's choice, not
// ours.
func formatOf(drep byte) strategy.UUIDFormat {
	if drep == DREP {
		return strategy.AsStored
	}
	return strategy.SwapFields
}

// IOCControlIndication is an inbound ApplicationReady (or other IOCControl)
// notification from the RTU.
type IOCControlIndication struct {
	Header         Header
	ControlCommand ControlCommand
}

// ParseIOCControlIndication decodes an inbound IOCControlReq packet. The
// header's UUID fields are un-swapped according to the DREP byte actually
// present, not the byte our own strategy expects.
func ParseIOCControlIndication(b []byte) (IOCControlIndication, error) {
	if len(b) < HeaderSize {
		return IOCControlIndication{}, wire.TruncatedFrame
	}
	format := formatOf(b[3])
	h, err := ParseHeader(b, format)
	if err != nil {
		return IOCControlIndication{}, err
	}
	rest := b[HeaderSize:]
	_, body, err := ParseRequestArgs(rest, strategy.Present)
	if err != nil {
		return IOCControlIndication{}, err
	}
	blkHeader, blkBody, err := parseBlockHeader(body, 0)
	if err != nil {
		return IOCControlIndication{}, err
	}
	if blkHeader.Type != BlockIOCControlReq {
		return IOCControlIndication{}, errUnexpectedBlockType(blkHeader.Type, BlockIOCControlReq)
	}
	cmd, _, err := wire.Uint16(body, blkBody)
	if err != nil {
		return IOCControlIndication{}, err
	}
	return IOCControlIndication{Header: h, ControlCommand: ControlCommand(cmd)}, nil
}

// ControlOpnum is the DCE/RPC operation number carried by every
// controller-initiated IOCControlReq (PrmEnd, Release), distinct from the
// Connect-attempt opnum strategy.Opnum selects.
const ControlOpnum uint16 = 4

// BuildIOCControlRequest builds a controller-initiated IOCControlReq packet
// for cmd (CtrlPrmEnd to close parameterization, CtrlRelease to tear down)
// addressed to the AR identified by h.
func BuildIOCControlRequest(h Header, format strategy.UUIDFormat, mode strategy.NDRMode, cmd ControlCommand) []byte {
	h.PacketType = PTRequest
	h.DataRep[0] = DREP
	h.Opnum = ControlOpnum

	var blk []byte
	blk, lenOff := putBlockHeader(blk, BlockIOCControlReq, 1, 0)
	blk = wire.AppendUint16(blk, uint16(cmd))
	patchBlockLength(blk, lenOff)

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

// IOCControlResponse is the RTU's reply to a controller-initiated
// IOCControlReq.
type IOCControlResponse struct {
	Header         Header
	ControlCommand ControlCommand
	Status         PNIOStatus
}

// ParseIOCControlResponse decodes cmd's reply, reading the UUID byte order
// from the DREP byte actually present rather than assuming our own
// strategy's choice, exactly as ParseIOCControlIndication does for inbound
// requests.
func ParseIOCControlResponse(b []byte) (IOCControlResponse, error) {
	if len(b) < HeaderSize {
		return IOCControlResponse{}, wire.TruncatedFrame
	}
	format := formatOf(b[3])
	h, err := ParseHeader(b, format)
	if err != nil {
		return IOCControlResponse{}, err
	}
	if h.PacketType == PTFault {
		return IOCControlResponse{}, &ConnectError{Kind: UnexpectedPnioError}
	}
	args, body, err := ParseResponseArgs(b[HeaderSize:])
	if err != nil {
		return IOCControlResponse{}, err
	}
	if !args.Status.OK() {
		return IOCControlResponse{}, &ConnectError{Kind: UnexpectedPnioError, Status: args.Status}
	}
	blkHeader, blkBody, err := parseBlockHeader(body, 0)
	if err != nil {
		return IOCControlResponse{}, err
	}
	if blkHeader.Type != BlockIOCControlRes {
		return IOCControlResponse{}, errUnexpectedBlockType(blkHeader.Type, BlockIOCControlRes)
	}
	cmd, _, err := wire.Uint16(body, blkBody)
	if err != nil {
		return IOCControlResponse{}, err
	}
	return IOCControlResponse{Header: h, ControlCommand: ControlCommand(cmd), Status: args.Status}, nil
}

// BuildIOCControlResponse builds the controller's reply to an
// ApplicationReady indication: block type IOCControlRes (0x8112), not
// IODControlRes; ControlCommand=Done; a mandatory 20-byte NDR response
// header; and the interface UUID echoed from the indication, re-swapped so
// it serializes identically to how the RTU sent it.
func BuildIOCControlResponse(ind IOCControlIndication) []byte {
	format := formatOf(ind.Header.DataRep[0])

	h := Header{
		PacketType:       PTResponse,
		DataRep:          ind.Header.DataRep,
		ObjectUUID:       ind.Header.ObjectUUID,
		InterfaceUUID:    ind.Header.InterfaceUUID,
		ActivityUUID:     ind.Header.ActivityUUID,
		ServerBootTime:   ind.Header.ServerBootTime,
		InterfaceVersion: ind.Header.InterfaceVersion,
		SequenceNumber:   ind.Header.SequenceNumber,
		Opnum:            ind.Header.Opnum,
	}

	var blk []byte
	blk, lenOff := putBlockHeader(blk, BlockIOCControlRes, 1, 0)
	blk = wire.AppendUint16(blk, uint16(CtrlDone))
	patchBlockLength(blk, lenOff)

	args := ResponseArgs{
		Status:      PNIOStatus{},
		ArgsLength:  uint32(len(blk)),
		MaxCount:    uint32(len(blk)),
		ActualCount: uint32(len(blk)),
	}
	argBytes := args.Marshal()
	h.Length = uint16(len(argBytes) + len(blk))

	out := h.Marshal(format)
	out = append(out, argBytes...)
	out = append(out, blk...)
	return out
}
