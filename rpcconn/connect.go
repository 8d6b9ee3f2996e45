package rpcconn

import (
	"github.com/wtc-scada/pnioctl/strategy"
	"github.com/wtc-scada/pnioctl/wire"
)

// ARParams carries the per-session identifiers and negotiated timing the AR
// block of a Connect request conveys.
type ARParams struct {
	ARUUID       wire.UUID
	ActivityUUID wire.UUID
	SessionKey   uint16
	Timing       strategy.TimingParams
}

// arBlockBodySize is the AR block body length: two UUIDs (32) plus session
// key and five timing fields (2 each) = 44.
const arBlockBodySize = 44

func marshalARBlock(b []byte, p ARParams) []byte {
	b, lenOff := putBlockHeader(b, BlockARReq, 1, 0)
	b = append(b, p.ARUUID[:]...)
	b = append(b, p.ActivityUUID[:]...)
	b = wire.AppendUint16(b, p.SessionKey)
	b = wire.AppendUint16(b, p.Timing.SendClockFactor)
	b = wire.AppendUint16(b, p.Timing.ReductionRatio)
	b = wire.AppendUint16(b, p.Timing.WatchdogFactor)
	b = wire.AppendUint16(b, p.Timing.DataHoldFactor)
	b = wire.AppendUint16(b, p.Timing.AlarmTimeoutFactor)
	patchBlockLength(b, lenOff)
	return b
}

func parseARBlock(b []byte, offset int) (ARParams, int, error) {
	h, body, err := parseBlockHeader(b, offset)
	if err != nil {
		return ARParams{}, 0, err
	}
	if h.Type != BlockARReq {
		return ARParams{}, 0, errUnexpectedBlockType(h.Type, BlockARReq)
	}
	end := blockEnd(h, offset)
	if end-body < arBlockBodySize {
		return ARParams{}, 0, wire.TruncatedFrame
	}
	var p ARParams
	copy(p.ARUUID[:], b[body:body+16])
	copy(p.ActivityUUID[:], b[body+16:body+32])
	p.SessionKey, _, _ = wire.Uint16(b, body+32)
	p.Timing.SendClockFactor, _, _ = wire.Uint16(b, body+34)
	p.Timing.ReductionRatio, _, _ = wire.Uint16(b, body+36)
	p.Timing.WatchdogFactor, _, _ = wire.Uint16(b, body+38)
	p.Timing.DataHoldFactor, _, _ = wire.Uint16(b, body+40)
	p.Timing.AlarmTimeoutFactor, _, _ = wire.Uint16(b, body+42)
	return p, end, nil
}

// ConnectRequest is everything the RPC connect engine needs to build one
// Connect attempt.
type ConnectRequest struct {
	Strategy      strategy.Strategy
	Header        Header
	AR            ARParams
	Catalogue     Catalogue
	InputSlot     uint16
	OutputSlot    uint16
	InputEntries  []SubslotEntry
	OutputEntries []SubslotEntry
}

// scopedCatalogue returns cat unchanged for FullSlots, or restricted to slot
// 0 (the Device Access Point) for DapOnly.
func scopedCatalogue(cat Catalogue, scope strategy.SlotScope) Catalogue {
	if scope == strategy.FullSlots {
		return cat
	}
	var out Catalogue
	for _, api := range cat.APIs {
		var slots []SlotEntry
		for _, s := range api.Slots {
			if s.Slot == 0 {
				slots = append(slots, s)
			}
		}
		if slots != nil {
			out.APIs = append(out.APIs, API{Number: api.Number, Slots: slots})
		}
	}
	return out
}

// BuildConnectRequest assembles the full wire packet for one Connect
// attempt per the active strategy: 80-byte RPC header, optional NDR request
// header, AR block, ExpectedSubmodule block (scoped per the strategy) and
// both IOCR blocks, laid out contiguously with no inter-block padding
//.
func BuildConnectRequest(req ConnectRequest) []byte {
	s := req.Strategy
	h := req.Header
	h.PacketType = PTRequest
	h.DataRep[0] = DREP
	h.Opnum = uint16(s.Opnum)

	cat := scopedCatalogue(req.Catalogue, s.SlotScope)
	inIOCR := BuildIOCR(IOCRInput, FrameIDInputBase, req.InputEntries, req.InputSlot)
	outIOCR := BuildIOCR(IOCROutput, FrameIDOutputBase, req.OutputEntries, req.OutputSlot)

	var body []byte
	body = marshalARBlock(body, req.AR)
	body = MarshalExpectedSubmoduleBlock(body, cat)
	body = MarshalIOCRBlock(body, inIOCR)
	body = MarshalIOCRBlock(body, outIOCR)

	args := RequestArgs{
		ArgsMaximum: uint32(len(body)),
		ArgsLength:  uint32(len(body)),
		MaxCount:    uint32(len(body)),
		ActualCount: uint32(len(body)),
	}
	argBytes := args.Marshal(s.NDRMode)
	h.Length = uint16(len(argBytes) + len(body))

	out := h.Marshal(s.UUIDFormat)
	out = append(out, argBytes...)
	out = append(out, body...)
	return out
}

// ParsedConnectRequest is the decoded form of a packet BuildConnectRequest
// produced, used by test doubles that stand in for an RTU.
type ParsedConnectRequest struct {
	Header     Header
	AR         ARParams
	Catalogue  Catalogue
	InputIOCR  IOCRDescriptor
	OutputIOCR IOCRDescriptor
}

// ParseConnectRequest decodes a packet built by BuildConnectRequest, given
// the strategy that produced it (the UUID format and NDR mode are not
// self-describing on the wire, matching the strategy iterator's contract
// that both sides agree on the attempted variant per round).
func ParseConnectRequest(b []byte, s strategy.Strategy) (ParsedConnectRequest, error) {
	h, err := ParseHeader(b, s.UUIDFormat)
	if err != nil {
		return ParsedConnectRequest{}, err
	}
	rest := b[HeaderSize:]
	_, body, err := ParseRequestArgs(rest, s.NDRMode)
	if err != nil {
		return ParsedConnectRequest{}, err
	}

	var out ParsedConnectRequest
	out.Header = h

	offset := 0
	out.AR, offset, err = parseARBlock(body, offset)
	if err != nil {
		return ParsedConnectRequest{}, err
	}
	out.Catalogue, offset, err = ParseExpectedSubmoduleBlock(body, offset)
	if err != nil {
		return ParsedConnectRequest{}, err
	}
	out.InputIOCR, offset, err = ParseIOCRBlock(body, offset)
	if err != nil {
		return ParsedConnectRequest{}, err
	}
	out.OutputIOCR, _, err = ParseIOCRBlock(body, offset)
	if err != nil {
		return ParsedConnectRequest{}, err
	}
	return out, nil
}

// ModuleDiffEntry is one slot/subslot difference reported in a Connect
// response.
type ModuleDiffEntry struct {
	Slot    uint16
	Subslot uint16
	Reason  uint8
}

// ModuleDiffBlock lists every difference an RTU reported against the
// expected submodule catalogue.
type ModuleDiffBlock struct {
	Entries []ModuleDiffEntry
}

// RequiresAction reports whether any diff touches an application slot
// (anything other than slot 0, the Device Access Point). Slot-0-only diffs
// are informational and do not block progress to Parameterizing.
func (m ModuleDiffBlock) RequiresAction() bool {
	for _, e := range m.Entries {
		if e.Slot != 0 {
			return true
		}
	}
	return false
}

func parseModuleDiffBlock(b []byte, offset int) (ModuleDiffBlock, int, error) {
	h, body, err := parseBlockHeader(b, offset)
	if err != nil {
		return ModuleDiffBlock{}, 0, err
	}
	if h.Type != BlockModuleDiff {
		return ModuleDiffBlock{}, 0, errUnexpectedBlockType(h.Type, BlockModuleDiff)
	}
	end := blockEnd(h, offset)

	count, n, err := wire.Uint16(b, body)
	if err != nil {
		return ModuleDiffBlock{}, 0, err
	}
	p := body + n
	var m ModuleDiffBlock
	for i := 0; i < int(count); i++ {
		var e ModuleDiffEntry
		e.Slot, n, err = wire.Uint16(b, p)
		if err != nil {
			return ModuleDiffBlock{}, 0, err
		}
		p += n
		e.Subslot, n, err = wire.Uint16(b, p)
		if err != nil {
			return ModuleDiffBlock{}, 0, err
		}
		p += n
		e.Reason, n, err = wire.Uint8(b, p)
		if err != nil {
			return ModuleDiffBlock{}, 0, err
		}
		p += n
		m.Entries = append(m.Entries, e)
	}
	if p > end {
		return ModuleDiffBlock{}, 0, wire.TruncatedFrame
	}
	return m, end, nil
}

// ConnectResult is the outcome of parsing a Connect response.
type ConnectResult struct {
	Status     PNIOStatus
	ModuleDiff *ModuleDiffBlock
}

// ParseConnectResponse decodes a Connect response packet. The NDR response
// header's PNIOStatus is checked first; a non-zero status yields
// UnexpectedPnioError immediately without attempting to parse blocks, since
// an error response carries no ModuleDiff.
func ParseConnectResponse(b []byte, s strategy.Strategy) (ConnectResult, error) {
	h, err := ParseHeader(b, s.UUIDFormat)
	if err != nil {
		return ConnectResult{}, &ConnectError{Kind: TruncatedResponse, Cause: err}
	}
	if h.PacketType == PTFault {
		return ConnectResult{}, &ConnectError{Kind: UnexpectedPnioError}
	}
	rest := b[HeaderSize:]
	args, body, err := ParseResponseArgs(rest)
	if err != nil {
		return ConnectResult{}, &ConnectError{Kind: TruncatedResponse, Cause: err}
	}
	if !args.Status.OK() {
		return ConnectResult{}, &ConnectError{Kind: UnexpectedPnioError, Status: args.Status}
	}

	result := ConnectResult{Status: args.Status}
	if len(body) > 0 {
		diff, _, err := parseModuleDiffBlock(body, 0)
		if err != nil {
			return ConnectResult{}, &ConnectError{Kind: TruncatedResponse, Cause: err}
		}
		result.ModuleDiff = &diff
	}
	return result, nil
}
