package rpcconn

import "github.com/wtc-scada/pnioctl/wire"

// IOCRDirection distinguishes the two cyclic communication relationships
// every AR negotiates.
type IOCRDirection uint8

const (
	IOCRInput IOCRDirection = iota
	IOCROutput
)

// TagHeaderInput and TagHeaderOutput are the TagHeader field values the
// IOCR block declares for the input (PCP 6) and output (PCP 5) relationship
// respectively. They parameterize the IOCR block only; the 802.1Q tag on
// the real-time frames themselves carries PCP 6 in both directions (see
// BuildIOCR).
const (
	TagHeaderInput  uint16 = 0xC000
	TagHeaderOutput uint16 = 0xA000
)

func (d IOCRDirection) tagHeader() uint16 {
	if d == IOCROutput {
		return TagHeaderOutput
	}
	return TagHeaderInput
}

// FrameIDInputBase and FrameIDOutputBase bound the 0xC000/0xC001 FrameID
// range IOCRs are assigned from.
const (
	FrameIDInputBase  uint16 = 0xC000
	FrameIDOutputBase uint16 = 0xC001
)

// PlacementRole distinguishes an IOData entry (the producer's data plus its
// IOPS byte) from an IOCS entry (a consumer status byte only). A no-IO
// submodule appears as IOData in the input IOCR and as IOCS in the output
// IOCR, never both in the same role.
type PlacementRole uint8

const (
	RoleIOData PlacementRole = iota
	RoleIOCS
)

func (r PlacementRole) String() string {
	if r == RoleIOCS {
		return "IOCS"
	}
	return "IOData"
}

// Placement is one sub-frame position inside an IOCR. DataOffset and
// IOPSOffset are computed by ComputePlacements, never supplied by a caller,
// so the frame-offset policy lives in exactly one place. Role is assigned
// by BuildIOCR from the IOCR's direction.
type Placement struct {
	Slot       uint16
	Subslot    uint16
	Role       PlacementRole
	DataOffset uint16
	DataLength uint16
	IOPSOffset uint16
}

// end returns the offset one past this placement's IOPS byte, i.e. the
// exclusive upper bound of the interval it occupies.
func (p Placement) end() uint16 { return p.DataOffset + p.DataLength + 1 }

// ComputePlacements assigns frame offsets to entries in declaration order:
// each placement advances the running offset by data_length+1, reserving
// the trailing IOPS byte. A zero-length entry still occupies one
// byte — its IOPS — never zero.
func ComputePlacements(entries []SubslotEntry, slot uint16) []Placement {
	var out []Placement
	var offset uint16
	for _, e := range entries {
		p := Placement{
			Slot:       slot,
			Subslot:    e.Subslot,
			DataOffset: offset,
			DataLength: e.DataLength,
			IOPSOffset: offset + e.DataLength,
		}
		out = append(out, p)
		offset = p.end()
	}
	return out
}

// Disjoint reports whether every placement's [DataOffset, end) interval is
// pairwise non-overlapping.
func Disjoint(placements []Placement) bool {
	for i := range placements {
		for j := range placements {
			if i == j {
				continue
			}
			a, b := placements[i], placements[j]
			if a.DataOffset < b.end() && b.DataOffset < a.end() {
				return false
			}
		}
	}
	return true
}

// IOCRDescriptor is the negotiated cyclic communication relationship
// descriptor an AR owns. The RPC connect engine fills FrameID, Tag and
// Placements when building the Connect request; the cyclic I/O engine reads
// them under the AR's mutual-exclusion guard.
type IOCRDescriptor struct {
	Direction  IOCRDirection
	FrameID    uint16
	Tag        wire.VLANTag
	Placements []Placement
	FrameSize  uint16 // total bytes including every placement's IOPS byte
}

// BuildIOCR derives an IOCRDescriptor from a catalogue's direction-filtered
// submodules at the given slot, assigning FrameID from base and placements
// via ComputePlacements. A no-IO entry is marked IOData in the input IOCR
// and IOCS in the output IOCR, and the real-time frame tag carries PCP 6 in
// both directions; only the IOCR block's TagHeader field (see tagHeader)
// distinguishes the output relationship with PCP 5.
func BuildIOCR(dir IOCRDirection, frameID uint16, entries []SubslotEntry, slot uint16) IOCRDescriptor {
	placements := ComputePlacements(entries, slot)
	var size uint16
	for i, p := range placements {
		if dir == IOCROutput && p.DataLength == 0 {
			placements[i].Role = RoleIOCS
		}
		if p.end() > size {
			size = p.end()
		}
	}
	return IOCRDescriptor{
		Direction:  dir,
		FrameID:    frameID,
		Tag:        wire.VLANTag{PCP: 6},
		Placements: placements,
		FrameSize:  size,
	}
}

// MarshalIOCRBlock encodes iocr as a BlockIOCRReq block and appends it to b.
func MarshalIOCRBlock(b []byte, iocr IOCRDescriptor) []byte {
	b, lenOff := putBlockHeader(b, BlockIOCRReq, 1, 0)
	b = append(b, byte(iocr.Direction))
	b = wire.AppendUint16(b, iocr.FrameID)
	b = wire.AppendUint16(b, iocr.Direction.tagHeader())
	b = wire.AppendUint16(b, iocr.FrameSize)
	b = wire.AppendUint16(b, uint16(len(iocr.Placements)))
	for _, p := range iocr.Placements {
		b = wire.AppendUint16(b, p.Slot)
		b = wire.AppendUint16(b, p.Subslot)
		b = append(b, byte(p.Role))
		b = wire.AppendUint16(b, p.DataOffset)
		b = wire.AppendUint16(b, p.DataLength)
		b = wire.AppendUint16(b, p.IOPSOffset)
	}
	patchBlockLength(b, lenOff)
	return b
}

// ParseIOCRBlock decodes a BlockIOCRReq block at offset.
func ParseIOCRBlock(b []byte, offset int) (IOCRDescriptor, int, error) {
	h, body, err := parseBlockHeader(b, offset)
	if err != nil {
		return IOCRDescriptor{}, 0, err
	}
	if h.Type != BlockIOCRReq {
		return IOCRDescriptor{}, 0, errUnexpectedBlockType(h.Type, BlockIOCRReq)
	}
	end := blockEnd(h, offset)

	dir, n, err := wire.Uint8(b, body)
	if err != nil {
		return IOCRDescriptor{}, 0, err
	}
	p := body + n
	var iocr IOCRDescriptor
	iocr.Direction = IOCRDirection(dir)

	iocr.FrameID, n, err = wire.Uint16(b, p)
	if err != nil {
		return IOCRDescriptor{}, 0, err
	}
	p += n

	// The TagHeader field restates the direction (0xC000/0xA000); the frame
	// tag itself is PCP 6 for both relationships.
	_, n, err = wire.Uint16(b, p)
	if err != nil {
		return IOCRDescriptor{}, 0, err
	}
	p += n
	iocr.Tag = wire.VLANTag{PCP: 6}

	iocr.FrameSize, n, err = wire.Uint16(b, p)
	if err != nil {
		return IOCRDescriptor{}, 0, err
	}
	p += n

	count, n, err := wire.Uint16(b, p)
	if err != nil {
		return IOCRDescriptor{}, 0, err
	}
	p += n

	for i := 0; i < int(count); i++ {
		var pl Placement
		pl.Slot, n, err = wire.Uint16(b, p)
		if err != nil {
			return IOCRDescriptor{}, 0, err
		}
		p += n
		pl.Subslot, n, err = wire.Uint16(b, p)
		if err != nil {
			return IOCRDescriptor{}, 0, err
		}
		p += n
		role, n, err := wire.Uint8(b, p)
		if err != nil {
			return IOCRDescriptor{}, 0, err
		}
		pl.Role = PlacementRole(role)
		p += n
		pl.DataOffset, n, err = wire.Uint16(b, p)
		if err != nil {
			return IOCRDescriptor{}, 0, err
		}
		p += n
		pl.DataLength, n, err = wire.Uint16(b, p)
		if err != nil {
			return IOCRDescriptor{}, 0, err
		}
		p += n
		pl.IOPSOffset, n, err = wire.Uint16(b, p)
		if err != nil {
			return IOCRDescriptor{}, 0, err
		}
		p += n
		iocr.Placements = append(iocr.Placements, pl)
	}
	if p > end {
		return IOCRDescriptor{}, 0, wire.TruncatedFrame
	}
	return iocr, end, nil
}
