package rpcconn

import "github.com/wtc-scada/pnioctl/wire"

// Direction classifies a submodule's data flow.
type Direction uint8

const (
	DirNone Direction = iota
	DirInput
	DirOutput
)

// SubslotEntry is one data-description leaf of the expected submodule
// catalogue. DataLength zero marks a no-IO (DAP) entry.
type SubslotEntry struct {
	Subslot        uint16
	ModuleIdent    uint32
	SubmoduleIdent uint32
	Direction      Direction
	DataLength     uint16
}

// SlotEntry groups the subslots mounted at one slot.
type SlotEntry struct {
	Slot      uint16
	Submodules []SubslotEntry
}

// API groups the slots under one PROFINET API number. Almost every
// installation uses API 0 exclusively; the nesting exists because the wire
// format requires it.
type API struct {
	Number uint32
	Slots  []SlotEntry
}

// Catalogue is the full expected-submodule structure transmitted in a
// Connect request: API → slot → subslot → data-description.
type Catalogue struct {
	APIs []API
}

// MarshalExpectedSubmoduleBlock encodes c as a BlockExpectedSubmoduleReq
// block and appends it to b.
func MarshalExpectedSubmoduleBlock(b []byte, c Catalogue) []byte {
	b, lenOff := putBlockHeader(b, BlockExpectedSubmoduleReq, 1, 0)
	b = wire.AppendUint16(b, uint16(len(c.APIs)))
	for _, api := range c.APIs {
		b = wire.AppendUint32(b, api.Number)
		b = wire.AppendUint16(b, uint16(len(api.Slots)))
		for _, slot := range api.Slots {
			b = wire.AppendUint16(b, slot.Slot)
			b = wire.AppendUint16(b, uint16(len(slot.Submodules)))
			for _, sub := range slot.Submodules {
				b = wire.AppendUint16(b, sub.Subslot)
				b = wire.AppendUint32(b, sub.ModuleIdent)
				b = wire.AppendUint32(b, sub.SubmoduleIdent)
				b = append(b, byte(sub.Direction))
				b = wire.AppendUint16(b, sub.DataLength)
			}
		}
	}
	patchBlockLength(b, lenOff)
	return b
}

// ParseExpectedSubmoduleBlock decodes a BlockExpectedSubmoduleReq block
// starting at offset, returning the catalogue and the offset immediately
// following the block.
func ParseExpectedSubmoduleBlock(b []byte, offset int) (Catalogue, int, error) {
	h, body, err := parseBlockHeader(b, offset)
	if err != nil {
		return Catalogue{}, 0, err
	}
	if h.Type != BlockExpectedSubmoduleReq {
		return Catalogue{}, 0, errUnexpectedBlockType(h.Type, BlockExpectedSubmoduleReq)
	}
	end := blockEnd(h, offset)

	numAPIs, n, err := wire.Uint16(b, body)
	if err != nil {
		return Catalogue{}, 0, err
	}
	p := body + n

	var cat Catalogue
	for i := 0; i < int(numAPIs); i++ {
		var api API
		api.Number, n, err = wire.Uint32(b, p)
		if err != nil {
			return Catalogue{}, 0, err
		}
		p += n

		numSlots, n, err := wire.Uint16(b, p)
		if err != nil {
			return Catalogue{}, 0, err
		}
		p += n

		for s := 0; s < int(numSlots); s++ {
			var slot SlotEntry
			slot.Slot, n, err = wire.Uint16(b, p)
			if err != nil {
				return Catalogue{}, 0, err
			}
			p += n

			numSubs, n, err := wire.Uint16(b, p)
			if err != nil {
				return Catalogue{}, 0, err
			}
			p += n

			for m := 0; m < int(numSubs); m++ {
				var sub SubslotEntry
				sub.Subslot, n, err = wire.Uint16(b, p)
				if err != nil {
					return Catalogue{}, 0, err
				}
				p += n
				sub.ModuleIdent, n, err = wire.Uint32(b, p)
				if err != nil {
					return Catalogue{}, 0, err
				}
				p += n
				sub.SubmoduleIdent, n, err = wire.Uint32(b, p)
				if err != nil {
					return Catalogue{}, 0, err
				}
				p += n
				dir, n, err := wire.Uint8(b, p)
				if err != nil {
					return Catalogue{}, 0, err
				}
				sub.Direction = Direction(dir)
				p += n
				sub.DataLength, n, err = wire.Uint16(b, p)
				if err != nil {
					return Catalogue{}, 0, err
				}
				p += n

				slot.Submodules = append(slot.Submodules, sub)
			}
			api.Slots = append(api.Slots, slot)
		}
		cat.APIs = append(cat.APIs, api)
	}
	if p > end {
		return Catalogue{}, 0, wire.TruncatedFrame
	}
	return cat, end, nil
}
