package wire

// DCPBlock is a single option/suboption/payload unit inside a DCP PDU
//. The 2-byte length field on the wire carries the payload length before
// the optional pad byte; a pad byte is appended whenever that length is odd.
type DCPBlock struct {
	Option    uint8
	Suboption uint8
	Payload   []byte
}

// Marshal appends the block's wire encoding to b and returns the result.
func (blk DCPBlock) Marshal(b []byte) []byte {
	b = append(b, blk.Option, blk.Suboption)
	var lenBuf [2]byte
	PutUint16(lenBuf[:], 0, uint16(len(blk.Payload)))
	b = append(b, lenBuf[:]...)
	b = append(b, blk.Payload...)
	if len(blk.Payload)%2 != 0 {
		b = append(b, 0)
	}
	return b
}

// ParseDCPBlock reads one block starting at offset and returns it along with
// the offset of the byte following the block (including any pad byte).
func ParseDCPBlock(b []byte, offset int) (DCPBlock, int, error) {
	if offset < 0 || offset+4 > len(b) {
		return DCPBlock{}, 0, TruncatedFrame
	}
	option := b[offset]
	suboption := b[offset+1]
	length, _, err := Uint16(b, offset+2)
	if err != nil {
		return DCPBlock{}, 0, err
	}
	start := offset + 4
	end := start + int(length)
	if end > len(b) {
		return DCPBlock{}, 0, TruncatedFrame
	}
	payload := make([]byte, length)
	copy(payload, b[start:end])

	next := end
	if length%2 != 0 {
		next++
	}
	return DCPBlock{Option: option, Suboption: suboption, Payload: payload}, next, nil
}
