package wire

// EtherTypeProfinet is the EtherType reserved for PROFINET real-time frames
// and DCP.
const EtherTypeProfinet uint16 = 0x8892

// EtherTypeVLAN is the 802.1Q tag protocol identifier.
const EtherTypeVLAN uint16 = 0x8100

// MAC is a 6-octet hardware address.
type MAC [6]byte

// DCPMulticast is the PROFINET DCP multicast destination.
var DCPMulticast = MAC{0x01, 0x0E, 0xCF, 0x00, 0x00, 0x00}

// VLANTag carries the 802.1Q priority code point and VLAN identifier.
type VLANTag struct {
	PCP uint8  // priority code point, 0..7
	VID uint16 // VLAN identifier, 0..4095
}

// BuildEthernet writes an Ethernet frame header: destination, source,
// an optional 802.1Q tag and the EtherType, followed by payload. It returns
// the full frame.
func BuildEthernet(dst, src MAC, tag *VLANTag, etherType uint16, payload []byte) []byte {
	size := 14
	if tag != nil {
		size += 4
	}
	frame := make([]byte, size+len(payload))
	copy(frame[0:6], dst[:])
	copy(frame[6:12], src[:])
	offset := 12
	if tag != nil {
		PutUint16(frame, offset, EtherTypeVLAN)
		tci := uint16(tag.PCP&7)<<13 | tag.VID&0x0FFF
		PutUint16(frame, offset+2, tci)
		offset += 4
	}
	PutUint16(frame, offset, etherType)
	copy(frame[offset+2:], payload)
	return frame
}

// EthernetHeader is a parsed Ethernet header with the VLAN tag detected, not
// assumed: the receiver checks for the 0x8100 tag at offset 12 and advances
// 4 bytes before reading the EtherType, rather than hardcoding the EtherType
// at a fixed offset.
type EthernetHeader struct {
	Dst, Src  MAC
	Tag       *VLANTag // nil when untagged
	EtherType uint16
	// PayloadOffset is the index of the first payload byte following this
	// header within the original frame.
	PayloadOffset int
}

// ParseEthernet detects a VLAN tag at offset 12 and returns the parsed
// header. It never assumes EtherType is at a fixed offset of 14.
func ParseEthernet(frame []byte) (EthernetHeader, error) {
	if len(frame) < 14 {
		return EthernetHeader{}, TruncatedFrame
	}
	var h EthernetHeader
	copy(h.Dst[:], frame[0:6])
	copy(h.Src[:], frame[6:12])

	tpid, _, err := Uint16(frame, 12)
	if err != nil {
		return EthernetHeader{}, err
	}
	offset := 12
	if tpid == EtherTypeVLAN {
		tci, _, err := Uint16(frame, 14)
		if err != nil {
			return EthernetHeader{}, err
		}
		h.Tag = &VLANTag{PCP: uint8(tci >> 13 & 7), VID: tci & 0x0FFF}
		offset += 4
	}
	etherType, _, err := Uint16(frame, offset)
	if err != nil {
		return EthernetHeader{}, err
	}
	h.EtherType = etherType
	h.PayloadOffset = offset + 2
	return h, nil
}
