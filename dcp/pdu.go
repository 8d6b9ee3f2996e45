package dcp

import (
	"github.com/wtc-scada/pnioctl/wire"
)

// PROFINET reserves these FrameIDs for DCP service PDUs, carried directly in
// the EtherType=0x8892 payload (no IP/UDP underneath, unlike RPC).
const (
	FrameIDIdentifyRequest  uint16 = 0xFEFE
	FrameIDIdentifyResponse uint16 = 0xFEFF
	FrameIDGetSetRequest    uint16 = 0xFEFD
	FrameIDGetSetResponse   uint16 = 0xFEFD
)

// ServiceType distinguishes a request from a successful or failed response.
type ServiceType uint8

const (
	TypeRequest        ServiceType = 0x00
	TypeResponseOK     ServiceType = 0x01
	TypeResponseFailed ServiceType = 0x05
)

// PDU is a parsed DCP protocol data unit.
type PDU struct {
	FrameID       uint16
	Service       ServiceID
	Type          ServiceType
	Xid           uint32
	ResponseDelay uint16
	Blocks        []wire.DCPBlock
}

// Marshal encodes the PDU header and blocks.
func (p PDU) Marshal() []byte {
	var payload []byte
	for _, blk := range p.Blocks {
		payload = blk.Marshal(payload)
	}

	b := make([]byte, 2+1+1+4+2+2, 2+1+1+4+2+2+len(payload))
	wire.PutUint16(b, 0, p.FrameID)
	b[2] = byte(p.Service)
	b[3] = byte(p.Type)
	wire.PutUint32(b, 4, p.Xid)
	wire.PutUint16(b, 8, p.ResponseDelay)
	wire.PutUint16(b, 10, uint16(len(payload)))
	return append(b, payload...)
}

// ParsePDU decodes a DCP PDU starting at the EtherType payload (i.e. frame
// already stripped of its Ethernet/VLAN header by wire.ParseEthernet).
func ParsePDU(payload []byte) (PDU, error) {
	if len(payload) < 12 {
		return PDU{}, wire.TruncatedFrame
	}
	frameID, _, err := wire.Uint16(payload, 0)
	if err != nil {
		return PDU{}, err
	}
	xid, _, err := wire.Uint32(payload, 4)
	if err != nil {
		return PDU{}, err
	}
	delay, _, err := wire.Uint16(payload, 8)
	if err != nil {
		return PDU{}, err
	}
	dataLen, _, err := wire.Uint16(payload, 10)
	if err != nil {
		return PDU{}, err
	}

	p := PDU{
		FrameID:       frameID,
		Service:       ServiceID(payload[2]),
		Type:          ServiceType(payload[3]),
		Xid:           xid,
		ResponseDelay: delay,
	}

	offset := 12
	end := offset + int(dataLen)
	if end > len(payload) {
		return PDU{}, wire.TruncatedFrame
	}
	for offset < end {
		blk, next, err := wire.ParseDCPBlock(payload, offset)
		if err != nil {
			return PDU{}, err
		}
		p.Blocks = append(p.Blocks, blk)
		offset = next
	}
	return p, nil
}
