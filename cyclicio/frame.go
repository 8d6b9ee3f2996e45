// Package cyclicio implements the cyclic I/O engine: per-IOCR period
// scheduling, output frame construction and input frame parsing over the
// shared raw-Ethernet socket, and the sensor/actuator value codecs that sit
// inside each frame's C-SDU. Concurrency discipline: one mutex per AR, a
// single shared receive socket dispatching by FrameID, and readers of the
// latest sensor values never block a concurrent writer.
package cyclicio

import (
	"time"

	"github.com/wtc-scada/pnioctl/rpcconn"
	"github.com/wtc-scada/pnioctl/wire"
)

// DataStatus is the fixed byte every output frame carries while its AR is
// in the Data state: STATE|VALID|RUN|STATION_PROBLEM_NORMAL. Leaving
// out the station-problem-normal bit causes the RTU to diagnose a station
// problem, so this is a single named constant, never assembled ad hoc at
// each call site.
const DataStatus byte = 0x01 | 0x04 | 0x10 | 0x20 // = 0x35

// MinCSDULength is the minimum cyclic data payload length; shorter C-SDUs
// are zero-padded on send; the receive path does not check the length.
const MinCSDULength = 40

// frameHeaderLen is DstMAC(6) + SrcMAC(6) + VLAN tag(4) + EtherType(2) +
// FrameID(2) = 20 bytes preceding the C-SDU.
const frameHeaderLen = 20

// frameTrailerLen is CycleCounter(2) + DataStatus(1) + TransferStatus(1).
const frameTrailerLen = 4

// BuildOutputFrame assembles one cyclic output frame: Ethernet
// header with an 802.1Q tag carrying iocr's PCP, FrameID, the C-SDU (padded
// to at least MinCSDULength), cycle counter, DataStatus and TransferStatus.
func BuildOutputFrame(dst, src wire.MAC, iocr rpcconn.IOCRDescriptor, csdu []byte, cycleCounter uint16, transferStatus byte) []byte {
	if len(csdu) < MinCSDULength {
		padded := make([]byte, MinCSDULength)
		copy(padded, csdu)
		csdu = padded
	}

	payload := make([]byte, 2+len(csdu)+frameTrailerLen)
	wire.PutUint16(payload, 0, iocr.FrameID)
	copy(payload[2:], csdu)
	trailer := 2 + len(csdu)
	wire.PutUint16(payload, trailer, cycleCounter)
	payload[trailer+2] = DataStatus
	payload[trailer+3] = transferStatus

	tag := iocr.Tag
	return wire.BuildEthernet(dst, src, &tag, wire.EtherTypeProfinet, payload)
}

// ParsedInputFrame is a decoded cyclic input frame.
type ParsedInputFrame struct {
	FrameID        uint16
	CSDU           []byte
	CycleCounter   uint16
	DataStatus     byte
	TransferStatus byte
}

// ParseInputFrame detects the VLAN tag at offset 12 (never assuming a fixed
// EtherType offset) and decodes the trailing cycle counter/status bytes
//.
func ParseInputFrame(frame []byte) (ParsedInputFrame, error) {
	eth, err := wire.ParseEthernet(frame)
	if err != nil {
		return ParsedInputFrame{}, err
	}
	if eth.EtherType != wire.EtherTypeProfinet {
		return ParsedInputFrame{}, wire.TruncatedFrame
	}
	body := frame[eth.PayloadOffset:]
	if len(body) < 2+frameTrailerLen {
		return ParsedInputFrame{}, wire.TruncatedFrame
	}
	frameID, _, _ := wire.Uint16(body, 0)
	csduEnd := len(body) - frameTrailerLen
	csdu := body[2:csduEnd]

	cycleCounter, _, _ := wire.Uint16(body, csduEnd)
	dataStatus := body[csduEnd+2]
	transferStatus := body[csduEnd+3]

	return ParsedInputFrame{
		FrameID:        frameID,
		CSDU:           csdu,
		CycleCounter:   cycleCounter,
		DataStatus:     dataStatus,
		TransferStatus: transferStatus,
	}, nil
}

// CycleChanged reports whether next differs from prev under 16-bit
// wrap-around comparison, used only for change detection (never for
// ordering, since the counter wraps).
func CycleChanged(prev, next uint16) bool { return prev != next }

// Period returns the independent send period for an IOCR negotiated with
// the given timing parameters: send_clock_factor * reduction_ratio *
// 31.25µs.
func Period(sendClockFactor, reductionRatio uint16) time.Duration {
	return time.Duration(sendClockFactor) * time.Duration(reductionRatio) * 31250 * time.Nanosecond
}

// DueToSend reports whether period has elapsed since lastSend, the send
// path's per-tick check.
func DueToSend(now, lastSend time.Time, period time.Duration) bool {
	return now.Sub(lastSend) >= period
}
