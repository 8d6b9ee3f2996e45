// Package record implements the acyclic record-addressed read/write service
// layered over an established AR: record index dispatch, CRC-validated
// vendor-defined payloads, the device/sensor/actuator configuration writes,
// user-credentials full-sync and the enrollment bind/unbind/rebind/status
// operation.
package record

import "github.com/wtc-scada/pnioctl/wire"

// Index identifies one of the record-addressed services.
type Index uint16

const (
	IndexIdentification     Index = 0xAFF0 // I&M0, read
	IndexRealIdentification Index = 0xE001 // discovered module list, read
	IndexUserSync           Index = 0xF840 // user credentials sync, write
	IndexDeviceConfig       Index = 0xF841 // device configuration, write
	IndexSensorConfig       Index = 0xF842 // sensor configuration, write
	IndexActuatorConfig     Index = 0xF843 // actuator configuration, write
	IndexStatus             Index = 0xF844 // RTU status/health, read
	IndexEnrollment         Index = 0xF845 // enrollment bind/unbind/rebind/status, r/w
)

// headerSize is the generic vendor payload prefix: version(1) flags(1)
// crc16(2). Enrollment uses its own 8-byte header (see
// enrollment.go).
const headerSize = 4

// header is the generic version/flags/crc prefix every non-enrollment
// record payload carries.
type header struct {
	Version uint8
	Flags   uint8
	CRC     uint16
}

func parseHeader(b []byte) (header, []byte, error) {
	if len(b) < headerSize {
		return header{}, nil, wire.TruncatedFrame
	}
	crc, _, _ := wire.Uint16(b, 2)
	return header{Version: b[0], Flags: b[1], CRC: crc}, b[headerSize:], nil
}

func marshalHeader(h header, body []byte) []byte {
	out := make([]byte, headerSize+len(body))
	out[0] = h.Version
	out[1] = h.Flags
	wire.PutUint16(out, 2, h.CRC)
	copy(out[headerSize:], body)
	return out
}

// validateBody computes and checks the CRC of body against h.CRC, and
// compares h.Version against wantVersion. Version mismatches and CRC
// mismatches are distinguished so callers can apply the "do not release the
// AR" rule for either without confusing the two.
func validateBody(h header, body []byte, wantVersion uint8) error {
	if h.Version != wantVersion {
		return &VersionMismatch{Got: h.Version, Want: wantVersion}
	}
	if wire.CRC16(body) != h.CRC {
		return &ChecksumError{}
	}
	return nil
}

// buildWithCRC stamps version and the CRC of body, then returns the full
// wire encoding header+body.
func buildWithCRC(version uint8, flags uint8, body []byte) []byte {
	h := header{Version: version, Flags: flags, CRC: wire.CRC16(body)}
	return marshalHeader(h, body)
}
