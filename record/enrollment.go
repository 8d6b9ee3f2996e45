package record

import "github.com/wtc-scada/pnioctl/wire"

// enrollmentMagic marks an enrollment frame, ASCII "ENRL".
const enrollmentMagic uint32 = 0x454E524C

const enrollmentVersion uint8 = 1

// enrollmentHeaderLen is magic(4) + version(1) + op(1) + crc16(2) = 8,
// distinct from the generic 4-byte header used by every other record.
const enrollmentHeaderLen = 8

// enrollmentBodyLen is Token[64] + ControllerID(4) + Reserved(4) = 72,
// giving an 80-byte frame with the CRC over bytes 8..79.
const enrollmentBodyLen = 72

const tokenLen = 64

// EnrollmentOp selects the enrollment operation carried by a 0xF845 frame
//.
type EnrollmentOp uint8

const (
	OpBind EnrollmentOp = iota
	OpUnbind
	OpRebind
	OpStatus
)

// Enrollment is the 0xF845 bind/unbind/rebind/status payload.
type Enrollment struct {
	Op           EnrollmentOp
	Token        string
	ControllerID uint32
}

type enrollmentHeader struct {
	Magic   uint32
	Version uint8
	Op      EnrollmentOp
	CRC     uint16
}

func parseEnrollmentHeader(b []byte) (enrollmentHeader, []byte, error) {
	if len(b) < enrollmentHeaderLen {
		return enrollmentHeader{}, nil, wire.TruncatedFrame
	}
	magic, _, _ := wire.Uint32(b, 0)
	crc, _, _ := wire.Uint16(b, 6)
	return enrollmentHeader{
		Magic:   magic,
		Version: b[4],
		Op:      EnrollmentOp(b[5]),
		CRC:     crc,
	}, b[enrollmentHeaderLen:], nil
}

// MarshalEnrollment encodes e into its 80-byte wire frame.
func MarshalEnrollment(e Enrollment) []byte {
	body := make([]byte, enrollmentBodyLen)
	token := []byte(e.Token)
	if len(token) > tokenLen {
		token = token[:tokenLen]
	}
	copy(body[0:tokenLen], token)
	wire.PutUint32(body, tokenLen, e.ControllerID)
	// bytes 68..71 reserved, left zero.

	crc := wire.CRC16(body)
	out := make([]byte, enrollmentHeaderLen+len(body))
	wire.PutUint32(out, 0, enrollmentMagic)
	out[4] = enrollmentVersion
	out[5] = byte(e.Op)
	wire.PutUint16(out, 6, crc)
	copy(out[enrollmentHeaderLen:], body)
	return out
}

// ParseEnrollment decodes and validates an enrollment frame. Magic mismatches
// and CRC mismatches are reported as distinct error types,
// since only the latter indicates in-flight corruption of an otherwise
// correctly addressed frame.
func ParseEnrollment(b []byte) (Enrollment, error) {
	h, body, err := parseEnrollmentHeader(b)
	if err != nil {
		return Enrollment{}, err
	}
	if h.Magic != enrollmentMagic {
		return Enrollment{}, &InvalidMagicError{Got: h.Magic}
	}
	if len(body) < enrollmentBodyLen {
		return Enrollment{}, wire.TruncatedFrame
	}
	body = body[:enrollmentBodyLen]
	if h.Version != enrollmentVersion {
		return Enrollment{}, &VersionMismatch{Got: h.Version, Want: enrollmentVersion}
	}
	if wire.CRC16(body) != h.CRC {
		return Enrollment{}, &ChecksumError{}
	}

	token := body[0:tokenLen]
	end := 0
	for end < len(token) && token[end] != 0 {
		end++
	}
	controllerID, _, _ := wire.Uint32(body, tokenLen)
	return Enrollment{
		Op:           h.Op,
		Token:        string(token[:end]),
		ControllerID: controllerID,
	}, nil
}
