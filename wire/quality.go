package wire

import "math"

// Quality is the application-level classification of a sensor reading. It is
// distinct from the protocol IOPS byte that accompanies each IOData entry.
type Quality uint8

// Defined Quality values. Any byte not in this set is treated as Bad.
const (
	Good         Quality = 0x00
	Uncertain    Quality = 0x40
	Bad          Quality = 0x80
	NotConnected Quality = 0xC0
)

// String returns a short label, or "BAD(undefined encoding)" for a byte value
// outside the four defined states.
func (q Quality) String() string {
	switch q {
	case Good:
		return "GOOD"
	case Uncertain:
		return "UNCERTAIN"
	case Bad:
		return "BAD"
	case NotConnected:
		return "NOT_CONNECTED"
	default:
		return "BAD(undefined encoding)"
	}
}

// PackFloatQuality writes 5 bytes at offset: a big-endian IEEE-754 single
// precision value followed by the one-byte quality.
func PackFloatQuality(b []byte, offset int, v float32, q Quality) (int, error) {
	if offset < 0 || offset+5 > len(b) {
		return 0, TruncatedFrame
	}
	if _, err := PutUint32(b, offset, math.Float32bits(v)); err != nil {
		return 0, err
	}
	b[offset+4] = byte(q)
	return 5, nil
}

// UnpackFloatQuality reads the 5-byte layout PackFloatQuality writes. An
// encoding outside the four defined Quality values is reported back as Bad,
// with ok=false so the caller can log the undefined encoding once.
func UnpackFloatQuality(b []byte, offset int) (v float32, q Quality, ok bool, err error) {
	bits, _, err := Uint32(b, offset)
	if err != nil {
		return 0, 0, false, err
	}
	raw, _, err := Uint8(b, offset+4)
	if err != nil {
		return 0, 0, false, err
	}
	v = math.Float32frombits(bits)
	switch Quality(raw) {
	case Good, Uncertain, Bad, NotConnected:
		return v, Quality(raw), true, nil
	default:
		return v, Bad, false, nil
	}
}
