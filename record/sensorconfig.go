package record

import "github.com/wtc-scada/pnioctl/wire"

const sensorConfigVersion uint8 = 1

// sensorConfigBodyLen is Slot(2) + Subslot(2) + SensorType(1) +
// ScaleNumerator(4) + ScaleDenominator(4) + Offset(4) + AlarmLow(4) +
// AlarmHigh(4) + Reserved(3) = 28 bytes.
const sensorConfigBodyLen = 28

// SensorType identifies the physical quantity a sensor reports.
type SensorType uint8

const (
	SensorFlowRate SensorType = iota
	SensorPressure
	SensorLevel
	SensorTurbidity
	SensorPH
	SensorChlorineResidual
	SensorTemperature
)

// SensorConfig is the 0xF842 write payload scaling one sensor subslot's raw
// cyclic reading into engineering units and bounding its alarm thresholds
//.
type SensorConfig struct {
	Slot             uint16
	Subslot          uint16
	Type             SensorType
	ScaleNumerator   int32
	ScaleDenominator int32
	Offset           int32
	AlarmLow         int32
	AlarmHigh        int32
}

// MarshalSensorConfig encodes cfg into its wire frame, stamping the CRC over
// the body.
func MarshalSensorConfig(cfg SensorConfig) []byte {
	body := make([]byte, sensorConfigBodyLen)
	wire.PutUint16(body, 0, cfg.Slot)
	wire.PutUint16(body, 2, cfg.Subslot)
	body[4] = byte(cfg.Type)
	wire.PutUint32(body, 5, uint32(cfg.ScaleNumerator))
	wire.PutUint32(body, 9, uint32(cfg.ScaleDenominator))
	wire.PutUint32(body, 13, uint32(cfg.Offset))
	wire.PutUint32(body, 17, uint32(cfg.AlarmLow))
	wire.PutUint32(body, 21, uint32(cfg.AlarmHigh))
	// bytes 25..27 reserved, left zero.
	return buildWithCRC(sensorConfigVersion, 0, body)
}

// ParseSensorConfig decodes and CRC/version-validates a sensor configuration
// frame.
func ParseSensorConfig(b []byte) (SensorConfig, error) {
	h, body, err := parseHeader(b)
	if err != nil {
		return SensorConfig{}, err
	}
	if len(body) < sensorConfigBodyLen {
		return SensorConfig{}, wire.TruncatedFrame
	}
	body = body[:sensorConfigBodyLen]
	if err := validateBody(h, body, sensorConfigVersion); err != nil {
		return SensorConfig{}, err
	}

	slot, _, _ := wire.Uint16(body, 0)
	subslot, _, _ := wire.Uint16(body, 2)
	num, _, _ := wire.Uint32(body, 5)
	den, _, _ := wire.Uint32(body, 9)
	off, _, _ := wire.Uint32(body, 13)
	low, _, _ := wire.Uint32(body, 17)
	high, _, _ := wire.Uint32(body, 21)
	return SensorConfig{
		Slot:             slot,
		Subslot:          subslot,
		Type:             SensorType(body[4]),
		ScaleNumerator:   int32(num),
		ScaleDenominator: int32(den),
		Offset:           int32(off),
		AlarmLow:         int32(low),
		AlarmHigh:        int32(high),
	}, nil
}
