package record

import "github.com/wtc-scada/pnioctl/wire"

const deviceConfigVersion uint8 = 1

// deviceConfigBodyLen is StationName[32] + SensorCount(1) + ActuatorCount(1)
// + AuthorityMode(1) + WatchdogMs(4) + Timestamp(4) + Reserved(5) = 48,
// making the full frame (header+body) 52 bytes with the CRC covering bytes
// 4..51.
const deviceConfigBodyLen = 48

const stationNameLen = 32

// AuthorityMode selects how much local autonomy the RTU is granted while
// the controller is unreachable.
type AuthorityMode uint8

const (
	AuthorityAutonomous AuthorityMode = 0
	AuthoritySupervised AuthorityMode = 1
	AuthorityLockdown   AuthorityMode = 2
)

// DeviceConfig is the 0xF841 write payload.
type DeviceConfig struct {
	StationName   string
	SensorCount   uint8
	ActuatorCount uint8
	AuthorityMode AuthorityMode
	WatchdogMs    uint32
	Timestamp     uint32
}

// MarshalDeviceConfig encodes cfg into its 52-byte wire frame, stamping the
// CRC over the 48-byte body.
func MarshalDeviceConfig(cfg DeviceConfig) []byte {
	body := make([]byte, deviceConfigBodyLen)
	name := []byte(cfg.StationName)
	if len(name) > stationNameLen {
		name = name[:stationNameLen]
	}
	copy(body[0:stationNameLen], name)
	body[32] = cfg.SensorCount
	body[33] = cfg.ActuatorCount
	body[34] = byte(cfg.AuthorityMode)
	wire.PutUint32(body, 35, cfg.WatchdogMs)
	wire.PutUint32(body, 39, cfg.Timestamp)
	// bytes 43..47 reserved, left zero.

	return buildWithCRC(deviceConfigVersion, 0, body)
}

// ParseDeviceConfig decodes and CRC/version-validates a device configuration
// frame.
func ParseDeviceConfig(b []byte) (DeviceConfig, error) {
	h, body, err := parseHeader(b)
	if err != nil {
		return DeviceConfig{}, err
	}
	if len(body) < deviceConfigBodyLen {
		return DeviceConfig{}, wire.TruncatedFrame
	}
	body = body[:deviceConfigBodyLen]
	if err := validateBody(h, body, deviceConfigVersion); err != nil {
		return DeviceConfig{}, err
	}

	name := body[0:stationNameLen]
	end := 0
	for end < len(name) && name[end] != 0 {
		end++
	}
	watchdogMs, _, _ := wire.Uint32(body, 35)
	timestamp, _, _ := wire.Uint32(body, 39)
	return DeviceConfig{
		StationName:   string(name[:end]),
		SensorCount:   body[32],
		ActuatorCount: body[33],
		AuthorityMode: AuthorityMode(body[34]),
		WatchdogMs:    watchdogMs,
		Timestamp:     timestamp,
	}, nil
}
