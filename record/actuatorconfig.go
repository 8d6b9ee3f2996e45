package record

import "github.com/wtc-scada/pnioctl/wire"

const actuatorConfigVersion uint8 = 1

// actuatorConfigBodyLen is Slot(2) + Subslot(2) + ActuatorType(1) +
// FailSafeCommand(1) + MinOnMs(4) + MaxRunMs(4) + Reserved(2) = 16 bytes
//.
const actuatorConfigBodyLen = 16

// ActuatorType identifies the class of controlled equipment an actuator
// subslot commands.
type ActuatorType uint8

const (
	ActuatorValve ActuatorType = iota
	ActuatorPump
	ActuatorDosingPump
	ActuatorBlower
)

// ActuatorConfig is the 0xF843 write payload bounding one actuator
// subslot's command envelope: FailSafeCommand is applied by the RTU on
// watchdog expiry, MinOnMs/MaxRunMs bound duty cycle.
type ActuatorConfig struct {
	Slot            uint16
	Subslot         uint16
	Type            ActuatorType
	FailSafeCommand uint8
	MinOnMs         uint32
	MaxRunMs        uint32
}

// MarshalActuatorConfig encodes cfg into its wire frame, stamping the CRC
// over the body.
func MarshalActuatorConfig(cfg ActuatorConfig) []byte {
	body := make([]byte, actuatorConfigBodyLen)
	wire.PutUint16(body, 0, cfg.Slot)
	wire.PutUint16(body, 2, cfg.Subslot)
	body[4] = byte(cfg.Type)
	body[5] = cfg.FailSafeCommand
	wire.PutUint32(body, 6, cfg.MinOnMs)
	wire.PutUint32(body, 10, cfg.MaxRunMs)
	// bytes 14..15 reserved, left zero.
	return buildWithCRC(actuatorConfigVersion, 0, body)
}

// ParseActuatorConfig decodes and CRC/version-validates an actuator
// configuration frame.
func ParseActuatorConfig(b []byte) (ActuatorConfig, error) {
	h, body, err := parseHeader(b)
	if err != nil {
		return ActuatorConfig{}, err
	}
	if len(body) < actuatorConfigBodyLen {
		return ActuatorConfig{}, wire.TruncatedFrame
	}
	body = body[:actuatorConfigBodyLen]
	if err := validateBody(h, body, actuatorConfigVersion); err != nil {
		return ActuatorConfig{}, err
	}

	slot, _, _ := wire.Uint16(body, 0)
	subslot, _, _ := wire.Uint16(body, 2)
	minOn, _, _ := wire.Uint32(body, 6)
	maxRun, _, _ := wire.Uint32(body, 10)
	return ActuatorConfig{
		Slot:            slot,
		Subslot:         subslot,
		Type:            ActuatorType(body[4]),
		FailSafeCommand: body[5],
		MinOnMs:         minOn,
		MaxRunMs:        maxRun,
	}, nil
}
