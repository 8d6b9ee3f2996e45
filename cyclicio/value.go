package cyclicio

import (
	"log"
	"sync"

	"github.com/wtc-scada/pnioctl/rpcconn"
	"github.com/wtc-scada/pnioctl/wire"
)

// Trace gates verbose per-frame logging.
var Trace bool

// SensorReading is one decoded subslot value.
type SensorReading struct {
	Slot, Subslot uint16
	Value         float32
	Quality       wire.Quality
	IOPS          wire.Quality
}

// ExtractSensorReadings decodes every input placement's 5-byte value plus
// its trailing IOPS byte from csdu. A placement with DataLength 0
// (a no-IO DAP entry) is skipped: it carries only an IOPS byte, no sensor
// value.
func ExtractSensorReadings(csdu []byte, placements []rpcconn.Placement) ([]SensorReading, error) {
	var out []SensorReading
	for _, p := range placements {
		if p.DataLength == 0 {
			continue
		}
		v, q, ok, err := wire.UnpackFloatQuality(csdu, int(p.DataOffset))
		if err != nil {
			return nil, err
		}
		if !ok && Trace {
			log.Printf("cyclicio: slot %d/%d: undefined quality encoding, treated as BAD", p.Slot, p.Subslot)
		}
		iops, _, err := wire.Uint8(csdu, int(p.IOPSOffset))
		if err != nil {
			return nil, err
		}
		out = append(out, SensorReading{
			Slot: p.Slot, Subslot: p.Subslot,
			Value: v, Quality: q, IOPS: wire.Quality(iops),
		})
	}
	return out, nil
}

// ActuatorCommand is one decoded/encoded output value.
type ActuatorCommand byte

const (
	CommandOff ActuatorCommand = 0x00
	CommandOn  ActuatorCommand = 0x01
	CommandPWM ActuatorCommand = 0x02
)

// PackActuatorCommand writes the command byte followed by a reserved
// 0x00 byte at p's data offset inside csdu — exactly 2 bytes, never the
// 4-byte layout an earlier draft of the format used.
func PackActuatorCommand(csdu []byte, p rpcconn.Placement, cmd ActuatorCommand) error {
	if int(p.DataOffset)+2 > len(csdu) {
		return wire.TruncatedFrame
	}
	csdu[p.DataOffset] = byte(cmd)
	csdu[p.DataOffset+1] = 0x00
	return nil
}

// Stats are the per-IOCR counters (frames sent and received, cycle misses,
// decode errors) feeding the command/
// status bridge's diagnostic bundle and Prometheus collector.
type Stats struct {
	mu           sync.Mutex
	framesSent   uint64
	framesRecv   uint64
	cycleMisses  uint64
	decodeErrors uint64
}

func (s *Stats) RecordSent()        { s.mu.Lock(); s.framesSent++; s.mu.Unlock() }
func (s *Stats) RecordReceived()    { s.mu.Lock(); s.framesRecv++; s.mu.Unlock() }
func (s *Stats) RecordCycleMiss()   { s.mu.Lock(); s.cycleMisses++; s.mu.Unlock() }
func (s *Stats) RecordDecodeError() { s.mu.Lock(); s.decodeErrors++; s.mu.Unlock() }

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() (sent, recv, cycleMisses, decodeErrors uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.framesSent, s.framesRecv, s.cycleMisses, s.decodeErrors
}
