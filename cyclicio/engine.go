package cyclicio

import (
	"fmt"
	"sync"
	"time"

	"github.com/wtc-scada/pnioctl/ar"
	"github.com/wtc-scada/pnioctl/rawnet"
	"github.com/wtc-scada/pnioctl/rpcconn"
	"github.com/wtc-scada/pnioctl/strategy"
	"github.com/wtc-scada/pnioctl/wire"
)

// Binding ties one AR's negotiated IOCRs to the addresses and per-direction
// state the engine needs to drive its cyclic traffic.
// Timing is the timing profile negotiated for this AR's session (carried
// here because the AR state machine does not retain it once Connect
// succeeds; the engine is its sole consumer).
type Binding struct {
	StationName string
	AR          *ar.AR
	DstMAC      wire.MAC
	SrcMAC      wire.MAC
	Timing      strategy.TimingParams

	InputStats  Stats
	OutputStats Stats

	mu             sync.Mutex
	lastInputCycle uint16
	haveInputCycle bool
	lastOutputSend time.Time
	cycleCounter   uint16
	transferStatus byte

	// latest holds the most recent decoded sensor readings, keyed by
	// slot<<16|subslot.
	latest sync.Map // key uint32 -> SensorReading
	// pending holds actuator commands queued for the next send.
	pending sync.Map // key uint32 -> ActuatorCommand
}

func subslotKey(slot, subslot uint16) uint32 { return uint32(slot)<<16 | uint32(subslot) }

// SetCommand queues an actuator command for the next output frame. Returns
// ar.RtuOffline, without queuing, if the AR is in Error state.
func (b *Binding) SetCommand(slot, subslot uint16, cmd ActuatorCommand) error {
	if err := b.AR.DispatchGate(); err != nil {
		return err
	}
	b.pending.Store(subslotKey(slot, subslot), cmd)
	return nil
}

// Latest returns the most recently decoded sensor reading for slot/subslot.
func (b *Binding) Latest(slot, subslot uint16) (SensorReading, bool) {
	v, ok := b.latest.Load(subslotKey(slot, subslot))
	if !ok {
		return SensorReading{}, false
	}
	return v.(SensorReading), true
}

// Engine drives cyclic I/O for every registered AR over one shared raw
// socket, dispatching inbound frames by FrameID.
type Engine struct {
	sock rawnet.Socket

	mu        sync.RWMutex
	byFrameID map[uint16]*Binding // both the input and output FrameID map here
}

// New returns an Engine driving sock.
func New(sock rawnet.Socket) *Engine {
	return &Engine{sock: sock, byFrameID: make(map[uint16]*Binding)}
}

// Register adds b to the dispatch table under its AR's negotiated input and
// output FrameIDs.
func (e *Engine) Register(b *Binding) {
	var inID, outID uint16
	b.AR.WithIOCRs(func(in, out *rpcconn.IOCRDescriptor) {
		inID, outID = in.FrameID, out.FrameID
	})
	e.mu.Lock()
	defer e.mu.Unlock()
	e.byFrameID[inID] = b
	e.byFrameID[outID] = b
}

// Unregister removes every FrameID binding for stationName.
func (e *Engine) Unregister(stationName string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, b := range e.byFrameID {
		if b.StationName == stationName {
			delete(e.byFrameID, id)
		}
	}
}

// Tick drives the send path for every registered AR in Data state whose
// output IOCR is due.
func (e *Engine) Tick(now time.Time) {
	e.mu.RLock()
	bindings := make(map[string]*Binding, len(e.byFrameID))
	for _, b := range e.byFrameID {
		bindings[b.StationName] = b
	}
	e.mu.RUnlock()

	for _, b := range bindings {
		e.sendIfDue(b, now)
	}
}

func (e *Engine) sendIfDue(b *Binding, now time.Time) {
	if b.AR.State() != ar.Data {
		return
	}
	var out rpcconn.IOCRDescriptor
	b.AR.WithIOCRs(func(in, o *rpcconn.IOCRDescriptor) { out = *o })

	b.mu.Lock()
	defer b.mu.Unlock()
	period := Period(b.Timing.SendClockFactor, b.Timing.ReductionRatio)
	if period == 0 || !DueToSend(now, b.lastOutputSend, period) {
		return
	}

	csdu := make([]byte, out.FrameSize)
	for _, p := range out.Placements {
		if p.DataLength == 0 {
			continue
		}
		cmd := CommandOff
		if v, ok := b.pending.Load(subslotKey(p.Slot, p.Subslot)); ok {
			cmd = v.(ActuatorCommand)
		}
		PackActuatorCommand(csdu, p, cmd)
	}

	b.cycleCounter++
	frame := BuildOutputFrame(b.DstMAC, b.SrcMAC, out, csdu, b.cycleCounter, b.transferStatus)
	if err := e.sock.WriteFrame(frame); err != nil {
		b.OutputStats.RecordDecodeError()
		return
	}
	b.lastOutputSend = now
	b.OutputStats.RecordSent()
}

// Dispatch handles one inbound Ethernet frame: parses the PROFINET cyclic
// layer, locates the target AR by FrameID and updates its latest sensor
// values.
func (e *Engine) Dispatch(frame []byte) error {
	in, err := ParseInputFrame(frame)
	if err != nil {
		return err
	}

	e.mu.RLock()
	b, ok := e.byFrameID[in.FrameID]
	e.mu.RUnlock()
	if !ok {
		return nil // not ours; another FrameID range owns it
	}

	b.InputStats.RecordReceived()

	var placements []rpcconn.Placement
	b.AR.WithIOCRs(func(inIOCR, out *rpcconn.IOCRDescriptor) { placements = inIOCR.Placements })

	b.mu.Lock()
	if b.haveInputCycle && !CycleChanged(b.lastInputCycle, in.CycleCounter) {
		b.InputStats.RecordCycleMiss()
	}
	b.lastInputCycle = in.CycleCounter
	b.haveInputCycle = true
	b.mu.Unlock()

	readings, err := ExtractSensorReadings(in.CSDU, placements)
	if err != nil {
		b.InputStats.RecordDecodeError()
		return fmt.Errorf("cyclicio: %s: %w", b.StationName, err)
	}
	for _, r := range readings {
		b.latest.Store(subslotKey(r.Slot, r.Subslot), r)
	}
	return nil
}
