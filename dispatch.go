package pnioctl

import (
	"fmt"

	"github.com/wtc-scada/pnioctl/bridge"
	"github.com/wtc-scada/pnioctl/cyclicio"
	"github.com/wtc-scada/pnioctl/record"
	"github.com/wtc-scada/pnioctl/rpcconn"
	"github.com/wtc-scada/pnioctl/strategy"
)

// SetActuatorPayload is the bridge.Command.Payload for CommandSetActuator.
type SetActuatorPayload struct {
	Slot, Subslot uint16
	Command       cyclicio.ActuatorCommand
}

// ConnectPayload is the bridge.Command.Payload for CommandConnect.
type ConnectPayload struct {
	VendorID uint16
	Hints    strategy.VendorHints
}

// RecordPayload is the bridge.Command.Payload for CommandReadRecord and
// CommandWriteRecord.
type RecordPayload struct {
	Address rpcconn.RecordAddress
	Data    []byte // write only

	// Result receives ReadRecord's data on success; nil for a write command
	// or when the read failed.
	Result *[]byte
}

// AddRTUPayload is the bridge.Command.Payload for CommandAddRTU.
type AddRTUPayload struct {
	Config StationConfig
}

// Run drains the command queue until done is closed, dispatching each
// Command to the matching Controller operation and resolving it with the
// outcome. Callers typically run this in its own goroutine alongside
// Tick's cyclic send loop.
func (c *Controller) Run(done <-chan struct{}) {
	for {
		cmd, ok := c.Queue.Dequeue(done)
		if !ok {
			return
		}
		cmd.Resolve(c.dispatch(cmd))
	}
}

// dispatch executes one command synchronously and returns its outcome. It
// never panics on a payload type mismatch; a wrong payload type is reported
// as an error like any other bad request.
func (c *Controller) dispatch(cmd *bridge.Command) error {
	switch cmd.Kind {
	case bridge.CommandAddRTU:
		p, ok := cmd.Payload.(AddRTUPayload)
		if !ok {
			return fmt.Errorf("pnioctl: add-rtu: bad payload type %T", cmd.Payload)
		}
		_, err := c.AddRTU(p.Config)
		return err

	case bridge.CommandRemoveRTU:
		c.RemoveRTU(cmd.Station)
		return nil

	case bridge.CommandConnect:
		p, ok := cmd.Payload.(ConnectPayload)
		if !ok && cmd.Payload != nil {
			return fmt.Errorf("pnioctl: connect: bad payload type %T", cmd.Payload)
		}
		return c.Connect(cmd.Station, p.Hints, p.VendorID)

	case bridge.CommandDisconnect:
		return c.Disconnect(cmd.Station)

	case bridge.CommandDiscover:
		return c.Discover()

	case bridge.CommandSetActuator:
		p, ok := cmd.Payload.(SetActuatorPayload)
		if !ok {
			return fmt.Errorf("pnioctl: set-actuator: bad payload type %T", cmd.Payload)
		}
		return c.SetActuator(cmd.Station, p.Slot, p.Subslot, p.Command)

	case bridge.CommandPushUserSyncOne:
		p, ok := cmd.Payload.(record.UserRecord)
		if !ok {
			return fmt.Errorf("pnioctl: push-user-sync-one: bad payload type %T", cmd.Payload)
		}
		return c.PushUserSyncOne(cmd.Station, p)

	case bridge.CommandPushUserSyncAll:
		p, ok := cmd.Payload.([]record.UserRecord)
		if !ok {
			return fmt.Errorf("pnioctl: push-user-sync-all: bad payload type %T", cmd.Payload)
		}
		return c.PushUserSyncAll(cmd.Station, p)

	case bridge.CommandPushDeviceConfig:
		p, ok := cmd.Payload.(record.DeviceConfig)
		if !ok {
			return fmt.Errorf("pnioctl: push-device-config: bad payload type %T", cmd.Payload)
		}
		return c.PushDeviceConfig(cmd.Station, p)

	case bridge.CommandPushSensorConfig:
		p, ok := cmd.Payload.(record.SensorConfig)
		if !ok {
			return fmt.Errorf("pnioctl: push-sensor-config: bad payload type %T", cmd.Payload)
		}
		return c.PushSensorConfig(cmd.Station, p)

	case bridge.CommandPushActuatorConfig:
		p, ok := cmd.Payload.(record.ActuatorConfig)
		if !ok {
			return fmt.Errorf("pnioctl: push-actuator-config: bad payload type %T", cmd.Payload)
		}
		return c.PushActuatorConfig(cmd.Station, p)

	case bridge.CommandBindEnrollment:
		p, ok := cmd.Payload.(record.Enrollment)
		if !ok {
			return fmt.Errorf("pnioctl: bind-enrollment: bad payload type %T", cmd.Payload)
		}
		return c.BindEnrollment(cmd.Station, p)

	case bridge.CommandReadRecord:
		p, ok := cmd.Payload.(RecordPayload)
		if !ok {
			return fmt.Errorf("pnioctl: read-record: bad payload type %T", cmd.Payload)
		}
		data, err := c.ReadRecord(cmd.Station, p.Address)
		if err != nil {
			return err
		}
		if p.Result != nil {
			*p.Result = data
		}
		return nil

	case bridge.CommandWriteRecord:
		p, ok := cmd.Payload.(RecordPayload)
		if !ok {
			return fmt.Errorf("pnioctl: write-record: bad payload type %T", cmd.Payload)
		}
		return c.WriteRecord(cmd.Station, p.Address, p.Data)

	default:
		return fmt.Errorf("pnioctl: unrecognized command kind %q", cmd.Kind)
	}
}
