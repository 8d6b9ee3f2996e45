// Package bridge implements the command/status bridge: the bounded command
// queue, the status snapshot, and the event stream that present the core's
// state to external collaborators. A submitted command carries a Done
// channel resolving to its outcome; correlation ids are rs/xid values,
// globally unique without coordination.
package bridge

import (
	"errors"

	"github.com/rs/xid"
)

// ErrBackpressure is returned by Queue.Enqueue when the bounded queue is
// full; the caller must retry.
var ErrBackpressure = errors.New("bridge: queue full, backpressure")

// CommandKind enumerates the commands recognized by the bridge.
type CommandKind string

const (
	CommandAddRTU             CommandKind = "add-rtu"
	CommandRemoveRTU          CommandKind = "remove-rtu"
	CommandConnect            CommandKind = "connect"
	CommandDisconnect         CommandKind = "disconnect"
	CommandDiscover           CommandKind = "discover"
	CommandSetActuator        CommandKind = "set-actuator"
	CommandPushUserSyncOne    CommandKind = "push-user-sync-one"
	CommandPushUserSyncAll    CommandKind = "push-user-sync-all"
	CommandPushDeviceConfig   CommandKind = "push-device-config"
	CommandPushSensorConfig   CommandKind = "push-sensor-config"
	CommandPushActuatorConfig CommandKind = "push-actuator-config"
	CommandBindEnrollment     CommandKind = "bind-enrollment"
	CommandReadRecord         CommandKind = "read-record"
	CommandWriteRecord        CommandKind = "write-record"
)

// Command is one structured submission to the core. Station is the
// target RTU's station name, empty for bridge-global commands such as
// Discover. Payload carries the command-specific arguments (e.g. an
// ActuatorCommand for CommandSetActuator, a record.DeviceConfig for
// CommandPushDeviceConfig); handlers type-assert it against the kind.
type Command struct {
	ID      string // correlation id, see NewCommand
	Kind    CommandKind
	Station string
	Payload any

	done chan error
}

// NewCommand builds a Command stamped with a fresh correlation id, ready for
// submission through a Queue.
func NewCommand(kind CommandKind, station string, payload any) *Command {
	return &Command{
		ID:      xid.New().String(),
		Kind:    kind,
		Station: station,
		Payload: payload,
		done:    make(chan error, 1),
	}
}

// Done resolves once the command has been processed (or rejected) by
// whichever task dequeues it; exactly one error is sent, nil on success.
func (c *Command) Done() <-chan error { return c.done }

// Resolve completes the command with err. It must be called exactly once by
// whichever consumer dequeues c.
func (c *Command) Resolve(err error) { c.done <- err; close(c.done) }

// Queue is a bounded FIFO of pending commands.
type Queue struct {
	ch chan *Command
}

// NewQueue returns a Queue that holds up to capacity pending commands.
func NewQueue(capacity int) *Queue {
	return &Queue{ch: make(chan *Command, capacity)}
}

// Enqueue appends cmd to the queue, returning ErrBackpressure immediately
// (never blocking) if the queue is full.
func (q *Queue) Enqueue(cmd *Command) error {
	select {
	case q.ch <- cmd:
		return nil
	default:
		return ErrBackpressure
	}
}

// Dequeue blocks until a command is available or done is closed.
func (q *Queue) Dequeue(done <-chan struct{}) (*Command, bool) {
	select {
	case cmd := <-q.ch:
		return cmd, true
	case <-done:
		return nil, false
	}
}

// Len reports the number of commands currently queued.
func (q *Queue) Len() int { return len(q.ch) }
