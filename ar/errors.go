package ar

import (
	"fmt"

	"github.com/wtc-scada/pnioctl/rpcconn"
)

// InvalidTransition reports an event that does not apply in the AR's
// current state. An event outside the transition graph is a protocol
// violation, not a silently-ignored no-op.
type InvalidTransition struct {
	From  State
	Event string
}

func (e *InvalidTransition) Error() string {
	return fmt.Sprintf("ar: event %s invalid in state %s", e.Event, e.From)
}

// StrategyExhausted reports that every strategy in the table failed across
// MaxConnectAttempts attempts.
type StrategyExhausted struct {
	StationName string
	Attempts    int
}

func (e *StrategyExhausted) Error() string {
	return fmt.Sprintf("ar: %s: strategy table exhausted after %d attempts", e.StationName, e.Attempts)
}

// RtuOffline is returned to every outbound actuator command while the AR is
// in Error state.
type RtuOffline struct {
	StationName string
}

func (e *RtuOffline) Error() string {
	return fmt.Sprintf("ar: %s: RTU offline, command not dispatched", e.StationName)
}

// UnexpectedControlCommand reports an IOCControlReq indication that did not
// carry the ControlCommand bit the caller expected.
type UnexpectedControlCommand struct {
	Got rpcconn.ControlCommand
}

func (e *UnexpectedControlCommand) Error() string {
	return fmt.Sprintf("ar: unexpected control command %#04x", uint16(e.Got))
}
