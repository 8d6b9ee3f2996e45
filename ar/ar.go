// Package ar implements the per-RTU Application Relationship state machine:
// the sequence Idle → Discovering → Connecting → Parameterizing →
// WaitAppReady → Data → Releasing → Idle, with Error reachable from
// Connecting, Parameterizing and Data. Each transition is an
// explicit method on a synchronous, mutex-guarded struct rather than a
// goroutine owning a channel select, since the connect engine and the
// cyclic loop both drive it rather than a single transport connection.
package ar

import (
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"github.com/wtc-scada/pnioctl/rpcconn"
	"github.com/wtc-scada/pnioctl/strategy"
	"github.com/wtc-scada/pnioctl/wire"
)

// State is one node of the AR transition graph.
type State uint8

const (
	Idle State = iota
	Discovering
	Connecting
	Parameterizing
	WaitAppReady
	Data
	Releasing
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Discovering:
		return "Discovering"
	case Connecting:
		return "Connecting"
	case Parameterizing:
		return "Parameterizing"
	case WaitAppReady:
		return "WaitAppReady"
	case Data:
		return "Data"
	case Releasing:
		return "Releasing"
	case Error:
		return "Error"
	default:
		return "Unknown"
	}
}

// Observer is notified of every state transition, the way dcp.Observer is
// notified of cache updates. A nil Observer disables notification.
type Observer interface {
	StateChanged(stationName string, from, to State)
}

// newUUID generates a fresh AR-UUID or activity-UUID. Using
// gofrs/uuid instead of a hand-rolled generator keeps the random-bit
// collection and RFC 4122 version/variant bits in one audited place; only
// the raw 16 bytes escape this function, since wire.UUID.SwapFields
// operates on [16]byte, not on the library's type.
func newUUID() wire.UUID {
	id, err := uuid.NewV4()
	if err != nil {
		// uuid.NewV4 only fails if the system RNG is broken, a condition no
		// retry or fallback within this process can repair.
		panic("ar: system entropy source failed: " + err.Error())
	}
	return wire.UUID(id)
}

// AR is one Application Relationship session with one RTU. The
// zero value is not usable; construct with New.
type AR struct {
	Config
	StationName string

	mu             sync.Mutex
	state          State
	transitionedAt time.Time

	store    strategy.StrategyStore
	iterator *strategy.Iterator

	arUUID       wire.UUID
	activityUUID wire.UUID
	sessionKey   uint16

	inputIOCR  rpcconn.IOCRDescriptor
	outputIOCR rpcconn.IOCRDescriptor

	connectAttempts int
	prmEndRetries   int
	releaseRetries  int

	observer Observer
}

// New returns an AR for stationName in the Idle state, restoring the
// strategy iterator from store's last-successful index for this station
//.
func New(stationName string, cfg Config, store strategy.StrategyStore, observer Observer) (*AR, error) {
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	if store == nil {
		store = strategy.NewMemStore()
	}
	return &AR{
		Config:         cfg,
		StationName:    stationName,
		state:          Idle,
		transitionedAt: time.Time{},
		store:          store,
		iterator:       strategy.NewIterator(store.LastSuccessful(stationName)),
		observer:       observer,
	}, nil
}

// State returns the current state.
func (a *AR) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// TransitionedAt returns when the current state was entered.
func (a *AR) TransitionedAt() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.transitionedAt
}

// ARUUID returns the AR-UUID generated for the current session, the zero
// UUID before DeviceDiscovered has run. Callers use this to match an inbound
// indication's ObjectUUID back to the station that owns it.
func (a *AR) ARUUID() wire.UUID {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.arUUID
}

// ActiveStrategy returns the strategy variant the current session connected
// with, so acyclic record transactions over an established AR use
// the same UUID/NDR wire conventions Connect negotiated.
func (a *AR) ActiveStrategy() strategy.Strategy {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.iterator.Current()
}

// setState must be called with a.mu held.
func (a *AR) setState(s State, now time.Time) {
	from := a.state
	a.state = s
	a.transitionedAt = now
	if a.observer != nil && from != s {
		a.observer.StateChanged(a.StationName, from, s)
	}
}

// WithIOCRs runs fn with exclusive access to the AR's input and output
// IOCR descriptors.
func (a *AR) WithIOCRs(fn func(in, out *rpcconn.IOCRDescriptor)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(&a.inputIOCR, &a.outputIOCR)
}

// RequestDiscovery moves Idle → Discovering.
func (a *AR) RequestDiscovery(now time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Idle {
		return &InvalidTransition{From: a.state, Event: "RequestDiscovery"}
	}
	a.setState(Discovering, now)
	return nil
}

// DeviceDiscovered moves Discovering → Connecting once the device cache
// holds the target, generating fresh AR/activity UUIDs and applying
// any known vendor hint to the strategy iterator before the first attempt
// of this session.
func (a *AR) DeviceDiscovered(now time.Time, vendorID uint16, hints strategy.VendorHints) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Discovering {
		return &InvalidTransition{From: a.state, Event: "DeviceDiscovered"}
	}
	if hints != nil {
		a.iterator.ApplyVendorHint(hints, vendorID)
	}
	a.arUUID = newUUID()
	a.activityUUID = newUUID()
	a.connectAttempts = 0
	a.setState(Connecting, now)
	return nil
}

// ConnectParams is what BeginConnect hands the caller to build the next
// Connect attempt via rpcconn.BuildConnectRequest.
type ConnectParams struct {
	Strategy     strategy.Strategy
	ARUUID       wire.UUID
	ActivityUUID wire.UUID
	SessionKey   uint16
	Timing       strategy.TimingParams
}

// BeginConnect must be called while Connecting. It returns the parameters
// for the next attempt, per the strategy iterator's current position.
func (a *AR) BeginConnect(now time.Time) (ConnectParams, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Connecting {
		return ConnectParams{}, &InvalidTransition{From: a.state, Event: "BeginConnect"}
	}
	a.iterator.Begin(now)
	a.connectAttempts++
	s := a.iterator.Current()
	return ConnectParams{
		Strategy:     s,
		ARUUID:       a.arUUID,
		ActivityUUID: a.activityUUID,
		SessionKey:   a.sessionKey,
		Timing:       strategy.Params(s.TimingProfile),
	}, nil
}

// ConnectSucceeded records the attempt's success and moves Connecting →
// Parameterizing, unless the response carries a ModuleDiff touching an
// application slot, in which case the session has no automatic recovery
// path and moves to Error with ModuleDiffNeedsAction surfaced to the
// caller.
func (a *AR) ConnectSucceeded(now time.Time, in, out rpcconn.IOCRDescriptor, result rpcconn.ConnectResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Connecting {
		return &InvalidTransition{From: a.state, Event: "ConnectSucceeded"}
	}
	if result.ModuleDiff != nil && result.ModuleDiff.RequiresAction() {
		a.setState(Error, now)
		return &rpcconn.ConnectError{Kind: rpcconn.ModuleDiffNeedsAction}
	}
	a.iterator.RecordSuccess()
	a.store.SetLastSuccessful(a.StationName, a.iterator.LastSuccessful())
	a.inputIOCR, a.outputIOCR = in, out
	a.setState(Parameterizing, now)
	return nil
}

// ConnectFailed advances the strategy on a recoverable failure, or moves to
// Error once MaxConnectAttempts is exhausted.
func (a *AR) ConnectFailed(now time.Time, kind rpcconn.Failure) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Connecting {
		return &InvalidTransition{From: a.state, Event: "ConnectFailed"}
	}
	if a.connectAttempts >= a.MaxConnectAttempts {
		a.setState(Error, now)
		return &StrategyExhausted{StationName: a.StationName, Attempts: a.connectAttempts}
	}
	a.iterator.Advance()
	return nil
}

// PrmEndSucceeded moves Parameterizing → WaitAppReady.
func (a *AR) PrmEndSucceeded(now time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Parameterizing {
		return &InvalidTransition{From: a.state, Event: "PrmEndSucceeded"}
	}
	a.prmEndRetries = 0
	a.setState(WaitAppReady, now)
	return nil
}

// PrmEndFailed retries PrmEnd within the current strategy up to
// PrmEndRetryMax times before moving to Error.
func (a *AR) PrmEndFailed(now time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Parameterizing {
		return &InvalidTransition{From: a.state, Event: "PrmEndFailed"}
	}
	a.prmEndRetries++
	if a.prmEndRetries > a.PrmEndRetryMax {
		a.setState(Error, now)
	}
	return nil
}

// ApplicationReady handles an inbound IOCControlReq(ApplicationReady)
// indication: validates the bit, builds the DONE response, and moves
// WaitAppReady → Data.
func (a *AR) ApplicationReady(now time.Time, ind rpcconn.IOCControlIndication) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != WaitAppReady {
		return nil, &InvalidTransition{From: a.state, Event: "ApplicationReady"}
	}
	if ind.ControlCommand&rpcconn.CtrlApplicationReady == 0 {
		return nil, &UnexpectedControlCommand{Got: ind.ControlCommand}
	}
	resp := rpcconn.BuildIOCControlResponse(ind)
	a.setState(Data, now)
	return resp, nil
}

// RequestRelease moves Data → Releasing on operator request.
func (a *AR) RequestRelease(now time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Data {
		return &InvalidTransition{From: a.state, Event: "RequestRelease"}
	}
	a.releaseRetries = 0
	a.setState(Releasing, now)
	return nil
}

// DataHoldExpired moves Data → Releasing when no cyclic frame has been
// refreshed within the negotiated data-hold window.
func (a *AR) DataHoldExpired(now time.Time) error {
	return a.RequestRelease(now)
}

// WatchdogExpired moves Data → Error on watchdog timeout.
func (a *AR) WatchdogExpired(now time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Data {
		return &InvalidTransition{From: a.state, Event: "WatchdogExpired"}
	}
	a.setState(Error, now)
	return nil
}

// ReleaseSucceeded moves Releasing → Idle on a Release response.
func (a *AR) ReleaseSucceeded(now time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Releasing {
		return &InvalidTransition{From: a.state, Event: "ReleaseSucceeded"}
	}
	a.setState(Idle, now)
	return nil
}

// ReleaseTimedOut retries Release within ReleaseRetryMax, then forces Idle
// regardless. Releasing has no Error path, since the RTU side is assumed
// to time out the AR itself.
func (a *AR) ReleaseTimedOut(now time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Releasing {
		return &InvalidTransition{From: a.state, Event: "ReleaseTimedOut"}
	}
	a.releaseRetries++
	if a.releaseRetries > a.ReleaseRetryMax {
		a.setState(Idle, now)
	}
	return nil
}

// Reset clears a terminal Error state back to Idle, the only way out of
// Error.
func (a *AR) Reset(now time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != Error {
		return &InvalidTransition{From: a.state, Event: "Reset"}
	}
	a.setState(Idle, now)
	return nil
}

// DispatchGate reports whether an outbound actuator command may be
// dispatched. An AR in Error state rejects every command with RtuOffline
// without dispatching it.
func (a *AR) DispatchGate() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == Error {
		return &RtuOffline{StationName: a.StationName}
	}
	return nil
}
