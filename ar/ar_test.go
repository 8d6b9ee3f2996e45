package ar

import (
	"errors"
	"testing"
	"time"

	"github.com/wtc-scada/pnioctl/rpcconn"
	"github.com/wtc-scada/pnioctl/strategy"
	"github.com/wtc-scada/pnioctl/wire"
)

type countingObserver struct {
	transitions []string
}

func (o *countingObserver) StateChanged(stationName string, from, to State) {
	o.transitions = append(o.transitions, from.String()+"->"+to.String())
}

func newTestAR(t *testing.T) (*AR, *countingObserver) {
	t.Helper()
	obs := &countingObserver{}
	a, err := New("rtu-tank-1", Config{}, strategy.NewMemStore(), obs)
	if err != nil {
		t.Fatal(err)
	}
	return a, obs
}

func driveToWaitAppReady(t *testing.T, a *AR, now time.Time) {
	t.Helper()
	if err := a.RequestDiscovery(now); err != nil {
		t.Fatal(err)
	}
	if err := a.DeviceDiscovered(now, 0x0272, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := a.BeginConnect(now); err != nil {
		t.Fatal(err)
	}
	if err := a.ConnectSucceeded(now, rpcconn.IOCRDescriptor{}, rpcconn.IOCRDescriptor{}, rpcconn.ConnectResult{}); err != nil {
		t.Fatal(err)
	}
	if err := a.PrmEndSucceeded(now); err != nil {
		t.Fatal(err)
	}
}

func TestFullHandshakeReachesData(t *testing.T) {
	a, obs := newTestAR(t)
	now := time.Now()
	driveToWaitAppReady(t, a, now)
	if a.State() != WaitAppReady {
		t.Fatalf("got state %s, want WaitAppReady", a.State())
	}

	ind := rpcconn.IOCControlIndication{
		Header:         rpcconn.Header{DataRep: [3]byte{rpcconn.DREP, 0, 0}, InterfaceUUID: wire.UUID{1, 2, 3}},
		ControlCommand: rpcconn.CtrlApplicationReady,
	}
	resp, err := a.ApplicationReady(now, ind)
	if err != nil {
		t.Fatal(err)
	}
	if a.State() != Data {
		t.Fatalf("got state %s, want Data", a.State())
	}

	respH, err := rpcconn.ParseHeader(resp, strategy.AsStored)
	if err != nil {
		t.Fatal(err)
	}
	if respH.InterfaceUUID != ind.Header.InterfaceUUID {
		t.Errorf("response interface UUID mismatch")
	}

	want := []string{"Idle->Discovering", "Discovering->Connecting", "Connecting->Parameterizing", "Parameterizing->WaitAppReady", "WaitAppReady->Data"}
	if len(obs.transitions) != len(want) {
		t.Fatalf("got transitions %v, want %v", obs.transitions, want)
	}
	for i, w := range want {
		if obs.transitions[i] != w {
			t.Errorf("transition %d: got %s, want %s", i, obs.transitions[i], w)
		}
	}
}

func TestInvalidTransitionRejected(t *testing.T) {
	a, _ := newTestAR(t)
	now := time.Now()
	err := a.PrmEndSucceeded(now)
	if err == nil {
		t.Fatal("expected error calling PrmEndSucceeded from Idle")
	}
	var it *InvalidTransition
	if !errors.As(err, &it) {
		t.Fatalf("got %T, want *InvalidTransition", err)
	}
	if a.State() != Idle {
		t.Errorf("state must not change on rejected transition, got %s", a.State())
	}
}

// An AR in Error state rejects every actuator command with RtuOffline,
// without dispatching it.
func TestDispatchGateRejectsWhenError(t *testing.T) {
	a, _ := newTestAR(t)
	now := time.Now()
	driveToWaitAppReady(t, a, now)
	if err := a.WatchdogExpired(now); err == nil {
		t.Fatal("WatchdogExpired from WaitAppReady should be rejected (only valid from Data)")
	}

	ind := rpcconn.IOCControlIndication{ControlCommand: rpcconn.CtrlApplicationReady}
	if _, err := a.ApplicationReady(now, ind); err != nil {
		t.Fatal(err)
	}
	if err := a.DispatchGate(); err != nil {
		t.Fatalf("expected dispatch allowed in Data state, got %v", err)
	}

	if err := a.WatchdogExpired(now); err != nil {
		t.Fatal(err)
	}
	if a.State() != Error {
		t.Fatalf("got state %s, want Error", a.State())
	}

	err := a.DispatchGate()
	if err == nil {
		t.Fatal("expected RtuOffline in Error state")
	}
	var offline *RtuOffline
	if !errors.As(err, &offline) {
		t.Fatalf("got %T, want *RtuOffline", err)
	}
}

func TestConnectFailureAdvancesStrategyThenExhausts(t *testing.T) {
	cfg := Config{MaxConnectAttempts: 2}
	a, err := New("rtu-exhaust", cfg, strategy.NewMemStore(), nil)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	if err := a.RequestDiscovery(now); err != nil {
		t.Fatal(err)
	}
	if err := a.DeviceDiscovered(now, 0, nil); err != nil {
		t.Fatal(err)
	}

	if _, err := a.BeginConnect(now); err != nil {
		t.Fatal(err)
	}
	if err := a.ConnectFailed(now, rpcconn.TransportTimeout); err != nil {
		t.Fatal(err)
	}
	if a.State() != Connecting {
		t.Fatalf("got state %s after first failure, want Connecting", a.State())
	}

	if _, err := a.BeginConnect(now); err != nil {
		t.Fatal(err)
	}
	err = a.ConnectFailed(now, rpcconn.TransportTimeout)
	if err == nil {
		t.Fatal("expected StrategyExhausted after MaxConnectAttempts failures")
	}
	var exhausted *StrategyExhausted
	if !errors.As(err, &exhausted) {
		t.Fatalf("got %T, want *StrategyExhausted", err)
	}
	if a.State() != Error {
		t.Fatalf("got state %s, want Error", a.State())
	}
}

func TestModuleDiffOnApplicationSlotMovesToError(t *testing.T) {
	a, _ := newTestAR(t)
	now := time.Now()
	if err := a.RequestDiscovery(now); err != nil {
		t.Fatal(err)
	}
	if err := a.DeviceDiscovered(now, 0, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := a.BeginConnect(now); err != nil {
		t.Fatal(err)
	}

	diff := &rpcconn.ModuleDiffBlock{Entries: []rpcconn.ModuleDiffEntry{{Slot: 2, Subslot: 1, Reason: 1}}}
	err := a.ConnectSucceeded(now, rpcconn.IOCRDescriptor{}, rpcconn.IOCRDescriptor{}, rpcconn.ConnectResult{ModuleDiff: diff})
	if err == nil {
		t.Fatal("expected ModuleDiffNeedsAction error")
	}
	if a.State() != Error {
		t.Fatalf("got state %s, want Error", a.State())
	}
}

func TestModuleDiffOnSlotZeroOnlyProceedsToParameterizing(t *testing.T) {
	a, _ := newTestAR(t)
	now := time.Now()
	if err := a.RequestDiscovery(now); err != nil {
		t.Fatal(err)
	}
	if err := a.DeviceDiscovered(now, 0, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := a.BeginConnect(now); err != nil {
		t.Fatal(err)
	}

	diff := &rpcconn.ModuleDiffBlock{Entries: []rpcconn.ModuleDiffEntry{{Slot: 0, Subslot: 1, Reason: 1}}}
	err := a.ConnectSucceeded(now, rpcconn.IOCRDescriptor{}, rpcconn.IOCRDescriptor{}, rpcconn.ConnectResult{ModuleDiff: diff})
	if err != nil {
		t.Fatal(err)
	}
	if a.State() != Parameterizing {
		t.Fatalf("got state %s, want Parameterizing", a.State())
	}
}
