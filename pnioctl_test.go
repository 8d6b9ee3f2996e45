package pnioctl

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/wtc-scada/pnioctl/ar"
	"github.com/wtc-scada/pnioctl/rawnet"
	"github.com/wtc-scada/pnioctl/rpcconn"
	"github.com/wtc-scada/pnioctl/strategy"
	"github.com/wtc-scada/pnioctl/wire"
)

// alwaysFailTransport fails every Exchange immediately, letting a test drive
// an AR to strategy-list exhaustion without waiting out real timeouts.
type alwaysFailTransport struct{}

func (alwaysFailTransport) Exchange(*net.UDPAddr, []byte, time.Duration) ([]byte, error) {
	return nil, errors.New("stub: no responder")
}
func (alwaysFailTransport) Reply(*net.UDPAddr, []byte) error { return nil }
func (alwaysFailTransport) Indications() <-chan Indication   { return nil }
func (alwaysFailTransport) Close() error                     { return nil }

// indicationTransport is an RPCTransport whose only job is to deliver
// test-injected Indications; Exchange is unused by the one test that needs
// it (the AR is driven to WaitAppReady directly, bypassing the RPC layer).
type indicationTransport struct {
	ind chan Indication
}

func newIndicationTransport() *indicationTransport {
	return &indicationTransport{ind: make(chan Indication, 1)}
}
func (t *indicationTransport) Exchange(*net.UDPAddr, []byte, time.Duration) ([]byte, error) {
	return nil, errors.New("stub: Exchange not used by this test")
}
func (t *indicationTransport) Reply(*net.UDPAddr, []byte) error { return nil }
func (t *indicationTransport) Indications() <-chan Indication   { return t.ind }
func (t *indicationTransport) Close() error                     { close(t.ind); return nil }

func newTestController(t *testing.T, maxAttempts int) *Controller {
	t.Helper()
	sockA, _ := rawnet.Pipe()
	cfg := Config{}
	cfg.AR.MaxConnectAttempts = maxAttempts
	ctrl, err := New(cfg, sockA, alwaysFailTransport{}, wire.MAC{0xAA}, strategy.NewMemStore())
	if err != nil {
		t.Fatal(err)
	}
	return ctrl
}

func TestAddRTURejectsDuplicateName(t *testing.T) {
	ctrl := newTestController(t, 3)
	if _, err := ctrl.AddRTU(StationConfig{Name: "rtu-tank-1"}); err != nil {
		t.Fatal(err)
	}
	if _, err := ctrl.AddRTU(StationConfig{Name: "rtu-tank-1"}); err == nil {
		t.Fatal("expected an error adding a duplicate station name")
	}
}

func TestRemoveRTUClearsRegistry(t *testing.T) {
	ctrl := newTestController(t, 3)
	if _, err := ctrl.AddRTU(StationConfig{Name: "rtu-tank-1"}); err != nil {
		t.Fatal(err)
	}
	if _, ok := ctrl.Registry.Get("rtu-tank-1"); !ok {
		t.Fatal("expected registry entry after AddRTU")
	}
	ctrl.RemoveRTU("rtu-tank-1")
	if _, ok := ctrl.Registry.Get("rtu-tank-1"); ok {
		t.Fatal("expected registry entry to be gone after RemoveRTU")
	}
	if _, ok := ctrl.Station("rtu-tank-1"); ok {
		t.Fatal("expected station to be gone after RemoveRTU")
	}
}

// TestConnectExhaustsStrategiesAndMarksError drives a Connect attempt against
// a transport that never answers: the AR must exhaust MaxConnectAttempts,
// land in Error, and the controller's registry/event stream must reflect
// that transition.
func TestConnectExhaustsStrategiesAndMarksError(t *testing.T) {
	ctrl := newTestController(t, 3)
	if _, err := ctrl.AddRTU(StationConfig{Name: "rtu-tank-1"}); err != nil {
		t.Fatal(err)
	}
	events := ctrl.Stream.Subscribe()

	err := ctrl.Connect("rtu-tank-1", nil, 0x0272)
	if err == nil {
		t.Fatal("expected Connect to fail once strategies are exhausted")
	}

	st, ok := ctrl.Station("rtu-tank-1")
	if !ok {
		t.Fatal("station disappeared")
	}
	if st.AR.State() != ar.Error {
		t.Fatalf("got AR state %s, want Error", st.AR.State())
	}

	status, ok := ctrl.Registry.Get("rtu-tank-1")
	if !ok {
		t.Fatal("expected a registry entry")
	}
	if status.ARState != ar.Error {
		t.Fatalf("got registry state %s, want Error", status.ARState)
	}

	sawError := false
	for {
		select {
		case e := <-events:
			if e.Station == "rtu-tank-1" && e.To == ar.Error.String() {
				sawError = true
			}
		default:
			goto done
		}
	}
done:
	if !sawError {
		t.Error("expected an rtu_state_change event transitioning to Error")
	}
}

func TestSetActuatorRejectsUnknownStation(t *testing.T) {
	ctrl := newTestController(t, 3)
	if err := ctrl.SetActuator("nonexistent", 1, 1, 0); err == nil {
		t.Fatal("expected an error for an unknown station")
	}
}

func TestSetActuatorRejectsStationWithoutBinding(t *testing.T) {
	ctrl := newTestController(t, 3)
	if _, err := ctrl.AddRTU(StationConfig{Name: "rtu-tank-1"}); err != nil {
		t.Fatal(err)
	}
	if err := ctrl.SetActuator("rtu-tank-1", 1, 1, 0); err == nil {
		t.Fatal("expected an error: AR never reached Data, so there is no cyclic binding")
	}
}

func TestDispatchRawFrameIgnoresNonProfinetEtherType(t *testing.T) {
	ctrl := newTestController(t, 3)
	frame := wire.BuildEthernet(wire.MAC{1, 2, 3, 4, 5, 6}, wire.MAC{0xAA}, nil, 0x0800, []byte("not profinet"))
	if err := ctrl.DispatchRawFrame(frame); err != nil {
		t.Fatalf("unexpected error for a non-PROFINET frame: %v", err)
	}
	if len(ctrl.DiscoveredDevices()) != 0 {
		t.Fatal("a non-PROFINET frame must not populate the discovery cache")
	}
}

// TestApplicationReadyIndicationReachesData exercises the one transition the
// RPC connect engine doesn't itself elicit: an
// unsolicited ApplicationReady IOCControlReq arriving on the transport's
// Indications channel must be picked up by the controller's background
// indication loop and drive WaitAppReady -> Data.
func TestApplicationReadyIndicationReachesData(t *testing.T) {
	sockA, _ := rawnet.Pipe()
	transport := newIndicationTransport()
	ctrl, err := New(Config{}, sockA, transport, wire.MAC{0xAA}, strategy.NewMemStore())
	if err != nil {
		t.Fatal(err)
	}

	st, err := ctrl.AddRTU(StationConfig{Name: "rtu-tank-1"})
	if err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	if err := st.AR.RequestDiscovery(now); err != nil {
		t.Fatal(err)
	}
	if err := st.AR.DeviceDiscovered(now, 0x0272, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := st.AR.BeginConnect(now); err != nil {
		t.Fatal(err)
	}
	if err := st.AR.ConnectSucceeded(now, rpcconn.IOCRDescriptor{}, rpcconn.IOCRDescriptor{}, rpcconn.ConnectResult{}); err != nil {
		t.Fatal(err)
	}
	if err := st.AR.PrmEndSucceeded(now); err != nil {
		t.Fatal(err)
	}
	if st.AR.State() != ar.WaitAppReady {
		t.Fatalf("got state %s, want WaitAppReady", st.AR.State())
	}

	events := ctrl.Stream.Subscribe()
	reqBytes := rpcconn.BuildIOCControlRequest(
		rpcconn.Header{ObjectUUID: st.AR.ARUUID()},
		strategy.AsStored, strategy.Present, rpcconn.CtrlApplicationReady,
	)
	transport.ind <- Indication{Remote: &net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: RPCPort}, Data: reqBytes}

	deadline := time.After(2 * time.Second)
	for {
		if st.AR.State() == ar.Data {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("AR never reached Data, stuck at %s", st.AR.State())
		case <-time.After(time.Millisecond):
		}
	}

	status, ok := ctrl.Registry.Get("rtu-tank-1")
	if !ok || status.ARState != ar.Data {
		t.Fatalf("got registry state %v, want Data", status.ARState)
	}

	select {
	case e := <-events:
		if e.To != ar.Data.String() {
			t.Errorf("got event To=%q, want %q", e.To, ar.Data.String())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected an rtu_state_change event for the Data transition")
	}
}
