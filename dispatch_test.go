package pnioctl

import (
	"testing"
	"time"

	"github.com/wtc-scada/pnioctl/bridge"
)

// TestRunDispatchesAddRTU drives the command queue end to end: Enqueue,
// Run picks it up, AddRTU executes, and the caller observes the result on
// Command.Done.
func TestRunDispatchesAddRTU(t *testing.T) {
	ctrl := newTestController(t, 3)
	done := make(chan struct{})
	go ctrl.Run(done)
	defer close(done)

	cmd := bridge.NewCommand(bridge.CommandAddRTU, "rtu-tank-1", AddRTUPayload{Config: StationConfig{Name: "rtu-tank-1"}})
	if err := ctrl.Queue.Enqueue(cmd); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-cmd.Done():
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("command was never resolved")
	}

	if _, ok := ctrl.Station("rtu-tank-1"); !ok {
		t.Fatal("expected AddRTU to have registered the station")
	}
}

// TestRunReportsBadPayloadType exercises dispatch's type-assertion guard:
// a command submitted with the wrong payload type resolves with an error
// instead of panicking.
func TestRunReportsBadPayloadType(t *testing.T) {
	ctrl := newTestController(t, 3)
	done := make(chan struct{})
	go ctrl.Run(done)
	defer close(done)

	cmd := bridge.NewCommand(bridge.CommandSetActuator, "rtu-tank-1", "not-the-right-payload")
	if err := ctrl.Queue.Enqueue(cmd); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-cmd.Done():
		if err == nil {
			t.Fatal("expected an error for a mistyped payload")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("command was never resolved")
	}
}

// TestRunStopsOnDoneClose confirms Run returns once done is closed, rather
// than leaking a goroutine blocked on Dequeue forever.
func TestRunStopsOnDoneClose(t *testing.T) {
	ctrl := newTestController(t, 3)
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		ctrl.Run(done)
		close(stopped)
	}()
	close(done)

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after done was closed")
	}
}
