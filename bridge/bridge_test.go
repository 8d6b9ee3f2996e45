package bridge

import (
	"testing"
	"time"

	"github.com/wtc-scada/pnioctl/ar"
)

func TestQueueBackpressure(t *testing.T) {
	q := NewQueue(2)
	c1 := NewCommand(CommandDiscover, "", nil)
	c2 := NewCommand(CommandDiscover, "", nil)
	c3 := NewCommand(CommandDiscover, "", nil)

	if err := q.Enqueue(c1); err != nil {
		t.Fatalf("unexpected error on first enqueue: %v", err)
	}
	if err := q.Enqueue(c2); err != nil {
		t.Fatalf("unexpected error on second enqueue: %v", err)
	}
	if err := q.Enqueue(c3); err != ErrBackpressure {
		t.Fatalf("got %v, want ErrBackpressure", err)
	}
}

func TestCommandDoneResolvesOnce(t *testing.T) {
	cmd := NewCommand(CommandConnect, "rtu-tank-1", nil)
	if cmd.ID == "" {
		t.Error("expected a non-empty correlation id")
	}
	go cmd.Resolve(nil)

	select {
	case err := <-cmd.Done():
		if err != nil {
			t.Errorf("got %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Done")
	}
}

func TestRegistrySnapshotIsACopy(t *testing.T) {
	r := NewRegistry()
	r.Put(Status{Station: "rtu-tank-1", ARState: ar.Data, ActiveAlarms: 0})

	snap := r.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("got %d entries, want 1", len(snap))
	}
	snap[0].ActiveAlarms = 99

	got, ok := r.Get("rtu-tank-1")
	if !ok {
		t.Fatal("expected rtu-tank-1 present")
	}
	if got.ActiveAlarms != 0 {
		t.Errorf("mutating a snapshot entry must not affect the registry, got ActiveAlarms=%d", got.ActiveAlarms)
	}
}

func TestRegistrySetAlarmCountIgnoresUnknownStation(t *testing.T) {
	r := NewRegistry()
	r.SetAlarmCount("ghost", 5) // must not panic or create an entry
	if _, ok := r.Get("ghost"); ok {
		t.Error("expected no entry created for an unknown station")
	}
}

// Order within a single station's stream is preserved.
func TestStreamOrderWithinStation(t *testing.T) {
	s := NewStream()
	sub := s.Subscribe()

	for i := 0; i < 5; i++ {
		s.Publish(NewEvent(EventSensorUpdate, "rtu-tank-1", time.Unix(int64(i), 0)))
	}

	for i := 0; i < 5; i++ {
		select {
		case e := <-sub:
			if e.At.Unix() != int64(i) {
				t.Errorf("got event %d out of order: %v", i, e.At)
			}
		default:
			t.Fatalf("expected event %d, channel empty", i)
		}
	}
}

func TestStreamDropsRatherThanBlocks(t *testing.T) {
	s := NewStream()
	s.Subscribe() // no reader drains this

	done := make(chan struct{})
	go func() {
		for i := 0; i < eventBufferPerStation+10; i++ {
			s.Publish(NewEvent(EventAlarmEvent, "rtu-tank-1", time.Now()))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber buffer")
	}
}
