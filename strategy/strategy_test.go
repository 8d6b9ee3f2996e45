package strategy

import (
	"testing"
	"time"
)

func TestTableBoundedAt48(t *testing.T) {
	if len(Table) != 48 {
		t.Fatalf("got %d strategies, want 48", len(Table))
	}
	seen := make(map[Strategy]bool)
	for _, s := range Table {
		if seen[s] {
			t.Fatalf("duplicate strategy %+v", s)
		}
		seen[s] = true
	}
}

func TestDefaultProfilePeriod(t *testing.T) {
	p := Params(Default)
	got := p.Period()
	want := 256 * time.Millisecond
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestAlarmTimeoutFactorNeverExceeds100(t *testing.T) {
	for _, p := range []TimingProfile{Default, Aggressive, Conservative} {
		if params := Params(p); params.AlarmTimeoutFactor > 100 {
			t.Errorf("%s: alarm timeout factor %d exceeds 100", p, params.AlarmTimeoutFactor)
		}
	}
}

// A simulated RTU succeeds only at index 7: the iterator visits 0..7 in
// order and the next session starts at the recorded index.
func TestStrategyAdvancementRecordsLastSuccessful(t *testing.T) {
	it := NewIterator(0)
	var visited []int
	const succeedsAt = 7

	for {
		visited = append(visited, it.Index())
		it.Begin(time.Now())
		if it.Index() == succeedsAt {
			it.RecordSuccess()
			break
		}
		it.Advance()
	}

	for i, idx := range visited {
		if idx != i {
			t.Fatalf("visit order %v, want 0..%d in order", visited, succeedsAt)
		}
	}
	if it.LastSuccessful() != succeedsAt {
		t.Fatalf("got last successful %d, want %d", it.LastSuccessful(), succeedsAt)
	}

	next := NewIterator(it.LastSuccessful())
	if next.Index() != succeedsAt {
		t.Errorf("next session starts at %d, want %d", next.Index(), succeedsAt)
	}
}

func TestIteratorWrapsAndCountsCycles(t *testing.T) {
	it := NewIterator(len(Table) - 1)
	if it.Cycles() != 0 {
		t.Fatalf("got %d cycles, want 0", it.Cycles())
	}
	it.Advance()
	if it.Index() != 0 {
		t.Errorf("got index %d after wrap, want 0", it.Index())
	}
	if it.Cycles() != 1 {
		t.Errorf("got %d cycles after wrap, want 1", it.Cycles())
	}
}

func TestVendorHintRepositionsIterator(t *testing.T) {
	hints := VendorHints{0x0272: 12}
	it := NewIterator(0)
	it.ApplyVendorHint(hints, 0x0272)
	if it.Index() != 12 {
		t.Errorf("got index %d, want 12", it.Index())
	}

	it2 := NewIterator(0)
	it2.ApplyVendorHint(hints, 0x9999) // unknown vendor, no change
	if it2.Index() != 0 {
		t.Errorf("got index %d for unknown vendor, want 0 (unchanged)", it2.Index())
	}
}
