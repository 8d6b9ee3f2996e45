package bridge

import (
	"sync"
	"time"

	"github.com/rs/xid"
)

// EventKind enumerates the published event types.
type EventKind string

const (
	EventSensorUpdate   EventKind = "sensor_update"
	EventActuatorUpdate EventKind = "actuator_update"
	EventRTUStateChange EventKind = "rtu_state_change"
	EventAlarmEvent     EventKind = "alarm_event"
)

// Event is one published occurrence on the stream. Slot/Subslot
// apply to sensor_update and actuator_update; From/To apply to
// rtu_state_change; the remaining fields are populated per kind by the
// caller constructing the event.
type Event struct {
	ID      string
	Kind    EventKind
	Station string
	At      time.Time

	Slot, Subslot uint16
	Value         float32
	Command       byte

	From, To string // rtu_state_change

	AlarmID string // alarm_event
}

// NewEvent returns an Event of kind for station at at, stamped with a fresh
// correlation id.
func NewEvent(kind EventKind, station string, at time.Time) Event {
	return Event{ID: xid.New().String(), Kind: kind, Station: station, At: at}
}

// eventBufferPerStation bounds how many unread events one subscriber can
// accumulate; once its buffer is full, newly published events are dropped
// for that subscriber, so a stalled subscriber cannot grow memory without
// bound.
const eventBufferPerStation = 256

// Stream publishes Events to subscribers. Order within one station is
// preserved because Publish for a given station is always called from that
// station's single owning task (the AR, the cyclic engine, or the
// discovery task); order across stations is not guaranteed.
type Stream struct {
	mu   sync.RWMutex
	subs []chan Event
}

// NewStream returns an empty Stream.
func NewStream() *Stream {
	return &Stream{}
}

// Subscribe returns a channel delivering every future Event. The channel is
// buffered; a subscriber that falls eventBufferPerStation events behind
// misses further events until it drains, rather than blocking Publish.
func (s *Stream) Subscribe() <-chan Event {
	ch := make(chan Event, eventBufferPerStation)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

// Publish delivers e to every subscriber, dropping it for any subscriber
// whose buffer is full rather than blocking the publishing task.
func (s *Stream) Publish(e Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
