package bridge

import (
	"sync"
	"time"

	"github.com/wtc-scada/pnioctl/ar"
)

// Status is the per-RTU snapshot returned by poll_status.
type Status struct {
	Station         string
	ARState         ar.State
	LastContactTime time.Time
	ActiveAlarms    int // externally provided; the core never originates alarms itself
	VendorID        uint16
	DeviceID        uint16
	VersionInfo     string
}

// Identity is the diagnostic bundle's PROFINET identity section.
type Identity struct {
	StationName string
	VendorID    uint16
	DeviceID    uint16
}

// IOCRSummary is the cyclic I/O configuration half of the diagnostic bundle.
type IOCRSummary struct {
	InputFrameID  uint16
	OutputFrameID uint16
	PeriodMillis  float64
}

// Diagnostic is the full diagnostic bundle for one RTU.
type Diagnostic struct {
	Identity Identity
	IOCR     IOCRSummary
}

// Registry holds the latest Status for every known RTU, mutated only
// through the bridge.
type Registry struct {
	mu    sync.RWMutex
	byKey map[string]*Status
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]*Status)}
}

// Put installs or replaces the Status for station.
func (r *Registry) Put(s Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := s
	r.byKey[s.Station] = &cp
}

// Remove deletes station from the registry (command/remove-rtu).
func (r *Registry) Remove(station string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byKey, station)
}

// SetAlarmCount updates the externally-provided alarm count for station,
// leaving every other field untouched. A station not yet known is a no-op:
// alarms are only meaningful for an RTU the registry already tracks.
func (r *Registry) SetAlarmCount(station string, count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byKey[station]; ok {
		s.ActiveAlarms = count
	}
}

// Snapshot returns a copy of every tracked Status.
func (r *Registry) Snapshot() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Status, 0, len(r.byKey))
	for _, s := range r.byKey {
		out = append(out, *s)
	}
	return out
}

// Get returns the Status for one station.
func (r *Registry) Get(station string) (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byKey[station]
	if !ok {
		return Status{}, false
	}
	return *s, true
}
