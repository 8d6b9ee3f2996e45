package dcp

import (
	"log"
	"sync"
	"time"

	"github.com/wtc-scada/pnioctl/wire"
)

// Cache is a database of discovered devices keyed by MAC: a map holding the
// latest value per device, guarded by a sync.RWMutex. Capacity is bounded at CacheCapacity; an overflow is
// logged and the new device is dropped rather than evicting an existing
// entry, since entries must survive until an explicit Flush.
type Cache struct {
	mu      sync.RWMutex
	devices map[wire.MAC]*Device
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{devices: make(map[wire.MAC]*Device, CacheCapacity)}
}

// Observer is notified on every cache update. A nil observer disables
// notification.
type Observer interface {
	DeviceUpdated(d Device)
}

// Update merges fields into the cached entry for mac, creating one if absent.
// merge is called with the existing (zero value if new) entry and must
// return the merged result. now is injected so tests can pin FirstSeen and
// LastSeen.
func (c *Cache) Update(mac wire.MAC, now time.Time, merge func(prev Device) Device) (Device, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, exists := c.devices[mac]
	var base Device
	if exists {
		base = *prev
	} else {
		if len(c.devices) >= CacheCapacity {
			log.Printf("dcp: device cache full at %d entries, dropping new device %x", CacheCapacity, mac)
			return Device{}, false
		}
		base.MAC = mac
		base.FirstSeen = now
	}
	merged := merge(base)
	merged.MAC = mac
	if !exists {
		merged.FirstSeen = now
	}
	merged.LastSeen = now
	c.devices[mac] = &merged
	return merged, true
}

// Get returns a copy of the cached entry for mac, if present.
func (c *Cache) Get(mac wire.MAC) (Device, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.devices[mac]
	if !ok {
		return Device{}, false
	}
	return *d, true
}

// Snapshot returns copies of every cached device; readers take a short
// critical section and publish copies.
func (c *Cache) Snapshot() []Device {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Device, 0, len(c.devices))
	for _, d := range c.devices {
		out = append(out, *d)
	}
	return out
}

// Flush clears the cache. This is the only way entries disappear.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.devices = make(map[wire.MAC]*Device, CacheCapacity)
}

// Len returns the number of cached devices.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.devices)
}
