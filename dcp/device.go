package dcp

import (
	"net"
	"time"

	"github.com/wtc-scada/pnioctl/wire"
)

// Device is a discovered RTU's identity and configuration snapshot. It is created on first DCP Identify response and
// updated, never implicitly removed, by subsequent ones.
type Device struct {
	MAC wire.MAC

	// IP, Mask and Gateway are the zero value when the RTU has not yet
	// reported an address (an Identify response may omit the IP block).
	IP      net.IP
	Mask    net.IPMask
	Gateway net.IP

	VendorID   uint16
	DeviceID   uint16
	DeviceRole uint8

	// StationName is DNS-compatible: lowercase, 1..63 characters.
	StationName string
	VendorName  string

	FirstSeen time.Time
	LastSeen  time.Time
}

// HasIP reports whether an IPv4 address block was ever reported.
func (d *Device) HasIP() bool {
	return d.IP != nil
}

// validStationName reports whether name satisfies the DNS-compatible
// constraint: lowercase, 1..63 characters, hyphen allowed but not at
// the ends, no consecutive dots.
func validStationName(name string) bool {
	if len(name) < 1 || len(name) > 63 {
		return false
	}
	if name[0] == '-' || name[len(name)-1] == '-' {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9':
		case c == '.' && i > 0 && name[i-1] == '.':
			return false
		case c == '-' || c == '.':
		default:
			return false
		}
	}
	return true
}
