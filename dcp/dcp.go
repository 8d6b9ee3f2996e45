// Package dcp implements PROFINET's Discovery and Configuration Protocol:
// link-layer device enumeration and identity/IP configuration. It never
// initiates TCP/UDP connections and does not own the real-time socket;
// rawnet.Socket is injected by the caller the same way the RPC and cyclic
// I/O layers borrow it.
package dcp

import "time"

// ServiceID identifies the DCP service of a PDU.
type ServiceID uint8

const (
	ServiceGet      ServiceID = 0x03
	ServiceSet      ServiceID = 0x04
	ServiceIdentify ServiceID = 0x05
)

// String returns the mnemonic name, or "unknown" for unknown values.
func (s ServiceID) String() string {
	switch s {
	case ServiceGet:
		return "Get"
	case ServiceSet:
		return "Set"
	case ServiceIdentify:
		return "Identify"
	default:
		return "unknown"
	}
}

// Option/suboption pairs from the DCP option catalogue.
const (
	OptIP             uint8 = 0x01
	SuboptIPMACAddr   uint8 = 0x01
	SuboptIPParameter uint8 = 0x02
	SuboptIPFullSuite uint8 = 0x03

	OptDevice            uint8 = 0x02
	SuboptDeviceVendor   uint8 = 0x01
	SuboptDeviceNameStn  uint8 = 0x02
	SuboptDeviceID       uint8 = 0x03
	SuboptDeviceRole     uint8 = 0x04
	SuboptDeviceInstance uint8 = 0x07

	OptControl           uint8 = 0x05
	SuboptControlStart   uint8 = 0x01
	SuboptControlStop    uint8 = 0x02
	SuboptControlSignal  uint8 = 0x03
	SuboptControlFactory uint8 = 0x06

	OptAll uint8 = 0xFF
)

// Discovery timeout bounds.
const (
	DiscoverTimeoutMin     = 100 * time.Millisecond
	DiscoverTimeoutMax     = 10000 * time.Millisecond
	DiscoverTimeoutDefault = 1280 * time.Millisecond

	// CacheCapacity is the design value for the bounded device cache;
	// overflow is logged and the new device dropped.
	CacheCapacity = 256
)

// BlockQualifier is the 2-byte value appended to a Set request to choose
// between a volatile and a permanent (stored across power cycles) update.
type BlockQualifier uint16

const (
	QualifierTemporary BlockQualifier = 0x0000
	QualifierPermanent BlockQualifier = 0x0001
)
