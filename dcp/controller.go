package dcp

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/wtc-scada/pnioctl/rawnet"
	"github.com/wtc-scada/pnioctl/wire"
)

// Config carries the tunable discovery parameters.
type Config struct {
	// Timeout bounds a single Identify round; see DiscoverTimeoutMin/Max.
	Timeout time.Duration
}

// Valid fills unset fields with defaults and rejects out-of-range values.
func (c *Config) Valid() error {
	if c.Timeout == 0 {
		c.Timeout = DiscoverTimeoutDefault
		return nil
	}
	if c.Timeout < DiscoverTimeoutMin || c.Timeout > DiscoverTimeoutMax {
		return fmt.Errorf("dcp: discover timeout %s not in [%s, %s]", c.Timeout, DiscoverTimeoutMin, DiscoverTimeoutMax)
	}
	return nil
}

// Controller drives DCP discovery and configuration on one interface.
type Controller struct {
	Config
	sock     rawnet.Socket
	src      wire.MAC
	cache    *Cache
	observer Observer

	xid uint32 // next transaction id, incremented atomically
}

// NewController returns a Controller bound to sock, transmitting from src.
func NewController(sock rawnet.Socket, src wire.MAC, cfg Config, observer Observer) (*Controller, error) {
	if err := cfg.Valid(); err != nil {
		return nil, err
	}
	return &Controller{
		Config:   cfg,
		sock:     sock,
		src:      src,
		cache:    NewCache(),
		observer: observer,
	}, nil
}

// Cache returns the device cache this controller maintains.
func (c *Controller) Cache() *Cache { return c.cache }

func (c *Controller) nextXid() uint32 {
	return atomic.AddUint32(&c.xid, 1)
}

// IdentifyAll sends a DCP Identify-All request to the PROFINET multicast
// group with a freshly generated transaction id.
func (c *Controller) IdentifyAll() error {
	pdu := PDU{
		FrameID: FrameIDIdentifyRequest,
		Service: ServiceIdentify,
		Type:    TypeRequest,
		Xid:     c.nextXid(),
		Blocks: []wire.DCPBlock{
			{Option: OptAll, Suboption: OptAll},
		},
	}
	return c.send(wire.DCPMulticast, pdu)
}

// IdentifyByName sends a DCP Identify request filtered by station name.
func (c *Controller) IdentifyByName(name string) error {
	pdu := PDU{
		FrameID: FrameIDIdentifyRequest,
		Service: ServiceIdentify,
		Type:    TypeRequest,
		Xid:     c.nextXid(),
		Blocks: []wire.DCPBlock{
			{Option: OptDevice, Suboption: SuboptDeviceNameStn, Payload: []byte(name)},
		},
	}
	return c.send(wire.DCPMulticast, pdu)
}

// SetIP configures IPv4 address, mask and gateway on the device at mac.
func (c *Controller) SetIP(mac wire.MAC, ip, mask, gw net.IP, permanent bool) error {
	payload := make([]byte, 14)
	copy(payload[0:4], ip.To4())
	copy(payload[4:8], mask.To4()[:4])
	copy(payload[8:12], gw.To4())
	binary.BigEndian.PutUint16(payload[12:14], uint16(qualifier(permanent)))

	pdu := PDU{
		FrameID: FrameIDGetSetRequest,
		Service: ServiceSet,
		Type:    TypeRequest,
		Xid:     c.nextXid(),
		Blocks: []wire.DCPBlock{
			{Option: OptIP, Suboption: SuboptIPParameter, Payload: payload},
		},
	}
	return c.send(mac, pdu)
}

// SetStationName configures the DNS-compatible station name on mac.
func (c *Controller) SetStationName(mac wire.MAC, name string, permanent bool) error {
	if !validStationName(name) {
		return fmt.Errorf("dcp: station name %q is not DNS-compatible", name)
	}
	payload := make([]byte, 2+len(name))
	binary.BigEndian.PutUint16(payload[0:2], uint16(qualifier(permanent)))
	copy(payload[2:], name)

	pdu := PDU{
		FrameID: FrameIDGetSetRequest,
		Service: ServiceSet,
		Type:    TypeRequest,
		Xid:     c.nextXid(),
		Blocks: []wire.DCPBlock{
			{Option: OptDevice, Suboption: SuboptDeviceNameStn, Payload: payload},
		},
	}
	return c.send(mac, pdu)
}

// Signal asks the RTU to flash an indicator LED for operator identification.
func (c *Controller) Signal(mac wire.MAC) error {
	pdu := PDU{
		FrameID: FrameIDGetSetRequest,
		Service: ServiceSet,
		Type:    TypeRequest,
		Xid:     c.nextXid(),
		Blocks: []wire.DCPBlock{
			{Option: OptControl, Suboption: SuboptControlSignal, Payload: []byte{0x00, 0x01}},
		},
	}
	return c.send(mac, pdu)
}

// ResetToFactory restores mac's DCP-configurable state to factory defaults.
func (c *Controller) ResetToFactory(mac wire.MAC) error {
	pdu := PDU{
		FrameID: FrameIDGetSetRequest,
		Service: ServiceSet,
		Type:    TypeRequest,
		Xid:     c.nextXid(),
		Blocks: []wire.DCPBlock{
			{Option: OptControl, Suboption: SuboptControlFactory, Payload: []byte{0x00, 0xFF}},
		},
	}
	return c.send(mac, pdu)
}

func qualifier(permanent bool) BlockQualifier {
	if permanent {
		return QualifierPermanent
	}
	return QualifierTemporary
}

func (c *Controller) send(dst wire.MAC, pdu PDU) error {
	frame := wire.BuildEthernet(dst, c.src, nil, wire.EtherTypeProfinet, pdu.Marshal())
	return c.sock.WriteFrame(frame)
}

// ProcessFrame consumes an incoming PROFINET frame. If it carries a DCP
// Identify response, the device cache is updated and the observer notified
//. Any other frame is silently ignored: this controller does not own
// RPC or cyclic traffic.
func (c *Controller) ProcessFrame(frame []byte) error {
	eth, err := wire.ParseEthernet(frame)
	if err != nil {
		return err
	}
	if eth.EtherType != wire.EtherTypeProfinet {
		return nil
	}
	pdu, err := ParsePDU(frame[eth.PayloadOffset:])
	if err != nil {
		return err
	}
	if pdu.FrameID != FrameIDIdentifyResponse || pdu.Service != ServiceIdentify {
		return nil
	}

	now := time.Now()
	dev, ok := c.cache.Update(eth.Src, now, func(prev Device) Device {
		return mergeIdentifyBlocks(prev, pdu.Blocks)
	})
	if !ok {
		return nil // cache full, already logged
	}
	if c.observer != nil {
		c.observer.DeviceUpdated(dev)
	}
	return nil
}

func mergeIdentifyBlocks(d Device, blocks []wire.DCPBlock) Device {
	for _, blk := range blocks {
		switch {
		case blk.Option == OptIP && blk.Suboption == SuboptIPParameter && len(blk.Payload) >= 12:
			d.IP = net.IP(append([]byte(nil), blk.Payload[0:4]...))
			d.Mask = net.IPMask(append([]byte(nil), blk.Payload[4:8]...))
			d.Gateway = net.IP(append([]byte(nil), blk.Payload[8:12]...))

		case blk.Option == OptDevice && blk.Suboption == SuboptDeviceNameStn:
			d.StationName = string(blk.Payload)

		case blk.Option == OptDevice && blk.Suboption == SuboptDeviceVendor:
			d.VendorName = string(blk.Payload)

		case blk.Option == OptDevice && blk.Suboption == SuboptDeviceID && len(blk.Payload) >= 4:
			d.VendorID = binary.BigEndian.Uint16(blk.Payload[0:2])
			d.DeviceID = binary.BigEndian.Uint16(blk.Payload[2:4])

		case blk.Option == OptDevice && blk.Suboption == SuboptDeviceRole && len(blk.Payload) >= 1:
			d.DeviceRole = blk.Payload[0]
		}
	}
	return d
}
