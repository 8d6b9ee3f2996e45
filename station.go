package pnioctl

import (
	"net"

	"github.com/wtc-scada/pnioctl/ar"
	"github.com/wtc-scada/pnioctl/cyclicio"
	"github.com/wtc-scada/pnioctl/record"
	"github.com/wtc-scada/pnioctl/rpcconn"
	"github.com/wtc-scada/pnioctl/wire"
)

// Station is everything the controller tracks for one managed RTU: its
// network identity, its Application Relationship, the expected submodule
// catalogue used to build Connect requests, and the acyclic services layered
// on top once the AR reaches Data.
type Station struct {
	Name   string
	MAC    wire.MAC
	Remote *net.UDPAddr

	AR *ar.AR

	Catalogue     rpcconn.Catalogue
	InputEntries  []rpcconn.SubslotEntry
	OutputEntries []rpcconn.SubslotEntry
	InputSlot     uint16
	OutputSlot    uint16

	Binding *cyclicio.Binding
	Users   record.Store
}

// StationConfig is the caller-supplied description of an RTU to manage
//. The controller's own MAC (used to build the cyclic frames
// BuildOutputFrame emits toward this station) is supplied once to New, not
// per station.
type StationConfig struct {
	Name          string
	MAC           wire.MAC
	Remote        *net.UDPAddr
	Catalogue     rpcconn.Catalogue
	InputEntries  []rpcconn.SubslotEntry
	OutputEntries []rpcconn.SubslotEntry
	InputSlot     uint16
	OutputSlot    uint16
}
