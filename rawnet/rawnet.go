// Package rawnet provides the single raw-Ethernet socket shared by DCP
// discovery and the cyclic I/O engine. Frame dispatch by
// EtherType/FrameID lives in the dcp and cyclicio packages; this package only
// owns the file descriptor.
package rawnet

import "errors"

// ErrClosed is returned by ReadFrame/WriteFrame after Close.
var ErrClosed = errors.New("rawnet: socket closed")

// Socket is a link-layer datagram endpoint bound to one network interface. It
// receives and transmits whole Ethernet frames, header included.
type Socket interface {
	// ReadFrame blocks for the next frame arriving on the interface.
	ReadFrame() ([]byte, error)
	// WriteFrame transmits frame as-is; the caller has already built the
	// full Ethernet header (see wire.BuildEthernet).
	WriteFrame(frame []byte) error
	// JoinMulticast subscribes the socket to an additional multicast MAC,
	// required for the DCP group 01:0E:CF:00:00:00.
	JoinMulticast(mac [6]byte) error
	Close() error
}
