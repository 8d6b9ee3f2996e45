//go:build !linux

package rawnet

import (
	"errors"
	"runtime"
)

// ErrUnsupported is returned on platforms without AF_PACKET sockets. Tests
// on such platforms exercise the frame codec and state machines via the
// in-memory Pipe instead of Open.
var ErrUnsupported = errors.New("rawnet: raw Ethernet sockets are not supported on " + runtime.GOOS)

// Open always fails outside Linux; see ErrUnsupported.
func Open(ifName string) (Socket, error) {
	return nil, ErrUnsupported
}
