//go:build linux

package rawnet

import (
	"fmt"
	"net"
	"sync"

	"golang.org/x/sys/unix"
)

// maxFrame covers a maximum-size tagged Ethernet frame with margin.
const maxFrame = 2048

func htons(v uint16) uint16 { return v<<8 | v>>8 }

// packetSocket is an AF_PACKET SOCK_RAW endpoint bound to one interface:
// a bare file descriptor owned and closed by this type, with reads and
// writes going straight through the unix syscall wrappers.
type packetSocket struct {
	fd      int
	ifIndex int

	mu     sync.Mutex
	closed bool
}

// Open binds a raw AF_PACKET socket to ifName, receiving every EtherType
// (ETH_P_ALL) so DCP and PROFINET real-time frames share one descriptor.
func Open(ifName string) (Socket, error) {
	iface, err := net.InterfaceByName(ifName)
	if err != nil {
		return nil, fmt.Errorf("rawnet: lookup interface %s: %w", ifName, err)
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("rawnet: open AF_PACKET socket: %w", err)
	}

	addr := unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  iface.Index,
	}
	if err := unix.Bind(fd, &addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("rawnet: bind to %s: %w", ifName, err)
	}

	return &packetSocket{fd: fd, ifIndex: iface.Index}, nil
}

// ReadFrame implements Socket.
func (s *packetSocket) ReadFrame() ([]byte, error) {
	buf := make([]byte, maxFrame)
	n, _, err := unix.Recvfrom(s.fd, buf, 0)
	if err != nil {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("rawnet: read: %w", err)
	}
	return buf[:n], nil
}

// WriteFrame implements Socket.
func (s *packetSocket) WriteFrame(frame []byte) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	addr := unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  s.ifIndex,
		Halen:    6,
	}
	copy(addr.Addr[:6], frame[0:6])
	if err := unix.Sendto(s.fd, frame, 0, &addr); err != nil {
		return fmt.Errorf("rawnet: write: %w", err)
	}
	return nil
}

// JoinMulticast implements Socket using PACKET_ADD_MEMBERSHIP.
func (s *packetSocket) JoinMulticast(mac [6]byte) error {
	mreq := unix.PacketMreq{
		Ifindex: int32(s.ifIndex),
		Type:    unix.PACKET_MR_MULTICAST,
		Alen:    6,
	}
	copy(mreq.Address[:6], mac[:])
	return unix.SetsockoptPacketMreq(s.fd, unix.SOL_PACKET, unix.PACKET_ADD_MEMBERSHIP, &mreq)
}

// Close implements Socket.
func (s *packetSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return unix.Close(s.fd)
}
