package rawnet

import "sync"

// Pipe returns two connected in-memory sockets for tests: frames written on
// one side arrive as ReadFrame results on the other, standing in for a raw
// socket pair without requiring AF_PACKET privileges.
func Pipe() (Socket, Socket) {
	aToB := make(chan []byte, 64)
	bToA := make(chan []byte, 64)
	a := &pipeSocket{out: aToB, in: bToA}
	b := &pipeSocket{out: bToA, in: aToB}
	return a, b
}

type pipeSocket struct {
	out chan<- []byte
	in  <-chan []byte

	mu     sync.Mutex
	closed bool
}

func (p *pipeSocket) ReadFrame() ([]byte, error) {
	frame, ok := <-p.in
	if !ok {
		return nil, ErrClosed
	}
	return frame, nil
}

func (p *pipeSocket) WriteFrame(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	p.out <- cp
	return nil
}

func (p *pipeSocket) JoinMulticast(mac [6]byte) error { return nil }

func (p *pipeSocket) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.out)
	return nil
}
