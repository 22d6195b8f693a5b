package blip

import (
	"errors"
	"sync"
)

var errPipeClosed = errors.New("pipe transport closed")

// pipeTransport is an in-memory frame transport for tests. Two sides
// share a pair of buffered channels; closing either side tears down both,
// like a socket.
type pipeTransport struct {
	in   chan []byte
	out  chan []byte
	max  int
	done chan struct{}
	once *sync.Once
}

// newTransportPair returns two connected transports with the given
// maximum frame size.
func newTransportPair(maxFrameSize int) (*pipeTransport, *pipeTransport) {
	return newTransportPairBuffered(maxFrameSize, 1024)
}

// newTransportPairBuffered bounds the number of frames in flight per
// direction, so tests can deliberately stall a writer.
func newTransportPairBuffered(maxFrameSize, depth int) (*pipeTransport, *pipeTransport) {
	ab := make(chan []byte, depth)
	ba := make(chan []byte, depth)
	done := make(chan struct{})
	once := new(sync.Once)
	a := &pipeTransport{in: ba, out: ab, max: maxFrameSize, done: done, once: once}
	b := &pipeTransport{in: ab, out: ba, max: maxFrameSize, done: done, once: once}
	return a, b
}

func (t *pipeTransport) WriteFrame(frame []byte) error {
	cp := make([]byte, len(frame))
	copy(cp, frame)
	select {
	case t.out <- cp:
		return nil
	case <-t.done:
		return errPipeClosed
	}
}

func (t *pipeTransport) ReadFrame() ([]byte, error) {
	select {
	case frame := <-t.in:
		return frame, nil
	case <-t.done:
		// Drain frames that were in flight before the close.
		select {
		case frame := <-t.in:
			return frame, nil
		default:
			return nil, errPipeClosed
		}
	}
}

func (t *pipeTransport) MaxFrameSize() int { return t.max }

func (t *pipeTransport) Close() error {
	t.once.Do(func() { close(t.done) })
	return nil
}
