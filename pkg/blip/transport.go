package blip

// Transport is the ordered, reliable, frame-preserving byte transport a
// Connection runs over. On WebSocket, one BLIP frame is one binary
// WebSocket message.
//
// ReadFrame and WriteFrame are each called from a single goroutine, but
// not the same one; implementations must allow one concurrent reader and
// one concurrent writer. Close must unblock both.
type Transport interface {
	// WriteFrame sends one complete frame.
	WriteFrame(frame []byte) error

	// ReadFrame receives the next complete frame. It returns an error
	// once the transport has closed.
	ReadFrame() ([]byte, error)

	// MaxFrameSize is the largest frame payload the transport accepts.
	MaxFrameSize() int

	// Close tears down the transport, unblocking pending reads and writes.
	Close() error
}
