package blip

import "sync"

// MessageOut is the sending side of a message: an immutable payload plus
// a cursor of how much has been written to the transport and how much the
// peer has yet to acknowledge.
//
// The payload and flags never change after construction; a request's
// number is assigned once, when the connection enqueues it. The
// cursors are guarded by a mutex because the connection's writer advances
// them while the receive path applies acknowledgements.
type MessageOut struct {
	message
	conn    *Connection
	payload []byte

	mu           sync.Mutex
	bytesSent    int
	unackedBytes int

	// pendingResponse is pre-allocated for requests that expect a reply,
	// so FutureResponse handles stay valid when the first response frame
	// arrives. Its flags are updated from that frame (the type may become
	// ErrorType, and Urgent or Compressed may be set).
	pendingResponse *MessageIn
}

func newMessageOut(conn *Connection, flags FrameFlags, number MessageNumber, payload []byte) *MessageOut {
	m := &MessageOut{
		message: message{flags: flags, number: number},
		conn:    conn,
		payload: payload,
	}
	if m.Type() == RequestType && !m.NoReply() {
		m.pendingResponse = newMessageIn(conn, FrameFlags(ResponseType), number)
		m.pendingResponse.future = newFutureResponse()
	}
	return m
}

// nextFrameToSend returns the next up-to-maxBytes slice of the payload and
// the flags to stamp on its frame. MoreComing is set iff payload remains
// after this frame. Successive calls yield a contiguous, strictly
// advancing window over the payload.
func (m *MessageOut) nextFrameToSend(maxBytes int) ([]byte, FrameFlags) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.payload) - m.bytesSent
	if n > maxBytes {
		n = maxBytes
	}
	frame := m.payload[m.bytesSent : m.bytesSent+n]
	m.bytesSent += n
	m.unackedBytes += n

	flags := m.flags
	if m.bytesSent < len(m.payload) {
		flags |= FlagMoreComing
	}
	return frame, flags
}

// receivedAck applies a cumulative byte acknowledgement from the peer.
// Acks claiming more than has been sent, or less than previously
// acknowledged, leave the counters unchanged.
func (m *MessageOut) receivedAck(cumulativeBytes uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cumulativeBytes > uint64(m.bytesSent) {
		return
	}
	if remaining := m.bytesSent - int(cumulativeBytes); remaining < m.unackedBytes {
		m.unackedBytes = remaining
	}
}

// sendable reports whether the message may be scheduled under the given
// flow-control window. A window of zero means unbounded. Acks are always
// sendable: they are the mechanism that opens the window.
func (m *MessageOut) sendable(window int) bool {
	if window <= 0 || m.Type().isAck() {
		return true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unackedBytes < window
}

// exhausted reports whether every payload byte has been handed to the
// transport. An exhausted message emits no further frames.
func (m *MessageOut) exhausted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bytesSent == len(m.payload)
}

// UnackedBytes returns the number of sent bytes the peer has not yet
// acknowledged.
func (m *MessageOut) UnackedBytes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unackedBytes
}

// FutureResponse returns the handle fulfilled when the paired response
// completes, or nil for NoReply requests, responses, and acks.
func (m *MessageOut) FutureResponse() *FutureResponse {
	if m.pendingResponse == nil {
		return nil
	}
	return m.pendingResponse.future
}
