package blip

import "sync"

// outbox is the set of outbound messages with unsent frames, kept in two
// priority bands. The writer takes a message from the front of a band,
// sends one frame, and requeues it at the back, which round-robins frames
// across every message of the band. Urgent messages always go first.
type outbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	urgent []*MessageOut
	normal []*MessageOut

	// window is the per-message unacked-byte ceiling; 0 means unbounded.
	window int
	closed bool
}

func newOutbox(window int) *outbox {
	ob := &outbox{window: window}
	ob.cond = sync.NewCond(&ob.mu)
	return ob
}

// push adds a new message to the back of its band.
func (ob *outbox) push(msg *MessageOut) error {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	if ob.closed {
		return ErrConnectionClosed
	}
	ob.add(msg)
	return nil
}

// requeue returns a partially sent message to the back of its band.
// Requeues after close are dropped; the writer is already draining out.
func (ob *outbox) requeue(msg *MessageOut) {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	if ob.closed {
		return
	}
	ob.add(msg)
}

func (ob *outbox) add(msg *MessageOut) {
	if msg.Urgent() {
		ob.urgent = append(ob.urgent, msg)
	} else {
		ob.normal = append(ob.normal, msg)
	}
	ob.cond.Signal()
}

// pop blocks until a message may be scheduled, and removes and returns it.
// It returns nil once the outbox has closed. Messages over the
// flow-control window are skipped until an ack reopens them.
func (ob *outbox) pop() *MessageOut {
	ob.mu.Lock()
	defer ob.mu.Unlock()
	for {
		if ob.closed {
			return nil
		}
		if msg := takeSendable(&ob.urgent, ob.window); msg != nil {
			return msg
		}
		if msg := takeSendable(&ob.normal, ob.window); msg != nil {
			return msg
		}
		ob.cond.Wait()
	}
}

// takeSendable removes and returns the first message in the band that the
// flow-control window allows.
func takeSendable(band *[]*MessageOut, window int) *MessageOut {
	for i, msg := range *band {
		if msg.sendable(window) {
			*band = append((*band)[:i], (*band)[i+1:]...)
			return msg
		}
	}
	return nil
}

// wake re-evaluates the window checks after an ack arrives.
func (ob *outbox) wake() {
	ob.mu.Lock()
	ob.cond.Broadcast()
	ob.mu.Unlock()
}

// close unblocks pop and refuses further pushes.
func (ob *outbox) close() {
	ob.mu.Lock()
	ob.closed = true
	ob.cond.Broadcast()
	ob.mu.Unlock()
}
