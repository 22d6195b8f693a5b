package blip

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// ConnectionOptions configures a Connection. The zero value is usable
// except for Delegate, which is required.
type ConnectionOptions struct {
	// Delegate receives request, response, and close upcalls. Required.
	Delegate Delegate

	// Logger receives connection lifecycle and protocol-error logs.
	// Default: slog.Default() with a "component" field.
	Logger *slog.Logger

	// MaxUnackedBytes is the per-message flow-control window: a message
	// with at least this many sent-but-unacknowledged bytes is not
	// scheduled until an ack arrives. Zero means unbounded.
	MaxUnackedBytes int
}

// ConnectionStats is a snapshot of a connection's traffic counters.
type ConnectionStats struct {
	FramesSent     uint64
	FramesReceived uint64
	BytesSent      uint64
	BytesReceived  uint64
}

// ackKey identifies an outbound message awaiting acknowledgements.
// Requests and responses reuse numbers, so the type class disambiguates.
type ackKey struct {
	number        MessageNumber
	responseClass bool
}

// Connection multiplexes BLIP messages over a Transport. A writer
// goroutine drains the outbox one frame at a time; a reader goroutine owns
// all inbound message state; a dispatcher goroutine delivers delegate
// callbacks in completion order.
type Connection struct {
	transport Transport
	delegate  Delegate
	logger    *slog.Logger

	outbox  *outbox
	deliver *dispatcher

	mu               sync.Mutex
	numRequestsSent  MessageNumber
	inboundRequests  map[MessageNumber]*MessageIn
	pendingResponses map[MessageNumber]*MessageIn
	outForAcks       map[ackKey]*MessageOut

	closeOnce  sync.Once
	closedFlag atomic.Bool
	done       chan struct{}

	framesSent     atomic.Uint64
	framesReceived atomic.Uint64
	bytesSent      atomic.Uint64
	bytesReceived  atomic.Uint64
}

// NewConnection wraps a Transport in a BLIP connection. Call Start to
// begin exchanging messages.
func NewConnection(t Transport, opts ConnectionOptions) *Connection {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "blip")
	}
	return &Connection{
		transport:        t,
		delegate:         opts.Delegate,
		logger:           logger,
		outbox:           newOutbox(opts.MaxUnackedBytes),
		deliver:          newDispatcher(),
		inboundRequests:  make(map[MessageNumber]*MessageIn),
		pendingResponses: make(map[MessageNumber]*MessageIn),
		outForAcks:       make(map[ackKey]*MessageOut),
		done:             make(chan struct{}),
	}
}

// Start launches the connection's reader, writer, and dispatcher
// goroutines. It returns immediately.
func (c *Connection) Start() {
	go c.deliver.run()

	g := new(errgroup.Group)
	g.Go(c.readLoop)
	g.Go(c.writeLoop)
	go func() {
		c.shutdown(g.Wait())
	}()
}

// Close shuts the connection down locally. Every pending FutureResponse
// fails with ErrConnectionClosed, in-flight inbound messages are
// discarded, and the delegate's OnClose fires with a nil reason.
func (c *Connection) Close() error {
	c.shutdown(nil)
	return nil
}

// Done returns a channel closed once the connection has fully shut down.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Stats returns a snapshot of the connection's traffic counters.
func (c *Connection) Stats() ConnectionStats {
	return ConnectionStats{
		FramesSent:     c.framesSent.Load(),
		FramesReceived: c.framesReceived.Load(),
		BytesSent:      c.bytesSent.Load(),
		BytesReceived:  c.bytesReceived.Load(),
	}
}

// SendRequest enqueues a request built with b. The returned MessageOut's
// FutureResponse resolves when the reply completes; it is nil if the
// builder set NoReply.
func (c *Connection) SendRequest(b *MessageBuilder) (*MessageOut, error) {
	if b.Type != RequestType {
		return nil, ErrNotARequest
	}
	payload, flags := b.Finish()
	if flags.Has(FlagCompressed) {
		return nil, ErrUnsupportedFeature
	}
	msg := newMessageOut(c, flags, 0, payload)
	if err := c.enqueue(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// sendResponse enqueues a reply built by MessageIn.Respond.
func (c *Connection) sendResponse(flags FrameFlags, number MessageNumber, payload []byte) error {
	if flags.Has(FlagCompressed) {
		return ErrUnsupportedFeature
	}
	return c.enqueue(newMessageOut(c, flags, number, payload))
}

// sendAck enqueues a flow-control acknowledgement for an inbound message.
// Acks are urgent, reply-less, and carry the cumulative received byte
// count as a bare varint payload.
func (c *Connection) sendAck(t MessageType, number MessageNumber, bytesReceived uint64) {
	payload := AppendUvarint(make([]byte, 0, MaxVarintLen), bytesReceived)
	flags := FrameFlags(t) | FlagUrgent | FlagNoReply
	if err := c.enqueue(newMessageOut(c, flags, number, payload)); err != nil {
		c.logger.Debug("dropping ack on closed connection", "number", number)
	}
}

// enqueue registers the message and hands it to the outbox. Request
// numbers are assigned here, under the connection lock, so numbers are
// strictly increasing in queue order.
func (c *Connection) enqueue(msg *MessageOut) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closedFlag.Load() {
		return ErrConnectionClosed
	}
	if msg.Type() == RequestType {
		c.numRequestsSent++
		msg.number = c.numRequestsSent
		if msg.pendingResponse != nil {
			msg.pendingResponse.number = msg.number
			c.pendingResponses[msg.number] = msg.pendingResponse
		}
	}
	if !msg.Type().isAck() {
		c.outForAcks[ackKey{msg.number, msg.Type().isResponseClass()}] = msg
	}
	if err := c.outbox.push(msg); err != nil {
		if msg.pendingResponse != nil {
			delete(c.pendingResponses, msg.number)
		}
		delete(c.outForAcks, ackKey{msg.number, msg.Type().isResponseClass()})
		return err
	}
	return nil
}

// writeLoop drains the outbox one frame at a time, writing each to the
// transport. A message with frames left is requeued behind its band so
// frames interleave fairly.
func (c *Connection) writeLoop() error {
	for {
		msg := c.outbox.pop()
		if msg == nil {
			return nil
		}

		budget := c.transport.MaxFrameSize() - UvarintLen(uint64(msg.number)) - 1
		if budget < 1 {
			budget = 1
		}
		frame, flags := msg.nextFrameToSend(budget)

		buf := make([]byte, 0, UvarintLen(uint64(msg.number))+1+len(frame))
		buf = AppendUvarint(buf, uint64(msg.number))
		buf = append(buf, byte(flags))
		buf = append(buf, frame...)

		if err := c.transport.WriteFrame(buf); err != nil {
			if c.closedFlag.Load() {
				return nil
			}
			return fmt.Errorf("blip: write frame: %w", err)
		}
		c.framesSent.Add(1)
		c.bytesSent.Add(uint64(len(buf)))

		if flags.Has(FlagMoreComing) {
			c.outbox.requeue(msg)
		} else {
			c.logger.Debug("sent message",
				"type", msg.Type().String(), "number", uint64(msg.number))
			if !msg.Type().isAck() {
				c.mu.Lock()
				delete(c.outForAcks, ackKey{msg.number, msg.Type().isResponseClass()})
				c.mu.Unlock()
			}
		}
	}
}

// readLoop reads frames from the transport and routes each to the right
// inbound message or ack handler. A protocol violation closes the whole
// connection.
func (c *Connection) readLoop() error {
	for {
		buf, err := c.transport.ReadFrame()
		if err != nil {
			if c.closedFlag.Load() {
				return nil
			}
			return fmt.Errorf("blip: read frame: %w", err)
		}
		c.framesReceived.Add(1)
		c.bytesReceived.Add(uint64(len(buf)))

		if err := c.receivedFrame(buf); err != nil {
			c.logger.Error("protocol error", "error", err)
			c.shutdown(err)
			return err
		}
	}
}

// receivedFrame demultiplexes one inbound frame.
func (c *Connection) receivedFrame(buf []byte) error {
	number, n := DecodeUvarint(buf)
	if n < 0 || n >= len(buf) || number == 0 {
		return ErrInvalidFrame
	}
	flags := FrameFlags(buf[n])
	payload := buf[n+1:]
	num := MessageNumber(number)

	switch t := flags.Type(); t {
	case AckRequestType, AckResponseType:
		return c.receivedAckFrame(t, num, payload)

	case RequestType:
		c.mu.Lock()
		msg := c.inboundRequests[num]
		if msg == nil {
			msg = newMessageIn(c, flags, num)
			c.inboundRequests[num] = msg
		}
		c.mu.Unlock()

		complete, err := msg.receivedFrame(payload, flags)
		if err != nil {
			return err
		}
		if complete {
			c.mu.Lock()
			delete(c.inboundRequests, num)
			c.mu.Unlock()
			c.logger.Debug("received request", "number", uint64(num))
			if c.delegate != nil {
				c.deliver.enqueue(func() { c.delegate.OnRequestReceived(msg) })
			}
		}
		return nil

	case ResponseType, ErrorType:
		c.mu.Lock()
		msg := c.pendingResponses[num]
		c.mu.Unlock()
		if msg == nil {
			// A reply to a NoReply or unknown request. Drop the frame.
			c.logger.Warn("dropping unexpected response", "number", uint64(num))
			return nil
		}

		complete, err := msg.receivedFrame(payload, flags)
		if err != nil {
			return err
		}
		if complete {
			c.mu.Lock()
			delete(c.pendingResponses, num)
			c.mu.Unlock()
			c.logger.Debug("received response",
				"type", msg.Type().String(), "number", uint64(num))
			if msg.future != nil {
				msg.future.fulfil(msg)
			}
			if c.delegate != nil {
				c.deliver.enqueue(func() { c.delegate.OnResponseReceived(msg) })
			}
		}
		return nil

	default:
		return fmt.Errorf("%w: unknown message type %d", ErrInvalidFrame, t)
	}
}

// receivedAckFrame applies a peer acknowledgement to the outbound message
// it names. Acks for exhausted or unknown messages are ignored.
func (c *Connection) receivedAckFrame(t MessageType, num MessageNumber, payload []byte) error {
	bytesReceived, n := DecodeUvarint(payload)
	if n < 0 {
		return fmt.Errorf("%w: bad ack payload", ErrInvalidFrame)
	}
	c.mu.Lock()
	msg := c.outForAcks[ackKey{num, t == AckResponseType}]
	c.mu.Unlock()
	if msg != nil {
		msg.receivedAck(bytesReceived)
		c.outbox.wake()
	}
	return nil
}

// shutdown tears the connection down exactly once: the transport and
// outbox close, pending futures fail with ErrConnectionClosed, in-flight
// inbound messages are discarded undelivered, and the delegate's OnClose
// fires as the final callback.
func (c *Connection) shutdown(reason error) {
	c.closeOnce.Do(func() {
		c.closedFlag.Store(true)
		c.outbox.close()
		if err := c.transport.Close(); err != nil {
			c.logger.Debug("transport close", "error", err)
		}

		c.mu.Lock()
		pending := c.pendingResponses
		c.pendingResponses = make(map[MessageNumber]*MessageIn)
		c.inboundRequests = make(map[MessageNumber]*MessageIn)
		c.outForAcks = make(map[ackKey]*MessageOut)
		c.mu.Unlock()

		for _, msg := range pending {
			if msg.future != nil {
				msg.future.fail(ErrConnectionClosed)
			}
		}

		if reason != nil {
			c.logger.Info("connection closed", "reason", reason)
		} else {
			c.logger.Info("connection closed")
		}
		if c.delegate != nil {
			c.deliver.enqueue(func() { c.delegate.OnClose(reason) })
		}
		c.deliver.stop()
		close(c.done)
	})
}
