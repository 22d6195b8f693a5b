package blip

// MessageIn is the receiving side of a message: a state machine that
// accumulates frames, extracts the property table once enough bytes have
// arrived, emits flow-control acks, and publishes the body on completion.
//
// All mutation happens on the connection's receive goroutine. Once
// complete, the message is immutable and ownership passes to the
// application via the delegate or a FutureResponse.
type MessageIn struct {
	message
	conn *Connection

	started        bool
	propertiesSize uint64
	acc            []byte
	props          Properties
	propsParsed    bool
	body           []byte
	complete       bool

	bytesReceived int
	unackedBytes  int

	future *FutureResponse
}

func newMessageIn(conn *Connection, flags FrameFlags, number MessageNumber) *MessageIn {
	return &MessageIn{
		message: message{flags: flags, number: number},
		conn:    conn,
	}
}

// receivedFrame feeds one frame's payload into the accumulator and
// reports whether the message is now complete. A non-nil error is a
// protocol violation and must close the connection.
func (m *MessageIn) receivedFrame(frame []byte, frameFlags FrameFlags) (bool, error) {
	if m.complete {
		return false, ErrInvalidFrame
	}
	m.bytesReceived += len(frame)

	if !m.started {
		// The first frame fixes the message's flags: a pending response
		// may upgrade to ErrorType or gain Urgent here.
		m.started = true
		m.flags = frameFlags &^ FlagMoreComing
		if m.flags.Has(FlagCompressed) {
			return false, ErrUnsupportedFeature
		}

		size, n := DecodeUvarint(frame)
		if n < 0 {
			return false, ErrFrameTooSmall
		}
		if size > MaxPropertiesSize {
			return false, ErrPropertiesTooLarge
		}
		m.propertiesSize = size
		frame = frame[n:]
		m.acc = make([]byte, 0, len(frame))
	}

	m.acc = append(m.acc, frame...)

	if !m.propsParsed && uint64(len(m.acc)) >= m.propertiesSize {
		props, err := decodeProperties(m.acc[:m.propertiesSize])
		if err != nil {
			return false, err
		}
		m.props = props
		m.propsParsed = true
		m.acc = m.acc[m.propertiesSize:]
	}

	m.unackedBytes += len(frame)
	if m.unackedBytes >= AckThreshold {
		m.conn.sendAck(m.Type().ackType(), m.number, uint64(m.bytesReceived))
		m.unackedBytes = 0
	}

	if frameFlags.Has(FlagMoreComing) {
		return false, nil
	}

	if !m.propsParsed {
		return false, ErrPropertiesTruncated
	}
	m.body = m.acc
	m.acc = nil
	m.complete = true
	return true, nil
}

// Body returns the message body. Valid once the message is complete.
func (m *MessageIn) Body() []byte { return m.body }

// Properties returns the decoded property table.
func (m *MessageIn) Properties() Properties { return m.props }

// Property returns the value of the named property.
func (m *MessageIn) Property(name string) (string, bool) {
	return m.props.Value(name)
}

// IntProperty returns the named property parsed as a signed decimal
// integer, or def if absent or malformed.
func (m *MessageIn) IntProperty(name string, def int64) int64 {
	return m.props.Int(name, def)
}

// Profile returns the message's Profile property, or "" if unset.
func (m *MessageIn) Profile() string {
	v, _ := m.props.Value(ProfileProperty)
	return v
}

// ErrorDomain returns the Error-Domain property of an Error-type message,
// or "" for other types.
func (m *MessageIn) ErrorDomain() string {
	if m.Type() != ErrorType {
		return ""
	}
	v, _ := m.props.Value(ErrorDomainProperty)
	return v
}

// ErrorCode returns the Error-Code property of an Error-type message, or
// 0 for other types.
func (m *MessageIn) ErrorCode() int64 {
	if m.Type() != ErrorType {
		return 0
	}
	return m.props.Int(ErrorCodeProperty, 0)
}

// Respond sends a reply to an inbound request. The builder's RequestType
// is coerced to ResponseType; the reply reuses this message's number.
// It fails with ErrNoReply if the requester declined a response.
func (m *MessageIn) Respond(b *MessageBuilder) error {
	if m.Type() != RequestType {
		return ErrNotARequest
	}
	if m.NoReply() {
		return ErrNoReply
	}
	if b.Type == RequestType {
		b.Type = ResponseType
	}
	payload, flags := b.Finish()
	return m.conn.sendResponse(flags, m.number, payload)
}

// RespondWithError sends an Error-type reply carrying the reserved error
// properties.
func (m *MessageIn) RespondWithError(domain string, code int, message string) error {
	b := NewResponseBuilder(m)
	if err := b.MakeError(domain, code, message); err != nil {
		return err
	}
	return m.Respond(b)
}
