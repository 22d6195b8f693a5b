package blip

// MessageNumber identifies a message within one direction of a connection.
// Numbers are assigned monotonically starting at 1; a response reuses the
// number of the request it answers. Zero is reserved and never valid.
type MessageNumber uint64

// MessageType identifies the type of message, encoded in the low 3 bits
// of a frame's flags byte.
type MessageType uint8

const (
	RequestType     MessageType = 0x00 // A message initiated by a peer
	ResponseType    MessageType = 0x01 // A response to a Request
	ErrorType       MessageType = 0x02 // A response indicating failure
	AckRequestType  MessageType = 0x04 // Acknowledges data received from a Request
	AckResponseType MessageType = 0x05 // Acknowledges data received from a Response
)

// String returns the string representation of the message type.
func (t MessageType) String() string {
	switch t {
	case RequestType:
		return "Request"
	case ResponseType:
		return "Response"
	case ErrorType:
		return "Error"
	case AckRequestType:
		return "AckRequest"
	case AckResponseType:
		return "AckResponse"
	default:
		return "Unknown"
	}
}

// isAck reports whether the type is one of the acknowledgement types.
func (t MessageType) isAck() bool {
	return t == AckRequestType || t == AckResponseType
}

// isResponseClass reports whether the type belongs to the response side of
// a request/response pair. Responses and errors answer requests, and
// AckResponse acknowledges a response's data.
func (t MessageType) isResponseClass() bool {
	return t >= ResponseType && t != AckRequestType
}

// ackType returns the acknowledgement type matching this type's class.
func (t MessageType) ackType() MessageType {
	if t.isResponseClass() {
		return AckResponseType
	}
	return AckRequestType
}

// FrameFlags is the 8-bit flags byte carried on every frame.
// Bits 0-2 hold the MessageType; the remaining defined bits are below.
// Undefined bits are reserved and must be zero.
type FrameFlags uint8

const (
	typeMask       FrameFlags = 0x07 // Low 3 bits hold the MessageType
	FlagCompressed FrameFlags = 0x08 // Payload is compressed (reserved, unimplemented)
	FlagUrgent     FrameFlags = 0x10 // Schedule ahead of normal messages
	FlagNoReply    FrameFlags = 0x20 // Sender does not want a response
	FlagMoreComing FrameFlags = 0x40 // Another frame of this message follows
)

// Has returns true if the flags contain the specified flag.
func (ff FrameFlags) Has(flag FrameFlags) bool {
	return ff&flag != 0
}

// Type extracts the MessageType from the flags.
func (ff FrameFlags) Type() MessageType {
	return MessageType(ff & typeMask)
}

// withType replaces the type bits, preserving the rest.
func (ff FrameFlags) withType(t MessageType) FrameFlags {
	return (ff &^ typeMask) | FrameFlags(t)
}

// message holds the state shared by outbound and inbound messages.
type message struct {
	flags  FrameFlags
	number MessageNumber
}

// Number returns the message's number within its direction.
func (m *message) Number() MessageNumber { return m.number }

// Type returns the message's type.
func (m *message) Type() MessageType { return m.flags.Type() }

// Urgent reports whether the message is scheduled in the urgent band.
func (m *message) Urgent() bool { return m.flags.Has(FlagUrgent) }

// NoReply reports whether the sender declined a response.
func (m *message) NoReply() bool { return m.flags.Has(FlagNoReply) }

// Compressed reports whether the reserved compression bit is set.
func (m *message) Compressed() bool { return m.flags.Has(FlagCompressed) }
