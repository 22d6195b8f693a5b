package blip

import "errors"

// Protocol-level errors. Any of these surfacing from inbound frame
// processing terminates the connection; the builder errors are returned
// to the caller and leave the connection untouched.
var (
	// ErrMalformedProperties indicates a property table that is not a
	// sequence of null-terminated strings ending on a terminator boundary.
	ErrMalformedProperties = errors.New("blip: malformed message properties")

	// ErrFrameTooSmall indicates a first frame too short to carry the
	// propertiesSize varint.
	ErrFrameTooSmall = errors.New("blip: frame too small")

	// ErrPropertiesTruncated indicates a message that ended before its
	// declared property table was complete.
	ErrPropertiesTruncated = errors.New("blip: message ends before end of properties")

	// ErrPropertiesTooLarge indicates a declared property table size
	// beyond MaxPropertiesSize.
	ErrPropertiesTooLarge = errors.New("blip: message properties too large")

	// ErrUnsupportedFeature indicates a frame using a protocol feature
	// this implementation does not support, such as the Compressed flag.
	ErrUnsupportedFeature = errors.New("blip: unsupported protocol feature")

	// ErrInvalidProperty is returned by MessageBuilder when a property
	// string contains a NUL byte or would be ambiguous with a token byte.
	ErrInvalidProperty = errors.New("blip: invalid property string")

	// ErrPropertiesClosed is returned by MessageBuilder.AddProperty once
	// body bytes have been written.
	ErrPropertiesClosed = errors.New("blip: message properties already closed")

	// ErrConnectionClosed is surfaced to every pending FutureResponse and
	// to senders once the connection has shut down.
	ErrConnectionClosed = errors.New("blip: connection closed")

	// ErrNoReply is returned by MessageIn.Respond when the request was
	// sent with the NoReply flag.
	ErrNoReply = errors.New("blip: message does not want a reply")

	// ErrNotARequest is returned by MessageIn.Respond when invoked on a
	// message that is not a request.
	ErrNotARequest = errors.New("blip: cannot respond to a non-request message")

	// ErrInvalidFrame indicates an inbound frame whose header could not
	// be parsed or whose type bits are undefined.
	ErrInvalidFrame = errors.New("blip: invalid frame")
)
