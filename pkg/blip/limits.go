package blip

// Protocol limits.
const (
	// AckThreshold is the number of received payload bytes per message
	// after which the receiver sends an acknowledgement. Fixed by the
	// protocol; both peers rely on the same cadence for flow control.
	AckThreshold = 50000

	// MaxPropertiesSize caps the declared size of an inbound property
	// table. A peer declaring more than this is treated as malicious and
	// the connection is closed with ErrPropertiesTooLarge.
	MaxPropertiesSize = 100 * 1024
)
