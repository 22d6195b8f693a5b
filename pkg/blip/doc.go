// Package blip implements the BLIP message layer: a bidirectional,
// multiplexed request/response protocol carried over an ordered, reliable
// frame transport (typically a WebSocket).
//
// BLIP interleaves independent messages as small framed chunks so that
// short, urgent messages are not stuck behind large ones, and applies
// per-message flow control via acknowledgements.
//
// # Design Goals
//
//   - Fair multiplexing: round-robin frame scheduling within each urgency band
//   - Two-level priority: urgent messages preempt normal ones at frame boundaries
//   - Flow control: receivers acknowledge every 50,000 bytes per message
//   - Compact headers: well-known property strings collapse to a single token byte
//   - At-most-once delivery of each completed message to the application
//
// # Wire Format
//
// Each transport frame carries a prefix of one message's payload:
//
//	┌──────────────────┬───────────┬──────────────────────────────┐
//	│ Message number   │ Flags     │ Payload slice                │
//	│ (varint)         │ (1 byte)  │ (≤ transport max frame size) │
//	└──────────────────┴───────────┴──────────────────────────────┘
//
// The flags byte holds the message type in its low 3 bits plus the
// Compressed, Urgent, NoReply, and MoreComing bits. Every frame of a
// message repeats the base flags; MoreComing is set on all but the last.
//
// A message's payload is:
//
//	varint propertiesSize | property table (null-terminated pairs) | body
//
// # Messages
//
// Outbound messages are assembled with a MessageBuilder and sent with
// Connection.SendRequest. A request that expects a reply yields a
// FutureResponse which resolves when the paired response completes:
//
//	b := blip.NewMessageBuilder()
//	b.AddProperty("Profile", "echo")
//	b.Write([]byte("hi"))
//	msg, err := conn.SendRequest(b)
//	resp, err := msg.FutureResponse().Await(ctx)
//
// Inbound requests arrive through the Delegate; handlers reply with
// MessageIn.Respond or MessageIn.RespondWithError.
//
// Application errors are data, not connection failures: they travel as
// Error-type messages through the same channels as successful responses.
// Only protocol violations (malformed properties, truncated frames, the
// unimplemented Compressed flag) terminate the connection.
//
// # File Structure
//
// The package is organized as follows:
//
//   - varint.go: Varint encoding/decoding
//   - message.go: Message numbers, types, and flags
//   - properties.go: Property table codec with the frozen token dictionary
//   - builder.go: Outbound message assembly
//   - outgoing.go: Outbound message state (framing, acks)
//   - incoming.go: Inbound message reassembly state machine
//   - connection.go: Frame scheduling, dispatch, and lifecycle
//   - future.go: One-shot response futures
//   - transport.go: The frame transport contract
package blip
