package blip

// Delegate is the application's upcall surface. Callbacks are delivered
// one at a time, in the order each message's final frame arrived, from a
// dedicated goroutine; a callback may safely call back into the
// connection (Respond, SendRequest, Close).
type Delegate interface {
	// OnRequestReceived delivers a completed inbound request. The
	// application must respond unless the request has NoReply set.
	OnRequestReceived(req *MessageIn)

	// OnResponseReceived delivers a completed response paired with a
	// prior outbound request. It is invoked in addition to resolving the
	// request's FutureResponse.
	OnResponseReceived(resp *MessageIn)

	// OnClose is invoked exactly once when the connection shuts down.
	// reason is nil for a locally requested close.
	OnClose(reason error)
}
