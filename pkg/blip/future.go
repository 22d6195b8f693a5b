package blip

import (
	"context"
	"sync"
)

// FutureResponse is a one-shot handle that resolves when the response
// paired with an outbound request completes. It is fulfilled exactly once,
// always from the connection's receive path, and may be awaited from any
// goroutine.
type FutureResponse struct {
	done chan struct{}
	once sync.Once
	msg  *MessageIn
	err  error
}

func newFutureResponse() *FutureResponse {
	return &FutureResponse{done: make(chan struct{})}
}

// fulfil resolves the future with a completed response message.
func (f *FutureResponse) fulfil(msg *MessageIn) {
	f.once.Do(func() {
		f.msg = msg
		close(f.done)
	})
}

// fail resolves the future with an error, typically ErrConnectionClosed.
func (f *FutureResponse) fail(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Await blocks until the response arrives, the connection closes, or ctx
// is done. A response of ErrorType is returned as a normal MessageIn; use
// MessageIn.ErrorDomain and ErrorCode to inspect it.
func (f *FutureResponse) Await(ctx context.Context) (*MessageIn, error) {
	select {
	case <-f.done:
		return f.msg, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done returns a channel closed when the future has resolved.
func (f *FutureResponse) Done() <-chan struct{} {
	return f.done
}
