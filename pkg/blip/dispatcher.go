package blip

import "sync"

// dispatcher delivers delegate callbacks one at a time, in enqueue order,
// from its own goroutine. Keeping delivery off the receive goroutine means
// a handler calling Respond or SendRequest can never deadlock the
// connection, while the FIFO preserves the order completions occurred in.
type dispatcher struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	stopped bool
}

func newDispatcher() *dispatcher {
	d := &dispatcher{}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// enqueue appends a callback. Callbacks enqueued after stop are dropped.
func (d *dispatcher) enqueue(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.queue = append(d.queue, fn)
	d.cond.Signal()
}

// stop lets already-queued callbacks drain, then ends run.
func (d *dispatcher) stop() {
	d.mu.Lock()
	d.stopped = true
	d.cond.Broadcast()
	d.mu.Unlock()
}

// run invokes callbacks until stopped and drained.
func (d *dispatcher) run() {
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.stopped {
			d.cond.Wait()
		}
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		fn := d.queue[0]
		d.queue = d.queue[1:]
		d.mu.Unlock()
		fn()
	}
}
