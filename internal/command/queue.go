package command

import "sync"

// Queue is an unbounded FIFO channel of commands. Unboundedness is
// deliberate: a slow client must never block the hub's broadcast, and
// backpressure is handled explicitly by the agent's spore-batch
// throttling instead of channel capacity.
type Queue struct {
	mu     sync.Mutex
	closed bool
	in     chan Command
	out    chan Command
}

// NewQueue creates a queue and starts its pump goroutine.
func NewQueue() *Queue {
	q := &Queue{
		in:  make(chan Command),
		out: make(chan Command),
	}
	go q.pump()
	return q
}

// Push enqueues cmd. It never blocks behind the consumer and reports
// false once the queue is closed.
func (q *Queue) Push(cmd Command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.in <- cmd
	return true
}

// C returns the receive side. It is closed after Close once delivered
// commands run out; commands still buffered at Close are dropped.
func (q *Queue) C() <-chan Command {
	return q.out
}

// Close stops the queue. Pushes after Close are no-ops.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.in)
}

// pump shuttles commands from in to out through an elastic buffer,
// preserving FIFO order.
func (q *Queue) pump() {
	var buf []Command
	for {
		if len(buf) == 0 {
			cmd, ok := <-q.in
			if !ok {
				close(q.out)
				return
			}
			buf = append(buf, cmd)
			continue
		}
		select {
		case cmd, ok := <-q.in:
			if !ok {
				close(q.out)
				return
			}
			buf = append(buf, cmd)
		case q.out <- buf[0]:
			buf = buf[1:]
		}
	}
}
