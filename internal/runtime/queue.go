package runtime

import (
	"sync"
)

// mailbox is an unbounded FIFO guarded by a mutex. Producers never block;
// the consumer swaps the whole backlog out in one step.
type mailbox struct {
	mu      sync.Mutex
	items   []Message
	closed  bool
	dropped uint64
	sent    uint64
}

// Sender is the producer side of the queue. Copies share the same queue.
type Sender struct {
	box *mailbox
}

// Receiver is the consumer side of the queue. It must be used from a single
// goroutine.
type Receiver struct {
	box *mailbox
}

// NewQueue creates a connected Sender/Receiver pair.
func NewQueue() (Sender, *Receiver) {
	box := &mailbox{}
	return Sender{box: box}, &Receiver{box: box}
}

// Send enqueues m and reports whether it was accepted. Messages sent after
// the queue is closed are counted and dropped.
func (s Sender) Send(m Message) bool {
	if s.box == nil {
		return false
	}
	s.box.mu.Lock()
	defer s.box.mu.Unlock()
	if s.box.closed {
		s.box.dropped++
		return false
	}
	s.box.items = append(s.box.items, m)
	s.box.sent++
	return true
}

// Valid reports whether the sender is connected to a queue.
func (s Sender) Valid() bool { return s.box != nil }

// TryRecv pops the oldest message without blocking.
func (r *Receiver) TryRecv() (Message, bool) {
	r.box.mu.Lock()
	defer r.box.mu.Unlock()
	if len(r.box.items) == 0 {
		return Message{}, false
	}
	m := r.box.items[0]
	r.box.items[0] = Message{}
	r.box.items = r.box.items[1:]
	return m, true
}

// Drain removes and returns every queued message in FIFO order.
func (r *Receiver) Drain() []Message {
	r.box.mu.Lock()
	defer r.box.mu.Unlock()
	out := r.box.items
	r.box.items = nil
	return out
}

// Len returns the number of queued messages.
func (r *Receiver) Len() int {
	r.box.mu.Lock()
	defer r.box.mu.Unlock()
	return len(r.box.items)
}

// Stats returns how many messages were accepted and dropped so far.
func (r *Receiver) Stats() (sent, dropped uint64) {
	r.box.mu.Lock()
	defer r.box.mu.Unlock()
	return r.box.sent, r.box.dropped
}

func (r *Receiver) close() {
	r.box.mu.Lock()
	defer r.box.mu.Unlock()
	r.box.closed = true
	r.box.items = nil
}
