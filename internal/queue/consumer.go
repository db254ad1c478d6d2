package queue

// Consumer is the receiving endpoint of a queue (spec §4.3.3,
// get_queue_receiver_ep / §4.3.5). Dequeue is a peek-then-release
// protocol: the caller gets an in-place view of the payload and must
// call Release before the slot can be reused.
type Consumer struct {
	cursor     uint32
	n          uint32
	maxPayload uintptr
	slots      []Slot
	peeked     bool
}

// NewConsumer builds the receiving endpoint for q.
func NewConsumer(q *Queue) (*Consumer, error) {
	if !q.Initialized() {
		return nil, ErrNotInitialized
	}
	return &Consumer{
		n:          q.MaxNumSlots(),
		maxPayload: q.MaxPayloadSize(),
		slots:      q.slotCache(),
	}, nil
}

func (c *Consumer) current() Slot {
	return c.slots[c.cursor]
}

func (c *Consumer) peek() []byte {
	s := c.current()
	n := s.Size()
	c.peeked = true
	return s.Data(c.maxPayload)[:n]
}

// Dequeue blocks, spinning on the current slot's status, until a
// payload is available, and returns it in place without copying (spec
// §4.3.5, "Blocking dequeue"). The caller must call Release once done
// reading before the slot can be reused.
func (c *Consumer) Dequeue() ([]byte, error) {
	for c.current().LoadStatusAcquire() != StatusFull {
	}
	return c.peek(), nil
}

// TryDequeue returns ErrNotAvailable immediately if the current slot is
// EMPTY (spec §4.3.5, "Non-blocking dequeue").
func (c *Consumer) TryDequeue() ([]byte, error) {
	if c.current().LoadStatusAcquire() != StatusFull {
		return nil, ErrNotAvailable
	}
	return c.peek(), nil
}

// Release completes the peek-then-release protocol: it zeroes the
// slot's size field, publishes status=EMPTY, and advances the cursor.
// Calling it without a prior successful Dequeue/TryDequeue is a no-op.
func (c *Consumer) Release() {
	if !c.peeked {
		return
	}
	s := c.current()
	s.SetSize(0)
	s.StoreStatusRelease(StatusEmpty)
	c.cursor = (c.cursor + 1) % c.n
	c.peeked = false
}

// IsDequeuePossible reports whether the current slot is FULL right now.
func (c *Consumer) IsDequeuePossible() bool {
	return c.current().LoadStatusAcquire() == StatusFull
}
