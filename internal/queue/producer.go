package queue

// Producer is the sending endpoint of a queue (spec §4.3.3,
// get_queue_sender_ep / §4.3.4). It is process-local: its slot-address
// cache is built from this process's own attach base, which is what
// makes the queue address-translation-invariant across processes
// mapping the same region at different addresses.
type Producer struct {
	cursor     uint32
	n          uint32
	maxPayload uintptr
	slots      []Slot
}

// NewProducer builds the sending endpoint for q. The queue must already
// be initialized; on the attaching side this means the peer's
// CreateQueue has already run and published initialized=1.
func NewProducer(q *Queue) (*Producer, error) {
	if !q.Initialized() {
		return nil, ErrNotInitialized
	}
	return &Producer{
		n:          q.MaxNumSlots(),
		maxPayload: q.MaxPayloadSize(),
		slots:      q.slotCache(),
	}, nil
}

func (p *Producer) current() Slot {
	return p.slots[p.cursor]
}

func (p *Producer) advance() {
	p.cursor = (p.cursor + 1) % p.n
}

func (p *Producer) publish(payload []byte) {
	s := p.current()
	s.writePayload(p.maxPayload, payload)
	s.SetSize(uint64(len(payload)))
	s.StoreStatusRelease(StatusFull)
	p.advance()
}

func (p *Producer) publishVector(bufs [][]byte) {
	s := p.current()
	n := s.writeVector(p.maxPayload, bufs)
	s.SetSize(uint64(n))
	s.StoreStatusRelease(StatusFull)
	p.advance()
}

func totalLen(bufs [][]byte) int {
	n := 0
	for _, b := range bufs {
		n += len(b)
	}
	return n
}

// Enqueue blocks, spinning on the current slot's status, until it can
// publish payload (spec §4.3.4, "Blocking enqueue"). It never sleeps or
// yields.
func (p *Producer) Enqueue(payload []byte) error {
	if uintptr(len(payload)) > p.maxPayload {
		return ErrCapacityExceeded
	}
	for p.current().LoadStatusAcquire() != StatusEmpty {
	}
	p.publish(payload)
	return nil
}

// TryEnqueue returns ErrNotAvailable immediately if the current slot is
// FULL, and ErrCapacityExceeded without touching the slot if payload is
// too large (spec §4.3.4, "Non-blocking enqueue").
func (p *Producer) TryEnqueue(payload []byte) error {
	if uintptr(len(payload)) > p.maxPayload {
		return ErrCapacityExceeded
	}
	if p.current().LoadStatusAcquire() != StatusEmpty {
		return ErrNotAvailable
	}
	p.publish(payload)
	return nil
}

// EnqueueVector is Enqueue for scatter/gather payloads: bufs are
// concatenated into the slot's data area in order. The capacity check
// uses the sum of all buffer lengths, checked before any slot is
// touched (spec §4.3.4, "Vector enqueue").
func (p *Producer) EnqueueVector(bufs [][]byte) error {
	if uintptr(totalLen(bufs)) > p.maxPayload {
		return ErrCapacityExceeded
	}
	for p.current().LoadStatusAcquire() != StatusEmpty {
	}
	p.publishVector(bufs)
	return nil
}

// TryEnqueueVector is the non-blocking counterpart of EnqueueVector.
func (p *Producer) TryEnqueueVector(bufs [][]byte) error {
	if uintptr(totalLen(bufs)) > p.maxPayload {
		return ErrCapacityExceeded
	}
	if p.current().LoadStatusAcquire() != StatusEmpty {
		return ErrNotAvailable
	}
	p.publishVector(bufs)
	return nil
}

// IsEnqueuePossible reports whether the current slot is EMPTY right
// now. The state may change immediately afterward (spec §4.3.5,
// "Predicates").
func (p *Producer) IsEnqueuePossible() bool {
	return p.current().LoadStatusAcquire() == StatusEmpty
}
