package queue

import (
	"github.com/fzheng/shmipc/internal/constants"
)

// Queue is a handle to a queue header already placed in a region. It
// does not own the underlying bytes; the enclosing region's lifetime
// bounds the queue's.
type Queue struct {
	hdr  *Header
	base uintptr
}

// CreateQueue writes a fresh header and slot table at addr (spec
// §4.3.2). addr must be cacheline-aligned within the region; the header
// occupies the cacheline at addr, and slot i occupies
// addr + HeaderSize + i*slot_size.
func CreateQueue(addr uintptr, maxSlots uint32, maxPayload uintptr) (*Queue, error) {
	if addr == 0 {
		return nil, ErrInvalidArgument
	}
	if addr%uintptr(constants.CacheLineSize) != 0 {
		return nil, ErrInvalidArgument
	}
	if maxSlots == 0 || maxPayload == 0 {
		return nil, ErrInvalidArgument
	}

	h := &Header{base: addr}
	h.setInitialized(false)

	slotSize := CalculateSlotSize(maxPayload)
	total := HeaderSize + uintptr(maxSlots)*slotSize

	h.setMaxNumSlots(maxSlots)
	h.setMaxPayloadSize(uint64(maxPayload))
	h.setSlotSize(uint64(slotSize))
	h.setTotalSize(uint64(total))

	q := &Queue{hdr: h, base: addr}
	for i := uint32(0); i < maxSlots; i++ {
		s := q.slotAt(i)
		s.SetSize(0)
		s.StoreStatusRelease(StatusEmpty)
	}
	h.setInitialized(true)

	return q, nil
}

// OpenQueue returns a handle to a queue whose header is already
// initialized at addr. Used by the attaching side of a region, which
// never calls CreateQueue itself.
func OpenQueue(addr uintptr) (*Queue, error) {
	h := &Header{base: addr}
	if !h.Initialized() {
		return nil, ErrNotInitialized
	}
	return &Queue{hdr: h, base: addr}, nil
}

// DestroyQueue clears the header's initialized flag (spec §4.3.2).
// Destruction while a peer may still be using the queue is undefined;
// callers coordinate externally.
func DestroyQueue(q *Queue) {
	q.hdr.setInitialized(false)
}

// MaxNumSlots returns the queue's slot capacity.
func (q *Queue) MaxNumSlots() uint32 { return q.hdr.MaxNumSlots() }

// MaxPayloadSize returns the per-slot payload capacity in bytes.
func (q *Queue) MaxPayloadSize() uintptr { return uintptr(q.hdr.MaxPayloadSize()) }

// TotalSize returns the queue's total region footprint.
func (q *Queue) TotalSize() uintptr { return uintptr(q.hdr.TotalSize()) }

// Initialized reports whether the queue's header is currently live.
func (q *Queue) Initialized() bool { return q.hdr.Initialized() }

func (q *Queue) slotAt(i uint32) Slot {
	off := HeaderSize + uintptr(i)*uintptr(q.hdr.SlotSize())
	return slotAt(q.base + off)
}

func (q *Queue) slotCache() []Slot {
	n := q.MaxNumSlots()
	slots := make([]Slot, n)
	for i := uint32(0); i < n; i++ {
		slots[i] = q.slotAt(i)
	}
	return slots
}
