// Package queue implements the in-region layout and state machine of the
// single-producer/single-consumer circular queue: header and slot byte
// layout, size computation, construction, and the producer/consumer
// endpoints that manipulate slots through a local mapping base. Nothing
// here allocates region memory itself: callers hand in an address
// already mapped by a region backend.
package queue

import (
	"github.com/fzheng/shmipc/internal/constants"
)

// Header field byte offsets. The header occupies exactly one cacheline;
// every field before the padding is plain (non-atomic) after the
// initialized flag has been observed true with an acquire load, since
// that load establishes happens-before against the creator's release
// store (see Header.Initialized).
const (
	headerInitializedOffset = uintptr(0)
	headerMaxSlotsOffset    = uintptr(4)
	headerMaxPayloadOffset  = uintptr(8)
	headerSlotSizeOffset    = uintptr(16)
	headerTotalSizeOffset   = uintptr(24)
)

// HeaderSize is the queue header's footprint in the region: one full
// cacheline, padded so the first slot begins on a fresh one (spec §3,
// "queue header").
const HeaderSize = uintptr(constants.CacheLineSize)

// Slot field byte offsets, relative to the slot's own base address.
// status occupies a full uint32 instead of a byte so it can be the
// target of atomic load/store; size is placed at offset 8 to keep it
// naturally aligned, matching the reference df_queue_slot layout (status
// word, then payload size, then payload bytes).
const (
	slotStatusOffset = uintptr(0)
	slotSizeOffset   = uintptr(8)
	slotDataOffset   = uintptr(16)
)

// Slot status values (spec §3, "Slot"): EMPTY=1, FULL=0, matching the
// reference df_shm_queue.h SLOT_FLAG enum exactly so a reader familiar
// with the original numbering isn't surprised.
const (
	StatusFull  uint32 = 0
	StatusEmpty uint32 = 1
)

func roundUpCacheline(n uintptr) uintptr {
	cl := uintptr(constants.CacheLineSize)
	if rem := n % cl; rem != 0 {
		n += cl - rem
	}
	return n
}

// CalculateSlotSize returns the cacheline-rounded size of one slot
// holding up to maxPayload bytes of payload (spec §4.3.1, Q1).
func CalculateSlotSize(maxPayload uintptr) uintptr {
	return roundUpCacheline(slotDataOffset + maxPayload)
}

// CalculateQueueSize returns the total region footprint of a queue with
// maxSlots slots of maxPayload bytes each (spec §4.3.1's
// calculate_queue_size), so callers can provision the region before
// mapping.
func CalculateQueueSize(maxSlots uint32, maxPayload uintptr) uintptr {
	return HeaderSize + uintptr(maxSlots)*CalculateSlotSize(maxPayload)
}
