package queue

import (
	"sync/atomic"
	"unsafe"
)

// Header is a view over a queue header already placed in shared memory
// at base. It holds no bytes of its own.
type Header struct {
	base uintptr
}

// HeaderAt returns a view over the header assumed to already exist at
// addr in this process's mapping.
func HeaderAt(addr uintptr) *Header {
	return &Header{base: addr}
}

func (h *Header) ptr32(off uintptr) *uint32 {
	return (*uint32)(unsafe.Pointer(h.base + off))
}

func (h *Header) ptr64(off uintptr) *uint64 {
	return (*uint64)(unsafe.Pointer(h.base + off))
}

// Initialized reports whether create_queue has finished publishing this
// header (spec §4.3.2: initialized is set last, after every other field
// and every slot has been written).
func (h *Header) Initialized() bool {
	return atomic.LoadUint32(h.ptr32(headerInitializedOffset)) != 0
}

func (h *Header) setInitialized(v bool) {
	var word uint32
	if v {
		word = 1
	}
	atomic.StoreUint32(h.ptr32(headerInitializedOffset), word)
}

// MaxNumSlots returns the queue's slot capacity. Valid only once
// Initialized reports true.
func (h *Header) MaxNumSlots() uint32 {
	return *h.ptr32(headerMaxSlotsOffset)
}

// MaxPayloadSize returns the per-slot payload capacity in bytes.
func (h *Header) MaxPayloadSize() uint64 {
	return *h.ptr64(headerMaxPayloadOffset)
}

// SlotSize returns the cacheline-rounded per-slot footprint.
func (h *Header) SlotSize() uint64 {
	return *h.ptr64(headerSlotSizeOffset)
}

// TotalSize returns the queue's total footprint, header included.
func (h *Header) TotalSize() uint64 {
	return *h.ptr64(headerTotalSizeOffset)
}

func (h *Header) setMaxNumSlots(n uint32)      { *h.ptr32(headerMaxSlotsOffset) = n }
func (h *Header) setMaxPayloadSize(p uint64)   { *h.ptr64(headerMaxPayloadOffset) = p }
func (h *Header) setSlotSize(s uint64)         { *h.ptr64(headerSlotSizeOffset) = s }
func (h *Header) setTotalSize(total uint64)    { *h.ptr64(headerTotalSizeOffset) = total }
