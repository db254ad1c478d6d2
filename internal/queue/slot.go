package queue

import (
	"sync/atomic"
	"unsafe"
)

// Slot is a view over one queue slot already placed in shared memory at
// base (queue_base + HeaderSize + i*slot_size for slot i).
type Slot struct {
	base uintptr
}

func slotAt(base uintptr) Slot {
	return Slot{base: base}
}

func (s Slot) statusPtr() *uint32 {
	return (*uint32)(unsafe.Pointer(s.base + slotStatusOffset))
}

func (s Slot) sizePtr() *uint64 {
	return (*uint64)(unsafe.Pointer(s.base + slotSizeOffset))
}

func (s Slot) dataPtr() unsafe.Pointer {
	return unsafe.Pointer(s.base + slotDataOffset)
}

// LoadStatusAcquire reads the slot's status word. On amd64/arm64 an
// atomic load already carries acquire semantics; sync/atomic is used
// here rather than the teacher's cgo barrier (internal/uring/barrier.go)
// purely for portability, not because the ordering requirement differs.
func (s Slot) LoadStatusAcquire() uint32 {
	return atomic.LoadUint32(s.statusPtr())
}

// StoreStatusRelease publishes the slot's status word.
func (s Slot) StoreStatusRelease(v uint32) {
	atomic.StoreUint32(s.statusPtr(), v)
}

// Size returns the slot's current payload length.
func (s Slot) Size() uint64 {
	return atomic.LoadUint64(s.sizePtr())
}

// SetSize sets the slot's payload length field.
func (s Slot) SetSize(n uint64) {
	atomic.StoreUint64(s.sizePtr(), n)
}

// Data returns the slot's full payload capacity as a byte slice backed
// directly by shared memory. Callers slice it down to the current Size.
func (s Slot) Data(maxPayload uintptr) []byte {
	if maxPayload == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(s.dataPtr()), maxPayload)
}

func (s Slot) writePayload(maxPayload uintptr, payload []byte) {
	copy(s.Data(maxPayload), payload)
}

func (s Slot) writeVector(maxPayload uintptr, bufs [][]byte) int {
	dst := s.Data(maxPayload)
	n := 0
	for _, b := range bufs {
		n += copy(dst[n:], b)
	}
	return n
}
