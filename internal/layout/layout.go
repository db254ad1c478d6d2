// Package layout encodes the region-header convention described in
// spec §6 ("Queue-in-region layout"): when a region holds one or two
// queues, as in the reference CLI usage, the region begins with three
// pointer-width fields — creator process id, byte offset to queue A,
// byte offset to queue B — both offsets cacheline-aligned. This layout
// is application-defined, not part of the queue core itself, so it
// lives outside internal/queue; cmd/shmq-echo is its only caller.
package layout

import (
	"sync/atomic"
	"unsafe"

	"github.com/fzheng/shmipc/internal/constants"
)

// Header field byte offsets, mirroring the offset-constant style of
// internal/queue/layout.go.
const (
	creatorPIDOffset = uintptr(0)
	queueAOffset     = uintptr(8)
	queueBOffset     = uintptr(16)
)

// Size is the fixed footprint of the region header, rounded up to a
// cacheline so the first queue placed after it starts aligned.
var Size = roundUpCacheline(24)

func roundUpCacheline(n uintptr) uintptr {
	cl := uintptr(constants.CacheLineSize)
	if rem := n % cl; rem != 0 {
		n += cl - rem
	}
	return n
}

func ptr64(base uintptr, off uintptr) *uint64 {
	return (*uint64)(unsafe.Pointer(base + off))
}

// Write publishes the three header fields at addr. Callers must do
// this before any peer attaches and reads the offsets; the creator pid
// field is written last so a concurrent reader that observes a nonzero
// pid also observes valid offsets (store-release via atomic, mirroring
// the queue header's initialized-last convention).
func Write(addr uintptr, creatorPID int, offsetA, offsetB uintptr) {
	*ptr64(addr, queueAOffset) = uint64(offsetA)
	*ptr64(addr, queueBOffset) = uint64(offsetB)
	atomic.StoreUint64(ptr64(addr, creatorPIDOffset), uint64(creatorPID))
}

// Read reads back the three header fields at addr from an attaching
// process's local mapping.
func Read(addr uintptr) (creatorPID int, offsetA, offsetB uintptr) {
	pid := atomic.LoadUint64(ptr64(addr, creatorPIDOffset))
	a := *ptr64(addr, queueAOffset)
	b := *ptr64(addr, queueBOffset)
	return int(pid), uintptr(a), uintptr(b)
}
