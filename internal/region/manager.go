// Package region implements backend-agnostic region lifecycle
// bookkeeping: the created/attached lists, creator-vs-attacher dispatch,
// and the invariants that a region handle lives on exactly one list
// (R1) and only its creator may destroy it (R2).
package region

import (
	"container/list"
	"fmt"
	"os"
	"sync"

	"github.com/fzheng/shmipc/internal/interfaces"
)

// UnknownCreator is the sentinel creator pid recorded when a region is
// attached by name rather than by a contact descriptor carrying the
// creator's identity.
const UnknownCreator = -1

// Handle is process-local bookkeeping for one mapped region. Per spec
// design note (d), ownership is tracked with an explicit bit set at
// creation time, never re-derived by comparing process ids (a child
// process inheriting a parent's handle would otherwise misreport
// ownership).
type Handle struct {
	Size       uintptr
	Addr       uintptr
	CreatorPID int
	Owned      bool
	State      interfaces.RegionState

	elem *list.Element // this handle's node in its owning list
}

// Manager owns the created and attached lists for one method handle
// and enforces R1/R2. It is not safe for concurrent use by multiple
// goroutines without external synchronization, matching the reference
// design's process-local, single-threaded assumption.
type Manager struct {
	mu       sync.Mutex
	created  *list.List
	attached *list.List
}

// New returns an empty manager.
func New() *Manager {
	return &Manager{created: list.New(), attached: list.New()}
}

// AddCreated registers a freshly created region, prepending it to the
// created list.
func (m *Manager) AddCreated(h *Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h.Owned = true
	h.CreatorPID = os.Getpid()
	h.elem = m.created.PushFront(h)
}

// AddAttached registers a freshly attached region, prepending it to the
// attached list. creatorPID may be UnknownCreator for name-based attach.
func (m *Manager) AddAttached(h *Handle, creatorPID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h.Owned = false
	h.CreatorPID = creatorPID
	h.elem = m.attached.PushFront(h)
}

// NumCreated reports the created-list length.
func (m *Manager) NumCreated() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.created.Len()
}

// NumAttached reports the attached-list length.
func (m *Manager) NumAttached() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attached.Len()
}

// RemoveCreated removes h from the created list. Returns an error
// (LookupMiss in the caller's taxonomy) if h is not presently on it —
// this signals bookkeeping drift, never silently ignored.
func (m *Manager) RemoveCreated(h *Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return removeFrom(m.created, h)
}

// RemoveAttached removes h from the attached list.
func (m *Manager) RemoveAttached(h *Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return removeFrom(m.attached, h)
}

func removeFrom(l *list.List, h *Handle) error {
	if h.elem == nil || h.elem.Value.(*Handle) != h {
		return fmt.Errorf("region: handle not present on expected list")
	}
	for e := l.Front(); e != nil; e = e.Next() {
		if e == h.elem {
			l.Remove(e)
			h.elem = nil
			return nil
		}
	}
	return fmt.Errorf("region: handle not present on expected list")
}

// EachCreated calls fn for every region on the created list, most
// recently created first, stopping early if fn returns false. The list
// is snapshotted first, so fn may call RemoveCreated.
func (m *Manager) EachCreated(fn func(*Handle) bool) {
	m.mu.Lock()
	var hs []*Handle
	for e := m.created.Front(); e != nil; e = e.Next() {
		hs = append(hs, e.Value.(*Handle))
	}
	m.mu.Unlock()
	for _, h := range hs {
		if !fn(h) {
			return
		}
	}
}

// EachAttached calls fn for every region on the attached list, most
// recently attached first, stopping early if fn returns false. The list
// is snapshotted first, so fn may call RemoveAttached.
func (m *Manager) EachAttached(fn func(*Handle) bool) {
	m.mu.Lock()
	var hs []*Handle
	for e := m.attached.Front(); e != nil; e = e.Next() {
		hs = append(hs, e.Value.(*Handle))
	}
	m.mu.Unlock()
	for _, h := range hs {
		if !fn(h) {
			return
		}
	}
}
