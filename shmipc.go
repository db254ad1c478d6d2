// Package shmipc provides a shared-memory transport for low-latency
// communication between cooperating processes on one host: a pluggable
// region abstraction over file-backed mmap, System V shared memory, and
// POSIX named shared memory, and a single-producer/single-consumer
// lock-free circular queue embedded in such a region.
package shmipc

import (
	"fmt"

	"github.com/fzheng/shmipc/internal/interfaces"
	"github.com/fzheng/shmipc/internal/logging"
	"github.com/fzheng/shmipc/internal/queue"
	"github.com/fzheng/shmipc/internal/region"
)

// BackendKind selects which OS facility a Method dispatches region
// operations to.
type BackendKind string

const (
	BackendFileMapped BackendKind = "filemap"
	BackendSysV       BackendKind = "sysv"
	BackendPosixShm   BackendKind = "posixshm"
)

// Options configures a Method beyond the reference backends' own
// defaults.
type Options struct {
	// Logger receives diagnostics for region lifecycle operations (spec
	// §7, "Region operations log a diagnostic"). If nil, a default
	// logger at Info level is used, matching the reference project's
	// internal/logging default.
	Logger *logging.Logger

	// Observer receives this Method's region lifecycle events. If nil,
	// defaults to a MetricsObserver over a freshly created Metrics.
	// Enqueue/dequeue events go to the observer passed to NewSender or
	// NewReceiver, not to this one.
	Observer interfaces.Observer

	// Metrics backs the default Observer when Observer is nil. If both
	// are nil, NewMetrics() is used.
	Metrics *Metrics
}

// Method is a process-local handle over one backend kind: the region
// lists it owns (created) or has attached, plus backend-private state.
// Not safe for concurrent use by multiple goroutines (spec §5, "The
// region manager's lists are process-local and thread-unsafe").
type Method struct {
	kind    BackendKind
	backend interfaces.RegionBackend
	state   interfaces.BackendState
	mgr     *region.Manager

	logger   *logging.Logger
	observer interfaces.Observer
	metrics  *Metrics
}

// ShmInit selects a backend driver by kind, initializes it, and returns
// a method handle with both region lists empty (spec §4.2, shm_init). A
// kind outside {BackendFileMapped, BackendSysV, BackendPosixShm} fails
// with KindInvalidArgument.
func ShmInit(kind BackendKind, config any, opts *Options) (*Method, error) {
	backend, err := newBackendDriver(kind)
	if err != nil {
		return nil, err
	}
	return newMethod(kind, backend, config, opts)
}

// newMethod builds a Method over an already-constructed backend driver.
// Factored out of ShmInit so tests can wire in a MockBackend without
// going through the kind-to-driver switch.
func newMethod(kind BackendKind, backend interfaces.RegionBackend, config any, opts *Options) (*Method, error) {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	observer := opts.Observer
	if observer == nil {
		observer = NewMetricsObserver(metrics)
	}

	state, err := backend.Init(config)
	if err != nil {
		logger.Errorf("shmipc: init backend %s: %v", kind, err)
		return nil, NewBackendError("ShmInit", err)
	}

	return &Method{
		kind:     kind,
		backend:  backend,
		state:    state,
		mgr:      region.New(),
		logger:   logger,
		observer: observer,
		metrics:  metrics,
	}, nil
}

// Kind returns the backend kind this method dispatches to.
func (m *Method) Kind() BackendKind { return m.kind }

// Metrics returns the method's metrics instance.
func (m *Method) Metrics() *Metrics { return m.metrics }

// Region is a process-local handle to one mapped region (spec §3,
// "Region handle").
type Region struct {
	method *Method
	handle *region.Handle
	state  interfaces.RegionState
}

// Addr is the base address at which this process sees the region. Pass
// cacheline-aligned offsets from this base to CreateQueue/OpenQueue.
func (r *Region) Addr() uintptr { return r.handle.Addr }

// Size is the region's byte length.
func (r *Region) Size() uintptr { return r.handle.Size }

// CreatorPID is the creating process's id, or region.UnknownCreator if
// this region was attached by name.
func (r *Region) CreatorPID() int { return r.handle.CreatorPID }

// CreateRegion makes a new backing object of at least size bytes and
// maps it into this process (spec §4.2, create_shm_region). size must
// be > 0.
func (m *Method) CreateRegion(size uintptr, hint uintptr) (*Region, error) {
	if size == 0 {
		return nil, NewError("CreateRegion", KindInvalidArgument, "size must be > 0")
	}

	rs, addr, err := m.backend.CreateRegion(m.state, size, hint)
	if err != nil {
		m.logger.Errorf("shmipc: create region size=%d: %v", size, err)
		m.observer.ObserveRegionCreate(string(m.kind), uint64(size), false)
		return nil, NewBackendError("CreateRegion", err)
	}

	h := &region.Handle{Size: size, Addr: addr, State: rs}
	m.mgr.AddCreated(h)
	m.observer.ObserveRegionCreate(string(m.kind), uint64(size), true)
	return &Region{method: m, handle: h, state: rs}, nil
}

// CreateNamedRegion is CreateRegion, but the backend uses name verbatim
// to identify the backing object, enabling rendezvous without
// exchanging a contact descriptor (spec §4.2,
// create_named_shm_region).
func (m *Method) CreateNamedRegion(name string, size uintptr, hint uintptr) (*Region, error) {
	if size == 0 {
		return nil, NewError("CreateNamedRegion", KindInvalidArgument, "size must be > 0")
	}
	if name == "" {
		return nil, NewError("CreateNamedRegion", KindInvalidArgument, "name must not be empty")
	}

	rs, addr, err := m.backend.CreateNamedRegion(m.state, name, size, hint)
	if err != nil {
		m.logger.Errorf("shmipc: create named region %q size=%d: %v", name, size, err)
		m.observer.ObserveRegionCreate(string(m.kind), uint64(size), false)
		return nil, NewBackendError("CreateNamedRegion", err)
	}

	h := &region.Handle{Size: size, Addr: addr, State: rs}
	m.mgr.AddCreated(h)
	m.observer.ObserveRegionCreate(string(m.kind), uint64(size), true)
	return &Region{method: m, handle: h, state: rs}, nil
}

// Contact materializes a self-contained descriptor for r (spec §4.2,
// shm_region_contact_info). The returned bytes are only interpretable
// by AttachRegion on a Method of the same BackendKind.
func (m *Method) Contact(r *Region) ([]byte, error) {
	bytes, err := m.backend.Contact(m.state, r.state)
	if err != nil {
		return nil, NewBackendError("Contact", err)
	}
	return bytes, nil
}

// AttachRegion opens the object named by contact and maps it into this
// process (spec §4.2, attach_shm_region). creatorPID identifies the
// peer that created the region, carried out-of-band alongside the
// contact bytes; pass region.UnknownCreator if it isn't known. size may
// be 0 to let the backend infer it (file-backed and POSIX-named
// contacts carry the size; SysV contacts do not, and a SysV attach with
// size 0 maps the whole segment).
func (m *Method) AttachRegion(creatorPID int, contact []byte, size uintptr, hint uintptr) (*Region, error) {
	rs, addr, err := m.backend.AttachRegion(m.state, contact, size, hint)
	if err != nil {
		m.logger.Errorf("shmipc: attach region: %v", err)
		m.observer.ObserveRegionAttach(string(m.kind), uint64(size), false)
		return nil, NewBackendError("AttachRegion", err)
	}

	h := &region.Handle{Size: size, Addr: addr, State: rs}
	m.mgr.AddAttached(h, creatorPID)
	m.observer.ObserveRegionAttach(string(m.kind), uint64(size), true)
	return &Region{method: m, handle: h, state: rs}, nil
}

// AttachNamedRegion attaches a region by the name it was created with,
// recording its creator as region.UnknownCreator (spec §4.2,
// attach_named_shm_region).
func (m *Method) AttachNamedRegion(name string, size uintptr, hint uintptr) (*Region, error) {
	rs, addr, err := m.backend.AttachNamedRegion(m.state, name, size, hint)
	if err != nil {
		m.logger.Errorf("shmipc: attach named region %q: %v", name, err)
		m.observer.ObserveRegionAttach(string(m.kind), uint64(size), false)
		return nil, NewBackendError("AttachNamedRegion", err)
	}

	h := &region.Handle{Size: size, Addr: addr, State: rs}
	m.mgr.AddAttached(h, region.UnknownCreator)
	m.observer.ObserveRegionAttach(string(m.kind), uint64(size), true)
	return &Region{method: m, handle: h, state: rs}, nil
}

// DetachRegion undoes r's mapping in this process only (spec §4.2,
// detach_shm_region). Calling it on a region this process created is
// an error; use DestroyRegion.
func (m *Method) DetachRegion(r *Region) error {
	if r.handle.Owned {
		return NewError("DetachRegion", KindInvalidArgument, "region was created by this method handle, use DestroyRegion")
	}
	if err := m.backend.DetachRegion(m.state, r.state); err != nil {
		m.logger.Errorf("shmipc: detach region: %v", err)
		return NewBackendError("DetachRegion", err)
	}
	if err := m.mgr.RemoveAttached(r.handle); err != nil {
		return NewError("DetachRegion", KindLookupMiss, err.Error())
	}
	return nil
}

// DestroyRegion detaches r locally and marks its backing object for
// removal (spec §4.2, destroy_shm_region). Only the creator may
// destroy; attempting to destroy a region this process only attached
// detaches it instead, matching the reference design.
func (m *Method) DestroyRegion(r *Region) error {
	if !r.handle.Owned {
		return m.DetachRegion(r)
	}
	if err := m.backend.DestroyRegion(m.state, r.state); err != nil {
		m.logger.Errorf("shmipc: destroy region: %v", err)
		m.observer.ObserveRegionDestroy(string(m.kind), false)
		return NewBackendError("DestroyRegion", err)
	}
	if err := m.mgr.RemoveCreated(r.handle); err != nil {
		return NewError("DestroyRegion", KindLookupMiss, err.Error())
	}
	m.observer.ObserveRegionDestroy(string(m.kind), true)
	return nil
}

// ShmFinalize destroys every region this method created, detaches
// every region it attached, releases backend scaffolding, and leaves m
// unusable (spec §4.2, shm_finalize). It attempts every cleanup even if
// some fail, returning the first failure encountered.
func (m *Method) ShmFinalize() error {
	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	var created []*region.Handle
	m.mgr.EachCreated(func(h *region.Handle) bool {
		created = append(created, h)
		return true
	})
	for _, h := range created {
		r := &Region{method: m, handle: h, state: h.State}
		note(m.DestroyRegion(r))
	}

	var attached []*region.Handle
	m.mgr.EachAttached(func(h *region.Handle) bool {
		attached = append(attached, h)
		return true
	})
	for _, h := range attached {
		r := &Region{method: m, handle: h, state: h.State}
		note(m.DetachRegion(r))
	}

	if err := m.backend.Finalize(m.state); err != nil {
		m.logger.Errorf("shmipc: finalize backend %s: %v", m.kind, err)
		note(NewBackendError("ShmFinalize", err))
	}

	return firstErr
}

func newBackendDriver(kind BackendKind) (interfaces.RegionBackend, error) {
	switch kind {
	case BackendFileMapped:
		return newFilemapBackend(), nil
	case BackendSysV:
		return newSysvBackend(), nil
	case BackendPosixShm:
		return newPosixShmBackend(), nil
	default:
		return nil, NewError("ShmInit", KindInvalidArgument, fmt.Sprintf("unknown backend kind %q", kind))
	}
}

// Queue, Producer, Consumer are the public faces of the internal queue
// package: a queue is placed in and read from a Region's mapping.

// CalculateQueueSize returns the total region footprint a queue with
// maxSlots slots of maxPayload bytes each will occupy, so callers can
// provision the region before mapping (spec §4.3.1).
func CalculateQueueSize(maxSlots uint32, maxPayload uintptr) uintptr {
	return queue.CalculateQueueSize(maxSlots, maxPayload)
}

// Queue wraps the internal queue core bound to a specific region
// offset.
type Queue struct{ q *queue.Queue }

// CreateQueue writes a fresh queue header and slot table at r.Addr()+offset
// (spec §4.3.2). offset must be cacheline-aligned.
func CreateQueue(r *Region, offset uintptr, maxSlots uint32, maxPayload uintptr) (*Queue, error) {
	q, err := queue.CreateQueue(r.Addr()+offset, maxSlots, maxPayload)
	if err != nil {
		return nil, NewError("CreateQueue", KindInvalidArgument, err.Error())
	}
	return &Queue{q: q}, nil
}

// OpenQueue returns a handle to a queue whose header has already been
// initialized by its creator at r.Addr()+offset.
func OpenQueue(r *Region, offset uintptr) (*Queue, error) {
	q, err := queue.OpenQueue(r.Addr() + offset)
	if err != nil {
		return nil, NewError("OpenQueue", KindNotInitialized, err.Error())
	}
	return &Queue{q: q}, nil
}

// DestroyQueue clears q's header initialized flag (spec §4.3.2).
func DestroyQueue(q *Queue) { queue.DestroyQueue(q.q) }

// MaxNumSlots returns the queue's slot capacity.
func (q *Queue) MaxNumSlots() uint32 { return q.q.MaxNumSlots() }

// MaxPayloadSize returns the per-slot payload capacity in bytes.
func (q *Queue) MaxPayloadSize() uintptr { return q.q.MaxPayloadSize() }

// Sender is the producer endpoint of a queue.
type Sender struct {
	p        *queue.Producer
	observer interfaces.Observer
}

// NewSender builds the sending endpoint for q (spec §4.3.3,
// get_queue_sender_ep).
func NewSender(q *Queue, observer interfaces.Observer) (*Sender, error) {
	p, err := queue.NewProducer(q.q)
	if err != nil {
		return nil, NewError("NewSender", KindNotInitialized, err.Error())
	}
	if observer == nil {
		observer = NoOpObserver{}
	}
	return &Sender{p: p, observer: observer}, nil
}

// Enqueue blocks until it can publish payload.
func (s *Sender) Enqueue(payload []byte) error {
	err := s.p.Enqueue(payload)
	s.observer.ObserveEnqueue(uint64(len(payload)), 0, err == nil)
	return mapQueueErr("Enqueue", err)
}

// TryEnqueue returns KindNotAvailable immediately if no slot is free.
func (s *Sender) TryEnqueue(payload []byte) error {
	err := s.p.TryEnqueue(payload)
	s.observer.ObserveEnqueue(uint64(len(payload)), 0, err == nil)
	return mapQueueErr("TryEnqueue", err)
}

// EnqueueVector concatenates bufs into one slot.
func (s *Sender) EnqueueVector(bufs [][]byte) error {
	err := s.p.EnqueueVector(bufs)
	return mapQueueErr("EnqueueVector", err)
}

// TryEnqueueVector is the non-blocking counterpart of EnqueueVector.
func (s *Sender) TryEnqueueVector(bufs [][]byte) error {
	err := s.p.TryEnqueueVector(bufs)
	return mapQueueErr("TryEnqueueVector", err)
}

// IsEnqueuePossible reports whether the current slot is free right now.
func (s *Sender) IsEnqueuePossible() bool { return s.p.IsEnqueuePossible() }

// Receiver is the consumer endpoint of a queue.
type Receiver struct {
	c        *queue.Consumer
	observer interfaces.Observer
}

// NewReceiver builds the receiving endpoint for q (spec §4.3.3,
// get_queue_receiver_ep).
func NewReceiver(q *Queue, observer interfaces.Observer) (*Receiver, error) {
	c, err := queue.NewConsumer(q.q)
	if err != nil {
		return nil, NewError("NewReceiver", KindNotInitialized, err.Error())
	}
	if observer == nil {
		observer = NoOpObserver{}
	}
	return &Receiver{c: c, observer: observer}, nil
}

// Dequeue blocks until a payload is available and returns it in place.
// The caller must call Release before the slot can be reused.
func (r *Receiver) Dequeue() ([]byte, error) {
	data, err := r.c.Dequeue()
	r.observer.ObserveDequeue(uint64(len(data)), 0, err == nil)
	return data, mapQueueErr("Dequeue", err)
}

// TryDequeue returns KindNotAvailable immediately if the current slot
// is empty.
func (r *Receiver) TryDequeue() ([]byte, error) {
	data, err := r.c.TryDequeue()
	r.observer.ObserveDequeue(uint64(len(data)), 0, err == nil)
	return data, mapQueueErr("TryDequeue", err)
}

// Release completes the peek-then-release protocol for the most recent
// Dequeue/TryDequeue.
func (r *Receiver) Release() { r.c.Release() }

// IsDequeuePossible reports whether the current slot is full right now.
func (r *Receiver) IsDequeuePossible() bool { return r.c.IsDequeuePossible() }

func mapQueueErr(op string, err error) error {
	switch err {
	case nil:
		return nil
	case queue.ErrNotAvailable:
		return NewError(op, KindNotAvailable, err.Error())
	case queue.ErrCapacityExceeded:
		return NewError(op, KindCapacityExceeded, err.Error())
	case queue.ErrNotInitialized:
		return NewError(op, KindNotInitialized, err.Error())
	default:
		return NewError(op, KindInvalidArgument, err.Error())
	}
}
