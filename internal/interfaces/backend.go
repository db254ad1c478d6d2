// Package interfaces provides internal interface definitions for shmipc.
// These are separate from the public package to avoid circular imports
// between the root package and the backend/region internals.
package interfaces

// BackendState is opaque per-method-handle state returned by a backend's
// Init and threaded back into every subsequent call on that backend.
type BackendState interface{}

// RegionState is opaque per-region state a backend attaches to a region
// handle (backing file name, segment id, mapped length, ...).
type RegionState interface{}

// RegionBackend is the polymorphic driver interface every shared-memory
// backend (file-backed mapping, System V segment, POSIX named object)
// implements. The region manager invokes these without knowing which
// concrete backend it is talking to.
type RegionBackend interface {
	// Init allocates backend-global scaffolding keyed by the caller's
	// process, returning opaque state threaded into later calls.
	Init(cfg any) (BackendState, error)

	// CreateRegion makes a new backing object of at least size bytes and
	// maps it into this process. hint, if non-zero, is a requested
	// attach address the backend may ignore.
	CreateRegion(state BackendState, size uintptr, hint uintptr) (RegionState, uintptr, error)

	// CreateNamedRegion is the same as CreateRegion but uses name
	// verbatim to identify the backing object, enabling rendezvous
	// without exchanging a contact descriptor.
	CreateNamedRegion(state BackendState, name string, size uintptr, hint uintptr) (RegionState, uintptr, error)

	// Contact materializes a self-contained descriptor for rs, as
	// specified by the backend's wire format.
	Contact(state BackendState, rs RegionState) ([]byte, error)

	// AttachRegion opens the object named by contact and maps it.
	AttachRegion(state BackendState, contact []byte, size uintptr, hint uintptr) (RegionState, uintptr, error)

	// AttachNamedRegion opens the object named by name directly,
	// without a contact descriptor.
	AttachNamedRegion(state BackendState, name string, size uintptr, hint uintptr) (RegionState, uintptr, error)

	// DetachRegion undoes a mapping in this process only.
	DetachRegion(state BackendState, rs RegionState) error

	// DestroyRegion detaches locally and marks the underlying object
	// for removal. Only the creator may call this.
	DestroyRegion(state BackendState, rs RegionState) error

	// Finalize releases any per-process scaffolding (anchor files,
	// counters) created by Init.
	Finalize(state BackendState) error
}

// Logger is the minimal logging surface shmipc components accept.
type Logger interface {
	Printf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// Observer receives queue and region lifecycle metrics. Implementations
// must be safe for concurrent use — callers include the producer and
// consumer sides of a queue, which run without shared locks.
type Observer interface {
	ObserveEnqueue(bytes uint64, latencyNs uint64, success bool)
	ObserveDequeue(bytes uint64, latencyNs uint64, success bool)
	ObserveRegionCreate(backendKind string, size uint64, success bool)
	ObserveRegionAttach(backendKind string, size uint64, success bool)
	ObserveRegionDestroy(backendKind string, success bool)
}
