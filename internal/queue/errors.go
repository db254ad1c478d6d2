package queue

import "errors"

// Sentinel errors for queue operations. The root shmipc package maps
// these to its own Kind taxonomy (spec §7); this package never logs and
// never allocates beyond what the caller's payload requires.
var (
	// ErrNotAvailable is returned by the try_* operations when no slot
	// is ready (producer's current slot FULL, or consumer's current
	// slot EMPTY).
	ErrNotAvailable = errors.New("queue: not available")
	// ErrCapacityExceeded is returned when a payload exceeds the
	// queue's max_payload_size. Distinguished from "+1" in the
	// reference's int-return convention since Go prefers named errors
	// to magic numbers.
	ErrCapacityExceeded = errors.New("queue: payload exceeds max_payload_size")
	// ErrNotInitialized is returned when an endpoint is constructed
	// over a header whose initialized flag is not set.
	ErrNotInitialized = errors.New("queue: not initialized")
	// ErrInvalidArgument covers zero slots, zero payload size, or a nil
	// or misaligned address passed to CreateQueue.
	ErrInvalidArgument = errors.New("queue: invalid argument")
)
