// Package constants holds compile-time and default configuration values
// shared across shmipc's backends and queue core.
package constants

import "time"

// CacheLineSize is the alignment and padding unit for the queue header and
// every slot, chosen to avoid false sharing between producer and consumer.
const CacheLineSize = 64

// PageSize is the default assumption for the host's page size. It is
// re-exported for callers; no backend rounds a region's size with it.
const PageSize = 4096

// DefaultFilePrefix is the per-process scaffolding prefix used by the
// file-backed and System V backends when synthesizing unique names.
const DefaultFilePrefix = "/tmp/shmipc"

// DefaultShmPrefix is the prefix used under the POSIX shared-memory
// namespace (/dev/shm on Linux).
const DefaultShmPrefix = "shmipc"

// DefaultFileMode is the permission mode applied to backing files and
// named shared-memory objects created by this module.
const DefaultFileMode = 0o600

// RegionSizeWordBytes is the width, in bytes, of the region-size field
// embedded in every contact descriptor. Always pointer-width regardless
// of host word size (resolves the reference implementation's 32-bit
// wire / 64-bit-internal mismatch).
const RegionSizeWordBytes = 8

// NamedAttachRetryDelay is a delay value for retrying a named-region
// attach. No backend reads it: AttachNamedRegion makes a single attempt
// and returns its error.
const NamedAttachRetryDelay = 5 * time.Millisecond

// NamedAttachRetryLimit is a retry count to pair with
// NamedAttachRetryDelay; like it, no attach path reads it.
const NamedAttachRetryLimit = 200
