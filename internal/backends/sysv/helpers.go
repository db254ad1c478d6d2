package sysv

import (
	"fmt"
	"strconv"
	"unsafe"
)

// addrOf returns the base address of a non-empty attached segment as a
// uintptr (see filemap.addrOf for the same pattern and rationale).
func addrOf(data []byte) uintptr {
	if len(data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&data[0]))
}

// parseKeyName interprets a named-region name as a decimal System V key.
// Named creation/attach on this backend is keyed by number, not by
// string, since a numeric key is the only identifier shmget recognizes.
func parseKeyName(name string) (int64, error) {
	key, err := strconv.ParseInt(name, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("sysv: named region %q is not a valid numeric key: %w", name, err)
	}
	return key, nil
}
