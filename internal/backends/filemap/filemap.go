// Package filemap implements the file-backed-mapping shared-memory
// backend: a region is an anonymous file under a temporary directory,
// sized with ftruncate and mapped MAP_SHARED into every attaching
// process.
package filemap

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/fzheng/shmipc/internal/constants"
	"github.com/fzheng/shmipc/internal/interfaces"
	"github.com/fzheng/shmipc/internal/wire"
)

// Config configures the file-backed backend. A zero Config passed as
// Init's cfg argument is equivalent to DefaultConfig().
type Config struct {
	// Prefix is the directory+stem used to synthesize unique backing
	// file paths, e.g. "/tmp/shmipc".
	Prefix string
	// FileMode is the permission mode for created backing files.
	FileMode os.FileMode
}

// DefaultConfig returns the reference defaults (/tmp prefix, 0600).
func DefaultConfig() Config {
	return Config{
		Prefix:   constants.DefaultFilePrefix,
		FileMode: constants.DefaultFileMode,
	}
}

type methodState struct {
	cfg Config
	pid int
	ctr atomic.Uint64
}

// regionState is the per-region bookkeeping the backend attaches to a
// region handle.
type regionState struct {
	path string
	data []byte
}

// Backend implements interfaces.RegionBackend over anonymous
// file-backed mmap regions.
type Backend struct{}

// New returns a file-backed-mapping driver.
func New() *Backend { return &Backend{} }

var _ interfaces.RegionBackend = (*Backend)(nil)

func (b *Backend) Init(cfg any) (interfaces.BackendState, error) {
	c := DefaultConfig()
	if typed, ok := cfg.(Config); ok {
		if typed.Prefix != "" {
			c.Prefix = typed.Prefix
		}
		if typed.FileMode != 0 {
			c.FileMode = typed.FileMode
		}
	}
	return &methodState{cfg: c, pid: os.Getpid()}, nil
}

func (b *Backend) uniquePath(ms *methodState) string {
	n := ms.ctr.Add(1)
	return fmt.Sprintf("%s.%d.%d", ms.cfg.Prefix, ms.pid, n)
}

// addrOf returns the base address of a non-empty mmap'd slice as a
// uintptr. Goes through unsafe.Pointer indirection, the same pattern
// the teacher uses for mmap'd memory (see pointerFromMmap in
// internal/queue/runner.go of the retrieved reference): the address is
// fixed for the lifetime of the mapping, so this is safe despite
// go vet's usual unsafeptr caution.
func addrOf(data []byte) uintptr {
	if len(data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&data[0]))
}

func (b *Backend) createAt(path string, mode os.FileMode, exclusive bool, size uintptr) (*regionState, uintptr, error) {
	flags := os.O_RDWR | os.O_CREATE
	if exclusive {
		flags |= os.O_EXCL
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, mode)
	if err != nil {
		return nil, 0, fmt.Errorf("filemap: open %s: %w", path, err)
	}
	defer f.Close()

	if err := f.Truncate(int64(size)); err != nil {
		return nil, 0, fmt.Errorf("filemap: truncate %s to %d: %w", path, size, err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, 0, fmt.Errorf("filemap: mmap %s: %w", path, err)
	}

	return &regionState{path: path, data: data}, addrOf(data), nil
}

func (b *Backend) CreateRegion(state interfaces.BackendState, size uintptr, hint uintptr) (interfaces.RegionState, uintptr, error) {
	ms := state.(*methodState)
	path := b.uniquePath(ms)
	// hint is only ever a request in the reference design; mmap may
	// return a different address, which is only ever warned about, not
	// failed. We don't even attempt to honor it here since Go's mmap
	// wrapper has no MAP_FIXED path wired in and region-manager callers
	// never depend on getting the exact hint back.
	return b.createAt(path, ms.cfg.FileMode, true, size)
}

func (b *Backend) CreateNamedRegion(state interfaces.BackendState, name string, size uintptr, hint uintptr) (interfaces.RegionState, uintptr, error) {
	ms := state.(*methodState)
	// create-exclusive, not truncate-any-existing-file: resolves the
	// race the reference implementation leaves open (spec Open Question a).
	return b.createAt(name, ms.cfg.FileMode, true, size)
}

func (b *Backend) Contact(state interfaces.BackendState, rs interfaces.RegionState) ([]byte, error) {
	r := rs.(*regionState)
	return wire.EncodePathContact(r.path, uint64(len(r.data))), nil
}

func (b *Backend) attach(path string, size uintptr) (*regionState, uintptr, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, 0, fmt.Errorf("filemap: open %s for attach: %w", path, err)
	}
	defer f.Close()

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, 0, fmt.Errorf("filemap: mmap %s for attach: %w", path, err)
	}
	return &regionState{path: path, data: data}, addrOf(data), nil
}

func (b *Backend) AttachRegion(state interfaces.BackendState, contact []byte, size uintptr, hint uintptr) (interfaces.RegionState, uintptr, error) {
	path, wireSize, err := wire.DecodePathContact(contact)
	if err != nil {
		return nil, 0, fmt.Errorf("filemap: %w", err)
	}
	if size == 0 {
		size = uintptr(wireSize)
	}
	return b.attach(path, size)
}

func (b *Backend) AttachNamedRegion(state interfaces.BackendState, name string, size uintptr, hint uintptr) (interfaces.RegionState, uintptr, error) {
	return b.attach(name, size)
}

func (b *Backend) DetachRegion(state interfaces.BackendState, rs interfaces.RegionState) error {
	r := rs.(*regionState)
	if err := unix.Munmap(r.data); err != nil {
		return fmt.Errorf("filemap: munmap %s: %w", r.path, err)
	}
	return nil
}

func (b *Backend) DestroyRegion(state interfaces.BackendState, rs interfaces.RegionState) error {
	r := rs.(*regionState)
	if err := unix.Munmap(r.data); err != nil {
		return fmt.Errorf("filemap: munmap %s: %w", r.path, err)
	}
	if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("filemap: unlink %s: %w", r.path, err)
	}
	return nil
}

func (b *Backend) Finalize(state interfaces.BackendState) error {
	return nil
}
