// Package posixshm implements the named-POSIX-shared-memory-object
// backend. Linux has no shm_open syscall; glibc implements it as an
// open() under /dev/shm (a tmpfs mount), which is exactly what this
// backend does directly.
package posixshm

import (
	"fmt"
	"os"
	"path"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/fzheng/shmipc/internal/constants"
	"github.com/fzheng/shmipc/internal/interfaces"
	"github.com/fzheng/shmipc/internal/wire"
)

// Config configures the named-POSIX-object backend.
type Config struct {
	// Dir is the mounted shm namespace directory, "/dev/shm" on Linux.
	Dir string
	// Prefix names objects this method handle creates, e.g. "shmipc".
	Prefix   string
	FileMode os.FileMode
}

// DefaultConfig returns the reference defaults.
func DefaultConfig() Config {
	return Config{
		Dir:      "/dev/shm",
		Prefix:   constants.DefaultShmPrefix,
		FileMode: constants.DefaultFileMode,
	}
}

type methodState struct {
	cfg     Config
	pid     int
	counter atomic.Uint64
}

type regionState struct {
	name string // object name, not full path
	data []byte
}

// Backend implements interfaces.RegionBackend over named POSIX shared
// memory objects.
type Backend struct{}

// New returns a named-POSIX-shared-memory driver.
func New() *Backend { return &Backend{} }

var _ interfaces.RegionBackend = (*Backend)(nil)

func (b *Backend) Init(cfg any) (interfaces.BackendState, error) {
	c := DefaultConfig()
	if typed, ok := cfg.(Config); ok {
		if typed.Dir != "" {
			c.Dir = typed.Dir
		}
		if typed.Prefix != "" {
			c.Prefix = typed.Prefix
		}
		if typed.FileMode != 0 {
			c.FileMode = typed.FileMode
		}
	}
	return &methodState{cfg: c, pid: os.Getpid()}, nil
}

func addrOf(data []byte) uintptr {
	if len(data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&data[0]))
}

func (b *Backend) createNamed(ms *methodState, name string, size uintptr) (*regionState, uintptr, error) {
	full := path.Join(ms.cfg.Dir, name)
	fd, err := unix.Open(full, unix.O_CREAT|unix.O_EXCL|unix.O_RDWR, uint32(ms.cfg.FileMode))
	if err != nil {
		return nil, 0, fmt.Errorf("posixshm: open %s: %w", full, err)
	}
	defer unix.Close(fd)

	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		return nil, 0, fmt.Errorf("posixshm: ftruncate %s to %d: %w", full, size, err)
	}

	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, 0, fmt.Errorf("posixshm: mmap %s: %w", full, err)
	}

	return &regionState{name: name, data: data}, addrOf(data), nil
}

func (b *Backend) CreateRegion(state interfaces.BackendState, size uintptr, hint uintptr) (interfaces.RegionState, uintptr, error) {
	ms := state.(*methodState)
	n := ms.counter.Add(1)
	name := fmt.Sprintf("%s.%d.%d", ms.cfg.Prefix, ms.pid, n)
	return b.createNamed(ms, name, size)
}

func (b *Backend) CreateNamedRegion(state interfaces.BackendState, name string, size uintptr, hint uintptr) (interfaces.RegionState, uintptr, error) {
	ms := state.(*methodState)
	return b.createNamed(ms, name, size)
}

func (b *Backend) Contact(state interfaces.BackendState, rs interfaces.RegionState) ([]byte, error) {
	r := rs.(*regionState)
	return wire.EncodePathContact(r.name, uint64(len(r.data))), nil
}

func (b *Backend) attach(ms *methodState, name string, size uintptr) (*regionState, uintptr, error) {
	full := path.Join(ms.cfg.Dir, name)
	fd, err := unix.Open(full, unix.O_RDWR, 0)
	if err != nil {
		return nil, 0, fmt.Errorf("posixshm: open %s for attach: %w", full, err)
	}
	defer unix.Close(fd)

	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, 0, fmt.Errorf("posixshm: mmap %s for attach: %w", full, err)
	}
	return &regionState{name: name, data: data}, addrOf(data), nil
}

func (b *Backend) AttachRegion(state interfaces.BackendState, contact []byte, size uintptr, hint uintptr) (interfaces.RegionState, uintptr, error) {
	ms := state.(*methodState)
	name, wireSize, err := wire.DecodePathContact(contact)
	if err != nil {
		return nil, 0, fmt.Errorf("posixshm: %w", err)
	}
	if size == 0 {
		size = uintptr(wireSize)
	}
	return b.attach(ms, name, size)
}

func (b *Backend) AttachNamedRegion(state interfaces.BackendState, name string, size uintptr, hint uintptr) (interfaces.RegionState, uintptr, error) {
	ms := state.(*methodState)
	return b.attach(ms, name, size)
}

func (b *Backend) DetachRegion(state interfaces.BackendState, rs interfaces.RegionState) error {
	r := rs.(*regionState)
	if err := unix.Munmap(r.data); err != nil {
		return fmt.Errorf("posixshm: munmap %s: %w", r.name, err)
	}
	return nil
}

func (b *Backend) DestroyRegion(state interfaces.BackendState, rs interfaces.RegionState) error {
	ms := state.(*methodState)
	r := rs.(*regionState)
	if err := unix.Munmap(r.data); err != nil {
		return fmt.Errorf("posixshm: munmap %s: %w", r.name, err)
	}
	full := path.Join(ms.cfg.Dir, r.name)
	if err := unix.Unlink(full); err != nil && err != unix.ENOENT {
		return fmt.Errorf("posixshm: unlink %s: %w", full, err)
	}
	return nil
}

func (b *Backend) Finalize(state interfaces.BackendState) error {
	return nil
}
