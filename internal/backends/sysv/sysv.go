// Package sysv implements the System V shared-memory backend: a region
// is a segment obtained via shmget/shmat, identified by a numeric key
// derived from an anchor file the same way ftok derives one.
package sysv

import (
	"fmt"
	"os"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/fzheng/shmipc/internal/constants"
	"github.com/fzheng/shmipc/internal/interfaces"
	"github.com/fzheng/shmipc/internal/wire"
)

// Config configures the System V backend.
type Config struct {
	// AnchorPrefix is the path stem for the per-process anchor file
	// used to derive fresh keys, e.g. "/tmp/shmipc-sysv".
	AnchorPrefix string
	// Perm is the permission bits OR'd into shmget's flags.
	Perm int
}

// DefaultConfig returns the reference defaults.
func DefaultConfig() Config {
	return Config{
		AnchorPrefix: constants.DefaultFilePrefix + "-sysv",
		Perm:         constants.DefaultFileMode,
	}
}

type methodState struct {
	cfg        Config
	anchorPath string
	tokenID    atomic.Uint32
}

type regionState struct {
	key int64
	id  int
	buf []byte
}

// Backend implements interfaces.RegionBackend over System V segments.
type Backend struct{}

// New returns a System V shared-memory driver.
func New() *Backend { return &Backend{} }

var _ interfaces.RegionBackend = (*Backend)(nil)

func (b *Backend) Init(cfg any) (interfaces.BackendState, error) {
	c := DefaultConfig()
	if typed, ok := cfg.(Config); ok {
		if typed.AnchorPrefix != "" {
			c.AnchorPrefix = typed.AnchorPrefix
		}
		if typed.Perm != 0 {
			c.Perm = typed.Perm
		}
	}

	anchorPath := fmt.Sprintf("%s.%d", c.AnchorPrefix, os.Getpid())
	f, err := os.OpenFile(anchorPath, os.O_RDWR|os.O_CREATE, os.FileMode(c.Perm))
	if err != nil {
		return nil, fmt.Errorf("sysv: create anchor %s: %w", anchorPath, err)
	}
	f.Close()

	ms := &methodState{cfg: c, anchorPath: anchorPath}
	ms.tokenID.Store(1)
	return ms, nil
}

// ftok reimplements the glibc ftok algorithm (no binding ships in
// golang.org/x/sys): fold the anchor's device and inode numbers with a
// per-call project id into a 32-bit key, one new key per call by
// advancing the project id.
func ftok(path string, projID uint32) (int64, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, fmt.Errorf("sysv: stat anchor %s: %w", path, err)
	}
	key := (int64(projID&0xff) << 24) | (int64(st.Dev&0xff) << 16) | int64(st.Ino&0xffff)
	return key, nil
}

func (b *Backend) createWithKey(ms *methodState, key int64, size uintptr) (*regionState, uintptr, error) {
	flags := int(unix.IPC_CREAT | unix.IPC_EXCL)
	flags |= ms.cfg.Perm

	id, err := unix.SysvShmGet(int(key), int(size), flags)
	if err != nil {
		return nil, 0, fmt.Errorf("sysv: shmget key=%d: %w", key, err)
	}

	data, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		return nil, 0, fmt.Errorf("sysv: shmat id=%d: %w", id, err)
	}

	return &regionState{key: key, id: id, buf: data}, addrOf(data), nil
}

func (b *Backend) CreateRegion(state interfaces.BackendState, size uintptr, hint uintptr) (interfaces.RegionState, uintptr, error) {
	ms := state.(*methodState)
	key, err := ftok(ms.anchorPath, ms.tokenID.Add(1))
	if err != nil {
		return nil, 0, err
	}
	return b.createWithKey(ms, key, size)
}

func (b *Backend) CreateNamedRegion(state interfaces.BackendState, name string, size uintptr, hint uintptr) (interfaces.RegionState, uintptr, error) {
	ms := state.(*methodState)
	key, err := parseKeyName(name)
	if err != nil {
		return nil, 0, err
	}
	return b.createWithKey(ms, key, size)
}

func (b *Backend) Contact(state interfaces.BackendState, rs interfaces.RegionState) ([]byte, error) {
	r := rs.(*regionState)
	return wire.EncodeKeyContact(r.key), nil
}

func (b *Backend) attach(key int64, size uintptr) (*regionState, uintptr, error) {
	id, err := unix.SysvShmGet(int(key), 0, 0)
	if err != nil {
		return nil, 0, fmt.Errorf("sysv: shmget (lookup) key=%d: %w", key, err)
	}

	data, err := unix.SysvShmAttach(id, 0, 0)
	if err != nil {
		return nil, 0, fmt.Errorf("sysv: shmat id=%d: %w", id, err)
	}
	if size != 0 && uintptr(len(data)) < size {
		unix.SysvShmDetach(data)
		return nil, 0, fmt.Errorf("sysv: attached segment smaller (%d) than requested size (%d)", len(data), size)
	}
	return &regionState{key: key, id: id, buf: data}, addrOf(data), nil
}

func (b *Backend) AttachRegion(state interfaces.BackendState, contact []byte, size uintptr, hint uintptr) (interfaces.RegionState, uintptr, error) {
	key, err := wire.DecodeKeyContact(contact)
	if err != nil {
		return nil, 0, fmt.Errorf("sysv: %w", err)
	}
	return b.attach(key, size)
}

func (b *Backend) AttachNamedRegion(state interfaces.BackendState, name string, size uintptr, hint uintptr) (interfaces.RegionState, uintptr, error) {
	key, err := parseKeyName(name)
	if err != nil {
		return nil, 0, err
	}
	return b.attach(key, size)
}

func (b *Backend) DetachRegion(state interfaces.BackendState, rs interfaces.RegionState) error {
	r := rs.(*regionState)
	if err := unix.SysvShmDetach(r.buf); err != nil {
		return fmt.Errorf("sysv: shmdt id=%d: %w", r.id, err)
	}
	return nil
}

func (b *Backend) DestroyRegion(state interfaces.BackendState, rs interfaces.RegionState) error {
	r := rs.(*regionState)
	id := r.id
	if err := unix.SysvShmDetach(r.buf); err != nil {
		return fmt.Errorf("sysv: shmdt id=%d: %w", id, err)
	}
	var info unix.SysvShmDesc
	if _, err := unix.SysvShmCtl(id, unix.IPC_RMID, &info); err != nil {
		return fmt.Errorf("sysv: shmctl(IPC_RMID) id=%d: %w", id, err)
	}
	return nil
}

func (b *Backend) Finalize(state interfaces.BackendState) error {
	ms := state.(*methodState)
	if err := os.Remove(ms.anchorPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("sysv: remove anchor %s: %w", ms.anchorPath, err)
	}
	return nil
}
