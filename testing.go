package shmipc

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/fzheng/shmipc/internal/interfaces"
	"github.com/fzheng/shmipc/internal/wire"
)

// MockRegistry is shared backing storage for MockBackend, standing in
// for the kernel object namespace a real backend would use. Two method
// handles built over the same registry observe each other's regions,
// letting tests exercise create/contact/attach without touching the
// filesystem or SysV ids.
type MockRegistry struct {
	mu      sync.Mutex
	regions map[string][]byte
}

// NewMockRegistry returns an empty registry.
func NewMockRegistry() *MockRegistry {
	return &MockRegistry{regions: make(map[string][]byte)}
}

// MockBackend implements interfaces.RegionBackend entirely in Go heap
// memory. It is useful for unit testing code built on shmipc without
// depending on any of the three real OS facilities, mirroring the
// reference project's in-memory mock backend pattern.
type MockBackend struct {
	registry *MockRegistry
	prefix   string

	mu          sync.Mutex
	createCalls int
	attachCalls int
	detachCalls int
	destroyCalls int
}

// NewMockBackend returns a mock backend with its own private registry.
func NewMockBackend() *MockBackend {
	return &MockBackend{registry: NewMockRegistry(), prefix: "mock"}
}

// NewMockBackendOn returns a mock backend sharing r, for constructing a
// second peer's method handle in the same test.
func NewMockBackendOn(r *MockRegistry) *MockBackend {
	return &MockBackend{registry: r, prefix: "mock"}
}

// Registry exposes the backend's shared registry so a peer can be
// constructed with NewMockBackendOn.
func (m *MockBackend) Registry() *MockRegistry { return m.registry }

var _ interfaces.RegionBackend = (*MockBackend)(nil)

type mockMethodState struct {
	pid     int
	counter atomic.Uint64
}

type mockRegionState struct {
	name string
	data []byte
}

func addrOfMock(data []byte) uintptr {
	if len(data) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&data[0]))
}

func (m *MockBackend) Init(cfg any) (interfaces.BackendState, error) {
	return &mockMethodState{pid: os.Getpid()}, nil
}

func (m *MockBackend) createNamed(name string, size uintptr) (*mockRegionState, uintptr, error) {
	m.registry.mu.Lock()
	defer m.registry.mu.Unlock()

	m.mu.Lock()
	m.createCalls++
	m.mu.Unlock()

	if _, exists := m.registry.regions[name]; exists {
		return nil, 0, fmt.Errorf("mock: region %q already exists", name)
	}
	data := make([]byte, size)
	m.registry.regions[name] = data
	return &mockRegionState{name: name, data: data}, addrOfMock(data), nil
}

func (m *MockBackend) CreateRegion(state interfaces.BackendState, size uintptr, hint uintptr) (interfaces.RegionState, uintptr, error) {
	ms := state.(*mockMethodState)
	n := ms.counter.Add(1)
	name := fmt.Sprintf("%s.%d.%d", m.prefix, ms.pid, n)
	return m.createNamed(name, size)
}

func (m *MockBackend) CreateNamedRegion(state interfaces.BackendState, name string, size uintptr, hint uintptr) (interfaces.RegionState, uintptr, error) {
	return m.createNamed(name, size)
}

func (m *MockBackend) Contact(state interfaces.BackendState, rs interfaces.RegionState) ([]byte, error) {
	r := rs.(*mockRegionState)
	return wire.EncodePathContact(r.name, uint64(len(r.data))), nil
}

func (m *MockBackend) attach(name string) (*mockRegionState, uintptr, error) {
	m.registry.mu.Lock()
	defer m.registry.mu.Unlock()

	m.mu.Lock()
	m.attachCalls++
	m.mu.Unlock()

	data, ok := m.registry.regions[name]
	if !ok {
		return nil, 0, fmt.Errorf("mock: region %q not found", name)
	}
	return &mockRegionState{name: name, data: data}, addrOfMock(data), nil
}

func (m *MockBackend) AttachRegion(state interfaces.BackendState, contact []byte, size uintptr, hint uintptr) (interfaces.RegionState, uintptr, error) {
	name, _, err := wire.DecodePathContact(contact)
	if err != nil {
		return nil, 0, fmt.Errorf("mock: %w", err)
	}
	return m.attach(name)
}

func (m *MockBackend) AttachNamedRegion(state interfaces.BackendState, name string, size uintptr, hint uintptr) (interfaces.RegionState, uintptr, error) {
	return m.attach(name)
}

func (m *MockBackend) DetachRegion(state interfaces.BackendState, rs interfaces.RegionState) error {
	m.mu.Lock()
	m.detachCalls++
	m.mu.Unlock()
	return nil
}

func (m *MockBackend) DestroyRegion(state interfaces.BackendState, rs interfaces.RegionState) error {
	r := rs.(*mockRegionState)
	m.registry.mu.Lock()
	delete(m.registry.regions, r.name)
	m.registry.mu.Unlock()

	m.mu.Lock()
	m.destroyCalls++
	m.mu.Unlock()
	return nil
}

func (m *MockBackend) Finalize(state interfaces.BackendState) error {
	return nil
}

// CallCounts returns the number of times each region operation has
// been invoked, for assertions in tests built on MockBackend.
func (m *MockBackend) CallCounts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]int{
		"create":  m.createCalls,
		"attach":  m.attachCalls,
		"detach":  m.detachCalls,
		"destroy": m.destroyCalls,
	}
}

// Reset clears all call counters.
func (m *MockBackend) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls = 0
	m.attachCalls = 0
	m.detachCalls = 0
	m.destroyCalls = 0
}
