package shmipc

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func newMockMethod(t *testing.T, backend *MockBackend) *Method {
	t.Helper()
	m, err := newMethod("mock", backend, nil, nil)
	require.NoError(t, err)
	return m
}

func bytesAt(addr uintptr, n int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
}

// TestSingleRegionEcho exercises create/contact/attach across two
// method handles sharing one mock registry: a region created by one
// peer is visible, byte for byte, to a second peer that attaches it
// via the contact descriptor (spec §8 scenario 1).
func TestSingleRegionEcho(t *testing.T) {
	creator := NewMockBackend()
	peer := NewMockBackendOn(creator.Registry())

	mc := newMockMethod(t, creator)
	mp := newMockMethod(t, peer)

	r, err := mc.CreateRegion(4096, 0)
	require.NoError(t, err)
	bytesAt(r.Addr(), 1)[0] = 0xAA

	contact, err := mc.Contact(r)
	require.NoError(t, err)

	attached, err := mp.AttachRegion(0, contact, 4096, 0)
	require.NoError(t, err)
	require.Equal(t, byte(0xAA), bytesAt(attached.Addr(), 1)[0])

	require.NoError(t, mp.DetachRegion(attached))
	require.NoError(t, mc.DestroyRegion(r))
}

// TestShmFinalize_ReleasesLiveRegions covers spec §8 scenario 6: a
// method with both created and attached regions still outstanding must
// have ShmFinalize tear all of them down rather than leaking.
func TestShmFinalize_ReleasesLiveRegions(t *testing.T) {
	creator := NewMockBackend()
	peer := NewMockBackendOn(creator.Registry())
	registry := creator.Registry()

	mc := newMockMethod(t, creator)
	mp := newMockMethod(t, peer)

	var created []*Region
	for i := 0; i < 3; i++ {
		r, err := mc.CreateRegion(4096, 0)
		require.NoError(t, err)
		created = append(created, r)
	}

	contact, err := mc.Contact(created[0])
	require.NoError(t, err)
	_, err = mp.AttachRegion(0, contact, 4096, 0)
	require.NoError(t, err)

	require.NoError(t, mc.ShmFinalize())
	require.NoError(t, mp.ShmFinalize())

	require.Equal(t, 0, len(registry.regions))
}

// TestSenderReceiver_RoundTrip drives a queue end-to-end through the
// public Sender/Receiver API over a mock-backed region.
func TestSenderReceiver_RoundTrip(t *testing.T) {
	backend := NewMockBackend()
	m := newMockMethod(t, backend)

	size := CalculateQueueSize(4, 64)
	r, err := m.CreateRegion(size, 0)
	require.NoError(t, err)

	q, err := CreateQueue(r, 0, 4, 64)
	require.NoError(t, err)

	sender, err := NewSender(q, nil)
	require.NoError(t, err)
	receiver, err := NewReceiver(q, nil)
	require.NoError(t, err)

	require.NoError(t, sender.Enqueue([]byte("hello")))
	got, err := receiver.Dequeue()
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
	receiver.Release()
}

// TestSenderReceiver_Saturation blocks a producer against a full queue
// until the consumer releases a slot (spec §8 scenario 2), driven
// entirely through the public API this time.
func TestSenderReceiver_Saturation(t *testing.T) {
	backend := NewMockBackend()
	m := newMockMethod(t, backend)

	size := CalculateQueueSize(4, 64)
	r, err := m.CreateRegion(size, 0)
	require.NoError(t, err)
	q, err := CreateQueue(r, 0, 4, 64)
	require.NoError(t, err)

	sender, err := NewSender(q, nil)
	require.NoError(t, err)
	receiver, err := NewReceiver(q, nil)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, sender.TryEnqueue([]byte("x")))
	}
	require.False(t, sender.IsEnqueuePossible())

	var wg sync.WaitGroup
	wg.Add(1)
	done := make(chan struct{})
	go func() {
		defer wg.Done()
		require.NoError(t, sender.Enqueue([]byte("blocked")))
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Enqueue returned before a slot was released")
	default:
	}

	_, err = receiver.Dequeue()
	require.NoError(t, err)
	receiver.Release()

	wg.Wait()
}

// TestEnqueue_OversizedPayloadRejected checks the public API maps the
// queue core's capacity check to KindCapacityExceeded without ever
// touching the slot (spec §4.3.1 invariant on maxPayload).
func TestEnqueue_OversizedPayloadRejected(t *testing.T) {
	backend := NewMockBackend()
	m := newMockMethod(t, backend)

	size := CalculateQueueSize(2, 8)
	r, err := m.CreateRegion(size, 0)
	require.NoError(t, err)
	q, err := CreateQueue(r, 0, 2, 8)
	require.NoError(t, err)

	sender, err := NewSender(q, nil)
	require.NoError(t, err)

	err = sender.TryEnqueue([]byte("way too long for an eight byte slot"))
	require.Error(t, err)
	require.True(t, IsKind(err, KindCapacityExceeded))
	require.True(t, sender.IsEnqueuePossible())
}

// TestDetachRegion_RejectsOwnedRegion enforces R2: only the creator may
// destroy a region, and DetachRegion on an owned region is a caller
// error rather than silently detaching it.
func TestDetachRegion_RejectsOwnedRegion(t *testing.T) {
	backend := NewMockBackend()
	m := newMockMethod(t, backend)

	r, err := m.CreateRegion(4096, 0)
	require.NoError(t, err)

	err = m.DetachRegion(r)
	require.Error(t, err)
	require.True(t, IsKind(err, KindInvalidArgument))

	require.NoError(t, m.DestroyRegion(r))
}

// TestShmInit_UnknownBackendKind covers the invalid-kind path through
// the public entry point.
func TestShmInit_UnknownBackendKind(t *testing.T) {
	_, err := ShmInit(BackendKind("bogus"), nil, nil)
	require.Error(t, err)
	require.True(t, IsKind(err, KindInvalidArgument))
}
