package queue

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/fzheng/shmipc/internal/constants"
)

// allocRegion returns a cacheline-aligned byte buffer large enough to
// hold a queue of the given shape, standing in for region-backed
// memory a backend would otherwise provide.
func allocRegion(t *testing.T, maxSlots uint32, maxPayload uintptr) []byte {
	t.Helper()
	cl := uintptr(constants.CacheLineSize)
	size := CalculateQueueSize(maxSlots, maxPayload)
	buf := make([]byte, size+cl)
	addr := uintptr(unsafe.Pointer(&buf[0]))
	pad := addr % cl
	if pad != 0 {
		pad = cl - pad
	}
	return buf[pad:]
}

func baseAddr(buf []byte) uintptr {
	return uintptr(unsafe.Pointer(&buf[0]))
}

func TestCalculateQueueSize(t *testing.T) {
	// n=4, p=16: slot overhead 16 bytes + 16 payload = 32, already a
	// multiple of 64? no: roundup(32, 64) = 64.
	got := CalculateQueueSize(4, 16)
	require.Equal(t, HeaderSize+4*64, got)
}

func TestCreateQueue_PublishesHeaderLast(t *testing.T) {
	buf := allocRegion(t, 4, 16)
	q, err := CreateQueue(baseAddr(buf), 4, 16)
	require.NoError(t, err)
	require.True(t, q.Initialized())
	require.Equal(t, uint32(4), q.MaxNumSlots())
	require.Equal(t, uintptr(16), q.MaxPayloadSize())
}

func TestCreateQueue_RejectsMisalignedOrZero(t *testing.T) {
	buf := allocRegion(t, 4, 16)
	_, err := CreateQueue(baseAddr(buf)+1, 4, 16)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = CreateQueue(baseAddr(buf), 0, 16)
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = CreateQueue(baseAddr(buf), 4, 0)
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestEnqueueDequeue_InOrder(t *testing.T) {
	buf := allocRegion(t, 4, 16)
	q, err := CreateQueue(baseAddr(buf), 4, 16)
	require.NoError(t, err)

	p, err := NewProducer(q)
	require.NoError(t, err)
	c, err := NewConsumer(q)
	require.NoError(t, err)

	payloads := [][]byte{
		{1, 1, 1, 1},
		{2, 2, 2},
		{3},
		{},
	}
	for _, pl := range payloads {
		require.NoError(t, p.Enqueue(pl))
	}

	for _, want := range payloads {
		got, err := c.Dequeue()
		require.NoError(t, err)
		require.Equal(t, want, append([]byte{}, got...))
		c.Release()
	}
}

func TestTryEnqueue_FullQueue(t *testing.T) {
	buf := allocRegion(t, 2, 8)
	q, err := CreateQueue(baseAddr(buf), 2, 8)
	require.NoError(t, err)

	p, err := NewProducer(q)
	require.NoError(t, err)

	require.NoError(t, p.TryEnqueue([]byte("a")))
	require.NoError(t, p.TryEnqueue([]byte("b")))
	require.ErrorIs(t, p.TryEnqueue([]byte("c")), ErrNotAvailable)
}

func TestTryDequeue_EmptyQueue(t *testing.T) {
	buf := allocRegion(t, 2, 8)
	q, err := CreateQueue(baseAddr(buf), 2, 8)
	require.NoError(t, err)

	c, err := NewConsumer(q)
	require.NoError(t, err)

	_, err = c.TryDequeue()
	require.ErrorIs(t, err, ErrNotAvailable)
}

func TestOversizedPayload_RejectedWithoutTouchingSlot(t *testing.T) {
	buf := allocRegion(t, 2, 128)
	q, err := CreateQueue(baseAddr(buf), 2, 128)
	require.NoError(t, err)

	p, err := NewProducer(q)
	require.NoError(t, err)
	c, err := NewConsumer(q)
	require.NoError(t, err)

	big := make([]byte, 200)
	require.ErrorIs(t, p.Enqueue(big), ErrCapacityExceeded)
	require.ErrorIs(t, p.TryEnqueue(big), ErrCapacityExceeded)
	require.False(t, c.IsDequeuePossible())

	ok := make([]byte, 100)
	for i := range ok {
		ok[i] = 0x61
	}
	require.NoError(t, p.TryEnqueue(ok))
	got, err := c.TryDequeue()
	require.NoError(t, err)
	require.Equal(t, ok, got)
}

func TestQueueSaturation_FifthEnqueueBlocksUntilRelease(t *testing.T) {
	buf := allocRegion(t, 4, 16)
	q, err := CreateQueue(baseAddr(buf), 4, 16)
	require.NoError(t, err)

	p, err := NewProducer(q)
	require.NoError(t, err)
	c, err := NewConsumer(q)
	require.NoError(t, err)

	for i := byte(1); i <= 4; i++ {
		pl := make([]byte, 16)
		for j := range pl {
			pl[j] = i
		}
		require.NoError(t, p.Enqueue(pl))
	}
	require.ErrorIs(t, p.TryEnqueue(make([]byte, 16)), ErrNotAvailable)

	var wg sync.WaitGroup
	done := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		require.NoError(t, p.Enqueue([]byte("fifth-payload---")[:16]))
		close(done)
	}()

	for i := byte(1); i <= 4; i++ {
		got, err := c.Dequeue()
		require.NoError(t, err)
		want := make([]byte, 16)
		for j := range want {
			want[j] = i
		}
		require.Equal(t, want, append([]byte{}, got...))
		c.Release()
	}

	wg.Wait()
	<-done
}

func TestEnqueueVector_ConcatenatesBuffers(t *testing.T) {
	buf := allocRegion(t, 2, 16)
	q, err := CreateQueue(baseAddr(buf), 2, 16)
	require.NoError(t, err)

	p, err := NewProducer(q)
	require.NoError(t, err)
	c, err := NewConsumer(q)
	require.NoError(t, err)

	require.NoError(t, p.EnqueueVector([][]byte{[]byte("ab"), []byte("cd")}))
	got, err := c.Dequeue()
	require.NoError(t, err)
	require.Equal(t, []byte("abcd"), got)
}

func TestIsEnqueueDequeuePossible(t *testing.T) {
	buf := allocRegion(t, 1, 8)
	q, err := CreateQueue(baseAddr(buf), 1, 8)
	require.NoError(t, err)

	p, err := NewProducer(q)
	require.NoError(t, err)
	c, err := NewConsumer(q)
	require.NoError(t, err)

	require.True(t, p.IsEnqueuePossible())
	require.False(t, c.IsDequeuePossible())

	require.NoError(t, p.TryEnqueue([]byte("x")))
	require.False(t, p.IsEnqueuePossible())
	require.True(t, c.IsDequeuePossible())
}

func TestNewProducer_RejectsUninitializedQueue(t *testing.T) {
	buf := allocRegion(t, 2, 8)
	q := &Queue{hdr: HeaderAt(baseAddr(buf)), base: baseAddr(buf)}
	_, err := NewProducer(q)
	require.ErrorIs(t, err, ErrNotInitialized)
}
