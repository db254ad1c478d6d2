package layout

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/fzheng/shmipc/internal/constants"
)

func alignedBuf(t *testing.T, n uintptr) uintptr {
	t.Helper()
	cl := uintptr(constants.CacheLineSize)
	buf := make([]byte, n+cl)
	addr := uintptr(unsafe.Pointer(&buf[0]))
	pad := addr % cl
	if pad != 0 {
		pad = cl - pad
	}
	t.Cleanup(func() { runtimeKeepAlive(buf) })
	return addr + pad
}

// runtimeKeepAlive exists only so the backing slice in alignedBuf isn't
// collected out from under the raw uintptr derived from it before the
// test finishes asserting against it.
func runtimeKeepAlive(b []byte) {
	_ = b
}

func TestWriteRead_RoundTrip(t *testing.T) {
	addr := alignedBuf(t, Size+256)

	Write(addr, 4242, Size, Size+128)

	pid, a, b := Read(addr)
	require.Equal(t, 4242, pid)
	require.Equal(t, Size, a)
	require.Equal(t, Size+128, b)
}

func TestSize_CachelineAligned(t *testing.T) {
	require.Equal(t, uintptr(0), Size%uintptr(constants.CacheLineSize))
}
