package shmipc

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fzheng/shmipc/internal/backends/filemap"
	"github.com/fzheng/shmipc/internal/backends/sysv"
)

// TestCrossBackendIsolation covers spec §8 scenario 5: a contact
// descriptor produced by one backend kind must not be interpretable by
// a different backend's attach call. filemap's contact is a path plus
// a size word; sysv's attach treats the same bytes as a numeric key and
// looks up a segment that was never created under it, so it fails.
func TestCrossBackendIsolation(t *testing.T) {
	fileBackend := filemap.New()
	fileState, err := fileBackend.Init(filemap.Config{Prefix: filepath.Join(t.TempDir(), "shmipc")})
	require.NoError(t, err)

	rs, _, err := fileBackend.CreateRegion(fileState, 4096, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fileBackend.DestroyRegion(fileState, rs) })

	fileContact, err := fileBackend.Contact(fileState, rs)
	require.NoError(t, err)

	sysvBackend := sysv.New()
	sysvState, err := sysvBackend.Init(sysv.Config{AnchorPrefix: filepath.Join(t.TempDir(), "shmipc-sysv")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sysvBackend.Finalize(sysvState) })

	_, _, err = sysvBackend.AttachRegion(sysvState, fileContact, 4096, 0)
	require.Error(t, err, "sysv attach must reject a filemap contact descriptor")

	sysvRS, _, err := sysvBackend.CreateRegion(sysvState, 4096, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sysvBackend.DestroyRegion(sysvState, sysvRS) })

	sysvContact, err := sysvBackend.Contact(sysvState, sysvRS)
	require.NoError(t, err)

	_, _, err = fileBackend.AttachRegion(fileState, sysvContact, 4096, 0)
	require.Error(t, err, "filemap attach must reject a sysv contact descriptor (8 raw key bytes are too short for a NUL-terminated path plus its size word)")
}
