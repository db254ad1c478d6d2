package shmipc

import (
	"github.com/fzheng/shmipc/internal/backends/filemap"
	"github.com/fzheng/shmipc/internal/backends/posixshm"
	"github.com/fzheng/shmipc/internal/backends/sysv"
	"github.com/fzheng/shmipc/internal/interfaces"
)

func newFilemapBackend() interfaces.RegionBackend { return filemap.New() }
func newSysvBackend() interfaces.RegionBackend     { return sysv.New() }
func newPosixShmBackend() interfaces.RegionBackend { return posixshm.New() }
