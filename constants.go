package shmipc

import "github.com/fzheng/shmipc/internal/constants"

// Re-exported tunables for the public API.
const (
	CacheLineSize       = constants.CacheLineSize
	PageSize            = constants.PageSize
	DefaultFilePrefix   = constants.DefaultFilePrefix
	DefaultShmPrefix    = constants.DefaultShmPrefix
	DefaultFileMode     = constants.DefaultFileMode
	RegionSizeWordBytes = constants.RegionSizeWordBytes
)
