package common

import (
	"github.com/tchajed/goose/machine/disk"
)

const (
	NBITBLOCK uint64 = disk.BlockSize * 8

	INODESZ uint64 = 128 // on-disk size

	HDRMETA  = uint64(8) // space for the end position
	HDRADDRS = (disk.BlockSize - HDRMETA) / 8
	LOGSIZE  = HDRADDRS + 2 // 2 for log headers
)

type Bnum = uint64

// TransId identifies one journal transaction. Ids increase
// monotonically; 0 is never a real transaction.
type TransId = uint64

const (
	NULLBNUM Bnum    = 0
	NULLTID  TransId = 0
)
