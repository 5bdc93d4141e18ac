package addr

import (
	"github.com/tchajed/goose/machine/disk"

	"github.com/summnerx13/ext4-snapshots1/common"
)

// Addr identifies the start of a metadata object on disk.
//
// Blkno is the block holding the object and Off is the object's position
// within the block, in bits. The object's size comes from the buffer that
// carries it.
type Addr struct {
	Blkno common.Bnum
	Off   uint64 // offset in bits
}

// Flatid maps an Addr to a single integer, for use as a map or lock key.
func (a Addr) Flatid() uint64 {
	return uint64(a.Blkno)*(disk.BlockSize*8) + a.Off
}

func MkAddr(blkno common.Bnum, off uint64) Addr {
	return Addr{Blkno: blkno, Off: off}
}

// MkBitAddr addresses bit n of a bitmap starting at block start.
func MkBitAddr(start common.Bnum, n uint64) Addr {
	bit := n % common.NBITBLOCK
	i := n / common.NBITBLOCK
	return MkAddr(start+common.Bnum(i), bit)
}

// MkBlockAddr addresses a whole disk block.
func MkBlockAddr(blkno common.Bnum) Addr {
	return MkAddr(blkno, 0)
}
