// buf manages sub-block metadata objects (an inode, a bitmap bit, or a
// whole block), to be packed into disk blocks at commit.
package buf

import (
	"github.com/tchajed/goose/machine/disk"
	"github.com/tchajed/marshal"

	"github.com/summnerx13/ext4-snapshots1/addr"
	"github.com/summnerx13/ext4-snapshots1/common"
)

// A Buf is a pending write to one metadata object.
type Buf struct {
	Addr  addr.Addr
	Sz    uint64 // number of bits
	Data  []byte
	dirty bool // has this object been modified?
}

func MkBuf(addr addr.Addr, sz uint64, data []byte) *Buf {
	return &Buf{
		Addr:  addr,
		Sz:    sz,
		Data:  data,
		dirty: false,
	}
}

// MkBufLoad slices the object at addr out of blk into a new clean buf.
func MkBufLoad(addr addr.Addr, sz uint64, blk disk.Block) *Buf {
	bytefirst := addr.Off / 8
	bytelast := (addr.Off + sz - 1) / 8
	return &Buf{
		Addr:  addr,
		Sz:    sz,
		Data:  blk[bytefirst : bytelast+1],
		dirty: false,
	}
}

// Install 1 bit from src into dst, at offset bit. return new dst.
func installOneBit(src byte, dst byte, bit uint64) byte {
	var new byte = dst
	if src&(1<<bit) != dst&(1<<bit) {
		if src&(1<<bit) == 0 {
			new = new & ^(1 << bit)
		} else {
			new = new | (1 << bit)
		}
	}
	return new
}

func installBit(src []byte, dst []byte, dstoff uint64) {
	dstbyte := dstoff / 8
	dst[dstbyte] = installOneBit(src[0], dst[dstbyte], dstoff%8)
}

func installBytes(src []byte, dst []byte, dstoff uint64, nbit uint64) {
	sz := nbit / 8
	copy(dst[dstoff/8:], src[:sz])
}

// Install writes the buf's bits into blk. Objects are either a single bit
// or a byte-aligned run; anything else is a schema bug.
func (buf *Buf) Install(blk disk.Block) {
	if buf.Sz == 1 {
		installBit(buf.Data, blk, buf.Addr.Off)
	} else if buf.Sz%8 == 0 && buf.Addr.Off%8 == 0 {
		installBytes(buf.Data, blk, buf.Addr.Off, buf.Sz)
	} else {
		panic("Install unsupported")
	}
}

func (buf *Buf) IsDirty() bool {
	return buf.dirty
}

func (buf *Buf) SetDirty() {
	buf.dirty = true
}

// BnumGet reads a block pointer stored at byte offset off, as found in
// indirection blocks.
func (buf *Buf) BnumGet(off uint64) common.Bnum {
	dec := marshal.NewDec(buf.Data[off : off+8])
	return common.Bnum(dec.GetInt())
}

// BnumPut stores a block pointer at byte offset off and marks the buf
// dirty.
func (buf *Buf) BnumPut(off uint64, v common.Bnum) {
	enc := marshal.NewEnc(8)
	enc.PutInt(uint64(v))
	copy(buf.Data[off:off+8], enc.Finish())
	buf.SetDirty()
}
