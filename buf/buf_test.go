package buf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tchajed/goose/machine/disk"

	"github.com/summnerx13/ext4-snapshots1/addr"
	"github.com/summnerx13/ext4-snapshots1/common"
)

func TestInstallOneBit(t *testing.T) {
	assert.Equal(t, byte(0x01), installOneBit(0xFF, 0x00, 0))
	assert.Equal(t, byte(0xFE), installOneBit(0x00, 0xFF, 0))
	assert.Equal(t, byte(0x10), installOneBit(0x10, 0x00, 4))
	assert.Equal(t, byte(0x00), installOneBit(0x00, 0x00, 7))
}

func TestInstallBitIntoBlock(t *testing.T) {
	blk := make(disk.Block, disk.BlockSize)
	a := addr.MkBitAddr(0, 12)
	b := MkBuf(a, 1, []byte{0x10}) // bit 12 = bit 4 of byte 1
	b.Install(blk)
	assert.Equal(t, byte(0x10), blk[1])
}

func TestInstallBytes(t *testing.T) {
	blk := make(disk.Block, disk.BlockSize)
	data := []byte{1, 2, 3, 4}
	b := MkBuf(addr.MkAddr(0, 8*8), uint64(len(data)*8), data)
	b.Install(blk)
	assert.Equal(t, data, blk[8:12])
	assert.Equal(t, byte(0), blk[7])
	assert.Equal(t, byte(0), blk[12])
}

func TestLoadInstallRoundtrip(t *testing.T) {
	blk := make(disk.Block, disk.BlockSize)
	for i := range blk {
		blk[i] = byte(i % 251)
	}
	a := addr.MkAddr(7, 2*common.INODESZ*8)
	b := MkBufLoad(a, common.INODESZ*8, blk)
	assert.False(t, b.IsDirty())
	assert.Equal(t, blk[2*common.INODESZ:3*common.INODESZ], b.Data)

	blk2 := make(disk.Block, disk.BlockSize)
	b.Install(blk2)
	assert.Equal(t, blk[2*common.INODESZ:3*common.INODESZ],
		blk2[2*common.INODESZ:3*common.INODESZ])
}

func TestBnumPutGet(t *testing.T) {
	data := make([]byte, 64)
	b := MkBuf(addr.MkBlockAddr(3), uint64(len(data)*8), data)
	b.BnumPut(16, common.Bnum(0xdeadbeef))
	assert.True(t, b.IsDirty())
	assert.Equal(t, common.Bnum(0xdeadbeef), b.BnumGet(16))
}
