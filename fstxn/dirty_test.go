package fstxn_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tchajed/goose/machine/disk"

	"github.com/summnerx13/ext4-snapshots1/common"
	"github.com/summnerx13/ext4-snapshots1/credits"
	"github.com/summnerx13/ext4-snapshots1/fstxn"
	"github.com/summnerx13/ext4-snapshots1/lockmap"
)

func TestGetWriteAccessCharges(t *testing.T) {
	assert := assert.New(t)
	m, _ := mkManager(t, credits.Config{})

	h, err := m.Start(3)
	require.NoError(t, err)
	b := blockBuf(homeStart+1, 0x01)
	require.NoError(t, h.GetWriteAccess(b))
	assert.Equal(uint64(2), h.BufferCredits())

	// re-access of a registered buffer is free
	require.NoError(t, h.GetWriteAccess(b))
	assert.Equal(uint64(2), h.BufferCredits())
	require.NoError(t, h.Stop())
}

func TestMarkDirtyIdempotent(t *testing.T) {
	m, j := mkManager(t, credits.Config{})

	h, err := m.Start(2)
	require.NoError(t, err)
	b := blockBuf(homeStart+2, 0x22)
	require.NoError(t, h.GetWriteAccess(b))
	require.NoError(t, h.MarkDirty(b))
	require.NoError(t, h.MarkDirty(b))
	assert.Equal(t, uint64(1), h.BufferCredits(),
		"marking dirty consumes no credits")

	h.MarkSync()
	require.NoError(t, h.Stop())
	assert.Equal(t, block(0x22), j.Read(homeStart+2))
}

func TestMarkDirtyWithoutAccess(t *testing.T) {
	m, _ := mkManager(t, credits.Config{})

	h, err := m.Start(2)
	require.NoError(t, err)
	b := blockBuf(homeStart+3, 0x33)
	assert.ErrorIs(t, h.MarkDirty(b), fstxn.ErrCreditShortfall)
	require.NoError(t, h.Stop())
}

func TestCreditShortfall(t *testing.T) {
	m, _ := mkManager(t, credits.Config{})

	h, err := m.Start(1)
	require.NoError(t, err)
	require.NoError(t, h.GetWriteAccess(blockBuf(homeStart+4, 0x44)))
	assert.Equal(t, uint64(0), h.BufferCredits())

	err = h.GetWriteAccess(blockBuf(homeStart+5, 0x55))
	assert.ErrorIs(t, err, fstxn.ErrCreditShortfall)
	require.NoError(t, h.Stop())
}

func TestReleaseBufferRefunds(t *testing.T) {
	assert := assert.New(t)
	m, j := mkManager(t, credits.Config{})

	h, err := m.Start(2)
	require.NoError(t, err)
	b := blockBuf(homeStart+6, 0x66)
	require.NoError(t, h.GetWriteAccess(b))
	assert.Equal(uint64(1), h.BufferCredits())

	require.NoError(t, h.ReleaseBuffer(b))
	assert.Equal(uint64(2), h.BufferCredits())

	h.MarkSync()
	require.NoError(t, h.Stop())
	assert.Equal(make(disk.Block, disk.BlockSize), j.Read(homeStart+6),
		"released buffer is not journaled")
}

func TestReleaseBufferIgnoresDirty(t *testing.T) {
	m, j := mkManager(t, credits.Config{})

	h, err := m.Start(2)
	require.NoError(t, err)
	b := blockBuf(homeStart+7, 0x77)
	require.NoError(t, h.GetWriteAccess(b))
	require.NoError(t, h.MarkDirty(b))
	require.NoError(t, h.ReleaseBuffer(b))
	assert.Equal(t, uint64(1), h.BufferCredits(), "no refund for a dirty buffer")

	h.MarkSync()
	require.NoError(t, h.Stop())
	assert.Equal(t, block(0x77), j.Read(homeStart+7))
}

func TestForgetDropsFromCommit(t *testing.T) {
	m, j := mkManager(t, credits.Config{})

	h, err := m.Start(4)
	require.NoError(t, err)
	keep := blockBuf(homeStart+8, 0x88)
	drop := blockBuf(homeStart+9, 0x99)
	require.NoError(t, h.GetWriteAccess(keep))
	require.NoError(t, h.MarkDirty(keep))
	require.NoError(t, h.GetWriteAccess(drop))
	require.NoError(t, h.MarkDirty(drop))

	require.NoError(t, h.Forget(drop, true))
	h.MarkSync()
	require.NoError(t, h.Stop())

	assert.Equal(t, block(0x88), j.Read(homeStart+8))
	assert.Equal(t, make(disk.Block, disk.BlockSize), j.Read(homeStart+9),
		"forgotten buffer must not reach disk")
}

func TestGetUndoAccessChargesOnce(t *testing.T) {
	m, _ := mkManager(t, credits.Config{Snapshots: true})

	h, err := m.Start(2)
	require.NoError(t, err)
	bitmap := blockBuf(homeStart+10, 0x0f)
	require.NoError(t, h.GetUndoAccess(bitmap))
	assert.Equal(t, uint64(1), h.Cow.Bitmaps)

	// repeated undo access neither re-charges nor recounts
	require.NoError(t, h.GetUndoAccess(bitmap))
	assert.Equal(t, uint64(1), h.Cow.Bitmaps)
	require.NoError(t, h.Stop())
}

func TestCowStats(t *testing.T) {
	assert := assert.New(t)
	m, _ := mkManager(t, credits.Config{Snapshots: true})

	h, err := m.Start(3)
	require.NoError(t, err)
	require.NoError(t, h.GetWriteAccess(blockBuf(homeStart+11, 0x01)))
	require.NoError(t, h.GetCreateAccess(blockBuf(homeStart+12, 0x02)))
	require.NoError(t, h.GetUndoAccess(blockBuf(homeStart+13, 0x03)))
	assert.Equal(uint64(1), h.Cow.Blocks)
	assert.Equal(uint64(1), h.Cow.Copied)
	assert.Equal(uint64(1), h.Cow.Bitmaps)
	require.NoError(t, h.Stop())
}

func TestMarkInodeDirty(t *testing.T) {
	m, j := mkManager(t, credits.Config{})

	h, err := m.Start(2)
	require.NoError(t, err)
	iloc := blockBuf(homeStart+14, 0xee)
	// reserves access implicitly
	require.NoError(t, h.MarkInodeDirty(iloc))
	assert.Equal(t, uint64(1), h.BufferCredits())

	h.MarkSync()
	require.NoError(t, h.Stop())
	assert.Equal(t, block(0xee), j.Read(homeStart+14))
}

// Many operation contexts, each with its own handle on the shared
// transaction, dirty distinct buffers under the buffer lock map.
func TestConcurrentHandles(t *testing.T) {
	const nops = 32
	m, j := mkManager(t, credits.Config{})
	locks := lockmap.MkLockMap()

	var wg sync.WaitGroup
	wg.Add(nops)
	for i := uint64(0); i < nops; i++ {
		i := i
		go func() {
			defer wg.Done()
			h, err := m.Start(1)
			assert.NoError(t, err)
			bn := homeStart + 100 + common.Bnum(i)
			locks.Acquire(uint64(bn))
			b := blockBuf(bn, byte(i+1))
			assert.NoError(t, h.GetWriteAccess(b))
			assert.NoError(t, h.MarkDirty(b))
			locks.Release(uint64(bn))
			assert.NoError(t, h.Stop())
		}()
	}
	wg.Wait()
	require.NoError(t, m.ForceCommit())

	for i := uint64(0); i < nops; i++ {
		assert.Equal(t, block(byte(i+1)), j.Read(homeStart+100+common.Bnum(i)),
			"buffer %d", i)
	}
}
