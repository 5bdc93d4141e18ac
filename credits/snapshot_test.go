package credits

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCowConstants(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(uint64(9), CowBitmapCredits)
	assert.Equal(uint64(11), CowBlockCredits)
	assert.Equal(uint64(20), CowCredits)
	assert.Equal(uint64(3), SnapshotCredits)
	assert.Equal(uint64(23), ReserveCowCredits)
}

func TestSnapshotTransBlocks(t *testing.T) {
	assert := assert.New(t)
	for n := uint64(0); n <= 100; n++ {
		assert.Equal(21*n+3, SnapshotTransBlocks(n))
		assert.Equal(21*n+6, SnapshotStartTransBlocks(n))
	}
}

func TestStartTransBlocksStrategy(t *testing.T) {
	assert := assert.New(t)

	plain := Config{Extents: true}
	assert.Equal(uint64(12), plain.StartTransBlocks(12),
		"no inflation without snapshots")
	assert.Equal(uint64(12), plain.TransBlocks(12))

	snap := Config{Extents: true, Snapshots: true}
	assert.Equal(uint64(111), snap.StartTransBlocks(5))
	assert.Equal(uint64(108), snap.TransBlocks(5))
}
