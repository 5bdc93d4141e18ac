package jbd

import (
	"github.com/tchajed/goose/machine/disk"
	"github.com/tchajed/marshal"

	"github.com/summnerx13/ext4-snapshots1/common"
)

const (
	logHdr   = uint64(0)
	logHdr2  = uint64(1)
	logStart = uint64(2)
)

// LogSz is the credit capacity of the journal: block addresses that fit
// in one header block.
const LogSz uint64 = common.HDRADDRS

// LogPosition counts blocks ever appended to the log; the on-disk slot
// is the position modulo LogSz.
type LogPosition uint64

// Update is one full block headed for its home location via the log.
type Update struct {
	Addr  common.Bnum
	Block disk.Block
}

func MkBlockData(bn common.Bnum, blk disk.Block) Update {
	return Update{Addr: bn, Block: blk}
}

// circular is the log's physical layout: two header blocks followed by
// LogSz data blocks at the front of the disk. The first header holds the
// end position and the home address of every slot; the second holds the
// start position. Writing a header is the atomic step of both append and
// advance.
type circular struct {
	addrs []uint64
}

// initCircular takes ownership of the log region and resets it.
func initCircular(d disk.Disk) *circular {
	b0 := make([]byte, disk.BlockSize)
	d.Write(logHdr, b0)
	d.Write(logHdr2, b0)
	return &circular{
		addrs: make([]uint64, common.HDRADDRS),
	}
}

// recoverCircular decodes both headers and returns the not-yet-installed
// updates in [start, end).
func recoverCircular(d disk.Disk) (*circular, LogPosition, LogPosition, []Update) {
	dec1 := marshal.NewDec(d.Read(logHdr))
	end := dec1.GetInt()
	addrs := dec1.GetInts(common.HDRADDRS)
	dec2 := marshal.NewDec(d.Read(logHdr2))
	start := dec2.GetInt()

	var upds []Update
	for pos := start; pos < end; pos++ {
		blk := d.Read(logStart + pos%LogSz)
		upds = append(upds, Update{Addr: addrs[pos%LogSz], Block: blk})
	}
	c := &circular{addrs: addrs}
	return c, LogPosition(start), LogPosition(end), upds
}

func (c *circular) hdr1(end LogPosition) disk.Block {
	enc := marshal.NewEnc(disk.BlockSize)
	enc.PutInt(uint64(end))
	enc.PutInts(c.addrs)
	return enc.Finish()
}

func (c *circular) hdr2(start LogPosition) disk.Block {
	enc := marshal.NewEnc(disk.BlockSize)
	enc.PutInt(uint64(start))
	return enc.Finish()
}

// Append logs upds starting at end and durably installs the new end
// position.
func (c *circular) Append(d disk.Disk, end LogPosition, upds []Update) {
	for i, u := range upds {
		pos := end + LogPosition(i)
		d.Write(logStart+uint64(pos)%LogSz, u.Block)
		c.addrs[uint64(pos)%LogSz] = u.Addr
	}
	d.Write(logHdr, c.hdr1(end+LogPosition(len(upds))))
	d.Barrier()
}

// Advance durably marks everything before newStart as installed.
func (c *circular) Advance(d disk.Disk, newStart LogPosition) {
	d.Write(logHdr2, c.hdr2(newStart))
	d.Barrier()
}
