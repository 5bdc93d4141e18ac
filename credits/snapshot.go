package credits

// Snapshot copy-on-write accounting. When a volume has live snapshots,
// every metadata write may first have to copy the old block content into
// the snapshot file, which costs journal credits over and above the
// caller's request. The constants below derive from the snapshot file's
// indirection depth and per-block write cost; re-derive them if either
// changes.
const (
	// WriteCredits is the cost of journaling one block.
	WriteCredits uint64 = 1

	// AllocCredits is the cost of one snapshot block allocation: block
	// group bitmap, exclude bitmap, and group descriptor.
	AllocCredits uint64 = 3

	// CowBitmapCredits covers a COW bitmap operation, which allocates a
	// double-indirect, an indirect, and the COW destination block. The
	// allocated blocks themselves are not journaled.
	CowBitmapCredits uint64 = 3 * AllocCredits

	// CowBlockCredits covers any other block COW: the same three
	// allocations plus journaling the double-indirect and indirect
	// blocks.
	CowBlockCredits uint64 = 3*AllocCredits + 2*WriteCredits

	// CowCredits is the full cost of the first COW in a block group that
	// is not the first group of a flex group.
	CowCredits uint64 = CowBlockCredits + CowBitmapCredits

	// SnapshotCredits is charged once per transaction: writes of the
	// snapshot file's superblock, inode, and triple-indirect block.
	SnapshotCredits uint64 = 3 * WriteCredits

	// ReserveCowCredits is held back so the last COW of a transaction
	// always has room to complete.
	ReserveCowCredits uint64 = CowCredits + SnapshotCredits
)

// SnapshotTransBlocks is the raw buffer-credit bound for n user metadata
// operations when snapshots are enabled: each operation may trigger a
// full COW cycle, plus the fixed per-transaction cost.
func SnapshotTransBlocks(n uint64) uint64 {
	return n*(1+CowCredits) + SnapshotCredits
}

// SnapshotStartTransBlocks sizes a fresh transaction: the fixed cost is
// reserved twice so one extra COW at the transaction boundary cannot run
// the reservation dry.
func SnapshotStartTransBlocks(n uint64) uint64 {
	return n*(1+CowCredits) + 2*SnapshotCredits
}

// StartTransBlocks translates n requested user operations into the raw
// buffer credits to ask of the journal when opening or restarting a
// transaction.
func (c Config) StartTransBlocks(n uint64) uint64 {
	if c.Snapshots {
		return SnapshotStartTransBlocks(n)
	}
	return n
}

// TransBlocks is the raw buffer credits n user operations must have in
// hand mid-transaction.
func (c Config) TransBlocks(n uint64) uint64 {
	if c.Snapshots {
		return SnapshotTransBlocks(n)
	}
	return n
}
