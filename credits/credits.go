package credits

// Modifying one block of data may touch the inode, a bitmap block, up to
// three indirection blocks, the group descriptor and superblock
// summaries, and the data block itself. With extents the tree can be up
// to 5 levels deep, each level costing an allocation plus a write, so the
// bound is much larger. If the on-disk tree geometry changes, these
// numbers must be re-derived as depth times per-level cost, not edited in
// place.
const (
	singleDataExtents  uint64 = 27
	singleDataIndirect uint64 = 8
)

// XattrTransBlocks bounds an extended-attribute update: at most two data
// blocks, two bitmap blocks, and two group summaries. The inode and
// superblock are already counted by the base metadata cost.
const XattrTransBlocks uint64 = 6

const (
	// MaxTransData is how many data blocks we anticipate touching in any
	// one transaction. Unbounded operations (write, truncate) start at
	// this size and grow the transaction optimistically.
	MaxTransData uint64 = 64

	// ReserveTransBlocks is the low-credit threshold at which a large
	// operation extends or restarts its transaction: enough for inode,
	// bitmap, superblock, group and indirection updates for one block,
	// plus two quota updates.
	ReserveTransBlocks uint64 = 12

	// IndexExtraTransBlocks is the additional cost of one indexed
	// directory entry operation.
	IndexExtraTransBlocks uint64 = 8
)

// A journal below MinJournalBlocks cannot host snapshot workloads;
// BigJournalBlocks is the recommended size when snapshots are enabled.
const (
	MinJournalBlocks uint64 = 32768
	BigJournalBlocks uint64 = 24 * MinJournalBlocks
)

// Worst-case quota file block counts, over both supported quota formats.
const (
	dquotInitAlloc   uint64 = 4
	dquotInitRewrite uint64 = 2
	dquotDelAlloc    uint64 = 0
	dquotDelRewrite  uint64 = 2
)

// SingleDataTransBlocks bounds the journal cost of modifying one block
// of data.
func (c Config) SingleDataTransBlocks() uint64 {
	if c.Extents {
		return singleDataExtents
	}
	return singleDataIndirect
}

// QuotaTransBlocks is the cost of one quota update for one active quota
// kind. The quota structure is known to be allocated already, so only
// its data block is touched.
func (c Config) QuotaTransBlocks() uint64 {
	if c.Quota {
		return 1
	}
	return 0
}

// MaxQuotasTransBlocks is the quota-update cost across all active quota
// kinds.
func (c Config) MaxQuotasTransBlocks() uint64 {
	return c.QuotaTypes * c.QuotaTransBlocks()
}

// DataTransBlocks is the minimum reservation for a transaction that
// modifies data. It covers the single-block cost, xattrs, and up to two
// quota files; the superblock is only updated once, so its count is
// subtracted back out of the quota term rather than counted again.
func (c Config) DataTransBlocks() uint64 {
	return c.SingleDataTransBlocks() + XattrTransBlocks - 2 +
		c.MaxQuotasTransBlocks()
}

// MetaTransBlocks bounds a metadata-only transaction: superblock, inode,
// quota and xattr blocks.
func (c Config) MetaTransBlocks() uint64 {
	return XattrTransBlocks + c.MaxQuotasTransBlocks()
}

// DeleteTransBlocks bounds a delete: a directory's namespace plus an
// entire inode plus arbitrary bitmap and indirection data. Deliberately
// generous; large truncates grow the transaction as they go.
func (c Config) DeleteTransBlocks() uint64 {
	return 2*c.DataTransBlocks() + 64
}

// QuotaInitBlocks bounds quota structure insertion, per active quota
// kind: a few block writes, with inode, superblock and group updates
// done only once.
func (c Config) QuotaInitBlocks() uint64 {
	if !c.Quota {
		return 0
	}
	return dquotInitAlloc*(c.SingleDataTransBlocks()-3) + 3 + dquotInitRewrite
}

// QuotaDelBlocks bounds quota structure deletion, per active quota kind.
func (c Config) QuotaDelBlocks() uint64 {
	if !c.Quota {
		return 0
	}
	return dquotDelAlloc*(c.SingleDataTransBlocks()-3) + 3 + dquotDelRewrite
}

// MaxQuotasInitBlocks is QuotaInitBlocks across all active quota kinds.
func (c Config) MaxQuotasInitBlocks() uint64 {
	return c.QuotaTypes * c.QuotaInitBlocks()
}

// MaxQuotasDelBlocks is QuotaDelBlocks across all active quota kinds.
func (c Config) MaxQuotasDelBlocks() uint64 {
	return c.QuotaTypes * c.QuotaDelBlocks()
}
