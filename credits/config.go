// Package credits computes conservative upper bounds on the number of
// journal blocks a filesystem operation may touch. The transaction layer
// reserves this many log blocks before an operation starts; the bounds
// must never under-count, or the log can run out of committed space with
// changes half applied.
package credits

// DataMode is the volume's data journaling mode.
type DataMode int

const (
	OrderedData DataMode = iota
	JournalData
	WritebackData
)

// MaxQuotas is the number of quota kinds that can be active at once
// (user and group).
const MaxQuotas uint64 = 2

// Config captures the mount options that drive credit computation. It is
// built once at mount and never modified.
type Config struct {
	// Extents selects the extent tree over indirect blocks as the
	// indexing structure.
	Extents bool
	// Snapshots enables copy-on-write accounting for live snapshots.
	Snapshots bool
	// Quota enables quota accounting; QuotaTypes is how many quota kinds
	// are active (at most MaxQuotas).
	Quota      bool
	QuotaTypes uint64
	// DataMode is the requested data journaling mode.
	DataMode DataMode
	// DioreadNolock is the mount option requesting lock-free direct
	// reads; see ShouldDioreadNolock for when it actually takes effect.
	DioreadNolock bool
}

// ShouldJournalData reports whether a file's data blocks are journaled
// like metadata. Directories and symlinks always are. Snapshots force
// ordered data, since a journaled data block is already copied on write
// as metadata.
func (c Config) ShouldJournalData(isReg bool) bool {
	if !isReg {
		return true
	}
	if c.Snapshots {
		return false
	}
	return c.DataMode == JournalData
}

// ShouldOrderData reports whether data blocks must be written out before
// the transaction that allocates them commits.
func (c Config) ShouldOrderData(isReg bool) bool {
	if !isReg {
		return false
	}
	if c.Snapshots {
		// snapshots enforce ordered data
		return true
	}
	return c.DataMode == OrderedData
}

func (c Config) ShouldWritebackData(isReg bool) bool {
	if c.Snapshots {
		return false
	}
	if !isReg {
		return false
	}
	return c.DataMode == WritebackData
}

// ShouldDioreadNolock reports whether lock-free direct reads are safe:
// extent-mapped regular files only, with no data journaling and no
// snapshots.
func (c Config) ShouldDioreadNolock(isReg bool) bool {
	if !c.DioreadNolock {
		return false
	}
	if !isReg {
		return false
	}
	if c.Snapshots {
		return false
	}
	if !c.Extents {
		return false
	}
	if c.ShouldJournalData(isReg) {
		return false
	}
	return true
}

// ShouldMoveData reports whether a file's data blocks get moved-on-write
// into the snapshot before being overwritten. Journaled data is already
// COWed as metadata; excluded files opt out.
func (c Config) ShouldMoveData(isReg bool, excluded bool) bool {
	if !c.Snapshots {
		return false
	}
	if excluded {
		return false
	}
	if c.ShouldJournalData(isReg) {
		return false
	}
	return true
}
