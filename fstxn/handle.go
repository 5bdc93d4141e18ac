// Package fstxn wraps the journal for filesystem operation code. A
// Manager is created per mounted volume; operations obtain a Handle
// sized by the credits formulas, charge buffer modifications against it,
// extend or restart it when the budget runs low, and stop it when done.
//
// A Handle is used by the single goroutine that started it. Many
// concurrently running operations may hold handles on the same
// underlying journal transaction; the transaction itself is shared and
// its commit is coordinated by the journal.
package fstxn

import (
	"errors"

	"github.com/summnerx13/ext4-snapshots1/common"
	"github.com/summnerx13/ext4-snapshots1/jbd"
)

var (
	// ErrNoSpace: the journal cannot grant the requested credits. From
	// Extend the caller recovers by falling back to Restart; from Start
	// or Restart it surfaces as an out-of-space condition.
	ErrNoSpace = jbd.ErrNoSpace

	// ErrAborted: the transaction has faulted irrecoverably. Sticky;
	// every later operation on handles of that transaction fails with
	// it.
	ErrAborted = jbd.ErrAborted

	// ErrCreditShortfall: an operation needed more credits than were
	// reserved. This is a bug in a credit formula, not a runtime
	// condition, and is fatal for the volume.
	ErrCreditShortfall = errors.New("fstxn: operation exceeded reserved credits")
)

// CowStats counts snapshot copy-on-write activity charged to one handle.
type CowStats struct {
	Bitmaps uint64 // bitmap buffers given undo access
	Blocks  uint64 // metadata buffers given write access under snapshots
	Copied  uint64 // freshly created buffers under snapshots
}

// Handle is one bounded unit of journal work.
//
// The zero Handle is the shared no-journal sentinel: Valid reports
// false and every operation on it is a successful no-op, so call sites
// work unchanged on volumes mounted without a log.
type Handle struct {
	mgr *Manager
	tx  *jbd.Tx // nil for the no-journal sentinel

	// bufferCredits is the remaining raw log-block budget. baseCredits
	// and userCredits are the caller-requested operation count before
	// snapshot inflation; only Start, Extend and Restart ever set them.
	bufferCredits uint64
	baseCredits   uint64
	userCredits   uint64

	sync bool // force commit at Stop

	Cow CowStats
}

var noJournal = &Handle{}

// NoJournalHandle returns the shared sentinel handle for volumes without
// a journal.
func NoJournalHandle() *Handle {
	return noJournal
}

// Valid reports whether h is backed by a real journal transaction. The
// sentinel (and a stopped handle) is invalid; every other handle is
// valid.
func (h *Handle) Valid() bool {
	return h != nil && h.tx != nil
}

// Aborted reports whether h's transaction has faulted. Always false for
// an invalid handle.
func (h *Handle) Aborted() bool {
	if !h.Valid() {
		return false
	}
	return h.mgr.jrnl.TxAborted(h.tx)
}

// Tid is the id of the journal transaction this handle references, for
// callers that record it (e.g. an inode's sync transaction). NULLTID for
// an invalid handle.
func (h *Handle) Tid() common.TransId {
	if !h.Valid() {
		return common.NULLTID
	}
	return h.tx.Id
}

// MarkSync forces the transaction to commit when this handle stops.
func (h *Handle) MarkSync() {
	if h.Valid() {
		h.sync = true
	}
}

func (h *Handle) BufferCredits() uint64 { return h.bufferCredits }
func (h *Handle) BaseCredits() uint64   { return h.baseCredits }
func (h *Handle) UserCredits() uint64   { return h.userCredits }
