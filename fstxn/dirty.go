package fstxn

import (
	"github.com/summnerx13/ext4-snapshots1/buf"
)

// Buffer access and dirty tracking. Each first access to a buffer in a
// transaction consumes one buffer credit; re-accessing a registered
// buffer is free. The caller holds the buffer's lock across these calls
// (the buffer cache's concern, not ours).

// charge registers b with the transaction, consuming a credit if the
// registration is new. register performs the actual journal-side
// registration and reports whether it was new.
func (h *Handle) charge(register func() (bool, error)) error {
	if h.bufferCredits == 0 {
		return ErrCreditShortfall
	}
	fresh, err := register()
	if err != nil {
		return err
	}
	if fresh {
		h.bufferCredits--
	}
	return nil
}

// GetWriteAccess must be called before the first modification of a
// metadata buffer in this transaction; it registers the buffer so the
// journal captures it at commit.
func (h *Handle) GetWriteAccess(b *buf.Buf) error {
	if !h.Valid() {
		return nil
	}
	if h.Aborted() {
		return ErrAborted
	}
	if h.mgr.jrnl.Registered(h.tx, b.Addr) {
		return nil
	}
	if h.mgr.cfg.Snapshots {
		h.Cow.Blocks++
	}
	return h.charge(func() (bool, error) {
		return h.mgr.jrnl.Register(h.tx, b)
	})
}

// GetCreateAccess grants access to a freshly allocated buffer. No
// pre-image exists to preserve, but the buffer is registered and charged
// like any other.
func (h *Handle) GetCreateAccess(b *buf.Buf) error {
	if !h.Valid() {
		return nil
	}
	if h.Aborted() {
		return ErrAborted
	}
	if h.mgr.jrnl.Registered(h.tx, b.Addr) {
		return nil
	}
	if h.mgr.cfg.Snapshots {
		h.Cow.Copied++
	}
	return h.charge(func() (bool, error) {
		return h.mgr.jrnl.Register(h.tx, b)
	})
}

// GetUndoAccess grants write access to a bitmap buffer and captures its
// pre-image, which must stay reachable until the transaction commits.
func (h *Handle) GetUndoAccess(b *buf.Buf) error {
	if !h.Valid() {
		return nil
	}
	if h.Aborted() {
		return ErrAborted
	}
	if h.mgr.jrnl.Registered(h.tx, b.Addr) {
		return nil
	}
	h.Cow.Bitmaps++
	return h.charge(func() (bool, error) {
		return h.mgr.jrnl.RegisterUndo(h.tx, b)
	})
}

// MarkDirty records that b has pending changes to commit with this
// transaction. Idempotent. Dirtying a buffer that was never given access
// is a credit-accounting bug and fails fatally.
func (h *Handle) MarkDirty(b *buf.Buf) error {
	if !h.Valid() {
		return nil
	}
	if h.Aborted() {
		return ErrAborted
	}
	if !h.mgr.jrnl.Registered(h.tx, b.Addr) {
		return ErrCreditShortfall
	}
	b.SetDirty()
	return nil
}

// ReserveInodeWrite grants write access to the buffer holding an inode's
// persistent fields.
func (h *Handle) ReserveInodeWrite(iloc *buf.Buf) error {
	return h.GetWriteAccess(iloc)
}

// MarkInodeDirty records pending changes to an inode's persistent
// fields, reserving access first if the caller has not.
func (h *Handle) MarkInodeDirty(iloc *buf.Buf) error {
	if err := h.ReserveInodeWrite(iloc); err != nil {
		return err
	}
	return h.MarkDirty(iloc)
}

// Forget releases b from journal tracking when its content has become
// irrelevant before commit, e.g. the block was deallocated. Prevents
// stale content from being journaled.
func (h *Handle) Forget(b *buf.Buf, isMetadata bool) error {
	if !h.Valid() {
		return nil
	}
	if h.Aborted() {
		return ErrAborted
	}
	h.mgr.jrnl.Forget(h.tx, b.Addr)
	return nil
}

// ReleaseBuffer drops an access grant that turned out unnecessary,
// refunding its credit. A buffer already marked dirty cannot be
// released.
func (h *Handle) ReleaseBuffer(b *buf.Buf) error {
	if !h.Valid() {
		return nil
	}
	if b.IsDirty() {
		return nil
	}
	if h.mgr.jrnl.Forget(h.tx, b.Addr) {
		h.bufferCredits++
	}
	return nil
}
