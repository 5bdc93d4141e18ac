// Package jbd is the write-ahead journal that the transaction layer
// reserves credits against. It tracks a single running transaction shared
// by many handles, grants and extends credit reservations with blocking
// backpressure when log space is short, and commits registered buffers
// through a circular on-disk log.
//
// The commit model: at commit, dirty buffers are folded into their home
// blocks, the blocks are appended to the circular log (the durable
// point), then installed to their home locations and the log space is
// reclaimed. Recovery replays any appended-but-not-installed blocks.
package jbd

import (
	"errors"
	"sync"

	"github.com/tchajed/goose/machine/disk"
	"go.uber.org/zap"

	"github.com/summnerx13/ext4-snapshots1/addr"
	"github.com/summnerx13/ext4-snapshots1/buf"
	"github.com/summnerx13/ext4-snapshots1/common"
	"github.com/summnerx13/ext4-snapshots1/util"
)

var (
	// ErrNoSpace means the journal cannot grant the requested credits.
	// From Extend this is recoverable by restarting the transaction.
	ErrNoSpace = errors.New("jbd: no log space for requested credits")

	// ErrAborted means the journal or transaction has faulted; no
	// further writes may go through it.
	ErrAborted = errors.New("jbd: transaction aborted")
)

// Tx is one journal transaction. It is shared: every handle opened while
// it is running holds a reference, and it commits only after all
// references are dropped. All mutable fields are guarded by the owning
// Journal's mutex, except the write set, which is internally sharded.
type Tx struct {
	Id common.TransId

	refs       uint64 // live handles referencing this transaction
	reserved   uint64 // total credits reserved against log space
	mustCommit bool   // a waiter or sync handle needs this committed
	aborted    bool

	writes *writeMap
}

// Journal mediates access to the log. There is one Journal per mounted
// volume with journaling enabled.
type Journal struct {
	mu   *sync.Mutex
	cond *sync.Cond // space and commit waiters

	d    disk.Disk
	circ *circular
	end  LogPosition

	running *Tx
	nextId  common.TransId
	aborted bool

	log *zap.Logger
}

// New recovers the journal from d (or initializes it on a fresh disk).
// Blocks appended but not installed before a crash are replayed to their
// home locations.
func New(d disk.Disk, logger *zap.Logger) *Journal {
	if logger == nil {
		logger = zap.NewNop()
	}
	circ, start, end, upds := recoverCircular(d)
	for _, u := range upds {
		d.Write(u.Addr, u.Block)
	}
	if len(upds) > 0 {
		d.Barrier()
		circ.Advance(d, end)
		logger.Info("journal recovery replayed blocks",
			zap.Int("blocks", len(upds)),
			zap.Uint64("start", uint64(start)),
			zap.Uint64("end", uint64(end)))
	}
	j := &Journal{
		mu:     new(sync.Mutex),
		d:      d,
		circ:   circ,
		end:    end,
		nextId: common.NULLTID + 1,
		log:    logger,
	}
	j.cond = sync.NewCond(j.mu)
	return j
}

func (j *Journal) mkTxLocked() *Tx {
	t := &Tx{
		Id:     j.nextId,
		writes: mkWriteMap(),
	}
	j.nextId++
	return t
}

// Begin reserves n credits, opening a transaction or joining the running
// one. It blocks while the log is too full, until older handles detach
// and the running transaction commits (backpressure). Fails with
// ErrNoSpace only if n alone exceeds the log, and ErrAborted if the
// journal is dead.
func (j *Journal) Begin(n uint64) (*Tx, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.beginLocked(n)
}

func (j *Journal) beginLocked(n uint64) (*Tx, error) {
	if n > LogSz {
		return nil, ErrNoSpace
	}
	for {
		if j.aborted {
			return nil, ErrAborted
		}
		t := j.running
		if t == nil {
			t = j.mkTxLocked()
			j.running = t
		}
		if !t.mustCommit && t.reserved+n <= LogSz {
			t.refs++
			t.reserved += n
			j.log.Debug("credits reserved",
				zap.String("op", "begin"),
				zap.Uint64("tid", t.Id),
				zap.Uint64("credits", n))
			return t, nil
		}
		// The running transaction is full or already headed for
		// commit; push it out and retry.
		t.mustCommit = true
		if t.refs == 0 {
			j.commitLocked(t)
			continue
		}
		j.cond.Wait()
	}
}

// Extend grows t's reservation in place. Never blocks: if t is no longer
// the running transaction or the extra space is not there, the caller
// must fall back to Restart.
func (j *Journal) Extend(t *Tx, delta uint64) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.aborted || t.aborted {
		return ErrAborted
	}
	if j.running != t || t.mustCommit {
		return ErrNoSpace
	}
	if t.reserved+delta > LogSz {
		return ErrNoSpace
	}
	t.reserved += delta
	j.log.Debug("credits reserved",
		zap.String("op", "extend"),
		zap.Uint64("tid", t.Id),
		zap.Uint64("credits", delta))
	return nil
}

// Restart detaches the caller from t (returning held unused credits),
// commits t once every other handle has detached, and opens a fresh
// reservation of n. May block on both the commit and the new
// reservation.
func (j *Journal) Restart(t *Tx, held uint64, n uint64) (*Tx, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	t.refs--
	t.reserved -= util.Min(held, t.reserved)
	t.mustCommit = true
	j.cond.Broadcast()
	for j.running == t && t.refs > 0 {
		j.cond.Wait()
	}
	if j.running == t && !j.aborted {
		j.commitLocked(t)
	}
	return j.beginLocked(n)
}

// Close detaches a handle, returning its unused credits. A sync close
// forces commit; otherwise the transaction stays open for batching until
// the journal decides to commit it.
func (j *Journal) Close(t *Tx, unused uint64, sync bool) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	t.refs--
	t.reserved -= util.Min(unused, t.reserved)
	if sync {
		t.mustCommit = true
	}
	var err error
	if t.refs == 0 && t.mustCommit && j.running == t {
		if j.aborted || t.aborted {
			err = ErrAborted
		} else {
			j.commitLocked(t)
		}
	}
	j.cond.Broadcast()
	return err
}

// ForceCommit commits the running transaction, waiting for its handles
// to detach first.
func (j *Journal) ForceCommit() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	t := j.running
	if t == nil {
		return nil
	}
	t.mustCommit = true
	for j.running == t && t.refs > 0 {
		j.cond.Wait()
	}
	if j.running != t {
		return nil
	}
	if j.aborted || t.aborted {
		return ErrAborted
	}
	j.commitLocked(t)
	return nil
}

// commitLocked folds t's dirty buffers into home blocks, appends them to
// the circular log, installs them, and retires t. Caller holds j.mu and
// has checked t.refs == 0.
func (j *Journal) commitLocked(t *Tx) {
	bufs := t.writes.dirtyBufs()
	upds := j.installBufs(bufs)
	if uint64(len(upds)) > LogSz {
		// More blocks than the reservation invariant allows; the
		// credit formulas under-counted.
		panic("jbd: commit exceeds log size")
	}
	if len(upds) > 0 {
		j.circ.Append(j.d, j.end, upds)
		j.end += LogPosition(len(upds))
		for _, u := range upds {
			j.d.Write(u.Addr, u.Block)
		}
		j.d.Barrier()
		j.circ.Advance(j.d, j.end)
	}
	j.log.Debug("transaction committed",
		zap.String("op", "commit"),
		zap.Uint64("tid", t.Id),
		zap.Int("blocks", len(upds)))
	j.running = nil
	j.cond.Broadcast()
}

// installBufs folds sub-block buffers into their home blocks. Several
// buffers may land in the same block; full-block writes take it over
// outright.
func (j *Journal) installBufs(bufs []*buf.Buf) []Update {
	blks := make(map[common.Bnum][]byte)
	for _, b := range bufs {
		if b.Sz == common.NBITBLOCK {
			blks[b.Addr.Blkno] = b.Data
			continue
		}
		blk, ok := blks[b.Addr.Blkno]
		if !ok {
			blk = j.d.Read(uint64(b.Addr.Blkno))
			blks[b.Addr.Blkno] = blk
		}
		b.Install(blk)
	}
	var upds []Update
	for bn, data := range blks {
		upds = append(upds, MkBlockData(bn, data))
	}
	return upds
}

// Register attaches b to t's write set so its content is captured at
// commit. Idempotent; reports whether the buffer was newly registered.
func (j *Journal) Register(t *Tx, b *buf.Buf) (bool, error) {
	if j.TxAborted(t) {
		return false, ErrAborted
	}
	return t.writes.insert(b, nil), nil
}

// RegisterUndo is Register plus a pre-image capture, for bitmap buffers
// whose old content must stay reachable until commit.
func (j *Journal) RegisterUndo(t *Tx, b *buf.Buf) (bool, error) {
	if j.TxAborted(t) {
		return false, ErrAborted
	}
	return t.writes.insert(b, util.CloneByteSlice(b.Data)), nil
}

// Forget drops a from t's write set so a stale buffer (e.g. for a
// deallocated block) is not journaled. Reports whether it was present.
func (j *Journal) Forget(t *Tx, a addr.Addr) bool {
	return t.writes.remove(a.Flatid())
}

// Registered reports whether the object at a is in t's write set.
func (j *Journal) Registered(t *Tx, a addr.Addr) bool {
	return t.writes.lookup(a.Flatid()) != nil
}

// UndoImage returns the pre-image captured by RegisterUndo for a.
func (j *Journal) UndoImage(t *Tx, a addr.Addr) ([]byte, bool) {
	return t.writes.undoImage(a.Flatid())
}

// Abort kills the journal: the running transaction and every handle
// referencing it observe the fault, and nothing further commits. Called
// on a log I/O error.
func (j *Journal) Abort() {
	j.mu.Lock()
	j.aborted = true
	if j.running != nil {
		j.running.aborted = true
	}
	j.cond.Broadcast()
	j.mu.Unlock()
	j.log.Error("journal aborted")
}

// TxAborted reports whether t (or the whole journal) has faulted.
func (j *Journal) TxAborted(t *Tx) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.aborted || t.aborted
}

// Reserved reports t's current credit reservation.
func (j *Journal) Reserved(t *Tx) uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return t.reserved
}

// Read returns the last committed content of block bn.
func (j *Journal) Read(bn common.Bnum) disk.Block {
	return j.d.Read(uint64(bn))
}

// Shutdown commits any running transaction and stops using the disk.
func (j *Journal) Shutdown() {
	_ = j.ForceCommit()
}
