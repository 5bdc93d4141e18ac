package fstxn

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/summnerx13/ext4-snapshots1/credits"
	"github.com/summnerx13/ext4-snapshots1/jbd"
)

// Manager starts, grows, and stops journal handles for one mounted
// volume, translating caller-requested operation counts into raw buffer
// credits per the volume's configuration.
type Manager struct {
	jrnl *jbd.Journal // nil when the volume has no journal
	cfg  credits.Config
	log  *zap.Logger
}

// NewManager wires a volume's credit configuration to its journal. A nil
// journal means the volume is mounted without a log: Start then returns
// the no-journal sentinel and everything degrades to no-ops.
func NewManager(j *jbd.Journal, cfg credits.Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		jrnl: j,
		cfg:  cfg,
		log:  logger,
	}
}

// Config returns the volume's immutable credit configuration.
func (m *Manager) Config() credits.Config {
	return m.cfg
}

// Start opens a handle covering n user metadata operations. When
// snapshots are enabled the journal reservation is inflated to also
// cover the worst-case copy-on-write work, with extra headroom for a COW
// at the commit boundary. Start blocks while the journal is out of free
// space until older transactions commit.
func (m *Manager) Start(n uint64) (*Handle, error) {
	if m.jrnl == nil {
		return NoJournalHandle(), nil
	}
	blocks := m.cfg.StartTransBlocks(n)
	tx, err := m.jrnl.Begin(blocks)
	if err != nil {
		return nil, fmt.Errorf("start transaction: %w", err)
	}
	startsTotal.Inc()
	creditsReservedTotal.Add(float64(blocks))
	m.log.Debug("journal handle",
		zap.String("op", "start"),
		zap.Uint64("tid", tx.Id),
		zap.Uint64("nblocks", n),
		zap.Uint64("credits", blocks))
	return &Handle{
		mgr:           m,
		tx:            tx,
		bufferCredits: blocks,
		baseCredits:   n,
		userCredits:   n,
	}, nil
}

// Extend grows h's reservation in place by n user operations, keeping
// the transaction open (no commit is forced). With snapshots enabled the
// journal is asked for exactly the delta between the recomputed total
// and the credits already in hand, so repeated extends never compound
// the inflation. Fails with ErrNoSpace when the journal cannot grow the
// reservation; the caller falls back to Restart.
func (h *Handle) Extend(n uint64) error {
	if !h.Valid() {
		return nil
	}
	m := h.mgr
	if h.Aborted() {
		return ErrAborted
	}
	var delta uint64
	if m.cfg.Snapshots {
		want := credits.SnapshotTransBlocks(h.userCredits + n)
		if want > h.bufferCredits {
			delta = want - h.bufferCredits
		}
	} else {
		delta = n
	}
	if delta > 0 {
		if err := m.jrnl.Extend(h.tx, delta); err != nil {
			extendsTotal.WithLabelValues("full").Inc()
			return fmt.Errorf("extend transaction %d: %w", h.tx.Id, err)
		}
		creditsReservedTotal.Add(float64(delta))
	}
	h.bufferCredits += delta
	h.baseCredits += n
	h.userCredits += n
	extendsTotal.WithLabelValues("ok").Inc()
	m.log.Debug("journal handle",
		zap.String("op", "extend"),
		zap.Uint64("tid", h.tx.Id),
		zap.Uint64("nblocks", n),
		zap.Uint64("credits", delta))
	return nil
}

// Restart commits the current transaction and opens a brand-new one
// sized for n user operations. Buffer access grants do not survive: the
// caller must re-acquire write access to any buffer it still holds.
func (h *Handle) Restart(n uint64) error {
	if !h.Valid() {
		return nil
	}
	m := h.mgr
	if h.Aborted() {
		return ErrAborted
	}
	blocks := m.cfg.StartTransBlocks(n)
	tx, err := m.jrnl.Restart(h.tx, h.bufferCredits, blocks)
	if err != nil {
		h.tx = nil
		return fmt.Errorf("restart transaction: %w", err)
	}
	restartsTotal.Inc()
	creditsReservedTotal.Add(float64(blocks))
	m.log.Debug("journal handle",
		zap.String("op", "restart"),
		zap.Uint64("tid", tx.Id),
		zap.Uint64("nblocks", n),
		zap.Uint64("credits", blocks))
	h.tx = tx
	h.bufferCredits = blocks
	h.baseCredits = n
	h.userCredits = n
	return nil
}

// Stop releases the handle. If other handles still reference the
// transaction, or no sync was requested, the transaction stays open for
// batching; otherwise it commits. Stopping an aborted handle still
// releases its resources without error. The handle is dead afterward.
func (h *Handle) Stop() error {
	if !h.Valid() {
		return nil
	}
	m := h.mgr
	err := m.jrnl.Close(h.tx, h.bufferCredits, h.sync)
	stopsTotal.Inc()
	if h.Aborted() {
		abortsTotal.Inc()
	}
	m.log.Debug("journal handle",
		zap.String("op", "stop"),
		zap.Uint64("tid", h.tx.Id),
		zap.Bool("sync", h.sync))
	h.tx = nil
	h.bufferCredits = 0
	if err != nil && !errors.Is(err, jbd.ErrAborted) {
		return err
	}
	return nil
}

// HasEnoughCredits reports whether h can cover needed more operations
// without extending. Operation code calls this before a multi-step
// update so it can extend or restart up front instead of discovering a
// shortfall with buffers half modified.
func (h *Handle) HasEnoughCredits(needed uint64) bool {
	if !h.Valid() {
		return true
	}
	if h.mgr.cfg.Snapshots {
		return h.bufferCredits >= credits.SnapshotTransBlocks(needed) &&
			h.userCredits >= needed
	}
	return h.bufferCredits >= needed
}

// ForceCommit commits the volume's running transaction, if any.
func (m *Manager) ForceCommit() error {
	if m.jrnl == nil {
		return nil
	}
	return m.jrnl.ForceCommit()
}
