package jbd

import (
	"sort"
	"sync"

	"github.com/summnerx13/ext4-snapshots1/buf"
)

// writeMap is a transaction's write set, keyed by flat object address.
// Handles on different goroutines register buffers against the same
// transaction concurrently, so the map is sharded.

const nShard uint64 = 43

type writeEntry struct {
	b    *buf.Buf
	undo []byte // pre-image, when captured for undo access
}

type writeShard struct {
	mu    *sync.Mutex
	state map[uint64]*writeEntry
}

type writeMap struct {
	shards []*writeShard
}

func mkWriteMap() *writeMap {
	var shards []*writeShard
	for i := uint64(0); i < nShard; i++ {
		shards = append(shards, &writeShard{
			mu:    new(sync.Mutex),
			state: make(map[uint64]*writeEntry),
		})
	}
	return &writeMap{shards: shards}
}

func (wm *writeMap) shard(flatid uint64) *writeShard {
	return wm.shards[flatid%nShard]
}

// insert registers b; reports whether b was not already registered.
func (wm *writeMap) insert(b *buf.Buf, undo []byte) bool {
	s := wm.shard(b.Addr.Flatid())
	s.mu.Lock()
	_, ok := s.state[b.Addr.Flatid()]
	if !ok {
		s.state[b.Addr.Flatid()] = &writeEntry{b: b, undo: undo}
	}
	s.mu.Unlock()
	return !ok
}

func (wm *writeMap) lookup(flatid uint64) *buf.Buf {
	s := wm.shard(flatid)
	s.mu.Lock()
	e, ok := s.state[flatid]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return e.b
}

func (wm *writeMap) undoImage(flatid uint64) ([]byte, bool) {
	s := wm.shard(flatid)
	s.mu.Lock()
	e, ok := s.state[flatid]
	s.mu.Unlock()
	if !ok || e.undo == nil {
		return nil, false
	}
	return e.undo, true
}

// remove drops a registration; reports whether it was present.
func (wm *writeMap) remove(flatid uint64) bool {
	s := wm.shard(flatid)
	s.mu.Lock()
	_, ok := s.state[flatid]
	delete(s.state, flatid)
	s.mu.Unlock()
	return ok
}

// dirtyBufs collects the modified buffers, ordered by address so commit
// layout is deterministic.
func (wm *writeMap) dirtyBufs() []*buf.Buf {
	var bufs []*buf.Buf
	for _, s := range wm.shards {
		s.mu.Lock()
		for _, e := range s.state {
			if e.b.IsDirty() {
				bufs = append(bufs, e.b)
			}
		}
		s.mu.Unlock()
	}
	sort.Slice(bufs, func(i, j int) bool {
		return bufs[i].Addr.Flatid() < bufs[j].Addr.Flatid()
	})
	return bufs
}
