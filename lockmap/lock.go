// lockmap is a sharded lock map, used as the per-buffer lock the
// transaction layer assumes its callers hold.
//
// The API behaves as if LockMap held a lock for every possible uint64
// address: Acquire(a) locks address a and Release(a) unlocks it. The
// implementation keeps a fixed set of shards, with shard i responsible
// for every a such that a % nshard == i, and allocates lock state only
// while an address is held or contended.
package lockmap

import (
	"sync"
)

const nshard uint64 = 43

type lockState struct {
	held    bool
	cond    *sync.Cond
	waiters uint64
}

type lockShard struct {
	mu    *sync.Mutex
	state map[uint64]*lockState
}

func mkLockShard() *lockShard {
	return &lockShard{
		mu:    new(sync.Mutex),
		state: make(map[uint64]*lockState),
	}
}

func (s *lockShard) acquire(a uint64) {
	s.mu.Lock()
	for {
		st, ok := s.state[a]
		if !ok {
			st = &lockState{
				held: false,
				cond: sync.NewCond(s.mu),
			}
			s.state[a] = st
		}
		if !st.held {
			st.held = true
			break
		}
		st.waiters++
		st.cond.Wait()
		// the state may have been dropped while we slept
		if st2, ok := s.state[a]; ok {
			st2.waiters--
		}
	}
	s.mu.Unlock()
}

func (s *lockShard) release(a uint64) {
	s.mu.Lock()
	st := s.state[a]
	st.held = false
	if st.waiters > 0 {
		st.cond.Signal()
	} else {
		delete(s.state, a)
	}
	s.mu.Unlock()
}

type LockMap struct {
	shards []*lockShard
}

func MkLockMap() *LockMap {
	var shards []*lockShard
	for i := uint64(0); i < nshard; i++ {
		shards = append(shards, mkLockShard())
	}
	return &LockMap{shards: shards}
}

func (lm *LockMap) Acquire(flataddr uint64) {
	lm.shards[flataddr%nshard].acquire(flataddr)
}

func (lm *LockMap) Release(flataddr uint64) {
	lm.shards[flataddr%nshard].release(flataddr)
}
