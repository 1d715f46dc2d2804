package ratelimit

import (
	"context"
	"sync"
	"time"
)

const memoryShardCount = 64

type memoryShard struct {
	mu     sync.Mutex
	states map[int64]*RateState
}

// MemoryStateStore keeps RateState in process memory, lock-striped by
// external id so unrelated users rarely contend.
type MemoryStateStore struct {
	shards [memoryShardCount]memoryShard
}

// NewMemoryStateStore constructs a MemoryStateStore.
func NewMemoryStateStore() *MemoryStateStore {
	s := &MemoryStateStore{}
	for i := range s.shards {
		s.shards[i].states = make(map[int64]*RateState)
	}
	return s
}

func (s *MemoryStateStore) shard(externalID int64) *memoryShard {
	idx := uint64(externalID) % memoryShardCount
	return &s.shards[idx]
}

// Get returns a copy of the stored state.
func (s *MemoryStateStore) Get(_ context.Context, externalID int64) (RateState, bool, error) {
	sh := s.shard(externalID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	entry := sh.states[externalID]
	if entry == nil {
		return RateState{}, false, nil
	}
	return entry.Clone(), true, nil
}

// Put stores state unconditionally, bumping its version.
func (s *MemoryStateStore) Put(_ context.Context, externalID int64, state RateState) error {
	sh := s.shard(externalID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	next := state.Clone()
	if entry := sh.states[externalID]; entry != nil {
		next.Version = entry.Version + 1
	} else {
		next.Version = 1
	}
	sh.states[externalID] = &next
	return nil
}

// CompareAndSwap implements StateStore.
func (s *MemoryStateStore) CompareAndSwap(_ context.Context, externalID int64, expected uint64, next RateState) (bool, error) {
	sh := s.shard(externalID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	entry := sh.states[externalID]
	switch {
	case entry == nil && expected != 0:
		return false, nil
	case entry != nil && entry.Version != expected:
		return false, nil
	}
	stored := next.Clone()
	stored.Version = expected + 1
	sh.states[externalID] = &stored
	return true, nil
}

// Update runs fn under the shard lock; it never retries.
func (s *MemoryStateStore) Update(_ context.Context, externalID int64, fn func(state *RateState)) (RateState, error) {
	sh := s.shard(externalID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	entry := sh.states[externalID]
	if entry == nil {
		fresh := NewRateState()
		entry = &fresh
		sh.states[externalID] = entry
	}
	entry.ensureMaps()
	fn(entry)
	entry.Version++
	return entry.Clone(), nil
}

// Delete removes the state of one user.
func (s *MemoryStateStore) Delete(_ context.Context, externalID int64) error {
	sh := s.shard(externalID)
	sh.mu.Lock()
	delete(sh.states, externalID)
	sh.mu.Unlock()
	return nil
}

// Sweep removes states idle since before idleBefore.
func (s *MemoryStateStore) Sweep(_ context.Context, idleBefore time.Time) (int, error) {
	removed := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for id, entry := range sh.states {
			if entry.LastSeen.Before(idleBefore) {
				delete(sh.states, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed, nil
}

// Len returns the number of tracked users.
func (s *MemoryStateStore) Len() int {
	total := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		total += len(sh.states)
		sh.mu.Unlock()
	}
	return total
}
