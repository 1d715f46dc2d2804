package ratelimit

import (
	"context"
	"errors"
	"time"
)

const maxUpdateAttempts = 32

// ErrContention is returned when a compare-and-swap update keeps losing races.
var ErrContention = errors.New("ratelimit: state update contention")

// WindowCounter is the fixed-window bookkeeping of one tier window.
type WindowCounter struct {
	Count   int       `json:"count"`
	ResetAt time.Time `json:"reset_at"`
}

// RateState is the per-user admission bookkeeping.
type RateState struct {
	Version   uint64                   `json:"version"`
	Counters  map[Tier][]WindowCounter `json:"counters"`
	Cooldowns map[string]time.Time     `json:"cooldowns"`
	LastSeen  time.Time                `json:"last_seen"`
}

// NewRateState returns an empty state.
func NewRateState() RateState {
	return RateState{
		Counters:  make(map[Tier][]WindowCounter),
		Cooldowns: make(map[string]time.Time),
	}
}

// Clone returns a deep copy.
func (s RateState) Clone() RateState {
	out := RateState{
		Version:   s.Version,
		Counters:  make(map[Tier][]WindowCounter, len(s.Counters)),
		Cooldowns: make(map[string]time.Time, len(s.Cooldowns)),
		LastSeen:  s.LastSeen,
	}
	for tier, counters := range s.Counters {
		out.Counters[tier] = append([]WindowCounter(nil), counters...)
	}
	for cmd, at := range s.Cooldowns {
		out.Cooldowns[cmd] = at
	}
	return out
}

func (s *RateState) ensureMaps() {
	if s.Counters == nil {
		s.Counters = make(map[Tier][]WindowCounter)
	}
	if s.Cooldowns == nil {
		s.Cooldowns = make(map[string]time.Time)
	}
}

// updater is implemented by stores that can run a mutation under their own
// per-key exclusive access instead of a compare-and-swap loop.
type updater interface {
	Update(ctx context.Context, externalID int64, fn func(state *RateState)) (RateState, error)
}

// Update applies fn to the user's state as one linearizable step. fn may run
// more than once and must only touch the state it is given.
func Update(ctx context.Context, store StateStore, externalID int64, fn func(state *RateState)) (RateState, error) {
	if u, ok := store.(updater); ok {
		return u.Update(ctx, externalID, fn)
	}
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		if errCtx := ctx.Err(); errCtx != nil {
			return RateState{}, errCtx
		}
		current, found, errGet := store.Get(ctx, externalID)
		if errGet != nil {
			return RateState{}, errGet
		}
		var expected uint64
		next := NewRateState()
		if found {
			expected = current.Version
			next = current.Clone()
			next.ensureMaps()
		}
		fn(&next)
		swapped, errSwap := store.CompareAndSwap(ctx, externalID, expected, next)
		if errSwap != nil {
			return RateState{}, errSwap
		}
		if swapped {
			next.Version = expected + 1
			return next, nil
		}
	}
	return RateState{}, ErrContention
}
