package ratelimit

import (
	"context"
	"time"
)

// QuotaTracker enforces fixed-window counters per user and tier.
//
// A fixed window admits up to 2x the limit across a window boundary; this is
// accepted in exchange for O(1) state per window.
type QuotaTracker struct {
	store  StateStore
	limits TierLimits
	nowFn  func() time.Time
}

// NewQuotaTracker constructs a QuotaTracker with default dependencies when nil.
func NewQuotaTracker(store StateStore, limits TierLimits, nowFn func() time.Time) *QuotaTracker {
	if store == nil {
		store = NewMemoryStateStore()
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &QuotaTracker{store: store, limits: limits, nowFn: nowFn}
}

// Limits returns the configured windows of tier.
func (q *QuotaTracker) Limits(tier Tier) []Window {
	return q.limits[tier]
}

// TryConsume consumes one unit of tier for the user if every window allows it.
func (q *QuotaTracker) TryConsume(ctx context.Context, externalID int64, tier Tier) (QuotaResult, error) {
	now := q.nowFn()
	var result QuotaResult
	_, errUpdate := Update(ctx, q.store, externalID, func(state *RateState) {
		state.LastSeen = now
		result = q.Apply(state, tier, now)
	})
	if errUpdate != nil {
		return QuotaResult{}, errUpdate
	}
	return result, nil
}

// Apply checks tier against state and, when allowed, increments every window
// of the tier. It is the in-place step used inside a larger atomic update.
func (q *QuotaTracker) Apply(state *RateState, tier Tier, now time.Time) QuotaResult {
	result := q.Check(state, tier, now)
	if result.Allowed {
		q.Commit(state, tier)
	}
	return result
}

// Check rolls expired windows forward and reports whether one more unit of
// tier fits, without consuming it.
func (q *QuotaTracker) Check(state *RateState, tier Tier, now time.Time) QuotaResult {
	windows := q.limits[tier]
	counters := q.counters(state, tier, now)

	result := QuotaResult{Tier: tier, Allowed: true, Remaining: Unlimited}
	var blockedUntil time.Time
	primarySet := false
	for i, w := range windows {
		if w.Limit <= 0 {
			continue
		}
		c := counters[i]
		if !primarySet {
			result.WindowResetAt = c.ResetAt
			primarySet = true
		}
		if c.Count >= w.Limit {
			result.Allowed = false
			if c.ResetAt.After(blockedUntil) {
				blockedUntil = c.ResetAt
			}
			continue
		}
		left := w.Limit - c.Count - 1
		if result.Remaining == Unlimited || left < result.Remaining {
			result.Remaining = left
		}
	}
	if !result.Allowed {
		result.Remaining = 0
		result.WindowResetAt = blockedUntil
	}
	return result
}

// Commit increments every enabled window of tier. Call only after Check allowed.
func (q *QuotaTracker) Commit(state *RateState, tier Tier) {
	windows := q.limits[tier]
	counters := state.Counters[tier]
	for i, w := range windows {
		if w.Limit <= 0 || i >= len(counters) {
			continue
		}
		counters[i].Count++
	}
}

// counters returns the tier's counters with missing entries initialised and
// expired windows reset to start at now.
func (q *QuotaTracker) counters(state *RateState, tier Tier, now time.Time) []WindowCounter {
	state.ensureMaps()
	windows := q.limits[tier]
	counters := state.Counters[tier]
	if len(counters) != len(windows) {
		resized := make([]WindowCounter, len(windows))
		copy(resized, counters)
		counters = resized
	}
	for i, w := range windows {
		c := &counters[i]
		if c.ResetAt.IsZero() || !now.Before(c.ResetAt) {
			c.Count = 0
			c.ResetAt = now.Add(w.Length)
		}
	}
	state.Counters[tier] = counters
	return counters
}

// Stats returns a read-only view of every tier for the user.
func (q *QuotaTracker) Stats(ctx context.Context, externalID int64) (map[Tier]TierStats, error) {
	state, found, errGet := q.store.Get(ctx, externalID)
	if errGet != nil {
		return nil, errGet
	}
	if !found {
		state = NewRateState()
	}
	now := q.nowFn()

	out := make(map[Tier]TierStats, len(Tiers))
	for _, tier := range Tiers {
		windows := q.limits[tier]
		counters := state.Counters[tier]
		stats := TierStats{Limit: Unlimited, Remaining: Unlimited}
		primarySet := false
		for i, w := range windows {
			ws := WindowStats{Length: w.Length, Limit: w.Limit, Remaining: Unlimited}
			if i < len(counters) && !counters[i].ResetAt.IsZero() && now.Before(counters[i].ResetAt) {
				ws.Count = counters[i].Count
				ws.ResetAt = counters[i].ResetAt
			}
			if w.Limit > 0 {
				ws.Remaining = w.Limit - ws.Count
				if ws.Remaining < 0 {
					ws.Remaining = 0
				}
				if !primarySet {
					stats.Count = ws.Count
					stats.Limit = ws.Limit
					stats.Remaining = ws.Remaining
					primarySet = true
				}
			}
			stats.Windows = append(stats.Windows, ws)
		}
		out[tier] = stats
	}
	return out, nil
}
