package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testLimits() TierLimits {
	return TierLimits{
		TierMessage:   {{Limit: 30, Length: time.Minute}, {Limit: 300, Length: time.Hour}},
		TierCommand:   {{Limit: 10, Length: time.Minute}},
		TierFinancial: {{Limit: 3, Length: time.Minute}},
	}
}

func TestQuotaTrackerDeniesAfterLimit(t *testing.T) {
	clock := newTestClock()
	tracker := NewQuotaTracker(NewMemoryStateStore(), testLimits(), clock.Now)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := tracker.TryConsume(ctx, 7, TierFinancial)
		if err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
		if !res.Allowed {
			t.Fatalf("expected unit %d allowed", i)
		}
		if res.Remaining != 3-i {
			t.Fatalf("expected remaining=%d, got %d", 3-i, res.Remaining)
		}
	}

	res, err := tracker.TryConsume(ctx, 7, TierFinancial)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if res.Allowed {
		t.Fatalf("expected 4th unit denied")
	}
	if res.Remaining != 0 {
		t.Fatalf("expected remaining=0, got %d", res.Remaining)
	}
	want := clock.Now().Add(time.Minute)
	if !res.WindowResetAt.Equal(want) {
		t.Fatalf("expected reset at %s, got %s", want, res.WindowResetAt)
	}

	stats, err := tracker.Stats(ctx, 7)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats[TierFinancial].Count != 3 {
		t.Fatalf("expected count=3, got %d", stats[TierFinancial].Count)
	}
}

func TestQuotaTrackerWindowReset(t *testing.T) {
	clock := newTestClock()
	tracker := NewQuotaTracker(NewMemoryStateStore(), testLimits(), clock.Now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := tracker.TryConsume(ctx, 1, TierFinancial); err != nil {
			t.Fatalf("consume: %v", err)
		}
	}

	// Idle for several windows: the next window starts at the admission instant.
	clock.Advance(5*time.Minute + 17*time.Second)
	res, err := tracker.TryConsume(ctx, 1, TierFinancial)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if !res.Allowed {
		t.Fatalf("expected unit allowed after window reset")
	}
	want := clock.Now().Add(time.Minute)
	if !res.WindowResetAt.Equal(want) {
		t.Fatalf("expected reset at %s, got %s", want, res.WindowResetAt)
	}

	stats, err := tracker.Stats(ctx, 1)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats[TierFinancial].Count != 1 {
		t.Fatalf("expected count=1 after reset, got %d", stats[TierFinancial].Count)
	}
}

func TestQuotaTrackerLongWindowBlocks(t *testing.T) {
	clock := newTestClock()
	limits := TierLimits{
		TierMessage: {{Limit: 2, Length: time.Minute}, {Limit: 3, Length: time.Hour}},
	}
	tracker := NewQuotaTracker(NewMemoryStateStore(), limits, clock.Now)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if res, _ := tracker.TryConsume(ctx, 1, TierMessage); !res.Allowed {
			t.Fatalf("expected unit %d allowed", i)
		}
	}
	clock.Advance(time.Minute)
	if res, _ := tracker.TryConsume(ctx, 1, TierMessage); !res.Allowed {
		t.Fatalf("expected third unit allowed in new minute")
	}
	res, _ := tracker.TryConsume(ctx, 1, TierMessage)
	if res.Allowed {
		t.Fatalf("expected hourly window to deny the fourth unit")
	}
	hourEnd := newTestClock().Now().Add(time.Hour)
	if !res.WindowResetAt.Equal(hourEnd) {
		t.Fatalf("expected retry at hour end %s, got %s", hourEnd, res.WindowResetAt)
	}

	stats, _ := tracker.Stats(ctx, 1)
	if stats[TierMessage].Count != 1 {
		t.Fatalf("expected minute count=1, got %d", stats[TierMessage].Count)
	}
	if len(stats[TierMessage].Windows) != 2 || stats[TierMessage].Windows[1].Count != 3 {
		t.Fatalf("expected hourly count=3, got %+v", stats[TierMessage].Windows)
	}
}

func TestQuotaTrackerUnlimitedTier(t *testing.T) {
	tracker := NewQuotaTracker(nil, TierLimits{}, nil)
	for i := 0; i < 100; i++ {
		res, err := tracker.TryConsume(context.Background(), 1, TierCommand)
		if err != nil {
			t.Fatalf("consume: %v", err)
		}
		if !res.Allowed || res.Remaining != Unlimited {
			t.Fatalf("expected unlimited allow, got %+v", res)
		}
	}
}

func TestQuotaTrackerConcurrentSameUser(t *testing.T) {
	clock := newTestClock()
	tracker := NewQuotaTracker(NewMemoryStateStore(), testLimits(), clock.Now)
	ctx := context.Background()

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := tracker.TryConsume(ctx, 99, TierCommand)
			if err != nil {
				t.Errorf("consume: %v", err)
				return
			}
			if res.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != 10 {
		t.Fatalf("expected exactly 10 admitted units, got %d", got)
	}
}

func TestQuotaTrackerStatsForUnknownUser(t *testing.T) {
	tracker := NewQuotaTracker(NewMemoryStateStore(), testLimits(), newTestClock().Now)
	stats, err := tracker.Stats(context.Background(), 12345)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	cmd := stats[TierCommand]
	if cmd.Count != 0 || cmd.Limit != 10 || cmd.Remaining != 10 {
		t.Fatalf("unexpected command stats: %+v", cmd)
	}
}
