package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/walletbot/ingress/internal/ratelimit"
)

// Gate composes quota tiers and command cooldowns into one decision.
type Gate struct {
	store     ratelimit.StateStore
	quotas    *ratelimit.QuotaTracker
	cooldowns *ratelimit.CooldownRegistry
	financial map[string]struct{}
	nowFn     func() time.Time
}

// Options configures a Gate.
type Options struct {
	Limits            ratelimit.TierLimits
	Cooldowns         map[string]time.Duration
	FinancialCommands []string
}

// NewGate constructs a Gate over store. A nil store selects process memory.
func NewGate(store ratelimit.StateStore, opts Options, nowFn func() time.Time) *Gate {
	if store == nil {
		store = ratelimit.NewMemoryStateStore()
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	financial := make(map[string]struct{}, len(opts.FinancialCommands))
	for _, cmd := range opts.FinancialCommands {
		if normalized := ratelimit.NormalizeCommand(cmd); normalized != "" {
			financial[normalized] = struct{}{}
		}
	}
	return &Gate{
		store:     store,
		quotas:    ratelimit.NewQuotaTracker(store, opts.Limits, nowFn),
		cooldowns: ratelimit.NewCooldownRegistry(store, opts.Cooldowns, nowFn),
		financial: financial,
		nowFn:     nowFn,
	}
}

// IsFinancial reports whether command belongs to the financial set.
func (g *Gate) IsFinancial(command string) bool {
	_, ok := g.financial[ratelimit.NormalizeCommand(command)]
	return ok
}

// Admit decides one inbound unit. command is empty for plain messages.
//
// Tiers are evaluated message, command, financial, then the cooldown; the
// first failing check is reported. Message and command units consumed before
// a denial are kept. The financial unit is charged only once the cooldown
// also passes, so a refused financial action never spends a financial slot.
func (g *Gate) Admit(ctx context.Context, externalID int64, command string, isFinancial bool) (Result, error) {
	command = ratelimit.NormalizeCommand(command)
	isCommand := command != "" || isFinancial
	now := g.nowFn()

	var result Result
	_, errUpdate := ratelimit.Update(ctx, g.store, externalID, func(state *ratelimit.RateState) {
		result = g.apply(state, command, isCommand, isFinancial, now)
	})
	if errUpdate != nil {
		return Result{}, fmt.Errorf("admission: update rate state: %w", errUpdate)
	}
	return result, nil
}

func (g *Gate) apply(state *ratelimit.RateState, command string, isCommand, isFinancial bool, now time.Time) Result {
	state.LastSeen = now
	result := Result{Allowed: true}

	steps := []ratelimit.Tier{ratelimit.TierMessage}
	if isCommand {
		steps = append(steps, ratelimit.TierCommand)
	}
	if isFinancial {
		steps = append(steps, ratelimit.TierFinancial)
	}

	for _, tier := range steps {
		quota := g.quotas.Check(state, tier, now)
		if !quota.Allowed {
			result.Allowed = false
			result.Denial = &Denial{
				Reason:     ReasonRateLimitExceeded,
				Tier:       tier,
				Command:    command,
				RetryAfter: quota.WindowResetAt.Sub(now),
			}
			return result
		}
		if tier == ratelimit.TierFinancial {
			continue
		}
		g.quotas.Commit(state, tier)
		result.Consumed = append(result.Consumed, tier)
	}

	if command != "" {
		cooldown := g.cooldowns.Apply(state, command, now)
		if !cooldown.Allowed {
			result.Allowed = false
			result.Denial = &Denial{
				Reason:     ReasonCooldownActive,
				Command:    command,
				RetryAfter: cooldown.Remaining,
			}
			return result
		}
	}

	if isFinancial {
		g.quotas.Commit(state, ratelimit.TierFinancial)
		result.Consumed = append(result.Consumed, ratelimit.TierFinancial)
	}
	return result
}

// Stats returns the read-only per-tier view for a user.
func (g *Gate) Stats(ctx context.Context, externalID int64) (map[ratelimit.Tier]ratelimit.TierStats, error) {
	stats, errStats := g.quotas.Stats(ctx, externalID)
	if errStats != nil {
		return nil, fmt.Errorf("admission: stats: %w", errStats)
	}
	return stats, nil
}

// Clear drops all rate state of a user.
func (g *Gate) Clear(ctx context.Context, externalID int64) error {
	if errDelete := g.store.Delete(ctx, externalID); errDelete != nil {
		return fmt.Errorf("admission: clear rate state: %w", errDelete)
	}
	return nil
}

// Sweep drops rate state idle since before idleBefore.
func (g *Gate) Sweep(ctx context.Context, idleBefore time.Time) (int, error) {
	removed, errSweep := g.store.Sweep(ctx, idleBefore)
	if errSweep != nil {
		return removed, fmt.Errorf("admission: sweep rate state: %w", errSweep)
	}
	return removed, nil
}
