package ratelimit

import (
	"context"
	"strings"
	"time"
)

// CooldownRegistry enforces a minimum interval between two uses of the same
// command by the same user.
type CooldownRegistry struct {
	store     StateStore
	cooldowns map[string]time.Duration
	nowFn     func() time.Time
}

// NewCooldownRegistry constructs a CooldownRegistry. Command names are matched
// case-insensitively.
func NewCooldownRegistry(store StateStore, cooldowns map[string]time.Duration, nowFn func() time.Time) *CooldownRegistry {
	if store == nil {
		store = NewMemoryStateStore()
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	normalized := make(map[string]time.Duration, len(cooldowns))
	for cmd, d := range cooldowns {
		if d <= 0 {
			continue
		}
		normalized[NormalizeCommand(cmd)] = d
	}
	return &CooldownRegistry{store: store, cooldowns: normalized, nowFn: nowFn}
}

// NormalizeCommand lower-cases a command name and ensures the leading slash.
func NormalizeCommand(command string) string {
	command = strings.ToLower(strings.TrimSpace(command))
	if command == "" {
		return ""
	}
	if !strings.HasPrefix(command, "/") {
		command = "/" + command
	}
	return command
}

// Cooldown returns the configured cooldown for command.
func (r *CooldownRegistry) Cooldown(command string) (time.Duration, bool) {
	d, ok := r.cooldowns[NormalizeCommand(command)]
	return d, ok
}

// TryUse records a use of command when its cooldown has elapsed.
func (r *CooldownRegistry) TryUse(ctx context.Context, externalID int64, command string) (CooldownResult, error) {
	command = NormalizeCommand(command)
	if _, ok := r.cooldowns[command]; !ok {
		return CooldownResult{Command: command, Allowed: true}, nil
	}
	now := r.nowFn()
	var result CooldownResult
	_, errUpdate := Update(ctx, r.store, externalID, func(state *RateState) {
		state.LastSeen = now
		result = r.Apply(state, command, now)
	})
	if errUpdate != nil {
		return CooldownResult{}, errUpdate
	}
	return result, nil
}

// Apply is the in-place cooldown step used inside a larger atomic update.
// Commands without a cooldown are allowed and leave no timestamp.
func (r *CooldownRegistry) Apply(state *RateState, command string, now time.Time) CooldownResult {
	command = NormalizeCommand(command)
	cooldown, ok := r.cooldowns[command]
	if !ok {
		return CooldownResult{Command: command, Allowed: true}
	}
	state.ensureMaps()
	if last, used := state.Cooldowns[command]; used {
		elapsed := now.Sub(last)
		if elapsed < cooldown {
			return CooldownResult{Command: command, Allowed: false, Remaining: cooldown - elapsed}
		}
	}
	state.Cooldowns[command] = now
	return CooldownResult{Command: command, Allowed: true}
}
