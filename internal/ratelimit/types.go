package ratelimit

import (
	"context"
	"time"
)

// Tier is one independent quota category.
type Tier string

const (
	// TierMessage counts every inbound unit.
	TierMessage Tier = "message"
	// TierCommand counts inbound commands.
	TierCommand Tier = "command"
	// TierFinancial counts commands that move funds.
	TierFinancial Tier = "financial"
)

// Tiers lists every tier in admission priority order.
var Tiers = []Tier{TierMessage, TierCommand, TierFinancial}

// Unlimited is reported as Remaining for tiers without a configured limit.
const Unlimited = -1

// Window is one fixed window of a tier. A Limit <= 0 disables the window.
type Window struct {
	Limit  int
	Length time.Duration
}

// TierLimits maps each tier to its windows, shortest first.
type TierLimits map[Tier][]Window

// QuotaResult describes the outcome of one tier step.
type QuotaResult struct {
	Tier      Tier
	Allowed   bool
	Remaining int
	// WindowResetAt is the reset time of the tier's primary window when
	// allowed, and the earliest time the tier can admit again when denied.
	WindowResetAt time.Time
}

// CooldownResult describes the outcome of a cooldown check.
type CooldownResult struct {
	Command   string
	Allowed   bool
	Remaining time.Duration
}

// RemainingMs returns the remaining cooldown in whole milliseconds.
func (r CooldownResult) RemainingMs() int64 {
	return r.Remaining.Milliseconds()
}

// WindowStats is a read-only view of one window counter.
type WindowStats struct {
	Length    time.Duration `json:"length"`
	Count     int           `json:"count"`
	Limit     int           `json:"limit"`
	Remaining int           `json:"remaining"`
	ResetAt   time.Time     `json:"reset_at"`
}

// TierStats is a read-only view of a tier. Count, Limit and Remaining
// describe the primary window; Windows lists every configured window.
type TierStats struct {
	Count     int           `json:"count"`
	Limit     int           `json:"limit"`
	Remaining int           `json:"remaining"`
	Windows   []WindowStats `json:"windows"`
}

// StateStore persists RateState per external id.
//
// CompareAndSwap writes next only when the stored version equals expected
// (zero meaning "absent") and stores it with version expected+1.
// Implementations must be safe for concurrent use.
type StateStore interface {
	Get(ctx context.Context, externalID int64) (RateState, bool, error)
	Put(ctx context.Context, externalID int64, state RateState) error
	CompareAndSwap(ctx context.Context, externalID int64, expected uint64, next RateState) (bool, error)
	Delete(ctx context.Context, externalID int64) error
	// Sweep removes entries whose LastSeen is before idleBefore.
	Sweep(ctx context.Context, idleBefore time.Time) (int, error)
}
