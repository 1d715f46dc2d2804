package admission

import (
	"math"
	"time"

	"github.com/walletbot/ingress/internal/ratelimit"
)

// Reason classifies a denial.
type Reason string

const (
	// ReasonRateLimitExceeded reports an exhausted quota tier.
	ReasonRateLimitExceeded Reason = "RATE_LIMIT_EXCEEDED"
	// ReasonCooldownActive reports a command used again too soon.
	ReasonCooldownActive Reason = "COOLDOWN_ACTIVE"
)

// Denial is the structured reason a unit was refused. It is a value, not an
// error: denials are expected control flow.
type Denial struct {
	Reason     Reason
	Tier       ratelimit.Tier
	Command    string
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds the wait up to whole seconds, never below one.
func (d Denial) RetryAfterSeconds() int64 {
	secs := int64(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Result is the outcome of Gate.Admit.
type Result struct {
	Allowed bool
	Denial  *Denial
	// Consumed lists the tiers charged by this call, including on denial.
	Consumed []ratelimit.Tier
}
