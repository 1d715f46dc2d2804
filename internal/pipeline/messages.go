package pipeline

import (
	"fmt"

	"github.com/walletbot/ingress/internal/admission"
	"github.com/walletbot/ingress/internal/ratelimit"
)

// User-facing texts.
const (
	MessageRetryLater     = "Something went wrong on our side. Please try again later."
	MessageUnknownCommand = "Unknown command. Send /help to see what I can do."
)

var tierNames = map[ratelimit.Tier]string{
	ratelimit.TierMessage:   "messages",
	ratelimit.TierCommand:   "commands",
	ratelimit.TierFinancial: "financial operations",
}

// DenialMessage renders a denial for the end user, always with a wait time.
func DenialMessage(d admission.Denial) string {
	secs := d.RetryAfterSeconds()
	switch d.Reason {
	case admission.ReasonCooldownActive:
		return fmt.Sprintf("%s is cooling down. Please wait %d seconds before using it again.", d.Command, secs)
	default:
		name := tierNames[d.Tier]
		if name == "" {
			name = "requests"
		}
		return fmt.Sprintf("Too many %s. Please wait %d seconds and try again.", name, secs)
	}
}
