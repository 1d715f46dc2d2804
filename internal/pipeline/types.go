// Package pipeline sequences admission, identity resolution and session
// refresh ahead of handler dispatch for every inbound unit.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/walletbot/ingress/internal/admission"
	"github.com/walletbot/ingress/internal/models"
	"github.com/walletbot/ingress/internal/ratelimit"
)

// ErrInvalidInboundUnit rejects units without an external id.
var ErrInvalidInboundUnit = errors.New("pipeline: invalid inbound unit")

// InboundUnit is one message delivered by the messaging transport.
type InboundUnit struct {
	ExternalID  int64     `json:"external_id"`
	Text        string    `json:"text"`
	IsCommand   bool      `json:"is_command"`
	CommandName string    `json:"command_name,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Username    string    `json:"username,omitempty"`
	FirstName   string    `json:"first_name,omitempty"`
}

// Command returns the normalised command name and its arguments. The name
// is taken from CommandName when the transport set it, otherwise parsed from
// the text.
func (u InboundUnit) Command() (string, string) {
	name, args := ParseCommand(u.Text)
	explicit := ratelimit.NormalizeCommand(u.CommandName)
	if explicit == "" && name == "" && u.IsCommand {
		head, rest, _ := strings.Cut(strings.TrimSpace(u.Text), " ")
		return ratelimit.NormalizeCommand(head), strings.TrimSpace(rest)
	}
	if explicit == "" {
		return name, args
	}
	if name == "" {
		return explicit, strings.TrimSpace(u.Text)
	}
	return explicit, args
}

// ParseCommand splits "/name@bot args" into "/name" and "args". Text that is
// not a command yields empty strings.
func ParseCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	head, args, _ := strings.Cut(text, " ")
	if at := strings.IndexByte(head, '@'); at >= 0 {
		head = head[:at]
	}
	if head == "/" {
		return "", ""
	}
	return ratelimit.NormalizeCommand(head), strings.TrimSpace(args)
}

// State is a step of the per-unit state machine.
type State string

const (
	StateReceived         State = "RECEIVED"
	StateAdmitted         State = "ADMITTED"
	StateDenied           State = "DENIED"
	StateIdentityResolved State = "IDENTITY_RESOLVED"
	StateIdentityFailed   State = "IDENTITY_FAILED"
	StateSessionReady     State = "SESSION_READY"
	StateDispatched       State = "DISPATCHED"
)

// Outcome is the terminal result of one unit.
type Outcome struct {
	State State
	// Reply is the user-facing text; empty when the handler had nothing to say.
	Reply   string
	Denial  *admission.Denial
	Account *models.Account
}

// Request is what a handler receives once a unit reached DISPATCHED.
type Request struct {
	Unit    InboundUnit
	Command string
	Args    string
	Account models.Account
	Session models.Session
}

// Handler runs a dispatched unit and returns the reply.
type Handler interface {
	Handle(ctx context.Context, req Request) (string, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req Request) (string, error)

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
