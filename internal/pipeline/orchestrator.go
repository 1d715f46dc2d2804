package pipeline

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/walletbot/ingress/internal/admission"
	"github.com/walletbot/ingress/internal/identity"
	"github.com/walletbot/ingress/internal/metrics"
	"github.com/walletbot/ingress/internal/ratelimit"
	"github.com/walletbot/ingress/internal/session"
)

// Orchestrator runs every inbound unit through admission, identity
// resolution and session refresh before dispatching it.
type Orchestrator struct {
	gate     *admission.Gate
	resolver *identity.Resolver
	sessions session.Store
	handler  Handler
	metrics  *metrics.Metrics
}

// NewOrchestrator constructs an Orchestrator. m may be nil.
func NewOrchestrator(gate *admission.Gate, resolver *identity.Resolver, sessions session.Store, handler Handler, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		gate:     gate,
		resolver: resolver,
		sessions: sessions,
		handler:  handler,
		metrics:  m,
	}
}

// Handle drives one unit to a terminal state. The only returned error is
// ErrInvalidInboundUnit; infrastructure failures become a retry-later reply.
func (o *Orchestrator) Handle(ctx context.Context, unit InboundUnit) (Outcome, error) {
	if unit.ExternalID == 0 {
		o.metrics.ObserveOutcome(metrics.OutcomeInvalid)
		return Outcome{State: StateReceived}, ErrInvalidInboundUnit
	}
	command, args := unit.Command()
	fields := log.Fields{"external_id": unit.ExternalID, "command": command}

	decision, errAdmit := o.gate.Admit(ctx, unit.ExternalID, command, o.gate.IsFinancial(command))
	if errAdmit != nil {
		log.WithError(errAdmit).WithFields(fields).Error("pipeline: admission failed")
		o.metrics.ObserveOutcome(metrics.OutcomeDenied)
		return Outcome{State: StateDenied, Reply: MessageRetryLater}, nil
	}
	if !decision.Allowed {
		denial := *decision.Denial
		log.WithFields(fields).WithFields(log.Fields{
			"reason":      denial.Reason,
			"tier":        denial.Tier,
			"retry_after": denial.RetryAfterSeconds(),
		}).Debug("pipeline: unit denied")
		o.metrics.ObserveOutcome(metrics.OutcomeDenied)
		o.metrics.ObserveDenial(string(denial.Reason), string(denial.Tier))
		return Outcome{State: StateDenied, Reply: DenialMessage(denial), Denial: &denial}, nil
	}

	account, errResolve := o.resolver.ResolveOrCreate(ctx, unit.ExternalID, identity.DisplayHints{
		Username:  unit.Username,
		FirstName: unit.FirstName,
	})
	if errResolve != nil {
		log.WithError(errResolve).WithFields(fields).Error("pipeline: identity resolution failed")
		o.metrics.ObserveOutcome(metrics.OutcomeIdentityFailed)
		return Outcome{State: StateIdentityFailed, Reply: MessageRetryLater}, nil
	}

	sess, errTouch := o.sessions.Touch(ctx, unit.ExternalID, account.InternalID)
	if errTouch != nil {
		log.WithError(errTouch).WithFields(fields).Error("pipeline: session refresh failed")
		o.metrics.ObserveOutcome(metrics.OutcomeIdentityFailed)
		return Outcome{State: StateIdentityFailed, Reply: MessageRetryLater, Account: &account}, nil
	}

	o.metrics.ObserveOutcome(metrics.OutcomeDispatched)
	reply, errHandle := o.handler.Handle(ctx, Request{
		Unit:    unit,
		Command: command,
		Args:    args,
		Account: account,
		Session: sess,
	})
	if errHandle != nil {
		log.WithError(errHandle).WithFields(fields).Error("pipeline: handler failed")
		reply = MessageRetryLater
	}
	return Outcome{State: StateDispatched, Reply: reply, Account: &account}, nil
}

// Stats returns the per-tier counters of a user.
func (o *Orchestrator) Stats(ctx context.Context, externalID int64) (map[ratelimit.Tier]ratelimit.TierStats, error) {
	return o.gate.Stats(ctx, externalID)
}

// ClearState drops the rate state and session of a user. The account is kept.
func (o *Orchestrator) ClearState(ctx context.Context, externalID int64) error {
	errRate := o.gate.Clear(ctx, externalID)
	var errSession error
	if errDelete := o.sessions.Delete(ctx, externalID); errDelete != nil {
		errSession = fmt.Errorf("pipeline: clear session: %w", errDelete)
	}
	return errors.Join(errRate, errSession)
}
