// Package inbound exposes the messaging transport webhook.
package inbound

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/walletbot/ingress/internal/pipeline"
	"golang.org/x/time/rate"
)

// Dispatcher runs one inbound unit through the pipeline.
type Dispatcher interface {
	Handle(ctx context.Context, unit pipeline.InboundUnit) (pipeline.Outcome, error)
}

// NewIntakeLimiter returns a process-wide limiter, or nil when rps is zero.
func NewIntakeLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// RegisterInboundRoutes registers the webhook. limiter may be nil.
func RegisterInboundRoutes(r *gin.Engine, dispatcher Dispatcher, limiter *rate.Limiter) {
	if r == nil || dispatcher == nil {
		return
	}
	h := &handler{dispatcher: dispatcher, now: time.Now}
	r.POST("/v0/inbound", intakeMiddleware(limiter), h.Receive)
}

// intakeMiddleware sheds load before any per-user state is touched.
func intakeMiddleware(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter != nil && !limiter.Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "ingress busy"})
			return
		}
		c.Next()
	}
}

type handler struct {
	dispatcher Dispatcher
	now        func() time.Time
}

// Receive accepts one inbound unit and returns the reply for the user.
func (h *handler) Receive(c *gin.Context) {
	var unit pipeline.InboundUnit
	if errBind := c.ShouldBindJSON(&unit); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if unit.Timestamp.IsZero() {
		unit.Timestamp = h.now().UTC()
	}

	outcome, errHandle := h.dispatcher.Handle(c.Request.Context(), unit)
	if errHandle != nil {
		if errors.Is(errHandle, pipeline.ErrInvalidInboundUnit) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing external_id"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	resp := gin.H{
		"state": outcome.State,
		"reply": outcome.Reply,
	}
	if outcome.Denial != nil {
		resp["reason"] = outcome.Denial.Reason
		resp["retry_after_seconds"] = outcome.Denial.RetryAfterSeconds()
		if outcome.Denial.Tier != "" {
			resp["tier"] = outcome.Denial.Tier
		}
		if outcome.Denial.Command != "" {
			resp["command"] = outcome.Denial.Command
		}
	}
	c.JSON(http.StatusOK, resp)
}
