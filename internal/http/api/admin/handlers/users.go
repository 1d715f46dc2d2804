package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/walletbot/ingress/internal/models"
	"github.com/walletbot/ingress/internal/ratelimit"
)

// StateAdmin exposes per-user volatile state to operators.
type StateAdmin interface {
	Stats(ctx context.Context, externalID int64) (map[ratelimit.Tier]ratelimit.TierStats, error)
	ClearState(ctx context.Context, externalID int64) error
}

// AccountLookup reads accounts without provisioning them.
type AccountLookup interface {
	Lookup(ctx context.Context, externalID int64) (models.Account, bool, error)
}

// UserHandler handles per-user admin endpoints.
type UserHandler struct {
	state    StateAdmin
	accounts AccountLookup
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(state StateAdmin, accounts AccountLookup) *UserHandler {
	return &UserHandler{state: state, accounts: accounts}
}

func parseExternalID(c *gin.Context) (int64, bool) {
	id, errParse := strconv.ParseInt(strings.TrimSpace(c.Param("external_id")), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid external_id"})
		return 0, false
	}
	return id, true
}

// Stats returns the per-tier counters of a user.
func (h *UserHandler) Stats(c *gin.Context) {
	id, ok := parseExternalID(c)
	if !ok {
		return
	}
	stats, errStats := h.state.Stats(c.Request.Context(), id)
	if errStats != nil {
		log.WithError(errStats).WithField("external_id", id).Error("admin: load stats failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	tiers := make(gin.H, len(stats))
	for tier, s := range stats {
		tiers[string(tier)] = s
	}
	c.JSON(http.StatusOK, gin.H{"external_id": id, "tiers": tiers})
}

// ClearState drops the rate state and session of a user.
func (h *UserHandler) ClearState(c *gin.Context) {
	id, ok := parseExternalID(c)
	if !ok {
		return
	}
	if errClear := h.state.ClearState(c.Request.Context(), id); errClear != nil {
		log.WithError(errClear).WithField("external_id", id).Error("admin: clear state failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "clear failed"})
		return
	}
	log.WithFields(log.Fields{
		"external_id": id,
		"admin":       c.GetString("adminUsername"),
	}).Info("admin: cleared user state")
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Account returns the provisioned account of a user.
func (h *UserHandler) Account(c *gin.Context) {
	id, ok := parseExternalID(c)
	if !ok {
		return
	}
	acc, found, errFind := h.accounts.Lookup(c.Request.Context(), id)
	if errFind != nil {
		log.WithError(errFind).WithField("external_id", id).Error("admin: load account failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"external_id":     acc.ExternalID,
		"internal_id":     acc.InternalID,
		"account_number":  acc.AccountNumber,
		"username":        acc.Username,
		"derived_address": acc.DerivedAddress,
		"active":          acc.Active,
		"created_at":      acc.CreatedAt,
		"last_seen":       acc.LastSeen,
	})
}
