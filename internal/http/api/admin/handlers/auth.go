package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/walletbot/ingress/internal/config"
	"github.com/walletbot/ingress/internal/security"
)

// AuthHandler handles operator login.
type AuthHandler struct {
	admin  config.AdminConfig
	jwtCfg config.JWTConfig
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(admin config.AdminConfig, jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{admin: admin, jwtCfg: jwtCfg}
}

// loginRequest defines the request body for admin login.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login checks the operator credentials and returns a bearer token.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	username := strings.TrimSpace(body.Username)
	if username == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing credentials"})
		return
	}
	if h.admin.Username == "" || username != h.admin.Username || !security.CheckPassword(h.admin.PasswordHash, body.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, errIssue := security.IssueAdminToken(username, security.TokenConfig{
		Secret: h.jwtCfg.Secret,
		Expiry: h.jwtCfg.Expiry,
	})
	if errIssue != nil {
		log.WithError(errIssue).Error("admin login: issue token failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": time.Now().Add(h.jwtCfg.Expiry).UTC(),
	})
}
