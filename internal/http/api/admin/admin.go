package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/walletbot/ingress/internal/config"
	handlers "github.com/walletbot/ingress/internal/http/api/admin/handlers"
	"github.com/walletbot/ingress/internal/metrics"
	"github.com/walletbot/ingress/internal/security"
	"gorm.io/gorm"
)

// Deps groups what the admin routes need.
type Deps struct {
	DB       *gorm.DB
	Admin    config.AdminConfig
	JWT      config.JWTConfig
	State    handlers.StateAdmin
	Accounts handlers.AccountLookup
	Metrics  *metrics.Metrics
}

// RegisterAdminRoutes registers health, metrics and operator routes.
func RegisterAdminRoutes(r *gin.Engine, deps Deps) {
	if r == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.GET("/healthz", healthHandler.Healthz)
	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	if deps.State == nil || deps.Accounts == nil {
		return
	}

	adminGroup := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(deps.Admin, deps.JWT)
	adminGroup.POST("/login", authHandler.Login)

	authed := adminGroup.Group("")
	authed.Use(adminAuthMiddleware(deps.Admin, deps.JWT))

	userHandler := handlers.NewUserHandler(deps.State, deps.Accounts)
	authed.GET("/users/:external_id/stats", userHandler.Stats)
	authed.DELETE("/users/:external_id/state", userHandler.ClearState)
	authed.GET("/users/:external_id/account", userHandler.Account)
}

// adminAuthMiddleware validates operator JWTs.
func adminAuthMiddleware(admin config.AdminConfig, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "empty token"})
			return
		}

		claims, errJWT := security.ParseAdminToken(token, security.TokenConfig{Secret: jwtCfg.Secret, Expiry: jwtCfg.Expiry})
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if admin.Username == "" || claims.Username != admin.Username {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin not recognised"})
			return
		}

		c.Set("adminUsername", claims.Username)
		c.Next()
	}
}
