// Package api registers the public HTTP surface and its auth middleware.
package api

import (
	"net/http"
	"strings"

	"github.com/fixyhq/fixy/internal/config"
	"github.com/fixyhq/fixy/internal/entitlement"
	"github.com/fixyhq/fixy/internal/http/api/handlers"
	"github.com/fixyhq/fixy/internal/ledger"
	"github.com/fixyhq/fixy/internal/models"
	"github.com/fixyhq/fixy/internal/orchestrator"
	"github.com/fixyhq/fixy/internal/ratelimit"
	"github.com/fixyhq/fixy/internal/realtime"
	"github.com/fixyhq/fixy/internal/security"
	"github.com/fixyhq/fixy/internal/vault"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps bundles the collaborators the HTTP layer needs.
type Deps struct {
	DB           *gorm.DB
	JWT          config.JWTConfig
	Ledger       *ledger.Ledger
	Vault        *vault.Vault
	Evaluator    *entitlement.Evaluator
	Orchestrator *orchestrator.Orchestrator
	Publisher    realtime.Publisher
	Hub          *realtime.Hub
	Limiter      *ratelimit.Manager
	RateLimit    int
}

// RegisterRoutes registers routes, middleware, and handlers.
func RegisterRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.GET("/healthz", healthHandler.Healthz)

	v1 := r.Group("/v1")

	authHandler := handlers.NewAuthHandler(deps.DB, deps.Ledger, deps.JWT)
	v1.POST("/auth/register", authHandler.Register)
	v1.POST("/auth/login", authHandler.Login)

	authed := v1.Group("")
	authed.Use(authMiddleware(deps.DB, deps.JWT))

	authed.GET("/auth/me", authHandler.Me)

	chatroomHandler := handlers.NewChatroomHandler(deps.DB)
	authed.POST("/chatrooms", chatroomHandler.Create)
	authed.GET("/chatrooms", chatroomHandler.List)
	authed.GET("/chatrooms/:id", chatroomHandler.Get)
	authed.DELETE("/chatrooms/:id", chatroomHandler.Delete)
	authed.POST("/chatrooms/:id/participants", chatroomHandler.AddParticipant)
	authed.DELETE("/chatrooms/:id/participants/:userID", chatroomHandler.RemoveParticipant)

	agentHandler := handlers.NewAgentHandler(deps.DB)
	authed.POST("/chatrooms/:id/agents", agentHandler.Create)
	authed.GET("/chatrooms/:id/agents", agentHandler.List)
	authed.DELETE("/chatrooms/:id/agents/:agentID", agentHandler.Delete)

	messageHandler := handlers.NewMessageHandler(deps.DB, deps.Publisher, deps.Orchestrator, deps.Limiter, deps.RateLimit)
	authed.GET("/chatrooms/:id/messages", messageHandler.List)
	authed.POST("/chatrooms/:id/messages", messageHandler.Create)

	byokHandler := handlers.NewBYOKHandler(deps.DB, deps.Vault)
	authed.GET("/byok", byokHandler.List)
	authed.POST("/byok", byokHandler.Upsert)
	authed.DELETE("/byok/:provider", byokHandler.Delete)

	modelHandler := handlers.NewModelHandler(deps.Evaluator)
	authed.GET("/models", modelHandler.List)

	creditHandler := handlers.NewCreditHandler(deps.Ledger)
	authed.GET("/credits", creditHandler.Get)

	if deps.Hub != nil {
		r.GET("/v1/ws", wsHandler(deps.DB, deps.JWT, deps.Hub))
	}
}

// authMiddleware validates bearer tokens and loads the user ID into context.
func authMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
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

		claims, errJWT := security.ParseToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if !user.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account disabled"})
			return
		}

		c.Set(handlers.ContextUserIDKey, user.ID)
		c.Next()
	}
}

// wsHandler authenticates the websocket handshake via a token query parameter
// since browsers cannot set headers on websocket upgrades.
func wsHandler(db *gorm.DB, jwtCfg config.JWTConfig, hub *realtime.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.Query("token"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, errJWT := security.ParseToken(jwtCfg.Secret, token)
		if errJWT != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; errFind != nil || !user.Active {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		hub.Serve(c.Writer, c.Request, user.ID)
	}
}
