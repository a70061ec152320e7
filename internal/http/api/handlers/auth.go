package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fixyhq/fixy/internal/config"
	"github.com/fixyhq/fixy/internal/db"
	"github.com/fixyhq/fixy/internal/ledger"
	"github.com/fixyhq/fixy/internal/models"
	"github.com/fixyhq/fixy/internal/security"
	"github.com/fixyhq/fixy/internal/settings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// AuthHandler serves registration, login, and the current-user endpoint.
type AuthHandler struct {
	db     *gorm.DB       // Database handle for user records.
	ledger *ledger.Ledger // Opens the trial credit account on signup.
	jwtCfg config.JWTConfig
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(db *gorm.DB, l *ledger.Ledger, jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{db: db, ledger: l, jwtCfg: jwtCfg}
}

// registerRequest captures the signup payload.
type registerRequest struct {
	Email    string `json:"email"`    // Login email address.
	Name     string `json:"name"`     // Display name.
	Password string `json:"password"` // Plaintext password.
}

// loginRequest captures the login payload.
type loginRequest struct {
	Email    string `json:"email"`    // Login email address.
	Password string `json:"password"` // Plaintext password.
}

// userBody shapes a user for API responses. Password hashes never leave the server.
func userBody(user models.User) gin.H {
	return gin.H{
		"id":         user.ID,
		"email":      user.Email,
		"name":       user.Name,
		"plan":       user.Plan,
		"created_at": user.CreatedAt,
	}
}

// Register creates a Trial user with a seeded credit account and returns a token.
func (h *AuthHandler) Register(c *gin.Context) {
	var body registerRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" || !strings.Contains(email, "@") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "valid email is required"})
		return
	}
	if len(body.Password) < 8 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be at least 8 characters"})
		return
	}

	hashed, errHash := security.HashPassword(body.Password)
	if errHash != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
		return
	}

	user := models.User{
		Email:    email,
		Name:     strings.TrimSpace(body.Name),
		Password: hashed,
		Plan:     models.PlanTrial,
		Active:   true,
	}
	errCreate := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var count int64
		if errCount := tx.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; errCount != nil {
			return errCount
		}
		if count > 0 {
			return errEmailTaken
		}
		return tx.Create(&user).Error
	})
	if errCreate != nil {
		// Concurrent signups can slip past the count check and hit the unique
		// index on email instead.
		if errors.Is(errCreate, errEmailTaken) || db.IsDuplicateKey(errCreate) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	resetAt := time.Now().UTC().Add(settings.TrialPeriod)
	if errOpen := h.ledger.OpenAccount(c.Request.Context(), user.ID, settings.TrialCreditLimit, resetAt); errOpen != nil {
		log.WithError(errOpen).WithField("user_id", user.ID).Error("auth: failed to open credit account")
	}

	token, errToken := security.IssueToken(h.jwtCfg.Secret, user.ID, h.jwtCfg.Expiry)
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token, "user": userBody(user)})
}

var errEmailTaken = errors.New("email already registered")

// Login verifies credentials and returns a token.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(body.Email))
	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).
		Where("email = ? AND is_active = ?", email, true).
		First(&user).Error
	if errFind != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if !security.VerifyPassword(user.Password, body.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, errToken := security.IssueToken(h.jwtCfg.Secret, user.ID, h.jwtCfg.Expiry)
	if errToken != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": userBody(user)})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c *gin.Context) {
	userID := CurrentUserID(c)
	var user models.User
	errFind := h.db.WithContext(c.Request.Context()).First(&user, userID).Error
	if errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userBody(user)})
}
