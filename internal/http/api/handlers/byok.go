package handlers

import (
	"net/http"
	"strings"

	"github.com/fixyhq/fixy/internal/catalog"
	"github.com/fixyhq/fixy/internal/models"
	"github.com/fixyhq/fixy/internal/vault"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// BYOKHandler manages user-supplied provider keys. Keys are encrypted before
// they touch the database and are never returned by any endpoint.
type BYOKHandler struct {
	db    *gorm.DB
	vault *vault.Vault
}

// NewBYOKHandler constructs a BYOK handler.
func NewBYOKHandler(db *gorm.DB, v *vault.Vault) *BYOKHandler {
	return &BYOKHandler{db: db, vault: v}
}

// upsertBYOKRequest captures the payload for storing a provider key.
type upsertBYOKRequest struct {
	Provider string `json:"provider"` // Provider identifier.
	APIKey   string `json:"api_key"`  // Plaintext key; encrypted before storage.
}

// byokBody shapes a credential for API responses without key material.
func byokBody(cred models.BYOKCredential) gin.H {
	return gin.H{
		"id":         cred.ID,
		"provider":   cred.Provider,
		"active":     cred.Active,
		"created_at": cred.CreatedAt,
		"updated_at": cred.UpdatedAt,
	}
}

// requirePaidKeyPlan rejects plans that cannot manage provider keys.
func (h *BYOKHandler) requirePaidKeyPlan(c *gin.Context, userID uint64) bool {
	var user models.User
	if errFind := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; errFind != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return false
	}
	if !user.Plan.IsEliteOrTeams() {
		c.JSON(http.StatusForbidden, planDenial("provider keys require the Elite or Teams plan", true, false))
		return false
	}
	return true
}

// List returns the user's credentials with key material omitted.
func (h *BYOKHandler) List(c *gin.Context) {
	userID := CurrentUserID(c)
	if !h.requirePaidKeyPlan(c, userID) {
		return
	}

	var creds []models.BYOKCredential
	errFind := h.db.WithContext(c.Request.Context()).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("provider ASC").
		Find(&creds).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list credentials"})
		return
	}
	bodies := make([]gin.H, 0, len(creds))
	for _, cred := range creds {
		bodies = append(bodies, byokBody(cred))
	}
	c.JSON(http.StatusOK, gin.H{"credentials": bodies})
}

// Upsert stores or replaces the key for a provider. One active key per
// provider per user; storing again overwrites and reactivates.
func (h *BYOKHandler) Upsert(c *gin.Context) {
	userID := CurrentUserID(c)
	if !h.requirePaidKeyPlan(c, userID) {
		return
	}

	var body upsertBYOKRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	provider := strings.ToLower(strings.TrimSpace(body.Provider))
	if !catalog.ValidProvider(provider) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown provider"})
		return
	}
	apiKey := strings.TrimSpace(body.APIKey)
	if apiKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "api_key is required"})
		return
	}

	encrypted, errEncrypt := h.vault.Encrypt(apiKey)
	if errEncrypt != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store credential"})
		return
	}

	var cred models.BYOKCredential
	errUpsert := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		errFind := tx.Where("user_id = ? AND provider = ?", userID, provider).First(&cred).Error
		if errFind == nil {
			cred.APIKeyEncrypted = encrypted
			cred.Active = true
			return tx.Save(&cred).Error
		}
		if errFind != gorm.ErrRecordNotFound {
			return errFind
		}
		cred = models.BYOKCredential{
			UserID:          userID,
			Provider:        provider,
			APIKeyEncrypted: encrypted,
			Active:          true,
		}
		return tx.Create(&cred).Error
	})
	if errUpsert != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store credential"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"credential": byokBody(cred)})
}

// Delete deactivates the key for a provider. The row is kept so re-adding
// later is an update, not a resurrection of old key material.
func (h *BYOKHandler) Delete(c *gin.Context) {
	userID := CurrentUserID(c)
	if !h.requirePaidKeyPlan(c, userID) {
		return
	}

	provider := strings.ToLower(strings.TrimSpace(c.Param("provider")))
	if !catalog.ValidProvider(provider) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown provider"})
		return
	}

	result := h.db.WithContext(c.Request.Context()).
		Model(&models.BYOKCredential{}).
		Where("user_id = ? AND provider = ? AND is_active = ?", userID, provider, true).
		Update("is_active", false)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove credential"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "credential not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}
