package handlers

import (
	"context"
	"strconv"

	"github.com/fixyhq/fixy/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ContextUserIDKey is the gin context key holding the authenticated user ID.
const ContextUserIDKey = "userID"

// CurrentUserID returns the authenticated user ID set by the auth middleware.
func CurrentUserID(c *gin.Context) uint64 {
	value, ok := c.Get(ContextUserIDKey)
	if !ok {
		return 0
	}
	userID, ok := value.(uint64)
	if !ok {
		return 0
	}
	return userID
}

// parseIDParam parses a numeric path parameter.
func parseIDParam(c *gin.Context, name string) (uint64, bool) {
	id, errParse := strconv.ParseUint(c.Param(name), 10, 64)
	if errParse != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// isParticipant reports whether the user belongs to the chatroom.
func isParticipant(ctx context.Context, db *gorm.DB, chatroomID, userID uint64) (bool, error) {
	var count int64
	errCount := db.WithContext(ctx).
		Model(&models.ChatroomParticipant{}).
		Where("chatroom_id = ? AND user_id = ?", chatroomID, userID).
		Count(&count).Error
	if errCount != nil {
		return false, errCount
	}
	return count > 0, nil
}

// planDenial shapes a 403 body telling the client how to unlock the feature.
func planDenial(reason string, upgradeRequired, byokRequired bool) gin.H {
	body := gin.H{"error": reason}
	if upgradeRequired {
		body["upgrade_required"] = true
	}
	if byokRequired {
		body["byok_required"] = true
	}
	return body
}
