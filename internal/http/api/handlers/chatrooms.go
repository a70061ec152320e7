package handlers

import (
	"net/http"
	"strings"

	"github.com/fixyhq/fixy/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ChatroomHandler manages chatroom endpoints.
type ChatroomHandler struct {
	db *gorm.DB // Database handle for chatroom records.
}

// NewChatroomHandler constructs a chatroom handler.
func NewChatroomHandler(db *gorm.DB) *ChatroomHandler {
	return &ChatroomHandler{db: db}
}

// createChatroomRequest captures the payload for creating a chatroom.
type createChatroomRequest struct {
	Title string `json:"title"` // Room title.
	Type  string `json:"type"`  // Room kind; private or group.
}

// chatroomBody shapes a chatroom for API responses.
func chatroomBody(room models.Chatroom) gin.H {
	return gin.H{
		"id":         room.ID,
		"title":      room.Title,
		"type":       room.Type,
		"owner_id":   room.OwnerID,
		"created_at": room.CreatedAt,
	}
}

// Create validates input and inserts a new chatroom with the creator as its
// first participant. Group rooms require the Teams plan.
func (h *ChatroomHandler) Create(c *gin.Context) {
	userID := CurrentUserID(c)
	var body createChatroomRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	title := strings.TrimSpace(body.Title)
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}
	roomType := models.ChatroomType(strings.TrimSpace(body.Type))
	if roomType == "" {
		roomType = models.ChatroomPrivate
	}
	if roomType != models.ChatroomPrivate && roomType != models.ChatroomGroup {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chatroom type"})
		return
	}

	if roomType == models.ChatroomGroup {
		var user models.User
		if errFind := h.db.WithContext(c.Request.Context()).First(&user, userID).Error; errFind != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if user.Plan != models.PlanTeams {
			c.JSON(http.StatusForbidden, planDenial("group chatrooms require the Teams plan", true, false))
			return
		}
	}

	room := models.Chatroom{
		Title:   title,
		Type:    roomType,
		OwnerID: userID,
		Active:  true,
	}
	errCreate := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errRoom := tx.Create(&room).Error; errRoom != nil {
			return errRoom
		}
		participant := models.ChatroomParticipant{ChatroomID: room.ID, UserID: userID}
		return tx.Create(&participant).Error
	})
	if errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create chatroom"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"chatroom": chatroomBody(room)})
}

// List returns the chatrooms the user participates in.
func (h *ChatroomHandler) List(c *gin.Context) {
	userID := CurrentUserID(c)
	var rooms []models.Chatroom
	errFind := h.db.WithContext(c.Request.Context()).
		Joins("JOIN chatroom_participants ON chatroom_participants.chatroom_id = chatrooms.id").
		Where("chatroom_participants.user_id = ? AND chatrooms.is_active = ?", userID, true).
		Order("chatrooms.updated_at DESC").
		Find(&rooms).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list chatrooms"})
		return
	}
	bodies := make([]gin.H, 0, len(rooms))
	for _, room := range rooms {
		bodies = append(bodies, chatroomBody(room))
	}
	c.JSON(http.StatusOK, gin.H{"chatrooms": bodies})
}

// Get returns a single chatroom the user participates in.
func (h *ChatroomHandler) Get(c *gin.Context) {
	userID := CurrentUserID(c)
	roomID, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chatroom id"})
		return
	}

	member, errCheck := isParticipant(c.Request.Context(), h.db, roomID, userID)
	if errCheck != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chatroom"})
		return
	}
	if !member {
		c.JSON(http.StatusNotFound, gin.H{"error": "chatroom not found"})
		return
	}

	var room models.Chatroom
	errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND is_active = ?", roomID, true).
		First(&room).Error
	if errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "chatroom not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chatroom": chatroomBody(room)})
}

// Delete soft-deletes a chatroom. Only the owner may delete it.
func (h *ChatroomHandler) Delete(c *gin.Context) {
	userID := CurrentUserID(c)
	roomID, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chatroom id"})
		return
	}

	result := h.db.WithContext(c.Request.Context()).
		Model(&models.Chatroom{}).
		Where("id = ? AND owner_id = ? AND is_active = ?", roomID, userID, true).
		Update("is_active", false)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete chatroom"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "chatroom not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// addParticipantRequest captures the payload for adding a room member.
type addParticipantRequest struct {
	UserID uint64 `json:"user_id"` // User to add.
}

// AddParticipant adds a user to a group chatroom. Only the owner may add
// members, and private rooms never gain them.
func (h *ChatroomHandler) AddParticipant(c *gin.Context) {
	userID := CurrentUserID(c)
	roomID, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chatroom id"})
		return
	}

	var body addParticipantRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || body.UserID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	var room models.Chatroom
	errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND is_active = ?", roomID, true).
		First(&room).Error
	if errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "chatroom not found"})
		return
	}
	if room.OwnerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner can add participants"})
		return
	}
	if room.Type != models.ChatroomGroup {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot add participants to a private chatroom"})
		return
	}

	var member models.User
	if errUser := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND is_active = ?", body.UserID, true).
		First(&member).Error; errUser != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	already, errCheck := isParticipant(c.Request.Context(), h.db, roomID, body.UserID)
	if errCheck != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add participant"})
		return
	}
	if already {
		c.JSON(http.StatusOK, gin.H{"status": "already a participant"})
		return
	}

	participant := models.ChatroomParticipant{ChatroomID: roomID, UserID: body.UserID}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&participant).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add participant"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "added"})
}

// RemoveParticipant removes a room member. The owner can remove anyone except
// themselves; members can leave on their own.
func (h *ChatroomHandler) RemoveParticipant(c *gin.Context) {
	userID := CurrentUserID(c)
	roomID, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chatroom id"})
		return
	}
	memberID, ok := parseIDParam(c, "userID")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var room models.Chatroom
	errFind := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND is_active = ?", roomID, true).
		First(&room).Error
	if errFind != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "chatroom not found"})
		return
	}
	if userID != memberID && room.OwnerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the owner can remove participants"})
		return
	}
	if memberID == room.OwnerID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "the owner cannot leave their own chatroom"})
		return
	}

	result := h.db.WithContext(c.Request.Context()).
		Where("chatroom_id = ? AND user_id = ?", roomID, memberID).
		Delete(&models.ChatroomParticipant{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove participant"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "participant not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}
