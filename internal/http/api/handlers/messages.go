package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fixyhq/fixy/internal/models"
	"github.com/fixyhq/fixy/internal/orchestrator"
	"github.com/fixyhq/fixy/internal/ratelimit"
	"github.com/fixyhq/fixy/internal/realtime"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultMessagePageSize = 50
	maxMessagePageSize     = 100
)

// MessageHandler serves message history and message sends. A send that
// addresses an agent also starts the reply pipeline in the background.
type MessageHandler struct {
	db           *gorm.DB
	publisher    realtime.Publisher
	orchestrator *orchestrator.Orchestrator
	limiter      *ratelimit.Manager
	rateLimit    int // Sends per user per minute; 0 disables.
}

// NewMessageHandler constructs a message handler.
func NewMessageHandler(db *gorm.DB, publisher realtime.Publisher, orch *orchestrator.Orchestrator, limiter *ratelimit.Manager, rateLimit int) *MessageHandler {
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	return &MessageHandler{
		db:           db,
		publisher:    publisher,
		orchestrator: orch,
		limiter:      limiter,
		rateLimit:    rateLimit,
	}
}

// createMessageRequest captures the payload for sending a message.
type createMessageRequest struct {
	Content string  `json:"content"`            // Message body.
	AgentID *uint64 `json:"agent_id,omitempty"` // Agent to answer; nil for plain messages.
}

// List returns messages in a chatroom, newest first. An optional before_id
// cursor pages further back.
func (h *MessageHandler) List(c *gin.Context) {
	userID := CurrentUserID(c)
	roomID, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chatroom id"})
		return
	}

	member, errMember := isParticipant(c.Request.Context(), h.db, roomID, userID)
	if errMember != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}
	if !member {
		c.JSON(http.StatusNotFound, gin.H{"error": "chatroom not found"})
		return
	}

	limit := defaultMessagePageSize
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		if parsed, errParse := strconv.Atoi(raw); errParse == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxMessagePageSize {
		limit = maxMessagePageSize
	}

	query := h.db.WithContext(c.Request.Context()).
		Where("chatroom_id = ?", roomID)
	if raw := strings.TrimSpace(c.Query("before_id")); raw != "" {
		beforeID, errParse := strconv.ParseUint(raw, 10, 64)
		if errParse != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid before_id"})
			return
		}
		query = query.Where("id < ?", beforeID)
	}

	var messages []models.Message
	errFind := query.
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
		return
	}
	bodies := make([]map[string]any, 0, len(messages))
	for _, message := range messages {
		bodies = append(bodies, realtime.MessageBody(message))
	}
	c.JSON(http.StatusOK, gin.H{"messages": bodies})
}

// Create persists a user message, fans it out, and dispatches an agent reply
// when one is addressed. The response never waits on the provider.
func (h *MessageHandler) Create(c *gin.Context) {
	userID := CurrentUserID(c)
	roomID, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chatroom id"})
		return
	}

	member, errMember := isParticipant(c.Request.Context(), h.db, roomID, userID)
	if errMember != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		return
	}
	if !member {
		c.JSON(http.StatusNotFound, gin.H{"error": "chatroom not found"})
		return
	}

	if h.limiter != nil && h.rateLimit > 0 {
		result, errLimit := h.limiter.Allow(c.Request.Context(), ratelimit.MessageKey(userID), h.rateLimit)
		if errLimit != nil {
			log.WithError(errLimit).Warn("messages: rate limit check failed")
		} else if !result.Allowed {
			retryAfter := int64(time.Until(result.Reset).Seconds()) + 1
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "message rate limit exceeded"})
			return
		}
	}

	var body createMessageRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	content := strings.TrimSpace(body.Content)
	if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	if body.AgentID != nil {
		var count int64
		errAgent := h.db.WithContext(c.Request.Context()).
			Model(&models.Agent{}).
			Where("id = ? AND chatroom_id = ? AND is_active = ?", *body.AgentID, roomID, true).
			Count(&count).Error
		if errAgent != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
			return
		}
		if count == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "agent not found in chatroom"})
			return
		}
	}

	message := models.Message{
		ChatroomID: roomID,
		SenderID:   &userID,
		Content:    content,
	}
	errCreate := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if errMsg := tx.Create(&message).Error; errMsg != nil {
			return errMsg
		}
		return tx.Model(&models.Chatroom{}).
			Where("id = ?", roomID).
			UpdateColumn("updated_at", time.Now().UTC()).Error
	})
	if errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send message"})
		return
	}

	event := realtime.NewEvent(realtime.EventNewMessage)
	event.ChatroomID = roomID
	event.Message = realtime.MessageBody(message)
	if errPub := h.publisher.PublishRoom(c.Request.Context(), roomID, event); errPub != nil {
		log.WithError(errPub).WithField("chatroom_id", roomID).Warn("messages: event publish failed")
	}

	if body.AgentID != nil && h.orchestrator != nil {
		h.orchestrator.Dispatch(roomID, *body.AgentID, userID)
	}

	c.JSON(http.StatusCreated, gin.H{"message": realtime.MessageBody(message)})
}
