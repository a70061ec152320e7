package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/fixyhq/fixy/internal/catalog"
	"github.com/fixyhq/fixy/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AgentHandler manages agent endpoints scoped to a chatroom.
type AgentHandler struct {
	db *gorm.DB // Database handle for agent records.
}

// NewAgentHandler constructs an agent handler.
func NewAgentHandler(db *gorm.DB) *AgentHandler {
	return &AgentHandler{db: db}
}

// createAgentRequest captures the payload for adding an agent to a room.
type createAgentRequest struct {
	Name    string             `json:"name"`             // Display name shown in the room.
	ModelID string             `json:"model_id"`         // Catalog model identifier.
	Config  models.AgentConfig `json:"config,omitempty"` // Optional completion settings.
}

// agentBody shapes an agent for API responses.
func agentBody(agent models.Agent) gin.H {
	var cfg models.AgentConfig
	_ = json.Unmarshal(agent.Config, &cfg)
	return gin.H{
		"id":          agent.ID,
		"chatroom_id": agent.ChatroomID,
		"name":        agent.Name,
		"model_id":    agent.ModelID,
		"config":      cfg,
		"created_at":  agent.CreatedAt,
	}
}

// Create validates input and attaches an agent to the chatroom. The model
// must exist in the catalog; entitlement is checked per reply, not here, so
// a plan change never strands configured agents.
func (h *AgentHandler) Create(c *gin.Context) {
	userID := CurrentUserID(c)
	roomID, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chatroom id"})
		return
	}

	member, errMember := isParticipant(c.Request.Context(), h.db, roomID, userID)
	if errMember != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create agent"})
		return
	}
	if !member {
		c.JSON(http.StatusNotFound, gin.H{"error": "chatroom not found"})
		return
	}

	var body createAgentRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if _, found := catalog.Lookup(strings.TrimSpace(body.ModelID)); !found {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown model"})
		return
	}

	rawConfig, errConfig := json.Marshal(body.Config)
	if errConfig != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid config"})
		return
	}

	agent := models.Agent{
		ChatroomID: roomID,
		Name:       name,
		ModelID:    strings.TrimSpace(body.ModelID),
		Config:     datatypes.JSON(rawConfig),
		Active:     true,
	}
	if errCreate := h.db.WithContext(c.Request.Context()).Create(&agent).Error; errCreate != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create agent"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"agent": agentBody(agent)})
}

// List returns the active agents in a chatroom.
func (h *AgentHandler) List(c *gin.Context) {
	userID := CurrentUserID(c)
	roomID, ok := parseIDParam(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chatroom id"})
		return
	}

	member, errMember := isParticipant(c.Request.Context(), h.db, roomID, userID)
	if errMember != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list agents"})
		return
	}
	if !member {
		c.JSON(http.StatusNotFound, gin.H{"error": "chatroom not found"})
		return
	}

	var agents []models.Agent
	errFind := h.db.WithContext(c.Request.Context()).
		Where("chatroom_id = ? AND is_active = ?", roomID, true).
		Order("id ASC").
		Find(&agents).Error
	if errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list agents"})
		return
	}
	bodies := make([]gin.H, 0, len(agents))
	for _, agent := range agents {
		bodies = append(bodies, agentBody(agent))
	}
	c.JSON(http.StatusOK, gin.H{"agents": bodies})
}

// Delete soft-deletes an agent so its past messages keep an author.
func (h *AgentHandler) Delete(c *gin.Context) {
	userID := CurrentUserID(c)
	roomID, okRoom := parseIDParam(c, "id")
	agentID, okAgent := parseIDParam(c, "agentID")
	if !okRoom || !okAgent {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	member, errMember := isParticipant(c.Request.Context(), h.db, roomID, userID)
	if errMember != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete agent"})
		return
	}
	if !member {
		c.JSON(http.StatusNotFound, gin.H{"error": "chatroom not found"})
		return
	}

	result := h.db.WithContext(c.Request.Context()).
		Model(&models.Agent{}).
		Where("id = ? AND chatroom_id = ? AND is_active = ?", agentID, roomID, true).
		Update("is_active", false)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete agent"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
