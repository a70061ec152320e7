package models

import (
	"time"

	"gorm.io/datatypes"
)

// Agent binds a catalog model to a chatroom with free-form configuration.
// Soft-deleted so historical messages keep a resolvable author.
type Agent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ChatroomID uint64   `gorm:"not null;index"`        // Owning chatroom ID.
	Chatroom   Chatroom `gorm:"foreignKey:ChatroomID"` // Owning chatroom record.

	Name    string         `gorm:"type:text;not null"`               // Display name shown in the room.
	ModelID string         `gorm:"type:varchar(64);not null"`        // Catalog model identifier.
	Config  datatypes.JSON `gorm:"type:jsonb;not null;default:'{}'"` // System prompt, temperature, max tokens.

	Active bool `gorm:"column:is_active;not null;default:true"` // Soft-deletion flag.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// AgentConfig is the decoded shape of Agent.Config.
type AgentConfig struct {
	SystemPrompt string   `json:"system_prompt,omitempty"` // Optional system prompt override.
	Temperature  *float64 `json:"temperature,omitempty"`   // Optional sampling temperature.
	MaxTokens    *int     `json:"max_tokens,omitempty"`    // Optional completion token cap.
}
