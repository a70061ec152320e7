// Package chatcontext assembles the bounded message window fed to a provider
// completion call.
package chatcontext

import (
	"context"
	"fmt"

	"github.com/fixyhq/fixy/internal/gateway"
	"github.com/fixyhq/fixy/internal/models"
	"github.com/fixyhq/fixy/internal/settings"
	"gorm.io/gorm"
)

// Builder reads recent chatroom history. Pure read, chatroom-scoped; it never
// mixes messages across rooms.
type Builder struct {
	db *gorm.DB
}

// NewBuilder constructs a Builder.
func NewBuilder(db *gorm.DB) *Builder {
	return &Builder{db: db}
}

// Build returns the most recent windowSize messages of the chatroom in
// chronological order, mapped to the normalized gateway shape: human messages
// become user turns, AI messages become assistant turns.
func (b *Builder) Build(ctx context.Context, chatroomID uint64, windowSize int) ([]gateway.Message, error) {
	if windowSize <= 0 {
		windowSize = settings.DefaultContextWindow
	}

	var rows []models.Message
	if errFind := b.db.WithContext(ctx).
		Preload("Sender").
		Preload("Agent").
		Where("chatroom_id = ?", chatroomID).
		Order("created_at DESC, id DESC").
		Limit(windowSize).
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("chatcontext: load messages: %w", errFind)
	}

	out := make([]gateway.Message, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		row := rows[i]
		msg := gateway.Message{Role: gateway.RoleUser, Content: row.Content}
		if row.IsAI {
			msg.Role = gateway.RoleAssistant
			if row.Agent != nil {
				msg.Name = row.Agent.Name
			}
		} else if row.Sender != nil {
			msg.Name = row.Sender.Name
		}
		out = append(out, msg)
	}
	return out, nil
}
