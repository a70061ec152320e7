package models

import "time"

// Message is an immutable chatroom entry authored by either a user or an
// agent, never both. Ordering within a room is by CreatedAt ascending with
// insertion order (ID) breaking ties.
type Message struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key; tie-breaker for ordering.

	ChatroomID uint64   `gorm:"not null;index:idx_message_room_created"` // Owning chatroom ID.
	Chatroom   Chatroom `gorm:"foreignKey:ChatroomID"`                   // Owning chatroom record.

	SenderID *uint64 `gorm:"index"`               // Authoring user ID; nil for AI messages.
	Sender   *User   `gorm:"foreignKey:SenderID"` // Authoring user record.

	AgentID *uint64 `gorm:"index"`              // Authoring agent ID; nil for human messages.
	Agent   *Agent  `gorm:"foreignKey:AgentID"` // Authoring agent record.

	Content string `gorm:"type:text;not null"` // Message body.

	IsAI        bool    `gorm:"not null;default:false"`                 // Whether the message was AI-generated.
	CreditsUsed float64 `gorm:"type:decimal(20,10);not null;default:0"` // Credits debited for this reply.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index:idx_message_room_created"` // Creation timestamp.
}
