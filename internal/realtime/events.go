// Package realtime delivers room and user events over a publish/subscribe
// channel. Delivery is at-least-once; clients deduplicate by event id.
package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/fixyhq/fixy/internal/models"

	"github.com/google/uuid"
)

// EventType identifies a realtime event.
type EventType string

// Event types pushed to room and user topics.
const (
	// EventNewMessage announces a persisted message.
	EventNewMessage EventType = "new-message"
	// EventAIThinking announces that an agent reply is being generated.
	EventAIThinking EventType = "ai-thinking"
	// EventAIFailed announces a terminal agent reply failure. It is the only
	// room-visible artifact of a failed reply.
	EventAIFailed EventType = "ai-failed"
	// EventCreditAlert carries credit threshold notices on the user topic.
	EventCreditAlert EventType = "credit-alert"
)

// Event is the wire shape pushed to subscribers.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	ChatroomID uint64    `json:"chatroom_id,omitempty"`
	AgentID    uint64    `json:"agent_id,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Message    any       `json:"message,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewEvent constructs an event with a fresh id and timestamp.
func NewEvent(eventType EventType) Event {
	return Event{ID: uuid.NewString(), Type: eventType, CreatedAt: time.Now().UTC()}
}

// MessageBody shapes a persisted message for the Event.Message field.
func MessageBody(m models.Message) map[string]any {
	body := map[string]any{
		"id":          m.ID,
		"chatroom_id": m.ChatroomID,
		"content":     m.Content,
		"is_ai":       m.IsAI,
		"created_at":  m.CreatedAt,
	}
	if m.SenderID != nil {
		body["sender_id"] = *m.SenderID
	}
	if m.AgentID != nil {
		body["agent_id"] = *m.AgentID
	}
	if m.CreditsUsed > 0 {
		body["credits_used"] = m.CreditsUsed
	}
	return body
}

// RoomTopic returns the pub/sub topic for a chatroom.
func RoomTopic(chatroomID uint64) string { return fmt.Sprintf("chatroom:%d", chatroomID) }

// UserTopic returns the pub/sub topic for direct user notices.
func UserTopic(userID uint64) string { return fmt.Sprintf("user:%d", userID) }

// Publisher fans events out to topic subscribers.
type Publisher interface {
	PublishRoom(ctx context.Context, chatroomID uint64, event Event) error
	PublishUser(ctx context.Context, userID uint64, event Event) error
}

// NopPublisher discards events. It backs tests and redis-less development.
type NopPublisher struct{}

// PublishRoom implements Publisher.
func (NopPublisher) PublishRoom(context.Context, uint64, Event) error { return nil }

// PublishUser implements Publisher.
func (NopPublisher) PublishUser(context.Context, uint64, Event) error { return nil }
