package realtime

import (
	"context"
	"testing"

	"github.com/fixyhq/fixy/internal/models"
	"github.com/fixyhq/fixy/internal/notify"
)

func TestTopics(t *testing.T) {
	if got := RoomTopic(42); got != "chatroom:42" {
		t.Fatalf("unexpected room topic %q", got)
	}
	if got := UserTopic(7); got != "user:7" {
		t.Fatalf("unexpected user topic %q", got)
	}
}

func TestNewEvent_UniqueIDs(t *testing.T) {
	first := NewEvent(EventNewMessage)
	second := NewEvent(EventNewMessage)
	if first.ID == "" || first.ID == second.ID {
		t.Fatalf("expected distinct event ids, got %q and %q", first.ID, second.ID)
	}
	if first.Type != EventNewMessage {
		t.Fatalf("unexpected type %q", first.Type)
	}
	if first.CreatedAt.IsZero() {
		t.Fatalf("expected timestamp to be set")
	}
}

func TestMessageBody(t *testing.T) {
	senderID := uint64(3)
	body := MessageBody(models.Message{
		ID:         10,
		ChatroomID: 5,
		SenderID:   &senderID,
		Content:    "hi",
	})
	if body["id"] != uint64(10) || body["chatroom_id"] != uint64(5) {
		t.Fatalf("unexpected ids in body %v", body)
	}
	if body["sender_id"] != uint64(3) {
		t.Fatalf("expected sender_id, got %v", body["sender_id"])
	}
	if _, ok := body["agent_id"]; ok {
		t.Fatalf("agent_id should be absent for user messages")
	}
	if _, ok := body["credits_used"]; ok {
		t.Fatalf("credits_used should be absent when zero")
	}

	agentID := uint64(9)
	aiBody := MessageBody(models.Message{ID: 11, ChatroomID: 5, AgentID: &agentID, IsAI: true, CreditsUsed: 2})
	if aiBody["agent_id"] != uint64(9) || aiBody["is_ai"] != true {
		t.Fatalf("unexpected ai body %v", aiBody)
	}
	if aiBody["credits_used"] != float64(2) {
		t.Fatalf("expected credits_used 2, got %v", aiBody["credits_used"])
	}
}

type capturingPublisher struct {
	userID uint64
	event  Event
}

func (p *capturingPublisher) PublishRoom(context.Context, uint64, Event) error { return nil }

func (p *capturingPublisher) PublishUser(_ context.Context, userID uint64, event Event) error {
	p.userID = userID
	p.event = event
	return nil
}

func TestAlertNotifier(t *testing.T) {
	pub := &capturingPublisher{}
	notifier := NewAlertNotifier(pub)

	errNotify := notifier.Notify(context.Background(), 12, notify.KindCreditApproaching, map[string]any{"used": 40.0})
	if errNotify != nil {
		t.Fatalf("notify: %v", errNotify)
	}
	if pub.userID != 12 {
		t.Fatalf("expected user 12, got %d", pub.userID)
	}
	if pub.event.Type != EventCreditAlert {
		t.Fatalf("expected credit-alert event, got %q", pub.event.Type)
	}
	if pub.event.Reason != string(notify.KindCreditApproaching) {
		t.Fatalf("unexpected reason %q", pub.event.Reason)
	}
}

func TestAlertNotifier_NilPublisher(t *testing.T) {
	notifier := NewAlertNotifier(nil)
	if errNotify := notifier.Notify(context.Background(), 1, notify.KindCreditReached, nil); errNotify != nil {
		t.Fatalf("expected nop delivery, got %v", errNotify)
	}
}
