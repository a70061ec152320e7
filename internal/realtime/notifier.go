package realtime

import (
	"context"

	"github.com/fixyhq/fixy/internal/notify"
)

// AlertNotifier pushes credit notices to the user's realtime topic.
type AlertNotifier struct {
	publisher Publisher
}

// NewAlertNotifier constructs an AlertNotifier.
func NewAlertNotifier(publisher Publisher) *AlertNotifier {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &AlertNotifier{publisher: publisher}
}

// Notify implements notify.Notifier.
func (n *AlertNotifier) Notify(ctx context.Context, userID uint64, kind notify.Kind, params map[string]any) error {
	event := NewEvent(EventCreditAlert)
	event.Reason = string(kind)
	event.Message = params
	return n.publisher.PublishUser(ctx, userID, event)
}
