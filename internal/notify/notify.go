// Package notify defines the outbound notification contract. Email delivery
// is an external collaborator; the platform only emits fire-and-forget events.
package notify

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Kind identifies a notification template.
type Kind string

// Notification kinds emitted by the credit ledger.
const (
	// KindCreditApproaching fires once per period at 80% usage.
	KindCreditApproaching Kind = "credit_approaching"
	// KindCreditReached fires once per period when the allowance is exhausted.
	KindCreditReached Kind = "credit_reached"
	// KindCreditReset fires after a periodic credit reset.
	KindCreditReset Kind = "credit_reset"
)

// Notifier delivers a notification to a user. Implementations must be
// fire-and-forget: failures are logged by callers, never propagated.
type Notifier interface {
	Notify(ctx context.Context, userID uint64, kind Kind, params map[string]any) error
}

// Multi fans a notification out to several notifiers. The first failure is
// returned after every notifier has been tried.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, userID uint64, kind Kind, params map[string]any) error {
	var firstErr error
	for _, n := range m {
		if errNotify := n.Notify(ctx, userID, kind, params); errNotify != nil && firstErr == nil {
			firstErr = errNotify
		}
	}
	return firstErr
}

// LogNotifier records notifications in the application log. It stands in for
// the external email collaborator in development and tests.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(_ context.Context, userID uint64, kind Kind, params map[string]any) error {
	log.WithField("user_id", userID).WithField("kind", string(kind)).WithField("params", params).
		Info("notification")
	return nil
}
