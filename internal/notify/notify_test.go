package notify

import (
	"context"
	"errors"
	"testing"
)

type stubNotifier struct {
	calls int
	err   error
}

func (s *stubNotifier) Notify(context.Context, uint64, Kind, map[string]any) error {
	s.calls++
	return s.err
}

func TestMulti_NotifiesAll(t *testing.T) {
	first := &stubNotifier{}
	second := &stubNotifier{}

	errNotify := Multi{first, second}.Notify(context.Background(), 1, KindCreditReached, nil)
	if errNotify != nil {
		t.Fatalf("notify: %v", errNotify)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Fatalf("expected both notifiers called, got %d and %d", first.calls, second.calls)
	}
}

func TestMulti_FailureDoesNotStopFanOut(t *testing.T) {
	errBoom := errors.New("smtp down")
	failing := &stubNotifier{err: errBoom}
	healthy := &stubNotifier{}

	errNotify := Multi{failing, healthy}.Notify(context.Background(), 1, KindCreditApproaching, nil)
	if !errors.Is(errNotify, errBoom) {
		t.Fatalf("expected first error returned, got %v", errNotify)
	}
	if healthy.calls != 1 {
		t.Fatalf("expected later notifier still called, got %d", healthy.calls)
	}
}
