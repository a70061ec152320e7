package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 5; i++ {
		result, errAllow := limiter.Allow(context.Background(), "msg:u:1", 5, now)
		if errAllow != nil {
			t.Fatalf("allow: %v", errAllow)
		}
		if !result.Allowed {
			t.Fatalf("expected request %d allowed", i+1)
		}
		if result.Remaining != 5-i-1 {
			t.Fatalf("expected remaining=%d, got %d", 5-i-1, result.Remaining)
		}
	}

	result, errAllow := limiter.Allow(context.Background(), "msg:u:1", 5, now)
	if errAllow != nil {
		t.Fatalf("allow: %v", errAllow)
	}
	if result.Allowed {
		t.Fatalf("expected sixth request denied")
	}
	if !result.Reset.After(now) {
		t.Fatalf("expected reset in the future, got %v", result.Reset)
	}
}

func TestMemoryLimiter_WindowRollover(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 5; i++ {
		if result, _ := limiter.Allow(context.Background(), "msg:u:1", 5, now); !result.Allowed {
			t.Fatalf("expected request %d allowed", i+1)
		}
	}
	if result, _ := limiter.Allow(context.Background(), "msg:u:1", 5, now); result.Allowed {
		t.Fatalf("expected over-limit request denied")
	}

	nextMinute := now.Add(time.Minute)
	result, errAllow := limiter.Allow(context.Background(), "msg:u:1", 5, nextMinute)
	if errAllow != nil {
		t.Fatalf("allow: %v", errAllow)
	}
	if !result.Allowed {
		t.Fatalf("expected fresh window to allow")
	}
}

func TestMemoryLimiter_KeysIsolated(t *testing.T) {
	limiter := NewMemoryLimiter()
	now := time.Unix(1_700_000_000, 0)

	for i := 0; i < 5; i++ {
		if result, _ := limiter.Allow(context.Background(), "msg:u:1", 5, now); !result.Allowed {
			t.Fatalf("expected request %d allowed", i+1)
		}
	}
	result, errAllow := limiter.Allow(context.Background(), "msg:u:2", 5, now)
	if errAllow != nil {
		t.Fatalf("allow: %v", errAllow)
	}
	if !result.Allowed {
		t.Fatalf("expected other user's key unaffected")
	}
}

func TestMemoryLimiter_ZeroLimitDisables(t *testing.T) {
	limiter := NewMemoryLimiter()
	for i := 0; i < 100; i++ {
		result, errAllow := limiter.Allow(context.Background(), "msg:u:1", 0, time.Now())
		if errAllow != nil || !result.Allowed {
			t.Fatalf("expected zero limit to disable limiting")
		}
	}
}

func TestManager_FallsBackToMemory(t *testing.T) {
	manager := NewManager(nil, func() time.Time { return time.Unix(1_700_000_000, 0) })

	for i := 0; i < 3; i++ {
		result, errAllow := manager.Allow(context.Background(), MessageKey(1), 3)
		if errAllow != nil || !result.Allowed {
			t.Fatalf("expected request %d allowed, err=%v", i+1, errAllow)
		}
	}
	result, errAllow := manager.Allow(context.Background(), MessageKey(1), 3)
	if errAllow != nil {
		t.Fatalf("allow: %v", errAllow)
	}
	if result.Allowed {
		t.Fatalf("expected fourth request denied")
	}
}

func TestMessageKey(t *testing.T) {
	if got := MessageKey(7); got != "msg:u:7" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := MessageKey(0); got != "" {
		t.Fatalf("expected empty key for zero user, got %q", got)
	}
}
