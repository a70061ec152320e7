package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
}

// Limiter provides rate limit checks over fixed one-minute windows.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, now time.Time) (Result, error)
}

// MessageKey builds the limiter key for a user's message sends.
func MessageKey(userID uint64) string {
	if userID == 0 {
		return ""
	}
	return fmt.Sprintf("msg:u:%d", userID)
}
