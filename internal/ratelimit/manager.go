package ratelimit

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const redisBreakerDuration = 30 * time.Second

// Manager selects a limiter backend and enforces rate limits. When Redis is
// configured it is preferred; on Redis errors the manager falls back to the
// in-memory limiter for a breaker window before retrying Redis.
type Manager struct {
	nowFn         func() time.Time
	memoryLimiter Limiter
	redisLimiter  *RedisLimiter

	mu           sync.Mutex
	breakerUntil time.Time
}

// NewManager constructs a Manager. redisLimiter may be nil when Redis is not
// configured.
func NewManager(redisLimiter *RedisLimiter, nowFn func() time.Time) *Manager {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Manager{
		nowFn:         nowFn,
		memoryLimiter: NewMemoryLimiter(),
		redisLimiter:  redisLimiter,
	}
}

// Allow checks whether the request should be allowed using the best available backend.
func (m *Manager) Allow(ctx context.Context, key string, limit int) (Result, error) {
	if m == nil || limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	now := m.nowFn()
	if m.redisLimiter != nil && !m.breakerOpen(now) {
		result, errRedis := m.redisLimiter.Allow(ctx, key, limit, now)
		if errRedis == nil {
			return result, nil
		}
		log.WithError(errRedis).Warn("rate limit: redis check failed, falling back to memory")
		m.tripBreaker(now)
	}
	return m.memoryLimiter.Allow(ctx, key, limit, now)
}

func (m *Manager) breakerOpen(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return now.Before(m.breakerUntil)
}

func (m *Manager) tripBreaker(now time.Time) {
	m.mu.Lock()
	m.breakerUntil = now.Add(redisBreakerDuration)
	m.mu.Unlock()
}
