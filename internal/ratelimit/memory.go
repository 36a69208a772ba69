package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter keeps fixed windows in a process-local map. Windows expire
// lazily on the next admission check; counters reset on process restart.
type MemoryLimiter struct {
	mu           sync.Mutex
	windows      map[string]*window
	windowLength time.Duration
	limits       map[string]int
	defaultLimit int
	now          func() time.Time
}

func NewMemoryLimiter(windowLength time.Duration, limits map[string]int) *MemoryLimiter {
	if windowLength <= 0 {
		windowLength = time.Hour
	}
	return &MemoryLimiter{
		windows:      make(map[string]*window),
		windowLength: windowLength,
		limits:       limits,
		defaultLimit: DefaultLimit,
		now:          time.Now,
	}
}

func (l *MemoryLimiter) Admit(ctx context.Context, tenantID int64, scope string) (Decision, error) {
	limit := limitFor(scope, l.limits, l.defaultLimit)
	key := fmt.Sprintf("%d:%s", tenantID, scope)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		if limit < 1 {
			return Decision{Allowed: false, Count: 0, Limit: limit, ResetAt: now.Add(l.windowLength)}, nil
		}
		w = &window{count: 1, resetAt: now.Add(l.windowLength)}
		l.windows[key] = w
		return Decision{Allowed: true, Count: 1, Limit: limit, ResetAt: w.resetAt}, nil
	}

	if w.count >= limit {
		return Decision{Allowed: false, Count: w.count, Limit: limit, ResetAt: w.resetAt}, nil
	}

	w.count++
	return Decision{Allowed: true, Count: w.count, Limit: limit, ResetAt: w.resetAt}, nil
}
