package logging

import (
	"sync"
	"time"
)

// RateLimited forwards at most one warning per interval to the wrapped
// logger. Used for fallbacks that would otherwise log on every page view.
type RateLimited struct {
	mu       sync.Mutex
	lastAt   time.Time
	interval time.Duration
	logger   Logger
	now      func() time.Time
}

func NewRateLimited(logger Logger, interval time.Duration) *RateLimited {
	return &RateLimited{interval: interval, logger: OrNop(logger), now: time.Now}
}

func (l *RateLimited) Warn(format string, args ...any) {
	l.mu.Lock()
	now := l.now()
	if !l.lastAt.IsZero() && now.Sub(l.lastAt) < l.interval {
		l.mu.Unlock()
		return
	}
	l.lastAt = now
	l.mu.Unlock()
	l.logger.Warn(format, args...)
}
