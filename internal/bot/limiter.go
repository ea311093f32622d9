package bot

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a per-user token bucket. The key is the user ID, so clients
// cannot dodge throttling by switching transports.
type Limiter struct {
	mu    sync.Mutex
	users map[string]*userBucket
	limit rate.Limit
	burst int
	now   func() time.Time
}

type userBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiter allows perMinute events per user with the given burst.
// It returns nil when perMinute is not positive; a nil Limiter allows everything.
func NewLimiter(perMinute, burst int) *Limiter {
	if perMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		users: make(map[string]*userBucket),
		limit: rate.Every(time.Minute / time.Duration(perMinute)),
		burst: burst,
		now:   time.Now,
	}
}

// Allow reports whether userID may send another event now.
func (l *Limiter) Allow(userID string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.users[userID]
	if !ok {
		b = &userBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.users[userID] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

// Run evicts buckets idle for longer than idle until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval, idle time.Duration) {
	if l == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evict(idle)
		}
	}
}

func (l *Limiter) evict(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-idle)
	removed := 0
	for key, b := range l.users {
		if b.lastSeen.Before(cutoff) {
			delete(l.users, key)
			removed++
		}
	}
	return removed
}

func (l *Limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.users)
}
