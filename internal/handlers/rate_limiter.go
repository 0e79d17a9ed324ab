package handlers

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/agentmall/gateway/internal/platform/config"
	"github.com/agentmall/gateway/internal/platform/envelope"
)

// rateLimiter enforces a fixed-window per-actor budget: PerMinute requests in
// each minute window plus a short per-second burst cap. Counters live in
// memory, so each instance enforces its own budget.
type rateLimiter struct {
	mu        sync.Mutex
	perMinute int
	burst     int
	minutes   map[string]*window
	seconds   map[string]*window
	now       func() time.Time
}

type window struct {
	start time.Time
	count int
}

func newRateLimiter(cfg config.RateLimitConfig, clock func() time.Time) *rateLimiter {
	if clock == nil {
		clock = time.Now
	}
	return &rateLimiter{
		perMinute: cfg.PerMinute,
		burst:     cfg.Burst,
		minutes:   make(map[string]*window),
		seconds:   make(map[string]*window),
		now:       clock,
	}
}

// allow reports whether the actor may proceed and the seconds until the
// minute window resets when it may not.
func (l *rateLimiter) allow(actorKey string) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now().UTC()

	if l.burst > 0 && !l.bump(l.seconds, actorKey, now.Truncate(time.Second), l.burst) {
		return false, 1
	}
	minuteStart := now.Truncate(time.Minute)
	if l.perMinute > 0 && !l.bump(l.minutes, actorKey, minuteStart, l.perMinute) {
		retry := int(minuteStart.Add(time.Minute).Sub(now).Seconds()) + 1
		return false, retry
	}
	return true, 0
}

func (l *rateLimiter) bump(windows map[string]*window, key string, start time.Time, limit int) bool {
	w, ok := windows[key]
	if !ok || !w.start.Equal(start) {
		windows[key] = &window{start: start, count: 1}
		return true
	}
	if w.count >= limit {
		return false
	}
	w.count++
	return true
}

// RateLimitMiddleware rejects callers over budget with RATE_LIMITED before
// any business logic runs. Requests without an envelope pass through.
func RateLimitMiddleware(cfg config.RateLimitConfig, clock func() time.Time) func(http.Handler) http.Handler {
	limiter := newRateLimiter(cfg, clock)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			env, ok := envelope.FromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			allowed, retryAfter := limiter.allow(string(env.Actor.Type) + ":" + env.SubjectID())
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				envelope.WriteError(w, r, envelope.CodeRateLimited, "request budget exceeded", map[string]any{
					"retry_after_seconds": retryAfter,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
