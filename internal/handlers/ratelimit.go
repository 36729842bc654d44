package handlers

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/abrezinsky/forumelections/internal/auth"
)

const limiterIdle = 5 * time.Minute

type userLimiter struct {
	limiter *rate.Limiter
	expires time.Time
}

// rateLimiter throttles requests per signed in user, or per client address
// for guests, with a token bucket each
type rateLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu       sync.Mutex
	limiters map[string]*userLimiter
}

func newRateLimiter(perMinute int) *rateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	return &rateLimiter{
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    max(perMinute/2, 1),
		now:      time.Now,
		limiters: make(map[string]*userLimiter),
	}
}

func (l *rateLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, ul := range l.limiters {
		if now.After(ul.expires) {
			delete(l.limiters, k)
		}
	}

	ul, ok := l.limiters[key]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = ul
	}
	ul.expires = now.Add(limiterIdle)
	return ul.limiter.AllowN(now, 1)
}

// middleware rejects requests over the limit with 429
func (l *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if u := auth.UserFromContext(r.Context()); u != nil {
			key = "user:" + strconv.FormatInt(u.ID, 10)
		}
		if !l.allow(key) {
			respondError(w, ErrRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}
