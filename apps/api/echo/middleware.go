package echoapi

import (
	"maps"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// permissionMiddleware lets through users whose role grants any of perms.
// It must run after sessionMiddleware.
func permissionMiddleware(perms ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return err
			}
			if len(perms) == 0 || usr.HasPermission(perms...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// limiterPruneInterval is how often idle buckets are dropped.
const limiterPruneInterval = time.Minute

// ipRateLimiter hands out one token bucket per client IP.
type ipRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	limit     rate.Limit
	burst     int
	lastPrune time.Time
	now       func() time.Time
}

func newIPRateLimiter(perSecond float64, burst int) *ipRateLimiter {
	return &ipRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
	}
}

func (rl *ipRateLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now := rl.now(); now.Sub(rl.lastPrune) >= limiterPruneInterval {
		rl.prune()
		rl.lastPrune = now
	}

	limiter, ok := rl.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[ip] = limiter
	}
	return limiter
}

// prune drops the buckets that refilled completely: a fresh bucket behaves the same.
// The caller must hold rl.mu.
func (rl *ipRateLimiter) prune() {
	maps.DeleteFunc(rl.limiters, func(_ string, l *rate.Limiter) bool {
		return int(l.Tokens()) >= l.Burst()
	})
}

// rateLimitMiddleware rejects requests once the client IP has spent its bucket.
func rateLimitMiddleware(rl *ipRateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if !rl.get(ctx.RealIP()).Allow() {
				return errTooManyAttempts
			}
			return next(ctx)
		}
	}
}
