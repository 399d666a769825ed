package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
	"golang.org/x/time/rate"
)

const (
	SessionCookie  = "seedtext_session"
	sessionKey     = "seedtext.session"
	sessionMaxAge  = 30 * 24 * time.Hour
	limiterIdleTTL = 10 * time.Minute
)

// sessionMiddleware makes sure every request carries a session id, issuing
// a fresh cookie when the client has none or sends a malformed one.
func sessionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		id := ""
		if ck, err := c.Request().Cookie(SessionCookie); err == nil {
			if _, perr := uuid.Parse(ck.Value); perr == nil {
				id = ck.Value
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(c.Response(), &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				MaxAge:   int(sessionMaxAge.Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		c.Set(sessionKey, id)
		return next(c)
	}
}

func sessionID(c *echo.Context) string {
	id, _ := c.Get(sessionKey).(string)
	return id
}

// clientLimiter hands out one token bucket per client address.
type clientLimiter struct {
	limit rate.Limit
	burst int
	clock func() time.Time

	mu      sync.Mutex
	clients map[string]*limiterEntry
	sweep   time.Time
}

type limiterEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

func newClientLimiter(limit rate.Limit, burst int) *clientLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &clientLimiter{
		limit:   limit,
		burst:   burst,
		clock:   time.Now,
		clients: make(map[string]*limiterEntry),
	}
}

func (l *clientLimiter) allow(key string) bool {
	now := l.clock()
	l.mu.Lock()
	if now.Sub(l.sweep) > limiterIdleTTL {
		for k, e := range l.clients {
			if now.Sub(e.seen) > limiterIdleTTL {
				delete(l.clients, k)
			}
		}
		l.sweep = now
	}
	e, ok := l.clients[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = e
	}
	e.seen = now
	l.mu.Unlock()
	return e.lim.AllowN(now, 1)
}

func (l *clientLimiter) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		if !l.allow(clientIP(c.Request())) {
			c.Response().Header().Set("Retry-After", "1")
			return writeError(c, http.StatusTooManyRequests, "rate_limit_error", "too many requests", "", "rate_limited")
		}
		return next(c)
	}
}
