package middleware

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL       = 10 * time.Minute
	limiterSweepInterval = time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type rateLimiter struct {
	mu        sync.Mutex
	clients   map[string]*clientLimiter
	rate      rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func newRateLimiter(reqRate rate.Limit, burst int) *rateLimiter {
	return &rateLimiter{
		clients: make(map[string]*clientLimiter),
		rate:    reqRate,
		burst:   burst,
		now:     time.Now,
	}
}

func (r *rateLimiter) allow(ip string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.Sub(r.lastSweep) >= limiterSweepInterval {
		for key, cl := range r.clients {
			if now.Sub(cl.lastSeen) > limiterIdleTTL {
				delete(r.clients, key)
			}
		}
		r.lastSweep = now
	}

	cl, ok := r.clients[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(r.rate, r.burst)}
		r.clients[ip] = cl
	}
	cl.lastSeen = now

	return cl.limiter.AllowN(now, 1)
}

func (r *rateLimiter) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

func (m *middleware) NewRateLimiter(ctx *fiber.Ctx) error {
	if m.limiter == nil {
		return ctx.Next()
	}

	clientIP := ctx.IP()
	if !m.limiter.allow(clientIP) {
		m.log.WithFields(logrus.Fields{
			"request_id": m.GetRequestID(ctx),
			"ip":         clientIP,
			"path":       ctx.Path(),
		}).Warn("Rate limit exceeded")

		ctx.Set(fiber.HeaderRetryAfter, "1")
		return ctx.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"message": "Too many requests",
			"code":    "TOO_MANY_REQUESTS",
		})
	}

	return ctx.Next()
}
