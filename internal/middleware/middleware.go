package middleware

import (
	"FaceVerification/pkg/handlerUtil"
	"FaceVerification/pkg/utils"
	"os"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	defaultRateLimit = 50
	defaultBurst     = 100
)

type Middleware interface {
	NewRateLimiter(ctx *fiber.Ctx) error
	NewTokenMiddleware(ctx *fiber.Ctx) error
	NewLoggingMiddleware(ctx *fiber.Ctx) error
	NewRequestIDMiddleware() fiber.Handler
	GetRequestID(ctx *fiber.Ctx) string
}

type middleware struct {
	token             *tokenMiddleware
	limiter           *rateLimiter
	loggingMiddleware *loggingMiddleware
	requestID         fiber.Handler
	errHandler        *handlerUtil.ErrorHandler
	log               *logrus.Logger
}

// New builds the middleware set. Per-client limits come from RATE_LIMIT_RPS
// and RATE_LIMIT_BURST; a zero or negative RPS disables the limiter.
func New(logger *logrus.Logger) Middleware {
	m := &middleware{
		token:             newTokenMiddleware(),
		loggingMiddleware: newLoggingMiddleware(logger),
		requestID:         newRequestIDMiddleware(utils.New()),
		errHandler:        handlerUtil.New(logger),
		log:               logger,
	}

	if rps, burst := rateLimitFromEnv(); rps > 0 {
		m.limiter = newRateLimiter(rate.Limit(rps), burst)
	}

	return m
}

func rateLimitFromEnv() (float64, int) {
	rps := float64(defaultRateLimit)
	if v, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64); err == nil {
		rps = v
	}
	burst := defaultBurst
	if v, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST")); err == nil && v > 0 {
		burst = v
	}
	return rps, burst
}

func (m *middleware) GetRequestID(ctx *fiber.Ctx) string {
	if requestID, ok := ctx.Locals(RequestIDKey).(string); ok && requestID != "" {
		return requestID
	}
	return "unknown"
}

func (m *middleware) NewRequestIDMiddleware() fiber.Handler {
	return m.requestID
}
