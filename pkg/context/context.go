package context

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

type ctxKey string

const (
	RequestIDKey ctxKey = "request_id"

	requestIDHeader = "X-Request-ID"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	requestID, ok := ctx.Value(RequestIDKey).(string)
	if !ok || requestID == "" {
		return "unknown"
	}
	return requestID
}

// FromFiberCtx returns the request scoped context of c. The id set by the
// request id middleware wins; the raw header is the fallback for routes
// mounted outside it.
func FromFiberCtx(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if _, ok := ctx.Value(RequestIDKey).(string); ok {
		return ctx
	}

	requestID, _ := c.Locals(requestIDHeader).(string)
	if requestID == "" {
		requestID = c.Get(requestIDHeader)
	}

	return WithRequestID(ctx, requestID)
}
