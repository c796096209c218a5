package middleware

import (
	contextPkg "FaceVerification/pkg/context"
	"FaceVerification/pkg/utils"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	RequestIDKey = "X-Request-ID"

	maxRequestIDLength = 64
)

// newRequestIDMiddleware keeps a caller-supplied X-Request-ID when it is a
// short printable token and mints a ULID otherwise. The id is also stored on
// the user context so services see it through contextPkg.FromFiberCtx.
func newRequestIDMiddleware(u utils.IUtils) fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDKey)
		if !validRequestID(requestID) {
			requestID, _ = u.NewULIDFromTimestamp(time.Now())
		}

		c.Locals(RequestIDKey, requestID)
		c.SetUserContext(contextPkg.WithRequestID(c.UserContext(), requestID))
		c.Set(RequestIDKey, requestID)

		return c.Next()
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		ch := id[i]
		if ch <= ' ' || ch > '~' {
			return false
		}
	}
	return true
}
