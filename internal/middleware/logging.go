package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

type loggingMiddleware struct {
	logger *logrus.Logger
}

func newLoggingMiddleware(logger *logrus.Logger) *loggingMiddleware {
	return &loggingMiddleware{
		logger: logger,
	}
}

func (m *middleware) NewLoggingMiddleware(c *fiber.Ctx) error {
	start := time.Now()
	requestID := m.GetRequestID(c)

	err := c.Next()

	latency := time.Since(start)
	status := c.Response().StatusCode()

	logFields := logrus.Fields{
		"request_id":    requestID,
		"method":        c.Method(),
		"path":          c.Path(),
		"status":        status,
		"latency_ms":    latency.Milliseconds(),
		"ip":            c.IP(),
		"user_agent":    c.Get("User-Agent"),
		"response_size": len(c.Response().Body()),
	}

	if body := c.Request().Body(); len(body) > 0 {
		logFields["request_body"] = sanitizeRequestBody(string(c.Request().Header.ContentType()), body)
	}

	entry := m.loggingMiddleware.logger.WithFields(logFields)
	if status >= 500 {
		entry.Error("Server error")
	} else if status >= 400 {
		entry.Warn("Client error")
	} else {
		entry.Info("Success")
	}

	return err
}

var sensitiveFields = []string{
	"image", "image_base64", "descriptor", "signature", "proof_key",
	"password", "token", "secret", "authorization",
}

// sanitizeRequestBody never lets images, descriptors or proof material into the logs.
func sanitizeRequestBody(contentType string, body []byte) string {
	if strings.HasPrefix(contentType, fiber.MIMEMultipartForm) {
		return "[multipart body]"
	}

	var jsonBody map[string]interface{}
	if err := jsoniter.Unmarshal(body, &jsonBody); err != nil {
		return "[non-JSON body]"
	}

	for _, field := range sensitiveFields {
		if _, exists := jsonBody[field]; exists {
			jsonBody[field] = "[REDACTED]"
		}
	}

	sanitized, err := jsoniter.Marshal(jsonBody)
	if err != nil {
		return "[sanitization-failed]"
	}

	return string(sanitized)
}
