package config

import (
	"FaceVerification/pkg/handlerUtil"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

const maxImageBody = 10 * 1024 * 1024

// NewFiber builds the HTTP app. Read and write timeouts leave room for a
// queued match to finish within requestTimeout. Immutable copies params and
// form values out of the request buffer, since subject ids become map keys in
// the memory backends.
func NewFiber(logger *logrus.Logger, requestTimeout time.Duration) *fiber.App {
	return fiber.New(fiber.Config{
		AppName:           "Face Verification",
		BodyLimit:         maxImageBody,
		ReadTimeout:       requestTimeout,
		WriteTimeout:      requestTimeout + 15*time.Second,
		Immutable:         true,
		StrictRouting:     true,
		CaseSensitive:     true,
		EnablePrintRoutes: logger.IsLevelEnabled(logrus.DebugLevel),
		JSONEncoder:       jsoniter.Marshal,
		JSONDecoder:       jsoniter.Unmarshal,
		ErrorHandler:      fiberErrorHandler(logger),
	})
}

// fiberErrorHandler renders errors that escape the handlers, such as unknown
// routes or oversized bodies, as {message, code}.
func fiberErrorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		message := "Internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
			message = fe.Message
		}

		if status >= fiber.StatusInternalServerError {
			logger.WithFields(logrus.Fields{
				"path":  c.Path(),
				"error": err.Error(),
			}).Error("Unhandled error")
		}

		return c.Status(status).JSON(handlerUtil.ErrorResponse{
			Message: message,
			Code:    strings.ToUpper(strings.ReplaceAll(utils.StatusMessage(status), " ", "_")),
		})
	}
}
