package handlerUtil

import (
	"FaceVerification/pkg/log"
	"FaceVerification/pkg/response"
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// Handle writes err as {message, code}. Domain errors carry their own status
// and code; anything else is a 500 with a trace id for the logs.
func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	fields := log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}

	var respErr *response.Error
	if errors.As(err, &respErr) {
		fields["code"] = respErr.Kind
		entry := h.logger.WithFields(fields)
		if respErr.Code >= fiber.StatusInternalServerError {
			entry.Error("Operation failed with server error")
		} else {
			entry.Warn("Operation failed with error response")
		}

		return c.Status(respErr.Code).JSON(ErrorResponse{
			Message: respErr.Err.Error(),
			Code:    respErr.Kind,
		})
	}

	if errors.Is(err, context.DeadlineExceeded) {
		h.logger.WithFields(fields).Warn("Operation timed out")
		return c.Status(fiber.StatusGatewayTimeout).JSON(ErrorResponse{
			Message: "Request timed out",
			Code:    "REQUEST_TIMEOUT",
		})
	}

	if errors.Is(err, context.Canceled) {
		h.logger.WithFields(fields).Info("Client went away")
		return c.Status(fiber.StatusRequestTimeout).JSON(ErrorResponse{
			Message: "Request cancelled",
			Code:    "REQUEST_CANCELLED",
		})
	}

	traceID := h.errorWithTraceID(fields, "Unexpected error")

	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Message: "An unexpected error occurred",
		Code:    "INTERNAL_ERROR",
		TraceID: traceID,
	})
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Message: "Validation failed: " + err.Error(),
		Code:    "VALIDATION_ERROR",
	})
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(ErrorResponse{
		Message: utils.StatusMessage(fiber.StatusRequestTimeout),
		Code:    "REQUEST_TIMEOUT",
	})
}

func (h *ErrorHandler) HandleUnauthorized(c *fiber.Ctx, requestID string, message string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"path":       c.Path(),
		"message":    message,
	}).Warn("Unauthorized access")

	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
		Message: message,
		Code:    "UNAUTHORIZED",
	})
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}

func (h *ErrorHandler) errorWithTraceID(fields log.Fields, msg string) string {
	traceID, _ := fields["request_id"].(string)
	if traceID == "" || traceID == "unknown" {
		traceID = log.NewTraceID()
	}
	fields["trace_id"] = traceID
	h.logger.WithFields(fields).Error(msg)
	return traceID
}
