package verificationHandler

import (
	"FaceVerification/internal/middleware"
	contextPkg "FaceVerification/pkg/context"
	"FaceVerification/pkg/handlerUtil"
	"FaceVerification/pkg/response"
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

const wsReadTimeout = 60 * time.Second

// handleVerifyWebSocket verifies every binary frame against the subject given
// in the query string and answers each with a result or an error object.
func (h *VerificationHandler) handleVerifyWebSocket(c *websocket.Conn) {
	requestID, _ := c.Locals(middleware.RequestIDKey).(string)
	subjectID := c.Query("subject_id")
	threshold, _ := strconv.ParseFloat(c.Query("threshold"), 64)

	log := h.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"subject_id": subjectID,
	})
	log.Info("Verification WebSocket client connected")
	defer log.Info("Verification WebSocket client disconnected")

	if subjectID == "" {
		_ = c.WriteJSON(handlerUtil.ErrorResponse{Message: "subject_id is required", Code: "SUBJECT_ID_REQUIRED"})
		return
	}

	c.SetPingHandler(func(data string) error {
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	base := contextPkg.WithRequestID(context.Background(), requestID)

	for {
		if err := c.SetReadDeadline(time.Now().Add(wsReadTimeout)); err != nil {
			log.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Errorf("Verification WebSocket error: %v", err)
			}
			break
		}

		if messageType != websocket.BinaryMessage {
			continue
		}

		ctx, cancel := context.WithTimeout(base, matchTimeout)
		result, err := h.verificationService.Verification().Verify(ctx, subjectID, message, threshold)
		cancel()

		if err := c.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
			log.Errorf("Error setting write deadline: %v", err)
			break
		}

		var reply interface{} = result
		if err != nil {
			log.WithField("error", err.Error()).Warn("Frame verification failed")
			reply = frameError(err)
		}

		if err := c.WriteJSON(reply); err != nil {
			log.Errorf("Error writing JSON response: %v", err)
			break
		}
	}
}

func frameError(err error) handlerUtil.ErrorResponse {
	var respErr *response.Error
	switch {
	case errors.As(err, &respErr):
		return handlerUtil.ErrorResponse{Message: respErr.Err.Error(), Code: respErr.Kind}
	case errors.Is(err, context.DeadlineExceeded):
		return handlerUtil.ErrorResponse{Message: "Request timed out", Code: "REQUEST_TIMEOUT"}
	default:
		return handlerUtil.ErrorResponse{Message: "frame could not be verified", Code: "VERIFICATION_ERROR"}
	}
}
