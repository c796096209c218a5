package verificationHandler

import (
	verificationService "FaceVerification/internal/api/verification/service"
	"FaceVerification/internal/middleware"
	"FaceVerification/pkg/utils"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

const (
	adminTimeout = 10 * time.Second
	// biometric requests may wait in the queue before a worker picks them up
	matchTimeout = 45 * time.Second
)

type VerificationHandler struct {
	log                 *logrus.Logger
	verificationService verificationService.VerificationService
	validator           *validator.Validate
	middleware          middleware.Middleware
	utils               utils.IUtils
}

func New(
	log *logrus.Logger,
	vs verificationService.VerificationService,
	validate *validator.Validate,
	middleware middleware.Middleware,
	utils utils.IUtils,
) *VerificationHandler {
	return &VerificationHandler{
		log:                 log,
		verificationService: vs,
		validator:           validate,
		middleware:          middleware,
		utils:               utils,
	}
}

func (h *VerificationHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	verification := srv.Group("/verification")
	verification.Post("/verify", h.HandleVerify)
	verification.Post("/identify", h.HandleIdentify)
	verification.Post("/proofs", h.HandleSubmitProof)
	verification.Get("/time", h.HandleServerTime)
	verification.Get("/queue/stats", h.HandleQueueStats)
	verification.Post("/queue/clear", h.middleware.NewTokenMiddleware, h.HandleClearQueue)
	verification.Post("/cache/warm", h.middleware.NewTokenMiddleware, h.HandleWarmCache)
	verification.Post("/cache/invalidate", h.middleware.NewTokenMiddleware, h.HandleInvalidateCache)
	verification.Use("/ws", wsMiddleware)
	verification.Get("/ws", websocket.New(h.handleVerifyWebSocket))

	subjects := srv.Group("/subjects")
	subjects.Post("/:id/enroll", h.middleware.NewTokenMiddleware, h.HandleEnroll)
	subjects.Get("/:id/reference", h.middleware.NewTokenMiddleware, h.HandleGetReference)
}
