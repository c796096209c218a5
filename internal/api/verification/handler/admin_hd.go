package verificationHandler

import (
	"FaceVerification/internal/api/verification"
	contextPkg "FaceVerification/pkg/context"
	"FaceVerification/pkg/handlerUtil"
	"context"

	"github.com/gofiber/fiber/v2"
)

func (h *VerificationHandler) HandleWarmCache(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), adminTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var req verification.WarmCacheRequest
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_request_body")
		}
	}

	res, err := h.verificationService.Admin().WarmCache(c, req.Scope)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "warm_cache")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, res)
	}
}

func (h *VerificationHandler) HandleInvalidateCache(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), adminTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var req verification.InvalidateCacheRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_request_body")
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	if err := h.verificationService.Admin().InvalidateCache(c, req.SubjectID); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "invalidate_cache")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, verification.MessageResponse{Message: "cache entry invalidated"})
	}
}

func (h *VerificationHandler) HandleQueueStats(ctx *fiber.Ctx) error {
	return handlerUtil.New(h.log).HandleSuccess(ctx, fiber.StatusOK, h.verificationService.Admin().QueueStats())
}

func (h *VerificationHandler) HandleClearQueue(ctx *fiber.Ctx) error {
	return handlerUtil.New(h.log).HandleSuccess(ctx, fiber.StatusOK, h.verificationService.Admin().ClearQueue())
}
