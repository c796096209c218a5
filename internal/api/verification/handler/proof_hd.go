package verificationHandler

import (
	"FaceVerification/internal/entity"
	contextPkg "FaceVerification/pkg/context"
	"FaceVerification/pkg/handlerUtil"
	"context"

	"github.com/gofiber/fiber/v2"
)

func (h *VerificationHandler) HandleSubmitProof(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), adminTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var record entity.ProofRecord
	if err := ctx.BodyParser(&record); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_request_body")
	}

	if err := h.validator.Struct(record); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	ack, err := h.verificationService.Proof().SubmitProof(c, record)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "submit_proof")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusCreated, ack)
	}
}

func (h *VerificationHandler) HandleServerTime(ctx *fiber.Ctx) error {
	return handlerUtil.New(h.log).HandleSuccess(ctx, fiber.StatusOK, h.verificationService.Proof().ServerTime())
}
