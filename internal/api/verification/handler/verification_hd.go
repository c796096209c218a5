package verificationHandler

import (
	"FaceVerification/internal/api/verification"
	contextPkg "FaceVerification/pkg/context"
	"FaceVerification/pkg/handlerUtil"
	"FaceVerification/pkg/utils"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

func (h *VerificationHandler) HandleVerify(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), matchTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var req verification.VerifyRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_request_body")
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	image, _, err := h.readImage(ctx, req.ImageBase64)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_image")
	}

	result, err := h.verificationService.Verification().Verify(c, req.SubjectID, image, req.Threshold)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "verify")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
	}
}

func (h *VerificationHandler) HandleIdentify(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), matchTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var req verification.IdentifyRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_request_body")
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	image, _, err := h.utils.DecodeBase64Image(req.ImageBase64)
	if err != nil {
		return errHandler.Handle(ctx, requestID, imageError(err), ctx.Path(), "decode_image")
	}

	result, err := h.verificationService.Verification().Identify(c, req.Scope, image, req.Threshold)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "identify")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
	}
}

// readImage takes the multipart "image" field when the request is a form
// upload and the base64 body field otherwise.
func (h *VerificationHandler) readImage(ctx *fiber.Ctx, encoded string) ([]byte, string, error) {
	if strings.HasPrefix(ctx.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		file, err := ctx.FormFile("image")
		if err != nil {
			return nil, "", verification.ErrImageRequired
		}

		h.log.WithFields(logrus.Fields{
			"request_id": h.middleware.GetRequestID(ctx),
			"filename":   file.Filename,
			"size":       file.Size,
		}).Debug("Image upload received")

		data, contentType, err := h.utils.ReadImageFile(file)
		if err != nil {
			return nil, "", imageError(err)
		}
		return data, contentType, nil
	}

	if encoded == "" {
		return nil, "", verification.ErrImageRequired
	}

	data, contentType, err := h.utils.DecodeBase64Image(encoded)
	if err != nil {
		return nil, "", imageError(err)
	}
	return data, contentType, nil
}

func imageError(err error) error {
	switch {
	case errors.Is(err, utils.ErrNoFile):
		return verification.ErrImageRequired
	default:
		return fmt.Errorf("%w: %v", verification.ErrInvalidImage, err)
	}
}
