package verificationHandler

import (
	"FaceVerification/internal/api/verification"
	contextPkg "FaceVerification/pkg/context"
	"FaceVerification/pkg/handlerUtil"
	jwtPkg "FaceVerification/pkg/jwt"
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

func (h *VerificationHandler) HandleEnroll(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), matchTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	subjectID := strings.TrimSpace(ctx.Params("id"))
	if subjectID == "" {
		return errHandler.Handle(ctx, requestID, verification.ErrSubjectIDRequired, ctx.Path(), "enroll")
	}

	var req verification.EnrollRequest
	if err := ctx.BodyParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "parse_request_body")
	}

	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	file, err := ctx.FormFile("image")
	if err != nil {
		return errHandler.Handle(ctx, requestID, verification.ErrImageRequired, ctx.Path(), "enroll")
	}

	image, contentType, err := h.utils.ReadImageFile(file)
	if err != nil {
		return errHandler.Handle(ctx, requestID, imageError(err), ctx.Path(), "read_image")
	}

	if operator, err := jwtPkg.GetOperatorLoginData(ctx); err == nil {
		h.log.WithFields(logrus.Fields{
			"request_id":  requestID,
			"operator_id": operator.ID,
			"subject_id":  subjectID,
		}).Info("Enrollment requested")
	}

	res, err := h.verificationService.Subject().Enroll(c, verification.EnrollInput{
		SubjectID:   subjectID,
		Cohort:      req.Cohort,
		Group:       req.Group,
		Image:       image,
		ContentType: contentType,
	})
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "enroll")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusCreated, res)
	}
}

func (h *VerificationHandler) HandleGetReference(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), adminTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	res, err := h.verificationService.Subject().GetReference(c, ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_reference")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, res)
	}
}
