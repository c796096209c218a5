package middleware

import (
	"FaceVerification/internal/entity"
	jwtPkg "FaceVerification/pkg/jwt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const (
	AccessTokenSecret = jwtPkg.SecretEnv
)

type tokenMiddleware struct {
}

func newTokenMiddleware() *tokenMiddleware {
	return &tokenMiddleware{}
}

const unauthorizedMessage = "Unauthorized, access token invalid or expired"

// NewTokenMiddleware admits operators holding a valid access token with an
// id and a role claim.
func (m *middleware) NewTokenMiddleware(ctx *fiber.Ctx) error {
	authHeader := ctx.Get("Authorization")
	requestID := m.GetRequestID(ctx)

	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		m.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"client_ip":  ctx.IP(),
		}).Debug("Missing or malformed Authorization header")
		return m.errHandler.HandleUnauthorized(ctx, requestID, unauthorizedMessage)
	}

	operatorToken, err := jwtPkg.VerifyTokenHeader(ctx, AccessTokenSecret)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Debug("Token verification failed")
		return m.errHandler.HandleUnauthorized(ctx, requestID, unauthorizedMessage)
	}

	claims, ok := operatorToken.Claims.(jwt.MapClaims)
	if !ok {
		return m.errHandler.HandleUnauthorized(ctx, requestID, unauthorizedMessage)
	}

	id, _ := claims["id"].(string)
	role, _ := claims["role"].(string)
	if id == "" || role == "" {
		m.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      "Token claims are missing required fields",
		}).Debug("Token claims check")
		return m.errHandler.HandleUnauthorized(ctx, requestID, unauthorizedMessage)
	}

	ctx.Locals(jwtPkg.OperatorLocalsKey, entity.OperatorLoginData{
		ID:   id,
		Role: role,
	})

	m.log.WithFields(logrus.Fields{
		"request_id":  requestID,
		"operator_id": id,
		"role":        role,
	}).Debug("Authentication successful")
	return ctx.Next()
}
