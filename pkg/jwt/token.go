package jwtPkg

import (
	"FaceVerification/internal/entity"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
)

const (
	OperatorLocalsKey = "operator"

	// SecretEnv names the HMAC secret shared by Sign and VerifyTokenHeader.
	SecretEnv = "JWT_ACCESS_TOKEN_SECRET"
)

var (
	ErrEmptyHeader     = errors.New("empty Authorization header")
	ErrMalformedHeader = errors.New("invalid Authorization format")
	ErrNoSecret        = errors.New("JWT secret not configured")
)

// Sign issues an HS256 operator token carrying data as extra claims.
func Sign(data map[string]interface{}, ttl time.Duration) (string, int64, error) {
	secret := os.Getenv(SecretEnv)
	if secret == "" {
		return "", 0, fmt.Errorf("%w: %s not set", ErrNoSecret, SecretEnv)
	}

	now := time.Now()
	expiredAt := now.Add(ttl).Unix()

	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": expiredAt,
	}
	for k, v := range data {
		claims[k] = v
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		logrus.WithError(err).Error("Failed to sign operator token")
		return "", 0, err
	}

	return signed, expiredAt, nil
}

// VerifyTokenHeader parses the bearer token of the request with the secret
// stored in secretEnvKey. Tokens without an exp claim are rejected.
func VerifyTokenHeader(c *fiber.Ctx, secretEnvKey string) (*jwt.Token, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return nil, ErrEmptyHeader
	}

	raw, ok := strings.CutPrefix(header, "Bearer ")
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return nil, ErrMalformedHeader
	}

	secret := os.Getenv(secretEnvKey)
	if secret == "" {
		logrus.WithField("env", secretEnvKey).Error("JWT secret environment variable not set")
		return nil, ErrNoSecret
	}

	token, err := jwt.Parse(raw,
		func(*jwt.Token) (interface{}, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		logrus.WithError(err).Debug("Failed to parse operator token")
		return nil, err
	}

	return token, nil
}

func GetOperatorLoginData(c *fiber.Ctx) (entity.OperatorLoginData, error) {
	operator, ok := c.Locals(OperatorLocalsKey).(entity.OperatorLoginData)
	if !ok {
		return entity.OperatorLoginData{}, fiber.ErrUnauthorized
	}

	return operator, nil
}
