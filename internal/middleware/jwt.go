package middleware

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/hyfer-go-api/internal/utils"
)

// AuthClaims is the token payload issued by the Hyfer login flow.
type AuthClaims struct {
	UserID   uint   `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTProtected returns a middleware that validates HS256 bearer tokens and
// stores user_id, username and user_role in the request locals. Browsers
// cannot set headers on websocket upgrades, so the token may also arrive as
// the "token" query parameter.
func JWTProtected(secret string) fiber.Handler {
	keyFunc := func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}

	return func(c *fiber.Ctx) error {
		tokenString, err := bearerToken(c)
		if err != nil {
			return utils.SendErrorWithCode(c, fiber.StatusUnauthorized, "UNAUTHORIZED", err.Error())
		}

		claims := &AuthClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, keyFunc, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			return utils.SendErrorWithCode(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
		}

		userID, ok := claims.subject()
		if !ok {
			return utils.SendErrorWithCode(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "invalid token claims")
		}

		c.Locals("user_id", userID)
		if claims.Username != "" {
			c.Locals("username", claims.Username)
		}
		if role := strings.ToLower(strings.TrimSpace(claims.Role)); role != "" {
			c.Locals("user_role", role)
		}

		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authorization := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if authorization == "" {
		if query := strings.TrimSpace(c.Query("token")); query != "" {
			return query, nil
		}
		return "", errors.New("authorization header missing")
	}

	const bearer = "bearer "
	if len(authorization) <= len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
		return "", errors.New("invalid authorization header")
	}
	return strings.TrimSpace(authorization[len(bearer):]), nil
}

// subject prefers the explicit user_id claim and falls back to a numeric sub.
func (c *AuthClaims) subject() (uint, bool) {
	if c.UserID != 0 {
		return c.UserID, true
	}
	parsed, err := strconv.ParseUint(strings.TrimSpace(c.Subject), 10, 64)
	if err != nil || parsed == 0 {
		return 0, false
	}
	return uint(parsed), true
}
